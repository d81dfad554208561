// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"strings"
)

// PaperMetadata is the document-metadata shape the retrieval service
// returns for a screened paper. The ledger never stores it; it exists so
// the contract with the acquisition side is typed at the boundary.
type PaperMetadata struct {
	// PMID is the 8-digit PubMed identifier.
	PMID string `json:"pmid" yaml:"pmid"`

	// Title is the paper title.
	Title string `json:"title" yaml:"title"`

	// Abstract is the paper abstract.
	Abstract string `json:"abstract" yaml:"abstract"`

	// Authors lists the paper authors in source order.
	Authors []string `json:"authors,omitempty" yaml:"authors,omitempty"`

	// PublicationYear is the publication year, exclusive bounds (1900, 2100).
	PublicationYear int `json:"publication_year" yaml:"publication_year"`

	// Journal is the source journal name.
	Journal string `json:"journal" yaml:"journal"`

	// MeshTerms lists assigned MeSH vocabulary terms.
	MeshTerms []string `json:"mesh_terms,omitempty" yaml:"mesh_terms,omitempty"`
}

// ValidPMID reports whether s is an 8-digit PubMed identifier.
func ValidPMID(s string) bool {
	if len(s) != 8 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Validate checks the metadata constraints.
func (p PaperMetadata) Validate() error {
	if !ValidPMID(p.PMID) {
		return fmt.Errorf("paper: pmid %q is not an 8-digit PMID", p.PMID)
	}
	if strings.TrimSpace(p.Title) == "" {
		return fmt.Errorf("paper %s: empty title", p.PMID)
	}
	if p.PublicationYear <= 1900 || p.PublicationYear >= 2100 {
		return fmt.Errorf("paper %s: publication year %d outside (1900, 2100)", p.PMID, p.PublicationYear)
	}
	return nil
}
