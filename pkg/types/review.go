// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ScreeningResult is a reviewer's verdict on a single document.
// Per prd001-screening-model R1.3.
type ScreeningResult string

const (
	ResultInclude   ScreeningResult = "include"
	ResultExclude   ScreeningResult = "exclude"
	ResultUncertain ScreeningResult = "uncertain"
)

// ValidResult reports whether r is one of the known screening results.
func ValidResult(r ScreeningResult) bool {
	switch r {
	case ResultInclude, ResultExclude, ResultUncertain:
		return true
	}
	return false
}

// CriterionType tags a criterion as inclusion or exclusion.
// Per prd001-screening-model R2.1.
type CriterionType string

const (
	CriterionInclusion CriterionType = "inclusion"
	CriterionExclusion CriterionType = "exclusion"
)

// Criterion is a single inclusion or exclusion rule a document is
// screened against.
type Criterion struct {
	// Description states the rule (e.g. "randomized controlled trial").
	Description string `json:"description" yaml:"description"`

	// Type tags the criterion: inclusion or exclusion.
	Type CriterionType `json:"type" yaml:"type"`

	// Rationale optionally records why the rule exists.
	Rationale string `json:"rationale,omitempty" yaml:"rationale,omitempty"`
}

// ReviewCriteria is one immutable snapshot of a review's criteria.
// Snapshots are versioned by the criteria store; a change always produces
// a new snapshot, never an in-place edit. Per prd001-screening-model R2.2-R2.4.
type ReviewCriteria struct {
	// Inclusion lists the inclusion criteria. At least one is required.
	Inclusion []Criterion `json:"inclusion" yaml:"inclusion"`

	// Exclusion lists the exclusion criteria. May be empty.
	Exclusion []Criterion `json:"exclusion,omitempty" yaml:"exclusion,omitempty"`
}

// Validate checks the snapshot against the criteria constraints: at least
// one inclusion criterion, non-empty descriptions, and type tags (when
// set) matching the list the criterion appears in.
func (c ReviewCriteria) Validate() error {
	if len(c.Inclusion) == 0 {
		return fmt.Errorf("criteria: at least one inclusion criterion is required")
	}
	check := func(list []Criterion, want CriterionType) error {
		for i, cr := range list {
			if strings.TrimSpace(cr.Description) == "" {
				return fmt.Errorf("criteria: %s[%d] has an empty description", want, i)
			}
			if cr.Type != "" && cr.Type != want {
				return fmt.Errorf("criteria: %s[%d] is tagged %q", want, i, cr.Type)
			}
		}
		return nil
	}
	if err := check(c.Inclusion, CriterionInclusion); err != nil {
		return err
	}
	return check(c.Exclusion, CriterionExclusion)
}

// Normalized returns a copy with every criterion's type tag set from the
// list it appears in. Snapshots are normalized before being persisted so
// stored canonical forms are stable.
func (c ReviewCriteria) Normalized() ReviewCriteria {
	out := ReviewCriteria{
		Inclusion: make([]Criterion, len(c.Inclusion)),
		Exclusion: make([]Criterion, len(c.Exclusion)),
	}
	for i, cr := range c.Inclusion {
		cr.Type = CriterionInclusion
		out.Inclusion[i] = cr
	}
	for i, cr := range c.Exclusion {
		cr.Type = CriterionExclusion
		out.Exclusion[i] = cr
	}
	if len(out.Exclusion) == 0 {
		out.Exclusion = nil
	}
	return out
}

// DocID is an opaque, comparable document identifier. Upstream systems
// hand out PMIDs, DOIs, UUIDs, and plain accession strings; the ledger
// stores a single canonical string form and never branches on the scheme.
// Per prd001-screening-model R3.1.
type DocID string

// ParseDocID canonicalizes a raw document identifier: surrounding
// whitespace is trimmed and UUID forms are lowercased. Empty input is
// rejected.
func ParseDocID(raw string) (DocID, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("docid: empty identifier")
	}
	if u, err := uuid.Parse(s); err == nil {
		return DocID(u.String()), nil
	}
	return DocID(s), nil
}

// DocIDFromPMID builds a DocID from an 8-digit PubMed identifier.
func DocIDFromPMID(pmid string) (DocID, error) {
	if !ValidPMID(pmid) {
		return "", fmt.Errorf("docid: %q is not an 8-digit PMID", pmid)
	}
	return DocID(pmid), nil
}

// ResearchQuestion anchors a review: the question under study and a
// pointer to the active criteria version. Identity is immutable; only the
// criteria pointer advances. Per prd001-screening-model R1.1.
type ResearchQuestion struct {
	// ID is a time-ordered UUIDv7 assigned at creation.
	ID uuid.UUID `json:"id" yaml:"id"`

	// Question is the research question text.
	Question string `json:"question" yaml:"question"`

	// CriteriaVersion is the active criteria version, advanced only by
	// the criteria store's optimistic-concurrency propose operation.
	CriteriaVersion int `json:"criteria_version" yaml:"criteria_version"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// Validate checks the question constraints.
func (q ResearchQuestion) Validate() error {
	if q.ID == uuid.Nil {
		return fmt.Errorf("research question: missing id")
	}
	if strings.TrimSpace(q.Question) == "" {
		return fmt.Errorf("research question: empty question text")
	}
	return nil
}

// ScreeningDecision is one reviewer's judgment on one document. Decisions
// are immutable once recorded; a correction is a new decision, so the full
// judgment history per document survives. Per prd002-decision-ledger R1.1-R1.5.
type ScreeningDecision struct {
	// ID is a time-ordered UUIDv7 assigned when the decision is recorded.
	ID uuid.UUID `json:"id" yaml:"id"`

	// SRID references the research question the decision belongs to.
	SRID uuid.UUID `json:"srid" yaml:"srid"`

	// DocID identifies the screened document in canonical form.
	DocID DocID `json:"docid" yaml:"docid"`

	// Result is the reviewer's verdict: include, exclude, or uncertain.
	Result ScreeningResult `json:"result" yaml:"result"`

	// Confidence is the reviewer's certainty in [0.0, 1.0].
	Confidence float64 `json:"confidence" yaml:"confidence"`

	// Reasons lists the textual justifications. At least one is required.
	Reasons []string `json:"reasons" yaml:"reasons"`

	// ModelID identifies the deciding model (e.g. "claude-sonnet-4-5").
	// Empty means a human reviewer.
	ModelID string `json:"model_id,omitempty" yaml:"model_id,omitempty"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// IsHuman reports whether the decision came from a human reviewer.
func (d ScreeningDecision) IsHuman() bool {
	return d.ModelID == ""
}

// Validate checks the field constraints the decision ledger enforces at
// the boundary: known result, confidence range, and non-empty reasons.
// Document existence is deliberately not checked here; documents are
// external entities.
func (d ScreeningDecision) Validate() error {
	if d.SRID == uuid.Nil {
		return fmt.Errorf("decision: missing srid")
	}
	if d.DocID == "" {
		return fmt.Errorf("decision: missing docid")
	}
	if !ValidResult(d.Result) {
		return fmt.Errorf("decision: unknown result %q", d.Result)
	}
	if d.Confidence < 0.0 || d.Confidence > 1.0 {
		return fmt.Errorf("decision: confidence %v outside [0.0, 1.0]", d.Confidence)
	}
	if len(d.Reasons) == 0 {
		return fmt.Errorf("decision: at least one reason is required")
	}
	for i, r := range d.Reasons {
		if strings.TrimSpace(r) == "" {
			return fmt.Errorf("decision: reasons[%d] is empty", i)
		}
	}
	return nil
}
