// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"time"
)

// PrismaSectionName identifies one box of the PRISMA reporting funnel.
// Per prd004-prisma-flow R1.1.
type PrismaSectionName string

const (
	SectionDatabaseRecords     PrismaSectionName = "database_records"
	SectionRegisterRecords     PrismaSectionName = "register_records"
	SectionOtherSources        PrismaSectionName = "other_sources"
	SectionDuplicates          PrismaSectionName = "duplicates"
	SectionAutomatedExclusions PrismaSectionName = "automated_exclusions"
	SectionRecordsScreened     PrismaSectionName = "records_screened"
	SectionRecordsExcluded     PrismaSectionName = "records_excluded"
	SectionFullTextAssessed    PrismaSectionName = "full_text_assessed"
	SectionStudiesIncluded     PrismaSectionName = "studies_included"
)

// SectionNames lists the nine funnel sections in reporting order.
func SectionNames() []PrismaSectionName {
	return []PrismaSectionName{
		SectionDatabaseRecords,
		SectionRegisterRecords,
		SectionOtherSources,
		SectionDuplicates,
		SectionAutomatedExclusions,
		SectionRecordsScreened,
		SectionRecordsExcluded,
		SectionFullTextAssessed,
		SectionStudiesIncluded,
	}
}

// ValidSectionName reports whether name is one of the nine funnel sections.
func ValidSectionName(name PrismaSectionName) bool {
	for _, n := range SectionNames() {
		if n == name {
			return true
		}
	}
	return false
}

// PrismaSection is one box of the funnel: a total count, an optional
// per-source breakdown, and free-text notes. Breakdown values must sum to
// at most the count. Per prd004-prisma-flow R1.2.
type PrismaSection struct {
	// Count is the section total. Never negative.
	Count int `json:"count" yaml:"count"`

	// Details breaks the count down by source name (e.g. "PubMed": 800).
	Details map[string]int `json:"details,omitempty" yaml:"details,omitempty"`

	// Notes holds free-text annotations for the section.
	Notes string `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// Validate checks the section-local constraints.
func (s PrismaSection) Validate(name PrismaSectionName) error {
	if s.Count < 0 {
		return fmt.Errorf("section %s: count %d is negative", name, s.Count)
	}
	sum := 0
	for source, n := range s.Details {
		if n < 0 {
			return fmt.Errorf("section %s: breakdown %q is negative (%d)", name, source, n)
		}
		sum += n
	}
	if sum > s.Count {
		return fmt.Errorf("section %s: breakdown sum %d exceeds count %d", name, sum, s.Count)
	}
	return nil
}

// PrismaState is one immutable snapshot of a review's PRISMA accounting.
// Versions per review start at 1 and increase strictly with no gaps; new
// snapshots are produced only by validated deltas against the current
// head. Per prd004-prisma-flow R2.1-R2.3.
type PrismaState struct {
	// Version is the snapshot's position in the review's flow chain.
	Version int `json:"version" yaml:"version"`

	// Timestamp records when the snapshot was appended.
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`

	DatabaseRecords     PrismaSection `json:"database_records" yaml:"database_records"`
	RegisterRecords     PrismaSection `json:"register_records" yaml:"register_records"`
	OtherSources        PrismaSection `json:"other_sources" yaml:"other_sources"`
	Duplicates          PrismaSection `json:"duplicates" yaml:"duplicates"`
	AutomatedExclusions PrismaSection `json:"automated_exclusions" yaml:"automated_exclusions"`
	RecordsScreened     PrismaSection `json:"records_screened" yaml:"records_screened"`
	RecordsExcluded     PrismaSection `json:"records_excluded" yaml:"records_excluded"`
	FullTextAssessed    PrismaSection `json:"full_text_assessed" yaml:"full_text_assessed"`
	StudiesIncluded     PrismaSection `json:"studies_included" yaml:"studies_included"`
}

// Section returns a pointer to the named section, or nil for an unknown name.
func (p *PrismaState) Section(name PrismaSectionName) *PrismaSection {
	switch name {
	case SectionDatabaseRecords:
		return &p.DatabaseRecords
	case SectionRegisterRecords:
		return &p.RegisterRecords
	case SectionOtherSources:
		return &p.OtherSources
	case SectionDuplicates:
		return &p.Duplicates
	case SectionAutomatedExclusions:
		return &p.AutomatedExclusions
	case SectionRecordsScreened:
		return &p.RecordsScreened
	case SectionRecordsExcluded:
		return &p.RecordsExcluded
	case SectionFullTextAssessed:
		return &p.FullTextAssessed
	case SectionStudiesIncluded:
		return &p.StudiesIncluded
	}
	return nil
}

// Validate checks every section plus the flow-conservation rules.
func (p PrismaState) Validate() error {
	for _, name := range SectionNames() {
		if err := p.Section(name).Validate(name); err != nil {
			return err
		}
	}
	return p.CheckConservation()
}

// CheckConservation verifies the funnel arithmetic: records cannot appear
// downstream of where they were removed. Per prd004-prisma-flow R3.1-R3.4.
func (p PrismaState) CheckConservation() error {
	available := p.DatabaseRecords.Count + p.RegisterRecords.Count + p.OtherSources.Count -
		p.Duplicates.Count - p.AutomatedExclusions.Count
	if p.RecordsScreened.Count > available {
		return fmt.Errorf("records_screened %d exceeds available records %d",
			p.RecordsScreened.Count, available)
	}
	if p.RecordsExcluded.Count > p.RecordsScreened.Count {
		return fmt.Errorf("records_excluded %d exceeds records_screened %d",
			p.RecordsExcluded.Count, p.RecordsScreened.Count)
	}
	remaining := p.RecordsScreened.Count - p.RecordsExcluded.Count
	if p.FullTextAssessed.Count > remaining {
		return fmt.Errorf("full_text_assessed %d exceeds screened-minus-excluded %d",
			p.FullTextAssessed.Count, remaining)
	}
	if p.StudiesIncluded.Count > p.FullTextAssessed.Count {
		return fmt.Errorf("studies_included %d exceeds full_text_assessed %d",
			p.StudiesIncluded.Count, p.FullTextAssessed.Count)
	}
	return nil
}

// SectionDelta is a proposed adjustment to one funnel section: the count
// change, additive per-source breakdown changes, and an optional notes
// replacement.
type SectionDelta struct {
	// Count is added to the section count. May be negative; the result
	// must not be.
	Count int `json:"count" yaml:"count"`

	// Details values are added to the matching breakdown entries.
	Details map[string]int `json:"details,omitempty" yaml:"details,omitempty"`

	// Notes replaces the section notes when non-empty.
	Notes string `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// FlowDelta maps section names to their proposed adjustments. A delta is
// validated and applied atomically: either every adjustment lands in the
// new snapshot or none do.
type FlowDelta map[PrismaSectionName]SectionDelta

// Validate rejects deltas that touch unknown sections or are empty.
func (d FlowDelta) Validate() error {
	if len(d) == 0 {
		return fmt.Errorf("delta: no sections to adjust")
	}
	for name := range d {
		if !ValidSectionName(name) {
			return fmt.Errorf("delta: unknown section %q", name)
		}
	}
	return nil
}

// Apply computes the candidate snapshot current+delta. The result carries
// version current.Version+1 and must still pass Validate before it can be
// appended; Apply itself rejects adjustments that drive any count or
// breakdown entry negative.
func (p PrismaState) Apply(d FlowDelta, at time.Time) (PrismaState, error) {
	next := p
	next.Version = p.Version + 1
	next.Timestamp = at

	for _, name := range SectionNames() {
		sd, ok := d[name]
		if !ok {
			continue
		}
		sec := next.Section(name)

		sec.Count += sd.Count
		if sec.Count < 0 {
			return PrismaState{}, fmt.Errorf("section %s: count would become %d", name, sec.Count)
		}

		if len(sd.Details) > 0 {
			// Sections share nothing, but the map inside one does: copy
			// before writing so the prior snapshot stays immutable.
			merged := make(map[string]int, len(sec.Details)+len(sd.Details))
			for k, v := range sec.Details {
				merged[k] = v
			}
			for k, v := range sd.Details {
				merged[k] += v
				if merged[k] < 0 {
					return PrismaState{}, fmt.Errorf("section %s: breakdown %q would become %d", name, k, merged[k])
				}
				if merged[k] == 0 {
					delete(merged, k)
				}
			}
			if len(merged) == 0 {
				merged = nil
			}
			sec.Details = merged
		}

		if sd.Notes != "" {
			sec.Notes = sd.Notes
		}
	}

	return next, nil
}
