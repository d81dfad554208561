package types

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReviewCriteriaValidate(t *testing.T) {
	tests := []struct {
		name     string
		criteria ReviewCriteria
		wantErr  bool
	}{
		{
			name: "minimal valid",
			criteria: ReviewCriteria{
				Inclusion: []Criterion{{Description: "randomized controlled trial"}},
			},
		},
		{
			name: "tagged criteria",
			criteria: ReviewCriteria{
				Inclusion: []Criterion{{Description: "RCT", Type: CriterionInclusion}},
				Exclusion: []Criterion{{Description: "animal study", Type: CriterionExclusion}},
			},
		},
		{
			name:     "no inclusion criteria",
			criteria: ReviewCriteria{Exclusion: []Criterion{{Description: "animal study"}}},
			wantErr:  true,
		},
		{
			name: "blank description",
			criteria: ReviewCriteria{
				Inclusion: []Criterion{{Description: "   "}},
			},
			wantErr: true,
		},
		{
			name: "type tag contradicts list",
			criteria: ReviewCriteria{
				Inclusion: []Criterion{{Description: "RCT", Type: CriterionExclusion}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.criteria.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestReviewCriteriaNormalized(t *testing.T) {
	in := ReviewCriteria{
		Inclusion: []Criterion{{Description: "RCT"}},
		Exclusion: []Criterion{{Description: "animal study"}},
	}
	out := in.Normalized()

	assert.Equal(t, CriterionInclusion, out.Inclusion[0].Type)
	assert.Equal(t, CriterionExclusion, out.Exclusion[0].Type)
	assert.Empty(t, in.Inclusion[0].Type, "input must not be mutated")

	noExclusion := ReviewCriteria{Inclusion: []Criterion{{Description: "RCT"}}}.Normalized()
	assert.Nil(t, noExclusion.Exclusion)
}

func TestParseDocID(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    DocID
		wantErr bool
	}{
		{"pmid passes through", "29384756", "29384756", false},
		{"whitespace trimmed", "  10.1000/xyz123 \n", "10.1000/xyz123", false},
		{"uuid lowercased", "9B2D1E0A-64F3-4C7B-8A11-0F3E5D6C7B8A", "9b2d1e0a-64f3-4c7b-8a11-0f3e5d6c7b8a", false},
		{"doi kept verbatim", "10.1038/S41586-020-2649-2", "10.1038/S41586-020-2649-2", false},
		{"empty rejected", "   ", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDocID(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDocIDFromPMID(t *testing.T) {
	got, err := DocIDFromPMID("29384756")
	require.NoError(t, err)
	assert.Equal(t, DocID("29384756"), got)

	for _, bad := range []string{"", "1234567", "123456789", "2938475x"} {
		_, err := DocIDFromPMID(bad)
		assert.Error(t, err, "pmid %q", bad)
	}
}

func TestScreeningDecisionValidate(t *testing.T) {
	valid := ScreeningDecision{
		SRID:       uuid.New(),
		DocID:      "29384756",
		Result:     ResultInclude,
		Confidence: 0.8,
		Reasons:    []string{"meets population criterion"},
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*ScreeningDecision)
	}{
		{"nil srid", func(d *ScreeningDecision) { d.SRID = uuid.Nil }},
		{"empty docid", func(d *ScreeningDecision) { d.DocID = "" }},
		{"unknown result", func(d *ScreeningDecision) { d.Result = "maybe" }},
		{"confidence too high", func(d *ScreeningDecision) { d.Confidence = 1.01 }},
		{"confidence negative", func(d *ScreeningDecision) { d.Confidence = -0.01 }},
		{"no reasons", func(d *ScreeningDecision) { d.Reasons = nil }},
		{"blank reason", func(d *ScreeningDecision) { d.Reasons = []string{""} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := valid
			tt.mutate(&d)
			assert.Error(t, d.Validate())
		})
	}

	// Boundary confidences are legal.
	for _, c := range []float64{0.0, 1.0} {
		d := valid
		d.Confidence = c
		assert.NoError(t, d.Validate(), "confidence %v", c)
	}
}

func TestScreeningDecisionIsHuman(t *testing.T) {
	d := ScreeningDecision{}
	assert.True(t, d.IsHuman())
	d.ModelID = "claude-sonnet-4-5"
	assert.False(t, d.IsHuman())
}

func TestValidResult(t *testing.T) {
	assert.True(t, ValidResult(ResultInclude))
	assert.True(t, ValidResult(ResultExclude))
	assert.True(t, ValidResult(ResultUncertain))
	assert.False(t, ValidResult("maybe"))
	assert.False(t, ValidResult(""))
}
