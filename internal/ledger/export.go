// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/screening-engine/pkg/types"
)

// ExportBundle is the complete audit record for one review: the question,
// every criteria version, every flow snapshot, every decision, and the
// event log. Written for archival and external audit tooling.
type ExportBundle struct {
	Review    types.ResearchQuestion    `json:"review" yaml:"review"`
	Criteria  []CriteriaVersion         `json:"criteria_versions" yaml:"criteria_versions"`
	Flow      []types.PrismaState       `json:"flow_snapshots" yaml:"flow_snapshots"`
	Decisions []types.ScreeningDecision `json:"decisions" yaml:"decisions"`
	Events    []types.ReviewEvent       `json:"events" yaml:"events"`
}

// Bundle gathers everything recorded for a review.
func (s *Store) Bundle(ctx context.Context, reviewID uuid.UUID) (ExportBundle, error) {
	review, err := s.GetReview(ctx, reviewID)
	if err != nil {
		return ExportBundle{}, err
	}
	criteria, err := s.CriteriaHistory(ctx, reviewID)
	if err != nil {
		return ExportBundle{}, err
	}
	flow, err := s.FlowHistory(ctx, reviewID)
	if err != nil {
		return ExportBundle{}, err
	}
	decisions, err := s.ListReviewDecisions(ctx, reviewID)
	if err != nil {
		return ExportBundle{}, err
	}
	events, err := s.Replay(ctx, reviewID, time.Time{})
	if err != nil {
		return ExportBundle{}, err
	}

	return ExportBundle{
		Review:    review,
		Criteria:  criteria,
		Flow:      flow,
		Decisions: decisions,
		Events:    events,
	}, nil
}

// ExportYAML writes the review's audit bundle to
// reviewDir/exports/[reviewID].yaml.
func (s *Store) ExportYAML(ctx context.Context, reviewID uuid.UUID) (string, error) {
	bundle, err := s.Bundle(ctx, reviewID)
	if err != nil {
		return "", err
	}
	// Round-trip through JSON so uuid and time fields render in their
	// string forms.
	raw, err := json.Marshal(bundle)
	if err != nil {
		return "", fmt.Errorf("encoding bundle: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "", fmt.Errorf("decoding bundle: %w", err)
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshaling YAML: %w", err)
	}
	return s.writeExport(reviewID.String()+".yaml", data)
}

// ExportJSON writes the review's audit bundle to
// reviewDir/exports/[reviewID].json.
func (s *Store) ExportJSON(ctx context.Context, reviewID uuid.UUID) (string, error) {
	bundle, err := s.Bundle(ctx, reviewID)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling JSON: %w", err)
	}
	return s.writeExport(reviewID.String()+".json", data)
}

func (s *Store) writeExport(name string, data []byte) (string, error) {
	dir := filepath.Join(s.reviewDir, exportsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating exports directory: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing export: %w", err)
	}
	return path, nil
}
