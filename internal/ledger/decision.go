// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/screening-engine/pkg/types"
)

// RecordDecision appends one screening decision. Field constraints are
// validated at this boundary; the referenced research question must exist
// but the document itself is not checked (documents live outside the
// core). Decisions are immutable once recorded: there is no update path,
// and corrections arrive as new decisions. Per prd002-decision-ledger R1.1-R2.2.
func (s *Store) RecordDecision(ctx context.Context, d types.ScreeningDecision) (uuid.UUID, error) {
	now := time.Now().UTC()
	if d.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return uuid.Nil, fmt.Errorf("generating decision id: %w", err)
		}
		d.ID = id
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = d.CreatedAt
	}

	if err := d.Validate(); err != nil {
		return uuid.Nil, &ValidationError{Err: err}
	}

	exists, err := reviewExists(ctx, s.db, d.SRID)
	if err != nil {
		return uuid.Nil, err
	}
	if !exists {
		return uuid.Nil, &ValidationError{Err: fmt.Errorf("srid %s references no research question", d.SRID)}
	}

	reasonsJSON, err := json.Marshal(d.Reasons)
	if err != nil {
		return uuid.Nil, fmt.Errorf("encoding reasons: %w", err)
	}

	var modelID sql.NullString
	if d.ModelID != "" {
		modelID = sql.NullString{String: d.ModelID, Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO decisions (id, srid, docid, result, confidence, reasons, model_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID.String(), d.SRID.String(), string(d.DocID), string(d.Result),
		d.Confidence, string(reasonsJSON), modelID,
		timestamp(d.CreatedAt), timestamp(d.UpdatedAt),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("inserting decision: %w", err)
	}
	return d.ID, nil
}

// ListDecisions returns every decision for a (review, document) pair in
// creation order, insertion order breaking timestamp ties. This ordering
// is what makes repeated reconciliation of the same set deterministic.
func (s *Store) ListDecisions(ctx context.Context, reviewID uuid.UUID, docID types.DocID) ([]types.ScreeningDecision, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, srid, docid, result, confidence, reasons, model_id, created_at, updated_at
		 FROM decisions WHERE srid = ? AND docid = ?
		 ORDER BY created_at, seq`,
		reviewID.String(), string(docID))
	if err != nil {
		return nil, fmt.Errorf("listing decisions: %w", err)
	}
	defer rows.Close()

	var decisions []types.ScreeningDecision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}

// ListReviewDecisions returns every decision for a review across all
// documents, in creation order.
func (s *Store) ListReviewDecisions(ctx context.Context, reviewID uuid.UUID) ([]types.ScreeningDecision, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, srid, docid, result, confidence, reasons, model_id, created_at, updated_at
		 FROM decisions WHERE srid = ?
		 ORDER BY created_at, seq`,
		reviewID.String())
	if err != nil {
		return nil, fmt.Errorf("listing review decisions: %w", err)
	}
	defer rows.Close()

	var decisions []types.ScreeningDecision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}

func scanDecision(rows *sql.Rows) (types.ScreeningDecision, error) {
	var (
		d         types.ScreeningDecision
		idStr     string
		sridStr   string
		docID     string
		result    string
		reasons   string
		modelID   sql.NullString
		createdAt string
		updatedAt string
	)
	err := rows.Scan(&idStr, &sridStr, &docID, &result, &d.Confidence,
		&reasons, &modelID, &createdAt, &updatedAt)
	if err != nil {
		return types.ScreeningDecision{}, fmt.Errorf("scanning decision: %w", err)
	}

	if d.ID, err = uuid.Parse(idStr); err != nil {
		return types.ScreeningDecision{}, fmt.Errorf("parsing decision id: %w", err)
	}
	if d.SRID, err = uuid.Parse(sridStr); err != nil {
		return types.ScreeningDecision{}, fmt.Errorf("parsing decision srid: %w", err)
	}
	d.DocID = types.DocID(docID)
	d.Result = types.ScreeningResult(result)
	if err := json.Unmarshal([]byte(reasons), &d.Reasons); err != nil {
		return types.ScreeningDecision{}, fmt.Errorf("decoding reasons: %w", err)
	}
	if modelID.Valid {
		d.ModelID = modelID.String
	}
	if d.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return types.ScreeningDecision{}, err
	}
	if d.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return types.ScreeningDecision{}, err
	}
	return d, nil
}
