// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/screening-engine/pkg/types"
)

// CreateReview registers a new research question with its initial
// criteria as version 1. The question row, the first criteria version,
// and a criteria_updated audit event (old version 0, empty snapshot)
// land in one transaction, so the criteria chain is always derivable
// from the event log alone. Per prd001-screening-model R1.1, R2.2.
func (s *Store) CreateReview(ctx context.Context, question string, criteria types.ReviewCriteria, actingUser string) (types.ResearchQuestion, error) {
	if strings.TrimSpace(question) == "" {
		return types.ResearchQuestion{}, &ValidationError{Err: fmt.Errorf("empty question text")}
	}
	if strings.TrimSpace(actingUser) == "" {
		return types.ResearchQuestion{}, &ValidationError{Err: fmt.Errorf("acting user is required")}
	}
	if err := criteria.Validate(); err != nil {
		return types.ResearchQuestion{}, &ValidationError{Err: err}
	}
	criteria = criteria.Normalized()

	id, err := uuid.NewV7()
	if err != nil {
		return types.ResearchQuestion{}, fmt.Errorf("generating review id: %w", err)
	}

	now := time.Now().UTC()
	rq := types.ResearchQuestion{
		ID:              id,
		Question:        strings.TrimSpace(question),
		CriteriaVersion: 1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return types.ResearchQuestion{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO research_questions (id, question, criteria_version, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		rq.ID.String(), rq.Question, rq.CriteriaVersion, timestamp(now), timestamp(now),
	)
	if err != nil {
		return types.ResearchQuestion{}, fmt.Errorf("inserting research question: %w", err)
	}

	if err := insertCriteriaVersion(ctx, tx, rq.ID, 1, criteria, now); err != nil {
		return types.ResearchQuestion{}, err
	}

	event := types.ReviewEvent{
		EventType: types.EventCriteriaUpdated,
		ReviewID:  rq.ID,
		UserID:    actingUser,
		Timestamp: now,
		Criteria: &types.CriteriaUpdatedPayload{
			OldVersion:  0,
			NewVersion:  1,
			NewCriteria: criteria,
			Reason:      "initial criteria",
		},
	}
	if err := appendEvent(ctx, tx, event); err != nil {
		return types.ResearchQuestion{}, err
	}

	if err := tx.Commit(); err != nil {
		return types.ResearchQuestion{}, fmt.Errorf("committing review: %w", err)
	}
	return rq, nil
}

// GetReview loads a research question by id.
func (s *Store) GetReview(ctx context.Context, reviewID uuid.UUID) (types.ResearchQuestion, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, question, criteria_version, created_at, updated_at
		 FROM research_questions WHERE id = ?`, reviewID.String())
	rq, err := scanReview(row)
	if err == sql.ErrNoRows {
		return types.ResearchQuestion{}, &NotFoundError{Kind: "review", Key: reviewID.String()}
	}
	return rq, err
}

// ListReviews returns every research question, oldest first.
func (s *Store) ListReviews(ctx context.Context) ([]types.ResearchQuestion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, question, criteria_version, created_at, updated_at
		 FROM research_questions ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("listing reviews: %w", err)
	}
	defer rows.Close()

	var reviews []types.ResearchQuestion
	for rows.Next() {
		rq, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, rq)
	}
	return reviews, rows.Err()
}

// reviewExists reports whether a research question row exists, inside or
// outside a transaction.
func reviewExists(ctx context.Context, q queryRower, reviewID uuid.UUID) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx,
		`SELECT 1 FROM research_questions WHERE id = ?`, reviewID.String()).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking review: %w", err)
	}
	return true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReview(row rowScanner) (types.ResearchQuestion, error) {
	var (
		rq        types.ResearchQuestion
		idStr     string
		createdAt string
		updatedAt string
	)
	err := row.Scan(&idStr, &rq.Question, &rq.CriteriaVersion, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return types.ResearchQuestion{}, err
	}
	if err != nil {
		return types.ResearchQuestion{}, fmt.Errorf("scanning review: %w", err)
	}
	rq.ID, err = uuid.Parse(idStr)
	if err != nil {
		return types.ResearchQuestion{}, fmt.Errorf("parsing review id: %w", err)
	}
	if rq.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return types.ResearchQuestion{}, err
	}
	if rq.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return types.ResearchQuestion{}, err
	}
	return rq, nil
}
