// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/screening-engine/pkg/types"
)

// ProposeCriteria advances a review's criteria under optimistic
// concurrency: the caller states the version it last read, and a mismatch
// fails with VersionConflictError instead of overwriting a concurrent
// change. On success the new snapshot is appended as expectedVersion+1,
// the active pointer advances, and a criteria_updated event carrying both
// snapshots verbatim lands in the same transaction.
// Per prd001-screening-model R2.3, prd005-audit R2.1.
func (s *Store) ProposeCriteria(ctx context.Context, reviewID uuid.UUID, expectedVersion int, newCriteria types.ReviewCriteria, reason, actingUser string) (int, error) {
	if strings.TrimSpace(reason) == "" {
		return 0, &ValidationError{Err: fmt.Errorf("a reason for the criteria change is required")}
	}
	if strings.TrimSpace(actingUser) == "" {
		return 0, &ValidationError{Err: fmt.Errorf("acting user is required")}
	}
	if err := newCriteria.Validate(); err != nil {
		return 0, &ValidationError{Err: err}
	}
	newCriteria = newCriteria.Normalized()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var current int
	err = tx.QueryRowContext(ctx,
		`SELECT criteria_version FROM research_questions WHERE id = ?`,
		reviewID.String()).Scan(&current)
	if err == sql.ErrNoRows {
		return 0, &NotFoundError{Kind: "review", Key: reviewID.String()}
	}
	if err != nil {
		return 0, fmt.Errorf("reading current criteria version: %w", err)
	}

	if current != expectedVersion {
		return 0, &VersionConflictError{
			ReviewID: reviewID.String(),
			Expected: expectedVersion,
			Current:  current,
		}
	}

	oldCriteria, err := readCriteriaVersion(ctx, tx, reviewID, current)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	newVersion := current + 1

	if err := insertCriteriaVersion(ctx, tx, reviewID, newVersion, newCriteria, now); err != nil {
		return 0, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE research_questions SET criteria_version = ?, updated_at = ? WHERE id = ?`,
		newVersion, timestamp(now), reviewID.String())
	if err != nil {
		return 0, fmt.Errorf("advancing criteria pointer: %w", err)
	}

	event := types.ReviewEvent{
		EventType: types.EventCriteriaUpdated,
		ReviewID:  reviewID,
		UserID:    actingUser,
		Timestamp: now,
		Criteria: &types.CriteriaUpdatedPayload{
			OldVersion:  current,
			NewVersion:  newVersion,
			OldCriteria: oldCriteria,
			NewCriteria: newCriteria,
			Reason:      reason,
		},
	}
	if err := appendEvent(ctx, tx, event); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing criteria change: %w", err)
	}
	return newVersion, nil
}

// GetCriteria returns a specific criteria snapshot, or the active one when
// version is zero or negative. Snapshots are decoded fresh on every call;
// callers never share a mutable object.
func (s *Store) GetCriteria(ctx context.Context, reviewID uuid.UUID, version int) (types.ReviewCriteria, int, error) {
	if version <= 0 {
		err := s.db.QueryRowContext(ctx,
			`SELECT criteria_version FROM research_questions WHERE id = ?`,
			reviewID.String()).Scan(&version)
		if err == sql.ErrNoRows {
			return types.ReviewCriteria{}, 0, &NotFoundError{Kind: "review", Key: reviewID.String()}
		}
		if err != nil {
			return types.ReviewCriteria{}, 0, fmt.Errorf("reading active criteria version: %w", err)
		}
	}

	criteria, err := readCriteriaVersion(ctx, s.db, reviewID, version)
	if err != nil {
		return types.ReviewCriteria{}, 0, err
	}
	return criteria, version, nil
}

// CriteriaVersion pairs a snapshot with its chain position, for history
// listings and exports.
type CriteriaVersion struct {
	Version   int                  `json:"version" yaml:"version"`
	CreatedAt time.Time            `json:"created_at" yaml:"created_at"`
	Criteria  types.ReviewCriteria `json:"criteria" yaml:"criteria"`
}

// CriteriaHistory returns every criteria version for a review in chain order.
func (s *Store) CriteriaHistory(ctx context.Context, reviewID uuid.UUID) ([]CriteriaVersion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT version, criteria, created_at FROM criteria_versions
		 WHERE review_id = ? ORDER BY version`, reviewID.String())
	if err != nil {
		return nil, fmt.Errorf("listing criteria versions: %w", err)
	}
	defer rows.Close()

	var history []CriteriaVersion
	for rows.Next() {
		var (
			cv        CriteriaVersion
			raw       string
			createdAt string
		)
		if err := rows.Scan(&cv.Version, &raw, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning criteria version: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &cv.Criteria); err != nil {
			return nil, fmt.Errorf("decoding criteria version %d: %w", cv.Version, err)
		}
		if cv.CreatedAt, err = parseTimestamp(createdAt); err != nil {
			return nil, err
		}
		history = append(history, cv)
	}
	return history, rows.Err()
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func readCriteriaVersion(ctx context.Context, q queryRower, reviewID uuid.UUID, version int) (types.ReviewCriteria, error) {
	var raw string
	err := q.QueryRowContext(ctx,
		`SELECT criteria FROM criteria_versions WHERE review_id = ? AND version = ?`,
		reviewID.String(), version).Scan(&raw)
	if err == sql.ErrNoRows {
		return types.ReviewCriteria{}, &NotFoundError{
			Kind: "criteria version",
			Key:  fmt.Sprintf("%s@%d", reviewID, version),
		}
	}
	if err != nil {
		return types.ReviewCriteria{}, fmt.Errorf("reading criteria version %d: %w", version, err)
	}

	var criteria types.ReviewCriteria
	if err := json.Unmarshal([]byte(raw), &criteria); err != nil {
		return types.ReviewCriteria{}, fmt.Errorf("decoding criteria version %d: %w", version, err)
	}
	return criteria, nil
}

func insertCriteriaVersion(ctx context.Context, tx *sql.Tx, reviewID uuid.UUID, version int, criteria types.ReviewCriteria, at time.Time) error {
	raw, err := canonicalCriteria(criteria)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO criteria_versions (review_id, version, criteria, created_at)
		 VALUES (?, ?, ?, ?)`,
		reviewID.String(), version, string(raw), timestamp(at))
	if err != nil {
		return fmt.Errorf("inserting criteria version %d: %w", version, err)
	}
	return nil
}
