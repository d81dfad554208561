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

// ApplyFlowDelta advances a review's PRISMA accounting by one validated
// step. The caller names the head version it based its delta on; if that
// is no longer the head, the call fails with VersionConflictError and the
// caller retries against the latest snapshot. The candidate snapshot is
// recomputed and every conservation invariant rechecked before anything
// is written; a violation rejects the whole delta and leaves the head
// unchanged. History is never rewritten — corrections are compensating
// deltas. Per prd004-prisma-flow R2.1-R4.2.
func (s *Store) ApplyFlowDelta(ctx context.Context, reviewID uuid.UUID, expectedVersion int, delta types.FlowDelta, actingUser string) (types.PrismaState, error) {
	if strings.TrimSpace(actingUser) == "" {
		return types.PrismaState{}, &ValidationError{Err: fmt.Errorf("acting user is required")}
	}
	if err := delta.Validate(); err != nil {
		return types.PrismaState{}, &ValidationError{Err: err}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return types.PrismaState{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	exists, err := reviewExists(ctx, tx, reviewID)
	if err != nil {
		return types.PrismaState{}, err
	}
	if !exists {
		return types.PrismaState{}, &NotFoundError{Kind: "review", Key: reviewID.String()}
	}

	head, err := readFlowHead(ctx, tx, reviewID)
	if err != nil {
		return types.PrismaState{}, err
	}

	if head.Version != expectedVersion {
		return types.PrismaState{}, &VersionConflictError{
			ReviewID: reviewID.String(),
			Expected: expectedVersion,
			Current:  head.Version,
		}
	}

	now := time.Now().UTC()
	candidate, err := head.Apply(delta, now)
	if err != nil {
		return types.PrismaState{}, &InvariantViolationError{Invariant: err}
	}
	if err := candidate.Validate(); err != nil {
		return types.PrismaState{}, &InvariantViolationError{Invariant: err}
	}

	raw, err := canonicalState(candidate)
	if err != nil {
		return types.PrismaState{}, err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO flow_snapshots (review_id, version, timestamp, state)
		 VALUES (?, ?, ?, ?)`,
		reviewID.String(), candidate.Version, timestamp(now), string(raw))
	if err != nil {
		return types.PrismaState{}, fmt.Errorf("appending snapshot: %w", err)
	}

	event := types.ReviewEvent{
		EventType: types.EventFlowAdvanced,
		ReviewID:  reviewID,
		UserID:    actingUser,
		Timestamp: now,
		Flow: &types.FlowAdvancedPayload{
			PreviousVersion: head.Version,
			Snapshot:        candidate,
		},
	}
	if err := appendEvent(ctx, tx, event); err != nil {
		return types.PrismaState{}, err
	}

	if err := tx.Commit(); err != nil {
		return types.PrismaState{}, fmt.Errorf("committing snapshot: %w", err)
	}
	return candidate, nil
}

// GetFlowSnapshot returns a specific snapshot, or the head when version
// is zero or negative. A review with no accepted deltas yet has an
// implicit empty head at version 0.
func (s *Store) GetFlowSnapshot(ctx context.Context, reviewID uuid.UUID, version int) (types.PrismaState, error) {
	exists, err := reviewExists(ctx, s.db, reviewID)
	if err != nil {
		return types.PrismaState{}, err
	}
	if !exists {
		return types.PrismaState{}, &NotFoundError{Kind: "review", Key: reviewID.String()}
	}

	if version <= 0 {
		return readFlowHead(ctx, s.db, reviewID)
	}

	var raw string
	err = s.db.QueryRowContext(ctx,
		`SELECT state FROM flow_snapshots WHERE review_id = ? AND version = ?`,
		reviewID.String(), version).Scan(&raw)
	if err == sql.ErrNoRows {
		return types.PrismaState{}, &NotFoundError{
			Kind: "flow snapshot",
			Key:  fmt.Sprintf("%s@%d", reviewID, version),
		}
	}
	if err != nil {
		return types.PrismaState{}, fmt.Errorf("reading snapshot %d: %w", version, err)
	}
	return decodeState(raw, version)
}

// FlowHistory returns the full snapshot chain in version order.
func (s *Store) FlowHistory(ctx context.Context, reviewID uuid.UUID) ([]types.PrismaState, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT version, state FROM flow_snapshots WHERE review_id = ? ORDER BY version`,
		reviewID.String())
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var history []types.PrismaState
	for rows.Next() {
		var (
			version int
			raw     string
		)
		if err := rows.Scan(&version, &raw); err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}
		state, err := decodeState(raw, version)
		if err != nil {
			return nil, err
		}
		history = append(history, state)
	}
	return history, rows.Err()
}

// readFlowHead loads the newest snapshot, or the implicit empty version-0
// state when the chain is empty.
func readFlowHead(ctx context.Context, q queryRower, reviewID uuid.UUID) (types.PrismaState, error) {
	var (
		version int
		raw     string
	)
	err := q.QueryRowContext(ctx,
		`SELECT version, state FROM flow_snapshots
		 WHERE review_id = ? ORDER BY version DESC LIMIT 1`,
		reviewID.String()).Scan(&version, &raw)
	if err == sql.ErrNoRows {
		return types.PrismaState{Version: 0}, nil
	}
	if err != nil {
		return types.PrismaState{}, fmt.Errorf("reading flow head: %w", err)
	}
	return decodeState(raw, version)
}

func decodeState(raw string, version int) (types.PrismaState, error) {
	var state types.PrismaState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return types.PrismaState{}, fmt.Errorf("decoding snapshot %d: %w", version, err)
	}
	return state, nil
}
