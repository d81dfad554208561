// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/screening-engine/internal/canonical"
	"github.com/pdiddy/screening-engine/pkg/types"
)

// appendEvent writes one audit entry inside the producing transaction, so
// an event exists exactly when the change it describes committed. The
// payload is stored in RFC 8785 canonical form with its sha256 digest;
// provenance checks compare those bytes directly.
func appendEvent(ctx context.Context, tx *sql.Tx, event types.ReviewEvent) error {
	if err := event.Validate(); err != nil {
		return &ValidationError{Err: err}
	}

	var payload any
	switch event.EventType {
	case types.EventCriteriaUpdated:
		payload = event.Criteria
	case types.EventFlowAdvanced:
		payload = event.Flow
	}

	raw, err := canonical.Marshal(payload)
	if err != nil {
		return err
	}
	digest, err := canonical.Digest(payload)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO events (event_type, review_id, user_id, timestamp, payload, payload_digest)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		string(event.EventType), event.ReviewID.String(), event.UserID,
		timestamp(event.Timestamp), string(raw), digest)
	if err != nil {
		return fmt.Errorf("appending event: %w", err)
	}
	return nil
}

// Replay returns a review's audit trail ordered by timestamp, insertion
// order breaking ties. A non-zero since bounds the range from below
// (inclusive). The criteria chain and flow chain are both reconstructible
// from this sequence alone. Per prd005-audit R3.1-R3.3.
func (s *Store) Replay(ctx context.Context, reviewID uuid.UUID, since time.Time) ([]types.ReviewEvent, error) {
	query := `SELECT seq, event_type, review_id, user_id, timestamp, payload, payload_digest
		 FROM events WHERE review_id = ?`
	args := []any{reviewID.String()}
	if !since.IsZero() {
		query += ` AND timestamp >= ?`
		args = append(args, timestamp(since))
	}
	query += ` ORDER BY timestamp, seq`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("replaying events: %w", err)
	}
	defer rows.Close()

	var events []types.ReviewEvent
	for rows.Next() {
		var (
			event     types.ReviewEvent
			eventType string
			idStr     string
			ts        string
			payload   string
		)
		if err := rows.Scan(&event.Seq, &eventType, &idStr, &event.UserID,
			&ts, &payload, &event.PayloadDigest); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}

		event.EventType = types.EventType(eventType)
		if event.ReviewID, err = uuid.Parse(idStr); err != nil {
			return nil, fmt.Errorf("parsing event review id: %w", err)
		}
		if event.Timestamp, err = parseTimestamp(ts); err != nil {
			return nil, err
		}

		switch event.EventType {
		case types.EventCriteriaUpdated:
			event.Criteria = &types.CriteriaUpdatedPayload{}
			if err := json.Unmarshal([]byte(payload), event.Criteria); err != nil {
				return nil, fmt.Errorf("decoding criteria_updated payload: %w", err)
			}
		case types.EventFlowAdvanced:
			event.Flow = &types.FlowAdvancedPayload{}
			if err := json.Unmarshal([]byte(payload), event.Flow); err != nil {
				return nil, fmt.Errorf("decoding flow_advanced payload: %w", err)
			}
		default:
			return nil, fmt.Errorf("unknown event type %q at seq %d", eventType, event.Seq)
		}

		events = append(events, event)
	}
	return events, rows.Err()
}

// RawPayloads returns the stored canonical payload bytes for a review's
// events of one type, in replay order. Provenance tests use this to
// compare snapshots byte-for-byte against freshly canonicalized values.
func (s *Store) RawPayloads(ctx context.Context, reviewID uuid.UUID, eventType types.EventType) ([][]byte, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM events WHERE review_id = ? AND event_type = ?
		 ORDER BY timestamp, seq`,
		reviewID.String(), string(eventType))
	if err != nil {
		return nil, fmt.Errorf("reading payloads: %w", err)
	}
	defer rows.Close()

	var payloads [][]byte
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scanning payload: %w", err)
		}
		payloads = append(payloads, []byte(payload))
	}
	return payloads, rows.Err()
}

// canonicalCriteria encodes a criteria snapshot the same way event
// payloads are stored, keeping the chain and the audit log byte-comparable.
func canonicalCriteria(criteria types.ReviewCriteria) ([]byte, error) {
	return canonical.Marshal(criteria)
}

// canonicalState encodes a flow snapshot in canonical form.
func canonicalState(state types.PrismaState) ([]byte, error) {
	return canonical.Marshal(state)
}
