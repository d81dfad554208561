// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType tags a ReviewEvent variant. Per prd005-audit R1.1.
type EventType string

const (
	EventCriteriaUpdated EventType = "criteria_updated"
	EventFlowAdvanced    EventType = "flow_advanced"
)

// CriteriaUpdatedPayload carries both criteria snapshots verbatim so any
// historical screening run can be replayed against the criteria that were
// active at decision time. Per prd005-audit R2.1-R2.3.
type CriteriaUpdatedPayload struct {
	OldVersion  int            `json:"old_version" yaml:"old_version"`
	NewVersion  int            `json:"new_version" yaml:"new_version"`
	OldCriteria ReviewCriteria `json:"old_criteria" yaml:"old_criteria"`
	NewCriteria ReviewCriteria `json:"new_criteria" yaml:"new_criteria"`

	// Reason is the submitter's stated reason for the change.
	Reason string `json:"reason" yaml:"reason"`
}

// FlowAdvancedPayload carries the full new snapshot, not just the delta,
// so the flow chain is re-derivable from the event log alone.
type FlowAdvancedPayload struct {
	PreviousVersion int         `json:"previous_version" yaml:"previous_version"`
	Snapshot        PrismaState `json:"snapshot" yaml:"snapshot"`
}

// ReviewEvent is one append-only audit entry. Exactly one payload field is
// set, matching the event type; the open-ended data dictionaries of older
// tooling are deliberately gone.
type ReviewEvent struct {
	// EventType selects the payload variant.
	EventType EventType `json:"event_type" yaml:"event_type"`

	// ReviewID keys the event to its review.
	ReviewID uuid.UUID `json:"review_id" yaml:"review_id"`

	// UserID identifies the acting user.
	UserID string `json:"user_id" yaml:"user_id"`

	// Timestamp is the event time. Replay orders by timestamp, with
	// insertion order breaking ties.
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`

	// Seq is the insertion sequence assigned by the audit log.
	Seq int64 `json:"seq" yaml:"seq"`

	// PayloadDigest is the sha256 digest of the canonical (RFC 8785)
	// payload JSON, recorded for tamper evidence.
	PayloadDigest string `json:"payload_digest,omitempty" yaml:"payload_digest,omitempty"`

	Criteria *CriteriaUpdatedPayload `json:"criteria,omitempty" yaml:"criteria,omitempty"`
	Flow     *FlowAdvancedPayload    `json:"flow,omitempty" yaml:"flow,omitempty"`
}

// Validate checks that the event is well formed and its payload matches
// the type tag.
func (e ReviewEvent) Validate() error {
	if e.ReviewID == uuid.Nil {
		return fmt.Errorf("event: missing review id")
	}
	if e.UserID == "" {
		return fmt.Errorf("event: missing user id")
	}
	switch e.EventType {
	case EventCriteriaUpdated:
		if e.Criteria == nil {
			return fmt.Errorf("event: criteria_updated without criteria payload")
		}
	case EventFlowAdvanced:
		if e.Flow == nil {
			return fmt.Errorf("event: flow_advanced without flow payload")
		}
	default:
		return fmt.Errorf("event: unknown type %q", e.EventType)
	}
	return nil
}
