// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import "fmt"

// ValidationError reports malformed input rejected at the ledger
// boundary. Nothing is written when one is returned.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %v", e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// VersionConflictError reports an optimistic-concurrency mismatch: the
// caller's expected version is no longer the head. The caller recovers by
// re-reading the current version and retrying.
type VersionConflictError struct {
	ReviewID string
	Expected int
	Current  int
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("version conflict for review %s: expected %d, current is %d",
		e.ReviewID, e.Expected, e.Current)
}

// InvariantViolationError reports a flow delta that would break the
// funnel's conservation rules. The whole delta is rejected and the head
// snapshot is unchanged.
type InvariantViolationError struct {
	// Invariant describes the specific rule that failed.
	Invariant error
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("invariant violation: %v", e.Invariant)
}

func (e *InvariantViolationError) Unwrap() error { return e.Invariant }

// NotFoundError reports a missing review, version, or snapshot.
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.Key)
}
