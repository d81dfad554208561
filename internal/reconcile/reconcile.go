// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package reconcile turns a document's accumulated screening decisions
// into one consensus verdict under the active criteria version.
// Implements: prd003-reconciliation (R1-R5).
package reconcile

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/pdiddy/screening-engine/pkg/types"
)

// VerdictReason explains how a verdict was reached.
type VerdictReason string

const (
	// ReasonPending marks a document without enough decisions to call.
	// Pending is an answer, not an error.
	ReasonPending VerdictReason = "pending"

	// ReasonUnanimous marks agreement across at least MinDecisions
	// independent decisions.
	ReasonUnanimous VerdictReason = "unanimous"

	// ReasonProvisionalConfidence marks a sub-quorum verdict carried by a
	// high-confidence decision; it stands until more decisions arrive.
	ReasonProvisionalConfidence VerdictReason = "provisional-confidence"

	// ReasonConfidenceExclusion marks a disagreement resolved by a
	// high-confidence exclusion vote. A confident exclusion rationale
	// overrides weaker include votes.
	ReasonConfidenceExclusion VerdictReason = "confidence-exclusion"

	// ReasonEscalatedDisagreement marks a disagreement nothing resolves:
	// the document becomes uncertain and is routed to full-text or human
	// adjudication. It is never silently dropped from the funnel.
	ReasonEscalatedDisagreement VerdictReason = "escalated-disagreement"
)

// Verdict is the reconciled outcome for one (document, criteria version)
// pair. It is derived, not independently writable: re-running
// reconciliation on the same decision set yields the identical verdict.
type Verdict struct {
	// Result is empty while the verdict is pending.
	Result types.ScreeningResult `json:"result,omitempty" yaml:"result,omitempty"`

	// Reason explains the outcome.
	Reason VerdictReason `json:"reason" yaml:"reason"`

	// Provisional is set when the verdict was reached below the decision
	// quorum and may change as decisions arrive.
	Provisional bool `json:"provisional,omitempty" yaml:"provisional,omitempty"`

	// CriteriaVersion is the criteria snapshot the verdict was evaluated
	// under.
	CriteriaVersion int `json:"criteria_version" yaml:"criteria_version"`

	// DecisionIDs lists the contributing decisions in creation order.
	DecisionIDs []uuid.UUID `json:"decision_ids,omitempty" yaml:"decision_ids,omitempty"`
}

// Pending reports whether the document has no verdict yet.
func (v Verdict) Pending() bool {
	return v.Reason == ReasonPending
}

// DecisionSource lists a document's decisions in creation order. The
// ledger store satisfies it.
type DecisionSource interface {
	ListDecisions(ctx context.Context, reviewID uuid.UUID, docID types.DocID) ([]types.ScreeningDecision, error)
}

// Engine applies the consensus policy. Evaluation of the same document is
// serialized through a per-document lock so concurrently arriving
// decisions cannot interleave a read-reconcile pair; different documents
// proceed in parallel. The lock map holds one entry per document ever
// evaluated and is never pruned; scope an Engine to a bounded unit of
// work (a command invocation, a screening batch) rather than a process
// lifetime.
type Engine struct {
	cfg types.ReconcileConfig

	mu   sync.Mutex
	docs map[string]*sync.Mutex
}

// New builds an engine with the given thresholds, applying the documented
// defaults (K=2, τ=0.9) to zero values.
func New(cfg types.ReconcileConfig) *Engine {
	return &Engine{
		cfg:  cfg.WithDefaults(),
		docs: make(map[string]*sync.Mutex),
	}
}

// Evaluate loads the document's decisions from src and reconciles them
// under criteriaVersion, holding the document's lock for the whole
// read-reconcile pair.
func (e *Engine) Evaluate(ctx context.Context, src DecisionSource, reviewID uuid.UUID, docID types.DocID, criteriaVersion int) (Verdict, error) {
	lock := e.docLock(reviewID, docID)
	lock.Lock()
	defer lock.Unlock()

	decisions, err := src.ListDecisions(ctx, reviewID, docID)
	if err != nil {
		return Verdict{}, err
	}
	return e.Reconcile(decisions, criteriaVersion), nil
}

// Reconcile is the pure consensus policy over an ordered decision set:
//
//  1. No decisions: pending.
//  2. Unanimous agreement at or above the quorum K: that result.
//  3. Unanimous agreement below K with a decision at or above τ:
//     provisionally that result.
//  4. Disagreement with a confident (≥ τ) exclusion vote: exclude,
//     provisional below the quorum.
//  5. Disagreement at or above K nothing resolves: uncertain, escalated.
//  6. Anything else below K: pending.
//
// The function is deterministic over the input order the ledger provides,
// so re-evaluation of an unchanged set reproduces the verdict exactly.
func (e *Engine) Reconcile(decisions []types.ScreeningDecision, criteriaVersion int) Verdict {
	verdict := Verdict{
		Reason:          ReasonPending,
		CriteriaVersion: criteriaVersion,
	}
	if len(decisions) == 0 {
		return verdict
	}

	verdict.DecisionIDs = make([]uuid.UUID, len(decisions))
	unanimous := true
	maxConfidence := 0.0
	confidentExclusion := false
	for i, d := range decisions {
		verdict.DecisionIDs[i] = d.ID
		if d.Result != decisions[0].Result {
			unanimous = false
		}
		if d.Confidence > maxConfidence {
			maxConfidence = d.Confidence
		}
		if d.Result == types.ResultExclude && d.Confidence >= e.cfg.ConfidenceThreshold {
			confidentExclusion = true
		}
	}

	quorum := len(decisions) >= e.cfg.MinDecisions

	switch {
	case unanimous && quorum:
		verdict.Result = decisions[0].Result
		verdict.Reason = ReasonUnanimous
	case unanimous && maxConfidence >= e.cfg.ConfidenceThreshold:
		verdict.Result = decisions[0].Result
		verdict.Reason = ReasonProvisionalConfidence
		verdict.Provisional = true
	case !unanimous && confidentExclusion:
		verdict.Result = types.ResultExclude
		verdict.Reason = ReasonConfidenceExclusion
		verdict.Provisional = !quorum
	case !unanimous && quorum:
		verdict.Result = types.ResultUncertain
		verdict.Reason = ReasonEscalatedDisagreement
	}

	return verdict
}

func (e *Engine) docLock(reviewID uuid.UUID, docID types.DocID) *sync.Mutex {
	key := reviewID.String() + "/" + string(docID)
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.docs[key]
	if !ok {
		lock = &sync.Mutex{}
		e.docs[key] = lock
	}
	return lock
}
