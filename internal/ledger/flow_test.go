package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/pdiddy/screening-engine/pkg/types"
)

// identificationDelta records the search results of a typical review:
// 1000 database records (800 PubMed, 200 Embase), 200 duplicates, and
// 50 automated exclusions, leaving 750 records available for screening.
func identificationDelta() types.FlowDelta {
	return types.FlowDelta{
		types.SectionDatabaseRecords: {
			Count:   1000,
			Details: map[string]int{"PubMed": 800, "Embase": 200},
		},
		types.SectionDuplicates:          {Count: 200},
		types.SectionAutomatedExclusions: {Count: 50},
	}
}

func TestApplyFlowDelta(t *testing.T) {
	store := testSetup(t)
	rq := createReview(t, store)
	ctx := context.Background()

	state, err := store.ApplyFlowDelta(ctx, rq.ID, 0, identificationDelta(), "reviewer-1")
	if err != nil {
		t.Fatal(err)
	}
	if state.Version != 1 {
		t.Fatalf("version = %d, want 1", state.Version)
	}
	if state.DatabaseRecords.Count != 1000 {
		t.Errorf("database_records = %d, want 1000", state.DatabaseRecords.Count)
	}
	if state.DatabaseRecords.Details["PubMed"] != 800 {
		t.Errorf("PubMed breakdown = %d, want 800", state.DatabaseRecords.Details["PubMed"])
	}

	head, err := store.GetFlowSnapshot(ctx, rq.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if head.Version != 1 || head.Duplicates.Count != 200 {
		t.Errorf("head = v%d duplicates=%d, want v1 duplicates=200", head.Version, head.Duplicates.Count)
	}
}

func TestApplyFlowDeltaEmptyHead(t *testing.T) {
	store := testSetup(t)
	rq := createReview(t, store)

	// No deltas applied yet: the head is the implicit empty version 0.
	head, err := store.GetFlowSnapshot(context.Background(), rq.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if head.Version != 0 {
		t.Errorf("empty head version = %d, want 0", head.Version)
	}
	if head.DatabaseRecords.Count != 0 {
		t.Errorf("empty head database_records = %d, want 0", head.DatabaseRecords.Count)
	}
}

func TestApplyFlowDeltaVersionConflict(t *testing.T) {
	store := testSetup(t)
	rq := createReview(t, store)
	ctx := context.Background()

	if _, err := store.ApplyFlowDelta(ctx, rq.ID, 0, identificationDelta(), "reviewer-1"); err != nil {
		t.Fatal(err)
	}

	_, err := store.ApplyFlowDelta(ctx, rq.ID, 0,
		types.FlowDelta{types.SectionRecordsScreened: {Count: 10}}, "reviewer-2")
	var conflict *VersionConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("got %v, want VersionConflictError", err)
	}
	if conflict.Expected != 0 || conflict.Current != 1 {
		t.Errorf("conflict expected=%d current=%d, want 0 and 1", conflict.Expected, conflict.Current)
	}
}

// TestApplyFlowDeltaConservation runs the screening-funnel arithmetic:
// with 750 records available, a screened count of 800 violates
// conservation and must be rejected whole, leaving the head untouched;
// 750 is the maximum the ledger accepts.
func TestApplyFlowDeltaConservation(t *testing.T) {
	store := testSetup(t)
	rq := createReview(t, store)
	ctx := context.Background()

	if _, err := store.ApplyFlowDelta(ctx, rq.ID, 0, identificationDelta(), "reviewer-1"); err != nil {
		t.Fatal(err)
	}

	_, err := store.ApplyFlowDelta(ctx, rq.ID, 1,
		types.FlowDelta{types.SectionRecordsScreened: {Count: 800}}, "reviewer-1")
	var violation *InvariantViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("got %v, want InvariantViolationError", err)
	}

	// The rejected delta left no trace: the head is still version 1.
	head, err := store.GetFlowSnapshot(ctx, rq.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if head.Version != 1 || head.RecordsScreened.Count != 0 {
		t.Fatalf("head after rejection = v%d screened=%d, want v1 screened=0",
			head.Version, head.RecordsScreened.Count)
	}

	state, err := store.ApplyFlowDelta(ctx, rq.ID, 1,
		types.FlowDelta{types.SectionRecordsScreened: {Count: 750}}, "reviewer-1")
	if err != nil {
		t.Fatal(err)
	}
	if state.Version != 2 || state.RecordsScreened.Count != 750 {
		t.Errorf("state = v%d screened=%d, want v2 screened=750", state.Version, state.RecordsScreened.Count)
	}
}

func TestApplyFlowDeltaNegativeCount(t *testing.T) {
	store := testSetup(t)
	rq := createReview(t, store)

	_, err := store.ApplyFlowDelta(context.Background(), rq.ID, 0,
		types.FlowDelta{types.SectionDatabaseRecords: {Count: -5}}, "reviewer-1")
	var violation *InvariantViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("got %v, want InvariantViolationError", err)
	}
}

func TestApplyFlowDeltaValidation(t *testing.T) {
	store := testSetup(t)
	rq := createReview(t, store)
	ctx := context.Background()

	tests := []struct {
		name  string
		delta types.FlowDelta
		user  string
	}{
		{"empty delta", types.FlowDelta{}, "reviewer-1"},
		{"unknown section", types.FlowDelta{"records_misplaced": {Count: 1}}, "reviewer-1"},
		{"missing user", identificationDelta(), "  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.ApplyFlowDelta(ctx, rq.ID, 0, tt.delta, tt.user)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Errorf("got %v, want ValidationError", err)
			}
		})
	}
}

func TestFlowHistory(t *testing.T) {
	store := testSetup(t)
	rq := createReview(t, store)
	ctx := context.Background()

	deltas := []types.FlowDelta{
		identificationDelta(),
		{types.SectionRecordsScreened: {Count: 750}},
		{types.SectionRecordsExcluded: {Count: 700, Notes: "title/abstract screening"}},
	}
	for i, delta := range deltas {
		if _, err := store.ApplyFlowDelta(ctx, rq.ID, i, delta, "reviewer-1"); err != nil {
			t.Fatalf("delta %d: %v", i, err)
		}
	}

	history, err := store.FlowHistory(ctx, rq.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 3 {
		t.Fatalf("history length = %d, want 3", len(history))
	}
	for i, state := range history {
		if state.Version != i+1 {
			t.Errorf("history[%d].Version = %d, want %d", i, state.Version, i+1)
		}
	}

	// Earlier snapshots keep their own values after later deltas.
	if history[0].RecordsScreened.Count != 0 {
		t.Errorf("v1 screened = %d, want 0", history[0].RecordsScreened.Count)
	}
	if history[2].RecordsExcluded.Notes != "title/abstract screening" {
		t.Errorf("v3 notes = %q", history[2].RecordsExcluded.Notes)
	}
}

func TestFlowBreakdownMerge(t *testing.T) {
	store := testSetup(t)
	rq := createReview(t, store)
	ctx := context.Background()

	if _, err := store.ApplyFlowDelta(ctx, rq.ID, 0, identificationDelta(), "reviewer-1"); err != nil {
		t.Fatal(err)
	}

	// Breakdown deltas are additive; an entry driven to zero disappears.
	state, err := store.ApplyFlowDelta(ctx, rq.ID, 1, types.FlowDelta{
		types.SectionDatabaseRecords: {
			Count:   -200,
			Details: map[string]int{"Embase": -200, "Scopus": 0},
		},
	}, "reviewer-1")
	if err != nil {
		t.Fatal(err)
	}
	if state.DatabaseRecords.Count != 800 {
		t.Errorf("count = %d, want 800", state.DatabaseRecords.Count)
	}
	if _, ok := state.DatabaseRecords.Details["Embase"]; ok {
		t.Error("zeroed breakdown entry survived")
	}
	if state.DatabaseRecords.Details["PubMed"] != 800 {
		t.Errorf("PubMed breakdown = %d, want 800", state.DatabaseRecords.Details["PubMed"])
	}
}

func TestGetFlowSnapshotNotFound(t *testing.T) {
	store := testSetup(t)
	rq := createReview(t, store)
	ctx := context.Background()

	var nf *NotFoundError
	_, err := store.GetFlowSnapshot(ctx, uuid.New(), 0)
	if !errors.As(err, &nf) {
		t.Errorf("unknown review: got %v, want NotFoundError", err)
	}
	_, err = store.GetFlowSnapshot(ctx, rq.ID, 7)
	if !errors.As(err, &nf) {
		t.Errorf("unknown version: got %v, want NotFoundError", err)
	}
}

// TestApplyFlowDeltaConcurrent races two writers against the same head:
// exactly one delta must land and the other must see a version conflict.
func TestApplyFlowDeltaConcurrent(t *testing.T) {
	store := testSetup(t)
	rq := createReview(t, store)
	ctx := context.Background()

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.ApplyFlowDelta(ctx, rq.ID, 0, identificationDelta(), "reviewer-1")
		}(i)
	}
	wg.Wait()

	var successes, conflicts int
	for _, err := range errs {
		var conflict *VersionConflictError
		switch {
		case err == nil:
			successes++
		case errors.As(err, &conflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 || conflicts != 1 {
		t.Fatalf("successes=%d conflicts=%d, want exactly one of each", successes, conflicts)
	}

	head, err := store.GetFlowSnapshot(ctx, rq.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if head.Version != 1 || head.DatabaseRecords.Count != 1000 {
		t.Errorf("head = v%d count=%d, want v1 count=1000", head.Version, head.DatabaseRecords.Count)
	}
}
