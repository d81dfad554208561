package ledger

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/screening-engine/internal/canonical"
	"github.com/pdiddy/screening-engine/pkg/types"
)

// populatedReview creates a review with one criteria revision and two
// flow deltas, yielding four audit events.
func populatedReview(t *testing.T, store *Store) types.ResearchQuestion {
	t.Helper()
	ctx := context.Background()
	rq := createReview(t, store)

	if _, err := store.ProposeCriteria(ctx, rq.ID, 1, revisedCriteria(), "pilot revision", "reviewer-2"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.ApplyFlowDelta(ctx, rq.ID, 0, identificationDelta(), "reviewer-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.ApplyFlowDelta(ctx, rq.ID, 1,
		types.FlowDelta{types.SectionRecordsScreened: {Count: 750}}, "reviewer-1"); err != nil {
		t.Fatal(err)
	}
	return rq
}

func TestReplayOrdering(t *testing.T) {
	store := testSetup(t)
	rq := populatedReview(t, store)

	events, err := store.Replay(context.Background(), rq.ID, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 4 {
		t.Fatalf("got %d events, want 4", len(events))
	}

	wantTypes := []types.EventType{
		types.EventCriteriaUpdated, // review creation
		types.EventCriteriaUpdated, // revision
		types.EventFlowAdvanced,
		types.EventFlowAdvanced,
	}
	for i, e := range events {
		if e.EventType != wantTypes[i] {
			t.Errorf("events[%d].EventType = %s, want %s", i, e.EventType, wantTypes[i])
		}
		if i > 0 && events[i-1].Timestamp.After(e.Timestamp) {
			t.Errorf("events[%d] precedes events[%d] in time", i, i-1)
		}
		if i > 0 && !events[i-1].Timestamp.Before(e.Timestamp) && events[i-1].Seq >= e.Seq {
			t.Errorf("tie at events[%d] not broken by insertion order", i)
		}
	}

	// Flow events carry the full snapshot chain, re-derivable without the
	// snapshot table.
	if events[2].Flow.PreviousVersion != 0 || events[2].Flow.Snapshot.Version != 1 {
		t.Errorf("first flow event = v%d -> v%d, want 0 -> 1",
			events[2].Flow.PreviousVersion, events[2].Flow.Snapshot.Version)
	}
	if events[3].Flow.Snapshot.RecordsScreened.Count != 750 {
		t.Errorf("second flow snapshot screened = %d, want 750",
			events[3].Flow.Snapshot.RecordsScreened.Count)
	}
}

func TestReplaySince(t *testing.T) {
	store := testSetup(t)
	rq := populatedReview(t, store)
	ctx := context.Background()

	all, err := store.Replay(ctx, rq.ID, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 {
		t.Fatalf("got %d events, want 4", len(all))
	}

	// The lower bound is inclusive: since the first event's timestamp,
	// everything replays; since far in the future, nothing does.
	fromStart, err := store.Replay(ctx, rq.ID, all[0].Timestamp)
	if err != nil {
		t.Fatal(err)
	}
	if len(fromStart) != 4 {
		t.Errorf("since first timestamp: got %d events, want 4", len(fromStart))
	}

	future, err := store.Replay(ctx, rq.ID, time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(future) != 0 {
		t.Errorf("since future: got %d events, want 0", len(future))
	}
}

func TestReplayIsolatesReviews(t *testing.T) {
	store := testSetup(t)
	first := populatedReview(t, store)
	second := createReview(t, store)
	ctx := context.Background()

	events, err := store.Replay(ctx, second.ID, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("second review: got %d events, want 1", len(events))
	}

	events, err = store.Replay(ctx, first.ID, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 4 {
		t.Errorf("first review: got %d events, want 4", len(events))
	}
}

// TestReplayFractionalSecondOrdering appends events whose timestamps
// differ only below the microsecond, with the earlier one ending in
// trailing zeros. Stored timestamps are fixed-width, so the text ORDER BY
// must agree with chronological order.
func TestReplayFractionalSecondOrdering(t *testing.T) {
	store := testSetup(t)
	rq := createReview(t, store)
	ctx := context.Background()

	first := time.Date(2026, 8, 31, 12, 0, 0, 123456000, time.UTC)
	second := first.Add(700 * time.Nanosecond)

	for i, at := range []time.Time{first, second} {
		tx, err := store.db.BeginTx(ctx, nil)
		if err != nil {
			t.Fatal(err)
		}
		event := types.ReviewEvent{
			EventType: types.EventFlowAdvanced,
			ReviewID:  rq.ID,
			UserID:    "reviewer-1",
			Timestamp: at,
			Flow: &types.FlowAdvancedPayload{
				PreviousVersion: i,
				Snapshot:        types.PrismaState{Version: i + 1, Timestamp: at},
			},
		}
		if err := appendEvent(ctx, tx, event); err != nil {
			t.Fatal(err)
		}
		if err := tx.Commit(); err != nil {
			t.Fatal(err)
		}
	}

	events, err := store.Replay(ctx, rq.ID, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	var flow []types.ReviewEvent
	for _, e := range events {
		if e.EventType == types.EventFlowAdvanced {
			flow = append(flow, e)
		}
	}
	if len(flow) != 2 {
		t.Fatalf("got %d flow events, want 2", len(flow))
	}
	if !flow[0].Timestamp.Equal(first) || !flow[1].Timestamp.Equal(second) {
		t.Fatalf("flow events out of order: %s then %s, want %s then %s",
			flow[0].Timestamp.Format(time.RFC3339Nano), flow[1].Timestamp.Format(time.RFC3339Nano),
			first.Format(time.RFC3339Nano), second.Format(time.RFC3339Nano))
	}

	// The inclusive since bound also compares as text and must cut
	// between the two.
	fromSecond, err := store.Replay(ctx, rq.ID, second)
	if err != nil {
		t.Fatal(err)
	}
	var count int
	for _, e := range fromSecond {
		if e.EventType == types.EventFlowAdvanced {
			count++
		}
	}
	if count != 1 {
		t.Errorf("since second event: got %d flow events, want 1", count)
	}
}

func TestFlowEventDigests(t *testing.T) {
	store := testSetup(t)
	rq := populatedReview(t, store)

	events, err := store.Replay(context.Background(), rq.ID, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range events {
		if e.EventType != types.EventFlowAdvanced {
			continue
		}
		digest, err := canonical.Digest(e.Flow)
		if err != nil {
			t.Fatal(err)
		}
		if digest != e.PayloadDigest {
			t.Errorf("event seq %d: recomputed digest %s != stored %s", e.Seq, digest, e.PayloadDigest)
		}
	}
}

func TestExportYAML(t *testing.T) {
	store := testSetup(t)
	rq := populatedReview(t, store)

	path, err := store.ExportYAML(context.Background(), rq.ID)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != rq.ID.String()+".yaml" {
		t.Errorf("export path = %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	review, ok := doc["review"].(map[string]any)
	if !ok {
		t.Fatalf("export has no review section: %v", doc)
	}
	if review["id"] != rq.ID.String() {
		t.Errorf("exported review id = %v, want %s", review["id"], rq.ID)
	}
	for section, want := range map[string]int{
		"criteria_versions": 2,
		"flow_snapshots":    2,
		"events":            4,
	} {
		list, ok := doc[section].([]any)
		if !ok {
			t.Errorf("export has no %s section", section)
			continue
		}
		if len(list) != want {
			t.Errorf("%s length = %d, want %d", section, len(list), want)
		}
	}
}

func TestExportJSON(t *testing.T) {
	store := testSetup(t)
	rq := populatedReview(t, store)
	ctx := context.Background()

	doc := types.DocID("29384756")
	if _, err := store.RecordDecision(ctx, sampleDecision(rq.ID, doc, types.ResultInclude, 0.8)); err != nil {
		t.Fatal(err)
	}

	path, err := store.ExportJSON(ctx, rq.ID)
	if err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var bundle ExportBundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		t.Fatal(err)
	}
	if len(bundle.Decisions) != 1 || bundle.Decisions[0].DocID != doc {
		t.Errorf("bundle decisions = %+v", bundle.Decisions)
	}
}
