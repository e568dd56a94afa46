package workflow

import (
	"context"
	"strings"
	"testing"
	"time"

	"ai-dispatch-be/pkg/clarify"
	"ai-dispatch-be/pkg/kv/memorykv"
)

func testCheckpoint(sessionID string, seq int, step, prior string) *Checkpoint {
	st := NewState(sessionID, "user-1", "input", time.Now())
	st.SetSlot(SlotDeviceName, "lobby-cam")
	return &Checkpoint{
		SessionID: sessionID,
		Seq:       seq,
		Pipeline:  "device-report",
		StepName:  step,
		PriorStep: prior,
		State:     st,
		CreatedAt: time.Now(),
	}
}

func TestAppendEnforcesSequence(t *testing.T) {
	store := NewCheckpointStore(memorykv.New(), discardLogger())
	ctx := context.Background()

	if err := store.Append(ctx, testCheckpoint("s1", 1, "a", "")); err != nil {
		t.Fatalf("Append seq 1: %v", err)
	}
	if err := store.Append(ctx, testCheckpoint("s1", 2, "b", "a")); err != nil {
		t.Fatalf("Append seq 2: %v", err)
	}

	tests := []struct {
		name string
		seq  int
	}{
		{name: "duplicate seq", seq: 2},
		{name: "gap in seq", seq: 4},
		{name: "regression", seq: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := store.Append(ctx, testCheckpoint("s1", tt.seq, "x", "b")); err == nil {
				t.Errorf("Append seq %d accepted, want rejection", tt.seq)
			}
		})
	}

	// The failed appends must not have disturbed the chain.
	latest, err := store.Latest(ctx, "s1")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest.Seq != 2 || latest.StepName != "b" {
		t.Errorf("Latest = seq %d step %q, want seq 2 step b", latest.Seq, latest.StepName)
	}
}

func TestHistoryReturnsFullChain(t *testing.T) {
	store := NewCheckpointStore(memorykv.New(), discardLogger())
	ctx := context.Background()

	steps := []string{"a", "b", "c"}
	prior := ""
	for i, step := range steps {
		if err := store.Append(ctx, testCheckpoint("s2", i+1, step, prior)); err != nil {
			t.Fatalf("Append %s: %v", step, err)
		}
		prior = step
	}

	history, err := store.History(ctx, "s2")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("len(history) = %d, want 3", len(history))
	}
	for i, cp := range history {
		if cp.Seq != i+1 || cp.StepName != steps[i] {
			t.Errorf("history[%d] = seq %d step %q", i, cp.Seq, cp.StepName)
		}
	}

	if history, _ := store.History(ctx, "unknown-session"); len(history) != 0 {
		t.Errorf("history for unknown session = %d entries, want 0", len(history))
	}
}

func TestEarlierCheckpointsSurviveLaterAppends(t *testing.T) {
	store := NewCheckpointStore(memorykv.New(), discardLogger())
	ctx := context.Background()

	first := testCheckpoint("s3", 1, "a", "")
	first.State.Reply = "first reply"
	if err := store.Append(ctx, first); err != nil {
		t.Fatalf("Append: %v", err)
	}
	second := testCheckpoint("s3", 2, "b", "a")
	second.State.Reply = "second reply"
	if err := store.Append(ctx, second); err != nil {
		t.Fatalf("Append: %v", err)
	}

	loaded, err := store.Load(ctx, "s3", 1)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.State.Reply != "first reply" {
		t.Errorf("earlier snapshot mutated: Reply = %q", loaded.State.Reply)
	}
}

func TestPendingLifecycle(t *testing.T) {
	store := NewCheckpointStore(memorykv.New(), discardLogger())
	ctx := context.Background()

	pending, err := store.LoadPending(ctx, "s4")
	if err != nil {
		t.Fatalf("LoadPending: %v", err)
	}
	if pending != nil {
		t.Fatalf("fresh session has pending record")
	}

	st := NewState("s4", "user-1", "input", time.Now())
	saved := &Pending{
		SessionID:  "s4",
		Pipeline:   "device-report",
		ResumeStep: "resolve-device",
		Request: &clarify.Request{
			Slot:    SlotDeviceName,
			Options: []clarify.Option{{Label: "Lobby Cam", ID: "lobby-cam"}},
			Reason:  "which device?",
		},
		State:     st,
		CreatedAt: time.Now(),
	}
	if err := store.SavePending(ctx, saved); err != nil {
		t.Fatalf("SavePending: %v", err)
	}

	pending, err = store.LoadPending(ctx, "s4")
	if err != nil {
		t.Fatalf("LoadPending: %v", err)
	}
	if pending == nil || pending.ResumeStep != "resolve-device" || pending.Request.Slot != SlotDeviceName {
		t.Fatalf("pending = %+v", pending)
	}

	if err := store.ClearPending(ctx, "s4"); err != nil {
		t.Fatalf("ClearPending: %v", err)
	}
	pending, err = store.LoadPending(ctx, "s4")
	if err != nil {
		t.Fatalf("LoadPending after clear: %v", err)
	}
	if pending != nil {
		t.Errorf("pending survived clear: %+v", pending)
	}
}

func TestLastSlotValue(t *testing.T) {
	store := NewCheckpointStore(memorykv.New(), discardLogger())
	ctx := context.Background()

	if _, ok := store.LastSlotValue(ctx, "s5", SlotDeviceName); ok {
		t.Fatalf("LastSlotValue found a value for an empty session")
	}

	if err := store.Append(ctx, testCheckpoint("s5", 1, "a", "")); err != nil {
		t.Fatalf("Append: %v", err)
	}

	value, ok := store.LastSlotValue(ctx, "s5", SlotDeviceName)
	if !ok || value != "lobby-cam" {
		t.Errorf("LastSlotValue = %q, %v; want lobby-cam, true", value, ok)
	}
	if _, ok := store.LastSlotValue(ctx, "s5", SlotLocation); ok {
		t.Errorf("LastSlotValue found a value for an unset slot")
	}
}

func TestLoadMissingCheckpoint(t *testing.T) {
	store := NewCheckpointStore(memorykv.New(), discardLogger())

	_, err := store.Load(context.Background(), "s6", 9)
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("err = %v, want not found", err)
	}
}
