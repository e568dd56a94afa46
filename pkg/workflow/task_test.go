package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"ai-dispatch-be/pkg/kv/memorykv"
)

func TestExecuteMemoizesSuccess(t *testing.T) {
	executor := NewTaskExecutor(memorykv.New(), discardLogger())
	ctx := context.Background()

	var calls int32
	op := func(ctx context.Context) (json.RawMessage, error) {
		atomic.AddInt32(&calls, 1)
		return json.RawMessage(`{"n":1}`), nil
	}

	first, err := executor.Execute(ctx, "p", "s", "fp", op)
	if err != nil {
		t.Fatalf("first Execute: %v", err)
	}
	second, err := executor.Execute(ctx, "p", "s", "fp", op)
	if err != nil {
		t.Fatalf("second Execute: %v", err)
	}

	if calls != 1 {
		t.Errorf("op ran %d times, want 1", calls)
	}
	if string(first) != string(second) {
		t.Errorf("replayed result %s differs from original %s", second, first)
	}
}

func TestExecuteDistinguishesFingerprints(t *testing.T) {
	executor := NewTaskExecutor(memorykv.New(), discardLogger())
	ctx := context.Background()

	var calls int32
	op := func(ctx context.Context) (json.RawMessage, error) {
		atomic.AddInt32(&calls, 1)
		return json.RawMessage(`{}`), nil
	}

	if _, err := executor.Execute(ctx, "p", "s", "fp-a", op); err != nil {
		t.Fatalf("Execute fp-a: %v", err)
	}
	if _, err := executor.Execute(ctx, "p", "s", "fp-b", op); err != nil {
		t.Fatalf("Execute fp-b: %v", err)
	}

	if calls != 2 {
		t.Errorf("op ran %d times, want 2 for distinct fingerprints", calls)
	}
}

func TestExecuteRetriesAfterFailure(t *testing.T) {
	executor := NewTaskExecutor(memorykv.New(), discardLogger())
	ctx := context.Background()

	var calls int32
	op := func(ctx context.Context) (json.RawMessage, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return nil, errors.New("transient outage")
		}
		return json.RawMessage(`{"ok":true}`), nil
	}

	if _, err := executor.Execute(ctx, "p", "s", "fp", op); err == nil {
		t.Fatalf("first Execute should surface the failure")
	}

	out, err := executor.Execute(ctx, "p", "s", "fp", op)
	if err != nil {
		t.Fatalf("retry Execute: %v", err)
	}
	if string(out) != `{"ok":true}` {
		t.Errorf("retry result = %s", out)
	}
	if calls != 2 {
		t.Errorf("op ran %d times, want 2 (failures are not memoized)", calls)
	}
}

func TestExecuteCollapsesConcurrentCalls(t *testing.T) {
	executor := NewTaskExecutor(memorykv.New(), discardLogger())
	ctx := context.Background()

	started := make(chan struct{})
	proceed := make(chan struct{})
	var calls int32

	op := func(ctx context.Context) (json.RawMessage, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
			<-proceed
		}
		return json.RawMessage(`{"winner":true}`), nil
	}

	var wg sync.WaitGroup
	results := make([]string, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := executor.Execute(ctx, "p", "s", "fp", op)
			if err != nil {
				t.Errorf("Execute: %v", err)
				return
			}
			results[i] = string(out)
		}(i)
	}

	<-started
	close(proceed)
	wg.Wait()

	if calls != 1 {
		t.Errorf("op ran %d times, want 1 for identical concurrent calls", calls)
	}
	for i, r := range results {
		if r != `{"winner":true}` {
			t.Errorf("results[%d] = %s", i, r)
		}
	}
}
