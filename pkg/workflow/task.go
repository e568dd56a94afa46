package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"ai-dispatch-be/pkg/kv"

	"golang.org/x/sync/singleflight"
)

// TaskRecord is one invocation of a side-effecting operation. Completed
// records are read on replay and never overwritten; failed records are
// superseded by a later re-attempt.
type TaskRecord struct {
	Pipeline    string          `json:"pipeline"`
	Step        string          `json:"step"`
	Fingerprint string          `json:"fingerprint"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	Completed   bool            `json:"completed"`
	StartedAt   time.Time       `json:"started_at"`
	FinishedAt  time.Time       `json:"finished_at"`
}

// TaskExecutor deduplicates and memoizes side-effecting operations. This is
// the sole idempotency mechanism: it is what makes resuming safe for
// non-idempotent external calls (outbound notifications, LLM calls with
// cost). Only successes are memoized; a failed operation is re-attempted on
// the next identical invocation.
type TaskExecutor struct {
	store  kv.Store
	group  singleflight.Group
	logger *log.Logger
}

func NewTaskExecutor(store kv.Store, logger *log.Logger) *TaskExecutor {
	return &TaskExecutor{store: store, logger: logger}
}

func taskKey(pipeline, step, fingerprint string) string {
	return pipeline + "/" + step + "/" + fingerprint
}

// Execute runs op at most once per (pipeline, step, fingerprint). Concurrent
// identical invocations collapse into a single execution: the second caller
// waits for and reuses the first's result. A stored completed record is
// returned without invoking op at all.
func (e *TaskExecutor) Execute(ctx context.Context, pipeline, step, fingerprint string, op func(ctx context.Context) (json.RawMessage, error)) (json.RawMessage, error) {
	key := taskKey(pipeline, step, fingerprint)

	result, err, _ := e.group.Do(key, func() (interface{}, error) {
		record, err := e.load(ctx, key)
		if err != nil {
			return nil, err
		}
		if record != nil && record.Completed {
			e.logger.Printf("[TASK] replaying memoized result for %s", key)
			return record.Result, nil
		}

		record = &TaskRecord{
			Pipeline:    pipeline,
			Step:        step,
			Fingerprint: fingerprint,
			StartedAt:   time.Now(),
		}

		out, opErr := op(ctx)
		record.FinishedAt = time.Now()

		if opErr != nil {
			record.Error = opErr.Error()
			if saveErr := e.save(ctx, key, record); saveErr != nil {
				e.logger.Printf("[TASK] failed to persist error record for %s: %v", key, saveErr)
			}
			return nil, opErr
		}

		record.Result = out
		record.Completed = true
		if err := e.save(ctx, key, record); err != nil {
			// The side effect already happened; losing the record would
			// re-execute it on replay. Surface this as a hard failure.
			return nil, fmt.Errorf("side effect %s succeeded but its record could not be persisted: %w", key, err)
		}

		return out, nil
	})
	if err != nil {
		return nil, err
	}

	raw, _ := result.(json.RawMessage)
	return raw, nil
}

func (e *TaskExecutor) load(ctx context.Context, key string) (*TaskRecord, error) {
	raw, found, err := e.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("task record lookup %s: %w", key, err)
	}
	if !found {
		return nil, nil
	}

	var record TaskRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("corrupt task record %s: %w", key, err)
	}
	return &record, nil
}

func (e *TaskExecutor) save(ctx context.Context, key string, record *TaskRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return e.store.Put(ctx, key, data)
}
