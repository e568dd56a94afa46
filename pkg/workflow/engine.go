package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"ai-dispatch-be/pkg/clarify"
	"ai-dispatch-be/pkg/events"
	"ai-dispatch-be/pkg/evidence"
	"ai-dispatch-be/pkg/lock"
)

// DefaultLockTTL bounds how long a crashed holder can block its session.
const DefaultLockTTL = 2 * time.Minute

// Result is the outcome of one Run or Resume invocation. Suspension is a
// normal terminal status carrying a clarification question, not an error.
type Result struct {
	Status  Status
	State   *State
	Clarify *clarify.Request
	Failure *Error // set when Status is StatusFailed
}

// Engine executes pipelines durably: one checkpoint per completed step,
// suspension on missing slot input, evidence gating before dispatch-class
// steps, and per-session serialization through the locker.
type Engine struct {
	registry    *Registry
	checkpoints *CheckpointStore
	tasks       *TaskExecutor
	clarifier   *clarify.Manager
	locks       lock.Locker
	publisher   events.Publisher // optional
	lockTTL     time.Duration
	logger      *log.Logger
}

func NewEngine(
	registry *Registry,
	checkpoints *CheckpointStore,
	tasks *TaskExecutor,
	clarifier *clarify.Manager,
	locks lock.Locker,
	publisher events.Publisher,
	logger *log.Logger,
) *Engine {
	return &Engine{
		registry:    registry,
		checkpoints: checkpoints,
		tasks:       tasks,
		clarifier:   clarifier,
		locks:       locks,
		publisher:   publisher,
		lockTTL:     DefaultLockTTL,
		logger:      logger,
	}
}

// SetLockTTL overrides the session lock lease. Call before the engine is
// shared across goroutines.
func (e *Engine) SetLockTTL(ttl time.Duration) {
	if ttl > 0 {
		e.lockTTL = ttl
	}
}

// Run starts a fresh execution of pipelineName against the entry state.
// Returns a ConflictError without touching persisted state when another run
// of the same session is in flight.
func (e *Engine) Run(ctx context.Context, pipelineName string, st *State) (*Result, error) {
	p, ok := e.registry.Get(pipelineName)
	if !ok {
		return nil, newError(KindValidation, nil, "unknown pipeline %q", pipelineName)
	}

	release, err := e.locks.Acquire(ctx, st.SessionID, e.lockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrHeld) {
			return nil, newError(KindConflict, err, "session %s already has a run in flight", st.SessionID)
		}
		return nil, newError(KindDependency, err, "failed to acquire session lock")
	}
	defer release()

	latest, err := e.checkpoints.Latest(ctx, st.SessionID)
	if err != nil {
		return nil, newError(KindDependency, err, "failed to load checkpoint history")
	}

	seq := 0
	if latest != nil {
		seq = latest.Seq
	}

	e.logger.Printf("[ENGINE] run pipeline=%s session=%s from seq=%d", p.Name, st.SessionID, seq)
	// A fresh run starts with an empty prior step, which is the one place
	// the prior-step chain is allowed to break.
	return e.execute(ctx, p, st, 0, seq, "", false)
}

// Resume continues a session from its durable state. With an open suspension
// the answer is resolved into the missing slot and the suspending step is
// re-evaluated (its input check runs again, not skipped). Without one, the
// run continues from the step after the latest checkpoint, which replays to
// an identical final state thanks to task memoization.
func (e *Engine) Resume(ctx context.Context, sessionID string, answer clarify.Answer) (*Result, error) {
	release, err := e.locks.Acquire(ctx, sessionID, e.lockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrHeld) {
			return nil, newError(KindConflict, err, "session %s already has a run in flight", sessionID)
		}
		return nil, newError(KindDependency, err, "failed to acquire session lock")
	}
	defer release()

	pending, err := e.checkpoints.LoadPending(ctx, sessionID)
	if err != nil {
		return nil, newError(KindDependency, err, "failed to load pending clarification")
	}

	if pending == nil {
		return e.resumeFromCheckpoint(ctx, sessionID, answer)
	}

	p, ok := e.registry.Get(pending.Pipeline)
	if !ok {
		return nil, newError(KindValidation, nil, "suspended pipeline %q is no longer registered", pending.Pipeline)
	}
	idx := p.stepIndex(pending.ResumeStep)
	if idx < 0 {
		return nil, newError(KindValidation, nil, "suspended step %q is no longer part of pipeline %q", pending.ResumeStep, pending.Pipeline)
	}

	st := pending.State.Clone()

	if !answer.IsZero() {
		value, err := e.clarifier.Resolve(pending.Request, answer)
		if err != nil {
			// Unresolvable answers leave the slot unset and nothing
			// persisted; the caller can retry with a valid one.
			return nil, newError(KindValidation, err, "answer for slot %q could not be resolved", pending.Request.Slot)
		}
		st.SetSlot(pending.Request.Slot, value)
		e.logger.Printf("[ENGINE] resume session=%s slot=%s resolved", sessionID, pending.Request.Slot)
	}

	prior := ""
	if latest, err := e.checkpoints.Latest(ctx, sessionID); err == nil && latest != nil {
		prior = latest.StepName
	}

	return e.execute(ctx, p, st, idx, pending.Seq, prior, true)
}

func (e *Engine) resumeFromCheckpoint(ctx context.Context, sessionID string, answer clarify.Answer) (*Result, error) {
	if !answer.IsZero() {
		return nil, newError(KindValidation, nil, "session %s has no pending clarification to answer", sessionID)
	}

	latest, err := e.checkpoints.Latest(ctx, sessionID)
	if err != nil {
		return nil, newError(KindDependency, err, "failed to load checkpoint history")
	}
	if latest == nil {
		return nil, newError(KindValidation, nil, "session %s has nothing to resume", sessionID)
	}

	p, ok := e.registry.Get(latest.Pipeline)
	if !ok {
		return nil, newError(KindValidation, nil, "checkpointed pipeline %q is no longer registered", latest.Pipeline)
	}
	idx := p.stepIndex(latest.StepName)
	if idx < 0 {
		return nil, newError(KindValidation, nil, "checkpointed step %q is no longer part of pipeline %q", latest.StepName, latest.Pipeline)
	}

	e.logger.Printf("[ENGINE] resume session=%s from checkpoint seq=%d step=%s", sessionID, latest.Seq, latest.StepName)
	return e.execute(ctx, p, latest.State.Clone(), idx+1, latest.Seq, latest.StepName, false)
}

// execute walks the step chain from index start. seq is the last persisted
// checkpoint sequence number; priorStep the last completed step name.
// clearPending marks that an open suspension should be cleared once the
// suspending step's input check passes.
func (e *Engine) execute(ctx context.Context, p *Pipeline, st *State, start, seq int, priorStep string, clearPending bool) (*Result, error) {
	i := start
	for i >= 0 && i < len(p.Steps) {
		step := &p.Steps[i]

		if err := ctx.Err(); err != nil {
			return e.fail(ctx, p, st, newError(KindTimeout, err, "run deadline exceeded before step %q", step.Name))
		}

		// (a) Input completeness. A missing slot-backed field suspends the
		// run; a missing field with no slot is a pipeline wiring bug.
		suspendedOn := ""
		for _, f := range step.Inputs {
			if st.Has(f) {
				continue
			}
			slot := f.Slot()
			if slot == "" {
				return e.fail(ctx, p, st, newError(KindValidation, nil, "step %q requires field %q which cannot be solicited from the user", step.Name, f))
			}
			suspendedOn = slot
			break
		}
		if suspendedOn != "" {
			return e.suspend(ctx, p, st, step, suspendedOn, seq)
		}
		if clearPending {
			if err := e.checkpoints.ClearPending(ctx, st.SessionID); err != nil {
				e.logger.Printf("[ENGINE] failed to clear pending record for session %s: %v", st.SessionID, err)
			}
			clearPending = false
		}

		// (e-pre) Dispatch-class steps consult the evidence gate first. A
		// refusal downgrades the run to suggest-only and skips the side
		// effect; the pipeline continues with the disposition recorded.
		skipEffect := false
		if step.Dispatch {
			eligible, reasons := evidence.Evaluate(*st.Evidence)
			if !eligible {
				st.Disposition = DispositionSuggestOnly
				st.GateReasons = reasons
				skipEffect = true
				e.logger.Printf("[ENGINE] dispatch refused for session=%s step=%s reasons=%v", st.SessionID, step.Name, reasons)
			}
		}

		// (b)+(c) Execute the step and merge its result.
		if step.SideEffect {
			if !skipEffect {
				fingerprint := step.Fingerprint(st)
				out, err := e.tasks.Execute(ctx, p.Name, step.Name, fingerprint, func(opCtx context.Context) (json.RawMessage, error) {
					return step.Effect(opCtx, st)
				})
				if err != nil {
					return e.fail(ctx, p, st, e.classify(err, "step %q failed", step.Name))
				}
				if err := step.Apply(st, out); err != nil {
					return e.fail(ctx, p, st, newError(KindInternal, err, "step %q could not apply its result", step.Name))
				}
				if step.Dispatch {
					st.Disposition = DispositionDispatched
					e.publish(ctx, events.NewRunEvent(events.TypeDispatchCommitted, st.SessionID, p.Name, map[string]interface{}{
						"step": step.Name,
					}))
				}
			}
		} else {
			if err := step.Run(ctx, st); err != nil {
				return e.fail(ctx, p, st, e.classify(err, "step %q failed", step.Name))
			}
		}

		if !skipEffect {
			for _, f := range step.Outputs {
				if !st.Has(f) {
					return e.fail(ctx, p, st, newError(KindInternal, nil, "step %q did not produce declared output %q", step.Name, f))
				}
			}
		}

		// (d) Checkpoint after every completed step.
		seq++
		cp := &Checkpoint{
			SessionID: st.SessionID,
			Seq:       seq,
			Pipeline:  p.Name,
			StepName:  step.Name,
			PriorStep: priorStep,
			State:     st.Clone(),
			CreatedAt: time.Now(),
		}
		if err := e.checkpoints.Append(ctx, cp); err != nil {
			return e.fail(ctx, p, st, newError(KindDependency, err, "failed to persist checkpoint after step %q", step.Name))
		}
		priorStep = step.Name
		e.publish(ctx, events.NewRunEvent(events.TypeStepCompleted, st.SessionID, p.Name, map[string]interface{}{
			"step": step.Name,
			"seq":  seq,
		}))

		// Decision points may route to a named alternate next step.
		next := i + 1
		if step.Next != nil {
			if target := step.Next(st); target != "" {
				idx := p.stepIndex(target)
				if idx < 0 {
					return e.fail(ctx, p, st, newError(KindValidation, nil, "step %q routed to unknown step %q", step.Name, target))
				}
				next = idx
			}
		}
		i = next
	}

	if err := e.checkpoints.ClearPending(ctx, st.SessionID); err != nil {
		e.logger.Printf("[ENGINE] failed to clear pending record for session %s: %v", st.SessionID, err)
	}

	e.publish(ctx, events.NewRunEvent(events.TypeRunCompleted, st.SessionID, p.Name, nil))
	e.logger.Printf("[ENGINE] run completed pipeline=%s session=%s seq=%d", p.Name, st.SessionID, seq)

	return &Result{Status: StatusCompleted, State: st}, nil
}

func (e *Engine) suspend(ctx context.Context, p *Pipeline, st *State, step *Step, slot string, seq int) (*Result, error) {
	var candidates []clarify.Option
	if step.Candidates != nil {
		var err error
		candidates, err = step.Candidates(ctx, st)
		if err != nil {
			return e.fail(ctx, p, st, newError(KindDependency, err, "failed to load candidates for slot %q", slot))
		}
	}

	reason := step.ClarifyReason
	if reason == "" {
		reason = "missing required input \"" + slot + "\""
	}

	req := e.clarifier.BuildRequest(ctx, st.SessionID, slot, candidates, reason, step.AllowFreeForm)

	pending := &Pending{
		SessionID:  st.SessionID,
		Pipeline:   p.Name,
		ResumeStep: step.Name,
		Request:    req,
		State:      st.Clone(),
		Seq:        seq,
		CreatedAt:  time.Now(),
	}
	if err := e.checkpoints.SavePending(ctx, pending); err != nil {
		return e.fail(ctx, p, st, newError(KindDependency, err, "failed to persist suspension for slot %q", slot))
	}

	e.publish(ctx, events.NewRunEvent(events.TypeRunSuspended, st.SessionID, p.Name, map[string]interface{}{
		"step": step.Name,
		"slot": slot,
	}))
	e.logger.Printf("[ENGINE] suspended pipeline=%s session=%s step=%s slot=%s", p.Name, st.SessionID, step.Name, slot)

	return &Result{Status: StatusSuspended, State: st, Clarify: req}, nil
}

func (e *Engine) fail(ctx context.Context, p *Pipeline, st *State, failure *Error) (*Result, error) {
	e.publish(ctx, events.NewRunEvent(events.TypeRunFailed, st.SessionID, p.Name, map[string]interface{}{
		"kind":    string(failure.Kind),
		"message": failure.Message,
	}))
	e.logger.Printf("[ENGINE] run failed pipeline=%s session=%s: %v", p.Name, st.SessionID, failure)

	return &Result{Status: StatusFailed, State: st, Failure: failure}, nil
}

// classify maps a step error onto the taxonomy: context expiry is a timeout,
// engine errors pass through, everything else failed in a collaborator.
func (e *Engine) classify(err error, format string, args ...interface{}) *Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return newError(KindTimeout, err, format, args...)
	}
	var engineErr *Error
	if errors.As(err, &engineErr) {
		return engineErr
	}
	return newError(KindDependency, err, format, args...)
}

func (e *Engine) publish(ctx context.Context, event events.Event) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(ctx, event); err != nil {
		e.logger.Printf("[ENGINE] failed to publish %s: %v", event.EventType(), err)
	}
}
