package workflow

import (
	"context"
	"encoding/json"

	"ai-dispatch-be/pkg/clarify"
)

// Step is one unit of pipeline work. Pure steps implement Run; side-effecting
// steps implement Fingerprint/Effect/Apply so they execute through the task
// executor and replay safely after a resume.
type Step struct {
	Name string

	// Inputs are checked for presence before the step runs. A missing input
	// that maps to a slot suspends the run with a clarification question;
	// a missing input with no slot is a wiring bug and fails the run.
	Inputs []Field

	// Outputs are checked for presence after the step runs, catching steps
	// that silently forgot to produce what they declared.
	Outputs []Field

	// SideEffect marks steps whose work must not re-execute on replay.
	SideEffect bool

	// Dispatch marks irreversible actions gated on supporting evidence.
	// Requires SideEffect and FieldEvidence among the inputs.
	Dispatch bool

	// Run executes a pure step against the state.
	Run func(ctx context.Context, st *State) error

	// Fingerprint derives the memoization key for a side-effecting step from
	// its logical inputs.
	Fingerprint func(st *State) string

	// Effect performs the side effect and returns a serializable result.
	Effect func(ctx context.Context, st *State) (json.RawMessage, error)

	// Apply merges an Effect result (fresh or replayed) into the state.
	Apply func(st *State, result json.RawMessage) error

	// Next names the alternate next step for a decision point. Returning ""
	// continues with the next step in sequence.
	Next func(st *State) string

	// Candidates supplies clarification options when an input slot is
	// missing. Optional; a nil Candidates yields a free-form question.
	Candidates func(ctx context.Context, st *State) ([]clarify.Option, error)

	// ClarifyReason is the human-readable justification attached to the
	// clarification question for this step's missing input.
	ClarifyReason string

	// AllowFreeForm permits clarification answers outside the offered
	// options.
	AllowFreeForm bool
}
