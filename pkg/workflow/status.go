package workflow

// Status is the terminal status of one Run or Resume invocation.
type Status string

const (
	// StatusCompleted means the pipeline ran to its last step.
	StatusCompleted Status = "COMPLETED"

	// StatusSuspended means execution stopped at an input-completeness check
	// and a clarification question was returned. Not an error.
	StatusSuspended Status = "SUSPENDED_AWAITING_INPUT"

	// StatusFailed means a step failed terminally. The caller must restart
	// explicitly; the engine never retries on its own.
	StatusFailed Status = "FAILED"
)

// Disposition records how a dispatch-class step concluded.
const (
	DispositionDispatched  = "dispatched"
	DispositionSuggestOnly = "suggest-only"
)
