package workflow

import (
	"time"

	"ai-dispatch-be/pkg/evidence"
)

// Slot names solicited from the user via clarification.
const (
	SlotDeviceName   = "device_name"
	SlotLocation     = "location"
	SlotConfirmation = "confirmation"
)

// Field names a value in the state record that steps declare as inputs and
// outputs. Presence is checked at every step boundary, so a typo'd field
// fails loudly instead of reading a zero value.
type Field string

const (
	FieldRawInput     Field = "raw_input"
	FieldIntent       Field = "intent"
	FieldDeviceName   Field = "device_name"
	FieldLocation     Field = "location"
	FieldConfirmation Field = "confirmation"
	FieldIncident     Field = "incident"
	FieldAnalysis     Field = "analysis"
	FieldEvidence     Field = "evidence"
	FieldPlan         Field = "plan"
	FieldReply        Field = "reply"
)

// Slot maps a field to the clarification slot that can fill it. Fields with
// no slot cannot be solicited from the user; missing them is a pipeline
// wiring bug.
func (f Field) Slot() string {
	switch f {
	case FieldDeviceName:
		return SlotDeviceName
	case FieldLocation:
		return SlotLocation
	case FieldConfirmation:
		return SlotConfirmation
	default:
		return ""
	}
}

// IntentResult is the classifier verdict for the triggering input.
type IntentResult struct {
	Type       string            `json:"type"`
	Confidence float64           `json:"confidence"`
	Slots      map[string]string `json:"slots,omitempty"`
}

// IncidentReport summarizes an incident for the rescue pipeline.
type IncidentReport struct {
	Location string `json:"location"`
	Severity string `json:"severity"`
	Summary  string `json:"summary"`
}

// AnalysisResult is the outcome of a device/video analysis step.
type AnalysisResult struct {
	DeviceName string    `json:"device_name"`
	Summary    string    `json:"summary"`
	ObservedAt time.Time `json:"observed_at"`
}

// DispatchPlan is the proposed (and possibly committed) dispatch action.
type DispatchPlan struct {
	PlanID      string     `json:"plan_id"`
	Target      string     `json:"target"`
	Summary     string     `json:"summary"`
	CommittedAt *time.Time `json:"committed_at,omitempty"`
}

// State is the mutable record threaded through one pipeline run. The header
// fields are populated at entry; the optional fields accumulate as steps
// complete. Explicit struct fields instead of a dynamic map, so the zoo of
// optional values stays typed and serializable.
type State struct {
	SessionID   string    `json:"session_id"`
	UserID      string    `json:"user_id"`
	TriggeredAt time.Time `json:"triggered_at"`
	RawInput    string    `json:"raw_input"`

	// Slot values resolved from classification or clarification answers.
	Slots map[string]string `json:"slots,omitempty"`

	Intent   *IntentResult    `json:"intent,omitempty"`
	Incident *IncidentReport  `json:"incident,omitempty"`
	Analysis *AnalysisResult  `json:"analysis,omitempty"`
	Evidence *evidence.Bundle `json:"evidence,omitempty"`
	Plan     *DispatchPlan    `json:"plan,omitempty"`
	Reply    string           `json:"reply,omitempty"`

	// Disposition and GateReasons record how the dispatch decision went.
	Disposition string   `json:"disposition,omitempty"`
	GateReasons []string `json:"gate_reasons,omitempty"`
}

// NewState builds the entry state for a fresh run.
func NewState(sessionID, userID, rawInput string, triggeredAt time.Time) *State {
	return &State{
		SessionID:   sessionID,
		UserID:      userID,
		TriggeredAt: triggeredAt,
		RawInput:    rawInput,
		Slots:       map[string]string{},
	}
}

// Slot returns the resolved value for a slot, if any.
func (s *State) Slot(name string) string {
	if s.Slots == nil {
		return ""
	}
	return s.Slots[name]
}

// SetSlot records a resolved slot value.
func (s *State) SetSlot(name, value string) {
	if s.Slots == nil {
		s.Slots = map[string]string{}
	}
	s.Slots[name] = value
}

// Has reports whether a field has been populated.
func (s *State) Has(f Field) bool {
	switch f {
	case FieldRawInput:
		return s.RawInput != ""
	case FieldIntent:
		return s.Intent != nil
	case FieldDeviceName, FieldLocation, FieldConfirmation:
		return s.Slot(f.Slot()) != ""
	case FieldIncident:
		return s.Incident != nil
	case FieldAnalysis:
		return s.Analysis != nil
	case FieldEvidence:
		return s.Evidence != nil
	case FieldPlan:
		return s.Plan != nil
	case FieldReply:
		return s.Reply != ""
	default:
		return false
	}
}

// Clone deep-copies the state so a checkpoint snapshot is immune to later
// mutation.
func (s *State) Clone() *State {
	out := *s

	if s.Slots != nil {
		out.Slots = make(map[string]string, len(s.Slots))
		for k, v := range s.Slots {
			out.Slots[k] = v
		}
	}
	if s.Intent != nil {
		intent := *s.Intent
		if s.Intent.Slots != nil {
			intent.Slots = make(map[string]string, len(s.Intent.Slots))
			for k, v := range s.Intent.Slots {
				intent.Slots[k] = v
			}
		}
		out.Intent = &intent
	}
	if s.Incident != nil {
		incident := *s.Incident
		out.Incident = &incident
	}
	if s.Analysis != nil {
		analysis := *s.Analysis
		out.Analysis = &analysis
	}
	if s.Evidence != nil {
		bundle := *s.Evidence
		out.Evidence = &bundle
	}
	if s.Plan != nil {
		plan := *s.Plan
		if s.Plan.CommittedAt != nil {
			at := *s.Plan.CommittedAt
			plan.CommittedAt = &at
		}
		out.Plan = &plan
	}
	if s.GateReasons != nil {
		out.GateReasons = append([]string(nil), s.GateReasons...)
	}

	return &out
}
