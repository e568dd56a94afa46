// FILE: internal/dto/orchestrator_dto.go
package dto

import "time"

// SubmitRequest starts a new session (SessionId empty) or resumes a
// suspended one (SessionId set, Answer filled when a question is pending).
type SubmitRequest struct {
	SessionId string        `json:"session_id"`
	Input     string        `json:"input" validate:"required_without=SessionId,max=4000"`
	Answer    *SubmitAnswer `json:"answer,omitempty"`

	// PipelineOverride skips intent classification when set.
	PipelineOverride string `json:"pipeline_override,omitempty" validate:"omitempty,oneof=video-analysis rescue-dispatch device-control general-chat"`
}

type SubmitAnswer struct {
	OptionId string `json:"option_id,omitempty"`
	Value    string `json:"value,omitempty"`
}

type ClarifyOption struct {
	Label string `json:"label"`
	Id    string `json:"id"`
}

type ClarifyPayload struct {
	Slot         string          `json:"slot"`
	Options      []ClarifyOption `json:"options"`
	DefaultIndex int             `json:"default_index"`
	Reason       string          `json:"reason"`
}

type FailurePayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type SubmitResponse struct {
	SessionId   string          `json:"session_id"`
	Status      string          `json:"status"`
	Pipeline    string          `json:"pipeline"`
	Reply       string          `json:"reply,omitempty"`
	Disposition string          `json:"disposition,omitempty"`
	GateReasons []string        `json:"gate_reasons,omitempty"`
	Clarify     *ClarifyPayload `json:"clarify,omitempty"`
	Failure     *FailurePayload `json:"failure,omitempty"`
}

type SessionInfo struct {
	SessionId  string    `json:"session_id"`
	Pipeline   string    `json:"pipeline"`
	LastStatus string    `json:"last_status"`
	CreatedAt  time.Time `json:"created_at"`
}

type CheckpointInfo struct {
	Seq       int       `json:"seq"`
	Pipeline  string    `json:"pipeline"`
	StepName  string    `json:"step_name"`
	PriorStep string    `json:"prior_step,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type SessionHistoryResponse struct {
	SessionId   string           `json:"session_id"`
	Checkpoints []CheckpointInfo `json:"checkpoints"`
}
