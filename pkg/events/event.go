package events

import (
	"context"
	"time"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "RUN_SUSPENDED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Publisher delivers events to the in-process bus.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Engine lifecycle event types.
const (
	TypeStepCompleted     = "STEP_COMPLETED"
	TypeRunSuspended      = "RUN_SUSPENDED"
	TypeRunCompleted      = "RUN_COMPLETED"
	TypeRunFailed         = "RUN_FAILED"
	TypeDispatchCommitted = "DISPATCH_COMMITTED"
	TypeDeviceCommand     = "DEVICE_COMMAND"
)

// BaseEvent helps embed common logic if needed,
// strictly creating valid implementations is preferred though.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// NewRunEvent builds a lifecycle event for one session's pipeline run.
func NewRunEvent(eventType, sessionID, pipeline string, extra map[string]interface{}) BaseEvent {
	data := map[string]interface{}{
		"session_id": sessionID,
		"pipeline":   pipeline,
	}
	for k, v := range extra {
		data[k] = v
	}
	return BaseEvent{
		Type:       eventType,
		Data:       data,
		OccurredAt: time.Now(),
	}
}
