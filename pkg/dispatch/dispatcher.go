package dispatch

import (
	"context"
	"fmt"
	"log"
	"time"

	"ai-dispatch-be/pkg/events"
	"ai-dispatch-be/pkg/workflow"

	"github.com/google/uuid"
)

// Dispatcher commits a dispatch plan: the irreversible action at the end of
// the rescue pipeline. Implementations must tolerate being called at most
// once per plan; the engine's task memoization guarantees that.
type Dispatcher interface {
	CommitPlan(ctx context.Context, plan workflow.DispatchPlan) (dispatchID string, err error)
}

// DeviceCommander executes a command against a physical device.
type DeviceCommander interface {
	ExecuteCommand(ctx context.Context, deviceName, action string) (status string, err error)
}

// EventDispatcher commits plans by handing them to the responder network via
// the event bus. The consumer service relays the event to NATS so external
// responder clients pick it up.
type EventDispatcher struct {
	publisher events.Publisher
	logger    *log.Logger
}

var _ Dispatcher = &EventDispatcher{}

func NewEventDispatcher(publisher events.Publisher, logger *log.Logger) *EventDispatcher {
	return &EventDispatcher{publisher: publisher, logger: logger}
}

func (d *EventDispatcher) CommitPlan(ctx context.Context, plan workflow.DispatchPlan) (string, error) {
	dispatchID := uuid.NewString()

	ev := events.BaseEvent{
		Type: events.TypeDispatchCommitted,
		Data: map[string]interface{}{
			"dispatch_id": dispatchID,
			"plan_id":     plan.PlanID,
			"target":      plan.Target,
			"summary":     plan.Summary,
		},
		OccurredAt: time.Now(),
	}
	if err := d.publisher.Publish(ctx, ev); err != nil {
		return "", fmt.Errorf("failed to hand plan %s to the responder network: %w", plan.PlanID, err)
	}

	d.logger.Printf("[DISPATCH] committed plan=%s target=%s dispatch=%s", plan.PlanID, plan.Target, dispatchID)
	return dispatchID, nil
}
