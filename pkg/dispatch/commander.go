package dispatch

import (
	"context"
	"fmt"
	"log"
	"time"

	"ai-dispatch-be/internal/entity"
	"ai-dispatch-be/internal/repository/contract"
	"ai-dispatch-be/pkg/events"
)

// DeviceEventCommander issues device commands over the event bus and marks
// the device busy until an external ack resets it. The device is re-checked
// here because the command may run long after the device was resolved.
type DeviceEventCommander struct {
	devices   contract.DeviceRepository
	publisher events.Publisher
	logger    *log.Logger
}

var _ DeviceCommander = &DeviceEventCommander{}

func NewDeviceEventCommander(devices contract.DeviceRepository, publisher events.Publisher, logger *log.Logger) *DeviceEventCommander {
	return &DeviceEventCommander{devices: devices, publisher: publisher, logger: logger}
}

func (c *DeviceEventCommander) ExecuteCommand(ctx context.Context, deviceName, action string) (string, error) {
	device, err := c.devices.FindByName(ctx, deviceName)
	if err != nil {
		return "", fmt.Errorf("failed to look up device %q: %w", deviceName, err)
	}
	if device == nil {
		return "", fmt.Errorf("device %q does not exist", deviceName)
	}
	if device.Status != entity.DeviceStatusOnline {
		return "", fmt.Errorf("device %q is %s, refusing command", deviceName, device.Status)
	}

	ev := events.BaseEvent{
		Type: events.TypeDeviceCommand,
		Data: map[string]interface{}{
			"device":   deviceName,
			"action":   action,
			"location": device.Location,
		},
		OccurredAt: time.Now(),
	}
	if err := c.publisher.Publish(ctx, ev); err != nil {
		return "", fmt.Errorf("failed to issue %s to %q: %w", action, deviceName, err)
	}

	if err := c.devices.UpdateStatus(ctx, deviceName, entity.DeviceStatusBusy); err != nil {
		c.logger.Printf("[WARN] device %q accepted %s but status update failed: %v", deviceName, action, err)
	}

	c.logger.Printf("[DISPATCH] command issued device=%s action=%s", deviceName, action)
	return "accepted", nil
}
