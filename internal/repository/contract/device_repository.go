package contract

import (
	"context"

	"ai-dispatch-be/internal/entity"
)

type DeviceRepository interface {
	Create(ctx context.Context, device *entity.Device) error
	FindByName(ctx context.Context, name string) (*entity.Device, error)
	FindAvailableByKind(ctx context.Context, kind string) ([]*entity.Device, error)
	CountAvailableByKind(ctx context.Context, kind string) (int64, error)
	UpdateStatus(ctx context.Context, name, status string) error
}
