package implementation

import (
	"context"
	"errors"

	"ai-dispatch-be/internal/entity"
	"ai-dispatch-be/internal/repository/contract"

	"gorm.io/gorm"
)

type DeviceRepositoryImpl struct {
	db *gorm.DB
}

func NewDeviceRepository(db *gorm.DB) contract.DeviceRepository {
	return &DeviceRepositoryImpl{db: db}
}

func (r *DeviceRepositoryImpl) Create(ctx context.Context, device *entity.Device) error {
	return r.db.WithContext(ctx).Create(device).Error
}

func (r *DeviceRepositoryImpl) FindByName(ctx context.Context, name string) (*entity.Device, error) {
	var device entity.Device
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&device).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &device, nil
}

func (r *DeviceRepositoryImpl) FindAvailableByKind(ctx context.Context, kind string) ([]*entity.Device, error) {
	var devices []*entity.Device
	err := r.db.WithContext(ctx).
		Where("kind = ? AND status = ?", kind, entity.DeviceStatusOnline).
		Order("name ASC").
		Find(&devices).Error
	if err != nil {
		return nil, err
	}
	return devices, nil
}

func (r *DeviceRepositoryImpl) CountAvailableByKind(ctx context.Context, kind string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Device{}).
		Where("kind = ? AND status = ?", kind, entity.DeviceStatusOnline).
		Count(&count).Error
	return count, err
}

func (r *DeviceRepositoryImpl) UpdateStatus(ctx context.Context, name, status string) error {
	return r.db.WithContext(ctx).Model(&entity.Device{}).
		Where("name = ?", name).
		Update("status", status).Error
}
