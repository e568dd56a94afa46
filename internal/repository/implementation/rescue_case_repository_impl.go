package implementation

import (
	"context"

	"ai-dispatch-be/internal/entity"
	"ai-dispatch-be/internal/repository/contract"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type RescueCaseRepositoryImpl struct {
	db *gorm.DB
}

func NewRescueCaseRepository(db *gorm.DB) contract.RescueCaseRepository {
	return &RescueCaseRepositoryImpl{db: db}
}

func (r *RescueCaseRepositoryImpl) Create(ctx context.Context, rescueCase *entity.RescueCase) error {
	return r.db.WithContext(ctx).Create(rescueCase).Error
}

func (r *RescueCaseRepositoryImpl) CountMatching(ctx context.Context, query string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.RescueCase{}).
		Where("title ILIKE ? OR description ILIKE ?", "%"+query+"%", "%"+query+"%").
		Count(&count).Error
	return count, err
}

func (r *RescueCaseRepositoryImpl) CountNearest(ctx context.Context, embedding pgvector.Vector, maxDistance float64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.RescueCase{}).
		Where("embedding IS NOT NULL AND embedding <=> ? < ?", embedding, maxDistance).
		Count(&count).Error
	return count, err
}
