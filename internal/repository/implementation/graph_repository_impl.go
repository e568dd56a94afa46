package implementation

import (
	"context"

	"ai-dispatch-be/internal/entity"
	"ai-dispatch-be/internal/repository/contract"

	"gorm.io/gorm"
)

type GraphRepositoryImpl struct {
	db *gorm.DB
}

func NewGraphRepository(db *gorm.DB) contract.GraphRepository {
	return &GraphRepositoryImpl{db: db}
}

func (r *GraphRepositoryImpl) Create(ctx context.Context, edge *entity.GraphEdge) error {
	return r.db.WithContext(ctx).Create(edge).Error
}

func (r *GraphRepositoryImpl) CountRelations(ctx context.Context, subject string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.GraphEdge{}).
		Where("subject = ?", subject).
		Distinct("relation").
		Count(&count).Error
	return count, err
}
