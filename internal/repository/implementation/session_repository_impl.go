package implementation

import (
	"context"
	"errors"

	"ai-dispatch-be/internal/entity"
	"ai-dispatch-be/internal/repository/contract"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SessionRepositoryImpl struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) contract.SessionRepository {
	return &SessionRepositoryImpl{db: db}
}

func (r *SessionRepositoryImpl) Create(ctx context.Context, session *entity.Session) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *SessionRepositoryImpl) Update(ctx context.Context, session *entity.Session) error {
	return r.db.WithContext(ctx).Save(session).Error
}

func (r *SessionRepositoryImpl) FindById(ctx context.Context, id uuid.UUID) (*entity.Session, error) {
	var session entity.Session
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func (r *SessionRepositoryImpl) FindAllByUserId(ctx context.Context, userId uuid.UUID) ([]*entity.Session, error) {
	var sessions []*entity.Session
	if err := r.db.WithContext(ctx).Where("user_id = ?", userId).Order("created_at DESC").Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}
