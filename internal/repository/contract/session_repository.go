package contract

import (
	"context"

	"ai-dispatch-be/internal/entity"

	"github.com/google/uuid"
)

type SessionRepository interface {
	Create(ctx context.Context, session *entity.Session) error
	Update(ctx context.Context, session *entity.Session) error
	FindById(ctx context.Context, id uuid.UUID) (*entity.Session, error)
	FindAllByUserId(ctx context.Context, userId uuid.UUID) ([]*entity.Session, error)
}
