package contract

import (
	"context"

	"ai-dispatch-be/internal/entity"
)

type GraphRepository interface {
	Create(ctx context.Context, edge *entity.GraphEdge) error

	// CountRelations counts distinct relations with the given subject.
	CountRelations(ctx context.Context, subject string) (int64, error)
}
