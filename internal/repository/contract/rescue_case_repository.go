package contract

import (
	"context"

	"ai-dispatch-be/internal/entity"

	"github.com/pgvector/pgvector-go"
)

type RescueCaseRepository interface {
	Create(ctx context.Context, rescueCase *entity.RescueCase) error

	// CountMatching counts distinct cases whose text matches the query.
	CountMatching(ctx context.Context, query string) (int64, error)

	// CountNearest counts distinct cases whose embedding lies within
	// maxDistance of the query embedding.
	CountNearest(ctx context.Context, embedding pgvector.Vector, maxDistance float64) (int64, error)
}
