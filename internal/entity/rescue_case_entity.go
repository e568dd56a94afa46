package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// RescueCase is one historical incident used as supporting evidence for new
// dispatch decisions. The embedding enables similarity lookup when an
// embedding provider is configured; keyword match is the fallback. NULL when
// the case was recorded without an embedding model.
type RescueCase struct {
	Id          uuid.UUID
	Title       string
	Description string
	Outcome     string
	Embedding   *pgvector.Vector `gorm:"type:vector(768)"`
	CreatedAt   time.Time
}
