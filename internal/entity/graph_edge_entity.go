package entity

import (
	"time"

	"github.com/google/uuid"
)

// GraphEdge is one knowledge-graph relation: subject --relation--> object.
// Distinct relations supporting a proposed action feed the evidence gate.
type GraphEdge struct {
	Id        uuid.UUID
	Subject   string `gorm:"index"`
	Relation  string
	Object    string
	Weight    float64
	CreatedAt time.Time
}
