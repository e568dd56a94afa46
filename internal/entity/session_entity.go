package entity

import (
	"time"

	"github.com/google/uuid"
)

type Session struct {
	Id         uuid.UUID
	UserId     uuid.UUID
	Pipeline   string
	LastStatus string
	CreatedAt  time.Time
	UpdatedAt  *time.Time
}
