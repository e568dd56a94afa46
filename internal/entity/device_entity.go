package entity

import (
	"time"

	"github.com/google/uuid"
)

// Device statuses.
const (
	DeviceStatusOnline  = "online"
	DeviceStatusOffline = "offline"
	DeviceStatusBusy    = "busy"
)

// Device kinds.
const (
	DeviceKindCamera    = "camera"
	DeviceKindLock      = "lock"
	DeviceKindResponder = "responder"
)

type Device struct {
	Id         uuid.UUID
	Name       string `gorm:"uniqueIndex"`
	Kind       string
	Location   string
	Status     string
	LastSeenAt *time.Time
	CreatedAt  time.Time
}
