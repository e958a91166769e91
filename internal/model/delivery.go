package model

import (
	"encoding/json"
	"time"
)

type DeliveryStatus string

const (
	DeliveryStatusPending    DeliveryStatus = "pending"
	DeliveryStatusProcessing DeliveryStatus = "processing"
	DeliveryStatusSent       DeliveryStatus = "sent"
	DeliveryStatusSkipped    DeliveryStatus = "skipped"
	DeliveryStatusFailed     DeliveryStatus = "failed"
)

func (s DeliveryStatus) Terminal() bool {
	switch s {
	case DeliveryStatusSent, DeliveryStatusSkipped, DeliveryStatusFailed:
		return true
	}
	return false
}

// DeliveryItem is one outbound notification with the same lifecycle shape as
// QueueItem, plus a scheduled_for timestamp for backoff rescheduling.
type DeliveryItem struct {
	ID           int64           `json:"id"`
	Kind         string          `json:"kind"`
	Payload      json.RawMessage `json:"payload"`
	Status       DeliveryStatus  `json:"status"`
	Attempts     int             `json:"attempts"`
	MaxAttempts  int             `json:"max_attempts"`
	ScheduledFor time.Time       `json:"scheduled_for"`
	LastError    *string         `json:"last_error,omitempty"`
	ClaimedAt    *time.Time      `json:"claimed_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
