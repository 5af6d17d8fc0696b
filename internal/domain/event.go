package domain

import (
	"time"

	"github.com/google/uuid"
)

// Event is the broadcast schema every subscribed terminal receives. Version
// carries the mutated entity's post-commit version so consumers can discard
// anything not newer than what they already hold.
type Event struct {
	Type      string    `json:"type"`
	OrderID   uuid.UUID `json:"order_id,omitempty"`
	Version   int64     `json:"version"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}
