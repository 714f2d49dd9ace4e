package domain

import (
	"time"

	"github.com/google/uuid"
)

// CaptureAttempt is the per-trigger state a node carries from message
// receipt until the ack is sent. It is never persisted.
type CaptureAttempt struct {
	ID         uuid.UUID
	ReceivedAt time.Time
	Target     time.Time // resolved capture instant
	Prefix     string
	Outcome    AckMessage
}
