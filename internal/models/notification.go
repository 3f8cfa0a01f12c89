package models

import (
	"time"

	"github.com/google/uuid"
)

// Notification is a user-visible event in the account's feed
type Notification struct {
	ID        uuid.UUID        `json:"id" db:"id"`
	AccountID uuid.UUID        `json:"user_id" db:"account_id"`
	Type      NotificationType `json:"type" db:"type"` // achievement, challenge_unlock, reminder
	Message   string           `json:"message" db:"message"`
	Read      bool             `json:"read" db:"read"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
}
