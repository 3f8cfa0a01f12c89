package models

import (
	"time"

	"github.com/google/uuid"
)

// DeltaOrigin distinguishes gameplay awards from administrative corrections
type DeltaOrigin string

const (
	OriginGameplay DeltaOrigin = "gameplay"
	OriginAdmin    DeltaOrigin = "admin"
)

// LedgerEntry is the audit row written alongside every applied account transition
type LedgerEntry struct {
	ID             uuid.UUID   `json:"id" db:"id"`
	AccountID      uuid.UUID   `json:"account_id" db:"account_id"`
	PointsDelta    int         `json:"points_delta" db:"points_delta"` // Negative only for admin corrections
	BadgesAdded    []string    `json:"badges_added" db:"badges_added"`
	Origin         DeltaOrigin `json:"origin" db:"origin"`
	Source         string      `json:"source" db:"source"` // quiz, game, challenge, correction
	IdempotencyKey *string     `json:"idempotency_key,omitempty" db:"idempotency_key"`
	Reason         *string     `json:"reason,omitempty" db:"reason"`
	CreatedAt      time.Time   `json:"created_at" db:"created_at"`
}
