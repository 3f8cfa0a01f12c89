package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Account is a registered player's durable progression record
type Account struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	Username      string     `json:"username" db:"username"`
	Email         string     `json:"email" db:"email"`
	PasswordHash  string     `json:"-" db:"password_hash"`
	Points        int        `json:"points" db:"points"`
	Level         int        `json:"level" db:"level"`
	Badges        []string   `json:"badges" db:"badges"`
	IsAdmin       bool       `json:"is_admin" db:"is_admin"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty" db:"deactivated_at"` // Soft delete
}

// HasBadge reports whether the badge is already in the account's set
func (a *Account) HasBadge(name string) bool {
	return slices.Contains(a.Badges, name)
}

// Clone returns a deep copy so callers can mutate without touching shared state
func (a *Account) Clone() *Account {
	c := *a
	c.Badges = slices.Clone(a.Badges)
	if c.Badges == nil {
		c.Badges = []string{}
	}
	if a.DeactivatedAt != nil {
		t := *a.DeactivatedAt
		c.DeactivatedAt = &t
	}
	return &c
}

// AccountResponse is the user object returned to the client
type AccountResponse struct {
	ID        uuid.UUID     `json:"id"`
	Username  string        `json:"username"`
	Email     string        `json:"email"`
	Points    int           `json:"points"`
	Level     int           `json:"level"`
	Badges    []string      `json:"badges"`
	IsAdmin   bool          `json:"is_admin,omitempty"`
	Progress  LevelProgress `json:"progress"`
	CreatedAt string        `json:"created_at"`
}

// LevelProgress is the derived progress-to-next-level view of a point total
type LevelProgress struct {
	Level            int     `json:"level"`
	ProgressFraction float64 `json:"progress_fraction"`
	ProgressPercent  int     `json:"progress_percent"`
	PointsToNext     int     `json:"points_to_next"`
}

// ToResponse converts Account to AccountResponse
func (a *Account) ToResponse(progress LevelProgress) AccountResponse {
	badges := a.Badges
	if badges == nil {
		badges = []string{}
	}
	return AccountResponse{
		ID:        a.ID,
		Username:  a.Username,
		Email:     a.Email,
		Points:    a.Points,
		Level:     a.Level,
		Badges:    badges,
		IsAdmin:   a.IsAdmin,
		Progress:  progress,
		CreatedAt: a.CreatedAt.Format(time.RFC3339),
	}
}
