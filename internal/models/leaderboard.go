package models

import "github.com/google/uuid"

// LeaderboardEntry represents an account's position on the leaderboard
type LeaderboardEntry struct {
	Rank      int       `json:"rank"`
	AccountID uuid.UUID `json:"user_id"`
	Username  string    `json:"username"`
	Points    int       `json:"points"`
	Level     int       `json:"level"`
}
