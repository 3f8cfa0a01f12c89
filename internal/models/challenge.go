package models

import (
	"time"

	"github.com/google/uuid"
)

// Challenge is an immutable catalog entry that can be completed with photo proof
type Challenge struct {
	ID             string            `json:"id" yaml:"id"`
	Category       ChallengeCategory `json:"category" yaml:"category"`
	Title          string            `json:"title" yaml:"title"`
	Description    string            `json:"description" yaml:"description"`
	PointsRequired int               `json:"points_required" yaml:"points_required"` // Unlock threshold
	PointsReward   int               `json:"points_reward" yaml:"points_reward"`
	Badge          *string           `json:"badge,omitempty" yaml:"badge,omitempty"`
}

// ChallengeSubmission is one proof upload for a challenge
type ChallengeSubmission struct {
	ID          uuid.UUID        `json:"id" db:"id"`
	AccountID   uuid.UUID        `json:"account_id" db:"account_id"`
	ChallengeID string           `json:"challenge_id" db:"challenge_id"`
	ProofRef    string           `json:"proof_ref" db:"proof_ref"`
	Status      SubmissionStatus `json:"status" db:"status"` // pending, approved, rejected
	SubmittedAt time.Time        `json:"submitted_at" db:"submitted_at"`
	ReviewedAt  *time.Time       `json:"reviewed_at,omitempty" db:"reviewed_at"`
	ReviewerID  *uuid.UUID       `json:"reviewer_id,omitempty" db:"reviewer_id"`
	ReviewNote  *string          `json:"review_note,omitempty" db:"review_note"`
}

// ChallengeListResponse is a catalog challenge annotated for one account
type ChallengeListResponse struct {
	ID             string            `json:"id"`
	Category       ChallengeCategory `json:"category"`
	Title          string            `json:"title"`
	Description    string            `json:"description"`
	PointsRequired int               `json:"points_required"`
	PointsReward   int               `json:"points_reward"`
	Badge          *string           `json:"badge"`
	Unlocked       bool              `json:"unlocked"`
	Submitted      bool              `json:"submitted"`
	Status         SubmissionStatus  `json:"status"`
}

// SubmissionResponse is the API response format
type SubmissionResponse struct {
	ID          uuid.UUID        `json:"id"`
	AccountID   uuid.UUID        `json:"account_id"`
	ChallengeID string           `json:"challenge_id"`
	ProofRef    string           `json:"proof_ref"`
	Status      SubmissionStatus `json:"status"`
	SubmittedAt string           `json:"submitted_at"`
	ReviewedAt  *string          `json:"reviewed_at,omitempty"`
	ReviewNote  *string          `json:"review_note,omitempty"`
}

// ToResponse converts ChallengeSubmission to SubmissionResponse
func (s *ChallengeSubmission) ToResponse() SubmissionResponse {
	response := SubmissionResponse{
		ID:          s.ID,
		AccountID:   s.AccountID,
		ChallengeID: s.ChallengeID,
		ProofRef:    s.ProofRef,
		Status:      s.Status,
		SubmittedAt: s.SubmittedAt.Format(time.RFC3339),
		ReviewNote:  s.ReviewNote,
	}

	if s.ReviewedAt != nil {
		reviewedStr := s.ReviewedAt.Format(time.RFC3339)
		response.ReviewedAt = &reviewedStr
	}

	return response
}
