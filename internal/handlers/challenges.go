package handlers

import (
	"net/http"

	"github.com/JunoAX/greenquest-go/internal/models"
	"github.com/JunoAX/greenquest-go/internal/progression"
	"github.com/JunoAX/greenquest-go/internal/validation"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type SubmitProofRequest struct {
	ChallengeID string `json:"challenge_id" validate:"required,notblank"`
	ImageData   string `json:"image_data" validate:"required"`
}

type SubmitProofResponse struct {
	Message    string                    `json:"message"`
	Submission models.SubmissionResponse `json:"submission"`
}

// GetChallenges lists the catalog annotated with the caller's unlock and submission state
func GetChallenges(engine *progression.Engine, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := authUserID(c)
		if !ok {
			return
		}

		statuses, err := engine.Challenges.ListForAccount(c.Request.Context(), userID)
		if err != nil {
			respondError(c, logger, err)
			return
		}

		challenges := make([]models.ChallengeListResponse, 0, len(statuses))
		for _, s := range statuses {
			challenges = append(challenges, s.ToResponse())
		}

		c.JSON(http.StatusOK, challenges)
	}
}

// SubmitChallengeProof accepts a photo proof for an unlocked challenge
func SubmitChallengeProof(engine *progression.Engine, v *validation.Validator, maxProofBytes int, logger *zap.Logger) gin.HandlerFunc {
	// base64 inflates by 4/3; leave room for the data-URL header and JSON framing
	maxBody := int64(maxProofBytes)*4/3 + 4096

	return func(c *gin.Context) {
		userID, ok := authUserID(c)
		if !ok {
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBody)
		var req SubmitProofRequest
		if !bindJSON(c, v, &req) {
			return
		}

		submission, err := engine.SubmitProof(c.Request.Context(), userID, req.ChallengeID, req.ImageData)
		if err != nil {
			respondError(c, logger, err)
			return
		}

		message := "Proof submitted successfully! Your submission is pending review."
		if submission.Status == models.SubmissionApproved {
			message = "Proof submitted and approved!"
		}
		c.JSON(http.StatusOK, SubmitProofResponse{
			Message:    message,
			Submission: submission.ToResponse(),
		})
	}
}
