package handlers

import (
	"net/http"

	"github.com/JunoAX/greenquest-go/internal/models"
	"github.com/JunoAX/greenquest-go/internal/progression"
	"github.com/JunoAX/greenquest-go/internal/validation"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxReviewQueue = 100

type RejectSubmissionRequest struct {
	Note string `json:"note" validate:"max=500"`
}

type AdjustAccountRequest struct {
	PointsDelta int      `json:"points_delta"`
	Badges      []string `json:"badges" validate:"omitempty,dive,notblank,max=64"`
	Reason      string   `json:"reason" validate:"required,notblank,max=500"`
}

type ReminderRequest struct {
	AccountID uuid.UUID `json:"account_id" validate:"required"`
	Message   string    `json:"message" validate:"required,notblank,max=500"`
}

// ListSubmissions returns the review queue for ?status= (pending by default), oldest first
func ListSubmissions(engine *progression.Engine, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, ok := queryLimit(c)
		if !ok {
			return
		}
		if limit == 0 || limit > maxReviewQueue {
			limit = maxReviewQueue
		}
		status := models.SubmissionStatus(c.DefaultQuery("status", string(models.SubmissionPending)))

		submissions, err := engine.Challenges.ListByStatus(c.Request.Context(), status, limit)
		if err != nil {
			respondError(c, logger, err)
			return
		}

		response := make([]models.SubmissionResponse, 0, len(submissions))
		for i := range submissions {
			response = append(response, submissions[i].ToResponse())
		}
		c.JSON(http.StatusOK, response)
	}
}

// ApproveSubmission approves a pending submission and credits its reward.
// Approving an already reviewed submission returns it unchanged.
func ApproveSubmission(engine *progression.Engine, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		adminID, ok := authUserID(c)
		if !ok {
			return
		}
		id, ok := paramUUID(c, "id")
		if !ok {
			return
		}

		outcome, err := engine.ApproveSubmission(c.Request.Context(), id, adminID)
		if err != nil {
			respondError(c, logger, err)
			return
		}

		c.JSON(http.StatusOK, outcome.Submission.ToResponse())
	}
}

// RejectSubmission rejects a pending submission so the player may submit again
func RejectSubmission(engine *progression.Engine, v *validation.Validator, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		adminID, ok := authUserID(c)
		if !ok {
			return
		}
		id, ok := paramUUID(c, "id")
		if !ok {
			return
		}

		// the note is optional, so is the body
		var req RejectSubmissionRequest
		if c.Request.ContentLength != 0 {
			if !bindJSON(c, v, &req) {
				return
			}
		}

		outcome, err := engine.RejectSubmission(c.Request.Context(), id, adminID, req.Note)
		if err != nil {
			respondError(c, logger, err)
			return
		}

		c.JSON(http.StatusOK, outcome.Submission.ToResponse())
	}
}

// AdjustAccount applies an administrative points and badge correction
func AdjustAccount(engine *progression.Engine, v *validation.Validator, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		adminID, ok := authUserID(c)
		if !ok {
			return
		}
		accountID, ok := paramUUID(c, "id")
		if !ok {
			return
		}

		var req AdjustAccountRequest
		if !bindJSON(c, v, &req) {
			return
		}

		tr, err := engine.AdjustAccount(c.Request.Context(), accountID, progression.Adjustment{
			PointsDelta:    req.PointsDelta,
			Badges:         req.Badges,
			Reason:         req.Reason,
			IdempotencyKey: c.GetHeader(IdempotencyHeader),
		}, adminID)
		if err != nil {
			respondError(c, logger, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"applied": tr.Applied,
			"account": accountResponse(tr.After),
		})
	}
}

// SendReminder queues a reminder notification for an account
func SendReminder(engine *progression.Engine, v *validation.Validator, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ReminderRequest
		if !bindJSON(c, v, &req) {
			return
		}

		if err := engine.Remind(c.Request.Context(), req.AccountID, req.Message); err != nil {
			respondError(c, logger, err)
			return
		}

		c.JSON(http.StatusAccepted, gin.H{"message": "Reminder queued"})
	}
}
