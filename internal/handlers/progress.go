package handlers

import (
	"net/http"

	"github.com/JunoAX/greenquest-go/internal/models"
	"github.com/JunoAX/greenquest-go/internal/progression"
	"github.com/JunoAX/greenquest-go/internal/validation"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type GameProgressRequest struct {
	GameType     models.GameType `json:"game_type" validate:"required,oneof=quiz waste_sorting energy_saving"`
	Level        int             `json:"level" validate:"min=1"`
	Score        int             `json:"score" validate:"min=0"`
	Completed    bool            `json:"completed"`
	SessionToken string          `json:"session_token" validate:"omitempty,max=128"`
}

type GameProgressResponse struct {
	Message      string                    `json:"message"`
	Record       models.GameProgressRecord `json:"record"`
	PointsEarned int                       `json:"points_earned"`
	NewLevel     int                       `json:"new_level"`
	NewBadges    []string                  `json:"new_badges"`
}

// RecordGameProgress appends a game session and credits completed ones
func RecordGameProgress(engine *progression.Engine, v *validation.Validator, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := authUserID(c)
		if !ok {
			return
		}

		var req GameProgressRequest
		if !bindJSON(c, v, &req) {
			return
		}
		token := req.SessionToken
		if token == "" {
			token = c.GetHeader(IdempotencyHeader)
		}

		outcome, err := engine.RecordProgress(c.Request.Context(), userID, progression.ProgressInput{
			GameType:     req.GameType,
			Level:        req.Level,
			Score:        req.Score,
			Completed:    req.Completed,
			SessionToken: token,
		})
		if err != nil {
			respondError(c, logger, err)
			return
		}

		response := GameProgressResponse{
			Message:      "Progress saved",
			Record:       outcome.Record,
			PointsEarned: outcome.PointsEarned(),
			NewBadges:    []string{},
		}
		if tr := outcome.Transition; tr != nil {
			response.NewLevel = tr.After.Level
			response.NewBadges = append(response.NewBadges, tr.NewBadges...)
		} else if account, err := engine.Account(c.Request.Context(), userID); err == nil {
			response.NewLevel = account.Level
		}

		c.JSON(http.StatusCreated, response)
	}
}

// GetGameProgress returns the caller's session log, newest first
func GetGameProgress(engine *progression.Engine, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := authUserID(c)
		if !ok {
			return
		}

		records, err := engine.Progress.List(c.Request.Context(), userID)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		if records == nil {
			records = []models.GameProgressRecord{}
		}

		c.JSON(http.StatusOK, records)
	}
}
