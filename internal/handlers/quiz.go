package handlers

import (
	"net/http"

	"github.com/JunoAX/greenquest-go/internal/models"
	"github.com/JunoAX/greenquest-go/internal/progression"
	"github.com/JunoAX/greenquest-go/internal/validation"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// IdempotencyHeader lets clients retry a crediting request without double counting
const IdempotencyHeader = "Idempotency-Key"

type quizSubmission struct {
	Answers []models.QuizAnswer `json:"answers" validate:"dive"`
}

type QuizSubmitResponse struct {
	progression.QuizResult
	PointsEarned int      `json:"points_earned"`
	NewLevel     int      `json:"new_level"`
	NewBadges    []string `json:"new_badges"`
	Awarded      bool     `json:"awarded"`
}

// GetQuizQuestions returns questions without their answer key
func GetQuizQuestions(catalog progression.Catalog, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, ok := queryLimit(c)
		if !ok {
			return
		}

		questions, err := catalog.Questions(c.Request.Context(), c.Query("category"), limit)
		if err != nil {
			respondError(c, logger, err)
			return
		}

		response := make([]models.QuizQuestionResponse, 0, len(questions))
		for i := range questions {
			response = append(response, questions[i].ToResponse())
		}

		c.JSON(http.StatusOK, response)
	}
}

// SubmitQuiz scores a bare JSON array of answers and credits the score once per
// Idempotency-Key
func SubmitQuiz(engine *progression.Engine, v *validation.Validator, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := authUserID(c)
		if !ok {
			return
		}

		var req quizSubmission
		if !decodeJSON(c, &req.Answers) || !validateRequest(c, v, &req) {
			return
		}

		outcome, err := engine.SubmitQuiz(c.Request.Context(), userID, req.Answers, c.GetHeader(IdempotencyHeader))
		if err != nil {
			respondError(c, logger, err)
			return
		}

		response := QuizSubmitResponse{
			QuizResult:   outcome.Result,
			PointsEarned: outcome.Progress.PointsEarned(),
			NewBadges:    []string{},
			Awarded:      outcome.Progress.Record.Awarded,
		}
		if tr := outcome.Progress.Transition; tr != nil {
			response.NewLevel = tr.After.Level
			response.NewBadges = append(response.NewBadges, tr.NewBadges...)
		}
		c.JSON(http.StatusOK, response)
	}
}
