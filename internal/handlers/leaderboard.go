package handlers

import (
	"net/http"

	"github.com/JunoAX/greenquest-go/internal/progression"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GetLeaderboard returns the points leaderboard
func GetLeaderboard(engine *progression.Engine, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, ok := queryLimit(c)
		if !ok {
			return
		}

		leaderboard, err := engine.Leaderboard.Rank(c.Request.Context(), limit)
		if err != nil {
			respondError(c, logger, err)
			return
		}

		c.JSON(http.StatusOK, leaderboard)
	}
}
