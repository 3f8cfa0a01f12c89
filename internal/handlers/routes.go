package handlers

import (
	"github.com/JunoAX/greenquest-go/internal/auth"
	"github.com/JunoAX/greenquest-go/internal/middleware"
	"github.com/JunoAX/greenquest-go/internal/notify"
	"github.com/JunoAX/greenquest-go/internal/progression"
	"github.com/JunoAX/greenquest-go/internal/validation"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Dependencies is everything the API routes need
type Dependencies struct {
	Engine         *progression.Engine
	Catalog        progression.Catalog
	JWT            *auth.JWTService
	Validator      *validation.Validator
	Hub            *notify.Hub
	Auth           AuthSettings
	AllowedOrigins []string
	MaxProofBytes  int
	Version        string
	HealthChecks   map[string]HealthCheck
	Logger         *zap.Logger
}

// RegisterRoutes mounts /health and the /api tree on r
func RegisterRoutes(r *gin.Engine, d Dependencies) {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if d.Validator == nil {
		d.Validator = validation.New()
	}

	r.GET("/health", Health(d.Version, d.HealthChecks))

	api := r.Group("/api")

	// Public routes
	api.GET("/version", func(c *gin.Context) {
		c.JSON(200, gin.H{"version": d.Version, "service": "greenquest-go"})
	})
	api.POST("/auth/register", Register(d.Engine, d.JWT, d.Validator, d.Auth, logger))
	api.POST("/auth/login", Login(d.Engine, d.JWT, d.Validator, logger))

	// The websocket feed authenticates from the query string
	api.GET("/notifications/stream", middleware.RequireStreamAuth(d.JWT),
		StreamNotifications(d.Hub, NewUpgrader(d.AllowedOrigins), logger))

	// Protected routes
	protected := api.Group("")
	protected.Use(middleware.RequireAuth(d.JWT))
	{
		protected.GET("/auth/me", Me(d.Engine, logger))

		protected.GET("/notifications", GetNotifications(d.Engine, logger))
		protected.PUT("/notifications/:id/read", MarkNotificationRead(d.Engine, logger))

		protected.GET("/challenges", GetChallenges(d.Engine, logger))
		protected.POST("/challenges/submit-proof", SubmitChallengeProof(d.Engine, d.Validator, d.MaxProofBytes, logger))

		protected.GET("/quiz/questions", GetQuizQuestions(d.Catalog, logger))
		protected.POST("/quiz/submit", SubmitQuiz(d.Engine, d.Validator, logger))

		protected.POST("/game-progress", RecordGameProgress(d.Engine, d.Validator, logger))
		protected.GET("/game-progress", GetGameProgress(d.Engine, logger))

		protected.GET("/leaderboard", GetLeaderboard(d.Engine, logger))
	}

	// Admin routes
	admin := protected.Group("/admin")
	admin.Use(middleware.RequireAdmin())
	{
		admin.GET("/submissions", ListSubmissions(d.Engine, logger))
		admin.POST("/submissions/:id/approve", ApproveSubmission(d.Engine, logger))
		admin.POST("/submissions/:id/reject", RejectSubmission(d.Engine, d.Validator, logger))
		admin.POST("/accounts/:id/adjust", AdjustAccount(d.Engine, d.Validator, logger))
		admin.POST("/reminders", SendReminder(d.Engine, d.Validator, logger))
	}
}
