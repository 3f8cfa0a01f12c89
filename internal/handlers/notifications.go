package handlers

import (
	"net/http"
	"slices"

	"github.com/JunoAX/greenquest-go/internal/models"
	"github.com/JunoAX/greenquest-go/internal/notify"
	"github.com/JunoAX/greenquest-go/internal/progression"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// GetNotifications returns the caller's newest notifications
func GetNotifications(engine *progression.Engine, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := authUserID(c)
		if !ok {
			return
		}
		limit, ok := queryLimit(c)
		if !ok {
			return
		}

		notifications, err := engine.Notifications.List(c.Request.Context(), userID, limit)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		if notifications == nil {
			notifications = []models.Notification{}
		}

		c.JSON(http.StatusOK, notifications)
	}
}

// MarkNotificationRead marks one of the caller's notifications as read
func MarkNotificationRead(engine *progression.Engine, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := authUserID(c)
		if !ok {
			return
		}
		id, ok := paramUUID(c, "id")
		if !ok {
			return
		}

		n, err := engine.Notifications.MarkRead(c.Request.Context(), userID, id)
		if err != nil {
			respondError(c, logger, err)
			return
		}

		c.JSON(http.StatusOK, n)
	}
}

// NewUpgrader accepts websocket upgrades from the allowed origins; "*" allows any
func NewUpgrader(allowedOrigins []string) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || slices.Contains(allowedOrigins, "*") {
				return true
			}
			return slices.Contains(allowedOrigins, origin)
		},
	}
}

// StreamNotifications upgrades to a websocket and pushes the caller's
// notifications as they are persisted
func StreamNotifications(hub *notify.Hub, upgrader *websocket.Upgrader, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := authUserID(c)
		if !ok {
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade has already written the HTTP error
			logger.Warn("Websocket upgrade failed",
				zap.String("account_id", userID.String()),
				zap.Error(err))
			return
		}

		logger.Debug("Notification stream opened", zap.String("account_id", userID.String()))
		hub.Serve(c.Request.Context(), conn, userID)
		logger.Debug("Notification stream closed", zap.String("account_id", userID.String()))
	}
}
