package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/JunoAX/greenquest-go/internal/middleware"
	"github.com/JunoAX/greenquest-go/internal/progression"
	"github.com/JunoAX/greenquest-go/internal/validation"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// respondError writes the {"detail","code"} error body for err. Engine errors
// carry their own status; anything else is an internal error and is logged.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	if appErr, ok := progression.AsError(err); ok {
		status := appErr.HTTPStatus()
		if status >= http.StatusInternalServerError {
			logger.Error("Request failed upstream",
				zap.String("request_id", middleware.GetRequestID(c)),
				zap.String("code", appErr.Code),
				zap.Error(err))
		}
		c.AbortWithStatusJSON(status, gin.H{"detail": appErr.Message, "code": appErr.Code})
		return
	}

	logger.Error("Unhandled error",
		zap.String("request_id", middleware.GetRequestID(c)),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err))
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error", "code": "internal_error"})
}

// bindJSON decodes the body into req and validates it. It writes the error
// response itself and reports whether the handler should continue.
func bindJSON(c *gin.Context, v *validation.Validator, req any) bool {
	return decodeJSON(c, req) && validateRequest(c, v, req)
}

func decodeJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		detail := "Invalid JSON body"
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		var sizeErr *http.MaxBytesError
		switch {
		case errors.As(err, &sizeErr):
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"detail": "Request body exceeds " + strconv.FormatInt(sizeErr.Limit, 10) + " bytes",
				"code":   "payload_too_large",
			})
			return false
		case errors.Is(err, io.EOF):
			detail = "Request body is required"
		case errors.As(err, &syntaxErr):
			detail = "Malformed JSON at offset " + strconv.FormatInt(syntaxErr.Offset, 10)
		case errors.As(err, &typeErr):
			detail = "Field " + typeErr.Field + " has the wrong type"
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"detail": detail, "code": progression.ErrInvalidInput.Code})
		return false
	}
	return true
}

func validateRequest(c *gin.Context, v *validation.Validator, req any) bool {
	if err := v.Struct(req); err != nil {
		fields := v.Fields(err)
		if fields == nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"detail": err.Error(), "code": progression.ErrInvalidInput.Code})
			return false
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"detail": "Validation failed",
			"code":   progression.ErrInvalidInput.Code,
			"fields": fields,
		})
		return false
	}
	return true
}

// authUserID returns the caller's id; RequireAuth guarantees it on protected routes
func authUserID(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := middleware.GetAuthUserID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Authentication required", "code": "AUTH_ERROR"})
		return uuid.Nil, false
	}
	return userID, true
}

// paramUUID parses a path parameter as a uuid
func paramUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"detail": "Invalid " + name + " format", "code": progression.ErrInvalidInput.Code})
		return uuid.Nil, false
	}
	return id, true
}

// queryLimit reads ?limit=N. Missing or non-positive values yield 0 so the
// engine default applies.
func queryLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"detail": "limit must be an integer", "code": progression.ErrInvalidInput.Code})
		return 0, false
	}
	return max(limit, 0), true
}
