package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/JunoAX/greenquest-go/internal/auth"
	"github.com/JunoAX/greenquest-go/internal/models"
	"github.com/JunoAX/greenquest-go/internal/progression"
	"github.com/JunoAX/greenquest-go/internal/validation"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthSettings are the credential rules applied at registration
type AuthSettings struct {
	BcryptCost        int
	PasswordMinLength int
	IsAdminEmail      func(email string) bool
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required,notblank,max=50"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type TokenResponse struct {
	AccessToken string                 `json:"access_token"`
	TokenType   string                 `json:"token_type"`
	ExpiresIn   int64                  `json:"expires_in"`
	User        models.AccountResponse `json:"user"`
}

func accountResponse(a *models.Account) models.AccountResponse {
	return a.ToResponse(progression.LevelProgress(a.Points))
}

func issueToken(c *gin.Context, jwtService *auth.JWTService, logger *zap.Logger, account *models.Account, status int) {
	token, err := jwtService.GenerateToken(account.ID, account.Username, account.IsAdmin)
	if err != nil {
		respondError(c, logger, fmt.Errorf("generate token: %w", err))
		return
	}
	c.JSON(status, TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(jwtService.TTL().Seconds()),
		User:        accountResponse(account),
	})
}

// Register creates an account at zero points and returns a token for it
func Register(engine *progression.Engine, jwtService *auth.JWTService, v *validation.Validator, settings AuthSettings, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest
		if !bindJSON(c, v, &req) {
			return
		}
		if len(req.Password) < settings.PasswordMinLength {
			c.JSON(http.StatusBadRequest, gin.H{
				"detail": "Validation failed",
				"code":   progression.ErrInvalidInput.Code,
				"fields": gin.H{"password": fmt.Sprintf("password must be at least %d characters in length", settings.PasswordMinLength)},
			})
			return
		}

		hash, err := auth.HashPassword(req.Password, settings.BcryptCost)
		if err != nil {
			respondError(c, logger, fmt.Errorf("hash password: %w", err))
			return
		}

		isAdmin := settings.IsAdminEmail != nil && settings.IsAdminEmail(req.Email)
		account, err := engine.Register(c.Request.Context(), progression.NewAccount{
			Username:     req.Username,
			Email:        req.Email,
			PasswordHash: hash,
			IsAdmin:      isAdmin,
		})
		if err != nil {
			respondError(c, logger, err)
			return
		}

		issueToken(c, jwtService, logger, account, http.StatusCreated)
	}
}

// Login authenticates by email and password and returns a JWT token
func Login(engine *progression.Engine, jwtService *auth.JWTService, v *validation.Validator, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if !bindJSON(c, v, &req) {
			return
		}

		account, err := engine.AccountByEmail(c.Request.Context(), req.Email)
		if err != nil {
			if errors.Is(err, progression.ErrAccountNotFound) {
				respondError(c, logger, progression.ErrInvalidCredentials)
				return
			}
			respondError(c, logger, err)
			return
		}

		// Deactivated accounts look exactly like unknown ones
		if account.DeactivatedAt != nil || account.PasswordHash == "" {
			respondError(c, logger, progression.ErrInvalidCredentials)
			return
		}
		if err := auth.CheckPassword(account.PasswordHash, req.Password); err != nil {
			respondError(c, logger, progression.ErrInvalidCredentials)
			return
		}

		issueToken(c, jwtService, logger, account, http.StatusOK)
	}
}

// Me returns the caller's account with level progress
func Me(engine *progression.Engine, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := authUserID(c)
		if !ok {
			return
		}

		account, err := engine.Account(c.Request.Context(), userID)
		if err != nil {
			respondError(c, logger, err)
			return
		}

		c.JSON(http.StatusOK, accountResponse(account))
	}
}
