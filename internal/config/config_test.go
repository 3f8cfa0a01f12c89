package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setMemoryDrivers(t *testing.T) {
	t.Helper()
	t.Setenv("GREENQUEST_STORE_DRIVER", "memory")
	t.Setenv("GREENQUEST_PROOFS_DRIVER", "memory")
}

func TestLoadDefaults(t *testing.T) {
	setMemoryDrivers(t)
	t.Setenv("GO_ENV", "")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("PORT", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, devJWTSecret, cfg.Auth.JWTSecret)
	assert.Equal(t, 30*24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 6, cfg.Auth.PasswordMinLength)
	assert.Equal(t, 5<<20, cfg.Proofs.MaxBytes)
	assert.Equal(t, 10, cfg.Leaderboard.DefaultLimit)
	assert.Equal(t, 100, cfg.Leaderboard.MaxLimit)
	assert.False(t, cfg.Challenges.AutoApprove)
	assert.Empty(t, cfg.Auth.AdminEmails)
}

func TestLoadFromEnvironment(t *testing.T) {
	setMemoryDrivers(t)
	t.Setenv("PORT", "9090")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("GREENQUEST_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("GREENQUEST_AUTH_ADMIN_EMAILS", "Mentor@School.org")
	t.Setenv("GREENQUEST_CHALLENGES_AUTO_APPROVE", "true")
	t.Setenv("GREENQUEST_LEADERBOARD_MAX_LIMIT", "50")
	t.Setenv("GREENQUEST_NOTIFICATIONS_WORKERS", "2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.True(t, cfg.Challenges.AutoApprove)
	assert.Equal(t, 50, cfg.Leaderboard.MaxLimit)
	assert.Equal(t, 2, cfg.Notifications.Workers)
	assert.True(t, cfg.IsAdminEmail(" mentor@school.org "))
	assert.False(t, cfg.IsAdminEmail("student@school.org"))
}

func TestLoadProductionRequiresSecret(t *testing.T) {
	setMemoryDrivers(t)
	t.Setenv("GO_ENV", "production")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.ErrorContains(t, err, "auth.jwt_secret is required")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Store:  StoreConfig{Driver: "memory"},
			Proofs: ProofConfig{Driver: "memory"},
			Auth:   AuthConfig{JWTSecret: "s", TokenTTL: time.Hour, PasswordMinLength: 6},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"postgres without url", func(c *Config) { c.Store.Driver = "postgres" }, "store.database_url is required"},
		{"unknown store", func(c *Config) { c.Store.Driver = "sqlite" }, `unknown store driver "sqlite"`},
		{"cloudinary without credentials", func(c *Config) { c.Proofs.Driver = "cloudinary" }, "cloudinary credentials are required"},
		{"unknown proof driver", func(c *Config) { c.Proofs.Driver = "s3" }, `unknown proof driver "s3"`},
		{"zero ttl", func(c *Config) { c.Auth.TokenTTL = 0 }, "auth.token_ttl must be positive"},
		{"zero password length", func(c *Config) { c.Auth.PasswordMinLength = 0 }, "password_min_length"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{}, splitList(""))
	assert.Equal(t, []string{"a", "b"}, splitList(" a, ,b ,"))
}
