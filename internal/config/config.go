// Package config loads service settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "GREENQUEST"

// devJWTSecret is only accepted outside production
const devJWTSecret = "greenquest-dev-secret-change-me"

type Config struct {
	Env           string
	Server        ServerConfig
	Store         StoreConfig
	Auth          AuthConfig
	Proofs        ProofConfig
	Redis         RedisConfig
	Catalog       CatalogConfig
	Challenges    ChallengeConfig
	Notifications NotificationConfig
	Leaderboard   LeaderboardConfig
}

type ServerConfig struct {
	Port            string
	ShutdownTimeout time.Duration
	CORSOrigins     []string
}

type StoreConfig struct {
	Driver      string // postgres or memory
	DatabaseURL string
	AutoMigrate bool
	MaxRetries  uint64
	MaxConns    int32
}

type AuthConfig struct {
	JWTSecret         string
	Issuer            string
	TokenTTL          time.Duration
	BcryptCost        int
	PasswordMinLength int
	AdminEmails       []string
}

type ProofConfig struct {
	Driver              string // cloudinary or memory
	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	Folder              string
	MaxBytes            int
}

type RedisConfig struct {
	URL     string
	Channel string
}

type CatalogConfig struct {
	Path string
}

type ChallengeConfig struct {
	AutoApprove bool
}

type NotificationConfig struct {
	Workers    int
	QueueSize  int
	MaxRetries uint64
}

type LeaderboardConfig struct {
	DefaultLimit int
	MaxLimit     int
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.cors_origins", "*")

	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.auto_migrate", true)
	v.SetDefault("store.max_retries", 3)
	v.SetDefault("store.max_conns", 25)

	v.SetDefault("auth.issuer", "greenquest")
	v.SetDefault("auth.token_ttl", 30*24*time.Hour)
	v.SetDefault("auth.bcrypt_cost", 10)
	v.SetDefault("auth.password_min_length", 6)
	v.SetDefault("auth.admin_emails", "")

	v.SetDefault("proofs.driver", "cloudinary")
	v.SetDefault("proofs.folder", "greenquest/proofs")
	v.SetDefault("proofs.max_bytes", 5<<20)

	v.SetDefault("redis.channel", "greenquest:notifications")

	v.SetDefault("challenges.auto_approve", false)

	v.SetDefault("notifications.workers", 4)
	v.SetDefault("notifications.queue_size", 256)
	v.SetDefault("notifications.max_retries", 5)

	v.SetDefault("leaderboard.default_limit", 10)
	v.SetDefault("leaderboard.max_limit", 100)
}

// Load reads .env (if present) and the environment into a Config
func Load() (*Config, error) {
	// load .env if it exists (ignore if it does not)
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("config.godotenv(.env): %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("config.os.Stat(.env): %w", err)
	}

	v := viper.New()
	v.SetTypeByDefaultValue(true)
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// common platform variables are honoured without the prefix
	_ = v.BindEnv("env", envPrefix+"_ENV", "GO_ENV")
	_ = v.BindEnv("server.port", envPrefix+"_SERVER_PORT", "PORT")
	_ = v.BindEnv("store.database_url", envPrefix+"_STORE_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("redis.url", envPrefix+"_REDIS_URL", "REDIS_URL")
	_ = v.BindEnv("proofs.cloudinary_cloud_name", envPrefix+"_PROOFS_CLOUDINARY_CLOUD_NAME", "CLOUDINARY_CLOUD_NAME")
	_ = v.BindEnv("proofs.cloudinary_api_key", envPrefix+"_PROOFS_CLOUDINARY_API_KEY", "CLOUDINARY_API_KEY")
	_ = v.BindEnv("proofs.cloudinary_api_secret", envPrefix+"_PROOFS_CLOUDINARY_API_SECRET", "CLOUDINARY_API_SECRET")
	_ = v.BindEnv("auth.jwt_secret", envPrefix+"_AUTH_JWT_SECRET", "JWT_SECRET")

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{
		Env: strings.ToLower(v.GetString("env")),
		Server: ServerConfig{
			Port:            v.GetString("server.port"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
			CORSOrigins:     splitList(v.GetString("server.cors_origins")),
		},
		Store: StoreConfig{
			Driver:      strings.ToLower(v.GetString("store.driver")),
			DatabaseURL: v.GetString("store.database_url"),
			AutoMigrate: v.GetBool("store.auto_migrate"),
			MaxRetries:  v.GetUint64("store.max_retries"),
			MaxConns:    v.GetInt32("store.max_conns"),
		},
		Auth: AuthConfig{
			JWTSecret:         v.GetString("auth.jwt_secret"),
			Issuer:            v.GetString("auth.issuer"),
			TokenTTL:          v.GetDuration("auth.token_ttl"),
			BcryptCost:        v.GetInt("auth.bcrypt_cost"),
			PasswordMinLength: v.GetInt("auth.password_min_length"),
			AdminEmails:       splitList(strings.ToLower(v.GetString("auth.admin_emails"))),
		},
		Proofs: ProofConfig{
			Driver:              strings.ToLower(v.GetString("proofs.driver")),
			CloudinaryCloudName: v.GetString("proofs.cloudinary_cloud_name"),
			CloudinaryAPIKey:    v.GetString("proofs.cloudinary_api_key"),
			CloudinaryAPISecret: v.GetString("proofs.cloudinary_api_secret"),
			Folder:              v.GetString("proofs.folder"),
			MaxBytes:            v.GetInt("proofs.max_bytes"),
		},
		Redis: RedisConfig{
			URL:     v.GetString("redis.url"),
			Channel: v.GetString("redis.channel"),
		},
		Catalog: CatalogConfig{
			Path: v.GetString("catalog.path"),
		},
		Challenges: ChallengeConfig{
			AutoApprove: v.GetBool("challenges.auto_approve"),
		},
		Notifications: NotificationConfig{
			Workers:    v.GetInt("notifications.workers"),
			QueueSize:  v.GetInt("notifications.queue_size"),
			MaxRetries: v.GetUint64("notifications.max_retries"),
		},
		Leaderboard: LeaderboardConfig{
			DefaultLimit: v.GetInt("leaderboard.default_limit"),
			MaxLimit:     v.GetInt("leaderboard.max_limit"),
		},
	}
	if cfg.Auth.JWTSecret == "" && !cfg.IsProduction() {
		cfg.Auth.JWTSecret = devJWTSecret
	}
	return cfg
}

// Validate rejects settings the service cannot start with
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case "memory":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, errors.New("store.database_url is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}

	switch c.Proofs.Driver {
	case "memory":
	case "cloudinary":
		if c.Proofs.CloudinaryCloudName == "" || c.Proofs.CloudinaryAPIKey == "" || c.Proofs.CloudinaryAPISecret == "" {
			errs = append(errs, errors.New("cloudinary credentials are required for the cloudinary proof driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown proof driver %q", c.Proofs.Driver))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required in production"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("auth.token_ttl must be positive"))
	}
	if c.Auth.PasswordMinLength < 1 {
		errs = append(errs, errors.New("auth.password_min_length must be at least 1"))
	}

	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// IsAdminEmail reports whether accounts registered with this email get admin rights
func (c *Config) IsAdminEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, e := range c.Auth.AdminEmails {
		if e == email {
			return true
		}
	}
	return false
}

func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
