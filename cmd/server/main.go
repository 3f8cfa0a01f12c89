package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/JunoAX/greenquest-go/internal/auth"
	"github.com/JunoAX/greenquest-go/internal/catalog"
	"github.com/JunoAX/greenquest-go/internal/config"
	"github.com/JunoAX/greenquest-go/internal/database"
	"github.com/JunoAX/greenquest-go/internal/handlers"
	"github.com/JunoAX/greenquest-go/internal/middleware"
	"github.com/JunoAX/greenquest-go/internal/notify"
	"github.com/JunoAX/greenquest-go/internal/progression"
	"github.com/JunoAX/greenquest-go/internal/repository"
	"github.com/JunoAX/greenquest-go/internal/storage"
	"github.com/JunoAX/greenquest-go/internal/validation"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var Version = "dev"

func main() {
	logger, err := initLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(logger); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Info("Starting greenquest-go",
		zap.String("version", Version),
		zap.String("env", cfg.Env),
		zap.String("store", cfg.Store.Driver),
		zap.String("proofs", cfg.Proofs.Driver))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checks := map[string]handlers.HealthCheck{}

	// Storage
	var store progression.Store
	switch cfg.Store.Driver {
	case "memory":
		logger.Warn("Using in-memory store; data is lost on restart")
		store = repository.NewMemoryStore()
	default:
		if cfg.Store.AutoMigrate {
			if err := database.Migrate(cfg.Store.DatabaseURL, logger.Named("migrate")); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
		}
		poolCfg := database.DefaultPoolConfig()
		if cfg.Store.MaxConns > 0 {
			poolCfg.MaxConns = cfg.Store.MaxConns
		}
		db, err := database.Open(ctx, cfg.Store.DatabaseURL, poolCfg, logger.Named("database"))
		if err != nil {
			return err
		}
		defer db.Close()
		store = repository.NewPostgresStore(db.Pool(), cfg.Store.MaxRetries, logger.Named("repository"))
	}
	checks["store"] = store.Health

	// Catalog
	var cat *catalog.Catalog
	if cfg.Catalog.Path != "" {
		cat, err = catalog.Load(cfg.Catalog.Path)
	} else {
		cat, err = catalog.Default()
	}
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	// Proof photos
	var proofs progression.ProofStore
	switch cfg.Proofs.Driver {
	case "memory":
		proofs = storage.NewMemoryStore()
	default:
		proofs, err = storage.NewCloudinaryStore(storage.CloudinaryConfig{
			CloudName: cfg.Proofs.CloudinaryCloudName,
			APIKey:    cfg.Proofs.CloudinaryAPIKey,
			APISecret: cfg.Proofs.CloudinaryAPISecret,
			Folder:    cfg.Proofs.Folder,
		}, logger.Named("proofs"))
		if err != nil {
			return fmt.Errorf("init proof store: %w", err)
		}
	}

	// Live notifications: local hub, optionally fanned out across instances through Redis
	hub := notify.NewHub(logger.Named("hub"))
	var broadcaster progression.Broadcaster = hub
	if cfg.Redis.URL != "" {
		relay, err := notify.NewRedisRelay(cfg.Redis.URL, cfg.Redis.Channel, hub, logger.Named("relay"))
		if err != nil {
			return err
		}
		defer relay.Close()
		go func() {
			if err := relay.Run(ctx); err != nil {
				logger.Error("Notification relay stopped", zap.Error(err))
			}
		}()
		broadcaster = relay
		checks["redis"] = relay.Health
	}

	emitterCfg := progression.DefaultEmitterConfig()
	if cfg.Notifications.Workers > 0 {
		emitterCfg.Workers = cfg.Notifications.Workers
	}
	if cfg.Notifications.QueueSize > 0 {
		emitterCfg.QueueSize = cfg.Notifications.QueueSize
	}
	if cfg.Notifications.MaxRetries > 0 {
		emitterCfg.MaxRetries = cfg.Notifications.MaxRetries
	}

	engine := progression.NewEngine(store, cat, proofs, broadcaster, progression.Options{
		AutoApprove:      cfg.Challenges.AutoApprove,
		MaxProofBytes:    cfg.Proofs.MaxBytes,
		LeaderboardLimit: cfg.Leaderboard.DefaultLimit,
		LeaderboardMax:   cfg.Leaderboard.MaxLimit,
		Emitter:          emitterCfg,
	}, logger.Named("engine"))

	// HTTP
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logger(logger.Named("http")), middleware.Recovery(logger))
	r.Use(cors.New(corsConfig(cfg.Server.CORSOrigins)))

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "GreenQuest API",
			"version": Version,
		})
	})

	handlers.RegisterRoutes(r, handlers.Dependencies{
		Engine:    engine,
		Catalog:   cat,
		JWT:       auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL),
		Validator: validation.New(),
		Hub:       hub,
		Auth: handlers.AuthSettings{
			BcryptCost:        cfg.Auth.BcryptCost,
			PasswordMinLength: cfg.Auth.PasswordMinLength,
			IsAdminEmail:      cfg.IsAdminEmail,
		},
		AllowedOrigins: cfg.Server.CORSOrigins,
		MaxProofBytes:  cfg.Proofs.MaxBytes,
		Version:        Version,
		HealthChecks:   checks,
		Logger:         logger.Named("api"),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Graceful shutdown
	select {
	case err := <-serverErr:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}
	logger.Info("Server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	// drain queued notifications before the store goes away
	if err := engine.Close(shutdownCtx); err != nil {
		logger.Warn("Notification queue not drained", zap.Error(err))
	}

	logger.Info("Server exited")
	return nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", handlers.IdempotencyHeader, "X-Request-ID"},
		ExposeHeaders: []string{"Content-Length", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

// initLogger initializes the structured logger based on environment
func initLogger() (*zap.Logger, error) {
	env := os.Getenv("GO_ENV")
	var zapCfg zap.Config

	switch env {
	case "production":
		zapCfg = zap.NewProductionConfig()
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "staging":
		zapCfg = zap.NewProductionConfig()
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	default:
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}
