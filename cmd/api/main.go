package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/atkt1/rzgateway/internal/auth"
	"github.com/atkt1/rzgateway/internal/background"
	"github.com/atkt1/rzgateway/internal/config"
	"github.com/atkt1/rzgateway/internal/database"
	"github.com/atkt1/rzgateway/internal/handlers"
	"github.com/atkt1/rzgateway/internal/identity"
	middlewareCustom "github.com/atkt1/rzgateway/internal/middleware"
	"github.com/atkt1/rzgateway/internal/repositories"
	"github.com/atkt1/rzgateway/internal/routes"
	"github.com/atkt1/rzgateway/internal/services"
	pkghttp "github.com/atkt1/rzgateway/pkg/http"
	pkglogger "github.com/atkt1/rzgateway/pkg/logger"
)

// attemptWindowStore bundles a configured store backend with its health
// check and shutdown hooks. sweepRepo is nil for backends that expire
// entries themselves.
type attemptWindowStore struct {
	repo        services.AttemptWindowRepository
	sweepRepo   background.ExpiredWindowDeleter
	healthCheck func(ctx context.Context) error
	close       func()
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("limiter_store", cfg.Limiter.StoreDriver),
		slog.String("identity_mode", cfg.Identity.Mode))

	// Initialize the attempt window store for the configured driver
	store, err := newAttemptWindowStore(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize attempt window store", slog.Any("error", err))
		os.Exit(1)
	}
	defer store.close()

	// Initialize the identity backend
	authenticator, err := newAuthenticator(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize identity backend", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize token manager
	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.SessionExpiry)

	// Initialize security services
	auditLogger := pkglogger.NewAuditLogger(logger)
	failureDelay := auth.NewUniformDelay(cfg.Auth.MinFailureDelay, cfg.Auth.FailureJitter)

	// Attempt limiter
	limiterConfig := services.AttemptLimitConfig{
		MaxAttempts:    cfg.Limiter.MaxAttempts,
		WindowDuration: cfg.Limiter.WindowDuration,
		BlockDuration:  cfg.Limiter.BlockDuration,
	}
	limiter := services.NewAttemptLimitService(store.repo, limiterConfig, logger)

	// Sign-in service
	signInService := services.NewSignInService(limiter, authenticator, tokenManager, failureDelay, logger, auditLogger)

	// Initialize handlers
	cookieConfig := auth.CookieConfig{
		Domain:   cfg.Auth.CookieDomain,
		Secure:   cfg.Auth.CookieSecure,
		SameSite: cfg.Auth.CookieSameSite,
	}
	ipConfig := pkghttp.NewIPConfig(cfg.Server.TrustedProxies)
	authHandler := handlers.NewAuthHandler(signInService, cookieConfig, ipConfig)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(auth.EnsureClientID(cookieConfig))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, authHandler, tokenManager)

	// Health check with the limiter store
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := store.healthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","store":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","store":"up"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start the window sweeper for stores that need one
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()

	var sweeper *background.WindowSweeper
	if store.sweepRepo != nil {
		sweeper = background.NewWindowSweeper(store.sweepRepo, logger, cfg.Limiter.SweepInterval)
		go sweeper.Start(sweepCtx)
	}

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	sweepCancel()
	if sweeper != nil {
		sweeper.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// newAttemptWindowStore builds the attempt window repository for the
// configured LIMITER_STORE driver.
func newAttemptWindowStore(cfg *config.Config, logger *slog.Logger) (*attemptWindowStore, error) {
	switch cfg.Limiter.StoreDriver {
	case config.StoreDriverPostgres:
		db, err := database.NewConnection(&cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		repo := repositories.NewAttemptWindowRepository(db)
		return &attemptWindowStore{
			repo:        repo,
			sweepRepo:   repo,
			healthCheck: db.HealthCheck,
			close:       db.Close,
		}, nil

	case config.StoreDriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}

		repo := repositories.NewRedisAttemptWindowRepository(client)
		return &attemptWindowStore{
			repo:        repo,
			healthCheck: repo.HealthCheck,
			close: func() {
				if err := client.Close(); err != nil {
					logger.Warn("failed to close redis client", slog.Any("error", err))
				}
			},
		}, nil

	case config.StoreDriverMemory:
		repo := repositories.NewMemoryAttemptWindowRepository()
		return &attemptWindowStore{
			repo:        repo,
			sweepRepo:   repo,
			healthCheck: repo.HealthCheck,
			close:       func() {},
		}, nil

	default:
		return nil, fmt.Errorf("unknown limiter store driver: %s", cfg.Limiter.StoreDriver)
	}
}

// newAuthenticator builds the identity backend for the configured
// IDENTITY_MODE.
func newAuthenticator(cfg *config.Config, logger *slog.Logger) (services.Authenticator, error) {
	switch cfg.Identity.Mode {
	case config.IdentityModeUpstream:
		return identity.NewClient(cfg.Identity.UpstreamURL, cfg.Identity.RequestTimeout, logger), nil
	case config.IdentityModeStatic:
		return identity.NewStaticAuthenticator(cfg.Identity.StaticEmail, cfg.Identity.StaticPasswordHash), nil
	default:
		return nil, fmt.Errorf("unknown identity mode: %s", cfg.Identity.Mode)
	}
}
