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

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"
	"github.com/yukikurage/pinboard-api/internal/config"
	"github.com/yukikurage/pinboard-api/internal/database"
	"github.com/yukikurage/pinboard-api/internal/handlers"
	"github.com/yukikurage/pinboard-api/internal/identity"
	"github.com/yukikurage/pinboard-api/internal/logger"
	"github.com/yukikurage/pinboard-api/internal/metrics"
	"github.com/yukikurage/pinboard-api/internal/middleware"
	"github.com/yukikurage/pinboard-api/internal/password"
	"github.com/yukikurage/pinboard-api/internal/repository"
	"github.com/yukikurage/pinboard-api/internal/services"
	"github.com/yukikurage/pinboard-api/internal/token"
	"golang.org/x/crypto/bcrypt"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var addr string
	var migrateOnly bool

	flagSet := pflag.NewFlagSet("pinboard-server", pflag.ContinueOnError)
	flagSet.StringVar(&addr, "addr", "", "listen address (default \":$PORT\")")
	flagSet.BoolVar(&migrateOnly, "migrate-only", false, "run database migrations and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if addr == "" {
		addr = ":" + cfg.Port
	}

	log, err := logger.New(os.Stdout, cfg.LogLevel)
	if err != nil {
		return err
	}

	// Connect to database
	db, err := database.Connect(cfg, log)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	// Run migrations
	if err := database.Migrate(db, log); err != nil {
		return err
	}
	if migrateOnly {
		return nil
	}

	tokens, err := token.NewManager(cfg.JWT.Secret, cfg.JWT.TTL)
	if err != nil {
		return err
	}

	// Federated login stays off without a client id.
	var verifier services.IdentityVerifier
	if len(cfg.Google.ClientIDs) > 0 {
		keys := identity.NewKeySet(cfg.Google.CertsURL, nil, cfg.Google.CertsRefresh)
		google, err := identity.NewGoogleVerifier(keys, cfg.Google.ClientIDs, cfg.Google.Issuers)
		if err != nil {
			return err
		}
		verifier = google
	} else {
		log.Warn("GOOGLE_CLIENT_IDS not set, Google sign-in disabled")
	}

	// Initialize AI service
	var aiService *services.AIService
	if cfg.OpenAI.APIKey != "" {
		aiService = services.NewAIService(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	userRepo := repository.NewUserRepository(db)
	taskRepo := repository.NewTaskRepository(db)

	authService := services.NewAuthService(userRepo, password.NewBcryptHasher(bcrypt.DefaultCost), tokens, verifier, log)
	taskService := services.NewTaskService(taskRepo, aiService, log)

	authHandler := handlers.NewAuthHandler(authService, collector, log)
	taskHandler := handlers.NewTaskHandler(taskService, log)

	// Set Gin mode
	gin.SetMode(cfg.GinMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.Metrics(collector))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	}

	r.GET("/metrics", gin.WrapH(metrics.Handler(registry)))
	handlers.RegisterRoutes(r, authHandler, taskHandler, tokens, taskService)

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	log.Info("server stopped")
	return nil
}
