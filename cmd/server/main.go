/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the loan engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (environment / .env)
  2. Initialize SQLite store
  3. Wire auth and lending services, seed dev users
  4. Configure HTTP router and overdue scanner
  5. Start server with graceful shutdown

CONFIGURATION:
  All config via environment variables (see config/config.go):
  PORT, DB_PATH, LOG_LEVEL, JWT_SECRET, TOKEN_TTL,
  MIN_INTEREST_RATE, MAX_INTEREST_RATE, DEFAULT_CREDIT_LIMIT,
  RETRY_MAX_ATTEMPTS, RETRY_DELAY, OVERDUE_CRON, SEED_USERS

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the overdue scanner
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  DB_PATH=./data/loans.db ./server

  # Run with in-memory database
  DB_PATH=":memory:" ./server

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/warp/loan-engine/api"
	"github.com/warp/loan-engine/auth"
	"github.com/warp/loan-engine/config"
	"github.com/warp/loan-engine/lending"
	"github.com/warp/loan-engine/metrics"
	"github.com/warp/loan-engine/store/sqlite"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}
	defer store.Close()

	// Wire services
	m := metrics.New()

	authsvc := auth.NewService(store, store, auth.Config{
		JWTSecret:          []byte(cfg.JWTSecret),
		TokenTTL:           cfg.TokenTTL,
		DefaultCreditLimit: cfg.DefaultCreditLimit,
	}, log)

	lendsvc := lending.NewService(store, lending.Config{
		MinInterestRate: cfg.MinInterestRate,
		MaxInterestRate: cfg.MaxInterestRate,
		MaxAttempts:     cfg.RetryMaxAttempts,
		RetryDelay:      cfg.RetryDelay,
	}, log, lending.WithMetrics(m))

	if cfg.SeedUsers {
		if err := authsvc.SeedUsers(context.Background()); err != nil {
			log.WithError(err).Warn("failed to seed users")
		}
	}

	// Overdue scanner
	scanner := api.NewOverdueScanner(lendsvc, log, m, cfg.OverdueCron)
	if err := scanner.Start(); err != nil {
		log.WithError(err).Fatal("failed to start overdue scanner")
	}
	defer scanner.Stop()

	// Router and server
	handler := api.NewHandler(lendsvc, authsvc, log)
	router := api.NewRouter(handler, authsvc, m)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}

	log.Info("server stopped")
}
