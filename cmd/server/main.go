package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/tripsplit/internal/auth"
	"github.com/mmynk/tripsplit/internal/config"
	"github.com/mmynk/tripsplit/internal/currency"
	"github.com/mmynk/tripsplit/internal/events"
	"github.com/mmynk/tripsplit/internal/events/kafka"
	"github.com/mmynk/tripsplit/internal/metrics"
	"github.com/mmynk/tripsplit/internal/middleware"
	"github.com/mmynk/tripsplit/internal/service"
	"github.com/mmynk/tripsplit/internal/session"
	"github.com/mmynk/tripsplit/internal/settlement"
	"github.com/mmynk/tripsplit/internal/storage"
	"github.com/mmynk/tripsplit/internal/storage/memory"
	"github.com/mmynk/tripsplit/internal/storage/sqlite"
	"github.com/mmynk/tripsplit/pkg/logging"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Logging.Level)

	if err := run(cfg, logger); err != nil {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	rates, err := currency.ParseRates(cfg.Currency.Base, cfg.Currency.Rates)
	if err != nil {
		return fmt.Errorf("invalid CURRENCY_RATES: %w", err)
	}
	logger.Info("Currency rates loaded", "base", cfg.Currency.Base, "codes", rates.Codes())

	publisher, closePublisher := openPublisher(cfg.Kafka, logger)
	defer closePublisher()

	sessions := session.NewRegistry(session.Dependencies{
		Expenses:  store,
		Members:   store,
		History:   store,
		Converter: rates,
	}, session.Options{
		NetOpposing: cfg.Engine.NetOpposingDebts,
		Concurrency: cfg.Engine.ConversionConcurrency,
	}, logger)
	settler := settlement.NewManager(store, publisher, logger)

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Engine.SessionSweepSchedule, func() {
		sessions.EvictIdle(cfg.Engine.SessionIdleTTL)
	}); err != nil {
		return fmt.Errorf("invalid SESSION_SWEEP_SCHEDULE %q: %w", cfg.Engine.SessionSweepSchedule, err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	if cfg.Auth.JWTSecret == config.DevJWTSecret {
		logger.Warn("JWT_SECRET not set, using the development key")
	}
	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	mux := http.NewServeMux()

	// Register Connect services
	tripPath, tripHandler := service.NewTripServiceHandler(
		service.NewTripService(store, sessions, settler, cfg.Currency.DefaultHome, logger),
		connect.WithInterceptors(middleware.RequireAuth(jwtManager), middleware.LoggingInterceptor(logger)),
	)
	mux.Handle(tripPath, tripHandler)

	authPath, authHandler := service.NewAuthServiceHandler(
		service.NewAuthService(auth.NewPasswordAuthenticator(store), jwtManager, store, logger),
		connect.WithInterceptors(middleware.OptionalAuth(jwtManager), middleware.LoggingInterceptor(logger)),
	)
	mux.Handle(authPath, authHandler)

	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Add logging and CORS middleware
	handler := loggingMiddleware(logger, corsMiddleware(mux))

	// Wrap with h2c for HTTP/2 without TLS (required for Connect)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Connect server starting", "address", server.Addr, "url", fmt.Sprintf("http://localhost%s", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down", "timeout", cfg.HTTP.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func openStore(cfg config.StorageConfig, logger *slog.Logger) (storage.Store, error) {
	if cfg.Driver == "memory" {
		logger.Warn("Using in-memory storage, data is lost on exit")
		return memory.New(), nil
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	logger.Info("Storage initialized", "database", cfg.DBPath)
	return store, nil
}

func openPublisher(cfg config.KafkaConfig, logger *slog.Logger) (events.Publisher, func()) {
	if len(cfg.Brokers) == 0 {
		logger.Info("KAFKA_BROKERS not set, settlement events are logged only")
		return events.LogPublisher{Logger: logger}, func() {}
	}

	p := kafka.NewPublisher(cfg.Brokers, cfg.Topic)
	logger.Info("Publishing settlement events", "brokers", cfg.Brokers, "topic", cfg.Topic)
	return p, func() {
		if err := p.Close(); err != nil {
			logger.Warn("Failed to close event publisher", "error", err)
		}
	}
}

// loggingMiddleware logs all incoming requests
func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// corsMiddleware adds CORS headers for browser access
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Connect-Protocol-Version, Connect-Timeout-Ms")
		w.Header().Set("Access-Control-Expose-Headers", "Connect-Protocol-Version, Connect-Timeout-Ms")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
