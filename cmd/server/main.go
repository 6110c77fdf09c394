package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ctchen222/nxn-tic-tac-toe/internal/api/auth"
	apirepository "ctchen222/nxn-tic-tac-toe/internal/api/repository"
	"ctchen222/nxn-tic-tac-toe/internal/api/service"
	"ctchen222/nxn-tic-tac-toe/internal/bot"
	"ctchen222/nxn-tic-tac-toe/internal/config"
	"ctchen222/nxn-tic-tac-toe/internal/db"
	"ctchen222/nxn-tic-tac-toe/internal/events"
	"ctchen222/nxn-tic-tac-toe/internal/logger"
	"ctchen222/nxn-tic-tac-toe/internal/repository"
	"ctchen222/nxn-tic-tac-toe/internal/server"
	"ctchen222/nxn-tic-tac-toe/internal/telemetry"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Initialize telemetry before the logger so the otelslog bridge picks up the provider.
	shutdown, err := telemetry.InitOtel(ctx, telemetry.Options{Enabled: cfg.OTLPEnabled, Endpoint: cfg.OTLPEndpoint})
	if err != nil {
		log.Fatalf("failed to initialize telemetry: %v", err)
	}
	defer func() {
		if err := shutdown(ctx); err != nil {
			log.Printf("Error shutting down telemetry: %v", err)
		}
	}()

	if err := logger.Init(cfg.LogLevel, cfg.LogFormat); err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}

	// Initialize Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatalf("failed to initialize redis: %v", err)
	}
	defer rdb.Close()

	// Initialize SQLite DB
	scoreDB, err := db.OpenSQLite(ctx, cfg.SQLitePath)
	if err != nil {
		log.Fatalf("failed to initialize sqlite db: %v", err)
	}
	defer scoreDB.Close()

	// Move selection
	opts := []bot.Option{bot.WithParallelism(cfg.Parallelism)}
	for size, limit := range cfg.DepthLimits {
		opts = append(opts, bot.WithDepthLimit(size, limit))
	}
	searcher := bot.NewSearcher(opts...)

	// Create repositories
	sessionRepo := repository.NewSessionRepository(rdb, cfg.SessionTTL)
	scoreRepo := apirepository.NewScoreRepository(scoreDB)
	bus := events.NewBus(rdb)
	tokens := auth.NewTokens(cfg.JWTSecret, cfg.SessionTTL)

	// Create services
	sessionService := service.NewSessionService(service.Config{
		Sessions:   sessionRepo,
		Scores:     scoreRepo,
		Publisher:  bus,
		Tokens:     tokens,
		Calculator: searcher,
		ThinkDelay: cfg.ThinkDelay,
	})

	// Create the Gin-based server
	srv := server.NewServer(sessionService, tokens, server.BusSubscriber{Bus: bus}, map[string]server.HealthChecker{
		"redis":  func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		"sqlite": scoreDB.PingContext,
	})

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("http server started", "http.addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("ListenAndServe: %v", err)
		}
	}()

	<-stop

	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server exiting")
}
