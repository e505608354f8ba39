package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/renvrose/moving-tic-tac-toe/internal/app"
	"github.com/renvrose/moving-tic-tac-toe/internal/config"
	"github.com/renvrose/moving-tic-tac-toe/internal/logging"
	"github.com/renvrose/moving-tic-tac-toe/internal/store"
	"github.com/renvrose/moving-tic-tac-toe/internal/web"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.IsProduction())
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kv, closeKV := openStore(ctx, cfg, logger)
	defer closeKV()

	svc := app.NewService(
		app.WithStore(store.NewProfiles(kv, cfg.StorePrefix)),
		app.WithLogger(logger.Named("app")),
		app.WithSizeLimits(cfg.MinBoardSize, cfg.MaxBoardSize),
		app.WithBuffer(cfg.SubscriberBuffer),
	)
	handler := web.NewServer(svc,
		web.WithLogger(logger.Named("http")),
		web.WithHeartbeat(cfg.SSEHeartbeat),
		web.WithDefaultSize(cfg.DefaultBoardSize),
	)

	srv := &http.Server{Addr: cfg.Addr, Handler: handler}
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
}

// openStore prefers Redis and falls back to memory when it is not configured
// or does not answer.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.KV, func()) {
	if cfg.RedisURL == "" {
		logger.Info("using in-memory profile store")
		return store.NewMemoryKV(), func() {}
	}
	client, err := store.NewRedisClient(ctx, store.RedisOptions{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		logger.Warn("redis unavailable, using in-memory profile store", zap.Error(err))
		return store.NewMemoryKV(), func() {}
	}
	logger.Info("using redis profile store", zap.String("addr", cfg.RedisURL))
	kv := store.NewRedisKV(client)
	return kv, func() { _ = kv.Close() }
}
