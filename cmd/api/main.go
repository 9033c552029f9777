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

	"github.com/joho/godotenv"

	"github.com/readoai/readoai-go/internal/config"
	"github.com/readoai/readoai-go/internal/crypto"
	"github.com/readoai/readoai-go/internal/handler"
	"github.com/readoai/readoai-go/internal/metrics"
	"github.com/readoai/readoai-go/internal/repository"
	"github.com/readoai/readoai-go/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, using environment variables")
	}

	cfg := config.Load()
	slog.SetDefault(cfg.NewLogger(os.Stdout))

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("opening user store failed", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}

	tokens, err := crypto.NewTokenIssuer(cfg.JWTSecret, cfg.JWTExpiry)
	if err != nil {
		slog.Error("creating token issuer failed", "error", err)
		os.Exit(1)
	}
	hasher := crypto.NewPasswordHasher(crypto.DefaultHashParams())
	authService := service.NewAuthService(store, hasher, tokens)

	router := handler.NewRouter(ctx, handler.RouterConfig{
		Auth:           authService,
		Metrics:        metrics.New(),
		RateLimitRPS:   5,
		RateLimitBurst: 10,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	stop()

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	if err := store.Close(shutdownCtx); err != nil {
		slog.Error("closing user store failed", "error", err)
	}

	slog.Info("server stopped")
}

func openStore(ctx context.Context, cfg config.Config) (repository.UserStore, error) {
	switch cfg.StoreDriver {
	case config.DriverMySQL:
		db, err := repository.NewDB(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		if err := repository.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		return repository.NewMySQLUserStore(db), nil
	case config.DriverMongo:
		return repository.NewMongoUserStore(ctx, cfg.MongoURI, cfg.MongoDatabase)
	case config.DriverMemory:
		slog.Warn("using in-memory user store, accounts are lost on restart")
		return repository.NewMemoryUserStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
