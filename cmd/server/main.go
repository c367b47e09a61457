package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sixwallet/internal/blacklist"
	"sixwallet/internal/cache"
	"sixwallet/internal/config"
	"sixwallet/internal/handlers"
	"sixwallet/internal/logging"
	"sixwallet/internal/repository"
	"sixwallet/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	logger := logging.SetupLogger()
	cfg := config.Load(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := connectDB(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to connect to database", slog.Any("err", err))
		os.Exit(1)
	}
	defer pool.Close()

	if err := repository.Migrate(ctx, pool); err != nil {
		logger.Error("Failed to run migrations", slog.Any("err", err))
		os.Exit(1)
	}

	repo := repository.NewLedgerPGRepository(pool, logger)

	var walletCache cache.WalletCache = cache.Noop{}
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis unreachable, running without wallet cache", slog.Any("err", err))
		} else {
			walletCache = cache.NewRedisWalletCache(client, 5*time.Minute, logger)
		}
	}

	karma := blacklist.NewClient(cfg.AdjutorBaseURL, cfg.AdjutorAPIKey, repo, logger)
	walletSvc := service.NewWalletService(repo, walletCache, logger)
	authSvc := service.NewAuthService(repo, karma, cfg.JWTSecret, cfg.TokenTTL, logger)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	handler := handlers.NewHandler(walletSvc, authSvc, cfg.JWTSecret, logger)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Server starting", slog.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", slog.Any("err", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Forced shutdown", slog.Any("err", err))
	}
	logger.Info("Server stopped")
}

func connectDB(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DBURL)
	if err != nil {
		return nil, err
	}
	poolCfg.MaxConns = cfg.DBMaxConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}

	for i := 0; i < 5; i++ {
		if err = pool.Ping(ctx); err == nil {
			return pool, nil
		}
		logger.Warn("Database not ready, retrying",
			slog.Int("attempt", i+1),
			slog.Any("err", err),
		)
		time.Sleep(time.Duration(i+1) * time.Second)
	}
	pool.Close()
	return nil, err
}
