package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"sixwallet/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const walletKeyPrefix = "wallet:user:"

type RedisWalletCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisWalletCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisWalletCache {
	return &RedisWalletCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func (c *RedisWalletCache) Get(ctx context.Context, ownerID uuid.UUID) (*models.Wallet, error) {
	payload, err := c.client.Get(ctx, walletKeyPrefix+ownerID.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		c.logger.Warn("Wallet cache read failed",
			slog.String("user_id", ownerID.String()),
			slog.Any("err", err),
		)
		return nil, err
	}
	var w models.Wallet
	if err := json.Unmarshal(payload, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

func (c *RedisWalletCache) Set(ctx context.Context, wallet *models.Wallet) error {
	payload, err := json.Marshal(wallet)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, walletKeyPrefix+wallet.UserID.String(), payload, c.ttl).Err(); err != nil {
		c.logger.Warn("Wallet cache write failed",
			slog.String("user_id", wallet.UserID.String()),
			slog.Any("err", err),
		)
		return err
	}
	return nil
}

func (c *RedisWalletCache) Delete(ctx context.Context, ownerID uuid.UUID) error {
	if err := c.client.Del(ctx, walletKeyPrefix+ownerID.String()).Err(); err != nil {
		c.logger.Warn("Wallet cache invalidation failed",
			slog.String("user_id", ownerID.String()),
			slog.Any("err", err),
		)
		return err
	}
	return nil
}
