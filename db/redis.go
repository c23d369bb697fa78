package db

import (
	"context"
	"fmt"
	"time"

	"tradeSimServer/config"
	"tradeSimServer/crypto"

	"github.com/redis/go-redis/v9"
	"github.com/zeromicro/go-zero/core/logx"
)

var (
	// RedisClient is the global Redis client instance
	RedisClient *redis.Client
)

// InitRedis initializes the Redis client connection
func InitRedis(cfg config.RedisConf) error {
	logx.Info("🔌 Connecting to Redis...")

	addr := cfg.Addr
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	RedisClient = client
	logx.Infof("✅ Redis connected successfully - URL: %s", addr)
	return nil
}

// CloseRedis closes the Redis connection
func CloseRedis() error {
	if RedisClient != nil {
		logx.Info("🔌 Closing Redis connection...")
		err := RedisClient.Close()
		RedisClient = nil
		return err
	}
	return nil
}

/* =========================
   INTERACTION DEDUPE
   Redis Key: tradesim:interaction:{fingerprint} -> "1" (TTL)
========================= */

// InteractionKey builds the dedupe key for an interaction delivered to a room
func InteractionKey(roomID, interactionID string) string {
	return fmt.Sprintf(config.RedisInteractionKey, crypto.Fingerprint(roomID, interactionID))
}

// ClaimInteraction records an interaction id and reports whether this call
// was the first to see it. Without Redis every interaction is processed.
func ClaimInteraction(ctx context.Context, roomID, interactionID string, ttl time.Duration) (bool, error) {
	if RedisClient == nil || interactionID == "" {
		return true, nil
	}
	if ttl <= 0 {
		ttl = config.InteractionDedupeTTL
	}

	claimed, err := RedisClient.SetNX(ctx, InteractionKey(roomID, interactionID), "1", ttl).Result()
	if err != nil {
		return true, fmt.Errorf("failed to claim interaction: %w", err)
	}

	if !claimed {
		logx.Infof("🔁 Duplicate interaction %s in room %s", interactionID, roomID)
	}
	return claimed, nil
}

/* =========================
   HEALTH CHECK
========================= */

// HealthCheck performs a Redis health check
func HealthCheck(ctx context.Context) error {
	if RedisClient == nil {
		return fmt.Errorf("Redis client not initialized")
	}
	return RedisClient.Ping(ctx).Err()
}
