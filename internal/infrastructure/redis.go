package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/krobus00/price-feed-service/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const defaultRedisPingTimeout = 3 * time.Second

var ErrRedisDSNRequired = errors.New("redis cache_dsn is required")

// NewRedisClient parses cache_dsn as a redis:// URL and checks the server is
// reachable before returning.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	dsn := strings.TrimSpace(cfg.CacheDSN)
	if dsn == "" {
		return nil, ErrRedisDSNRequired
	}

	options, err := redis.ParseURL(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse redis cache_dsn: %w", err)
	}

	client := redis.NewClient(options)

	pingCtx, cancel := context.WithTimeout(ctx, defaultRedisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"addr": options.Addr,
		"db":   options.DB,
	}).Info("redis connection established")

	return client, nil
}
