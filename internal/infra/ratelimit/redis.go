package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Limiter — fixed-window счетчик попыток в Redis.
// Используется для троттлинга логина по паре email+IP.
type Limiter struct {
	rdb    *redis.Client
	limit  int64
	window time.Duration
	logger *zap.Logger
}

func New(rdb *redis.Client, limit int, window time.Duration, logger *zap.Logger) *Limiter {
	return &Limiter{
		rdb:    rdb,
		limit:  int64(limit),
		window: window,
		logger: logger,
	}
}

// Allow инкрементирует счетчик окна и сообщает, не превышен ли лимит.
// При недоступности Redis — fail open: логин важнее троттлинга.
func (l *Limiter) Allow(ctx context.Context, key string) bool {
	redisKey := "throttle:login:" + key

	n, err := l.rdb.Incr(ctx, redisKey).Result()
	if err != nil {
		l.logger.Warn("throttle check skipped, redis unavailable", zap.Error(err))
		return true
	}

	// TTL ставим только на первый инкремент — он и открывает окно
	if n == 1 {
		if err := l.rdb.Expire(ctx, redisKey, l.window).Err(); err != nil {
			l.logger.Warn("failed to set throttle window", zap.Error(err))
		}
	}

	return n <= l.limit
}
