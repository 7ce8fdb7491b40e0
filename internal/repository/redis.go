package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"carrental/internal/config"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const carLockKeyPrefix = "car_lock:"

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// NewRedisClient creates a redis client from configuration.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

// RedisCarLocker is a per-car lease shared by every API instance using the same redis.
type RedisCarLocker struct {
	client        *redis.Client
	ttl           time.Duration
	retryInterval time.Duration
	logger        *zerolog.Logger
}

func NewRedisCarLocker(client *redis.Client, ttl time.Duration, logger *zerolog.Logger) *RedisCarLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &RedisCarLocker{
		client:        client,
		ttl:           ttl,
		retryInterval: 25 * time.Millisecond,
		logger:        logger,
	}
}

func carLockKey(carID int64) string {
	return fmt.Sprintf("%s%d", carLockKeyPrefix, carID)
}

// Lock polls SET NX until the lease is acquired or ctx is done.
func (l *RedisCarLocker) Lock(ctx context.Context, carID int64) (func(), error) {
	if l.client == nil {
		return nil, errors.New("redis client is nil")
	}
	key := carLockKey(carID)
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("failed to acquire car lock %d: %w", carID, err)
		}
		if ok {
			break
		}

		timer := time.NewTimer(l.retryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return func() {
		// The caller's ctx may already be cancelled; release must still run.
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			l.logger.Warn().Err(err).Int64("car_id", carID).Msg("Failed to release car lock")
		}
	}, nil
}
