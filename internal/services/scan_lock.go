package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const scanLockKey = "eventease:reminders:scan-lock"

// releaseScript deletes the lock only if it still carries our token
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisScanLock is a SETNX lock shared by every replica running the scheduler
type RedisScanLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	log    *zap.Logger
}

func NewRedisScanLock(client *redis.Client, ttl time.Duration, log *zap.Logger) *RedisScanLock {
	return &RedisScanLock{client: client, key: scanLockKey, ttl: ttl, log: log}
}

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	const op = "services.NewRedisClient"

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return client, nil
}

func (l *RedisScanLock) Acquire(ctx context.Context) (func(), bool, error) {
	const op = "services.RedisScanLock.Acquire"

	token := uuid.NewString()
	acquired, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	if !acquired {
		return nil, false, nil
	}

	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{l.key}, token).Err(); err != nil {
			l.log.Warn("Failed to release scan lock", zap.Error(err))
		}
	}
	return release, true, nil
}
