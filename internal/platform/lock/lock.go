// Package lock provides Redis-backed mutual exclusion across worker
// processes.
package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"hope/pkg/platform/sentinel"
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// RedisLock hands out SET NX locks with a TTL. The TTL bounds how long a
// crashed holder can block others.
type RedisLock struct {
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
}

func NewRedisLock(client redis.UniversalClient, ttl time.Duration) *RedisLock {
	return &RedisLock{client: client, ttl: ttl, prefix: "lock:"}
}

// Acquire takes the lock for key. It returns sentinel.ErrLocked when another
// holder owns it. The returned release function is safe to call after the
// TTL expired.
func (l *RedisLock) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}
	fullKey := l.prefix + key
	ok, err := l.client.SetNX(ctx, fullKey, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", fullKey, errors.Join(sentinel.ErrUnavailable, err))
	}
	if !ok {
		return nil, fmt.Errorf("acquire lock %s: %w", fullKey, sentinel.ErrLocked)
	}
	release := func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{fullKey}, token).Err(); err != nil {
			return fmt.Errorf("release lock %s: %w", fullKey, err)
		}
		return nil
	}
	return release, nil
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate lock token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
