package redislock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

var Module = fx.Module("redislock",
	fx.Provide(New),
)

var ErrNotAcquired = errors.New("lock not acquired")

// Locker serialises work on a key across service instances.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// compare-and-delete so an expired holder cannot drop someone else's lock
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

type RedisLocker struct {
	rdb   *redis.Client
	retry time.Duration
}

type Params struct {
	fx.In

	Redis *redis.Client `optional:"true"`
}

func New(p Params) Locker {
	if p.Redis == nil {
		return Noop{}
	}
	return &RedisLocker{rdb: p.Redis, retry: 25 * time.Millisecond}
}

// Acquire spins until the key is free, the context ends, or ttl elapses.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token, err := randomToken()
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(ttl)
	for {
		ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				_ = releaseScript.Run(context.Background(), l.rdb, []string{key}, token).Err()
			}, nil
		}

		if time.Now().After(deadline) {
			return nil, ErrNotAcquired
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}
}

func randomToken() (string, error) {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Noop is used when Redis is not configured and in tests.
type Noop struct{}

func (Noop) Acquire(context.Context, string, time.Duration) (func(), error) {
	return func() {}, nil
}
