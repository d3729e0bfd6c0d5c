package runlock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0`

const extendScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`

// Redis holds run locks as SET NX PX keys so several server processes share them.
// A held lock is extended every ttl/3 until it is released.
type Redis struct {
	client     redis.Cmdable
	prefix     string
	ttl        time.Duration
	wait       time.Duration
	interval   time.Duration
	renewEvery time.Duration
	newToken   func() string
	onLost     func(key string)
}

func NewRedis(client redis.Cmdable, ttl, wait time.Duration) *Redis {
	return &Redis{
		client:     client,
		prefix:     "hrpayroll:lock:",
		ttl:        ttl,
		wait:       wait,
		interval:   50 * time.Millisecond,
		renewEvery: ttl / 3,
		newToken:   uuid.NewString,
		onLost: func(key string) {
			slog.Error("run lock lost before release", "key", key)
		},
	}
}

func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	lockKey := r.prefix + key
	token := r.newToken()
	deadline := time.Now().Add(r.wait)

	for {
		ok, err := r.client.SetNX(ctx, lockKey, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", lockKey, err)
		}
		if ok {
			break
		}
		if !time.Now().Before(deadline) {
			return nil, ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.interval):
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	if r.renewEvery > 0 {
		go r.keepAlive(lockKey, token, stop, done)
	} else {
		close(done)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			// Release with a fresh context so a cancelled request still frees the key.
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := r.client.Eval(releaseCtx, releaseScript, []string{lockKey}, token).Err(); err != nil {
				slog.Warn("run lock release failed", "key", lockKey, "err", err)
			}
		})
	}, nil
}

func (r *Redis) keepAlive(lockKey, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(r.renewEvery)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			held, err := r.extend(lockKey, token)
			if err != nil {
				slog.Warn("run lock renew failed", "key", lockKey, "err", err)
				continue
			}
			if !held {
				r.onLost(lockKey)
				return
			}
		}
	}
}

// extend pushes the expiry of lockKey back to a full ttl while token still owns it.
func (r *Redis) extend(lockKey, token string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	n, err := r.client.Eval(ctx, extendScript, []string{lockKey}, token, r.ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
