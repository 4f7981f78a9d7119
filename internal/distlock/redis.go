package distlock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dmitrijs2005/gophid/internal/logging"
)

// ErrNotHeld is returned by release when the lock expired or was taken over.
var ErrNotHeld = errors.New("lock not held")

// release deletes the key only when it still carries our token.
var release = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renew extends the key's expiry only when it still carries our token.
var renew = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

type RedisOptions struct {
	URL string
	// TTL bounds how long a crashed holder can block others. A live holder
	// keeps extending it every RenewInterval until it unlocks.
	TTL time.Duration
	// RenewInterval defaults to a third of TTL.
	RenewInterval time.Duration
	// RetryInterval is the pause between acquisition attempts.
	RetryInterval time.Duration
	// Prefix is prepended to every key.
	Prefix string

	ConnectTimeout time.Duration
}

// RedisLocker implements Locker with SET NX PX and a compare-and-delete
// release.
type RedisLocker struct {
	client *redis.Client
	opts   RedisOptions
	log    logging.Logger
}

func NewRedisLocker(opts RedisOptions, log logging.Logger) (*RedisLocker, error) {
	if opts.TTL <= 0 {
		opts.TTL = 30 * time.Second
	}
	if opts.RenewInterval <= 0 || opts.RenewInterval >= opts.TTL {
		opts.RenewInterval = opts.TTL / 3
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 50 * time.Millisecond
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	if opts.Prefix == "" {
		opts.Prefix = "gophid:lock:"
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	redisOpts.DialTimeout = opts.ConnectTimeout

	client := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisLocker{client: client, opts: opts, log: log}, nil
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	name := l.opts.Prefix + key
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, name, token, l.opts.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", name, err)
		}
		if ok {
			break
		}

		t := time.NewTimer(l.opts.RetryInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(name, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			// the caller's ctx may already be done
			rctx, cancel := context.WithTimeout(context.Background(), l.opts.ConnectTimeout)
			defer cancel()
			if err := l.unlock(rctx, name, token); err != nil {
				l.log.Warn(rctx, "failed to release lock", "lock", name, "error", err)
			}
		})
	}, nil
}

// keepAlive extends the lock until stop is closed or the lock is lost.
func (l *RedisLocker) keepAlive(name, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(l.opts.RenewInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), l.opts.ConnectTimeout)
		n, err := renew.Run(ctx, l.client, []string{name}, token, l.opts.TTL.Milliseconds()).Int()
		cancel()
		switch {
		case err != nil:
			l.log.Warn(context.Background(), "failed to renew lock", "lock", name, "error", err)
		case n == 0:
			l.log.Error(context.Background(), "lock lost before release", "lock", name, "error", ErrNotHeld)
			return
		}
	}
}

func (l *RedisLocker) unlock(ctx context.Context, name, token string) error {
	n, err := release.Run(ctx, l.client, []string{name}, token).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}

func (l *RedisLocker) Close() error {
	return l.client.Close()
}
