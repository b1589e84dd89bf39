package core

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// LoginFailurePrefix namespaces the per-user attempt counters in Redis.
const LoginFailurePrefix = "account:login_failures:"

// LoginThrottle counts login attempts per user name. Acquire both counts the attempt
// and decides whether it may proceed; a successful login calls Reset.
type LoginThrottle interface {
	Acquire(ctx context.Context, userName string) (bool, error)
	Reset(ctx context.Context, userName string) error
}

// NoopThrottle never blocks. Used when Redis is not configured.
type NoopThrottle struct{}

func (NoopThrottle) Acquire(context.Context, string) (bool, error) { return true, nil }
func (NoopThrottle) Reset(context.Context, string) error           { return nil }

// acquireScript increments the counter and refreshes its window in one step, so
// concurrent attempts can never all observe a count below the limit.
var acquireScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
redis.call('PEXPIRE', KEYS[1], ARGV[1])
return n
`)

// RedisLoginThrottle locks a user name out for window once more than max attempts
// have been made without a successful login. Every attempt restarts the window.
type RedisLoginThrottle struct {
	client redis.Cmdable
	max    int
	window time.Duration
}

var _ LoginThrottle = (*RedisLoginThrottle)(nil)

func NewRedisLoginThrottle(client redis.Cmdable, max int, window time.Duration) *RedisLoginThrottle {
	return &RedisLoginThrottle{client: client, max: max, window: window}
}

func failureKey(userName string) string {
	return LoginFailurePrefix + NormalizeUserName(userName)
}

// Acquire fails open: on a Redis error the attempt is allowed and the error returned
// for logging.
func (t *RedisLoginThrottle) Acquire(ctx context.Context, userName string) (bool, error) {
	if t.max <= 0 {
		return true, nil
	}
	n, err := acquireScript.Run(ctx, t.client, []string{failureKey(userName)}, t.window.Milliseconds()).Int64()
	if err != nil {
		return true, err
	}
	return n <= int64(t.max), nil
}

func (t *RedisLoginThrottle) Reset(ctx context.Context, userName string) error {
	if t.max <= 0 {
		return nil
	}
	return t.client.Del(ctx, failureKey(userName)).Err()
}
