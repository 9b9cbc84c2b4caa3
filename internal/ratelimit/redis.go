package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// consumeScript increments the window counter, arms its expiry on first use
// and returns {count, ttl_ms}.
const consumeScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {current, ttl}
`

type redisEvaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// Redis shares one budget per key between every server process pointed at the
// same instance.
type Redis struct {
	client  redisEvaler
	points  int
	window  time.Duration
	prefix  string
	timeout time.Duration
	log     *zap.Logger
}

func NewRedis(client *redis.Client, points int, window time.Duration, log *zap.Logger) *Redis {
	if points <= 0 {
		points = DefaultPoints
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Redis{
		client:  client,
		points:  points,
		window:  window,
		prefix:  "chat:rl:",
		timeout: 500 * time.Millisecond,
		log:     log,
	}
}

// Consume fails open: a Redis error admits the message and is logged.
func (l *Redis) Consume(ctx context.Context, key string) (Decision, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	res, err := l.client.Eval(ctx, consumeScript, []string{l.prefix + key}, l.window.Milliseconds()).Int64Slice()
	if err != nil || len(res) != 2 {
		l.log.Warn("rate limiter unavailable, admitting", zap.String("user_id", key), zap.Error(err))
		return Decision{Allowed: true, Remaining: l.points}, nil
	}

	count, ttl := int(res[0]), time.Duration(res[1])*time.Millisecond
	if ttl < 0 {
		ttl = l.window
	}
	if count > l.points {
		return Decision{Allowed: false, RetryAfter: ttl}, nil
	}
	return Decision{Allowed: true, Remaining: l.points - count}, nil
}
