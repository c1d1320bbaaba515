package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Rule is the quota of a named bucket: Limit hits per Window.
type Rule struct {
	Limit  int
	Window time.Duration
}

// Decision describes the outcome of a single [Limiter.Hit].
type Decision struct {
	Allowed    bool
	Count      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter enforces fixed-window quotas for named buckets using Redis
// counters. Each (bucket, key) pair is an independent window.
type Limiter struct {
	redis  redis.UniversalClient
	prefix string
	rules  map[string]Rule
}

// New creates a rate [Limiter] backed by the given Redis client.
// Rules are copied; buckets not present in rules are rejected by Hit.
func New(redisClient redis.UniversalClient, prefix string, rules map[string]Rule) *Limiter {
	if prefix == "" {
		prefix = "rl"
	}
	copied := make(map[string]Rule, len(rules))
	for name, rule := range rules {
		copied[name] = rule
	}
	return &Limiter{
		redis:  redisClient,
		prefix: prefix,
		rules:  copied,
	}
}

// hitScript increments the window counter and arms its expiry in one step,
// so concurrent callers can never observe a counter without a TTL.
const hitScript = `
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`

var hitLua = redis.NewScript(hitScript)

// Hit records one attempt for key in bucket and reports whether it fits the quota.
// When the quota is exceeded the returned error is [ErrRateLimited] and the
// decision carries the time left in the window.
func (l *Limiter) Hit(ctx context.Context, bucket, key string) (Decision, error) {
	rule, ok := l.rules[bucket]
	if !ok {
		return Decision{}, fmt.Errorf("%w: %s", ErrUnknownBucket, bucket)
	}
	if rule.Limit <= 0 || rule.Window <= 0 {
		return Decision{Allowed: true}, nil
	}

	res, err := hitLua.Run(ctx, l.redis, []string{l.key(bucket, key)}, rule.Window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(res) != 2 {
		return Decision{}, fmt.Errorf("%w: unexpected script reply", ErrRedisUnavailable)
	}

	count := int(res[0])
	d := Decision{
		Allowed:    count <= rule.Limit,
		Count:      count,
		Remaining:  max(rule.Limit-count, 0),
		RetryAfter: time.Duration(res[1]) * time.Millisecond,
	}
	if !d.Allowed {
		return d, ErrRateLimited
	}
	return d, nil
}

// Reset clears the window for key in bucket.
func (l *Limiter) Reset(ctx context.Context, bucket, key string) error {
	if err := l.redis.Del(ctx, l.key(bucket, key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Attempts returns the current counter for key in bucket.
// Missing keys return zero.
func (l *Limiter) Attempts(ctx context.Context, bucket, key string) (int, error) {
	count, err := l.redis.Get(ctx, l.key(bucket, key)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

// Rule returns the configured quota for bucket.
func (l *Limiter) Rule(bucket string) (Rule, bool) {
	rule, ok := l.rules[bucket]
	return rule, ok
}

func (l *Limiter) key(bucket, key string) string {
	return l.prefix + ":" + bucket + ":" + key
}
