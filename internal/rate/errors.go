package rate

import "errors"

var (
	// ErrRateLimited is returned when a bucket's quota is exhausted for the current window.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps Redis transport and script failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrUnknownBucket is returned for a bucket name with no configured rule.
	ErrUnknownBucket = errors.New("unknown rate limit bucket")
)
