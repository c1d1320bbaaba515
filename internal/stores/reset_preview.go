package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrPreviewRedisUnavailable wraps Redis failures of the preview marker store.
var ErrPreviewRedisUnavailable = errors.New("reset preview redis unavailable")

// ResetPreviewStore keeps the short-lived "viewed" marker of a password-reset
// token. It is keyed by the token hash and lives apart from the durable token
// record, so a consumed preview never invalidates the token itself.
type ResetPreviewStore struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewResetPreviewStore creates a marker store. ttl bounds how long a previewed
// link stays marked.
func NewResetPreviewStore(redisClient redis.UniversalClient, prefix string, ttl time.Duration) *ResetPreviewStore {
	if prefix == "" {
		prefix = "arv"
	}
	return &ResetPreviewStore{
		redis:  redisClient,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *ResetPreviewStore) key(tokenHash string) string {
	return s.prefix + ":" + tokenHash
}

// MarkViewed sets the marker for tokenHash. It reports false when the marker
// was already present, i.e. the preview has been used.
func (s *ResetPreviewStore) MarkViewed(ctx context.Context, tokenHash string) (bool, error) {
	ok, err := s.redis.SetNX(ctx, s.key(tokenHash), time.Now().Unix(), s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrPreviewRedisUnavailable, err)
	}
	return ok, nil
}

// Viewed reports whether a marker exists for tokenHash.
func (s *ResetPreviewStore) Viewed(ctx context.Context, tokenHash string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.key(tokenHash)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrPreviewRedisUnavailable, err)
	}
	return n == 1, nil
}

// Clear removes the marker. Missing markers are not an error.
func (s *ResetPreviewStore) Clear(ctx context.Context, tokenHash string) error {
	if err := s.redis.Del(ctx, s.key(tokenHash)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrPreviewRedisUnavailable, err)
	}
	return nil
}
