package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRedisUnavailable wraps any transport or server failure from Redis.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrNotFound is returned when a session does not exist or has expired.
	ErrNotFound = errors.New("session not found")
	// ErrCorrupt is returned when a stored session value cannot be decoded.
	ErrCorrupt = errors.New("session corrupt")
)

const minTTL = time.Second

const deleteSessionScript = `
local existed = redis.call("DEL", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[1])
return existed
`

var deleteSessionLua = redis.NewScript(deleteSessionScript)

// Stores a session value and indexes it. The index expiry only ever grows, so
// it outlives every session it lists.
const saveScript = `
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
redis.call("SADD", KEYS[2], ARGV[3])
if redis.call("PTTL", KEYS[2]) < tonumber(ARGV[4]) then
  redis.call("PEXPIRE", KEYS[2], ARGV[4])
end
return 1
`

var saveLua = redis.NewScript(saveScript)

// Moves a session value to a new key. Returns 0 when the old key is gone, so
// two concurrent regenerations of the same session cannot both succeed.
const regenerateScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
redis.call("DEL", KEYS[1])
redis.call("SET", KEYS[2], ARGV[1], "PX", ARGV[2])
redis.call("SREM", KEYS[3], ARGV[3])
redis.call("SADD", KEYS[3], ARGV[4])
if redis.call("PTTL", KEYS[3]) < tonumber(ARGV[5]) then
  redis.call("PEXPIRE", KEYS[3], ARGV[5])
end
return 1
`

var regenerateLua = redis.NewScript(regenerateScript)

// Store is a Redis-backed session store. Each session lives under its own key
// with an idle TTL that slides on every read, capped by the session's
// absolute ExpiresAt. A per-account set indexes live session IDs.
//
//	Docs: docs/session.md
type Store struct {
	redis   redis.UniversalClient
	prefix  string
	idleTTL time.Duration
	now     func() time.Time
}

// NewStore creates a session [Store]. prefix sets the Redis key namespace and
// idleTTL the inactivity window for sessions that were not created with
// remember-me.
func NewStore(client redis.UniversalClient, prefix string, idleTTL time.Duration) *Store {
	if prefix == "" {
		prefix = "as"
	}
	return &Store{
		redis:   client,
		prefix:  prefix,
		idleTTL: idleTTL,
		now:     time.Now,
	}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":" + sessionID
}

func (s *Store) accountKey(accountID string) string {
	return s.prefix + ":acct:" + accountID
}

// Save persists sess and adds it to the account index.
//
//	Performance: 1 Lua EVALSHA.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	data, err := Encode(sess)
	if err != nil {
		return err
	}
	ttl := s.ttlFor(sess)
	if ttl <= 0 {
		return ErrNotFound
	}

	err = saveLua.Run(
		ctx,
		s.redis,
		[]string{s.key(sess.ID), s.accountKey(sess.AccountID)},
		data,
		ttl.Milliseconds(),
		sess.ID,
		s.indexTTL(sess).Milliseconds(),
	).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Get loads a session and slides its idle expiry.
//
//	Performance: 1 GET + 1 PEXPIRE.
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, ErrNotFound
	}
	key := s.key(sessionID)

	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	sess.ID = sessionID

	ttl := s.ttlFor(sess)
	if ttl <= 0 {
		if err := s.deleteWithIndex(ctx, sess.AccountID, sessionID); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}

	if err := s.redis.PExpire(ctx, key, ttl).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return sess, nil
}

// Update rewrites an existing session value in place, keeping its TTL.
// Returns ErrNotFound if the session disappeared in the meantime.
func (s *Store) Update(ctx context.Context, sess *Session) error {
	data, err := Encode(sess)
	if err != nil {
		return err
	}
	res, err := s.redis.SetArgs(ctx, s.key(sess.ID), data, redis.SetArgs{Mode: "XX", KeepTTL: true}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if res != "OK" {
		return ErrNotFound
	}
	return nil
}

// Regenerate atomically moves sess from oldID to sess.ID, writing the current
// field values. Used on every privilege change so a fixated identifier stops
// working.
//
//	Performance: 1 Lua EVALSHA.
//	Security: only one of several concurrent regenerations of oldID succeeds.
func (s *Store) Regenerate(ctx context.Context, oldID string, sess *Session) error {
	data, err := Encode(sess)
	if err != nil {
		return err
	}
	ttl := s.ttlFor(sess)
	if ttl <= 0 {
		return ErrNotFound
	}

	moved, err := regenerateLua.Run(
		ctx,
		s.redis,
		[]string{s.key(oldID), s.key(sess.ID), s.accountKey(sess.AccountID)},
		data,
		ttl.Milliseconds(),
		oldID,
		sess.ID,
		s.indexTTL(sess).Milliseconds(),
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if moved == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a session. Deleting a missing session is not an error.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		// Unreadable value: drop the key, IDs prunes the index entry.
		if delErr := s.redis.Del(ctx, s.key(sessionID)).Err(); delErr != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, delErr)
		}
		return nil
	}
	return s.deleteWithIndex(ctx, sess.AccountID, sessionID)
}

// DeleteAllForAccount removes every session of accountID except keepID
// (pass "" to remove all). It returns the number of sessions removed.
//
// The member read and the delete are separate round trips. A session created
// between them survives and is caught by the next call.
func (s *Store) DeleteAllForAccount(ctx context.Context, accountID, keepID string) (int, error) {
	accountKey := s.accountKey(accountID)

	ids, err := s.redis.SMembers(ctx, accountKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	keys := make([]string, 0, len(ids))
	drop := make([]any, 0, len(ids))
	for _, id := range ids {
		if id == keepID {
			continue
		}
		keys = append(keys, s.key(id))
		drop = append(drop, id)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	var del *redis.IntCmd
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, keys...)
		pipe.SRem(ctx, accountKey, drop...)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(del.Val()), nil
}

// IDs returns the live session IDs for accountID. Index entries whose
// session key has expired are pruned on the way.
func (s *Store) IDs(ctx context.Context, accountID string) ([]string, error) {
	accountKey := s.accountKey(accountID)
	ids, err := s.redis.SMembers(ctx, accountKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(ids) == 0 {
		return []string{}, nil
	}

	exists := make([]*redis.IntCmd, len(ids))
	_, err = s.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			exists[i] = pipe.Exists(ctx, s.key(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	live := make([]string, 0, len(ids))
	var dead []any
	for i, id := range ids {
		if exists[i].Val() == 1 {
			live = append(live, id)
		} else {
			dead = append(dead, id)
		}
	}
	if len(dead) > 0 {
		if err := s.redis.SRem(ctx, accountKey, dead...).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return live, nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

func (s *Store) deleteWithIndex(ctx context.Context, accountID, sessionID string) error {
	err := deleteSessionLua.Run(ctx, s.redis, []string{s.key(sessionID), s.accountKey(accountID)}, sessionID).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// ttlFor returns the key TTL for sess: the time left until ExpiresAt, further
// capped by the idle window unless the session was created with remember-me.
func (s *Store) ttlFor(sess *Session) time.Duration {
	remaining := time.Unix(sess.ExpiresAt, 0).Sub(s.now())
	if remaining <= 0 {
		return 0
	}
	ttl := remaining
	if !sess.Remember && s.idleTTL > 0 && s.idleTTL < ttl {
		ttl = s.idleTTL
	}
	if ttl < minTTL {
		ttl = minTTL
	}
	return ttl
}

// indexTTL is the time left until sess hits its absolute expiry, the longest
// the session key can live.
func (s *Store) indexTTL(sess *Session) time.Duration {
	return max(time.Unix(sess.ExpiresAt, 0).Sub(s.now()), minTTL)
}
