// Command authcore-loadtest drives the Redis-backed session store and rate
// limiter with concurrent traffic and reports latency percentiles.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/authcore/internal"
	"github.com/MrEthical07/authcore/internal/rate"
	"github.com/MrEthical07/authcore/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type options struct {
	sessions    int
	accounts    int
	workers     int
	ops         int
	redisAddr   string
	prefix      string
	loginPerMin int
}

// slot is one seeded session. Regeneration swaps its id under mu.
type slot struct {
	mu sync.Mutex
	id string
}

type phase struct {
	name string
	run  func(ctx context.Context, s *slot) error
}

type report struct {
	ops      int
	failed   int64
	denied   int64
	elapsed  time.Duration
	p50, p95 time.Duration
	p99, max time.Duration
}

func main() {
	var opts options
	flag.IntVar(&opts.sessions, "sessions", 50000, "sessions to seed")
	flag.IntVar(&opts.accounts, "accounts", 1000, "accounts the sessions are spread over")
	flag.IntVar(&opts.workers, "concurrency", 128, "concurrent workers per phase")
	flag.IntVar(&opts.ops, "ops", 100000, "operations per phase")
	flag.StringVar(&opts.redisAddr, "redis-addr", "", "redis address; falls back to REDIS_ADDR, then an in-process miniredis")
	flag.StringVar(&opts.prefix, "prefix", "lt", "key prefix for sessions and rate buckets")
	flag.IntVar(&opts.loginPerMin, "login-limit", 5, "login bucket quota per minute for the throttle phase")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		With().Timestamp().Logger()

	if opts.sessions <= 0 || opts.accounts <= 0 || opts.workers <= 0 || opts.ops <= 0 {
		logger.Error().Msg("sessions, accounts, concurrency and ops must be positive")
		os.Exit(2)
	}
	if err := run(context.Background(), opts, logger); err != nil {
		logger.Error().Err(err).Msg("load test failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, logger zerolog.Logger) error {
	client, closeRedis, err := connect(opts.redisAddr, logger)
	if err != nil {
		return err
	}
	defer closeRedis()

	store := session.NewStore(client, opts.prefix+":s", 2*time.Hour)
	limiter := rate.New(client, opts.prefix+":rl", map[string]rate.Rule{
		"login": {Limit: opts.loginPerMin, Window: time.Minute},
	})

	slots, err := seed(ctx, store, opts)
	if err != nil {
		return err
	}
	logger.Info().Int("sessions", len(slots)).Int("accounts", opts.accounts).Msg("seeded")

	phases := []phase{
		{"authenticate", func(ctx context.Context, s *slot) error {
			s.mu.Lock()
			id := s.id
			s.mu.Unlock()
			_, err := store.Get(ctx, id)
			return err
		}},
		{"regenerate", func(ctx context.Context, s *slot) error {
			s.mu.Lock()
			defer s.mu.Unlock()
			sess, err := store.Get(ctx, s.id)
			if err != nil {
				return err
			}
			next, err := internal.NewSessionID()
			if err != nil {
				return err
			}
			prev := sess.ID
			sess.ID = next
			if err := store.Regenerate(ctx, prev, sess); err != nil {
				return err
			}
			s.id = next
			return nil
		}},
		{"throttle", func(ctx context.Context, _ *slot) error {
			ip := fmt.Sprintf("198.51.100.%d", rand.IntN(256))
			_, err := limiter.Hit(ctx, "login", ip)
			return err
		}},
	}

	for _, p := range phases {
		r := drive(ctx, slots, opts, p)
		logger.Info().
			Str("phase", p.name).
			Int("ops", r.ops).
			Int64("failed", r.failed).
			Int64("denied", r.denied).
			Dur("elapsed", r.elapsed.Round(time.Millisecond)).
			Float64("ops_per_sec", float64(r.ops)/r.elapsed.Seconds()).
			Dur("p50", r.p50).
			Dur("p95", r.p95).
			Dur("p99", r.p99).
			Dur("max", r.max).
			Msg("phase done")
	}
	return nil
}

func connect(addr string, logger zerolog.Logger) (redis.UniversalClient, func(), error) {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		logger.Info().Str("addr", addr).Msg("using redis")
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("start miniredis: %w", err)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	logger.Info().Str("addr", mr.Addr()).Msg("using in-process miniredis")
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

func seed(ctx context.Context, store *session.Store, opts options) ([]slot, error) {
	slots := make([]slot, opts.sessions)
	now := time.Now()
	for i := range slots {
		id, err := internal.NewSessionID()
		if err != nil {
			return nil, err
		}
		account := i % opts.accounts
		sess := &session.Session{
			ID:                   id,
			AccountID:            fmt.Sprintf("acct-%d", account),
			SecondFactorVerified: account%4 == 0,
			IP:                   "203.0.113.7",
			UserAgent:            "authcore-loadtest",
			CreatedAt:            now.Unix(),
			ExpiresAt:            now.Add(24 * time.Hour).Unix(),
		}
		if err := store.Save(ctx, sess); err != nil {
			return nil, fmt.Errorf("seed session %d: %w", i, err)
		}
		slots[i].id = id
	}
	return slots, nil
}

// drive runs opts.ops calls of p over random slots. Each worker keeps its own
// samples; they are merged once the phase ends.
func drive(ctx context.Context, slots []slot, opts options, p phase) report {
	var (
		issued atomic.Int64
		failed atomic.Int64
		denied atomic.Int64
		wg     sync.WaitGroup
	)
	perWorker := make([][]time.Duration, opts.workers)

	start := time.Now()
	for w := range opts.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			samples := make([]time.Duration, 0, opts.ops/opts.workers+1)
			for issued.Add(1) <= int64(opts.ops) {
				began := time.Now()
				err := p.run(ctx, &slots[rand.IntN(len(slots))])
				samples = append(samples, time.Since(began))
				switch {
				case errors.Is(err, rate.ErrRateLimited):
					denied.Add(1)
				case err != nil:
					failed.Add(1)
				}
			}
			perWorker[w] = samples
		}()
	}
	wg.Wait()

	all := slices.Concat(perWorker...)
	slices.Sort(all)
	r := report{ops: len(all), failed: failed.Load(), denied: denied.Load(), elapsed: time.Since(start)}
	if len(all) > 0 {
		r.p50, r.p95, r.p99 = quantile(all, 0.50), quantile(all, 0.95), quantile(all, 0.99)
		r.max = all[len(all)-1]
	}
	return r
}

// quantile expects sorted samples.
func quantile(sorted []time.Duration, q float64) time.Duration {
	i := int(q * float64(len(sorted)-1))
	return sorted[max(0, min(i, len(sorted)-1))]
}
