// Command softoken-loadtest seeds sessions and measures Get and Extend
// throughput against Redis (or an in-process miniredis).
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/softoken"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

type options struct {
	sessions    int
	users       int
	concurrency int
	ops         int
	redisAddr   string
	prefix      string
}

func main() {
	var o options
	fs := pflag.NewFlagSet("softoken-loadtest", pflag.ExitOnError)
	fs.IntVar(&o.sessions, "sessions", 100000, "number of sessions to seed")
	fs.IntVar(&o.users, "users", 1000, "number of distinct user ids")
	fs.IntVarP(&o.concurrency, "concurrency", "c", 256, "number of concurrent workers")
	fs.IntVarP(&o.ops, "ops", "n", 200000, "operations per phase")
	fs.StringVar(&o.redisAddr, "redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	fs.StringVar(&o.prefix, "prefix", "lt:", "session key prefix")
	_ = fs.Parse(os.Args[1:])

	if err := run(context.Background(), o); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, o options) error {
	if o.sessions <= 0 || o.users <= 0 || o.concurrency <= 0 || o.ops <= 0 {
		return fmt.Errorf("sessions, users, concurrency, and ops must be > 0")
	}

	addr := o.redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("failed to start miniredis: %w", err)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	cfg := softoken.DefaultConfig()
	cfg.Token.Secret = []byte("loadtest-secret-loadtest-secret!")
	cfg.Session.RedisPrefix = o.prefix
	cfg.Cleanup.Manual = true
	cfg.Metrics.EnableLatencyHistograms = true

	engine, err := softoken.New().
		WithConfig(cfg).
		WithRedis(client).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	fmt.Printf("seeding %d sessions...\n", o.sessions)
	startSeed := time.Now()
	tokens, err := seed(ctx, engine, o)
	if err != nil {
		return err
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	getStats, err := runPhase(ctx, tokens, o, func(ctx context.Context, token string) error {
		_, err := engine.Get(ctx, token)
		return err
	})
	if err != nil {
		return err
	}
	extendStats, err := runPhase(ctx, tokens, o, func(ctx context.Context, token string) error {
		_, err := engine.Extend(ctx, token)
		return err
	})
	if err != nil {
		return err
	}

	startWipe := time.Now()
	wiped, err := engine.Cleanup(ctx, true)
	if err != nil {
		return err
	}

	fmt.Println("---- results ----")
	printStats("get", getStats)
	printStats("extend", extendStats)
	fmt.Printf("wipe: records=%d took=%s\n", wiped, time.Since(startWipe).Round(time.Millisecond))
	return nil
}

func seed(ctx context.Context, engine *softoken.Engine, o options) ([]string, error) {
	tokens := make([]string, o.sessions)
	var cursor atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < o.concurrency; w++ {
		g.Go(func() error {
			for {
				i := int(cursor.Add(1)) - 1
				if i >= o.sessions {
					return nil
				}
				token, err := engine.Create(ctx, softoken.CreateRequest{
					UID: fmt.Sprintf("u%d", i%o.users),
				})
				if err != nil {
					return fmt.Errorf("create failed: %w", err)
				}
				tokens[i] = token
			}
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tokens, nil
}

func runPhase(ctx context.Context, tokens []string, o options, op func(context.Context, string) error) (phaseStats, error) {
	var (
		cursor    atomic.Int64
		failures  atomic.Int64
		latencies = make([]time.Duration, 0, o.ops)
		mu        sync.Mutex
	)

	g, ctx := errgroup.WithContext(ctx)
	start := time.Now()
	for w := 0; w < o.concurrency; w++ {
		g.Go(func() error {
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(w)*7919))
			local := make([]time.Duration, 0, o.ops/o.concurrency+1)
			for {
				i := int(cursor.Add(1)) - 1
				if i >= o.ops {
					break
				}
				t0 := time.Now()
				if err := op(ctx, tokens[r.Intn(len(tokens))]); err != nil {
					failures.Add(1)
				}
				local = append(local, time.Since(t0))
			}
			mu.Lock()
			latencies = append(latencies, local...)
			mu.Unlock()
			return ctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return phaseStats{}, err
	}
	return computeStats(time.Since(start), latencies, failures.Load()), nil
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
