package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	mrand "math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fusione/authcore"
	"github.com/fusione/authcore/directory"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

type loadtestOptions struct {
	users       int
	concurrency int
	ops         int
	backend     string
	redisAddr   string
}

func NewLoadtestCmd() *cobra.Command {
	opts := &loadtestOptions{}
	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Measure validate and refresh throughput against a seeded engine",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.users <= 0 || opts.concurrency <= 0 || opts.ops <= 0 {
				return errors.New("users, concurrency and ops must be > 0")
			}
			return runLoadtest(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().IntVar(&opts.users, "users", 1000, "number of users to register and log in")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 64, "number of concurrent workers")
	cmd.Flags().IntVar(&opts.ops, "ops", 100000, "operations per phase (validate, refresh)")
	cmd.Flags().StringVar(&opts.backend, "directory", "memory", "directory backend: memory or redis")
	cmd.Flags().StringVar(&opts.redisAddr, "redis-addr", "", "redis address; if empty, REDIS_ADDR or an embedded redis is used")

	return cmd
}

type seededSession struct {
	access  string
	refresh string
}

func runLoadtest(ctx context.Context, out io.Writer, opts *loadtestOptions) error {
	var dir authcore.Directory = directory.NewMemory()
	if opts.backend == "redis" {
		addr := opts.redisAddr
		if addr == "" {
			addr = os.Getenv("REDIS_ADDR")
		}
		if addr == "" {
			mr, err := miniredis.Run()
			if err != nil {
				return fmt.Errorf("start miniredis: %w", err)
			}
			defer mr.Close()
			addr = mr.Addr()
			fmt.Fprintf(out, "using miniredis at %s\n", addr)
		} else {
			fmt.Fprintf(out, "using redis at %s\n", addr)
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		defer client.Close()
		dir = directory.NewRedis(client, "loadtest:user:")
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return err
	}
	cfg := authcore.DefaultConfig()
	cfg.JWT.PrivateKey = secret
	cfg.Password.BcryptCost = 4
	cfg.Password.UpgradeOnLogin = false
	cfg.Metrics.Enabled = true

	engine, err := authcore.New().
		WithConfig(cfg).
		WithDirectory(dir).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	fmt.Fprintf(out, "seeding %d users...\n", opts.users)
	startSeed := time.Now()
	seeded := make([]seededSession, opts.users)
	for i := range seeded {
		email := fmt.Sprintf("load-%d@example.com", i)
		if _, err := engine.Register(ctx, authcore.RegisterRequest{Email: email, Password: demoPassword, Name: "Load User"}); err != nil {
			return fmt.Errorf("register %s: %w", email, err)
		}
		res, err := engine.Login(ctx, authcore.LoginRequest{Email: email, Password: demoPassword})
		if err != nil {
			return fmt.Errorf("login %s: %w", email, err)
		}
		seeded[i] = seededSession{access: res.Tokens.AccessToken, refresh: res.Tokens.RefreshToken}
	}
	fmt.Fprintf(out, "seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	validate := runPhase(opts.ops, opts.concurrency, len(seeded), func(i int) error {
		_, err := engine.ValidateAccess(ctx, seeded[i].access)
		return err
	})
	refresh := runPhase(opts.ops, opts.concurrency, len(seeded), func(i int) error {
		_, err := engine.Refresh(ctx, seeded[i].refresh)
		return err
	})

	fmt.Fprintln(out, "---- results ----")
	printStats(out, "validate", validate)
	printStats(out, "refresh", refresh)
	return nil
}

// runPhase performs ops calls of fn spread over concurrency workers, each
// call on a random index below n.
func runPhase(ops, concurrency, n int, fn func(i int) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := mrand.New(mrand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			local := make([]time.Duration, 0, ops/concurrency+1)
			for {
				if int(atomic.AddInt64(&cursor, 1)) > ops {
					break
				}
				t0 := time.Now()
				err := fn(r.Intn(n))
				local = append(local, time.Since(t0))
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
			}
			mu.Lock()
			latencies = append(latencies, local...)
			mu.Unlock()
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
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
		return phaseStats{total: total, failures: failures}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	s := phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
	}
	if total > 0 {
		s.opsPerS = float64(len(samples)) / total.Seconds()
	}
	return s
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
	return samples[(len(samples)-1)*p/100]
}

func printStats(out io.Writer, name string, s phaseStats) {
	fmt.Fprintf(out, "%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
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
