package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fusione/authcore"
	"github.com/fusione/authcore/config"
	"github.com/fusione/authcore/directory"
	"github.com/fusione/authcore/events"
	"github.com/fusione/authcore/logging"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

type serveOptions struct {
	addr           string
	embeddedRedis  bool
	trustForwarded bool
}

func NewServeCmd() *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API: /register, /login, /refresh, /logout, /me,
/moderation and /metrics. The session reaper runs until shutdown.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().BoolVar(&opts.embeddedRedis, "embedded-redis", false, "run an in-process Redis for the directory and event bus (development only)")
	cmd.Flags().BoolVar(&opts.trustForwarded, "trust-forwarded", false, "take the client IP from X-Forwarded-For")

	return cmd
}

// closers runs cleanup in reverse order of registration.
type closers []func()

func (c *closers) add(fn func()) { *c = append(*c, fn) }

func (c closers) run() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

func runServe(ctx context.Context, cmd *cobra.Command, opts *serveOptions) error {
	settings, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if opts.addr != "" {
		settings.Server.Addr = opts.addr
	}

	logger := logging.Setup("authcore", version, logging.Options{
		Format: settings.Log.Format,
		Level:  settings.Log.Level,
	}, cmd.ErrOrStderr())

	var cleanup closers
	defer cleanup.run()

	if opts.embeddedRedis {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("start embedded redis: %w", err)
		}
		cleanup.add(mr.Close)
		settings.Directory.RedisAddr = mr.Addr()
		settings.Events.RedisAddr = mr.Addr()
		logger.Warn("using embedded redis; data is lost on exit", "addr", mr.Addr())
	}

	engine, err := buildEngine(ctx, settings, logger, &cleanup)
	if err != nil {
		return err
	}
	cleanup.add(engine.Close)

	engine.StartReaper()
	logger.Info("security posture", "report", engine.SecurityReport())

	srv := &http.Server{
		Addr:              settings.Server.Addr,
		Handler:           newRouter(engine, logger, opts.trustForwarded),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), settings.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// buildEngine opens the configured directory and event bus and builds the
// engine over them. Resources are registered on cleanup.
func buildEngine(ctx context.Context, settings *config.Settings, logger *slog.Logger, cleanup *closers) (*authcore.Engine, error) {
	cfg, err := settings.Engine()
	if err != nil {
		return nil, err
	}

	dir, err := openDirectory(ctx, settings.Directory, cleanup)
	if err != nil {
		return nil, err
	}

	bus, err := openBus(ctx, settings, logger, cleanup)
	if err != nil {
		return nil, err
	}

	b := authcore.New().
		WithConfig(cfg).
		WithDirectory(dir).
		WithLogger(logger)
	if bus != nil {
		b = b.WithEventBus(bus)
	}
	return b.Build()
}

func openRedis(ctx context.Context, addr string, cleanup *closers) (redis.UniversalClient, error) {
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	cleanup.add(func() { _ = client.Close() })
	return client, nil
}

func openDirectory(ctx context.Context, s config.DirectorySettings, cleanup *closers) (authcore.Directory, error) {
	switch s.Backend {
	case config.BackendRedis:
		client, err := openRedis(ctx, s.RedisAddr, cleanup)
		if err != nil {
			return nil, err
		}
		return directory.NewRedis(client, s.RedisPrefix), nil
	case config.BackendPostgres:
		pool, err := pgxpool.New(ctx, s.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		cleanup.add(pool.Close)
		dir := directory.NewPostgres(pool)
		if err := dir.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return dir, nil
	default:
		return directory.NewMemory(), nil
	}
}

func openBus(ctx context.Context, settings *config.Settings, logger *slog.Logger, cleanup *closers) (authcore.EventBus, error) {
	logBus := events.NewLogBus(logger.With("component", "events"), slog.LevelInfo)
	switch settings.Events.Bus {
	case "none":
		return nil, nil
	case "redis":
		addr := settings.Events.RedisAddr
		if addr == "" {
			addr = settings.Directory.RedisAddr
		}
		client, err := openRedis(ctx, addr, cleanup)
		if err != nil {
			return nil, err
		}
		return events.Fanout{logBus, events.NewRedisBus(client, settings.Events.ChannelPrefix)}, nil
	default:
		return logBus, nil
	}
}
