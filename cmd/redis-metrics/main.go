package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/aiox-platform/redis-metrics/internal/api"
	"github.com/aiox-platform/redis-metrics/internal/config"
	"github.com/aiox-platform/redis-metrics/internal/logging"
	"github.com/aiox-platform/redis-metrics/internal/poller"
	iredis "github.com/aiox-platform/redis-metrics/internal/redis"
	"github.com/aiox-platform/redis-metrics/internal/server"
)

const startupTimeout = 10 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return 0
	}
	if err != nil {
		slog.Error("loading config", "error", err)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		return 1
	}

	logger, closeLog := newLogger(cfg)
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Redis
	manager := iredis.NewManager(cfg.Redis, logger)
	defer manager.Close()

	handle := manager.Handle()
	if handle == nil {
		logging.Fatal(ctx, logger, "Redis client unavailable", "event", "Startup", "data", manager.String())
		return 1
	}

	pingCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	err = manager.Ping(pingCtx)
	cancel()
	if err != nil {
		logging.Fatal(ctx, logger, "Redis ping failed", "event", "Startup", "data", manager.String(), "error", err)
		return 1
	}

	p := poller.New(func() poller.Commander { return handle.Client() }, logger, poller.Options{
		Interval:      cfg.Poll.Interval,
		SlowlogMaxLen: cfg.Poll.SlowlogMaxLen,
	})

	if cfg.Once {
		p.LogMetrics(ctx)
		return 0
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// Stop ends the loop; cancelling gctx must not abort a cycle mid-command.
		if err := p.Start(context.WithoutCancel(gctx)); err != nil {
			return err
		}
		<-gctx.Done()
		p.Stop()
		return nil
	})

	if cfg.HTTP.Addr != "" {
		router := api.NewRouter(api.RouterConfig{
			Logger:      logger,
			Ready:       manager.IsConnected,
			PollerState: func() string { return p.State().String() },
		})
		srv := server.New(cfg.HTTP.Addr, router, logger)
		g.Go(func() error { return srv.Run(gctx) })
	}

	if err := g.Wait(); err != nil {
		logger.Error("shutting down", "event", "Shutdown", "error", err)
		return 1
	}
	logger.Info("stopped", "event", "Shutdown")
	return 0
}

func newLogger(cfg *config.Config) (*slog.Logger, func() error) {
	opts := logging.Options{
		Name:    cfg.Service,
		Service: cfg.Service,
		Level:   logging.ParseLevel(cfg.Log.Level),
		File:    cfg.Log.File,
	}
	if cfg.Log.Resources {
		opts.Resources = logging.NewSystemSampler(time.Second)
	}
	return logging.New(opts)
}
