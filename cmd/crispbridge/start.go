package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattjoyce/crispbridge/internal/api"
	"github.com/mattjoyce/crispbridge/internal/cache"
	"github.com/mattjoyce/crispbridge/internal/config"
	"github.com/mattjoyce/crispbridge/internal/crisp"
	"github.com/mattjoyce/crispbridge/internal/events"
	"github.com/mattjoyce/crispbridge/internal/log"
	"github.com/mattjoyce/crispbridge/internal/schema"
	"github.com/mattjoyce/crispbridge/internal/settings"
	"github.com/mattjoyce/crispbridge/internal/storage"
	"github.com/mattjoyce/crispbridge/internal/tokengate"
	"github.com/mattjoyce/crispbridge/internal/webhook"
)

const (
	sweepInterval = time.Minute
	pruneInterval = time.Hour
)

// app holds the wired components of a running service.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	server  *api.Server
	memory  *cache.MemoryStore
	journal *storage.Journal
	closers []func() error
}

func crispConfig(cfg *config.Config) crisp.Config {
	return crisp.Config{
		BaseURL:  cfg.Crisp.APIURL,
		PluginID: cfg.Crisp.PluginID,
		Tier:     cfg.Crisp.Tier,
		TokenID:  cfg.Crisp.TokenID,
		TokenKey: cfg.Crisp.TokenKey,
		Timeout:  cfg.Crisp.Timeout,
	}
}

// newApp builds every component from cfg. On error, anything already
// opened is closed.
func newApp(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	a := &app{cfg: cfg, logger: log.WithComponent("main")}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	client := crisp.New(crispConfig(cfg))
	checks := make(map[string]api.HealthCheck)

	var store cache.Store
	if cfg.Redis.URL != "" {
		rs, err := cache.NewRedisStore(cfg.Redis.URL, cfg.Redis.Prefix)
		if err != nil {
			return nil, fmt.Errorf("token cache: %w", err)
		}
		a.closers = append(a.closers, rs.Close)
		checks["redis"] = rs.Ping
		store = rs
	} else {
		a.memory = cache.NewMemoryStore()
		store = a.memory
	}

	var sinks []events.Sink
	if cfg.Redis.URL != "" {
		sink, err := events.NewRedisSink(cfg.Redis.URL, cfg.Redis.Channel)
		if err != nil {
			return nil, fmt.Errorf("event sink: %w", err)
		}
		a.closers = append(a.closers, sink.Close)
		sinks = append(sinks, sink)
	}

	var journalReader api.JournalReader
	if cfg.Journal.Path != "" {
		lk, err := storage.AcquireLock(storage.LockPath(cfg.Journal.Path))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, lk.Release)

		j, err := storage.OpenJournal(ctx, cfg.Journal.Path)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		a.closers = append(a.closers, j.Close)
		a.journal = j
		checks["journal"] = j.Ping
		sinks = append(sinks, j)
		journalReader = j
	}

	hub := events.NewHub(cfg.Ops.EventBuffer)
	bus := events.NewBus(hub, log.WithComponent("events"), sinks...)

	hookCfg, err := webhook.FromGlobalConfig(cfg)
	if err != nil {
		return nil, err
	}

	gate := tokengate.New(client, store, tokengate.Config{
		TTL:          cfg.Settings.TokenCacheTTL,
		FrameOrigins: cfg.Settings.AllowedFrameOrigins,
	}, log.WithComponent("tokengate"))

	deps := api.Deps{
		Webhook:  webhook.New(hookCfg, bus, log.WithComponent("webhook")),
		Gate:     gate,
		Settings: settings.NewController(client, schema.NewRenderer(cfg.Settings.RenderCacheSize), log.WithComponent("settings")),
		Events:   hub,
		Journal:  journalReader,
		Checks:   checks,
	}

	a.server = api.New(api.Config{
		Listen:          cfg.Service.Listen,
		SettingsPath:    cfg.Settings.Path,
		OpsAPIKey:       cfg.Ops.APIKey,
		ShutdownTimeout: cfg.Service.ShutdownTimeout,
	}, deps, log.WithComponent("api"))

	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}

// pruneJournal drops entries older than the retention window. It runs
// once immediately and then every interval until ctx is cancelled.
func (a *app) pruneJournal(ctx context.Context, interval time.Duration) {
	if a.journal == nil || a.cfg.Journal.Retention <= 0 {
		return
	}
	prune := func() {
		n, err := a.journal.Prune(ctx, time.Now().Add(-a.cfg.Journal.Retention))
		if err != nil {
			if ctx.Err() == nil {
				a.logger.Warn("journal prune failed", "error", err)
			}
			return
		}
		if n > 0 {
			a.logger.Info("journal pruned", "removed", n)
		}
	}

	prune()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}

func runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	if *configPath == "" {
		*configPath = config.Discover()
		if *configPath != "" {
			fmt.Fprintf(os.Stderr, "Using discovered config: %s\n", *configPath)
		}
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("main")
	logger.Info("crispbridge starting", "version", version, "config", cfg.SourceFile)
	if cfg.Crisp.SigningSecret == "" {
		log.Warn("no signing secret configured; webhook signatures are not verified")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		logger.Error("startup failed", "error", err)
		return 1
	}
	defer a.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	if a.memory != nil {
		go a.memory.RunSweeper(ctx, sweepInterval)
	}
	go a.pruneJournal(ctx, pruneInterval)

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- a.server.Start(ctx)
	}()

	logger.Info("crispbridge running",
		"listen", cfg.Service.Listen,
		"webhook", webhook.RoutePath(cfg.Webhook.Path),
		"settings", a.server.SettingsRoute(),
		"ops", cfg.Ops.APIKey != "",
	)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
		// Start returns once in-flight requests drain or the shutdown timeout passes.
		if err := <-serverDone; err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("shutdown error", "error", err)
		}
	case err := <-serverDone:
		logger.Error("api server failed", "error", err)
		return 1
	}

	logger.Info("crispbridge stopped")
	return 0
}
