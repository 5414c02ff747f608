package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/c360studio/semstreams/natsclient"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/c360studio/semreq/builder"
	"github.com/c360studio/semreq/cache"
	"github.com/c360studio/semreq/config"
	"github.com/c360studio/semreq/graph"
	"github.com/c360studio/semreq/metrics"
	"github.com/c360studio/semreq/storage"
)

// App wires the builder to its optional infrastructure: the parse cache,
// NATS publishing and the requirement store.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	registry *prometheus.Registry
	metrics  *metrics.Metrics

	cache *cache.Cache

	// NATS
	natsClient *natsclient.Client
	store      *storage.Store

	builder *builder.Builder
}

// AppOptions override configuration for one invocation.
type AppOptions struct {
	OutDir  string
	Formats []string

	// Offline skips NATS even when configured.
	Offline bool
}

// NewApp creates a new application instance.
func NewApp(cfg *config.Config, logger *slog.Logger) *App {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return &App{
		cfg:      cfg,
		logger:   logger,
		registry: reg,
		metrics:  metrics.New(reg),
	}
}

// Start opens the configured infrastructure and creates the builder.
func (a *App) Start(ctx context.Context, opts AppOptions) error {
	if a.cfg.Cache.Enabled {
		dir := a.cfg.Cache.Dir
		if dir != "" && !filepath.IsAbs(dir) {
			dir = filepath.Join(a.cfg.Source.Root, dir)
		}
		c, err := cache.Open(cache.Config{Path: dir, InMemory: dir == "", Logger: a.logger})
		if err != nil {
			return err
		}
		a.cache = c
	}

	var bopts builder.Options
	if a.cfg.NATS.URL != "" && !opts.Offline {
		if err := a.startNATS(ctx); err != nil {
			return fmt.Errorf("start NATS: %w", err)
		}
		bopts.Publisher = graph.NewStreamPublisher(a.natsClient)
		bopts.Store = a.store
	}

	bopts.Config = a.cfg
	bopts.Logger = a.logger
	bopts.Metrics = a.metrics
	bopts.OutDir = opts.OutDir
	bopts.Formats = opts.Formats
	if a.cache != nil {
		bopts.Cache = a.cache
	}
	b, err := builder.New(bopts)
	if err != nil {
		return err
	}
	a.builder = b
	return nil
}

func (a *App) startNATS(ctx context.Context) error {
	a.logger.Info("Connecting to NATS", "url", a.cfg.NATS.URL)
	client, err := natsclient.NewClient(a.cfg.NATS.URL,
		natsclient.WithName(appName),
		natsclient.WithMaxReconnects(-1),
		natsclient.WithReconnectWait(time.Second),
		natsclient.WithHealthInterval(30*time.Second),
	)
	if err != nil {
		return fmt.Errorf("create NATS client: %w", err)
	}
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	a.natsClient = client

	ctx, cancel := context.WithTimeout(ctx, a.cfg.NATS.Timeout)
	defer cancel()
	if err := client.WaitForConnection(ctx); err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := client.JetStream()
	if err != nil {
		return fmt.Errorf("get jetstream: %w", err)
	}
	store, err := storage.NewStore(ctx, js, storage.BucketRequirements)
	if err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}
	a.store = store
	return nil
}

// Builder returns the builder created by Start.
func (a *App) Builder() *builder.Builder {
	return a.builder
}

// Shutdown releases everything Start opened.
func (a *App) Shutdown() {
	if a.natsClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.NATS.Timeout)
		a.natsClient.Close(ctx)
		cancel()
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("Cache close failed", "error", err)
		}
	}
}
