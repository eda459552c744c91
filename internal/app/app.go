// Package app assembles the relay pipeline from configuration: API client,
// downloader, notifier, history backend, progress sinks, and the optional
// archive and publisher integrations.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/pixelfall/tagrelay/internal/archive/gcs"
	"github.com/pixelfall/tagrelay/internal/archive/local"
	"github.com/pixelfall/tagrelay/internal/clock/system"
	"github.com/pixelfall/tagrelay/internal/config"
	"github.com/pixelfall/tagrelay/internal/discord"
	"github.com/pixelfall/tagrelay/internal/history"
	"github.com/pixelfall/tagrelay/internal/id/uuid"
	"github.com/pixelfall/tagrelay/internal/pixiv"
	"github.com/pixelfall/tagrelay/internal/progress"
	"github.com/pixelfall/tagrelay/internal/progress/sinks"
	pubsubpublisher "github.com/pixelfall/tagrelay/internal/publisher/pubsub"
	"github.com/pixelfall/tagrelay/internal/relay"
)

// App owns everything a batch run needs plus the shared metrics registry.
type App struct {
	Orchestrator *relay.Orchestrator
	Client       *pixiv.Client
	Registry     *prometheus.Registry
	Hub          *progress.Hub

	logger  *zap.Logger
	closers []func() error
}

// New builds the pipeline for one configuration. Login is left to the
// caller so serve mode can re-authenticate per batch.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	a := &App{
		Registry: prometheus.NewRegistry(),
		logger:   logger,
	}

	promSink, err := sinks.NewPrometheusSink(a.Registry)
	if err != nil {
		return nil, fmt.Errorf("init metrics sink: %w", err)
	}
	a.Hub = progress.NewHub(progress.Config{Logger: logger.Named("progress")},
		sinks.NewLogSink(logger.Named("events")),
		promSink,
	)

	client, err := pixiv.NewClient(pixiv.ClientConfig{
		Generation:       pixiv.Generation(cfg.API.Generation),
		Username:         cfg.PixivUsername,
		Password:         cfg.PixivPassword,
		RefreshTokenFile: cfg.PixivRefreshTokenFile,
	}, logger.Named("pixiv"))
	if err != nil {
		a.shutdown()
		return nil, fmt.Errorf("init api client: %w", err)
	}
	a.Client = client

	store, err := a.buildHistoryStore(ctx, cfg)
	if err != nil {
		a.shutdown()
		return nil, err
	}

	generation := pixiv.Generation(cfg.API.Generation)
	policy := relay.FilterPolicy{
		MainTag:         cfg.MainTag,
		FallbackVariant: generation.FallbackVariant(),
		AllowManga:      cfg.AllowManga,
		AllowR18:        cfg.AllowR18,
		AllowR18G:       cfg.AllowR18G,
	}

	selectorOpts := []relay.SelectorOption{relay.WithMaxPages(cfg.Limits.MaxPages)}
	if generation == pixiv.GenerationApp {
		// The app search response carries no age restriction; it only
		// surfaces through the per-work detail endpoint.
		selectorOpts = append(selectorOpts, relay.WithDetailer(client))
	}
	selector := relay.NewSelector(client, a.Hub, logger.Named("selector"), selectorOpts...)

	dispatcherOpts, err := a.buildDispatcherOptions(ctx, cfg)
	if err != nil {
		a.shutdown()
		return nil, err
	}
	dispatcher := relay.NewDispatcher(
		pixiv.NewFetcher(pixiv.FetcherConfig{}, logger.Named("fetcher")),
		discord.NewWebhook(discord.WebhookConfig{}, logger.Named("discord")),
		system.New(),
		a.Hub,
		relay.DispatcherConfig{
			HookURLs:       cfg.DiscordHookURLs,
			MaxUploadBytes: cfg.Limits.MaxUploadBytes,
			PostDelay:      cfg.PostDelay(),
			PublishTopic:   cfg.PubSub.Topic,
		},
		logger.Named("dispatcher"),
		dispatcherOpts...,
	)

	a.Orchestrator = relay.NewOrchestrator(
		selector,
		dispatcher,
		store,
		uuid.New(),
		system.New(),
		a.Hub,
		policy,
		relay.BuildRequests(cfg.SubTagTriples(), cfg.MainTag, cfg.Wildcard),
		logger.Named("relay"),
	)
	return a, nil
}

func (a *App) buildHistoryStore(ctx context.Context, cfg config.Config) (relay.HistoryStore, error) {
	switch cfg.History.Backend {
	case config.HistoryBackendPostgres:
		store, err := history.NewPostgresStore(ctx, history.PostgresConfig{
			DSN:   cfg.History.DSN,
			Table: cfg.History.Table,
		})
		if err != nil {
			return nil, fmt.Errorf("init postgres history: %w", err)
		}
		a.closers = append(a.closers, func() error { store.Close(); return nil })
		return store, nil
	case config.HistoryBackendMemory:
		return history.NewMemoryStore(), nil
	default:
		store, err := history.NewFileStore(cfg.History.Path, a.logger.Named("history"))
		if err != nil {
			return nil, fmt.Errorf("init file history: %w", err)
		}
		return store, nil
	}
}

func (a *App) buildDispatcherOptions(ctx context.Context, cfg config.Config) ([]relay.DispatcherOption, error) {
	var opts []relay.DispatcherOption
	switch cfg.Archive.Backend {
	case config.ArchiveBackendLocal:
		store, err := local.New(local.Config{BaseDir: cfg.Archive.Dir})
		if err != nil {
			return nil, fmt.Errorf("init local archive: %w", err)
		}
		opts = append(opts, relay.WithArchiver(store))
	case config.ArchiveBackendGCS:
		store, err := gcs.New(ctx, cfg.Archive.Bucket, cfg.Archive.Prefix, a.logger.Named("archive"))
		if err != nil {
			return nil, fmt.Errorf("init gcs archive: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		opts = append(opts, relay.WithArchiver(store))
	}
	if cfg.PubSub.ProjectID != "" && cfg.PubSub.Topic != "" {
		pub, err := pubsubpublisher.New(ctx, cfg.PubSub.ProjectID, cfg.PubSub.Topic)
		if err != nil {
			return nil, fmt.Errorf("init pubsub publisher: %w", err)
		}
		a.closers = append(a.closers, pub.Close)
		opts = append(opts, relay.WithPublisher(pub))
	}
	return opts, nil
}

// Close flushes the progress hub and releases backend connections.
func (a *App) Close() {
	a.shutdown()
}

func (a *App) shutdown() {
	if a.Hub != nil {
		flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := a.Hub.Close(flushCtx); err != nil {
			a.logger.Warn("progress hub close failed", zap.Error(err))
		}
		cancel()
	}
	for _, closer := range a.closers {
		if err := closer(); err != nil {
			a.logger.Warn("close failed", zap.Error(err))
		}
	}
	a.closers = nil
}
