// Package bootstrap assembles the sync pipeline from configuration.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/pep299/qiita-highlight-bridge/internal/cache"
	"github.com/pep299/qiita-highlight-bridge/internal/config"
	"github.com/pep299/qiita-highlight-bridge/internal/gemini"
	"github.com/pep299/qiita-highlight-bridge/internal/job"
	"github.com/pep299/qiita-highlight-bridge/internal/logger"
	"github.com/pep299/qiita-highlight-bridge/internal/metrics"
	"github.com/pep299/qiita-highlight-bridge/internal/notify"
	"github.com/pep299/qiita-highlight-bridge/internal/notion"
	"github.com/pep299/qiita-highlight-bridge/internal/notionsync"
	"github.com/pep299/qiita-highlight-bridge/internal/qiita"
	"github.com/pep299/qiita-highlight-bridge/internal/report"
	"github.com/pep299/qiita-highlight-bridge/internal/slack"
	"github.com/pep299/qiita-highlight-bridge/internal/summarizer"
	"github.com/pep299/qiita-highlight-bridge/internal/transform"
)

// App is a fully wired pipeline.
type App struct {
	Job      *job.Job
	Store    report.Store
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
}

// Options overrides endpoints, mainly for tests.
type Options struct {
	QiitaOptions  []qiita.Option
	NotionOptions []notion.Option
	GeminiOptions []gemini.Option
	SlackOptions  []slack.Option
	// Store replaces the store chosen from configuration.
	Store report.Store
}

// Build wires clients, synchronizer, notifiers and the report store.
func Build(ctx context.Context, cfg *config.Config, log logger.Logger, opts Options) (*App, error) {
	if log == nil {
		log = logger.NewNop()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	fetcher, err := qiita.NewClient(cfg.QiitaToken, append([]qiita.Option{
		qiita.WithLogger(log.With(logger.String("component", "qiita"))),
		qiita.WithMetrics(m),
	}, opts.QiitaOptions...)...)
	if err != nil {
		return nil, fmt.Errorf("creating qiita client: %w", err)
	}

	notionClient, err := notion.NewClient(cfg.NotionToken, cfg.NotionDatabaseID, opts.NotionOptions...)
	if err != nil {
		return nil, fmt.Errorf("creating notion client: %w", err)
	}
	synchronizer := notionsync.New(notionClient,
		notionsync.WithLogger(log.With(logger.String("component", "notion"))),
		notionsync.WithMetrics(m),
	)

	transformer := transform.New(newSummarizer(cfg, opts), log.With(logger.String("component", "transform")))

	store := opts.Store
	if store == nil {
		store, err = newStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}

	j := job.New(job.Dependencies{
		Fetcher:      fetcher,
		Transformer:  transformer,
		Synchronizer: synchronizer,
		Notifier:     newNotifier(cfg, log, opts),
		Store:        store,
		Metrics:      m,
		Logger:       log,
		Thresholds:   job.Thresholds{MinLikes: cfg.MinLikes, MinStocks: cfg.MinStocks},
	})

	log.Info("Pipeline ready",
		logger.Bool("gemini", cfg.GeminiAPIKey != ""),
		logger.Bool("slack", cfg.SlackBotToken != ""),
		logger.String("report_bucket", cfg.ReportBucket),
	)

	return &App{Job: j, Store: store, Registry: reg, Metrics: m}, nil
}

// Close releases the report store.
func (a *App) Close() error {
	if a.Store == nil {
		return nil
	}
	return a.Store.Close()
}

func newSummarizer(cfg *config.Config, opts Options) summarizer.Summarizer {
	extractive := summarizer.NewExtractive()
	if cfg.GeminiAPIKey == "" {
		return extractive
	}
	var primary summarizer.Summarizer = gemini.NewClient(cfg.GeminiAPIKey, cfg.GeminiModel, opts.GeminiOptions...)
	if cfg.SummaryCacheHours > 0 {
		primary = cache.NewSummarizer(primary, cache.NewMemoryCache(time.Duration(cfg.SummaryCacheHours)*time.Hour))
	}
	return summarizer.WithFallback(primary, extractive)
}

func newNotifier(cfg *config.Config, log logger.Logger, opts Options) notify.Notifier {
	console := notify.NewConsole(log.With(logger.String("component", "notify")))
	if cfg.SlackBotToken == "" {
		return console
	}
	client := slack.NewClient(cfg.SlackBotToken, cfg.SlackChannel, opts.SlackOptions...)
	return notify.Multi{console, notify.NewSlack(client)}
}

func newStore(ctx context.Context, cfg *config.Config) (report.Store, error) {
	if cfg.ReportBucket == "" {
		return report.NewMemoryStore(0), nil
	}
	store, err := report.NewCloudStorageStore(ctx, cfg.ReportBucket)
	if err != nil {
		return nil, fmt.Errorf("creating report store: %w", err)
	}
	return store, nil
}
