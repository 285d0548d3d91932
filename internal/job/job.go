// Package job runs one sync: fetch popular items, transform them, upsert
// them into Notion and announce the new ones.
package job

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pep299/qiita-highlight-bridge/internal/logger"
	"github.com/pep299/qiita-highlight-bridge/internal/metrics"
	"github.com/pep299/qiita-highlight-bridge/internal/model"
	"github.com/pep299/qiita-highlight-bridge/internal/notify"
	"github.com/pep299/qiita-highlight-bridge/internal/notionsync"
	"github.com/pep299/qiita-highlight-bridge/internal/qiita"
	"github.com/pep299/qiita-highlight-bridge/internal/report"
)

// ErrAlreadyRunning is returned when a run is requested while another is in progress.
var ErrAlreadyRunning = errors.New("sync job already running")

// TriggerManual marks runs started through Run.
const TriggerManual = "manual"

// Fetcher returns popular source items.
type Fetcher interface {
	FetchPopular(ctx context.Context, windowDays, minLikes, minStocks int) ([]qiita.Item, error)
}

// Transformer maps source items to articles.
type Transformer interface {
	ToCanonical(ctx context.Context, item qiita.Item) model.Article
}

// Synchronizer writes articles to the destination.
type Synchronizer interface {
	EnsureSchema(ctx context.Context) error
	UpsertAll(ctx context.Context, articles []model.Article) notionsync.BatchOutcome
}

// Thresholds is the popularity filter applied to fetched items.
type Thresholds struct {
	MinLikes  int
	MinStocks int
}

// Dependencies wires a Job. Notifier, Store and Metrics are optional.
type Dependencies struct {
	Fetcher      Fetcher
	Transformer  Transformer
	Synchronizer Synchronizer
	Notifier     notify.Notifier
	Store        report.Store
	Metrics      *metrics.Metrics
	Logger       logger.Logger
	Thresholds   Thresholds
	Now          func() time.Time
}

// Job runs syncs. Only one run may be in progress at a time.
type Job struct {
	deps    Dependencies
	running sync.Mutex
}

// New creates a Job.
func New(deps Dependencies) *Job {
	if deps.Logger == nil {
		deps.Logger = logger.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Job{deps: deps}
}

// Init verifies the destination schema ahead of the first run.
func (j *Job) Init(ctx context.Context) error {
	if err := j.deps.Synchronizer.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("initializing destination schema: %w", err)
	}
	return nil
}

// Thresholds returns the popularity filter in use.
func (j *Job) Thresholds() Thresholds {
	return j.deps.Thresholds
}

// Store returns the run report store, which may be nil.
func (j *Job) Store() report.Store {
	return j.deps.Store
}

// Run syncs items created within the last backfillDays days.
func (j *Job) Run(ctx context.Context, backfillDays int) (*report.Report, error) {
	return j.RunFor(ctx, TriggerManual, backfillDays)
}

// RunFor is Run with the trigger recorded in the run report.
func (j *Job) RunFor(ctx context.Context, trigger string, backfillDays int) (*report.Report, error) {
	if !j.running.TryLock() {
		return nil, ErrAlreadyRunning
	}
	defer j.running.Unlock()

	rep := report.New(trigger, backfillDays, j.deps.Now())
	log := j.deps.Logger.With(logger.String("run_id", rep.ID), logger.String("trigger", trigger))
	log.Info("Starting sync", logger.Int("backfill_days", backfillDays))

	err := j.run(ctx, log, rep, backfillDays)
	j.finish(ctx, log, rep, err)
	if err != nil {
		return rep, err
	}
	return rep, nil
}

func (j *Job) run(ctx context.Context, log logger.Logger, rep *report.Report, backfillDays int) error {
	if backfillDays < 1 {
		return fmt.Errorf("backfill days must be at least 1, got %d", backfillDays)
	}

	thresholds := j.deps.Thresholds
	items, err := j.deps.Fetcher.FetchPopular(ctx, backfillDays, thresholds.MinLikes, thresholds.MinStocks)
	if err != nil {
		return fmt.Errorf("fetching popular items: %w", err)
	}
	rep.Fetched = len(items)

	if len(items) == 0 {
		log.Info("No popular articles found",
			logger.Int("min_likes", thresholds.MinLikes), logger.Int("min_stocks", thresholds.MinStocks))
		rep.Status = report.StatusEmpty
		return nil
	}

	articles := make([]model.Article, 0, len(items))
	for _, item := range items {
		articles = append(articles, j.deps.Transformer.ToCanonical(ctx, item))
	}

	outcome := j.deps.Synchronizer.UpsertAll(ctx, articles)
	rep.Success = outcome.Success
	rep.New = outcome.New
	rep.Errors = outcome.Errors
	for _, article := range outcome.NewArticles {
		rep.NewURLs = append(rep.NewURLs, article.URL)
	}

	if len(outcome.NewArticles) > 0 && j.deps.Notifier != nil {
		if err := j.deps.Notifier.Notify(ctx, outcome.NewArticles); err != nil {
			log.Warn("Notification failed", logger.Err(err))
		} else {
			j.deps.Metrics.RecordNotification()
		}
	}

	rep.Status = report.StatusSuccess
	return nil
}

func (j *Job) finish(ctx context.Context, log logger.Logger, rep *report.Report, err error) {
	rep.FinishedAt = j.deps.Now()
	if err != nil {
		rep.Status = report.StatusFailure
		rep.Error = err.Error()
		log.Error("Sync failed", logger.Err(err), logger.Duration("duration", rep.Duration()))
	} else {
		log.Info("Sync finished",
			logger.String("status", rep.Status),
			logger.Int("fetched", rep.Fetched),
			logger.Int("success", rep.Success),
			logger.Int("new", rep.New),
			logger.Int("errors", rep.Errors),
			logger.Duration("duration", rep.Duration()))
	}
	j.deps.Metrics.RecordRun(rep.Status, rep.StartedAt, rep.FinishedAt)

	if j.deps.Store == nil {
		return
	}
	// The run is over; archive even if the caller's context was cancelled.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := j.deps.Store.Save(saveCtx, rep); err != nil {
		log.Warn("Saving run report failed", logger.Err(err))
	}
}
