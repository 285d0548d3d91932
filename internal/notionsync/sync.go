// Package notionsync keeps the Notion article database in step with the
// fetched articles: one page per URL, created or overwritten on every run.
package notionsync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pep299/qiita-highlight-bridge/internal/logger"
	"github.com/pep299/qiita-highlight-bridge/internal/metrics"
	"github.com/pep299/qiita-highlight-bridge/internal/model"
	"github.com/pep299/qiita-highlight-bridge/internal/notion"
	"github.com/pep299/qiita-highlight-bridge/internal/retry"
	"github.com/pep299/qiita-highlight-bridge/internal/timeutil"
)

// MaxTags is the number of tags written to a page.
const MaxTags = 10

// ErrMissingURL is returned for articles without a natural key.
var ErrMissingURL = errors.New("article has no url")

// API is the subset of the Notion client used by the synchronizer.
type API interface {
	RetrieveDatabase(ctx context.Context) (*notion.Database, error)
	UpdateDatabaseProperties(ctx context.Context, properties map[string]any) error
	QueryDatabase(ctx context.Context, query notion.QueryRequest) (*notion.QueryResult, error)
	CreatePage(ctx context.Context, properties notion.Properties) (*notion.Page, error)
	UpdatePage(ctx context.Context, pageID string, properties notion.Properties) (*notion.Page, error)
}

// Status is the outcome of a single upsert.
type Status int

const (
	StatusFailed Status = iota
	StatusCreated
	StatusUpdated
)

func (s Status) String() string {
	switch s {
	case StatusCreated:
		return metrics.ResultCreated
	case StatusUpdated:
		return metrics.ResultUpdated
	default:
		return metrics.ResultFailed
	}
}

// Result is the outcome of Upsert.
type Result struct {
	Status Status
	PageID string
	Err    error
}

// Success reports whether the page was written.
func (r Result) Success() bool { return r.Status != StatusFailed }

// Created reports whether a new page was made.
func (r Result) Created() bool { return r.Status == StatusCreated }

// Tuple returns (success, wasNewlyCreated, pageID).
func (r Result) Tuple() (bool, bool, string) {
	return r.Success(), r.Created(), r.PageID
}

// BatchOutcome aggregates the results of UpsertAll.
type BatchOutcome struct {
	Success     int             `json:"success"`
	New         int             `json:"new"`
	Errors      int             `json:"errors"`
	NewArticles []model.Article `json:"new_articles"`
}

// Synchronizer writes articles to a Notion database.
type Synchronizer struct {
	api     API
	policy  retry.Policy
	logger  logger.Logger
	metrics *metrics.Metrics

	schemaMu       sync.Mutex
	schemaVerified bool
}

// Option customises a Synchronizer.
type Option func(*Synchronizer)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Synchronizer) { s.logger = l }
}

// WithMetrics records upsert outcomes and retries.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Synchronizer) { s.metrics = m }
}

// WithSleep replaces the backoff sleep.
func WithSleep(sleep retry.SleepFunc) Option {
	return func(s *Synchronizer) { s.policy.Sleep = sleep }
}

// WithMaxAttempts overrides the number of attempts per article.
func WithMaxAttempts(n int) Option {
	return func(s *Synchronizer) { s.policy.MaxAttempts = n }
}

// New creates a Synchronizer. Rate-limited calls are retried three times with
// 1s, 2s and 4s backoff; any other API error fails the article immediately.
func New(api API, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		api:    api,
		policy: retry.DefaultPolicy(notion.IsRateLimited),
		logger: logger.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		s.metrics.RecordRetry()
		s.logger.Warn("Notion rate limited, backing off",
			logger.Int("attempt", attempt+1),
			logger.Duration("delay", delay),
			logger.Err(err))
	}
	return s
}

// Upsert creates or updates the page whose url equals article.URL.
func (s *Synchronizer) Upsert(ctx context.Context, article model.Article) Result {
	if article.URL == "" {
		s.metrics.RecordUpsert(metrics.ResultFailed)
		return Result{Status: StatusFailed, Err: ErrMissingURL}
	}

	var result Result
	err := retry.Do(ctx, s.policy, func(attempt int) error {
		if err := s.EnsureSchema(ctx); err != nil {
			return err
		}

		existing, err := s.findByURL(ctx, article.URL)
		if err != nil {
			return err
		}

		properties := s.pageProperties(article)
		if existing != nil {
			page, err := s.api.UpdatePage(ctx, existing.ID, properties)
			if err != nil {
				return err
			}
			result = Result{Status: StatusUpdated, PageID: pageID(page, existing.ID)}
			return nil
		}

		page, err := s.api.CreatePage(ctx, properties)
		if err != nil {
			return err
		}
		result = Result{Status: StatusCreated, PageID: pageID(page, "")}
		return nil
	})
	if err != nil {
		s.logger.Error("Upserting article failed",
			logger.String("url", article.URL), logger.Err(err))
		s.metrics.RecordUpsert(metrics.ResultFailed)
		return Result{Status: StatusFailed, Err: err}
	}

	if result.Created() {
		s.logger.Info("Created page", logger.String("title", article.Title), logger.String("page_id", result.PageID))
	} else {
		s.logger.Debug("Updated page", logger.String("title", article.Title), logger.String("page_id", result.PageID))
	}
	s.metrics.RecordUpsert(result.Status.String())
	return result
}

// UpsertAll upserts articles one by one in order. Failures, including panics,
// are counted and never stop the batch.
func (s *Synchronizer) UpsertAll(ctx context.Context, articles []model.Article) BatchOutcome {
	outcome := BatchOutcome{NewArticles: []model.Article{}}

	for _, article := range articles {
		result := s.safeUpsert(ctx, article)
		if !result.Success() {
			outcome.Errors++
			continue
		}
		outcome.Success++
		if result.Created() {
			outcome.New++
			outcome.NewArticles = append(outcome.NewArticles, article)
		}
	}

	s.logger.Info("Notion database updated",
		logger.Int("success", outcome.Success),
		logger.Int("new", outcome.New),
		logger.Int("errors", outcome.Errors))
	return outcome
}

func (s *Synchronizer) safeUpsert(ctx context.Context, article model.Article) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Recovered from panic while upserting article",
				logger.String("url", article.URL), logger.Any("panic", r))
			s.metrics.RecordUpsert(metrics.ResultFailed)
			result = Result{Status: StatusFailed, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	return s.Upsert(ctx, article)
}

func (s *Synchronizer) findByURL(ctx context.Context, url string) (*notion.Page, error) {
	res, err := s.api.QueryDatabase(ctx, notion.QueryRequest{
		Filter:   &notion.Filter{Property: PropURL, URL: &notion.TextCondition{Equals: url}},
		PageSize: 1,
	})
	if err != nil {
		return nil, err
	}
	if len(res.Results) == 0 {
		return nil, nil
	}
	return &res.Results[0], nil
}

func (s *Synchronizer) pageProperties(article model.Article) notion.Properties {
	return notion.Properties{
		PropTitle:     notion.TitleValue(article.Title),
		PropURL:       notion.URLValue(article.URL),
		PropAuthor:    notion.RichTextValue(article.Author),
		PropLikes:     notion.NumberValue(article.Likes),
		PropStocks:    notion.NumberValue(article.Stocks),
		PropTags:      notion.MultiSelectValue(tagOptions(article.Tags)),
		PropSummary:   notion.RichTextValue(article.Summary),
		PropCreatedAt: notion.DateValueOf(s.createdAt(article)),
	}
}

func (s *Synchronizer) createdAt(article model.Article) string {
	if article.CreatedAt == "" {
		return ""
	}
	if _, err := timeutil.ParseISO(article.CreatedAt); err != nil {
		s.logger.Warn("Omitting unparsable created_at",
			logger.String("url", article.URL), logger.String("created_at", article.CreatedAt))
		return ""
	}
	return article.CreatedAt
}

// tagOptions keeps the first MaxTags tags. Notion rejects commas in option names.
func tagOptions(tags []string) []string {
	if len(tags) > MaxTags {
		tags = tags[:MaxTags]
	}
	names := make([]string, 0, len(tags))
	for _, tag := range tags {
		names = append(names, strings.ReplaceAll(tag, ",", " "))
	}
	return names
}

func pageID(page *notion.Page, fallback string) string {
	if page != nil && page.ID != "" {
		return page.ID
	}
	return fallback
}
