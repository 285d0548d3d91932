// Package qiita fetches popular posts from the Qiita API v2.
package qiita

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/pep299/qiita-highlight-bridge/internal/config"
	"github.com/pep299/qiita-highlight-bridge/internal/logger"
	"github.com/pep299/qiita-highlight-bridge/internal/metrics"
	"github.com/pep299/qiita-highlight-bridge/internal/retry"
	"github.com/pep299/qiita-highlight-bridge/internal/timeutil"
)

const (
	DefaultBaseURL = "https://qiita.com/api/v2"

	// PerPage is the page size requested; a shorter page ends pagination.
	PerPage = 100
	// MaxPage is the highest page number the items endpoint serves.
	MaxPage = 100

	// LowWaterMark is the Rate-Remaining value below which the client cools down.
	LowWaterMark     = 5
	LowQuotaCooldown = 10 * time.Second

	DefaultRetryAfter   = 60 * time.Second
	DefaultPageInterval = time.Second
)

// User is the author block of an item.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Tag is a tag attached to an item.
type Tag struct {
	Name string `json:"name"`
}

// Item is a Qiita post as returned by GET /items.
type Item struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Body        string `json:"body"`
	User        User   `json:"user"`
	CreatedAt   string `json:"created_at"`
	LikesCount  int    `json:"likes_count"`
	StocksCount int    `json:"stocks_count"`
	Tags        []Tag  `json:"tags"`
}

// Client handles Qiita API operations
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	now        func() time.Time
	sleep      retry.SleepFunc
	logger     logger.Logger
	metrics    *metrics.Metrics
}

// Option customises a Client.
type Option func(*Client)

// WithBaseURL points the client at another API root.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithPageInterval sets the minimum delay between page requests. Zero disables throttling.
func WithPageInterval(d time.Duration) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Every(d), 1) }
}

// WithClock replaces time.Now for window computation.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithSleep replaces the sleep used for cooldown and Retry-After waits.
func WithSleep(sleep retry.SleepFunc) Option {
	return func(c *Client) { c.sleep = sleep }
}

// WithLogger sets the client logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics records page and selection counts.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a Qiita client. A malformed token is rejected here, not per call.
func NewClient(token string, opts ...Option) (*Client, error) {
	if err := config.ValidateQiitaToken(token); err != nil {
		return nil, err
	}

	c := &Client{
		token:   token,
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Every(DefaultPageInterval), 1),
		now:     time.Now,
		sleep:   retry.Sleep,
		logger:  logger.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// APIError is a non-2xx response other than 429.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("qiita API returned status %d: %s", e.StatusCode, e.Message)
}

// RateLimitError is returned after a 429 once the Retry-After wait is over.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("qiita API rate limit exceeded (waited %s)", e.RetryAfter)
}

// FetchPopular returns items created within the last windowDays that have at least
// minLikes likes or at least minStocks stocks, in API order.
//
// A failing page ends pagination and whatever was fetched so far is still filtered
// and returned. Only an invalid window or a cancelled context yields an error.
func (c *Client) FetchPopular(ctx context.Context, windowDays, minLikes, minStocks int) ([]Item, error) {
	if windowDays < 1 {
		return nil, fmt.Errorf("window must be at least 1 day, got %d", windowDays)
	}

	start, end := timeutil.DateRange(c.now(), windowDays)
	query := "created:>=" + timeutil.FormatDate(start)
	c.logger.Info("Searching Qiita items", logger.String("query", query), logger.Int("window_days", windowDays))

	var all []Item
	for page := 1; page <= MaxPage; page++ {
		if err := c.limiter.Wait(ctx); err != nil {
			c.logger.Warn("Pagination interrupted", logger.Int("page", page), logger.Err(err))
			break
		}

		items, err := c.fetchPage(ctx, query, page)
		if err != nil {
			c.logger.Error("Fetching page failed, keeping accumulated items",
				logger.Int("page", page), logger.Int("accumulated", len(all)), logger.Err(err))
			break
		}
		if len(items) == 0 {
			break
		}

		c.metrics.RecordPage(len(items))
		all = append(all, items...)
		c.logger.Info("Fetched page", logger.Int("page", page), logger.Int("total", len(all)))

		if len(items) < PerPage {
			break
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	popular := c.filterPopular(all, start, end, minLikes, minStocks)
	c.metrics.RecordSelected(len(popular))
	c.logger.Info("Filtered popular items",
		logger.Int("fetched", len(all)), logger.Int("matched", len(popular)))
	return popular, nil
}

// MeetsThreshold reports whether likes >= minLikes or stocks >= minStocks.
func MeetsThreshold(likes, stocks, minLikes, minStocks int) bool {
	return likes >= minLikes || stocks >= minStocks
}

func (c *Client) filterPopular(items []Item, start, end time.Time, minLikes, minStocks int) []Item {
	var popular []Item
	for _, item := range items {
		createdAt, err := timeutil.ParseISO(item.CreatedAt)
		if err != nil {
			c.logger.Warn("Dropping item with unparsable created_at",
				logger.String("url", item.URL), logger.String("created_at", item.CreatedAt))
			continue
		}
		if !timeutil.WithinRange(createdAt, start, end) {
			continue
		}
		if MeetsThreshold(item.LikesCount, item.StocksCount, minLikes, minStocks) {
			popular = append(popular, item)
		}
	}
	return popular
}

func (c *Client) fetchPage(ctx context.Context, query string, page int) ([]Item, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("per_page", strconv.Itoa(PerPage))
	params.Set("page", strconv.Itoa(page))

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/items?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching items page %d: %w", page, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		wait := parseRetryAfter(resp.Header.Get("Retry-After"))
		c.logger.Warn("Rate limited by Qiita, waiting", logger.Duration("retry_after", wait))
		if err := c.sleep(ctx, wait); err != nil {
			return nil, err
		}
		return nil, &RateLimitError{RetryAfter: wait}
	}

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Message string `json:"message"`
		}
		data, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(data, &body) != nil || body.Message == "" {
			body.Message = string(data)
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: body.Message}
	}

	var items []Item
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("decoding items page %d: %w", page, err)
	}

	if remaining, err := strconv.Atoi(resp.Header.Get("Rate-Remaining")); err == nil {
		c.logger.Debug("Qiita rate limit remaining", logger.Int("remaining", remaining))
		if remaining < LowWaterMark {
			c.logger.Warn("Qiita rate limit nearly exhausted, cooling down",
				logger.Int("remaining", remaining), logger.Duration("cooldown", LowQuotaCooldown))
			if err := c.sleep(ctx, LowQuotaCooldown); err != nil {
				return nil, err
			}
		}
	}

	return items, nil
}

// parseRetryAfter reads a delay in seconds, falling back to DefaultRetryAfter.
func parseRetryAfter(value string) time.Duration {
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds < 0 {
		return DefaultRetryAfter
	}
	return time.Duration(seconds) * time.Second
}
