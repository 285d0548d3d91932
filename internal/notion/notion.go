// Package notion is a small client for the parts of the Notion API used to
// keep a database of articles: database retrieve/update/query and page create/update.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pep299/qiita-highlight-bridge/internal/config"
)

const (
	DefaultBaseURL = "https://api.notion.com/v1"
	APIVersion     = "2022-06-28"

	// MaxRichTextRunes is the per-object content limit for rich text.
	MaxRichTextRunes = 2000
)

// Client handles Notion API operations against a single database.
type Client struct {
	token      string
	databaseID string
	baseURL    string
	httpClient *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithBaseURL points the client at another API root.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a Notion client bound to databaseID.
func NewClient(token, databaseID string, opts ...Option) (*Client, error) {
	if err := config.ValidateNotionCredentials(token, databaseID); err != nil {
		return nil, err
	}

	c := &Client{
		token:      token,
		databaseID: databaseID,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// DatabaseID returns the database the client writes to.
func (c *Client) DatabaseID() string {
	return c.databaseID
}

// APIError is a non-2xx response from the Notion API.
type APIError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("notion API error (status %d, code %s): %s", e.Status, e.Code, e.Message)
}

// IsRateLimited reports whether err carries a Notion rate limit response.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == http.StatusTooManyRequests || apiErr.Code == "rate_limited"
}

// PropertySchema describes one database column.
type PropertySchema struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// Database is the subset of a database object the client reads.
type Database struct {
	ID         string                    `json:"id"`
	Properties map[string]PropertySchema `json:"properties"`
}

// Page is the subset of a page object the client reads.
type Page struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// TextCondition is a text/url filter condition.
type TextCondition struct {
	Equals string `json:"equals"`
}

// Filter is a single-property database filter.
type Filter struct {
	Property string         `json:"property"`
	URL      *TextCondition `json:"url,omitempty"`
	RichText *TextCondition `json:"rich_text,omitempty"`
}

// QueryRequest is the body of a database query.
type QueryRequest struct {
	Filter      *Filter `json:"filter,omitempty"`
	PageSize    int     `json:"page_size,omitempty"`
	StartCursor string  `json:"start_cursor,omitempty"`
}

// QueryResult is a page of query results.
type QueryResult struct {
	Results    []Page `json:"results"`
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor"`
}

// Properties is a page property payload keyed by property name.
type Properties map[string]any

// RetrieveDatabase fetches the database and its property schema.
func (c *Client) RetrieveDatabase(ctx context.Context) (*Database, error) {
	var db Database
	if err := c.do(ctx, http.MethodGet, "/databases/"+c.databaseID, nil, &db); err != nil {
		return nil, fmt.Errorf("retrieving database: %w", err)
	}
	return &db, nil
}

// UpdateDatabaseProperties adds or renames database properties in one request.
func (c *Client) UpdateDatabaseProperties(ctx context.Context, properties map[string]any) error {
	body := map[string]any{"properties": properties}
	if err := c.do(ctx, http.MethodPatch, "/databases/"+c.databaseID, body, nil); err != nil {
		return fmt.Errorf("updating database properties: %w", err)
	}
	return nil
}

// QueryDatabase runs a filtered query against the database.
func (c *Client) QueryDatabase(ctx context.Context, query QueryRequest) (*QueryResult, error) {
	var result QueryResult
	if err := c.do(ctx, http.MethodPost, "/databases/"+c.databaseID+"/query", query, &result); err != nil {
		return nil, fmt.Errorf("querying database: %w", err)
	}
	return &result, nil
}

// CreatePage creates a page under the database.
func (c *Client) CreatePage(ctx context.Context, properties Properties) (*Page, error) {
	body := map[string]any{
		"parent":     map[string]string{"database_id": c.databaseID},
		"properties": properties,
	}
	var page Page
	if err := c.do(ctx, http.MethodPost, "/pages", body, &page); err != nil {
		return nil, fmt.Errorf("creating page: %w", err)
	}
	return &page, nil
}

// UpdatePage overwrites the given properties of an existing page.
func (c *Client) UpdatePage(ctx context.Context, pageID string, properties Properties) (*Page, error) {
	body := map[string]any{"properties": properties}
	var page Page
	if err := c.do(ctx, http.MethodPatch, "/pages/"+pageID, body, &page); err != nil {
		return nil, fmt.Errorf("updating page %s: %w", pageID, err)
	}
	return &page, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", APIVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	apiErr := &APIError{}
	if err := json.Unmarshal(bodyBytes, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(bodyBytes))
	}
	apiErr.Status = resp.StatusCode
	return apiErr
}
