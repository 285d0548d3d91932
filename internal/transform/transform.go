// Package transform maps Qiita items onto the canonical article shape.
package transform

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/pep299/qiita-highlight-bridge/internal/logger"
	"github.com/pep299/qiita-highlight-bridge/internal/model"
	"github.com/pep299/qiita-highlight-bridge/internal/qiita"
	"github.com/pep299/qiita-highlight-bridge/internal/summarizer"
	"github.com/pep299/qiita-highlight-bridge/internal/timeutil"
)

const (
	// SummaryThreshold is the body length (in characters) kept verbatim as the summary.
	SummaryThreshold = 300
	// SummarySentences is the sentence count requested from the summarizer.
	SummarySentences = 3
)

// Transformer converts source items into articles.
type Transformer struct {
	summarizer summarizer.Summarizer
	logger     logger.Logger
}

// New creates a Transformer. A nil summarizer falls back to the extractive one.
func New(s summarizer.Summarizer, log logger.Logger) *Transformer {
	if s == nil {
		s = summarizer.NewExtractive()
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Transformer{summarizer: s, logger: log}
}

// ToCanonical builds the article for item. It never fails.
func (t *Transformer) ToCanonical(ctx context.Context, item qiita.Item) model.Article {
	return model.Article{
		Title:     item.Title,
		URL:       item.URL,
		Author:    author(item.User),
		Likes:     max(item.LikesCount, 0),
		Stocks:    max(item.StocksCount, 0),
		Tags:      tagNames(item.Tags),
		Summary:   t.summarize(ctx, item),
		CreatedAt: item.CreatedAt,
	}
}

// ToCanonicalAll transforms items preserving their order.
func (t *Transformer) ToCanonicalAll(ctx context.Context, items []qiita.Item) []model.Article {
	articles := make([]model.Article, 0, len(items))
	for _, item := range items {
		articles = append(articles, t.ToCanonical(ctx, item))
	}
	return articles
}

func (t *Transformer) summarize(ctx context.Context, item qiita.Item) string {
	if utf8.RuneCountInString(item.Body) <= SummaryThreshold {
		return item.Body
	}

	summary, err := t.summarizer.Summarize(ctx, item.Body, SummarySentences)
	if err != nil {
		t.logger.Warn("Summarizer failed, truncating body",
			logger.String("url", item.URL),
			logger.Err(err))
		return timeutil.TruncateText(item.Body, SummaryThreshold)
	}
	if strings.TrimSpace(summary) == "" {
		t.logger.Warn("Summarizer returned nothing, truncating body", logger.String("url", item.URL))
		return timeutil.TruncateText(item.Body, SummaryThreshold)
	}
	return summary
}

func author(user qiita.User) string {
	if user.Name != "" {
		return user.Name
	}
	return user.ID
}

func tagNames(tags []qiita.Tag) []string {
	names := make([]string, 0, len(tags))
	for _, tag := range tags {
		names = append(names, tag.Name)
	}
	return names
}
