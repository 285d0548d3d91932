package transform

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/pep299/qiita-highlight-bridge/internal/qiita"
	"github.com/pep299/qiita-highlight-bridge/internal/summarizer"
)

type recordingSummarizer struct {
	calls     int
	sentences int
	result    string
	err       error
}

func (r *recordingSummarizer) Summarize(ctx context.Context, text string, sentences int) (string, error) {
	r.calls++
	r.sentences = sentences
	return r.result, r.err
}

func TestToCanonical(t *testing.T) {
	item := qiita.Item{
		ID:          "abc",
		Title:       "Goの並行処理",
		URL:         "https://qiita.com/alice/items/abc",
		Body:        "short body",
		User:        qiita.User{ID: "alice", Name: "Alice"},
		CreatedAt:   "2024-05-05T10:00:00+09:00",
		LikesCount:  600,
		StocksCount: 20,
		Tags:        []qiita.Tag{{Name: "Go"}, {Name: "Concurrency"}, {Name: "Go"}},
	}

	article := New(nil, nil).ToCanonical(context.Background(), item)

	if article.Title != item.Title || article.URL != item.URL {
		t.Errorf("Expected title/url to be copied, got %+v", article)
	}
	if article.Author != "Alice" {
		t.Errorf("Expected author 'Alice', got '%s'", article.Author)
	}
	if article.Likes != 600 || article.Stocks != 20 {
		t.Errorf("Expected likes 600 stocks 20, got %d/%d", article.Likes, article.Stocks)
	}
	if strings.Join(article.Tags, ",") != "Go,Concurrency,Go" {
		t.Errorf("Expected tags in order without dedup, got %v", article.Tags)
	}
	if article.Summary != "short body" {
		t.Errorf("Expected short body as summary, got '%s'", article.Summary)
	}
	if article.CreatedAt != item.CreatedAt {
		t.Errorf("Expected created_at '%s', got '%s'", item.CreatedAt, article.CreatedAt)
	}
}

func TestToCanonicalAuthorFallback(t *testing.T) {
	tests := []struct {
		name     string
		user     qiita.User
		expected string
	}{
		{"name preferred", qiita.User{ID: "bob", Name: "Bob"}, "Bob"},
		{"id when name empty", qiita.User{ID: "bob"}, "bob"},
		{"empty when both missing", qiita.User{}, ""},
	}

	transformer := New(nil, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			article := transformer.ToCanonical(context.Background(), qiita.Item{User: tt.user})
			if article.Author != tt.expected {
				t.Errorf("Expected author '%s', got '%s'", tt.expected, article.Author)
			}
		})
	}
}

func TestToCanonicalMissingFields(t *testing.T) {
	article := New(nil, nil).ToCanonical(context.Background(), qiita.Item{URL: "https://qiita.com/x"})

	if article.Tags == nil || len(article.Tags) != 0 {
		t.Errorf("Expected empty tag list, got %v", article.Tags)
	}
	if article.Summary != "" || article.CreatedAt != "" || article.Likes != 0 {
		t.Errorf("Expected zero values, got %+v", article)
	}
}

func TestSummaryThreshold(t *testing.T) {
	exact := strings.Repeat("あ", 300)
	over := strings.Repeat("あ", 301)

	s := &recordingSummarizer{result: "summarized"}
	transformer := New(s, nil)

	article := transformer.ToCanonical(context.Background(), qiita.Item{Body: exact})
	if article.Summary != exact {
		t.Error("Expected 300-character body to be kept verbatim")
	}
	if s.calls != 0 {
		t.Errorf("Expected summarizer not to be called, got %d calls", s.calls)
	}

	article = transformer.ToCanonical(context.Background(), qiita.Item{Body: over})
	if article.Summary != "summarized" {
		t.Errorf("Expected summarizer output, got '%s'", article.Summary)
	}
	if s.calls != 1 || s.sentences != SummarySentences {
		t.Errorf("Expected one call for %d sentences, got %d calls for %d", SummarySentences, s.calls, s.sentences)
	}
}

func TestSummarizerFailureTruncates(t *testing.T) {
	body := strings.Repeat("い", 400)
	transformer := New(&recordingSummarizer{err: errors.New("backend down")}, nil)

	article := transformer.ToCanonical(context.Background(), qiita.Item{Body: body})

	expected := strings.Repeat("い", 300) + "..."
	if article.Summary != expected {
		t.Errorf("Expected truncated body, got %d characters", len([]rune(article.Summary)))
	}
}

func TestEmptySummaryTruncates(t *testing.T) {
	code := "```go\n" + strings.Repeat("fmt.Println(\"hello\")\n", 30) + "```\n"
	tests := []struct {
		name       string
		summarizer summarizer.Summarizer
	}{
		{"code-only body with extractive", summarizer.NewExtractive()},
		{"blank result", &recordingSummarizer{result: "  \n"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			article := New(tt.summarizer, nil).ToCanonical(context.Background(), qiita.Item{Body: code})

			expected := string([]rune(code)[:300]) + "..."
			if article.Summary != expected {
				t.Errorf("Expected truncated body, got %q", article.Summary)
			}
		})
	}
}

func TestToCanonicalAll(t *testing.T) {
	items := []qiita.Item{{URL: "u1"}, {URL: "u2"}, {URL: "u3"}}

	articles := New(summarizer.NewExtractive(), nil).ToCanonicalAll(context.Background(), items)

	if len(articles) != 3 {
		t.Fatalf("Expected 3 articles, got %d", len(articles))
	}
	for i, article := range articles {
		if article.URL != items[i].URL {
			t.Errorf("Expected order preserved at %d, got %s", i, article.URL)
		}
	}
}
