// Package summarizer defines the text summarization boundary and a local
// extractive implementation used when no LLM backend is configured.
package summarizer

import (
	"context"
	"fmt"
)

// Summarizer shortens text to roughly the requested number of sentences.
type Summarizer interface {
	Summarize(ctx context.Context, text string, sentences int) (string, error)
}

// Func adapts a plain function to Summarizer.
type Func func(ctx context.Context, text string, sentences int) (string, error)

func (f Func) Summarize(ctx context.Context, text string, sentences int) (string, error) {
	return f(ctx, text, sentences)
}

// fallback tries primary first and secondary when primary fails or returns nothing.
type fallback struct {
	primary   Summarizer
	secondary Summarizer
}

// WithFallback chains two summarizers.
func WithFallback(primary, secondary Summarizer) Summarizer {
	return &fallback{primary: primary, secondary: secondary}
}

func (f *fallback) Summarize(ctx context.Context, text string, sentences int) (string, error) {
	summary, err := f.primary.Summarize(ctx, text, sentences)
	if err == nil && summary != "" {
		return summary, nil
	}
	fallbackSummary, fallbackErr := f.secondary.Summarize(ctx, text, sentences)
	if fallbackErr != nil {
		return "", fmt.Errorf("primary summarizer: %v; fallback summarizer: %w", err, fallbackErr)
	}
	return fallbackSummary, nil
}
