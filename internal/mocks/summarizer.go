package mocks

import (
	"context"
)

// Mock Summarizer
type MockSummarizer struct {
	Summary string
	Err     error
	Calls   int
}

func (m *MockSummarizer) Summarize(ctx context.Context, text string, sentences int) (string, error) {
	m.Calls++
	if m.Err != nil {
		return "", m.Err
	}
	if m.Summary == "" {
		return "test summary", nil
	}
	return m.Summary, nil
}
