package mocks

import (
	"context"

	"github.com/pep299/qiita-highlight-bridge/internal/qiita"
)

// Mock Fetcher
type MockFetcher struct {
	Items []qiita.Item
	Err   error

	Calls      int
	WindowDays []int
}

func (m *MockFetcher) FetchPopular(ctx context.Context, windowDays, minLikes, minStocks int) ([]qiita.Item, error) {
	m.Calls++
	m.WindowDays = append(m.WindowDays, windowDays)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Items, nil
}
