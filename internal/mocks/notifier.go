package mocks

import (
	"context"
	"sync"

	"github.com/pep299/qiita-highlight-bridge/internal/model"
)

// Mock Notifier
type MockNotifier struct {
	mu      sync.Mutex
	Batches [][]model.Article
	Err     error
}

func (m *MockNotifier) Notify(ctx context.Context, articles []model.Article) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	batch := make([]model.Article, len(articles))
	copy(batch, articles)
	m.Batches = append(m.Batches, batch)
	return m.Err
}

// Count returns how many notifications were sent.
func (m *MockNotifier) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Batches)
}
