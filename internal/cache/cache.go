// Package cache keeps generated summaries in memory so repeated runs over the
// same articles do not call the summarizer backend again.
package cache

import (
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pep299/qiita-highlight-bridge/internal/summarizer"
)

// Common cache errors
var (
	ErrCacheMiss = errors.New("cache miss")
)

// Entry represents a cached summary
type Entry struct {
	Key         string    `json:"key"`
	Summary     string    `json:"summary"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	AccessCount int       `json:"access_count"`
}

// Stats represents cache statistics
type Stats struct {
	TotalEntries int     `json:"total_entries"`
	HitCount     int64   `json:"hit_count"`
	MissCount    int64   `json:"miss_count"`
	HitRate      float64 `json:"hit_rate"`
}

// MemoryCache implements an in-memory TTL cache
type MemoryCache struct {
	entries   map[string]*Entry
	mutex     sync.Mutex
	duration  time.Duration
	now       func() time.Time
	hitCount  int64
	missCount int64
}

// NewMemoryCache creates a cache whose entries live for duration.
func NewMemoryCache(duration time.Duration) *MemoryCache {
	return &MemoryCache{
		entries:  make(map[string]*Entry),
		duration: duration,
		now:      time.Now,
	}
}

// Get retrieves an entry from cache
func (c *MemoryCache) Get(key string) (*Entry, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, exists := c.entries[key]
	if !exists {
		c.missCount++
		return nil, ErrCacheMiss
	}

	if c.now().After(entry.ExpiresAt) {
		delete(c.entries, key)
		c.missCount++
		return nil, ErrCacheMiss
	}

	entry.AccessCount++
	c.hitCount++
	copied := *entry
	return &copied, nil
}

// Set stores a summary and drops expired entries.
func (c *MemoryCache) Set(key, summary string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := c.now()
	for k, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			delete(c.entries, k)
		}
	}

	c.entries[key] = &Entry{
		Key:       key,
		Summary:   summary,
		CreatedAt: now,
		ExpiresAt: now.Add(c.duration),
	}
}

// Delete removes an entry from cache
func (c *MemoryCache) Delete(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.entries, key)
}

// Clear removes all entries and resets the counters.
func (c *MemoryCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries = make(map[string]*Entry)
	c.hitCount = 0
	c.missCount = 0
}

// Stats returns cache statistics
func (c *MemoryCache) Stats() Stats {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	stats := Stats{
		TotalEntries: len(c.entries),
		HitCount:     c.hitCount,
		MissCount:    c.missCount,
	}
	if c.hitCount+c.missCount > 0 {
		stats.HitRate = float64(c.hitCount) / float64(c.hitCount+c.missCount)
	}
	return stats
}

// GenerateKey derives a fixed-length key from the text and sentence count.
func GenerateKey(text string, sentences int) string {
	hash := md5.Sum([]byte(text))
	return fmt.Sprintf("summary:%d:%x", sentences, hash)
}

// Summarizer serves summaries from the cache and stores successful results of next.
type Summarizer struct {
	next  summarizer.Summarizer
	cache *MemoryCache
}

// NewSummarizer wraps next with c.
func NewSummarizer(next summarizer.Summarizer, c *MemoryCache) *Summarizer {
	return &Summarizer{next: next, cache: c}
}

func (s *Summarizer) Summarize(ctx context.Context, text string, sentences int) (string, error) {
	key := GenerateKey(text, sentences)
	if entry, err := s.cache.Get(key); err == nil {
		return entry.Summary, nil
	}

	summary, err := s.next.Summarize(ctx, text, sentences)
	if err != nil {
		return "", err
	}
	if summary != "" {
		s.cache.Set(key, summary)
	}
	return summary, nil
}
