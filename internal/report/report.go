// Package report archives a summary of every sync run.
package report

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Run statuses.
const (
	StatusSuccess = "success"
	StatusEmpty   = "empty"
	StatusFailure = "failure"
)

// Run triggers.
const (
	TriggerSchedule = "schedule"
	TriggerStartup  = "startup"
	TriggerCLI      = "cli"
	TriggerHTTP     = "http"
	TriggerFunction = "function"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("run report not found")

// Report summarises one sync run.
type Report struct {
	ID           string    `json:"id"`
	Trigger      string    `json:"trigger"`
	BackfillDays int       `json:"backfill_days"`
	Status       string    `json:"status"`
	Error        string    `json:"error,omitempty"`
	Fetched      int       `json:"fetched"`
	Success      int       `json:"success"`
	New          int       `json:"new"`
	Errors       int       `json:"errors"`
	NewURLs      []string  `json:"new_urls"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

// New starts a report with a fresh run id.
func New(trigger string, backfillDays int, startedAt time.Time) *Report {
	return &Report{
		ID:           uuid.New().String(),
		Trigger:      trigger,
		BackfillDays: backfillDays,
		StartedAt:    startedAt,
		NewURLs:      []string{},
	}
}

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Store persists run reports.
type Store interface {
	Save(ctx context.Context, r *Report) error
	// List returns up to limit reports, newest first.
	List(ctx context.Context, limit int) ([]Report, error)
	Get(ctx context.Context, id string) (*Report, error)
	Close() error
}
