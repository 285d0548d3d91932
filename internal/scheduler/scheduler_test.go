package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pep299/qiita-highlight-bridge/internal/logger"
	"github.com/pep299/qiita-highlight-bridge/internal/report"
)

// Mock runner
type mockRunner struct {
	mu       sync.Mutex
	triggers []string
	days     []int
	err      error
	panic    any
}

func (m *mockRunner) RunFor(ctx context.Context, trigger string, backfillDays int) (*report.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.triggers = append(m.triggers, trigger)
	m.days = append(m.days, backfillDays)
	if m.panic != nil {
		panic(m.panic)
	}
	rep := report.New(trigger, backfillDays, time.Now())
	if m.err != nil {
		return rep, m.err
	}
	rep.New = 3
	return rep, nil
}

func TestNewRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name     string
		schedule string
		timeZone string
	}{
		{"unknown time zone", "0 7 * * *", "Mars/Olympus"},
		{"bad schedule", "every morning", "Asia/Tokyo"},
		{"too many fields", "0 0 7 * * *", "Asia/Tokyo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.schedule, tt.timeZone, 1, &mockRunner{}, nil); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}

func TestNextRunIsSevenJST(t *testing.T) {
	s, err := New("0 7 * * *", "Asia/Tokyo", 1, &mockRunner{}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	s.Start()
	defer s.Stop(context.Background())

	next := s.Next()
	if next.IsZero() {
		t.Fatal("Expected next run to be set after Start")
	}
	jst := next.In(time.FixedZone("JST", 9*3600))
	if jst.Hour() != 7 || jst.Minute() != 0 {
		t.Errorf("Expected next run at 07:00 JST, got %s", jst.Format(time.RFC3339))
	}
	if !next.After(time.Now()) {
		t.Errorf("Expected next run in the future, got %s", next)
	}
}

func TestTrigger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	runner := &mockRunner{}
	s, err := New("0 7 * * *", "Asia/Tokyo", 2, runner, logger.FromZap(zap.New(core)))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	s.Trigger(report.TriggerStartup)

	if len(runner.triggers) != 1 || runner.triggers[0] != report.TriggerStartup {
		t.Errorf("Expected one startup run, got %v", runner.triggers)
	}
	if runner.days[0] != 2 {
		t.Errorf("Expected backfill 2, got %d", runner.days[0])
	}
	if logs.FilterMessage("Scheduled execution completed").Len() != 1 {
		t.Error("Expected completion to be logged")
	}
}

func TestTriggerLogsFailure(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	runner := &mockRunner{err: errors.New("qiita down")}
	s, err := New("0 7 * * *", "Asia/Tokyo", 1, runner, logger.FromZap(zap.New(core)))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	s.Trigger(report.TriggerSchedule)

	entries := logs.FilterMessage("Scheduled execution failed").All()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 failure log, got %d", len(entries))
	}
	if entries[0].Level != zapcore.ErrorLevel {
		t.Errorf("Expected error level, got %s", entries[0].Level)
	}
}

func TestTriggerRecoversPanic(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	runner := &mockRunner{panic: "nil map write"}
	s, err := New("0 7 * * *", "Asia/Tokyo", 1, runner, logger.FromZap(zap.New(core)))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Trigger(report.TriggerStartup)
	}()
	<-done

	entries := logs.FilterMessage("Scheduled execution panicked").All()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 panic log, got %d", len(entries))
	}
	if entries[0].Level != zapcore.ErrorLevel {
		t.Errorf("Expected error level, got %s", entries[0].Level)
	}
	if got := entries[0].ContextMap()["trigger"]; got != report.TriggerStartup {
		t.Errorf("Expected trigger %q, got %v", report.TriggerStartup, got)
	}
}

func TestStopCancelsRunContext(t *testing.T) {
	s, err := New("0 7 * * *", "Asia/Tokyo", 1, &mockRunner{}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	s.Start()

	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if s.ctx.Err() == nil {
		t.Error("Expected run context to be cancelled after Stop")
	}
}

func TestCronLoggerFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := cronLogger{log: logger.FromZap(zap.New(core))}

	l.Info("wake", "now", "2024-05-06", "entries", 1)
	l.Error(errors.New("boom"), "panic", "stack")

	all := logs.All()
	if len(all) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(all))
	}
	if all[0].Level != zapcore.DebugLevel {
		t.Errorf("Expected debug level for cron info, got %s", all[0].Level)
	}
	if all[0].ContextMap()["entries"] != int64(1) {
		t.Errorf("Expected entries=1, got %v", all[0].ContextMap()["entries"])
	}
	if all[1].ContextMap()["error"] != "boom" {
		t.Errorf("Expected error=boom, got %v", all[1].ContextMap()["error"])
	}
}
