// Package scheduler triggers the daily sync with robfig/cron.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pep299/qiita-highlight-bridge/internal/logger"
	"github.com/pep299/qiita-highlight-bridge/internal/report"
)

// Runner starts one sync run.
type Runner interface {
	RunFor(ctx context.Context, trigger string, backfillDays int) (*report.Report, error)
}

// Scheduler runs the sync on a cron schedule evaluated in a fixed location.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	days   int
	logger logger.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// New parses schedule in the named time zone. Panics inside a run are
// recovered and logged by the cron chain.
func New(schedule, timeZone string, backfillDays int, runner Runner, log logger.Logger) (*Scheduler, error) {
	if log == nil {
		log = logger.NewNop()
	}
	loc, err := time.LoadLocation(timeZone)
	if err != nil {
		return nil, fmt.Errorf("loading time zone %q: %w", timeZone, err)
	}

	cronLog := cronLogger{log: log.With(logger.String("component", "scheduler"))}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:   c,
		runner: runner,
		days:   backfillDays,
		logger: log,
		ctx:    ctx,
		cancel: cancel,
	}

	if _, err := c.AddFunc(schedule, func() { s.Trigger(report.TriggerSchedule) }); err != nil {
		cancel()
		return nil, fmt.Errorf("scheduling %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins firing scheduled runs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	for _, entry := range s.cron.Entries() {
		s.logger.Info("Scheduled sync", logger.Time("next_run", entry.Next))
	}
}

// Stop cancels in-flight runs and waits for them to return or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for scheduled runs: %w", ctx.Err())
	}
}

// Trigger runs one sync now and logs its outcome.
func (s *Scheduler) Trigger(trigger string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Scheduled execution panicked",
				logger.String("trigger", trigger),
				logger.Any("panic", r),
			)
		}
	}()

	s.logger.Info("Scheduled execution starting", logger.String("trigger", trigger))
	rep, err := s.runner.RunFor(s.ctx, trigger, s.days)
	if err != nil {
		s.logger.Error("Scheduled execution failed", logger.String("trigger", trigger), logger.Err(err))
		return
	}
	s.logger.Info("Scheduled execution completed",
		logger.String("trigger", trigger),
		logger.Int("new", rep.New),
		logger.Int("errors", rep.Errors),
	)
}

// Next returns the next scheduled run, or the zero time before Start.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// cronLogger routes cron's own logging through the bridge logger.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, fields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append(fields(keysAndValues), logger.Err(err))...)
}

func fields(keysAndValues []interface{}) []logger.Field {
	out := make([]logger.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}
		out = append(out, logger.Any(key, keysAndValues[i+1]))
	}
	return out
}
