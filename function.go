// Package cloudfunctions exposes the bridge as Google Cloud Functions.
package cloudfunctions

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/cloudevents/sdk-go/v2/event"

	"github.com/pep299/qiita-highlight-bridge/internal/bootstrap"
	"github.com/pep299/qiita-highlight-bridge/internal/config"
	"github.com/pep299/qiita-highlight-bridge/internal/handlers"
	"github.com/pep299/qiita-highlight-bridge/internal/logger"
	"github.com/pep299/qiita-highlight-bridge/internal/report"
)

func init() {
	// HTTP function for manual triggers, run history and health checks
	functions.HTTP("SyncArticles", SyncArticles)
	// CloudEvent function for Cloud Scheduler via Pub/Sub
	functions.CloudEvent("SyncArticlesScheduled", SyncArticlesScheduled)
}

// ScheduledPayload is the optional JSON body of a scheduler message.
type ScheduledPayload struct {
	Days int `json:"days"`
}

// pubSubMessage is the data of a Pub/Sub CloudEvent.
type pubSubMessage struct {
	Message struct {
		Data []byte `json:"data"`
	} `json:"message"`
}

type runtime struct {
	handler http.Handler
	runner  handlers.Runner
	days    int
	logger  logger.Logger
}

var (
	runtimeMu sync.Mutex
	current   *runtime

	// loadRuntime is replaced in tests.
	loadRuntime = defaultRuntime
)

// getRuntime builds the pipeline once per instance. A failed build is retried
// on the next call.
func getRuntime(ctx context.Context) (*runtime, error) {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()

	if current != nil {
		return current, nil
	}
	rt, err := loadRuntime(ctx)
	if err != nil {
		return nil, err
	}
	current = rt
	return current, nil
}

func defaultRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	log, err := logger.New(logger.Config{Level: cfg.LogLevel})
	if err != nil {
		return nil, err
	}

	app, err := bootstrap.Build(ctx, cfg, log, bootstrap.Options{})
	if err != nil {
		return nil, err
	}
	if err := app.Job.Init(ctx); err != nil {
		return nil, err
	}

	server := handlers.NewServer(cfg, app.Job, app.Store, app.Registry, log)
	return &runtime{
		handler: server.SetupRoutes(),
		runner:  app.Job,
		days:    cfg.BackfillDays,
		logger:  log,
	}, nil
}

// SyncArticles serves the bridge HTTP API.
func SyncArticles(w http.ResponseWriter, r *http.Request) {
	rt, err := getRuntime(r.Context())
	if err != nil {
		handlers.WriteError(w, http.StatusInternalServerError, "Failed to initialize: "+err.Error())
		return
	}
	rt.handler.ServeHTTP(w, r)
}

// SyncArticlesScheduled runs one sync per scheduler message. The message may
// carry {"days": N}; otherwise the configured window is used.
func SyncArticlesScheduled(ctx context.Context, e event.Event) error {
	rt, err := getRuntime(ctx)
	if err != nil {
		return fmt.Errorf("initializing: %w", err)
	}

	days, err := scheduledDays(e, rt.days)
	if err != nil {
		return err
	}

	rt.logger.Info("Scheduled function invoked", logger.String("event_id", e.ID()), logger.Int("backfill_days", days))
	if _, err := rt.runner.RunFor(ctx, report.TriggerFunction, days); err != nil {
		return fmt.Errorf("running sync: %w", err)
	}
	return nil
}

func scheduledDays(e event.Event, defaultDays int) (int, error) {
	if len(e.Data()) == 0 {
		return defaultDays, nil
	}

	var msg pubSubMessage
	if err := e.DataAs(&msg); err != nil {
		return 0, fmt.Errorf("parsing event data: %w", err)
	}
	if len(msg.Message.Data) == 0 {
		return defaultDays, nil
	}

	var payload ScheduledPayload
	if err := json.Unmarshal(msg.Message.Data, &payload); err != nil {
		return 0, fmt.Errorf("parsing scheduler payload: %w", err)
	}
	if payload.Days == 0 {
		return defaultDays, nil
	}
	if payload.Days < 0 {
		return 0, fmt.Errorf("invalid backfill days %d", payload.Days)
	}
	return payload.Days, nil
}
