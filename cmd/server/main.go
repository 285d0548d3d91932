package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/pep299/qiita-highlight-bridge/internal/bootstrap"
	"github.com/pep299/qiita-highlight-bridge/internal/config"
	"github.com/pep299/qiita-highlight-bridge/internal/handlers"
	"github.com/pep299/qiita-highlight-bridge/internal/logger"
	"github.com/pep299/qiita-highlight-bridge/internal/report"
	"github.com/pep299/qiita-highlight-bridge/internal/scheduler"
)

var (
	Version   string = "dev"
	Commit    string = "unknown"
	BuildTime string = "unknown"
)

func main() {
	var (
		showHelp    = flag.Bool("help", false, "Show help message")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showHelp {
		fmt.Printf("Qiita Highlight Bridge Server\n\n")
		fmt.Printf("Usage: %s [options]\n\n", os.Args[0])
		fmt.Printf("Options:\n")
		flag.PrintDefaults()
		fmt.Printf("\nEnvironment Variables:\n")
		fmt.Printf("  QIITA_TOKEN           Qiita access token (required)\n")
		fmt.Printf("  NOTION_TOKEN          Notion integration token (required)\n")
		fmt.Printf("  NOTION_DB_ID          Notion database ID (required)\n")
		fmt.Printf("  MIN_LIKES             Minimum likes (default: 500)\n")
		fmt.Printf("  MIN_STOCKS            Minimum stocks (default: 500)\n")
		fmt.Printf("  SCHEDULE              Cron schedule (default: 0 7 * * *)\n")
		fmt.Printf("  TIMEZONE              Schedule time zone (default: Asia/Tokyo)\n")
		fmt.Printf("  RUN_ON_START          Run once at startup (default: true)\n")
		fmt.Printf("  PORT                  Server port (default: 8080)\n")
		fmt.Printf("  HOST                  Server host (default: 0.0.0.0)\n")
		fmt.Printf("  REPORT_BUCKET         GCS bucket for run reports (optional)\n")
		os.Exit(0)
	}

	if *showVersion {
		fmt.Printf("Qiita Highlight Bridge Server\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Commit: %s\n", Commit)
		fmt.Printf("Build Time: %s\n", BuildTime)
		os.Exit(0)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel})
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx := context.Background()

	app, err := bootstrap.Build(ctx, cfg, log, bootstrap.Options{})
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Job.Init(ctx); err != nil {
		return err
	}

	sched, err := scheduler.New(cfg.Schedule, cfg.TimeZone, cfg.BackfillDays, app.Job, log)
	if err != nil {
		return err
	}

	server := handlers.NewServer(cfg, app.Job, app.Store, app.Registry, log)

	// Create HTTP server
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Handler:      server.SetupRoutes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sched.Start()
	if cfg.RunOnStart {
		go sched.Trigger(report.TriggerStartup)
	}

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Starting server",
			logger.String("addr", httpServer.Addr),
			logger.String("version", Version),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case sig := <-sigChan:
		log.Info("Shutting down server", logger.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("Server failed", logger.Err(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := sched.Stop(shutdownCtx); err != nil {
		log.Warn("Scheduler shutdown error", logger.Err(err))
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("Server shutdown error", logger.Err(err))
	}

	log.Info("Server stopped")
	return nil
}
