package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pep299/qiita-highlight-bridge/internal/bootstrap"
	"github.com/pep299/qiita-highlight-bridge/internal/cli"
	"github.com/pep299/qiita-highlight-bridge/internal/config"
	"github.com/pep299/qiita-highlight-bridge/internal/logger"
)

var Version = "dev"

func main() {
	cli.Version = Version

	var log logger.Logger = logger.NewNop()
	load := func(ctx context.Context) (*cli.Deps, error) {
		// Load configuration
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("loading configuration: %w", err)
		}

		log, err = logger.New(logger.Config{Level: cfg.LogLevel, OutputPaths: []string{"stderr"}})
		if err != nil {
			return nil, err
		}

		app, err := bootstrap.Build(ctx, cfg, log, bootstrap.Options{})
		if err != nil {
			return nil, err
		}
		return &cli.Deps{Config: cfg, Runner: app.Job, Store: app.Store, Close: app.Close}, nil
	}

	err := cli.NewRootCommand(load, os.Stdout).ExecuteContext(context.Background())
	_ = log.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
