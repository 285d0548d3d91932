// Package cli implements the qiita-bridge command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/pep299/qiita-highlight-bridge/internal/config"
	"github.com/pep299/qiita-highlight-bridge/internal/report"
)

// Version is printed by the version command.
var Version = "dev"

// Runner runs syncs.
type Runner interface {
	Init(ctx context.Context) error
	RunFor(ctx context.Context, trigger string, backfillDays int) (*report.Report, error)
}

// Deps is what a command needs once configuration is loaded.
type Deps struct {
	Config *config.Config
	Runner Runner
	Store  report.Store
	Close  func() error
}

// Loader builds Deps on demand so that help and version work without credentials.
type Loader func(ctx context.Context) (*Deps, error)

// ErrInvalidBackfill is returned for a --backfill value not of the form days=N.
var ErrInvalidBackfill = errors.New("invalid backfill argument, expected days=N")

// ErrNoRunHistory is returned by runs when no report bucket is configured.
// Each CLI process starts with an empty in-memory store.
var ErrNoRunHistory = errors.New("run history requires REPORT_BUCKET")

// NewRootCommand assembles the command tree.
func NewRootCommand(load Loader, out io.Writer) *cobra.Command {
	var backfill string

	root := &cobra.Command{
		Use:           "qiita-bridge",
		Short:         "Copy popular Qiita articles into Notion",
		Long:          `Fetches popular Qiita articles, upserts them into a Notion database and announces the new ones.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if backfill == "" {
				return cmd.Help()
			}
			days, err := ParseBackfillArg(backfill)
			if err != nil {
				return err
			}
			return runSync(cmd.Context(), load, out, days)
		},
	}
	root.SetOut(out)
	root.Flags().StringVar(&backfill, "backfill", "", "backfill past articles, e.g. days=3")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(out, "qiita-bridge version %s\n", Version)
		},
	})
	root.AddCommand(newRunCommand(load, out))
	root.AddCommand(newBackfillCommand(load, out))
	root.AddCommand(newRunsCommand(load, out))

	return root
}

func newRunCommand(load Loader, out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one sync over the configured window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd.Context(), load, out, 0)
		},
	}
}

func newBackfillCommand(load Loader, out io.Writer) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Sync articles created within the last N days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 1 {
				return fmt.Errorf("--days must be at least 1, got %d", days)
			}
			return runSync(cmd.Context(), load, out, days)
		},
	}
	cmd.Flags().IntVar(&days, "days", 1, "number of days to look back")
	return cmd
}

func newRunsCommand(load Loader, out io.Writer) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List archived sync runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := load(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDeps(deps)

			if deps.Config.ReportBucket == "" {
				return ErrNoRunHistory
			}
			runs, err := deps.Store.List(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("listing runs: %w", err)
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			RenderRuns(out, runs)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to show")
	return cmd
}

// ParseBackfillArg parses the "days=N" form, N >= 1.
func ParseBackfillArg(arg string) (int, error) {
	key, value, ok := strings.Cut(arg, "=")
	if !ok || strings.TrimSpace(key) != "days" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidBackfill, arg)
	}
	days, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || days < 1 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidBackfill, arg)
	}
	return days, nil
}

// runSync runs one sync; days 0 means the configured window.
func runSync(ctx context.Context, load Loader, out io.Writer, days int) error {
	deps, err := load(ctx)
	if err != nil {
		return err
	}
	defer closeDeps(deps)

	if days == 0 {
		days = deps.Config.BackfillDays
	}
	if err := deps.Runner.Init(ctx); err != nil {
		return err
	}

	rep, err := deps.Runner.RunFor(ctx, report.TriggerCLI, days)
	if rep != nil {
		RenderRuns(out, []report.Report{*rep})
	}
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	return nil
}

// RenderRuns writes runs as a table.
func RenderRuns(out io.Writer, runs []report.Report) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Trigger", "Days", "Status", "Fetched", "New", "Errors", "Started", "Duration"})
	for _, r := range runs {
		t.AppendRow(table.Row{
			shortID(r.ID),
			r.Trigger,
			r.BackfillDays,
			r.Status,
			r.Fetched,
			r.New,
			r.Errors,
			r.StartedAt.Format(time.DateTime),
			r.Duration().Round(time.Millisecond),
		})
	}
	t.Render()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func closeDeps(deps *Deps) {
	if deps.Close != nil {
		_ = deps.Close()
	}
}
