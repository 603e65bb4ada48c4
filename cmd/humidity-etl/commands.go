package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/humidity-tiles-etl/internal/config"
	"github.com/couchcryptid/humidity-tiles-etl/internal/domain"
	"github.com/couchcryptid/humidity-tiles-etl/internal/pipeline"
)

// overrides are the flags that take precedence over the environment.
type overrides struct {
	start   string
	end     string
	workers int
}

func (o overrides) apply(cfg *config.Config) error {
	if o.start != "" || o.end != "" {
		start, end := cfg.Range.Start.String(), cfg.Range.End.String()
		if o.start != "" {
			start = o.start
		}
		if o.end != "" {
			end = o.end
		}
		r, err := domain.ParseMonthRange(start, end)
		if err != nil {
			return fmt.Errorf("invalid --start/--end: %w", err)
		}
		cfg.Range = r
	}
	if o.workers < 0 {
		return fmt.Errorf("invalid --workers %d: must be positive", o.workers)
	}
	if o.workers > 0 {
		cfg.TileWorkers = o.workers
	}
	return nil
}

// needs lists the inputs a command reads beyond its stored artifacts.
type needs struct {
	store bool // reads the grid store
	land  bool // classifies cells against the land mask
}

func (n needs) check(cfg *config.Config) error {
	if n.store {
		return cfg.RequireStore()
	}
	return nil
}

func newRootCmd() *cobra.Command {
	var o overrides
	root := &cobra.Command{
		Use:   "humidity-etl",
		Short: "Build monthly relative humidity map tiles.",
		Long: `humidity-etl fetches a gridded relative humidity variable, splits it into
monthly tables, keeps the land cells as GeoJSON polygons, builds one MBTiles
archive per month with tippecanoe and writes a tileserver-gl config plus a
static viewer page.

Each stage can be re-run on its own from the artifacts of the previous one.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := root.PersistentFlags()
	flags.StringVar(&o.start, "start", "", "first month to process, YYYY-MM (overrides START_MONTH)")
	flags.StringVar(&o.end, "end", "", "last month to process, YYYY-MM (overrides END_MONTH)")
	flags.IntVar(&o.workers, "workers", 0, "concurrent tippecanoe invocations (overrides TILE_WORKERS)")

	var serve bool
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run every stage.",
		Long: `run fetches the configured month range and carries it through every stage.
Only an unreadable store aborts the run; months that fail later are logged
and left out.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, o, needs{store: true, land: true}, func(ctx context.Context, a *app) error {
				if _, err := a.pipeline.Run(ctx); err != nil {
					return err
				}
				if serve && a.server != nil {
					a.logger.Info("run complete, serving until interrupted", "addr", a.cfg.HTTPAddr)
					<-ctx.Done()
				}
				return nil
			})
		},
	}
	runCmd.Flags().BoolVar(&serve, "serve", false, "keep the HTTP endpoints up after the run (requires HTTP_ADDR)")

	root.AddCommand(
		runCmd,
		stageCmd(&o, "fetch", "Fetch the grid and write the full-range table.", needs{store: true},
			func(ctx context.Context, p *pipeline.Pipeline) pipeline.StageResult {
				_, res := p.Fetch(ctx)
				return res
			}),
		stageCmd(&o, "split", "Split the full-range table into monthly tables.", needs{},
			func(ctx context.Context, p *pipeline.Pipeline) pipeline.StageResult {
				_, res := p.SplitStored(ctx)
				return res
			}),
		stageCmd(&o, "polygonize", "Write the land cells of each monthly table as GeoJSON.", needs{land: true},
			func(ctx context.Context, p *pipeline.Pipeline) pipeline.StageResult {
				_, res := p.PolygonizeStored(ctx)
				return res
			}),
		stageCmd(&o, "tiles", "Build an MBTiles archive from each GeoJSON document.", needs{},
			func(ctx context.Context, p *pipeline.Pipeline) pipeline.StageResult {
				_, res := p.BuildStoredTiles(ctx)
				return res
			}),
		stageCmd(&o, "publish", "Write the tileserver config and viewer for the built archives.", needs{},
			func(ctx context.Context, p *pipeline.Pipeline) pipeline.StageResult {
				_, res := p.PublishStored(ctx)
				return res
			}),
	)
	return root
}

// stageCmd builds a command that re-runs a single stage from stored artifacts.
func stageCmd(o *overrides, name, short string, n needs, stage func(context.Context, *pipeline.Pipeline) pipeline.StageResult) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, *o, n, func(ctx context.Context, a *app) error {
				return stageError(stage(ctx, a.pipeline))
			})
		},
	}
}

// withApp loads the config, wires the app and runs fn under a context that is
// cancelled on SIGINT or SIGTERM.
func withApp(cmd *cobra.Command, o overrides, n needs, fn func(context.Context, *app) error) error {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return err
	}
	if err := o.apply(cfg); err != nil {
		slog.Error("invalid flags", "error", err)
		return err
	}
	if err := n.check(cfg); err != nil {
		slog.Error("missing configuration", "command", cmd.Name(), "error", err)
		return err
	}

	a, err := newApp(cfg, n.land)
	if err != nil {
		slog.Error("failed to start", "error", err)
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.startServer()
	if err := fn(ctx, a); err != nil {
		a.logger.Error("command failed", "command", cmd.Name(), "error", err)
		return err
	}
	return nil
}

// stageError turns a failed stage into the command's error.
func stageError(res pipeline.StageResult) error {
	if res.Outcome != pipeline.OutcomeFailure {
		return nil
	}
	if res.Err != nil {
		return res.Err
	}
	return fmt.Errorf("%s stage failed for all %d months", res.Stage, res.Failed)
}
