package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/couchcryptid/humidity-tiles-etl/internal/domain"
	"github.com/couchcryptid/humidity-tiles-etl/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Fetcher reads every non-missing sample inside a month range from the grid store.
type Fetcher interface {
	Fetch(ctx context.Context, r domain.MonthRange) ([]domain.Sample, error)
}

// TableStore persists the full-range table and the monthly tables.
type TableStore interface {
	WriteFull(r domain.MonthRange, samples []domain.Sample) (string, error)
	ReadFull(r domain.MonthRange) ([]domain.Sample, error)
	WriteMonthly(t domain.MonthlyTable) (domain.TableRef, error)
	ReadMonthly(ref domain.TableRef) (domain.MonthlyTable, error)
	ListMonthly() ([]domain.TableRef, error)
}

// GeometryWriter persists the land cells of one month.
type GeometryWriter interface {
	Write(k domain.MonthKey, cells []domain.GridCell) (domain.GeometryDoc, error)
	List() ([]domain.GeometryDoc, error)
	// Remove deletes the month's document; a missing document is not an error.
	Remove(k domain.MonthKey) error
}

// TileBuilder converts one geometry document into a tile archive.
type TileBuilder interface {
	Build(ctx context.Context, doc domain.GeometryDoc) (domain.TileArchive, error)
	List() ([]domain.TileArchive, error)
}

// ConfigEmitter writes the tile server config for a set of archives and
// returns the configured layer names.
type ConfigEmitter interface {
	Emit(archives []domain.TileArchive) ([]string, error)
}

// ViewerEmitter writes the static viewer page.
type ViewerEmitter interface {
	Emit() error
}

// Notifier announces built layers to downstream consumers.
type Notifier interface {
	NotifyLayers(ctx context.Context, archives []domain.TileArchive) error
}

// Deps are the collaborators of a Pipeline. Notifier may be nil.
type Deps struct {
	Fetcher  Fetcher
	Tables   TableStore
	Land     domain.LandOracle
	Geometry GeometryWriter
	Tiles    TileBuilder
	Config   ConfigEmitter
	Viewer   ViewerEmitter
	Notifier Notifier
}

// Settings tune a run.
type Settings struct {
	Range       domain.MonthRange
	Spacing     domain.SpacingOptions
	TileWorkers int
}

// Pipeline runs fetch, split, polygonize, tiles and publish in order.
type Pipeline struct {
	deps     Deps
	settings Settings
	logger   *slog.Logger
	metrics  *observability.Metrics
	clock    clockwork.Clock
	ready    atomic.Bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock sets the clock used for stage timings.
func WithClock(c clockwork.Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// New creates a Pipeline with the given stages and observability.
func New(deps Deps, settings Settings, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Pipeline {
	if settings.TileWorkers < 1 {
		settings.TileWorkers = 1
	}
	p := &Pipeline{
		deps:     deps,
		settings: settings,
		logger:   logger,
		metrics:  metrics,
		clock:    clockwork.NewRealClock(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// CheckReadiness returns nil once a run has completed, or an error describing
// why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a run yet")
	}
	return nil
}

// Run executes every stage. Only a fetch failure or cancellation aborts the
// run; other stages carry on with whatever the previous stage produced.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	start := p.clock.Now()
	p.logger.Info("pipeline started",
		"range", p.settings.Range.String(),
		"tile_workers", p.settings.TileWorkers,
	)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	var sum Summary
	finish := func(err error) (Summary, error) {
		sum.Elapsed = p.clock.Since(start)
		if err != nil {
			p.logger.Error("pipeline aborted", "error", err, "elapsed", sum.Elapsed.String())
			return sum, err
		}
		p.ready.Store(true)
		p.logger.Info("pipeline finished",
			"samples", sum.Samples,
			"monthly_tables", sum.Tables,
			"geometry_documents", sum.Documents,
			"archives", sum.Archives,
			"layers", len(sum.Layers),
			"elapsed", sum.Elapsed.String(),
		)
		return sum, nil
	}

	samples, res := p.Fetch(ctx)
	sum.Stages = append(sum.Stages, res)
	if res.Err != nil {
		return finish(res.Err)
	}
	sum.Samples = len(samples)

	tables, res := p.Split(ctx, samples)
	sum.Stages = append(sum.Stages, res)
	if err := ctx.Err(); err != nil {
		return finish(err)
	}
	sum.Tables = len(tables)

	docs, res := p.Polygonize(ctx, tables)
	sum.Stages = append(sum.Stages, res)
	if err := ctx.Err(); err != nil {
		return finish(err)
	}
	sum.Documents = len(docs)

	archives, res := p.BuildTiles(ctx, docs)
	sum.Stages = append(sum.Stages, res)
	if err := ctx.Err(); err != nil {
		return finish(err)
	}
	sum.Archives = len(archives)

	layers, res := p.Publish(ctx, archives)
	sum.Stages = append(sum.Stages, res)
	sum.Layers = layers
	if err := ctx.Err(); err != nil {
		return finish(err)
	}
	return finish(nil)
}
