package pipeline

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/humidity-tiles-etl/internal/domain"
)

// inRange reports whether month k falls inside the configured range.
func (p *Pipeline) inRange(k domain.MonthKey) bool {
	return p.settings.Range.Contains(k.Start())
}

// begin starts timing a stage. The returned func settles the outcome,
// records the duration and logs the result.
func (p *Pipeline) begin(stage string) (StageResult, func(*StageResult)) {
	start := p.clock.Now()
	p.logger.Info("stage started", "stage", stage)
	return StageResult{Stage: stage}, func(r *StageResult) {
		r.Duration = p.clock.Since(start)
		r.settle()
		p.metrics.StageDuration.WithLabelValues(stage).Observe(r.Duration.Seconds())
		if r.Outcome == OutcomeFailure {
			p.logger.Error("stage finished", r.LogAttrs()...)
			return
		}
		p.logger.Info("stage finished", r.LogAttrs()...)
	}
}

// Fetch reads the configured range from the grid store and persists the full
// table. Any failure here is wrapped in domain.ErrDataSource.
func (p *Pipeline) Fetch(ctx context.Context) (samples []domain.Sample, res StageResult) {
	res, end := p.begin(StageFetch)
	defer end(&res)
	res.Processed = 1

	samples, err := p.deps.Fetcher.Fetch(ctx, p.settings.Range)
	if err != nil {
		if !errors.Is(err, domain.ErrDataSource) {
			err = fmt.Errorf("%w: %w", domain.ErrDataSource, err)
		}
		res.Failed, res.Err = 1, err
		return nil, res
	}

	path, err := p.deps.Tables.WriteFull(p.settings.Range, samples)
	if err != nil {
		res.Failed, res.Err = 1, fmt.Errorf("%w: write full table: %w", domain.ErrDataSource, err)
		return nil, res
	}

	p.metrics.SamplesFetched.Add(float64(len(samples)))
	p.logger.Info("full table written", "path", path, "samples", len(samples))
	res.Succeeded = 1
	return samples, res
}

// Split partitions samples by calendar month and persists each table. A table
// that cannot be written is logged and left out.
func (p *Pipeline) Split(ctx context.Context, samples []domain.Sample) (tables []domain.MonthlyTable, res StageResult) {
	res, end := p.begin(StageSplit)
	defer end(&res)

	for _, t := range domain.Partition(samples) {
		if err := ctx.Err(); err != nil {
			res.Err = err
			break
		}
		res.Processed++
		ref, err := p.deps.Tables.WriteMonthly(t)
		if err != nil {
			res.Failed++
			p.logger.Warn("monthly table write failed, skipping month", "month", t.Key.String(), "error", err)
			continue
		}
		res.Succeeded++
		p.metrics.MonthlyTables.Inc()
		p.logger.Debug("monthly table written", "month", t.Key.String(), "path", ref.Path, "rows", len(t.Samples))
		tables = append(tables, t)
	}
	return tables, res
}

// SplitStored re-runs Split from the persisted full table. Samples outside
// the configured range are dropped.
func (p *Pipeline) SplitStored(ctx context.Context) ([]domain.MonthlyTable, StageResult) {
	samples, err := p.deps.Tables.ReadFull(p.settings.Range)
	if err != nil {
		res := StageResult{Stage: StageSplit, Processed: 1, Failed: 1, Err: fmt.Errorf("read full table: %w", err)}
		res.settle()
		return nil, res
	}
	kept := samples[:0]
	for _, s := range samples {
		if p.settings.Range.Contains(s.Time) {
			kept = append(kept, s)
		}
	}
	if dropped := len(samples) - len(kept); dropped > 0 {
		p.logger.Info("samples outside range dropped", "range", p.settings.Range.String(), "dropped", dropped)
	}
	return p.Split(ctx, kept)
}

// Polygonize keeps the land rows of each table and writes them as grid cell
// polygons. Months without land rows are skipped and any document left from
// an earlier run is removed; write failures are logged.
func (p *Pipeline) Polygonize(ctx context.Context, tables []domain.MonthlyTable) (docs []domain.GeometryDoc, res StageResult) {
	res, end := p.begin(StagePolygonize)
	defer end(&res)

	for _, t := range tables {
		if err := ctx.Err(); err != nil {
			res.Err = err
			break
		}
		res.Processed++

		poly, err := domain.Polygonize(t, p.deps.Land, p.settings.Spacing)
		if errors.Is(err, domain.ErrEmptyInput) {
			res.Skipped++
			p.metrics.GeometryDocs.WithLabelValues("empty").Inc()
			p.logger.Info("no land cells, skipping month", "month", t.Key.String(), "rows", poly.Input)
			if err := p.deps.Geometry.Remove(t.Key); err != nil {
				p.logger.Warn("stale geometry not removed", "month", t.Key.String(), "error", err)
			}
			continue
		}
		if err != nil {
			res.Failed++
			p.metrics.GeometryDocs.WithLabelValues("error").Inc()
			p.logger.Warn("polygonize failed, skipping month", "month", t.Key.String(), "error", err)
			continue
		}

		doc, err := p.deps.Geometry.Write(t.Key, poly.Cells)
		if err != nil {
			res.Failed++
			p.metrics.GeometryDocs.WithLabelValues("error").Inc()
			p.logger.Warn("geometry write failed, skipping month", "month", t.Key.String(), "error", err)
			continue
		}

		res.Succeeded++
		p.metrics.GeometryDocs.WithLabelValues("written").Inc()
		p.metrics.GridCells.Add(float64(len(poly.Cells)))
		p.logger.Debug("geometry written",
			"month", t.Key.String(),
			"path", doc.Path,
			"rows", poly.Input,
			"land_rows", poly.Land,
			"cells", len(poly.Cells),
			"lat_spacing", poly.Spacing.Lat,
			"lon_spacing", poly.Spacing.Lon,
		)
		docs = append(docs, doc)
	}
	return docs, res
}

// PolygonizeStored re-runs Polygonize over the persisted monthly tables in the
// configured range. Tables that cannot be read count as failed months.
func (p *Pipeline) PolygonizeStored(ctx context.Context) ([]domain.GeometryDoc, StageResult) {
	refs, err := p.deps.Tables.ListMonthly()
	if err != nil {
		res := StageResult{Stage: StagePolygonize, Err: fmt.Errorf("list monthly tables: %w", err)}
		res.settle()
		return nil, res
	}

	tables := make([]domain.MonthlyTable, 0, len(refs))
	unreadable := 0
	for _, ref := range refs {
		if !p.inRange(ref.Key) {
			continue
		}
		t, err := p.deps.Tables.ReadMonthly(ref)
		if err != nil {
			unreadable++
			p.logger.Warn("monthly table unreadable, skipping month", "month", ref.Key.String(), "path", ref.Path, "error", err)
			continue
		}
		tables = append(tables, t)
	}

	docs, res := p.Polygonize(ctx, tables)
	if unreadable > 0 {
		res.Processed += unreadable
		res.Failed += unreadable
		res.settle()
	}
	return docs, res
}

// BuildTiles runs the tile builder for each document with at most
// Settings.TileWorkers invocations in flight. Archives come back in document
// order; failed months are logged and left out.
func (p *Pipeline) BuildTiles(ctx context.Context, docs []domain.GeometryDoc) (archives []domain.TileArchive, res StageResult) {
	res, end := p.begin(StageTiles)
	defer end(&res)

	built := make([]domain.TileArchive, len(docs))
	errs := make([]error, len(docs))

	var g errgroup.Group
	g.SetLimit(p.settings.TileWorkers)
	for i, doc := range docs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			start := p.clock.Now()
			built[i], errs[i] = p.deps.Tiles.Build(ctx, doc)
			p.metrics.TileBuildSeconds.Observe(p.clock.Since(start).Seconds())
			return nil
		})
	}
	_ = g.Wait()

	for i, doc := range docs {
		res.Processed++
		if err := errs[i]; err != nil {
			res.Failed++
			p.metrics.TileBuilds.WithLabelValues("failure").Inc()
			attrs := []any{"month", doc.Key.String(), "input", doc.Path, "error", err}
			var te *domain.ToolError
			if errors.As(err, &te) && te.Stderr != "" {
				attrs = append(attrs, "stderr", te.Stderr)
			}
			p.logger.Warn("tile build failed, skipping month", attrs...)
			continue
		}
		res.Succeeded++
		p.metrics.TileBuilds.WithLabelValues("success").Inc()
		p.logger.Debug("tiles built", "month", doc.Key.String(), "layer", built[i].Layer, "path", built[i].Path)
		archives = append(archives, built[i])
	}
	if err := ctx.Err(); err != nil {
		res.Err = err
	}
	return archives, res
}

// BuildStoredTiles re-runs BuildTiles over the persisted geometry documents
// in the configured range.
func (p *Pipeline) BuildStoredTiles(ctx context.Context) ([]domain.TileArchive, StageResult) {
	all, err := p.deps.Geometry.List()
	if err != nil {
		res := StageResult{Stage: StageTiles, Err: fmt.Errorf("list geometry documents: %w", err)}
		res.settle()
		return nil, res
	}
	docs := make([]domain.GeometryDoc, 0, len(all))
	for _, d := range all {
		if p.inRange(d.Key) {
			docs = append(docs, d)
		}
	}
	return p.BuildTiles(ctx, docs)
}

// Publish writes the tile server config for archives and the viewer page,
// then notifies downstream consumers. Notification failures are logged only.
func (p *Pipeline) Publish(ctx context.Context, archives []domain.TileArchive) (layers []string, res StageResult) {
	res, end := p.begin(StagePublish)
	defer end(&res)

	var errs []error
	res.Processed = 2

	layers, err := p.deps.Config.Emit(archives)
	if err != nil {
		res.Failed++
		errs = append(errs, fmt.Errorf("tileserver config: %w", err))
		layers = nil
	} else {
		res.Succeeded++
		p.metrics.LayersConfigured.Set(float64(len(layers)))
		p.logger.Info("tileserver config written", "layers", len(layers))
	}

	if err := p.deps.Viewer.Emit(); err != nil {
		res.Failed++
		errs = append(errs, fmt.Errorf("viewer: %w", err))
	} else {
		res.Succeeded++
	}
	res.Err = errors.Join(errs...)

	if p.deps.Notifier != nil && len(archives) > 0 && len(layers) > 0 {
		if err := p.deps.Notifier.NotifyLayers(ctx, archives); err != nil {
			p.logger.Warn("layer notification failed", "error", err, "layers", len(archives))
		}
	}
	return layers, res
}

// PublishStored re-runs Publish over the archives on disk in the configured
// range.
func (p *Pipeline) PublishStored(ctx context.Context) ([]string, StageResult) {
	all, err := p.deps.Tiles.List()
	if err != nil {
		res := StageResult{Stage: StagePublish, Err: fmt.Errorf("list tile archives: %w", err)}
		res.settle()
		return nil, res
	}
	archives := make([]domain.TileArchive, 0, len(all))
	for _, a := range all {
		if p.inRange(a.Key) {
			archives = append(archives, a)
		}
	}
	return p.Publish(ctx, archives)
}
