package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/couchcryptid/humidity-tiles-etl/internal/adapter/csvtable"
	"github.com/couchcryptid/humidity-tiles-etl/internal/adapter/geojson"
	"github.com/couchcryptid/humidity-tiles-etl/internal/adapter/gridstore"
	httpadapter "github.com/couchcryptid/humidity-tiles-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/humidity-tiles-etl/internal/adapter/kafka"
	"github.com/couchcryptid/humidity-tiles-etl/internal/adapter/landmask"
	"github.com/couchcryptid/humidity-tiles-etl/internal/adapter/ncgrid"
	"github.com/couchcryptid/humidity-tiles-etl/internal/adapter/tileserver"
	"github.com/couchcryptid/humidity-tiles-etl/internal/adapter/tippecanoe"
	"github.com/couchcryptid/humidity-tiles-etl/internal/adapter/viewer"
	"github.com/couchcryptid/humidity-tiles-etl/internal/config"
	"github.com/couchcryptid/humidity-tiles-etl/internal/observability"
	"github.com/couchcryptid/humidity-tiles-etl/internal/pipeline"
)

// app holds the wired pipeline and the resources that need closing.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	metrics   *observability.Metrics
	pipeline  *pipeline.Pipeline
	publisher *kafkaadapter.Publisher
	server    *httpadapter.Server
}

// newApp wires every adapter. The land mask is only loaded when withLand is
// set, since only polygonizing consults it.
func newApp(cfg *config.Config, withLand bool) (*app, error) {
	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	deps := pipeline.Deps{
		Fetcher:  gridstore.NewFetcher(cfg.StoreURL, cfg.Variable, cfg.FetchTimeout, ncgrid.Decoder{}, logger),
		Tables:   csvtable.NewStore(cfg.OutputDir, cfg.Variable, cfg.LayerPrefix),
		Geometry: geojson.NewWriter(cfg.OutputDir, cfg.LayerPrefix),
		Tiles:    tippecanoe.NewBuilder(cfg.TippecanoeBin, cfg.MBTilesDir, cfg.LayerPrefix, cfg.TileTimeout, logger),
		Config:   tileserver.NewEmitter(cfg.TileserverConfig, cfg.MBTilesDir),
		Viewer:   viewer.NewEmitter(cfg.ViewerPath, cfg.LayerPrefix),
	}

	if withLand {
		mask, err := landmask.LoadOrDefault(cfg.LandMaskPath)
		if err != nil {
			return nil, err
		}
		source := cfg.LandMaskPath
		if source == "" {
			source = landmask.DefaultSource
		}
		deps.Land = landmask.NewCachedOracle(mask, cfg.LandCacheSize, metrics)
		logger.Info("land mask loaded", "source", source, "polygons", mask.Polygons(), "cache_size", cfg.LandCacheSize)
	}

	a := &app{cfg: cfg, logger: logger, metrics: metrics}

	if cfg.NotificationsEnabled() {
		a.publisher = kafkaadapter.NewPublisher(cfg, logger)
		deps.Notifier = a.publisher
		logger.Info("layer notifications enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		logger.Info("layer notifications disabled")
	}

	a.pipeline = pipeline.New(deps, pipeline.Settings{
		Range:       cfg.Range,
		Spacing:     cfg.Spacing,
		TileWorkers: cfg.TileWorkers,
	}, logger, metrics)

	if cfg.HTTPAddr != "" {
		a.server = httpadapter.NewServer(cfg.HTTPAddr, a.pipeline, metrics.Gatherer(), logger)
	}
	return a, nil
}

// startServer serves the health and metrics endpoints in the background.
func (a *app) startServer() {
	if a.server == nil {
		return
	}
	go func() {
		if err := a.server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", "error", err)
		}
	}()
}

// close pushes the final metric values and releases every resource.
func (a *app) close() {
	if a.cfg.PushgatewayURL != "" {
		if err := a.metrics.Push(a.cfg.PushgatewayURL); err != nil {
			a.logger.Warn("metrics push failed", "error", err)
		}
	}

	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(ctx); err != nil {
			a.logger.Error("http server shutdown error", "error", err)
		}
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Error("kafka publisher close error", "error", err)
		}
	}
	a.logger.Info("shutdown complete")
}
