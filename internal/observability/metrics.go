package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "humidity_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the tile pipeline.
type Metrics struct {
	SamplesFetched   prometheus.Counter
	MonthlyTables    prometheus.Counter
	GeometryDocs     *prometheus.CounterVec // labels: outcome={written,empty,error}
	GridCells        prometheus.Counter
	TileBuilds       *prometheus.CounterVec // labels: outcome={success,failure}
	TileBuildSeconds prometheus.Histogram
	StageDuration    *prometheus.HistogramVec // labels: stage
	LayersConfigured prometheus.Gauge
	PipelineRunning  prometheus.Gauge

	// Land mask cache.
	LandCache *prometheus.CounterVec // labels: result={hit,miss}

	registry *prometheus.Registry
}

func newMetrics() *Metrics {
	return &Metrics{
		SamplesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_fetched_total",
			Help:      "Non-missing samples read from the grid store.",
		}),
		MonthlyTables: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "monthly_tables_total",
			Help:      "Monthly tables written by the partitioner.",
		}),
		GeometryDocs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geometry_documents_total",
			Help:      "Monthly GeoJSON documents by outcome.",
		}, []string{"outcome"}),
		GridCells: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grid_cells_total",
			Help:      "Land grid cells emitted across all months.",
		}),
		TileBuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tile_builds_total",
			Help:      "Tile builder invocations by outcome.",
		}, []string{"outcome"}),
		TileBuildSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tile_build_duration_seconds",
			Help:      "Wall time of one tile builder invocation.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of each pipeline stage.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 30, 120, 600, 1800},
		}, []string{"stage"}),
		LayersConfigured: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "layers_configured",
			Help:      "Layers listed in the last tileserver config.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a pipeline run is active, 0 otherwise.",
		}),
		LandCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "land_cache_total",
			Help:      "Land mask cache lookups by result.",
		}, []string{"result"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.SamplesFetched,
		m.MonthlyTables,
		m.GeometryDocs,
		m.GridCells,
		m.TileBuilds,
		m.TileBuildSeconds,
		m.StageDuration,
		m.LayersConfigured,
		m.PipelineRunning,
		m.LandCache,
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics on a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	m := newMetrics()
	m.registry = prometheus.NewRegistry()
	m.registry.MustRegister(m.collectors()...)
	return m
}

// Gatherer returns the registry the metrics were registered with.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m.registry != nil {
		return m.registry
	}
	return prometheus.DefaultGatherer
}
