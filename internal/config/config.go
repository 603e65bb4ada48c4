package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/couchcryptid/humidity-tiles-etl/internal/domain"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

const maxTileWorkers = 32

// Layer names are built from the prefix and end up in file names, tile
// server source ids and the viewer script.
var layerPrefixPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Config holds all pipeline settings, populated from environment variables.
type Config struct {
	// StoreURL locates the NetCDF grid (gocloud.dev blob URL or local path).
	// Only the fetching commands need it; see RequireStore.
	StoreURL    string
	Variable    string
	LayerPrefix string
	Range       domain.MonthRange

	OutputDir        string
	MBTilesDir       string
	TileserverConfig string
	ViewerPath       string

	// LandMaskPath overrides the embedded land outline when set.
	LandMaskPath  string
	LandCacheSize int
	Spacing       domain.SpacingOptions

	TippecanoeBin string
	TileWorkers   int
	TileTimeout   time.Duration
	FetchTimeout  time.Duration

	HTTPAddr        string
	PushgatewayURL  string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Layer-ready notifications, disabled when no brokers are set.
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	rng, err := domain.ParseMonthRange(
		sharedcfg.EnvOrDefault("START_MONTH", "2022-01"),
		sharedcfg.EnvOrDefault("END_MONTH", "2025-05"),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid START_MONTH/END_MONTH: %w", err)
	}

	strategy, err := domain.ParseSpacingStrategy(sharedcfg.EnvOrDefault("GRID_SPACING_STRATEGY", string(domain.SpacingLeading)))
	if err != nil {
		return nil, fmt.Errorf("invalid GRID_SPACING_STRATEGY: %w", err)
	}
	latSpacing, err := parseOptionalDegrees("GRID_LAT_SPACING")
	if err != nil {
		return nil, err
	}
	lonSpacing, err := parseOptionalDegrees("GRID_LON_SPACING")
	if err != nil {
		return nil, err
	}

	tileWorkers, err := parsePositiveInt("TILE_WORKERS", 1)
	if err != nil {
		return nil, err
	}
	if tileWorkers > maxTileWorkers {
		return nil, fmt.Errorf("invalid TILE_WORKERS: must be at most %d", maxTileWorkers)
	}

	landCacheSize, err := parsePositiveInt("LAND_CACHE_SIZE", 65536)
	if err != nil {
		return nil, err
	}

	tileTimeout, err := parseDuration("TILE_TIMEOUT", "0s")
	if err != nil {
		return nil, err
	}
	fetchTimeout, err := parseDuration("FETCH_TIMEOUT", "5m")
	if err != nil {
		return nil, err
	}
	if fetchTimeout == 0 {
		return nil, errors.New("invalid FETCH_TIMEOUT: must be positive")
	}

	cfg := &Config{
		StoreURL:    os.Getenv("STORE_URL"),
		Variable:    sharedcfg.EnvOrDefault("VARIABLE", "RH2M"),
		LayerPrefix: sharedcfg.EnvOrDefault("LAYER_PREFIX", "humidity"),
		Range:       rng,

		OutputDir:        sharedcfg.EnvOrDefault("OUTPUT_DIR", "humidity_data_output"),
		MBTilesDir:       sharedcfg.EnvOrDefault("MBTILES_DIR", "humidity_mbtiles_output"),
		TileserverConfig: sharedcfg.EnvOrDefault("TILESERVER_CONFIG", "humidity-tileserver-config.json"),
		ViewerPath:       sharedcfg.EnvOrDefault("VIEWER_PATH", "humidity-viewer.html"),

		LandMaskPath:  os.Getenv("LAND_MASK_PATH"),
		LandCacheSize: landCacheSize,
		Spacing: domain.SpacingOptions{
			Strategy:    strategy,
			LatOverride: latSpacing,
			LonOverride: lonSpacing,
		},

		TippecanoeBin: sharedcfg.EnvOrDefault("TIPPECANOE_BIN", "tippecanoe"),
		TileWorkers:   tileWorkers,
		TileTimeout:   tileTimeout,
		FetchTimeout:  fetchTimeout,

		HTTPAddr:        os.Getenv("HTTP_ADDR"),
		PushgatewayURL:  os.Getenv("PUSHGATEWAY_URL"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "text"),
		ShutdownTimeout: shutdownTimeout,

		KafkaBrokers: sharedcfg.ParseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "humidity-layers"),
	}

	if cfg.Variable == "" {
		return nil, errors.New("VARIABLE is required")
	}
	if cfg.LayerPrefix == "" {
		return nil, errors.New("LAYER_PREFIX is required")
	}
	if !layerPrefixPattern.MatchString(cfg.LayerPrefix) {
		return nil, fmt.Errorf("invalid LAYER_PREFIX %q: only letters, digits, '_' and '-' are allowed", cfg.LayerPrefix)
	}
	if cfg.OutputDir == "" || cfg.MBTilesDir == "" {
		return nil, errors.New("OUTPUT_DIR and MBTILES_DIR are required")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

// RequireStore reports an error when no grid store is configured. Stages that
// read the grid call it; the stored-input stages do not need a store.
func (c *Config) RequireStore() error {
	if c.StoreURL == "" {
		return errors.New("STORE_URL is required to fetch the humidity grid")
	}
	return nil
}

// NotificationsEnabled reports whether layer-ready events should be published.
func (c *Config) NotificationsEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseOptionalDegrees(key string) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 || v > 90 {
		return 0, fmt.Errorf("invalid %s: must be in (0, 90] degrees", key)
	}
	return v, nil
}
