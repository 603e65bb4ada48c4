// Command validate checks the artifacts of a pipeline run for consistency:
// the monthly tables against the full-range table, the GeoJSON documents
// against the land rows of each monthly table, and the tileserver config
// against the MBTiles archives on disk.
//
// It reads the same environment as humidity-etl (OUTPUT_DIR, MBTILES_DIR,
// TILESERVER_CONFIG, START_MONTH, END_MONTH, ...).
//
// Usage:
//
//	go run ./cmd/validate [-land data/ne_110m_land.geojson] [-skip-land]
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/couchcryptid/humidity-tiles-etl/internal/adapter/csvtable"
	"github.com/couchcryptid/humidity-tiles-etl/internal/adapter/geojson"
	"github.com/couchcryptid/humidity-tiles-etl/internal/adapter/landmask"
	"github.com/couchcryptid/humidity-tiles-etl/internal/adapter/tileserver"
	"github.com/couchcryptid/humidity-tiles-etl/internal/adapter/tippecanoe"
	"github.com/couchcryptid/humidity-tiles-etl/internal/config"
	"github.com/couchcryptid/humidity-tiles-etl/internal/domain"
)

// coordTolerance absorbs float formatting round trips through CSV and JSON.
const coordTolerance = 1e-9

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// artifacts locates everything a run writes.
type artifacts struct {
	rng        domain.MonthRange
	tables     *csvtable.Store
	geometry   *geojson.Writer
	mbtilesDir string
	prefix     string
	configPath string
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load config: %v\n", err)
		os.Exit(1)
	}
	landPath := flag.String("land", cfg.LandMaskPath, "land mask used to recount land rows; empty uses the embedded outline")
	skipLand := flag.Bool("skip-land", false, "skip the land row recount")
	flag.Parse()

	var land domain.LandOracle
	if !*skipLand {
		mask, err := landmask.LoadOrDefault(*landPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
			os.Exit(1)
		}
		land = mask
	}

	a := artifacts{
		rng:        cfg.Range,
		tables:     csvtable.NewStore(cfg.OutputDir, cfg.Variable, cfg.LayerPrefix),
		geometry:   geojson.NewWriter(cfg.OutputDir, cfg.LayerPrefix),
		mbtilesDir: cfg.MBTilesDir,
		prefix:     cfg.LayerPrefix,
		configPath: cfg.TileserverConfig,
	}
	os.Exit(run(a, land))
}

func run(a artifacts, land domain.LandOracle) int {
	fmt.Println("=== Humidity Tile Artifact Validation ===")
	fmt.Println()

	phases := []*phase{
		validatePartition(a),
		validateGeometry(a, land),
		validateConfig(a),
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// validatePartition checks that the monthly tables are exactly the full
// table grouped by month.
func validatePartition(a artifacts) *phase {
	p := &phase{name: "Monthly tables match full table"}

	full, err := a.tables.ReadFull(a.rng)
	if err != nil {
		p.errorf("read full table: %v", err)
		return p
	}
	want := map[domain.MonthKey]int{}
	for _, s := range full {
		want[s.Month()]++
	}

	refs, err := a.tables.ListMonthly()
	if err != nil {
		p.errorf("list monthly tables: %v", err)
		return p
	}
	seen := map[domain.MonthKey]bool{}
	for _, ref := range refs {
		seen[ref.Key] = true
		t, err := a.tables.ReadMonthly(ref)
		if err != nil {
			p.errorf("%s: %v", ref.Key, err)
			continue
		}
		if _, ok := want[ref.Key]; !ok {
			p.errorf("%s: monthly table has no rows in the full table", ref.Key)
			continue
		}
		if len(t.Samples) != want[ref.Key] {
			p.errorf("%s: %d rows, full table has %d", ref.Key, len(t.Samples), want[ref.Key])
		}
		for _, s := range t.Samples {
			if s.Month() != ref.Key {
				p.errorf("%s: row dated %s", ref.Key, s.Time.Format("2006-01-02"))
				break
			}
		}
	}
	for _, k := range sortedKeys(want) {
		if !seen[k] {
			p.errorf("%s: month in full table has no monthly table", k)
		}
	}
	return p
}

// validateGeometry checks every GeoJSON document against its monthly table.
// With a land oracle the feature count must equal the land row count.
func validateGeometry(a artifacts, land domain.LandOracle) *phase {
	p := &phase{name: "Geometry matches monthly land rows"}

	refs, err := a.tables.ListMonthly()
	if err != nil {
		p.errorf("list monthly tables: %v", err)
		return p
	}
	tables := map[domain.MonthKey]domain.TableRef{}
	for _, ref := range refs {
		tables[ref.Key] = ref
	}

	docs, err := a.geometry.List()
	if err != nil {
		p.errorf("list geometry documents: %v", err)
		return p
	}
	for _, doc := range docs {
		ref, ok := tables[doc.Key]
		if !ok {
			p.errorf("%s: document without a monthly table", doc.Key)
			continue
		}
		t, err := a.tables.ReadMonthly(ref)
		if err != nil {
			p.errorf("%s: %v", doc.Key, err)
			continue
		}
		fc, err := geojson.Read(doc.Path)
		if err != nil {
			p.errorf("%s: %v", doc.Key, err)
			continue
		}

		rows := map[[2]float64]bool{}
		landRows := 0
		for _, s := range t.Samples {
			rows[[2]float64{s.Lat, s.Lon}] = true
			if land != nil && land.IsLand(s.Lat, s.Lon) {
				landRows++
			}
		}
		if land != nil && len(fc.Features) != landRows {
			p.errorf("%s: %d features, %d land rows", doc.Key, len(fc.Features), landRows)
		}
		if len(fc.Features) == 0 {
			p.errorf("%s: empty document", doc.Key)
		}

		for i, f := range fc.Features {
			c := f.Geometry.Bound().Center()
			lat, lon := c[1], c[0]
			if !rows[[2]float64{round(lat), round(lon)}] && !rows[[2]float64{lat, lon}] {
				p.errorf("%s: feature %d centered at (%g, %g) matches no row", doc.Key, i, lat, lon)
				break
			}
		}
	}
	return p
}

// validateConfig checks that the tileserver config lists exactly the
// archives on disk, each under its own layer name.
func validateConfig(a artifacts) *phase {
	p := &phase{name: "Tileserver config matches archives"}

	cfg, err := tileserver.Read(a.configPath)
	if err != nil {
		p.errorf("read config: %v", err)
		return p
	}
	archives, err := tippecanoe.List(a.mbtilesDir, a.prefix)
	if err != nil {
		p.errorf("list archives: %v", err)
		return p
	}

	onDisk := map[string]bool{}
	for _, ar := range archives {
		onDisk[ar.Layer] = true
		if _, ok := cfg.Data[ar.Layer]; !ok {
			p.errorf("archive %s missing from config", filepath.Base(ar.Path))
		}
	}
	for _, layer := range cfg.Layers() {
		if !onDisk[layer] {
			p.errorf("layer %s has no archive in %s", layer, a.mbtilesDir)
			continue
		}
		if got, want := cfg.Data[layer].MBTiles, layer+".mbtiles"; got != want {
			p.errorf("layer %s points at %s, want %s", layer, got, want)
		}
	}
	return p
}

func sortedKeys(m map[domain.MonthKey]int) []domain.MonthKey {
	keys := make([]domain.MonthKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })
	return keys
}

// round snaps a computed center back onto the grid's decimal coordinates.
func round(v float64) float64 {
	const scale = 1 / coordTolerance
	return math.Round(v*scale) / scale
}
