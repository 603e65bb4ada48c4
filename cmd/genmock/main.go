// Command genmock writes a synthetic full-range humidity table and a coarse
// land mask so the split, polygonize, tiles and publish stages can run
// without access to the remote grid store. Values are a deterministic
// function of latitude, longitude and month.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -out-dir humidity_data_output \
//	  -land-out data/mock/land.geojson \
//	  -start 2024-01 -end 2024-12
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/couchcryptid/humidity-tiles-etl/internal/adapter/csvtable"
	"github.com/couchcryptid/humidity-tiles-etl/internal/domain"
)

// continents are rough land boxes, enough for a recognizable map.
var continents = map[string]orb.Bound{
	"north_america": {Min: orb.Point{-168, 15}, Max: orb.Point{-52, 72}},
	"south_america": {Min: orb.Point{-82, -56}, Max: orb.Point{-34, 13}},
	"europe_asia":   {Min: orb.Point{-10, 5}, Max: orb.Point{180, 75}},
	"africa":        {Min: orb.Point{-18, -35}, Max: orb.Point{52, 37}},
	"australia":     {Min: orb.Point{113, -44}, Max: orb.Point{154, -10}},
	"antarctica":    {Min: orb.Point{-180, -90}, Max: orb.Point{180, -63}},
}

type options struct {
	outDir   string
	landOut  string
	variable string
	prefix   string
	rng      domain.MonthRange
	latStep  float64
	lonStep  float64
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	outDir := flag.String("out-dir", "humidity_data_output", "directory for the full-range table")
	landOut := flag.String("land-out", "", "optional output path for a coarse land mask GeoJSON")
	variable := flag.String("variable", "RH2M", "value column name")
	start := flag.String("start", "2024-01", "first month, YYYY-MM")
	end := flag.String("end", "2024-12", "last month, YYYY-MM")
	latStep := flag.Float64("lat-step", 2.0, "latitude spacing in degrees")
	lonStep := flag.Float64("lon-step", 2.5, "longitude spacing in degrees")
	flag.Parse()

	rng, err := domain.ParseMonthRange(*start, *end)
	if err != nil {
		return err
	}
	if *latStep <= 0 || *lonStep <= 0 {
		return fmt.Errorf("-lat-step and -lon-step must be positive")
	}
	opts := options{
		outDir:   *outDir,
		landOut:  *landOut,
		variable: *variable,
		prefix:   "humidity",
		rng:      rng,
		latStep:  *latStep,
		lonStep:  *lonStep,
	}

	samples := generate(opts)
	store := csvtable.NewStore(opts.outDir, opts.variable, opts.prefix)
	path, err := store.WriteFull(opts.rng, samples)
	if err != nil {
		return fmt.Errorf("writing table: %w", err)
	}
	log.Printf("wrote %d samples for %s: %s", len(samples), opts.rng, path)

	if opts.landOut != "" {
		if err := writeLandMask(opts.landOut); err != nil {
			return fmt.Errorf("writing land mask: %w", err)
		}
		log.Printf("wrote land mask: %s", opts.landOut)
	}

	printStats(samples)
	return nil
}

// generate lays a regular grid over the globe for every month in the range.
// Every seventh cell of each month is left out to mimic missing data.
func generate(o options) []domain.Sample {
	var out []domain.Sample
	for k := o.rng.Start; !o.rng.End.Before(k); k = next(k) {
		season := math.Sin(2 * math.Pi * float64(k.Month-1) / 12)
		i := 0
		for lat := -90.0; lat <= 90; lat += o.latStep {
			for lon := -180.0; lon < 180; lon += o.lonStep {
				i++
				if i%7 == 0 {
					continue
				}
				out = append(out, domain.Sample{
					Time:  k.Start(),
					Lat:   lat,
					Lon:   lon,
					Value: humidity(lat, lon, season),
				})
			}
		}
	}
	return out
}

// humidity is wet near the equator, dry in the subtropics and shifts with
// the season in each hemisphere.
func humidity(lat, lon, season float64) float64 {
	rad := lat * math.Pi / 180
	v := 70 + 20*math.Cos(2*rad) + 8*season*math.Sin(rad) + 4*math.Sin(lon*math.Pi/90)
	v = math.Max(0, math.Min(100, v))
	return math.Round(v*100) / 100
}

func next(k domain.MonthKey) domain.MonthKey {
	if k.Month == 12 {
		return domain.MonthKey{Year: k.Year + 1, Month: 1}
	}
	return domain.MonthKey{Year: k.Year, Month: k.Month + 1}
}

func writeLandMask(path string) error {
	fc := geojson.NewFeatureCollection()
	for name, b := range continents {
		f := geojson.NewFeature(b.ToPolygon())
		f.Properties["name"] = name
		fc.Append(f)
	}
	data, err := fc.MarshalJSON()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func printStats(samples []domain.Sample) {
	tables := domain.Partition(samples)
	fmt.Println("\n=== Synthetic table ===")
	fmt.Printf("Samples: %d\n", len(samples))
	fmt.Printf("Months: %d\n", len(tables))
	for _, t := range tables {
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, s := range t.Samples {
			lo = math.Min(lo, s.Value)
			hi = math.Max(hi, s.Value)
		}
		fmt.Printf("  %s rows=%d min=%.2f max=%.2f\n", t.Key, len(t.Samples), lo, hi)
	}
}
