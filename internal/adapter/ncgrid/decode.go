// Package ncgrid decodes CF-style NetCDF files holding a [time][lat][lon]
// variable into a domain.Grid.
package ncgrid

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"

	"github.com/couchcryptid/humidity-tiles-etl/internal/domain"
)

var (
	latNames = []string{"lat", "latitude"}
	lonNames = []string{"lon", "longitude"}
)

// variable is one NetCDF variable as the decoder reads it.
type variable interface {
	attr(key string) (any, bool)
	values() (any, error)
	slice(begin, end int64) (any, error)
}

type source interface {
	variable(name string) (variable, error)
}

type group struct{ g api.Group }

func (s group) variable(name string) (variable, error) {
	vg, err := s.g.GetVarGetter(name)
	if err != nil {
		return nil, err
	}
	return getter{vg}, nil
}

type getter struct{ vg api.VarGetter }

func (g getter) attr(key string) (any, bool) {
	attrs := g.vg.Attributes()
	if attrs == nil {
		return nil, false
	}
	return attrs.Get(key)
}

func (g getter) values() (any, error) { return g.vg.Values() }

func (g getter) slice(begin, end int64) (any, error) { return g.vg.GetSlice(begin, end) }

// Decoder satisfies the grid store's decoder contract.
type Decoder struct{}

// Decode reads variable from the NetCDF file at path. Only timestamps inside
// r are loaded; the rest keep their place in Grid.Times with no values.
func (Decoder) Decode(path, variable string, r domain.MonthRange) (*domain.Grid, error) {
	return Decode(path, variable, r)
}

// Decode reads variable from the NetCDF file at path.
func Decode(path, variable string, r domain.MonthRange) (*domain.Grid, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open netcdf %s: %w", path, err)
	}
	defer nc.Close()
	return decode(group{nc}, variable, r)
}

func decode(src source, name string, r domain.MonthRange) (*domain.Grid, error) {
	times, err := readTimes(src)
	if err != nil {
		return nil, err
	}
	lats, err := readAxis(src, latNames)
	if err != nil {
		return nil, err
	}
	lons, err := readAxis(src, lonNames)
	if err != nil {
		return nil, err
	}

	v, err := src.variable(name)
	if err != nil {
		return nil, fmt.Errorf("variable %s: %w", name, err)
	}
	pk := packingOf(v)

	grid := &domain.Grid{
		Variable: name,
		Times:    times,
		Lats:     lats,
		Lons:     lons,
		Values:   make([][][]float64, len(times)),
	}

	for i, t := range times {
		if !r.Contains(t) {
			continue
		}
		layer, err := readLayer(v, i, len(times))
		if err != nil {
			return nil, fmt.Errorf("variable %s at %s: %w", name, t.Format("2006-01"), err)
		}
		if len(layer) != len(lats) || (len(layer) > 0 && len(layer[0]) != len(lons)) {
			return nil, fmt.Errorf("variable %s: layer shape %dx%d does not match lat/lon axes %dx%d",
				name, len(layer), rowLen(layer), len(lats), len(lons))
		}
		for _, row := range layer {
			for j := range row {
				row[j] = pk.apply(row[j])
			}
		}
		grid.Values[i] = layer
	}
	return grid, nil
}

// readLayer returns the [lat][lon] slice at time index i. A two-dimensional
// variable is accepted when the file has a single timestamp.
func readLayer(v variable, i, ntimes int) ([][]float64, error) {
	raw, err := v.slice(int64(i), int64(i+1))
	if err != nil {
		return nil, err
	}
	if c, ok := toCube(raw); ok {
		if len(c) != 1 {
			return nil, fmt.Errorf("expected one time step, got %d", len(c))
		}
		return c[0], nil
	}
	if ntimes != 1 {
		return nil, fmt.Errorf("variable is not [time][lat][lon]")
	}
	all, err := v.values()
	if err != nil {
		return nil, err
	}
	m, ok := toMatrix(all)
	if !ok {
		return nil, fmt.Errorf("unsupported value type %T", all)
	}
	return m, nil
}

func readTimes(src source) ([]time.Time, error) {
	v, err := src.variable("time")
	if err != nil {
		return nil, fmt.Errorf("time axis: %w", err)
	}
	raw, err := v.values()
	if err != nil {
		return nil, fmt.Errorf("time axis: %w", err)
	}
	offsets, ok := toVector(raw)
	if !ok {
		return nil, fmt.Errorf("time axis: unsupported value type %T", raw)
	}
	units, _ := stringAttr(v, "units")
	unit, ref, err := ParseTimeUnits(units)
	if err != nil {
		return nil, fmt.Errorf("time axis: %w", err)
	}
	out := make([]time.Time, len(offsets))
	for i, o := range offsets {
		out[i] = ref.Add(time.Duration(o * float64(unit)))
	}
	return out, nil
}

func readAxis(src source, names []string) ([]float64, error) {
	var lastErr error
	for _, n := range names {
		v, err := src.variable(n)
		if err != nil {
			lastErr = err
			continue
		}
		raw, err := v.values()
		if err != nil {
			return nil, fmt.Errorf("%s axis: %w", n, err)
		}
		vals, ok := toVector(raw)
		if !ok {
			return nil, fmt.Errorf("%s axis: unsupported value type %T", n, raw)
		}
		return vals, nil
	}
	return nil, fmt.Errorf("none of %s found: %w", strings.Join(names, ", "), lastErr)
}

// ParseTimeUnits parses a CF time units string such as
// "days since 1981-01-01 00:00:00".
func ParseTimeUnits(s string) (time.Duration, time.Time, error) {
	parts := strings.SplitN(strings.TrimSpace(s), " since ", 2)
	if len(parts) != 2 {
		return 0, time.Time{}, fmt.Errorf("units %q are not \"<unit> since <time>\"", s)
	}
	var unit time.Duration
	switch strings.ToLower(strings.TrimSpace(parts[0])) {
	case "days", "day", "d":
		unit = 24 * time.Hour
	case "hours", "hour", "h":
		unit = time.Hour
	case "minutes", "minute", "min":
		unit = time.Minute
	case "seconds", "second", "s":
		unit = time.Second
	default:
		return 0, time.Time{}, fmt.Errorf("unsupported time unit %q", parts[0])
	}
	ref, err := parseReference(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, time.Time{}, err
	}
	return unit, ref, nil
}

var referenceLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006-1-2 15:04:05",
	"2006-1-2",
}

func parseReference(s string) (time.Time, error) {
	s = strings.TrimSuffix(strings.TrimSuffix(s, " UTC"), " utc")
	for _, layout := range referenceLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable reference time %q", s)
}

// packing holds CF scale/offset/fill attributes.
type packing struct {
	scale, offset float64
	fill          []float64
}

func packingOf(attrs variable) packing {
	p := packing{scale: 1}
	if v, ok := numberAttr(attrs, "scale_factor"); ok {
		p.scale = v
	}
	if v, ok := numberAttr(attrs, "add_offset"); ok {
		p.offset = v
	}
	for _, k := range []string{"_FillValue", "missing_value"} {
		if v, ok := numberAttr(attrs, k); ok {
			p.fill = append(p.fill, v)
		}
	}
	return p
}

// apply maps a raw stored value to its physical value, or NaN when missing.
func (p packing) apply(raw float64) float64 {
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return math.NaN()
	}
	for _, f := range p.fill {
		if raw == f || (math.Abs(f) >= 1e30 && math.Abs(raw-f) <= math.Abs(f)*1e-6) {
			return math.NaN()
		}
	}
	return raw*p.scale + p.offset
}

func stringAttr(v variable, key string) (string, bool) {
	a, ok := v.attr(key)
	if !ok {
		return "", false
	}
	s, ok := a.(string)
	return s, ok
}

func numberAttr(attrs variable, key string) (float64, bool) {
	v, ok := attrs.attr(key)
	if !ok {
		return 0, false
	}
	if vec, ok := toVector(v); ok {
		if len(vec) == 0 {
			return 0, false
		}
		return vec[0], true
	}
	return toFloat(v)
}

func rowLen(m [][]float64) int {
	if len(m) == 0 {
		return 0
	}
	return len(m[0])
}
