package domain

import (
	"fmt"
	"math"
	"sort"
)

// Default cell size used when a table has fewer than two distinct coordinates
// along an axis. Matches the native MERRA-2 grid.
const (
	DefaultLatSpacing = 0.5
	DefaultLonSpacing = 0.625
)

// SpacingStrategy selects how grid spacing is inferred from a monthly table.
type SpacingStrategy string

const (
	// SpacingLeading takes the gap between the two smallest distinct
	// coordinates among land samples.
	SpacingLeading SpacingStrategy = "leading"

	// SpacingMinGap takes the smallest non-zero gap between adjacent distinct
	// coordinates of the whole table, before land filtering. It survives land
	// filtering removing one of the reference rows and tolerates irregular grids.
	SpacingMinGap SpacingStrategy = "mingap"
)

// ParseSpacingStrategy validates a strategy name.
func ParseSpacingStrategy(s string) (SpacingStrategy, error) {
	switch SpacingStrategy(s) {
	case SpacingLeading, SpacingMinGap:
		return SpacingStrategy(s), nil
	default:
		return "", fmt.Errorf("unknown spacing strategy %q", s)
	}
}

// Spacing is the cell size of one monthly table in degrees.
type Spacing struct {
	Lat float64
	Lon float64
}

// SpacingOptions configures spacing inference. A positive override wins over
// inference for its axis.
type SpacingOptions struct {
	Strategy    SpacingStrategy
	LatOverride float64
	LonOverride float64
}

// Infer derives the spacing for a monthly table. all is the full table and
// land the rows that survived land filtering. The result depends only on the
// coordinate sets, so repeated calls on the same table agree.
func (o SpacingOptions) Infer(all, land []Sample) Spacing {
	rows := land
	pick := leadingGap
	if o.Strategy == SpacingMinGap {
		rows = all
		pick = minGap
	}

	sp := Spacing{
		Lat: pick(distinct(rows, func(s Sample) float64 { return s.Lat }), DefaultLatSpacing),
		Lon: pick(distinct(rows, func(s Sample) float64 { return s.Lon }), DefaultLonSpacing),
	}
	if o.LatOverride > 0 {
		sp.Lat = o.LatOverride
	}
	if o.LonOverride > 0 {
		sp.Lon = o.LonOverride
	}
	return sp
}

// distinct returns the sorted distinct values of one coordinate.
func distinct(rows []Sample, coord func(Sample) float64) []float64 {
	seen := make(map[float64]struct{}, len(rows))
	vals := make([]float64, 0, len(rows))
	for _, r := range rows {
		v := coord(r)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		vals = append(vals, v)
	}
	sort.Float64s(vals)
	return vals
}

func leadingGap(sorted []float64, fallback float64) float64 {
	if len(sorted) < 2 {
		return fallback
	}
	return math.Abs(sorted[1] - sorted[0])
}

func minGap(sorted []float64, fallback float64) float64 {
	best := math.Inf(1)
	for i := 1; i < len(sorted); i++ {
		if d := sorted[i] - sorted[i-1]; d > 0 && d < best {
			best = d
		}
	}
	if math.IsInf(best, 1) {
		return fallback
	}
	return best
}
