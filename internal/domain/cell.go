package domain

import (
	"fmt"
	"time"

	"github.com/paulmach/orb"
)

// LandOracle classifies a coordinate as land or not-land.
type LandOracle interface {
	IsLand(lat, lon float64) bool
}

// LandFunc adapts a plain function to LandOracle.
type LandFunc func(lat, lon float64) bool

// IsLand calls f(lat, lon).
func (f LandFunc) IsLand(lat, lon float64) bool { return f(lat, lon) }

// GridCell is the rectangle a land sample stands for.
type GridCell struct {
	Polygon orb.Polygon
	Value   float64
	Time    time.Time
	Lat     float64
	Lon     float64
}

// NewGridCell builds the closed rectangle centered on the sample. Vertices run
// SW, SE, NE, NW and back to SW.
func NewGridCell(s Sample, sp Spacing) GridCell {
	halfLat := sp.Lat / 2
	halfLon := sp.Lon / 2
	ring := orb.Ring{
		{s.Lon - halfLon, s.Lat - halfLat},
		{s.Lon + halfLon, s.Lat - halfLat},
		{s.Lon + halfLon, s.Lat + halfLat},
		{s.Lon - halfLon, s.Lat + halfLat},
		{s.Lon - halfLon, s.Lat - halfLat},
	}
	return GridCell{
		Polygon: orb.Polygon{ring},
		Value:   s.Value,
		Time:    s.Time,
		Lat:     s.Lat,
		Lon:     s.Lon,
	}
}

// Polygonized is the outcome of turning one monthly table into cells.
type Polygonized struct {
	Key     MonthKey
	Spacing Spacing
	Input   int
	Land    int
	Cells   []GridCell
}

// Polygonize drops non-land rows, infers the table's spacing and emits one
// cell per remaining sample with a value. It returns ErrEmptyInput when the
// table is empty or nothing survives the land filter.
func Polygonize(table MonthlyTable, land LandOracle, opts SpacingOptions) (Polygonized, error) {
	out := Polygonized{Key: table.Key, Input: len(table.Samples)}
	if len(table.Samples) == 0 {
		return out, fmt.Errorf("month %s: no rows: %w", table.Key, ErrEmptyInput)
	}

	kept := make([]Sample, 0, len(table.Samples))
	for _, s := range table.Samples {
		if land.IsLand(s.Lat, s.Lon) {
			kept = append(kept, s)
		}
	}
	out.Land = len(kept)
	if len(kept) == 0 {
		return out, fmt.Errorf("month %s: no land rows: %w", table.Key, ErrEmptyInput)
	}

	out.Spacing = opts.Infer(table.Samples, kept)
	out.Cells = make([]GridCell, 0, len(kept))
	for _, s := range kept {
		if s.Missing() {
			continue
		}
		out.Cells = append(out.Cells, NewGridCell(s, out.Spacing))
	}
	return out, nil
}
