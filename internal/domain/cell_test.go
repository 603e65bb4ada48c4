package domain

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const coordTolerance = 1e-9

// landAt classifies exactly the listed coordinates as land.
func landAt(points ...[2]float64) LandOracle {
	set := make(map[[2]float64]bool, len(points))
	for _, p := range points {
		set[p] = true
	}
	return LandFunc(func(lat, lon float64) bool { return set[[2]float64{lat, lon}] })
}

func TestNewGridCell_ClosedRectangle(t *testing.T) {
	s := Sample{Time: month(2024, time.June), Lat: 10, Lon: 20, Value: 75.5}
	cell := NewGridCell(s, Spacing{Lat: 0.5, Lon: 0.625})

	require.Len(t, cell.Polygon, 1)
	ring := cell.Polygon[0]
	require.Len(t, ring, 5)
	assert.Equal(t, ring[0], ring[4], "ring must be closed")
	assert.Equal(t, orb.Point{19.6875, 9.75}, ring[0])
	assert.Equal(t, orb.Point{20.3125, 9.75}, ring[1])
	assert.Equal(t, orb.Point{20.3125, 10.25}, ring[2])
	assert.Equal(t, orb.Point{19.6875, 10.25}, ring[3])
	assert.Equal(t, orb.CCW, ring.Orientation())

	centroid, area := planar.CentroidArea(cell.Polygon)
	assert.InDelta(t, 20.0, centroid.X(), coordTolerance)
	assert.InDelta(t, 10.0, centroid.Y(), coordTolerance)
	assert.InDelta(t, 0.5*0.625, math.Abs(area), coordTolerance)
	assert.InDelta(t, 75.5, cell.Value, coordTolerance)
}

func TestPolygonize_LandAndOceanScenario(t *testing.T) {
	june := month(2024, time.June)
	table := MonthlyTable{
		Key: MonthKey{Year: 2024, Month: time.June},
		Samples: []Sample{
			{Time: june, Lat: 10.0, Lon: 20.0, Value: 75.5},
			{Time: june, Lat: 0.0, Lon: 60.0, Value: 80.0},
		},
	}

	got, err := Polygonize(table, landAt([2]float64{10, 20}), SpacingOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, got.Input)
	assert.Equal(t, 1, got.Land)
	require.Len(t, got.Cells, 1)
	assert.Equal(t, Spacing{Lat: DefaultLatSpacing, Lon: DefaultLonSpacing}, got.Spacing)

	centroid, _ := planar.CentroidArea(got.Cells[0].Polygon)
	assert.InDelta(t, 20.0, centroid.X(), coordTolerance)
	assert.InDelta(t, 10.0, centroid.Y(), coordTolerance)
	assert.Equal(t, "humidity_06_2024_land", LayerName("humidity", got.Key))
}

func TestPolygonize_OneCellPerLandSample(t *testing.T) {
	june := month(2024, time.June)
	var samples []Sample
	var land [][2]float64
	for i := range 4 {
		for j := range 5 {
			lat, lon := -1+0.5*float64(i), 30+0.625*float64(j)
			samples = append(samples, Sample{Time: june, Lat: lat, Lon: lon, Value: float64(i*10 + j)})
			if (i+j)%2 == 0 {
				land = append(land, [2]float64{lat, lon})
			}
		}
	}
	// A missing value on land yields no cell.
	samples = append(samples, Sample{Time: june, Lat: 5, Lon: 5, Value: math.NaN()})
	land = append(land, [2]float64{5, 5})

	got, err := Polygonize(MonthlyTable{Key: MonthOf(june), Samples: samples}, landAt(land...), SpacingOptions{})
	require.NoError(t, err)
	require.Len(t, got.Cells, len(land)-1)

	for _, cell := range got.Cells {
		c, _ := planar.CentroidArea(cell.Polygon)
		assert.InDelta(t, cell.Lon, c.X(), coordTolerance)
		assert.InDelta(t, cell.Lat, c.Y(), coordTolerance)
	}
}

func TestPolygonize_NoLand(t *testing.T) {
	table := MonthlyTable{
		Key:     MonthKey{Year: 2024, Month: time.July},
		Samples: []Sample{{Time: month(2024, time.July), Lat: 0, Lon: 60, Value: 80}},
	}
	got, err := Polygonize(table, LandFunc(func(_, _ float64) bool { return false }), SpacingOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyInput))
	assert.Empty(t, got.Cells)
	assert.Equal(t, 1, got.Input)
	assert.Zero(t, got.Land)
}

func TestPolygonize_EmptyTable(t *testing.T) {
	_, err := Polygonize(MonthlyTable{}, LandFunc(func(_, _ float64) bool { return true }), SpacingOptions{})
	assert.ErrorIs(t, err, ErrEmptyInput)
}
