package ncgrid

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/couchcryptid/humidity-tiles-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type fakeVar struct {
	attrs map[string]any
	all   any
	cube  [][][]float32
}

func (f *fakeVar) attr(key string) (any, bool) {
	v, ok := f.attrs[key]
	return v, ok
}

func (f *fakeVar) values() (any, error) {
	if f.cube != nil {
		return f.cube, nil
	}
	return f.all, nil
}

func (f *fakeVar) slice(begin, end int64) (any, error) {
	if f.cube != nil {
		return f.cube[begin:end], nil
	}
	switch x := f.all.(type) {
	case [][]float32:
		return x[begin:end], nil
	}
	return nil, errors.New("not sliceable")
}

type fakeSource map[string]*fakeVar

func (s fakeSource) variable(name string) (variable, error) {
	v, ok := s[name]
	if !ok {
		return nil, errors.New("variable not found")
	}
	return v, nil
}

func testSource() fakeSource {
	return fakeSource{
		"time": {
			attrs: map[string]any{"units": "days since 2024-05-01 00:00:00"},
			all:   []int32{0, 31, 61},
		},
		"lat": {all: []float64{10, 10.5}},
		"lon": {all: []float32{20, 20.625}},
		"RH2M": {
			attrs: map[string]any{"_FillValue": float32(-999)},
			cube: [][][]float32{
				{{50, 51}, {52, 53}},
				{{75.5, -999}, {71, 72}},
				{{60, 61}, {62, 63}},
			},
		},
	}
}

func june2024() domain.MonthRange {
	return domain.MonthRange{
		Start: domain.MonthKey{Year: 2024, Month: time.June},
		End:   domain.MonthKey{Year: 2024, Month: time.June},
	}
}

// --- decode ---

func TestDecode_LoadsOnlyRange(t *testing.T) {
	g, err := decode(testSource(), "RH2M", june2024())
	require.NoError(t, err)

	require.Len(t, g.Times, 3)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), g.Times[1])
	assert.Equal(t, []float64{10, 10.5}, g.Lats)
	assert.Equal(t, []float64{20, 20.625}, g.Lons)
	assert.Nil(t, g.Values[0])
	assert.Nil(t, g.Values[2])

	require.Len(t, g.Values[1], 2)
	assert.InDelta(t, 75.5, g.Values[1][0][0], 1e-6)
	assert.True(t, math.IsNaN(g.Values[1][0][1]), "fill value should decode as NaN")
	assert.Equal(t, 1, g.TimesIn(june2024()))

	samples := g.Samples(june2024())
	assert.Len(t, samples, 3)
}

func TestDecode_LatitudeLongitudeNames(t *testing.T) {
	src := testSource()
	src["latitude"], src["longitude"] = src["lat"], src["lon"]
	delete(src, "lat")
	delete(src, "lon")

	g, err := decode(src, "RH2M", june2024())
	require.NoError(t, err)
	assert.Len(t, g.Lats, 2)
	assert.Len(t, g.Lons, 2)
}

func TestDecode_ScaleAndOffset(t *testing.T) {
	src := testSource()
	src["RH2M"].attrs = map[string]any{
		"scale_factor":  []float64{0.5},
		"add_offset":    float64(1),
		"missing_value": int16(-1),
	}
	src["RH2M"].cube[1][0][1] = -1

	g, err := decode(src, "RH2M", june2024())
	require.NoError(t, err)
	assert.InDelta(t, 75.5*0.5+1, g.Values[1][0][0], 1e-6)
	assert.True(t, math.IsNaN(g.Values[1][0][1]))
}

func TestDecode_TwoDimensionalSingleTime(t *testing.T) {
	src := testSource()
	src["time"].all = []int32{31}
	src["RH2M"] = &fakeVar{all: [][]float32{{1, 2}, {3, 4}}}

	g, err := decode(src, "RH2M", june2024())
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 2}, {3, 4}}, g.Values[0])
}

func TestDecode_Errors(t *testing.T) {
	t.Run("missing variable", func(t *testing.T) {
		_, err := decode(testSource(), "T2M", june2024())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "T2M")
	})
	t.Run("missing lon axis", func(t *testing.T) {
		src := testSource()
		delete(src, "lon")
		_, err := decode(src, "RH2M", june2024())
		require.Error(t, err)
	})
	t.Run("bad time units", func(t *testing.T) {
		src := testSource()
		src["time"].attrs["units"] = "fortnights"
		_, err := decode(src, "RH2M", june2024())
		require.Error(t, err)
	})
	t.Run("shape mismatch", func(t *testing.T) {
		src := testSource()
		src["lat"].all = []float64{10}
		_, err := decode(src, "RH2M", june2024())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "does not match")
	})
}

// --- helpers ---

func TestParseTimeUnits(t *testing.T) {
	cases := []struct {
		in   string
		unit time.Duration
		ref  time.Time
	}{
		{"days since 1981-01-01", 24 * time.Hour, time.Date(1981, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"hours since 1900-01-01 00:00:00", time.Hour, time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"minutes since 2000-01-01T00:30:00", time.Minute, time.Date(2000, 1, 1, 0, 30, 0, 0, time.UTC)},
		{"seconds since 1970-1-1", time.Second, time.Unix(0, 0).UTC()},
		{"days since 1981-01-01 00:00:00 UTC", 24 * time.Hour, time.Date(1981, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			unit, ref, err := ParseTimeUnits(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.unit, unit)
			assert.True(t, tc.ref.Equal(ref), "got %s", ref)
		})
	}

	for _, bad := range []string{"", "days", "weeks since 2000-01-01", "days since yesterday"} {
		_, _, err := ParseTimeUnits(bad)
		assert.Error(t, err, bad)
	}
}

func TestPacking_Apply(t *testing.T) {
	p := packing{scale: 1, fill: []float64{1e15}}
	assert.True(t, math.IsNaN(p.apply(1e15)))
	assert.True(t, math.IsNaN(p.apply(math.NaN())))
	assert.InDelta(t, 42.0, p.apply(42), 1e-12)

	big := packing{scale: 1, fill: []float64{9.999e36}}
	assert.True(t, math.IsNaN(big.apply(float64(float32(9.999e36)))))
}

func TestToVector(t *testing.T) {
	v, ok := toVector([]int16{1, -2})
	require.True(t, ok)
	assert.Equal(t, []float64{1, -2}, v)

	_, ok = toVector("nope")
	assert.False(t, ok)
}
