package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func month(year int, m time.Month) time.Time {
	return time.Date(year, m, 1, 0, 0, 0, 0, time.UTC)
}

func TestPartition_GroupsByMonth(t *testing.T) {
	samples := []Sample{
		{Time: month(2024, time.June), Lat: 10, Lon: 20, Value: 75.5},
		{Time: month(2023, time.December), Lat: 1, Lon: 2, Value: 40},
		{Time: month(2024, time.June), Lat: 0, Lon: 60, Value: 80},
		{Time: month(2024, time.January), Lat: 5, Lon: 5, Value: 55},
		{Time: month(2023, time.December), Lat: 3, Lon: 4, Value: 41},
	}

	tables := Partition(samples)
	require.Len(t, tables, 3)

	assert.Equal(t, MonthKey{Year: 2023, Month: time.December}, tables[0].Key)
	assert.Equal(t, MonthKey{Year: 2024, Month: time.January}, tables[1].Key)
	assert.Equal(t, MonthKey{Year: 2024, Month: time.June}, tables[2].Key)

	total := 0
	for _, tbl := range tables {
		for _, s := range tbl.Samples {
			assert.Equal(t, tbl.Key, s.Month(), "row leaked into another month")
		}
		total += len(tbl.Samples)
	}
	assert.Equal(t, len(samples), total, "rows duplicated or lost")

	// Input order is kept inside a month.
	assert.InDelta(t, 75.5, tables[2].Samples[0].Value, 1e-9)
	assert.InDelta(t, 80.0, tables[2].Samples[1].Value, 1e-9)
}

func TestPartition_KeysMatchDistinctMonths(t *testing.T) {
	var samples []Sample
	want := map[MonthKey]bool{}
	for i := range 30 {
		ts := month(2022, time.January).AddDate(0, i%17, 0)
		samples = append(samples, Sample{Time: ts, Lat: float64(i), Lon: float64(-i), Value: float64(i)})
		want[MonthOf(ts)] = true
	}

	got := map[MonthKey]bool{}
	for _, tbl := range Partition(samples) {
		got[tbl.Key] = true
	}
	assert.Equal(t, want, got)
}

func TestPartition_Empty(t *testing.T) {
	assert.Empty(t, Partition(nil))
}

func TestPartition_DropsMissing(t *testing.T) {
	tables := Partition([]Sample{
		{Time: month(2024, time.June), Value: math.NaN()},
		{Time: month(2024, time.July), Value: 12},
	})
	require.Len(t, tables, 1)
	assert.Equal(t, time.July, tables[0].Key.Month)
}
