package csvtable

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/humidity-tiles-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testVariable = "RH2M"

var june2024 = time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)

func TestWrite_Format(t *testing.T) {
	var buf bytes.Buffer
	err := Write(&buf, testVariable, []domain.Sample{
		{Time: june2024, Lat: 10, Lon: 20, Value: 75.5},
		{Time: june2024, Lat: 0, Lon: 60, Value: math.NaN()},
		{Time: june2024, Lat: -0.5, Lon: 179.375, Value: 80},
	})
	require.NoError(t, err)

	want := "time,lat,lon,RH2M\n" +
		"2024-06-01,10,20,75.5\n" +
		"2024-06-01,-0.5,179.375,80\n"
	assert.Equal(t, want, buf.String())
}

func TestRead_ColumnsByHeader(t *testing.T) {
	in := "lat,lon,time,RH2M,extra\n" +
		"10,20,2024-06-01,75.5,x\n" +
		"1,2,2024-06-01 00:00:00,,x\n" +
		"3,4,2024-06-01T00:00:00Z,NaN,x\n" +
		"-5,6.25,2024-06-01T00:00:00Z,61,x\n"

	got, err := Read(strings.NewReader(in), testVariable)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, domain.Sample{Time: june2024, Lat: 10, Lon: 20, Value: 75.5}, got[0])
	assert.Equal(t, domain.Sample{Time: june2024, Lat: -5, Lon: 6.25, Value: 61}, got[1])
}

func TestRead_Errors(t *testing.T) {
	_, err := Read(strings.NewReader("time,lat,lon\n"), testVariable)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"RH2M"`)

	_, err = Read(strings.NewReader("time,lat,lon,RH2M\nyesterday,1,2,3\n"), testVariable)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")

	got, err := Read(strings.NewReader(""), testVariable)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_MonthlyRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, testVariable, "humidity")

	table := domain.MonthlyTable{
		Key: domain.MonthKey{Year: 2024, Month: time.June},
		Samples: []domain.Sample{
			{Time: june2024, Lat: 10, Lon: 20, Value: 75.5},
			{Time: june2024, Lat: 0, Lon: 60, Value: 80},
		},
	}
	ref, err := s.WriteMonthly(table)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "humidity_06_2024.csv"), ref.Path)

	got, err := s.ReadMonthly(ref)
	require.NoError(t, err)
	assert.Equal(t, table, got)
}

func TestStore_ListMonthly(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, testVariable, "humidity")
	r, err := domain.ParseMonthRange("2023-11", "2024-02")
	require.NoError(t, err)

	for _, k := range []domain.MonthKey{
		{Year: 2024, Month: time.February},
		{Year: 2023, Month: time.November},
		{Year: 2024, Month: time.January},
	} {
		_, err := s.WriteMonthly(domain.MonthlyTable{Key: k, Samples: []domain.Sample{{Time: k.Start(), Value: 1}}})
		require.NoError(t, err)
	}
	_, err = s.WriteFull(r, nil)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "humidity_notes.csv"), nil, 0o644))

	refs, err := s.ListMonthly()
	require.NoError(t, err)
	require.Len(t, refs, 3)
	assert.Equal(t, "2023-11", refs[0].Key.String())
	assert.Equal(t, "2024-01", refs[1].Key.String())
	assert.Equal(t, "2024-02", refs[2].Key.String())
}

func TestStore_FullRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(filepath.Join(dir, "nested"), testVariable, "humidity")
	r, err := domain.ParseMonthRange("2022-01", "2025-05")
	require.NoError(t, err)

	samples := []domain.Sample{
		{Time: june2024, Lat: 10, Lon: 20, Value: 75.5},
		{Time: june2024.AddDate(0, 1, 0), Lat: 10, Lon: 20, Value: 70},
	}
	path, err := s.WriteFull(r, samples)
	require.NoError(t, err)
	assert.Equal(t, "RH2M_monthly_2022_2025.csv", filepath.Base(path))

	got, err := s.ReadFull(r)
	require.NoError(t, err)
	assert.Equal(t, samples, got)
}
