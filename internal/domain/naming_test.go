package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNames(t *testing.T) {
	k := MonthKey{Year: 2024, Month: time.June}
	assert.Equal(t, "humidity_06_2024", TableName("humidity", k))
	assert.Equal(t, "humidity_06_2024_land", LayerName("humidity", k))

	r, err := ParseMonthRange("2022-01", "2025-05")
	require.NoError(t, err)
	assert.Equal(t, "RH2M_monthly_2022_2025", FullTableName("RH2M", r))
}

func TestParseName(t *testing.T) {
	cases := []struct {
		in     string
		prefix string
		key    MonthKey
	}{
		{"humidity_06_2024", "humidity", MonthKey{Year: 2024, Month: time.June}},
		{"humidity_12_2023_land", "humidity", MonthKey{Year: 2023, Month: time.December}},
		{"rel_humidity_01_2025_land", "rel_humidity", MonthKey{Year: 2025, Month: time.January}},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			prefix, key, err := ParseName(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.prefix, prefix)
			assert.Equal(t, tc.key, key)
		})
	}

	for _, bad := range []string{"humidity", "humidity_6_2024", "humidity_13_2024"} {
		_, _, err := ParseName(bad)
		assert.Error(t, err, bad)
	}
}
