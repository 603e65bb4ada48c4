package domain

import (
	"fmt"
	"math"
	"time"
)

// Sample is one grid reading: a monthly value at a latitude/longitude.
type Sample struct {
	Time  time.Time
	Lat   float64
	Lon   float64
	Value float64
}

// Missing reports whether the sample carries no value.
func (s Sample) Missing() bool {
	return math.IsNaN(s.Value)
}

// Month returns the calendar month the sample belongs to.
func (s Sample) Month() MonthKey {
	return MonthOf(s.Time)
}

// MonthKey identifies a calendar month.
type MonthKey struct {
	Year  int
	Month time.Month
}

// MonthOf returns the month key of t in UTC.
func MonthOf(t time.Time) MonthKey {
	t = t.UTC()
	return MonthKey{Year: t.Year(), Month: t.Month()}
}

// ParseMonth parses a "YYYY-MM" month key.
func ParseMonth(s string) (MonthKey, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return MonthKey{}, fmt.Errorf("parse month %q: %w", s, err)
	}
	return MonthOf(t), nil
}

// Start returns the first instant of the month in UTC.
func (k MonthKey) Start() time.Time {
	return time.Date(k.Year, k.Month, 1, 0, 0, 0, 0, time.UTC)
}

// Before reports whether k is strictly earlier than other.
func (k MonthKey) Before(other MonthKey) bool {
	if k.Year != other.Year {
		return k.Year < other.Year
	}
	return k.Month < other.Month
}

// String formats the key as "YYYY-MM".
func (k MonthKey) String() string {
	return fmt.Sprintf("%04d-%02d", k.Year, int(k.Month))
}

// MonthRange is an inclusive range of months.
type MonthRange struct {
	Start MonthKey
	End   MonthKey
}

// ParseMonthRange parses two "YYYY-MM" bounds and checks their order.
func ParseMonthRange(start, end string) (MonthRange, error) {
	s, err := ParseMonth(start)
	if err != nil {
		return MonthRange{}, err
	}
	e, err := ParseMonth(end)
	if err != nil {
		return MonthRange{}, err
	}
	if e.Before(s) {
		return MonthRange{}, fmt.Errorf("month range %s..%s is reversed", s, e)
	}
	return MonthRange{Start: s, End: e}, nil
}

// Contains reports whether t falls in the range.
func (r MonthRange) Contains(t time.Time) bool {
	k := MonthOf(t)
	return !k.Before(r.Start) && !r.End.Before(k)
}

func (r MonthRange) String() string {
	return r.Start.String() + ".." + r.End.String()
}

// Grid is a decoded [time][lat][lon] array for one variable. Missing cells
// hold NaN.
type Grid struct {
	Variable string
	Times    []time.Time
	Lats     []float64
	Lons     []float64
	Values   [][][]float64
}

// TimesIn counts the grid timestamps that fall inside r.
func (g *Grid) TimesIn(r MonthRange) int {
	n := 0
	for _, t := range g.Times {
		if r.Contains(t) {
			n++
		}
	}
	return n
}

// Samples flattens the grid into samples inside r, dropping missing values.
// Rows are ordered by time, then latitude index, then longitude index.
func (g *Grid) Samples(r MonthRange) []Sample {
	var out []Sample
	for ti, t := range g.Times {
		if !r.Contains(t) || ti >= len(g.Values) {
			continue
		}
		stamp := MonthOf(t).Start()
		for i, lat := range g.Lats {
			if i >= len(g.Values[ti]) {
				break
			}
			row := g.Values[ti][i]
			for j, lon := range g.Lons {
				if j >= len(row) || math.IsNaN(row[j]) {
					continue
				}
				out = append(out, Sample{Time: stamp, Lat: lat, Lon: lon, Value: row[j]})
			}
		}
	}
	return out
}
