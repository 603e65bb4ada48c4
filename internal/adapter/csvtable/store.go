// Package csvtable persists sample tables as CSV files with the columns
// time,lat,lon,<variable>.
package csvtable

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/humidity-tiles-etl/internal/domain"
)

const dateLayout = "2006-01-02"

// timeLayouts are accepted when reading; tables written elsewhere may carry
// full timestamps.
var timeLayouts = []string{dateLayout, time.RFC3339, "2006-01-02 15:04:05"}

// Store reads and writes the full-range and monthly tables under one directory.
type Store struct {
	dir      string
	variable string
	prefix   string
}

// NewStore creates a Store rooted at dir. variable names the value column and
// prefix the monthly file names.
func NewStore(dir, variable, prefix string) *Store {
	return &Store{dir: dir, variable: variable, prefix: prefix}
}

// Dir returns the directory the store writes to.
func (s *Store) Dir() string { return s.dir }

// FullPath is the location of the full-range table for r.
func (s *Store) FullPath(r domain.MonthRange) string {
	return filepath.Join(s.dir, domain.FullTableName(s.variable, r)+".csv")
}

// WriteFull persists the whole fetched table.
func (s *Store) WriteFull(r domain.MonthRange, samples []domain.Sample) (string, error) {
	path := s.FullPath(r)
	return path, s.writeFile(path, samples)
}

// ReadFull loads the full-range table written by WriteFull.
func (s *Store) ReadFull(r domain.MonthRange) ([]domain.Sample, error) {
	return s.readFile(s.FullPath(r))
}

// WriteMonthly persists one monthly table and returns its reference.
func (s *Store) WriteMonthly(t domain.MonthlyTable) (domain.TableRef, error) {
	path := filepath.Join(s.dir, domain.TableName(s.prefix, t.Key)+".csv")
	if err := s.writeFile(path, t.Samples); err != nil {
		return domain.TableRef{}, err
	}
	return domain.TableRef{Key: t.Key, Path: path}, nil
}

// ReadMonthly loads a monthly table.
func (s *Store) ReadMonthly(ref domain.TableRef) (domain.MonthlyTable, error) {
	samples, err := s.readFile(ref.Path)
	if err != nil {
		return domain.MonthlyTable{}, err
	}
	return domain.MonthlyTable{Key: ref.Key, Samples: samples}, nil
}

// ListMonthly finds the monthly tables in the store directory, ascending by month.
func (s *Store) ListMonthly() ([]domain.TableRef, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, s.prefix+"_*.csv"))
	if err != nil {
		return nil, err
	}
	refs := make([]domain.TableRef, 0, len(matches))
	for _, m := range matches {
		prefix, key, err := domain.ParseName(strings.TrimSuffix(filepath.Base(m), ".csv"))
		if err != nil || prefix != s.prefix {
			continue
		}
		refs = append(refs, domain.TableRef{Key: key, Path: m})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Key.Before(refs[j].Key) })
	return refs, nil
}

func (s *Store) writeFile(path string, samples []domain.Sample) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create table dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	if err := Write(bw, s.variable, samples); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func (s *Store) readFile(path string) ([]domain.Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open table: %w", err)
	}
	defer f.Close()

	samples, err := Read(bufio.NewReader(f), s.variable)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return samples, nil
}

// Write encodes samples as CSV with a header row. Missing samples are skipped.
func Write(w io.Writer, variable string, samples []domain.Sample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"time", "lat", "lon", variable}); err != nil {
		return err
	}
	for _, smp := range samples {
		if smp.Missing() {
			continue
		}
		rec := []string{
			smp.Time.UTC().Format(dateLayout),
			formatFloat(smp.Lat),
			formatFloat(smp.Lon),
			formatFloat(smp.Value),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Read decodes a CSV table. Columns are located by header name; rows with an
// empty or NaN value are dropped.
func Read(r io.Reader, variable string) ([]domain.Sample, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	colIdx := map[string]int{}
	for i, h := range header {
		colIdx[strings.TrimSpace(h)] = i
	}
	cols := make([]int, 0, 4)
	for _, name := range []string{"time", "lat", "lon", variable} {
		i, ok := colIdx[name]
		if !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
		cols = append(cols, i)
	}

	var out []domain.Sample
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		raw := strings.TrimSpace(rec[cols[3]])
		if raw == "" {
			continue
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: value: %w", line, err)
		}
		if math.IsNaN(value) {
			continue
		}
		ts, err := parseTime(rec[cols[0]])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(rec[cols[1]]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: lat: %w", line, err)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(rec[cols[2]]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: lon: %w", line, err)
		}
		out = append(out, domain.Sample{Time: ts, Lat: lat, Lon: lon, Value: value})
	}
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
