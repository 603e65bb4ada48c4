// Package geojson writes monthly grid cells as GeoJSON feature collections.
package geojson

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/couchcryptid/humidity-tiles-etl/internal/domain"
	"github.com/paulmach/orb/geojson"
)

const ext = ".geojson"

// Writer stores one FeatureCollection per month under dir.
type Writer struct {
	dir    string
	prefix string
}

// NewWriter creates a Writer. prefix names both the files and the value property.
func NewWriter(dir, prefix string) *Writer {
	return &Writer{dir: dir, prefix: prefix}
}

// Path is where the document for month k is written.
func (w *Writer) Path(k domain.MonthKey) string {
	return filepath.Join(w.dir, domain.LayerName(w.prefix, k)+ext)
}

// Write serializes cells for month k.
func (w *Writer) Write(k domain.MonthKey, cells []domain.GridCell) (domain.GeometryDoc, error) {
	data, err := Marshal(w.prefix, cells)
	if err != nil {
		return domain.GeometryDoc{}, fmt.Errorf("marshal %s: %w", k, err)
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return domain.GeometryDoc{}, fmt.Errorf("create geometry dir: %w", err)
	}
	path := w.Path(k)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return domain.GeometryDoc{}, fmt.Errorf("write %s: %w", path, err)
	}
	return domain.GeometryDoc{Key: k, Path: path, Cells: len(cells)}, nil
}

// Remove deletes the document for month k if there is one.
func (w *Writer) Remove(k domain.MonthKey) error {
	path := w.Path(k)
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

// List finds written documents, ascending by month.
func (w *Writer) List() ([]domain.GeometryDoc, error) {
	matches, err := filepath.Glob(filepath.Join(w.dir, w.prefix+"_*_land"+ext))
	if err != nil {
		return nil, err
	}
	docs := make([]domain.GeometryDoc, 0, len(matches))
	for _, m := range matches {
		prefix, key, err := domain.ParseName(strings.TrimSuffix(filepath.Base(m), ext))
		if err != nil || prefix != w.prefix {
			continue
		}
		docs = append(docs, domain.GeometryDoc{Key: key, Path: m})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Key.Before(docs[j].Key) })
	return docs, nil
}

// Marshal encodes cells as a FeatureCollection. Each feature carries the
// value under valueProp plus time, lat and lon.
func Marshal(valueProp string, cells []domain.GridCell) ([]byte, error) {
	fc := geojson.NewFeatureCollection()
	for _, c := range cells {
		f := geojson.NewFeature(c.Polygon)
		f.Properties[valueProp] = c.Value
		f.Properties["time"] = c.Time.UTC().Format("2006-01-02")
		f.Properties["lat"] = c.Lat
		f.Properties["lon"] = c.Lon
		fc.Append(f)
	}
	return fc.MarshalJSON()
}

// Read loads a document written by Write.
func Read(path string) (*geojson.FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return fc, nil
}
