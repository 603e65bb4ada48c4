// Package tileserver emits the tileserver-gl configuration that serves the
// built MBTiles archives.
package tileserver

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/couchcryptid/humidity-tiles-etl/internal/domain"
)

// Config mirrors the subset of the tileserver-gl configuration file that the
// pipeline writes.
type Config struct {
	Options Options         `json:"options"`
	Data    map[string]Data `json:"data"`
}

type Options struct {
	Paths           Paths         `json:"paths"`
	ServeStaticMaps bool          `json:"serveStaticMaps"`
	FormatQuality   FormatQuality `json:"formatQuality"`
	MaxSize         int           `json:"maxSize"`
	PbfAlias        string        `json:"pbfAlias"`
}

type Paths struct {
	Root    string `json:"root"`
	MBTiles string `json:"mbtiles"`
}

type FormatQuality struct {
	JPEG int `json:"jpeg"`
	WebP int `json:"webp"`
}

// Data is one served layer.
type Data struct {
	MBTiles string `json:"mbtiles"`
}

// Build derives a Config from the archive paths found in mbtilesDir. Each
// layer is named after its archive file minus the ".mbtiles" extension. Two
// archives resolving to the same layer are an error.
func Build(mbtilesDir string, archives []string) (Config, error) {
	cfg := Config{
		Options: Options{
			Paths: Paths{
				Root:    "",
				MBTiles: mbtilesPath(mbtilesDir),
			},
			ServeStaticMaps: true,
			FormatQuality:   FormatQuality{JPEG: 90, WebP: 90},
			MaxSize:         8192,
			PbfAlias:        "pbf",
		},
		Data: make(map[string]Data, len(archives)),
	}
	for _, a := range archives {
		base := filepath.Base(a)
		layer := strings.TrimSuffix(base, ".mbtiles")
		if _, dup := cfg.Data[layer]; dup {
			return Config{}, fmt.Errorf("duplicate layer %q", layer)
		}
		cfg.Data[layer] = Data{MBTiles: base}
	}
	return cfg, nil
}

// Layers returns the configured layer names in sorted order.
func (c Config) Layers() []string {
	out := make([]string, 0, len(c.Data))
	for k := range c.Data {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Marshal renders cfg as 2-space indented JSON.
func Marshal(cfg Config) ([]byte, error) {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Write builds the config for archives and writes it to path.
func Write(path, mbtilesDir string, archives []string) (Config, error) {
	cfg, err := Build(mbtilesDir, archives)
	if err != nil {
		return Config{}, err
	}
	data, err := Marshal(cfg)
	if err != nil {
		return Config{}, fmt.Errorf("marshal tileserver config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Config{}, fmt.Errorf("create config dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return Config{}, fmt.Errorf("write %s: %w", path, err)
	}
	return cfg, nil
}

// Read loads a config written by Write.
func Read(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return cfg, nil
}

// Emitter writes the config file for a fixed output location.
type Emitter struct {
	path       string
	mbtilesDir string
}

// NewEmitter creates an Emitter writing to path and pointing tileserver-gl at mbtilesDir.
func NewEmitter(path, mbtilesDir string) *Emitter {
	return &Emitter{path: path, mbtilesDir: mbtilesDir}
}

// Path is the config file location.
func (e *Emitter) Path() string { return e.path }

// Emit writes the config for the given archives and returns the layer names.
func (e *Emitter) Emit(archives []domain.TileArchive) ([]string, error) {
	paths := make([]string, 0, len(archives))
	for _, a := range archives {
		paths = append(paths, a.Path)
	}
	cfg, err := Write(e.path, e.mbtilesDir, paths)
	if err != nil {
		return nil, err
	}
	return cfg.Layers(), nil
}

func mbtilesPath(dir string) string {
	if filepath.IsAbs(dir) || strings.HasPrefix(dir, "./") || strings.HasPrefix(dir, "../") {
		return dir
	}
	return "./" + dir
}
