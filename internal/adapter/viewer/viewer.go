// Package viewer writes the static HTML page used to browse the served
// humidity layers.
package viewer

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// DefaultPrefix is the layer prefix the embedded page requests.
const DefaultPrefix = "humidity"

//go:embed viewer.html
var page []byte

var prefixDecl = []byte(`const layerPrefix = "` + DefaultPrefix + `";`)

// Page returns the viewer document for the default layer prefix.
func Page() []byte {
	return Render(DefaultPrefix)
}

// Render returns the viewer document requesting layers named
// <prefix>_<MM>_<YYYY>_land.
func Render(prefix string) []byte {
	decl := []byte("const layerPrefix = " + strconv.Quote(prefix) + ";")
	return bytes.Replace(page, prefixDecl, decl, 1)
}

// Emitter writes the viewer to a fixed path.
type Emitter struct {
	path   string
	prefix string
}

// NewEmitter returns an emitter writing a viewer for layers named with
// prefix to path. An empty prefix means DefaultPrefix.
func NewEmitter(path, prefix string) *Emitter {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Emitter{path: path, prefix: prefix}
}

// Path is the viewer file location.
func (e *Emitter) Path() string { return e.path }

// Emit writes the viewer, replacing any existing file.
func (e *Emitter) Emit() error {
	return Write(e.path, e.prefix)
}

// Write renders the viewer for prefix and writes it to path.
func Write(path, prefix string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create viewer dir: %w", err)
		}
	}
	if err := os.WriteFile(path, Render(prefix), 0o644); err != nil {
		return fmt.Errorf("write viewer %s: %w", path, err)
	}
	return nil
}
