package viewer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPage_Contents(t *testing.T) {
	p := string(Page())
	assert.Contains(t, p, "<!DOCTYPE html>")
	assert.Contains(t, p, "mapbox-gl.js")
	assert.Contains(t, p, `id="yearSelect"`)
	assert.Contains(t, p, `id="monthSelect"`)
	assert.Contains(t, p, `const layerPrefix = "humidity";`)
	assert.Contains(t, p, "${layerPrefix}_${month}_${year}_land")
	assert.Contains(t, p, "http://localhost:8080")
	assert.Contains(t, p, "/data/${layer}/{z}/{x}/{y}.png")
}

func TestEmitter_Write(t *testing.T) {
	path := filepath.Join(t.TempDir(), "site", "humidity-viewer.html")
	e := NewEmitter(path, "")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))

	require.NoError(t, e.Emit())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, Page(), got)
}

func TestPage_ReturnsCopy(t *testing.T) {
	p := Page()
	p[0] = 'x'
	assert.Equal(t, byte('<'), Page()[0])
}

func TestEmitter_CustomPrefix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "viewer.html")
	require.NoError(t, NewEmitter(path, "rh2m").Emit())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(got), `const layerPrefix = "rh2m";`)
	assert.NotContains(t, string(got), `const layerPrefix = "humidity";`)
}

func TestRender_QuotesPrefix(t *testing.T) {
	p := string(Render(`a"b`))
	assert.Contains(t, p, `const layerPrefix = "a\"b";`)
}
