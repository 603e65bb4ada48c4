// Package tippecanoe turns monthly GeoJSON documents into MBTiles archives by
// invoking the tippecanoe command-line tool.
package tippecanoe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/couchcryptid/humidity-tiles-etl/internal/domain"
	"github.com/jonboulle/clockwork"
)

const ext = ".mbtiles"

// maxStderr bounds how much tool output is kept on a ToolError.
const maxStderr = 4096

// Runner executes a command and returns its captured stderr.
type Runner func(ctx context.Context, bin string, args []string) (stderr []byte, err error)

// Builder invokes tippecanoe once per monthly document.
type Builder struct {
	bin     string
	dir     string
	prefix  string
	timeout time.Duration
	run     Runner
	clock   clockwork.Clock
	logger  *slog.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithRunner replaces the process runner, e.g. with a fake in tests.
func WithRunner(r Runner) Option {
	return func(b *Builder) { b.run = r }
}

// WithClock sets the clock used to stamp built archives.
func WithClock(c clockwork.Clock) Option {
	return func(b *Builder) { b.clock = c }
}

// NewBuilder creates a Builder writing archives under dir. A zero timeout
// means invocations run until they exit or the context is cancelled.
func NewBuilder(bin, dir, prefix string, timeout time.Duration, logger *slog.Logger, opts ...Option) *Builder {
	b := &Builder{
		bin:     bin,
		dir:     dir,
		prefix:  prefix,
		timeout: timeout,
		run:     execRunner,
		clock:   clockwork.NewRealClock(),
		logger:  logger,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Dir is the archive directory.
func (b *Builder) Dir() string { return b.dir }

// Path is where the archive for month k is written.
func (b *Builder) Path(k domain.MonthKey) string {
	return filepath.Join(b.dir, domain.LayerName(b.prefix, k)+ext)
}

// Args is the tippecanoe argument list for one conversion: zoom 0-10, no
// feature or tile size limits, densest features dropped as needed, and any
// existing output overwritten.
func Args(src, dest string) []string {
	return []string{
		"-o", dest,
		"-z", "10",
		"-Z", "0",
		"--no-feature-limit",
		"--no-tile-size-limit",
		"-B0",
		"--drop-densest-as-needed",
		"--extend-zooms-if-still-dropping",
		"--force",
		src,
	}
}

// Build converts doc into an MBTiles archive. Success is a zero exit status;
// anything else is returned as a *domain.ToolError.
func (b *Builder) Build(ctx context.Context, doc domain.GeometryDoc) (domain.TileArchive, error) {
	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return domain.TileArchive{}, fmt.Errorf("create tiles dir: %w", err)
	}

	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	dest := b.Path(doc.Key)
	b.logger.Debug("running tile builder", "month", doc.Key.String(), "input", doc.Path, "output", dest)

	stderr, err := b.run(ctx, b.bin, Args(doc.Path, dest))
	if err != nil {
		return domain.TileArchive{}, toolError(b.bin, doc.Path, stderr, err)
	}

	return domain.TileArchive{
		Key:     doc.Key,
		Layer:   domain.LayerName(b.prefix, doc.Key),
		Path:    dest,
		BuiltAt: b.clock.Now(),
	}, nil
}

// List finds archives already present in dir, ascending by month. Files that
// do not follow the layer naming scheme are ignored.
func (b *Builder) List() ([]domain.TileArchive, error) {
	return List(b.dir, b.prefix)
}

// List finds archives for prefix under dir, ascending by month. BuiltAt is
// the archive's modification time.
func List(dir, prefix string) ([]domain.TileArchive, error) {
	matches, err := filepath.Glob(filepath.Join(dir, prefix+"_*_land"+ext))
	if err != nil {
		return nil, err
	}
	var out []domain.TileArchive
	for _, m := range matches {
		layer := strings.TrimSuffix(filepath.Base(m), ext)
		p, key, err := domain.ParseName(layer)
		if err != nil || p != prefix {
			continue
		}
		info, err := os.Stat(m)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", m, err)
		}
		out = append(out, domain.TileArchive{Key: key, Layer: layer, Path: m, BuiltAt: info.ModTime().UTC()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.Before(out[j].Key) })
	return out, nil
}

func toolError(bin, input string, stderr []byte, err error) *domain.ToolError {
	te := &domain.ToolError{
		Tool:     filepath.Base(bin),
		Input:    input,
		ExitCode: -1,
		Stderr:   truncate(strings.TrimSpace(string(stderr)), maxStderr),
		Err:      err,
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
		te.ExitCode = exitErr.ExitCode()
	}
	return te
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func execRunner(ctx context.Context, bin string, args []string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stderr.Bytes(), err
}
