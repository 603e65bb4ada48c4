// Package gridstore fetches a gridded dataset from a local path, an HTTP
// endpoint or a cloud bucket and decodes it into samples.
package gridstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/couchcryptid/humidity-tiles-etl/internal/domain"
)

// Decoder turns a downloaded file into a grid. Only timestamps inside r need
// to carry values.
type Decoder interface {
	Decode(path, variable string, r domain.MonthRange) (*domain.Grid, error)
}

// BucketOpener opens a gocloud bucket from its URL.
type BucketOpener func(ctx context.Context, bucketURL string) (*blob.Bucket, error)

// Fetcher reads one variable from one store URL.
type Fetcher struct {
	storeURL   string
	variable   string
	timeout    time.Duration
	decoder    Decoder
	httpClient *http.Client
	openBucket BucketOpener
	tempDir    string
	logger     *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithBucketOpener replaces blob.OpenBucket, e.g. with a memblob in tests.
func WithBucketOpener(o BucketOpener) Option {
	return func(f *Fetcher) { f.openBucket = o }
}

// WithHTTPClient replaces the HTTP client used for http(s) URLs.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.httpClient = c }
}

// WithTempDir sets where remote objects are staged before decoding.
func WithTempDir(dir string) Option {
	return func(f *Fetcher) { f.tempDir = dir }
}

// NewFetcher creates a Fetcher. timeout bounds each download.
func NewFetcher(storeURL, variable string, timeout time.Duration, decoder Decoder, logger *slog.Logger, opts ...Option) *Fetcher {
	f := &Fetcher{
		storeURL:   storeURL,
		variable:   variable,
		timeout:    timeout,
		decoder:    decoder,
		httpClient: &http.Client{Timeout: timeout},
		openBucket: blob.OpenBucket,
		logger:     logger,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Variable is the variable the fetcher reads.
func (f *Fetcher) Variable() string { return f.variable }

// Fetch returns every non-missing sample inside r. A store that cannot be
// read, or that has no timestamps inside r, yields domain.ErrDataSource.
func (f *Fetcher) Fetch(ctx context.Context, r domain.MonthRange) ([]domain.Sample, error) {
	local, cleanup, err := f.localize(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrDataSource, err)
	}
	defer cleanup()

	grid, err := f.decoder.Decode(local, f.variable, r)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", domain.ErrDataSource, f.variable, err)
	}
	if grid.TimesIn(r) == 0 {
		return nil, fmt.Errorf("%w: no %s timestamps in %s", domain.ErrDataSource, f.variable, r)
	}

	samples := grid.Samples(r)
	f.logger.Info("grid decoded",
		"variable", f.variable,
		"range", r.String(),
		"times", grid.TimesIn(r),
		"lats", len(grid.Lats),
		"lons", len(grid.Lons),
		"samples", len(samples),
	)
	return samples, nil
}

// localize makes the store object available as a local file. cleanup removes
// any staged copy.
func (f *Fetcher) localize(ctx context.Context) (string, func(), error) {
	noop := func() {}
	u, err := url.Parse(f.storeURL)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		if _, err := os.Stat(f.storeURL); err != nil {
			return "", noop, err
		}
		return f.storeURL, noop, nil
	}

	tmp, err := os.CreateTemp(f.tempDir, "grid-*"+path.Ext(u.Path))
	if err != nil {
		return "", noop, fmt.Errorf("stage download: %w", err)
	}
	cleanup := func() { os.Remove(tmp.Name()) }

	f.logger.Info("downloading grid", "store", redact(u), "dest", tmp.Name())
	switch u.Scheme {
	case "http", "https":
		err = f.download(ctx, tmp)
	default:
		err = f.copyBlob(ctx, u, tmp)
	}
	if cerr := tmp.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		cleanup()
		return "", noop, err
	}
	return tmp.Name(), cleanup, nil
}

func (f *Fetcher) download(ctx context.Context, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.storeURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("grid request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("grid store error: status %d: %s", resp.StatusCode, body)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("read grid body: %w", err)
	}
	return nil
}

func (f *Fetcher) copyBlob(ctx context.Context, u *url.URL, w io.Writer) error {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	bucketURL, key, err := SplitBlobURL(u)
	if err != nil {
		return err
	}
	bucket, err := f.openBucket(ctx, bucketURL)
	if err != nil {
		return fmt.Errorf("open bucket %s: %w", bucketURL, err)
	}
	defer bucket.Close()

	r, err := bucket.NewReader(ctx, key, nil)
	if err != nil {
		return fmt.Errorf("open object %s: %w", key, err)
	}
	defer r.Close()

	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("read object %s: %w", key, err)
	}
	return nil
}

// SplitBlobURL separates an object URL such as
// "s3://nasa-power/merra2/file.nc?region=us-west-2" into the bucket URL
// understood by blob.OpenBucket and the object key. S3 buckets are opened
// anonymously unless the URL says otherwise.
func SplitBlobURL(u *url.URL) (string, string, error) {
	q := u.Query()
	switch u.Scheme {
	case "file":
		p := u.Path
		if p == "" || strings.HasSuffix(p, "/") {
			return "", "", fmt.Errorf("file URL %q names no object", u.String())
		}
		dir := url.URL{Scheme: "file", Path: path.Dir(p), RawQuery: u.RawQuery}
		return dir.String(), path.Base(p), nil
	case "s3":
		if q.Get("anonymous") == "" {
			q.Set("anonymous", "true")
		}
	}

	key := strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", fmt.Errorf("store URL %q names no object", u.String())
	}
	bucket := url.URL{Scheme: u.Scheme, Host: u.Host, RawQuery: q.Encode()}
	return bucket.String(), key, nil
}

func redact(u *url.URL) string {
	c := *u
	c.User = nil
	return c.String()
}
