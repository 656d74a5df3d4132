// Package fetch downloads artifacts, verifies them against manifest hashes
// and keeps them in a content-addressed cache.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/conn-castle/shovel/internal/manifest"
	"github.com/conn-castle/shovel/internal/messages"
	"github.com/conn-castle/shovel/internal/telemetry"
)

// Recorder observes cache and download activity.
type Recorder interface {
	CacheHit()
	CacheMiss()
	BytesFetched(n int64)
}

type nopRecorder struct{}

func (nopRecorder) CacheHit()          {}
func (nopRecorder) CacheMiss()         {}
func (nopRecorder) BytesFetched(int64) {}

// Options configures a Fetcher.
type Options struct {
	Transport Transport
	Cache     *Cache
	// MaxBytes caps a single download. Zero means unlimited.
	MaxBytes int64
	// Timeout bounds a single download. Zero means no timeout.
	Timeout time.Duration
	// Offline serves only cached entries.
	Offline  bool
	Progress io.Writer
	Recorder Recorder
	Logger   *slog.Logger
}

// Result is a verified artifact.
type Result struct {
	Path   string
	Size   int64
	Cached bool
}

// Fetcher resolves (url, hash) pairs to verified cache entries. Concurrent
// fetches of one hash share a single download.
type Fetcher struct {
	opts  Options
	group singleflight.Group
}

// New returns a fetcher.
func New(opts Options) *Fetcher {
	if opts.Progress == nil {
		opts.Progress = io.Discard
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Fetcher{opts: opts}
}

// Cache returns the fetcher's cache.
func (f *Fetcher) Cache() *Cache {
	return f.opts.Cache
}

// Fetch returns the cache entry for h, downloading url when it is missing.
// Bytes that fail verification never enter the cache.
func (f *Fetcher) Fetch(ctx context.Context, url string, h manifest.Hash) (Result, error) {
	ch := f.group.DoChan(h.String(), func() (any, error) {
		return f.fetch(ctx, url, h)
	})
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Result{}, res.Err
		}
		return res.Val.(Result), nil
	}
}

// fetch runs under the context of the first caller for h.
func (f *Fetcher) fetch(ctx context.Context, url string, h manifest.Hash) (res Result, err error) {
	ctx, span := telemetry.Start(ctx, "fetch")
	defer func() { telemetry.End(span, err) }()

	cache := f.opts.Cache
	if cache.Has(h) {
		verr := cache.Verify(h)
		if verr == nil {
			f.opts.Recorder.CacheHit()
			entry := cache.Path(h)
			name, _ := manifest.FilenameFromURL(url)
			_, _ = fmt.Fprintf(f.opts.Progress, messages.FetchCachedFmt, name)
			return Result{Path: entry, Size: fileSize(entry), Cached: true}, nil
		}
		f.opts.Logger.Warn("discarding corrupt cache entry", "hash", h.String(), "err", verr)
		if err := cache.Remove(h); err != nil {
			return Result{}, err
		}
	}
	f.opts.Recorder.CacheMiss()
	if f.opts.Offline {
		return Result{}, &Error{Kind: KindOffline, URL: url, Expected: h.String()}
	}

	if f.opts.Timeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, f.opts.Timeout)
		defer cancelTimeout()
	}

	body, size, err := f.opts.Transport.Open(ctx, url)
	if err != nil {
		return Result{}, classify(url, err)
	}
	defer func() { _ = body.Close() }()
	if f.opts.MaxBytes > 0 && size > f.opts.MaxBytes {
		return Result{}, &Error{Kind: KindTooLarge, URL: url, Limit: f.opts.MaxBytes}
	}

	name, _ := manifest.FilenameFromURL(url)
	_, _ = fmt.Fprintf(f.opts.Progress, messages.FetchDownloadingFmt, name, HumanSize(size))
	f.opts.Logger.Debug("downloading", "url", url, "hash", h.String(), "size", size)

	reader := &countingReader{r: body, limit: f.opts.MaxBytes}
	entry, err := cache.Insert(ctx, h, url, reader)
	f.opts.Recorder.BytesFetched(reader.n)
	if err != nil {
		if errors.Is(err, errTooLarge) {
			return Result{}, &Error{Kind: KindTooLarge, URL: url, Limit: f.opts.MaxBytes}
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Result{}, &Error{Kind: KindTimeout, URL: url, Err: ctx.Err()}
		}
		return Result{}, classify(url, err)
	}
	return Result{Path: entry.Path, Size: entry.Size}, nil
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return -1
	}
	return info.Size()
}

var errTooLarge = errors.New("download exceeds size limit")

type countingReader struct {
	r     io.Reader
	n     int64
	limit int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	if c.limit > 0 && c.n > c.limit {
		return n, errTooLarge
	}
	return n, err
}

// HumanSize formats a byte count with binary units. Negative counts are unknown.
func HumanSize(n int64) string {
	if n < 0 {
		return "unknown size"
	}
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
