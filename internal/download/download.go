// Package download fetches installer artifacts from vetted HTTP(S) hosts or
// local paths into the artifact cache.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Cornman92/Better11-sub004/internal/domain/app"
	"github.com/Cornman92/Better11-sub004/internal/logger"
	"github.com/Cornman92/Better11-sub004/internal/ports"
)

const (
	// ChunkSize is the buffer size used when streaming artifacts to disk.
	ChunkSize = 32 * 1024
	// DefaultTimeout bounds a single HTTP attempt including the body transfer.
	DefaultTimeout = 10 * time.Minute

	partSuffix = ".part"
)

// Downloader resolves catalog URIs to files under its cache directory.
type Downloader struct {
	cacheDir   string
	sourceRoot string
	client     *resty.Client
	policy     RetryPolicy
	logger     ports.Logger
}

// Option customises a Downloader.
type Option func(*Downloader)

// WithSourceRoot sets the directory relative local paths are resolved against.
func WithSourceRoot(root string) Option {
	return func(d *Downloader) { d.sourceRoot = root }
}

// WithRetryPolicy overrides DefaultRetryPolicy.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(d *Downloader) { d.policy = policy }
}

// WithClient replaces the HTTP client.
func WithClient(client *resty.Client) Option {
	return func(d *Downloader) {
		if client != nil {
			d.client = client
		}
	}
}

// WithTimeout sets the per-attempt HTTP timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Downloader) {
		if timeout > 0 {
			d.client.SetTimeout(timeout)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l ports.Logger) Option {
	return func(d *Downloader) {
		if l != nil {
			d.logger = l
		}
	}
}

// New constructs a Downloader that stores artifacts in cacheDir.
func New(cacheDir string, opts ...Option) *Downloader {
	d := &Downloader{
		cacheDir: cacheDir,
		client:   resty.New().SetTimeout(DefaultTimeout),
		policy:   DefaultRetryPolicy(),
		logger:   logger.NewNoOp(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "downloader")
	return d
}

// Destination returns the deterministic cache path for meta's artifact.
func (d *Downloader) Destination(meta app.Metadata) string {
	return filepath.Join(d.cacheDir, meta.ArtifactName())
}

// Fetch materialises meta's artifact at dest, or at Destination(meta) when
// dest is empty, and returns the path written.
func (d *Downloader) Fetch(ctx context.Context, meta app.Metadata, dest string, opts ports.FetchOptions) (string, error) {
	if dest == "" {
		dest = d.Destination(meta)
	}

	src, classifyErr := classify(meta.URI)
	if classifyErr != nil {
		return "", classifyErr.WithContext(map[string]interface{}{"app_id": meta.ID})
	}
	if src.kind == sourceHTTP && !hostVetted(src.url.Hostname(), meta.VettedDomains) {
		return "", app.NewError(app.ErrCodeHostNotVetted,
			fmt.Sprintf("host %q is not in the vetted domains for %s", src.url.Hostname(), meta.ID),
			nil,
			map[string]interface{}{"app_id": meta.ID, "host": src.url.Hostname()},
		)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", app.NewError(app.ErrCodeDownload, "create destination directory", err, map[string]interface{}{"path": dest})
	}

	start := time.Now()
	var err error
	switch src.kind {
	case sourceHTTP:
		err = retry(ctx, d.policy, d.observer(ctx, meta, opts.OnRetry), func(attempt int) error {
			d.logger.Debug(ctx, "fetching artifact", "app_id", meta.ID, "url", meta.URI, "attempt", attempt)
			return d.fetchHTTP(ctx, src.url.String(), dest, opts.Progress)
		})
	case sourceLocal:
		err = unwrapPermanent(d.copyLocal(ctx, src.path, dest, opts.Progress))
	}
	if err != nil {
		return "", withAppID(err, meta.ID)
	}

	d.logger.Info(ctx, "artifact ready", "app_id", meta.ID, "path", dest, "duration_ms", time.Since(start).Milliseconds())
	return dest, nil
}

func (d *Downloader) observer(ctx context.Context, meta app.Metadata, next ports.RetryObserver) ports.RetryObserver {
	return func(attempt int, delay time.Duration, err error) {
		d.logger.Warn(ctx, "download attempt failed, retrying",
			"app_id", meta.ID,
			"attempt", attempt,
			"max_attempts", d.policy.normalized().MaxAttempts,
			"retry_delay", delay,
			"error", err,
		)
		if next != nil {
			next(attempt, delay, err)
		}
	}
}

func (d *Downloader) fetchHTTP(ctx context.Context, rawURL, dest string, progress func(int64, int64)) error {
	resp, err := d.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(rawURL)
	if err != nil {
		if ctx.Err() != nil {
			return cancelled(ctx.Err())
		}
		return app.NewError(app.ErrCodeDownload, "request failed", err, map[string]interface{}{"url": rawURL})
	}
	body := resp.RawBody()
	defer body.Close()

	status := resp.StatusCode()
	if status < 200 || status > 299 {
		statusErr := app.NewError(app.ErrCodeDownload,
			fmt.Sprintf("unexpected HTTP status %d", status),
			nil,
			map[string]interface{}{"url": rawURL, "status": status},
		)
		if retryableStatus(status) {
			return statusErr
		}
		return permanent(statusErr)
	}

	var total int64
	if resp.RawResponse != nil && resp.RawResponse.ContentLength > 0 {
		total = resp.RawResponse.ContentLength
	}
	return writeAtomic(ctx, body, dest, total, progress)
}

func (d *Downloader) copyLocal(ctx context.Context, path, dest string, progress func(int64, int64)) error {
	if !filepath.IsAbs(path) {
		root := d.sourceRoot
		if root == "" {
			root = "."
		}
		path = filepath.Join(root, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return app.NewError(app.ErrCodeDownload, "resolve local source", err, map[string]interface{}{"path": path})
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return app.NewError(app.ErrCodeDownload,
			fmt.Sprintf("local source %s does not exist", abs), err,
			map[string]interface{}{"path": abs},
		)
	}

	if destAbs, err := filepath.Abs(dest); err == nil {
		if destResolved, err := filepath.EvalSymlinks(destAbs); err == nil && destResolved == resolved {
			return nil
		}
	}

	src, err := os.Open(resolved)
	if err != nil {
		return app.NewError(app.ErrCodeDownload, "open local source", err, map[string]interface{}{"path": resolved})
	}
	defer src.Close()

	var total int64
	if info, err := src.Stat(); err == nil {
		if info.IsDir() {
			return app.NewError(app.ErrCodeDownload, fmt.Sprintf("local source %s is a directory", resolved), nil, nil)
		}
		total = info.Size()
	}
	return writeAtomic(ctx, src, dest, total, progress)
}

// writeAtomic streams r into dest through a temporary sibling file, checking
// ctx between chunks.
func writeAtomic(ctx context.Context, r io.Reader, dest string, total int64, progress func(int64, int64)) error {
	tmp := dest + partSuffix
	out, err := os.Create(tmp)
	if err != nil {
		return app.NewError(app.ErrCodeDownload, "create temporary file", err, map[string]interface{}{"path": tmp})
	}

	written, copyErr := copyChunks(ctx, out, r, total, progress)
	closeErr := out.Close()
	if copyErr == nil && closeErr != nil {
		copyErr = app.NewError(app.ErrCodeDownload, "close temporary file", closeErr, map[string]interface{}{"path": tmp})
	}
	if copyErr != nil {
		_ = os.Remove(tmp)
		return copyErr
	}
	if total > 0 && written != total {
		_ = os.Remove(tmp)
		return app.NewError(app.ErrCodeDownload,
			fmt.Sprintf("short transfer: got %d of %d bytes", written, total), nil,
			map[string]interface{}{"path": dest},
		)
	}

	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return app.NewError(app.ErrCodeDownload, "move artifact into place", err, map[string]interface{}{"path": dest})
	}
	return nil
}

func copyChunks(ctx context.Context, w io.Writer, r io.Reader, total int64, progress func(int64, int64)) (int64, error) {
	buf := make([]byte, ChunkSize)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, cancelled(err)
		}
		n, readErr := r.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				return written, permanent(app.NewError(app.ErrCodeDownload, "write artifact", err, nil))
			}
			written += int64(n)
			if progress != nil {
				progress(written, total)
			}
		}
		if errors.Is(readErr, io.EOF) {
			return written, nil
		}
		if readErr != nil {
			if ctx.Err() != nil {
				return written, cancelled(ctx.Err())
			}
			return written, app.NewError(app.ErrCodeDownload, "read artifact", readErr, nil)
		}
	}
}

type sourceKind int

const (
	sourceHTTP sourceKind = iota
	sourceLocal
)

type source struct {
	kind sourceKind
	url  *url.URL
	path string
}

// classify decides how a catalog URI is fetched. Single-letter schemes are
// Windows drive letters.
func classify(raw string) (source, *app.DomainError) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		if isDrivePath(raw) {
			return source{kind: sourceLocal, path: raw}, nil
		}
		return source{}, app.NewError(app.ErrCodeUnsupportedScheme, fmt.Sprintf("cannot parse URI %q", raw), err, nil)
	}

	switch scheme := strings.ToLower(u.Scheme); {
	case scheme == "http" || scheme == "https":
		if u.Host == "" {
			return source{}, app.NewError(app.ErrCodeDownload, fmt.Sprintf("URI %q has no host", raw), nil, nil)
		}
		return source{kind: sourceHTTP, url: u}, nil
	case scheme == "file":
		p := u.Path
		if isDrivePath(strings.TrimPrefix(p, "/")) {
			p = strings.TrimPrefix(p, "/")
		}
		return source{kind: sourceLocal, path: filepath.FromSlash(p)}, nil
	case scheme == "" || len(scheme) == 1:
		return source{kind: sourceLocal, path: raw}, nil
	default:
		return source{}, app.NewError(app.ErrCodeUnsupportedScheme,
			fmt.Sprintf("unsupported URI scheme %q", u.Scheme), nil,
			map[string]interface{}{"uri": raw},
		)
	}
}

func isDrivePath(p string) bool {
	if len(p) < 2 || p[1] != ':' {
		return false
	}
	c := p[0]
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func hostVetted(host string, vetted []string) bool {
	for _, domain := range vetted {
		if strings.EqualFold(strings.TrimSpace(domain), host) {
			return true
		}
	}
	return false
}

func retryableStatus(status int) bool {
	return status >= 500 || status == http.StatusRequestTimeout || status == http.StatusTooManyRequests
}

func withAppID(err error, appID string) error {
	var de *app.DomainError
	if errors.As(err, &de) && de.Context["app_id"] == nil {
		return de.WithContext(map[string]interface{}{"app_id": appID})
	}
	return err
}

var _ ports.Downloader = (*Downloader)(nil)
