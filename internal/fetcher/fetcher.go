// Package fetcher downloads dataset archives to a local work directory.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/sgcarstrends/sgcarstrends-sub001/internal/logger"
	"github.com/sgcarstrends/sgcarstrends-sub001/internal/ratelimit"
)

const defaultUserAgent = "sgcarstrends-updater"

// ObjectGetter is the part of the S3 API used for s3:// sources.
type ObjectGetter interface {
	GetObjectWithContext(ctx aws.Context, input *s3.GetObjectInput, opts ...request.Option) (*s3.GetObjectOutput, error)
}

// Fetcher downloads http(s):// and s3:// resources. Files are written to
// the work directory under a stable name, so every run overwrites the
// previous download instead of accumulating temp files.
type Fetcher struct {
	client  *resty.Client
	s3      ObjectGetter
	workDir string
	limits  ratelimit.HostConfigs
	log     zerolog.Logger

	mu       sync.Mutex
	limiters map[string]ratelimit.Limiter
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeout bounds each HTTP attempt.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) { f.client.SetTimeout(d) }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		if ua != "" {
			f.client.SetHeader("User-Agent", ua)
		}
	}
}

// WithHTTPClient replaces the underlying transport, mostly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = resty.NewWithClient(c).SetHeader("User-Agent", defaultUserAgent) }
}

// WithS3 enables s3://bucket/key sources.
func WithS3(getter ObjectGetter) Option {
	return func(f *Fetcher) { f.s3 = getter }
}

// WithLimits sets per-host pacing and retry settings.
func WithLimits(limits ratelimit.HostConfigs) Option {
	return func(f *Fetcher) { f.limits = limits }
}

// New creates a fetcher writing into workDir.
func New(workDir string, opts ...Option) *Fetcher {
	f := &Fetcher{
		client:   resty.New().SetHeader("User-Agent", defaultUserAgent).SetTimeout(60 * time.Second),
		workDir:  workDir,
		limits:   ratelimit.HostConfigs{Fallback: ratelimit.DefaultConfig()},
		log:      logger.Get().With().Str("component", "fetcher").Logger(),
		limiters: make(map[string]ratelimit.Limiter),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Download fetches rawURL into a fresh directory under workDir and returns
// the local path. An empty filename uses the last segment of the URL path.
// Concurrent calls never share a file; Release removes it once read.
func (f *Fetcher) Download(ctx context.Context, rawURL, filename string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", &DownloadError{URL: rawURL, Err: fmt.Errorf("parse url: %w", err)}
	}

	if filename == "" {
		filename = path.Base(u.Path)
	}
	filename = filepath.Base(filename)
	if filename == "." || filename == "/" || filename == "" {
		filename = "download"
	}

	dir, err := f.runDir(filename)
	if err != nil {
		return "", &DownloadError{URL: rawURL, Err: err}
	}
	dest := filepath.Join(dir, filename)

	cfg := f.limits.For(u.Host)
	limiter := f.limiterFor(u.Host, cfg)

	err = ratelimit.Retry(ctx, limiter, cfg.MaxRetries, func(attempt int) error {
		if attempt > 0 {
			f.log.Warn().Str("url", rawURL).Int("attempt", attempt).Msg("Retrying download")
		}
		switch u.Scheme {
		case "http", "https":
			return f.fetchHTTP(ctx, rawURL, dest)
		case "s3":
			return f.fetchS3(ctx, u, dest)
		default:
			return ratelimit.Permanent(fmt.Errorf("unsupported scheme %q", u.Scheme))
		}
	})
	if err != nil {
		_ = os.RemoveAll(dir)
		var dlErr *DownloadError
		if errors.As(err, &dlErr) {
			return "", dlErr
		}
		return "", &DownloadError{URL: rawURL, Err: err}
	}

	f.log.Debug().Str("url", rawURL).Str("path", dest).Msg("Downloaded source")
	return dest, nil
}

// FetchAndExtract downloads a zip archive and extracts its files beside it,
// returning entry file name to local path.
func (f *Fetcher) FetchAndExtract(ctx context.Context, rawURL string) (map[string]string, error) {
	archive, err := f.Download(ctx, rawURL, "")
	if err != nil {
		return nil, err
	}

	stem := strings.TrimSuffix(filepath.Base(archive), filepath.Ext(archive))
	entries, err := Extract(archive, filepath.Join(filepath.Dir(archive), stem))
	if err != nil {
		_ = f.Release(archive)
		return nil, &DownloadError{URL: rawURL, Err: err}
	}
	return entries, nil
}

// Release removes the per-call directory holding path, as returned by
// Download or FetchAndExtract. Paths outside workDir are left alone.
func (f *Fetcher) Release(p string) error {
	dir := filepath.Dir(p)
	for filepath.Dir(dir) != filepath.Clean(f.workDir) {
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil
		}
		dir = parent
	}
	return os.RemoveAll(dir)
}

func (f *Fetcher) runDir(name string) (string, error) {
	if err := os.MkdirAll(f.workDir, 0o755); err != nil {
		return "", fmt.Errorf("create work dir: %w", err)
	}
	dir, err := os.MkdirTemp(f.workDir, strings.TrimSuffix(name, filepath.Ext(name))+"-*")
	if err != nil {
		return "", fmt.Errorf("create run dir: %w", err)
	}
	return dir, nil
}

func (f *Fetcher) fetchHTTP(ctx context.Context, rawURL, dest string) error {
	resp, err := f.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(rawURL)
	if err != nil {
		if ctx.Err() != nil {
			return ratelimit.Permanent(err)
		}
		return err
	}
	body := resp.RawBody()
	defer func() {
		_ = body.Close()
	}()

	if code := resp.StatusCode(); code < 200 || code >= 300 {
		dlErr := &DownloadError{URL: rawURL, StatusCode: code, Err: errors.New(http.StatusText(code))}
		if code >= 500 || code == http.StatusTooManyRequests {
			return dlErr
		}
		return ratelimit.Permanent(dlErr)
	}
	return writeAtomic(dest, body)
}

func (f *Fetcher) fetchS3(ctx context.Context, u *url.URL, dest string) error {
	if f.s3 == nil {
		return ratelimit.Permanent(errors.New("s3 sources are not configured"))
	}
	out, err := f.s3.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.Host),
		Key:    aws.String(strings.TrimPrefix(u.Path, "/")),
	})
	if err != nil {
		return fmt.Errorf("get object: %w", err)
	}
	defer func() {
		_ = out.Body.Close()
	}()
	return writeAtomic(dest, out.Body)
}

func (f *Fetcher) limiterFor(host string, cfg ratelimit.Config) ratelimit.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.limiters[host]
	if !ok {
		l = ratelimit.New(cfg)
		f.limiters[host] = l
	}
	return l
}

// writeAtomic streams r into a temp file beside dest and renames it into place.
func writeAtomic(dest string, r io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", dest, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dest, err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("rename %s: %w", dest, err)
	}
	return nil
}
