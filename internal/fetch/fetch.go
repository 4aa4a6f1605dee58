// Package fetch downloads sources for ingestion over HTTP(S) or from
// file:// URLs.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/Aman-CERP/amanread/internal/config"
	amerrors "github.com/Aman-CERP/amanread/internal/errors"
	"github.com/Aman-CERP/amanread/pkg/version"
)

const (
	// DefaultTimeout bounds one request attempt.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxBodyBytes caps a downloaded body.
	DefaultMaxBodyBytes int64 = 20 << 20
)

// DefaultUserAgent identifies amanread and its build to servers.
var DefaultUserAgent = version.UserAgent()

// Config configures a Fetcher.
type Config struct {
	Timeout      time.Duration
	MaxBodyBytes int64
	UserAgent    string

	// RequestsPerSecond limits outgoing HTTP requests. Zero disables limiting.
	RequestsPerSecond float64

	// Retry is applied to HTTP requests. Zero value uses DefaultRetryConfig.
	Retry amerrors.RetryConfig
}

// ConfigFrom maps the parsing section of the configuration.
func ConfigFrom(cfg config.ParsingConfig) Config {
	return Config{
		Timeout:           cfg.FetchTimeout,
		MaxBodyBytes:      cfg.MaxBodyBytes,
		UserAgent:         cfg.UserAgent,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Retry:             amerrors.DefaultRetryConfig(),
	}
}

// Result is a downloaded source.
type Result struct {
	URL string

	// ContentType is the media type without parameters, e.g. "text/html".
	ContentType string

	Body []byte
}

// Fetcher downloads sources. It is safe for concurrent use.
type Fetcher struct {
	client  *http.Client
	config  Config
	limiter *rate.Limiter
}

// New creates a Fetcher, filling zero fields with defaults.
func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Retry.Multiplier == 0 {
		cfg.Retry = amerrors.DefaultRetryConfig()
	}

	f := &Fetcher{
		client: &http.Client{Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     30 * time.Second,
		}},
		config: cfg,
	}
	if cfg.RequestsPerSecond > 0 {
		burst := max(1, int(cfg.RequestsPerSecond))
		f.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return f
}

// Fetch downloads rawURL. http and https URLs are requested with retries;
// file URLs are read from disk.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, amerrors.ValidationError(fmt.Sprintf("invalid url: %s", rawURL), err)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return f.fetchHTTP(ctx, rawURL)
	case "file":
		return f.fetchFile(u)
	default:
		return nil, amerrors.ValidationError(fmt.Sprintf("unsupported url scheme %q", u.Scheme), nil).
			WithDetail("url", rawURL).
			WithSuggestion("Use an http(s) URL or a local file path")
	}
}

// Get returns only the body of rawURL.
func (f *Fetcher) Get(ctx context.Context, rawURL string) ([]byte, error) {
	res, err := f.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return res.Body, nil
}

// Close releases idle connections.
func (f *Fetcher) Close() {
	f.client.CloseIdleConnections()
}

func (f *Fetcher) fetchHTTP(ctx context.Context, rawURL string) (*Result, error) {
	start := time.Now()
	res, err := amerrors.RetryWithResult(ctx, f.config.Retry, func() (*Result, error) {
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx); err != nil {
				return nil, amerrors.New(amerrors.ErrCodeNetworkTimeout, "fetch cancelled while rate limited", err)
			}
		}
		attemptCtx, cancel := context.WithTimeout(ctx, f.config.Timeout)
		defer cancel()
		return f.doGet(attemptCtx, rawURL)
	})
	if err != nil {
		slog.Warn("fetch_failed",
			append([]any{slog.String("url", rawURL)}, amerrors.LogArgs(err)...)...)
		return nil, err
	}

	slog.Debug("fetch_complete",
		slog.String("url", rawURL),
		slog.String("content_type", res.ContentType),
		slog.Int("bytes", len(res.Body)),
		slog.Duration("duration", time.Since(start)))
	return res, nil
}

func (f *Fetcher) doGet(ctx context.Context, rawURL string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, amerrors.ValidationError(fmt.Sprintf("invalid url: %s", rawURL), err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,text/plain;q=0.8,*/*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, amerrors.New(amerrors.ErrCodeNetworkTimeout, "fetch timed out", err).
				WithDetail("url", rawURL)
		}
		return nil, amerrors.NetworkError("fetch failed", err).WithDetail("url", rawURL)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		ae := amerrors.New(amerrors.ErrCodeFetchFailed,
			fmt.Sprintf("fetch returned status %d", resp.StatusCode), nil).
			WithDetail("url", rawURL).
			WithDetail("status", fmt.Sprint(resp.StatusCode))
		// Only server-side and throttling failures are worth another attempt.
		ae.Retryable = resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return nil, ae
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBodyBytes+1))
	if err != nil {
		if ctx.Err() != nil {
			return nil, amerrors.New(amerrors.ErrCodeNetworkTimeout, "fetch timed out reading body", err).
				WithDetail("url", rawURL)
		}
		return nil, amerrors.NetworkError("failed to read response body", err).WithDetail("url", rawURL)
	}
	if int64(len(body)) > f.config.MaxBodyBytes {
		return nil, amerrors.ValidationError(
			fmt.Sprintf("response exceeds %d bytes", f.config.MaxBodyBytes), nil).
			WithDetail("url", rawURL)
	}

	return &Result{
		URL:         resp.Request.URL.String(),
		ContentType: mediaType(resp.Header.Get("Content-Type"), body),
		Body:        body,
	}, nil
}

func (f *Fetcher) fetchFile(u *url.URL) (*Result, error) {
	path := u.Path
	if path == "" {
		path = u.Opaque
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, amerrors.New(amerrors.ErrCodeFileNotFound, fmt.Sprintf("file not found: %s", path), err).
				WithDetail("path", path)
		}
		return nil, amerrors.StorageError(fmt.Sprintf("cannot read %s", path), err)
	}
	if info.IsDir() {
		return nil, amerrors.ValidationError(fmt.Sprintf("%s is a directory", path), nil)
	}
	if info.Size() > f.config.MaxBodyBytes {
		return nil, amerrors.ValidationError(
			fmt.Sprintf("file exceeds %d bytes", f.config.MaxBodyBytes), nil).
			WithDetail("path", path)
	}

	body, err := os.ReadFile(path)
	if err != nil {
		return nil, amerrors.StorageError(fmt.Sprintf("cannot read %s", path), err)
	}
	return &Result{
		URL:         u.String(),
		ContentType: FileContentType(path, body),
		Body:        body,
	}, nil
}

// FileURL turns a local path into an absolute file:// URL.
func FileURL(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
}

// FileContentType guesses the media type of a local file from its
// extension, falling back to content sniffing.
func FileContentType(path string, body []byte) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return "text/markdown"
	case ".txt":
		return "text/plain"
	case ".html", ".htm":
		return "text/html"
	case ".rss":
		return "application/rss+xml"
	case ".atom":
		return "application/atom+xml"
	}
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return mediaType(t, body)
	}
	return mediaType("", body)
}

// mediaType strips parameters from a Content-Type header, sniffing the
// body when the header is missing or unparsable.
func mediaType(header string, body []byte) string {
	if header != "" {
		if mt, _, err := mime.ParseMediaType(header); err == nil {
			return mt
		}
	}
	mt, _, _ := mime.ParseMediaType(http.DetectContentType(body))
	return mt
}
