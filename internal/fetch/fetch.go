package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/KaramelBytes/co2atlas/internal/utils"
)

// maxBody caps a single download; the largest source is a few tens of MB.
const maxBody = 512 << 20

// Downloader fetches dataset files with retry and backoff.
type Downloader struct {
	httpClient       *http.Client
	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	userAgent        string
	log              *zap.Logger
}

// Result describes one downloaded file.
type Result struct {
	Kind     string
	URL      string
	Path     string
	Bytes    int64
	Attempts int
}

// New returns a Downloader. Non-positive arguments fall back to defaults
// (60s timeout, 3 attempts, 500ms base delay, 4s max delay).
func New(httpTimeout time.Duration, retryMax int, baseDelay, maxDelay time.Duration, log *zap.Logger) *Downloader {
	if httpTimeout <= 0 {
		httpTimeout = 60 * time.Second
	}
	if retryMax <= 0 {
		retryMax = 3
	}
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}
	if maxDelay <= 0 {
		maxDelay = 4 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Downloader{
		httpClient:       &http.Client{Timeout: httpTimeout},
		retryMaxAttempts: retryMax,
		retryBaseDelay:   baseDelay,
		retryMaxDelay:    maxDelay,
		userAgent:        "co2atlas/1 (+https://github.com/KaramelBytes/co2atlas)",
		log:              log,
	}
}

// FileName picks the target file name for a source: the configured name when
// set, else the last path segment of the URL.
func FileName(rawURL, configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	base := path.Base(u.Path)
	if base == "" || base == "/" || base == "." {
		return "", fmt.Errorf("cannot derive a file name from %q", rawURL)
	}
	return base, nil
}

// All downloads every source into dir, in kind order. files maps a kind to
// the file name it should be stored under.
func (d *Downloader) All(ctx context.Context, sources, files map[string]string, dir string) ([]Result, error) {
	if err := utils.EnsureProjectDir(dir); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	kinds := make([]string, 0, len(sources))
	for k := range sources {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	out := make([]Result, 0, len(kinds))
	for _, kind := range kinds {
		name, err := FileName(sources[kind], files[kind])
		if err != nil {
			return out, fmt.Errorf("%s: %w", kind, err)
		}
		res, err := d.Download(ctx, sources[kind], filepath.Join(dir, name))
		if err != nil {
			return out, fmt.Errorf("%s: %w", kind, err)
		}
		res.Kind = kind
		out = append(out, res)
	}
	return out, nil
}

// Download fetches rawURL and atomically writes the body to dest. 429, 5xx
// and transient network errors are retried with exponential backoff capped at
// the max delay; a Retry-After header overrides the computed delay.
func (d *Downloader) Download(ctx context.Context, rawURL, dest string) (Result, error) {
	res := Result{URL: rawURL, Path: dest}
	backoff := d.retryBaseDelay

	var lastErr error
	for attempt := 1; attempt <= d.retryMaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		res.Attempts = attempt
		body, wait, err := d.get(ctx, rawURL)
		if err == nil {
			if err := utils.SafeWriteFile(dest, body); err != nil {
				return res, err
			}
			res.Bytes = int64(len(body))
			d.log.Info("downloaded", zap.String("url", rawURL), zap.String("path", dest),
				zap.Int64("bytes", res.Bytes), zap.Int("attempts", attempt))
			return res, nil
		}
		lastErr = err
		if !retryable(err) || attempt == d.retryMaxAttempts {
			break
		}
		if wait <= 0 {
			wait = withJitter(backoff)
			if wait > d.retryMaxDelay {
				wait = d.retryMaxDelay
			}
			backoff *= 2
		}
		d.log.Debug("retrying download", zap.String("url", rawURL), zap.Int("attempt", attempt),
			zap.Duration("wait", wait), zap.Error(err))
		if err := sleep(ctx, wait); err != nil {
			return res, err
		}
	}
	return res, lastErr
}

// get performs one request. The returned duration is the server's Retry-After, if any.
func (d *Downloader) get(ctx context.Context, rawURL string) ([]byte, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		if isRetryableNetErr(err) {
			return nil, 0, &UnreachableError{Host: req.URL.Host, Err: err}
		}
		return nil, 0, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		se := &StatusError{URL: rawURL, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
		var ra time.Duration
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := parseRetryAfterSeconds(v); err == nil && secs > 0 {
				ra = time.Duration(secs) * time.Second
			}
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, ra, &RateLimitError{StatusError: se, RetryAfter: ra}
		}
		return nil, ra, se
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody+1))
	if err != nil {
		return nil, 0, &UnreachableError{Host: req.URL.Host, Err: fmt.Errorf("read body: %w", err)}
	}
	if len(body) > maxBody {
		return nil, 0, fmt.Errorf("download %s: body exceeds %d bytes", rawURL, maxBody)
	}
	return body, 0, nil
}

func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	var ue *UnreachableError
	return errors.As(err, &ue)
}

func isRetryableNetErr(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	// refused or reset connections, DNS failures
	var oerr *net.OpError
	if errors.As(err, &oerr) {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

// parseRetryAfterSeconds interprets a Retry-After value as seconds or an HTTP date.
func parseRetryAfterSeconds(v string) (int, error) {
	if s, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
		return s, nil
	}
	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		return int(d.Seconds()), nil
	}
	return 0, fmt.Errorf("invalid Retry-After: %q", v)
}

// withJitter adds up to 20% random jitter.
func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + time.Duration(rand.Int64N(int64(d)/5+1))
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
