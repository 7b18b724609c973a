package calendar

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	appLog "bookwatch/internal/log"
)

// FetchResult is the outcome of one HTTP fetch.
type FetchResult struct {
	Body []byte
	// NotModified is true when the server answered 304 and Body came from
	// the disk cache.
	NotModified bool
}

// cacheEntry holds HTTP cache metadata for a single URL.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RetryConfig bounds the exponential backoff used for transient failures.
type RetryConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
}

func (r RetryConfig) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if r.InitialInterval > 0 {
		b.InitialInterval = r.InitialInterval
	}
	if r.MaxInterval > 0 {
		b.MaxInterval = r.MaxInterval
	}
	if r.MaxElapsedTime > 0 {
		b.MaxElapsedTime = r.MaxElapsedTime
	}
	return b
}

// Fetcher performs conditional GETs (ETag / Last-Modified) backed by a disk
// cache and retries network errors and 5xx answers with exponential backoff.
type Fetcher struct {
	client   *http.Client
	cacheDir string
	retry    RetryConfig
}

// NewFetcher creates a Fetcher. cacheDir holds one subdirectory per URL.
func NewFetcher(cacheDir string, retry RetryConfig) *Fetcher {
	if cacheDir == "" {
		cacheDir = "./var/http-cache"
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		cacheDir: cacheDir,
		retry:    retry,
	}
}

// Fetch downloads url. A stale cached body is never returned in place of a
// failed fetch: callers must not mistake old data for a fresh observation.
func (f *Fetcher) Fetch(ctx context.Context, url string) (FetchResult, error) {
	if url == "" {
		return FetchResult{}, errors.New("fetch: URL is empty")
	}

	cachePath := f.cachePathForURL(url)
	if err := os.MkdirAll(cachePath, 0o700); err != nil {
		return FetchResult{}, err
	}

	var res FetchResult
	attempt := 0
	op := func() error {
		attempt++
		r, err := f.fetchOnce(ctx, url, cachePath)
		if err != nil {
			appLog.Warn("fetch attempt failed", "url", redactURL(url), "attempt", attempt, "err", err)
			return err
		}
		res = r
		return nil
	}

	b := backoff.WithContext(f.retry.backOff(), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return FetchResult{}, fmt.Errorf("fetch %s: %w", redactURL(url), err)
	}
	return res, nil
}

// statusError is a non-2xx/304 answer.
type statusError struct {
	code   int
	status string
}

func (e *statusError) Error() string { return "unexpected status " + e.status }

func (f *Fetcher) fetchOnce(ctx context.Context, url, cachePath string) (FetchResult, error) {
	meta, _ := f.loadCacheMeta(cachePath)
	cachedBody, _ := f.loadCacheBody(cachePath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return FetchResult{}, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json, text/calendar;q=0.9, */*;q=0.5")

	// Conditional headers only make sense if we still hold the body.
	if len(cachedBody) > 0 {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	appLog.Debug("fetch start", "url", redactURL(url))

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return FetchResult{}, backoff.Permanent(ctx.Err())
		}
		return FetchResult{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return FetchResult{}, readErr
		}

		newMeta := cacheEntry{
			URL:          url,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}
		if err := f.saveCache(cachePath, newMeta, body); err != nil {
			// Log but still return the freshly fetched body.
			appLog.Error("fetch cache save failed", err, "url", redactURL(url))
		}

		appLog.Info("fetch success", "url", redactURL(url), "status", resp.StatusCode, "bytes", len(body))
		return FetchResult{Body: body}, nil

	case resp.StatusCode == http.StatusNotModified:
		if len(cachedBody) == 0 {
			return FetchResult{}, backoff.Permanent(errors.New("received 304 Not Modified but no cached body available"))
		}
		appLog.Info("fetch not modified; using cache", "url", redactURL(url))
		return FetchResult{Body: cachedBody, NotModified: true}, nil

	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return FetchResult{}, &statusError{code: resp.StatusCode, status: resp.Status}

	default:
		return FetchResult{}, backoff.Permanent(&statusError{code: resp.StatusCode, status: resp.Status})
	}
}

func (f *Fetcher) cachePathForURL(url string) string {
	sum := sha256.Sum256([]byte(url))
	// Use first 16 hex chars as directory name.
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func (f *Fetcher) loadCacheMeta(cachePath string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

func (f *Fetcher) loadCacheBody(cachePath string) ([]byte, error) {
	return os.ReadFile(filepath.Join(cachePath, "body"))
}

func (f *Fetcher) saveCache(cachePath string, meta cacheEntry, body []byte) error {
	// Write body first so meta never points at missing body.
	if err := os.WriteFile(filepath.Join(cachePath, "body"), body, 0o600); err != nil {
		return err
	}

	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}

// redactURL keeps scheme and host only; listing URLs often carry API keys.
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := -1
	for idx := 0; idx+2 < len(u); idx++ {
		if u[idx:idx+3] == "://" {
			i = idx + 3
			break
		}
	}
	if i == -1 {
		return "url://...(redacted)"
	}

	j := i
	for j < len(u) && u[j] != '/' && u[j] != '?' {
		j++
	}
	return u[:j] + redactedSuffix
}
