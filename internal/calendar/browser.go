package calendar

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	appLog "bookwatch/internal/log"
)

const defaultBrowserTimeout = 60 * time.Second

// browserSource loads the availability endpoint in headless Chromium. Some
// listing sites only answer requests that carry a browser session, so the
// page body is read as text and decoded like the plain JSON source.
//
// There is no HTTP cache here; Unchanged is derived from a hash of the body.
type browserSource struct {
	opts Options

	mu       sync.Mutex
	lastHash [sha256.Size]byte
	seen     bool
}

func (s *browserSource) Fetch(parentCtx context.Context, today time.Time) (Result, error) {
	timeout := s.opts.BrowserTimeout
	if timeout <= 0 {
		timeout = defaultBrowserTimeout
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parentCtx,
		append(chromedp.DefaultExecAllocatorOptions[:], chromedp.Flag("headless", true))...)
	defer allocCancel()

	ctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, timeout)
	defer timeoutCancel()

	var body string
	tasks := chromedp.Tasks{
		chromedp.Navigate(s.opts.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Text("body", &body, chromedp.ByQuery),
	}
	if err := chromedp.Run(ctx, tasks); err != nil {
		return Result{}, fmt.Errorf("browser: chromedp run failed: %w", err)
	}

	raw := []byte(strings.TrimSpace(body))
	days, err := ParseAvailability(raw, s.opts.DefaultMinNights)
	if err != nil {
		return Result{}, fmt.Errorf("browser: %w", err)
	}
	cal, err := window(days, today, s.opts.HorizonDays)
	if err != nil {
		return Result{}, err
	}

	unchanged := s.remember(raw)
	appLog.Info("browser fetch success", "url", redactURL(s.opts.URL), "days", cal.Len(), "unchanged", unchanged)
	return Result{Calendar: cal, Unchanged: unchanged}, nil
}

// remember records the body hash and reports whether it matches the previous one.
func (s *browserSource) remember(body []byte) bool {
	sum := sha256.Sum256(body)

	s.mu.Lock()
	defer s.mu.Unlock()
	unchanged := s.seen && sum == s.lastHash
	s.lastHash, s.seen = sum, true
	return unchanged
}

var _ Source = (*browserSource)(nil)
