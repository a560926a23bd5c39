// Package watch turns the live page into a stream of scan triggers. It polls
// the tab for URL changes and freshly rendered articles, debounces render
// bursts, and invokes the scan callback from a single goroutine.
package watch

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	pollInterval = 500 * time.Millisecond
	scanDebounce = 500 * time.Millisecond
	navScanDelay = 500 * time.Millisecond
)

// Page is the slice of the browser session the watcher needs.
type Page interface {
	Location(ctx context.Context) (string, error)
	PendingCount(ctx context.Context) (int, error)
}

// ScanFunc processes whatever is newly rendered. It is never called
// concurrently with itself.
type ScanFunc func(ctx context.Context)

// Watcher polls the page and schedules scans.
type Watcher struct {
	page Page
	scan ScanFunc
	log  *zap.Logger
}

// New creates a watcher over the given page.
func New(page Page, scan ScanFunc, log *zap.Logger) *Watcher {
	return &Watcher{page: page, scan: scan, log: log}
}

// Run polls until the context is cancelled. A URL change waits briefly for
// the new view to render and then scans; pending articles on an unchanged
// page are debounced so one scan covers a burst of renders.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var lastURL string
	var pendingSince time.Time
	var lastPending int

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		url, err := w.page.Location(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.log.Debug("location poll failed", zap.Error(err))
			continue
		}

		if url != lastURL {
			w.log.Info("page changed", zap.String("url", url))
			lastURL = url
			pendingSince = time.Time{}
			lastPending = 0
			if !w.sleep(ctx, navScanDelay) {
				return ctx.Err()
			}
			w.scan(ctx)
			continue
		}

		n, err := w.page.PendingCount(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.log.Debug("pending poll failed", zap.Error(err))
			continue
		}
		if n == 0 {
			pendingSince = time.Time{}
			lastPending = 0
			continue
		}

		// Debounce: scan only after the pending count has held steady for
		// a full window. Growth restarts the window, so a render burst
		// coalesces into one scan once it settles.
		if pendingSince.IsZero() || n > lastPending {
			pendingSince = time.Now()
			lastPending = n
			continue
		}
		if time.Since(pendingSince) >= scanDebounce {
			w.log.Debug("scanning pending articles", zap.Int("count", n))
			pendingSince = time.Time{}
			lastPending = 0
			w.scan(ctx)
		}
	}
}

func (w *Watcher) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
