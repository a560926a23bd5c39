package watch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakePage struct {
	mu      sync.Mutex
	url     string
	pending int
}

func (p *fakePage) Location(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, nil
}

func (p *fakePage) PendingCount(context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending, nil
}

func (p *fakePage) set(url string, pending int) {
	p.mu.Lock()
	p.url = url
	p.pending = pending
	p.mu.Unlock()
}

type scanRecorder struct {
	mu    sync.Mutex
	count int
}

func (r *scanRecorder) scan(context.Context) {
	r.mu.Lock()
	r.count++
	r.mu.Unlock()
}

func (r *scanRecorder) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return cond()
}

func TestWatcher_ScansOnNavigation(t *testing.T) {
	page := &fakePage{url: "https://x.com/home"}
	rec := &scanRecorder{}
	w := New(page, rec.scan, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	// First poll sees the initial URL as a change and scans once.
	assert.True(t, waitFor(t, 3*time.Second, func() bool { return rec.total() == 1 }))

	page.set("https://x.com/somebody/status/42", 0)
	assert.True(t, waitFor(t, 3*time.Second, func() bool { return rec.total() == 2 }))
}

func TestWatcher_DebouncesPendingArticles(t *testing.T) {
	page := &fakePage{url: "https://x.com/home"}
	rec := &scanRecorder{}
	w := New(page, rec.scan, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	// Initial navigation scan.
	assert.True(t, waitFor(t, 3*time.Second, func() bool { return rec.total() == 1 }))

	page.set("https://x.com/home", 5)
	assert.True(t, waitFor(t, 3*time.Second, func() bool { return rec.total() >= 2 }),
		"pending articles on an unchanged page trigger a debounced scan")
}

func TestWatcher_GrowingBurstRestartsDebounce(t *testing.T) {
	page := &fakePage{url: "https://x.com/home"}
	rec := &scanRecorder{}
	w := New(page, rec.scan, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	// Initial navigation scan.
	assert.True(t, waitFor(t, 3*time.Second, func() bool { return rec.total() == 1 }))

	// Raise the pending count faster than the debounce window for a while;
	// every poll sees growth, so no scan may fire mid-burst.
	stop := make(chan struct{})
	go func() {
		for i := 1; ; i++ {
			select {
			case <-stop:
				return
			case <-time.After(100 * time.Millisecond):
				page.set("https://x.com/home", i)
			}
		}
	}()
	time.Sleep(2 * time.Second)
	quietDuringBurst := rec.total() == 1
	close(stop)

	assert.True(t, quietDuringBurst, "a growing burst keeps the scan on hold")
	assert.True(t, waitFor(t, 3*time.Second, func() bool { return rec.total() == 2 }),
		"one scan once the burst settles")
}

func TestWatcher_NoScanWhenIdle(t *testing.T) {
	page := &fakePage{url: "https://x.com/home"}
	rec := &scanRecorder{}
	w := New(page, rec.scan, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	assert.True(t, waitFor(t, 3*time.Second, func() bool { return rec.total() == 1 }))
	time.Sleep(1200 * time.Millisecond)
	assert.Equal(t, 1, rec.total(), "an unchanged page with nothing pending stays quiet")
}

func TestWatcher_StopsOnCancel(t *testing.T) {
	page := &fakePage{url: "https://x.com/home"}
	w := New(page, func(context.Context) {}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not stop on cancellation")
	}
}
