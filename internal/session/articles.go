package session

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// Article capture. The extractor and classifier work over static HTML, so
// the capture stamps each article's computed body font size into an inline
// style first; the main-post heuristic needs it and outerHTML alone would
// lose it.

// Articles returns the outer HTML of every currently rendered article, in
// document order.
func (s *Session) Articles(ctx context.Context) ([]string, error) {
	return s.capture(ctx, false)
}

// CaptureNew returns only articles not yet seen by a discovery pass, marking
// each as it captures. The marker is a data attribute on the element, so its
// lifetime is the element's: a removed article needs no cleanup, and a
// re-rendered one is simply captured again.
func (s *Session) CaptureNew(ctx context.Context) ([]string, error) {
	return s.capture(ctx, true)
}

// PendingCount reports how many rendered articles are still unmarked. The
// watcher polls this as its mutation signal.
func (s *Session) PendingCount(ctx context.Context) (int, error) {
	countCtx, cancel := s.within(ctx, 10*time.Second)
	defer cancel()
	var n int
	err := chromedp.Run(countCtx, chromedp.Evaluate(pendingCountJS, &n))
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Session) capture(ctx context.Context, onlyNew bool) ([]string, error) {
	capCtx, cancel := s.within(ctx, 20*time.Second)
	defer cancel()

	js := fmt.Sprintf(captureJS, onlyNew)
	var htmls []string
	if err := chromedp.Run(capCtx, chromedp.Evaluate(js, &htmls)); err != nil {
		return nil, fmt.Errorf("capture articles: %w", err)
	}
	return htmls, nil
}

const captureJS = `(() => {
	const onlyNew = %t;
	const out = [];
	for (const el of document.querySelectorAll('article[data-testid="tweet"]')) {
		if (onlyNew && el.dataset.xnoteSeen) continue;
		if (onlyNew) el.dataset.xnoteSeen = '1';
		const text = el.querySelector('[data-testid="tweetText"]');
		if (text) text.style.fontSize = getComputedStyle(text).fontSize;
		out.push(el.outerHTML);
	}
	return out;
})()`

const pendingCountJS = `(() => {
	let n = 0;
	for (const el of document.querySelectorAll('article[data-testid="tweet"]')) {
		if (!el.dataset.xnoteSeen) n++;
	}
	return n;
})()`
