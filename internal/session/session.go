// Package session owns the live browser: navigation, article capture,
// scrolling, and the main-world page-data probe. It is the only package that
// touches chromedp outside of login.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xnotehq/xnote/internal/browser"
	"github.com/xnotehq/xnote/internal/extract"
)

// Session is a logged-in browser tab on X.
type Session struct {
	ctx    context.Context
	cancel context.CancelFunc
	log    *zap.Logger
}

// New launches a browser, injects the stored session cookies, and returns a
// ready Session. Close releases the browser.
func New(ctx context.Context, headless bool, cookies []*network.Cookie, log *zap.Logger) (*Session, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, browser.Options(headless)...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	s := &Session{
		ctx: browserCtx,
		cancel: func() {
			cancelBrowser()
			cancelAlloc()
		},
		log: log,
	}

	if err := s.injectCookies(cookies); err != nil {
		s.cancel()
		return nil, fmt.Errorf("inject cookies: %w", err)
	}
	return s, nil
}

// Close shuts the browser down.
func (s *Session) Close() {
	s.cancel()
}

func (s *Session) injectCookies(cookies []*network.Cookie) error {
	return chromedp.Run(s.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cookies {
			err := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(c.Path).
				WithSecure(c.Secure).
				WithHTTPOnly(c.HTTPOnly).
				WithSameSite(c.SameSite).
				Do(ctx)
			if err != nil {
				return err
			}
		}
		return nil
	}))
}

// Navigate loads a URL and waits for the first article to render.
func (s *Session) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := s.within(ctx, 60*time.Second)
	defer cancel()
	if err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitVisible(extract.PostArticle, chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("load %s: %w", url, err)
	}
	return nil
}

// Location returns the tab's current URL. Single-page navigation changes it
// without a page load, so callers poll this.
func (s *Session) Location(ctx context.Context) (string, error) {
	locCtx, cancel := s.within(ctx, 10*time.Second)
	defer cancel()
	var url string
	if err := chromedp.Run(locCtx, chromedp.Location(&url)); err != nil {
		return "", err
	}
	return url, nil
}

// TabLabel returns the selected timeline tab's label text, or "" when there
// is no tab bar.
func (s *Session) TabLabel(ctx context.Context) (string, error) {
	labelCtx, cancel := s.within(ctx, 10*time.Second)
	defer cancel()
	var label string
	err := chromedp.Run(labelCtx, chromedp.Evaluate(tabLabelJS, &label))
	if err != nil {
		return "", err
	}
	return label, nil
}

// Scroll advances the page by one viewport height.
func (s *Session) Scroll(ctx context.Context) error {
	scrollCtx, cancel := s.within(ctx, 10*time.Second)
	defer cancel()
	return chromedp.Run(scrollCtx,
		chromedp.Evaluate(`window.scrollBy(0, window.innerHeight)`, nil))
}

// within derives a chromedp-rooted context that also honors the caller's
// cancellation.
func (s *Session) within(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	merged, cancelTimeout := context.WithTimeout(s.ctx, timeout)
	stop := context.AfterFunc(ctx, cancelTimeout)
	return merged, func() {
		stop()
		cancelTimeout()
	}
}

const tabLabelJS = `(() => {
	const tabs = document.querySelector('[role="tablist"]');
	if (!tabs) return '';
	const selected = tabs.querySelector('[aria-selected="true"]');
	return selected ? (selected.textContent || '') : '';
})()`
