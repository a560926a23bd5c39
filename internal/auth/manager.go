package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xnotehq/xnote/internal/browser"
)

// Manager handles the X.com login flow.
type Manager struct {
	cookieStore *CookieStore
	log         *zap.Logger
}

// NewManager creates an auth manager backed by the given cookie store.
func NewManager(cookieStore *CookieStore, log *zap.Logger) *Manager {
	return &Manager{cookieStore: cookieStore, log: log}
}

// IsAuthenticated checks if valid credentials are stored.
func (m *Manager) IsAuthenticated() bool {
	return m.cookieStore.IsValid()
}

// Cookies returns the stored site cookies for session injection.
func (m *Manager) Cookies() ([]*network.Cookie, error) {
	return m.cookieStore.SiteCookies()
}

// CookieHeader exposes the stored cookies as a request header value.
func (m *Manager) CookieHeader() (string, error) {
	return m.cookieStore.CookieHeader()
}

// CSRFToken exposes the stored ct0 value.
func (m *Manager) CSRFToken() (string, error) {
	return m.cookieStore.CSRFToken()
}

// Login opens a visible browser window for the user to log in, then captures
// and persists the session cookies.
func (m *Manager) Login(ctx context.Context) error {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, browser.Options(false)...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	if err := chromedp.Run(browserCtx, chromedp.Navigate("https://x.com/login")); err != nil {
		return fmt.Errorf("navigate to login page: %w", err)
	}

	if err := m.waitForLogin(browserCtx); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	cookies, err := extractCookies(browserCtx)
	if err != nil {
		return fmt.Errorf("extract cookies: %w", err)
	}
	if err := m.cookieStore.Save(cookies); err != nil {
		return fmt.Errorf("save cookies: %w", err)
	}

	m.log.Info("login successful, session cookies saved")
	return nil
}

// waitForLogin polls until the user lands on the home feed with a live
// auth_token cookie. The user gets five minutes.
func (m *Manager) waitForLogin(ctx context.Context) error {
	timeout := time.After(5 * time.Minute)
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-timeout:
			return fmt.Errorf("login timeout exceeded")
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			var url string
			if err := chromedp.Run(ctx, chromedp.Location(&url)); err != nil {
				continue
			}
			if url != "https://x.com/home" && url != "https://twitter.com/home" {
				continue
			}
			cookies, err := extractCookies(ctx)
			if err != nil {
				continue
			}
			for _, c := range cookies {
				if c.Name == authTokenCookie && c.Value != "" {
					return nil
				}
			}
		}
	}
}

func extractCookies(ctx context.Context) ([]*network.Cookie, error) {
	var cookies []*network.Cookie
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = storage.GetCookies().Do(ctx)
		return err
	}))
	return cookies, err
}

// Logout clears stored credentials.
func (m *Manager) Logout() error {
	return m.cookieStore.Clear()
}
