// Package auth manages the X.com session: capturing cookies through a
// headful login and supplying them to the scraping session and the
// moderation client.
package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
)

// The two cookies that constitute a usable session: the auth token and the
// ct0 CSRF token the internal API requires.
const (
	authTokenCookie = "auth_token"
	csrfCookie      = "ct0"
)

// CookieStore persists captured session cookies on disk.
type CookieStore struct {
	path string
}

// StoredCookies is the persisted cookie data.
type StoredCookies struct {
	Cookies    []*network.Cookie `json:"cookies"`
	CapturedAt time.Time         `json:"captured_at"`
	ExpiresAt  time.Time         `json:"expires_at"`
}

// NewCookieStore creates a cookie store at the given path.
func NewCookieStore(path string) *CookieStore {
	return &CookieStore{path: path}
}

// DefaultCookieStorePath returns the default path for cookie storage.
func DefaultCookieStorePath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "xnote", "cookies.json"), nil
}

// Save persists cookies, recording the earliest expiry among the
// session-critical ones.
func (cs *CookieStore) Save(cookies []*network.Cookie) error {
	if err := os.MkdirAll(filepath.Dir(cs.path), 0o700); err != nil {
		return err
	}

	var earliest time.Time
	for _, c := range cookies {
		if c.Name != authTokenCookie && c.Name != csrfCookie {
			continue
		}
		exp := time.Unix(int64(c.Expires), 0)
		if earliest.IsZero() || exp.Before(earliest) {
			earliest = exp
		}
	}

	data, err := json.MarshalIndent(StoredCookies{
		Cookies:    cookies,
		CapturedAt: time.Now(),
		ExpiresAt:  earliest,
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(cs.path, data, 0o600)
}

// Load retrieves cookies from disk.
func (cs *CookieStore) Load() (*StoredCookies, error) {
	data, err := os.ReadFile(cs.path)
	if err != nil {
		return nil, err
	}
	var stored StoredCookies
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

// IsValid reports whether stored cookies exist, have not expired, and
// include both session-critical cookies.
func (cs *CookieStore) IsValid() bool {
	stored, err := cs.Load()
	if err != nil {
		return false
	}
	if time.Now().After(stored.ExpiresAt) {
		return false
	}
	found := map[string]bool{}
	for _, c := range stored.Cookies {
		found[c.Name] = true
	}
	return found[authTokenCookie] && found[csrfCookie]
}

// Clear removes stored cookies.
func (cs *CookieStore) Clear() error {
	return os.Remove(cs.path)
}

// SiteCookies returns only the cookies scoped to the target site.
func (cs *CookieStore) SiteCookies() ([]*network.Cookie, error) {
	stored, err := cs.Load()
	if err != nil {
		return nil, err
	}
	var out []*network.Cookie
	for _, c := range stored.Cookies {
		if c.Domain == ".x.com" || c.Domain == "x.com" {
			out = append(out, c)
		}
	}
	return out, nil
}

// CookieHeader renders the stored site cookies as a Cookie request header.
// The moderation client attaches it explicitly since it does not share the
// browser's cookie jar.
func (cs *CookieStore) CookieHeader() (string, error) {
	cookies, err := cs.SiteCookies()
	if err != nil {
		return "", err
	}
	if len(cookies) == 0 {
		return "", fmt.Errorf("no session cookies stored")
	}
	pairs := make([]string, 0, len(cookies))
	for _, c := range cookies {
		pairs = append(pairs, c.Name+"="+c.Value)
	}
	return strings.Join(pairs, "; "), nil
}

// CSRFToken returns the ct0 cookie value the internal API requires in its
// x-csrf-token header.
func (cs *CookieStore) CSRFToken() (string, error) {
	cookies, err := cs.SiteCookies()
	if err != nil {
		return "", err
	}
	for _, c := range cookies {
		if c.Name == csrfCookie {
			return c.Value, nil
		}
	}
	return "", fmt.Errorf("no %s cookie stored", csrfCookie)
}
