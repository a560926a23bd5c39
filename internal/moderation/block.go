// Package moderation talks to the two moderation backends: X's internal
// session-authenticated block endpoint, and the community blocklist service.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// ErrNeedsLogin distinguishes an expired or missing session from a generic
// failure, so callers can prompt for re-authentication.
var ErrNeedsLogin = errors.New("session expired, re-login required")

// bearerToken is X's web-app token. It is public, hardcoded in X's own JS
// bundle, and identifies the client application rather than the user.
const bearerToken = "Bearer AAAAAAAAAAAAAAAAAAAAANRILgAAAAAAnNwIzUejRCOuH5E6I8xnZz4puTs%3D1Zv7ttfk8LF81IUq16cHjhLTvJu4FA33AGWWjCpTnA"

const blockPath = "/i/api/1.1/blocks/create.json"

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Session supplies the ambient browser session's credentials. The block
// endpoint authenticates with the full cookie set plus the ct0 CSRF token;
// cookies must be attached explicitly because this client does not share the
// browser's cookie jar.
type Session interface {
	CookieHeader() (string, error)
	CSRFToken() (string, error)
}

// BlockClient issues authenticated block writes against X.
type BlockClient struct {
	client  HTTPClient
	origin  string
	session Session
	log     *zap.Logger
}

// NewBlockClient creates a client against the given origin (e.g. https://x.com).
func NewBlockClient(client HTTPClient, origin string, session Session, log *zap.Logger) *BlockClient {
	return &BlockClient{client: client, origin: origin, session: session, log: log}
}

// Block blocks the given handle for the logged-in user. A 401/403 response
// maps to ErrNeedsLogin.
func (c *BlockClient) Block(ctx context.Context, screenName string) error {
	csrf, err := c.session.CSRFToken()
	if err != nil {
		return fmt.Errorf("no csrf token: %w", ErrNeedsLogin)
	}
	cookies, err := c.session.CookieHeader()
	if err != nil {
		return fmt.Errorf("no session cookies: %w", ErrNeedsLogin)
	}

	form := url.Values{}
	form.Set("screen_name", screenName)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.origin+blockPath, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", bearerToken)
	req.Header.Set("X-Csrf-Token", csrf)
	req.Header.Set("X-Twitter-Auth-Type", "OAuth2Session")
	req.Header.Set("X-Twitter-Active-User", "yes")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Cookie", cookies)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("block request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
		c.log.Info("user blocked", zap.String("screen_name", screenName))
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("status %d: %w", resp.StatusCode, ErrNeedsLogin)
	default:
		return fmt.Errorf("block failed with status %d", resp.StatusCode)
	}
}
