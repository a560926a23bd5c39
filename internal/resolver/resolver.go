// Package resolver turns a post ID into a playable MP4 URL. Two ordered
// strategies: the public syndication endpoint first, then a probe of the
// page's internal data as fallback. All failures collapse to ErrNotFound.
package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// ErrNotFound means no strategy produced a URL: the post has no video, or it
// is protected or age-restricted.
var ErrNotFound = errors.New("video not found")

// DefaultEndpoint is X's public syndication endpoint. The token parameter is
// required but not a real secret.
const DefaultEndpoint = "https://cdn.syndication.twimg.com/tweet-result"

// probeTimeout bounds the cross-context page-data probe round-trip.
const probeTimeout = 8 * time.Second

const cacheSize = 128

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Prober captures a slice of the page's internal data representation for the
// currently displayed post, decoded from JSON. Implemented by the browser
// session; nil disables the fallback strategy.
type Prober interface {
	PageData(ctx context.Context) (any, error)
}

// Resolver resolves post IDs to video URLs, caching successes.
type Resolver struct {
	client   HTTPClient
	probe    Prober
	endpoint string
	token    string
	cache    *lru.Cache[string, string]
	log      *zap.Logger
}

// New creates a Resolver. probe may be nil when no browser session is
// available (pure API mode).
func New(client HTTPClient, probe Prober, endpoint, token string, log *zap.Logger) *Resolver {
	cache, _ := lru.New[string, string](cacheSize)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if token == "" {
		token = "x"
	}
	return &Resolver{
		client:   client,
		probe:    probe,
		endpoint: endpoint,
		token:    token,
		cache:    cache,
		log:      log,
	}
}

// Resolve returns the best MP4 URL for a post, or ErrNotFound. It never
// returns any other error: causes are logged, not propagated.
func (r *Resolver) Resolve(ctx context.Context, postID string) (string, error) {
	if url, ok := r.cache.Get(postID); ok {
		return url, nil
	}

	url, err := r.resolveSyndication(ctx, postID)
	if err != nil {
		r.log.Debug("syndication strategy failed",
			zap.String("post_id", postID), zap.Error(err))
		url = r.resolveProbe(ctx, postID)
	}
	if url == "" {
		return "", ErrNotFound
	}

	r.cache.Add(postID, url)
	return url, nil
}

// resolveSyndication queries the public syndication endpoint. A 404 is the
// endpoint's defined "not available" signal and is not retried.
func (r *Resolver) resolveSyndication(ctx context.Context, postID string) (string, error) {
	apiURL := fmt.Sprintf("%s?id=%s&token=%s", r.endpoint, postID, r.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("syndication request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("post %s: %w", postID, ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5*1024*1024))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	variants := findVariants(data)
	if len(variants) == 0 {
		// Usually a tombstone: age-restricted, protected, or no video.
		return "", fmt.Errorf("no variants in response: %w", ErrNotFound)
	}

	best, ok := BestVariant(variants)
	if !ok {
		return "", fmt.Errorf("no mp4 variants: %w", ErrNotFound)
	}
	return best.Src, nil
}

// resolveProbe runs the page-data fallback. Timeout or no-result yields "".
func (r *Resolver) resolveProbe(ctx context.Context, postID string) string {
	if r.probe == nil {
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	data, err := r.probe.PageData(ctx)
	if err != nil {
		r.log.Debug("page-data probe failed",
			zap.String("post_id", postID), zap.Error(err))
		return ""
	}
	url, ok := SearchVideoURL(data)
	if !ok {
		return ""
	}
	r.log.Debug("resolved via page-data probe", zap.String("post_id", postID))
	return url
}
