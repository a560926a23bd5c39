// Package download is the file-save collaborator: it fetches a URL and
// writes it under the download directory with a sanitized, conflict-free
// filename. A failure caused by the suggested filename is retried once with
// a name derived from the URL.
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Request names one file to save.
type Request struct {
	URL               string
	SuggestedFilename string
}

// Result is the collaborator-boundary outcome: failures are values here,
// never propagated errors.
type Result struct {
	Success bool
	Path    string
	Err     error
}

// Downloader saves fetched files into a directory.
type Downloader struct {
	client HTTPClient
	dir    string
	log    *zap.Logger
}

// New creates a Downloader writing into dir.
func New(client HTTPClient, dir string, log *zap.Logger) *Downloader {
	return &Downloader{client: client, dir: dir, log: log}
}

// Dir returns the download directory.
func (d *Downloader) Dir() string {
	return d.dir
}

// Save fetches the request URL and writes it to disk. The suggested filename
// is sanitized; if writing under it fails, the save is retried once with a
// URL-derived name. Existing files are never overwritten.
func (d *Downloader) Save(ctx context.Context, req Request) Result {
	data, err := d.fetch(ctx, req.URL)
	if err != nil {
		d.log.Warn("download fetch failed", zap.String("url", req.URL), zap.Error(err))
		return Result{Err: err}
	}

	name := SanitizeFilename(req.SuggestedFilename)
	if name == "" {
		name = FilenameFromURL(req.URL)
	}

	path, err := d.write(name, data)
	if err != nil && req.SuggestedFilename != "" {
		fallback := FilenameFromURL(req.URL)
		d.log.Warn("write failed, retrying with URL-derived filename",
			zap.String("filename", name), zap.String("fallback", fallback), zap.Error(err))
		path, err = d.write(fallback, data)
	}
	if err != nil {
		return Result{Err: err}
	}

	d.log.Info("saved file", zap.String("path", path))
	return Result{Success: true, Path: path}
}

// SaveBytes writes already-fetched content (CSV exports, archives).
func (d *Downloader) SaveBytes(name string, data []byte) Result {
	path, err := d.write(SanitizeFilename(name), data)
	if err != nil {
		return Result{Err: err}
	}
	d.log.Info("saved file", zap.String("path", path))
	return Result{Success: true, Path: path}
}

// fetch downloads the URL body, retrying transient failures once.
func (d *Downloader) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	var data []byte
	backoff := retry.WithMaxRetries(1, retry.NewConstant(500*time.Millisecond))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return err
		}
		resp, err := d.client.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode >= 500 {
			return retry.RetryableError(fmt.Errorf("status %d", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("status %d", resp.StatusCode)
		}
		data, err = io.ReadAll(resp.Body)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	return data, nil
}

// write stores data under dir/name, uniquifying on conflict.
func (d *Downloader) write(name string, data []byte) (string, error) {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return "", err
	}
	path := Uniquify(filepath.Join(d.dir, name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// SanitizeFilename replaces characters illegal in filenames with an
// underscore.
func SanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r < 0x20, strings.ContainsRune(`<>:"/\|?*`, r):
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FilenameFromURL derives a save name from the URL path's last segment.
func FilenameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "xnote_download"
	}
	name := filepath.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "xnote_download"
	}
	return SanitizeFilename(name)
}

// Uniquify returns path if free, otherwise the first "name (n).ext" that is.
func Uniquify(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s (%d)%s", stem, i, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}
