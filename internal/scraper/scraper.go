// Package scraper drives incremental reveal of a reply thread and collects
// unique comment rows. One scrape at a time: a start request while another
// scrape is active is a no-op.
package scraper

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/xnotehq/xnote/internal/extract"
	"github.com/xnotehq/xnote/internal/types"
)

// ErrActive is returned when a scrape is already running.
var ErrActive = errors.New("scrape already in progress")

const (
	// DefaultLimit caps collected rows per scrape.
	DefaultLimit = 100

	// A thread is exhausted after this many consecutive passes with no new rows.
	maxEmptyPasses = 3

	// Randomized inter-scroll wait bounds, to stay under rate sensitivity.
	defaultWaitMin = 1500 * time.Millisecond
	defaultWaitMax = 2500 * time.Millisecond
)

// Page is the minimal surface the scraper needs from a live thread view:
// the outer HTML of every currently rendered article, and a scroll.
type Page interface {
	Articles(ctx context.Context) ([]string, error)
	Scroll(ctx context.Context) error
}

// Progress is invoked after each pass with collected count and the limit.
type Progress func(collected, limit int)

// Scraper accumulates unique comment rows from a thread page.
type Scraper struct {
	page    Page
	limit   int
	waitMin time.Duration
	waitMax time.Duration
	active  atomic.Bool
	log     *zap.Logger
}

// Option adjusts scraper tuning.
type Option func(*Scraper)

// WithLimit overrides the row limit.
func WithLimit(n int) Option {
	return func(s *Scraper) { s.limit = n }
}

// WithWaitBounds overrides the randomized inter-scroll wait range.
func WithWaitBounds(min, max time.Duration) Option {
	return func(s *Scraper) { s.waitMin, s.waitMax = min, max }
}

// New creates a Scraper over a thread page.
func New(page Page, log *zap.Logger, opts ...Option) *Scraper {
	s := &Scraper{
		page:    page,
		limit:   DefaultLimit,
		waitMin: defaultWaitMin,
		waitMax: defaultWaitMax,
		log:     log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Active reports whether a scrape is currently running.
func (s *Scraper) Active() bool {
	return s.active.Load()
}

// Scrape collects up to the limit of unique comment rows from the thread
// addressed by targetID. Rows matching the main post's ID are skipped. The
// scrape ends when the limit is reached, the thread stops yielding new rows
// for three passes in a row, or ctx is cancelled; collected rows are
// returned in all three cases.
func (s *Scraper) Scrape(ctx context.Context, targetID string, progress Progress) ([]types.CommentRow, error) {
	if !s.active.CompareAndSwap(false, true) {
		return nil, ErrActive
	}
	defer s.active.Store(false)

	seen := make(map[string]struct{})
	var rows []types.CommentRow
	emptyPasses := 0

	for len(rows) < s.limit && emptyPasses < maxEmptyPasses {
		found, err := s.pass(ctx, targetID, seen, &rows)
		if err != nil {
			return rows, err
		}
		if found == 0 {
			emptyPasses++
		} else {
			emptyPasses = 0
		}

		if progress != nil {
			progress(len(rows), s.limit)
		}
		if len(rows) >= s.limit || emptyPasses >= maxEmptyPasses {
			break
		}

		if err := s.page.Scroll(ctx); err != nil {
			return rows, err
		}
		if err := s.wait(ctx); err != nil {
			return rows, err
		}
	}

	s.log.Info("scrape finished",
		zap.String("target_id", targetID),
		zap.Int("rows", len(rows)))
	return rows, nil
}

// pass re-reads all rendered articles and appends any new, non-main rows.
func (s *Scraper) pass(ctx context.Context, targetID string, seen map[string]struct{}, rows *[]types.CommentRow) (int, error) {
	articles, err := s.page.Articles(ctx)
	if err != nil {
		return 0, err
	}

	found := 0
	for _, html := range articles {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			continue
		}
		row, ok := extract.CommentRow(doc.Selection)
		if !ok || row.ID == targetID {
			continue
		}
		if _, dup := seen[row.ID]; dup {
			continue
		}
		seen[row.ID] = struct{}{}
		*rows = append(*rows, row)
		found++
		if len(*rows) >= s.limit {
			break
		}
	}
	return found, nil
}

// wait sleeps a uniformly random interval in [waitMin, waitMax], honoring
// cancellation.
func (s *Scraper) wait(ctx context.Context) error {
	span := s.waitMax - s.waitMin
	d := s.waitMin
	if span > 0 {
		d += time.Duration(rand.Int63n(int64(span) + 1))
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
