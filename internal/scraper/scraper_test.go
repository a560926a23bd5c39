package scraper

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakePage serves a scripted sequence of article batches: one batch per
// Articles call, repeating the last batch once the script runs out.
type fakePage struct {
	batches [][]string
	calls   int
	scrolls int
}

func (p *fakePage) Articles(context.Context) ([]string, error) {
	i := p.calls
	p.calls++
	if i >= len(p.batches) {
		if len(p.batches) == 0 {
			return nil, nil
		}
		return p.batches[len(p.batches)-1], nil
	}
	return p.batches[i], nil
}

func (p *fakePage) Scroll(context.Context) error {
	p.scrolls++
	return nil
}

func comment(id string) string {
	return fmt.Sprintf(`<article data-testid="tweet">
		<a href="/u/status/%s"><time datetime="2024-01-01T00:00:00.000Z"></time></a>
		<a href="/user_%s">x</a>
		<div data-testid="tweetText">reply %s</div>
	</article>`, id, id, id)
}

func fastOpts(extra ...Option) []Option {
	return append([]Option{WithWaitBounds(time.Millisecond, 2*time.Millisecond)}, extra...)
}

func TestScrape_CollectsAcrossPasses(t *testing.T) {
	page := &fakePage{batches: [][]string{
		{comment("101"), comment("102")},
		{comment("102"), comment("103")},
		{comment("103")},
	}}
	s := New(page, zap.NewNop(), fastOpts()...)

	rows, err := s.Scrape(context.Background(), "1", nil)
	require.NoError(t, err)
	require.Len(t, rows, 3, "duplicates across passes collapse")
	assert.Equal(t, "101", rows[0].ID)
	assert.Equal(t, "102", rows[1].ID)
	assert.Equal(t, "103", rows[2].ID)
}

func TestScrape_SkipsMainPost(t *testing.T) {
	page := &fakePage{batches: [][]string{
		{comment("1"), comment("2")},
	}}
	s := New(page, zap.NewNop(), fastOpts()...)

	rows, err := s.Scrape(context.Background(), "1", nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "2", rows[0].ID)
}

func TestScrape_StopsAfterEmptyPasses(t *testing.T) {
	page := &fakePage{batches: [][]string{
		{comment("1")},
	}}
	s := New(page, zap.NewNop(), fastOpts()...)

	start := time.Now()
	rows, err := s.Scrape(context.Background(), "main", nil)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	// One productive pass plus three exhausted ones.
	assert.Equal(t, 4, page.calls)
	assert.Less(t, time.Since(start), time.Second)
}

func TestScrape_HonorsLimit(t *testing.T) {
	batch := make([]string, 0, 10)
	for i := 0; i < 10; i++ {
		batch = append(batch, comment(fmt.Sprintf("20%d", i)))
	}
	page := &fakePage{batches: [][]string{batch}}
	s := New(page, zap.NewNop(), fastOpts(WithLimit(5))...)

	rows, err := s.Scrape(context.Background(), "main", nil)
	require.NoError(t, err)
	assert.Len(t, rows, 5)
	assert.Zero(t, page.scrolls, "limit reached on the first pass, no scroll needed")
}

func TestScrape_ReportsProgress(t *testing.T) {
	page := &fakePage{batches: [][]string{
		{comment("1")},
	}}
	s := New(page, zap.NewNop(), fastOpts(WithLimit(3))...)

	var reports [][2]int
	_, err := s.Scrape(context.Background(), "main", func(collected, limit int) {
		reports = append(reports, [2]int{collected, limit})
	})
	require.NoError(t, err)
	require.NotEmpty(t, reports)
	assert.Equal(t, [2]int{1, 3}, reports[0])
}

func TestScrape_SecondStartRejected(t *testing.T) {
	s := New(&fakePage{}, zap.NewNop(), fastOpts()...)

	s.active.Store(true)
	_, err := s.Scrape(context.Background(), "main", nil)
	assert.ErrorIs(t, err, ErrActive)
	assert.True(t, s.Active())
}

func TestScrape_ContextCancelReturnsPartial(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	page := &fakePage{batches: [][]string{
		{comment("1")},
	}}
	s := New(page, zap.NewNop(), WithWaitBounds(50*time.Millisecond, 60*time.Millisecond))

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	rows, err := s.Scrape(ctx, "main", nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, rows, 1, "rows collected before cancellation survive")
}
