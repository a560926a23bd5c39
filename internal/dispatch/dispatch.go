// Package dispatch executes per-post actions: media download, archive
// bundling, comment export, and block-and-report. Each post-action pair runs
// at most once at a time; a second request while the first is in flight is a
// no-op.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/xnotehq/xnote/internal/blocklist"
	"github.com/xnotehq/xnote/internal/download"
	"github.com/xnotehq/xnote/internal/export"
	"github.com/xnotehq/xnote/internal/extract"
	"github.com/xnotehq/xnote/internal/moderation"
	"github.com/xnotehq/xnote/internal/resolver"
	"github.com/xnotehq/xnote/internal/scraper"
	"github.com/xnotehq/xnote/internal/types"
)

// ErrUnknownPost is returned for actions on a post whose ID could not be
// extracted. Nothing can be correlated or downloaded without it.
var ErrUnknownPost = errors.New("post has no usable id")

// ErrBusy is returned when the same action is already running for the post.
var ErrBusy = errors.New("action already in progress for this post")

// Store is the persistence surface the dispatcher writes to.
type Store interface {
	AppendLocalBlock(handle string) error
	SaveComments(postID string, rows []types.CommentRow) error
}

// Dispatcher wires the action collaborators together.
type Dispatcher struct {
	resolver   *resolver.Resolver
	downloader *download.Downloader
	scraper    *scraper.Scraper
	blocker    *moderation.BlockClient
	community  *moderation.CommunityClient
	blocked    *blocklist.Set
	store      Store
	log        *zap.Logger

	mu      sync.Mutex
	active  map[string]struct{}
	reports []<-chan struct{}
}

// New creates a Dispatcher. community may be nil when no backend is
// configured; reports are then skipped.
func New(res *resolver.Resolver, dl *download.Downloader, sc *scraper.Scraper,
	blocker *moderation.BlockClient, community *moderation.CommunityClient,
	blocked *blocklist.Set, store Store, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		resolver:   res,
		downloader: dl,
		scraper:    sc,
		blocker:    blocker,
		community:  community,
		blocked:    blocked,
		store:      store,
		log:        log,
		active:     make(map[string]struct{}),
	}
}

// begin claims the action slot for a post, or fails with ErrBusy.
func (d *Dispatcher) begin(action, postID string) (func(), error) {
	key := action + ":" + postID
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, busy := d.active[key]; busy {
		return nil, ErrBusy
	}
	d.active[key] = struct{}{}
	return func() {
		d.mu.Lock()
		delete(d.active, key)
		d.mu.Unlock()
	}, nil
}

// DownloadMedia saves the post's video when it has one, otherwise its images.
// The action succeeds when at least one file lands on disk.
func (d *Dispatcher) DownloadMedia(ctx context.Context, post types.Post) error {
	if !post.HasID() {
		return ErrUnknownPost
	}
	done, err := d.begin("media", post.ID)
	if err != nil {
		return err
	}
	defer done()

	if post.HasVideo {
		url, err := d.resolver.Resolve(ctx, post.ID)
		if err != nil {
			return fmt.Errorf("post %s: %w", post.ID, err)
		}
		name := fmt.Sprintf("xnote_%s_%s.mp4", post.AuthorHandle, post.ID)
		res := d.downloader.Save(ctx, download.Request{URL: url, SuggestedFilename: name})
		if !res.Success {
			return fmt.Errorf("save video: %w", res.Err)
		}
		return nil
	}

	if len(post.MediaURLs) == 0 {
		return fmt.Errorf("post %s has no media", post.ID)
	}
	saved := 0
	for i, mediaURL := range post.MediaURLs {
		name := fmt.Sprintf("xnote_%s_%s_%d.%s",
			post.AuthorHandle, post.ID, i+1, extract.FileExtension(mediaURL))
		res := d.downloader.Save(ctx, download.Request{URL: mediaURL, SuggestedFilename: name})
		if res.Success {
			saved++
		}
	}
	if saved == 0 {
		return fmt.Errorf("post %s: no images could be saved", post.ID)
	}
	d.log.Info("media download finished",
		zap.String("post_id", post.ID),
		zap.Int("saved", saved), zap.Int("total", len(post.MediaURLs)))
	return nil
}

// DownloadArchive bundles the post's text, images, and video into one zip.
// A video that fails to resolve is left out rather than failing the bundle.
func (d *Dispatcher) DownloadArchive(ctx context.Context, post types.Post) error {
	if !post.HasID() {
		return ErrUnknownPost
	}
	done, err := d.begin("archive", post.ID)
	if err != nil {
		return err
	}
	defer done()

	var videoURL string
	if post.HasVideo {
		url, err := d.resolver.Resolve(ctx, post.ID)
		if err != nil {
			d.log.Warn("archive: video resolution failed, bundling without it",
				zap.String("post_id", post.ID), zap.Error(err))
		} else {
			videoURL = url
		}
	}

	data, err := d.downloader.BuildArchive(ctx, post, videoURL)
	if err != nil {
		return fmt.Errorf("build archive: %w", err)
	}
	name := fmt.Sprintf("xnote_%s_%s.zip", post.AuthorHandle, post.ID)
	res := d.downloader.SaveBytes(name, data)
	if !res.Success {
		return fmt.Errorf("save archive: %w", res.Err)
	}
	return nil
}

// DownloadComments scrapes the post's reply thread, archives the rows, and
// writes the CSV export. Rows collected before a scrape error are still
// exported.
func (d *Dispatcher) DownloadComments(ctx context.Context, post types.Post, progress scraper.Progress) error {
	if !post.HasID() {
		return ErrUnknownPost
	}
	done, err := d.begin("comments", post.ID)
	if err != nil {
		return err
	}
	defer done()

	rows, scrapeErr := d.scraper.Scrape(ctx, post.ID, progress)
	if errors.Is(scrapeErr, scraper.ErrActive) {
		return scrapeErr
	}
	if len(rows) == 0 {
		if scrapeErr != nil {
			return fmt.Errorf("scrape thread %s: %w", post.ID, scrapeErr)
		}
		return fmt.Errorf("thread %s yielded no comments", post.ID)
	}
	if scrapeErr != nil {
		d.log.Warn("scrape ended early, exporting partial results",
			zap.String("post_id", post.ID), zap.Int("rows", len(rows)), zap.Error(scrapeErr))
	}

	if err := d.store.SaveComments(post.ID, rows); err != nil {
		d.log.Warn("comment archive write failed",
			zap.String("post_id", post.ID), zap.Error(err))
	}

	csvText, err := export.ToCSV(rows)
	if err != nil {
		return fmt.Errorf("render csv: %w", err)
	}
	res := d.downloader.SaveBytes(export.CommentsFilename(post.ID), []byte(csvText))
	if !res.Success {
		return fmt.Errorf("save csv: %w", res.Err)
	}
	return nil
}

// BlockUser blocks the post's author on X. Independently of the block's
// outcome the handle joins the local blocklist and a community report goes
// out, so a flaky block call never loses the local record. ErrNeedsLogin
// passes through so callers can prompt for re-authentication.
func (d *Dispatcher) BlockUser(ctx context.Context, post types.Post) error {
	if post.AuthorHandle == "" || post.AuthorHandle == types.UnknownSentinel {
		return ErrUnknownPost
	}
	done, err := d.begin("block", post.AuthorHandle)
	if err != nil {
		return err
	}
	defer done()

	blockErr := d.blocker.Block(ctx, post.AuthorHandle)

	d.blocked.AddLocal(post.AuthorHandle)
	if err := d.store.AppendLocalBlock(post.AuthorHandle); err != nil {
		d.log.Warn("local blocklist write failed",
			zap.String("handle", post.AuthorHandle), zap.Error(err))
	}
	if d.community != nil {
		report := d.community.ReportAsync(context.WithoutCancel(ctx), post.AuthorHandle, "blocked via xnote")
		d.mu.Lock()
		d.reports = append(d.reports, report)
		d.mu.Unlock()
	}

	if blockErr != nil {
		return fmt.Errorf("block @%s: %w", post.AuthorHandle, blockErr)
	}
	return nil
}

// Flush waits for every in-flight community report. The report never affects
// a block's outcome, but a caller that exits right after BlockUser must flush
// or the request dies with the process.
func (d *Dispatcher) Flush() {
	d.mu.Lock()
	pending := d.reports
	d.reports = nil
	d.mu.Unlock()
	for _, report := range pending {
		<-report
	}
}
