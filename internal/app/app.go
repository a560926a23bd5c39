// Package app coordinates the discovery pipeline: it pulls newly rendered
// articles out of the page, classifies them, and applies blocklist folding
// and rule-based hiding. It owns the live filter engine and the merged
// blocklist and reacts to settings changes from the store.
package app

import (
	"context"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/xnotehq/xnote/internal/blocklist"
	"github.com/xnotehq/xnote/internal/classify"
	"github.com/xnotehq/xnote/internal/extract"
	"github.com/xnotehq/xnote/internal/filter"
	"github.com/xnotehq/xnote/internal/types"
)

// View is the slice of the browser session the pipeline drives.
type View interface {
	Location(ctx context.Context) (string, error)
	TabLabel(ctx context.Context) (string, error)
	CaptureNew(ctx context.Context) ([]string, error)
	HidePost(ctx context.Context, postID, ruleName string) error
	FoldPost(ctx context.Context, postID, handle string) error
	FoldAuthorPosts(ctx context.Context, handle string) error
	UnfoldPost(ctx context.Context, postID string) error
}

// SettingsSource is the store surface the pipeline subscribes to.
type SettingsSource interface {
	FilterSettings() (types.FilterSettings, error)
	ShieldEnabled() bool
	OnSettingsChange(func(types.FilterSettings))
	OnShieldToggle(func(bool))
}

// Refresher triggers an immediate community-blocklist pull.
type Refresher interface {
	Refresh(ctx context.Context)
}

// Pipeline runs discovery passes over the live page.
type Pipeline struct {
	view      View
	blocked   *blocklist.Set
	refresher Refresher
	log       *zap.Logger

	mu     sync.RWMutex
	engine *filter.Engine
	shield bool
}

// New wires a Pipeline to its view and store. The initial filter settings and
// shield state are loaded eagerly; later changes arrive via subscription.
func New(view View, blocked *blocklist.Set, settings SettingsSource, refresher Refresher, log *zap.Logger) (*Pipeline, error) {
	fs, err := settings.FilterSettings()
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		view:      view,
		blocked:   blocked,
		refresher: refresher,
		log:       log,
		engine:    filter.NewEngine(fs),
		shield:    settings.ShieldEnabled(),
	}

	settings.OnSettingsChange(func(fs types.FilterSettings) {
		p.mu.Lock()
		p.engine = filter.NewEngine(fs)
		p.mu.Unlock()
		p.log.Info("filter rules reloaded", zap.Int("rules", len(fs.Rules)))
	})
	settings.OnShieldToggle(func(enabled bool) {
		p.mu.Lock()
		p.shield = enabled
		p.mu.Unlock()
		if enabled && p.refresher != nil {
			// Re-enabling pulls a fresh list before the next pass folds.
			p.refresher.Refresh(context.Background())
		}
	})

	return p, nil
}

// DiscoveryPass processes every article rendered since the last pass. Each is
// classified once; blocklisted authors fold, rule matches hide. The main post
// of a detail page is exempt from both.
func (p *Pipeline) DiscoveryPass(ctx context.Context) {
	url, err := p.view.Location(ctx)
	if err != nil {
		p.log.Debug("discovery: location unavailable", zap.Error(err))
		return
	}
	label, err := p.view.TabLabel(ctx)
	if err != nil {
		label = ""
	}
	pc := classify.PageContext{URL: url, TabLabel: label}

	htmls, err := p.view.CaptureNew(ctx)
	if err != nil {
		p.log.Warn("discovery: capture failed", zap.Error(err))
		return
	}
	if len(htmls) == 0 {
		return
	}

	p.mu.RLock()
	engine, shield := p.engine, p.shield
	p.mu.RUnlock()

	var folded, hidden int
	for _, html := range htmls {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			continue
		}
		s := doc.Selection
		if classify.IsMainPost(s, pc) {
			continue
		}

		id := extract.PostID(s)
		handle := extract.AuthorHandle(s)

		if shield && handle != types.UnknownSentinel && p.blocked.Contains(handle) {
			if id == types.UnknownSentinel {
				// No status link yet; fold by author so the post does
				// not slip through unaddressed.
				if err := p.view.FoldAuthorPosts(ctx, handle); err != nil {
					p.log.Debug("fold by author failed",
						zap.String("handle", handle), zap.Error(err))
				} else {
					folded++
				}
				continue
			}
			if err := p.view.FoldPost(ctx, id, handle); err != nil {
				p.log.Debug("fold failed", zap.String("post_id", id), zap.Error(err))
			} else {
				folded++
			}
			continue
		}

		if !engine.ShouldEvaluate(s, pc) || engine.IsWhitelisted(s) {
			continue
		}
		rule, matched := engine.MatchesAny(engine.MatchText(s))
		if !matched || id == types.UnknownSentinel {
			continue
		}
		if err := p.view.HidePost(ctx, id, rule.Name); err != nil {
			p.log.Debug("hide failed", zap.String("post_id", id), zap.Error(err))
		} else {
			hidden++
		}
	}

	if folded > 0 || hidden > 0 {
		p.log.Info("discovery pass",
			zap.Int("captured", len(htmls)),
			zap.Int("folded", folded),
			zap.Int("hidden", hidden))
	}
}

// ShowAnyway restores a folded post for the rest of its on-page lifetime.
func (p *Pipeline) ShowAnyway(ctx context.Context, postID string) error {
	return p.view.UnfoldPost(ctx, postID)
}
