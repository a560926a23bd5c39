package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// Visibility mutations applied to rendered articles: rule-matched posts are
// hidden outright, blocklisted authors are folded behind a warning that the
// user can override per post.

// HidePost hides the article carrying the given status ID.
func (s *Session) HidePost(ctx context.Context, postID, ruleName string) error {
	return s.twoArgJS(ctx, hidePostJS, postID, ruleName)
}

// FoldPost collapses the article's content behind a blocked-author notice.
func (s *Session) FoldPost(ctx context.Context, postID, handle string) error {
	return s.twoArgJS(ctx, foldPostJS, postID, handle)
}

// FoldAuthorPosts folds every rendered, unfolded article by the author. It
// covers articles whose status link has not rendered and so cannot be
// addressed by ID.
func (s *Session) FoldAuthorPosts(ctx context.Context, handle string) error {
	h, _ := json.Marshal(handle)
	return s.visibilityJS(ctx, "@"+handle, fmt.Sprintf(foldAuthorJS, h))
}

// UnfoldPost fully restores a folded article ("show anyway"): the content
// reappears and no hidden state remains.
func (s *Session) UnfoldPost(ctx context.Context, postID string) error {
	id, _ := json.Marshal(postID)
	return s.visibilityJS(ctx, postID, fmt.Sprintf(unfoldPostJS, id))
}

func (s *Session) twoArgJS(ctx context.Context, tmpl, postID, arg string) error {
	id, _ := json.Marshal(postID)
	extra, _ := json.Marshal(arg)
	return s.visibilityJS(ctx, postID, fmt.Sprintf(tmpl, id, extra))
}

func (s *Session) visibilityJS(ctx context.Context, postID, js string) error {
	visCtx, cancel := s.within(ctx, 10*time.Second)
	defer cancel()

	if err := chromedp.Run(visCtx, chromedp.Evaluate(js, nil)); err != nil {
		return fmt.Errorf("visibility update for %s: %w", postID, err)
	}
	return nil
}

// findArticleJS locates the article whose status link carries the ID.
const findArticleJS = `
	const find = (id) => {
		for (const el of document.querySelectorAll('article[data-testid="tweet"]')) {
			const link = el.querySelector('a[href*="/status/"]');
			if (link && link.href.includes('/status/' + id)) return el;
		}
		return null;
	};`

const hidePostJS = `(() => {` + findArticleJS + `
	const el = find(%s);
	const rule = %s;
	if (!el || el.dataset.xnoteHidden) return;
	el.dataset.xnoteHidden = rule || '1';
	el.style.display = 'none';
})()`

// foldElementJS collapses one article behind the blocklist notice.
const foldElementJS = `
	const fold = (el, handle) => {
		if (el.dataset.xnoteFolded) return;
		el.dataset.xnoteFolded = '1';
		for (const child of el.children) child.style.display = 'none';
		const notice = document.createElement('div');
		notice.className = 'xnote-fold-notice';
		notice.textContent = '@' + handle + ' is on your blocklist.';
		el.appendChild(notice);
	};`

const foldPostJS = `(() => {` + findArticleJS + foldElementJS + `
	const el = find(%s);
	if (el) fold(el, %s);
})()`

const foldAuthorJS = `(() => {` + foldElementJS + `
	const handle = %s;
	const wanted = handle.toLowerCase();
	for (const el of document.querySelectorAll('article[data-testid="tweet"]')) {
		if (el.dataset.xnoteFolded) continue;
		const link = el.querySelector('div[data-testid="User-Name"] a[href^="/"]');
		if (!link) continue;
		const name = link.getAttribute('href').slice(1).split(/[/?]/)[0];
		if (name.toLowerCase() === wanted) fold(el, handle);
	}
})()`

const unfoldPostJS = `(() => {` + findArticleJS + `
	const el = find(%s);
	if (!el || !el.dataset.xnoteFolded) return;
	delete el.dataset.xnoteFolded;
	const notice = el.querySelector('.xnote-fold-notice');
	if (notice) notice.remove();
	for (const child of el.children) child.style.display = '';
})()`
