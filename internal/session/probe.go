package session

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// Page-data probe: some videos never appear in the syndication API, but the
// page keeps the raw tweet data in its framework state. The probe walks the
// main article's internal props and returns a pruned, JSON-safe copy; the
// resolver then searches that for variant URLs.

// PageData serializes a pruned copy of the current detail page's framework
// state rooted at the main article.
func (s *Session) PageData(ctx context.Context) (any, error) {
	probeCtx, cancel := s.within(ctx, 15*time.Second)
	defer cancel()

	var data any
	if err := chromedp.Run(probeCtx, chromedp.Evaluate(pageDataJS, &data)); err != nil {
		return nil, fmt.Errorf("probe page data: %w", err)
	}
	if data == nil {
		return nil, fmt.Errorf("no framework state found on page")
	}
	return data, nil
}

// pageDataJS prune-copies the article's internal props. Only keys the
// resolver's search follows survive, depth is capped, arrays are truncated,
// and anything non-serializable (functions, DOM nodes, cycles) is dropped.
const pageDataJS = `(() => {
	const keep = new Set(['tweet', 'result', 'media', 'props', 'children',
		'memoizedProps', 'stateNode', 'legacy', 'extended_entities',
		'video_info', 'variants', 'entities', 'url', 'content_type',
		'bitrate', 'src', 'type']);
	const maxDepth = 20;
	const maxItems = 10;

	const prune = (v, depth, seen) => {
		if (depth > maxDepth || v == null) return null;
		const t = typeof v;
		if (t === 'string' || t === 'number' || t === 'boolean') return v;
		if (t !== 'object') return null;
		if (v instanceof Node || v instanceof Window) return null;
		if (seen.has(v)) return null;
		seen.add(v);
		if (Array.isArray(v)) {
			const out = [];
			for (const item of v.slice(0, maxItems)) {
				const p = prune(item, depth + 1, seen);
				if (p !== null) out.push(p);
			}
			return out.length ? out : null;
		}
		const out = {};
		let any = false;
		for (const k of Object.keys(v)) {
			if (!keep.has(k)) continue;
			let p;
			try { p = prune(v[k], depth + 1, seen); } catch { continue; }
			if (p !== null) { out[k] = p; any = true; }
		}
		return any ? out : null;
	};

	const article = document.querySelector('article[data-testid="tweet"]');
	if (!article) return null;
	for (const el of [article, article.parentElement]) {
		if (!el) continue;
		for (const k of Object.keys(el)) {
			if (!k.startsWith('__reactProps') && !k.startsWith('__reactFiber')) continue;
			const pruned = prune(el[k], 0, new WeakSet());
			if (pruned !== null) return pruned;
		}
	}
	return null;
})()`
