// Package filter compiles user-defined match rules and tests post text
// against them, honoring scope and whitelists. Broken rules are inert, never
// fatal: an uncompilable pattern simply never matches.
package filter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/xnotehq/xnote/internal/classify"
	"github.com/xnotehq/xnote/internal/extract"
	"github.com/xnotehq/xnote/internal/types"
)

// compiledRule pairs a rule with its derived matcher. A nil matcher means the
// rule failed to compile and is permanently inert until edited.
type compiledRule struct {
	rule    types.FilterRule
	matcher *regexp.Regexp
}

// Engine holds a compiled rule set plus the whitelists, rebuilt whenever the
// settings change.
type Engine struct {
	settings types.FilterSettings
	rules    []compiledRule
	users    map[string]struct{}
	posts    map[string]struct{}
}

// NewEngine compiles the rule set in settings. Compilation failures are
// swallowed per rule; the engine is always usable.
func NewEngine(settings types.FilterSettings) *Engine {
	e := &Engine{
		settings: settings,
		users:    make(map[string]struct{}, len(settings.WhitelistUsers)),
		posts:    make(map[string]struct{}, len(settings.WhitelistPosts)),
	}
	for _, u := range settings.WhitelistUsers {
		e.users[strings.ToLower(u)] = struct{}{}
	}
	for _, id := range settings.WhitelistPosts {
		e.posts[id] = struct{}{}
	}
	for _, r := range settings.Rules {
		e.rules = append(e.rules, compiledRule{rule: r, matcher: compile(r)})
	}
	return e
}

// compile builds a rule's matcher, or nil when the rule is disabled, empty,
// or its pattern does not compile.
func compile(r types.FilterRule) *regexp.Regexp {
	if !r.Enabled || r.Pattern == "" {
		return nil
	}
	pattern := r.Pattern
	if !r.IsRegex {
		pattern = regexp.QuoteMeta(pattern)
	}
	if !r.CaseSensitive {
		pattern = "(?i)" + pattern
	}
	m, err := regexp.Compile(pattern)
	if err != nil {
		return nil
	}
	return m
}

// ValidatePattern rejects an invalid regex pattern at configuration time with
// a descriptive message, so it never reaches the matching path.
func ValidatePattern(pattern string) error {
	if _, err := regexp.Compile(pattern); err != nil {
		return fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	return nil
}

// MatchesAny returns the first enabled rule, in list order, whose matcher
// tests true against text. Empty text or an empty rule set never matches.
func (e *Engine) MatchesAny(text string) (types.FilterRule, bool) {
	if text == "" {
		return types.FilterRule{}, false
	}
	for _, cr := range e.rules {
		if cr.matcher == nil || !cr.rule.Enabled {
			continue
		}
		if cr.matcher.MatchString(text) {
			return cr.rule, true
		}
	}
	return types.FilterRule{}, false
}

// ShouldEvaluate decides whether a post is in scope for rule matching at all.
func (e *Engine) ShouldEvaluate(s *goquery.Selection, pc classify.PageContext) bool {
	if !e.settings.Enabled {
		return false
	}
	switch e.settings.Scope {
	case types.ScopeReposts:
		return classify.IsRepostOrQuote(s)
	case types.ScopeForYou:
		return pc.IsForYouFeed()
	default:
		return true
	}
}

// IsWhitelisted short-circuits visibility: a whitelisted post or author is
// never hidden regardless of rule matches.
func (e *Engine) IsWhitelisted(s *goquery.Selection) bool {
	if id := extract.PostID(s); id != types.UnknownSentinel {
		if _, ok := e.posts[id]; ok {
			return true
		}
	}
	handle := extract.AuthorHandle(s)
	if handle == types.UnknownSentinel {
		return false
	}
	_, ok := e.users[strings.ToLower(handle)]
	return ok
}

// MatchText assembles the text a post is matched against: body text nodes and
// emoji alt text in document order, then the lang-tagged block as fallback,
// then quoted-post text, then the first plausible non-mention span.
func (e *Engine) MatchText(s *goquery.Selection) string {
	var parts []string

	body := s.Find(extract.PostText).First()
	if body.Length() > 0 {
		if text := strings.TrimSpace(textWithEmoji(body)); text != "" {
			parts = append(parts, text)
		}
	}

	if len(parts) == 0 {
		if text := strings.TrimSpace(s.Find(`div[lang]`).First().Text()); text != "" {
			parts = append(parts, text)
		}
	}

	if e.settings.IncludeQuoted {
		quoted := s.Find(extract.QuotedPost).Find(extract.PostText).First()
		if quoted.Length() > 0 {
			parts = append(parts, quoted.Text())
		}
	}

	if len(parts) == 0 {
		s.Find(`div[dir="auto"] span`).EachWithBreak(func(_ int, span *goquery.Selection) bool {
			text := strings.TrimSpace(span.Text())
			if text != "" && !strings.HasPrefix(text, "@") && !strings.HasPrefix(text, "#") {
				parts = append(parts, text)
				return false
			}
			return true
		})
	}

	return strings.TrimSpace(strings.Join(parts, " "))
}

// textWithEmoji walks the body's nodes in document order, collecting text
// nodes plus the alt text of emoji images.
func textWithEmoji(s *goquery.Selection) string {
	var b strings.Builder
	var walk func(sel *goquery.Selection)
	walk = func(sel *goquery.Selection) {
		sel.Contents().Each(func(_ int, node *goquery.Selection) {
			switch goquery.NodeName(node) {
			case "#text":
				b.WriteString(node.Text())
			case "img":
				if alt, ok := node.Attr("alt"); ok {
					b.WriteString(alt)
				}
			default:
				walk(node)
			}
		})
	}
	walk(s)
	return b.String()
}
