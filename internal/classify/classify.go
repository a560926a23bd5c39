// Package classify decides properties of an extracted post: main post vs.
// reply, repost/quote, and which timeline tab the page is showing. All
// functions are pure over a DOM snapshot.
package classify

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/xnotehq/xnote/internal/extract"
	"github.com/xnotehq/xnote/internal/types"
)

var (
	statusPageRe = regexp.MustCompile(`/status/(\d+)`)
	fontSizeRe   = regexp.MustCompile(`font-size:\s*(\d+)`)
)

// Main posts render body text at 17px and up; replies render smaller.
const mainPostFontSize = 17

// PageContext carries the page-level facts classification needs: the current
// URL and the label of the selected timeline tab.
type PageContext struct {
	URL      string
	TabLabel string
}

// StatusID returns the post ID addressed by the page URL, or "" when the page
// is not a detail view.
func (pc PageContext) StatusID() string {
	m := statusPageRe.FindStringSubmatch(pc.URL)
	if m == nil {
		return ""
	}
	return m[1]
}

// IsDetailPage reports whether the page addresses a single post.
func (pc PageContext) IsDetailPage() bool {
	return pc.StatusID() != ""
}

// IsForYouFeed inspects the selected tab's label for the algorithmic-feed
// phrase. Detection failure means "not the algorithmic feed".
func (pc PageContext) IsForYouFeed() bool {
	label := strings.ToLower(pc.TabLabel)
	return strings.Contains(label, "for you") || strings.Contains(label, "为你推荐")
}

// IsMainPost reports whether the article is the page's addressed post. The ID
// match is authoritative; on detail pages an article rendering body text at
// main-post size is accepted as a fallback when IDs are unavailable.
func IsMainPost(s *goquery.Selection, pc PageContext) bool {
	id := extract.PostID(s)
	if target := pc.StatusID(); target != "" && id != types.UnknownSentinel && id == target {
		return true
	}

	if !pc.IsDetailPage() {
		return false
	}
	style, ok := s.Find(extract.PostText).First().Attr("style")
	if !ok {
		return false
	}
	m := fontSizeRe.FindStringSubmatch(style)
	if m == nil {
		return false
	}
	size, _ := strconv.Atoi(m[1])
	return size >= mainPostFontSize
}

// HasVideo reports whether the article contains a video player.
func HasVideo(s *goquery.Selection) bool {
	return extract.HasVideo(s)
}

// IsRepostOrQuote reports whether the article is a repost (social-context
// annotation) or carries an embedded quoted post.
func IsRepostOrQuote(s *goquery.Selection) bool {
	context := strings.ToLower(s.Find(extract.SocialContext).First().Text())
	if strings.Contains(context, "retweet") || strings.Contains(context, "repost") || strings.Contains(context, "转推") {
		return true
	}
	return s.Find(extract.QuotedPost).Length() > 0
}
