// Package extract pulls structured post records out of captured article HTML.
// Every accessor is best-effort: missing fields resolve to documented
// sentinels, never to errors.
package extract

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/xnotehq/xnote/internal/types"
)

var (
	handlePathRe = regexp.MustCompile(`^/([a-zA-Z0-9_]+)$`)
	handleTextRe = regexp.MustCompile(`@([a-zA-Z0-9_]+)`)
	statusRe     = regexp.MustCompile(`/status/(\d+)`)
	groupedIntRe = regexp.MustCompile(`[\d,]+`)
	extRe        = regexp.MustCompile(`\.([a-z0-9]+)$`)
)

// FromHTML parses one article subtree and extracts a Post from it.
// Malformed HTML still yields a record; all fields fall back to sentinels.
func FromHTML(html string) types.Post {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return types.Post{ID: types.UnknownSentinel, AuthorHandle: types.UnknownSentinel}
	}
	return FromSelection(doc.Selection)
}

// FromSelection extracts a Post from an already-parsed article selection.
func FromSelection(s *goquery.Selection) types.Post {
	return types.Post{
		ID:           PostID(s),
		AuthorHandle: AuthorHandle(s),
		Text:         PostBody(s),
		CreatedAt:    CreatedAt(s),
		Likes:        actionCount(s, LikeAction),
		Replies:      actionCount(s, ReplyAction),
		Reposts:      actionCount(s, RepostAction),
		Views:        viewCount(s),
		HasVideo:     HasVideo(s),
		MediaURLs:    MediaURLs(s),
	}
}

// PostID locates the post's numeric ID. The timestamp's enclosing link is
// authoritative; any status link in the subtree is the fallback.
func PostID(s *goquery.Selection) string {
	if href, ok := s.Find(Timestamp).Closest("a").Attr("href"); ok {
		if m := statusRe.FindStringSubmatch(href); m != nil {
			return m[1]
		}
	}

	id := types.UnknownSentinel
	s.Find(StatusLink).EachWithBreak(func(_ int, link *goquery.Selection) bool {
		href, _ := link.Attr("href")
		if m := statusRe.FindStringSubmatch(href); m != nil {
			id = m[1]
			return false
		}
		return true
	})
	return id
}

// AuthorHandle finds the author's @handle. Anchors whose target is a bare
// single-segment profile path win; raw text containing an @mention is the
// fallback.
func AuthorHandle(s *goquery.Selection) string {
	handle := ""
	s.Find(`a[href^="/"]`).EachWithBreak(func(_ int, link *goquery.Selection) bool {
		href, _ := link.Attr("href")
		if m := handlePathRe.FindStringSubmatch(href); m != nil {
			handle = m[1]
			return false
		}
		return true
	})
	if handle != "" {
		return handle
	}

	if m := handleTextRe.FindStringSubmatch(s.Text()); m != nil {
		return m[1]
	}
	return types.UnknownSentinel
}

// PostBody returns the post's body text, or "" when the post has none.
func PostBody(s *goquery.Selection) string {
	return strings.TrimSpace(s.Find(PostText).First().Text())
}

// CreatedAt parses the timestamp element's datetime attribute.
// A missing or unparsable timestamp yields the zero time.
func CreatedAt(s *goquery.Selection) time.Time {
	dt, ok := s.Find(Timestamp).First().Attr("datetime")
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, dt)
	if err != nil {
		return time.Time{}
	}
	return t
}

// HasVideo reports whether the subtree contains a native video element or a
// recognized player placeholder.
func HasVideo(s *goquery.Selection) bool {
	return s.Find(VideoPlayer).Length() > 0
}

// MediaURLs collects content images hosted on first-party media storage,
// normalized to their original-quality representation. Images narrower than
// 100px are avatar/icon noise and are skipped.
func MediaURLs(s *goquery.Selection) []string {
	var urls []string
	s.Find(PhotoImage).Each(func(_ int, img *goquery.Selection) {
		src, _ := img.Attr("src")
		if !strings.Contains(src, MediaHost) {
			return
		}
		if w, ok := img.Attr("width"); ok {
			if n, err := strconv.Atoi(w); err == nil && n > 0 && n < 100 {
				return
			}
		}
		urls = append(urls, OriginalQualityURL(src))
	})
	return urls
}

// OriginalQualityURL overrides the size parameter so the media host serves
// the original upload instead of a resized rendition.
func OriginalQualityURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	q.Set("name", "orig")
	u.RawQuery = q.Encode()
	return u.String()
}

// FileExtension derives a media file extension: the explicit format query
// parameter first, then the URL path suffix, defaulting to jpg.
func FileExtension(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "jpg"
	}
	if format := u.Query().Get("format"); format != "" {
		return format
	}
	if m := extRe.FindStringSubmatch(strings.ToLower(u.Path)); m != nil {
		return m[1]
	}
	return "jpg"
}

// actionCount reads the first integer out of an engagement control's
// aria-label, falling back to the control's abbreviated text ("1.2K").
func actionCount(s *goquery.Selection, selector string) int {
	el := s.Find(selector).First()
	if el.Length() == 0 {
		return 0
	}
	if label, ok := el.Attr("aria-label"); ok {
		if n, ok := firstGroupedInt(label); ok {
			return n
		}
	}
	return ParseMetric(el.Text())
}

// viewCount reads the view counter from the analytics link's aria-label.
func viewCount(s *goquery.Selection) int {
	label, ok := s.Find(AnalyticsLink).First().Attr("aria-label")
	if !ok {
		return 0
	}
	n, _ := firstGroupedInt(label)
	return n
}

// firstGroupedInt extracts the first integer in a label, stripping
// digit-grouping commas ("1,234 views" -> 1234).
func firstGroupedInt(label string) (int, bool) {
	m := groupedIntRe.FindString(label)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m, ",", ""))
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseMetric converts abbreviated metric strings like "1.2K", "5.7M", or
// "423" to integers. Unparsable input yields 0.
func ParseMetric(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	s = strings.ReplaceAll(s, ",", "")

	multiplier := 1.0
	switch {
	case strings.HasSuffix(strings.ToUpper(s), "K"):
		multiplier = 1000
		s = s[:len(s)-1]
	case strings.HasSuffix(strings.ToUpper(s), "M"):
		multiplier = 1000000
		s = s[:len(s)-1]
	}

	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int(value * multiplier)
}

// CommentRow extracts the CSV-facing reply record from an article subtree.
// A row without an ID is unusable and is reported with ok=false.
func CommentRow(s *goquery.Selection) (types.CommentRow, bool) {
	p := FromSelection(s)
	row := types.CommentRow{
		ID:       p.ID,
		Username: p.AuthorHandle,
		Text:     p.Text,
		Likes:    p.Likes,
		Replies:  p.Replies,
		Reposts:  p.Reposts,
		Views:    p.Views,
	}
	if dt, ok := s.Find(Timestamp).First().Attr("datetime"); ok {
		row.Date = dt
	}
	return row, p.HasID()
}
