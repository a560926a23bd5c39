package types

import "time"

// UnknownSentinel marks a field the extractor could not resolve. A post whose
// ID carries this value cannot be correlated for downloads or scraping.
const UnknownSentinel = "unknown"

// Post represents one X post extracted from a rendered article subtree.
type Post struct {
	ID           string    `json:"id"`
	AuthorHandle string    `json:"author_handle"`
	Text         string    `json:"text"`
	CreatedAt    time.Time `json:"created_at"`
	Likes        int       `json:"likes"`
	Replies      int       `json:"replies"`
	Reposts      int       `json:"reposts"`
	Views        int       `json:"views"`
	HasVideo     bool      `json:"has_video"`
	MediaURLs    []string  `json:"media_urls"`
}

// HasID reports whether the post carries a usable ID.
func (p Post) HasID() bool {
	return p.ID != "" && p.ID != UnknownSentinel
}

// CommentRow is one scraped reply, in CSV column order.
type CommentRow struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Date     string `json:"date"`
	Text     string `json:"text"`
	Likes    int    `json:"likes"`
	Replies  int    `json:"replies"`
	Reposts  int    `json:"reposts"`
	Views    int    `json:"views"`
}

// FilterScope selects which posts a rule set applies to.
type FilterScope string

const (
	ScopeAll     FilterScope = "all"
	ScopeReposts FilterScope = "reposts"
	ScopeForYou  FilterScope = "foryou"
)

// FilterRule is one user-defined match rule. The compiled matcher is derived
// at load time and never persisted.
type FilterRule struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Pattern       string `json:"pattern"`
	IsRegex       bool   `json:"is_regex"`
	CaseSensitive bool   `json:"case_sensitive"`
	Enabled       bool   `json:"enabled"`
}

// FilterSettings is the process-wide filtering configuration.
type FilterSettings struct {
	Enabled        bool         `json:"enabled"`
	Scope          FilterScope  `json:"scope"`
	Rules          []FilterRule `json:"rules"`
	WhitelistUsers []string     `json:"whitelist_users"`
	WhitelistPosts []string     `json:"whitelist_posts"`
	IncludeQuoted  bool         `json:"include_quoted"`
}

// DefaultFilterSettings mirrors a fresh install: filtering off, all scopes,
// quoted-post text included in matching.
func DefaultFilterSettings() FilterSettings {
	return FilterSettings{
		Enabled:       false,
		Scope:         ScopeAll,
		IncludeQuoted: true,
	}
}

// VideoVariant is one encoded rendition of a video asset as reported by the
// syndication endpoint or the in-page data probe.
type VideoVariant struct {
	Type    string `json:"type"`
	Bitrate int    `json:"bitrate,omitempty"`
	Src     string `json:"src"`
}
