package extract

// X.com DOM selectors.
// These are isolated here because X changes their DOM frequently.
// Update these when extraction breaks.

const (
	// Post container and content
	PostArticle = `article[data-testid="tweet"]`
	PostText    = `[data-testid="tweetText"]`
	Timestamp   = `time`
	StatusLink  = `a[href*="/status/"]`

	// Media
	VideoPlayer = `video, [data-testid="videoComponent"]`
	PhotoImage  = `img`

	// Engagement controls (counts live in their aria-labels)
	ReplyAction   = `[data-testid="reply"]`
	RepostAction  = `[data-testid="retweet"]`
	LikeAction    = `[data-testid="like"], [data-testid="unlike"]`
	AnalyticsLink = `a[href*="/analytics"]`

	// Post type indicators
	SocialContext = `[data-testid="socialContext"]`
	QuotedPost    = `[data-testid="quoteTweet"]`
	UserName      = `[data-testid="User-Name"]`

	// Page chrome
	TabList     = `[role="tablist"]`
	SelectedTab = `[aria-selected="true"]`
	ActionBar   = `[role="group"]`
)

// MediaHost is the path fragment identifying first-party media storage.
const MediaHost = "pbs.twimg.com/media"
