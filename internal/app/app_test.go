package app

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xnotehq/xnote/internal/blocklist"
	"github.com/xnotehq/xnote/internal/types"
)

type fakeView struct {
	url      string
	tabLabel string
	articles []string

	hidden        map[string]string
	folded        map[string]string
	foldedAuthors []string
	unfolded      []string
}

func newFakeView(url string, articles ...string) *fakeView {
	return &fakeView{
		url:      url,
		articles: articles,
		hidden:   map[string]string{},
		folded:   map[string]string{},
	}
}

func (v *fakeView) Location(context.Context) (string, error) { return v.url, nil }
func (v *fakeView) TabLabel(context.Context) (string, error) { return v.tabLabel, nil }

func (v *fakeView) CaptureNew(context.Context) ([]string, error) {
	out := v.articles
	v.articles = nil
	return out, nil
}

func (v *fakeView) HidePost(_ context.Context, postID, ruleName string) error {
	v.hidden[postID] = ruleName
	return nil
}

func (v *fakeView) FoldPost(_ context.Context, postID, handle string) error {
	v.folded[postID] = handle
	return nil
}

func (v *fakeView) FoldAuthorPosts(_ context.Context, handle string) error {
	v.foldedAuthors = append(v.foldedAuthors, handle)
	return nil
}

func (v *fakeView) UnfoldPost(_ context.Context, postID string) error {
	v.unfolded = append(v.unfolded, postID)
	return nil
}

type fakeSettings struct {
	settings   types.FilterSettings
	shield     bool
	onSettings []func(types.FilterSettings)
	onShield   []func(bool)
}

func (f *fakeSettings) FilterSettings() (types.FilterSettings, error) { return f.settings, nil }
func (f *fakeSettings) ShieldEnabled() bool                           { return f.shield }

func (f *fakeSettings) OnSettingsChange(fn func(types.FilterSettings)) {
	f.onSettings = append(f.onSettings, fn)
}

func (f *fakeSettings) OnShieldToggle(fn func(bool)) {
	f.onShield = append(f.onShield, fn)
}

func (f *fakeSettings) save(s types.FilterSettings) {
	f.settings = s
	for _, fn := range f.onSettings {
		fn(s)
	}
}

func (f *fakeSettings) setShield(enabled bool) {
	f.shield = enabled
	for _, fn := range f.onShield {
		fn(enabled)
	}
}

type fakeRefresher struct{ calls int }

func (r *fakeRefresher) Refresh(context.Context) { r.calls++ }

func article(id, handle, text string) string {
	return fmt.Sprintf(`<article data-testid="tweet">
		<a href="/u/status/%s"><time datetime="2024-01-01T00:00:00.000Z"></time></a>
		<a href="/%s">x</a>
		<div data-testid="tweetText">%s</div>
	</article>`, id, handle, text)
}

func enabledSettings(rules ...types.FilterRule) types.FilterSettings {
	s := types.DefaultFilterSettings()
	s.Enabled = true
	s.Rules = rules
	return s
}

func TestDiscoveryPass_HidesRuleMatches(t *testing.T) {
	view := newFakeView("https://x.com/home",
		article("1", "alice", "a perfectly fine post"),
		article("2", "bob", "crypto giveaway inside"),
	)
	settings := &fakeSettings{settings: enabledSettings(
		types.FilterRule{ID: "r1", Name: "crypto", Pattern: "crypto", Enabled: true},
	)}

	p, err := New(view, blocklist.NewSet(nil), settings, nil, zap.NewNop())
	require.NoError(t, err)

	p.DiscoveryPass(context.Background())

	assert.Empty(t, view.folded)
	require.Len(t, view.hidden, 1)
	assert.Equal(t, "crypto", view.hidden["2"])
}

func TestDiscoveryPass_FoldsBlockedAuthors(t *testing.T) {
	view := newFakeView("https://x.com/home",
		article("1", "alice", "hello"),
		article("2", "known_spammer", "buy now"),
	)
	settings := &fakeSettings{settings: types.DefaultFilterSettings(), shield: true}

	p, err := New(view, blocklist.NewSet([]string{"Known_Spammer"}), settings, nil, zap.NewNop())
	require.NoError(t, err)

	p.DiscoveryPass(context.Background())

	require.Len(t, view.folded, 1)
	assert.Equal(t, "known_spammer", view.folded["2"])
	assert.Empty(t, view.hidden)
}

func TestDiscoveryPass_FoldsBlockedAuthorWithoutStatusLink(t *testing.T) {
	noStatusLink := `<article data-testid="tweet">
		<a href="/known_spammer">x</a>
		<div data-testid="tweetText">buy now</div>
	</article>`
	view := newFakeView("https://x.com/home", noStatusLink)
	settings := &fakeSettings{settings: types.DefaultFilterSettings(), shield: true}

	p, err := New(view, blocklist.NewSet([]string{"known_spammer"}), settings, nil, zap.NewNop())
	require.NoError(t, err)

	p.DiscoveryPass(context.Background())

	assert.Equal(t, []string{"known_spammer"}, view.foldedAuthors,
		"a post with no extractable id still folds, addressed by author")
	assert.Empty(t, view.folded)
}

func TestDiscoveryPass_ShieldOffSkipsFolding(t *testing.T) {
	view := newFakeView("https://x.com/home",
		article("2", "known_spammer", "buy now"),
	)
	settings := &fakeSettings{settings: types.DefaultFilterSettings(), shield: false}

	p, err := New(view, blocklist.NewSet([]string{"known_spammer"}), settings, nil, zap.NewNop())
	require.NoError(t, err)

	p.DiscoveryPass(context.Background())
	assert.Empty(t, view.folded)
}

func TestDiscoveryPass_MainPostExempt(t *testing.T) {
	view := newFakeView("https://x.com/known_spammer/status/2",
		article("2", "known_spammer", "the post being read"),
	)
	settings := &fakeSettings{settings: types.DefaultFilterSettings(), shield: true}

	p, err := New(view, blocklist.NewSet([]string{"known_spammer"}), settings, nil, zap.NewNop())
	require.NoError(t, err)

	p.DiscoveryPass(context.Background())
	assert.Empty(t, view.folded, "the addressed post is never folded")
}

func TestDiscoveryPass_WhitelistWins(t *testing.T) {
	s := enabledSettings(types.FilterRule{ID: "r1", Name: "crypto", Pattern: "crypto", Enabled: true})
	s.WhitelistUsers = []string{"trusted"}

	view := newFakeView("https://x.com/home",
		article("1", "trusted", "crypto analysis, but from a friend"),
	)
	settings := &fakeSettings{settings: s}

	p, err := New(view, blocklist.NewSet(nil), settings, nil, zap.NewNop())
	require.NoError(t, err)

	p.DiscoveryPass(context.Background())
	assert.Empty(t, view.hidden)
}

func TestDiscoveryPass_BlockedBeatsFilter(t *testing.T) {
	view := newFakeView("https://x.com/home",
		article("1", "known_spammer", "crypto spam from a blocked account"),
	)
	settings := &fakeSettings{
		settings: enabledSettings(types.FilterRule{ID: "r1", Name: "crypto", Pattern: "crypto", Enabled: true}),
		shield:   true,
	}

	p, err := New(view, blocklist.NewSet([]string{"known_spammer"}), settings, nil, zap.NewNop())
	require.NoError(t, err)

	p.DiscoveryPass(context.Background())
	assert.Len(t, view.folded, 1, "folding takes precedence over hiding")
	assert.Empty(t, view.hidden)
}

func TestSettingsChangeRebuildsEngine(t *testing.T) {
	settings := &fakeSettings{settings: types.DefaultFilterSettings()}
	view := newFakeView("https://x.com/home", article("1", "bob", "crypto post"))

	p, err := New(view, blocklist.NewSet(nil), settings, nil, zap.NewNop())
	require.NoError(t, err)

	p.DiscoveryPass(context.Background())
	assert.Empty(t, view.hidden, "filtering disabled at first")

	settings.save(enabledSettings(types.FilterRule{ID: "r1", Name: "crypto", Pattern: "crypto", Enabled: true}))

	view.articles = []string{article("2", "bob", "another crypto post")}
	p.DiscoveryPass(context.Background())
	assert.Equal(t, "crypto", view.hidden["2"], "new rules apply to later passes")
}

func TestShieldEnableTriggersRefresh(t *testing.T) {
	settings := &fakeSettings{settings: types.DefaultFilterSettings(), shield: false}
	refresher := &fakeRefresher{}
	view := newFakeView("https://x.com/home")

	_, err := New(view, blocklist.NewSet(nil), settings, refresher, zap.NewNop())
	require.NoError(t, err)

	settings.setShield(true)
	assert.Equal(t, 1, refresher.calls)

	settings.setShield(false)
	assert.Equal(t, 1, refresher.calls, "disabling does not refresh")
}

func TestShowAnyway(t *testing.T) {
	view := newFakeView("https://x.com/home")
	settings := &fakeSettings{settings: types.DefaultFilterSettings()}

	p, err := New(view, blocklist.NewSet(nil), settings, nil, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, p.ShowAnyway(context.Background(), "42"))
	assert.Equal(t, []string{"42"}, view.unfolded)
}
