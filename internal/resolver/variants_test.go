package resolver

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xnotehq/xnote/internal/types"
)

func decode(t *testing.T, raw string) map[string]any {
	t.Helper()
	var data map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &data))
	return data
}

func TestFindVariants_Locations(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "top-level video",
			body: `{"video": {"variants": [{"type": "video/mp4", "src": "https://v/a.mp4"}]}}`,
			want: "https://v/a.mp4",
		},
		{
			name: "mediaDetails video_info",
			body: `{"mediaDetails": [{"video_info": {"variants": [{"content_type": "video/mp4", "url": "https://v/b.mp4"}]}}]}`,
			want: "https://v/b.mp4",
		},
		{
			name: "quoted tweet video",
			body: `{"quoted_tweet": {"video": {"variants": [{"type": "video/mp4", "src": "https://v/c.mp4"}]}}}`,
			want: "https://v/c.mp4",
		},
		{
			name: "mediaEntity video_info",
			body: `{"mediaEntity": {"video_info": {"variants": [{"content_type": "video/mp4", "url": "https://v/d.mp4"}]}}}`,
			want: "https://v/d.mp4",
		},
		{
			name: "extended entities media",
			body: `{"extended_entities": {"media": [{"video_info": {"variants": [{"content_type": "video/mp4", "url": "https://v/e.mp4"}]}}]}}`,
			want: "https://v/e.mp4",
		},
		{
			name: "entities media",
			body: `{"entities": {"media": [{"video_info": {"variants": [{"content_type": "video/mp4", "url": "https://v/f.mp4"}]}}]}}`,
			want: "https://v/f.mp4",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			variants := findVariants(decode(t, tt.body))
			require.NotEmpty(t, variants)
			assert.Equal(t, tt.want, variants[0].Src)
		})
	}
}

func TestFindVariants_PriorityOrder(t *testing.T) {
	// Both locations populated: the earlier one wins.
	body := `{
		"video": {"variants": [{"type": "video/mp4", "src": "https://v/primary.mp4"}]},
		"mediaDetails": [{"video_info": {"variants": [{"content_type": "video/mp4", "url": "https://v/secondary.mp4"}]}}]
	}`
	variants := findVariants(decode(t, body))
	require.NotEmpty(t, variants)
	assert.Equal(t, "https://v/primary.mp4", variants[0].Src)
}

func TestFindVariants_Tombstone(t *testing.T) {
	assert.Nil(t, findVariants(decode(t, `{"tombstone": {"text": "age restricted"}}`)))
	assert.Nil(t, findVariants(decode(t, `{"video": {"variants": []}}`)))
}

func TestBestVariant_ByBitrate(t *testing.T) {
	best, ok := BestVariant([]types.VideoVariant{
		{Type: "application/x-mpegURL", Src: "https://v/playlist.m3u8"},
		{Type: "video/mp4", Bitrate: 832000, Src: "https://v/mid.mp4"},
		{Type: "video/mp4", Bitrate: 2176000, Src: "https://v/high.mp4"},
		{Type: "video/mp4", Bitrate: 256000, Src: "https://v/low.mp4"},
	})
	require.True(t, ok)
	assert.Equal(t, "https://v/high.mp4", best.Src)
}

func TestBestVariant_ByResolutionWhenBitrateMissing(t *testing.T) {
	best, ok := BestVariant([]types.VideoVariant{
		{Type: "video/mp4", Src: "https://v/vid/320x568/a.mp4"},
		{Type: "video/mp4", Src: "https://v/vid/1280x720/b.mp4"},
		{Type: "video/mp4", Src: "https://v/vid/480x852/c.mp4"},
	})
	require.True(t, ok)
	assert.Equal(t, "https://v/vid/1280x720/b.mp4", best.Src)
}

func TestBestVariant_TieKeepsInputOrder(t *testing.T) {
	best, ok := BestVariant([]types.VideoVariant{
		{Type: "video/mp4", Src: "https://v/no-resolution-first.mp4"},
		{Type: "video/mp4", Src: "https://v/no-resolution-second.mp4"},
	})
	require.True(t, ok)
	assert.Equal(t, "https://v/no-resolution-first.mp4", best.Src)
}

func TestBestVariant_NoMP4(t *testing.T) {
	_, ok := BestVariant([]types.VideoVariant{
		{Type: "application/x-mpegURL", Src: "https://v/playlist.m3u8"},
	})
	assert.False(t, ok)
}

func TestResolutionRank(t *testing.T) {
	assert.Equal(t, 1280*720, resolutionRank("https://v/vid/1280x720/b.mp4"))
	assert.Zero(t, resolutionRank("https://v/plain.mp4"))
}
