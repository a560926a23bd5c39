package export

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xnotehq/xnote/internal/types"
)

func TestToCSV_Escaping(t *testing.T) {
	rows := []types.CommentRow{
		{ID: "1", Username: "plain", Date: "2024-05-14T09:30:00.000Z", Text: "no escaping needed", Likes: 1},
		{ID: "2", Username: "quoter", Text: `she said "hi", then left`, Replies: 2},
		{ID: "3", Username: "multiline", Text: "line one\nline two", Views: 9},
	}

	out, err := ToCSV(rows)
	require.NoError(t, err)

	lines := strings.SplitN(out, "\n", 2)
	assert.Equal(t, "Username,Date,Text,Likes,Replies_Count,Retweets_Count,Views", lines[0])
	assert.Contains(t, out, "no escaping needed", "unremarkable values stay unquoted")
	assert.Contains(t, out, `"she said ""hi"", then left"`, "quotes double, field wraps")
	assert.Contains(t, out, "\"line one\nline two\"", "newlines stay inside a quoted field")
}

func TestCSV_RoundTrip(t *testing.T) {
	rows := []types.CommentRow{
		{Username: "a", Date: "2024-01-01", Text: "first, with comma", Likes: 10, Replies: 2, Reposts: 3, Views: 400},
		{Username: "b", Date: "2024-01-02", Text: `quoted "text"`, Likes: 0, Replies: 0, Reposts: 0, Views: 0},
	}

	out, err := ToCSV(rows)
	require.NoError(t, err)

	parsed, err := ParseCSV(strings.NewReader(out))
	require.NoError(t, err)

	// IDs are not part of the CSV format and do not survive the round trip.
	if diff := cmp.Diff(rows, parsed); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestParseCSV_RejectsForeignHeader(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("Name,Value\nx,1\n"))
	assert.Error(t, err)
}

func TestParseCSV_RejectsShortRows(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("Username,Date,Text,Likes,Replies_Count,Retweets_Count,Views\nonly,three,fields\n"))
	assert.Error(t, err)
}

func TestCommentsFilename(t *testing.T) {
	assert.Equal(t, "comments_1790000000000000001.csv", CommentsFilename("1790000000000000001"))
}
