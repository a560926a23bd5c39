// Package export serializes scraped comment rows to CSV. Field escaping
// follows the usual convention: values containing a comma, quote, or newline
// are wrapped in double quotes with internal quotes doubled; everything else
// is emitted unescaped.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xnotehq/xnote/internal/types"
)

// Header is the fixed CSV header row.
var Header = []string{"Username", "Date", "Text", "Likes", "Replies_Count", "Retweets_Count", "Views"}

// WriteCSV writes the header plus one row per comment.
func WriteCSV(w io.Writer, rows []types.CommentRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range rows {
		record := []string{
			r.Username,
			r.Date,
			r.Text,
			strconv.Itoa(r.Likes),
			strconv.Itoa(r.Replies),
			strconv.Itoa(r.Reposts),
			strconv.Itoa(r.Views),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row %s: %w", r.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ToCSV renders rows as a CSV string.
func ToCSV(rows []types.CommentRow) (string, error) {
	var b strings.Builder
	if err := WriteCSV(&b, rows); err != nil {
		return "", err
	}
	return b.String(), nil
}

// ParseCSV reads rows previously written by WriteCSV. The header row is
// validated and skipped.
func ParseCSV(r io.Reader) ([]types.CommentRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if strings.Join(header, ",") != strings.Join(Header, ",") {
		return nil, fmt.Errorf("unexpected header %q", strings.Join(header, ","))
	}

	var rows []types.CommentRow
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		rows = append(rows, types.CommentRow{
			Username: record[0],
			Date:     record[1],
			Text:     record[2],
			Likes:    atoiOrZero(record[3]),
			Replies:  atoiOrZero(record[4]),
			Reposts:  atoiOrZero(record[5]),
			Views:    atoiOrZero(record[6]),
		})
	}
	return rows, nil
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// CommentsFilename is the conventional save name for a thread's CSV export.
func CommentsFilename(postID string) string {
	return fmt.Sprintf("comments_%s.csv", postID)
}
