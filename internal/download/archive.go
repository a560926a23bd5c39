package download

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xnotehq/xnote/internal/extract"
	"github.com/xnotehq/xnote/internal/types"
)

// BuildArchive assembles an in-memory zip bundle for one post: a text file
// of the body, each media image, and the resolved video when one exists.
// Inclusion is best effort; parts that fail to fetch are logged and skipped,
// and an archive is always produced.
func (d *Downloader) BuildArchive(ctx context.Context, post types.Post, videoURL string) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	text := fmt.Sprintf("@%s\n%s\n\n%s\n", post.AuthorHandle, post.CreatedAt.Format("2006-01-02 15:04"), post.Text)
	if err := writeEntry(zw, fmt.Sprintf("%s_%s.txt", post.AuthorHandle, post.ID), []byte(text)); err != nil {
		return nil, err
	}

	for i, mediaURL := range post.MediaURLs {
		data, err := d.fetch(ctx, mediaURL)
		if err != nil {
			d.log.Warn("archive: image fetch failed",
				zap.String("url", mediaURL), zap.Error(err))
			continue
		}
		name := fmt.Sprintf("%s_%s_%d.%s", post.AuthorHandle, post.ID, i+1, extract.FileExtension(mediaURL))
		if err := writeEntry(zw, name, data); err != nil {
			return nil, err
		}
	}

	if videoURL != "" {
		data, err := d.fetch(ctx, videoURL)
		if err != nil {
			d.log.Warn("archive: video fetch failed",
				zap.String("url", videoURL), zap.Error(err))
		} else {
			name := fmt.Sprintf("%s_%s.mp4", post.AuthorHandle, post.ID)
			if err := writeEntry(zw, name, data); err != nil {
				return nil, err
			}
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}

func writeEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(SanitizeFilename(name))
	if err != nil {
		return fmt.Errorf("archive entry %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("archive entry %s: %w", name, err)
	}
	return nil
}
