// Package encode persists frame streams as GIF or video files.
//
// GIF encoding is done in-process with the standard library. Everything else
// is handed to an external ffmpeg binary fed raw frames over stdin, so the
// stream is consumed as it is rendered and no frame sequence is ever held in
// memory for video output. Container selection is by file extension; it is
// policy, not a rendering concern.
package encode

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/cellmorph/cellmorph/pkg/anim"
	"github.com/cellmorph/cellmorph/pkg/errors"
)

// Write encodes the stream to path, choosing the container by extension:
// ".gif" uses the built-in GIF encoder, anything else goes through ffmpeg.
func Write(ctx context.Context, path string, s *anim.Stream, fps int) error {
	if strings.EqualFold(filepath.Ext(path), ".gif") {
		f, err := os.Create(path)
		if err != nil {
			return errors.Wrap(errors.ErrCodeEncode, err, "could not create %s", path)
		}
		if err := WriteGIF(f, s, fps); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return errors.Wrap(errors.ErrCodeEncode, err, "could not close %s", path)
		}
		return nil
	}
	return WriteVideo(ctx, path, s, fps)
}
