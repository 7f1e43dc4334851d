package encode

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/cellmorph/cellmorph/pkg/anim"
	"github.com/cellmorph/cellmorph/pkg/errors"
)

// ffmpegBin is the encoder binary; overridable for tests.
var ffmpegBin = "ffmpeg"

// WriteVideo pipes raw RGBA frames into ffmpeg and encodes H.264 video at
// path. The stream is consumed frame by frame, so encoding starts before
// rendering finishes.
func WriteVideo(ctx context.Context, path string, s *anim.Stream, fps int) error {
	if fps <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "fps must be positive, got %d", fps)
	}
	if _, err := exec.LookPath(ffmpegBin); err != nil {
		return errors.Wrap(errors.ErrCodeNotFound, err, "%s not found in PATH (required for video output)", ffmpegBin)
	}

	// The frame size is only known once the first frame arrives.
	first, ok := <-s.Frames()
	if !ok {
		if err := s.Err(); err != nil {
			return err
		}
		return errors.New(errors.ErrCodeInvalidInput, "stream delivered no frames")
	}
	w := first.Rect.Dx()
	h := first.Rect.Dy()

	cmd := exec.CommandContext(ctx, ffmpegBin,
		"-y",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", w, h),
		"-framerate", fmt.Sprintf("%d", fps),
		"-i", "-",
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		path,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return errors.Wrap(errors.ErrCodeEncode, err, "ffmpeg stdin")
	}
	if err := cmd.Start(); err != nil {
		return errors.Wrap(errors.ErrCodeEncode, err, "starting ffmpeg")
	}

	writeErr := func() error {
		defer stdin.Close()
		if _, err := stdin.Write(first.Pix); err != nil {
			return err
		}
		for frame := range s.Frames() {
			if _, err := stdin.Write(frame.Pix); err != nil {
				return err
			}
		}
		return s.Err()
	}()

	if err := cmd.Wait(); err != nil {
		return errors.Wrap(errors.ErrCodeEncode, err, "ffmpeg failed: %s", lastLine(stderr.Bytes()))
	}
	if writeErr != nil {
		return errors.Wrap(errors.ErrCodeEncode, writeErr, "feeding frames to ffmpeg")
	}
	return nil
}

// lastLine extracts the final non-empty stderr line, which is where ffmpeg
// states its actual complaint.
func lastLine(b []byte) string {
	lines := bytes.Split(bytes.TrimSpace(b), []byte("\n"))
	if len(lines) == 0 {
		return ""
	}
	return string(bytes.TrimSpace(lines[len(lines)-1]))
}
