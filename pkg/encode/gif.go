package encode

import (
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"io"
	"math"

	"github.com/cellmorph/cellmorph/pkg/anim"
	"github.com/cellmorph/cellmorph/pkg/errors"
)

// WriteGIF encodes the stream as an animated GIF. Frames are quantized to
// the Plan 9 palette with Floyd-Steinberg dithering. GIF delays have
// centisecond resolution, so the effective frame rate is fps rounded to the
// nearest 1/100s.
func WriteGIF(w io.Writer, s *anim.Stream, fps int) error {
	if fps <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "fps must be positive, got %d", fps)
	}
	delay := int(math.Round(100 / float64(fps)))
	if delay < 1 {
		delay = 1
	}

	out := &gif.GIF{}
	for frame := range s.Frames() {
		p := image.NewPaletted(frame.Rect, palette.Plan9)
		draw.FloydSteinberg.Draw(p, frame.Rect, frame, image.Point{})
		out.Image = append(out.Image, p)
		out.Delay = append(out.Delay, delay)
	}
	if err := s.Err(); err != nil {
		return err
	}
	if len(out.Image) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "stream delivered no frames")
	}
	if err := gif.EncodeAll(w, out); err != nil {
		return errors.Wrap(errors.ErrCodeEncode, err, "gif encoding failed")
	}
	return nil
}
