// Package imageio loads images into normalized pixel buffers.
//
// Loading follows a fixed recipe: decode, center-crop to the largest square,
// then Lanczos-resize to the requested working size. JPEG, PNG, GIF, TIFF and
// BMP inputs are handled by the imaging library's decoders.
package imageio

import (
	"image"
	"io"
	"os"

	"github.com/disintegration/imaging"

	"github.com/cellmorph/cellmorph/pkg/errors"
	"github.com/cellmorph/cellmorph/pkg/grid"
)

// Load reads the image at path and returns it as a size×size buffer with
// channel values in [0, 1].
func Load(path string, size int) (*grid.Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "image not found at %s", path)
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "could not open image at %s", path)
	}
	defer f.Close()
	return Decode(f, size)
}

// Decode reads an encoded image from r and returns it as a size×size buffer.
func Decode(r io.Reader, size int) (*grid.Buffer, error) {
	if size <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "working size must be positive, got %d", size)
	}
	img, err := imaging.Decode(r)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "could not decode image")
	}
	return FromImage(img, size)
}

// FromImage center-crops a decoded image to its largest square, resizes it to
// size×size and converts it to a buffer.
func FromImage(img image.Image, size int) (*grid.Buffer, error) {
	b := img.Bounds()
	side := b.Dx()
	if b.Dy() < side {
		side = b.Dy()
	}
	if side == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "image has no pixels")
	}
	square := imaging.CropCenter(img, side, side)
	resized := imaging.Resize(square, size, size, imaging.Lanczos)
	return grid.FromImage(resized)
}
