package anim

import (
	"image"
	"math"

	"github.com/disintegration/imaging"

	"github.com/cellmorph/cellmorph/pkg/grid"
)

// particle is a cached render primitive: one cell's pixel block resampled to
// the particle size, with a binary alpha mask (all-opaque for squares, a disc
// for circles). Particles are immutable once built.
type particle struct {
	img *image.NRGBA
}

// newParticle resamples a cell to w×h with Lanczos filtering and applies the
// shape mask.
func newParticle(c *grid.Cell, w, h int, shape Shape) *particle {
	src := image.NewNRGBA(image.Rect(0, 0, c.Width, c.Height))
	i := 0
	for y := 0; y < c.Height; y++ {
		for x := 0; x < c.Width; x++ {
			src.Pix[i] = quantize(c.Pix[(y*c.Width+x)*3])
			src.Pix[i+1] = quantize(c.Pix[(y*c.Width+x)*3+1])
			src.Pix[i+2] = quantize(c.Pix[(y*c.Width+x)*3+2])
			src.Pix[i+3] = 0xff
			i += 4
		}
	}

	img := imaging.Resize(src, w, h, imaging.Lanczos)
	if shape == ShapeCircle {
		maskDisc(img)
	}
	return &particle{img: img}
}

// maskDisc zeroes the alpha of every pixel whose center falls outside the
// inscribed ellipse.
func maskDisc(img *image.NRGBA) {
	w := img.Rect.Dx()
	h := img.Rect.Dy()
	cx := float64(w) / 2
	cy := float64(h) / 2
	rx := float64(w) / 2
	ry := float64(h) / 2
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx := (float64(x) + 0.5 - cx) / rx
			dy := (float64(y) + 0.5 - cy) / ry
			if dx*dx+dy*dy > 1 {
				img.Pix[(y*w+x)*4+3] = 0
			}
		}
	}
}

// blend returns a new image mixing src toward tgt by the given fraction on
// the RGB channels. The alpha channel (the shape mask, identical on both) is
// taken from src.
func blend(src, tgt *image.NRGBA, mix float64) *image.NRGBA {
	out := image.NewNRGBA(src.Rect)
	for i := 0; i < len(src.Pix); i += 4 {
		out.Pix[i] = lerpByte(src.Pix[i], tgt.Pix[i], mix)
		out.Pix[i+1] = lerpByte(src.Pix[i+1], tgt.Pix[i+1], mix)
		out.Pix[i+2] = lerpByte(src.Pix[i+2], tgt.Pix[i+2], mix)
		out.Pix[i+3] = src.Pix[i+3]
	}
	return out
}

func lerpByte(a, b uint8, t float64) uint8 {
	return uint8(math.Round(float64(a) + (float64(b)-float64(a))*t))
}

func quantize(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 0xff
	}
	return uint8(math.Round(v * 255))
}
