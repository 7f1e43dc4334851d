package anim

import (
	"image"
	"math"
)

// RenderAt renders the frame at linear time t in [0, 1] onto a fresh black
// canvas. Safe for concurrent use: all renderer state is read-only.
//
// Time is eased with smoothstep (t²(3-2t)); jitter is scaled by sin(π·t) and
// forced to zero at both boundaries, where sin(π·t) only lands near zero in
// floating point; the color-blend fraction grows with the eased time up to
// ColorMix.
func (r *Renderer) RenderAt(t float64) *image.NRGBA {
	size := r.opts.OutputSize
	canvas := image.NewNRGBA(image.Rect(0, 0, size, size))
	for i := 3; i < len(canvas.Pix); i += 4 {
		canvas.Pix[i] = 0xff // opaque black
	}

	te := t * t * (3 - 2*t)
	amp := 0.0
	if t > 0 && t < 1 {
		amp = math.Sin(math.Pi * t)
	}
	mix := te * r.opts.ColorMix

	for i := range r.src {
		y := (1-te)*r.starts[i].Y + te*r.ends[i].Y + r.jitter[i][0]*amp
		x := (1-te)*r.starts[i].X + te*r.ends[i].X + r.jitter[i][1]*amp

		p := r.src[i].img
		if mix > 0 && r.tgt != nil {
			p = blend(r.src[i].img, r.tgt[i].img, mix)
		}

		pw := p.Rect.Dx()
		ph := p.Rect.Dy()
		// Placement truncates toward zero; sub-pixel motion snaps to the
		// pixel grid.
		top := int(y*float64(size) - float64(ph)/2)
		left := int(x*float64(size) - float64(pw)/2)
		paste(canvas, p, left, top)
	}
	return canvas
}

// paste composites p onto canvas at (left, top), skipping mask-transparent
// pixels. Later calls overwrite earlier ones on overlap. Regions outside the
// canvas are clipped.
func paste(canvas, p *image.NRGBA, left, top int) {
	size := canvas.Rect.Dx()
	pw := p.Rect.Dx()
	ph := p.Rect.Dy()
	for y := 0; y < ph; y++ {
		cy := top + y
		if cy < 0 || cy >= size {
			continue
		}
		for x := 0; x < pw; x++ {
			cx := left + x
			if cx < 0 || cx >= size {
				continue
			}
			si := (y*pw + x) * 4
			if p.Pix[si+3] == 0 {
				continue
			}
			di := (cy*size + cx) * 4
			canvas.Pix[di] = p.Pix[si]
			canvas.Pix[di+1] = p.Pix[si+1]
			canvas.Pix[di+2] = p.Pix[si+2]
		}
	}
}
