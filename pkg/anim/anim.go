// Package anim renders the morph animation.
//
// A [Renderer] is built once from a source cell set, a target cell set and an
// assignment between them. Construction precomputes one [particle] per source
// cell (resampled, optionally disc-masked, optionally paired with a
// target-colored variant) and one fixed jitter offset per cell. Rendering a
// frame at time t is then a pure function, which makes frames embarrassingly
// parallel.
//
// [Renderer.Stream] drives a bounded worker pool and delivers frames to a
// single consumer in strict time order: hold-start copies of the t=0 frame,
// the animated frames, then hold-end copies of the t=1 frame.
package anim

import (
	"math"
	"math/rand"
	"runtime"

	"github.com/cellmorph/cellmorph/pkg/assign"
	"github.com/cellmorph/cellmorph/pkg/errors"
	"github.com/cellmorph/cellmorph/pkg/grid"
)

// Shape selects the particle mask.
type Shape int

const (
	ShapeSquare Shape = iota
	ShapeCircle
)

// String returns the shape's wire name.
func (s Shape) String() string {
	if s == ShapeCircle {
		return "circle"
	}
	return "square"
}

// ParseShape maps a name to a Shape, rejecting unknown values.
func ParseShape(s string) (Shape, error) {
	switch s {
	case "square":
		return ShapeSquare, nil
	case "circle":
		return ShapeCircle, nil
	}
	return 0, errors.New(errors.ErrCodeInvalidArgument,
		"unknown shape: %q (must be one of: square, circle)", s)
}

// Options configures the renderer. All timing and visual parameters are
// plain values owned by the caller; the renderer fills no defaults beyond
// Workers.
type Options struct {
	Duration   float64 // animation length in seconds
	FPS        int     // frames per second
	OutputSize int     // square canvas side in pixels

	Jitter        float64 // max per-axis jitter in normalized units
	ParticleScale float64 // particle size as a fraction of the cell size
	Shape         Shape
	ColorMix      float64 // fraction of target color blended in at t=1

	HoldStart float64 // seconds of repeated t=0 frame before the animation
	HoldEnd   float64 // seconds of repeated t=1 frame after the animation

	// Workers bounds the frame-render pool; 0 means GOMAXPROCS.
	Workers int

	// Rand is the caller-seeded source for the per-cell jitter draw.
	// Required when Jitter > 0 so concurrent invocations stay reproducible
	// and isolated.
	Rand *rand.Rand
}

func (o *Options) validate() error {
	if o.Duration <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "duration must be positive, got %v", o.Duration)
	}
	if o.FPS <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "fps must be positive, got %d", o.FPS)
	}
	if o.OutputSize <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "output size must be positive, got %d", o.OutputSize)
	}
	if o.HoldStart < 0 || o.HoldEnd < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "hold durations must be non-negative")
	}
	if o.Jitter < 0 {
		return errors.New(errors.ErrCodeInvalidArgument, "jitter amount must be non-negative, got %v", o.Jitter)
	}
	if o.ColorMix < 0 || o.ColorMix > 1 {
		return errors.New(errors.ErrCodeInvalidArgument, "color mix must be in [0, 1], got %v", o.ColorMix)
	}
	if o.ParticleScale <= 0 {
		return errors.New(errors.ErrCodeInvalidArgument, "particle scale must be positive, got %v", o.ParticleScale)
	}
	if o.Jitter > 0 && o.Rand == nil {
		return errors.New(errors.ErrCodeInvalidArgument, "jitter requires a seeded random source")
	}
	return nil
}

// Renderer produces morph frames. It is immutable after New and safe for
// concurrent RenderAt calls.
type Renderer struct {
	opts Options

	starts []grid.Position // source cell centers
	ends   []grid.Position // assigned target cell centers
	src    []*particle     // one per source cell
	tgt    []*particle     // target-colored variants; nil unless ColorMix > 0
	jitter [][2]float64    // fixed per-cell (dy, dx) offsets

	animated  int // F = round(duration·fps), at least 1
	holdStart int
	holdEnd   int
}

// New validates the inputs and precomputes particles and jitter offsets.
// Particle precomputation is a single complete pass over all N cells, so no
// frame render ever waits on it.
func New(src, tgt *grid.CellSet, a assign.Assignment, opts Options) (*Renderer, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	n := len(src.Cells)
	if len(src.Positions) != n || len(tgt.Cells) != len(tgt.Positions) {
		return nil, errors.New(errors.ErrCodeInvalidInput,
			"cell set is inconsistent: cells and positions differ in length")
	}
	if len(tgt.Cells) != n || len(a) != n {
		return nil, errors.New(errors.ErrCodeInvalidInput,
			"mismatched lengths: %d source cells, %d target cells, assignment of %d", n, len(tgt.Cells), len(a))
	}
	if !a.Valid() {
		return nil, errors.New(errors.ErrCodeInvalidInput, "assignment is not a permutation of [0, %d)", n)
	}

	animated := int(math.Round(opts.Duration * float64(opts.FPS)))
	if animated < 1 {
		return nil, errors.New(errors.ErrCodeInvalidInput,
			"duration %vs at %d fps yields no frames", opts.Duration, opts.FPS)
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}

	r := &Renderer{
		opts:      opts,
		starts:    src.Positions,
		ends:      make([]grid.Position, n),
		src:       make([]*particle, n),
		jitter:    make([][2]float64, n),
		animated:  animated,
		holdStart: int(math.Round(opts.HoldStart * float64(opts.FPS))),
		holdEnd:   int(math.Round(opts.HoldEnd * float64(opts.FPS))),
	}
	if opts.ColorMix > 0 {
		r.tgt = make([]*particle, n)
	}

	// Particle size: the cell block resampled by the particle scale,
	// truncated, clamped to at least one pixel.
	pw := clampMin(int(float64(src.CellW)*opts.ParticleScale), 1)
	ph := clampMin(int(float64(src.CellH)*opts.ParticleScale), 1)

	for i := 0; i < n; i++ {
		r.ends[i] = tgt.Positions[a[i]]
		r.src[i] = newParticle(&src.Cells[i], pw, ph, opts.Shape)
		if r.tgt != nil {
			r.tgt[i] = newParticle(&tgt.Cells[a[i]], pw, ph, opts.Shape)
		}
		if opts.Jitter > 0 {
			r.jitter[i][0] = (opts.Rand.Float64() - 0.5) * 2 * opts.Jitter
			r.jitter[i][1] = (opts.Rand.Float64() - 0.5) * 2 * opts.Jitter
		}
	}
	return r, nil
}

// AnimatedFrames returns F, the number of animated frames.
func (r *Renderer) AnimatedFrames() int { return r.animated }

// HoldStartFrames returns the number of repeated t=0 frames.
func (r *Renderer) HoldStartFrames() int { return r.holdStart }

// HoldEndFrames returns the number of repeated t=1 frames.
func (r *Renderer) HoldEndFrames() int { return r.holdEnd }

// TotalFrames returns the full stream length including hold frames.
func (r *Renderer) TotalFrames() int { return r.holdStart + r.animated + r.holdEnd }

// timeAt maps animated frame index f to linear time in [0, 1].
func (r *Renderer) timeAt(f int) float64 {
	if r.animated > 1 {
		return float64(f) / float64(r.animated-1)
	}
	return 1.0
}

func clampMin(v, min int) int {
	if v < min {
		return min
	}
	return v
}
