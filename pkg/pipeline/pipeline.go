// Package pipeline orchestrates the complete morph pipeline for cellmorph.
//
// This package implements the load → partition → assign → render flow that
// is shared by the CLI, the preview and the HTTP server. By centralizing this
// logic, we ensure consistent behavior across all entry points and avoid code
// duplication.
//
// # Architecture
//
// The pipeline consists of three stages:
//
//  1. Load: decode both images into square working buffers
//  2. Assign: partition into cells, extract features, solve the bijection
//  3. Render: build the frame renderer for the computed assignment
//
// Each stage can be run independently or as part of the complete pipeline.
//
// # Usage
//
// Create a Runner and execute the pipeline:
//
//	runner := pipeline.NewRunner(cache, logger)
//	opts := pipeline.DefaultOptions()
//	opts.Source = "me.jpg"
//	opts.Target = "sura.jpg"
//	result, err := runner.Execute(ctx, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	stream := result.Renderer.Stream(ctx)
package pipeline

import (
	"github.com/charmbracelet/log"

	"github.com/cellmorph/cellmorph/pkg/anim"
	"github.com/cellmorph/cellmorph/pkg/assign"
	"github.com/cellmorph/cellmorph/pkg/errors"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and Server
// =============================================================================

const (
	// DefaultResolution is the default grid resolution (cells per side).
	DefaultResolution = 64

	// DefaultAlgorithm is the default assignment algorithm.
	DefaultAlgorithm = "optimal"

	// DefaultProximity is the default proximity importance
	// (0 = color only, 1 = position only).
	DefaultProximity = 0.3

	// DefaultDuration is the default animation length in seconds.
	DefaultDuration = 6.0

	// DefaultFPS is the default frame rate.
	DefaultFPS = 30

	// DefaultJitter is the default per-axis jitter amplitude in normalized
	// units.
	DefaultJitter = 0.05

	// DefaultParticleScale is the default particle size as a fraction of the
	// cell size.
	DefaultParticleScale = 0.6

	// DefaultShape is the default particle shape.
	DefaultShape = "circle"

	// DefaultHoldStart is the default seconds of repeated first frame.
	DefaultHoldStart = 1.0

	// DefaultHoldEnd is the default seconds of repeated last frame.
	DefaultHoldEnd = 2.0

	// DefaultWorkingSize is the square working buffer side before it is
	// truncated to a multiple of the resolution.
	DefaultWorkingSize = 512

	// DefaultOptimalCeiling caps the optimal solver at 80×80 cells. The O(N³)
	// solver becomes impractical beyond that; callers opt into fallback or
	// refusal via Options.OptimalFallback.
	DefaultOptimalCeiling = 6400
)

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for the morph pipeline.
// This struct supports JSON serialization for API requests.
type Options struct {
	// Input options
	Source string `json:"source,omitempty"` // path to the source image
	Target string `json:"target,omitempty"` // path to the target image

	// Assignment options
	Resolution int     `json:"resolution,omitempty"`
	Algorithm  string  `json:"algorithm,omitempty"`
	Proximity  float64 `json:"proximity_importance"`
	Seed       int64   `json:"seed,omitempty"`

	// Animation options
	Duration      float64 `json:"duration,omitempty"`
	FPS           int     `json:"fps,omitempty"`
	Jitter        float64 `json:"jitter"`
	ParticleScale float64 `json:"particle_scale,omitempty"`
	Shape         string  `json:"shape,omitempty"`
	ColorMix      float64 `json:"color_mix"`
	HoldStart     float64 `json:"hold_start"`
	HoldEnd       float64 `json:"hold_end"`

	// OutputSize is the requested square working size in pixels. Zero means
	// DefaultWorkingSize. The effective size is truncated down to the nearest
	// multiple of Resolution (at least Resolution) so cells tile exactly.
	OutputSize int `json:"output_size,omitempty"`

	// Runtime options (not serialized)
	OptimalCeiling  int         `json:"-"` // max cells for optimal; 0 = unlimited
	OptimalFallback bool        `json:"-"` // downgrade optimal→sort instead of refusing
	Workers         int         `json:"-"` // frame-render pool size; 0 = GOMAXPROCS
	NoCache         bool        `json:"-"` // bypass the assignment cache
	Logger          *log.Logger `json:"-"` // overrides the runner's logger for this run

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool
}

// DefaultOptions returns Options pre-filled with the documented defaults.
// Source and Target are left empty and must be set by the caller.
func DefaultOptions() Options {
	return Options{
		Resolution:     DefaultResolution,
		Algorithm:      DefaultAlgorithm,
		Proximity:      DefaultProximity,
		Duration:       DefaultDuration,
		FPS:            DefaultFPS,
		Jitter:         DefaultJitter,
		ParticleScale:  DefaultParticleScale,
		Shape:          DefaultShape,
		HoldStart:      DefaultHoldStart,
		HoldEnd:        DefaultHoldEnd,
		OptimalCeiling: DefaultOptimalCeiling,
	}
}

// ValidateAndSetDefaults checks required fields and applies defaults.
// This method is idempotent - calling it multiple times has the same effect
// as calling it once.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.Source == "" {
		return errors.New(errors.ErrCodeInvalidInput, "source image path is required")
	}
	if o.Target == "" {
		return errors.New(errors.ErrCodeInvalidInput, "target image path is required")
	}

	if o.Resolution == 0 {
		o.Resolution = DefaultResolution
	}
	if o.Algorithm == "" {
		o.Algorithm = DefaultAlgorithm
	}
	if o.Duration == 0 {
		o.Duration = DefaultDuration
	}
	if o.FPS == 0 {
		o.FPS = DefaultFPS
	}
	if o.ParticleScale == 0 {
		o.ParticleScale = DefaultParticleScale
	}
	if o.Shape == "" {
		o.Shape = DefaultShape
	}

	// Reject unknown enum values at the boundary; range checks on the
	// numeric parameters live in the packages that own them.
	if _, err := assign.ParseAlgorithm(o.Algorithm); err != nil {
		return err
	}
	if _, err := anim.ParseShape(o.Shape); err != nil {
		return err
	}
	if o.Resolution <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "resolution must be positive, got %d", o.Resolution)
	}
	if o.OutputSize < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "output size must be non-negative, got %d", o.OutputSize)
	}

	o.validated = true
	return nil
}

// WorkingSize returns the effective square buffer side: the requested size
// (or DefaultWorkingSize) truncated down to the nearest multiple of the
// resolution, and never smaller than one cell per side.
func (o *Options) WorkingSize() int {
	size := o.OutputSize
	if size == 0 {
		size = DefaultWorkingSize
	}
	size = (size / o.Resolution) * o.Resolution
	if size == 0 {
		size = o.Resolution
	}
	return size
}
