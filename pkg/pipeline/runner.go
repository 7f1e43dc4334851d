package pipeline

import (
	"context"
	"encoding/json"
	"io"
	"math/rand"
	"time"

	"github.com/charmbracelet/log"

	"github.com/cellmorph/cellmorph/pkg/anim"
	"github.com/cellmorph/cellmorph/pkg/assign"
	"github.com/cellmorph/cellmorph/pkg/cache"
	"github.com/cellmorph/cellmorph/pkg/grid"
	"github.com/cellmorph/cellmorph/pkg/imageio"
	"github.com/cellmorph/cellmorph/pkg/observability"
)

// assignCacheTTL bounds how long cached assignments live. Entries are keyed
// by content hashes, so expiry exists only to keep cache directories from
// growing without bound.
const assignCacheTTL = 30 * 24 * time.Hour

// Result contains the outputs of a pipeline run.
type Result struct {
	// Assignment maps each source cell to its target cell.
	Assignment assign.Assignment

	// Renderer produces the morph frames for the assignment.
	Renderer *anim.Renderer

	// Stats contains timing and size information.
	Stats Stats

	// CacheInfo tracks which stages hit the cache.
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	CellCount   int           // N, cells per image
	FrameCount  int           // total frames including holds
	WorkingSize int           // effective square buffer side
	Algorithm   string        // algorithm actually used after any fallback
	LoadTime    time.Duration // decode + crop + resize, both images
	AssignTime  time.Duration // partition + features + solve (or cache hit)
}

// CacheInfo tracks cache hits for each pipeline stage.
type CacheInfo struct {
	AssignHit bool // whether the assignment came from cache
}

// Runner executes morph pipelines with shared cache and logger.
type Runner struct {
	cache  cache.Cache
	logger *log.Logger
}

// NewRunner creates a pipeline runner. A nil cache disables caching; a nil
// logger discards output.
func NewRunner(c cache.Cache, logger *log.Logger) *Runner {
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Runner{cache: c, logger: logger}
}

// log resolves the logger for a run, preferring a per-run override.
func (r *Runner) log(opts Options) *log.Logger {
	if opts.Logger != nil {
		return opts.Logger
	}
	return r.logger
}

// Execute runs the complete pipeline: load both images, compute the
// assignment (consulting the cache) and build the frame renderer.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}

	loadStart := time.Now()
	src, tgt, err := r.Load(ctx, opts)
	if err != nil {
		return nil, err
	}
	loadTime := time.Since(loadStart)

	assignStart := time.Now()
	a, srcCells, tgtCells, info, err := r.Assign(ctx, src, tgt, opts)
	if err != nil {
		return nil, err
	}
	assignTime := time.Since(assignStart)

	renderer, err := r.Render(srcCells, tgtCells, a, opts)
	if err != nil {
		return nil, err
	}

	return &Result{
		Assignment: a,
		Renderer:   renderer,
		Stats: Stats{
			CellCount:   len(srcCells.Cells),
			FrameCount:  renderer.TotalFrames(),
			WorkingSize: opts.WorkingSize(),
			Algorithm:   r.effectiveAlgorithm(opts, len(srcCells.Cells)).String(),
			LoadTime:    loadTime,
			AssignTime:  assignTime,
		},
		CacheInfo: *info,
	}, nil
}

// Load decodes both images into square working buffers of the effective size.
func (r *Runner) Load(ctx context.Context, opts Options) (src, tgt *grid.Buffer, err error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, nil, err
	}
	size := opts.WorkingSize()
	r.log(opts).Debug("loading images", "source", opts.Source, "target", opts.Target, "size", size)

	start := time.Now()
	observability.Pipeline().OnLoadStart(ctx, opts.Source, opts.Target)
	src, err = imageio.Load(opts.Source, size)
	if err == nil {
		tgt, err = imageio.Load(opts.Target, size)
	}
	observability.Pipeline().OnLoadComplete(ctx, opts.Source, opts.Target, size, time.Since(start), err)
	if err != nil {
		return nil, nil, err
	}
	return src, tgt, nil
}

// Assign partitions both buffers, extracts features and solves the bijection.
// The solved assignment is cached keyed by buffer content hashes and every
// parameter that influences the result.
func (r *Runner) Assign(ctx context.Context, src, tgt *grid.Buffer, opts Options) (assign.Assignment, *grid.CellSet, *grid.CellSet, *CacheInfo, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, nil, nil, nil, err
	}

	srcCells, err := grid.Partition(src, opts.Resolution)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	tgtCells, err := grid.Partition(tgt, opts.Resolution)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	n := len(srcCells.Cells)

	algo := r.effectiveAlgorithm(opts, n)
	key := cache.AssignmentKey(src.Hash(), tgt.Hash(), cache.AssignmentKeyOpts{
		Resolution: opts.Resolution,
		Algorithm:  algo.String(),
		Proximity:  opts.Proximity,
		Seed:       assignmentSeed(algo, opts.Seed),
	})

	info := &CacheInfo{}
	if !opts.NoCache {
		if a, ok := r.cachedAssignment(ctx, key, n, opts); ok {
			r.log(opts).Debug("assignment cache hit", "cells", n, "algorithm", algo)
			observability.Cache().OnCacheHit(ctx, "assign")
			info.AssignHit = true
			return a, srcCells, tgtCells, info, nil
		}
		observability.Cache().OnCacheMiss(ctx, "assign")
	}

	r.log(opts).Debug("solving assignment", "cells", n, "algorithm", algo)
	solveStart := time.Now()
	observability.Pipeline().OnAssignStart(ctx, algo.String(), n)
	p := assign.Problem{
		SrcFeatures:    grid.Features(srcCells),
		TgtFeatures:    grid.Features(tgtCells),
		SrcPositions:   srcCells.Positions,
		TgtPositions:   tgtCells.Positions,
		Proximity:      opts.Proximity,
		OptimalCeiling: opts.OptimalCeiling,
	}
	if algo == assign.AlgorithmGreedy {
		p.Rand = rand.New(rand.NewSource(opts.Seed))
	}
	a, err := assign.Solve(ctx, algo, p)
	observability.Pipeline().OnAssignComplete(ctx, algo.String(), n, time.Since(solveStart), err)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	if !opts.NoCache {
		if data, err := json.Marshal(a); err == nil {
			if err := r.cache.Set(ctx, key, data, assignCacheTTL); err != nil {
				r.log(opts).Warn("failed to cache assignment", "error", err)
			} else {
				observability.Cache().OnCacheSet(ctx, "assign", len(data))
			}
		}
	}
	return a, srcCells, tgtCells, info, nil
}

// Render builds the frame renderer for a solved assignment.
func (r *Runner) Render(srcCells, tgtCells *grid.CellSet, a assign.Assignment, opts Options) (*anim.Renderer, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	shape, err := anim.ParseShape(opts.Shape)
	if err != nil {
		return nil, err
	}
	animOpts := anim.Options{
		Duration:      opts.Duration,
		FPS:           opts.FPS,
		OutputSize:    opts.WorkingSize(),
		Jitter:        opts.Jitter,
		ParticleScale: opts.ParticleScale,
		Shape:         shape,
		ColorMix:      opts.ColorMix,
		HoldStart:     opts.HoldStart,
		HoldEnd:       opts.HoldEnd,
		Workers:       opts.Workers,
	}
	if opts.Jitter > 0 {
		animOpts.Rand = rand.New(rand.NewSource(opts.Seed))
	}
	return anim.New(srcCells, tgtCells, a, animOpts)
}

// effectiveAlgorithm applies the optimal-ceiling fallback policy: when the
// cell count exceeds the ceiling and fallback is enabled, optimal silently
// degrades to sort. Without fallback the solver refuses instead.
func (r *Runner) effectiveAlgorithm(opts Options, cells int) assign.Algorithm {
	algo, err := assign.ParseAlgorithm(opts.Algorithm)
	if err != nil {
		// ValidateAndSetDefaults already rejected unknown names.
		return assign.AlgorithmSort
	}
	if algo == assign.AlgorithmOptimal && opts.OptimalFallback &&
		opts.OptimalCeiling > 0 && cells > opts.OptimalCeiling {
		r.log(opts).Warn("optimal assignment too slow for grid, falling back to sort",
			"cells", cells, "ceiling", opts.OptimalCeiling)
		return assign.AlgorithmSort
	}
	return algo
}

// cachedAssignment loads and validates a cached assignment. Corrupt or
// mismatched entries are treated as misses.
func (r *Runner) cachedAssignment(ctx context.Context, key string, n int, opts Options) (assign.Assignment, bool) {
	data, hit, err := r.cache.Get(ctx, key)
	if err != nil {
		r.log(opts).Warn("assignment cache read failed", "error", err)
		return nil, false
	}
	if !hit {
		return nil, false
	}
	var a assign.Assignment
	if err := json.Unmarshal(data, &a); err != nil || len(a) != n || !a.Valid() {
		_ = r.cache.Delete(ctx, key)
		return nil, false
	}
	return a, true
}

// assignmentSeed returns the seed component of the cache key. Only greedy
// consumes randomness, so other algorithms share entries across seeds.
func assignmentSeed(algo assign.Algorithm, seed int64) int64 {
	if algo == assign.AlgorithmGreedy {
		return seed
	}
	return 0
}
