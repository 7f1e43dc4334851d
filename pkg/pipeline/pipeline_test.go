package pipeline

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/cellmorph/cellmorph/pkg/cache"
	"github.com/cellmorph/cellmorph/pkg/errors"
)

// writeTestPNG writes a size×size image with a horizontal gradient so cells
// differ in color.
func writeTestPNG(t *testing.T, path string, size int, base color.NRGBA) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			c := base
			c.R = uint8(int(c.R) + x*128/size)
			img.SetNRGBA(x, y, c)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

// testOptions returns small, fast options against freshly written images.
func testOptions(t *testing.T) Options {
	t.Helper()
	dir := t.TempDir()
	src := filepath.Join(dir, "src.png")
	tgt := filepath.Join(dir, "tgt.png")
	writeTestPNG(t, src, 32, color.NRGBA{R: 16, G: 32, B: 64, A: 255})
	writeTestPNG(t, tgt, 32, color.NRGBA{R: 64, G: 128, B: 16, A: 255})

	opts := DefaultOptions()
	opts.Source = src
	opts.Target = tgt
	opts.Resolution = 4
	opts.OutputSize = 32
	opts.Duration = 0.2
	opts.FPS = 10
	opts.HoldStart = 0
	opts.HoldEnd = 0
	opts.Jitter = 0
	opts.Workers = 2
	return opts
}

func TestExecute(t *testing.T) {
	runner := NewRunner(nil, nil)
	opts := testOptions(t)

	result, err := runner.Execute(context.Background(), opts)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if result.Stats.CellCount != 16 {
		t.Errorf("CellCount = %d, want 16", result.Stats.CellCount)
	}
	if result.Stats.FrameCount != 2 {
		t.Errorf("FrameCount = %d, want 2", result.Stats.FrameCount)
	}
	if result.Stats.WorkingSize != 32 {
		t.Errorf("WorkingSize = %d, want 32", result.Stats.WorkingSize)
	}
	if result.Stats.Algorithm != "optimal" {
		t.Errorf("Algorithm = %q, want %q", result.Stats.Algorithm, "optimal")
	}
	if !result.Assignment.Valid() || len(result.Assignment) != 16 {
		t.Errorf("assignment is not a 16-cell permutation: %v", result.Assignment)
	}
	if result.CacheInfo.AssignHit {
		t.Error("first run should not hit the cache")
	}

	// Consume the stream to confirm the renderer is wired up.
	stream := result.Renderer.Stream(context.Background())
	count := 0
	for frame := range stream.Frames() {
		if got := frame.Bounds().Dx(); got != 32 {
			t.Fatalf("frame width = %d, want 32", got)
		}
		count++
	}
	if err := stream.Err(); err != nil {
		t.Fatalf("stream error: %v", err)
	}
	if count != 2 {
		t.Errorf("streamed %d frames, want 2", count)
	}
}

func TestExecuteAssignmentCache(t *testing.T) {
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	runner := NewRunner(fc, nil)
	opts := testOptions(t)

	first, err := runner.Execute(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if first.CacheInfo.AssignHit {
		t.Error("first run should miss")
	}

	second, err := runner.Execute(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if !second.CacheInfo.AssignHit {
		t.Error("second run should hit the assignment cache")
	}
	for i := range first.Assignment {
		if first.Assignment[i] != second.Assignment[i] {
			t.Fatalf("cached assignment differs at %d: %d vs %d",
				i, first.Assignment[i], second.Assignment[i])
		}
	}

	// NoCache bypasses both read and write.
	opts.NoCache = true
	third, err := runner.Execute(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if third.CacheInfo.AssignHit {
		t.Error("NoCache run must not hit the cache")
	}
}

func TestExecuteOptimalFallback(t *testing.T) {
	runner := NewRunner(nil, nil)
	opts := testOptions(t)
	opts.OptimalCeiling = 4 // 16 cells exceeds this

	// Without fallback the solver refuses.
	_, err := runner.Execute(context.Background(), opts)
	if errors.GetCode(err) != errors.ErrCodeResourceExhausted {
		t.Fatalf("expected RESOURCE_EXHAUSTED, got %v", err)
	}

	// With fallback it degrades to sort.
	opts.OptimalFallback = true
	result, err := runner.Execute(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if result.Stats.Algorithm != "sort" {
		t.Errorf("Algorithm = %q, want %q after fallback", result.Stats.Algorithm, "sort")
	}
}

func TestExecuteGreedySeedReproducible(t *testing.T) {
	runner := NewRunner(nil, nil)
	opts := testOptions(t)
	opts.Algorithm = "greedy"
	opts.Seed = 7

	first, err := runner.Execute(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	second, err := runner.Execute(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	for i := range first.Assignment {
		if first.Assignment[i] != second.Assignment[i] {
			t.Fatalf("same seed produced different assignments at %d", i)
		}
	}
}

func TestExecuteMissingSource(t *testing.T) {
	runner := NewRunner(nil, nil)
	opts := testOptions(t)
	opts.Source = filepath.Join(t.TempDir(), "nope.png")

	_, err := runner.Execute(context.Background(), opts)
	if errors.GetCode(err) != errors.ErrCodeFileNotFound {
		t.Fatalf("expected FILE_NOT_FOUND, got %v", err)
	}
}

func TestOptionsValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"missing source", func(o *Options) { o.Source = "" }},
		{"missing target", func(o *Options) { o.Target = "" }},
		{"unknown algorithm", func(o *Options) { o.Algorithm = "magic" }},
		{"unknown shape", func(o *Options) { o.Shape = "triangle" }},
		{"negative resolution", func(o *Options) { o.Resolution = -1 }},
		{"negative output size", func(o *Options) { o.OutputSize = -10 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.Source = "src.png"
			opts.Target = "tgt.png"
			tt.mutate(&opts)
			if err := opts.ValidateAndSetDefaults(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestWorkingSize(t *testing.T) {
	tests := []struct {
		output     int
		resolution int
		want       int
	}{
		{0, 64, 512},   // default, already divisible
		{0, 60, 480},   // default truncated to multiple of 60
		{512, 128, 512},
		{100, 64, 64},  // truncates down
		{10, 64, 64},   // never below one cell per side
		{33, 4, 32},
	}
	for _, tt := range tests {
		o := Options{OutputSize: tt.output, Resolution: tt.resolution}
		if got := o.WorkingSize(); got != tt.want {
			t.Errorf("WorkingSize(output=%d, res=%d) = %d, want %d",
				tt.output, tt.resolution, got, tt.want)
		}
	}
}
