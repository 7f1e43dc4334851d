package preset

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/cellmorph/cellmorph/pkg/errors"
	"github.com/cellmorph/cellmorph/pkg/pipeline"
)

func TestBuiltin(t *testing.T) {
	all := Builtin()
	for _, name := range []string{"sand", "blocks", "bubbles"} {
		if _, ok := all[name]; !ok {
			t.Errorf("missing builtin preset %q", name)
		}
	}
	if all["sand"].Algorithm != "sort" || all["sand"].Resolution != 128 {
		t.Errorf("sand preset changed: %+v", all["sand"])
	}
	if all["blocks"].Shape != "square" || all["blocks"].ParticleScale != 1.0 {
		t.Errorf("blocks preset changed: %+v", all["blocks"])
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.toml")
	content := `
[preset.confetti]
resolution = 48
algorithm = "approx"
shape = "circle"
particle_scale = 0.4
color_mix = 0.5
jitter = 0.2

[preset.sand]
resolution = 96
algorithm = "sort"
shape = "circle"
particle_scale = 0.5
jitter = 0.1
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	all, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	confetti, err := Lookup(all, "confetti")
	if err != nil {
		t.Fatal(err)
	}
	want := Preset{Resolution: 48, Algorithm: "approx", Shape: "circle", ParticleScale: 0.4, ColorMix: 0.5, Jitter: 0.2}
	if !reflect.DeepEqual(confetti, want) {
		t.Errorf("confetti = %+v, want %+v", confetti, want)
	}

	// File entries shadow builtins.
	if all["sand"].Resolution != 96 {
		t.Errorf("sand resolution = %d, want the file override 96", all["sand"].Resolution)
	}
	// Untouched builtins survive.
	if _, ok := all["bubbles"]; !ok {
		t.Error("bubbles builtin disappeared after file load")
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.toml"))
	if !errors.Is(err, errors.ErrCodeInvalidPreset) {
		t.Errorf("got %v, want INVALID_PRESET", err)
	}
}

func TestLookupUnknown(t *testing.T) {
	_, err := Lookup(Builtin(), "gravel")
	if !errors.Is(err, errors.ErrCodeInvalidPreset) {
		t.Errorf("got %v, want INVALID_PRESET", err)
	}
}

func TestApply(t *testing.T) {
	opts := pipeline.DefaultOptions()
	opts.Source = "src.png"
	opts.Duration = 3

	Builtin()["bubbles"].Apply(&opts)

	if opts.Resolution != 64 || opts.Algorithm != "greedy" || opts.ColorMix != 0.2 {
		t.Errorf("bubbles not applied: %+v", opts)
	}
	// Timing and paths stay caller-owned.
	if opts.Duration != 3 || opts.Source != "src.png" {
		t.Errorf("Apply touched caller-owned fields: %+v", opts)
	}
}

func TestNamesSorted(t *testing.T) {
	names := Names(Builtin())
	want := []string{"blocks", "bubbles", "sand"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("Names = %v, want %v", names, want)
	}
}
