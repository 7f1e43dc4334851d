// Package preset provides named bundles of morph parameters.
//
// A preset fixes the visual character of a morph (grid resolution, algorithm,
// particle shape and scale, jitter, color mix) while leaving timing and paths
// to the caller. Three presets ship built in; additional ones can be loaded
// from a TOML file and override the builtins by name.
package preset

import (
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/cellmorph/cellmorph/pkg/errors"
	"github.com/cellmorph/cellmorph/pkg/pipeline"
)

// Preset is a caller-owned bundle of morph parameters.
type Preset struct {
	Resolution    int     `toml:"resolution"`
	Algorithm     string  `toml:"algorithm"`
	Shape         string  `toml:"shape"`
	ParticleScale float64 `toml:"particle_scale"`
	ColorMix      float64 `toml:"color_mix"`
	Jitter        float64 `toml:"jitter"`
}

// Builtin returns the built-in presets.
func Builtin() map[string]Preset {
	return map[string]Preset{
		"sand": {
			Resolution:    128,
			Algorithm:     "sort",
			Shape:         "circle",
			ParticleScale: 0.5,
			ColorMix:      0,
			Jitter:        0.1,
		},
		"blocks": {
			Resolution:    32,
			Algorithm:     "optimal",
			Shape:         "square",
			ParticleScale: 1.0,
			ColorMix:      0,
			Jitter:        0,
		},
		"bubbles": {
			Resolution:    64,
			Algorithm:     "greedy",
			Shape:         "circle",
			ParticleScale: 0.8,
			ColorMix:      0.2,
			Jitter:        0.05,
		},
	}
}

// Apply copies the preset's parameters onto pipeline options, overriding
// whatever was there. Timing, paths and seed are left untouched.
func (p Preset) Apply(o *pipeline.Options) {
	o.Resolution = p.Resolution
	o.Algorithm = p.Algorithm
	o.Shape = p.Shape
	o.ParticleScale = p.ParticleScale
	o.ColorMix = p.ColorMix
	o.Jitter = p.Jitter
}

// presetFile is the TOML layout: a [preset.<name>] table per preset.
type presetFile struct {
	Preset map[string]Preset `toml:"preset"`
}

// LoadFile parses presets from a TOML file. File entries shadow builtins of
// the same name.
func LoadFile(path string) (map[string]Preset, error) {
	var pf presetFile
	if _, err := toml.DecodeFile(path, &pf); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPreset, err, "could not load presets from %s", path)
	}
	all := Builtin()
	for name, p := range pf.Preset {
		all[name] = p
	}
	return all, nil
}

// Lookup resolves a preset by name from the given set.
func Lookup(all map[string]Preset, name string) (Preset, error) {
	p, ok := all[name]
	if !ok {
		return Preset{}, errors.New(errors.ErrCodeInvalidPreset,
			"unknown preset: %q (have: %v)", name, Names(all))
	}
	return p, nil
}

// Names returns the sorted preset names.
func Names(all map[string]Preset) []string {
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
