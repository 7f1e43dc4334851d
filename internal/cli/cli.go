// Package cli implements the cellmorph command-line interface.
//
// This package provides commands for morphing one image into another,
// previewing the animation in the terminal, serving the pipeline over HTTP,
// and managing the assignment cache. The CLI is built using cobra and
// supports verbose logging via the charmbracelet/log library.
//
// # Commands
//
// The main commands are:
//   - morph: Render the morph animation to a GIF or MP4 file
//   - preview: Play the animation in the terminal
//   - serve: Run the HTTP server
//   - presets: List available parameter presets
//   - cache: Manage the assignment cache
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. Loggers are
// passed through context.Context to allow structured progress tracking.
package cli

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/cellmorph/cellmorph/pkg/buildinfo"
	"github.com/cellmorph/cellmorph/pkg/cache"
	"github.com/cellmorph/cellmorph/pkg/pipeline"
	"github.com/cellmorph/cellmorph/pkg/preset"
)

// appName is the application name used for directories and display.
const appName = "cellmorph"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Cellmorph turns any image into another",
		Long:         `Cellmorph partitions two images into a grid of cells, computes a one-to-one pairing between them under a color/position cost tradeoff, and animates every source cell traveling to its paired position.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	// Make the logger reachable from every command's context.
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cmd.SetContext(withLogger(cmd.Context(), c.Logger))
		return nil
	}

	root.AddCommand(c.morphCommand())
	root.AddCommand(c.previewCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.presetsCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(noCache bool) (*pipeline.Runner, cache.Cache, error) {
	store, err := newCache(noCache)
	if err != nil {
		return nil, nil, err
	}
	return pipeline.NewRunner(store, c.Logger), store, nil
}

func newCache(noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// cacheDir returns the cache directory using XDG standard (~/.cache/cellmorph/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// loadPresets returns the preset set for a command: the builtins, overlaid
// with a preset file when one was given.
func loadPresets(presetFile string) (map[string]preset.Preset, error) {
	if presetFile == "" {
		return preset.Builtin(), nil
	}
	return preset.LoadFile(presetFile)
}
