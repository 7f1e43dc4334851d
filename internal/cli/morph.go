package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cellmorph/cellmorph/pkg/encode"
	"github.com/cellmorph/cellmorph/pkg/pipeline"
	"github.com/cellmorph/cellmorph/pkg/preset"
)

// morphFlags registers the parameters shared by morph and preview.
func morphFlags(cmd *cobra.Command, opts *pipeline.Options, presetName, presetFile *string) {
	cmd.Flags().StringVar(&opts.Source, "src", "", "path to the source image")
	cmd.Flags().StringVar(&opts.Target, "tgt", "target.jpg", "path to the target image")
	cmd.Flags().Float64Var(&opts.Duration, "duration", opts.Duration, "animation duration in seconds")
	cmd.Flags().IntVar(&opts.FPS, "fps", opts.FPS, "frames per second")
	cmd.Flags().IntVar(&opts.Resolution, "resolution", opts.Resolution, "grid resolution (cells per side)")
	cmd.Flags().Float64Var(&opts.Proximity, "proximity-importance", opts.Proximity, "0.0 = color only, 1.0 = position only")
	cmd.Flags().StringVar(&opts.Algorithm, "algorithm", opts.Algorithm, "assignment algorithm: optimal, greedy, approx, sort")
	cmd.Flags().Float64Var(&opts.Jitter, "jitter", opts.Jitter, "amount of particle jitter")
	cmd.Flags().Float64Var(&opts.ParticleScale, "particle-scale", opts.ParticleScale, "particle size as a fraction of the cell (0.0-1.0]")
	cmd.Flags().StringVar(&opts.Shape, "shape", opts.Shape, "particle shape: square, circle")
	cmd.Flags().Float64Var(&opts.ColorMix, "color-mix", opts.ColorMix, "amount of target color mixed in (0.0-1.0)")
	cmd.Flags().Float64Var(&opts.HoldStart, "hold-start", opts.HoldStart, "seconds to hold the first frame")
	cmd.Flags().Float64Var(&opts.HoldEnd, "hold-end", opts.HoldEnd, "seconds to hold the last frame")
	cmd.Flags().IntVar(&opts.OutputSize, "output-size", 0, "square output size in pixels (default 512, snapped to the grid)")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 0, "random seed (default: derived from time)")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "parallel frame renderers (default: number of CPUs)")
	cmd.Flags().StringVar(presetName, "preset", "", "preset configuration: sand, blocks, bubbles")
	cmd.Flags().StringVar(presetFile, "preset-file", "", "TOML file with additional presets")

	_ = cmd.MarkFlagRequired("src")
}

// finishMorphOptions resolves the preset and seed after flag parsing.
func finishMorphOptions(cmd *cobra.Command, opts *pipeline.Options, presetName, presetFile string) error {
	if presetName != "" && presetName != "custom" {
		all, err := loadPresets(presetFile)
		if err != nil {
			return err
		}
		p, err := preset.Lookup(all, presetName)
		if err != nil {
			return err
		}
		p.Apply(opts)
	}
	if !cmd.Flags().Changed("seed") {
		opts.Seed = time.Now().UnixNano()
	}
	opts.OptimalFallback = true
	return nil
}

// morphCommand creates the morph command, the main entry point.
func (c *CLI) morphCommand() *cobra.Command {
	var (
		output     string
		presetName string
		presetFile string
		noCache    bool
	)
	opts := pipeline.DefaultOptions()

	cmd := &cobra.Command{
		Use:   "morph",
		Short: "Morph a source image into a target image",
		Long: `Morph a source image into a target image.

Both images are center-cropped, resized, and split into a grid of cells. An
assignment algorithm pairs every source cell with a target cell, trading off
color similarity against travel distance, and the animation moves each cell
to its paired position.

The output format follows the file extension: .gif is encoded natively,
anything else is piped through ffmpeg.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := finishMorphOptions(cmd, &opts, presetName, presetFile); err != nil {
				return err
			}
			return c.runMorph(cmd.Context(), opts, output, noCache)
		},
	}

	morphFlags(cmd, &opts, &presetName, &presetFile)
	cmd.Flags().StringVarP(&output, "out", "o", "out.mp4", "output file path")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the assignment cache")

	return cmd
}

// runMorph executes the pipeline and encodes the frame stream.
func (c *CLI) runMorph(ctx context.Context, opts pipeline.Options, output string, noCache bool) error {
	opts.Logger = c.Logger
	runner, store, err := c.newRunner(noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer store.Close()

	spinner := newSpinnerWithContext(ctx, "Computing assignment...")
	spinner.Start()
	result, err := runner.Execute(ctx, opts)
	if err != nil {
		spinner.StopWithError("Morph failed")
		return err
	}
	spinner.Stop()
	printStats(result.Stats.CellCount, result.Stats.FrameCount, result.CacheInfo.AssignHit)

	if ext := strings.ToLower(filepath.Ext(output)); ext != ".gif" && ext != ".mp4" {
		output += ".mp4"
	}

	prog := newProgress(c.Logger)
	spinner = newSpinnerWithContext(ctx, fmt.Sprintf("Rendering %d frames...", result.Stats.FrameCount))
	spinner.Start()
	stream := result.Renderer.Stream(ctx)
	if err := encode.Write(ctx, output, stream, opts.FPS); err != nil {
		spinner.StopWithError("Encoding failed")
		return err
	}
	spinner.Stop()
	prog.done(fmt.Sprintf("Rendered %d frames at %dx%d",
		result.Stats.FrameCount, result.Stats.WorkingSize, result.Stats.WorkingSize))

	printSuccess("Morph complete")
	printFile(output)
	return nil
}
