package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cellmorph/cellmorph/pkg/preset"
)

// presetsCommand lists the available presets and their parameters.
func (c *CLI) presetsCommand() *cobra.Command {
	var presetFile string

	cmd := &cobra.Command{
		Use:   "presets",
		Short: "List available presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			all, err := loadPresets(presetFile)
			if err != nil {
				return err
			}
			for _, name := range preset.Names(all) {
				p := all[name]
				fmt.Println(StyleTitle.Render(name))
				printDetail("resolution %d · %s · %s", p.Resolution, p.Algorithm, p.Shape)
				printDetail("scale %.2f · jitter %.2f · color mix %.2f", p.ParticleScale, p.Jitter, p.ColorMix)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&presetFile, "preset-file", "", "TOML file with additional presets")
	return cmd
}
