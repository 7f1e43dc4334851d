package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cellmorph/cellmorph/internal/server"
	"github.com/cellmorph/cellmorph/pkg/cache"
)

// serveCommand runs the HTTP server.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr       string
		uploadDir  string
		outputDir  string
		target     string
		presetFile string
		redisAddr  string
		noCache    bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the morph pipeline over HTTP",
		Long: `Serve the morph pipeline over HTTP.

POST /generate accepts a multipart source image (and optionally a target)
plus preset or custom parameters, renders the morph as a GIF and responds
with its download URL. Outputs are named by UUID and served from
GET /download/{name}.

Assignments are cached in the local file cache by default; --redis switches
to a shared Redis cache for multi-instance deployments.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			presets, err := loadPresets(presetFile)
			if err != nil {
				return err
			}

			store, err := newCache(noCache)
			if err != nil {
				return fmt.Errorf("initialize cache: %w", err)
			}
			if redisAddr != "" && !noCache {
				store, err = cache.NewRedisCache(ctx, cache.RedisConfig{Addr: redisAddr})
				if err != nil {
					return fmt.Errorf("connect to redis at %s: %w", redisAddr, err)
				}
			}
			defer store.Close()

			srv, err := server.New(server.Config{
				Addr:       addr,
				UploadDir:  uploadDir,
				OutputDir:  outputDir,
				TargetPath: target,
				Presets:    presets,
				Cache:      store,
				Logger:     logger,
			})
			if err != nil {
				return fmt.Errorf("initialize server: %w", err)
			}
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&uploadDir, "upload-dir", "uploads", "directory for uploaded images")
	cmd.Flags().StringVar(&outputDir, "output-dir", "outputs", "directory for rendered GIFs")
	cmd.Flags().StringVar(&target, "target", "target.jpg", "target image used when the request uploads none")
	cmd.Flags().StringVar(&presetFile, "preset-file", "", "TOML file with additional presets")
	cmd.Flags().StringVar(&redisAddr, "redis", "", "redis address for a shared assignment cache")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the assignment cache")

	return cmd
}
