package cli

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mattfenn/erfgen/internal/server"
	"github.com/mattfenn/erfgen/pkg/cache"
	"github.com/mattfenn/erfgen/pkg/engine/geosengine"
	"github.com/mattfenn/erfgen/pkg/observability"
	"github.com/mattfenn/erfgen/pkg/pipeline"
)

// serveCommand creates the serve command for running the HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr     string
		redisURL string
		noCache  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the erfgen HTTP API.

The server exposes POST /v1/generate for running the pipeline over GeoJSON
layers, plus /healthz and Prometheus /metrics endpoints. With --redis the
result cache is shared across replicas; otherwise the local file cache is
used.

Flags fall back to the ERFGEN_ADDR and ERFGEN_REDIS_URL environment
variables; a .env file in the working directory is loaded if present.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Missing .env is the normal case outside deployments.
			_ = godotenv.Load()

			if !cmd.Flags().Changed("addr") {
				if env := os.Getenv("ERFGEN_ADDR"); env != "" {
					addr = env
				}
			}
			if redisURL == "" {
				redisURL = os.Getenv("ERFGEN_REDIS_URL")
			}

			return c.runServe(cmd, addr, redisURL, noCache)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&redisURL, "redis", "", "redis URL for a shared result cache (redis://host:port)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable result caching")

	return cmd
}

func (c *CLI) runServe(cmd *cobra.Command, addr, redisURL string, noCache bool) error {
	ctx := cmd.Context()

	var store cache.Cache
	switch {
	case noCache:
		store = cache.NewNullCache()
	case redisURL != "":
		rc, err := cache.NewRedisCache(ctx, redisURL)
		if err != nil {
			return err
		}
		store = rc
		c.Logger.Info("using redis result cache")
	default:
		fc, err := newCache(false)
		if err != nil {
			return err
		}
		store = fc
	}

	runner := pipeline.NewRunner(geosengine.New(), store, nil, c.Logger)
	defer runner.Close()

	metrics := server.NewMetricsProvider()
	observability.SetRunHooks(metrics.RunHooks())

	srv := server.New(runner, c.Logger, metrics)
	return srv.Run(ctx, server.Config{Addr: addr})
}
