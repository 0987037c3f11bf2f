package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mattfenn/erfgen/pkg/engine"
	"github.com/mattfenn/erfgen/pkg/errors"
	"github.com/mattfenn/erfgen/pkg/feature"
	geoio "github.com/mattfenn/erfgen/pkg/io"
	"github.com/mattfenn/erfgen/pkg/pipeline"
)

// generateCommand creates the generate command, the main entry point of the
// CLI.
func (c *CLI) generateCommand() *cobra.Command {
	var (
		pointsPath string
		roadsPath  string
		output     string
		configPath string
		mode       string
		capStyle   string
		plain      bool
		noCache    bool
	)

	opts := pipeline.Options{
		RoadBufferDistance: pipeline.DefaultRoadBufferDistance,
		MinArea:            pipeline.DefaultMinArea,
		MaxArea:            pipeline.DefaultMaxArea,
	}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate cadastral parcels from roads and buildings",
		Long: `Generate cadastral parcels from road centerlines and building points.

Roads are buffered into a road reserve, building points seed a proximity
tessellation, and the reserve is subtracted from every cell so that each
building ends up on its own road-fronting parcel. With --mode blocks, the
buildings layer is ignored and only the block polygons between roads are
produced.

Inputs are GeoJSON feature collections; coordinates are reprojected into the
projected frame given by --frame before any distance or area is computed.

Results are cached locally keyed by input content and options, so repeated
runs with unchanged inputs return immediately.`,
		Example: `  erfgen generate -p buildings.geojson -r roads.geojson --frame EPSG:32736
  erfgen generate -r roads.geojson --mode blocks --frame EPSG:32736 -o blocks.geojson
  erfgen generate --config settlement.toml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				cfg, err := LoadRunConfig(configPath)
				if err != nil {
					return err
				}
				applyConfig(cmd, cfg, &opts, &pointsPath, &roadsPath, &output)
			}
			if cmd.Flags().Changed("mode") || opts.Mode == "" {
				opts.Mode = pipeline.Mode(mode)
			}
			if cmd.Flags().Changed("cap") || opts.CapStyle == "" {
				opts.CapStyle = engine.CapStyle(capStyle)
			}
			opts.Logger = c.Logger

			return c.runGenerate(cmd, opts, pointsPath, roadsPath, output, plain, noCache)
		},
	}

	cmd.Flags().StringVarP(&pointsPath, "points", "p", "", "building points GeoJSON (required for cadastral mode)")
	cmd.Flags().StringVarP(&roadsPath, "roads", "r", "", "road centerlines GeoJSON")
	cmd.Flags().StringVarP(&output, "output", "o", "parcels.geojson", "output GeoJSON file")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "TOML run configuration")
	cmd.Flags().StringVar(&mode, "mode", string(pipeline.ModeCadastral), "pipeline mode: cadastral or blocks")
	cmd.Flags().StringVar(&opts.TargetFrame, "frame", "", "projected working frame, e.g. EPSG:32736")
	cmd.Flags().Float64Var(&opts.RoadBufferDistance, "buffer", opts.RoadBufferDistance, "road reserve half-width in meters")
	cmd.Flags().Float64Var(&opts.MinArea, "min-area", opts.MinArea, "minimum parcel area in square meters")
	cmd.Flags().Float64Var(&opts.MaxArea, "max-area", opts.MaxArea, "maximum parcel area in square meters (0 = unbounded)")
	cmd.Flags().BoolVar(&opts.Orthogonalize, "orthogonalize", false, "square up near-right parcel corners")
	cmd.Flags().Float64Var(&opts.AngleTolerance, "angle-tolerance", 0, "orthogonalization angle tolerance in degrees")
	cmd.Flags().IntVar(&opts.MaxOrthogonalizeIterations, "max-iterations", 0, "orthogonalization iteration bound")
	cmd.Flags().Float64Var(&opts.SnapTolerance, "snap-tolerance", 0, "topology repair snap distance in working units")
	cmd.Flags().StringVar(&capStyle, "cap", string(engine.CapFlat), "buffer end-cap style: flat, round, or square")
	cmd.Flags().Float64Var(&opts.ExtentPaddingPercent, "extent-padding", 0, "tessellation extent padding as percent of data extent")
	cmd.Flags().BoolVar(&opts.SkipBlockClip, "no-block-clip", false, "do not clip parcels to their enclosing block")
	cmd.Flags().BoolVar(&opts.Refresh, "refresh", false, "recompute even when a cached result exists")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the result cache")
	cmd.Flags().BoolVar(&plain, "plain", false, "log progress lines instead of the interactive bar")

	return cmd
}

// applyConfig copies config values into the run parameters, except where an
// explicit flag already decided them.
func applyConfig(cmd *cobra.Command, cfg RunConfig, opts *pipeline.Options, pointsPath, roadsPath, output *string) {
	if cfg.Points != "" && !cmd.Flags().Changed("points") {
		*pointsPath = cfg.Points
	}
	if cfg.Roads != "" && !cmd.Flags().Changed("roads") {
		*roadsPath = cfg.Roads
	}
	if cfg.Output != "" && !cmd.Flags().Changed("output") {
		*output = cfg.Output
	}

	fromFlags := *opts
	cfg.Pipeline.Apply(opts)

	// Changed flags win over the file.
	flagOverrides := map[string]func(){
		"frame":           func() { opts.TargetFrame = fromFlags.TargetFrame },
		"buffer":          func() { opts.RoadBufferDistance = fromFlags.RoadBufferDistance },
		"min-area":        func() { opts.MinArea = fromFlags.MinArea },
		"max-area":        func() { opts.MaxArea = fromFlags.MaxArea },
		"orthogonalize":   func() { opts.Orthogonalize = fromFlags.Orthogonalize },
		"angle-tolerance": func() { opts.AngleTolerance = fromFlags.AngleTolerance },
		"max-iterations":  func() { opts.MaxOrthogonalizeIterations = fromFlags.MaxOrthogonalizeIterations },
		"snap-tolerance":  func() { opts.SnapTolerance = fromFlags.SnapTolerance },
		"extent-padding":  func() { opts.ExtentPaddingPercent = fromFlags.ExtentPaddingPercent },
		"no-block-clip":   func() { opts.SkipBlockClip = fromFlags.SkipBlockClip },
	}
	for name, apply := range flagOverrides {
		if cmd.Flags().Changed(name) {
			apply()
		}
	}
}

func (c *CLI) runGenerate(cmd *cobra.Command, opts pipeline.Options, pointsPath, roadsPath, output string, plain, noCache bool) error {
	input, err := loadInput(pointsPath, roadsPath, opts)
	if err != nil {
		return err
	}

	runner, err := c.newRunner(noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	t := newTimer(c.Logger)
	result, err := c.runWithProgress(cmd.Context(), runner, input, opts, plain)
	if errors.IsCancelled(err) {
		printWarning("Run cancelled, no output written")
		return nil
	}
	if err != nil {
		return err
	}

	if err := geoio.ExportCollection(result.Parcels, output); err != nil {
		return err
	}
	t.done(fmt.Sprintf("Generated %d parcels", result.Count))

	printSuccess("Wrote %d parcels", result.Count)
	printStats(result.Count, meanArea(result.Parcels), result.CacheHit)
	printFile(output)
	printNextStep("Preview the result", fmt.Sprintf("erfgen preview %s", output))
	return nil
}

// loadInput reads the configured layers. A missing buildings path is allowed
// in blocks mode; a missing roads path is allowed in cadastral mode.
func loadInput(pointsPath, roadsPath string, opts pipeline.Options) (pipeline.Input, error) {
	var input pipeline.Input

	if pointsPath != "" {
		points, err := geoio.ImportPoints(pointsPath)
		if err != nil {
			return pipeline.Input{}, err
		}
		input.Buildings = points
	} else if opts.Mode != pipeline.ModeBlocks {
		return pipeline.Input{}, errors.New(errors.ErrCodeInvalidConfig,
			"cadastral mode requires a building points layer (--points)")
	}

	if roadsPath != "" {
		roads, err := geoio.ImportLines(roadsPath)
		if err != nil {
			return pipeline.Input{}, err
		}
		input.Roads = roads
	}

	return input, nil
}

func meanArea(coll feature.Collection) float64 {
	if len(coll.Parcels) == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range coll.Parcels {
		sum += p.Area
	}
	return sum / float64(len(coll.Parcels))
}
