package cli

import (
	"github.com/BurntSushi/toml"

	"github.com/mattfenn/erfgen/pkg/engine"
	"github.com/mattfenn/erfgen/pkg/errors"
	"github.com/mattfenn/erfgen/pkg/pipeline"
)

// RunConfig is the TOML configuration for a generate run. Every field is
// optional; command-line flags override whatever the file sets.
//
// Example:
//
//	points = "buildings.geojson"
//	roads = "roads.geojson"
//	output = "parcels.geojson"
//
//	[pipeline]
//	mode = "cadastral"
//	target_frame = "EPSG:32736"
//	road_buffer_distance = 10.0
//	min_area = 250.0
//	max_area = 2000.0
//	orthogonalize = true
type RunConfig struct {
	Points   string         `toml:"points"`
	Roads    string         `toml:"roads"`
	Output   string         `toml:"output"`
	Pipeline PipelineConfig `toml:"pipeline"`
}

// PipelineConfig mirrors pipeline.Options in TOML form.
type PipelineConfig struct {
	Mode                       string  `toml:"mode"`
	TargetFrame                string  `toml:"target_frame"`
	RoadBufferDistance         float64 `toml:"road_buffer_distance"`
	MinArea                    float64 `toml:"min_area"`
	MaxArea                    float64 `toml:"max_area"`
	Orthogonalize              bool    `toml:"orthogonalize"`
	AngleTolerance             float64 `toml:"angle_tolerance"`
	MaxOrthogonalizeIterations int     `toml:"max_orthogonalize_iterations"`
	SnapTolerance              float64 `toml:"snap_tolerance"`
	CapStyle                   string  `toml:"cap_style"`
	ExtentPaddingPercent       float64 `toml:"extent_padding_percent"`
	SkipBlockClip              bool    `toml:"skip_block_clip"`
}

// LoadRunConfig reads a TOML run configuration from path.
func LoadRunConfig(path string) (RunConfig, error) {
	var cfg RunConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return RunConfig{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "load config %s", path)
	}
	return cfg, nil
}

// Apply copies the config's set values onto opts. Zero values are left to
// the pipeline's own defaulting, except booleans, which the file always
// decides when present.
func (p PipelineConfig) Apply(opts *pipeline.Options) {
	if p.Mode != "" {
		opts.Mode = pipeline.Mode(p.Mode)
	}
	if p.TargetFrame != "" {
		opts.TargetFrame = p.TargetFrame
	}
	if p.RoadBufferDistance != 0 {
		opts.RoadBufferDistance = p.RoadBufferDistance
	}
	if p.MinArea != 0 {
		opts.MinArea = p.MinArea
	}
	if p.MaxArea != 0 {
		opts.MaxArea = p.MaxArea
	}
	opts.Orthogonalize = p.Orthogonalize
	if p.AngleTolerance != 0 {
		opts.AngleTolerance = p.AngleTolerance
	}
	if p.MaxOrthogonalizeIterations != 0 {
		opts.MaxOrthogonalizeIterations = p.MaxOrthogonalizeIterations
	}
	if p.SnapTolerance != 0 {
		opts.SnapTolerance = p.SnapTolerance
	}
	if p.CapStyle != "" {
		opts.CapStyle = engine.CapStyle(p.CapStyle)
	}
	if p.ExtentPaddingPercent != 0 {
		opts.ExtentPaddingPercent = p.ExtentPaddingPercent
	}
	opts.SkipBlockClip = p.SkipBlockClip
}
