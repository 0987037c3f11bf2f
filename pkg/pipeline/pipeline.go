// Package pipeline provides the core cadastral generation pipeline for
// erfgen.
//
// This package implements the complete normalize → buffer → tessellate →
// subtract → regularize → filter pipeline that can be used by the CLI and
// the HTTP API. By centralizing this logic, we ensure consistent behavior
// across all entry points and avoid code duplication.
//
// # Architecture
//
// The pipeline is a linear state machine with a single mode branch chosen at
// start:
//
//	Start → Normalize → BufferRoads → {Tessellate → Subtract → ClipBlocks}
//	                                | {CarveBlocks}
//	      → Regularize → Filter → Done
//
// Cadastral mode takes the tessellation branch and produces one parcel per
// building point; blocks mode takes the carve branch and produces only the
// outer block polygons between roads. Between stages the runner reports
// progress to an injected sink and polls it for cancellation; a stage
// already in progress always runs to completion.
//
// # Usage
//
// Create a Runner and execute the pipeline:
//
//	runner := pipeline.NewRunner(geosengine.New(), cache, nil, logger)
//	opts := pipeline.Options{
//	    RoadBufferDistance: 10,
//	    MinArea:            250,
//	    MaxArea:            2000,
//	    TargetFrame:        "EPSG:32736",
//	    Mode:               pipeline.ModeCadastral,
//	}
//	result, err := runner.Execute(ctx, input, opts, pipeline.NopSink{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Count, "parcels")
package pipeline

import (
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/mattfenn/erfgen/pkg/cache"
	"github.com/mattfenn/erfgen/pkg/crs"
	"github.com/mattfenn/erfgen/pkg/engine"
	"github.com/mattfenn/erfgen/pkg/errors"
	"github.com/mattfenn/erfgen/pkg/feature"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and API
// =============================================================================

const (
	// DefaultRoadBufferDistance is the road reserve half-width in meters:
	// half a typical road width plus setback.
	DefaultRoadBufferDistance = 10.0

	// DefaultMinArea is the minimum parcel area in square meters.
	DefaultMinArea = 250.0

	// DefaultMaxArea is the maximum parcel area in square meters.
	// Zero means unbounded.
	DefaultMaxArea = 2000.0

	// DefaultAngleTolerance is how far an interior angle may deviate from
	// 90°/180° and still be squared up, in degrees.
	DefaultAngleTolerance = 15.0

	// DefaultMaxOrthogonalizeIterations bounds orthogonalization passes.
	DefaultMaxOrthogonalizeIterations = 10

	// DefaultExtentPaddingPercent pads the tessellation clip extent past
	// the building data extent, so edge points receive finite cells.
	DefaultExtentPaddingPercent = 30.0

	// DefaultSnapTolerance is the topology-repair snapping distance: one
	// millimeter in metric working units.
	DefaultSnapTolerance = 0.001

	// blockExtentFactor grows the blocks-mode extent past the reserve
	// bounds, in multiples of the buffer distance.
	blockExtentFactor = 5
)

// Mode selects which sub-pipeline a run takes.
type Mode string

const (
	// ModeCadastral produces one parcel per building point.
	ModeCadastral Mode = "cadastral"

	// ModeBlocks produces only the outer block polygons between roads.
	ModeBlocks Mode = "blocks"
)

// ValidModes is the set of supported pipeline modes.
var ValidModes = map[Mode]bool{
	ModeCadastral: true,
	ModeBlocks:    true,
}

// ValidCapStyles is the set of supported buffer end-cap styles.
var ValidCapStyles = map[engine.CapStyle]bool{
	engine.CapFlat:   true,
	engine.CapRound:  true,
	engine.CapSquare: true,
}

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for one pipeline run.
// This struct supports JSON serialization for API requests.
//
// Options are captured by value at run start: mutating an Options value
// after Execute has been called has no effect on the in-flight run.
type Options struct {
	// Geometry parameters
	RoadBufferDistance float64 `json:"road_buffer_distance,omitempty"`
	MinArea            float64 `json:"min_area,omitempty"`
	MaxArea            float64 `json:"max_area,omitempty"` // 0 = unbounded
	TargetFrame        string  `json:"target_frame,omitempty"`
	Mode               Mode    `json:"mode,omitempty"`

	// Regularization parameters
	Orthogonalize              bool    `json:"orthogonalize,omitempty"`
	AngleTolerance             float64 `json:"angle_tolerance,omitempty"`
	MaxOrthogonalizeIterations int     `json:"max_orthogonalize_iterations,omitempty"`
	SnapTolerance              float64 `json:"snap_tolerance,omitempty"`

	// Buffer and extent styling
	CapStyle             engine.CapStyle `json:"cap_style,omitempty"`
	ExtentPaddingPercent float64         `json:"extent_padding_percent,omitempty"`

	// SkipBlockClip disables clipping cadastral parcels to their enclosing
	// block (cadastral mode only). Clipping is on by default because it
	// prevents a parcel from spanning a road.
	SkipBlockClip bool `json:"skip_block_clip,omitempty"`

	// Refresh bypasses the result cache.
	Refresh bool `json:"refresh,omitempty"`

	// Runtime options (not serialized)
	Logger *log.Logger `json:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool `json:"-"`
}

// Input is the in-memory feature collections one run consumes.
type Input struct {
	// Roads holds the road centerlines. Required in blocks mode; optional
	// in cadastral mode (no roads means nothing is subtracted).
	Roads feature.LineLayer

	// Buildings holds the building points. Required in cadastral mode;
	// ignored in blocks mode.
	Buildings feature.PointLayer
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// Parcels is the final collection in the working frame. Ownership
	// passes to the caller; the pipeline retains nothing after returning.
	Parcels feature.Collection

	// Count is the number of parcels produced.
	Count int

	// Stats contains stage timing and size information.
	Stats Stats

	// CacheHit reports whether the result came from the cache.
	CacheHit bool
}

// Stats contains pipeline execution statistics.
type Stats struct {
	PointCount    int
	CellCount     int
	BlockCount    int
	AfterSubtract int
	AfterFilter   int

	NormalizeTime  time.Duration
	BufferTime     time.Duration
	TessellateTime time.Duration
	RegularizeTime time.Duration
	TotalTime      time.Duration
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults checks required fields and applies defaults.
// This method is idempotent - calling it multiple times has the same effect
// as calling it once.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}

	o.setDefaults()

	if o.RoadBufferDistance <= 0 {
		return errors.New(errors.ErrCodeInvalidConfig,
			"road buffer distance must be positive, got %g", o.RoadBufferDistance)
	}
	if o.MinArea < 0 {
		return errors.New(errors.ErrCodeInvalidConfig,
			"minimum area must not be negative, got %g", o.MinArea)
	}
	if o.MaxArea != 0 && o.MaxArea < o.MinArea {
		return errors.New(errors.ErrCodeInvalidConfig,
			"maximum area %g is below minimum area %g (use 0 for unbounded)", o.MaxArea, o.MinArea)
	}
	if !ValidModes[o.Mode] {
		return errors.New(errors.ErrCodeInvalidConfig,
			"invalid mode %q (must be cadastral or blocks)", o.Mode)
	}
	if !ValidCapStyles[o.CapStyle] {
		return errors.New(errors.ErrCodeInvalidConfig,
			"invalid cap style %q (must be flat, round, or square)", o.CapStyle)
	}
	if o.AngleTolerance < 0 || o.AngleTolerance > 45 {
		return errors.New(errors.ErrCodeInvalidConfig,
			"angle tolerance must be within 0-45 degrees, got %g", o.AngleTolerance)
	}
	if o.Orthogonalize && o.MaxOrthogonalizeIterations <= 0 {
		return errors.New(errors.ErrCodeInvalidConfig,
			"max orthogonalize iterations must be positive, got %d", o.MaxOrthogonalizeIterations)
	}
	if o.SnapTolerance <= 0 {
		return errors.New(errors.ErrCodeInvalidConfig,
			"snap tolerance must be positive, got %g", o.SnapTolerance)
	}
	if o.ExtentPaddingPercent < 0 {
		return errors.New(errors.ErrCodeInvalidConfig,
			"extent padding percent must not be negative, got %g", o.ExtentPaddingPercent)
	}

	// The target frame must be a projected metric frame; buffering by
	// meters and comparing square-meter areas is meaningless in degrees.
	if _, err := crs.ResolveLinear(o.TargetFrame); err != nil {
		return err
	}

	o.validated = true
	return nil
}

func (o *Options) setDefaults() {
	if o.Mode == "" {
		o.Mode = ModeCadastral
	}
	if o.CapStyle == "" {
		o.CapStyle = engine.CapFlat
	}
	if o.AngleTolerance == 0 {
		o.AngleTolerance = DefaultAngleTolerance
	}
	if o.MaxOrthogonalizeIterations == 0 {
		o.MaxOrthogonalizeIterations = DefaultMaxOrthogonalizeIterations
	}
	if o.SnapTolerance == 0 {
		o.SnapTolerance = DefaultSnapTolerance
	}
	if o.ExtentPaddingPercent == 0 {
		o.ExtentPaddingPercent = DefaultExtentPaddingPercent
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// ClipToBlocks reports whether cadastral parcels should be clipped to their
// enclosing block.
func (o *Options) ClipToBlocks() bool {
	return !o.SkipBlockClip
}

// IsBlocks returns true if this run produces blocks only.
func (o *Options) IsBlocks() bool {
	return o.Mode == ModeBlocks
}

// BufferStyle returns the engine buffer styling for this run.
func (o *Options) BufferStyle() engine.BufferStyle {
	style := engine.DefaultBufferStyle()
	style.Cap = o.CapStyle
	return style
}

// ResultKeyOpts returns cache key options for the final result.
func (o *Options) ResultKeyOpts() cache.ResultKeyOpts {
	return cache.ResultKeyOpts{
		Mode:                 string(o.Mode),
		BufferDistance:       o.RoadBufferDistance,
		MinArea:              o.MinArea,
		MaxArea:              o.MaxArea,
		TargetFrame:          o.TargetFrame,
		Orthogonalize:        o.Orthogonalize,
		AngleTolerance:       o.AngleTolerance,
		MaxIterations:        o.MaxOrthogonalizeIterations,
		SnapTolerance:        o.SnapTolerance,
		CapStyle:             string(o.CapStyle),
		ExtentPaddingPercent: o.ExtentPaddingPercent,
		ClipToBlocks:         o.ClipToBlocks(),
	}
}
