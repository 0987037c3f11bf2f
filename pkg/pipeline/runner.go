package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/charmbracelet/log"
	"github.com/paulmach/orb"

	"github.com/mattfenn/erfgen/pkg/cache"
	"github.com/mattfenn/erfgen/pkg/crs"
	"github.com/mattfenn/erfgen/pkg/engine"
	"github.com/mattfenn/erfgen/pkg/errors"
	"github.com/mattfenn/erfgen/pkg/feature"
	"github.com/mattfenn/erfgen/pkg/observability"
	"github.com/mattfenn/erfgen/pkg/regularize"
)

// Runner encapsulates pipeline execution with caching.
// Both CLI and API can use this to avoid duplicating caching logic.
//
// The Runner is stateless except for the engine, cache and logger - it
// doesn't store run results. Multiple goroutines can safely use the same
// Runner with different options.
type Runner struct {
	Engine engine.Engine
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner around a geometry engine.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(eng engine.Engine, c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Engine: eng,
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Progress percents reported at stage boundaries. The two modes share the
// regularize/filter tail.
const (
	pctNormalize  = 10
	pctBuffer     = 25
	pctTessellate = 45
	pctSubtract   = 60
	pctClip       = 70
	pctRegularize = 85
	pctFilter     = 95
	pctDone       = 100

	pctBlocksNormalize = 15
	pctBlocksBuffer    = 35
	pctBlocksCarve     = 60
)

// Execute runs the complete pipeline for one input set.
//
// Cancellation is polled between stages: the run stops before the next stage
// starts, never mid-stage. On any outcome (success, failure, cancellation)
// the sink receives a final Report before Execute returns.
func (r *Runner) Execute(ctx context.Context, input Input, opts Options, sink Sink) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	if sink == nil {
		sink = NopSink{}
	}
	progress := &monotonicSink{inner: sink}

	if err := checkInput(input, opts); err != nil {
		progress.Report(0, "input rejected")
		return nil, err
	}

	// Try the result cache before doing any work.
	cacheKey := r.resultKey(input, opts)
	if !opts.Refresh {
		if cached, ok := r.lookupResult(ctx, cacheKey); ok {
			progress.Report(pctDone, "loaded result from cache")
			return cached, nil
		}
	}

	totalStart := time.Now()
	result := &Result{}

	var polys []orb.Polygon
	var err error
	if opts.IsBlocks() {
		polys, err = r.runBlocks(ctx, input, opts, progress, result)
	} else {
		polys, err = r.runCadastral(ctx, input, opts, progress, result)
	}
	if err != nil {
		return nil, err
	}

	// Regularize
	regStart := time.Now()
	if err := r.checkpoint(ctx, progress, "regularize"); err != nil {
		return nil, err
	}
	polys, err = regularize.Run(r.Engine, polys, regularize.Options{
		Orthogonalize:  opts.Orthogonalize,
		AngleTolerance: opts.AngleTolerance,
		MaxIterations:  opts.MaxOrthogonalizeIterations,
		SnapTolerance:  opts.SnapTolerance,
	})
	if err != nil {
		return nil, r.fail(progress, "regularize", err)
	}
	result.Stats.RegularizeTime = time.Since(regStart)
	progress.Report(pctRegularize, "regularized boundaries")
	observability.StageCompleted("regularize", result.Stats.RegularizeTime)

	// Filter
	if err := r.checkpoint(ctx, progress, "filter"); err != nil {
		return nil, err
	}
	parcels, err := r.filterByArea(polys, opts)
	if err != nil {
		return nil, r.fail(progress, "filter", err)
	}
	result.Stats.AfterFilter = len(parcels)
	progress.Report(pctFilter, fmt.Sprintf("filtered to %d parcels", len(parcels)))

	result.Parcels = feature.Collection{Frame: opts.TargetFrame, Parcels: parcels}
	result.Count = len(parcels)
	result.Stats.TotalTime = time.Since(totalStart)

	r.storeResult(ctx, cacheKey, result)

	opts.Logger.Info("pipeline complete",
		"mode", opts.Mode,
		"parcels", result.Count,
		"duration", result.Stats.TotalTime)
	observability.RunCompleted(string(opts.Mode), result.Count, result.Stats.TotalTime)
	progress.Report(pctDone, "done")

	return result, nil
}

// runCadastral runs normalize → buffer → tessellate → subtract → clip and
// returns the raw parcel candidates.
func (r *Runner) runCadastral(ctx context.Context, input Input, opts Options, progress *monotonicSink, result *Result) ([]orb.Polygon, error) {
	target, err := crs.ResolveLinear(opts.TargetFrame)
	if err != nil {
		return nil, err
	}

	// Normalize
	start := time.Now()
	if err := r.checkpoint(ctx, progress, "normalize"); err != nil {
		return nil, err
	}
	points, err := crs.NormalizePoints(input.Buildings, target)
	if err != nil {
		return nil, r.fail(progress, "normalize", err)
	}
	lines, err := crs.NormalizeLines(input.Roads, target)
	if err != nil {
		return nil, r.fail(progress, "normalize", err)
	}
	result.Stats.PointCount = len(points.Points)
	result.Stats.NormalizeTime = time.Since(start)
	progress.Report(pctNormalize, fmt.Sprintf("normalized %d points, %d roads", len(points.Points), len(lines.Lines)))
	observability.StageCompleted("normalize", result.Stats.NormalizeTime)

	// Buffer roads
	start = time.Now()
	if err := r.checkpoint(ctx, progress, "buffer roads"); err != nil {
		return nil, err
	}
	reserve, err := r.bufferRoads(lines, opts)
	if err != nil {
		return nil, r.fail(progress, "buffer roads", err)
	}
	result.Stats.BufferTime = time.Since(start)
	progress.Report(pctBuffer, "buffered road reserve")
	observability.StageCompleted("buffer", result.Stats.BufferTime)

	// Tessellate
	start = time.Now()
	if err := r.checkpoint(ctx, progress, "tessellate"); err != nil {
		return nil, err
	}
	extent := clipExtent(points, lines, opts)
	cells, err := r.Engine.Partition(points.Points, extent)
	if err != nil {
		return nil, r.fail(progress, "tessellate", err)
	}
	kept := compactCells(cells)
	if len(kept) < len(points.Points) {
		opts.Logger.Warn("coincident building points share a cell",
			"points", len(points.Points), "cells", len(kept))
	}
	result.Stats.CellCount = len(kept)
	result.Stats.TessellateTime = time.Since(start)
	progress.Report(pctTessellate, fmt.Sprintf("tessellated %d cells", len(kept)))
	observability.StageCompleted("tessellate", result.Stats.TessellateTime)

	// Subtract road reserve
	if err := r.checkpoint(ctx, progress, "subtract"); err != nil {
		return nil, err
	}
	polys, err := r.subtractReserve(kept, reserve)
	if err != nil {
		return nil, r.fail(progress, "subtract", err)
	}
	result.Stats.AfterSubtract = len(polys)
	progress.Report(pctSubtract, fmt.Sprintf("subtracted reserve, %d candidates", len(polys)))

	// Clip to blocks
	if opts.ClipToBlocks() && len(reserve) > 0 {
		if err := r.checkpoint(ctx, progress, "clip to blocks"); err != nil {
			return nil, err
		}
		blocks, err := r.carveBlocks(lines, reserve, opts)
		if err != nil {
			return nil, r.fail(progress, "clip to blocks", err)
		}
		result.Stats.BlockCount = len(blocks)
		polys, err = r.clipToBlocks(polys, blocks)
		if err != nil {
			return nil, r.fail(progress, "clip to blocks", err)
		}
		progress.Report(pctClip, fmt.Sprintf("clipped to %d blocks", len(blocks)))
	}

	return polys, nil
}

// runBlocks runs normalize → buffer → carve and returns the block polygons.
func (r *Runner) runBlocks(ctx context.Context, input Input, opts Options, progress *monotonicSink, result *Result) ([]orb.Polygon, error) {
	target, err := crs.ResolveLinear(opts.TargetFrame)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	if err := r.checkpoint(ctx, progress, "normalize"); err != nil {
		return nil, err
	}
	lines, err := crs.NormalizeLines(input.Roads, target)
	if err != nil {
		return nil, r.fail(progress, "normalize", err)
	}
	result.Stats.NormalizeTime = time.Since(start)
	progress.Report(pctBlocksNormalize, fmt.Sprintf("normalized %d roads", len(lines.Lines)))
	observability.StageCompleted("normalize", result.Stats.NormalizeTime)

	start = time.Now()
	if err := r.checkpoint(ctx, progress, "buffer roads"); err != nil {
		return nil, err
	}
	reserve, err := r.bufferRoads(lines, opts)
	if err != nil {
		return nil, r.fail(progress, "buffer roads", err)
	}
	result.Stats.BufferTime = time.Since(start)
	progress.Report(pctBlocksBuffer, "buffered road reserve")
	observability.StageCompleted("buffer", result.Stats.BufferTime)

	if err := r.checkpoint(ctx, progress, "carve blocks"); err != nil {
		return nil, err
	}
	blocks, err := r.carveBlocks(lines, reserve, opts)
	if err != nil {
		return nil, r.fail(progress, "carve blocks", err)
	}
	result.Stats.BlockCount = len(blocks)
	progress.Report(pctBlocksCarve, fmt.Sprintf("carved %d blocks", len(blocks)))

	return blocks, nil
}

// =============================================================================
// Stage helpers
// =============================================================================

func (r *Runner) bufferRoads(lines feature.LineLayer, opts Options) (orb.MultiPolygon, error) {
	if len(lines.Lines) == 0 {
		return nil, nil
	}
	return r.Engine.BufferAndDissolve(lines.Lines, opts.RoadBufferDistance, opts.BufferStyle())
}

// subtractReserve removes the road reserve from every cell. An empty reserve
// passes cells through unchanged.
func (r *Runner) subtractReserve(cells []orb.Polygon, reserve orb.MultiPolygon) ([]orb.Polygon, error) {
	if len(reserve) == 0 {
		return cells, nil
	}
	var out []orb.Polygon
	for _, cell := range cells {
		parts, err := r.Engine.Difference(cell, reserve)
		if err != nil {
			return nil, err
		}
		out = append(out, parts...)
	}
	return out, nil
}

// carveBlocks subtracts the road reserve from a padded extent rectangle,
// yielding the block polygons between roads.
func (r *Runner) carveBlocks(lines feature.LineLayer, reserve orb.MultiPolygon, opts Options) ([]orb.Polygon, error) {
	b := lines.Bound()
	if feature.IsEmptyBound(b) {
		b = reserve.Bound()
	}
	pad := blockExtentFactor * opts.RoadBufferDistance
	extent := padBound(b, pad)
	return r.Engine.Difference(boundPolygon(extent), reserve)
}

func (r *Runner) clipToBlocks(polys []orb.Polygon, blocks []orb.Polygon) ([]orb.Polygon, error) {
	var out []orb.Polygon
	for _, p := range polys {
		parts, err := r.Engine.Intersection(p, orb.MultiPolygon(blocks))
		if err != nil {
			return nil, err
		}
		out = append(out, parts...)
	}
	return out, nil
}

// filterByArea keeps polygons whose area falls inside [MinArea, MaxArea] and
// turns them into parcels. MaxArea zero means unbounded.
func (r *Runner) filterByArea(polys []orb.Polygon, opts Options) ([]feature.Parcel, error) {
	var parcels []feature.Parcel
	for _, p := range polys {
		area, err := r.Engine.Area(p)
		if err != nil {
			return nil, err
		}
		if area < opts.MinArea {
			continue
		}
		if opts.MaxArea > 0 && area > opts.MaxArea {
			continue
		}
		parcels = append(parcels, feature.NewParcel(p, area))
	}
	return parcels, nil
}

// clipExtent is the tessellation clip rectangle: the data extent padded by
// ExtentPaddingPercent of its larger span, but never less than the block
// extent padding, so single-point and degenerate inputs still get a usable
// extent.
func clipExtent(points feature.PointLayer, lines feature.LineLayer, opts Options) orb.Bound {
	b := points.Bound()
	if lb := lines.Bound(); !feature.IsEmptyBound(lb) {
		b = b.Union(lb)
	}
	span := math.Max(b.Max[0]-b.Min[0], b.Max[1]-b.Min[1])
	pad := math.Max(span*opts.ExtentPaddingPercent/100, blockExtentFactor*opts.RoadBufferDistance)
	return padBound(b, pad)
}

func padBound(b orb.Bound, pad float64) orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.Min[0] - pad, b.Min[1] - pad},
		Max: orb.Point{b.Max[0] + pad, b.Max[1] + pad},
	}
}

func boundPolygon(b orb.Bound) orb.Polygon {
	return orb.Polygon{{
		b.Min, {b.Max[0], b.Min[1]}, b.Max, {b.Min[0], b.Max[1]}, b.Min,
	}}
}

// compactCells drops the nil placeholders Partition leaves for coincident
// sites.
func compactCells(cells []orb.Polygon) []orb.Polygon {
	var out []orb.Polygon
	for _, c := range cells {
		if c != nil {
			out = append(out, c)
		}
	}
	return out
}

// =============================================================================
// Cancellation and progress
// =============================================================================

// checkpoint polls for cancellation before a stage starts. The sink receives
// a terminal report when the run is cancelled.
func (r *Runner) checkpoint(ctx context.Context, progress *monotonicSink, stage string) error {
	if ctx.Err() != nil || progress.Cancelled() {
		progress.Report(0, fmt.Sprintf("cancelled before %s", stage))
		return errors.New(errors.ErrCodeCancelled, "run cancelled before %s", stage)
	}
	return nil
}

// fail delivers the terminal failure report and wraps err with the stage
// name. Errors that already carry a code keep it; everything else becomes a
// geometry engine error.
func (r *Runner) fail(progress *monotonicSink, stage string, err error) error {
	progress.Report(0, fmt.Sprintf("failed during %s", stage))
	return errors.Wrap(errors.GetCodeOr(err, errors.ErrCodeEngine), err, "%s stage", stage)
}

// =============================================================================
// Input validation and caching
// =============================================================================

func checkInput(input Input, opts Options) error {
	if !input.Buildings.Valid() || !input.Roads.Valid() {
		return errors.New(errors.ErrCodeInvalidInput, "input contains non-finite coordinates")
	}
	if opts.IsBlocks() {
		if len(input.Roads.Lines) == 0 {
			return errors.New(errors.ErrCodeInsufficientInput, "blocks mode requires at least one road centerline")
		}
		return nil
	}
	if len(input.Buildings.Points) == 0 {
		return errors.New(errors.ErrCodeInsufficientInput, "cadastral mode requires at least one building point")
	}
	return nil
}

// resultKey derives the cache key from a hash of the input geometry plus all
// options that influence the output.
func (r *Runner) resultKey(input Input, opts Options) string {
	data, err := json.Marshal(struct {
		Roads     feature.LineLayer
		Buildings feature.PointLayer
	}{input.Roads, input.Buildings})
	if err != nil {
		// Layers are plain slices of floats; marshaling cannot fail in
		// practice. Degrade to an uncacheable key.
		return ""
	}
	return r.Keyer.ResultKey(cache.Hash(data), opts.ResultKeyOpts())
}

func (r *Runner) lookupResult(ctx context.Context, key string) (*Result, bool) {
	if key == "" {
		return nil, false
	}
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil || !hit {
		return nil, false
	}
	var coll feature.Collection
	if err := json.Unmarshal(data, &coll); err != nil {
		return nil, false
	}
	return &Result{
		Parcels:  coll,
		Count:    coll.Count(),
		CacheHit: true,
	}, true
}

func (r *Runner) storeResult(ctx context.Context, key string, result *Result) {
	if key == "" {
		return
	}
	if data, err := json.Marshal(result.Parcels); err == nil {
		_ = r.Cache.Set(ctx, key, data, cache.TTLResult)
	}
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
