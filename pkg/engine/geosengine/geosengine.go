// Package geosengine implements the geometry kernel on top of GEOS via
// twpayne/go-geos.
//
// GEOS reports failures by panicking through the context error handler, so
// every exported operation converts panics into GEOMETRY_ENGINE errors at the
// package boundary. A single GEOS context backs each Engine; the context
// serializes its own access, so one Engine can safely serve concurrent
// pipeline runs.
package geosengine

import (
	"github.com/paulmach/orb"
	"github.com/twpayne/go-geos"

	apperrors "github.com/mattfenn/erfgen/pkg/errors"
	"github.com/mattfenn/erfgen/pkg/engine"
)

// Engine is the GEOS-backed geometry kernel.
type Engine struct {
	ctx *geos.Context
}

// New creates a GEOS-backed engine.
func New() *Engine {
	return &Engine{ctx: geos.NewContext()}
}

// catch converts a GEOS panic into a typed engine error.
func catch(err *error, op string) {
	if r := recover(); r != nil {
		*err = apperrors.New(apperrors.ErrCodeEngine, "%s: %v", op, r)
	}
}

func capStyle(c engine.CapStyle) geos.BufCapStyle {
	switch c {
	case engine.CapRound:
		return geos.BufCapStyleRound
	case engine.CapSquare:
		return geos.BufCapStyleSquare
	default:
		return geos.BufCapStyleFlat
	}
}

// BufferAndDissolve buffers every centerline and unions the results into one
// seamless reserve region.
func (e *Engine) BufferAndDissolve(lines []orb.LineString, distance float64, style engine.BufferStyle) (mp orb.MultiPolygon, err error) {
	defer catch(&err, "buffer and dissolve")

	if len(lines) == 0 {
		return nil, nil
	}
	if style.QuadSegs <= 0 {
		style.QuadSegs = 8
	}

	buffers := make([]*geos.Geom, 0, len(lines))
	for _, ls := range lines {
		g := e.lineToGeos(ls)
		buffers = append(buffers, g.BufferWithStyle(distance, style.QuadSegs, capStyle(style.Cap), geos.BufJoinStyleRound, 0))
	}

	dissolved := e.ctx.NewCollection(geos.TypeIDGeometryCollection, buffers).UnaryUnion()
	return orb.MultiPolygon(collectPolygons(dissolved)), nil
}

// Partition computes clipped Voronoi cells for the sites, aligned to the
// input order. Duplicate sites yield nil entries.
func (e *Engine) Partition(points []orb.Point, clip orb.Bound) (cells []orb.Polygon, err error) {
	defer catch(&err, "nearest-site partition")

	if len(points) == 0 {
		return nil, nil
	}

	clipGeom := e.boundToGeos(clip)
	cells = make([]orb.Polygon, len(points))

	if len(points) == 1 {
		// A single site owns the whole clip extent; GEOS declines to build
		// a diagram for one input.
		cells[0] = orb.Polygon{boundRing(clip)}
		return cells, nil
	}

	sites := make([]*geos.Geom, len(points))
	for i, p := range points {
		sites[i] = e.pointToGeos(p)
	}
	multi := e.ctx.NewCollection(geos.TypeIDMultiPoint, sites)

	diagram := multi.VoronoiDiagram(clipGeom, 0, false)

	// The diagram's cells come back in arbitrary order; match each cell to
	// the site it covers, then clip to the extent.
	for i := 0; i < diagram.NumGeometries(); i++ {
		cell := diagram.Geometry(i)
		if cell.IsEmpty() || cell.TypeID() != geos.TypeIDPolygon {
			continue
		}
		for j, site := range sites {
			if cells[j] != nil || !cell.Intersects(site) {
				continue
			}
			clipped := collectPolygons(cell.Intersection(clipGeom))
			if len(clipped) > 0 {
				cells[j] = clipped[0]
			}
			break
		}
	}
	return cells, nil
}

// Difference returns p minus sub, split into constituent polygons.
func (e *Engine) Difference(p orb.Polygon, sub orb.MultiPolygon) (parts []orb.Polygon, err error) {
	defer catch(&err, "difference")

	if len(sub) == 0 {
		return []orb.Polygon{p}, nil
	}
	result := e.polygonToGeos(p).Difference(e.multiPolygonToGeos(sub))
	return collectPolygons(result), nil
}

// Intersection returns the polygonal parts of p ∩ other.
func (e *Engine) Intersection(p orb.Polygon, other orb.MultiPolygon) (parts []orb.Polygon, err error) {
	defer catch(&err, "intersection")

	if len(other) == 0 {
		return nil, nil
	}
	result := e.polygonToGeos(p).Intersection(e.multiPolygonToGeos(other))
	return collectPolygons(result), nil
}

// FixInvalid repairs self-intersections and non-simple rings.
func (e *Engine) FixInvalid(p orb.Polygon) (parts []orb.Polygon, err error) {
	defer catch(&err, "fix invalid geometry")

	g := e.polygonToGeos(p)
	if g.IsValid() {
		return []orb.Polygon{p}, nil
	}
	return collectPolygons(g.MakeValid()), nil
}

// Snap moves vertices of p onto nearby vertices and edges of reference.
func (e *Engine) Snap(p orb.Polygon, reference orb.MultiPolygon, tolerance float64) (out orb.Polygon, err error) {
	defer catch(&err, "snap")

	if len(reference) == 0 || tolerance <= 0 {
		return p, nil
	}
	snapped := e.polygonToGeos(p).Snap(e.multiPolygonToGeos(reference), tolerance)
	parts := collectPolygons(snapped)
	if len(parts) == 0 {
		// Snapping collapsed the polygon entirely; keep the original.
		return p, nil
	}
	return parts[0], nil
}

// Covers reports whether p covers pt, boundary included.
func (e *Engine) Covers(p orb.Polygon, pt orb.Point) (covered bool, err error) {
	defer catch(&err, "covers")
	return e.polygonToGeos(p).Covers(e.pointToGeos(pt)), nil
}

// Area returns the planar area of p.
func (e *Engine) Area(p orb.Polygon) (area float64, err error) {
	defer catch(&err, "area")
	return e.polygonToGeos(p).Area(), nil
}

// Ensure Engine implements the kernel contract.
var _ engine.Engine = (*Engine)(nil)
