// Package engine defines the geometry kernel interface the pipeline depends
// on.
//
// The pipeline composes a small set of planar operations: buffering,
// dissolving, nearest-site partitioning (Voronoi), boolean differences and
// intersections, validity repair, and vertex snapping. The default
// implementation wraps GEOS (see the geosengine subpackage); tests substitute
// scripted fakes. All geometries cross the interface as orb values in the
// working (metric) frame.
package engine

import "github.com/paulmach/orb"

// CapStyle selects the end-cap treatment for line buffering.
type CapStyle string

// Supported cap styles. Flat matches surveyed road reserves, which end where
// the centerline ends.
const (
	CapFlat   CapStyle = "flat"
	CapRound  CapStyle = "round"
	CapSquare CapStyle = "square"
)

// BufferStyle bundles the stylistic buffer parameters. Joins are always
// round; eight quadrant segments approximate each circular arc.
type BufferStyle struct {
	QuadSegs int
	Cap      CapStyle
}

// DefaultBufferStyle returns the buffer styling used for road reserves.
func DefaultBufferStyle() BufferStyle {
	return BufferStyle{QuadSegs: 8, Cap: CapFlat}
}

// Engine is the geometry kernel contract.
//
// Implementations must be safe for use by a single pipeline run at a time;
// the GEOS implementation additionally serializes access internally so one
// Engine value can back concurrent runs.
type Engine interface {
	// BufferAndDissolve expands every line by distance on both sides and
	// unions the results into one region with no internal seams. An empty
	// line set yields an empty result, not an error.
	BufferAndDissolve(lines []orb.LineString, distance float64, style BufferStyle) (orb.MultiPolygon, error)

	// Partition computes the nearest-site partition of the clip extent for
	// the given sites. The result is parallel to points: cell i contains
	// every location at least as close to points[i] as to any other site,
	// clipped to clip. A nil entry marks a site that received no cell
	// (exact duplicates are the usual cause).
	Partition(points []orb.Point, clip orb.Bound) ([]orb.Polygon, error)

	// Difference returns p minus sub, split into its constituent polygons.
	// An empty result slice means p was fully covered.
	Difference(p orb.Polygon, sub orb.MultiPolygon) ([]orb.Polygon, error)

	// Intersection returns the polygonal parts of p ∩ other.
	Intersection(p orb.Polygon, other orb.MultiPolygon) ([]orb.Polygon, error)

	// FixInvalid repairs self-intersections and non-simple rings, possibly
	// splitting p into several valid polygons.
	FixInvalid(p orb.Polygon) ([]orb.Polygon, error)

	// Snap moves vertices of p onto nearby vertices/edges of reference,
	// within tolerance.
	Snap(p orb.Polygon, reference orb.MultiPolygon, tolerance float64) (orb.Polygon, error)

	// Covers reports whether p covers pt (boundary counts).
	Covers(p orb.Polygon, pt orb.Point) (bool, error)

	// Area returns the planar area of p in square working units.
	Area(p orb.Polygon) (float64, error)
}
