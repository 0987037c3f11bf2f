package regularize

import (
	"github.com/paulmach/orb"

	"github.com/mattfenn/erfgen/pkg/engine"
)

// Options bundles the full regularization configuration.
type Options struct {
	// Orthogonalize enables the vertex orthogonalization stage.
	Orthogonalize bool

	// AngleTolerance and MaxIterations configure orthogonalization.
	AngleTolerance float64
	MaxIterations  int

	// SnapTolerance is the vertex snapping distance for topology repair,
	// in working units. On a metric frame 0.001 is one millimeter.
	SnapTolerance float64
}

// vertexEpsilon is the distance below which consecutive vertices are
// considered duplicates and collapsed.
const vertexEpsilon = 1e-9

// Run applies the full regularization stage: optional orthogonalization,
// then topology repair. Repair always runs so the output satisfies the
// planar-partition invariant even when orthogonalization is disabled.
func Run(eng engine.Engine, polys []orb.Polygon, opts Options) ([]orb.Polygon, error) {
	work := polys
	if opts.Orthogonalize {
		work = make([]orb.Polygon, len(polys))
		for i, p := range polys {
			work[i] = Orthogonalize(p, OrthoOptions{
				AngleTolerance: opts.AngleTolerance,
				MaxIterations:  opts.MaxIterations,
			})
		}
	}
	return Repair(eng, work, opts.SnapTolerance)
}

// Repair makes the polygon set a clean planar partition:
//
//  1. repair any invalid polygon via the engine's validity fix
//  2. snap each polygon to the ones already accepted, so shared boundaries
//     coincide exactly within tolerance
//  3. subtract the accepted region from each polygon, removing overlaps
//  4. collapse duplicate consecutive vertices
//
// Polygons that vanish during repair are dropped. Running Repair on its own
// output produces no further change: the set is already valid, snapped, and
// pairwise disjoint, so every step is a no-op the second time.
func Repair(eng engine.Engine, polys []orb.Polygon, snapTolerance float64) ([]orb.Polygon, error) {
	var accepted []orb.Polygon

	for _, p := range polys {
		fixed, err := eng.FixInvalid(p)
		if err != nil {
			return nil, err
		}

		for _, part := range fixed {
			snapped, err := eng.Snap(part, orb.MultiPolygon(accepted), snapTolerance)
			if err != nil {
				return nil, err
			}

			disjoint, err := eng.Difference(snapped, orb.MultiPolygon(accepted))
			if err != nil {
				return nil, err
			}

			for _, d := range disjoint {
				if clean := dedupeVertices(d); len(clean) > 0 {
					accepted = append(accepted, clean)
				}
			}
		}
	}

	return accepted, nil
}

// dedupeVertices collapses consecutive near-coincident vertices in every
// ring and drops rings that degenerate below a triangle. Returns nil when
// the exterior ring degenerates.
func dedupeVertices(p orb.Polygon) orb.Polygon {
	var out orb.Polygon
	for i, ring := range p {
		clean := dedupeRing(ring)
		if len(clean) < 4 {
			if i == 0 {
				return nil
			}
			continue // degenerate hole, drop it
		}
		out = append(out, clean)
	}
	return out
}

func dedupeRing(r orb.Ring) orb.Ring {
	pts := openRing(r)
	var kept []orb.Point
	for _, p := range pts {
		if len(kept) > 0 && dist(kept[len(kept)-1], p) < vertexEpsilon {
			continue
		}
		kept = append(kept, p)
	}
	// The last point may coincide with the first after deduplication.
	for len(kept) > 1 && dist(kept[0], kept[len(kept)-1]) < vertexEpsilon {
		kept = kept[:len(kept)-1]
	}
	if len(kept) < 3 {
		return nil
	}
	return closeRing(kept)
}
