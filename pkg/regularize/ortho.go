// Package regularize cleans up raw parcel boundaries.
//
// Tessellation output is geometrically correct but survey-unrealistic: cell
// boundaries meet at arbitrary angles and adjacent parcels rarely share
// vertices exactly. This package provides the two cleanup stages the
// pipeline runs after subtraction:
//
//   - orthogonalization: nudge vertices so near-right interior angles become
//     exact right angles (pure Go, bounded iteration)
//   - topology repair: fix invalid rings, snap shared boundaries together,
//     and remove overlaps, via the geometry engine
//
// Orthogonalization is optional; repair always runs.
package regularize

import (
	"math"

	"github.com/paulmach/orb"
)

// OrthoOptions controls vertex orthogonalization.
type OrthoOptions struct {
	// AngleTolerance is how far (in degrees) an interior angle may deviate
	// from 90° or 180° and still be snapped. Sane range is 0–45.
	AngleTolerance float64

	// MaxIterations bounds the number of smoothing passes per ring.
	MaxIterations int
}

// convergence threshold: stop iterating once no vertex moves farther than
// this (working units).
const orthoEpsilon = 1e-9

// Orthogonalize returns a copy of p whose near-right interior angles have
// been snapped to exact right angles and whose near-straight vertices have
// been straightened. The input is not modified. If a smoothing pass would
// introduce a self-intersection, that pass is rolled back and the previous
// geometry is returned.
func Orthogonalize(p orb.Polygon, opts OrthoOptions) orb.Polygon {
	if opts.AngleTolerance <= 0 || opts.MaxIterations <= 0 {
		return p
	}

	out := make(orb.Polygon, len(p))
	for i, ring := range p {
		out[i] = orthogonalizeRing(ring, opts)
	}
	return out
}

func orthogonalizeRing(ring orb.Ring, opts OrthoOptions) orb.Ring {
	pts := openRing(ring)
	if len(pts) < 4 {
		// Triangles cannot hold a right-angle snap without degenerating.
		return cloneRing(ring)
	}

	for iter := 0; iter < opts.MaxIterations; iter++ {
		next := make([]orb.Point, len(pts))
		copy(next, pts)

		maxMove := 0.0
		for i := range pts {
			prev := pts[(i+len(pts)-1)%len(pts)]
			cur := pts[i]
			nxt := pts[(i+1)%len(pts)]

			adjusted, ok := snapVertex(prev, cur, nxt, opts.AngleTolerance)
			if !ok {
				continue
			}
			next[i] = adjusted
			if d := dist(cur, adjusted); d > maxMove {
				maxMove = d
			}
		}

		if ringSelfIntersects(next) {
			break
		}
		pts = next

		if maxMove < orthoEpsilon {
			break
		}
	}

	return closeRing(pts)
}

// snapVertex returns the adjusted position for cur, or ok=false when the
// angle at cur is outside both snap bands.
func snapVertex(prev, cur, next orb.Point, tolerance float64) (orb.Point, bool) {
	angle := interiorAngle(prev, cur, next)

	switch {
	case math.Abs(angle-180) <= tolerance:
		// Near-straight: project onto the prev-next chord.
		return projectOntoSegment(cur, prev, next), true
	case math.Abs(angle-90) <= tolerance:
		// Near-right: any point on the circle with diameter prev-next sees
		// the chord at exactly 90° (Thales), so move cur radially onto it.
		center := orb.Point{(prev[0] + next[0]) / 2, (prev[1] + next[1]) / 2}
		radius := dist(prev, next) / 2
		d := dist(cur, center)
		if radius == 0 || d == 0 {
			return orb.Point{}, false
		}
		scale := radius / d
		return orb.Point{
			center[0] + (cur[0]-center[0])*scale,
			center[1] + (cur[1]-center[1])*scale,
		}, true
	}
	return orb.Point{}, false
}

// interiorAngle returns the angle at cur between the edges to prev and next,
// in degrees within [0, 180].
func interiorAngle(prev, cur, next orb.Point) float64 {
	ax, ay := prev[0]-cur[0], prev[1]-cur[1]
	bx, by := next[0]-cur[0], next[1]-cur[1]

	la := math.Hypot(ax, ay)
	lb := math.Hypot(bx, by)
	if la == 0 || lb == 0 {
		return 180
	}

	cos := (ax*bx + ay*by) / (la * lb)
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi
}

func projectOntoSegment(p, a, b orb.Point) orb.Point {
	abx, aby := b[0]-a[0], b[1]-a[1]
	l2 := abx*abx + aby*aby
	if l2 == 0 {
		return a
	}
	t := ((p[0]-a[0])*abx + (p[1]-a[1])*aby) / l2
	t = math.Max(0, math.Min(1, t))
	return orb.Point{a[0] + t*abx, a[1] + t*aby}
}

func dist(a, b orb.Point) float64 {
	return math.Hypot(a[0]-b[0], a[1]-b[1])
}

// ringSelfIntersects reports whether any two non-adjacent edges of the open
// ring cross. Quadratic, but parcel rings are small.
func ringSelfIntersects(pts []orb.Point) bool {
	n := len(pts)
	if n < 4 {
		return false
	}
	for i := 0; i < n; i++ {
		a1 := pts[i]
		a2 := pts[(i+1)%n]
		for j := i + 2; j < n; j++ {
			// Skip the edge sharing a vertex with edge i (including the
			// wrap-around pair).
			if i == 0 && j == n-1 {
				continue
			}
			b1 := pts[j]
			b2 := pts[(j+1)%n]
			if segmentsCross(a1, a2, b1, b2) {
				return true
			}
		}
	}
	return false
}

func segmentsCross(a1, a2, b1, b2 orb.Point) bool {
	d1 := cross(b1, b2, a1)
	d2 := cross(b1, b2, a2)
	d3 := cross(a1, a2, b1)
	d4 := cross(a1, a2, b2)
	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}

func cross(o, a, b orb.Point) float64 {
	return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
}

// openRing strips the closing duplicate vertex, if present.
func openRing(r orb.Ring) []orb.Point {
	pts := make([]orb.Point, len(r))
	copy(pts, r)
	if len(pts) > 1 && pts[0] == pts[len(pts)-1] {
		pts = pts[:len(pts)-1]
	}
	return pts
}

func closeRing(pts []orb.Point) orb.Ring {
	ring := make(orb.Ring, len(pts), len(pts)+1)
	copy(ring, pts)
	if len(ring) > 0 && ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	return ring
}

func cloneRing(r orb.Ring) orb.Ring {
	out := make(orb.Ring, len(r))
	copy(out, r)
	return out
}
