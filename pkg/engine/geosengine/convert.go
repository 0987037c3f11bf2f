package geosengine

import (
	"github.com/paulmach/orb"
	"github.com/twpayne/go-geos"
)

// ringCoords converts an orb ring to a closed GEOS coordinate slice.
func ringCoords(r orb.Ring) [][]float64 {
	n := len(r)
	closed := n > 0 && r[0] == r[n-1]
	size := n
	if !closed {
		size = n + 1
	}

	coords := make([][]float64, 0, size)
	for _, p := range r {
		coords = append(coords, []float64{p[0], p[1]})
	}
	if !closed && n > 0 {
		coords = append(coords, []float64{r[0][0], r[0][1]})
	}
	return coords
}

func (e *Engine) polygonToGeos(p orb.Polygon) *geos.Geom {
	rings := make([][][]float64, 0, len(p))
	for _, r := range p {
		rings = append(rings, ringCoords(r))
	}
	return e.ctx.NewPolygon(rings)
}

func (e *Engine) multiPolygonToGeos(mp orb.MultiPolygon) *geos.Geom {
	if len(mp) == 0 {
		return e.ctx.NewEmptyPolygon()
	}
	polys := make([]*geos.Geom, 0, len(mp))
	for _, p := range mp {
		polys = append(polys, e.polygonToGeos(p))
	}
	return e.ctx.NewCollection(geos.TypeIDMultiPolygon, polys)
}

func (e *Engine) lineToGeos(ls orb.LineString) *geos.Geom {
	coords := make([][]float64, len(ls))
	for i, p := range ls {
		coords[i] = []float64{p[0], p[1]}
	}
	return e.ctx.NewLineString(coords)
}

func (e *Engine) pointToGeos(p orb.Point) *geos.Geom {
	return e.ctx.NewPoint([]float64{p[0], p[1]})
}

func (e *Engine) boundToGeos(b orb.Bound) *geos.Geom {
	return e.polygonToGeos(orb.Polygon{boundRing(b)})
}

func boundRing(b orb.Bound) orb.Ring {
	return orb.Ring{
		{b.Min[0], b.Min[1]},
		{b.Max[0], b.Min[1]},
		{b.Max[0], b.Max[1]},
		{b.Min[0], b.Max[1]},
		{b.Min[0], b.Min[1]},
	}
}

func geosToRing(g *geos.Geom) orb.Ring {
	coords := g.CoordSeq().ToCoords()
	ring := make(orb.Ring, len(coords))
	for i, c := range coords {
		ring[i] = orb.Point{c[0], c[1]}
	}
	return ring
}

func geosToPolygon(g *geos.Geom) orb.Polygon {
	poly := orb.Polygon{geosToRing(g.ExteriorRing())}
	for i := 0; i < g.NumInteriorRings(); i++ {
		poly = append(poly, geosToRing(g.InteriorRing(i)))
	}
	return poly
}

// collectPolygons flattens a GEOS result (polygon, multipolygon, or
// collection) into individual non-empty polygons. Non-areal members such as
// slivers collapsed to lines are discarded.
func collectPolygons(g *geos.Geom) []orb.Polygon {
	if g == nil || g.IsEmpty() {
		return nil
	}

	switch g.TypeID() {
	case geos.TypeIDPolygon:
		return []orb.Polygon{geosToPolygon(g)}
	case geos.TypeIDMultiPolygon, geos.TypeIDGeometryCollection:
		var out []orb.Polygon
		for i := 0; i < g.NumGeometries(); i++ {
			out = append(out, collectPolygons(g.Geometry(i))...)
		}
		return out
	default:
		return nil
	}
}
