// Package feature defines the in-memory vector layers the pipeline consumes
// and produces.
//
// Layers are plain slices of orb geometries tagged with the reference frame
// their coordinates are expressed in. The pipeline never touches persistence:
// callers load layers (typically from GeoJSON via pkg/io), hand them to the
// pipeline, and own the resulting parcel collection.
package feature

import (
	"math"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

// PointLayer is a set of point features tagged with a reference frame.
// Each point represents one building location.
type PointLayer struct {
	Frame  string // EPSG code, e.g. "EPSG:32736"
	Points []orb.Point
}

// LineLayer is a set of line features tagged with a reference frame.
// Lines are road centerlines; multiple features are treated as one unordered
// network for buffering.
type LineLayer struct {
	Frame string
	Lines []orb.LineString
}

// Parcel is one output polygon with its computed attributes.
type Parcel struct {
	ID       string      // stable per-run identifier
	Geometry orb.Polygon // simple polygon in the working frame
	Area     float64     // square working units
}

// Collection is the terminal artifact of a pipeline run: an ordered set of
// parcels in the working frame. Ownership passes to the caller on return.
type Collection struct {
	Frame   string
	Parcels []Parcel
}

// NewParcel assigns a fresh id to geom and records its area.
func NewParcel(geom orb.Polygon, area float64) Parcel {
	return Parcel{
		ID:       uuid.NewString(),
		Geometry: geom,
		Area:     area,
	}
}

// Count returns the number of parcels in the collection.
func (c *Collection) Count() int {
	return len(c.Parcels)
}

// Bound returns the bounding box of all parcels, or an empty bound if the
// collection has no geometry.
func (c *Collection) Bound() orb.Bound {
	b := emptyBound()
	for _, p := range c.Parcels {
		b = b.Union(p.Geometry.Bound())
	}
	return b
}

// Valid reports whether every point coordinate in the layer is finite.
func (l *PointLayer) Valid() bool {
	for _, p := range l.Points {
		if !finite(p) {
			return false
		}
	}
	return true
}

// Valid reports whether every vertex coordinate in the layer is finite.
func (l *LineLayer) Valid() bool {
	for _, ls := range l.Lines {
		for _, p := range ls {
			if !finite(p) {
				return false
			}
		}
	}
	return true
}

// Bound returns the bounding box of all points in the layer.
func (l *PointLayer) Bound() orb.Bound {
	b := emptyBound()
	for _, p := range l.Points {
		b = b.Union(orb.Bound{Min: p, Max: p})
	}
	return b
}

// Bound returns the bounding box of all lines in the layer.
func (l *LineLayer) Bound() orb.Bound {
	b := emptyBound()
	for _, ls := range l.Lines {
		b = b.Union(ls.Bound())
	}
	return b
}

func finite(p orb.Point) bool {
	return !math.IsNaN(p[0]) && !math.IsInf(p[0], 0) &&
		!math.IsNaN(p[1]) && !math.IsInf(p[1], 0)
}

// emptyBound is a degenerate bound that unions cleanly with real bounds.
func emptyBound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{math.Inf(1), math.Inf(1)},
		Max: orb.Point{math.Inf(-1), math.Inf(-1)},
	}
}

// IsEmptyBound reports whether b is the degenerate bound produced for layers
// with no geometry.
func IsEmptyBound(b orb.Bound) bool {
	return b.Min[0] > b.Max[0] || b.Min[1] > b.Max[1]
}
