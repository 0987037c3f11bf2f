package crs

import (
	"github.com/ctessum/geom/proj"
	"github.com/paulmach/orb"

	"github.com/mattfenn/erfgen/pkg/errors"
	"github.com/mattfenn/erfgen/pkg/feature"
)

// PointTransform maps a single coordinate from a source frame to a target
// frame.
type PointTransform func(orb.Point) (orb.Point, error)

// NewTransform builds a coordinate transform from src to dst.
//
// When the codes match, the returned transform is the identity; the frames
// are still resolved so invalid codes fail early.
func NewTransform(src, dst Frame) (PointTransform, error) {
	if src.Code == dst.Code {
		return func(p orb.Point) (orb.Point, error) { return p, nil }, nil
	}

	from, err := proj.Parse(src.Proj4)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFrame, err, "parse source frame %s", src.Code)
	}
	to, err := proj.Parse(dst.Proj4)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFrame, err, "parse target frame %s", dst.Code)
	}

	tr, err := from.NewTransform(to)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFrame, err, "transform %s -> %s", src.Code, dst.Code)
	}

	return func(p orb.Point) (orb.Point, error) {
		x, y, err := tr(p[0], p[1])
		if err != nil {
			return orb.Point{}, errors.Wrap(errors.ErrCodeEngine, err,
				"reproject point (%g, %g) from %s to %s", p[0], p[1], src.Code, dst.Code)
		}
		return orb.Point{x, y}, nil
	}, nil
}

// NormalizePoints reprojects a point layer into the target frame, preserving
// feature count and order.
func NormalizePoints(layer feature.PointLayer, target Frame) (feature.PointLayer, error) {
	// An empty layer carries no coordinates to reproject; its frame tag may
	// be unset and must not be resolved.
	if len(layer.Points) == 0 {
		return feature.PointLayer{Frame: target.Code}, nil
	}

	src, err := Resolve(layer.Frame)
	if err != nil {
		return feature.PointLayer{}, err
	}

	tr, err := NewTransform(src, target)
	if err != nil {
		return feature.PointLayer{}, err
	}

	out := feature.PointLayer{Frame: target.Code, Points: make([]orb.Point, len(layer.Points))}
	for i, p := range layer.Points {
		q, err := tr(p)
		if err != nil {
			return feature.PointLayer{}, err
		}
		out.Points[i] = q
	}
	return out, nil
}

// NormalizeLines reprojects a line layer into the target frame, preserving
// feature count, vertex order, and topology.
func NormalizeLines(layer feature.LineLayer, target Frame) (feature.LineLayer, error) {
	if len(layer.Lines) == 0 {
		return feature.LineLayer{Frame: target.Code}, nil
	}

	src, err := Resolve(layer.Frame)
	if err != nil {
		return feature.LineLayer{}, err
	}

	tr, err := NewTransform(src, target)
	if err != nil {
		return feature.LineLayer{}, err
	}

	out := feature.LineLayer{Frame: target.Code, Lines: make([]orb.LineString, len(layer.Lines))}
	for i, ls := range layer.Lines {
		line := make(orb.LineString, len(ls))
		for j, p := range ls {
			q, err := tr(p)
			if err != nil {
				return feature.LineLayer{}, err
			}
			line[j] = q
		}
		out.Lines[i] = line
	}
	return out, nil
}
