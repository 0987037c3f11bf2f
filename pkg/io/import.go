package io

import (
	stdio "io"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mattfenn/erfgen/pkg/errors"
	"github.com/mattfenn/erfgen/pkg/feature"
)

// defaultFrame is assumed when a file carries no frame member, per the
// GeoJSON default of WGS84 longitude/latitude.
const defaultFrame = "EPSG:4326"

// ReadPoints decodes a GeoJSON feature collection of building points from r.
// Point and MultiPoint geometries are accepted; anything else is rejected.
func ReadPoints(r stdio.Reader) (feature.PointLayer, error) {
	fc, frame, err := readCollection(r)
	if err != nil {
		return feature.PointLayer{}, err
	}

	layer := feature.PointLayer{Frame: frame}
	for i, f := range fc.Features {
		switch g := f.Geometry.(type) {
		case orb.Point:
			layer.Points = append(layer.Points, g)
		case orb.MultiPoint:
			layer.Points = append(layer.Points, g...)
		default:
			return feature.PointLayer{}, errors.New(errors.ErrCodeInvalidInput,
				"feature %d: expected Point geometry, got %s", i, g.GeoJSONType())
		}
	}
	return layer, nil
}

// ReadLines decodes a GeoJSON feature collection of road centerlines from r.
// LineString and MultiLineString geometries are accepted.
func ReadLines(r stdio.Reader) (feature.LineLayer, error) {
	fc, frame, err := readCollection(r)
	if err != nil {
		return feature.LineLayer{}, err
	}

	layer := feature.LineLayer{Frame: frame}
	for i, f := range fc.Features {
		switch g := f.Geometry.(type) {
		case orb.LineString:
			layer.Lines = append(layer.Lines, g)
		case orb.MultiLineString:
			layer.Lines = append(layer.Lines, []orb.LineString(g)...)
		default:
			return feature.LineLayer{}, errors.New(errors.ErrCodeInvalidInput,
				"feature %d: expected LineString geometry, got %s", i, g.GeoJSONType())
		}
	}
	return layer, nil
}

// ImportPoints reads a building point layer from a GeoJSON file at path.
func ImportPoints(path string) (feature.PointLayer, error) {
	f, err := openInput(path)
	if err != nil {
		return feature.PointLayer{}, err
	}
	defer f.Close()

	layer, err := ReadPoints(f)
	if err != nil {
		return feature.PointLayer{}, errors.Wrap(errors.GetCodeOr(err, errors.ErrCodeInvalidInput), err, "read %s", path)
	}
	return layer, nil
}

// ImportLines reads a road line layer from a GeoJSON file at path.
func ImportLines(path string) (feature.LineLayer, error) {
	f, err := openInput(path)
	if err != nil {
		return feature.LineLayer{}, err
	}
	defer f.Close()

	layer, err := ReadLines(f)
	if err != nil {
		return feature.LineLayer{}, errors.Wrap(errors.GetCodeOr(err, errors.ErrCodeInvalidInput), err, "read %s", path)
	}
	return layer, nil
}

// ReadParcels decodes a previously exported parcel collection from r.
// Polygon and MultiPolygon geometries are accepted; the id and area
// properties are restored when present.
func ReadParcels(r stdio.Reader) (feature.Collection, error) {
	fc, frame, err := readCollection(r)
	if err != nil {
		return feature.Collection{}, err
	}

	coll := feature.Collection{Frame: frame}
	for i, f := range fc.Features {
		var polys []orb.Polygon
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			polys = []orb.Polygon{g}
		case orb.MultiPolygon:
			polys = g
		default:
			return feature.Collection{}, errors.New(errors.ErrCodeInvalidInput,
				"feature %d: expected Polygon geometry, got %s", i, g.GeoJSONType())
		}

		id, _ := f.Properties["id"].(string)
		area, _ := f.Properties["area"].(float64)
		for _, p := range polys {
			parcel := feature.Parcel{ID: id, Geometry: p, Area: area}
			if parcel.ID == "" {
				parcel = feature.NewParcel(p, area)
			}
			coll.Parcels = append(coll.Parcels, parcel)
		}
	}
	return coll, nil
}

// ImportParcels reads a parcel collection from a GeoJSON file at path.
func ImportParcels(path string) (feature.Collection, error) {
	f, err := openInput(path)
	if err != nil {
		return feature.Collection{}, err
	}
	defer f.Close()

	coll, err := ReadParcels(f)
	if err != nil {
		return feature.Collection{}, errors.Wrap(errors.GetCodeOr(err, errors.ErrCodeInvalidInput), err, "read %s", path)
	}
	return coll, nil
}

func openInput(path string) (*os.File, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, errors.New(errors.ErrCodeFileNotFound, "input file not found: %s", path)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "open %s", path)
	}
	return f, nil
}

func readCollection(r stdio.Reader) (*geojson.FeatureCollection, string, error) {
	data, err := stdio.ReadAll(r)
	if err != nil {
		return nil, "", errors.Wrap(errors.ErrCodeInvalidInput, err, "read geojson")
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, "", errors.Wrap(errors.ErrCodeInvalidInput, err, "decode geojson")
	}

	frame := defaultFrame
	if v, ok := fc.ExtraMembers["frame"]; ok {
		if s, ok := v.(string); ok && s != "" {
			frame = s
		}
	}
	return fc, frame, nil
}
