package io

import (
	"encoding/json"
	stdio "io"
	"os"

	"github.com/paulmach/orb/geojson"

	"github.com/mattfenn/erfgen/pkg/errors"
	"github.com/mattfenn/erfgen/pkg/feature"
)

// WriteCollection encodes a parcel collection as GeoJSON and writes it to w.
// The output can be re-imported without losing the reference frame.
func WriteCollection(c feature.Collection, w stdio.Writer) error {
	fc := geojson.NewFeatureCollection()
	fc.ExtraMembers = geojson.Properties{"frame": c.Frame}

	for _, p := range c.Parcels {
		f := geojson.NewFeature(p.Geometry)
		f.ID = p.ID
		f.Properties = geojson.Properties{
			"id":   p.ID,
			"area": p.Area,
		}
		fc.Append(f)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(fc); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode geojson")
	}
	return nil
}

// ExportCollection writes a parcel collection to a GeoJSON file at path.
// This is a convenience wrapper around [WriteCollection] for file output.
func ExportCollection(c feature.Collection, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "create %s", path)
	}
	defer f.Close()
	return WriteCollection(c, f)
}
