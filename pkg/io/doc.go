// Package io provides GeoJSON import and export for pipeline layers.
//
// # Overview
//
// This package converts between GeoJSON feature collections and the
// in-memory layers of pkg/feature. The format is plain RFC 7946 GeoJSON
// with one foreign member:
//
//   - frame: the EPSG code the coordinates are expressed in, e.g.
//     "EPSG:32736". Absent means "EPSG:4326", matching the GeoJSON
//     default of WGS84 longitude/latitude.
//
// # Input Layers
//
// Building layers are read with [ImportPoints]: every feature must carry a
// Point or MultiPoint geometry. Road layers are read with [ImportLines]:
// every feature must carry a LineString or MultiLineString geometry.
// Multi-geometries are flattened; feature properties are ignored on input.
//
// # Output
//
// [ExportCollection] writes a parcel collection as a feature collection of
// Polygons. Each feature carries two properties:
//
//   - id: the parcel's run-stable identifier
//   - area: the parcel area in square working units
//
// The collection's frame is recorded in the foreign member, so a written
// file can be re-imported without losing the reference frame.
package io
