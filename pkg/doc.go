// Package pkg provides the core libraries for erfgen cadastral parcel
// generation.
//
// # Overview
//
// Erfgen derives parcel (erf) boundaries for informal settlements from two
// simple inputs: road centerlines and building points. The pkg directory is
// organized into these areas:
//
//  1. [pipeline] - Orchestration (normalize → buffer → tessellate →
//     subtract → regularize → filter)
//  2. [engine] - Geometry kernel interface and its GEOS implementation
//  3. [crs] - Coordinate reference frames and reprojection
//  4. [regularize] - Orthogonalization and topology repair
//  5. [feature] - Layer and parcel types shared across the pipeline
//  6. [io] - GeoJSON import and export
//  7. [cache] - Result caching (file-based and Redis)
//  8. [observability] - Run and stage completion hooks
//
// # Architecture
//
// The typical data flow through erfgen:
//
//	GeoJSON layers (roads, buildings)
//	         ↓
//	    [crs] package (reproject into a projected metric frame)
//	         ↓
//	    [engine] package (buffer, tessellate, subtract, clip)
//	         ↓
//	    [regularize] package (square corners, repair topology)
//	         ↓
//	    GeoJSON parcel collection
//
// # Quick Start
//
// Run the pipeline programmatically:
//
//	runner := pipeline.NewRunner(geosengine.New(), nil, nil, logger)
//	result, err := runner.Execute(ctx, input, pipeline.Options{
//	    TargetFrame:        "EPSG:32736",
//	    RoadBufferDistance: 10,
//	    MinArea:            250,
//	    MaxArea:            2000,
//	}, pipeline.NopSink{})
//
// Or use the erfgen CLI:
//
//	erfgen generate -p buildings.geojson -r roads.geojson --frame EPSG:32736
package pkg
