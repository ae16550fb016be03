// Package domain models the geospatial patch exchanged between Geode experts.
//
// # Patch
//
// A Patch ties an optional raster payload and an optional vector payload to a
// single bounding box. Both payloads describe the same extent:
//
//	Patch
//	  Kind    raster_only | vector_only | dual (derived from the payloads)
//	  BBox    (min_lat, max_lat, min_lon, max_lon)
//	  Raster  name, kind, colormap, grid
//	  Vector  location, points, boundary rings
//
// Patches are values. Every operator clones its inputs before changing
// anything and returns a new Patch, so a Patch handed to a caller is never
// modified afterwards. See [Patch.Clone].
//
// # Grid conventions
//
// Grids are stored row-major in a flat []float64:
//
//	index = (row*Cols + col)*Channels + channel
//
// Row 0 is the northern edge of the bbox (max_lat) and the last row the
// southern edge (min_lat). Columns run west to east (min_lon to max_lon). The
// first and last row/column lie exactly on the bbox edges, so node (r, c) of
// an R×C grid sits at
//
//	lat = max_lat - r*(max_lat-min_lat)/(R-1)
//	lon = min_lon + c*(max_lon-min_lon)/(C-1)
//
// No implicit reprojection is ever performed: a grid spans exactly its
// Patch's bbox.
//
// # No data
//
// NaN is the "no data" sentinel. Cells holding NaN are ignored by range
// computations ([Grid.Range]) and are encoded as JSON null.
//
// Any raster with at least one data cell must have a finite minimum and
// maximum; renderers min-max normalise non-color and binary grids and rely on
// this. [Patch.Validate] enforces it.
//
// # Raster kinds
//
//	color      true-color imagery, 3 or 4 channels, rendered as-is
//	non_color  scalar field, rendered through a colormap
//	binary     mask; cells with data are "true"
//
// # Errors
//
// Operators fail with one of three sentinels, always wrapped with context:
//
//	ErrNotFound      an upstream lookup returned nothing
//	ErrInvalidState  an operator precondition was violated
//	ErrDegenerate    a statistic is undefined (e.g. an all-no-data grid)
//
// Use errors.Is to test for them and [ErrorKind] to label them.
package domain
