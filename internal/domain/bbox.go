package domain

import (
	"math"
)

// LatLon is a WGS-84 coordinate in degrees.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Midpoint returns the arithmetic midpoint of two coordinates.
func Midpoint(a, b LatLon) LatLon {
	return LatLon{Lat: (a.Lat + b.Lat) / 2, Lon: (a.Lon + b.Lon) / 2}
}

// BBox is an axis-aligned bounding rectangle in (min_lat, max_lat, min_lon,
// max_lon) order, the order Nominatim reports it in.
type BBox struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLon float64 `json:"max_lon"`
}

// BBoxFromPoints returns the tightest bbox around pts. ok is false when pts
// is empty.
func BBoxFromPoints(pts []LatLon) (b BBox, ok bool) {
	for i, p := range pts {
		if i == 0 {
			b = BBox{MinLat: p.Lat, MaxLat: p.Lat, MinLon: p.Lon, MaxLon: p.Lon}
			continue
		}
		b = b.Extend(p)
	}
	return b, len(pts) > 0
}

// Valid reports whether every bound is finite and the min/max pairs are
// ordered. Degenerate (zero-width) boxes are valid.
func (b BBox) Valid() bool {
	for _, v := range [...]float64{b.MinLat, b.MaxLat, b.MinLon, b.MaxLon} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b.MinLat <= b.MaxLat && b.MinLon <= b.MaxLon
}

// IsZero reports whether b is the zero value.
func (b BBox) IsZero() bool {
	return b == BBox{}
}

// Height returns the latitude span in degrees.
func (b BBox) Height() float64 { return b.MaxLat - b.MinLat }

// Width returns the longitude span in degrees.
func (b BBox) Width() float64 { return b.MaxLon - b.MinLon }

// Center returns the bbox midpoint.
func (b BBox) Center() LatLon {
	return LatLon{Lat: (b.MinLat + b.MaxLat) / 2, Lon: (b.MinLon + b.MaxLon) / 2}
}

// Contains reports whether p lies inside b, edges included.
func (b BBox) Contains(p LatLon) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat &&
		p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}

// Extend returns b grown to include p.
func (b BBox) Extend(p LatLon) BBox {
	b.MinLat = math.Min(b.MinLat, p.Lat)
	b.MaxLat = math.Max(b.MaxLat, p.Lat)
	b.MinLon = math.Min(b.MinLon, p.Lon)
	b.MaxLon = math.Max(b.MaxLon, p.Lon)
	return b
}

// Union returns the smallest bbox containing both a and b.
func (b BBox) Union(o BBox) BBox {
	return BBox{
		MinLat: math.Min(b.MinLat, o.MinLat),
		MaxLat: math.Max(b.MaxLat, o.MaxLat),
		MinLon: math.Min(b.MinLon, o.MinLon),
		MaxLon: math.Max(b.MaxLon, o.MaxLon),
	}
}

// Intersect returns the overlap of b and o. ok is false when they are
// disjoint.
func (b BBox) Intersect(o BBox) (BBox, bool) {
	r := BBox{
		MinLat: math.Max(b.MinLat, o.MinLat),
		MaxLat: math.Min(b.MaxLat, o.MaxLat),
		MinLon: math.Max(b.MinLon, o.MinLon),
		MaxLon: math.Min(b.MaxLon, o.MaxLon),
	}
	if r.MinLat > r.MaxLat || r.MinLon > r.MaxLon {
		return BBox{}, false
	}
	return r, true
}

// Equal reports exact equality. Raster operators align grids by bbox and
// treat any difference, floating-point jitter included, as a mismatch.
func (b BBox) Equal(o BBox) bool {
	return b == o
}

// GridNode returns the coordinate of node (row, col) of a rows×cols grid
// spanning b. Row 0 is the northern edge.
func (b BBox) GridNode(rows, cols, row, col int) LatLon {
	return LatLon{
		Lat: axisValue(b.MaxLat, b.MinLat, rows, row),
		Lon: axisValue(b.MinLon, b.MaxLon, cols, col),
	}
}

// NearestCell returns the (row, col) of the grid node closest to p, clamped
// to the grid.
func (b BBox) NearestCell(rows, cols int, p LatLon) (row, col int) {
	return axisIndex(b.MaxLat, b.MinLat, rows, p.Lat), axisIndex(b.MinLon, b.MaxLon, cols, p.Lon)
}

func axisValue(from, to float64, n, i int) float64 {
	if n <= 1 {
		return (from + to) / 2
	}
	if i == n-1 {
		return to
	}
	return from + float64(i)*(to-from)/float64(n-1)
}

func axisIndex(from, to float64, n int, v float64) int {
	if n <= 1 || from == to {
		return 0
	}
	i := int(math.Round((v - from) / (to - from) * float64(n-1)))
	return min(max(i, 0), n-1)
}
