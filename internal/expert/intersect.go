package expert

import (
	"fmt"

	"github.com/couchcryptid/geode/internal/domain"
	"github.com/ctessum/geom"
)

// MaskValue marks a true cell in a raster intersection.
const MaskValue = 255.0

// IntersectVector clips the first boundary ring of a against the first ring
// of b. The result carries the clipped rings, their bbox, the points of both
// inputs that fall inside the clip (edges included) and a location at the
// midpoint of the two input locations. Raster payloads are dropped.
//
// A nil input yields a copy of the other; two nil inputs yield nil.
func IntersectVector(a, b *domain.Patch) (*domain.Patch, error) {
	switch {
	case a == nil && b == nil:
		return nil, nil
	case a == nil:
		c := b.Clone()
		return &c, nil
	case b == nil:
		c := a.Clone()
		return &c, nil
	}

	pa, err := firstPolygon(*a)
	if err != nil {
		return nil, err
	}
	pb, err := firstPolygon(*b)
	if err != nil {
		return nil, err
	}

	clip := pa.Intersection(pb)
	if clip == nil || len(clip.Polygons()) == 0 || clip.Area() == 0 {
		return nil, fmt.Errorf("%w: boundaries do not overlap", domain.ErrDegenerate)
	}

	bounds := clip.Bounds()
	bbox := domain.BBox{
		MinLat: bounds.Min.Y,
		MaxLat: bounds.Max.Y,
		MinLon: bounds.Min.X,
		MaxLon: bounds.Max.X,
	}

	v := domain.Vector{Location: midLocation(a.Vector.Location, b.Vector.Location)}
	for _, poly := range clip.Polygons() {
		for _, path := range poly {
			ring := make(domain.Ring, len(path))
			for i, pt := range path {
				ring[i] = domain.LatLon{Lat: pt.Y, Lon: pt.X}
			}
			v.Boundary = append(v.Boundary, ring)
		}
	}
	for _, src := range [][]domain.DataPoint{a.Vector.Points, b.Vector.Points} {
		for _, dp := range src {
			pt := geom.Point{X: dp.Coordinate.Lon, Y: dp.Coordinate.Lat}
			if pt.Within(clip) != geom.Outside {
				v.Points = append(v.Points, dp)
			}
		}
	}

	out, err := domain.NewPatch(bbox, nil, &v)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func firstPolygon(p domain.Patch) (geom.Polygon, error) {
	if p.Vector == nil || len(p.Vector.Boundary) == 0 {
		return nil, fmt.Errorf("%w: vector intersection needs a boundary ring", domain.ErrInvalidState)
	}
	ring := p.Vector.Boundary[0].Open()
	if len(ring) < 3 {
		return nil, fmt.Errorf("%w: boundary ring has %d vertices", domain.ErrInvalidState, len(ring))
	}
	path := make([]geom.Point, len(ring))
	for i, ll := range ring {
		path[i] = geom.Point{X: ll.Lon, Y: ll.Lat}
	}
	return geom.Polygon{path}, nil
}

func midLocation(a, b *domain.LatLon) *domain.LatLon {
	switch {
	case a != nil && b != nil:
		m := domain.Midpoint(*a, *b)
		return &m
	case a != nil:
		m := *a
		return &m
	case b != nil:
		m := *b
		return &m
	default:
		return nil
	}
}

// IntersectRaster ANDs the data masks of two binary rasters over the same
// bbox and grid shape. True cells hold MaskValue, false cells hold no data.
// The result keeps a's vector payload.
func IntersectRaster(a, b domain.Patch) (domain.Patch, error) {
	if !a.HasRasterKind(domain.Binary) || !b.HasRasterKind(domain.Binary) {
		return domain.Patch{}, fmt.Errorf("%w: raster intersection needs two binary rasters", domain.ErrInvalidState)
	}
	if !a.BBox.Equal(b.BBox) {
		return domain.Patch{}, fmt.Errorf("%w: bbox %+v does not match %+v", domain.ErrInvalidState, a.BBox, b.BBox)
	}
	ga, gb := a.Raster.Grid, b.Raster.Grid
	if !ga.SameShape(gb) {
		return domain.Patch{}, fmt.Errorf("%w: grid %dx%d does not match %dx%d", domain.ErrInvalidState, ga.Rows, ga.Cols, gb.Rows, gb.Cols)
	}

	ma, mb := ga.Mask(), gb.Mask()
	grid := domain.NewGrid(ga.Rows, ga.Cols, domain.NoData)
	for i := range ma {
		if ma[i] && mb[i] {
			grid.Data[i] = MaskValue
		}
	}

	out := a.Raster.Clone()
	out.Name = a.Raster.Name + " AND " + b.Raster.Name
	out.Grid = grid
	return a.WithRaster(out), nil
}
