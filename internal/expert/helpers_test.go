package expert

import (
	"context"
	"math"
	"testing"

	"github.com/couchcryptid/geode/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nan = math.NaN()

func gridPatch(t *testing.T, bbox domain.BBox, kind domain.RasterKind, name string, rows [][]float64) domain.Patch {
	t.Helper()
	g, err := domain.GridFromRows(rows)
	require.NoError(t, err)
	p, err := domain.NewPatch(bbox, &domain.Raster{Name: name, Kind: kind, Grid: g}, nil)
	require.NoError(t, err)
	return p
}

func squareRing(minLat, minLon, size float64) domain.Ring {
	return domain.Ring{
		{Lat: minLat, Lon: minLon},
		{Lat: minLat, Lon: minLon + size},
		{Lat: minLat + size, Lon: minLon + size},
		{Lat: minLat + size, Lon: minLon},
	}
}

// assertGridEqual compares grids cell by cell, treating NaN as equal to NaN.
func assertGridEqual(t *testing.T, want, got domain.Grid) {
	t.Helper()
	require.True(t, want.SameShape(got), "shape %dx%d vs %dx%d", want.Rows, want.Cols, got.Rows, got.Cols)
	for i := range want.Data {
		w, g := want.Data[i], got.Data[i]
		if math.IsNaN(w) {
			assert.True(t, math.IsNaN(g), "cell %d: want no data, got %g", i, g)
			continue
		}
		assert.Equal(t, w, g, "cell %d", i)
	}
}

type stubLocator struct {
	place domain.Place
	err   error
	calls int
}

func (s *stubLocator) Locate(_ context.Context, _ string) (domain.Place, error) {
	s.calls++
	return s.place, s.err
}

type stubProvider struct {
	fn        func(domain.LatLon) float64
	err       error
	coords    []domain.LatLon
	variables []string
}

func (s *stubProvider) SampleField(_ context.Context, variable string, coords []domain.LatLon) ([]float64, error) {
	s.variables = append(s.variables, variable)
	s.coords = coords
	if s.err != nil {
		return nil, s.err
	}
	out := make([]float64, len(coords))
	for i, c := range coords {
		out[i] = s.fn(c)
	}
	return out, nil
}

func (s *stubProvider) SamplePoint(_ context.Context, variable string, coord domain.LatLon) (float64, error) {
	s.variables = append(s.variables, variable)
	s.coords = []domain.LatLon{coord}
	if s.err != nil {
		return 0, s.err
	}
	return s.fn(coord), nil
}
