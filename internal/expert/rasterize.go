// Package expert implements the operators that produce and combine patches.
// Every operator is synchronous, performs no I/O and never modifies its
// inputs; the location and field experts reach providers only through the
// interfaces in the domain package.
package expert

import (
	"errors"
	"fmt"
	"math"

	"github.com/couchcryptid/geode/internal/domain"
	"gonum.org/v1/gonum/mat"
)

// DefaultGridSize is the rows and columns of a rasterized grid when the
// caller does not choose.
const DefaultGridSize = 100

// Sample is one scattered observation.
type Sample struct {
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Value float64 `json:"value"`
}

// RasterizeOptions controls the grid produced by Rasterize.
type RasterizeOptions struct {
	Rows     int
	Cols     int
	Name     string
	Colormap string

	// BBox, when set, is the extent the grid is evaluated over. By default
	// the grid spans the min/max of the sample coordinates.
	BBox *domain.BBox
}

// Interpolant is a global radial basis function surface with a linear kernel
// φ(r) = r fitted exactly through its samples.
type Interpolant struct {
	centers []domain.LatLon
	weights []float64
	extent  domain.BBox
}

// Fit solves for the RBF weights. Samples sharing a coordinate are merged
// into one center carrying their mean value. Fewer than two distinct
// coordinates cannot be fitted.
func Fit(samples []Sample) (*Interpolant, error) {
	centers, values, err := mergeSamples(samples)
	if err != nil {
		return nil, err
	}
	if len(centers) < 2 {
		return nil, fmt.Errorf("%w: rasterize needs at least 2 distinct coordinates, got %d", domain.ErrInvalidState, len(centers))
	}

	n := len(centers)
	a := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := distance(centers[i], centers[j])
			a.Set(i, j, d)
			a.Set(j, i, d)
		}
	}

	var w mat.VecDense
	if err := w.SolveVec(a, mat.NewVecDense(n, values)); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, fmt.Errorf("%w: degenerate rbf fit: %v", domain.ErrInvalidState, err)
		}
	}

	weights := make([]float64, n)
	for i := range weights {
		weights[i] = w.AtVec(i)
		if math.IsNaN(weights[i]) || math.IsInf(weights[i], 0) {
			return nil, fmt.Errorf("%w: degenerate rbf fit", domain.ErrInvalidState)
		}
	}
	extent, _ := domain.BBoxFromPoints(centers)
	return &Interpolant{centers: centers, weights: weights, extent: extent}, nil
}

// At evaluates the fitted surface. Outside the convex hull of the samples the
// surface is extrapolated.
func (f *Interpolant) At(lat, lon float64) float64 {
	p := domain.LatLon{Lat: lat, Lon: lon}
	var sum float64
	for i, c := range f.centers {
		sum += f.weights[i] * distance(p, c)
	}
	return sum
}

// Extent returns the bbox of the fitted centers.
func (f *Interpolant) Extent() domain.BBox { return f.extent }

// Rasterize interpolates scattered samples onto a regular north-up grid and
// returns a raster-only patch of kind non_color.
func Rasterize(samples []Sample, opts RasterizeOptions) (domain.Patch, error) {
	f, err := Fit(samples)
	if err != nil {
		return domain.Patch{}, err
	}

	rows, cols := opts.Rows, opts.Cols
	if rows <= 0 {
		rows = DefaultGridSize
	}
	if cols <= 0 {
		cols = DefaultGridSize
	}
	bbox := f.Extent()
	if opts.BBox != nil {
		bbox = *opts.BBox
	}

	grid := domain.NewGrid(rows, cols, 0)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			node := bbox.GridNode(rows, cols, r, c)
			grid.Set(r, c, 0, f.At(node.Lat, node.Lon))
		}
	}

	raster := domain.Raster{Name: opts.Name, Kind: domain.NonColor, Grid: grid}
	if opts.Colormap != "" {
		cm := opts.Colormap
		raster.Colormap = &cm
	}
	return domain.NewPatch(bbox, &raster, nil)
}

func mergeSamples(samples []Sample) ([]domain.LatLon, []float64, error) {
	type acc struct {
		sum   float64
		count int
	}
	index := make(map[domain.LatLon]int, len(samples))
	var (
		centers []domain.LatLon
		accs    []acc
	)
	for i, s := range samples {
		if !finite(s.Lat) || !finite(s.Lon) || !finite(s.Value) {
			return nil, nil, fmt.Errorf("%w: sample %d (%g, %g, %g) is not finite", domain.ErrInvalidState, i, s.Lat, s.Lon, s.Value)
		}
		ll := domain.LatLon{Lat: s.Lat, Lon: s.Lon}
		j, ok := index[ll]
		if !ok {
			j = len(centers)
			index[ll] = j
			centers = append(centers, ll)
			accs = append(accs, acc{})
		}
		accs[j].sum += s.Value
		accs[j].count++
	}
	values := make([]float64, len(accs))
	for i, a := range accs {
		values[i] = a.sum / float64(a.count)
	}
	return centers, values, nil
}

func distance(a, b domain.LatLon) float64 {
	return math.Hypot(a.Lat-b.Lat, a.Lon-b.Lon)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
