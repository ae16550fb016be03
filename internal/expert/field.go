package expert

import (
	"context"
	"fmt"

	"github.com/couchcryptid/geode/internal/domain"
)

// DefaultFieldSamples is how many coordinates Field requests when the caller
// does not choose.
const DefaultFieldSamples = 64

// FieldOptions configures Field. Zero values fall back to the catalog
// colormap, DefaultFieldSamples and DefaultGridSize.
type FieldOptions struct {
	Variable string
	Samples  int
	Rows     int
	Cols     int
	Colormap string
	Seed     uint64
}

// Field samples a scalar field over the bbox of p and rasterizes the
// samples onto a grid spanning that bbox. The result keeps p's vector
// payload. Samples the provider reports as NaN are dropped.
func Field(ctx context.Context, provider domain.FieldProvider, p domain.Patch, opts FieldOptions) (domain.Patch, error) {
	v, err := lookupVariable(opts.Variable)
	if err != nil {
		return domain.Patch{}, err
	}
	if p.BBox.Height() <= 0 || p.BBox.Width() <= 0 {
		return domain.Patch{}, fmt.Errorf("%w: field %s needs a bbox with area, got %+v", domain.ErrInvalidState, v.Name, p.BBox)
	}

	n := opts.Samples
	if n <= 0 {
		n = DefaultFieldSamples
	}
	seed := opts.Seed
	if seed == 0 {
		seed = 1
	}
	coords, err := domain.SamplePoints(p.BBox, n, domain.NewRand(seed))
	if err != nil {
		return domain.Patch{}, err
	}
	values, err := provider.SampleField(ctx, v.Name, coords)
	if err != nil {
		return domain.Patch{}, fmt.Errorf("sample %s: %w", v.Name, err)
	}
	if len(values) != len(coords) {
		return domain.Patch{}, fmt.Errorf("sample %s: provider returned %d values for %d coordinates", v.Name, len(values), len(coords))
	}

	samples := make([]Sample, 0, len(coords))
	for i, c := range coords {
		if !finite(values[i]) {
			continue
		}
		samples = append(samples, Sample{Lat: c.Lat, Lon: c.Lon, Value: values[i]})
	}

	colormap := opts.Colormap
	if colormap == "" {
		colormap = v.Colormap
	}
	bbox := p.BBox
	rp, err := Rasterize(samples, RasterizeOptions{
		Rows:     opts.Rows,
		Cols:     opts.Cols,
		Name:     v.Title(),
		Colormap: colormap,
		BBox:     &bbox,
	})
	if err != nil {
		return domain.Patch{}, fmt.Errorf("rasterize %s: %w", v.Name, err)
	}
	return p.WithRaster(*rp.Raster), nil
}

// FieldAt samples a variable at p's location and appends it to p's points.
func FieldAt(ctx context.Context, provider domain.FieldProvider, p domain.Patch, variable string) (domain.Patch, error) {
	v, err := lookupVariable(variable)
	if err != nil {
		return domain.Patch{}, err
	}
	if p.Vector == nil || p.Vector.Location == nil {
		return domain.Patch{}, fmt.Errorf("%w: field_at %s needs a location", domain.ErrInvalidState, v.Name)
	}
	loc := *p.Vector.Location
	value, err := provider.SamplePoint(ctx, v.Name, loc)
	if err != nil {
		return domain.Patch{}, fmt.Errorf("sample %s: %w", v.Name, err)
	}

	vec := p.Vector.Clone()
	dp := domain.DataPoint{Coordinate: loc, Name: v.Title()}
	if finite(value) {
		dp.Value = &value
	}
	vec.Points = append(vec.Points, dp)
	return p.WithVector(vec), nil
}

func lookupVariable(name string) (domain.Variable, error) {
	v, ok := domain.LookupVariable(name)
	if !ok {
		return domain.Variable{}, fmt.Errorf("%w: unknown variable %q", domain.ErrInvalidState, name)
	}
	return v, nil
}
