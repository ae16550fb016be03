package domain

import "context"

// Place is what a location provider knows about a named place.
type Place struct {
	Name     string
	Center   LatLon
	BBox     BBox
	Boundary []Ring // nil when the provider has no polygon for the place
}

// Locator resolves place names. Implementations return an error wrapping
// ErrNotFound when nothing matches.
type Locator interface {
	Locate(ctx context.Context, name string) (Place, error)
}

// FieldProvider samples a scalar field such as temperature, air quality or
// elevation.
type FieldProvider interface {
	// SampleField returns one value per coordinate, in order (bulk mode).
	SampleField(ctx context.Context, variable string, coords []LatLon) ([]float64, error)

	// SamplePoint returns the value at a single coordinate (point mode).
	SamplePoint(ctx context.Context, variable string, coord LatLon) (float64, error)
}
