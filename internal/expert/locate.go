package expert

import (
	"context"
	"fmt"
	"strings"

	"github.com/couchcryptid/geode/internal/domain"
)

// PointLocation resolves name to a vector patch holding a single labelled
// point at the place's center.
func PointLocation(ctx context.Context, loc domain.Locator, name string) (domain.Patch, error) {
	place, err := locate(ctx, loc, name)
	if err != nil {
		return domain.Patch{}, err
	}
	center := place.Center
	v := domain.Vector{
		Location: &center,
		Points:   []domain.DataPoint{{Coordinate: center, Name: place.Name}},
	}
	return domain.NewPatch(placeBBox(place), nil, &v)
}

// PatchLocation resolves name to a vector patch carrying the place's bbox and
// boundary rings. Places without a polygon get a nil boundary.
func PatchLocation(ctx context.Context, loc domain.Locator, name string) (domain.Patch, error) {
	place, err := locate(ctx, loc, name)
	if err != nil {
		return domain.Patch{}, err
	}
	center := place.Center
	v := domain.Vector{Location: &center, Boundary: place.Boundary}
	return domain.NewPatch(placeBBox(place), nil, &v)
}

func locate(ctx context.Context, loc domain.Locator, name string) (domain.Place, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Place{}, fmt.Errorf("%w: empty place name", domain.ErrNotFound)
	}
	place, err := loc.Locate(ctx, name)
	if err != nil {
		return domain.Place{}, fmt.Errorf("locate %q: %w", name, err)
	}
	if place.Name == "" {
		place.Name = name
	}
	return place, nil
}

func placeBBox(p domain.Place) domain.BBox {
	if p.BBox.IsZero() || !p.BBox.Valid() {
		return domain.BBox{MinLat: p.Center.Lat, MaxLat: p.Center.Lat, MinLon: p.Center.Lon, MaxLon: p.Center.Lon}
	}
	return p.BBox
}
