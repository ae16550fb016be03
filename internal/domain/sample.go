package domain

import (
	"math/rand/v2"
)

// SamplePoints returns n coordinates inside b: the four corners first, then
// uniformly random interior points drawn from rng. Including the corners
// makes a grid interpolated from the samples span the whole bbox. n below 4
// is raised to 4.
func SamplePoints(b BBox, n int, rng *rand.Rand) ([]LatLon, error) {
	if !b.Valid() {
		return nil, invalidStatef("cannot sample bbox %+v", b)
	}
	n = max(n, 4)
	pts := make([]LatLon, 0, n)
	pts = append(pts,
		LatLon{Lat: b.MaxLat, Lon: b.MinLon},
		LatLon{Lat: b.MaxLat, Lon: b.MaxLon},
		LatLon{Lat: b.MinLat, Lon: b.MinLon},
		LatLon{Lat: b.MinLat, Lon: b.MaxLon},
	)
	for len(pts) < n {
		pts = append(pts, LatLon{
			Lat: b.MinLat + rng.Float64()*b.Height(),
			Lon: b.MinLon + rng.Float64()*b.Width(),
		})
	}
	return pts, nil
}

// NewRand returns a deterministic generator for seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
