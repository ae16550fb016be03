package expert

import (
	"fmt"

	"github.com/couchcryptid/geode/internal/domain"
	"gonum.org/v1/gonum/stat"
)

// Correlation returns the Pearson correlation of two rasters flattened in
// row-major order. When either patch has no raster the result is 0. No-data
// cells are not filtered: a NaN in either grid makes the result NaN.
func Correlation(a, b domain.Patch) (float64, error) {
	if a.Raster == nil || b.Raster == nil {
		return 0, nil
	}
	if !a.BBox.Equal(b.BBox) {
		return 0, fmt.Errorf("%w: bbox %+v does not match %+v", domain.ErrInvalidState, a.BBox, b.BBox)
	}
	x, y := a.Raster.Grid.Data, b.Raster.Grid.Data
	if len(x) != len(y) {
		return 0, fmt.Errorf("%w: grids hold %d and %d values", domain.ErrInvalidState, len(x), len(y))
	}
	if len(x) < 2 {
		return 0, fmt.Errorf("%w: correlation needs at least 2 cells", domain.ErrDegenerate)
	}
	if stat.Variance(x, nil) == 0 || stat.Variance(y, nil) == 0 {
		return 0, fmt.Errorf("%w: correlation of a constant grid", domain.ErrDegenerate)
	}
	return stat.Correlation(x, y, nil), nil
}
