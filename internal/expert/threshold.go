package expert

import (
	"fmt"

	"github.com/couchcryptid/geode/internal/domain"
)

// Mode selects which side of the cutoff survives a threshold.
type Mode int

const (
	Greater Mode = iota
	Less
)

// ParseMode accepts "greater"/">" and "less"/"<". The empty string is Greater.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "greater", ">":
		return Greater, nil
	case "less", "<":
		return Less, nil
	default:
		return 0, fmt.Errorf("%w: unknown threshold mode %q", domain.ErrInvalidState, s)
	}
}

func (m Mode) symbol() string {
	if m == Less {
		return "<"
	}
	return ">"
}

// ThresholdOptions configures Threshold. With Relative set, Value is a
// fraction of the grid's [min, max] range rather than an absolute cutoff.
type ThresholdOptions struct {
	Value    float64
	Mode     Mode
	Relative bool
}

// Threshold turns a non-color raster into a binary mask. Cells strictly past
// the cutoff keep their value; all others, and no-data cells, become no data.
// The raster name is annotated with the cutoff that was applied.
//
// A patch without a non_color raster is returned unchanged, so thresholding
// a mask twice is a no-op.
func Threshold(p domain.Patch, opts ThresholdOptions) (domain.Patch, error) {
	if !p.HasRasterKind(domain.NonColor) {
		return p.Clone(), nil
	}
	if !finite(opts.Value) {
		return domain.Patch{}, fmt.Errorf("%w: threshold value %g is not finite", domain.ErrInvalidState, opts.Value)
	}
	if opts.Relative && (opts.Value < 0 || opts.Value > 1) {
		return domain.Patch{}, fmt.Errorf("%w: relative threshold %g outside [0, 1]", domain.ErrInvalidState, opts.Value)
	}
	if opts.Mode != Greater && opts.Mode != Less {
		return domain.Patch{}, fmt.Errorf("%w: unknown threshold mode %d", domain.ErrInvalidState, int(opts.Mode))
	}

	src := p.Raster
	if !src.Grid.HasData() {
		return domain.Patch{}, fmt.Errorf("%w: threshold of %q: grid has no data cells", domain.ErrDegenerate, src.Name)
	}
	cutoff := opts.Value
	if opts.Relative {
		lo, hi, err := src.Grid.Range()
		if err != nil {
			return domain.Patch{}, err
		}
		cutoff = lo + opts.Value*(hi-lo)
	}

	grid := src.Grid.Clone()
	for i, v := range grid.Data {
		if domain.IsNoData(v) {
			continue
		}
		keep := v > cutoff
		if opts.Mode == Less {
			keep = v < cutoff
		}
		if !keep {
			grid.Data[i] = domain.NoData
		}
	}

	out := src.Clone()
	out.Kind = domain.Binary
	out.Grid = grid
	out.Name = fmt.Sprintf("%s [%s %.4g]", src.Name, opts.Mode.symbol(), cutoff)
	return p.WithRaster(out), nil
}
