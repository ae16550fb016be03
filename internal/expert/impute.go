package expert

import (
	"fmt"

	"github.com/couchcryptid/geode/internal/domain"
	"github.com/dhconnelly/rtreego"
)

const (
	cellTolerance = 1e-6
	minChildren   = 25
	maxChildren   = 50
)

// cell is a grid cell holding data, indexed by (row, col).
type cell struct {
	index int
	rect  *rtreego.Rect
}

func (c *cell) Bounds() *rtreego.Rect {
	return c.rect
}

// Impute fills every no-data cell with the value of the nearest data cell,
// measured in grid-index space. Each channel is filled independently. A
// channel with no data at all is filled with 0. Kind, name and colormap are
// kept; only the grid changes.
func Impute(p domain.Patch) (domain.Patch, error) {
	if p.Raster == nil {
		return domain.Patch{}, fmt.Errorf("%w: impute needs a raster", domain.ErrInvalidState)
	}
	grid := p.Raster.Grid.Clone()
	if err := grid.Check(); err != nil {
		return domain.Patch{}, err
	}
	for ch := 0; ch < grid.NumChannels(); ch++ {
		imputeChannel(grid, ch)
	}

	out := p.Raster.Clone()
	out.Grid = grid
	return p.WithRaster(out), nil
}

func imputeChannel(g domain.Grid, ch int) {
	tree := rtreego.NewTree(2, minChildren, maxChildren)
	var holes []int
	for i := 0; i < g.Rows*g.Cols; i++ {
		r, c := i/g.Cols, i%g.Cols
		if domain.IsNoData(g.At(r, c, ch)) {
			holes = append(holes, i)
			continue
		}
		pt := rtreego.Point{float64(r), float64(c)}
		tree.Insert(&cell{index: i, rect: pt.ToRect(cellTolerance)})
	}
	if len(holes) == 0 {
		return
	}

	if tree.Size() == 0 {
		for _, i := range holes {
			g.Set(i/g.Cols, i%g.Cols, ch, 0)
		}
		return
	}
	for _, i := range holes {
		r, c := i/g.Cols, i%g.Cols
		nearest := tree.NearestNeighbors(1, rtreego.Point{float64(r), float64(c)})
		src := nearest[0].(*cell).index
		g.Set(r, c, ch, g.At(src/g.Cols, src%g.Cols, ch))
	}
}
