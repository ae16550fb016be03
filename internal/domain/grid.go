package domain

import (
	"fmt"
	"math"

	"github.com/segmentio/encoding/json"
	"gonum.org/v1/gonum/floats"
)

// NoData is the sentinel stored in grid cells without a value.
var NoData = math.NaN()

// IsNoData reports whether v is the no-data sentinel.
func IsNoData(v float64) bool { return math.IsNaN(v) }

// Grid is a dense row-major raster. Channels is 1 for scalar and mask grids
// and 3 or 4 for true-color imagery.
type Grid struct {
	Rows     int
	Cols     int
	Channels int
	Data     []float64
}

// NewGrid allocates a rows×cols single-channel grid filled with fill.
func NewGrid(rows, cols int, fill float64) Grid {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = fill
	}
	return Grid{Rows: rows, Cols: cols, Channels: 1, Data: data}
}

// GridFromRows builds a single-channel grid from row slices. All rows must
// have the same length.
func GridFromRows(rows [][]float64) (Grid, error) {
	if len(rows) == 0 {
		return Grid{}, invalidStatef("grid has no rows")
	}
	cols := len(rows[0])
	data := make([]float64, 0, len(rows)*cols)
	for i, r := range rows {
		if len(r) != cols {
			return Grid{}, invalidStatef("grid row %d has %d columns, want %d", i, len(r), cols)
		}
		data = append(data, r...)
	}
	return Grid{Rows: len(rows), Cols: cols, Channels: 1, Data: data}, nil
}

// Len returns the number of scalar values in the grid.
func (g Grid) Len() int { return g.Rows * g.Cols * g.channels() }

// NumChannels returns the channel count, treating an unset Channels as 1.
func (g Grid) NumChannels() int { return g.channels() }

func (g Grid) channels() int {
	if g.Channels <= 0 {
		return 1
	}
	return g.Channels
}

func (g Grid) index(row, col, ch int) int {
	return (row*g.Cols+col)*g.channels() + ch
}

// At returns the value of channel ch at (row, col).
func (g Grid) At(row, col, ch int) float64 {
	return g.Data[g.index(row, col, ch)]
}

// Set stores v in channel ch at (row, col). Set mutates the receiver's
// backing array; call it on a clone.
func (g Grid) Set(row, col, ch int, v float64) {
	g.Data[g.index(row, col, ch)] = v
}

// Check verifies that the declared shape matches the data length.
func (g Grid) Check() error {
	if g.Rows <= 0 || g.Cols <= 0 {
		return invalidStatef("grid shape %dx%d is empty", g.Rows, g.Cols)
	}
	if len(g.Data) != g.Len() {
		return invalidStatef("grid %dx%dx%d holds %d values", g.Rows, g.Cols, g.channels(), len(g.Data))
	}
	return nil
}

// SameShape reports whether g and o have identical rows, cols and channels.
func (g Grid) SameShape(o Grid) bool {
	return g.Rows == o.Rows && g.Cols == o.Cols && g.channels() == o.channels()
}

// Clone returns a deep copy of g.
func (g Grid) Clone() Grid {
	c := g
	if g.Data != nil {
		c.Data = make([]float64, len(g.Data))
		copy(c.Data, g.Data)
	}
	return c
}

// HasData reports whether at least one cell holds a value.
func (g Grid) HasData() bool {
	for _, v := range g.Data {
		if !IsNoData(v) {
			return true
		}
	}
	return false
}

// CountNoData returns the number of no-data values.
func (g Grid) CountNoData() int {
	n := 0
	for _, v := range g.Data {
		if IsNoData(v) {
			n++
		}
	}
	return n
}

// Values returns the data values in row-major order, skipping no-data.
func (g Grid) Values() []float64 {
	out := make([]float64, 0, len(g.Data))
	for _, v := range g.Data {
		if !IsNoData(v) {
			out = append(out, v)
		}
	}
	return out
}

// Range returns the minimum and maximum over data cells. It fails with
// ErrDegenerate when the grid holds no data or the range is not finite.
func (g Grid) Range() (lo, hi float64, err error) {
	vals := g.Values()
	if len(vals) == 0 {
		return 0, 0, degeneratef("grid has no data cells")
	}
	lo, hi = floats.Min(vals), floats.Max(vals)
	if math.IsInf(lo, 0) || math.IsInf(hi, 0) {
		return 0, 0, degeneratef("grid range [%g, %g] is not finite", lo, hi)
	}
	return lo, hi, nil
}

// Mask returns one bool per cell, true when every channel of the cell holds
// data.
func (g Grid) Mask() []bool {
	ch := g.channels()
	mask := make([]bool, g.Rows*g.Cols)
	for i := range mask {
		ok := true
		for c := 0; c < ch; c++ {
			if IsNoData(g.Data[i*ch+c]) {
				ok = false
				break
			}
		}
		mask[i] = ok
	}
	return mask
}

// gridJSON is the wire form: one array per row holding cols×channels values,
// null for no data.
type gridJSON struct {
	Rows     int          `json:"rows"`
	Cols     int          `json:"cols"`
	Channels int          `json:"channels"`
	Data     [][]*float64 `json:"data"`
}

// MarshalJSON encodes the grid with NaN written as null.
func (g Grid) MarshalJSON() ([]byte, error) {
	ch := g.channels()
	out := gridJSON{Rows: g.Rows, Cols: g.Cols, Channels: ch, Data: make([][]*float64, g.Rows)}
	for r := 0; r < g.Rows; r++ {
		row := make([]*float64, g.Cols*ch)
		for i := range row {
			v := g.Data[r*g.Cols*ch+i]
			if !IsNoData(v) {
				row[i] = &v
			}
		}
		out.Data[r] = row
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the wire form produced by MarshalJSON.
func (g *Grid) UnmarshalJSON(b []byte) error {
	var in gridJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	if in.Channels <= 0 {
		in.Channels = 1
	}
	if len(in.Data) != in.Rows {
		return fmt.Errorf("decode grid: %d rows declared, %d present", in.Rows, len(in.Data))
	}
	data := make([]float64, 0, in.Rows*in.Cols*in.Channels)
	for r, row := range in.Data {
		if len(row) != in.Cols*in.Channels {
			return fmt.Errorf("decode grid: row %d has %d values, want %d", r, len(row), in.Cols*in.Channels)
		}
		for _, v := range row {
			if v == nil {
				data = append(data, NoData)
				continue
			}
			data = append(data, *v)
		}
	}
	*g = Grid{Rows: in.Rows, Cols: in.Cols, Channels: in.Channels, Data: data}
	return nil
}
