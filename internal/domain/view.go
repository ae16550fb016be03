package domain

// View is the read-only projection of a Patch consumed by renderers: the map
// extent, the raster with its range, the boundary overlay and the markers.
type View struct {
	Kind     PatchKind   `json:"kind"`
	BBox     BBox        `json:"bbox"`
	Raster   *RasterView `json:"raster,omitempty"`
	Location *LatLon     `json:"location,omitempty"`
	Boundary []Ring      `json:"boundary,omitempty"`
	Points   []DataPoint `json:"points,omitempty"`
}

// RasterView carries the grid and what a renderer needs to colour it. Min and
// Max are nil when the grid holds no data.
type RasterView struct {
	Name     string     `json:"name"`
	Kind     RasterKind `json:"kind"`
	Colormap *string    `json:"colormap,omitempty"`
	Grid     Grid       `json:"grid"`
	Min      *float64   `json:"min,omitempty"`
	Max      *float64   `json:"max,omitempty"`
}

// View builds the renderer view of p. The view shares nothing with p.
func (p Patch) View() View {
	c := p.Clone()
	v := View{Kind: c.Kind, BBox: c.BBox}
	if c.Raster != nil {
		rv := &RasterView{
			Name:     c.Raster.Name,
			Kind:     c.Raster.Kind,
			Colormap: c.Raster.Colormap,
			Grid:     c.Raster.Grid,
		}
		if lo, hi, err := c.Raster.Grid.Range(); err == nil {
			rv.Min, rv.Max = &lo, &hi
		}
		v.Raster = rv
	}
	if c.Vector != nil {
		v.Location = c.Vector.Location
		v.Boundary = c.Vector.Boundary
		v.Points = c.Vector.Points
	}
	return v
}

// Normalized returns the grid as a renderer sees it before applying a
// colormap: non-color and binary grids min-max scaled to [0, 1], color grids
// unchanged. No-data cells stay NaN. A constant grid maps to 0.
func (r RasterView) Normalized() Grid {
	g := r.Grid.Clone()
	switch r.Kind {
	case Color:
		return g
	case NonColor, Binary:
		if r.Min == nil || r.Max == nil {
			return g
		}
		lo, span := *r.Min, *r.Max-*r.Min
		for i, v := range g.Data {
			switch {
			case IsNoData(v):
			case span == 0:
				g.Data[i] = 0
			default:
				g.Data[i] = (v - lo) / span
			}
		}
		return g
	default:
		return g
	}
}
