package domain

import (
	"fmt"
	"slices"
)

// PatchKind classifies which payloads a Patch carries.
type PatchKind int

const (
	RasterOnly PatchKind = iota + 1
	VectorOnly
	Dual
)

var patchKindNames = map[PatchKind]string{
	RasterOnly: "raster_only",
	VectorOnly: "vector_only",
	Dual:       "dual",
}

func (k PatchKind) String() string {
	if s, ok := patchKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("PatchKind(%d)", int(k))
}

func (k PatchKind) MarshalText() ([]byte, error) {
	s, ok := patchKindNames[k]
	if !ok {
		return nil, fmt.Errorf("unknown patch kind %d", int(k))
	}
	return []byte(s), nil
}

func (k *PatchKind) UnmarshalText(b []byte) error {
	for kind, s := range patchKindNames {
		if s == string(b) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown patch kind %q", b)
}

// RasterKind classifies grid content.
type RasterKind int

const (
	Color RasterKind = iota + 1
	NonColor
	Binary
)

var rasterKindNames = map[RasterKind]string{
	Color:    "color",
	NonColor: "non_color",
	Binary:   "binary",
}

func (k RasterKind) String() string {
	if s, ok := rasterKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("RasterKind(%d)", int(k))
}

func (k RasterKind) MarshalText() ([]byte, error) {
	s, ok := rasterKindNames[k]
	if !ok {
		return nil, fmt.Errorf("unknown raster kind %d", int(k))
	}
	return []byte(s), nil
}

func (k *RasterKind) UnmarshalText(b []byte) error {
	for kind, s := range rasterKindNames {
		if s == string(b) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown raster kind %q", b)
}

// DataPoint is a labelled coordinate with an optional scalar value.
type DataPoint struct {
	Coordinate LatLon   `json:"coordinate"`
	Name       string   `json:"name"`
	Value      *float64 `json:"value,omitempty"`
}

// Ring is a simple polygon ring. The closing vertex may be repeated or
// omitted.
type Ring []LatLon

// Open returns the ring without a repeated closing vertex.
func (r Ring) Open() Ring {
	if len(r) > 1 && r[0] == r[len(r)-1] {
		return r[:len(r)-1]
	}
	return r
}

// Raster is the grid payload of a Patch.
type Raster struct {
	Name     string     `json:"name"`
	Kind     RasterKind `json:"kind"`
	Colormap *string    `json:"colormap,omitempty"`
	Grid     Grid       `json:"grid"`
}

// Clone returns a deep copy of r.
func (r Raster) Clone() Raster {
	c := r
	if r.Colormap != nil {
		cm := *r.Colormap
		c.Colormap = &cm
	}
	c.Grid = r.Grid.Clone()
	return c
}

// Vector is the point and boundary payload of a Patch.
type Vector struct {
	Location *LatLon     `json:"location,omitempty"`
	Points   []DataPoint `json:"points,omitempty"`
	Boundary []Ring      `json:"boundary,omitempty"`
}

// Clone returns a deep copy of v.
func (v Vector) Clone() Vector {
	c := Vector{}
	if v.Location != nil {
		loc := *v.Location
		c.Location = &loc
	}
	if v.Points != nil {
		c.Points = make([]DataPoint, len(v.Points))
		for i, p := range v.Points {
			if p.Value != nil {
				val := *p.Value
				p.Value = &val
			}
			c.Points[i] = p
		}
	}
	if v.Boundary != nil {
		c.Boundary = make([]Ring, len(v.Boundary))
		for i, ring := range v.Boundary {
			c.Boundary[i] = slices.Clone(ring)
		}
	}
	return c
}

// Patch is the unit exchanged between experts. Construct it with NewPatch or
// the With* methods so Kind stays consistent with the payloads.
type Patch struct {
	Kind   PatchKind `json:"kind"`
	BBox   BBox      `json:"bbox"`
	Raster *Raster   `json:"raster,omitempty"`
	Vector *Vector   `json:"vector,omitempty"`
}

// NewPatch builds a Patch over bbox from optional payloads. The payloads are
// cloned.
func NewPatch(bbox BBox, raster *Raster, vector *Vector) (Patch, error) {
	p := Patch{BBox: bbox}
	if raster != nil {
		r := raster.Clone()
		p.Raster = &r
	}
	if vector != nil {
		v := vector.Clone()
		p.Vector = &v
	}
	kind, err := kindOf(p.Raster != nil, p.Vector != nil)
	if err != nil {
		return Patch{}, err
	}
	p.Kind = kind
	return p, p.Validate()
}

func kindOf(hasRaster, hasVector bool) (PatchKind, error) {
	switch {
	case hasRaster && hasVector:
		return Dual, nil
	case hasRaster:
		return RasterOnly, nil
	case hasVector:
		return VectorOnly, nil
	default:
		return 0, invalidStatef("patch has neither raster nor vector payload")
	}
}

// RasterData returns the raster payload.
func (p Patch) RasterData() (Raster, bool) {
	if p.Raster == nil {
		return Raster{}, false
	}
	return *p.Raster, true
}

// VectorData returns the vector payload.
func (p Patch) VectorData() (Vector, bool) {
	if p.Vector == nil {
		return Vector{}, false
	}
	return *p.Vector, true
}

// Bounds returns the Patch bbox.
func (p Patch) Bounds() BBox { return p.BBox }

// HasRasterKind reports whether p carries a raster of kind k.
func (p Patch) HasRasterKind(k RasterKind) bool {
	return p.Raster != nil && p.Raster.Kind == k
}

// Clone returns a deep copy of p.
func (p Patch) Clone() Patch {
	c := Patch{Kind: p.Kind, BBox: p.BBox}
	if p.Raster != nil {
		r := p.Raster.Clone()
		c.Raster = &r
	}
	if p.Vector != nil {
		v := p.Vector.Clone()
		c.Vector = &v
	}
	return c
}

// WithRaster returns a copy of p carrying r. The raster must span p's bbox.
func (p Patch) WithRaster(r Raster) Patch {
	c := p.Clone()
	rc := r.Clone()
	c.Raster = &rc
	c.Kind, _ = kindOf(true, c.Vector != nil)
	return c
}

// WithVector returns a copy of p carrying v.
func (p Patch) WithVector(v Vector) Patch {
	c := p.Clone()
	vc := v.Clone()
	c.Vector = &vc
	c.Kind, _ = kindOf(c.Raster != nil, true)
	return c
}

// WithoutRaster returns a copy of p with the raster payload removed.
func (p Patch) WithoutRaster() (Patch, error) {
	c := p.Clone()
	c.Raster = nil
	kind, err := kindOf(false, c.Vector != nil)
	if err != nil {
		return Patch{}, err
	}
	c.Kind = kind
	return c, nil
}

// LocationInBounds reports whether the vector location, when present, lies
// inside the bbox. Vector intersection places the location at the midpoint of
// its inputs, which may fall outside the clipped bbox, so this is advisory and
// not part of Validate.
func (p Patch) LocationInBounds() bool {
	if p.Vector == nil || p.Vector.Location == nil {
		return true
	}
	return p.BBox.Contains(*p.Vector.Location)
}

// Validate checks the Patch invariants.
func (p Patch) Validate() error {
	want, err := kindOf(p.Raster != nil, p.Vector != nil)
	if err != nil {
		return err
	}
	if p.Kind != want {
		return invalidStatef("patch kind %s does not match payloads (%s)", p.Kind, want)
	}
	if !p.BBox.Valid() {
		return invalidStatef("patch bbox %+v is not valid", p.BBox)
	}
	if p.Raster != nil {
		if err := p.Raster.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (r Raster) validate() error {
	if err := r.Grid.Check(); err != nil {
		return err
	}
	switch r.Kind {
	case Color:
		if ch := r.Grid.channels(); ch != 3 && ch != 4 {
			return invalidStatef("color raster %q has %d channels", r.Name, ch)
		}
	case NonColor, Binary:
		if ch := r.Grid.channels(); ch != 1 {
			return invalidStatef("%s raster %q has %d channels", r.Kind, r.Name, ch)
		}
	default:
		return invalidStatef("raster %q has unknown kind %d", r.Name, int(r.Kind))
	}
	if r.Grid.HasData() {
		if _, _, err := r.Grid.Range(); err != nil {
			return invalidStatef("raster %q: %v", r.Name, err)
		}
	}
	return nil
}
