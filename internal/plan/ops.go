package plan

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/couchcryptid/geode/internal/domain"
	"github.com/couchcryptid/geode/internal/expert"
	"github.com/segmentio/encoding/json"
)

// Value is a step output. Both fields nil means an absent patch, which is
// what intersect_vector returns for two absent inputs.
type Value struct {
	Patch  *domain.Patch
	Scalar *float64
}

type operator func(ctx context.Context, r *run, args json.RawMessage) (Value, error)

var operators = map[string]operator{
	"point_location":   opPointLocation,
	"patch_location":   opPatchLocation,
	"field":            opField,
	"field_at":         opFieldAt,
	"rasterize":        opRasterize,
	"threshold":        opThreshold,
	"impute":           opImpute,
	"intersect_vector": opIntersectVector,
	"intersect_raster": opIntersectRaster,
	"correlation":      opCorrelation,
}

// Ops returns the operator names a plan may use.
func Ops() []string {
	return slices.Sorted(maps.Keys(operators))
}

// run holds the outputs of the steps executed so far.
type run struct {
	ex     *Executor
	values map[string]Value
}

func (r *run) patch(ref string) (domain.Patch, error) {
	p, err := r.optionalPatch(ref)
	if err != nil {
		return domain.Patch{}, err
	}
	if p == nil {
		return domain.Patch{}, fmt.Errorf("%w: step %q has no patch", domain.ErrInvalidState, ref)
	}
	return *p, nil
}

// optionalPatch resolves ref to a patch. An empty ref, or a ref to a step
// whose output is absent, yields nil.
func (r *run) optionalPatch(ref string) (*domain.Patch, error) {
	if ref == "" {
		return nil, nil
	}
	v, ok := r.values[ref]
	if !ok {
		return nil, fmt.Errorf("%w: unknown step reference %q", domain.ErrInvalidState, ref)
	}
	if v.Scalar != nil {
		return nil, fmt.Errorf("%w: step %q is a scalar, not a patch", domain.ErrInvalidState, ref)
	}
	return v.Patch, nil
}

func decodeArgs(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: decode args: %v", domain.ErrInvalidState, err)
	}
	return nil
}

func patchValue(p domain.Patch, err error) (Value, error) {
	if err != nil {
		return Value{}, err
	}
	return Value{Patch: &p}, nil
}

type locationArgs struct {
	Name string `json:"name"`
}

func opPointLocation(ctx context.Context, r *run, raw json.RawMessage) (Value, error) {
	var args locationArgs
	if err := decodeArgs(raw, &args); err != nil {
		return Value{}, err
	}
	if r.ex.locator == nil {
		return Value{}, fmt.Errorf("%w: no location provider configured", domain.ErrInvalidState)
	}
	return patchValue(expert.PointLocation(ctx, r.ex.locator, args.Name))
}

func opPatchLocation(ctx context.Context, r *run, raw json.RawMessage) (Value, error) {
	var args locationArgs
	if err := decodeArgs(raw, &args); err != nil {
		return Value{}, err
	}
	if r.ex.locator == nil {
		return Value{}, fmt.Errorf("%w: no location provider configured", domain.ErrInvalidState)
	}
	return patchValue(expert.PatchLocation(ctx, r.ex.locator, args.Name))
}

type fieldArgs struct {
	Patch    string `json:"patch"`
	Variable string `json:"variable"`
	Samples  int    `json:"samples"`
	Rows     int    `json:"rows"`
	Cols     int    `json:"cols"`
	Colormap string `json:"colormap"`
	Seed     uint64 `json:"seed"`
}

func opField(ctx context.Context, r *run, raw json.RawMessage) (Value, error) {
	var args fieldArgs
	if err := decodeArgs(raw, &args); err != nil {
		return Value{}, err
	}
	if r.ex.fields == nil {
		return Value{}, fmt.Errorf("%w: no field provider configured", domain.ErrInvalidState)
	}
	p, err := r.patch(args.Patch)
	if err != nil {
		return Value{}, err
	}
	opts := expert.FieldOptions{
		Variable: args.Variable,
		Samples:  orDefault(args.Samples, r.ex.cfg.FieldSamples),
		Rows:     orDefault(args.Rows, r.ex.cfg.GridSize),
		Cols:     orDefault(args.Cols, r.ex.cfg.GridSize),
		Colormap: args.Colormap,
		Seed:     args.Seed,
	}
	return patchValue(expert.Field(ctx, r.ex.fields, p, opts))
}

type fieldAtArgs struct {
	Patch    string `json:"patch"`
	Variable string `json:"variable"`
}

func opFieldAt(ctx context.Context, r *run, raw json.RawMessage) (Value, error) {
	var args fieldAtArgs
	if err := decodeArgs(raw, &args); err != nil {
		return Value{}, err
	}
	if r.ex.fields == nil {
		return Value{}, fmt.Errorf("%w: no field provider configured", domain.ErrInvalidState)
	}
	p, err := r.patch(args.Patch)
	if err != nil {
		return Value{}, err
	}
	return patchValue(expert.FieldAt(ctx, r.ex.fields, p, args.Variable))
}

// rasterizeArgs takes samples inline or from the valued points of a patch.
type rasterizeArgs struct {
	Samples  []expert.Sample `json:"samples"`
	Patch    string          `json:"patch"`
	Rows     int             `json:"rows"`
	Cols     int             `json:"cols"`
	Name     string          `json:"name"`
	Colormap string          `json:"colormap"`
}

func opRasterize(_ context.Context, r *run, raw json.RawMessage) (Value, error) {
	var args rasterizeArgs
	if err := decodeArgs(raw, &args); err != nil {
		return Value{}, err
	}
	samples := args.Samples
	if args.Patch != "" {
		p, err := r.patch(args.Patch)
		if err != nil {
			return Value{}, err
		}
		if p.Vector != nil {
			for _, dp := range p.Vector.Points {
				if dp.Value != nil {
					samples = append(samples, expert.Sample{Lat: dp.Coordinate.Lat, Lon: dp.Coordinate.Lon, Value: *dp.Value})
				}
			}
		}
	}
	return patchValue(expert.Rasterize(samples, expert.RasterizeOptions{
		Rows:     orDefault(args.Rows, r.ex.cfg.GridSize),
		Cols:     orDefault(args.Cols, r.ex.cfg.GridSize),
		Name:     args.Name,
		Colormap: args.Colormap,
	}))
}

type thresholdArgs struct {
	Patch    string  `json:"patch"`
	Value    float64 `json:"value"`
	Mode     string  `json:"mode"`
	Relative bool    `json:"relative"`
}

func opThreshold(_ context.Context, r *run, raw json.RawMessage) (Value, error) {
	var args thresholdArgs
	if err := decodeArgs(raw, &args); err != nil {
		return Value{}, err
	}
	p, err := r.patch(args.Patch)
	if err != nil {
		return Value{}, err
	}
	mode, err := expert.ParseMode(args.Mode)
	if err != nil {
		return Value{}, err
	}
	return patchValue(expert.Threshold(p, expert.ThresholdOptions{Value: args.Value, Mode: mode, Relative: args.Relative}))
}

type patchArgs struct {
	Patch string `json:"patch"`
}

func opImpute(_ context.Context, r *run, raw json.RawMessage) (Value, error) {
	var args patchArgs
	if err := decodeArgs(raw, &args); err != nil {
		return Value{}, err
	}
	p, err := r.patch(args.Patch)
	if err != nil {
		return Value{}, err
	}
	return patchValue(expert.Impute(p))
}

type pairArgs struct {
	A string `json:"a"`
	B string `json:"b"`
}

func opIntersectVector(_ context.Context, r *run, raw json.RawMessage) (Value, error) {
	var args pairArgs
	if err := decodeArgs(raw, &args); err != nil {
		return Value{}, err
	}
	a, err := r.optionalPatch(args.A)
	if err != nil {
		return Value{}, err
	}
	b, err := r.optionalPatch(args.B)
	if err != nil {
		return Value{}, err
	}
	out, err := expert.IntersectVector(a, b)
	if err != nil {
		return Value{}, err
	}
	return Value{Patch: out}, nil
}

func opIntersectRaster(_ context.Context, r *run, raw json.RawMessage) (Value, error) {
	var args pairArgs
	if err := decodeArgs(raw, &args); err != nil {
		return Value{}, err
	}
	a, err := r.patch(args.A)
	if err != nil {
		return Value{}, err
	}
	b, err := r.patch(args.B)
	if err != nil {
		return Value{}, err
	}
	return patchValue(expert.IntersectRaster(a, b))
}

func opCorrelation(_ context.Context, r *run, raw json.RawMessage) (Value, error) {
	var args pairArgs
	if err := decodeArgs(raw, &args); err != nil {
		return Value{}, err
	}
	a, err := r.patch(args.A)
	if err != nil {
		return Value{}, err
	}
	b, err := r.patch(args.B)
	if err != nil {
		return Value{}, err
	}
	c, err := expert.Correlation(a, b)
	if err != nil {
		return Value{}, err
	}
	return Value{Scalar: &c}, nil
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
