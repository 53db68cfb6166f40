package geometry

import (
	"encoding/json"
	"fmt"
	"math"
)

// Vec3 is a canonical 3-component vertex.
type Vec3 [3]float64

func (v Vec3) X() float64 { return v[0] }
func (v Vec3) Y() float64 { return v[1] }
func (v Vec3) Z() float64 { return v[2] }

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v[0] + o[0], v[1] + o[1], v[2] + o[2]} }
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v[0] - o[0], v[1] - o[1], v[2] - o[2]} }
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v[0] * s, v[1] * s, v[2] * s}
}

func (v Vec3) Dot(o Vec3) float64 { return v[0]*o[0] + v[1]*o[1] + v[2]*o[2] }

func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v[1]*o[2] - v[2]*o[1],
		v[2]*o[0] - v[0]*o[2],
		v[0]*o[1] - v[1]*o[0],
	}
}

func (v Vec3) Length() float64 { return math.Sqrt(v.Dot(v)) }

// maxWrapperDepth bounds pos/point unwrapping so self-referencing objects
// cannot recurse forever.
const maxWrapperDepth = 4

// NormalizeVertex converts a vertex in any accepted representation into Vec3.
// Accepted forms: a 3+ element numeric sequence, an object with x/y/z keys, or
// an object whose pos or point field holds either of those.
func NormalizeVertex(raw any) (Vec3, error) {
	return normalizeVertex(raw, 0)
}

func normalizeVertex(raw any, depth int) (Vec3, error) {
	switch v := raw.(type) {
	case Vec3:
		return v, nil
	case [3]float64:
		return Vec3(v), nil
	case []float64:
		if len(v) < 3 {
			return Vec3{}, fmt.Errorf("vertex tuple has %d components, want 3", len(v))
		}
		return Vec3{v[0], v[1], v[2]}, nil
	case []any:
		if len(v) < 3 {
			return Vec3{}, fmt.Errorf("vertex tuple has %d components, want 3", len(v))
		}
		var out Vec3
		for i := 0; i < 3; i++ {
			f, ok := toFloat(v[i])
			if !ok {
				return Vec3{}, fmt.Errorf("vertex component %d is %T, not a number", i, v[i])
			}
			out[i] = f
		}
		return out, nil
	case map[string]any:
		if depth < maxWrapperDepth {
			for _, key := range []string{"pos", "point"} {
				if inner, ok := v[key]; ok && inner != nil {
					return normalizeVertex(inner, depth+1)
				}
			}
		}
		var out Vec3
		for i, key := range []string{"x", "y", "z"} {
			f, ok := toFloat(v[key])
			if !ok {
				return Vec3{}, fmt.Errorf("vertex object missing numeric %q", key)
			}
			out[i] = f
		}
		return out, nil
	case nil:
		return Vec3{}, fmt.Errorf("vertex is null")
	default:
		return Vec3{}, fmt.Errorf("unsupported vertex representation %T", raw)
	}
}

// Number converts a decoded numeric value to float64. NaN and ±Inf are
// rejected: coordinates and sizes must be finite.
func Number(raw any) (float64, bool) {
	return toFloat(raw)
}

func toFloat(raw any) (float64, bool) {
	var f float64
	switch n := raw.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		v, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = v
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
