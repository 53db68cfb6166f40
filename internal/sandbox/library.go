package sandbox

import (
	"fmt"

	"github.com/dop251/goja"

	"modelforge/internal/geometry"
	"modelforge/internal/modeling"
)

// library builds the trusted modeling namespace exposed to scripts. Every
// geometry crossing into JavaScript is a plain {polygons:[{vertices}]} object
// so scripts may also build or inspect meshes by hand.
type library struct {
	rt *goja.Runtime
}

func newLibrary(rt *goja.Runtime) *goja.Object {
	l := &library{rt: rt}
	root := rt.NewObject()
	l.namespace(root, "primitives", map[string]func(goja.FunctionCall) goja.Value{
		"cube":       l.cube,
		"cuboid":     l.cuboid,
		"sphere":     l.sphere,
		"cylinder":   l.cylinder,
		"polyhedron": l.polyhedron,
	})
	l.namespace(root, "transforms", map[string]func(goja.FunctionCall) goja.Value{
		"translate": l.translate,
		"scale":     l.scale,
		"rotateZ":   l.rotateZ,
		"mirrorX":   l.mirrorX,
	})
	l.namespace(root, "booleans", map[string]func(goja.FunctionCall) goja.Value{
		"union": l.union,
	})
	l.namespace(root, "measurements", map[string]func(goja.FunctionCall) goja.Value{
		"measureBoundingBox": l.measureBoundingBox,
		"measureVolume":      l.measureVolume,
		"measureArea":        l.measureArea,
	})
	return root
}

func (l *library) namespace(root *goja.Object, name string, fns map[string]func(goja.FunctionCall) goja.Value) {
	ns := l.rt.NewObject()
	for fnName, fn := range fns {
		_ = ns.Set(fnName, fn)
	}
	_ = root.Set(name, ns)
}

func (l *library) fail(fn string, err error) {
	panic(l.rt.NewTypeError("%s: %s", fn, err.Error()))
}

func (l *library) options(call goja.FunctionCall) map[string]any {
	if opts, ok := call.Argument(0).Export().(map[string]any); ok {
		return opts
	}
	return map[string]any{}
}

func (l *library) value(g geometry.Geometry) goja.Value {
	return l.rt.ToValue(geometry.ToValue(g))
}

func (l *library) cube(call goja.FunctionCall) goja.Value {
	opts := l.options(call)
	size, err := scalarOption(opts, "size", 2)
	if err != nil {
		l.fail("cube", err)
	}
	center, err := vectorOption(opts, "center", geometry.Vec3{})
	if err != nil {
		l.fail("cube", err)
	}
	g, err := modeling.Cube(size, center)
	if err != nil {
		l.fail("cube", err)
	}
	return l.value(g)
}

func (l *library) cuboid(call goja.FunctionCall) goja.Value {
	opts := l.options(call)
	size, err := vectorOption(opts, "size", geometry.Vec3{2, 2, 2})
	if err != nil {
		l.fail("cuboid", err)
	}
	center, err := vectorOption(opts, "center", geometry.Vec3{})
	if err != nil {
		l.fail("cuboid", err)
	}
	g, err := modeling.Cuboid(size, center)
	if err != nil {
		l.fail("cuboid", err)
	}
	return l.value(g)
}

func (l *library) sphere(call goja.FunctionCall) goja.Value {
	opts := l.options(call)
	radius, err := scalarOption(opts, "radius", 1)
	if err != nil {
		l.fail("sphere", err)
	}
	segments, err := segmentsOption(opts)
	if err != nil {
		l.fail("sphere", err)
	}
	center, err := vectorOption(opts, "center", geometry.Vec3{})
	if err != nil {
		l.fail("sphere", err)
	}
	g, err := modeling.Sphere(radius, segments, center)
	if err != nil {
		l.fail("sphere", err)
	}
	return l.value(g)
}

func (l *library) cylinder(call goja.FunctionCall) goja.Value {
	opts := l.options(call)
	radius, err := scalarOption(opts, "radius", 1)
	if err != nil {
		l.fail("cylinder", err)
	}
	height, err := scalarOption(opts, "height", 2)
	if err != nil {
		l.fail("cylinder", err)
	}
	segments, err := segmentsOption(opts)
	if err != nil {
		l.fail("cylinder", err)
	}
	center, err := vectorOption(opts, "center", geometry.Vec3{})
	if err != nil {
		l.fail("cylinder", err)
	}
	g, err := modeling.Cylinder(radius, height, segments, center)
	if err != nil {
		l.fail("cylinder", err)
	}
	return l.value(g)
}

func (l *library) polyhedron(call goja.FunctionCall) goja.Value {
	opts := l.options(call)
	rawPoints, _ := opts["points"].([]any)
	rawFaces, _ := opts["faces"].([]any)
	points := make([]geometry.Vec3, 0, len(rawPoints))
	for i, raw := range rawPoints {
		p, err := geometry.NormalizeVertex(raw)
		if err != nil {
			l.fail("polyhedron", fmt.Errorf("point %d: %w", i, err))
		}
		points = append(points, p)
	}
	faces := make([][]int, 0, len(rawFaces))
	for i, raw := range rawFaces {
		list, ok := raw.([]any)
		if !ok {
			l.fail("polyhedron", fmt.Errorf("face %d is not an array", i))
		}
		face := make([]int, 0, len(list))
		for _, idx := range list {
			n, ok := geometry.Number(idx)
			if !ok {
				l.fail("polyhedron", fmt.Errorf("face %d has a non-numeric index", i))
			}
			face = append(face, int(n))
		}
		faces = append(faces, face)
	}
	g, err := modeling.Polyhedron(points, faces)
	if err != nil {
		l.fail("polyhedron", err)
	}
	return l.value(g)
}

// geometries flattens arguments (single geometries or arrays of them).
func (l *library) geometries(fn string, args []goja.Value) []geometry.Geometry {
	var out []geometry.Geometry
	polygons := 0
	for i, arg := range args {
		raw := arg.Export()
		items, isList := raw.([]any)
		if !isList {
			items = []any{raw}
		}
		for _, item := range items {
			g, err := geometry.FromValue(item)
			if err != nil {
				l.fail(fn, fmt.Errorf("argument %d: %w", i, err))
			}
			polygons += len(g.Polygons)
			if polygons > modeling.MaxPolygons {
				l.fail(fn, fmt.Errorf("%w: more than %d polygons", modeling.ErrTooLarge, modeling.MaxPolygons))
			}
			out = append(out, g)
		}
	}
	if len(out) == 0 {
		l.fail(fn, fmt.Errorf("no geometry given"))
	}
	return out
}

// each applies fn to every geometry argument and mirrors the argument shape:
// one geometry in, one out; otherwise an array.
func (l *library) each(geoms []geometry.Geometry, fn func(geometry.Geometry) geometry.Geometry) goja.Value {
	if len(geoms) == 1 {
		return l.value(fn(geoms[0]))
	}
	out := make([]any, 0, len(geoms))
	for _, g := range geoms {
		out = append(out, geometry.ToValue(fn(g)))
	}
	return l.rt.ToValue(out)
}

func (l *library) translate(call goja.FunctionCall) goja.Value {
	offset, err := geometry.NormalizeVertex(call.Argument(0).Export())
	if err != nil {
		l.fail("translate", err)
	}
	geoms := l.geometries("translate", argsFrom(call, 1))
	return l.each(geoms, func(g geometry.Geometry) geometry.Geometry { return modeling.Translate(offset, g) })
}

func (l *library) scale(call goja.FunctionCall) goja.Value {
	raw := call.Argument(0).Export()
	factors, err := vectorValue(raw)
	if err != nil {
		l.fail("scale", err)
	}
	geoms := l.geometries("scale", argsFrom(call, 1))
	return l.each(geoms, func(g geometry.Geometry) geometry.Geometry { return modeling.Scale(factors, g) })
}

func (l *library) rotateZ(call goja.FunctionCall) goja.Value {
	angle, ok := geometry.Number(call.Argument(0).Export())
	if !ok {
		l.fail("rotateZ", fmt.Errorf("angle must be a number"))
	}
	geoms := l.geometries("rotateZ", argsFrom(call, 1))
	return l.each(geoms, func(g geometry.Geometry) geometry.Geometry { return modeling.RotateZ(angle, g) })
}

func (l *library) mirrorX(call goja.FunctionCall) goja.Value {
	return l.each(l.geometries("mirrorX", call.Arguments), modeling.MirrorX)
}

func (l *library) union(call goja.FunctionCall) goja.Value {
	return l.value(modeling.Union(l.geometries("union", call.Arguments)...))
}

func (l *library) measureBoundingBox(call goja.FunctionCall) goja.Value {
	box, ok := geometry.Bounds(modeling.Union(l.geometries("measureBoundingBox", call.Arguments)...))
	if !ok {
		return l.rt.ToValue([]any{[]any{0.0, 0.0, 0.0}, []any{0.0, 0.0, 0.0}})
	}
	return l.rt.ToValue([]any{
		[]any{box.Min[0], box.Min[1], box.Min[2]},
		[]any{box.Max[0], box.Max[1], box.Max[2]},
	})
}

func (l *library) measureVolume(call goja.FunctionCall) goja.Value {
	return l.rt.ToValue(geometry.Volume(modeling.Union(l.geometries("measureVolume", call.Arguments)...)))
}

func (l *library) measureArea(call goja.FunctionCall) goja.Value {
	return l.rt.ToValue(geometry.SurfaceArea(modeling.Union(l.geometries("measureArea", call.Arguments)...)))
}

func argsFrom(call goja.FunctionCall, i int) []goja.Value {
	if len(call.Arguments) <= i {
		return nil
	}
	return call.Arguments[i:]
}

func scalarOption(opts map[string]any, key string, fallback float64) (float64, error) {
	raw, ok := opts[key]
	if !ok || raw == nil {
		return fallback, nil
	}
	n, ok := geometry.Number(raw)
	if !ok {
		return 0, fmt.Errorf("%s must be a number", key)
	}
	return n, nil
}

// segmentsOption reads a circular resolution, checking the range before the
// float is narrowed to int.
func segmentsOption(opts map[string]any) (int, error) {
	n, err := scalarOption(opts, "segments", modeling.DefaultSegments)
	if err != nil {
		return 0, err
	}
	if n > modeling.MaxSegments {
		return 0, fmt.Errorf("%w: segments %v above %d", modeling.ErrTooLarge, n, modeling.MaxSegments)
	}
	return int(n), nil
}

func vectorOption(opts map[string]any, key string, fallback geometry.Vec3) (geometry.Vec3, error) {
	raw, ok := opts[key]
	if !ok || raw == nil {
		return fallback, nil
	}
	v, err := vectorValue(raw)
	if err != nil {
		return geometry.Vec3{}, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

// vectorValue accepts a vertex-shaped value or a single number applied to
// all three axes.
func vectorValue(raw any) (geometry.Vec3, error) {
	if n, ok := geometry.Number(raw); ok {
		return geometry.Vec3{n, n, n}, nil
	}
	return geometry.NormalizeVertex(raw)
}
