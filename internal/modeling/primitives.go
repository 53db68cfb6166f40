package modeling

import (
	"errors"
	"fmt"
	"math"

	"modelforge/internal/geometry"
)

const (
	// DefaultSegments is the circular resolution used when callers pass none.
	DefaultSegments = 32
	// MaxSegments bounds circular resolution. A sphere at the cap has
	// MaxSegments*MaxSegments/2 polygons.
	MaxSegments = 512
	// MaxPolygons bounds the polygons one primitive or boolean may produce.
	MaxPolygons = 200_000
)

// ErrTooLarge reports a request for more geometry than the library will build.
var ErrTooLarge = errors.New("geometry too large")

// Cube builds an axis-aligned cube with the given edge length.
func Cube(size float64, center geometry.Vec3) (geometry.Geometry, error) {
	return Cuboid(geometry.Vec3{size, size, size}, center)
}

// Cuboid builds an axis-aligned box centered on center.
func Cuboid(size, center geometry.Vec3) (geometry.Geometry, error) {
	for i, d := range size {
		if !(d > 0) {
			return geometry.Geometry{}, fmt.Errorf("cuboid size[%d] must be positive, got %v", i, d)
		}
	}
	h := size.Scale(0.5)
	lo := center.Sub(h)
	hi := center.Add(h)
	corner := func(x, y, z int) geometry.Vec3 {
		pick := func(axis, bit int) float64 {
			if bit == 0 {
				return lo[axis]
			}
			return hi[axis]
		}
		return geometry.Vec3{pick(0, x), pick(1, y), pick(2, z)}
	}
	faces := [][4][3]int{
		{{0, 0, 0}, {0, 1, 0}, {1, 1, 0}, {1, 0, 0}}, // -z
		{{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1}}, // +z
		{{0, 0, 0}, {1, 0, 0}, {1, 0, 1}, {0, 0, 1}}, // -y
		{{0, 1, 0}, {0, 1, 1}, {1, 1, 1}, {1, 1, 0}}, // +y
		{{0, 0, 0}, {0, 0, 1}, {0, 1, 1}, {0, 1, 0}}, // -x
		{{1, 0, 0}, {1, 1, 0}, {1, 1, 1}, {1, 0, 1}}, // +x
	}
	g := geometry.Geometry{Polygons: make([]geometry.Polygon, 0, len(faces))}
	for _, face := range faces {
		p := geometry.Polygon{Vertices: make([]geometry.Vec3, 0, 4)}
		for _, c := range face {
			p.Vertices = append(p.Vertices, corner(c[0], c[1], c[2]))
		}
		g.Polygons = append(g.Polygons, p)
	}
	return g, nil
}

// Sphere builds a UV sphere with segments around the equator and segments/2
// stacks from pole to pole.
func Sphere(radius float64, segments int, center geometry.Vec3) (geometry.Geometry, error) {
	if !(radius > 0) {
		return geometry.Geometry{}, fmt.Errorf("sphere radius must be positive, got %v", radius)
	}
	if segments <= 0 {
		segments = DefaultSegments
	}
	if segments < 4 {
		return geometry.Geometry{}, fmt.Errorf("sphere needs at least 4 segments, got %d", segments)
	}
	if segments > MaxSegments {
		return geometry.Geometry{}, fmt.Errorf("%w: sphere segments %d above %d", ErrTooLarge, segments, MaxSegments)
	}
	stacks := segments / 2
	top := center.Add(geometry.Vec3{0, 0, radius})
	bottom := center.Add(geometry.Vec3{0, 0, -radius})
	vertex := func(i, j int) geometry.Vec3 {
		if i == 0 {
			return top
		}
		if i == stacks {
			return bottom
		}
		theta := math.Pi * float64(i) / float64(stacks)
		phi := 2 * math.Pi * float64(j%segments) / float64(segments)
		return center.Add(geometry.Vec3{
			radius * math.Sin(theta) * math.Cos(phi),
			radius * math.Sin(theta) * math.Sin(phi),
			radius * math.Cos(theta),
		})
	}
	g := geometry.Geometry{}
	for i := 0; i < stacks; i++ {
		for j := 0; j < segments; j++ {
			a, b, c, d := vertex(i, j), vertex(i+1, j), vertex(i+1, j+1), vertex(i, j+1)
			var verts []geometry.Vec3
			switch {
			case i == 0:
				verts = []geometry.Vec3{a, b, c}
			case i+1 == stacks:
				verts = []geometry.Vec3{a, b, d}
			default:
				verts = []geometry.Vec3{a, b, c, d}
			}
			g.Polygons = append(g.Polygons, geometry.Polygon{Vertices: verts})
		}
	}
	return g, nil
}

// Cylinder builds a capped cylinder along the z axis centered on center.
func Cylinder(radius, height float64, segments int, center geometry.Vec3) (geometry.Geometry, error) {
	if !(radius > 0) || !(height > 0) {
		return geometry.Geometry{}, fmt.Errorf("cylinder radius and height must be positive, got %v and %v", radius, height)
	}
	if segments <= 0 {
		segments = DefaultSegments
	}
	if segments < 3 {
		return geometry.Geometry{}, fmt.Errorf("cylinder needs at least 3 segments, got %d", segments)
	}
	if segments > MaxSegments {
		return geometry.Geometry{}, fmt.Errorf("%w: cylinder segments %d above %d", ErrTooLarge, segments, MaxSegments)
	}
	ring := func(z float64) []geometry.Vec3 {
		out := make([]geometry.Vec3, segments)
		for j := range out {
			phi := 2 * math.Pi * float64(j) / float64(segments)
			out[j] = center.Add(geometry.Vec3{radius * math.Cos(phi), radius * math.Sin(phi), z})
		}
		return out
	}
	lower := ring(-height / 2)
	upper := ring(height / 2)

	g := geometry.Geometry{Polygons: make([]geometry.Polygon, 0, segments+2)}
	for j := 0; j < segments; j++ {
		k := (j + 1) % segments
		g.Polygons = append(g.Polygons, geometry.Polygon{Vertices: []geometry.Vec3{lower[j], lower[k], upper[k], upper[j]}})
	}
	g.Polygons = append(g.Polygons, geometry.Polygon{Vertices: upper})
	reversed := make([]geometry.Vec3, segments)
	for j := range lower {
		reversed[segments-1-j] = lower[j]
	}
	g.Polygons = append(g.Polygons, geometry.Polygon{Vertices: reversed})
	return g, nil
}

// Polyhedron builds a mesh from a point list and faces of point indices.
func Polyhedron(points []geometry.Vec3, faces [][]int) (geometry.Geometry, error) {
	if len(points) == 0 || len(faces) == 0 {
		return geometry.Geometry{}, errors.New("polyhedron needs points and faces")
	}
	if len(faces) > MaxPolygons {
		return geometry.Geometry{}, fmt.Errorf("%w: polyhedron has %d faces, limit %d", ErrTooLarge, len(faces), MaxPolygons)
	}
	g := geometry.Geometry{Polygons: make([]geometry.Polygon, 0, len(faces))}
	for fi, face := range faces {
		p := geometry.Polygon{Vertices: make([]geometry.Vec3, 0, len(face))}
		for _, idx := range face {
			if idx < 0 || idx >= len(points) {
				return geometry.Geometry{}, fmt.Errorf("face %d references point %d of %d", fi, idx, len(points))
			}
			p.Vertices = append(p.Vertices, points[idx])
		}
		g.Polygons = append(g.Polygons, p)
	}
	return g, nil
}
