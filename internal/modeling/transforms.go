package modeling

import (
	"math"

	"modelforge/internal/geometry"
)

func mapVertices(g geometry.Geometry, fn func(geometry.Vec3) geometry.Vec3) geometry.Geometry {
	out := geometry.Geometry{Polygons: make([]geometry.Polygon, len(g.Polygons))}
	for i, p := range g.Polygons {
		verts := make([]geometry.Vec3, len(p.Vertices))
		for j, v := range p.Vertices {
			verts[j] = fn(v)
		}
		out.Polygons[i] = geometry.Polygon{Vertices: verts}
	}
	return out
}

// Translate moves g by offset.
func Translate(offset geometry.Vec3, g geometry.Geometry) geometry.Geometry {
	return mapVertices(g, func(v geometry.Vec3) geometry.Vec3 { return v.Add(offset) })
}

// Scale multiplies each axis by the matching factor. An odd number of
// negative factors mirrors the mesh, so winding is reversed to keep faces
// pointing outward.
func Scale(factors geometry.Vec3, g geometry.Geometry) geometry.Geometry {
	out := mapVertices(g, func(v geometry.Vec3) geometry.Vec3 {
		return geometry.Vec3{v[0] * factors[0], v[1] * factors[1], v[2] * factors[2]}
	})
	negatives := 0
	for _, f := range factors {
		if f < 0 {
			negatives++
		}
	}
	if negatives%2 == 1 {
		return reverseWinding(out)
	}
	return out
}

// RotateZ rotates g around the z axis by angle radians.
func RotateZ(angle float64, g geometry.Geometry) geometry.Geometry {
	sin, cos := math.Sincos(angle)
	return mapVertices(g, func(v geometry.Vec3) geometry.Vec3 {
		return geometry.Vec3{v[0]*cos - v[1]*sin, v[0]*sin + v[1]*cos, v[2]}
	})
}

// MirrorX reflects g across the YZ plane.
func MirrorX(g geometry.Geometry) geometry.Geometry {
	return Scale(geometry.Vec3{-1, 1, 1}, g)
}

func reverseWinding(g geometry.Geometry) geometry.Geometry {
	for _, p := range g.Polygons {
		for i, j := 0, len(p.Vertices)-1; i < j; i, j = i+1, j-1 {
			p.Vertices[i], p.Vertices[j] = p.Vertices[j], p.Vertices[i]
		}
	}
	return g
}

// Union concatenates the polygons of all inputs into one geometry.
func Union(geoms ...geometry.Geometry) geometry.Geometry {
	total := 0
	for _, g := range geoms {
		total += len(g.Polygons)
	}
	out := geometry.Geometry{Polygons: make([]geometry.Polygon, 0, total)}
	for _, g := range geoms {
		out.Polygons = append(out.Polygons, g.Polygons...)
	}
	return out
}
