package geometry

import "math"

// BoundingBox is an axis-aligned box.
type BoundingBox struct {
	Min        Vec3 `json:"min"`
	Max        Vec3 `json:"max"`
	Dimensions Vec3 `json:"dimensions"`
	Center     Vec3 `json:"center"`
}

// Measurement summarizes one or more geometries.
type Measurement struct {
	BoundingBox   BoundingBox `json:"boundingBox"`
	Volume        float64     `json:"volume"`
	SurfaceArea   float64     `json:"surfaceArea"`
	TriangleCount int         `json:"triangleCount"`
}

// Bounds returns the bounding box of g and false when g has no vertices.
func Bounds(g Geometry) (BoundingBox, bool) {
	minV := Vec3{math.Inf(1), math.Inf(1), math.Inf(1)}
	maxV := Vec3{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	found := false
	for _, p := range g.Polygons {
		for _, v := range p.Vertices {
			found = true
			for i := 0; i < 3; i++ {
				minV[i] = math.Min(minV[i], v[i])
				maxV[i] = math.Max(maxV[i], v[i])
			}
		}
	}
	if !found {
		return BoundingBox{}, false
	}
	return newBoundingBox(minV, maxV), true
}

func newBoundingBox(minV, maxV Vec3) BoundingBox {
	dims := maxV.Sub(minV)
	return BoundingBox{
		Min:        minV,
		Max:        maxV,
		Dimensions: dims,
		Center:     minV.Add(dims.Scale(0.5)),
	}
}

// Volume returns the enclosed volume of a closed mesh via the divergence
// theorem (signed tetrahedra against the origin, fan-triangulated faces).
// Open meshes yield an approximate value.
func Volume(g Geometry) float64 {
	var total float64
	forEachTriangle(g, func(a, b, c Vec3) {
		total += a.Dot(b.Cross(c)) / 6
	})
	return math.Abs(total)
}

// SurfaceArea returns the summed area of all faces.
func SurfaceArea(g Geometry) float64 {
	var total float64
	forEachTriangle(g, func(a, b, c Vec3) {
		total += b.Sub(a).Cross(c.Sub(a)).Length() / 2
	})
	return total
}

// TriangleCount returns how many triangles a fan triangulation produces.
func TriangleCount(g Geometry) int {
	count := 0
	for _, p := range g.Polygons {
		if n := len(p.Vertices); n >= 3 {
			count += n - 2
		}
	}
	return count
}

func forEachTriangle(g Geometry, fn func(a, b, c Vec3)) {
	for _, p := range g.Polygons {
		if len(p.Vertices) < 3 {
			continue
		}
		origin := p.Vertices[0]
		for i := 1; i+1 < len(p.Vertices); i++ {
			fn(origin, p.Vertices[i], p.Vertices[i+1])
		}
	}
}

// Measure aggregates volume and surface area across geometries and merges
// their individual bounding boxes element-wise.
func Measure(geoms []Geometry) Measurement {
	var (
		m      Measurement
		minV   = Vec3{math.Inf(1), math.Inf(1), math.Inf(1)}
		maxV   = Vec3{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
		hasBox bool
	)
	for _, g := range geoms {
		m.Volume += Volume(g)
		m.SurfaceArea += SurfaceArea(g)
		m.TriangleCount += TriangleCount(g)
		box, ok := Bounds(g)
		if !ok {
			continue
		}
		hasBox = true
		for i := 0; i < 3; i++ {
			minV[i] = math.Min(minV[i], box.Min[i])
			maxV[i] = math.Max(maxV[i], box.Max[i])
		}
	}
	if hasBox {
		m.BoundingBox = newBoundingBox(minV, maxV)
	}
	return m
}
