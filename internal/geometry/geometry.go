package geometry

import "fmt"

// Polygon is one planar face; vertices are ordered counter-clockwise when
// viewed from outside the solid.
type Polygon struct {
	Vertices []Vec3 `json:"vertices"`
}

// Geometry is a polygon mesh as returned by modeling code.
type Geometry struct {
	Polygons []Polygon `json:"polygons"`
}

// VertexCount returns the total number of polygon vertices.
func (g Geometry) VertexCount() int {
	total := 0
	for _, p := range g.Polygons {
		total += len(p.Vertices)
	}
	return total
}

// FromValue converts a decoded object of shape {polygons:[{vertices:[V...]}]}
// into a Geometry, normalizing every vertex.
func FromValue(raw any) (Geometry, error) {
	if g, ok := raw.(Geometry); ok {
		return g, nil
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return Geometry{}, fmt.Errorf("geometry must be an object, got %T", raw)
	}
	rawPolygons, ok := obj["polygons"].([]any)
	if !ok {
		if obj["polygons"] == nil {
			return Geometry{}, fmt.Errorf("geometry has no polygons array")
		}
		return Geometry{}, fmt.Errorf("geometry polygons must be an array, got %T", obj["polygons"])
	}
	out := Geometry{Polygons: make([]Polygon, 0, len(rawPolygons))}
	for pi, rawPolygon := range rawPolygons {
		polygon, err := polygonFromValue(rawPolygon)
		if err != nil {
			return Geometry{}, fmt.Errorf("polygon %d: %w", pi, err)
		}
		out.Polygons = append(out.Polygons, polygon)
	}
	return out, nil
}

func polygonFromValue(raw any) (Polygon, error) {
	var rawVertices []any
	switch p := raw.(type) {
	case map[string]any:
		verts, ok := p["vertices"].([]any)
		if !ok {
			return Polygon{}, fmt.Errorf("polygon has no vertices array")
		}
		rawVertices = verts
	case []any:
		// bare vertex list
		rawVertices = p
	default:
		return Polygon{}, fmt.Errorf("polygon must be an object, got %T", raw)
	}
	polygon := Polygon{Vertices: make([]Vec3, 0, len(rawVertices))}
	for vi, rawVertex := range rawVertices {
		v, err := NormalizeVertex(rawVertex)
		if err != nil {
			return Polygon{}, fmt.Errorf("vertex %d: %w", vi, err)
		}
		polygon.Vertices = append(polygon.Vertices, v)
	}
	return polygon, nil
}

// ToValue renders a Geometry as plain maps and slices, the inverse of FromValue.
func ToValue(g Geometry) map[string]any {
	polygons := make([]any, 0, len(g.Polygons))
	for _, p := range g.Polygons {
		verts := make([]any, 0, len(p.Vertices))
		for _, v := range p.Vertices {
			verts = append(verts, []any{v[0], v[1], v[2]})
		}
		polygons = append(polygons, map[string]any{"vertices": verts})
	}
	return map[string]any{"polygons": polygons}
}
