package geometry_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"modelforge/internal/geometry"
)

func cube(size float64, offset geometry.Vec3) geometry.Geometry {
	s := size
	faces := [][]geometry.Vec3{
		{{0, 0, 0}, {0, s, 0}, {s, s, 0}, {s, 0, 0}},
		{{0, 0, s}, {s, 0, s}, {s, s, s}, {0, s, s}},
		{{0, 0, 0}, {s, 0, 0}, {s, 0, s}, {0, 0, s}},
		{{0, s, 0}, {0, s, s}, {s, s, s}, {s, s, 0}},
		{{0, 0, 0}, {0, 0, s}, {0, s, s}, {0, s, 0}},
		{{s, 0, 0}, {s, s, 0}, {s, s, s}, {s, 0, s}},
	}
	g := geometry.Geometry{}
	for _, face := range faces {
		p := geometry.Polygon{}
		for _, v := range face {
			p.Vertices = append(p.Vertices, v.Add(offset))
		}
		g.Polygons = append(g.Polygons, p)
	}
	return g
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestNormalizeVertexAcceptsAllForms(t *testing.T) {
	cases := []struct {
		name string
		raw  any
	}{
		{"tuple of mixed numbers", []any{int64(1), 2.0, 3}},
		{"float slice", []float64{1, 2, 3}},
		{"xyz object", map[string]any{"x": 1.0, "y": int64(2), "z": 3.0}},
		{"pos wrapper tuple", map[string]any{"pos": []any{1.0, 2.0, 3.0}}},
		{"point wrapper object", map[string]any{"point": map[string]any{"x": 1, "y": 2, "z": 3}}},
		{"nested wrappers", map[string]any{"pos": map[string]any{"point": []any{1, 2, 3}}}},
	}
	want := geometry.Vec3{1, 2, 3}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := geometry.NormalizeVertex(tc.raw)
			if err != nil {
				t.Fatalf("NormalizeVertex: %v", err)
			}
			if got != want {
				t.Fatalf("got %v want %v", got, want)
			}
		})
	}
}

func TestNormalizeVertexRejectsMalformed(t *testing.T) {
	for _, raw := range []any{
		nil,
		"1,2,3",
		[]any{1.0, 2.0},
		[]any{1.0, "two", 3.0},
		map[string]any{"x": 1.0, "y": 2.0},
		[]any{math.Inf(1), 0.0, 0.0},
		[]any{0.0, math.Inf(-1), 0.0},
		[]any{0.0, 0.0, math.NaN()},
		[]any{float32(math.NaN()), 0.0, 0.0},
		[]any{float32(math.Inf(1)), 0.0, 0.0},
		map[string]any{"x": 1.0, "y": 2.0, "z": math.Inf(1)},
	} {
		if _, err := geometry.NormalizeVertex(raw); err == nil {
			t.Fatalf("expected error for %#v", raw)
		}
	}
}

func TestNumberRejectsNonFinite(t *testing.T) {
	for _, raw := range []any{math.NaN(), math.Inf(1), float32(math.Inf(-1)), json.Number("1e999")} {
		if _, ok := geometry.Number(raw); ok {
			t.Errorf("Number(%v) accepted a non-finite value", raw)
		}
	}
	if n, ok := geometry.Number(json.Number("2.5")); !ok || n != 2.5 {
		t.Errorf("Number(2.5) = %v, %v", n, ok)
	}
}

func TestFromValueNormalizesMixedVertices(t *testing.T) {
	raw := map[string]any{
		"polygons": []any{
			map[string]any{"vertices": []any{
				[]any{0.0, 0.0, 0.0},
				map[string]any{"x": 1.0, "y": 0.0, "z": 0.0},
				map[string]any{"pos": []any{0.0, 1.0, 0.0}},
			}},
		},
	}
	g, err := geometry.FromValue(raw)
	if err != nil {
		t.Fatalf("FromValue: %v", err)
	}
	want := geometry.Geometry{Polygons: []geometry.Polygon{{Vertices: []geometry.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}}}}
	if diff := cmp.Diff(want, g); diff != "" {
		t.Fatalf("geometry mismatch (-want +got):\n%s", diff)
	}

	back, err := geometry.FromValue(geometry.ToValue(g))
	if err != nil {
		t.Fatalf("FromValue(ToValue): %v", err)
	}
	if diff := cmp.Diff(g, back); diff != "" {
		t.Fatalf("ToValue is not the inverse of FromValue:\n%s", diff)
	}
}

func TestFromValueRejectsNonGeometry(t *testing.T) {
	for _, raw := range []any{42.0, map[string]any{}, map[string]any{"polygons": "nope"}} {
		if _, err := geometry.FromValue(raw); err == nil {
			t.Fatalf("expected error for %#v", raw)
		}
	}
}

func TestMeasureCube(t *testing.T) {
	m := geometry.Measure([]geometry.Geometry{cube(10, geometry.Vec3{})})
	if !approx(m.Volume, 1000) {
		t.Fatalf("volume = %v, want 1000", m.Volume)
	}
	if !approx(m.SurfaceArea, 600) {
		t.Fatalf("surface area = %v, want 600", m.SurfaceArea)
	}
	if m.TriangleCount != 12 {
		t.Fatalf("triangles = %d, want 12", m.TriangleCount)
	}
	if m.BoundingBox.Dimensions != (geometry.Vec3{10, 10, 10}) || m.BoundingBox.Center != (geometry.Vec3{5, 5, 5}) {
		t.Fatalf("unexpected bounding box %+v", m.BoundingBox)
	}
}

func TestMeasureMergesBoundingBoxesAndSums(t *testing.T) {
	m := geometry.Measure([]geometry.Geometry{
		cube(2, geometry.Vec3{-5, 0, 0}),
		cube(4, geometry.Vec3{10, 1, 2}),
		{},
	})
	want := geometry.BoundingBox{
		Min:        geometry.Vec3{-5, 0, 0},
		Max:        geometry.Vec3{14, 5, 6},
		Dimensions: geometry.Vec3{19, 5, 6},
		Center:     geometry.Vec3{4.5, 2.5, 3},
	}
	if diff := cmp.Diff(want, m.BoundingBox); diff != "" {
		t.Fatalf("bounding box mismatch (-want +got):\n%s", diff)
	}
	if !approx(m.Volume, 8+64) {
		t.Fatalf("volume = %v, want 72", m.Volume)
	}
	if !approx(m.SurfaceArea, 24+96) {
		t.Fatalf("surface area = %v, want 120", m.SurfaceArea)
	}
}

func TestMeasureEmpty(t *testing.T) {
	m := geometry.Measure(nil)
	if m != (geometry.Measurement{}) {
		t.Fatalf("expected zero measurement, got %+v", m)
	}
}

func TestCountEdgesClosedCube(t *testing.T) {
	stats := geometry.CountEdges(cube(10, geometry.Vec3{}))
	if stats != (geometry.EdgeStats{}) {
		t.Fatalf("expected a closed manifold, got %+v", stats)
	}
}

func TestCountEdgesFlagsOpenBoundary(t *testing.T) {
	g := cube(10, geometry.Vec3{})
	g.Polygons = g.Polygons[1:] // drop the bottom face
	stats := geometry.CountEdges(g)
	if stats.OpenEdges != 4 {
		t.Fatalf("open edges = %d, want 4", stats.OpenEdges)
	}
	if stats.NonManifoldEdges != 0 {
		t.Fatalf("non-manifold edges = %d, want 0", stats.NonManifoldEdges)
	}
}

func TestCountEdgesFlagsNonManifoldEdge(t *testing.T) {
	g := cube(10, geometry.Vec3{})
	// A fin sharing the cube's edge (0,0,0)-(10,0,0): that edge now borders three faces.
	g.Polygons = append(g.Polygons, geometry.Polygon{Vertices: []geometry.Vec3{{0, 0, 0}, {10, 0, 0}, {5, -5, 0}}})
	stats := geometry.CountEdges(g)
	if stats.NonManifoldEdges != 1 {
		t.Fatalf("non-manifold edges = %d, want 1", stats.NonManifoldEdges)
	}
	if stats.OpenEdges != 2 {
		t.Fatalf("open edges = %d, want 2 (the fin's free edges)", stats.OpenEdges)
	}
}

func TestCountEdgesSkipsDegeneratePolygons(t *testing.T) {
	g := cube(10, geometry.Vec3{})
	g.Polygons = append(g.Polygons, geometry.Polygon{Vertices: []geometry.Vec3{{0, 0, 0}, {10, 0, 0}}})
	stats := geometry.CountEdges(g)
	if stats.DegeneratePolygons != 1 {
		t.Fatalf("degenerate = %d, want 1", stats.DegeneratePolygons)
	}
	if stats.OpenEdges != 0 || stats.NonManifoldEdges != 0 {
		t.Fatalf("degenerate polygon should not affect edge counts: %+v", stats)
	}
}

func TestAnalyzePrintability(t *testing.T) {
	cases := []struct {
		name      string
		geoms     []geometry.Geometry
		printable bool
		thin      bool
		overhang  bool
		kinds     []string
	}{
		{
			name:      "solid cube",
			geoms:     []geometry.Geometry{cube(20, geometry.Vec3{})},
			printable: true,
			kinds:     []string{},
		},
		{
			name:      "thin sliver",
			geoms:     []geometry.Geometry{cube(0.5, geometry.Vec3{})},
			printable: false,
			thin:      true,
			kinds:     []string{geometry.IssueThinWall},
		},
		{
			name:  "open cube",
			geoms: []geometry.Geometry{{Polygons: cube(20, geometry.Vec3{}).Polygons[1:]}},
			kinds: []string{geometry.IssueOpenEdge},
		},
		{
			name:  "nothing",
			geoms: nil,
			kinds: []string{geometry.IssueEmpty},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := geometry.Measure(tc.geoms)
			report := geometry.AnalyzePrintability(tc.geoms, m.BoundingBox)
			if report.Printable != tc.printable {
				t.Fatalf("printable = %v, want %v (%+v)", report.Printable, tc.printable, report)
			}
			if report.ThinWalls != tc.thin || report.OverhangRisk != tc.overhang {
				t.Fatalf("unexpected heuristics: %+v", report)
			}
			kinds := []string{}
			for _, issue := range report.Issues {
				kinds = append(kinds, issue.Kind)
			}
			if diff := cmp.Diff(tc.kinds, kinds); diff != "" {
				t.Fatalf("issue kinds mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAnalyzePrintabilityOverhangAngle(t *testing.T) {
	box := geometry.BoundingBox{Dimensions: geometry.Vec3{100, 40, 10}}
	report := geometry.AnalyzePrintability([]geometry.Geometry{cube(1, geometry.Vec3{})}, box)
	if !report.OverhangRisk {
		t.Fatal("expected overhang risk for a wide flat footprint")
	}
	want := math.Atan(50.0/10.0) * 180 / math.Pi
	if !approx(report.OverhangAngleDegrees, want) {
		t.Fatalf("angle = %v, want %v", report.OverhangAngleDegrees, want)
	}

	tall := geometry.AnalyzePrintability([]geometry.Geometry{cube(1, geometry.Vec3{})}, geometry.BoundingBox{Dimensions: geometry.Vec3{10, 10, 10}})
	if tall.OverhangRisk {
		t.Fatal("did not expect overhang risk for a cube")
	}
}
