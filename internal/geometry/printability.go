package geometry

import (
	"fmt"
	"math"
)

const (
	// ThinWallThreshold is the smallest bounding dimension, in millimetres,
	// below which a model is flagged as too thin to print reliably.
	ThinWallThreshold = 0.8
	// OverhangFootprintRatio flags models whose horizontal footprint exceeds
	// this multiple of their height.
	OverhangFootprintRatio = 2.0

	// edgeQuantum snaps coordinates before edge matching so that float noise
	// from transforms does not split a shared edge in two.
	edgeQuantum = 1e-6
)

// Issue kinds reported by AnalyzePrintability.
const (
	IssueOpenEdge    = "open_edge"
	IssueNonManifold = "non_manifold_edge"
	IssueDegenerate  = "degenerate_polygon"
	IssueThinWall    = "thin_wall"
	IssueOverhang    = "overhang"
	IssueEmpty       = "empty"
)

// Issue is one finding of the printability analysis.
type Issue struct {
	Kind          string `json:"kind"`
	GeometryIndex int    `json:"geometryIndex"`
	Count         int    `json:"count,omitempty"`
	Message       string `json:"message"`
}

// PrintabilityReport aggregates manifold checks and coarse heuristics.
type PrintabilityReport struct {
	Printable            bool    `json:"printable"`
	OpenEdges            int     `json:"openEdges"`
	NonManifoldEdges     int     `json:"nonManifoldEdges"`
	DegeneratePolygons   int     `json:"degeneratePolygons"`
	ThinWalls            bool    `json:"thinWalls"`
	MinDimension         float64 `json:"minDimension"`
	OverhangRisk         bool    `json:"overhangRisk"`
	OverhangAngleDegrees float64 `json:"overhangAngleDegrees,omitempty"`
	Issues               []Issue `json:"issues"`
}

type edgeKey struct {
	a, b Vec3
}

// EdgeStats counts boundary and non-manifold edges for one geometry.
type EdgeStats struct {
	OpenEdges          int
	NonManifoldEdges   int
	DegeneratePolygons int
}

// CountEdges walks every polygon's directed edges, folding each edge with its
// reverse into one counter. A final count of 1 is an open boundary, more than
// 2 is non-manifold. Polygons with fewer than 3 vertices are degenerate and
// skipped.
func CountEdges(g Geometry) EdgeStats {
	var stats EdgeStats
	counts := make(map[edgeKey]int)
	for _, p := range g.Polygons {
		n := len(p.Vertices)
		if n < 3 {
			stats.DegeneratePolygons++
			continue
		}
		for i := 0; i < n; i++ {
			counts[undirectedEdge(p.Vertices[i], p.Vertices[(i+1)%n])]++
		}
	}
	for _, c := range counts {
		switch {
		case c == 1:
			stats.OpenEdges++
		case c > 2:
			stats.NonManifoldEdges++
		}
	}
	return stats
}

func undirectedEdge(a, b Vec3) edgeKey {
	a, b = quantize(a), quantize(b)
	if lessVec(b, a) {
		a, b = b, a
	}
	return edgeKey{a: a, b: b}
}

func quantize(v Vec3) Vec3 {
	for i := range v {
		v[i] = math.Round(v[i]/edgeQuantum) * edgeQuantum
	}
	return v
}

func lessVec(a, b Vec3) bool {
	for i := 0; i < 3; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// AnalyzePrintability runs the per-geometry edge checks and the bounding-box
// heuristics against the aggregate box from Measure.
func AnalyzePrintability(geoms []Geometry, box BoundingBox) PrintabilityReport {
	report := PrintabilityReport{Issues: []Issue{}}
	if len(geoms) == 0 {
		report.Issues = append(report.Issues, Issue{Kind: IssueEmpty, GeometryIndex: -1, Message: "no geometry produced"})
		return report
	}

	for idx, g := range geoms {
		stats := CountEdges(g)
		report.OpenEdges += stats.OpenEdges
		report.NonManifoldEdges += stats.NonManifoldEdges
		report.DegeneratePolygons += stats.DegeneratePolygons
		if stats.OpenEdges > 0 {
			report.Issues = append(report.Issues, Issue{
				Kind: IssueOpenEdge, GeometryIndex: idx, Count: stats.OpenEdges,
				Message: fmt.Sprintf("%d open boundary edge(s); the surface has holes", stats.OpenEdges),
			})
		}
		if stats.NonManifoldEdges > 0 {
			report.Issues = append(report.Issues, Issue{
				Kind: IssueNonManifold, GeometryIndex: idx, Count: stats.NonManifoldEdges,
				Message: fmt.Sprintf("%d edge(s) shared by more than two faces", stats.NonManifoldEdges),
			})
		}
		if stats.DegeneratePolygons > 0 {
			report.Issues = append(report.Issues, Issue{
				Kind: IssueDegenerate, GeometryIndex: idx, Count: stats.DegeneratePolygons,
				Message: fmt.Sprintf("%d polygon(s) with fewer than 3 vertices", stats.DegeneratePolygons),
			})
		}
	}

	dims := box.Dimensions
	report.MinDimension = math.Min(dims[0], math.Min(dims[1], dims[2]))
	if report.MinDimension < ThinWallThreshold {
		report.ThinWalls = true
		report.Issues = append(report.Issues, Issue{
			Kind: IssueThinWall, GeometryIndex: -1,
			Message: fmt.Sprintf("smallest dimension %.2fmm is below %.1fmm (approximate, bounding box only)", report.MinDimension, ThinWallThreshold),
		})
	}

	footprint := math.Max(dims[0], dims[1])
	height := dims[2]
	if footprint > OverhangFootprintRatio*height {
		report.OverhangRisk = true
		if height > 0 {
			report.OverhangAngleDegrees = math.Atan((footprint/2)/height) * 180 / math.Pi
		} else {
			report.OverhangAngleDegrees = 90
		}
		report.Issues = append(report.Issues, Issue{
			Kind: IssueOverhang, GeometryIndex: -1,
			Message: fmt.Sprintf("footprint %.2fmm exceeds twice the height %.2fmm; overhangs near %.0f° likely (approximate)", footprint, height, report.OverhangAngleDegrees),
		})
	}

	report.Printable = report.OpenEdges == 0 &&
		report.NonManifoldEdges == 0 &&
		report.DegeneratePolygons == 0 &&
		!report.ThinWalls
	return report
}
