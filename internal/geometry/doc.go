// Package geometry models the polygon meshes produced by evaluated modeling
// code and derives measurements from them.
//
// Vertices arrive in several shapes (3-number tuples, {x,y,z} objects, or
// wrappers exposing pos/point); NormalizeVertex folds them into Vec3 so the
// rest of the package works on one representation. Measure aggregates bounding
// box, volume, surface area and triangle count across geometries, and
// AnalyzePrintability applies edge-counting manifold checks plus coarse
// bounding-box heuristics for thin walls and overhangs. The heuristics are
// approximations, not normal-based slicing analysis.
package geometry
