// Package modeling is the trusted primitive library exposed to sandboxed
// modeling code. It builds closed polygon meshes (cuboids, spheres, cylinders,
// arbitrary polyhedra) and applies simple rigid transforms.
//
// Union concatenates polygon lists; it is not a constructive solid geometry
// boolean. Overlapping solids therefore measure as the sum of their parts.
package modeling
