// Package preflight provides readiness checks for the paths, commands and
// services a modelforge worker depends on.
//
// The worker runs RunAll once at startup and logs failures; `modelforge
// doctor` prints every check, including the network ones.
package preflight
