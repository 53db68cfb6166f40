// Package params recovers a parameter schema from modeling source text without
// executing it.
//
// Extraction looks for a getParameterDefinitions declaration and reads its
// literal array. When none exists it falls back to destructuring defaults
// taken from a params argument. Malformed input never produces an error;
// anything that cannot be read is skipped.
package params
