// Package services defines shared utilities consumed by the queue, the sandbox
// and the generation workflow.
//
// Key responsibilities:
//   - Context helpers that stamp project IDs, queue item IDs, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper so every failure carries a
//     taxonomy kind that callers can test with errors.Is.
//
// Use these helpers when wiring new components so operational behaviour (error
// classification, observability) stays uniform across the system.
package services
