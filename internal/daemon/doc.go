// Package daemon owns the long-running worker process lifecycle.
//
// It wraps the workflow manager with flock-based locking so only one worker
// serves a data directory, runs the configured project lanes in the
// background, and exposes status and queue diagnostics for the CLI.
//
// Keep orchestration here; the generation steps themselves belong to the
// workflow package.
package daemon
