// Package logging builds the slog loggers used by modelforge.
//
// Two formats exist: a console line keyed by component and job subject, and a
// JSON stream that the daemon log and per-job logs use. Context helpers copy
// project, queue and correlation ids from a context.Context onto log lines.
package logging
