// Package logs tails the worker log and per-job logs with bounded memory.
//
// A negative offset reads the last N lines; a non-negative offset reads
// forward from that byte position. Follow keeps polling until the context
// ends, so `modelforge logs --follow` exits cleanly on interrupt.
package logs
