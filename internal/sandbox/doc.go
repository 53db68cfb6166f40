// Package sandbox evaluates untrusted modeling scripts.
//
// A Context owns one JavaScript runtime and the module cache shared by every
// module loaded into it. Scripts can reach only the trusted modeling library,
// a console that writes to the host logger, and a module loader that accepts
// trusted-library names, local bundle paths, remote URLs and relative paths.
//
// A Worker runs a Context on its own goroutine and speaks the evaluate/ready/
// parameters/result/error protocol over channels. A Host drives a Worker,
// enforces the wall-clock timeout and replaces the Worker (and with it the
// module cache) when a script overruns. Serve speaks the same protocol as
// JSON lines so a Context can also live in a separate process.
package sandbox
