// Command modelforge is the operator CLI for the modelforge generation queue.
//
// It works directly against the queue database named in the configuration:
// registering projects, enqueueing prompts, inspecting and driving leases,
// evaluating model files in the sandbox, and running the worker. Output is
// rendered as go-pretty tables unless --json is given.
package main
