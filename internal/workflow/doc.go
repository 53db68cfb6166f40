// Package workflow turns queued prompts into evaluated models.
//
// The Manager runs one lane per project. A lane claims the oldest queued
// prompt, keeps its lease alive with heartbeats, asks the Generator for
// modeling code, evaluates it in the lane's sandbox host, measures and
// analyzes the resulting geometry, and writes a result snapshot before
// completing the item. Any failure is recorded on the item with Fail.
//
// Lanes never share a sandbox host, so a timeout in one project tears down
// only that project's execution context.
package workflow
