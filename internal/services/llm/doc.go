// Package llm provides a chat completion client used to turn prompts into
// modeling code.
//
// The client speaks the OpenAI-compatible chat completions wire format
// (OpenRouter by default). Complete sends a system and user prompt and
// returns the first non-empty content the provider produced, tolerating the
// streaming "delta" shape and legacy "text" completions.
//
// # Retry Behaviour
//
// Requests are retried on HTTP 408/429/5xx, empty completions, and network
// timeouts with exponential backoff (base 1s, max 10s, up to 3 attempts by
// default). A Retry-After header replaces the computed delay. Context
// cancellation aborts retries immediately.
//
// Failures carry the services error taxonomy: 401/403 are configuration
// errors, other 4xx responses are validation errors, and everything that
// exhausted its retries is transient.
package llm
