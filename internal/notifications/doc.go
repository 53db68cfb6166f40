// Package notifications delivers job outcomes via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and degrades to a no-op when notifications are disabled. Each
// Event maps to a fixed title, tag set and priority so every caller emits
// the same message shape.
package notifications
