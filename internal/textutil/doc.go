// Package textutil provides small string helpers shared by the queue and the
// CLI: path segment sanitization and single-line previews of prompts.
package textutil
