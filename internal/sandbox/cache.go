package sandbox

import (
	"fmt"

	"github.com/dop251/goja"

	"modelforge/internal/services"
)

type moduleState int

const (
	moduleUnresolved moduleState = iota
	moduleResolving
	moduleResolved
)

type moduleEntry struct {
	state   moduleState
	exports goja.Value
}

// ModuleCache is the per-context arena of loaded modules, keyed by absolute
// URL. It is only touched from the goroutine that owns the Context.
type ModuleCache struct {
	entries map[string]*moduleEntry
}

func NewModuleCache() *ModuleCache {
	return &ModuleCache{entries: make(map[string]*moduleEntry)}
}

func (c *ModuleCache) state(key string) moduleState {
	if e, ok := c.entries[key]; ok {
		return e.state
	}
	return moduleUnresolved
}

// Lookup returns the memoized exports for key.
func (c *ModuleCache) Lookup(key string) (goja.Value, bool) {
	e, ok := c.entries[key]
	if !ok || e.state != moduleResolved {
		return nil, false
	}
	return e.exports, true
}

// begin marks key as resolving. A key that is already resolving means the
// module requires itself somewhere up the stack.
func (c *ModuleCache) begin(key string) error {
	switch c.state(key) {
	case moduleResolving:
		return services.Wrap(services.ErrCircularModule, "sandbox", "require",
			fmt.Sprintf("%s is already being loaded", key), nil)
	case moduleResolved:
		return fmt.Errorf("module %s already resolved", key)
	}
	c.entries[key] = &moduleEntry{state: moduleResolving}
	return nil
}

func (c *ModuleCache) finish(key string, exports goja.Value) {
	c.entries[key] = &moduleEntry{state: moduleResolved, exports: exports}
}

// abandon drops a resolving mark after a failed load.
func (c *ModuleCache) abandon(key string) {
	if e, ok := c.entries[key]; ok && e.state == moduleResolving {
		delete(c.entries, key)
	}
}

// Len returns the number of resolved modules.
func (c *ModuleCache) Len() int {
	n := 0
	for _, e := range c.entries {
		if e.state == moduleResolved {
			n++
		}
	}
	return n
}
