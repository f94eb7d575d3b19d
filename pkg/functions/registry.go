// Package functions holds the process-wide registry of callable
// function classes. Agents persist capability sets as class names; the
// registry rebuilds the callable instances at load time.
package functions

import (
	"context"
	"log/slog"
	"sort"
	"sync"
)

// Function is one callable capability bound to an agent.
type Function interface {
	// Schema describes the function to the planning LLM.
	Schema() Schema

	// Call invokes the function with named parameters and returns its
	// stdout-equivalent output.
	Call(ctx context.Context, params map[string]any) (string, error)
}

// Factory constructs a fresh function instance.
type Factory func() Function

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register installs a factory under the function class name. Later
// registrations replace earlier ones, which lets tests stub builtins.
func Register(name string, factory Factory) {
	registryMu.Lock()
	registry[name] = factory
	registryMu.Unlock()
}

// Get returns a new instance of the named function class.
func Get(name string) (Function, bool) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, false
	}
	return factory(), true
}

// ResolveNames filters names to those present in the registry. Unknown
// names are skipped with a warning; order is preserved.
func ResolveNames(names []string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		registryMu.RLock()
		_, ok := registry[name]
		registryMu.RUnlock()
		if !ok {
			slog.Warn("Unknown function class, skipping", "function", name)
			continue
		}
		out = append(out, name)
	}
	return out
}

// Instantiate builds instances for the given class names, skipping
// unknown names with a warning.
func Instantiate(names []string) []Function {
	out := make([]Function, 0, len(names))
	for _, name := range names {
		fn, ok := Get(name)
		if !ok {
			slog.Warn("Unknown function class, skipping", "function", name)
			continue
		}
		out = append(out, fn)
	}
	return out
}

// RegisteredNames returns all registered class names, sorted.
func RegisteredNames() []string {
	registryMu.RLock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	registryMu.RUnlock()
	sort.Strings(names)
	return names
}
