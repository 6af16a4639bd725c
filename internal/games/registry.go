package games

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds a title adapter bound to a runtime.
type Factory func(rt *Runtime) Adapter

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes a title constructible by name. Game packages call this
// from init; registering the same title twice panics.
func Register(title string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if factory == nil {
		panic("games: nil factory for " + title)
	}
	if _, dup := registry[title]; dup {
		panic("games: duplicate registration for " + title)
	}
	registry[title] = factory
}

// New builds the adapter for title.
func New(title string, rt *Runtime) (Adapter, error) {
	registryMu.RLock()
	factory, ok := registry[title]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("games: unsupported title %q (supported: %v)", title, Titles())
	}
	return factory(rt), nil
}

// Titles lists the registered titles in sorted order.
func Titles() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
