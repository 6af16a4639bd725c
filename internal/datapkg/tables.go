// Package datapkg manages the server-provided data package: the
// versioned mapping between human-readable item/location names and
// their global ids, plus the local cache that keeps it across runs.
package datapkg

import (
	"sync"

	"snesclient/internal/protocol"
)

// Tables is the merged name/id lookup built from a data package. It is
// rebuilt in place whenever a package arrives; applying the same
// package twice yields identical tables.
type Tables struct {
	mu sync.Mutex

	itemsByID       map[int64]string
	itemsByName     map[string]int64
	locationsByID   map[int64]string
	locationsByName map[string]int64
}

// NewTables returns empty lookup tables.
func NewTables() *Tables {
	return &Tables{
		itemsByID:       make(map[int64]string),
		itemsByName:     make(map[string]int64),
		locationsByID:   make(map[int64]string),
		locationsByName: make(map[string]int64),
	}
}

// Apply merges every game's name/id maps into the lookup tables.
func (t *Tables) Apply(contents *protocol.DataPackageContents) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, game := range contents.Games {
		for name, id := range game.ItemNameToID {
			t.itemsByName[name] = id
			t.itemsByID[id] = name
		}
		for name, id := range game.LocationNameToID {
			t.locationsByName[name] = id
			t.locationsByID[id] = name
		}
	}
}

// ItemName resolves an item id to its name, or "" when unknown.
func (t *Tables) ItemName(id int64) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.itemsByID[id]
}

// LocationName resolves a location id to its name, or "" when unknown.
func (t *Tables) LocationName(id int64) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.locationsByID[id]
}

// ItemID resolves an item name to its id.
func (t *Tables) ItemID(name string) (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.itemsByName[name]
	return id, ok
}

// LocationID resolves a location name to its id.
func (t *Tables) LocationID(name string) (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.locationsByName[name]
	return id, ok
}
