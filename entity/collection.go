// Package entity provides id-indexed entity storage with an authoritative
// display order.
//
// A [Collection] pairs a map of entries (for O(1) lookup) with an ordered id
// list (for rendering). Every id in the list has an entry and every entry has
// exactly one id in the list; all mutating methods preserve that invariant.
//
// Collection is not safe for concurrent use; callers hold their own lock.
package entity

import (
	"fmt"
	"slices"
)

// Collection stores entities of type T keyed by K.
type Collection[K comparable, T any] struct {
	key     func(T) K
	entries map[K]T
	ids     []K
}

// NewCollection creates an empty [Collection] using key to derive each
// entity's id.
func NewCollection[K comparable, T any](key func(T) K) *Collection[K, T] {
	return &Collection[K, T]{
		key:     key,
		entries: make(map[K]T),
		ids:     []K{},
	}
}

// Set replaces the whole collection with items, keeping input order.
//
// If items repeats an id, the later entity wins and the id keeps the
// position of its first occurrence.
func (c *Collection[K, T]) Set(items []T) {
	entries := make(map[K]T, len(items))
	ids := make([]K, 0, len(items))
	for _, item := range items {
		id := c.key(item)
		if _, exists := entries[id]; !exists {
			ids = append(ids, id)
		}
		entries[id] = item
	}
	c.entries = entries
	c.ids = ids
}

// Append inserts or overwrites item. Its id is appended to the order only
// if it was not already present.
func (c *Collection[K, T]) Append(item T) {
	id := c.key(item)
	if _, exists := c.entries[id]; !exists {
		c.ids = append(c.ids, id)
	}
	c.entries[id] = item
}

// Delete removes the entity with the given id. Missing ids are ignored.
func (c *Collection[K, T]) Delete(id K) {
	if _, exists := c.entries[id]; !exists {
		return
	}
	delete(c.entries, id)
	if idx := slices.Index(c.ids, id); idx != -1 {
		c.ids = slices.Delete(c.ids, idx, idx+1)
	}
}

// Get returns the entity stored under id.
func (c *Collection[K, T]) Get(id K) (T, bool) {
	item, ok := c.entries[id]
	return item, ok
}

// Has reports whether id is present.
func (c *Collection[K, T]) Has(id K) bool {
	_, ok := c.entries[id]
	return ok
}

// Len returns the number of entities.
func (c *Collection[K, T]) Len() int {
	return len(c.ids)
}

// IDs returns a copy of the ordered id list.
func (c *Collection[K, T]) IDs() []K {
	return slices.Clone(c.ids)
}

// Items returns the entities in id-list order.
func (c *Collection[K, T]) Items() []T {
	items := make([]T, 0, len(c.ids))
	for _, id := range c.ids {
		items = append(items, c.entries[id])
	}
	return items
}

// Sorted returns the entities in id-list order, then stably sorted by cmp.
// Entities comparing equal keep their id-list order.
func (c *Collection[K, T]) Sorted(cmp func(a, b T) int) []T {
	items := c.Items()
	slices.SortStableFunc(items, cmp)
	return items
}

// Clear empties the collection.
func (c *Collection[K, T]) Clear() {
	c.entries = make(map[K]T)
	c.ids = []K{}
}

// Validate checks that entries and the id list describe the same set of ids.
func (c *Collection[K, T]) Validate() error {
	if len(c.entries) != len(c.ids) {
		return fmt.Errorf("entity: %d entries but %d ids", len(c.entries), len(c.ids))
	}
	seen := make(map[K]struct{}, len(c.ids))
	for _, id := range c.ids {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("entity: id %v listed twice", id)
		}
		seen[id] = struct{}{}
		if _, ok := c.entries[id]; !ok {
			return fmt.Errorf("entity: id %v has no entry", id)
		}
	}
	return nil
}
