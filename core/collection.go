package core

import (
	"context"
	"net/url"

	"pkt.systems/fleetwatch/schema"
)

// Collection is an externally owned set of entities a manager keeps in sync
// with its tabs. Mutations happen in place so that any other view over the
// same backing store stays consistent.
type Collection[E any] interface {
	Len() int
	At(i int) E
	// FindIndex returns the index of the entity with the given id, or -1.
	FindIndex(id schema.EntityID) int
	// ReplaceAt overwrites the element at i, preserving position.
	ReplaceAt(i int, entity E)
	// RemoveAt splices the element at i out of the backing store.
	RemoveAt(i int)
}

// Table extends Collection with server-backed paging.
type Table[E any] interface {
	Collection[E]
	// Reload refetches the current page from the server.
	Reload(ctx context.Context) error
	// ApplyQuery replaces table filters from URL query parameters.
	ApplyQuery(q url.Values)
}

// SliceCollection adapts a caller-owned slice. The slice pointer is shared:
// replacements and removals mutate the caller's backing array in place.
type SliceCollection[E any] struct {
	items *[]E
	id    func(E) schema.EntityID
}

// NewSliceCollection wraps items. The id accessor must match the manager's.
func NewSliceCollection[E any](items *[]E, id func(E) schema.EntityID) *SliceCollection[E] {
	return &SliceCollection[E]{items: items, id: id}
}

// Len returns the number of entities.
func (c *SliceCollection[E]) Len() int {
	return len(*c.items)
}

// At returns the entity at i.
func (c *SliceCollection[E]) At(i int) E {
	return (*c.items)[i]
}

// FindIndex returns the index of the entity with the given id, or -1.
func (c *SliceCollection[E]) FindIndex(id schema.EntityID) int {
	for i, item := range *c.items {
		if c.id(item) == id {
			return i
		}
	}
	return -1
}

// ReplaceAt overwrites the element at i in place.
func (c *SliceCollection[E]) ReplaceAt(i int, entity E) {
	(*c.items)[i] = entity
}

// RemoveAt splices the element at i out of the slice.
func (c *SliceCollection[E]) RemoveAt(i int) {
	items := *c.items
	*c.items = append(items[:i], items[i+1:]...)
}
