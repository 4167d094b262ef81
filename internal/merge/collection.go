// Package merge reconciles realtime change notifications with locally held, optimistically
// mutated entity collections.
package merge

import (
	"slices"
	"sync"

	"github.com/gofrs/uuid/v5"
)

// Entity is anything keyed by a row id.
type Entity interface {
	Key() uuid.UUID
}

// Outcome tells what Apply did to the collection.
type Outcome int

const (
	Ignored Outcome = iota
	Inserted
	Updated
	Deleted
)

func (o Outcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	case Deleted:
		return "deleted"
	default:
		return "ignored"
	}
}

// Option configures a Collection.
type Option[T Entity] func(*Collection[T])

// WithOrder keeps the collection sorted by cmp after every change.
func WithOrder[T Entity](cmp func(a, b T) int) Option[T] {
	return func(c *Collection[T]) { c.cmp = cmp }
}

// WithResolver replaces the default last-write-wins resolver.
func WithResolver[T Entity](r Resolver[T]) Option[T] {
	return func(c *Collection[T]) { c.resolver = r }
}

// Collection is an ordered set of entities safe for concurrent use.
type Collection[T Entity] struct {
	mu       sync.RWMutex
	items    []T
	cmp      func(a, b T) int
	resolver Resolver[T]
}

// New creates an empty collection.
func New[T Entity](opts ...Option[T]) *Collection[T] {
	c := &Collection[T]{resolver: LastWriteWins[T]{}}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Load replaces the content, e.g. with an initial snapshot.
func (c *Collection[T]) Load(items []T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append([]T(nil), items...)
	c.sortLocked()
}

// Items returns a copy in collection order.
func (c *Collection[T]) Items() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]T(nil), c.items...)
}

// Len returns the number of entities.
func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Get finds an entity by id.
func (c *Collection[T]) Get(id uuid.UUID) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := c.indexLocked(id); i >= 0 {
		return c.items[i], true
	}
	var zero T
	return zero, false
}

// Put stores a local (optimistic) version of an entity, replacing any copy with the same id.
// It returns the previous value when one existed.
func (c *Collection[T]) Put(item T) (prev T, existed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexLocked(item.Key()); i >= 0 {
		prev, existed = c.items[i], true
		c.items[i] = item
	} else {
		c.items = append(c.items, item)
	}
	c.sortLocked()
	return prev, existed
}

// Remove deletes by id and returns the removed entity.
func (c *Collection[T]) Remove(id uuid.UUID) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.removeLocked(id)
}

// RemoveWhere deletes every entity matching pred and returns them.
func (c *Collection[T]) RemoveWhere(pred func(T) bool) []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	var removed []T
	kept := c.items[:0]
	for _, it := range c.items {
		if pred(it) {
			removed = append(removed, it)
			continue
		}
		kept = append(kept, it)
	}
	clear(c.items[len(kept):])
	c.items = kept
	return removed
}

// Replace swaps the whole content under one lock, used by batch reorders.
func (c *Collection[T]) Replace(fn func(items []T) []T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = fn(append([]T(nil), c.items...))
	c.sortLocked()
}

// Apply reconciles one remote event:
//   - INSERT of a known id is ignored (the optimistic copy raced the notification);
//   - UPDATE replaces the local copy with the resolver's winner, or inserts when unknown;
//   - DELETE removes the id, a missing id is a no-op.
func (c *Collection[T]) Apply(ev Event[T]) Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev.Type {
	case Insert:
		if c.indexLocked(ev.ID) >= 0 {
			return Ignored
		}
		c.items = append(c.items, ev.Record)
		c.sortLocked()
		return Inserted
	case Update:
		i := c.indexLocked(ev.ID)
		if i < 0 {
			c.items = append(c.items, ev.Record)
			c.sortLocked()
			return Inserted
		}
		c.items[i] = c.resolver.Resolve(c.items[i], ev.Record)
		c.sortLocked()
		return Updated
	case Delete:
		if _, ok := c.removeLocked(ev.ID); ok {
			return Deleted
		}
		return Ignored
	}
	return Ignored
}

func (c *Collection[T]) indexLocked(id uuid.UUID) int {
	for i := range c.items {
		if c.items[i].Key() == id {
			return i
		}
	}
	return -1
}

func (c *Collection[T]) removeLocked(id uuid.UUID) (T, bool) {
	i := c.indexLocked(id)
	if i < 0 {
		var zero T
		return zero, false
	}
	it := c.items[i]
	c.items = slices.Delete(c.items, i, i+1)
	return it, true
}

func (c *Collection[T]) sortLocked() {
	if c.cmp != nil {
		slices.SortStableFunc(c.items, c.cmp)
	}
}
