package ecs

import (
	"iter"
	"reflect"
)

// Query is a View whose matches are snapshotted once per frame. The
// Scheduler initializes Query fields of registered systems and executes
// them before the frame's systems run.
type Query[T any] struct {
	view             *View[T]
	storage          *Storage
	cachedArchetypes []*Archetype
	archetypeGen     uint64

	cachedEntities   []EntityId
	cachedComponents []T
	cacheValid       bool
}

// NewQuery creates a new Query with archetype-level caching.
func NewQuery[T any](storage *Storage) *Query[T] {
	q := &Query[T]{}
	q.Init(storage)
	return q
}

// Init binds the query to storage and drops all caches.
func (q *Query[T]) Init(storage *Storage) {
	q.view = NewView[T](storage)
	q.storage = storage
	q.cachedArchetypes = nil
	q.cacheValid = false
}

// Execute rebuilds the per-frame snapshot.
func (q *Query[T]) Execute() {
	if gen := q.storage.archetypeGen; gen != q.archetypeGen {
		q.cachedArchetypes = nil
		q.archetypeGen = gen
	}
	if q.cachedArchetypes == nil {
		q.cachedArchetypes = make([]*Archetype, 0)
		for _, archetype := range q.storage.archetypes {
			if q.view.matchesArchetype(archetype) {
				q.cachedArchetypes = append(q.cachedArchetypes, archetype)
			}
		}
	}

	q.cachedEntities = q.cachedEntities[:0]
	q.cachedComponents = q.cachedComponents[:0]
	for _, archetype := range q.cachedArchetypes {
		for id, item := range q.view.iterArchetype(archetype) {
			q.cachedEntities = append(q.cachedEntities, id)
			q.cachedComponents = append(q.cachedComponents, item)
		}
	}

	q.cacheValid = true
}

// Len returns the number of entities in the current snapshot.
func (q *Query[T]) Len() int {
	return len(q.cachedEntities)
}

// Iter yields the snapshot. Panics if Execute has not been called.
func (q *Query[T]) Iter() iter.Seq2[EntityId, T] {
	if !q.cacheValid {
		panic("Query.Iter() called before Query.Execute()")
	}
	return func(yield func(EntityId, T) bool) {
		for i := range q.cachedEntities {
			if !yield(q.cachedEntities[i], q.cachedComponents[i]) {
				return
			}
		}
	}
}

// Values yields the snapshot without ids. Panics if Execute has not been called.
func (q *Query[T]) Values() iter.Seq[T] {
	if !q.cacheValid {
		panic("Query.Values() called before Query.Execute()")
	}
	return func(yield func(T) bool) {
		for i := range q.cachedComponents {
			if !yield(q.cachedComponents[i]) {
				return
			}
		}
	}
}

// Get fills the view for a single entity, ignoring the snapshot.
func (q *Query[T]) Get(id EntityId) *T {
	return q.view.Get(id)
}

func (q *Query[T]) accessTypes() []reflect.Type {
	if q.view == nil {
		return NewView[T](nil).Types()
	}
	return q.view.Types()
}
