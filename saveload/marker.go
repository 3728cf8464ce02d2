package saveload

import (
	"github.com/plus3/ecscore/ecs"
)

// Marker gives an entity an identity that survives saving and loading.
// Only marked entities are saved.
type Marker struct {
	ID uint64 `yaml:"id" toml:"id" json:"id"`
}

// MarkerAllocator hands out marker ids. It lives in storage as a resource.
type MarkerAllocator struct {
	next uint64
}

// Allocate returns an unused marker id. Ids start at 1.
func (a *MarkerAllocator) Allocate() uint64 {
	a.next++
	return a.next
}

// Reserve makes sure later allocations never return id.
func (a *MarkerAllocator) Reserve(id uint64) {
	a.next = max(a.next, id)
}

// Mark adds a fresh Marker to entity and returns its id along with the
// entity's new EntityId. The MarkerAllocator resource is created on first
// use. Marking an already marked entity returns its existing marker.
func Mark(storage *ecs.Storage, entity ecs.EntityId) (uint64, ecs.EntityId) {
	if m := ecs.ReadComponent[Marker](storage, entity); m != nil {
		return m.ID, entity
	}
	ecs.RegisterComponent[Marker](storage.Registry())
	id := allocator(storage).Allocate()
	return id, storage.AddComponent(entity, Marker{ID: id})
}

func allocator(storage *ecs.Storage) *MarkerAllocator {
	a := ecs.ReadSingleton[MarkerAllocator](storage)
	if a == nil {
		storage.AddSingleton(MarkerAllocator{})
		a = ecs.ReadSingleton[MarkerAllocator](storage)
	}
	return a
}

// markedEntities maps marker ids to the live entities carrying them.
func markedEntities(storage *ecs.Storage) (map[uint64]ecs.EntityId, error) {
	out := make(map[uint64]ecs.EntityId)
	if !storage.Registry().IsRegistered(markerType) {
		return out, nil
	}
	view := ecs.NewView[struct{ *Marker }](storage)
	for id, e := range view.Iter() {
		if _, dup := out[e.Marker.ID]; dup {
			return nil, duplicateMarker(e.Marker.ID)
		}
		out[e.Marker.ID] = id
	}
	return out, nil
}
