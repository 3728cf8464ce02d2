package ecs

import (
	"iter"
	"reflect"
	"slices"
	"weak"

	"github.com/kamstrup/intmap"
)

type byTypeName []reflect.Type

func (a byTypeName) Len() int           { return len(a) }
func (a byTypeName) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a byTypeName) Less(i, j int) bool { return a[i].String() < a[j].String() }

// Archetype stores every entity that has exactly the same set of component
// types. Each component type gets its own block storage and all storages
// share slot indices.
type Archetype struct {
	id       uint32
	types    []reflect.Type
	storages []iComponentStorage
	refs     *intmap.Map[EntityId, weak.Pointer[EntityRef]]
	count    int
}

// NewArchetype creates an archetype for the given sorted component types.
// Panics if a type was never registered with the registry.
func NewArchetype(id uint32, types []reflect.Type, registry *ComponentRegistry) *Archetype {
	a := &Archetype{
		id:       id,
		types:    types,
		storages: make([]iComponentStorage, len(types)),
		refs:     intmap.New[EntityId, weak.Pointer[EntityRef]](256),
	}

	for idx, typ := range types {
		factory := registry.getFactory(typ)
		if factory == nil {
			panic("component type " + typ.String() + " not registered")
		}
		a.storages[idx] = factory()
	}

	return a
}

// Spawn stores one value per component type and returns the shared slot index.
func (a *Archetype) Spawn(components []any) uint32 {
	slot := -1
	for _, comp := range components {
		idx := a.storageIndex(componentTypeOf(comp))
		if idx < 0 {
			continue
		}
		pos := a.storages[idx].Append(comp)
		if slot >= 0 && pos != slot {
			panic("archetype storages out of step")
		}
		slot = pos
	}
	a.count++
	return uint32(slot)
}

func (a *Archetype) storageIndex(compType reflect.Type) int {
	for i, typ := range a.types {
		if typ == compType {
			return i
		}
	}
	return -1
}

// GetComponent returns a pointer to the component of compType stored at
// entityIndex, or nil when the slot is empty or the type is not part of
// this archetype.
func (a *Archetype) GetComponent(entityIndex uint32, compType reflect.Type) any {
	idx := a.storageIndex(compType)
	if idx == -1 {
		return nil
	}
	return a.storages[idx].Get(int(entityIndex))
}

// Has reports whether entityIndex holds a live entity.
func (a *Archetype) Has(entityIndex uint32) bool {
	if len(a.storages) == 0 {
		return false
	}
	return a.storages[0].Has(int(entityIndex))
}

// Delete frees the slot. Other slot indices are unaffected, and a live
// EntityRef pointing at the slot is invalidated.
func (a *Archetype) Delete(entityIndex uint32) {
	if !a.Has(entityIndex) {
		return
	}
	a.dropRef(NewEntityId(a.id, entityIndex))
	for _, storage := range a.storages {
		storage.Delete(int(entityIndex))
	}
	a.count--
}

// release frees the slot without touching refs; used when the entity moves
// to another archetype.
func (a *Archetype) release(entityIndex uint32) {
	if !a.Has(entityIndex) {
		return
	}
	for _, storage := range a.storages {
		storage.Delete(int(entityIndex))
	}
	a.count--
}

func (a *Archetype) dropRef(id EntityId) {
	weakPtr, ok := a.refs.Get(id)
	if !ok {
		return
	}
	if ref := weakPtr.Value(); ref != nil {
		ref.Id = 0
		ref.Archetype = nil
	}
	a.refs.Del(id)
}

// HasComponent checks if this archetype has the given component type
func (a *Archetype) HasComponent(compType reflect.Type) bool {
	return slices.Contains(a.types, compType)
}

// ID returns the archetype's unique identifier
func (a *Archetype) ID() uint32 {
	return a.id
}

// Types returns the sorted component types for this archetype
func (a *Archetype) Types() []reflect.Type {
	return a.types
}

// Len returns the number of live entities in the archetype.
func (a *Archetype) Len() int {
	return a.count
}

// Compact packs live slots to the front of every storage. EntityRefs are
// rewritten to the new indices; dead weak pointers are dropped.
func (a *Archetype) Compact() {
	if len(a.storages) == 0 {
		return
	}

	indexMap := a.storages[0].Compact()
	for i := 1; i < len(a.storages); i++ {
		a.storages[i].Compact()
	}

	moved := make(map[EntityId]weak.Pointer[EntityRef], a.refs.Len())
	for oldIdx, newIdx := range indexMap {
		weakPtr, ok := a.refs.Get(NewEntityId(a.id, uint32(oldIdx)))
		if !ok {
			continue
		}
		if ref := weakPtr.Value(); ref != nil {
			newId := NewEntityId(a.id, uint32(newIdx))
			ref.Id = newId
			moved[newId] = weakPtr
		}
	}

	a.refs.Clear()
	for id, weakPtr := range moved {
		a.refs.Put(id, weakPtr)
	}
}

// Iter returns an iterator over all live EntityIds in this archetype
func (a *Archetype) Iter() iter.Seq[EntityId] {
	return func(yield func(EntityId) bool) {
		if len(a.storages) == 0 {
			return
		}
		for index := range a.storages[0].Iter() {
			if !yield(NewEntityId(a.id, uint32(index))) {
				return
			}
		}
	}
}
