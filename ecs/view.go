package ecs

import (
	"iter"
	"reflect"
	"unsafe"
)

// View matches entities by a struct of component pointers.
//
// Every field of T must be a pointer to a registered component type.
// Embedded fields are always required. Named fields are required unless
// tagged `ecs:"optional"`, in which case they are nil for entities lacking
// the component.
type View[T any] struct {
	storage     *Storage
	types       []reflect.Type
	optional    []bool
	fieldOffset []uintptr
}

// NewView builds a view over storage. Panics if T is not a struct of
// pointer fields or carries an unknown ecs tag.
func NewView[T any](storage *Storage) *View[T] {
	structType := reflect.TypeFor[T]()
	if structType.Kind() != reflect.Struct {
		panic("View type parameter must be a struct")
	}

	n := structType.NumField()
	v := &View[T]{
		storage:     storage,
		types:       make([]reflect.Type, 0, n),
		optional:    make([]bool, 0, n),
		fieldOffset: make([]uintptr, 0, n),
	}

	for i := 0; i < n; i++ {
		field := structType.Field(i)
		if field.Type.Kind() != reflect.Ptr {
			panic("View struct fields must be pointer types")
		}

		isOptional := false
		if !field.Anonymous {
			switch tag := field.Tag.Get("ecs"); tag {
			case "":
			case "optional":
				isOptional = true
			default:
				panic("invalid ecs tag value: \"" + tag + "\" (only \"optional\" is supported)")
			}
		}

		v.types = append(v.types, field.Type.Elem())
		v.optional = append(v.optional, isOptional)
		v.fieldOffset = append(v.fieldOffset, field.Offset)
	}

	return v
}

// Types returns the component types named by the view, in field order.
func (v *View[T]) Types() []reflect.Type {
	return v.types
}

func (v *View[T]) setField(structPtr unsafe.Pointer, i int, component any) {
	fieldPtr := unsafe.Add(structPtr, v.fieldOffset[i])
	if component == nil {
		*(*unsafe.Pointer)(fieldPtr) = nil
		return
	}
	*(*unsafe.Pointer)(fieldPtr) = (*iface)(unsafe.Pointer(&component)).data
}

// Fill points the fields of *ptr at the entity's components. Returns false
// if the entity is dead or misses a required component.
func (v *View[T]) Fill(id EntityId, ptr *T) bool {
	archetype, ok := v.storage.archetypes[id.ArchetypeId()]
	if !ok || !archetype.Has(id.Index()) {
		return false
	}

	structPtr := unsafe.Pointer(ptr)
	for i, componentType := range v.types {
		component := archetype.GetComponent(id.Index(), componentType)
		if component == nil && !v.optional[i] {
			return false
		}
		v.setField(structPtr, i, component)
	}
	return true
}

// Get returns the filled view struct for id, or nil.
func (v *View[T]) Get(id EntityId) *T {
	var result T
	if !v.Fill(id, &result) {
		return nil
	}
	return &result
}

// GetRef is Get through a stable reference.
func (v *View[T]) GetRef(ref *EntityRef) *T {
	id, ok := v.storage.ResolveEntityRef(ref)
	if !ok {
		return nil
	}
	return v.Get(id)
}

func (v *View[T]) matchesArchetype(archetype *Archetype) bool {
	for i, requiredType := range v.types {
		if !v.optional[i] && !archetype.HasComponent(requiredType) {
			return false
		}
	}
	return true
}

func (v *View[T]) buildStorageIndices(archetype *Archetype) []int {
	indices := make([]int, len(v.types))
	for i, componentType := range v.types {
		indices[i] = archetype.storageIndex(componentType)
	}
	return indices
}

func (v *View[T]) populateResult(resultPtr unsafe.Pointer, archetype *Archetype, entityIndex int, storageIndices []int) bool {
	for i, storageIdx := range storageIndices {
		var component any
		if storageIdx >= 0 {
			component = archetype.storages[storageIdx].Get(entityIndex)
		}
		if component == nil && !v.optional[i] {
			return false
		}
		v.setField(resultPtr, i, component)
	}
	return true
}

func (v *View[T]) iterArchetype(archetype *Archetype) iter.Seq2[EntityId, T] {
	return func(yield func(EntityId, T) bool) {
		if len(archetype.storages) == 0 {
			return
		}
		indices := v.buildStorageIndices(archetype)

		var result T
		resultPtr := unsafe.Pointer(&result)
		for entityIndex := range archetype.storages[0].Iter() {
			if !v.populateResult(resultPtr, archetype, entityIndex, indices) {
				continue
			}
			if !yield(NewEntityId(archetype.id, uint32(entityIndex)), result) {
				return
			}
		}
	}
}

// Iter yields every matching entity with its filled view struct. Archetype
// order is unspecified.
func (v *View[T]) Iter() iter.Seq2[EntityId, T] {
	return func(yield func(EntityId, T) bool) {
		for _, archetype := range v.storage.archetypes {
			if !v.matchesArchetype(archetype) {
				continue
			}
			for id, item := range v.iterArchetype(archetype) {
				if !yield(id, item) {
					return
				}
			}
		}
	}
}

// Values is Iter without the entity ids.
func (v *View[T]) Values() iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, value := range v.Iter() {
			if !yield(value) {
				return
			}
		}
	}
}

// Spawn creates an entity from the non-nil fields of data. Panics when a
// required field is nil.
func (v *View[T]) Spawn(data T) EntityId {
	structPtr := unsafe.Pointer(&data)

	components := make([]any, 0, len(v.types))
	for i, componentType := range v.types {
		componentPtr := *(*unsafe.Pointer)(unsafe.Add(structPtr, v.fieldOffset[i]))
		if componentPtr == nil {
			if !v.optional[i] {
				panic("required component is nil in View.Spawn")
			}
			continue
		}
		components = append(components, reflect.NewAt(componentType, componentPtr).Interface())
	}

	return v.storage.Spawn(components...)
}
