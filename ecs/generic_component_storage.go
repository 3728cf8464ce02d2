package ecs

import (
	"iter"
	"reflect"
	"sort"
)

// ComponentRegistry manages component type registration for an ECS instance.
// Each Storage has its own registry so independent worlds can coexist.
type ComponentRegistry struct {
	factories map[reflect.Type]func() iComponentStorage
}

// NewComponentRegistry creates a new component registry.
func NewComponentRegistry() *ComponentRegistry {
	return &ComponentRegistry{
		factories: make(map[reflect.Type]func() iComponentStorage),
	}
}

// RegisterComponent registers T with the registry. Every component type must
// be registered before an entity carrying it is spawned. Registering the
// same type twice is harmless.
func RegisterComponent[T any](r *ComponentRegistry) {
	r.factories[reflect.TypeFor[T]()] = func() iComponentStorage {
		return &genericComponentStorage[T]{}
	}
}

// IsRegistered reports whether t has a storage factory.
func (r *ComponentRegistry) IsRegistered(t reflect.Type) bool {
	_, ok := r.factories[t]
	return ok
}

// Types returns all registered component types sorted by name.
func (r *ComponentRegistry) Types() []reflect.Type {
	types := make([]reflect.Type, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Sort(byTypeName(types))
	return types
}

func (r *ComponentRegistry) getFactory(t reflect.Type) func() iComponentStorage {
	return r.factories[t]
}

const genericBlockSize = 64

// genericComponentStorage keeps values of T in fixed-size blocks so that
// pointers handed out by Get stay valid while the storage grows.
type genericComponentStorage[T any] struct {
	blocks    [][genericBlockSize]T
	filled    [][genericBlockSize]bool
	freeSlots []int
	nextIndex int
}

func blockPos(index int) (int, int) {
	return index / genericBlockSize, index % genericBlockSize
}

// Append adds a component (T or *T) and returns its slot index.
func (cs *genericComponentStorage[T]) Append(item any) int {
	var value T
	switch v := item.(type) {
	case *T:
		value = *v
	case T:
		value = v
	default:
		panic("component storage for " + reflect.TypeFor[T]().String() +
			" received " + reflect.TypeOf(item).String())
	}

	var index int
	if n := len(cs.freeSlots); n > 0 {
		index = cs.freeSlots[n-1]
		cs.freeSlots = cs.freeSlots[:n-1]
	} else {
		index = cs.nextIndex
		cs.nextIndex++
	}

	block, slot := blockPos(index)
	for block >= len(cs.blocks) {
		cs.blocks = append(cs.blocks, [genericBlockSize]T{})
		cs.filled = append(cs.filled, [genericBlockSize]bool{})
	}
	cs.blocks[block][slot] = value
	cs.filled[block][slot] = true
	return index
}

// Get returns a *T for the slot, or nil if it is empty.
func (cs *genericComponentStorage[T]) Get(index int) any {
	if !cs.Has(index) {
		return nil
	}
	block, slot := blockPos(index)
	return &cs.blocks[block][slot]
}

// Delete zeroes the slot and puts it on the free list.
func (cs *genericComponentStorage[T]) Delete(index int) {
	if !cs.Has(index) {
		return
	}
	block, slot := blockPos(index)
	var zero T
	cs.blocks[block][slot] = zero
	cs.filled[block][slot] = false
	cs.freeSlots = append(cs.freeSlots, index)
}

func (cs *genericComponentStorage[T]) Has(index int) bool {
	if index < 0 {
		return false
	}
	block, slot := blockPos(index)
	if block >= len(cs.filled) {
		return false
	}
	return cs.filled[block][slot]
}

func (cs *genericComponentStorage[T]) Len() int {
	return cs.nextIndex - len(cs.freeSlots)
}

// Compact moves live values to the lowest indices, preserving order.
func (cs *genericComponentStorage[T]) Compact() map[int]int {
	live := cs.Len()
	indexMap := make(map[int]int, live)
	if live == 0 {
		cs.blocks = make([][genericBlockSize]T, 1)
		cs.filled = make([][genericBlockSize]bool, 1)
		cs.freeSlots = nil
		cs.nextIndex = 0
		return indexMap
	}

	numBlocks := (live + genericBlockSize - 1) / genericBlockSize
	blocks := make([][genericBlockSize]T, numBlocks)
	filled := make([][genericBlockSize]bool, numBlocks)

	write := 0
	for read := range cs.Iter() {
		rb, rs := blockPos(read)
		wb, ws := blockPos(write)
		blocks[wb][ws] = cs.blocks[rb][rs]
		filled[wb][ws] = true
		indexMap[read] = write
		write++
	}

	cs.blocks = blocks
	cs.filled = filled
	cs.freeSlots = nil
	cs.nextIndex = write
	return indexMap
}

// Iter yields the indices of all filled slots in ascending order.
func (cs *genericComponentStorage[T]) Iter() iter.Seq[int] {
	return func(yield func(int) bool) {
		for i := 0; i < cs.nextIndex; i++ {
			if cs.Has(i) && !yield(i) {
				return
			}
		}
	}
}
