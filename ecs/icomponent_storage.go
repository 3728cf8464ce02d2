package ecs

import "iter"

// iComponentStorage is a type-erased storage for one component type.
// Slots are addressed by index; Compact returns the old→new index mapping.
type iComponentStorage interface {
	Append(item any) int
	Delete(index int)
	Get(index int) any
	Has(index int) bool
	Len() int
	Compact() map[int]int
	Iter() iter.Seq[int]
}
