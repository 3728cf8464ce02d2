package ecs

import "fmt"

// EntityId packs the archetype ID into the upper 32 bits and the slot index
// into the lower 32 bits. An id changes when its entity moves archetype.
type EntityId uint64

// NewEntityId creates an EntityId from an archetype ID and slot index
func NewEntityId(archetypeId uint32, index uint32) EntityId {
	return EntityId(uint64(archetypeId)<<32 | uint64(index))
}

// ArchetypeId extracts the archetype ID from the entity ID
func (e EntityId) ArchetypeId() uint32 {
	return uint32(e >> 32)
}

// Index extracts the slot index from the entity ID
func (e EntityId) Index() uint32 {
	return uint32(e & 0xFFFFFFFF)
}

func (e EntityId) String() string {
	return fmt.Sprintf("%08x:%d", e.ArchetypeId(), e.Index())
}

// EntityRef is a stable handle to an entity. Storage rewrites Id when the
// entity moves between archetypes or is compacted, and zeroes it when the
// entity is deleted.
type EntityRef struct {
	Id        EntityId
	Archetype *Archetype
}

// Valid reports whether the referenced entity is still alive.
func (r *EntityRef) Valid() bool {
	return r != nil && r.Id != 0
}
