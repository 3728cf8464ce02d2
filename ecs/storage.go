package ecs

import (
	"errors"
	"iter"
	"reflect"
	"sort"
	"sync"
	"unsafe"
	"weak"

	"github.com/rs/zerolog"
)

// ErrEventControlDisabled is returned by SetEventEmission when the storage
// was created without WithEventControl(true).
var ErrEventControlDisabled = errors.New("ecs: storage event control is disabled")

// Storage owns all archetypes, singletons and component event channels of
// one world.
//
// Structural changes (Spawn, Delete, AddComponent, RemoveComponent, Compact)
// must not run concurrently with anything else. Systems defer them through
// Commands. Reads, CreateEntityRef and MarkModified are safe to call from
// concurrently running systems.
type Storage struct {
	archetypes map[uint32]*Archetype
	registry   *ComponentRegistry

	// archetypeGen changes whenever an archetype is created or dropped.
	archetypeGen uint64

	singletons   map[reflect.Type]*singletonEntry
	singletonGen uint64

	refMu  sync.Mutex
	events *eventHub
	logger zerolog.Logger
}

// StorageOption configures a Storage.
type StorageOption func(*Storage)

// WithEventControl allows event emission to be switched off and on at
// runtime with SetEventEmission.
func WithEventControl(enabled bool) StorageOption {
	return func(s *Storage) {
		s.events.controllable = enabled
	}
}

// WithStorageLogger sets the logger used for structural diagnostics.
func WithStorageLogger(logger zerolog.Logger) StorageOption {
	return func(s *Storage) {
		s.logger = logger
	}
}

// NewStorage creates a new ECS storage system with the given component registry
func NewStorage(registry *ComponentRegistry, opts ...StorageOption) *Storage {
	s := &Storage{
		archetypes: make(map[uint32]*Archetype),
		registry:   registry,
		singletons: make(map[reflect.Type]*singletonEntry),
		events:     newEventHub(),
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry returns the component registry backing this storage.
func (s *Storage) Registry() *ComponentRegistry {
	return s.registry
}

// CreateEntityRef returns the stable reference for id, creating it on first
// use. Returns nil when id does not name a live entity.
func (s *Storage) CreateEntityRef(id EntityId) *EntityRef {
	archetype := s.archetypes[id.ArchetypeId()]
	if archetype == nil || !archetype.Has(id.Index()) {
		return nil
	}

	s.refMu.Lock()
	defer s.refMu.Unlock()

	if weakPtr, ok := archetype.refs.Get(id); ok {
		if ref := weakPtr.Value(); ref != nil {
			return ref
		}
		archetype.refs.Del(id)
	}

	ref := &EntityRef{
		Id:        id,
		Archetype: archetype,
	}
	archetype.refs.Put(id, weak.Make(ref))
	return ref
}

// ResolveEntityRef returns the current id of the referenced entity.
func (s *Storage) ResolveEntityRef(ref *EntityRef) (EntityId, bool) {
	if !ref.Valid() {
		return 0, false
	}
	return ref.Id, true
}

// InvalidateEntityRef detaches ref from its entity. The entity itself stays
// alive. Returns false if ref was already invalid.
func (s *Storage) InvalidateEntityRef(ref *EntityRef) bool {
	if !ref.Valid() {
		return false
	}

	s.refMu.Lock()
	defer s.refMu.Unlock()

	if archetype := s.archetypes[ref.Id.ArchetypeId()]; archetype != nil {
		archetype.refs.Del(ref.Id)
	}
	ref.Id = 0
	ref.Archetype = nil
	return true
}

// GetArchetype returns the archetype holding exactly the types of the given
// component values, or nil.
func (s *Storage) GetArchetype(components ...any) *Archetype {
	types := extractComponentTypes(components)
	return s.archetypes[hashTypesToUint32(types)]
}

// GetArchetypeByTypes is GetArchetype keyed by reflect.Type.
func (s *Storage) GetArchetypeByTypes(types []reflect.Type) *Archetype {
	sorted := append([]reflect.Type(nil), types...)
	sort.Sort(byTypeName(sorted))
	return s.archetypes[hashTypesToUint32(sorted)]
}

// Archetypes iterates over all archetypes, including empty ones.
func (s *Storage) Archetypes() iter.Seq[*Archetype] {
	return func(yield func(*Archetype) bool) {
		for _, a := range s.archetypes {
			if !yield(a) {
				return
			}
		}
	}
}

func (s *Storage) archetypeFor(types []reflect.Type) *Archetype {
	id := hashTypesToUint32(types)
	archetype, ok := s.archetypes[id]
	if !ok {
		archetype = NewArchetype(id, types, s.registry)
		s.archetypes[id] = archetype
		s.archetypeGen++
	}
	return archetype
}

// Spawn creates a new entity with the provided components. Components may be
// passed by value or by pointer; the value is copied either way.
func (s *Storage) Spawn(components ...any) EntityId {
	if len(components) == 0 {
		panic("cannot spawn entity without components")
	}

	types := extractComponentTypes(components)
	archetype := s.archetypeFor(types)
	id := NewEntityId(archetype.id, archetype.Spawn(components))

	for _, t := range types {
		s.events.emit(ComponentInserted, id, t)
	}
	return id
}

// Delete removes all data related to the entity ID. Deleting a dead id is a no-op.
func (s *Storage) Delete(id EntityId) {
	archetype, ok := s.archetypes[id.ArchetypeId()]
	if !ok || !archetype.Has(id.Index()) {
		return
	}
	for _, t := range archetype.types {
		s.events.emit(ComponentRemoved, id, t)
	}
	archetype.Delete(id.Index())
}

// Alive reports whether id names a live entity.
func (s *Storage) Alive(id EntityId) bool {
	archetype, ok := s.archetypes[id.ArchetypeId()]
	return ok && archetype.Has(id.Index())
}

// AddComponent attaches component to the entity and returns its new id. If
// the entity already has a component of that type, the value is replaced in
// place and the id is unchanged. Returns 0 for a dead entity.
func (s *Storage) AddComponent(id EntityId, component any) EntityId {
	oldArchetype := s.archetypes[id.ArchetypeId()]
	if oldArchetype == nil || !oldArchetype.Has(id.Index()) {
		return 0
	}

	compType := componentTypeOf(component)
	if idx := oldArchetype.storageIndex(compType); idx >= 0 {
		dst := reflect.ValueOf(oldArchetype.storages[idx].Get(int(id.Index()))).Elem()
		src := reflect.ValueOf(component)
		if src.Kind() == reflect.Ptr {
			src = src.Elem()
		}
		dst.Set(src)
		s.events.emit(ComponentModified, id, compType)
		return id
	}

	newTypes := make([]reflect.Type, 0, len(oldArchetype.types)+1)
	newTypes = append(newTypes, oldArchetype.types...)
	newTypes = append(newTypes, compType)
	sort.Sort(byTypeName(newTypes))

	components := make([]any, 0, len(newTypes))
	for _, typ := range newTypes {
		if typ == compType {
			components = append(components, component)
		} else {
			components = append(components, oldArchetype.GetComponent(id.Index(), typ))
		}
	}

	newId := s.move(id, oldArchetype, s.archetypeFor(newTypes), components)
	s.events.emit(ComponentInserted, newId, compType)
	return newId
}

// RemoveComponent detaches the component of compType and returns the new
// id. Removing the last component deletes the entity and returns 0.
// Removing a type the entity does not have returns id unchanged.
func (s *Storage) RemoveComponent(id EntityId, compType reflect.Type) EntityId {
	oldArchetype := s.archetypes[id.ArchetypeId()]
	if oldArchetype == nil || !oldArchetype.Has(id.Index()) {
		return 0
	}
	if !oldArchetype.HasComponent(compType) {
		return id
	}

	newTypes := make([]reflect.Type, 0, len(oldArchetype.types)-1)
	for _, typ := range oldArchetype.types {
		if typ != compType {
			newTypes = append(newTypes, typ)
		}
	}

	if len(newTypes) == 0 {
		s.events.emit(ComponentRemoved, id, compType)
		oldArchetype.Delete(id.Index())
		return 0
	}

	components := make([]any, 0, len(newTypes))
	for _, typ := range newTypes {
		components = append(components, oldArchetype.GetComponent(id.Index(), typ))
	}

	s.events.emit(ComponentRemoved, id, compType)
	return s.move(id, oldArchetype, s.archetypeFor(newTypes), components)
}

// move copies the entity into dst and carries its EntityRef along.
func (s *Storage) move(id EntityId, src, dst *Archetype, components []any) EntityId {
	newId := NewEntityId(dst.id, dst.Spawn(components))

	if weakPtr, ok := src.refs.Get(id); ok {
		if ref := weakPtr.Value(); ref != nil {
			ref.Id = newId
			ref.Archetype = dst
			dst.refs.Put(newId, weakPtr)
		}
		src.refs.Del(id)
	}

	src.release(id.Index())
	return newId
}

// GetComponent returns a pointer to the component of compType, or nil.
func (s *Storage) GetComponent(id EntityId, compType reflect.Type) any {
	archetype, ok := s.archetypes[id.ArchetypeId()]
	if !ok {
		return nil
	}
	return archetype.GetComponent(id.Index(), compType)
}

// HasComponent checks if an entity has a specific component type
func (s *Storage) HasComponent(id EntityId, compType reflect.Type) bool {
	archetype, ok := s.archetypes[id.ArchetypeId()]
	if !ok || !archetype.Has(id.Index()) {
		return false
	}
	return archetype.HasComponent(compType)
}

// ComponentsOf returns the component types of a live entity and pointers to
// their values, in archetype order.
func (s *Storage) ComponentsOf(id EntityId) ([]reflect.Type, []any) {
	archetype, ok := s.archetypes[id.ArchetypeId()]
	if !ok || !archetype.Has(id.Index()) {
		return nil, nil
	}
	values := make([]any, len(archetype.types))
	for i, storage := range archetype.storages {
		values[i] = storage.Get(int(id.Index()))
	}
	return archetype.types, values
}

// Entities iterates over every live entity. Structural changes during
// iteration are not allowed.
func (s *Storage) Entities() iter.Seq[EntityId] {
	return func(yield func(EntityId) bool) {
		for _, archetype := range s.archetypes {
			for id := range archetype.Iter() {
				if !yield(id) {
					return
				}
			}
		}
	}
}

// EntityCount returns the number of live entities.
func (s *Storage) EntityCount() int {
	total := 0
	for _, archetype := range s.archetypes {
		total += archetype.Len()
	}
	return total
}

// Compact compacts every archetype and drops archetypes with no entities.
// Stored EntityIds become stale; EntityRefs are kept up to date.
func (s *Storage) Compact() {
	dropped := 0
	for id, archetype := range s.archetypes {
		if archetype.Len() == 0 {
			delete(s.archetypes, id)
			dropped++
			continue
		}
		archetype.Compact()
	}
	if dropped > 0 {
		s.archetypeGen++
	}
	s.logger.Debug().
		Int("archetypes", len(s.archetypes)).
		Int("dropped", dropped).
		Msg("storage compacted")
}

// MarkModified emits a Modified event for the component if its type is
// tracked. Systems call it after mutating a component through a pointer.
func (s *Storage) MarkModified(id EntityId, compType reflect.Type) {
	s.events.emit(ComponentModified, id, compType)
}

// SetEventEmission switches component event emission on or off.
func (s *Storage) SetEventEmission(enabled bool) error {
	if !s.events.controllable {
		return ErrEventControlDisabled
	}
	s.events.enabled.Store(enabled)
	return nil
}

// EventEmission reports whether component events are currently emitted.
func (s *Storage) EventEmission() bool {
	return s.events.enabled.Load()
}

func componentTypeOf(component any) reflect.Type {
	compType := reflect.TypeOf(component)
	if compType.Kind() == reflect.Ptr {
		compType = compType.Elem()
	}
	return compType
}

// extractComponentTypes extracts and sorts component types from a slice of components
func extractComponentTypes(components []any) []reflect.Type {
	types := make([]reflect.Type, 0, len(components))
	for _, comp := range components {
		compType := componentTypeOf(comp)

		switch compType.Kind() {
		case reflect.Ptr, reflect.Map, reflect.Chan, reflect.Func:
			panic("components cannot be pointers, maps, channels, or functions")
		}

		types = append(types, compType)
	}
	sort.Sort(byTypeName(types))
	for i := 1; i < len(types); i++ {
		if types[i] == types[i-1] {
			panic("duplicate component type " + types[i].String())
		}
	}
	return types
}

// hashTypesToUint32 is FNV-1a over the runtime type pointers of a sorted
// type list.
func hashTypesToUint32(types []reflect.Type) uint32 {
	var h uint32 = 2166136261
	const prime uint32 = 16777619

	for _, t := range types {
		ptr := uintptr((*iface)(unsafe.Pointer(&t)).data)
		val := uint32(ptr)
		if unsafe.Sizeof(uintptr(0)) == 8 {
			val ^= uint32(uint64(ptr) >> 32)
		}
		h ^= val
		h *= prime
	}

	return h
}

type ComponentReader interface {
	GetComponent(EntityId, reflect.Type) any
}

// ReadComponent is a typed GetComponent. Returns nil if absent.
func ReadComponent[T any](reader ComponentReader, entityId EntityId) *T {
	comp, _ := reader.GetComponent(entityId, reflect.TypeFor[T]()).(*T)
	return comp
}
