package ecs

import (
	"reflect"
	"unsafe"
)

type singletonEntry struct {
	value   reflect.Value
	dataPtr unsafe.Pointer
}

// AddSingleton stores value as the singleton of its type. An existing
// singleton of the same type is overwritten in place, so pointers obtained
// earlier stay valid.
func (s *Storage) AddSingleton(value any) {
	t := componentTypeOf(value)
	v := reflect.ValueOf(value)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	if entry, ok := s.singletons[t]; ok {
		entry.value.Elem().Set(v)
		return
	}

	ptr := reflect.New(t)
	ptr.Elem().Set(v)
	s.singletons[t] = &singletonEntry{
		value:   ptr,
		dataPtr: ptr.UnsafePointer(),
	}
}

// RemoveSingleton drops the singleton of type t. Returns false if none existed.
func (s *Storage) RemoveSingleton(t reflect.Type) bool {
	if _, ok := s.singletons[t]; !ok {
		return false
	}
	delete(s.singletons, t)
	s.singletonGen++
	return true
}

// GetSingleton returns a pointer to the singleton of type t, or nil.
func (s *Storage) GetSingleton(t reflect.Type) any {
	entry := s.getSingletonEntry(t)
	if entry == nil {
		return nil
	}
	return entry.value.Interface()
}

func (s *Storage) getSingletonEntry(t reflect.Type) *singletonEntry {
	return s.singletons[t]
}

// ReadSingleton is a typed GetSingleton. Returns nil if absent.
func ReadSingleton[T any](s *Storage) *T {
	entry := s.getSingletonEntry(reflect.TypeFor[T]())
	if entry == nil {
		return nil
	}
	return (*T)(entry.dataPtr)
}

// Singleton provides cached access to a resource: a single value of T that
// is not attached to any entity (time, configuration, indices). A Singleton
// field on a system is initialized by the Scheduler.
type Singleton[T any] struct {
	storage       *Storage
	componentPtr  unsafe.Pointer
	componentType reflect.Type
	gen           uint64
}

// NewSingleton returns an accessor for T, creating the singleton from
// initializer (or the zero value) when storage does not hold one yet.
func NewSingleton[T any](storage *Storage, initializer ...T) *Singleton[T] {
	componentType := reflect.TypeFor[T]()

	if storage.getSingletonEntry(componentType) == nil {
		var value T
		if len(initializer) > 0 {
			value = initializer[0]
		}
		storage.AddSingleton(value)
	}

	s := &Singleton[T]{}
	s.Init(storage)
	return s
}

// Init binds the accessor to storage.
func (s *Singleton[T]) Init(storage *Storage) {
	s.storage = storage
	s.componentType = reflect.TypeFor[T]()
	s.updateCache()
}

// Get returns a pointer to the singleton, or nil if it does not exist.
func (s *Singleton[T]) Get() *T {
	if s.componentPtr == nil || (s.storage != nil && s.gen != s.storage.singletonGen) {
		s.updateCache()
	}
	if s.componentPtr == nil {
		return nil
	}
	return (*T)(s.componentPtr)
}

// Exists returns true if the singleton has been added to storage
func (s *Singleton[T]) Exists() bool {
	return s.Get() != nil
}

func (s *Singleton[T]) updateCache() {
	if s.storage == nil {
		return
	}
	s.gen = s.storage.singletonGen
	if entry := s.storage.getSingletonEntry(s.componentType); entry != nil {
		s.componentPtr = entry.dataPtr
	} else {
		s.componentPtr = nil
	}
}
