package ecs

import (
	"reflect"
	"sync"
	"sync/atomic"
)

// EventKind classifies a ComponentEvent.
type EventKind uint8

const (
	ComponentInserted EventKind = iota + 1
	ComponentModified
	ComponentRemoved
)

func (k EventKind) String() string {
	switch k {
	case ComponentInserted:
		return "inserted"
	case ComponentModified:
		return "modified"
	case ComponentRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// ComponentEvent records a change to one component of one entity. Entity is
// the id at the time of the event; ids change when entities move archetype.
type ComponentEvent struct {
	Kind   EventKind
	Entity EntityId
	Type   reflect.Type
}

// DefaultEventCapacity is the ring size used by TrackComponent.
const DefaultEventCapacity = 1024

// ReaderId is a read cursor into an EventChannel.
type ReaderId struct {
	next uint64
	lost uint64
}

// EventChannel is a bounded broadcast buffer. Every registered reader sees
// every event written after its registration, unless it falls more than
// the channel capacity behind, in which case the oldest events are lost
// for that reader.
type EventChannel[T any] struct {
	mu      sync.Mutex
	ring    []T
	written uint64
	readers map[*ReaderId]struct{}
}

// NewEventChannel creates a channel that buffers up to capacity events.
func NewEventChannel[T any](capacity int) *EventChannel[T] {
	if capacity <= 0 {
		capacity = DefaultEventCapacity
	}
	return &EventChannel[T]{
		ring:    make([]T, capacity),
		readers: make(map[*ReaderId]struct{}),
	}
}

// RegisterReader creates a reader positioned after the last written event.
func (c *EventChannel[T]) RegisterReader() *ReaderId {
	c.mu.Lock()
	defer c.mu.Unlock()
	r := &ReaderId{next: c.written}
	c.readers[r] = struct{}{}
	return r
}

// RemoveReader forgets a reader.
func (c *EventChannel[T]) RemoveReader(r *ReaderId) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.readers, r)
}

// Single writes one event.
func (c *EventChannel[T]) Single(event T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ring[c.written%uint64(len(c.ring))] = event
	c.written++
}

// Iter writes events in order.
func (c *EventChannel[T]) Iter(events []T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, event := range events {
		c.ring[c.written%uint64(len(c.ring))] = event
		c.written++
	}
}

// Read returns the events written since r last read, oldest first.
func (c *EventChannel[T]) Read(r *ReaderId) []T {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.readers[r]; !ok {
		return nil
	}

	capacity := uint64(len(c.ring))
	if c.written-r.next > capacity {
		oldest := c.written - capacity
		r.lost += oldest - r.next
		r.next = oldest
	}

	out := make([]T, 0, c.written-r.next)
	for i := r.next; i < c.written; i++ {
		out = append(out, c.ring[i%capacity])
	}
	r.next = c.written
	return out
}

// Lost returns how many events r missed because it fell behind.
func (c *EventChannel[T]) Lost(r *ReaderId) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return r.lost
}

// Written returns the total number of events ever written.
func (c *EventChannel[T]) Written() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.written
}

type eventHub struct {
	mu           sync.RWMutex
	channels     map[reflect.Type]*EventChannel[ComponentEvent]
	enabled      atomic.Bool
	controllable bool
}

func newEventHub() *eventHub {
	h := &eventHub{
		channels: make(map[reflect.Type]*EventChannel[ComponentEvent]),
	}
	h.enabled.Store(true)
	return h
}

func (h *eventHub) emit(kind EventKind, id EntityId, t reflect.Type) {
	if !h.enabled.Load() {
		return
	}
	h.mu.RLock()
	ch := h.channels[t]
	h.mu.RUnlock()
	if ch == nil {
		return
	}
	ch.Single(ComponentEvent{Kind: kind, Entity: id, Type: t})
}

func (h *eventHub) channel(t reflect.Type, capacity int) *EventChannel[ComponentEvent] {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch, ok := h.channels[t]
	if !ok {
		ch = NewEventChannel[ComponentEvent](capacity)
		h.channels[t] = ch
	}
	return ch
}

// TrackComponent turns on event tracking for T and returns its channel.
// Calling it again returns the same channel.
func TrackComponent[T any](s *Storage) *EventChannel[ComponentEvent] {
	return s.events.channel(reflect.TypeFor[T](), DefaultEventCapacity)
}

// TrackComponentWithCapacity is TrackComponent with an explicit ring size
// for the first call.
func TrackComponentWithCapacity[T any](s *Storage, capacity int) *EventChannel[ComponentEvent] {
	return s.events.channel(reflect.TypeFor[T](), capacity)
}

// IsTracked reports whether events are recorded for t.
func (s *Storage) IsTracked(t reflect.Type) bool {
	s.events.mu.RLock()
	defer s.events.mu.RUnlock()
	_, ok := s.events.channels[t]
	return ok
}
