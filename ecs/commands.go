package ecs

import (
	"reflect"
	"sync"
)

// Commands buffers structural changes made while systems run. The Scheduler
// flushes them once every system of the frame has finished. Commands is
// safe for concurrent use.
type Commands struct {
	mu      sync.Mutex
	spawns  []spawnCommand
	deletes []EntityId
	adds    []addComponentCommand
	removes []removeComponentCommand
	defers  []func()
}

func newCommands() *Commands {
	return &Commands{}
}

// NewCommands returns an empty buffer, for driving storage outside a Scheduler.
func NewCommands() *Commands {
	return newCommands()
}

type spawnCommand struct {
	components []any
	done       func(EntityId)
}

type addComponentCommand struct {
	entity    EntityId
	component any
}

type removeComponentCommand struct {
	entity   EntityId
	compType reflect.Type
}

// Defer queues fn to run after all structural commands.
func (c *Commands) Defer(fn func()) {
	c.mu.Lock()
	c.defers = append(c.defers, fn)
	c.mu.Unlock()
}

// Spawn queues an entity spawn operation with the given components.
func (c *Commands) Spawn(components ...any) {
	c.mu.Lock()
	c.spawns = append(c.spawns, spawnCommand{components: components})
	c.mu.Unlock()
}

// SpawnThen queues a spawn and calls done with the new id during Flush.
func (c *Commands) SpawnThen(done func(EntityId), components ...any) {
	c.mu.Lock()
	c.spawns = append(c.spawns, spawnCommand{components: components, done: done})
	c.mu.Unlock()
}

// Delete queues an entity deletion operation.
func (c *Commands) Delete(entity EntityId) {
	c.mu.Lock()
	c.deletes = append(c.deletes, entity)
	c.mu.Unlock()
}

// AddComponent queues a component addition operation.
func (c *Commands) AddComponent(entity EntityId, component any) {
	c.mu.Lock()
	c.adds = append(c.adds, addComponentCommand{entity: entity, component: component})
	c.mu.Unlock()
}

// RemoveComponent queues a component removal operation.
func (c *Commands) RemoveComponent(entity EntityId, compType reflect.Type) {
	c.mu.Lock()
	c.removes = append(c.removes, removeComponentCommand{entity: entity, compType: compType})
	c.mu.Unlock()
}

// Len returns the number of queued commands.
func (c *Commands) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.spawns) + len(c.deletes) + len(c.adds) + len(c.removes) + len(c.defers)
}

// Flush applies the buffer to storage in the order deletes, removes, adds,
// spawns, deferred functions, then resets it. Removes and adds aimed at an
// entity that is not alive once deletes are applied are dropped. Adds and
// removes move entities, so every target is followed from the id it had
// when the command was queued to where it lives now.
func (c *Commands) Flush(storage *Storage) {
	c.mu.Lock()
	spawns, deletes, adds, removes, defers := c.spawns, c.deletes, c.adds, c.removes, c.defers
	c.spawns, c.deletes, c.adds, c.removes, c.defers = nil, nil, nil, nil, nil
	c.mu.Unlock()

	for _, id := range deletes {
		storage.Delete(id)
	}

	// Slots freed by moves are reused by later moves, so targets are keyed
	// by their queued id and never by an id reached during this flush.
	gone := make(map[EntityId]bool)
	for _, cmd := range removes {
		gone[cmd.entity] = !storage.Alive(cmd.entity)
	}
	for _, cmd := range adds {
		gone[cmd.entity] = !storage.Alive(cmd.entity)
	}
	location := make(map[EntityId]EntityId)
	apply := func(entity EntityId, op func(EntityId) EntityId) {
		if gone[entity] {
			return
		}
		from, ok := location[entity]
		if !ok {
			from = entity
		}
		to := op(from)
		if to == 0 {
			gone[entity] = true
			return
		}
		location[entity] = to
	}

	for _, cmd := range removes {
		apply(cmd.entity, func(id EntityId) EntityId {
			return storage.RemoveComponent(id, cmd.compType)
		})
	}

	for _, cmd := range adds {
		apply(cmd.entity, func(id EntityId) EntityId {
			return storage.AddComponent(id, cmd.component)
		})
	}

	for _, cmd := range spawns {
		id := storage.Spawn(cmd.components...)
		if cmd.done != nil {
			cmd.done(id)
		}
	}

	for _, fn := range defers {
		fn()
	}
}
