package ecs_test

import (
	"reflect"
	"sync"
	"testing"

	"github.com/plus3/ecscore/ecs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityRefBasicLifecycle(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())

	id := storage.Spawn(&Position{X: 1.0, Y: 2.0})
	ref := storage.CreateEntityRef(id)

	require.NotNil(t, ref)
	assert.Equal(t, id, ref.Id)
	assert.NotNil(t, ref.Archetype)

	resolved, ok := storage.ResolveEntityRef(ref)
	assert.True(t, ok)
	assert.Equal(t, id, resolved)

	assert.True(t, storage.InvalidateEntityRef(ref))
	_, ok = storage.ResolveEntityRef(ref)
	assert.False(t, ok)
	assert.True(t, storage.Alive(id), "invalidating a ref keeps the entity")

	assert.False(t, storage.InvalidateEntityRef(ref))
}

func TestEntityRefIdempotency(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())

	id := storage.Spawn(&Position{X: 5.0, Y: 10.0})
	assert.Same(t, storage.CreateEntityRef(id), storage.CreateEntityRef(id))
}

func TestEntityRefDeadEntity(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())

	id := storage.Spawn(Position{})
	storage.Delete(id)
	assert.Nil(t, storage.CreateEntityRef(id))

	_, ok := storage.ResolveEntityRef(nil)
	assert.False(t, ok)
	assert.False(t, storage.InvalidateEntityRef(nil))
}

func TestEntityRefFollowsMoves(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())

	id := storage.Spawn(Position{X: 7})
	ref := storage.CreateEntityRef(id)

	afterAdd := storage.AddComponent(id, Velocity{DX: 1})
	assert.Equal(t, afterAdd, ref.Id)
	assert.Same(t, storage.GetArchetype(Position{}, Velocity{}), ref.Archetype)

	afterRemove := storage.RemoveComponent(afterAdd, reflect.TypeFor[Position]())
	assert.Equal(t, afterRemove, ref.Id)
	assert.Same(t, ref, storage.CreateEntityRef(afterRemove))

	storage.Delete(ref.Id)
	assert.False(t, ref.Valid())
	assert.Nil(t, ref.Archetype)
}

func TestEntityRefInvalidatedByRemovingLastComponent(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())

	id := storage.Spawn(Position{})
	ref := storage.CreateEntityRef(id)
	storage.RemoveComponent(id, reflect.TypeFor[Position]())

	assert.False(t, ref.Valid())
}

func TestEntityRefConcurrentCreate(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())
	id := storage.Spawn(Position{})

	refs := make([]*ecs.EntityRef, 16)
	var wg sync.WaitGroup
	for i := range refs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			refs[i] = storage.CreateEntityRef(id)
		}()
	}
	wg.Wait()

	for _, ref := range refs[1:] {
		assert.Same(t, refs[0], ref)
	}
}
