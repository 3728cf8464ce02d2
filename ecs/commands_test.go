package ecs_test

import (
	"reflect"
	"sync"
	"testing"

	"github.com/plus3/ecscore/ecs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandsDeferredUntilFlush(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())
	commands := ecs.NewCommands()

	commands.Spawn(Position{X: 1}, Velocity{DX: 1})
	commands.Spawn(Position{X: 2})
	assert.Equal(t, 2, commands.Len())
	assert.Equal(t, 0, storage.EntityCount())

	commands.Flush(storage)
	assert.Equal(t, 2, storage.EntityCount())
	assert.Equal(t, 0, commands.Len())
}

func TestCommandsFlushOrder(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())
	commands := ecs.NewCommands()

	doomed := storage.Spawn(Position{X: 1})
	survivor := storage.Spawn(Name{Value: "survivor"})

	var order []string
	commands.Defer(func() { order = append(order, "defer") })
	commands.SpawnThen(func(id ecs.EntityId) {
		order = append(order, "spawn")
		assert.True(t, storage.Alive(id))
	}, Health{Current: 1})
	commands.AddComponent(doomed, Velocity{})
	commands.Delete(doomed)
	commands.AddComponent(survivor, Score(5))

	commands.Flush(storage)

	assert.Equal(t, []string{"spawn", "defer"}, order)
	assert.False(t, storage.Alive(doomed))
	assert.Equal(t, 2, storage.EntityCount(), "survivor and spawned health entity")

	moved := storage.GetArchetype(Name{}, Score(0))
	require.NotNil(t, moved)
	assert.Equal(t, 1, moved.Len())
}

func TestCommandsChaseMovedEntities(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())
	commands := ecs.NewCommands()

	id := storage.Spawn(Position{X: 3})
	ref := storage.CreateEntityRef(id)

	commands.RemoveComponent(id, reflect.TypeFor[Health]())
	commands.AddComponent(id, Velocity{DX: 1})
	commands.AddComponent(id, Health{Current: 2})
	commands.Flush(storage)

	require.True(t, ref.Valid())
	assert.True(t, storage.HasComponent(ref.Id, reflect.TypeFor[Velocity]()))
	assert.True(t, storage.HasComponent(ref.Id, reflect.TypeFor[Health]()))
	assert.Equal(t, float32(3), ecs.ReadComponent[Position](storage, ref.Id).X)
	assert.Equal(t, 1, storage.EntityCount())
}

func TestCommandsConcurrentWriters(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())
	commands := ecs.NewCommands()

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 50 {
				commands.Spawn(Score(i*100 + j))
			}
		}()
	}
	wg.Wait()

	commands.Flush(storage)
	assert.Equal(t, 400, storage.EntityCount())
}

func TestCommandsFollowEntitiesThroughReusedSlots(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())
	commands := ecs.NewCommands()

	c := storage.Spawn(Position{X: 1}, Velocity{DX: 1})
	b := storage.Spawn(Position{X: 2}, Velocity{DX: 2}, Health{Current: 2})
	cRef := storage.CreateEntityRef(c)
	bRef := storage.CreateEntityRef(b)

	// c leaves its slot first; b's move may then land in it
	commands.RemoveComponent(c, reflect.TypeFor[Velocity]())
	commands.RemoveComponent(b, reflect.TypeFor[Health]())
	commands.AddComponent(c, Name{Value: "c"})
	commands.Flush(storage)

	require.True(t, cRef.Valid())
	require.True(t, bRef.Valid())
	assert.True(t, storage.HasComponent(cRef.Id, reflect.TypeFor[Name]()))
	assert.False(t, storage.HasComponent(cRef.Id, reflect.TypeFor[Velocity]()))
	assert.False(t, storage.HasComponent(bRef.Id, reflect.TypeFor[Name]()))
	assert.False(t, storage.HasComponent(bRef.Id, reflect.TypeFor[Health]()))
	assert.Equal(t, float32(1), ecs.ReadComponent[Position](storage, cRef.Id).X)
	assert.Equal(t, float32(2), ecs.ReadComponent[Position](storage, bRef.Id).X)
}

func TestCommandsDropTargetsThatWereNotAlive(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())
	commands := ecs.NewCommands()

	stale := storage.Spawn(Position{X: 1}, Velocity{})
	storage.Delete(stale)
	mover := storage.Spawn(Position{X: 2}, Velocity{}, Health{})

	// mover's move into {Position, Velocity} may reuse stale's slot
	commands.RemoveComponent(mover, reflect.TypeFor[Health]())
	commands.AddComponent(stale, Name{Value: "stale"})
	commands.Flush(storage)

	assert.Nil(t, storage.GetArchetype(Position{}, Velocity{}, Name{}))
	assert.Equal(t, 1, storage.EntityCount())
}
