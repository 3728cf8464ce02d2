package ecs_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/plus3/ecscore/ecs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(events []ecs.ComponentEvent) []ecs.EventKind {
	out := make([]ecs.EventKind, len(events))
	for i, e := range events {
		out[i] = e.Kind
	}
	return out
}

func TestEventChannelReaders(t *testing.T) {
	ch := ecs.NewEventChannel[int](4)

	ch.Single(0)
	early := ch.RegisterReader()
	ch.Iter([]int{1, 2})
	late := ch.RegisterReader()
	ch.Single(3)

	assert.Equal(t, []int{1, 2, 3}, ch.Read(early))
	assert.Equal(t, []int{3}, ch.Read(late))
	assert.Empty(t, ch.Read(early))
	assert.Equal(t, uint64(4), ch.Written())
}

func TestEventChannelOverflow(t *testing.T) {
	ch := ecs.NewEventChannel[int](3)
	reader := ch.RegisterReader()

	ch.Iter([]int{1, 2, 3, 4, 5})

	assert.Equal(t, []int{3, 4, 5}, ch.Read(reader))
	assert.Equal(t, uint64(2), ch.Lost(reader))

	ch.RemoveReader(reader)
	ch.Single(6)
	assert.Nil(t, ch.Read(reader))
}

func TestTrackComponentEvents(t *testing.T) {
	storage := ecs.NewStorage(newTestRegistry())
	ch := ecs.TrackComponent[Velocity](storage)
	assert.Same(t, ch, ecs.TrackComponent[Velocity](storage))
	assert.True(t, storage.IsTracked(reflect.TypeFor[Velocity]()))
	assert.False(t, storage.IsTracked(reflect.TypeFor[Position]()))

	reader := ch.RegisterReader()

	untracked := storage.Spawn(Position{})
	id := storage.Spawn(Position{}, Velocity{})
	storage.MarkModified(id, reflect.TypeFor[Velocity]())
	storage.MarkModified(id, reflect.TypeFor[Position]())
	moved := storage.AddComponent(untracked, Velocity{DX: 1})
	moved = storage.AddComponent(moved, Velocity{DX: 2})
	storage.RemoveComponent(moved, reflect.TypeFor[Velocity]())
	storage.Delete(id)

	events := ch.Read(reader)
	assert.Equal(t, []ecs.EventKind{
		ecs.ComponentInserted,
		ecs.ComponentModified,
		ecs.ComponentInserted,
		ecs.ComponentModified,
		ecs.ComponentRemoved,
		ecs.ComponentRemoved,
	}, kinds(events))
	for _, e := range events {
		assert.Equal(t, reflect.TypeFor[Velocity](), e.Type)
	}
	assert.Equal(t, id, events[0].Entity)
	assert.Equal(t, id, events[5].Entity)
	assert.Equal(t, "removed", events[5].Kind.String())
}

func TestEventEmissionControl(t *testing.T) {
	t.Run("disabled by default", func(t *testing.T) {
		storage := ecs.NewStorage(newTestRegistry())
		err := storage.SetEventEmission(false)
		assert.True(t, errors.Is(err, ecs.ErrEventControlDisabled))
		assert.True(t, storage.EventEmission())
	})

	t.Run("toggle", func(t *testing.T) {
		storage := ecs.NewStorage(newTestRegistry(), ecs.WithEventControl(true))
		ch := ecs.TrackComponent[Position](storage)
		reader := ch.RegisterReader()

		require.NoError(t, storage.SetEventEmission(false))
		assert.False(t, storage.EventEmission())
		storage.Spawn(Position{})
		assert.Empty(t, ch.Read(reader))

		require.NoError(t, storage.SetEventEmission(true))
		storage.Spawn(Position{})
		assert.Len(t, ch.Read(reader), 1)
	})
}
