package ecs_test

import (
	"reflect"
	"testing"

	"github.com/plus3/ecscore/ecs"
)

type posVel struct {
	*Position
	*Velocity
}

func BenchmarkSpawn(b *testing.B) {
	storage := ecs.NewStorage(newTestRegistry())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		storage.Spawn(Position{X: 1.0, Y: 2.0}, Velocity{DX: 0.5, DY: 0.5})
	}
}

func BenchmarkAddRemoveComponent(b *testing.B) {
	storage := ecs.NewStorage(newTestRegistry())
	id := storage.Spawn(Position{X: 1.0, Y: 2.0})
	velType := reflect.TypeFor[Velocity]()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		id = storage.AddComponent(id, Velocity{DX: 1})
		id = storage.RemoveComponent(id, velType)
	}
}

func BenchmarkViewIter(b *testing.B) {
	storage := ecs.NewStorage(newTestRegistry())
	for i := 0; i < 10000; i++ {
		storage.Spawn(Position{X: float32(i), Y: float32(i)}, Velocity{DX: 0.5, DY: 0.5})
	}
	view := ecs.NewView[posVel](storage)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, pv := range view.Iter() {
			_ = pv
		}
	}
}

func BenchmarkSchedulerOnce(b *testing.B) {
	for _, parallel := range []bool{false, true} {
		name := "sequential"
		if parallel {
			name = "parallel"
		}
		b.Run(name, func(b *testing.B) {
			storage := ecs.NewStorage(newTestRegistry())
			for i := 0; i < 10000; i++ {
				storage.Spawn(Position{}, Velocity{DX: 1, DY: 1})
				storage.Spawn(Health{Current: i, Max: 10000})
			}
			scheduler := ecs.NewScheduler(storage, ecs.WithParallel(parallel))
			scheduler.Register(&MovementSystem{})
			scheduler.Register(&HealthSystem{})

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				scheduler.Once(0.016)
			}
		})
	}
}
