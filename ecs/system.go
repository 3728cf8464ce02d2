package ecs

import (
	"reflect"
	"time"
)

// System represents a behavior that operates on entities with specific components.
// Systems can carry Query and Singleton fields, which the Scheduler
// initializes on registration, plus any state that persists between frames.
type System interface {
	Execute(frame *UpdateFrame)
}

// Disposer is implemented by systems that hold resources to release when
// the Scheduler is disposed.
type Disposer interface {
	Dispose(storage *Storage)
}

// Access lists component or singleton types a system touches outside its
// Query and Singleton fields.
type Access struct {
	Reads  []reflect.Type
	Writes []reflect.Type
}

// AccessDeclarer lets a system declare extra accesses so the Scheduler can
// keep it apart from conflicting systems.
type AccessDeclarer interface {
	Access() Access
}

// Observer receives timing for every system run and every frame. Calls for
// systems of the same stage may arrive concurrently.
type Observer interface {
	ObserveSystem(name string, d time.Duration)
	ObserveFrame(d time.Duration, storage *Storage)
}

// SystemFunc adapts a function to the System interface.
type SystemFunc func(frame *UpdateFrame)

func (f SystemFunc) Execute(frame *UpdateFrame) { f(frame) }
