package transform

import (
	"reflect"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/kamstrup/intmap"
	"github.com/rs/zerolog"

	"github.com/plus3/ecscore/ecs"
)

const (
	// HierarchySystemName is the name Bundle registers HierarchySystem under.
	HierarchySystemName = "parent_hierarchy_system"
	// TransformSystemName is the name Bundle registers TransformSystem under.
	TransformSystemName = "transform_system"
)

var globalTransformType = reflect.TypeFor[GlobalTransform]()

type transformed struct {
	*Transform
	Global *GlobalTransform `ecs:"optional"`
}

// TransformSystem writes the GlobalTransform of every entity with a
// Transform. Entities missing a GlobalTransform get one at the end of the
// frame. Changed world matrices emit a Modified event when GlobalTransform
// is tracked.
type TransformSystem struct {
	Locals    ecs.Query[transformed]   `ecs:"read"`
	Hierarchy ecs.Singleton[Hierarchy] `ecs:"read"`

	globals *intmap.Map[ecs.EntityId, mgl64.Mat4]
}

// NewTransformSystem creates the system.
func NewTransformSystem() *TransformSystem {
	return &TransformSystem{}
}

// Access declares the GlobalTransform writes, which the read-only Locals
// query does not.
func (s *TransformSystem) Access() ecs.Access {
	return ecs.Access{Writes: []reflect.Type{globalTransformType}}
}

func (s *TransformSystem) Execute(frame *ecs.UpdateFrame) {
	if s.globals == nil {
		s.globals = intmap.New[ecs.EntityId, mgl64.Mat4](s.Locals.Len())
	} else {
		s.globals.Clear()
	}

	h := s.Hierarchy.Get()
	tracked := frame.Storage.IsTracked(globalTransformType)

	for id, e := range s.Locals.Iter() {
		if h != nil {
			if _, isChild := h.Parent(id); isChild {
				continue
			}
		}
		s.store(frame, id, e, e.Transform.Matrix(), tracked)
	}

	if h == nil {
		return
	}
	for _, id := range h.All() {
		e := s.Locals.Get(id)
		if e == nil {
			continue
		}
		parentMatrix := mgl64.Ident4()
		if parent, ok := h.Parent(id); ok {
			if m, ok := s.globals.Get(parent); ok {
				parentMatrix = m
			}
		}
		s.store(frame, id, *e, parentMatrix.Mul4(e.Transform.Matrix()), tracked)
	}
}

func (s *TransformSystem) store(frame *ecs.UpdateFrame, id ecs.EntityId, e transformed, m mgl64.Mat4, tracked bool) {
	s.globals.Put(id, m)
	if e.Global == nil {
		frame.Commands.AddComponent(id, GlobalTransform{Matrix: m})
		return
	}
	if e.Global.Matrix == m {
		return
	}
	e.Global.Matrix = m
	if tracked {
		frame.Storage.MarkModified(id, globalTransformType)
	}
}

// Bundle registers the hierarchy and transform systems.
type Bundle struct {
	deps   []string
	logger zerolog.Logger
}

// NewBundle creates a bundle whose transform system also runs after the
// systems named in deps.
func NewBundle(deps ...string) *Bundle {
	return &Bundle{deps: deps, logger: zerolog.Nop()}
}

// WithLogger sets the logger handed to HierarchySystem.
func (b *Bundle) WithLogger(logger zerolog.Logger) *Bundle {
	b.logger = logger
	return b
}

// Build registers the components and the Hierarchy resource, then adds both
// systems to scheduler.
func (b *Bundle) Build(storage *ecs.Storage, scheduler *ecs.Scheduler) error {
	registry := storage.Registry()
	ecs.RegisterComponent[Transform](registry)
	ecs.RegisterComponent[GlobalTransform](registry)
	ecs.RegisterComponent[Parent](registry)

	if ecs.ReadSingleton[Hierarchy](storage) == nil {
		storage.AddSingleton(NewHierarchy())
	}

	if err := scheduler.Add(HierarchySystemName, NewHierarchySystem(b.logger)); err != nil {
		return err
	}
	deps := append([]string{HierarchySystemName}, b.deps...)
	return scheduler.Add(TransformSystemName, NewTransformSystem(), deps...)
}
