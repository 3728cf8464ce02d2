// Package lifecycle holds small components that control when entities are
// removed: grouped removal, tags and timed destruction.
package lifecycle

import (
	"github.com/plus3/ecscore/ecs"
	"github.com/plus3/ecscore/timing"
)

// Removal marks an entity as belonging to removal group ID. ExecRemoval
// deletes a whole group at once, e.g. everything spawned for one level.
//
// Each instantiation is its own component type and must be registered.
type Removal[I comparable] struct {
	ID I
}

// ExecRemoval deletes every entity carrying Removal[I] with the given id
// and returns how many were deleted.
func ExecRemoval[I comparable](storage *ecs.Storage, id I) int {
	view := ecs.NewView[struct{ *Removal[I] }](storage)
	var doomed []ecs.EntityId
	for entity, e := range view.Iter() {
		if e.Removal.ID == id {
			doomed = append(doomed, entity)
		}
	}
	for _, entity := range doomed {
		storage.Delete(entity)
	}
	return len(doomed)
}

// Tag is a zero-sized marker component. Distinct T give distinct tags.
type Tag[T any] struct{}

// FindTagged returns an entity carrying Tag[T]. When several do, which one
// is returned is unspecified.
func FindTagged[T any](storage *ecs.Storage) (ecs.EntityId, bool) {
	view := ecs.NewView[struct{ *Tag[T] }](storage)
	for entity := range view.Iter() {
		return entity, true
	}
	return 0, false
}

// DestroyAtTime deletes its entity once the game time passes Time, in
// seconds since the first frame.
type DestroyAtTime struct {
	Time float64 `yaml:"time" toml:"time" json:"time"`
}

// DestroyInTime deletes its entity after Timer seconds of game time.
type DestroyInTime struct {
	Timer float64 `yaml:"timer" toml:"timer" json:"timer"`
}

// DestroyAtTimeSystem deletes entities whose DestroyAtTime has passed.
type DestroyAtTimeSystem struct {
	Entities ecs.Query[struct{ *DestroyAtTime }] `ecs:"read"`
	Time     ecs.Singleton[timing.Time]          `ecs:"read"`
}

func (s *DestroyAtTimeSystem) Execute(frame *ecs.UpdateFrame) {
	t := s.Time.Get()
	if t == nil {
		return
	}
	now := t.AbsoluteTimeSeconds()
	for entity, e := range s.Entities.Iter() {
		if now > e.DestroyAtTime.Time {
			frame.Commands.Delete(entity)
		}
	}
}

// DestroyInTimeSystem counts DestroyInTime timers down and deletes the
// entities whose timer ran out.
type DestroyInTimeSystem struct {
	Entities ecs.Query[struct{ *DestroyInTime }]
	Time     ecs.Singleton[timing.Time] `ecs:"read"`
}

func (s *DestroyInTimeSystem) Execute(frame *ecs.UpdateFrame) {
	t := s.Time.Get()
	if t == nil {
		return
	}
	dt := t.DeltaSeconds()
	for entity, e := range s.Entities.Iter() {
		e.DestroyInTime.Timer -= dt
		if e.DestroyInTime.Timer <= 0 {
			frame.Commands.Delete(entity)
		}
	}
}

// Bundle registers the timed destruction components and systems.
type Bundle struct{}

func (Bundle) Build(storage *ecs.Storage, scheduler *ecs.Scheduler) error {
	ecs.RegisterComponent[DestroyAtTime](storage.Registry())
	ecs.RegisterComponent[DestroyInTime](storage.Registry())
	if err := scheduler.Add("destroy_at_time_system", &DestroyAtTimeSystem{}); err != nil {
		return err
	}
	return scheduler.Add("destroy_in_time_system", &DestroyInTimeSystem{})
}
