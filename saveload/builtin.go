package saveload

import (
	"github.com/plus3/ecscore/ecs"
	"github.com/plus3/ecscore/lifecycle"
	"github.com/plus3/ecscore/transform"
)

// ParentData is the saved form of transform.Parent. Zero means no parent.
type ParentData struct {
	Parent uint64 `yaml:"parent" toml:"parent" json:"parent"`
}

// RegisterTransform registers transform.Transform as "transform" and
// transform.Parent as "parent". GlobalTransform is derived every frame and
// is not saved.
func RegisterTransform(r *Registry) {
	Register[transform.Transform](r, "transform")
	RegisterConverted(r, "parent",
		func(p transform.Parent, s Saver) (ParentData, error) {
			if p.Entity == nil {
				return ParentData{}, nil
			}
			m, err := s.MarkerOf(p.Entity)
			return ParentData{Parent: m}, err
		},
		func(d ParentData, l Loader) (transform.Parent, error) {
			if d.Parent == 0 {
				return transform.Parent{}, nil
			}
			ref, err := l.Resolve(d.Parent)
			return transform.Parent{Entity: ref}, err
		},
	)
}

// RegisterLifecycle registers the timed destruction components.
func RegisterLifecycle(r *Registry) {
	Register[lifecycle.DestroyAtTime](r, "destroy_at_time")
	Register[lifecycle.DestroyInTime](r, "destroy_in_time")
}

// Bundle wires saving into a game: it registers Marker with the storage and
// creates the MarkerAllocator resource. It adds no systems.
type Bundle struct{}

func (Bundle) Build(storage *ecs.Storage, _ *ecs.Scheduler) error {
	ecs.RegisterComponent[Marker](storage.Registry())
	allocator(storage)
	return nil
}
