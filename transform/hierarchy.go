package transform

import (
	"slices"

	"github.com/kamstrup/intmap"
	"github.com/rs/zerolog"

	"github.com/plus3/ecscore/ecs"
)

// Parent attaches an entity below another one. Deleting the parent deletes
// the child on the next HierarchySystem run.
type Parent struct {
	Entity *ecs.EntityRef
}

// NewParent creates a Parent pointing at id. Returns the zero Parent if id
// is not alive.
func NewParent(storage *ecs.Storage, id ecs.EntityId) Parent {
	return Parent{Entity: storage.CreateEntityRef(id)}
}

// Hierarchy is the resource rebuilt by HierarchySystem every frame. Ids are
// those of the frame it was built in.
type Hierarchy struct {
	sorted   []ecs.EntityId
	roots    []ecs.EntityId
	children *intmap.Map[ecs.EntityId, []ecs.EntityId]
	parents  *intmap.Map[ecs.EntityId, ecs.EntityId]
}

// NewHierarchy returns an empty hierarchy.
func NewHierarchy() Hierarchy {
	return Hierarchy{
		children: intmap.New[ecs.EntityId, []ecs.EntityId](64),
		parents:  intmap.New[ecs.EntityId, ecs.EntityId](64),
	}
}

// All returns every child entity, each listed after its parent.
func (h *Hierarchy) All() []ecs.EntityId {
	return h.sorted
}

// Len returns the number of entities that have a parent.
func (h *Hierarchy) Len() int {
	return len(h.sorted)
}

// Roots returns the entities that have children but no parent, by id.
func (h *Hierarchy) Roots() []ecs.EntityId {
	return h.roots
}

// Children returns the direct children of id, by id.
func (h *Hierarchy) Children(id ecs.EntityId) []ecs.EntityId {
	if h.children == nil {
		return nil
	}
	children, _ := h.children.Get(id)
	return children
}

// AllChildren returns every descendant of id, parents before children.
func (h *Hierarchy) AllChildren(id ecs.EntityId) []ecs.EntityId {
	var out []ecs.EntityId
	queue := append([]ecs.EntityId(nil), h.Children(id)...)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		out = append(out, next)
		queue = append(queue, h.Children(next)...)
	}
	return out
}

// Parent returns the parent of id, if it has one.
func (h *Hierarchy) Parent(id ecs.EntityId) (ecs.EntityId, bool) {
	if h.parents == nil {
		return 0, false
	}
	return h.parents.Get(id)
}

func (h *Hierarchy) reset() {
	if h.children == nil {
		*h = NewHierarchy()
		return
	}
	h.sorted = h.sorted[:0]
	h.roots = h.roots[:0]
	h.children.Clear()
	h.parents.Clear()
}

// HierarchySystem rebuilds the Hierarchy resource from Parent components.
//
// A child whose parent has been deleted is deleted together with its
// descendants. A Parent link that would close a cycle is ignored and
// logged.
type HierarchySystem struct {
	Links     ecs.Query[struct{ *Parent }] `ecs:"read"`
	Hierarchy ecs.Singleton[Hierarchy]

	logger zerolog.Logger
}

// NewHierarchySystem creates the system with the given logger.
func NewHierarchySystem(logger zerolog.Logger) *HierarchySystem {
	return &HierarchySystem{logger: logger}
}

func (s *HierarchySystem) Execute(frame *ecs.UpdateFrame) {
	h := s.Hierarchy.Get()
	if h == nil {
		storage := frame.Storage
		frame.Commands.Defer(func() {
			if ecs.ReadSingleton[Hierarchy](storage) == nil {
				storage.AddSingleton(NewHierarchy())
			}
		})
		return
	}

	links := make(map[ecs.EntityId]ecs.EntityId, s.Links.Len())
	var orphans []ecs.EntityId
	for id, link := range s.Links.Iter() {
		ref := link.Parent.Entity
		switch {
		case ref == nil:
		case !ref.Valid():
			orphans = append(orphans, id)
		default:
			links[id] = ref.Id
		}
	}

	ids := make([]ecs.EntityId, 0, len(links))
	for id := range links {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		if s.closesCycle(links, id) {
			s.logger.Warn().
				Stringer("entity", id).
				Stringer("parent", links[id]).
				Msg("parent link closes a cycle, ignoring it")
			delete(links, id)
		}
	}

	h.reset()
	for _, id := range ids {
		parent, ok := links[id]
		if !ok {
			continue
		}
		h.parents.Put(id, parent)
		children, _ := h.children.Get(parent)
		h.children.Put(parent, append(children, id))
	}

	doomed := make(map[ecs.EntityId]struct{})
	for _, orphan := range orphans {
		doomed[orphan] = struct{}{}
		frame.Commands.Delete(orphan)
		for _, child := range h.AllChildren(orphan) {
			doomed[child] = struct{}{}
			frame.Commands.Delete(child)
		}
	}
	if len(orphans) > 0 {
		s.logger.Debug().Int("orphans", len(orphans)).Int("deleted", len(doomed)).Msg("deleting orphaned subtrees")
	}

	seen := make(map[ecs.EntityId]struct{})
	for _, parent := range links {
		if _, hasParent := links[parent]; hasParent {
			continue
		}
		if _, gone := doomed[parent]; gone {
			continue
		}
		if _, ok := seen[parent]; !ok {
			seen[parent] = struct{}{}
			h.roots = append(h.roots, parent)
		}
	}
	slices.Sort(h.roots)

	queue := append([]ecs.EntityId(nil), h.roots...)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		children := h.Children(next)
		h.sorted = append(h.sorted, children...)
		queue = append(queue, children...)
	}
}

func (s *HierarchySystem) closesCycle(links map[ecs.EntityId]ecs.EntityId, start ecs.EntityId) bool {
	current, ok := links[start]
	for steps := 0; ok && steps <= len(links); steps++ {
		if current == start {
			return true
		}
		current, ok = links[current]
	}
	return false
}
