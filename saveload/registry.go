package saveload

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/plus3/ecscore/ecs"
)

// Saver is handed to converters while saving.
type Saver interface {
	// MarkerOf returns the marker id of the referenced entity.
	MarkerOf(ref *ecs.EntityRef) (uint64, error)
}

// Loader is handed to converters while loading.
type Loader interface {
	// Resolve returns a reference to the entity loaded or already present
	// with the given marker.
	Resolve(marker uint64) (*ecs.EntityRef, error)
}

type entry struct {
	name      string
	typ       reflect.Type
	converted bool
	ensure    func(*ecs.ComponentRegistry)
	encode    func(value any, s Saver) (any, error)
	decode    func(c codec, raw any) (any, error)
	resolve   func(data any, l Loader) (any, error)
}

// Registry names the component types that take part in saving and loading.
type Registry struct {
	byName map[string]*entry
	byType map[reflect.Type]*entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*entry),
		byType: make(map[reflect.Type]*entry),
	}
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) add(e *entry) {
	if e.name == "" {
		panic("saveload: empty component name")
	}
	if _, ok := r.byName[e.name]; ok {
		panic(fmt.Sprintf("saveload: component name %q registered twice", e.name))
	}
	if _, ok := r.byType[e.typ]; ok {
		panic(fmt.Sprintf("saveload: component type %s registered twice", e.typ))
	}
	r.byName[e.name] = e
	r.byType[e.typ] = e
}

// Register saves T as is under name. T must not hold entity references;
// use RegisterConverted for those. Panics on a duplicate name or type.
func Register[T any](r *Registry, name string) {
	r.add(&entry{
		name:   name,
		typ:    reflect.TypeFor[T](),
		ensure: func(reg *ecs.ComponentRegistry) { ecs.RegisterComponent[T](reg) },
		encode: func(value any, _ Saver) (any, error) {
			return *value.(*T), nil
		},
		decode: func(c codec, raw any) (any, error) {
			return decodeInto[T](c, raw)
		},
	})
}

// RegisterConverted saves T through the data form D. toData runs while
// saving and may turn entity references into marker ids; fromData runs
// once every entity of the file exists and turns them back.
func RegisterConverted[T, D any](r *Registry, name string,
	toData func(value T, s Saver) (D, error),
	fromData func(data D, l Loader) (T, error),
) {
	r.add(&entry{
		name:      name,
		typ:       reflect.TypeFor[T](),
		converted: true,
		ensure:    func(reg *ecs.ComponentRegistry) { ecs.RegisterComponent[T](reg) },
		encode: func(value any, s Saver) (any, error) {
			return toData(*value.(*T), s)
		},
		decode: func(c codec, raw any) (any, error) {
			return decodeInto[D](c, raw)
		},
		resolve: func(data any, l Loader) (any, error) {
			return fromData(data.(D), l)
		},
	})
}
