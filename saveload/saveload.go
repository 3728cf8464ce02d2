// Package saveload writes marked entities to YAML, TOML or JSON and spawns
// them back, restoring entity references between them.
package saveload

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"sort"

	"github.com/plus3/ecscore/ecs"
)

var (
	// ErrUnknownFormat is returned for an unsupported Format or extension.
	ErrUnknownFormat = errors.New("saveload: unknown format")
	// ErrUnknownComponent is returned when a file names a component the
	// Registry does not know.
	ErrUnknownComponent = errors.New("saveload: unknown component")
	// ErrDuplicateMarker is returned when two entities share a marker id.
	ErrDuplicateMarker = errors.New("saveload: duplicate marker")
	// ErrUnresolvedMarker is returned when an entity reference cannot be
	// mapped to a marker, or a marker to an entity.
	ErrUnresolvedMarker = errors.New("saveload: unresolved marker")
)

var markerType = reflect.TypeFor[Marker]()

func duplicateMarker(id uint64) error {
	return fmt.Errorf("%w: %d", ErrDuplicateMarker, id)
}

type document struct {
	Entities []record `yaml:"entities" toml:"entities" json:"entities"`
}

type record struct {
	Marker     uint64         `yaml:"marker" toml:"marker" json:"marker"`
	Components map[string]any `yaml:"components" toml:"components" json:"components"`
}

type saver struct {
	storage *ecs.Storage
}

func (s saver) MarkerOf(ref *ecs.EntityRef) (uint64, error) {
	if !ref.Valid() {
		return 0, fmt.Errorf("%w: reference to a deleted entity", ErrUnresolvedMarker)
	}
	m := ecs.ReadComponent[Marker](s.storage, ref.Id)
	if m == nil {
		return 0, fmt.Errorf("%w: entity %s has no marker", ErrUnresolvedMarker, ref.Id)
	}
	return m.ID, nil
}

// Save writes every entity carrying a Marker to w. Components whose type
// is not in the registry are left out. Entities are ordered by marker id.
func (r *Registry) Save(storage *ecs.Storage, w io.Writer, format Format) error {
	c, err := codecFor(format)
	if err != nil {
		return err
	}
	marked, err := markedEntities(storage)
	if err != nil {
		return err
	}

	markers := make([]uint64, 0, len(marked))
	for m := range marked {
		markers = append(markers, m)
	}
	sort.Slice(markers, func(i, j int) bool { return markers[i] < markers[j] })

	doc := document{Entities: make([]record, 0, len(markers))}
	s := saver{storage: storage}
	for _, m := range markers {
		id := marked[m]
		rec := record{Marker: m, Components: make(map[string]any)}
		types, values := storage.ComponentsOf(id)
		for i, t := range types {
			e, ok := r.byType[t]
			if !ok {
				continue
			}
			data, err := e.encode(values[i], s)
			if err != nil {
				return fmt.Errorf("save marker %d component %s: %w", m, e.name, err)
			}
			rec.Components[e.name] = data
		}
		doc.Entities = append(doc.Entities, rec)
	}

	return c.encode(w, doc)
}

type pending struct {
	marker    uint64
	plain     []any
	converted []convertedData
}

type convertedData struct {
	entry *entry
	data  any
}

type loader struct {
	refs map[uint64]*ecs.EntityRef
	dry  map[uint64]struct{}
}

func (l loader) Resolve(marker uint64) (*ecs.EntityRef, error) {
	if l.dry != nil {
		if _, ok := l.dry[marker]; ok {
			return nil, nil
		}
	} else if ref, ok := l.refs[marker]; ok {
		return ref, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnresolvedMarker, marker)
}

// Load reads entities written by Save and spawns them, each with its
// Marker. References between entities are resolved by marker id against
// both the file and entities already in storage. Nothing is spawned when
// the file has errors. It returns the new entities in file order.
func (r *Registry) Load(storage *ecs.Storage, rd io.Reader, format Format) ([]ecs.EntityId, error) {
	c, err := codecFor(format)
	if err != nil {
		return nil, err
	}
	raw, err := io.ReadAll(rd)
	if err != nil {
		return nil, err
	}
	var doc document
	if err := c.unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("saveload: decode %s: %w", format, err)
	}

	existing, err := markedEntities(storage)
	if err != nil {
		return nil, err
	}

	known := make(map[uint64]struct{}, len(existing)+len(doc.Entities))
	for m := range existing {
		known[m] = struct{}{}
	}
	entities := make([]pending, 0, len(doc.Entities))
	for _, rec := range doc.Entities {
		if _, dup := known[rec.Marker]; dup {
			return nil, duplicateMarker(rec.Marker)
		}
		known[rec.Marker] = struct{}{}

		p := pending{marker: rec.Marker}
		names := make([]string, 0, len(rec.Components))
		for name := range rec.Components {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			e, ok := r.byName[name]
			if !ok {
				return nil, fmt.Errorf("%w: %q (marker %d)", ErrUnknownComponent, name, rec.Marker)
			}
			value, err := e.decode(c, rec.Components[name])
			if err != nil {
				return nil, fmt.Errorf("saveload: decode marker %d component %s: %w", rec.Marker, name, err)
			}
			if e.converted {
				p.converted = append(p.converted, convertedData{entry: e, data: value})
			} else {
				p.plain = append(p.plain, value)
			}
		}
		entities = append(entities, p)
	}

	dry := loader{dry: known}
	for _, p := range entities {
		for _, cd := range p.converted {
			if _, err := cd.entry.resolve(cd.data, dry); err != nil {
				return nil, fmt.Errorf("load marker %d component %s: %w", p.marker, cd.entry.name, err)
			}
		}
	}

	registry := storage.Registry()
	ecs.RegisterComponent[Marker](registry)
	for _, e := range r.byName {
		e.ensure(registry)
	}

	refs := make(map[uint64]*ecs.EntityRef, len(known))
	for m, id := range existing {
		refs[m] = storage.CreateEntityRef(id)
	}
	alloc := allocator(storage)
	for _, p := range entities {
		components := append([]any{Marker{ID: p.marker}}, p.plain...)
		refs[p.marker] = storage.CreateEntityRef(storage.Spawn(components...))
		alloc.Reserve(p.marker)
	}

	resolver := loader{refs: refs}
	for _, p := range entities {
		for _, cd := range p.converted {
			value, err := cd.entry.resolve(cd.data, resolver)
			if err != nil {
				return nil, fmt.Errorf("load marker %d component %s: %w", p.marker, cd.entry.name, err)
			}
			storage.AddComponent(refs[p.marker].Id, value)
		}
	}

	out := make([]ecs.EntityId, len(entities))
	for i, p := range entities {
		out[i] = refs[p.marker].Id
	}
	return out, nil
}
