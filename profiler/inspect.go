package profiler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/plus3/ecscore/ecs"
)

const (
	// DefaultPageSize is the number of entities listed per page on /entities.
	DefaultPageSize = 50
	// MaxPageSize caps the limit parameter of /entities.
	MaxPageSize = 1000
)

var errEntityNotFound = errors.New("entity not found")

// EntityInfo is one row of the entity listing.
type EntityInfo struct {
	ID         ecs.EntityId `json:"id"`
	Archetype  uint32       `json:"archetype"`
	Components []string     `json:"components"`
}

// EntityPage is one page of the entity listing.
type EntityPage struct {
	Total    int          `json:"total"`
	Page     int          `json:"page"`
	Limit    int          `json:"limit"`
	Entities []EntityInfo `json:"entities"`
}

// FieldValue is one exported field of a component. Value holds the JSON
// encoding of the field, or a quoted %v rendering when it has none.
type FieldValue struct {
	Name  string          `json:"name"`
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// ComponentInfo describes one component of an inspected entity.
type ComponentInfo struct {
	Type   string       `json:"type"`
	Fields []FieldValue `json:"fields"`
}

// EntityDetail is the component breakdown of one entity.
type EntityDetail struct {
	ID         ecs.EntityId    `json:"id"`
	Archetype  uint32          `json:"archetype"`
	Components []ComponentInfo `json:"components"`
}

// inspectRequest runs on the scheduler goroutine between frames, where the
// storage is not being written.
type inspectRequest struct {
	run   func(storage *ecs.Storage) (any, error)
	reply chan inspectReply
}

type inspectReply struct {
	value any
	err   error
}

// inspect queues fn for the next frame and waits for its result.
func (p *Profiler) inspect(ctx context.Context, fn func(storage *ecs.Storage) (any, error)) (any, error) {
	req := inspectRequest{run: fn, reply: make(chan inspectReply, 1)}
	select {
	case p.requests <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-req.reply:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *Profiler) serveInspections(storage *ecs.Storage) {
	for {
		select {
		case req := <-p.requests:
			v, err := runInspection(req, storage)
			req.reply <- inspectReply{value: v, err: err}
		default:
			return
		}
	}
}

// runInspection turns a panic into an error so a bad request never takes
// down the frame loop.
func runInspection(req inspectRequest, storage *ecs.Storage) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("inspection failed: %v", r)
		}
	}()
	return req.run(storage)
}

// listEntities returns the entities whose component type names contain
// every term, sorted by id.
func listEntities(storage *ecs.Storage, terms []string, page, limit int) EntityPage {
	var matched []EntityInfo
	for archetype := range storage.Archetypes() {
		if archetype.Len() == 0 {
			continue
		}
		names := make([]string, 0, len(archetype.Types()))
		for _, t := range archetype.Types() {
			names = append(names, t.String())
		}
		if !matchesAll(names, terms) {
			continue
		}
		for id := range archetype.Iter() {
			matched = append(matched, EntityInfo{ID: id, Archetype: id.ArchetypeId(), Components: names})
		}
	}
	slices.SortFunc(matched, func(a, b EntityInfo) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})

	out := EntityPage{Total: len(matched), Page: page, Limit: limit, Entities: []EntityInfo{}}
	if limit <= 0 || page < 0 || page >= (len(matched)+limit-1)/limit {
		return out
	}
	start := page * limit
	out.Entities = matched[start:min(start+limit, len(matched))]
	return out
}

func matchesAll(names []string, terms []string) bool {
	joined := strings.ToLower(strings.Join(names, " "))
	for _, term := range terms {
		if !strings.Contains(joined, strings.ToLower(term)) {
			return false
		}
	}
	return true
}

func inspectEntity(storage *ecs.Storage, fields *fieldCache, id ecs.EntityId) (EntityDetail, error) {
	if !storage.Alive(id) {
		return EntityDetail{}, fmt.Errorf("%w: %d", errEntityNotFound, id)
	}
	types, values := storage.ComponentsOf(id)
	detail := EntityDetail{ID: id, Archetype: id.ArchetypeId()}
	for i, t := range types {
		info := ComponentInfo{Type: t.String(), Fields: []FieldValue{}}
		v := reflect.ValueOf(values[i])
		if v.Kind() == reflect.Ptr {
			v = v.Elem()
		}
		for _, f := range fields.get(t) {
			info.Fields = append(info.Fields, FieldValue{
				Name:  f.Name,
				Type:  f.Type.String(),
				Value: encodeField(v.Field(f.Index)),
			})
		}
		detail.Components = append(detail.Components, info)
	}
	return detail, nil
}

func encodeField(v reflect.Value) json.RawMessage {
	if b, err := json.Marshal(v.Interface()); err == nil {
		return b
	}
	b, _ := json.Marshal(fmt.Sprintf("%v", v.Interface()))
	return b
}

type fieldInfo struct {
	Name  string
	Type  reflect.Type
	Index int
}

// fieldCache remembers the exported fields of component types.
type fieldCache struct {
	mu     sync.RWMutex
	fields map[reflect.Type][]fieldInfo
}

func newFieldCache() *fieldCache {
	return &fieldCache{fields: make(map[reflect.Type][]fieldInfo)}
}

func (c *fieldCache) get(t reflect.Type) []fieldInfo {
	c.mu.RLock()
	cached, ok := c.fields[t]
	c.mu.RUnlock()
	if ok {
		return cached
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cached, ok := c.fields[t]; ok {
		return cached
	}

	var fields []fieldInfo
	if t.Kind() == reflect.Struct {
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if !field.IsExported() {
				continue
			}
			fields = append(fields, fieldInfo{Name: field.Name, Type: field.Type, Index: i})
		}
	}
	c.fields[t] = fields
	return fields
}
