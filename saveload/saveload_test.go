package saveload_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plus3/ecscore/ecs"
	"github.com/plus3/ecscore/lifecycle"
	"github.com/plus3/ecscore/saveload"
	"github.com/plus3/ecscore/transform"
)

type Position struct {
	X float64 `yaml:"x" toml:"x" json:"x"`
	Y float64 `yaml:"y" toml:"y" json:"y"`
}

type Label struct {
	Text string `yaml:"text" toml:"text" json:"text"`
}

type Secret struct {
	Code int
}

func newRegistry() *saveload.Registry {
	r := saveload.NewRegistry()
	saveload.Register[Position](r, "position")
	saveload.Register[Label](r, "label")
	saveload.RegisterTransform(r)
	saveload.RegisterLifecycle(r)
	return r
}

func newStorage() *ecs.Storage {
	registry := ecs.NewComponentRegistry()
	ecs.RegisterComponent[Position](registry)
	ecs.RegisterComponent[Label](registry)
	ecs.RegisterComponent[Secret](registry)
	ecs.RegisterComponent[transform.Transform](registry)
	ecs.RegisterComponent[transform.Parent](registry)
	ecs.RegisterComponent[lifecycle.DestroyInTime](registry)
	ecs.RegisterComponent[saveload.Marker](registry)
	return ecs.NewStorage(registry)
}

type world struct {
	storage *ecs.Storage
	root    *ecs.EntityRef
	child   *ecs.EntityRef
}

func buildWorld(t *testing.T) world {
	t.Helper()
	storage := newStorage()

	rootTransform := transform.FromTranslation(mgl64.Vec3{1, 2, 3})
	rootTransform.RotateY(0.5)
	root := storage.CreateEntityRef(storage.Spawn(rootTransform, Position{X: 1.5, Y: -2}, Secret{Code: 7}))
	child := storage.CreateEntityRef(storage.Spawn(
		transform.Identity(),
		transform.NewParent(storage, root.Id),
		Label{Text: "child: \"quoted\""},
		lifecycle.DestroyInTime{Timer: 2.5},
	))
	storage.Spawn(Position{X: 100})

	// Child first so marker order differs from spawn order.
	saveload.Mark(storage, child.Id)
	saveload.Mark(storage, root.Id)
	return world{storage: storage, root: root, child: child}
}

func TestRoundTrip(t *testing.T) {
	for _, format := range []saveload.Format{saveload.FormatYAML, saveload.FormatTOML, saveload.FormatJSON} {
		t.Run(string(format), func(t *testing.T) {
			w := buildWorld(t)
			registry := newRegistry()

			var buf bytes.Buffer
			require.NoError(t, registry.Save(w.storage, &buf, format))
			assert.NotContains(t, buf.String(), "Code", "unregistered components are not saved")

			loaded := newStorage()
			ids, err := registry.Load(loaded, &buf, format)
			require.NoError(t, err)
			require.Len(t, ids, 2)
			assert.Equal(t, 2, loaded.EntityCount())

			childID, rootID := ids[0], ids[1]
			assert.Equal(t, uint64(1), ecs.ReadComponent[saveload.Marker](loaded, childID).ID)
			assert.Equal(t, uint64(2), ecs.ReadComponent[saveload.Marker](loaded, rootID).ID)

			rootTransform := ecs.ReadComponent[transform.Transform](loaded, rootID)
			require.NotNil(t, rootTransform)
			assert.True(t, rootTransform.ApproxEqual(*ecs.ReadComponent[transform.Transform](w.storage, w.root.Id)))
			assert.Equal(t, Position{X: 1.5, Y: -2}, *ecs.ReadComponent[Position](loaded, rootID))
			assert.Nil(t, ecs.ReadComponent[Secret](loaded, rootID))

			assert.Equal(t, `child: "quoted"`, ecs.ReadComponent[Label](loaded, childID).Text)
			assert.Equal(t, 2.5, ecs.ReadComponent[lifecycle.DestroyInTime](loaded, childID).Timer)

			parent := ecs.ReadComponent[transform.Parent](loaded, childID)
			require.NotNil(t, parent)
			require.True(t, parent.Entity.Valid())
			assert.Equal(t, rootID, parent.Entity.Id)

			next := ecs.ReadSingleton[saveload.MarkerAllocator](loaded).Allocate()
			assert.Equal(t, uint64(3), next, "allocator skips loaded markers")
		})
	}
}

func TestLoadResolvesAgainstExistingEntities(t *testing.T) {
	storage := newStorage()
	root := storage.Spawn(transform.Identity(), saveload.Marker{ID: 10})

	doc := `
entities:
  - marker: 11
    components:
      transform: {translation: [0, 1, 0], rotation: {w: 1, v: [0, 0, 0]}, scale: [1, 1, 1]}
      parent: {parent: 10}
`
	ids, err := newRegistry().Load(storage, strings.NewReader(doc), saveload.FormatYAML)
	require.NoError(t, err)
	require.Len(t, ids, 1)

	parent := ecs.ReadComponent[transform.Parent](storage, ids[0])
	require.NotNil(t, parent)
	assert.Equal(t, root, parent.Entity.Id)
}

func TestLoadErrors(t *testing.T) {
	cases := map[string]struct {
		doc  string
		want error
	}{
		"unknown component": {
			doc:  "entities:\n  - marker: 1\n    components:\n      bogus: {}\n",
			want: saveload.ErrUnknownComponent,
		},
		"duplicate marker": {
			doc:  "entities:\n  - marker: 1\n  - marker: 1\n",
			want: saveload.ErrDuplicateMarker,
		},
		"unresolved marker": {
			doc:  "entities:\n  - marker: 1\n    components:\n      parent: {parent: 99}\n",
			want: saveload.ErrUnresolvedMarker,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			storage := newStorage()
			_, err := newRegistry().Load(storage, strings.NewReader(tc.doc), saveload.FormatYAML)
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, 0, storage.EntityCount(), "nothing is spawned on error")
		})
	}
}

func TestLoadTwiceReportsDuplicateMarkers(t *testing.T) {
	w := buildWorld(t)
	registry := newRegistry()

	var buf bytes.Buffer
	require.NoError(t, registry.Save(w.storage, &buf, saveload.FormatJSON))
	_, err := registry.Load(w.storage, &buf, saveload.FormatJSON)
	assert.ErrorIs(t, err, saveload.ErrDuplicateMarker)
}

func TestSaveUnmarkedParent(t *testing.T) {
	storage := newStorage()
	root := storage.Spawn(transform.Identity())
	child := storage.Spawn(transform.Identity(), transform.NewParent(storage, root))
	saveload.Mark(storage, child)

	err := newRegistry().Save(storage, &bytes.Buffer{}, saveload.FormatYAML)
	assert.ErrorIs(t, err, saveload.ErrUnresolvedMarker)
}

func TestUnknownFormat(t *testing.T) {
	storage := newStorage()
	registry := newRegistry()

	assert.ErrorIs(t, registry.Save(storage, &bytes.Buffer{}, "xml"), saveload.ErrUnknownFormat)
	_, err := registry.Load(storage, strings.NewReader(""), "xml")
	assert.ErrorIs(t, err, saveload.ErrUnknownFormat)

	_, err = saveload.FormatFromPath("world.xml")
	assert.ErrorIs(t, err, saveload.ErrUnknownFormat)
	f, err := saveload.FormatFromPath("world.YML")
	require.NoError(t, err)
	assert.Equal(t, saveload.FormatYAML, f)
}

func TestMark(t *testing.T) {
	storage := newStorage()
	a := storage.Spawn(Position{})
	b := storage.Spawn(Position{})

	ma, a := saveload.Mark(storage, a)
	mb, _ := saveload.Mark(storage, b)
	again, _ := saveload.Mark(storage, a)

	assert.Equal(t, uint64(1), ma)
	assert.Equal(t, uint64(2), mb)
	assert.Equal(t, ma, again)
}

func TestRegistryPanicsOnDuplicates(t *testing.T) {
	r := saveload.NewRegistry()
	saveload.Register[Position](r, "position")
	assert.Panics(t, func() { saveload.Register[Position](r, "pos") })
	assert.Panics(t, func() { saveload.Register[Label](r, "position") })
	assert.Equal(t, []string{"position"}, r.Names())
}
