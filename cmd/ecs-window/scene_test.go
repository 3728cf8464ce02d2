package main

import (
	"bytes"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plus3/ecscore/ecs"
	"github.com/plus3/ecscore/internal/config"
	"github.com/plus3/ecscore/internal/engine"
	"github.com/plus3/ecscore/lifecycle"
	"github.com/plus3/ecscore/saveload"
	"github.com/plus3/ecscore/transform"
)

func newSceneEngine(t *testing.T) *engine.Engine {
	t.Helper()
	cfg := config.Default()
	cfg.Features.SaveLoad = true
	e, err := engine.New(cfg,
		engine.WithComponents(registerComponents),
		engine.WithSystems(addSystems),
		engine.WithSaveComponents(registerSaves),
	)
	require.NoError(t, err)
	return e
}

func planetPositions(storage *ecs.Storage) map[ecs.EntityId][2]float64 {
	out := make(map[ecs.EntityId][2]float64)
	view := ecs.NewView[struct {
		*transform.GlobalTransform
		*transform.Parent
		*Spin
	}](storage)
	for id, body := range view.Iter() {
		p := body.GlobalTransform.Translation()
		out[id] = [2]float64{p.X(), p.Y()}
	}
	return out
}

func TestPlanetsOrbitTheSun(t *testing.T) {
	e := newSceneEngine(t)
	spawnScene(e.Storage(), 3, false)

	e.Game().Update(time.Second / 60)
	before := planetPositions(e.Storage())
	require.Len(t, before, 3)

	for range 60 {
		e.Game().Update(time.Second / 60)
	}
	after := planetPositions(e.Storage())

	cx, cy := float64(ScreenWidth/2), float64(ScreenHeight/2)
	for id, p0 := range before {
		p1 := after[id]
		r0 := math.Hypot(p0[0]-cx, p0[1]-cy)
		r1 := math.Hypot(p1[0]-cx, p1[1]-cy)
		assert.InDelta(t, r0, r1, 1e-6, "orbit radius is preserved")
		assert.NotEqual(t, p0, p1, "planet moved")
	}
}

func TestCometsExpire(t *testing.T) {
	e := newSceneEngine(t)
	comets := ecs.NewView[struct{ *lifecycle.DestroyInTime }](e.Storage())
	count := func() int {
		n := 0
		for range comets.Values() {
			n++
		}
		return n
	}

	for range 60 {
		e.Game().Update(time.Second / 60)
	}
	assert.Equal(t, 2, count(), "one comet per half second")

	for range 5 * 60 {
		e.Game().Update(time.Second / 60)
	}
	assert.LessOrEqual(t, count(), 7, "comets older than three seconds are gone")
}

func TestSceneSaveRoundTrip(t *testing.T) {
	src := newSceneEngine(t)
	spawnScene(src.Storage(), 4, true)
	src.Game().Update(time.Second / 60)

	var buf bytes.Buffer
	require.NoError(t, src.Save(&buf, saveload.FormatYAML))

	dst := newSceneEngine(t)
	ids, err := dst.Load(&buf, saveload.FormatYAML)
	require.NoError(t, err)
	// sun, four planets and 0+1+2+0 moons
	assert.Len(t, ids, 8)

	dst.Game().Update(time.Second / 60)
	srcHierarchy := ecs.ReadSingleton[transform.Hierarchy](src.Storage())
	dstHierarchy := ecs.ReadSingleton[transform.Hierarchy](dst.Storage())
	assert.Equal(t, srcHierarchy.Len(), dstHierarchy.Len())
	assert.Len(t, dstHierarchy.Roots(), 1)
}
