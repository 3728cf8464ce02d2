package main

import (
	"fmt"
	"image/color"
	"math"
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"github.com/plus3/ecscore/ecs"
	"github.com/plus3/ecscore/fps"
	"github.com/plus3/ecscore/gamedata"
	"github.com/plus3/ecscore/lifecycle"
	"github.com/plus3/ecscore/saveload"
	"github.com/plus3/ecscore/timing"
	"github.com/plus3/ecscore/transform"
)

const (
	ScreenWidth  = 1280
	ScreenHeight = 720
)

var pastelColors = []color.RGBA{
	{255, 179, 186, 255},
	{179, 229, 252, 255},
	{255, 223, 186, 255},
	{186, 255, 201, 255},
	{255, 200, 221, 255},
	{217, 186, 255, 255},
}

// Spin turns an entity around its Z axis. Children orbit with it.
type Spin struct {
	Speed float64 `yaml:"speed" toml:"speed" json:"speed"`
}

// Velocity moves an entity in screen units per second.
type Velocity struct {
	X float64 `yaml:"x" toml:"x" json:"x"`
	Y float64 `yaml:"y" toml:"y" json:"y"`
}

type Sprite struct {
	Size  float32    `yaml:"size" toml:"size" json:"size"`
	Color color.RGBA `yaml:"color" toml:"color" json:"color"`
}

func registerComponents(r *ecs.ComponentRegistry) {
	ecs.RegisterComponent[Spin](r)
	ecs.RegisterComponent[Velocity](r)
	ecs.RegisterComponent[Sprite](r)
}

func registerSaves(r *saveload.Registry) {
	saveload.Register[Spin](r, "spin")
	saveload.Register[Velocity](r, "velocity")
	saveload.Register[Sprite](r, "sprite")
}

func addSystems(b *gamedata.Builder) {
	b.With(&SpinSystem{}, "spin_system").
		With(&DriftSystem{}, "drift_system").
		With(&CometSystem{Every: 0.5, rng: rand.New(rand.NewPCG(1, 2))}, "comet_system")
}

type SpinSystem struct {
	Bodies ecs.Query[struct {
		*transform.Transform
		*Spin
	}]
}

func (s *SpinSystem) Execute(frame *ecs.UpdateFrame) {
	for body := range s.Bodies.Values() {
		body.Transform.RotateZ(body.Spin.Speed * frame.DeltaTime)
	}
}

type DriftSystem struct {
	Bodies ecs.Query[struct {
		*transform.Transform
		*Velocity
	}]
}

func (s *DriftSystem) Execute(frame *ecs.UpdateFrame) {
	for body := range s.Bodies.Values() {
		body.Transform.Translate(mgl64.Vec3{body.Velocity.X, body.Velocity.Y, 0}.Mul(frame.DeltaTime))
	}
}

// CometSystem spawns a short-lived comet every Every seconds of game time.
type CometSystem struct {
	Time  ecs.Singleton[timing.Time] `ecs:"read"`
	Every float64

	next float64
	rng  *rand.Rand
}

func (s *CometSystem) Execute(frame *ecs.UpdateFrame) {
	t := s.Time.Get()
	if t == nil || t.AbsoluteTimeSeconds() < s.next {
		return
	}
	s.next = t.AbsoluteTimeSeconds() + s.Every

	angle := s.rng.Float64() * 2 * math.Pi
	speed := 150 + s.rng.Float64()*150
	frame.Commands.Spawn(
		transform.FromTranslation(mgl64.Vec3{ScreenWidth / 2, ScreenHeight / 2, 0}),
		Velocity{X: math.Cos(angle) * speed, Y: math.Sin(angle) * speed},
		Sprite{Size: 4, Color: color.RGBA{250, 250, 250, 255}},
		lifecycle.DestroyInTime{Timer: 3},
	)
}

// spawnScene builds a sun with orbiting planets and moons. Every body is
// marked for saving when mark is true.
func spawnScene(storage *ecs.Storage, planets int, mark bool) {
	spawn := func(components ...any) ecs.EntityId {
		id := storage.Spawn(components...)
		if mark {
			_, id = saveload.Mark(storage, id)
		}
		return id
	}

	sun := spawn(
		transform.FromTranslation(mgl64.Vec3{ScreenWidth / 2, ScreenHeight / 2, 0}),
		Spin{Speed: 0.2},
		Sprite{Size: 48, Color: color.RGBA{255, 223, 120, 255}},
	)

	for i := range planets {
		distance := 90 + float64(i)*50
		planet := spawn(
			transform.FromTranslation(mgl64.Vec3{distance, 0, 0}),
			Spin{Speed: 0.5 + float64(i%3)*0.4},
			Sprite{Size: 18, Color: pastelColors[i%len(pastelColors)]},
			transform.NewParent(storage, sun),
		)
		for m := range i % 3 {
			spawn(
				transform.FromTranslation(mgl64.Vec3{20 + float64(m)*10, 0, 0}),
				Sprite{Size: 6, Color: color.RGBA{200, 200, 200, 255}},
				transform.NewParent(storage, planet),
			)
		}
	}
}

type renderer struct {
	bodies *ecs.View[struct {
		*transform.GlobalTransform
		*Sprite
	}]
}

func newRenderer(storage *ecs.Storage) *renderer {
	return &renderer{
		bodies: ecs.NewView[struct {
			*transform.GlobalTransform
			*Sprite
		}](storage),
	}
}

func (r *renderer) Draw(screen *ebiten.Image, storage *ecs.Storage) {
	screen.Fill(color.RGBA{24, 24, 32, 255})

	for body := range r.bodies.Values() {
		p := body.GlobalTransform.Translation()
		size := body.Sprite.Size
		vector.DrawFilledRect(screen, float32(p.X())-size/2, float32(p.Y())-size/2, size, size, body.Sprite.Color, false)
	}

	var rate float64
	if counter := ecs.ReadSingleton[fps.Counter](storage); counter != nil {
		rate = counter.SampledFPS()
	}
	ebitenutil.DebugPrint(screen, fmt.Sprintf("FPS %.1f  entities %d  [esc] quit", rate, storage.EntityCount()))
}
