// Package ebitenloop drives a gamedata.GameData from an Ebiten window.
package ebitenloop

import (
	"time"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/plus3/ecscore/ecs"
	"github.com/plus3/ecscore/gamedata"
	"github.com/plus3/ecscore/timing"
)

// DrawFunc renders the world onto screen. It runs on the Ebiten draw
// goroutine between updates, so it may read storage freely.
type DrawFunc func(screen *ebiten.Image, storage *ecs.Storage)

// Option configures a Game.
type Option func(*Game)

// WithClock sets the clock used to measure frame deltas.
func WithClock(clock timing.Clock) Option {
	return func(g *Game) { g.clock = clock }
}

// WithDraw sets the render callback.
func WithDraw(draw DrawFunc) Option {
	return func(g *Game) { g.draw = draw }
}

// WithLayout fixes the logical screen size. Without it the logical size
// follows the window.
func WithLayout(width, height int) Option {
	return func(g *Game) {
		g.width = width
		g.height = height
	}
}

// WithQuit sets a predicate checked before every update. When it returns
// true the game data is disposed and the window closes.
func WithQuit(quit func() bool) Option {
	return func(g *Game) { g.quit = quit }
}

// Game implements ebiten.Game on top of a GameData.
type Game struct {
	data   *gamedata.GameData
	clock  timing.Clock
	draw   DrawFunc
	quit   func() bool
	width  int
	height int
	last   time.Time
}

// New wraps data.
func New(data *gamedata.GameData, opts ...Option) *Game {
	g := &Game{data: data, clock: timing.RealClock{}}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Update runs one frame with the time elapsed since the previous Update.
// The first frame has a zero delta.
func (g *Game) Update() error {
	if g.quit != nil && g.quit() {
		g.data.Dispose()
	}
	if g.data.Disposed() {
		return ebiten.Termination
	}

	now := g.clock.Now()
	if g.last.IsZero() {
		g.last = now
	}
	g.data.Update(now.Sub(g.last))
	g.last = now
	return nil
}

func (g *Game) Draw(screen *ebiten.Image) {
	if g.draw != nil {
		g.draw(screen, g.data.Storage())
	}
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	if g.width > 0 && g.height > 0 {
		return g.width, g.height
	}
	return outsideWidth, outsideHeight
}

// WindowOptions configures the window opened by Run.
type WindowOptions struct {
	Title  string
	Width  int
	Height int
	// TPS is the update rate. Zero keeps Ebiten's default of 60.
	TPS int
}

// Run opens a window and blocks until it is closed or the game data is
// disposed. The game data is always disposed on return.
func Run(g *Game, opts WindowOptions) error {
	defer g.data.Dispose()

	ebiten.SetWindowTitle(opts.Title)
	if opts.Width > 0 && opts.Height > 0 {
		ebiten.SetWindowSize(opts.Width, opts.Height)
	}
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	if opts.TPS > 0 {
		ebiten.SetTPS(opts.TPS)
	}
	return ebiten.RunGame(g)
}
