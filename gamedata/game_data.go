package gamedata

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/plus3/ecscore/ecs"
	"github.com/plus3/ecscore/timing"
)

// GameData owns a built Scheduler and the storage it runs on.
type GameData struct {
	storage   *ecs.Storage
	scheduler *ecs.Scheduler
	logger    zerolog.Logger
	disposed  bool
}

// Storage returns the world.
func (g *GameData) Storage() *ecs.Storage {
	return g.storage
}

// Scheduler returns the scheduler built by the Builder.
func (g *GameData) Scheduler() *ecs.Scheduler {
	return g.scheduler
}

// Update advances the Time resource, if present, by delta and runs every
// system once. Systems see the scaled delta. It does nothing after Dispose.
func (g *GameData) Update(delta time.Duration) {
	if g.disposed {
		return
	}
	dt := delta.Seconds()
	if t := ecs.ReadSingleton[timing.Time](g.storage); t != nil {
		t.Advance(delta)
		dt = t.DeltaSeconds()
	}
	g.scheduler.Once(dt)
}

// Run calls Update in a loop, measuring frames with clock and pacing them
// with limiter, until ctx is done or the game data is disposed. A nil
// limiter runs unlimited; a nil clock reads the wall clock.
func (g *GameData) Run(ctx context.Context, limiter *timing.FrameLimiter, clock timing.Clock) error {
	if clock == nil {
		clock = timing.RealClock{}
	}
	if limiter == nil {
		limiter = timing.NewFrameLimiter(timing.Unlimited, 0)
	}

	g.logger.Info().
		Stringer("limiter", limiter.Strategy()).
		Dur("frame_time", limiter.FrameTime()).
		Msg("game loop started")

	last := clock.Now()
	limiter.Start()
	for !g.disposed {
		if ctx.Err() != nil {
			break
		}
		now := clock.Now()
		g.Update(now.Sub(last))
		last = now

		if err := limiter.Wait(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				break
			}
			return err
		}
	}

	g.logger.Info().Msg("game loop stopped")
	return nil
}

// Dispose disposes every system. Later calls do nothing.
func (g *GameData) Dispose() {
	if g.disposed {
		return
	}
	g.disposed = true
	g.scheduler.Dispose()
}

// Disposed reports whether Dispose has been called.
func (g *GameData) Disposed() bool {
	return g.disposed
}
