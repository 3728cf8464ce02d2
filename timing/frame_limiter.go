package timing

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// LimitStrategy controls how a FrameLimiter waits out the rest of a frame.
type LimitStrategy int

const (
	// Unlimited never waits.
	Unlimited LimitStrategy = iota
	// Yield spins on runtime.Gosched until the frame deadline.
	Yield
	// Sleep sleeps until the frame deadline.
	Sleep
	// SleepAndYield sleeps until a margin before the deadline, then yields.
	SleepAndYield
)

func (s LimitStrategy) String() string {
	switch s {
	case Unlimited:
		return "unlimited"
	case Yield:
		return "yield"
	case Sleep:
		return "sleep"
	case SleepAndYield:
		return "sleep_and_yield"
	default:
		return fmt.Sprintf("LimitStrategy(%d)", int(s))
	}
}

// ParseLimitStrategy parses the names returned by LimitStrategy.String.
func ParseLimitStrategy(name string) (LimitStrategy, error) {
	switch strings.ToLower(name) {
	case "unlimited", "":
		return Unlimited, nil
	case "yield":
		return Yield, nil
	case "sleep":
		return Sleep, nil
	case "sleep_and_yield", "sleepandyield":
		return SleepAndYield, nil
	}
	return Unlimited, fmt.Errorf("timing: unknown limit strategy %q", name)
}

// DefaultYieldMargin is the SleepAndYield margin used when none is given.
const DefaultYieldMargin = 2 * time.Millisecond

// FrameLimiter caps the frame rate of a loop.
//
//	limiter.Start()
//	for {
//		update()
//		if err := limiter.Wait(ctx); err != nil {
//			return err
//		}
//	}
type FrameLimiter struct {
	strategy  LimitStrategy
	frameTime time.Duration
	margin    time.Duration
	clock     Clock
	sleep     func(context.Context, time.Duration) error
	lastCall  time.Time
}

// NewFrameLimiter limits to fps frames per second. A non-positive fps
// disables limiting.
func NewFrameLimiter(strategy LimitStrategy, fps int) *FrameLimiter {
	l := &FrameLimiter{
		strategy: strategy,
		margin:   DefaultYieldMargin,
		clock:    RealClock{},
		sleep:    sleepCtx,
	}
	l.SetFPS(fps)
	return l
}

// NewSleepAndYieldLimiter is a SleepAndYield limiter with a custom margin.
func NewSleepAndYieldLimiter(fps int, margin time.Duration) *FrameLimiter {
	l := NewFrameLimiter(SleepAndYield, fps)
	l.margin = margin
	return l
}

// WithClock replaces the clock and the sleep function, so a ManualClock can
// drive the limiter. The sleep function should advance the clock.
func (l *FrameLimiter) WithClock(clock Clock, sleep func(context.Context, time.Duration) error) *FrameLimiter {
	l.clock = clock
	if sleep != nil {
		l.sleep = sleep
	}
	return l
}

// SetFPS changes the target rate.
func (l *FrameLimiter) SetFPS(fps int) {
	if fps <= 0 {
		l.frameTime = 0
		return
	}
	l.frameTime = time.Second / time.Duration(fps)
}

// FrameTime is the target duration of one frame, or 0 when unlimited.
func (l *FrameLimiter) FrameTime() time.Duration {
	return l.frameTime
}

// Strategy returns the wait strategy.
func (l *FrameLimiter) Strategy() LimitStrategy {
	return l.strategy
}

// Start marks the beginning of the first frame.
func (l *FrameLimiter) Start() {
	l.lastCall = l.clock.Now()
}

// Wait blocks until the current frame has lasted at least FrameTime, then
// starts the next frame. It returns ctx.Err() if ctx ends first.
func (l *FrameLimiter) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if l.lastCall.IsZero() {
		l.Start()
	}

	if l.strategy != Unlimited && l.frameTime > 0 {
		deadline := l.lastCall.Add(l.frameTime)
		var err error
		switch l.strategy {
		case Yield:
			err = l.yieldUntil(ctx, deadline)
		case Sleep:
			err = l.sleepUntil(ctx, deadline)
		case SleepAndYield:
			if err = l.sleepUntil(ctx, deadline.Add(-l.margin)); err == nil {
				err = l.yieldUntil(ctx, deadline)
			}
		}
		if err != nil {
			return err
		}
	}

	l.lastCall = l.clock.Now()
	return nil
}

func (l *FrameLimiter) sleepUntil(ctx context.Context, deadline time.Time) error {
	d := deadline.Sub(l.clock.Now())
	if d <= 0 {
		return nil
	}
	return l.sleep(ctx, d)
}

func (l *FrameLimiter) yieldUntil(ctx context.Context, deadline time.Time) error {
	for l.clock.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return err
		}
		runtime.Gosched()
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
