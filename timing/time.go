// Package timing provides the frame time resource, clocks, stopwatches and
// frame rate limiting used by the game loop.
package timing

import "time"

// DefaultFixedRate is the default number of fixed updates per second.
const DefaultFixedRate = 60

// Time is the per-frame time resource. It lives in storage as a singleton
// and is advanced once per frame by the game loop.
//
// Delta values are scaled by TimeScale; "real" values are not.
type Time struct {
	deltaSeconds     float64
	deltaTime        time.Duration
	deltaRealSeconds float64
	deltaRealTime    time.Duration

	fixedSeconds float64
	fixedTime    time.Duration
	fixedUpdates int64
	accumulator  time.Duration

	frameNumber      int64
	absoluteRealTime time.Duration
	absoluteTime     time.Duration
	timeScale        float64
	paused           bool
}

// NewTime returns a Time with a 1/60 s fixed step and a time scale of 1.
func NewTime() Time {
	t := Time{timeScale: 1}
	t.SetFixedSeconds(1.0 / DefaultFixedRate)
	return t
}

// DeltaSeconds returns the scaled duration of the last frame in seconds.
func (t *Time) DeltaSeconds() float64 { return t.deltaSeconds }

// DeltaTime returns the scaled duration of the last frame.
func (t *Time) DeltaTime() time.Duration { return t.deltaTime }

// DeltaRealSeconds returns the unscaled duration of the last frame in seconds.
func (t *Time) DeltaRealSeconds() float64 { return t.deltaRealSeconds }

// DeltaRealTime returns the unscaled duration of the last frame.
func (t *Time) DeltaRealTime() time.Duration { return t.deltaRealTime }

// FixedSeconds returns the fixed update step in seconds.
func (t *Time) FixedSeconds() float64 { return t.fixedSeconds }

// FixedTime returns the fixed update step.
func (t *Time) FixedTime() time.Duration { return t.fixedTime }

// FixedUpdates returns how many fixed steps have run in total.
func (t *Time) FixedUpdates() int64 { return t.fixedUpdates }

// FrameNumber returns the number of frames advanced so far.
func (t *Time) FrameNumber() int64 { return t.frameNumber }

// AbsoluteRealTime is the unscaled time since the first frame.
func (t *Time) AbsoluteRealTime() time.Duration { return t.absoluteRealTime }

// AbsoluteTime is the scaled time since the first frame.
func (t *Time) AbsoluteTime() time.Duration { return t.absoluteTime }

// AbsoluteTimeSeconds is AbsoluteTime in seconds.
func (t *Time) AbsoluteTimeSeconds() float64 { return t.absoluteTime.Seconds() }

// TimeScale returns the factor applied to real time to get game time.
func (t *Time) TimeScale() float64 { return t.timeScale }

// Paused reports whether game time is frozen.
func (t *Time) Paused() bool { return t.paused }

// SetDeltaTime records the real duration of the last frame and derives the
// scaled values from it. It also advances the absolute clocks.
func (t *Time) SetDeltaTime(real time.Duration) {
	if real < 0 {
		real = 0
	}
	t.deltaRealTime = real
	t.deltaRealSeconds = real.Seconds()
	t.absoluteRealTime += real

	scale := t.timeScale
	if t.paused {
		scale = 0
	}
	t.deltaTime = time.Duration(float64(real) * scale)
	t.deltaSeconds = t.deltaRealSeconds * scale
	t.absoluteTime += t.deltaTime
	t.accumulator += t.deltaTime
}

// SetDeltaSeconds is SetDeltaTime in seconds.
func (t *Time) SetDeltaSeconds(seconds float64) {
	t.SetDeltaTime(time.Duration(seconds * float64(time.Second)))
}

// SetFixedSeconds sets the fixed update step. Non-positive values are ignored.
func (t *Time) SetFixedSeconds(seconds float64) {
	if seconds <= 0 {
		return
	}
	t.fixedSeconds = seconds
	t.fixedTime = time.Duration(seconds * float64(time.Second))
}

// SetTimeScale sets the game time multiplier. Negative values clamp to 0.
func (t *Time) SetTimeScale(scale float64) {
	t.timeScale = max(scale, 0)
}

// SetPaused freezes or resumes game time. Real time keeps advancing.
func (t *Time) SetPaused(paused bool) {
	t.paused = paused
}

// IncrementFrameNumber advances the frame counter.
func (t *Time) IncrementFrameNumber() {
	t.frameNumber++
}

// Advance is SetDeltaTime followed by IncrementFrameNumber.
func (t *Time) Advance(real time.Duration) {
	t.SetDeltaTime(real)
	t.IncrementFrameNumber()
}

// StartFixedUpdate is a no-op hook kept so fixed-step loops read naturally:
//
//	t.StartFixedUpdate()
//	for t.StepFixedUpdate() {
//		runFixedSystems()
//	}
//	t.FinishFixedUpdate()
func (t *Time) StartFixedUpdate() {}

// StepFixedUpdate consumes one fixed step from the accumulator and reports
// whether a fixed update should run.
func (t *Time) StepFixedUpdate() bool {
	if t.fixedTime <= 0 || t.accumulator < t.fixedTime {
		return false
	}
	t.accumulator -= t.fixedTime
	t.fixedUpdates++
	return true
}

// FinishFixedUpdate is the closing counterpart of StartFixedUpdate.
func (t *Time) FinishFixedUpdate() {}

// InterpolationAlpha is how far, as a fraction of one fixed step, game time
// has progressed past the last fixed update.
func (t *Time) InterpolationAlpha() float64 {
	if t.fixedTime <= 0 {
		return 0
	}
	return float64(t.accumulator) / float64(t.fixedTime)
}
