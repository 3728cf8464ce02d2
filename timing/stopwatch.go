package timing

import "time"

// StopwatchState is the lifecycle position of a Stopwatch.
type StopwatchState int

const (
	StopwatchWaiting StopwatchState = iota
	StopwatchStarted
	StopwatchEnded
)

// Stopwatch measures accumulated running time across start/stop cycles.
type Stopwatch struct {
	clock   Clock
	state   StopwatchState
	elapsed time.Duration
	started time.Time
}

// NewStopwatch creates a waiting stopwatch reading the given clock. A nil
// clock means RealClock.
func NewStopwatch(clock Clock) *Stopwatch {
	if clock == nil {
		clock = RealClock{}
	}
	return &Stopwatch{clock: clock}
}

// State returns the current state.
func (s *Stopwatch) State() StopwatchState {
	return s.state
}

// Elapsed returns the accumulated time, including the current run.
func (s *Stopwatch) Elapsed() time.Duration {
	if s.state == StopwatchStarted {
		return s.elapsed + s.clock.Now().Sub(s.started)
	}
	return s.elapsed
}

// Start starts or resumes the stopwatch. No-op if already running.
func (s *Stopwatch) Start() {
	if s.state == StopwatchStarted {
		return
	}
	s.started = s.clock.Now()
	s.state = StopwatchStarted
}

// Stop pauses the stopwatch, keeping the elapsed time.
func (s *Stopwatch) Stop() {
	if s.state != StopwatchStarted {
		return
	}
	s.elapsed += s.clock.Now().Sub(s.started)
	s.state = StopwatchEnded
}

// Restart clears elapsed time and starts again.
func (s *Stopwatch) Restart() {
	s.elapsed = 0
	s.state = StopwatchWaiting
	s.Start()
}

// Reset clears elapsed time and returns to waiting.
func (s *Stopwatch) Reset() {
	s.elapsed = 0
	s.state = StopwatchWaiting
}
