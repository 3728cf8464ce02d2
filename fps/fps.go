// Package fps measures frame rate from frame durations.
package fps

import (
	"time"

	"github.com/plus3/ecscore/ecs"
	"github.com/plus3/ecscore/ringbuf"
	"github.com/plus3/ecscore/timing"
)

// DefaultSamples is the sample window used by System when it has to
// create the Counter itself.
const DefaultSamples = 20

// Counter keeps the current frame rate and an average over the last few
// frames.
type Counter struct {
	samples  *ringbuf.CircularBuffer[time.Duration]
	sum      time.Duration
	frameFPS float64
}

// NewCounter averages over the last samples frames.
func NewCounter(samples int) Counter {
	return Counter{samples: ringbuf.New[time.Duration](samples)}
}

// Push records the duration of one frame. Non-positive durations are
// ignored.
func (c *Counter) Push(d time.Duration) {
	if d <= 0 {
		return
	}
	if c.samples == nil {
		c.samples = ringbuf.New[time.Duration](DefaultSamples)
	}
	if old, evicted := c.samples.Push(d); evicted {
		c.sum -= old
	}
	c.sum += d
	c.frameFPS = float64(time.Second) / float64(d)
}

// FrameFPS is the rate implied by the last frame alone.
func (c *Counter) FrameFPS() float64 {
	return c.frameFPS
}

// SampledFPS is the average rate over the sample window.
func (c *Counter) SampledFPS() float64 {
	if c.samples == nil || c.sum <= 0 {
		return 0
	}
	return float64(c.samples.Len()) * float64(time.Second) / float64(c.sum)
}

// System feeds the Counter resource from the real frame delta of the Time
// resource.
type System struct {
	Time    ecs.Singleton[timing.Time] `ecs:"read"`
	Counter ecs.Singleton[Counter]
}

func (s *System) Execute(frame *ecs.UpdateFrame) {
	t := s.Time.Get()
	c := s.Counter.Get()
	if t == nil || c == nil {
		return
	}
	c.Push(t.DeltaRealTime())
}

// Bundle adds the Counter resource and System.
type Bundle struct {
	Samples int
}

func (b Bundle) Build(storage *ecs.Storage, scheduler *ecs.Scheduler) error {
	samples := b.Samples
	if samples <= 0 {
		samples = DefaultSamples
	}
	if ecs.ReadSingleton[Counter](storage) == nil {
		storage.AddSingleton(NewCounter(samples))
	}
	return scheduler.Add("fps_counter_system", &System{})
}
