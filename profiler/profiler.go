// Package profiler exports scheduler and storage measurements as
// Prometheus metrics and serves them over HTTP.
package profiler

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/plus3/ecscore/ecs"
)

// DefaultSnapshotInterval is how often the storage breakdown served on
// /stats/storage is refreshed.
const DefaultSnapshotInterval = time.Second

// Option configures a Profiler.
type Option func(*Profiler)

// WithNamespace sets the metric namespace. The default is "ecs".
func WithNamespace(ns string) Option {
	return func(p *Profiler) { p.namespace = ns }
}

// WithSnapshotInterval sets how often the storage breakdown is refreshed.
func WithSnapshotInterval(d time.Duration) Option {
	return func(p *Profiler) { p.snapshotEvery = d }
}

// WithLogger sets the logger used for slow frame warnings and the server.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Profiler) { p.logger = logger }
}

// WithInspectTimeout bounds how long /entities requests wait for the next
// frame. The default is 2s.
func WithInspectTimeout(d time.Duration) Option {
	return func(p *Profiler) { p.inspectTimeout = d }
}

// WithSlowFrame logs a warning for frames longer than d. Zero disables it.
func WithSlowFrame(d time.Duration) Option {
	return func(p *Profiler) { p.slowFrame = d }
}

// Profiler implements ecs.Observer. Install it with ecs.WithObserver.
type Profiler struct {
	namespace     string
	snapshotEvery time.Duration
	slowFrame     time.Duration
	logger        zerolog.Logger

	inspectTimeout time.Duration
	requests       chan inspectRequest
	fields         *fieldCache

	systemDuration *prometheus.HistogramVec
	frameDuration  prometheus.Histogram
	frames         prometheus.Counter
	entities       prometheus.Gauge
	archetypes     prometheus.Gauge

	mu           sync.Mutex
	snapshot     ecs.StorageStats
	snapshotTime time.Time
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer, opts ...Option) (*Profiler, error) {
	p := &Profiler{
		namespace:     "ecs",
		snapshotEvery: DefaultSnapshotInterval,
		logger:        zerolog.Nop(),

		inspectTimeout: 2 * time.Second,
		requests:       make(chan inspectRequest, 16),
		fields:         newFieldCache(),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.systemDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "scheduler",
			Name:      "system_duration_seconds",
			Help:      "Duration of one system run in seconds",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		},
		[]string{"system"},
	)
	p.frameDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "scheduler",
			Name:      "frame_duration_seconds",
			Help:      "Duration of one scheduler frame in seconds",
			Buckets:   prometheus.ExponentialBuckets(1e-5, 4, 10),
		},
	)
	p.frames = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "scheduler",
			Name:      "frames_total",
			Help:      "Total number of frames run",
		},
	)
	p.entities = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "storage",
			Name:      "entities",
			Help:      "Live entities at the end of the last frame",
		},
	)
	p.archetypes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "storage",
			Name:      "archetypes",
			Help:      "Non-empty archetypes at the last storage snapshot",
		},
	)

	for _, c := range []prometheus.Collector{p.systemDuration, p.frameDuration, p.frames, p.entities, p.archetypes} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// ObserveSystem records one system run.
func (p *Profiler) ObserveSystem(name string, d time.Duration) {
	p.systemDuration.WithLabelValues(name).Observe(d.Seconds())
}

// ObserveFrame records one frame and answers pending entity inspections.
// It runs on the scheduler goroutine after commands are flushed, so it may
// read storage.
func (p *Profiler) ObserveFrame(d time.Duration, storage *ecs.Storage) {
	p.frameDuration.Observe(d.Seconds())
	p.frames.Inc()
	p.entities.Set(float64(storage.EntityCount()))
	p.serveInspections(storage)

	if p.slowFrame > 0 && d > p.slowFrame {
		p.logger.Warn().Dur("duration", d).Dur("budget", p.slowFrame).Msg("slow frame")
	}

	now := time.Now()
	p.mu.Lock()
	due := p.snapshotTime.IsZero() || now.Sub(p.snapshotTime) >= p.snapshotEvery
	p.mu.Unlock()
	if !due {
		return
	}

	stats := storage.CollectStats()
	p.archetypes.Set(float64(stats.ArchetypeCount))

	p.mu.Lock()
	p.snapshot = stats
	p.snapshotTime = now
	p.mu.Unlock()
}

// StorageSnapshot returns the last storage breakdown and when it was taken.
func (p *Profiler) StorageSnapshot() (ecs.StorageStats, time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot, p.snapshotTime
}
