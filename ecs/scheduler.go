package ecs

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrDuplicateSystem is returned when a system name is registered twice.
	ErrDuplicateSystem = errors.New("ecs: duplicate system name")
	// ErrUnknownDependency is returned when a dependency names no earlier system.
	ErrUnknownDependency = errors.New("ecs: unknown system dependency")
)

// SystemPanic carries a panic raised inside a system back to the goroutine
// that called Once.
type SystemPanic struct {
	System string
	Value  any
	Stack  []byte
}

func (p *SystemPanic) Error() string {
	return fmt.Sprintf("ecs: system %q panicked: %v", p.System, p.Value)
}

// SchedulerStats provides statistics about scheduler execution.
type SchedulerStats struct {
	SystemCount     int
	StageCount      int
	Frames          int64
	TotalExecutions int64
	Systems         []SystemStats
}

// SystemStats provides execution statistics for a single system.
type SystemStats struct {
	Name           string
	Stage          int
	ThreadLocal    bool
	ExecutionCount int64
	MinDuration    time.Duration
	MaxDuration    time.Duration
	AvgDuration    time.Duration
	LastDuration   time.Duration
	TotalDuration  time.Duration
}

type systemStatsInternal struct {
	executionCount int64
	minDuration    time.Duration
	maxDuration    time.Duration
	totalDuration  time.Duration
	lastDuration   time.Duration
}

type systemNode struct {
	name        string
	system      System
	stage       int
	threadLocal bool
	reads       map[reflect.Type]struct{}
	writes      map[reflect.Type]struct{}
	queries     []interface{ Execute() }
	stats       systemStatsInternal
}

func (n *systemNode) conflicts(other *systemNode) bool {
	for t := range n.writes {
		if _, ok := other.writes[t]; ok {
			return true
		}
		if _, ok := other.reads[t]; ok {
			return true
		}
	}
	for t := range n.reads {
		if _, ok := other.writes[t]; ok {
			return true
		}
	}
	return false
}

// systemParam is implemented by Query and Singleton.
type systemParam interface {
	Init(storage *Storage)
	accessTypes() []reflect.Type
}

func (s *Singleton[T]) accessTypes() []reflect.Type {
	return []reflect.Type{reflect.TypeFor[T]()}
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithParallel enables or disables concurrent execution of systems that
// share a stage. Parallel execution is the default. When disabled, systems
// run one at a time in registration order.
func WithParallel(enabled bool) SchedulerOption {
	return func(s *Scheduler) { s.parallel = enabled }
}

// WithObserver installs a timing observer (the profiler).
func WithObserver(o Observer) SchedulerOption {
	return func(s *Scheduler) { s.observer = o }
}

// WithLogger sets the scheduler's logger.
func WithLogger(logger zerolog.Logger) SchedulerOption {
	return func(s *Scheduler) { s.logger = logger }
}

// Scheduler dispatches systems once per frame.
//
// Systems are placed into stages. A system never shares a stage with a
// system it depends on, a system added before the last barrier, or an
// earlier system whose component access conflicts with its own, so running
// a stage's systems concurrently gives the same result as running every
// system in registration order. Thread-local systems run after all stages
// on the calling goroutine.
type Scheduler struct {
	storage *Storage
	nodes   []*systemNode
	locals  []*systemNode
	byName  map[string]*systemNode
	stages  [][]*systemNode

	floor        int
	sinceBarrier int

	parallel bool
	observer Observer
	logger   zerolog.Logger

	statsMu  sync.Mutex
	frames   int64
	disposed bool
}

// NewScheduler creates a new scheduler for the given storage.
func NewScheduler(storage *Storage, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		storage:  storage,
		byName:   make(map[string]*systemNode),
		parallel: true,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Storage returns the storage the scheduler runs against.
func (s *Scheduler) Storage() *Storage {
	return s.storage
}

// Register adds an unnamed system. It cannot be used as a dependency.
func (s *Scheduler) Register(system System) {
	if err := s.Add("", system); err != nil {
		panic(err)
	}
}

// Add registers system under name, after every system named in deps.
// name may be empty; empty names cannot be depended on.
func (s *Scheduler) Add(name string, system System, deps ...string) error {
	if name != "" {
		if _, ok := s.byName[name]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateSystem, name)
		}
	}

	node := s.newNode(name, system)
	s.initializeFields(node)

	stage := s.floor
	for _, dep := range deps {
		d, ok := s.byName[dep]
		if !ok || dep == "" {
			return fmt.Errorf("%w: %q required by %q", ErrUnknownDependency, dep, node.name)
		}
		stage = max(stage, d.stage+1)
	}
	for i := len(s.stages) - 1; i >= stage; i-- {
		if s.stageConflicts(i, node) {
			stage = i + 1
			break
		}
	}

	node.stage = stage
	for len(s.stages) <= stage {
		s.stages = append(s.stages, nil)
	}
	s.stages[stage] = append(s.stages[stage], node)
	s.nodes = append(s.nodes, node)
	if name != "" {
		s.byName[name] = node
	}
	s.sinceBarrier++

	s.logger.Debug().
		Str("system", node.name).
		Int("stage", stage).
		Strs("deps", deps).
		Msg("system registered")
	return nil
}

func (s *Scheduler) stageConflicts(i int, node *systemNode) bool {
	for _, other := range s.stages[i] {
		if node.conflicts(other) {
			return true
		}
	}
	return false
}

// AddThreadLocal registers a system that runs on the calling goroutine after
// every other system, in registration order. Barriers do not affect it.
func (s *Scheduler) AddThreadLocal(system System) {
	node := s.newNode("", system)
	node.threadLocal = true
	s.initializeFields(node)
	s.locals = append(s.locals, node)
}

// Barrier makes every system added afterwards wait for every system added
// before. Consecutive barriers collapse into one.
func (s *Scheduler) Barrier() {
	if s.sinceBarrier == 0 {
		return
	}
	s.floor = len(s.stages)
	s.sinceBarrier = 0
}

func (s *Scheduler) newNode(name string, system System) *systemNode {
	if name == "" {
		systemType := reflect.TypeOf(system)
		if systemType.Kind() == reflect.Ptr {
			systemType = systemType.Elem()
		}
		name = systemType.Name()
	}
	node := &systemNode{
		name:   name,
		system: system,
		reads:  make(map[reflect.Type]struct{}),
		writes: make(map[reflect.Type]struct{}),
	}
	node.stats.minDuration = time.Duration(1<<63 - 1)

	if declarer, ok := system.(AccessDeclarer); ok {
		access := declarer.Access()
		for _, t := range access.Reads {
			node.reads[t] = struct{}{}
		}
		for _, t := range access.Writes {
			node.writes[t] = struct{}{}
		}
	}
	return node
}

// initializeFields binds Query and Singleton fields to the storage and
// records their types as accesses. A field tagged `ecs:"read"` only reads.
func (s *Scheduler) initializeFields(node *systemNode) {
	systemValue := reflect.ValueOf(node.system)
	if systemValue.Kind() != reflect.Ptr {
		return
	}
	systemValue = systemValue.Elem()
	if systemValue.Kind() != reflect.Struct {
		return
	}

	systemType := systemValue.Type()
	for i := 0; i < systemValue.NumField(); i++ {
		field := systemValue.Field(i)
		if !field.CanSet() || field.Kind() != reflect.Struct {
			continue
		}

		param, ok := field.Addr().Interface().(systemParam)
		if !ok {
			continue
		}
		param.Init(s.storage)

		readOnly := false
		switch tag := systemType.Field(i).Tag.Get("ecs"); tag {
		case "":
		case "read":
			readOnly = true
		default:
			panic("invalid ecs tag on system field " + systemType.Field(i).Name + ": \"" + tag + "\"")
		}
		for _, t := range param.accessTypes() {
			if readOnly {
				node.reads[t] = struct{}{}
			} else {
				node.writes[t] = struct{}{}
			}
		}

		if q, ok := param.(interface{ Execute() }); ok {
			node.queries = append(node.queries, q)
		}
	}
}

// Once runs every system once with the given delta time and then flushes
// the frame's commands. A system panic is re-raised as *SystemPanic and the
// frame's commands are discarded.
func (s *Scheduler) Once(dt float64) {
	frameStart := time.Now()

	s.statsMu.Lock()
	s.frames++
	frame := newUpdateFrame(dt, s.frames, s.storage)
	s.statsMu.Unlock()

	for _, node := range s.nodes {
		for _, q := range node.queries {
			q.Execute()
		}
	}
	for _, node := range s.locals {
		for _, q := range node.queries {
			q.Execute()
		}
	}

	if s.parallel {
		for _, stage := range s.stages {
			if err := s.runStage(stage, frame); err != nil {
				panic(err)
			}
		}
	} else {
		for _, node := range s.nodes {
			if err := s.runNode(node, frame); err != nil {
				panic(err)
			}
		}
	}
	for _, node := range s.locals {
		if err := s.runNode(node, frame); err != nil {
			panic(err)
		}
	}

	frame.Commands.Flush(s.storage)

	if s.observer != nil {
		s.observer.ObserveFrame(time.Since(frameStart), s.storage)
	}
}

func (s *Scheduler) runStage(stage []*systemNode, frame *UpdateFrame) error {
	if len(stage) < 2 {
		for _, node := range stage {
			if err := s.runNode(node, frame); err != nil {
				return err
			}
		}
		return nil
	}

	var g errgroup.Group
	for _, node := range stage {
		g.Go(func() error {
			return s.runNode(node, frame)
		})
	}
	return g.Wait()
}

func (s *Scheduler) runNode(node *systemNode, frame *UpdateFrame) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &SystemPanic{System: node.name, Value: r, Stack: debug.Stack()}
		}
	}()

	start := time.Now()
	node.system.Execute(frame)
	duration := time.Since(start)

	s.statsMu.Lock()
	stats := &node.stats
	stats.executionCount++
	stats.lastDuration = duration
	stats.totalDuration += duration
	stats.minDuration = min(stats.minDuration, duration)
	stats.maxDuration = max(stats.maxDuration, duration)
	s.statsMu.Unlock()

	if s.observer != nil {
		s.observer.ObserveSystem(node.name, duration)
	}
	return nil
}

// Run executes all systems repeatedly at the given interval until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastTime := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			dt := now.Sub(lastTime).Seconds()
			lastTime = now
			s.Once(dt)
		}
	}
}

// Stages returns system names grouped by stage, for diagnostics.
func (s *Scheduler) Stages() [][]string {
	out := make([][]string, len(s.stages))
	for i, stage := range s.stages {
		for _, node := range stage {
			out[i] = append(out[i], node.name)
		}
	}
	return out
}

// Dispose calls Dispose on every system implementing Disposer, once.
func (s *Scheduler) Dispose() {
	if s.disposed {
		return
	}
	s.disposed = true
	for _, node := range append(append([]*systemNode(nil), s.nodes...), s.locals...) {
		if d, ok := node.system.(Disposer); ok {
			d.Dispose(s.storage)
		}
	}
	s.logger.Debug().Int("systems", len(s.nodes)+len(s.locals)).Msg("scheduler disposed")
}

// GetStats returns statistics about system execution. Systems are listed in
// registration order, thread-local systems last.
func (s *Scheduler) GetStats() *SchedulerStats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	all := append(append([]*systemNode(nil), s.nodes...), s.locals...)
	stats := &SchedulerStats{
		SystemCount: len(all),
		StageCount:  len(s.stages),
		Frames:      s.frames,
		Systems:     make([]SystemStats, len(all)),
	}

	for i, node := range all {
		internal := node.stats
		var avg time.Duration
		if internal.executionCount > 0 {
			avg = internal.totalDuration / time.Duration(internal.executionCount)
		}
		stats.Systems[i] = SystemStats{
			Name:           node.name,
			Stage:          node.stage,
			ThreadLocal:    node.threadLocal,
			ExecutionCount: internal.executionCount,
			MinDuration:    internal.minDuration,
			MaxDuration:    internal.maxDuration,
			AvgDuration:    avg,
			LastDuration:   internal.lastDuration,
			TotalDuration:  internal.totalDuration,
		}
		stats.TotalExecutions += internal.executionCount
	}
	return stats
}
