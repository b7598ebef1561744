package ecs

import (
	"context"
	"fmt"
	"reflect"
	"runtime"
	"slices"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

// SchedulerStats provides statistics about scheduler execution.
type SchedulerStats struct {
	SystemCount     int
	TotalExecutions int64
	Passes          int64
	Workers         int
	Systems         []SystemStats
}

// SystemStats provides execution statistics for a single system.
type SystemStats struct {
	Name           string
	ExecutionCount int64
	MinDuration    time.Duration
	MaxDuration    time.Duration
	AvgDuration    time.Duration
	LastDuration   time.Duration
	TotalDuration  time.Duration
	// SkipCount is how many passes the system sat out because a run
	// condition was false.
	SkipCount int64
}

type systemStatsInternal struct {
	executionCount int64
	minDuration    time.Duration
	maxDuration    time.Duration
	totalDuration  time.Duration
	lastDuration   time.Duration
	skipCount      int64
}

func (s *systemStatsInternal) record(d time.Duration) {
	s.executionCount++
	s.lastDuration = d
	s.totalDuration += d
	if d < s.minDuration {
		s.minDuration = d
	}
	if d > s.maxDuration {
		s.maxDuration = d
	}
}

// PassState is the phase a Scheduler is in.
type PassState int32

const (
	PassIdle PassState = iota
	PassAnalyzing
	PassDispatching
	PassDraining
)

func (p PassState) String() string {
	switch p {
	case PassIdle:
		return "idle"
	case PassAnalyzing:
		return "analyzing"
	case PassDispatching:
		return "dispatching"
	case PassDraining:
		return "draining"
	}
	return fmt.Sprintf("PassState(%d)", int32(p))
}

// AmbiguityPolicy decides what Build does with conflicting systems that have
// no explicit order between them.
type AmbiguityPolicy int

const (
	// AmbiguityWarn logs every ambiguous pair and orders it by registration.
	AmbiguityWarn AmbiguityPolicy = iota
	// AmbiguityIgnore orders ambiguous pairs by registration silently.
	AmbiguityIgnore
	// AmbiguityError makes Build fail with ErrAmbiguousSystems.
	AmbiguityError
)

// SystemHandle refers to a registered system in ordering constraints.
type SystemHandle struct {
	scheduler *Scheduler
	index     int
}

type systemRef struct {
	handle SystemHandle
	name   string
}

type systemEntry struct {
	scheduler *Scheduler
	system    System
	meta      *systemMeta
	commands  *Commands
	stats     systemStatsInternal

	after         []systemRef
	before        []systemRef
	ambiguous     []systemRef
	ambiguousSelf bool
	conditions    []Condition

	// Per pass: whether the conditions held, and the last-run tick to
	// restore if the pass is aborted.
	skip   bool
	rewind Tick
}

// shouldRun evaluates the run conditions. All of them must hold.
func (e *systemEntry) shouldRun(w *World) bool {
	for _, cond := range e.conditions {
		if !cond(w) {
			return false
		}
	}
	return true
}

// ambiguousWith reports whether either system waived ambiguity reporting
// against the other.
func (e *systemEntry) ambiguousWith(other *systemEntry) bool {
	if e.ambiguousSelf || other.ambiguousSelf {
		return true
	}
	return e.refersTo(e.ambiguous, other) || other.refersTo(other.ambiguous, e)
}

func (e *systemEntry) refersTo(refs []systemRef, other *systemEntry) bool {
	for _, ref := range refs {
		if ref.name != "" && ref.name == other.meta.name {
			return true
		}
		if ref.name == "" && ref.handle.scheduler == other.scheduler &&
			ref.handle.index >= 0 && ref.handle.index < len(other.scheduler.systems) &&
			other.scheduler.systems[ref.handle.index] == other {
			return true
		}
	}
	return false
}

type systemConfig struct {
	name          string
	after         []systemRef
	before        []systemRef
	ambiguous     []systemRef
	ambiguousSelf bool
	exclusive     bool
	conditions    []Condition
	access        []func(w *World, m *systemMeta)
}

// SystemOption configures a system at registration.
type SystemOption func(*systemConfig)

// Named overrides the system name used in logs, stats and name references.
func Named(name string) SystemOption {
	return func(c *systemConfig) { c.name = name }
}

// After runs the system after each of the given systems.
func After(systems ...SystemHandle) SystemOption {
	return func(c *systemConfig) {
		for _, h := range systems {
			c.after = append(c.after, systemRef{handle: h})
		}
	}
}

// Before runs the system before each of the given systems.
func Before(systems ...SystemHandle) SystemOption {
	return func(c *systemConfig) {
		for _, h := range systems {
			c.before = append(c.before, systemRef{handle: h})
		}
	}
}

// AfterNamed is After by system name, resolved when the schedule is built.
func AfterNamed(names ...string) SystemOption {
	return func(c *systemConfig) {
		for _, n := range names {
			c.after = append(c.after, systemRef{name: n})
		}
	}
}

// BeforeNamed is Before by system name, resolved when the schedule is built.
func BeforeNamed(names ...string) SystemOption {
	return func(c *systemConfig) {
		for _, n := range names {
			c.before = append(c.before, systemRef{name: n})
		}
	}
}

// AmbiguousWith suppresses ambiguity reports between the system and the
// given ones. Without arguments it suppresses them against every system.
func AmbiguousWith(systems ...SystemHandle) SystemOption {
	return func(c *systemConfig) {
		if len(systems) == 0 {
			c.ambiguousSelf = true
		}
		for _, h := range systems {
			c.ambiguous = append(c.ambiguous, systemRef{handle: h})
		}
	}
}

// Reads declares read access to component T, for systems whose access is not
// visible in their fields.
func Reads[T any]() SystemOption {
	return func(c *systemConfig) {
		c.access = append(c.access, func(w *World, m *systemMeta) {
			m.access.AddUnfilteredRead(w.registry.mustIdOf(reflect.TypeFor[T]()))
		})
	}
}

// Writes declares write access to component T.
func Writes[T any]() SystemOption {
	return func(c *systemConfig) {
		c.access = append(c.access, func(w *World, m *systemMeta) {
			m.access.AddUnfilteredWrite(w.registry.mustIdOf(reflect.TypeFor[T]()))
		})
	}
}

// ReadsSingleton declares read access to the singleton T.
func ReadsSingleton[T any]() SystemOption {
	return func(c *systemConfig) {
		c.access = append(c.access, func(w *World, m *systemMeta) {
			m.singletons.AddRead(register[T](w.registry, false))
		})
	}
}

// WritesSingleton declares write access to the singleton T.
func WritesSingleton[T any]() SystemOption {
	return func(c *systemConfig) {
		c.access = append(c.access, func(w *World, m *systemMeta) {
			m.singletons.AddWrite(register[T](w.registry, false))
		})
	}
}

// Exclusive makes the system conflict with every other system. Exclusive
// systems may make structural changes through frame.World directly.
func Exclusive() SystemOption {
	return func(c *systemConfig) { c.exclusive = true }
}

// RunIf skips the system in passes where any of the conditions is false.
// Conditions are evaluated once at the start of each pass, before any system
// runs, so they see the world as the previous pass left it.
func RunIf(conditions ...Condition) SystemOption {
	return func(c *systemConfig) { c.conditions = append(c.conditions, conditions...) }
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithWorkers limits how many systems run at the same time.
func WithWorkers(n int) SchedulerOption {
	return func(s *Scheduler) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithSingleThreaded runs every system on the calling goroutine, in the same
// order the parallel executor would respect.
func WithSingleThreaded() SchedulerOption {
	return func(s *Scheduler) { s.singleThreaded = true }
}

// WithAmbiguityPolicy sets how Build treats ambiguous system pairs.
func WithAmbiguityPolicy(p AmbiguityPolicy) SchedulerOption {
	return func(s *Scheduler) { s.policy = p }
}

// WithSchedulerLogger sets the entry scheduler diagnostics go to.
func WithSchedulerLogger(entry *logrus.Entry) SchedulerOption {
	return func(s *Scheduler) { s.log = entry }
}

// Scheduler runs registered systems once per pass. Systems whose access does
// not conflict run in parallel; conflicting systems run in an order fixed by
// their Before/After constraints, falling back to registration order.
type Scheduler struct {
	world          *World
	systems        []*systemEntry
	workers        int
	singleThreaded bool
	policy         AmbiguityPolicy
	log            *logrus.Entry

	graph  *scheduleGraph
	dirty  bool
	state  atomic.Int32
	passes int64
}

// NewScheduler creates a new scheduler for the given world.
func NewScheduler(world *World, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		world:   world,
		systems: make([]*systemEntry, 0),
		workers: runtime.GOMAXPROCS(0),
		policy:  AmbiguityWarn,
		log:     world.log.WithField("component", "scheduler"),
		dirty:   true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds a system to the scheduler and initializes its Query and
// Singleton fields. It panics while a pass is running.
func (s *Scheduler) Register(system System, opts ...SystemOption) SystemHandle {
	if s.State() != PassIdle {
		panic("ecs: cannot register a system while the scheduler is running")
	}

	cfg := systemConfig{name: systemName(system)}
	for _, opt := range opts {
		opt(&cfg)
	}

	meta := newSystemMeta(cfg.name, s.world)
	meta.exclusive = cfg.exclusive
	initSystemParams(s.world, system, meta)
	for _, declare := range cfg.access {
		declare(s.world, meta)
	}

	entry := &systemEntry{
		scheduler:     s,
		system:        system,
		meta:          meta,
		commands:      NewCommands(s.world),
		stats:         systemStatsInternal{minDuration: time.Duration(1<<63 - 1)},
		after:         cfg.after,
		before:        cfg.before,
		ambiguous:     cfg.ambiguous,
		ambiguousSelf: cfg.ambiguousSelf,
		conditions:    cfg.conditions,
	}
	s.systems = append(s.systems, entry)
	s.dirty = true
	return SystemHandle{scheduler: s, index: len(s.systems) - 1}
}

// World returns the world the scheduler runs systems against.
func (s *Scheduler) World() *World {
	return s.world
}

// State returns the current phase of the scheduler.
func (s *Scheduler) State() PassState {
	return PassState(s.state.Load())
}

// Build analyses the registered systems and fixes the execution order. It is
// called by Once when systems were registered since the last build.
func (s *Scheduler) Build() error {
	if !s.state.CompareAndSwap(int32(PassIdle), int32(PassAnalyzing)) {
		panic("ecs: scheduler pass already running")
	}
	defer s.state.Store(int32(PassIdle))
	return s.build()
}

func (s *Scheduler) build() error {
	graph, err := buildScheduleGraph(s.systems, s.world.registry)
	if err != nil {
		return err
	}

	if len(graph.ambiguities) > 0 {
		switch s.policy {
		case AmbiguityWarn:
			for _, a := range graph.ambiguities {
				s.log.WithFields(logrus.Fields{
					"first":      a.First,
					"second":     a.Second,
					"components": a.Components,
				}).Warn("conflicting systems have no explicit order, using registration order")
			}
		case AmbiguityError:
			return eris.Wrapf(ErrAmbiguousSystems, "%d ambiguous pairs, first: %s", len(graph.ambiguities), graph.ambiguities[0])
		}
	}

	if s.log.Logger.IsLevelEnabled(logrus.DebugLevel) {
		names := make([]string, len(graph.order))
		for i, idx := range graph.order {
			names[i] = s.systems[idx].meta.name
		}
		s.log.WithField("order", names).Debug("schedule built")
	}

	s.graph = graph
	s.dirty = false
	return nil
}

// Ambiguities returns the ambiguous pairs found by the last build.
func (s *Scheduler) Ambiguities() []Ambiguity {
	if s.graph == nil {
		return nil
	}
	return slices.Clone(s.graph.ambiguities)
}

// Once executes all registered systems once with the given delta time, then
// applies their commands in registration order. A panic in a system is
// re-raised on the calling goroutine after the other running systems finish;
// the aborted pass applies no commands and leaves every system's change
// detection window where it was.
func (s *Scheduler) Once(dt float64) error {
	if !s.state.CompareAndSwap(int32(PassIdle), int32(PassAnalyzing)) {
		panic("ecs: scheduler pass already running")
	}
	defer s.state.Store(int32(PassIdle))

	if s.dirty {
		if err := s.build(); err != nil {
			return err
		}
	}
	s.world.flush()
	for _, e := range s.systems {
		e.skip = !e.shouldRun(s.world)
		e.rewind = e.meta.lastRun
		if e.skip {
			e.stats.skipCount++
		}
	}

	s.state.Store(int32(PassDispatching))
	s.dispatch(dt)

	s.state.Store(int32(PassDraining))
	for _, e := range s.systems {
		e.commands.Apply(s.world)
	}
	if s.world.CheckChangeTicks() {
		now := s.world.ChangeTick()
		for _, e := range s.systems {
			e.meta.lastRun.clamp(now)
		}
	}
	s.world.ClearTrackers()
	s.passes++
	return nil
}

// dispatch runs the systems of one pass. When a system panics, everything the
// pass queued on Commands is discarded and the systems that already ran get
// their last-run tick back before the panic continues. Entities reserved by
// discarded spawns are despawned, so their ids are stale from then on.
func (s *Scheduler) dispatch(dt float64) {
	defer func() {
		if r := recover(); r != nil {
			for _, e := range s.systems {
				e.meta.lastRun = e.rewind
				e.commands.abandon(s.world)
			}
			panic(r)
		}
	}()

	if s.singleThreaded || s.workers == 1 {
		s.runSequential(dt)
	} else {
		s.runParallel(dt)
	}
}

// Run executes all systems repeatedly at the given interval until the context
// is cancelled. It returns nil on cancellation and the first build error otherwise.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastTime := time.Now()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			dt := now.Sub(lastTime).Seconds()
			lastTime = now
			if err := s.Once(dt); err != nil {
				return err
			}
		}
	}
}

// GetStats returns statistics about system execution.
func (s *Scheduler) GetStats() *SchedulerStats {
	stats := &SchedulerStats{
		SystemCount: len(s.systems),
		Passes:      s.passes,
		Workers:     s.workers,
		Systems:     make([]SystemStats, len(s.systems)),
	}
	if s.singleThreaded {
		stats.Workers = 1
	}

	var totalExecs int64
	for i, e := range s.systems {
		internal := &e.stats
		avgDuration := time.Duration(0)
		if internal.executionCount > 0 {
			avgDuration = internal.totalDuration / time.Duration(internal.executionCount)
		}

		stats.Systems[i] = SystemStats{
			Name:           e.meta.name,
			ExecutionCount: internal.executionCount,
			MinDuration:    internal.minDuration,
			MaxDuration:    internal.maxDuration,
			AvgDuration:    avgDuration,
			LastDuration:   internal.lastDuration,
			TotalDuration:  internal.totalDuration,
			SkipCount:      internal.skipCount,
		}
		totalExecs += internal.executionCount
	}

	stats.TotalExecutions = totalExecs
	return stats
}
