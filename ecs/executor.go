package ecs

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// systemPanic carries a value recovered from a system to the goroutine that
// started the pass.
type systemPanic struct {
	system string
	value  any
}

func (p *systemPanic) String() string {
	return fmt.Sprintf("ecs: system %s panicked: %v", p.system, p.value)
}

// runSystem executes one system at a fresh change tick.
func (s *Scheduler) runSystem(e *systemEntry, dt float64) {
	e.meta.thisRun = s.world.incrementChangeTick()
	start := time.Now()
	e.system.Execute(newUpdateFrame(dt, e.commands, s.world))
	e.stats.record(time.Since(start))
	e.meta.lastRun = e.meta.thisRun
}

func (s *Scheduler) runSequential(dt float64) {
	for _, idx := range s.graph.order {
		if e := s.systems[idx]; !e.skip {
			s.runSystem(e, dt)
		}
	}
}

// runParallel dispatches systems as soon as all their predecessors have
// finished, running at most s.workers at a time.
func (s *Scheduler) runParallel(dt float64) {
	n := len(s.systems)
	if n == 0 {
		return
	}

	indegree := make([]atomic.Int32, n)
	for i, d := range s.graph.indegree {
		indegree[i].Store(d)
	}

	ready := make(chan int, n)
	for i := range n {
		if s.graph.indegree[i] == 0 {
			ready <- i
		}
	}

	var (
		panicOnce sync.Once
		failure   *systemPanic
		aborted   atomic.Bool
	)

	g := new(errgroup.Group)
	g.SetLimit(s.workers)

	for range n {
		idx := <-ready
		g.Go(func() error {
			// Successors are released even after a panic so that every system
			// is accounted for; they are skipped once the pass is aborted.
			defer func() {
				for _, next := range s.graph.successors[idx] {
					if indegree[next].Add(-1) == 0 {
						ready <- next
					}
				}
			}()
			defer func() {
				if r := recover(); r != nil {
					aborted.Store(true)
					panicOnce.Do(func() {
						failure = &systemPanic{system: s.systems[idx].meta.name, value: r}
					})
				}
			}()

			if aborted.Load() || s.systems[idx].skip {
				return nil
			}
			s.runSystem(s.systems[idx], dt)
			return nil
		})
	}
	_ = g.Wait()

	if failure != nil {
		s.log.WithField("system", failure.system).Error(failure.String())
		panic(failure.value)
	}
}
