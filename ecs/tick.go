package ecs

import "math"

// Tick is the world's logical clock. It advances once per system run and wraps.
type Tick uint32

const (
	// CheckTickThreshold is how far the clock may advance before stored ticks
	// are scanned and clamped.
	CheckTickThreshold Tick = 518_400_000

	// MaxChangeAge is the largest distance between a stored tick and the
	// current tick that change detection can still tell apart.
	MaxChangeAge Tick = math.MaxUint32 - (2*CheckTickThreshold - 1)
)

// IsNewerThan reports whether t happened after lastRun, as seen from thisRun.
// Distances are computed with wrapping subtraction, so the result stays
// correct after the counter overflows as long as ticks are clamped periodically.
func (t Tick) IsNewerThan(lastRun, thisRun Tick) bool {
	sinceChange := min(thisRun-t, MaxChangeAge)
	sinceSystem := min(thisRun-lastRun, MaxChangeAge)
	return sinceSystem > sinceChange
}

// clamp moves t forward so it is never older than MaxChangeAge relative to
// now. It reports whether t was modified.
func (t *Tick) clamp(now Tick) bool {
	if now-*t > MaxChangeAge {
		*t = now - MaxChangeAge
		return true
	}
	return false
}

// ComponentTicks records when a value was added and when it was last changed.
type ComponentTicks struct {
	Added   Tick
	Changed Tick
}

func newComponentTicks(now Tick) ComponentTicks {
	return ComponentTicks{Added: now, Changed: now}
}

// IsAdded reports whether the value was added after lastRun.
func (c ComponentTicks) IsAdded(lastRun, thisRun Tick) bool {
	return c.Added.IsNewerThan(lastRun, thisRun)
}

// IsChanged reports whether the value was added or changed after lastRun.
func (c ComponentTicks) IsChanged(lastRun, thisRun Tick) bool {
	return c.Changed.IsNewerThan(lastRun, thisRun)
}
