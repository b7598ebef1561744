package ecs

import "github.com/rotisserie/eris"

var (
	// ErrScheduleCycle is returned when Before/After constraints form a cycle.
	ErrScheduleCycle = eris.New("system ordering constraints form a cycle")
	// ErrAmbiguousSystems is returned under AmbiguityError when conflicting
	// systems have no explicit order between them.
	ErrAmbiguousSystems = eris.New("conflicting systems without an explicit order")
	// ErrUnknownSystem is returned when an ordering constraint names a system
	// that was never registered with the scheduler.
	ErrUnknownSystem = eris.New("unknown system")
)
