package ecs

// UpdateFrame is handed to a system for one execution.
type UpdateFrame struct {
	DeltaTime float64
	// Commands is the system's own buffer, applied after the pass.
	Commands *Commands
	World    *World
}

func newUpdateFrame(dt float64, commands *Commands, world *World) *UpdateFrame {
	return &UpdateFrame{
		DeltaTime: dt,
		Commands:  commands,
		World:     world,
	}
}
