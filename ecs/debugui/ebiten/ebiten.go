// Package ebiten provides Dear ImGui backend integration for the Ebiten game engine.
package ebiten

import (
	ebitenbackend "github.com/AllenDang/cimgui-go/backend/ebiten-backend"
	"github.com/plus3/archon/ecs"
)

// ImguiBackend wraps the Ebiten-specific Dear ImGui backend implementation.
// Store it as a singleton so the game loop and systems share one backend.
type ImguiBackend struct {
	*ebitenbackend.EbitenBackend
}

// RunFrame wraps one scheduler pass in an ImGui frame, so render functions
// deferred by debugui systems land inside it.
func (b *ImguiBackend) RunFrame(scheduler *ecs.Scheduler, dt float64) error {
	b.BeginFrame()
	defer b.EndFrame()
	return scheduler.Once(dt)
}
