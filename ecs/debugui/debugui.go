// Package debugui provides immediate-mode GUI integration for ECS applications using Dear ImGui.
// It renders ImGui widgets from entities and ships inspector panels that browse
// a World's entities, archetypes and component data.
package debugui

import (
	"github.com/AllenDang/cimgui-go/imgui"
	"github.com/plus3/archon/ecs"
)

// ImguiItem is a component that holds a Dear ImGui render function.
// Attach this to entities that should render ImGui widgets each frame.
type ImguiItem struct {
	Render func()
}

// ImguiInputState tracks Dear ImGui's input capture state as a singleton component.
// Use this to determine if ImGui is consuming mouse or keyboard input.
type ImguiInputState struct {
	WantCaptureMouse    bool
	WantCaptureKeyboard bool
}

// ImguiSystem queries all ImguiItem components and defers their render functions.
// It also updates the ImguiInputState singleton with current input capture state.
//
// Render functions run while commands are applied, so they never race with
// systems that are still executing.
type ImguiSystem struct {
	Items      ecs.Query[struct{ *ImguiItem `ecs:"readonly"` }]
	InputState ecs.Singleton[ImguiInputState]
}

// Execute updates input state and queues all ImGui render functions for execution.
func (i *ImguiSystem) Execute(frame *ecs.UpdateFrame) {
	state := i.InputState.Get()
	if state != nil {
		state.WantCaptureMouse = imgui.CurrentIO().WantCaptureMouse()
		state.WantCaptureKeyboard = imgui.CurrentIO().WantCaptureKeyboard()
	}

	for item := range i.Items.Values() {
		render := item.Render
		if render == nil {
			continue
		}
		frame.Commands.Defer(func(*ecs.World) { render() })
	}
}
