package debugui

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/AllenDang/cimgui-go/imgui"
	"github.com/plus3/archon/ecs"
)

func NewComponentInspectorComponent() ComponentInspectorComponent {
	return ComponentInspectorComponent{}
}

func (ci *ComponentInspectorComponent) Render(world *ecs.World, selectedEntityId ecs.EntityId) {
	if !imgui.BeginV("Component Inspector", nil, imgui.WindowFlagsNone) {
		imgui.End()
		return
	}

	ci.selectedEntityId = selectedEntityId

	if ci.selectedEntityId == 0 {
		imgui.Text("No entity selected")
		imgui.End()
		return
	}

	loc, ok := world.Location(ci.selectedEntityId)
	if !ok {
		imgui.Text(fmt.Sprintf("Entity %s no longer exists", ci.selectedEntityId))
		imgui.End()
		return
	}
	archetype := world.Archetypes().Get(loc.Archetype)

	imgui.Text(fmt.Sprintf("Entity: %s", ci.selectedEntityId))
	imgui.Text(fmt.Sprintf("Archetype: 0x%X (row %d)", uint32(loc.Archetype), loc.Row))
	imgui.Separator()

	for _, id := range archetype.Components() {
		compType := world.Registry().Info(id).Type()
		component := world.GetComponent(ci.selectedEntityId, compType)
		if component == nil {
			continue
		}

		if imgui.TreeNodeStr(compType.String()) {
			ci.renderValue(world, compType, nil, reflect.ValueOf(component).Elem())
			imgui.TreePop()
		}
	}

	imgui.End()
}

// renderValue draws the fields of val, a struct reached from the component
// root by path.
func (ci *ComponentInspectorComponent) renderValue(world *ecs.World, compType reflect.Type, path []int, val reflect.Value) {
	if val.Kind() != reflect.Struct {
		imgui.Text(fmt.Sprintf("%v", val.Interface()))
		return
	}
	for _, field := range globalReflectionCache.GetFields(val.Type()) {
		fieldVal := val.FieldByIndex(field.Index)
		fieldPath := append(slices.Clone(path), field.Index...)
		if field.IsPointer {
			if fieldVal.IsNil() {
				imgui.Text(fmt.Sprintf("%s: nil", field.Name))
				continue
			}
			fieldVal = fieldVal.Elem()
		}
		ci.renderField(world, compType, field.Name, fieldPath, fieldVal)
	}
}

func (ci *ComponentInspectorComponent) renderField(world *ecs.World, compType reflect.Type, name string, path []int, val reflect.Value) {
	id := ci.selectedEntityId

	switch val.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v := int32(val.Int())
		imgui.Text(fmt.Sprintf("%s:", name))
		imgui.SameLine()
		imgui.SetNextItemWidth(150)
		if imgui.InputInt(fmt.Sprintf("##%s%v", name, path), &v) {
			setField(world, id, compType, path, int64(v))
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v := int32(val.Uint())
		imgui.Text(fmt.Sprintf("%s:", name))
		imgui.SameLine()
		imgui.SetNextItemWidth(150)
		if imgui.InputInt(fmt.Sprintf("##%s%v", name, path), &v) && v >= 0 {
			setField(world, id, compType, path, uint64(v))
		}

	case reflect.Float32, reflect.Float64:
		v := float32(val.Float())
		imgui.Text(fmt.Sprintf("%s:", name))
		imgui.SameLine()
		imgui.SetNextItemWidth(150)
		if imgui.InputFloat(fmt.Sprintf("##%s%v", name, path), &v) {
			setField(world, id, compType, path, float64(v))
		}

	case reflect.Bool:
		v := val.Bool()
		if imgui.Checkbox(name, &v) {
			setField(world, id, compType, path, v)
		}

	case reflect.String:
		v := val.String()
		imgui.Text(fmt.Sprintf("%s:", name))
		imgui.SameLine()
		imgui.SetNextItemWidth(200)
		if imgui.InputTextWithHint(fmt.Sprintf("##%s%v", name, path), "", &v, imgui.InputTextFlagsNone, nil) {
			setField(world, id, compType, path, v)
		}

	case reflect.Struct:
		if imgui.TreeNodeStr(name) {
			ci.renderValue(world, compType, path, val)
			imgui.TreePop()
		}

	case reflect.Slice:
		imgui.Text(fmt.Sprintf("%s: [%d items]", name, val.Len()))

	case reflect.Map:
		imgui.Text(fmt.Sprintf("%s: map[%d items]", name, val.Len()))

	default:
		imgui.Text(fmt.Sprintf("%s: %v", name, val.Interface()))
	}
}

// setField writes value into the field at path of the entity's component and
// marks the component changed. It reports whether the field could be set.
func setField(world *ecs.World, entityId ecs.EntityId, compType reflect.Type, path []int, value any) bool {
	component := world.GetComponentMut(entityId, compType)
	if component == nil {
		return false
	}

	field, err := reflect.ValueOf(component).Elem().FieldByIndexErr(path)
	if err != nil {
		return false
	}
	if field.Kind() == reflect.Ptr {
		if field.IsNil() {
			return false
		}
		field = field.Elem()
	}
	if !field.CanSet() {
		return false
	}

	switch v := value.(type) {
	case int64:
		if !field.CanInt() {
			return false
		}
		field.SetInt(v)
	case uint64:
		if !field.CanUint() {
			return false
		}
		field.SetUint(v)
	case float64:
		if !field.CanFloat() {
			return false
		}
		field.SetFloat(v)
	case bool:
		if field.Kind() != reflect.Bool {
			return false
		}
		field.SetBool(v)
	case string:
		if field.Kind() != reflect.String {
			return false
		}
		field.SetString(v)
	default:
		return false
	}
	return true
}
