package ecs

import (
	"fmt"
	"reflect"
)

// System represents a behavior that operates on entities with specific components.
// User-defined systems should implement this interface and can include Query fields
// for accessing entities, as well as custom state fields that persist between frames.
//
// Exported Query, Singleton and SingletonRef fields are initialised when the
// system is registered, and together decide which other systems it may run in
// parallel with.
type System interface {
	Execute(frame *UpdateFrame)
}

// SystemFunc adapts a plain function to the System interface. It has no
// fields to reflect over, so its access must be declared with Reads, Writes,
// ReadsSingleton, WritesSingleton or Exclusive.
type SystemFunc func(frame *UpdateFrame)

func (f SystemFunc) Execute(frame *UpdateFrame) {
	f(frame)
}

// systemParam is implemented by system fields that the scheduler initialises.
type systemParam interface {
	initParam(w *World, meta *systemMeta)
}

var systemParamType = reflect.TypeFor[systemParam]()

// systemMeta is the per-system bookkeeping shared with its parameters.
type systemMeta struct {
	name       string
	access     FilteredAccessSet
	singletons Access
	exclusive  bool

	lastRun Tick
	thisRun Tick
}

func newSystemMeta(name string, w *World) *systemMeta {
	return &systemMeta{
		name:    name,
		lastRun: w.ChangeTick() - MaxChangeAge,
	}
}

// ticks returns the change detection window. A nil meta belongs to a
// standalone accessor, which sees changes since the last scheduler pass.
func (m *systemMeta) ticks(w *World) (lastRun, thisRun Tick) {
	if m == nil {
		return w.lastChangeTick, w.ChangeTick()
	}
	return m.lastRun, m.thisRun
}

func (m *systemMeta) addQuery(layout *queryLayout) {
	if m == nil {
		return
	}
	if !m.access.IsCompatibleWith(&layout.access) {
		panic(fmt.Sprintf("ecs: query %v in system %s conflicts with another parameter of the same system", layout.typ, m.name))
	}
	m.access.Add(layout.access)
}

func (m *systemMeta) addSingletonRead(id ComponentId, t reflect.Type) {
	if m == nil {
		return
	}
	if m.singletons.HasWrite(id) {
		panic(fmt.Sprintf("ecs: system %s reads singleton %v that it also writes", m.name, t))
	}
	m.singletons.AddRead(id)
}

func (m *systemMeta) addSingletonWrite(id ComponentId, t reflect.Type) {
	if m == nil {
		return
	}
	if m.singletons.HasRead(id) {
		panic(fmt.Sprintf("ecs: system %s accesses singleton %v more than once", m.name, t))
	}
	m.singletons.AddWrite(id)
}

// isCompatible reports whether two systems may run at the same time.
func (m *systemMeta) isCompatible(other *systemMeta) bool {
	if m.exclusive || other.exclusive {
		return false
	}
	return m.access.IsCompatible(&other.access) && m.singletons.IsCompatible(&other.singletons)
}

// conflicts names the component ids two systems conflict on. Singleton
// conflicts are reported with the singleton's id.
func (m *systemMeta) conflicts(other *systemMeta) []ComponentId {
	ids := m.access.Conflicts(&other.access)
	return append(ids, m.singletons.Conflicts(&other.singletons)...)
}

func systemName(system System) string {
	t := reflect.TypeOf(system)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Name() == "" {
		return t.String()
	}
	return t.Name()
}

// initSystemParams initialises every parameter field of system. Parameters
// must be exported; an unexported one panics instead of staying nil.
func initSystemParams(w *World, system System, meta *systemMeta) {
	systemValue := reflect.ValueOf(system)
	if systemValue.Kind() != reflect.Ptr || systemValue.Elem().Kind() != reflect.Struct {
		return
	}
	systemValue = systemValue.Elem()
	systemType := systemValue.Type()

	for i := 0; i < systemValue.NumField(); i++ {
		field := systemValue.Field(i)
		if field.Kind() != reflect.Struct || !reflect.PointerTo(field.Type()).Implements(systemParamType) {
			continue
		}
		if !field.CanSet() {
			panic(fmt.Sprintf("ecs: system %s has unexported parameter field %s; export it so it can be initialised",
				meta.name, systemType.Field(i).Name))
		}
		param := field.Addr().Interface().(systemParam)
		w.log.WithField("system", meta.name).
			WithField("param", systemType.Field(i).Name).
			Debug("initialising system parameter")
		param.initParam(w, meta)
	}
}
