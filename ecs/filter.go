package ecs

import "reflect"

// filterKind says how a filter field restricts a query.
type filterKind uint8

const (
	filterWith filterKind = iota
	filterWithout
	filterAdded
	filterChanged
)

// queryFilter is implemented by the zero-sized marker types below. Use them
// as (usually blank) fields of a query struct:
//
//	type movers struct {
//		Pos *Position
//		_   ecs.With[Velocity]
//		_   ecs.Without[Frozen]
//	}
type queryFilter interface {
	filterTerm() (filterKind, reflect.Type)
}

// With restricts a query to entities that have C, without fetching it.
type With[C any] struct{}

// Without restricts a query to entities that lack C.
type Without[C any] struct{}

// Added restricts a query to entities whose C was inserted since the system
// last ran.
type Added[C any] struct{}

// Changed restricts a query to entities whose C was inserted or written since
// the system last ran.
type Changed[C any] struct{}

func (With[C]) filterTerm() (filterKind, reflect.Type)    { return filterWith, reflect.TypeFor[C]() }
func (Without[C]) filterTerm() (filterKind, reflect.Type) { return filterWithout, reflect.TypeFor[C]() }
func (Added[C]) filterTerm() (filterKind, reflect.Type)   { return filterAdded, reflect.TypeFor[C]() }
func (Changed[C]) filterTerm() (filterKind, reflect.Type) { return filterChanged, reflect.TypeFor[C]() }

var queryFilterType = reflect.TypeFor[queryFilter]()
