package ecs

import (
	"fmt"
	"sort"
	"unsafe"
)

// Table is the columnar store behind one archetype. Row i of every column and
// of the entity list belong to the same entity.
type Table struct {
	components []ComponentId
	columns    []*column
	entities   []EntityId
}

func newTable(components []ComponentId, registry *ComponentRegistry) *Table {
	t := &Table{
		components: components,
		columns:    make([]*column, len(components)),
	}
	for i, id := range components {
		t.columns[i] = newColumn(registry.Info(id), 0)
	}
	return t
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.entities)
}

// Entities returns the owning entity of every row. The slice is only valid
// until the next structural change.
func (t *Table) Entities() []EntityId {
	return t.entities
}

func (t *Table) columnIndex(id ComponentId) int {
	i := sort.Search(len(t.components), func(i int) bool { return t.components[i] >= id })
	if i < len(t.components) && t.components[i] == id {
		return i
	}
	return -1
}

func (t *Table) column(id ComponentId) *column {
	if i := t.columnIndex(id); i >= 0 {
		return t.columns[i]
	}
	return nil
}

// reserve makes room for n more rows without further reallocation.
func (t *Table) reserve(n int) {
	need := len(t.entities) + n
	for _, c := range t.columns {
		c.grow(need)
	}
	if cap(t.entities) < need {
		entities := make([]EntityId, len(t.entities), max(need, 2*cap(t.entities)))
		copy(entities, t.entities)
		t.entities = entities
	}
}

// addRow appends a row for e with zeroed columns and returns its index.
// Every column must be initialised by the caller before the row is read.
func (t *Table) addRow(e EntityId) uint32 {
	row := len(t.entities)
	t.entities = append(t.entities, e)
	for _, c := range t.columns {
		c.pushZero()
	}
	return uint32(row)
}

func (t *Table) checkRow(row uint32) {
	if int(row) >= len(t.entities) {
		panic(fmt.Sprintf("ecs: table row %d out of range (len %d)", row, len(t.entities)))
	}
}

// swapRemove destroys the row's values and fills the gap with the last row.
// It returns the entity that now occupies row, if one moved.
func (t *Table) swapRemove(row uint32) (EntityId, bool) {
	t.checkRow(row)
	for _, c := range t.columns {
		c.swapRemove(int(row), true)
	}
	return t.removeEntity(row)
}

func (t *Table) removeEntity(row uint32) (EntityId, bool) {
	last := len(t.entities) - 1
	moved := int(row) != last
	if moved {
		t.entities[row] = t.entities[last]
	}
	t.entities = t.entities[:last]
	if moved {
		return t.entities[row], true
	}
	return 0, false
}

// moveTo moves the entity at row into dst. Values of components that dst
// shares are moved, values of components dst lacks are destroyed. Columns of
// dst that this table lacks are left zeroed for the caller to initialise.
func (t *Table) moveTo(row uint32, dst *Table) (newRow uint32, swapped EntityId, moved bool) {
	t.checkRow(row)
	newRow = dst.addRow(t.entities[row])

	for i, c := range t.columns {
		if j := dst.columnIndex(t.components[i]); j >= 0 {
			dc := dst.columns[j]
			c.info.copyN(dc.ptr(int(newRow)), c.ptr(int(row)), 1)
			dc.ticks[newRow] = c.ticks[row]
			c.swapRemove(int(row), false)
		} else {
			c.swapRemove(int(row), true)
		}
	}

	swapped, moved = t.removeEntity(row)
	return newRow, swapped, moved
}

func (t *Table) get(id ComponentId, row uint32) (unsafe.Pointer, *ComponentTicks) {
	c := t.column(id)
	if c == nil {
		return nil, nil
	}
	return c.ptr(int(row)), &c.ticks[row]
}

func (t *Table) clear() {
	for _, c := range t.columns {
		c.dropAll()
	}
	t.entities = t.entities[:0]
}

func (t *Table) checkTicks(now Tick) {
	for _, c := range t.columns {
		c.checkTicks(now)
	}
}
