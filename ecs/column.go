package ecs

import (
	"fmt"
	"unsafe"
)

const minColumnCapacity = 4

// column is the densely packed storage of one component type inside a table,
// with the added/changed ticks of every row.
type column struct {
	info    *ComponentInfo
	data    unsafe.Pointer
	backing any
	len     int
	cap     int
	ticks   []ComponentTicks
}

func newColumn(info *ComponentInfo, capacity int) *column {
	c := &column{info: info}
	if capacity > 0 {
		c.grow(capacity)
	}
	return c
}

func (c *column) ptr(row int) unsafe.Pointer {
	return unsafe.Add(c.data, uintptr(row)*c.info.size)
}

// grow reallocates the backing buffer so it can hold at least n rows.
func (c *column) grow(n int) {
	if n <= c.cap {
		return
	}
	newCap := max(n, 2*c.cap, minColumnCapacity)

	data, backing := c.info.makeBuffer(newCap)
	if c.len > 0 {
		c.info.copyN(data, c.data, c.len)
	}
	c.data = data
	c.backing = backing
	c.cap = newCap

	ticks := make([]ComponentTicks, c.len, newCap)
	copy(ticks, c.ticks)
	c.ticks = ticks
}

// pushZero appends a row holding the zero value. The caller initialises it.
func (c *column) pushZero() int {
	c.grow(c.len + 1)
	row := c.len
	c.len++
	c.ticks = c.ticks[:c.len]
	c.ticks[row] = ComponentTicks{}
	return row
}

func (c *column) initialize(row int, value any, ticks ComponentTicks) {
	if !c.info.set(c.ptr(row), value) {
		panic(fmt.Sprintf("ecs: value of type %T does not match component %s", value, c.info.Name()))
	}
	c.ticks[row] = ticks
}

// replace destroys the current value at row and stores value in its place.
func (c *column) replace(row int, value any, now Tick) {
	p := c.ptr(row)
	if c.info.drop != nil {
		c.info.drop(p)
	}
	if !c.info.set(p, value) {
		panic(fmt.Sprintf("ecs: value of type %T does not match component %s", value, c.info.Name()))
	}
	c.ticks[row].Changed = now
}

// swapRemove removes row by moving the last row into it. When drop is set the
// removed value is destroyed first; otherwise ownership has already moved
// elsewhere and the value is only forgotten.
func (c *column) swapRemove(row int, drop bool) {
	last := c.len - 1
	p := c.ptr(row)
	if drop && c.info.drop != nil {
		c.info.drop(p)
	}
	if row != last {
		c.info.copyN(p, c.ptr(last), 1)
		c.ticks[row] = c.ticks[last]
	}
	if c.info.needsDrop {
		c.info.zero(c.ptr(last))
	}
	c.len = last
	c.ticks = c.ticks[:last]
}

// dropAll destroys every value and empties the column.
func (c *column) dropAll() {
	if c.info.drop != nil {
		for row := 0; row < c.len; row++ {
			c.info.drop(c.ptr(row))
		}
	}
	c.len = 0
	c.ticks = c.ticks[:0]
}

func (c *column) checkTicks(now Tick) {
	for i := range c.ticks {
		c.ticks[i].Added.clamp(now)
		c.ticks[i].Changed.clamp(now)
	}
}
