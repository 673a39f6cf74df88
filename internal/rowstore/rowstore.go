// Package rowstore implements the growable row storage backing a table.
package rowstore

import "slices"

// Store is a dense, contiguous sequence of rows addressed by row id.
// A row id is the row's current position; ids are not stable across
// SwapRemove, which moves the last row into the freed slot.
type Store[R any] struct {
	rows []R
}

// New creates a store, optionally pre-sized for capacity rows.
func New[R any](capacity int) *Store[R] {
	s := &Store[R]{}
	if capacity > 0 {
		s.rows = make([]R, 0, capacity)
	}
	return s
}

// Len returns the number of rows.
func (s *Store[R]) Len() int {
	return len(s.rows)
}

// Rows returns the rows as a slice indexed by row id. The slice is a view
// into the store and is valid only until the next mutation.
func (s *Store[R]) Rows() []R {
	return s.rows
}

// At returns a pointer to the row at id, valid until the next mutation.
func (s *Store[R]) At(id int) *R {
	return &s.rows[id]
}

// Append places row at the next free id and returns that id.
func (s *Store[R]) Append(row R) int {
	s.rows = append(s.rows, row)
	return len(s.rows) - 1
}

// SwapRemove removes the row at id by moving the last row into its slot
// and returns the id that row previously occupied. When id is the last
// row, nothing moves and the returned id equals id.
func (s *Store[R]) SwapRemove(id int) int {
	last := len(s.rows) - 1
	if id != last {
		s.rows[id] = s.rows[last]
	}
	var zero R
	s.rows[last] = zero
	s.rows = s.rows[:last]
	return last
}

// Reserve grows capacity so that at least n more rows can be appended
// without relocating existing rows.
func (s *Store[R]) Reserve(n int) {
	s.rows = slices.Grow(s.rows, n)
}

// Clear removes all rows. Capacity is retained for reuse.
func (s *Store[R]) Clear() {
	clear(s.rows)
	s.rows = s.rows[:0]
}
