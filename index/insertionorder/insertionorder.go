// Package insertionorder provides traversal of table rows in the order
// they were inserted.
package insertionorder

import (
	"iter"
	"slices"

	"github.com/hupe1980/multitable/index"
)

const none = -1

// link is one cell of the intrusive doubly linked list. Cells are
// indexed by row id; prev and next hold row ids, none at the ends.
type link struct {
	prev, next int32
}

// Index threads a doubly linked list through a slice of link cells, one
// per row id. Insert at the tail and erase anywhere are O(1); traversal
// is O(n). The index accepts every row, so it never reports duplicates.
type Index[R any] struct {
	links      []link
	head, tail int32
}

var _ index.Index[string] = (*Index[string])(nil)

// New creates an insertion order index.
func New[R any]() *Index[R] {
	return &Index[R]{head: none, tail: none}
}

// Reserve grows the link array to fit n more rows.
func (x *Index[R]) Reserve(n int) {
	x.links = slices.Grow(x.links, n)
}

// Insert links the row at id to the list tail. The link array grows in
// lock step with row storage; a cell left stale by an earlier swap-remove
// is simply overwritten.
func (x *Index[R]) Insert(rows []R, id int) (int, bool) {
	for len(x.links) <= id {
		x.links = append(x.links, link{})
	}
	x.links[id] = link{prev: x.tail, next: none}
	if x.tail == none {
		x.head = int32(id)
	} else {
		x.links[x.tail].next = int32(id)
	}
	x.tail = int32(id)
	return id, true
}

// Erase unlinks the row at id.
func (x *Index[R]) Erase(rows []R, id int) {
	l := x.links[id]
	if l.prev == none {
		x.head = l.next
	} else {
		x.links[l.prev].next = l.next
	}
	if l.next == none {
		x.tail = l.prev
	} else {
		x.links[l.next].prev = l.prev
	}
}

// Move rewrites the links of the row that moved from from to to, along
// with its neighbors' references to it.
func (x *Index[R]) Move(rows []R, from, to int) {
	l := x.links[from]
	x.links[to] = l
	if l.prev == none {
		x.head = int32(to)
	} else {
		x.links[l.prev].next = int32(to)
	}
	if l.next == none {
		x.tail = int32(to)
	} else {
		x.links[l.next].prev = int32(to)
	}
}

// Clear drops all entries. The link array is retained for reuse.
func (x *Index[R]) Clear() {
	x.links = x.links[:0]
	x.head, x.tail = none, none
}

// Ordered returns the rows in insertion order, oldest first.
func (x *Index[R]) Ordered(rows []R) iter.Seq2[int, R] {
	return func(yield func(int, R) bool) {
		for id := x.head; id != none; id = x.links[id].next {
			if !yield(int(id), rows[id]) {
				return
			}
		}
	}
}

// Reversed returns the rows in reverse insertion order, newest first.
func (x *Index[R]) Reversed(rows []R) iter.Seq2[int, R] {
	return func(yield func(int, R) bool) {
		for id := x.tail; id != none; id = x.links[id].prev {
			if !yield(int(id), rows[id]) {
				return
			}
		}
	}
}
