package multitable

import (
	"iter"

	"github.com/hupe1980/multitable/index"
	"github.com/hupe1980/multitable/internal/rowstore"
)

// Table stores rows of type R and keeps a set of indexes in sync with
// them. Rows are addressed by dense row ids in [0, Size()); an erase
// swaps the last row into the freed slot, so ids are not stable across
// erasure.
//
// Row pointers returned by Row or Get, and every iterator, stay valid
// only until the next mutating operation. The table is not safe for
// concurrent use.
type Table[R any] struct {
	store   *rowstore.Store[R]
	indexes []index.Index[R]
	logger  *Logger
}

// New creates a table with the given indexes. Index order matters:
// inserts consult indexes in the order given here, and a duplicate on an
// earlier index masks one on a later index.
func New[R any](indexes []index.Index[R], optFns ...Option) *Table[R] {
	o := options{logger: NoopLogger()}
	for _, fn := range optFns {
		fn(&o)
	}

	t := &Table[R]{
		store:   rowstore.New[R](o.capacity),
		indexes: indexes,
		logger:  o.logger,
	}
	if o.capacity > 0 {
		for _, ix := range indexes {
			ix.Reserve(o.capacity)
		}
	}
	return t
}

// Size returns the number of rows.
func (t *Table[R]) Size() int {
	return t.store.Len()
}

// Row returns a pointer to the row at id, valid until the next mutation.
func (t *Table[R]) Row(id int) *R {
	return t.store.At(id)
}

// Rows returns the rows as a slice indexed by row id, valid until the
// next mutation. This is the view to hand to index methods called
// directly, e.g. a tree index's Ordered.
func (t *Table[R]) Rows() []R {
	return t.store.Rows()
}

// All returns the rows in row storage order. Note that storage order is
// not insertion order once anything has been erased; use an insertion
// order or tree index for stable traversal.
func (t *Table[R]) All() iter.Seq2[int, R] {
	return func(yield func(int, R) bool) {
		for id, row := range t.store.Rows() {
			if !yield(id, row) {
				return
			}
		}
	}
}

// Reserve pre-sizes the row storage and every index so the next n
// inserts do not relocate.
func (t *Table[R]) Reserve(n int) {
	t.store.Reserve(n)
	for _, ix := range t.indexes {
		ix.Reserve(n)
	}
}

// Insert adds a row and registers it with every index, in order. If any
// index refuses the row as a duplicate, the indexes already updated are
// rolled back, the storage append is undone, and Insert returns
// ErrDuplicate; the table is then observably unchanged. On success it
// returns the new row's id.
func (t *Table[R]) Insert(row R) (int, error) {
	id, _, err := t.tryInsert(row)
	t.logger.LogInsert(id, err)
	return id, err
}

// InsertAll inserts each row in turn, stopping at the first duplicate.
// Rows inserted before the failing one stay in the table.
func (t *Table[R]) InsertAll(rows ...R) error {
	for _, row := range rows {
		if _, err := t.Insert(row); err != nil {
			return err
		}
	}
	return nil
}

// Upsert inserts the row, or, if some index refuses it as a duplicate,
// rolls the insertion back and calls merge with a pointer to the
// existing row and the incoming row. It returns the id of the inserted
// or existing row. merge may be nil.
func (t *Table[R]) Upsert(row R, merge func(existing *R, incoming R)) int {
	id, existing, err := t.tryInsert(row)
	if err != nil {
		if merge != nil {
			merge(t.store.At(existing), row)
		}
		return existing
	}
	return id
}

func (t *Table[R]) tryInsert(row R) (id, existing int, err error) {
	id = t.store.Append(row)
	rows := t.store.Rows()
	for k, ix := range t.indexes {
		dup, inserted := ix.Insert(rows, id)
		if inserted {
			continue
		}
		for j := k - 1; j >= 0; j-- {
			t.indexes[j].Erase(rows, id)
		}
		t.store.SwapRemove(id) // id is the last row, nothing moves
		return -1, dup, ErrDuplicate
	}
	return id, -1, nil
}

// Erase removes the row at id from every index and from storage. If the
// swap-remove relocated the previous last row, every index is told about
// the move. Erase panics if id is out of range.
func (t *Table[R]) Erase(id int) {
	if id < 0 || id >= t.store.Len() {
		panic("multitable: row id out of range")
	}
	rows := t.store.Rows()
	for _, ix := range t.indexes {
		ix.Erase(rows, id)
	}
	moved := t.store.SwapRemove(id)
	if moved != id {
		rows = t.store.Rows()
		for _, ix := range t.indexes {
			ix.Move(rows, moved, id)
		}
	}
	t.logger.LogErase(id, moved)
}

// EraseAll erases every row matching pred and returns the count. Because
// erasure swaps the last row into the freed slot, the same id is
// re-examined after each hit.
func (t *Table[R]) EraseAll(pred func(row R) bool) int {
	count := 0
	for id := 0; id < t.store.Len(); {
		if pred(t.store.Rows()[id]) {
			t.Erase(id)
			count++
		} else {
			id++
		}
	}
	return count
}

// Clear drops every row and every index entry. Afterwards the table
// behaves exactly like a freshly constructed one.
func (t *Table[R]) Clear() {
	size := t.store.Len()
	for _, ix := range t.indexes {
		ix.Clear()
	}
	t.store.Clear()
	t.logger.LogClear(size)
}

// Move transfers the storage and the attached indexes to a new table and
// returns it. The receiver is reset to an empty table without indexes;
// it remains valid but no longer maintains any lookup structure.
func (t *Table[R]) Move() *Table[R] {
	moved := &Table[R]{
		store:   t.store,
		indexes: t.indexes,
		logger:  t.logger,
	}
	t.logger.LogMove(moved.store.Len())
	t.store = rowstore.New[R](0)
	t.indexes = nil
	return moved
}

// Find returns the id of the row matching query in the given index.
func Find[R, K any](t *Table[R], idx index.Finder[R, K], query K) (int, bool) {
	return idx.Find(t.store.Rows(), query)
}

// Get returns a pointer to the row matching query in the given index,
// valid until the next mutation.
func Get[R, K any](t *Table[R], idx index.Finder[R, K], query K) (*R, bool) {
	id, ok := idx.Find(t.store.Rows(), query)
	if !ok {
		return nil, false
	}
	return t.store.At(id), true
}

// FindOrCreate returns the id of the row matching query in the given
// index, inserting the row produced by create when there is none. The
// created row must not collide with an existing row on any index;
// otherwise FindOrCreate returns ErrDuplicate and the table is
// unchanged.
func FindOrCreate[R, K any](t *Table[R], idx index.Finder[R, K], query K, create func() R) (int, error) {
	if id, ok := idx.Find(t.store.Rows(), query); ok {
		return id, nil
	}
	return t.Insert(create())
}

// EraseMatch erases the row matching query in the given index and
// reports whether one was found.
func EraseMatch[R, K any](t *Table[R], idx index.Finder[R, K], query K) bool {
	id, ok := idx.Find(t.store.Rows(), query)
	if ok {
		t.Erase(id)
	}
	return ok
}
