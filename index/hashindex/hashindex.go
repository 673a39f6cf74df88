// Package hashindex provides equality lookup over table rows through an
// open-addressed hash table of row ids.
package hashindex

import (
	"math/bits"

	"github.com/hupe1980/multitable/index"
	"github.com/hupe1980/multitable/keys"
)

// Callbacks supplies key derivation, equality and hashing for one index.
// The key type K may differ from the row type. HashCode need not be
// injective; a constant hash only degrades performance, never
// correctness.
type Callbacks[R, K any] struct {
	// KeyForRow derives the key the index stores a row under.
	KeyForRow func(row R) K

	// Matches reports whether row's key equals the query key.
	Matches func(row R, key K) bool

	// HashCode hashes a key.
	HashCode func(key K) uint32
}

const (
	minCapacity = 8

	emptySlot     = -1
	tombstoneSlot = -2
)

// slot states are encoded in the id: non-negative ids are occupied,
// emptySlot terminates probe chains, tombstoneSlot marks erased entries
// that probes must walk past.
type slot struct {
	hash uint32
	id   int32
}

// Index is a power-of-two sized, linearly probed hash table mapping keys
// to row ids. Erasure writes tombstones instead of shifting; the table
// rehashes once an insert would take occupied plus tombstoned slots past
// half of capacity, and rehashes downward once live entries fall below a
// quarter of capacity. Every rehash sizes the new array from live entries
// alone and drops tombstones, so a long-running insert/erase loop does not
// grow the table without bound.
type Index[R, K any] struct {
	cb         Callbacks[R, K]
	slots      []slot
	occupied   int
	tombstones int
}

var _ index.Finder[string, string] = (*Index[string, string])(nil)

// New creates a hash index from the given callbacks.
func New[R, K any](cb Callbacks[R, K]) *Index[R, K] {
	if cb.KeyForRow == nil || cb.Matches == nil || cb.HashCode == nil {
		panic("hashindex: incomplete callbacks")
	}
	return &Index[R, K]{cb: cb}
}

// Strings returns a hash index for tables whose rows are their own
// string key.
func Strings() *Index[string, string] {
	return New(Callbacks[string, string]{
		KeyForRow: func(row string) string { return row },
		Matches:   func(row, key string) bool { return row == key },
		HashCode:  keys.HashString,
	})
}

// Uints returns a hash index for tables whose rows are their own uint64
// key.
func Uints() *Index[uint64, uint64] {
	return New(Callbacks[uint64, uint64]{
		KeyForRow: func(row uint64) uint64 { return row },
		Matches:   func(row, key uint64) bool { return row == key },
		HashCode:  keys.HashUint64,
	})
}

// Len returns the number of rows in the index.
func (x *Index[R, K]) Len() int {
	return x.occupied
}

// Capacity returns the current slot count. Exposed so that tests can
// assert the shrink behavior on erase-heavy workloads.
func (x *Index[R, K]) Capacity() int {
	return len(x.slots)
}

// Reserve grows the slot array so n more rows fit without rehashing.
func (x *Index[R, K]) Reserve(n int) {
	want := capacityFor(x.occupied + n)
	if want > len(x.slots) {
		x.rehash(want)
	}
}

// Insert registers the row at id, or returns the id of the row already
// holding an equal key.
func (x *Index[R, K]) Insert(rows []R, id int) (int, bool) {
	key := x.cb.KeyForRow(rows[id])
	h := x.cb.HashCode(key)

	if (x.occupied+x.tombstones+1)*2 > len(x.slots) {
		// Target capacity is based on live entries only, so a table full
		// of tombstones rehashes in place rather than growing.
		x.rehash(capacityFor(x.occupied + 1))
	}

	mask := uint32(len(x.slots) - 1)
	claim := -1
	for i := h & mask; ; i = (i + 1) & mask {
		s := x.slots[i]
		switch {
		case s.id == emptySlot:
			if claim < 0 {
				claim = int(i)
			} else {
				x.tombstones--
			}
			x.slots[claim] = slot{hash: h, id: int32(id)}
			x.occupied++
			return id, true
		case s.id == tombstoneSlot:
			if claim < 0 {
				claim = int(i)
			}
		case s.hash == h && x.cb.Matches(rows[s.id], key):
			return int(s.id), false
		}
	}
}

// Erase removes the row at id, leaving a tombstone in its slot.
func (x *Index[R, K]) Erase(rows []R, id int) {
	if len(x.slots) == 0 {
		return
	}
	key := x.cb.KeyForRow(rows[id])
	h := x.cb.HashCode(key)

	mask := uint32(len(x.slots) - 1)
	for i := h & mask; ; i = (i + 1) & mask {
		s := x.slots[i]
		if s.id == int32(id) {
			x.slots[i].id = tombstoneSlot
			x.occupied--
			x.tombstones++
			break
		}
		if s.id == emptySlot {
			return
		}
	}

	if x.occupied*4 < len(x.slots) && len(x.slots) > minCapacity {
		x.rehash(capacityFor(x.occupied))
	}
}

// Move rewrites the slot holding row id from to id to. The row's key and
// cached hash are unchanged.
func (x *Index[R, K]) Move(rows []R, from, to int) {
	if len(x.slots) == 0 {
		return
	}
	key := x.cb.KeyForRow(rows[to])
	h := x.cb.HashCode(key)

	mask := uint32(len(x.slots) - 1)
	for i := h & mask; ; i = (i + 1) & mask {
		s := x.slots[i]
		if s.id == int32(from) {
			x.slots[i].id = int32(to)
			return
		}
		if s.id == emptySlot {
			return
		}
	}
}

// Find returns the id of the row matching query, if any.
func (x *Index[R, K]) Find(rows []R, query K) (int, bool) {
	if len(x.slots) == 0 {
		return 0, false
	}
	h := x.cb.HashCode(query)

	mask := uint32(len(x.slots) - 1)
	for i := h & mask; ; i = (i + 1) & mask {
		s := x.slots[i]
		if s.id == emptySlot {
			return 0, false
		}
		if s.id >= 0 && s.hash == h && x.cb.Matches(rows[s.id], query) {
			return int(s.id), true
		}
	}
}

// Clear drops all entries and releases the slot array.
func (x *Index[R, K]) Clear() {
	x.slots = nil
	x.occupied = 0
	x.tombstones = 0
}

// rehash reinserts every occupied slot into a fresh array of newCap
// slots, dropping tombstones. Cached hashes make this a probe-only pass.
func (x *Index[R, K]) rehash(newCap int) {
	old := x.slots
	x.slots = make([]slot, newCap)
	for i := range x.slots {
		x.slots[i].id = emptySlot
	}
	x.tombstones = 0

	mask := uint32(newCap - 1)
	for _, s := range old {
		if s.id < 0 {
			continue
		}
		i := s.hash & mask
		for x.slots[i].id != emptySlot {
			i = (i + 1) & mask
		}
		x.slots[i] = s
	}
}

// capacityFor returns the smallest power of two holding live entries at
// no more than a quarter fill, with a floor of minCapacity.
func capacityFor(live int) int {
	need := live * 4
	if need < minCapacity {
		need = minCapacity
	}
	return 1 << bits.Len(uint(need-1))
}
