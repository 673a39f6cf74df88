// Package multitable provides a generic in-memory table with multiple
// synchronized lookup indexes.
//
// A Table[R] owns a dense array of rows; each attached index maintains
// its own lookup structure over keys derived from those rows. Inserts
// are all-or-nothing across indexes: a duplicate reported by any index
// rolls back the work already done on the others.
//
// # Quick Start
//
//	byName := hashindex.Strings()
//	tbl := multitable.New([]index.Index[string]{byName})
//
//	tbl.Insert("foo")
//	tbl.Insert("bar")
//
//	if row, ok := multitable.Get(tbl, byName, "foo"); ok {
//	    fmt.Println(*row)
//	}
//
// # Indexes
//
// Three index kinds are provided:
//
//   - hashindex: amortized O(1) equality lookup via an open-addressed
//     hash table with tombstones and automatic shrink.
//   - treeindex: O(log n) ordered lookup with Ordered, Range and Seek
//     iterators over a B-tree.
//   - insertionorder: O(1) bookkeeping of insertion order with O(n)
//     traversal.
//
// Each hash or tree index is parameterized by a callbacks value that
// derives a key from a row, so several indexes with different key types
// can cover the same table. Typed lookups go through the package-level
// Find, Get, FindOrCreate and EraseMatch functions, which select the
// index by value.
//
// # Row ids and references
//
// A row id is the row's current position in storage. Erasure swap-removes:
// the last row moves into the freed slot and takes over its id. Row
// pointers and iterators are valid only until the next mutating
// operation.
//
// The table is single-threaded; callers needing concurrency wrap it in
// their own locking.
package multitable
