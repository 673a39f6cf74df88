// Package index defines the protocol between a table and its indexes.
//
// An index stores row ids only, never rows or row pointers; the current
// row slice is passed into every call. Storage relocation therefore never
// invalidates index state, and the id-based Move notification is all an
// index needs to stay consistent with swap-remove erasure.
package index

// Index is the capability set every index attached to a table implements.
// The table invokes these in the order indexes were attached; indexes
// never call one another.
type Index[R any] interface {
	// Reserve hints that about n more rows will be inserted soon.
	Reserve(n int)

	// Insert registers the row at id. If the index already holds a row
	// with an equal key it reports inserted=false and returns that row's
	// id, leaving the index unchanged.
	Insert(rows []R, id int) (existing int, inserted bool)

	// Erase removes the row at id. The row is still present in rows when
	// Erase is called.
	Erase(rows []R, id int)

	// Move records that the row formerly at from now lives at to. The
	// row's content, and therefore every key derived from it, is
	// unchanged. rows[from] must not be accessed.
	Move(rows []R, from, to int)

	// Clear drops all entries.
	Clear()
}

// Finder is implemented by indexes that can locate a row by a query key
// of type K. K need not be the row type: an index may, for example, key
// string rows by their length.
type Finder[R, K any] interface {
	Index[R]

	// Find returns the id of the row matching query, if any.
	Find(rows []R, query K) (int, bool)
}
