package multitable

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/multitable/index"
	"github.com/hupe1980/multitable/index/hashindex"
	"github.com/hupe1980/multitable/index/insertionorder"
	"github.com/hupe1980/multitable/index/treeindex"
	"github.com/hupe1980/multitable/keys"
)

func storageOrder[R any](t *Table[R]) []R {
	var out []R
	for _, row := range t.All() {
		out = append(out, row)
	}
	return out
}

func TestSimpleHashTable(t *testing.T) {
	byName := hashindex.Strings()
	tbl := New([]index.Index[string]{byName})

	_, ok := Find(tbl, byName, "foo")
	assert.False(t, ok)
	assert.Equal(t, 0, tbl.Size())

	require.NoError(t, tbl.InsertAll("foo", "bar"))
	assert.Equal(t, 2, tbl.Size())

	row, ok := Get(tbl, byName, "foo")
	require.True(t, ok)
	assert.Equal(t, "foo", *row)
	_, ok = Find(tbl, byName, "fop")
	assert.False(t, ok)
	_, ok = Find(tbl, byName, "baq")
	assert.False(t, ok)

	bazID, err := tbl.Insert("baz")
	require.NoError(t, err)
	found, ok := Find(tbl, byName, "baz")
	require.True(t, ok)
	assert.Equal(t, bazID, found)
	assert.Equal(t, 3, tbl.Size())

	assert.Equal(t, []string{"foo", "bar", "baz"}, storageOrder(tbl))

	require.True(t, EraseMatch(tbl, byName, "foo"))
	assert.Equal(t, 2, tbl.Size())
	_, ok = Find(tbl, byName, "foo")
	assert.False(t, ok)

	// The swap-remove moved "baz" into the erased slot.
	assert.Equal(t, []string{"baz", "bar"}, storageOrder(tbl))

	quxID := tbl.Upsert("qux", func(*string, string) {
		t.Fatal("merge callback must not run for a fresh key")
	})
	merged := false
	sameID := tbl.Upsert("qux", func(existing *string, incoming string) {
		merged = true
		assert.Equal(t, "qux", *existing)
		assert.Equal(t, "qux", incoming)
	})
	assert.True(t, merged)
	assert.Equal(t, quxID, sameID)

	require.NoError(t, tbl.InsertAll("corge", "grault", "garply"))
	assert.Equal(t, 6, tbl.Size())

	_, err = tbl.Insert("bar")
	require.ErrorIs(t, err, ErrDuplicate)
	assert.Equal(t, 6, tbl.Size())

	_, err = tbl.Insert("baa")
	require.NoError(t, err)

	assert.Equal(t, 3, tbl.EraseAll(func(row string) bool {
		return strings.HasPrefix(row, "ba")
	}))
	assert.Equal(t, 4, tbl.Size())
	assert.Equal(t, []string{"garply", "grault", "qux", "corge"}, storageOrder(tbl))

	graultID, err := FindOrCreate(tbl, byName, "grault", func() string {
		t.Fatal("create callback must not run for a present key")
		return ""
	})
	require.NoError(t, err)
	assert.Equal(t, "grault", *tbl.Row(graultID))
	assert.Equal(t, 4, tbl.Size())

	waldoID, err := FindOrCreate(tbl, byName, "waldo", func() string { return "waldo" })
	require.NoError(t, err)
	assert.Equal(t, "waldo", *tbl.Row(waldoID))
	assert.Equal(t, 5, tbl.Size())

	assert.Equal(t, []string{"garply", "grault", "qux", "corge", "waldo"}, storageOrder(tbl))
}

func TestDuplicateRejection(t *testing.T) {
	byName := hashindex.Strings()
	tbl := New([]index.Index[string]{byName})
	require.NoError(t, tbl.InsertAll("foo", "bar"))

	_, err := tbl.Insert("bar")
	require.ErrorIs(t, err, ErrDuplicate)
	assert.Equal(t, 2, tbl.Size())

	for _, row := range []string{"foo", "bar"} {
		_, ok := Find(tbl, byName, row)
		assert.True(t, ok, row)
	}

	// The erased key can be inserted again.
	require.True(t, EraseMatch(tbl, byName, "foo"))
	_, err = tbl.Insert("foo")
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Size())
}

type siPair struct {
	str string
	num uint64
}

func siIndexes() (*hashindex.Index[siPair, string], *hashindex.Index[siPair, uint64]) {
	byStr := hashindex.New(hashindex.Callbacks[siPair, string]{
		KeyForRow: func(p siPair) string { return p.str },
		Matches:   func(p siPair, key string) bool { return p.str == key },
		HashCode:  keys.HashString,
	})
	byNum := hashindex.New(hashindex.Callbacks[siPair, uint64]{
		KeyForRow: func(p siPair) uint64 { return p.num },
		Matches:   func(p siPair, key uint64) bool { return p.num == key },
		HashCode:  keys.HashUint64,
	})
	return byStr, byNum
}

func TestDoubleIndexTable(t *testing.T) {
	byStr, byNum := siIndexes()
	tbl := New([]index.Index[siPair]{byStr, byNum})

	_, err := tbl.Insert(siPair{"foo", 123})
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.Size())

	// Colliding on either index refuses the row and rolls the other
	// index back.
	_, err = tbl.Insert(siPair{"foo", 999})
	require.ErrorIs(t, err, ErrDuplicate)
	_, err = tbl.Insert(siPair{"qux", 123})
	require.ErrorIs(t, err, ErrDuplicate)
	assert.Equal(t, 1, tbl.Size())

	row, ok := Get(tbl, byStr, "foo")
	require.True(t, ok)
	assert.Equal(t, siPair{"foo", 123}, *row)
	row, ok = Get(tbl, byNum, 123)
	require.True(t, ok)
	assert.Equal(t, siPair{"foo", 123}, *row)
	_, ok = Find(tbl, byStr, "qux")
	assert.False(t, ok)
	_, ok = Find(tbl, byNum, 999)
	assert.False(t, ok)

	_, err = tbl.Insert(siPair{"bar", 456})
	require.NoError(t, err)

	id, err := FindOrCreate(tbl, byStr, "foo", func() siPair {
		t.Fatal("create callback must not run for a present key")
		return siPair{}
	})
	require.NoError(t, err)
	assert.Equal(t, siPair{"foo", 123}, *tbl.Row(id))

	// The created row collides on the other index.
	_, err = FindOrCreate(tbl, byStr, "corge", func() siPair { return siPair{"corge", 123} })
	require.ErrorIs(t, err, ErrDuplicate)
	assert.Equal(t, 2, tbl.Size())
	_, ok = Find(tbl, byStr, "corge")
	assert.False(t, ok)

	id, err = FindOrCreate(tbl, byStr, "corge", func() siPair { return siPair{"corge", 789} })
	require.NoError(t, err)
	assert.Equal(t, siPair{"corge", 789}, *tbl.Row(id))

	id, err = FindOrCreate(tbl, byNum, 234, func() siPair { return siPair{"grault", 234} })
	require.NoError(t, err)
	assert.Equal(t, siPair{"grault", 234}, *tbl.Row(id))
	assert.Equal(t, 4, tbl.Size())

	for _, want := range []siPair{{"foo", 123}, {"bar", 456}, {"corge", 789}, {"grault", 234}} {
		row, ok := Get(tbl, byStr, want.str)
		require.True(t, ok, want.str)
		assert.Equal(t, want, *row)
		row, ok = Get(tbl, byNum, want.num)
		require.True(t, ok, want.str)
		assert.Equal(t, want, *row)
	}
}

func TestHashIndexRollbackOnInsertionFailure(t *testing.T) {
	// A duplicate on a later index must roll earlier indexes back.
	byName := hashindex.Strings()
	byLen := hashindex.New(hashindex.Callbacks[string, int]{
		KeyForRow: func(row string) int { return len(row) },
		Matches:   func(row string, key int) bool { return len(row) == key },
		HashCode:  keys.HashInt,
	})
	tbl := New([]index.Index[string]{byName, byLen})
	require.NoError(t, tbl.InsertAll("a", "ab", "abc"))

	merged := false
	id := tbl.Upsert("xyz", func(existing *string, incoming string) {
		merged = true
		assert.Equal(t, "abc", *existing)
		assert.Equal(t, "xyz", incoming)
	})
	require.True(t, merged)
	assert.Equal(t, "abc", *tbl.Row(id))

	tbl.Erase(id)

	// If the rollback left "xyz" behind in the first index this insert
	// would be refused.
	_, err := tbl.Insert("xyz")
	require.NoError(t, err)

	merged = false
	id = tbl.Upsert("tuv", func(existing *string, incoming string) {
		merged = true
		assert.Equal(t, "xyz", *existing)
		assert.Equal(t, "tuv", incoming)
	})
	require.True(t, merged)
	assert.Equal(t, "xyz", *tbl.Row(id))
}

func TestTreeIndexRollbackOnInsertionFailure(t *testing.T) {
	byName := treeindex.Strings()
	byLen := treeindex.New(treeindex.Callbacks[string, int]{
		KeyForRow: func(row string) int { return len(row) },
		Matches:   func(row string, key int) bool { return len(row) == key },
		IsBefore:  func(row string, key int) bool { return len(row) < key },
	})
	tbl := New([]index.Index[string]{byName, byLen})
	require.NoError(t, tbl.InsertAll("a", "ab", "abc"))

	merged := false
	id := tbl.Upsert("xyz", func(existing *string, incoming string) {
		merged = true
		assert.Equal(t, "abc", *existing)
		assert.Equal(t, "xyz", incoming)
	})
	require.True(t, merged)
	assert.Equal(t, "abc", *tbl.Row(id))

	tbl.Erase(id)

	_, err := tbl.Insert("xyz")
	require.NoError(t, err)
	require.NoError(t, byName.Verify(tbl.Rows()))
	require.NoError(t, byLen.Verify(tbl.Rows()))

	merged = false
	id = tbl.Upsert("tuv", func(existing *string, incoming string) {
		merged = true
		assert.Equal(t, "xyz", *existing)
		assert.Equal(t, "tuv", incoming)
	})
	require.True(t, merged)
	assert.Equal(t, "xyz", *tbl.Row(id))
}

func TestInsertAllKeepsPriorRowsOnDuplicate(t *testing.T) {
	byName := hashindex.Strings()
	tbl := New([]index.Index[string]{byName})

	err := tbl.InsertAll("foo", "bar", "foo", "baz")
	require.ErrorIs(t, err, ErrDuplicate)

	// Rows before the failing element stay committed; later ones were
	// never attempted.
	assert.Equal(t, 2, tbl.Size())
	_, ok := Find(tbl, byName, "baz")
	assert.False(t, ok)
}

func TestFailedInsertLeavesStateUntouched(t *testing.T) {
	byName := treeindex.Strings()
	order := insertionorder.New[string]()
	tbl := New([]index.Index[string]{byName, order})
	require.NoError(t, tbl.InsertAll("foo", "bar", "baz"))

	_, err := tbl.Insert("bar")
	require.ErrorIs(t, err, ErrDuplicate)

	require.NoError(t, byName.Verify(tbl.Rows()))
	var inOrder []string
	for _, row := range order.Ordered(tbl.Rows()) {
		inOrder = append(inOrder, row)
	}
	assert.Equal(t, []string{"foo", "bar", "baz"}, inOrder)
}

func TestTableMove(t *testing.T) {
	tree := treeindex.Strings()
	order := insertionorder.New[string]()
	src := New([]index.Index[string]{tree, order})
	require.NoError(t, src.InsertAll("foo", "bar", "baz", "qux"))

	dst := src.Move()

	assert.Equal(t, 0, src.Size())
	assert.Empty(t, storageOrder(src))

	require.Equal(t, 4, dst.Size())
	require.NoError(t, tree.Verify(dst.Rows()))

	var ordered []string
	for _, row := range tree.Ascend(dst.Rows()) {
		ordered = append(ordered, row)
	}
	assert.Equal(t, []string{"bar", "baz", "foo", "qux"}, ordered)

	var inOrder []string
	for _, row := range order.Ordered(dst.Rows()) {
		inOrder = append(inOrder, row)
	}
	assert.Equal(t, []string{"foo", "bar", "baz", "qux"}, inOrder)

	for _, row := range []string{"foo", "bar", "baz", "qux"} {
		_, ok := Find(dst, tree, row)
		assert.True(t, ok, row)
	}
}

func TestClearResetsToFreshState(t *testing.T) {
	byName := hashindex.Strings()
	tree := treeindex.Strings()
	tbl := New([]index.Index[string]{byName, tree})
	require.NoError(t, tbl.InsertAll("foo", "bar", "baz"))

	tbl.Clear()
	assert.Equal(t, 0, tbl.Size())
	_, ok := Find(tbl, byName, "foo")
	assert.False(t, ok)

	require.NoError(t, tbl.InsertAll("foo", "grault"))
	assert.Equal(t, 2, tbl.Size())
	_, ok = Find(tbl, tree, "grault")
	assert.True(t, ok)
}

func TestInsertEraseRoundTrip(t *testing.T) {
	byName := hashindex.Strings()
	tree := treeindex.Strings()
	tbl := New([]index.Index[string]{byName, tree})
	require.NoError(t, tbl.InsertAll("foo", "bar", "baz"))

	id, err := tbl.Insert("qux")
	require.NoError(t, err)
	tbl.Erase(id)

	assert.Equal(t, 3, tbl.Size())
	_, ok := Find(tbl, byName, "qux")
	assert.False(t, ok)
	for _, row := range []string{"foo", "bar", "baz"} {
		got, ok := Get(tbl, byName, row)
		require.True(t, ok, row)
		assert.Equal(t, row, *got)
		got, ok = Get(tbl, tree, row)
		require.True(t, ok, row)
		assert.Equal(t, row, *got)
	}
	require.NoError(t, tree.Verify(tbl.Rows()))
}

func TestEraseOutOfRangePanics(t *testing.T) {
	tbl := New([]index.Index[string]{hashindex.Strings()})

	assert.Panics(t, func() { tbl.Erase(0) })
	assert.Panics(t, func() { tbl.Erase(-1) })
}

func TestReserve(t *testing.T) {
	byName := hashindex.Strings()
	tbl := New([]index.Index[string]{byName}, WithCapacity(64))

	tbl.Reserve(128)
	require.NoError(t, tbl.InsertAll("foo", "bar"))
	assert.Equal(t, 2, tbl.Size())
}
