package treeindex

import "iter"

type itState uint8

const (
	beforeFirst itState = iota
	onRow
	afterLast
)

// Iterator walks rows in key order by following the leaf neighbor
// links. A fresh iterator is positioned before its first row; Next
// advances onto it. Any mutation of the index or the table invalidates
// the iterator.
type Iterator[R, K any] struct {
	x     *Index[R, K]
	rows  []R
	state itState
	node  int32
	pos   int
	hasHi bool
	hi    K
}

// Ordered returns an iterator over all rows in key order.
func (x *Index[R, K]) Ordered(rows []R) *Iterator[R, K] {
	it := &Iterator[R, K]{x: x, rows: rows}
	it.node = x.leftmostLeaf()
	return it
}

// Seek returns an iterator positioned before the first row whose key is
// not before query (the lower bound).
func (x *Index[R, K]) Seek(rows []R, query K) *Iterator[R, K] {
	it := &Iterator[R, K]{x: x, rows: rows}
	it.node, it.pos = x.lowerBound(rows, query)
	return it
}

// Range returns an iterator over the rows whose keys fall in [lo, hi).
func (x *Index[R, K]) Range(rows []R, lo, hi K) *Iterator[R, K] {
	it := x.Seek(rows, lo)
	it.hasHi = true
	it.hi = hi
	if it.node != nilNode {
		row := rows[x.pool[it.node].rows[it.pos]]
		if !x.cb.IsBefore(row, hi) {
			it.node = nilNode
			it.pos = 0
		}
	}
	return it
}

// Ascend returns the rows in key order as a range-over iterator.
func (x *Index[R, K]) Ascend(rows []R) iter.Seq2[int, R] {
	return func(yield func(int, R) bool) {
		it := x.Ordered(rows)
		for it.Next() {
			if !yield(it.RowID(), it.Row()) {
				return
			}
		}
	}
}

// Next advances to the next row and reports whether one is available.
func (it *Iterator[R, K]) Next() bool {
	switch it.state {
	case beforeFirst:
		if it.node == nilNode {
			it.state = afterLast
			return false
		}
		it.state = onRow
	case onRow:
		n := &it.x.pool[it.node]
		it.pos++
		if it.pos == int(n.count) {
			if n.next == nilNode {
				it.state = afterLast
				return false
			}
			it.node = n.next
			it.pos = 0
		}
	case afterLast:
		return false
	}
	if it.hasHi && !it.x.cb.IsBefore(it.Row(), it.hi) {
		it.state = afterLast
		return false
	}
	return true
}

// Prev moves to the previous row and reports whether one is available.
// From the past-the-end position it moves onto the last row in range;
// an iterator created by Seek or Range may walk back past its starting
// bound.
func (it *Iterator[R, K]) Prev() bool {
	switch it.state {
	case afterLast:
		node, pos, ok := it.lastPos()
		if !ok {
			return false
		}
		it.node, it.pos = node, pos
		it.state = onRow
		return true
	case onRow:
		if it.pos > 0 {
			it.pos--
			return true
		}
		n := &it.x.pool[it.node]
		if n.prev == nilNode {
			it.state = beforeFirst
			return false
		}
		it.node = n.prev
		it.pos = int(it.x.pool[it.node].count) - 1
		return true
	}
	return false
}

// RowID returns the id of the current row.
func (it *Iterator[R, K]) RowID() int {
	return int(it.x.pool[it.node].rows[it.pos])
}

// Row returns the current row.
func (it *Iterator[R, K]) Row() R {
	return it.rows[it.RowID()]
}

// lastPos locates the final in-range row.
func (it *Iterator[R, K]) lastPos() (int32, int, bool) {
	if it.x.size == 0 {
		return nilNode, 0, false
	}
	if it.hasHi {
		node, pos := it.x.lowerBound(it.rows, it.hi)
		return it.predOf(node, pos)
	}
	leaf := it.x.rightmostLeaf()
	return leaf, int(it.x.pool[leaf].count) - 1, true
}

// predOf returns the position preceding (node, pos), where node ==
// nilNode means past the end.
func (it *Iterator[R, K]) predOf(node int32, pos int) (int32, int, bool) {
	if node == nilNode {
		leaf := it.x.rightmostLeaf()
		return leaf, int(it.x.pool[leaf].count) - 1, true
	}
	if pos > 0 {
		return node, pos - 1, true
	}
	p := it.x.pool[node].prev
	if p == nilNode {
		return nilNode, 0, false
	}
	return p, int(it.x.pool[p].count) - 1, true
}

// lowerBound returns the leaf and position of the first row whose key
// is not before query, or (nilNode, 0) when every row is before it.
func (x *Index[R, K]) lowerBound(rows []R, query K) (int32, int) {
	if x.size == 0 {
		return nilNode, 0
	}
	nodeID := int32(0)
	for level := x.height; level > 0; level-- {
		n := &x.pool[nodeID]
		i := 0
		for i < int(n.count) && x.cb.IsBefore(rows[n.keys[i]], query) {
			i++
		}
		nodeID = n.children[i]
	}
	leaf := &x.pool[nodeID]
	for pos := 0; pos < int(leaf.count); pos++ {
		if !x.cb.IsBefore(rows[leaf.rows[pos]], query) {
			return nodeID, pos
		}
	}
	if leaf.next == nilNode {
		return nilNode, 0
	}
	return leaf.next, 0
}
