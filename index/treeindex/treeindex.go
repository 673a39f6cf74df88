// Package treeindex provides ordered lookup, range queries and seek over
// table rows through a B-tree of row ids.
package treeindex

import (
	"slices"

	"github.com/hupe1980/multitable/index"
)

// Callbacks supplies key derivation, equality and ordering for one index.
// The key type K may differ from the row type. IsBefore must define a
// strict weak order over rows and query keys.
type Callbacks[R, K any] struct {
	// KeyForRow derives the key the index orders a row by.
	KeyForRow func(row R) K

	// Matches reports whether row's key equals the query key.
	Matches func(row R, key K) bool

	// IsBefore reports whether row's key sorts strictly before the query
	// key.
	IsBefore func(row R, key K) bool
}

const (
	// leafFanout is the number of row ids per leaf. Must be even so that
	// a split yields two exactly half full leaves.
	leafFanout = 14

	// parentFanout is the number of child pointers per parent, leaving
	// parentFanout-1 separator keys.
	parentFanout = 8

	maxKeys = parentFanout - 1

	nilNode = -1
)

type nodeKind uint8

const (
	leafNode nodeKind = iota
	parentNode
)

// node is one pool slot. Leaves use rows plus the next/prev neighbor
// links; parents use keys and children. Freed slots chain through next.
// Separator keys are row ids: keys[i] is the first row of the subtree
// under children[i+1].
type node struct {
	kind  nodeKind
	count uint8 // rows in a leaf, separator keys in a parent

	next int32
	prev int32

	rows     [leafFanout]int32
	keys     [maxKeys]int32
	children [parentFanout]int32
}

func (n *node) capacity() int {
	if n.kind == leafNode {
		return leafFanout
	}
	return maxKeys
}

func (n *node) isFull() bool {
	return int(n.count) == n.capacity()
}

// isHalfFull reports whether the node sits exactly on the minimum fill
// for a body node.
func (n *node) isHalfFull() bool {
	return int(n.count) == n.capacity()/2
}

func (n *node) isMostlyFull() bool {
	return int(n.count) > n.capacity()/2
}

func (n *node) underHalf() bool {
	return int(n.count) < n.capacity()/2
}

// Index is a B-tree of row ids ordered by the callbacks' key. Nodes live
// in a pool backed by a single slice with a free list, so the whole tree
// relocates by copying one array. The root is pinned at pool slot 0.
type Index[R, K any] struct {
	cb     Callbacks[R, K]
	pool   []node
	free   int32 // head of the freed-slot chain
	height int   // 0 while the root is a leaf
	size   int
}

var _ index.Finder[string, string] = (*Index[string, string])(nil)

// New creates a tree index from the given callbacks.
func New[R, K any](cb Callbacks[R, K]) *Index[R, K] {
	if cb.KeyForRow == nil || cb.Matches == nil || cb.IsBefore == nil {
		panic("treeindex: incomplete callbacks")
	}
	return &Index[R, K]{cb: cb, free: nilNode}
}

// Strings returns a tree index for tables whose rows are their own
// string key.
func Strings() *Index[string, string] {
	return New(Callbacks[string, string]{
		KeyForRow: func(row string) string { return row },
		Matches:   func(row, key string) bool { return row == key },
		IsBefore:  func(row, key string) bool { return row < key },
	})
}

// Uints returns a tree index for tables whose rows are their own uint64
// key.
func Uints() *Index[uint64, uint64] {
	return New(Callbacks[uint64, uint64]{
		KeyForRow: func(row uint64) uint64 { return row },
		Matches:   func(row, key uint64) bool { return row == key },
		IsBefore:  func(row, key uint64) bool { return row < key },
	})
}

// Len returns the number of rows in the index.
func (x *Index[R, K]) Len() int {
	return x.size
}

// Reserve grows the node pool to roughly fit n more rows.
func (x *Index[R, K]) Reserve(n int) {
	x.pool = slices.Grow(x.pool, n/(leafFanout/2)+2)
}

// Insert registers the row at id, or returns the id of the row already
// holding an equal key. Splits performed before a duplicate is
// discovered are kept; they do not change the tree's contents.
func (x *Index[R, K]) Insert(rows []R, id int) (int, bool) {
	x.ensureRoot()
	key := x.cb.KeyForRow(rows[id])

	if x.pool[0].isFull() {
		x.growRoot()
	}

	nodeID := int32(0)
	for level := x.height; level > 0; level-- {
		n := &x.pool[nodeID]
		i := 0
		for i < int(n.count) && x.cb.IsBefore(rows[n.keys[i]], key) {
			i++
		}
		if i < int(n.count) && x.cb.Matches(rows[n.keys[i]], key) {
			return int(n.keys[i]), false
		}
		if x.pool[n.children[i]].isFull() {
			x.splitChild(nodeID, i)
			n = &x.pool[nodeID] // splitChild may grow the pool
			if x.cb.Matches(rows[n.keys[i]], key) {
				return int(n.keys[i]), false
			}
			if x.cb.IsBefore(rows[n.keys[i]], key) {
				i++
			}
		}
		nodeID = n.children[i]
	}

	leaf := &x.pool[nodeID]
	pos := 0
	for pos < int(leaf.count) && x.cb.IsBefore(rows[leaf.rows[pos]], key) {
		pos++
	}
	if pos < int(leaf.count) && x.cb.Matches(rows[leaf.rows[pos]], key) {
		return int(leaf.rows[pos]), false
	}
	copy(leaf.rows[pos+1:int(leaf.count)+1], leaf.rows[pos:int(leaf.count)])
	leaf.rows[pos] = int32(id)
	leaf.count++
	x.size++
	return id, true
}

// Erase removes the row at id. On the way back up the descent path, a
// separator key referencing the erased id is rewritten to the new first
// row of its subtree before the node holding it is rebalanced.
func (x *Index[R, K]) Erase(rows []R, id int) {
	if x.size == 0 {
		return
	}
	key := x.cb.KeyForRow(rows[id])
	if !x.eraseFrom(0, x.height, rows, int32(id), key) {
		return
	}
	x.size--

	if x.height > 0 && x.pool[0].count == 0 {
		// The root holds a single child; pull it up a level.
		childID := x.pool[0].children[0]
		x.pool[0] = x.pool[childID]
		x.freeNode(childID)
		x.height--
	}
}

// Move rewrites the row id from to to, both in the leaf holding it and
// in any separator key along the descent path. rows[from] is never
// touched: the comparison key is derived from the row's new position.
func (x *Index[R, K]) Move(rows []R, from, to int) {
	if x.size == 0 {
		return
	}
	key := x.cb.KeyForRow(rows[to])
	f, t := int32(from), int32(to)

	nodeID := int32(0)
	for level := x.height; level > 0; level-- {
		n := &x.pool[nodeID]
		i := 0
		childIdx := -1
		for i < int(n.count) {
			if n.keys[i] == f {
				n.keys[i] = t
				childIdx = i + 1 // the row is the first of the right subtree
				break
			}
			if !x.cb.IsBefore(rows[n.keys[i]], key) {
				break
			}
			i++
		}
		if childIdx < 0 {
			childIdx = i
		}
		nodeID = n.children[childIdx]
	}

	leaf := &x.pool[nodeID]
	for pos := 0; pos < int(leaf.count); pos++ {
		if leaf.rows[pos] == f {
			leaf.rows[pos] = t
			return
		}
	}
}

// Find returns the id of the row matching query, if any.
func (x *Index[R, K]) Find(rows []R, query K) (int, bool) {
	if x.size == 0 {
		return 0, false
	}
	nodeID := int32(0)
	for level := x.height; level > 0; level-- {
		n := &x.pool[nodeID]
		i := 0
		for i < int(n.count) && x.cb.IsBefore(rows[n.keys[i]], query) {
			i++
		}
		if i < int(n.count) && x.cb.Matches(rows[n.keys[i]], query) {
			return int(n.keys[i]), true
		}
		nodeID = n.children[i]
	}
	leaf := &x.pool[nodeID]
	for pos := 0; pos < int(leaf.count); pos++ {
		r := leaf.rows[pos]
		if !x.cb.IsBefore(rows[r], query) {
			if x.cb.Matches(rows[r], query) {
				return int(r), true
			}
			return 0, false
		}
	}
	return 0, false
}

// Clear drops all entries. The pool's backing array is retained, but
// both the pool length and the free-list head are reset, so the next
// allocation starts from a clean arena.
func (x *Index[R, K]) Clear() {
	x.pool = x.pool[:0]
	x.free = nilNode
	x.height = 0
	x.size = 0
}

func (x *Index[R, K]) ensureRoot() {
	if len(x.pool) == 0 {
		x.pool = append(x.pool, node{kind: leafNode, next: nilNode, prev: nilNode})
		x.free = nilNode
	}
}

func (x *Index[R, K]) alloc() int32 {
	if x.free != nilNode {
		id := x.free
		x.free = x.pool[id].next
		x.pool[id] = node{}
		return id
	}
	x.pool = append(x.pool, node{})
	return int32(len(x.pool) - 1)
}

func (x *Index[R, K]) freeNode(id int32) {
	x.pool[id] = node{next: x.free}
	x.free = id
}

// growRoot moves the root's content into a fresh node and turns slot 0
// into a parent of that node, then splits it. The root stays at slot 0
// and the tree grows by one level.
func (x *Index[R, K]) growRoot() {
	copyID := x.alloc()
	x.pool[copyID] = x.pool[0]
	root := &x.pool[0]
	*root = node{kind: parentNode, next: nilNode, prev: nilNode}
	root.children[0] = copyID
	x.height++
	x.splitChild(0, 0)
}

// splitChild splits the full child at childIdx of parent parentID into
// two half full nodes and inserts the promoted separator into the
// parent. The parent must not be full.
func (x *Index[R, K]) splitChild(parentID int32, childIdx int) {
	rightID := x.alloc()
	p := &x.pool[parentID]
	leftID := p.children[childIdx]
	left := &x.pool[leftID]
	right := &x.pool[rightID]

	var sep int32
	if left.kind == leafNode {
		const half = leafFanout / 2
		*right = node{kind: leafNode}
		copy(right.rows[:], left.rows[half:])
		right.count = leafFanout - half
		clear(left.rows[half:])
		left.count = half

		right.prev = leftID
		right.next = left.next
		left.next = rightID
		if right.next != nilNode {
			x.pool[right.next].prev = rightID
		}
		sep = right.rows[0]
	} else {
		const half = maxKeys / 2
		*right = node{kind: parentNode, next: nilNode, prev: nilNode}
		sep = left.keys[half]
		copy(right.keys[:], left.keys[half+1:])
		copy(right.children[:], left.children[half+1:])
		right.count = maxKeys - half - 1
		clear(left.keys[half:])
		clear(left.children[half+1:])
		left.count = half
	}

	copy(p.keys[childIdx+1:int(p.count)+1], p.keys[childIdx:int(p.count)])
	copy(p.children[childIdx+2:int(p.count)+2], p.children[childIdx+1:int(p.count)+1])
	p.keys[childIdx] = sep
	p.children[childIdx+1] = rightID
	p.count++
}

// eraseFrom removes id from the subtree under nodeID and rebalances on
// the way back up. It reports whether the row was found.
func (x *Index[R, K]) eraseFrom(nodeID int32, level int, rows []R, id int32, key K) bool {
	if level == 0 {
		leaf := &x.pool[nodeID]
		for pos := 0; pos < int(leaf.count); pos++ {
			if leaf.rows[pos] == id {
				copy(leaf.rows[pos:], leaf.rows[pos+1:int(leaf.count)])
				leaf.count--
				leaf.rows[leaf.count] = 0
				return true
			}
		}
		return false
	}

	n := &x.pool[nodeID]
	i := 0
	for i < int(n.count) && x.cb.IsBefore(rows[n.keys[i]], key) {
		i++
	}
	childIdx := i
	if i < int(n.count) && n.keys[i] == id {
		// The erased row is the first of the right subtree.
		childIdx = i + 1
	}
	if !x.eraseFrom(n.children[childIdx], level-1, rows, id, key) {
		return false
	}

	n = &x.pool[nodeID]
	if childIdx > 0 && n.keys[childIdx-1] == id {
		n.keys[childIdx-1] = x.subtreeFirst(n.children[childIdx])
	}
	x.rebalance(nodeID, childIdx)
	return true
}

// rebalance restores the minimum fill of the child at childIdx, first by
// borrowing from a sibling with rows to spare, else by merging.
func (x *Index[R, K]) rebalance(parentID int32, childIdx int) {
	p := &x.pool[parentID]
	c := &x.pool[p.children[childIdx]]
	if !c.underHalf() {
		return
	}

	if childIdx < int(p.count) {
		r := &x.pool[p.children[childIdx+1]]
		if r.isMostlyFull() {
			if c.kind == leafNode {
				c.rows[c.count] = r.rows[0]
				c.count++
				copy(r.rows[:], r.rows[1:int(r.count)])
				r.count--
				r.rows[r.count] = 0
				p.keys[childIdx] = r.rows[0]
			} else {
				c.keys[c.count] = p.keys[childIdx]
				c.children[c.count+1] = r.children[0]
				c.count++
				p.keys[childIdx] = r.keys[0]
				copy(r.keys[:], r.keys[1:int(r.count)])
				copy(r.children[:], r.children[1:int(r.count)+1])
				r.count--
				r.keys[r.count] = 0
				r.children[r.count+1] = 0
			}
			return
		}
	}

	if childIdx > 0 {
		l := &x.pool[p.children[childIdx-1]]
		if l.isMostlyFull() {
			if c.kind == leafNode {
				copy(c.rows[1:int(c.count)+1], c.rows[:int(c.count)])
				c.rows[0] = l.rows[l.count-1]
				c.count++
				l.rows[l.count-1] = 0
				l.count--
				p.keys[childIdx-1] = c.rows[0]
			} else {
				copy(c.keys[1:int(c.count)+1], c.keys[:int(c.count)])
				copy(c.children[1:int(c.count)+2], c.children[:int(c.count)+1])
				c.keys[0] = p.keys[childIdx-1]
				c.children[0] = l.children[l.count]
				c.count++
				p.keys[childIdx-1] = l.keys[l.count-1]
				l.keys[l.count-1] = 0
				l.children[l.count] = 0
				l.count--
			}
			return
		}
	}

	leftIdx := childIdx
	if childIdx == int(p.count) {
		leftIdx = childIdx - 1
	}
	x.mergeChildren(parentID, leftIdx)
}

// mergeChildren folds the child at leftIdx+1 into the child at leftIdx
// and removes the separator between them from the parent.
func (x *Index[R, K]) mergeChildren(parentID int32, leftIdx int) {
	p := &x.pool[parentID]
	leftID := p.children[leftIdx]
	rightID := p.children[leftIdx+1]
	l := &x.pool[leftID]
	r := &x.pool[rightID]

	if l.kind == leafNode {
		copy(l.rows[int(l.count):], r.rows[:int(r.count)])
		l.count += r.count
		l.next = r.next
		if r.next != nilNode {
			x.pool[r.next].prev = leftID
		}
	} else {
		l.keys[l.count] = p.keys[leftIdx]
		copy(l.keys[int(l.count)+1:], r.keys[:int(r.count)])
		copy(l.children[int(l.count)+1:], r.children[:int(r.count)+1])
		l.count += r.count + 1
	}

	copy(p.keys[leftIdx:], p.keys[leftIdx+1:int(p.count)])
	copy(p.children[leftIdx+1:], p.children[leftIdx+2:int(p.count)+1])
	p.count--
	p.keys[p.count] = 0
	p.children[p.count+1] = 0

	x.freeNode(rightID)
}

// subtreeFirst returns the first row id of the subtree under nodeID.
func (x *Index[R, K]) subtreeFirst(nodeID int32) int32 {
	n := &x.pool[nodeID]
	for n.kind == parentNode {
		n = &x.pool[n.children[0]]
	}
	return n.rows[0]
}

// leftmostLeaf returns the id of the leftmost leaf, or nilNode when the
// tree is empty.
func (x *Index[R, K]) leftmostLeaf() int32 {
	if x.size == 0 {
		return nilNode
	}
	id := int32(0)
	for x.pool[id].kind == parentNode {
		id = x.pool[id].children[0]
	}
	return id
}

// rightmostLeaf returns the id of the rightmost leaf, or nilNode when
// the tree is empty.
func (x *Index[R, K]) rightmostLeaf() int32 {
	if x.size == 0 {
		return nilNode
	}
	id := int32(0)
	for {
		n := &x.pool[id]
		if n.kind == leafNode {
			return id
		}
		id = n.children[n.count]
	}
}
