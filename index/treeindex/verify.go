package treeindex

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
)

// Verify walks the whole tree checking its structural invariants: node
// fullness bounds, key ordering within and across nodes, separator keys
// equal to the first row of their right subtree, leaf neighbor links,
// row id uniqueness and range, and free-list integrity. It exists for
// tests, in particular the randomized workloads that call it after
// every mutation.
func (x *Index[R, K]) Verify(rows []R) error {
	if len(x.pool) == 0 {
		if x.size != 0 {
			return fmt.Errorf("treeindex: size %d with no nodes", x.size)
		}
		return nil
	}

	seen := roaring.New()
	visited := roaring.New()
	var leaves []int32

	var walk func(nodeID int32, level int) (first, last int32, total int, err error)
	walk = func(nodeID int32, level int) (int32, int32, int, error) {
		if nodeID < 0 || int(nodeID) >= len(x.pool) {
			return 0, 0, 0, fmt.Errorf("treeindex: node id %d out of pool range", nodeID)
		}
		if visited.Contains(uint32(nodeID)) {
			return 0, 0, 0, fmt.Errorf("treeindex: node %d reachable twice", nodeID)
		}
		visited.Add(uint32(nodeID))

		n := &x.pool[nodeID]
		if level == 0 {
			if n.kind != leafNode {
				return 0, 0, 0, fmt.Errorf("treeindex: node %d is not a leaf at leaf level", nodeID)
			}
			if err := x.checkLeafBounds(nodeID, n); err != nil {
				return 0, 0, 0, err
			}
			if n.count == 0 {
				// Only an empty root leaf may have no rows.
				leaves = append(leaves, nodeID)
				return 0, 0, 0, nil
			}
			for j := 0; j < int(n.count); j++ {
				r := n.rows[j]
				if r < 0 || int(r) >= len(rows) {
					return 0, 0, 0, fmt.Errorf("treeindex: leaf %d holds row id %d outside [0,%d)", nodeID, r, len(rows))
				}
				if seen.Contains(uint32(r)) {
					return 0, 0, 0, fmt.Errorf("treeindex: row id %d referenced twice", r)
				}
				seen.Add(uint32(r))
				if j > 0 && x.cb.IsBefore(rows[r], x.cb.KeyForRow(rows[n.rows[j-1]])) {
					return 0, 0, 0, fmt.Errorf("treeindex: leaf %d rows out of order at %d", nodeID, j)
				}
			}
			leaves = append(leaves, nodeID)
			return n.rows[0], n.rows[n.count-1], int(n.count), nil
		}

		if n.kind != parentNode {
			return 0, 0, 0, fmt.Errorf("treeindex: node %d is a leaf above leaf level", nodeID)
		}
		if err := x.checkParentBounds(nodeID, n); err != nil {
			return 0, 0, 0, err
		}

		var first, last int32
		total := 0
		for i := 0; i <= int(n.count); i++ {
			cf, cl, ct, err := walk(n.children[i], level-1)
			if err != nil {
				return 0, 0, 0, err
			}
			total += ct
			if i == 0 {
				first = cf
			} else {
				if n.keys[i-1] != cf {
					return 0, 0, 0, fmt.Errorf("treeindex: parent %d separator %d is row %d, want subtree first %d",
						nodeID, i-1, n.keys[i-1], cf)
				}
				if x.cb.IsBefore(rows[cf], x.cb.KeyForRow(rows[last])) {
					return 0, 0, 0, fmt.Errorf("treeindex: parent %d children %d and %d out of order", nodeID, i-1, i)
				}
			}
			last = cl
		}
		return first, last, total, nil
	}

	_, _, total, err := walk(0, x.height)
	if err != nil {
		return err
	}
	if total != x.size {
		return fmt.Errorf("treeindex: tree holds %d rows, size says %d", total, x.size)
	}

	// Leaf chain must mirror the in-order leaf sequence.
	for i, id := range leaves {
		n := &x.pool[id]
		if i == 0 && n.prev != nilNode {
			return fmt.Errorf("treeindex: leftmost leaf %d has prev %d", id, n.prev)
		}
		if i == len(leaves)-1 {
			if n.next != nilNode {
				return fmt.Errorf("treeindex: rightmost leaf %d has next %d", id, n.next)
			}
		} else if n.next != leaves[i+1] {
			return fmt.Errorf("treeindex: leaf %d next is %d, want %d", id, n.next, leaves[i+1])
		}
		if i > 0 && n.prev != leaves[i-1] {
			return fmt.Errorf("treeindex: leaf %d prev is %d, want %d", id, n.prev, leaves[i-1])
		}
	}

	// Every pool slot is either reachable from the root or on the free
	// list, never both.
	freeCount := 0
	for id := x.free; id != nilNode; id = x.pool[id].next {
		if id < 0 || int(id) >= len(x.pool) {
			return fmt.Errorf("treeindex: free list id %d out of pool range", id)
		}
		if visited.Contains(uint32(id)) {
			return fmt.Errorf("treeindex: node %d both reachable and free", id)
		}
		freeCount++
		if freeCount > len(x.pool) {
			return fmt.Errorf("treeindex: free list cycle")
		}
	}
	if int(visited.GetCardinality())+freeCount != len(x.pool) {
		return fmt.Errorf("treeindex: %d pool slots, %d reachable, %d free",
			len(x.pool), visited.GetCardinality(), freeCount)
	}
	return nil
}

func (x *Index[R, K]) checkLeafBounds(nodeID int32, n *node) error {
	if int(n.count) > leafFanout {
		return fmt.Errorf("treeindex: leaf %d over full: %d", nodeID, n.count)
	}
	if nodeID != 0 && n.underHalf() {
		return fmt.Errorf("treeindex: leaf %d under half full: %d", nodeID, n.count)
	}
	return nil
}

func (x *Index[R, K]) checkParentBounds(nodeID int32, n *node) error {
	if int(n.count) > maxKeys {
		return fmt.Errorf("treeindex: parent %d over full: %d", nodeID, n.count)
	}
	if nodeID == 0 {
		if n.count == 0 {
			return fmt.Errorf("treeindex: parent root with no keys")
		}
		return nil
	}
	if n.underHalf() {
		return fmt.Errorf("treeindex: parent %d under half full: %d", nodeID, n.count)
	}
	return nil
}
