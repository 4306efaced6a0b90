package index

import "pagedb/src/tuple"

// DefaultOrder is the tree order used by the registry.
const DefaultOrder = 64

type leafNode struct {
	keys []tuple.Value
	// One row list per key: duplicate keys are normal and keep insertion
	// order within their list.
	vals [][]tuple.Row
	next *leafNode
}

type innerNode struct {
	keys     []tuple.Value
	children []interface{} // *innerNode or *leafNode
}

// BPTree is the in-memory ordered index over one column. All data lives in
// the leaves, chained left to right for range scans. The tree holds full row
// snapshots, so lookups never revisit the table heap; entries are not kept
// in sync with later table mutations unless the caller routes updates
// through both surfaces.
type BPTree struct {
	order int
	root  interface{}
}

// NewBPTree builds an empty order-k tree. Orders below 4 are clamped.
func NewBPTree(order int) *BPTree {
	if order < 4 {
		order = 4
	}
	return &BPTree{order: order, root: &leafNode{}}
}

// findLeaf descends to the leaf that should hold key, optionally recording
// the inner nodes on the way for upward splits.
func (t *BPTree) findLeaf(key tuple.Value, path *[]*innerNode) *leafNode {
	node := t.root
	for {
		inner, ok := node.(*innerNode)
		if !ok {
			return node.(*leafNode)
		}
		if path != nil {
			*path = append(*path, inner)
		}
		i := 0
		for i < len(inner.keys) && key.Compare(inner.keys[i]) >= 0 {
			i++
		}
		node = inner.children[i]
	}
}

// Insert adds one {key, row} pair, splitting on overflow. Equal keys append
// to the existing row list, preserving insertion order.
func (t *BPTree) Insert(key tuple.Value, row tuple.Row) {
	var path []*innerNode
	leaf := t.findLeaf(key, &path)

	i := 0
	for i < len(leaf.keys) && key.Compare(leaf.keys[i]) > 0 {
		i++
	}
	if i < len(leaf.keys) && leaf.keys[i].Compare(key) == 0 {
		leaf.vals[i] = append(leaf.vals[i], row)
	} else {
		leaf.keys = append(leaf.keys, tuple.Value{})
		copy(leaf.keys[i+1:], leaf.keys[i:])
		leaf.keys[i] = key
		leaf.vals = append(leaf.vals, nil)
		copy(leaf.vals[i+1:], leaf.vals[i:])
		leaf.vals[i] = []tuple.Row{row}
	}

	if len(leaf.keys) > t.order-1 {
		t.splitLeaf(leaf, path)
	}
}

func (t *BPTree) splitLeaf(leaf *leafNode, path []*innerNode) {
	mid := len(leaf.keys) / 2
	right := &leafNode{
		keys: append([]tuple.Value(nil), leaf.keys[mid:]...),
		vals: append([][]tuple.Row(nil), leaf.vals[mid:]...),
		next: leaf.next,
	}
	leaf.keys = leaf.keys[:mid]
	leaf.vals = leaf.vals[:mid]
	leaf.next = right

	t.insertIntoParent(leaf, right.keys[0], right, path)
}

func (t *BPTree) insertIntoParent(left interface{}, sep tuple.Value, right interface{}, path []*innerNode) {
	if len(path) == 0 {
		t.root = &innerNode{
			keys:     []tuple.Value{sep},
			children: []interface{}{left, right},
		}
		return
	}
	parent := path[len(path)-1]
	path = path[:len(path)-1]

	i := 0
	for i < len(parent.children) && parent.children[i] != left {
		i++
	}
	parent.keys = append(parent.keys, tuple.Value{})
	copy(parent.keys[i+1:], parent.keys[i:])
	parent.keys[i] = sep
	parent.children = append(parent.children, nil)
	copy(parent.children[i+2:], parent.children[i+1:])
	parent.children[i+1] = right

	if len(parent.keys) > t.order-1 {
		t.splitInner(parent, path)
	}
}

func (t *BPTree) splitInner(node *innerNode, path []*innerNode) {
	mid := len(node.keys) / 2
	sep := node.keys[mid]

	right := &innerNode{
		keys:     append([]tuple.Value(nil), node.keys[mid+1:]...),
		children: append([]interface{}(nil), node.children[mid+1:]...),
	}
	node.keys = node.keys[:mid]
	node.children = node.children[:mid+1]

	t.insertIntoParent(node, sep, right, path)
}

// Find returns all rows stored under exactly key, in insertion order.
func (t *BPTree) Find(key tuple.Value) []tuple.Row {
	leaf := t.findLeaf(key, nil)
	for i, k := range leaf.keys {
		if k.Compare(key) == 0 {
			out := make([]tuple.Row, len(leaf.vals[i]))
			copy(out, leaf.vals[i])
			return out
		}
	}
	return nil
}

// Range returns a lazy ascending cursor over keys within the given bounds.
// A nil bound is unbounded on that side.
func (t *BPTree) Range(lower, upper *tuple.Value, inclLower, inclUpper bool) *Cursor {
	var leaf *leafNode
	if lower == nil {
		node := t.root
		for {
			inner, ok := node.(*innerNode)
			if !ok {
				leaf = node.(*leafNode)
				break
			}
			node = inner.children[0]
		}
	} else {
		leaf = t.findLeaf(*lower, nil)
	}

	c := &Cursor{leaf: leaf, upper: upper, inclUpper: inclUpper}
	// Skip keys below the lower bound; the first qualifying key may sit in
	// a later leaf when the bound falls between leaves.
	if lower != nil {
		for c.leaf != nil {
			for c.keyIdx < len(c.leaf.keys) {
				cmp := c.leaf.keys[c.keyIdx].Compare(*lower)
				if cmp > 0 || (cmp == 0 && inclLower) {
					return c
				}
				c.keyIdx++
			}
			c.leaf = c.leaf.next
			c.keyIdx = 0
		}
	}
	return c
}

// Cursor streams rows from a range scan via the leaf chain.
type Cursor struct {
	leaf      *leafNode
	keyIdx    int
	rowIdx    int
	upper     *tuple.Value
	inclUpper bool
	done      bool
}

// Next returns the next row in ascending key order, stopping at the first
// key violating the upper bound.
func (c *Cursor) Next() (tuple.Row, bool) {
	for !c.done && c.leaf != nil {
		if c.keyIdx >= len(c.leaf.keys) {
			c.leaf = c.leaf.next
			c.keyIdx = 0
			c.rowIdx = 0
			continue
		}
		if c.upper != nil {
			cmp := c.leaf.keys[c.keyIdx].Compare(*c.upper)
			if cmp > 0 || (cmp == 0 && !c.inclUpper) {
				c.done = true
				return nil, false
			}
		}
		rows := c.leaf.vals[c.keyIdx]
		if c.rowIdx < len(rows) {
			row := rows[c.rowIdx]
			c.rowIdx++
			return row, true
		}
		c.keyIdx++
		c.rowIdx = 0
	}
	return nil, false
}
