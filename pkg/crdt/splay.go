package crdt

// splayValue is anything a splayTree can index by live length: RGATreeList
// nodes index by "1 live slot per non-tombstoned element", RGATreeSplit
// nodes index by live character count (spec §4.4, §4.5).
type splayValue interface {
	splayLength() int
}

// splayNode is one node of a self-adjusting binary search tree keyed
// implicitly by rank (the sum of live lengths to its left), so indexOf and
// findByIndex are O(log n) amortized without a separate positional index
// (spec's "Splay tree" component, shared by RGATreeList and RGATreeSplit).
type splayNode struct {
	value  splayValue
	weight int // subtree size: value.splayLength() + left.weight + right.weight
	left   *splayNode
	right  *splayNode
	parent *splayNode
}

func newSplayNode(value splayValue) *splayNode {
	n := &splayNode{value: value}
	n.weight = value.splayLength()
	return n
}

func (n *splayNode) leftWeight() int {
	if n.left == nil {
		return 0
	}
	return n.left.weight
}

func (n *splayNode) rightWeight() int {
	if n.right == nil {
		return 0
	}
	return n.right.weight
}

func (n *splayNode) updateWeight() {
	n.weight = n.value.splayLength() + n.leftWeight() + n.rightWeight()
}

// splayTree is the root holder; insert/delete operate by splaying the
// target node to the root first so the implicit-rank arithmetic only ever
// touches the root's immediate children.
type splayTree struct {
	root *splayNode
}

func newSplayTree() *splayTree { return &splayTree{} }

func (t *splayTree) rotateLeft(x *splayNode) {
	y := x.right
	if y == nil {
		return
	}
	x.right = y.left
	if y.left != nil {
		y.left.parent = x
	}
	y.parent = x.parent
	if x.parent != nil {
		if x.parent.left == x {
			x.parent.left = y
		} else {
			x.parent.right = y
		}
	} else {
		t.root = y
	}
	y.left = x
	x.parent = y
	x.updateWeight()
	y.updateWeight()
}

func (t *splayTree) rotateRight(x *splayNode) {
	y := x.left
	if y == nil {
		return
	}
	x.left = y.right
	if y.right != nil {
		y.right.parent = x
	}
	y.parent = x.parent
	if x.parent != nil {
		if x.parent.left == x {
			x.parent.left = y
		} else {
			x.parent.right = y
		}
	} else {
		t.root = y
	}
	y.right = x
	x.parent = y
	x.updateWeight()
	y.updateWeight()
}

// splay moves n to the root via zig/zig-zig/zig-zag rotations.
func (t *splayTree) splay(n *splayNode) {
	for n.parent != nil {
		p := n.parent
		g := p.parent
		if g == nil {
			if p.left == n {
				t.rotateRight(p)
			} else {
				t.rotateLeft(p)
			}
		} else if g.left == p && p.left == n {
			t.rotateRight(g)
			t.rotateRight(p)
		} else if g.right == p && p.right == n {
			t.rotateLeft(g)
			t.rotateLeft(p)
		} else if g.left == p && p.right == n {
			t.rotateLeft(p)
			t.rotateRight(g)
		} else {
			t.rotateRight(p)
			t.rotateLeft(g)
		}
	}
}

// InsertAfter splays target to the root and attaches a node for value as its
// right child's leftmost descendant, preserving in-order position.
func (t *splayTree) InsertAfter(target *splayNode, value splayValue) *splayNode {
	n := newSplayNode(value)
	if target == nil {
		if t.root == nil {
			t.root = n
			return n
		}
		// Insert at the very front: becomes leftmost.
		leftmost := t.root
		for leftmost.left != nil {
			leftmost = leftmost.left
		}
		t.splay(leftmost)
		n.right = t.root
		t.root.parent = n
		t.root.left = nil
		t.root.updateWeight()
		t.root = n
		n.updateWeight()
		return n
	}

	t.splay(target)
	n.left = target
	n.right = target.right
	if target.right != nil {
		target.right.parent = n
	}
	target.right = nil
	target.parent = n
	target.updateWeight()
	t.root = n
	n.updateWeight()
	return n
}

// Delete removes n from the tree, splicing its left and right subtrees
// together. The node itself is not reused.
func (t *splayTree) Delete(n *splayNode) {
	t.splay(n)
	if n.left == nil {
		t.root = n.right
		if t.root != nil {
			t.root.parent = nil
		}
		return
	}
	if n.right == nil {
		t.root = n.left
		if t.root != nil {
			t.root.parent = nil
		}
		return
	}

	left := n.left
	left.parent = nil
	rightmost := left
	for rightmost.right != nil {
		rightmost = rightmost.right
	}
	t.root = left
	t.splay(rightmost)
	t.root.right = n.right
	n.right.parent = t.root
	t.root.updateWeight()
}

// IndexOf returns the rank (count of live length strictly to the left) of
// n, splaying n to the root as a side effect.
func (t *splayTree) IndexOf(n *splayNode) int {
	if n == nil {
		return -1
	}
	t.splay(n)
	return n.leftWeight()
}

// Find returns the node whose live-length range contains index, and the
// offset of index within that node's own length.
func (t *splayTree) Find(index int) (*splayNode, int) {
	n := t.root
	for n != nil {
		switch {
		case n.left != nil && index < n.leftWeight():
			n = n.left
		case index < n.leftWeight()+n.value.splayLength():
			offset := index - n.leftWeight()
			t.splay(n)
			return n, offset
		default:
			index -= n.leftWeight() + n.value.splayLength()
			n = n.right
		}
	}
	return nil, 0
}

// UpdateWeight recomputes n's own weight and its ancestors' after n's
// underlying value's live length changes (e.g. a node is tombstoned).
func (t *splayTree) UpdateWeight(n *splayNode) {
	for cur := n; cur != nil; cur = cur.parent {
		cur.updateWeight()
	}
}

// Len returns the total live length spanned by the tree.
func (t *splayTree) Len() int {
	if t.root == nil {
		return 0
	}
	return t.root.weight
}
