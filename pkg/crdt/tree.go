package crdt

import (
	"strings"
	"sync"

	crdterrors "github.com/S-Corkum/crdt-engine/pkg/errors"
	"github.com/S-Corkum/crdt-engine/pkg/timestamp"
)

// TreeNodeID identifies a tree node: the TimeTicket of the operation that
// created it, plus an offset used the same way RGATreeSplit uses one — a
// text leaf split at an edit boundary keeps its creator's createdAt and
// advances its offset (spec §4.6).
type TreeNodeID struct {
	CreatedAt timestamp.TimeTicket
	Offset    int
}

// TreePos locates an edit boundary either as (parent, left sibling) — the
// position immediately to the right of leftSiblingID among parentID's
// children, or the first child position if leftSiblingID is the zero
// TreeNodeID — or, when parentID itself names a text leaf, as a rune
// offset into that leaf's own content (TextOffset), letting an edit address
// the interior of a paragraph's text the same way RGATreeSplit's NodePos
// does (spec §4.6: "conversions path ↔ index ↔ pos", "if from and to
// resolve inside the same text node, behaves as a rope edit").
type TreePos struct {
	ParentID      TreeNodeID
	LeftSiblingID TreeNodeID
	TextOffset    int
}

// TreeNode is either an internal (typed, with ordered children) or a leaf
// (a text rope) node of a Tree. It implements Element so it can live inside
// the RGATreeList used for each internal node's children.
type TreeNode struct {
	baseElement
	id       TreeNodeID
	nodeType string
	attrs    *RHT
	text     *RGATreeSplit // non-nil only for text leaves
	children *RGATreeList  // non-nil only for internal nodes
	parent   *TreeNode     // nil only for the tree's root node
}

func (n *TreeNode) splayLength() int {
	if n.IsRemoved() {
		return 0
	}
	if n.text != nil {
		return n.text.Len()
	}
	return 1
}

// IsText reports whether n is a text leaf.
func (n *TreeNode) IsText() bool { return n.text != nil }

// Type returns the node's tag name ("text" for leaves).
func (n *TreeNode) Type() string { return n.nodeType }

// NewTreeElementNode creates an internal node with an empty ordered-child
// list.
func NewTreeElementNode(nodeType string, createdAt timestamp.TimeTicket) *TreeNode {
	return &TreeNode{
		baseElement: newBaseElement(createdAt),
		id:          TreeNodeID{CreatedAt: createdAt},
		nodeType:    nodeType,
		children:    NewRGATreeList(),
	}
}

// NewTreeTextNode creates a text leaf seeded with value.
func NewTreeTextNode(value string, createdAt timestamp.TimeTicket) *TreeNode {
	n := &TreeNode{
		baseElement: newBaseElement(createdAt),
		id:          TreeNodeID{CreatedAt: createdAt},
		nodeType:    "text",
		text:        NewRGATreeSplit(),
	}
	if value != "" {
		pos, _ := n.text.FindPos(0)
		_, _ = n.text.Edit(pos, pos, value, nil, createdAt)
	}
	return n
}

func (n *TreeNode) DeepCopy() Element {
	clone := &TreeNode{
		baseElement: n.baseElement.clone(),
		id:          n.id,
		nodeType:    n.nodeType,
	}
	if n.attrs != nil {
		clone.attrs = n.attrs.DeepCopy()
	}
	if n.text != nil {
		clone.text = n.text.DeepCopy()
	}
	if n.children != nil {
		clone.children = n.children.DeepCopy()
	}
	return clone
}

func (n *TreeNode) ToJSON() any {
	if n.text != nil {
		return n.text.String()
	}
	kids := make([]any, 0)
	for _, child := range n.children.Elements() {
		kids = append(kids, child.ToJSON())
	}
	return map[string]any{"type": n.nodeType, "children": kids}
}

func (n *TreeNode) DataSize() DataSize {
	data := 0
	if n.text != nil {
		data = len(n.text.String())
	}
	size := DataSize{Live: GroupSize{Data: data, Meta: metaSize}}
	if n.IsRemoved() {
		size.GC, size.Live = size.Live, GroupSize{}
	}
	return size
}

// Tree is the CRDT rooted-tree element backing structured document content:
// internal nodes with a typed label and an ordered child list, leaves as
// text ropes, attributes via per-node RHT (spec §3.2, §4.6).
type Tree struct {
	baseElement
	mu       sync.RWMutex
	root     *TreeNode
	nodeByID map[TreeNodeID]*TreeNode
}

// NewTree creates a Tree rooted at an internal node of type "root".
func NewTree(createdAt timestamp.TimeTicket) *Tree {
	root := NewTreeElementNode("root", createdAt)
	t := &Tree{
		baseElement: newBaseElement(createdAt),
		root:        root,
		nodeByID:    map[TreeNodeID]*TreeNode{root.id: root},
	}
	return t
}

func (t *Tree) register(n *TreeNode) {
	t.nodeByID[n.id] = n
	if n.text == nil && n.children != nil {
		for _, c := range n.children.AllNodes() {
			child := c.(*TreeNode)
			child.parent = n
			t.register(child)
		}
	}
}

// Root returns the tree's root internal node.
func (t *Tree) Root() *TreeNode {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.root
}

// nodeFor resolves a TreeNodeID to its node, erroring with Reference if it
// is unknown.
func (t *Tree) nodeFor(id TreeNodeID) (*TreeNode, error) {
	n, ok := t.nodeByID[id]
	if !ok {
		return nil, crdterrors.New(crdterrors.KindReference, "Tree", "node not found")
	}
	return n, nil
}

// findParent resolves a TreePos to its parent node, erroring with Reference
// if the parent is unknown.
func (t *Tree) findParent(pos TreePos) (*TreeNode, error) {
	parent, err := t.nodeFor(pos.ParentID)
	if err != nil {
		return nil, err
	}
	if parent.children == nil {
		return nil, crdterrors.New(crdterrors.KindUnsupported, "Tree", "position parent is not an internal node")
	}
	return parent, nil
}

// Edit removes the nodes between fromPos and toPos and inserts contents in
// the gap, or — per spec §4.6's boundary rule — if fromPos and toPos both
// resolve inside the same text leaf, delegates to that leaf's own rope edit
// instead. splitLevel ancestor levels above the insertion point are split
// in two (the boundary node keeping its identity, a fresh right sibling
// taking everything after it) so contents land as proper siblings at the
// requested depth rather than nested one level too deep; splitTickets
// supplies one wire-stable identity per split level, minted once by the
// authoring replica so every replica that applies this edit creates the
// same split nodes (spec §4.6 "splits boundary nodes up to splitLevel
// ancestors", §4.7 idempotent replay). It returns the updated per-actor
// max-createdAt map. Only an edit inside one text leaf applies
// RGATreeSplit.Edit's preserve-concurrent-inserts rule (spec §4.5 step 2);
// the element path tombstones every node in range without consulting the
// map.
func (t *Tree) Edit(
	from, to TreePos,
	contents []*TreeNode,
	splitLevel int,
	splitTickets []timestamp.TimeTicket,
	maxCreatedAtMapByActor map[timestamp.ActorID]timestamp.TimeTicket,
	executedAt timestamp.TimeTicket,
) (map[timestamp.ActorID]timestamp.TimeTicket, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fromOwner, err := t.nodeFor(from.ParentID)
	if err != nil {
		return nil, err
	}
	toOwner, err := t.nodeFor(to.ParentID)
	if err != nil {
		return nil, err
	}

	if fromOwner.IsText() || toOwner.IsText() {
		if fromOwner != toOwner {
			return nil, crdterrors.New(crdterrors.KindUnsupported, "Tree.Edit", "an edit range spanning into or out of a text leaf is not supported")
		}
		fromPos, err := fromOwner.text.FindPos(from.TextOffset)
		if err != nil {
			return nil, err
		}
		toPos, err := fromOwner.text.FindPos(to.TextOffset)
		if err != nil {
			return nil, err
		}
		var sb strings.Builder
		for _, c := range contents {
			if c.IsText() {
				sb.WriteString(c.text.String())
			}
		}
		return fromOwner.text.Edit(fromPos, toPos, sb.String(), maxCreatedAtMapByActor, executedAt)
	}

	if fromOwner.children == nil || toOwner.children == nil {
		return nil, crdterrors.New(crdterrors.KindUnsupported, "Tree.Edit", "position node is not an internal node")
	}
	if fromOwner != toOwner {
		return nil, crdterrors.New(crdterrors.KindUnsupported, "Tree.Edit", "cross-parent ranges are not supported")
	}
	fromParent := fromOwner

	fromIdx := t.childIndexAfter(fromParent, from.LeftSiblingID)
	toIdx := t.childIndexAfter(fromParent, to.LeftSiblingID)

	kids := fromParent.children.AllNodes()
	for i := fromIdx; i < toIdx && i < len(kids); i++ {
		node := kids[i].(*TreeNode)
		if node.Remove(executedAt) {
			fromParent.children.tree.UpdateWeight(t.leafFor(fromParent, node))
		}
	}

	insertParent := fromParent
	insertAfter := from.LeftSiblingID.CreatedAt
	if splitLevel > 0 && len(contents) > 0 {
		tickets := splitTickets
		if len(tickets) > splitLevel {
			tickets = tickets[:splitLevel]
		}
		insertParent, insertAfter = t.splitAncestors(fromParent, insertAfter, tickets)
	}

	for _, c := range contents {
		if err := insertParent.children.InsertAfter(insertAfter, c); err != nil {
			return nil, err
		}
		c.parent = insertParent
		t.nodeByID[c.id] = c
		insertAfter = c.CreatedAt()
	}

	updated := make(map[timestamp.ActorID]timestamp.TimeTicket, len(maxCreatedAtMapByActor))
	for k, v := range maxCreatedAtMapByActor {
		updated[k] = v
	}
	for _, c := range contents {
		actor := c.id.CreatedAt.ActorID()
		if c.id.CreatedAt.After(updated[actor]) {
			updated[actor] = c.id.CreatedAt
		}
	}
	return updated, nil
}

// splitAncestors climbs one ancestor per ticket in splitTickets, splitting
// each level's child list at the boundary right after afterCreatedAt, so
// the final landing node is the ancestor len(splitTickets) levels above
// parent and the returned afterCreatedAt sits between the (possibly empty)
// left half of that chain and its freshly split right half.
func (t *Tree) splitAncestors(parent *TreeNode, afterCreatedAt timestamp.TimeTicket, splitTickets []timestamp.TimeTicket) (*TreeNode, timestamp.TimeTicket) {
	if len(splitTickets) == 0 || parent.parent == nil {
		return parent, afterCreatedAt
	}
	t.splitElementNode(parent, afterCreatedAt, splitTickets[0])
	return t.splitAncestors(parent.parent, parent.CreatedAt(), splitTickets[1:])
}

// splitElementNode splits node into itself (keeping children up to and
// including afterCreatedAt, or none at all if afterCreatedAt is the zero
// ticket) and a new right sibling of the same type holding the rest,
// inserted immediately after node in node's own parent's children.
// splitTicket is the right sibling's wire-stable identity: if a node
// already exists under it, this is a replay of an already-applied split
// and the existing node is returned unchanged rather than moving children
// a second time (spec §4.7, §8 property 3). Returns nil if there is
// nothing past the boundary to move and no split previously happened here.
func (t *Tree) splitElementNode(node *TreeNode, afterCreatedAt timestamp.TimeTicket, splitTicket timestamp.TimeTicket) *TreeNode {
	if existing, ok := t.nodeByID[TreeNodeID{CreatedAt: splitTicket}]; ok {
		return existing
	}
	if node.children == nil || node.parent == nil {
		return nil
	}

	kids := node.children.AllNodes()
	splitIdx := 0
	if afterCreatedAt != (timestamp.TimeTicket{}) {
		for i, k := range kids {
			if k.CreatedAt().Equal(afterCreatedAt) {
				splitIdx = i + 1
				break
			}
		}
	}
	if splitIdx >= len(kids) {
		return nil
	}

	right := NewTreeElementNode(node.nodeType, splitTicket)
	anchor := timestamp.TimeTicket{}
	for _, m := range kids[splitIdx:] {
		child := m.(*TreeNode)
		node.children.Purge(child.CreatedAt())
		if err := right.children.InsertAfter(anchor, child); err != nil {
			return nil
		}
		child.parent = right
		anchor = child.CreatedAt()
	}

	if err := node.parent.children.InsertAfter(node.CreatedAt(), right); err != nil {
		return nil
	}
	right.parent = node.parent
	t.nodeByID[right.id] = right
	return right
}

// purgeNode unlinks a tombstoned, causally-covered node from its parent's
// children list and the tree's node index, called by Root's GC pair sweep
// once every peer has observed the removal (spec §4.9, §9 "gcPairs walks").
func (t *Tree) purgeNode(n *TreeNode) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n.parent != nil && n.parent.children != nil {
		n.parent.children.Purge(n.CreatedAt())
	}
	delete(t.nodeByID, n.id)
}

// leafFor returns the splay leaf backing node within parent's children
// list, used to refresh weights after an in-place tombstone.
func (t *Tree) leafFor(parent *TreeNode, node *TreeNode) *splayNode {
	n, ok := parent.children.nodeMapByCreatedAt[node.CreatedAt()]
	if !ok {
		return nil
	}
	return n.leaf
}

// childIndexAfter returns the index of the first child after the one whose
// createdAt is leftSiblingID.CreatedAt (or 0 if leftSiblingID is the zero
// value, meaning "before the first child").
func (t *Tree) childIndexAfter(parent *TreeNode, leftSiblingID TreeNodeID) int {
	if leftSiblingID == (TreeNodeID{}) {
		return 0
	}
	kids := parent.children.AllNodes()
	for i, c := range kids {
		if c.CreatedAt().Equal(leftSiblingID.CreatedAt) {
			return i + 1
		}
	}
	return len(kids)
}

// Style applies attribute updates to every internal node whose opening tag
// lies in [from,to) (spec §4.6).
func (t *Tree) Style(from, to TreePos, attrs map[string]string, executedAt timestamp.TimeTicket) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	fromParent, err := t.findParent(from)
	if err != nil {
		return err
	}
	toParent, err := t.findParent(to)
	if err != nil {
		return err
	}
	if fromParent != toParent {
		return crdterrors.New(crdterrors.KindUnsupported, "Tree.Style", "cross-parent ranges are not supported")
	}

	fromIdx := t.childIndexAfter(fromParent, from.LeftSiblingID)
	toIdx := t.childIndexAfter(toParent, to.LeftSiblingID)
	kids := fromParent.children.AllNodes()
	for i := fromIdx; i < toIdx && i < len(kids); i++ {
		node := kids[i].(*TreeNode)
		if node.IsText() {
			continue
		}
		if node.attrs == nil {
			node.attrs = NewRHT()
		}
		for key, val := range attrs {
			primitive, perr := NewPrimitive(val, executedAt)
			if perr != nil {
				return perr
			}
			node.attrs.Set(key, primitive, executedAt)
		}
	}
	return nil
}

// AllNodes returns every node in the tree (internal and leaf, live and
// tombstoned) via a pre-order walk, for GC sweeps and DeepCopy.
func (t *Tree) AllNodes() []*TreeNode {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []*TreeNode
	var walk func(*TreeNode)
	walk = func(n *TreeNode) {
		out = append(out, n)
		if n.children != nil {
			for _, c := range n.children.AllNodes() {
				walk(c.(*TreeNode))
			}
		}
	}
	walk(t.root)
	return out
}

func (t *Tree) DeepCopy() Element {
	t.mu.RLock()
	defer t.mu.RUnlock()

	clone := &Tree{
		baseElement: t.baseElement.clone(),
		nodeByID:    make(map[TreeNodeID]*TreeNode),
	}
	clone.root = t.root.DeepCopy().(*TreeNode)
	clone.register(clone.root)
	return clone
}

func (t *Tree) ToJSON() any {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.root.ToJSON()
}

func (t *Tree) DataSize() DataSize {
	var total DataSize
	for _, n := range t.AllNodes() {
		total = total.Add(n.DataSize())
	}
	return total
}
