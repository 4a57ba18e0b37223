package crdt

import (
	"sync"

	crdterrors "github.com/S-Corkum/crdt-engine/pkg/errors"
	"github.com/S-Corkum/crdt-engine/pkg/timestamp"
)

// rgaListNode is one doubly-linked node of an RGATreeList, carrying exactly
// one Element. Its splay length is 1 while live, 0 once tombstoned, so the
// splay tree's weight always equals the list's live count.
type rgaListNode struct {
	elem Element
	prev *rgaListNode
	next *rgaListNode
	leaf *splayNode
}

func (n *rgaListNode) splayLength() int {
	if n.elem.IsRemoved() {
		return 0
	}
	return 1
}

// CreatedAt satisfies the GCNode interface so an Array's list node can be
// registered as a Root GC pair's child directly.
func (n *rgaListNode) CreatedAt() timestamp.TimeTicket { return n.elem.CreatedAt() }

// RGATreeList is the ordered-array CRDT underlying Array elements: a
// doubly-linked list for identity and traversal, with a splay tree indexing
// live positions so indexOf/findByIndex are O(log n) amortized (spec §4.4).
type RGATreeList struct {
	mu                 sync.RWMutex
	dummyHead          *rgaListNode
	last               *rgaListNode
	tree               *splayTree
	nodeMapByCreatedAt map[timestamp.TimeTicket]*rgaListNode
}

// NewRGATreeList creates an empty RGATreeList with a dummy head sentinel
// (never visible to ToJSON/iteration) so insertion logic never special-cases
// an empty list.
func NewRGATreeList() *RGATreeList {
	dummy := &rgaListNode{elem: &sentinelElement{}}
	tree := newSplayTree()
	dummy.leaf = tree.InsertAfter(nil, dummy)

	l := &RGATreeList{
		dummyHead:          dummy,
		last:               dummy,
		tree:               tree,
		nodeMapByCreatedAt: make(map[timestamp.TimeTicket]*rgaListNode),
	}
	return l
}

// sentinelElement is the dummy head's placeholder value; it is permanently
// tombstoned so it never counts toward splay weight or JSON output.
type sentinelElement struct{ baseElement }

func (s *sentinelElement) IsRemoved() bool                             { return true }
func (s *sentinelElement) DeepCopy() Element                           { return &sentinelElement{} }
func (s *sentinelElement) ToJSON() any                                 { return nil }
func (s *sentinelElement) DataSize() DataSize                          { return DataSize{} }

// Len returns the number of live elements.
func (l *RGATreeList) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.tree.Len()
}

// LastCreatedAt returns the createdAt of the list's current tail node
// (live or tombstoned), or the zero TimeTicket if the list is still empty.
// A proxy appending a new element references this ticket as its Add
// operation's prevCreatedAt, so concurrent appends from different
// replicas tie-break deterministically via the same rule as any other
// concurrent insert at a shared predecessor (spec §4.4, §4.7).
func (l *RGATreeList) LastCreatedAt() timestamp.TimeTicket {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.last.elem.CreatedAt()
}

// Insert appends elem after the current tail, equivalent to
// InsertAfter(last, elem).
func (l *RGATreeList) Insert(elem Element) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.insertAfter(l.last.elem.CreatedAt(), elem)
}

// InsertAfter inserts elem immediately after the node whose element's
// createdAt is prevCreatedAt, applying the RGA concurrent-insert tiebreak:
// it walks right past any existing successor whose createdAt is greater
// than elem's, then links in after that point, guaranteeing replicas that
// apply the same set of concurrent inserts converge on the same order
// (spec §4.4, §8 property 5).
func (l *RGATreeList) InsertAfter(prevCreatedAt timestamp.TimeTicket, elem Element) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.insertAfter(prevCreatedAt, elem)
}

func (l *RGATreeList) insertAfter(prevCreatedAt timestamp.TimeTicket, elem Element) error {
	if _, exists := l.nodeMapByCreatedAt[elem.CreatedAt()]; exists {
		// Replay of an already-applied Add: the element is already linked in,
		// so inserting it again would duplicate it (spec §4.7, §8 property 3).
		return nil
	}

	prev, ok := l.findNode(prevCreatedAt)
	if !ok {
		return crdterrors.New(crdterrors.KindReference, "RGATreeList.InsertAfter", "prevCreatedAt not found")
	}

	target := prev
	for target.next != nil && elem.CreatedAt().Compare(target.next.elem.CreatedAt()) < 0 {
		target = target.next
	}

	node := &rgaListNode{elem: elem, prev: target, next: target.next}
	if target.next != nil {
		target.next.prev = node
	} else {
		l.last = node
	}
	target.next = node
	node.leaf = l.tree.InsertAfter(target.leaf, node)
	l.nodeMapByCreatedAt[elem.CreatedAt()] = node
	return nil
}

func (l *RGATreeList) findNode(createdAt timestamp.TimeTicket) (*rgaListNode, bool) {
	if createdAt == (timestamp.TimeTicket{}) || createdAt.Equal(l.dummyHead.elem.CreatedAt()) {
		return l.dummyHead, true
	}
	n, ok := l.nodeMapByCreatedAt[createdAt]
	return n, ok
}

// Move relinks the node identified by createdAt to immediately after
// afterCreatedAt, accepted only if executedAt is strictly after that node's
// current movedAt (spec §4.4). A self-move (target == afterOf) is a no-op.
// Returns whether the move was applied.
func (l *RGATreeList) Move(createdAt, afterCreatedAt timestamp.TimeTicket, executedAt timestamp.TimeTicket) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if createdAt.Equal(afterCreatedAt) {
		return false, nil
	}

	target, ok := l.findNode(createdAt)
	if !ok {
		return false, crdterrors.New(crdterrors.KindReference, "RGATreeList.Move", "target createdAt not found")
	}
	if !target.elem.SetMovedAt(executedAt) {
		return false, nil
	}

	l.unlink(target)

	after, ok := l.findNode(afterCreatedAt)
	if !ok {
		return false, crdterrors.New(crdterrors.KindReference, "RGATreeList.Move", "afterCreatedAt not found")
	}
	target.prev = after
	target.next = after.next
	if after.next != nil {
		after.next.prev = target
	} else {
		l.last = target
	}
	after.next = target
	target.leaf = l.tree.InsertAfter(after.leaf, target)
	return true, nil
}

func (l *RGATreeList) unlink(n *rgaListNode) {
	if n.prev != nil {
		n.prev.next = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		l.last = n.prev
	}
	l.tree.Delete(n.leaf)
}

// Remove tombstones the element identified by createdAt at executedAt. The
// node stays linked (for identity resolution) until GC; the splay tree's
// weight drops by one immediately. Returns the removed element.
func (l *RGATreeList) Remove(createdAt, executedAt timestamp.TimeTicket) (Element, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	n, ok := l.findNode(createdAt)
	if !ok {
		return nil, crdterrors.New(crdterrors.KindReference, "RGATreeList.Remove", "target createdAt not found")
	}
	if !n.elem.Remove(executedAt) {
		return nil, nil
	}
	l.tree.UpdateWeight(n.leaf)
	return n.elem, nil
}

// Get returns the element at live index idx (0-based, skipping tombstones).
func (l *RGATreeList) Get(idx int) (Element, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n, _ := l.tree.Find(idx)
	if n == nil {
		return nil, crdterrors.New(crdterrors.KindReference, "RGATreeList.Get", "index out of range")
	}
	node := n.value.(*rgaListNode)
	return node.elem, nil
}

// IndexOf returns the live index of the element whose createdAt matches, or
// -1 if not found or tombstoned.
func (l *RGATreeList) IndexOf(createdAt timestamp.TimeTicket) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n, ok := l.findNode(createdAt)
	if !ok || n.elem.IsRemoved() {
		return -1
	}
	return l.tree.IndexOf(n.leaf)
}

// Elements returns every live element in list order.
func (l *RGATreeList) Elements() []Element {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Element
	for n := l.dummyHead.next; n != nil; n = n.next {
		if !n.elem.IsRemoved() {
			out = append(out, n.elem)
		}
	}
	return out
}

// AllNodes returns every element, live and tombstoned, in list order, for
// DeepCopy and GC sweeps.
func (l *RGATreeList) AllNodes() []Element {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Element
	for n := l.dummyHead.next; n != nil; n = n.next {
		out = append(out, n.elem)
	}
	return out
}

// RawNodes returns every backing list node, live and tombstoned, in list
// order, for GC sweeps (mirrors RGATreeSplit.Nodes/Tree.AllNodes).
func (l *RGATreeList) RawNodes() []*rgaListNode {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []*rgaListNode
	for n := l.dummyHead.next; n != nil; n = n.next {
		out = append(out, n)
	}
	return out
}

// Purge unlinks the tombstoned node identified by createdAt entirely,
// called by the GC driver once every peer has observed its removal.
func (l *RGATreeList) Purge(createdAt timestamp.TimeTicket) {
	l.mu.Lock()
	defer l.mu.Unlock()

	n, ok := l.findNode(createdAt)
	if !ok {
		return
	}
	l.unlink(n)
	delete(l.nodeMapByCreatedAt, createdAt)
}

// DeepCopy returns an independent RGATreeList with every element cloned,
// preserving list order and tombstone state.
func (l *RGATreeList) DeepCopy() *RGATreeList {
	l.mu.RLock()
	defer l.mu.RUnlock()

	clone := NewRGATreeList()
	for n := l.dummyHead.next; n != nil; n = n.next {
		elemCopy := n.elem.DeepCopy()
		_ = clone.insertAfter(clone.last.elem.CreatedAt(), elemCopy)
		if n.elem.IsRemoved() {
			clone.last.elem.Remove(n.elem.RemovedAt())
			clone.tree.UpdateWeight(clone.last.leaf)
		}
	}
	return clone
}
