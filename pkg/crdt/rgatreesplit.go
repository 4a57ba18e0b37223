package crdt

import (
	"strings"
	"sync"

	crdterrors "github.com/S-Corkum/crdt-engine/pkg/errors"
	"github.com/S-Corkum/crdt-engine/pkg/timestamp"
)

// RGANodeID identifies a split-rope node: the TimeTicket of the original
// insert that created it, plus the byte offset within that insert's value
// where this node's content begins (spec §4.5). Splitting a node preserves
// identity: the right half keeps the same createdAt but a larger offset.
type RGANodeID struct {
	CreatedAt timestamp.TimeTicket
	Offset    int
}

// RGANodePos locates a caret or selection boundary: a node identity plus an
// offset relative to that node's own content (spec §4.5).
type RGANodePos struct {
	ID             RGANodeID
	RelativeOffset int
}

// rgaSplitNode is one rope segment: a substring value with its own
// identity, optionally tombstoned, optionally carrying style attributes.
type rgaSplitNode struct {
	id        RGANodeID
	value     string
	removedAt timestamp.TimeTicket
	attrs     *RHT
	prev      *rgaSplitNode
	next      *rgaSplitNode
	leaf      *splayNode
}

func (n *rgaSplitNode) splayLength() int {
	if n.isRemoved() {
		return 0
	}
	return len([]rune(n.value))
}

func (n *rgaSplitNode) isRemoved() bool { return n.removedAt != (timestamp.TimeTicket{}) }

// CreatedAt satisfies the GCNode interface so a split node can be registered
// as a Root GC pair's child directly.
func (n *rgaSplitNode) CreatedAt() timestamp.TimeTicket { return n.id.CreatedAt }

func (n *rgaSplitNode) length() int { return len([]rune(n.value)) }

// split divides n at local rune offset idx into n (retaining [0,idx)) and a
// new node carrying [idx,len) at the same createdAt with an advanced
// offset, per spec §4.5's identity-preserving split rule. Returns the new
// right node, or nil if idx is at a boundary (no split needed).
func (n *rgaSplitNode) split(idx int) *rgaSplitNode {
	runes := []rune(n.value)
	if idx <= 0 || idx >= len(runes) {
		return nil
	}
	right := &rgaSplitNode{
		id:        RGANodeID{CreatedAt: n.id.CreatedAt, Offset: n.id.Offset + idx},
		value:     string(runes[idx:]),
		removedAt: n.removedAt,
	}
	if n.attrs != nil {
		right.attrs = n.attrs.DeepCopy()
	}
	n.value = string(runes[:idx])
	return right
}

// RGATreeSplit is the rope CRDT underlying Text/RichText: a doubly-linked
// chain of split nodes, splay-indexed by live rune count, with per-actor
// bookkeeping so concurrent edits preserve each other's content until both
// sides have observed the removal (spec §4.5).
type RGATreeSplit struct {
	mu        sync.RWMutex
	dummyHead *rgaSplitNode
	last      *rgaSplitNode
	tree      *splayTree
	nodeByID  map[RGANodeID]*rgaSplitNode
}

// NewRGATreeSplit creates an empty rope seeded with a dummy head whose
// createdAt is the initial sentinel ticket.
func NewRGATreeSplit() *RGATreeSplit {
	dummy := &rgaSplitNode{id: RGANodeID{CreatedAt: timestamp.InitialTimeTicket}, removedAt: timestamp.InitialTimeTicket}
	tree := newSplayTree()
	dummy.leaf = tree.InsertAfter(nil, dummy)

	return &RGATreeSplit{
		dummyHead: dummy,
		last:      dummy,
		tree:      tree,
		nodeByID:  map[RGANodeID]*rgaSplitNode{dummy.id: dummy},
	}
}

// Len returns the live rune length of the rope.
func (s *RGATreeSplit) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Len()
}

// String renders the rope's live content in list order.
func (s *RGATreeSplit) String() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var b strings.Builder
	for n := s.dummyHead.next; n != nil; n = n.next {
		if !n.isRemoved() {
			b.WriteString(n.value)
		}
	}
	return b.String()
}

// findNodePos resolves a live rune offset to a NodePos, splaying to the
// containing node.
func (s *RGATreeSplit) findNodePos(offset int) (RGANodePos, *rgaSplitNode, error) {
	if offset == 0 {
		return RGANodePos{ID: s.dummyHead.id}, s.dummyHead, nil
	}
	n, rel := s.tree.Find(offset - 1)
	if n == nil {
		return RGANodePos{}, nil, crdterrors.New(crdterrors.KindReference, "RGATreeSplit.findNodePos", "offset out of range")
	}
	node := n.value.(*rgaSplitNode)
	return RGANodePos{ID: node.id, RelativeOffset: rel + 1}, node, nil
}

// splitAt ensures a node boundary exists exactly at pos, splitting the
// owning node if necessary, and returns the node that starts at pos.
func (s *RGATreeSplit) splitAt(pos RGANodePos) (*rgaSplitNode, error) {
	n, ok := s.nodeByID[pos.ID]
	if !ok {
		return nil, crdterrors.New(crdterrors.KindReference, "RGATreeSplit.splitAt", "node id not found")
	}
	// A pos resolved before an earlier split of the same node can point past
	// the end of the node its ID names; follow the split chain (each right
	// half is keyed at its left half's offset plus length) to the holder.
	rel := pos.RelativeOffset
	for n.length() > 0 && rel > n.length() {
		next, ok := s.nodeByID[RGANodeID{CreatedAt: n.id.CreatedAt, Offset: n.id.Offset + n.length()}]
		if !ok {
			break
		}
		rel -= n.length()
		n = next
	}
	if rel == 0 {
		return n, nil
	}
	right := n.split(rel)
	if right == nil {
		// RelativeOffset sits at n's own end boundary; the next node starts
		// exactly there.
		if n.next != nil {
			return n.next, nil
		}
		return nil, nil
	}
	right.prev = n
	right.next = n.next
	if n.next != nil {
		n.next.prev = right
	} else {
		s.last = right
	}
	n.next = right
	s.nodeByID[right.id] = right
	right.leaf = s.tree.InsertAfter(n.leaf, right)
	s.tree.UpdateWeight(n.leaf)
	return right, nil
}

// insertAfter links newNodes (already chained to each other) in after
// target, applying the same RGA tiebreak as RGATreeList: walk right past
// any existing successor whose createdAt is greater than the new content's.
func (s *RGATreeSplit) insertAfter(target *rgaSplitNode, head *rgaSplitNode) {
	anchor := target
	for anchor.next != nil && head.id.CreatedAt.Compare(anchor.next.id.CreatedAt) < 0 {
		anchor = anchor.next
	}

	tail := head
	for tail.next != nil {
		tail = tail.next
	}

	tail.next = anchor.next
	if anchor.next != nil {
		anchor.next.prev = tail
	} else {
		s.last = tail
	}
	anchor.next = head
	head.prev = anchor

	prevLeaf := anchor.leaf
	for n := head; ; n = n.next {
		n.leaf = s.tree.InsertAfter(prevLeaf, n)
		s.nodeByID[n.id] = n
		prevLeaf = n.leaf
		if n == tail {
			break
		}
	}
}

// Edit applies a rope edit over [from,to): existing content in that range
// is purged (tombstoned) unless it is a concurrent insert the rule in spec
// §4.5 step 2 says to preserve, then newContent is spliced in at from. It
// returns the updated per-actor max-createdAt map for use in the next
// concurrent edit's preserve check.
func (s *RGATreeSplit) Edit(
	from, to RGANodePos,
	newContent string,
	maxCreatedAtMapByActor map[timestamp.ActorID]timestamp.TimeTicket,
	executedAt timestamp.TimeTicket,
) (map[timestamp.ActorID]timestamp.TimeTicket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fromRight, err := s.splitAt(from)
	if err != nil {
		return nil, err
	}
	toNode, err := s.splitAt(to)
	if err != nil {
		return nil, err
	}
	if toNode == s.dummyHead {
		// to sits at offset 0, so [from,to) is empty.
		toNode = s.dummyHead.next
	}
	// splitAt returns the first node at or after a boundary (nil at the rope
	// end); the edit range starts after, and new content is anchored on, the
	// node just before from.
	fromNode := s.last
	if fromRight == s.dummyHead {
		fromNode = s.dummyHead
	} else if fromRight != nil {
		fromNode = fromRight.prev
	}

	updated := make(map[timestamp.ActorID]timestamp.TimeTicket, len(maxCreatedAtMapByActor))
	for k, v := range maxCreatedAtMapByActor {
		updated[k] = v
	}

	for n := fromNode.next; n != nil && n != toNode; n = n.next {
		actor := n.id.CreatedAt.ActorID()
		maxCreatedAt := updated[actor]
		preserve := executedAt.Compare(n.id.CreatedAt) <= 0 && executedAt.Compare(maxCreatedAt) <= 0
		if preserve {
			continue
		}
		if n.removedAt == (timestamp.TimeTicket{}) {
			n.removedAt = executedAt
			s.tree.UpdateWeight(n.leaf)
		}
		if n.id.CreatedAt.After(maxCreatedAt) {
			updated[actor] = n.id.CreatedAt
		}
	}

	if newContent != "" {
		newID := RGANodeID{CreatedAt: executedAt}
		if _, exists := s.nodeByID[newID]; !exists {
			// A replay of an already-applied Edit would otherwise splice the
			// same content in twice (spec §4.7, §8 property 3).
			node := &rgaSplitNode{id: newID, value: newContent}
			s.insertAfter(fromNode, node)
		}
		if executedAt.After(updated[executedAt.ActorID()]) {
			updated[executedAt.ActorID()] = executedAt
		}
	}

	return updated, nil
}

// Style applies attribute updates to every live node in [from,to), each
// keyed in the node's own RHT by (createdAt=the attribute's own identity,
// priority resolved by RHT.Set's largest-createdAt rule) so concurrent
// style operations on overlapping ranges converge (spec §4.5).
func (s *RGATreeSplit) Style(from, to RGANodePos, attrs map[string]string, executedAt timestamp.TimeTicket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fromNode, err := s.splitAt(from)
	if err != nil {
		return err
	}
	toNode, err := s.splitAt(to)
	if err != nil {
		return err
	}
	if fromNode == nil || toNode == s.dummyHead {
		// from sits at the rope end or to at offset 0, so [from,to) is empty.
		return nil
	}

	for n := fromNode; n != nil && n != toNode; n = n.next {
		if n == s.dummyHead || n.isRemoved() {
			continue
		}
		if n.attrs == nil {
			n.attrs = NewRHT()
		}
		for key, val := range attrs {
			primitive, perr := NewPrimitive(val, executedAt)
			if perr != nil {
				return perr
			}
			n.attrs.Set(key, primitive, executedAt)
		}
	}
	return nil
}

// FindPos resolves a live rune offset to a NodePos (public entry point for
// Edit/Style callers translating caret positions).
func (s *RGATreeSplit) FindPos(offset int) (RGANodePos, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, _, err := s.findNodePos(offset)
	return pos, err
}

// NodeMaxCreatedAtByActor returns, for every actor with content currently in
// the rope, the largest createdAt observed — the seed for a fresh
// maxCreatedAtMapByActor when no prior edit has been recorded.
func (s *RGATreeSplit) NodeMaxCreatedAtByActor() map[timestamp.ActorID]timestamp.TimeTicket {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[timestamp.ActorID]timestamp.TimeTicket)
	for n := s.dummyHead.next; n != nil; n = n.next {
		actor := n.id.CreatedAt.ActorID()
		if n.id.CreatedAt.After(out[actor]) {
			out[actor] = n.id.CreatedAt
		}
	}
	return out
}

// Nodes returns every split node, live and tombstoned, in rope order, for
// GC sweeps and DeepCopy.
func (s *RGATreeSplit) Nodes() []*rgaSplitNode {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*rgaSplitNode
	for n := s.dummyHead.next; n != nil; n = n.next {
		out = append(out, n)
	}
	return out
}

// Purge unlinks a tombstoned node entirely once GC has decided it is
// collectible (every peer's version vector covers its removedAt).
func (s *RGATreeSplit) Purge(n *rgaSplitNode) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n.prev != nil {
		n.prev.next = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		s.last = n.prev
	}
	s.tree.Delete(n.leaf)
	delete(s.nodeByID, n.id)
}

// DeepCopy returns an independent rope with the same content and tombstone
// state.
func (s *RGATreeSplit) DeepCopy() *RGATreeSplit {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clone := NewRGATreeSplit()
	for n := s.dummyHead.next; n != nil; n = n.next {
		node := &rgaSplitNode{id: n.id, value: n.value, removedAt: n.removedAt}
		if n.attrs != nil {
			node.attrs = n.attrs.DeepCopy()
		}
		clone.insertAfter(clone.last, node)
	}
	return clone
}
