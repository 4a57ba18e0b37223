package crdt

import (
	"sync"

	"github.com/S-Corkum/crdt-engine/pkg/timestamp"
)

// GCNode is the shared identity surface of a container-internal node that
// can be registered for GC independently of its owning element: a rope
// split node, an array list node, or a tree node.
type GCNode interface {
	CreatedAt() timestamp.TimeTicket
}

// GCPair is a (parent, child) reference registered by an element that owns
// GC-bearing sub-structures of its own — an RGATreeSplit node, an
// RGATreeList node, a Tree node —
// so the Document's garbage collector can walk and purge them without
// special-casing every container type (spec §3.3).
type GCPair struct {
	Parent Element
	Child  GCNode
}

// Root owns a document's top-level Object and the bookkeeping that spans
// the whole value tree: an index of every live element by its createdAt
// (for operation targeting), the set of tombstoned elements awaiting GC,
// and the registry of GC pairs contributed by rope/array/tree containers
// (spec §3.3).
type Root struct {
	mu                 sync.RWMutex
	object             *Object
	elementByCreatedAt map[timestamp.TimeTicket]Element
	removedElements    map[timestamp.TimeTicket]Element
	gcPairs            []GCPair
	registeredGCNodes  map[GCNode]bool
}

// NewRoot creates a Root wrapping obj as the document's top-level Object.
func NewRoot(obj *Object) *Root {
	r := &Root{
		object:             obj,
		elementByCreatedAt: make(map[timestamp.TimeTicket]Element),
		removedElements:    make(map[timestamp.TimeTicket]Element),
		registeredGCNodes:  make(map[GCNode]bool),
	}
	r.registerElementsFrom(obj)
	return r
}

// registerElementsFrom indexes obj and every element reachable from it,
// recursively, without taking r.mu (callers hold it or are construction
// time).
func (r *Root) registerElementsFrom(elem Element) {
	r.elementByCreatedAt[elem.CreatedAt()] = elem
	if elem.IsRemoved() {
		r.removedElements[elem.CreatedAt()] = elem
	}

	switch v := elem.(type) {
	case *Object:
		for _, kv := range v.rht.Elements() {
			r.registerElementsFrom(kv.Elem)
		}
		for _, n := range v.rht.AllNodes() {
			if n.isRemoved() {
				r.registerElementsFrom(n.elem)
			}
		}
	case *Array:
		for _, e := range v.list.AllNodes() {
			r.registerElementsFrom(e)
		}
	}
}

// Object returns the document's top-level Object.
func (r *Root) Object() *Object {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.object
}

// FindByCreatedAt returns the element registered under createdAt, or nil.
func (r *Root) FindByCreatedAt(createdAt timestamp.TimeTicket) Element {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.elementByCreatedAt[createdAt]
}

// RegisterElement indexes elem for future targeting, called whenever an
// operation creates a new element.
func (r *Root) RegisterElement(elem Element) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.elementByCreatedAt[elem.CreatedAt()] = elem
}

// RegisterRemovedElement records elem as tombstoned and awaiting GC.
func (r *Root) RegisterRemovedElement(elem Element) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removedElements[elem.CreatedAt()] = elem
}

// RegisterGCPair records a (parent, child) reference contributed by a
// container with its own internal GC-bearing sub-structure (a rope, array
// list or tree node), so GarbageCollect can reach it. Registering the same child node
// more than once (an Edit/Style walking a node it already registered on a
// prior call) is a safe no-op — callers are not expected to track which
// nodes they've already announced.
func (r *Root) RegisterGCPair(pair GCPair) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.registeredGCNodes[pair.Child] {
		return
	}
	r.registeredGCNodes[pair.Child] = true
	r.gcPairs = append(r.gcPairs, pair)
}

// ElementMapLen returns the number of elements in the by-id index, for
// diagnostics and tests.
func (r *Root) ElementMapLen() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.elementByCreatedAt)
}

// RemovedElementsLen returns the number of tombstoned elements awaiting GC.
func (r *Root) RemovedElementsLen() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.removedElements)
}

// GarbageCollect purges every tombstoned element whose removedAt is
// causally covered by isCovered, unregistering it from both indexes and
// returning the count purged (spec §4.9). Container-internal tombstones
// (rope/tree/array nodes) are purged via the registered GC pairs in the
// same pass.
func (r *Root) GarbageCollect(isCovered func(t timestamp.TimeTicket) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	purged := 0
	for createdAt, elem := range r.removedElements {
		if !isCovered(elem.RemovedAt()) {
			continue
		}
		delete(r.removedElements, createdAt)
		delete(r.elementByCreatedAt, createdAt)
		purged++
	}

	remaining := r.gcPairs[:0]
	for _, pair := range r.gcPairs {
		switch child := pair.Child.(type) {
		case *rgaSplitNode:
			if child.isRemoved() && isCovered(child.removedAt) {
				if rope, ok := pair.Parent.(*Text); ok {
					rope.purgeRopeNode(child)
				}
				delete(r.registeredGCNodes, pair.Child)
				purged++
				continue
			}
		case *rgaListNode:
			if child.elem.IsRemoved() && isCovered(child.elem.RemovedAt()) {
				if arr, ok := pair.Parent.(*Array); ok {
					arr.list.Purge(child.elem.CreatedAt())
				}
				delete(r.registeredGCNodes, pair.Child)
				purged++
				continue
			}
		case *TreeNode:
			if child.IsRemoved() && isCovered(child.RemovedAt()) {
				if tree, ok := pair.Parent.(*Tree); ok {
					tree.purgeNode(child)
				}
				delete(r.registeredGCNodes, pair.Child)
				purged++
				continue
			}
		}
		remaining = append(remaining, pair)
	}
	r.gcPairs = remaining

	return purged
}

// DocSize reports the (live, gc) byte totals across every element reachable
// from the top-level Object, used for quotas and telemetry (spec §3.3).
func (r *Root) DocSize() DataSize {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.object.DataSize()
}

// DeepCopy returns an independent Root with every reachable element cloned
// and re-indexed, used when a ChangeContext clones the canonical root for a
// local update (spec §4.9, §5).
func (r *Root) DeepCopy() *Root {
	r.mu.RLock()
	defer r.mu.RUnlock()

	objClone := r.object.DeepCopy().(*Object)
	return NewRoot(objClone)
}
