package crdt

import (
	"sort"
	"sync"

	"github.com/S-Corkum/crdt-engine/pkg/timestamp"
)

// rhtNode is one versioned entry in an RHT: a key bound to an element at a
// point in causal time, possibly later tombstoned.
type rhtNode struct {
	key       string
	elem      Element
	updatedAt timestamp.TimeTicket
	removedAt timestamp.TimeTicket
}

func (n *rhtNode) isRemoved() bool { return n.removedAt != (timestamp.TimeTicket{}) }

// RHT (Replicated Hash Table) is the CRDT keyed map underlying Object
// members: a string key maps to potentially many concurrently-created
// elements, with the live read resolved by largest createdAt (spec §4.3).
type RHT struct {
	mu    sync.RWMutex
	nodes map[string][]*rhtNode
}

// NewRHT creates an empty RHT.
func NewRHT() *RHT {
	return &RHT{nodes: make(map[string][]*rhtNode)}
}

// Set records elem under key at updatedAt. A prior entry for key is not
// replaced in place — both remain, and Get resolves to the one with the
// largest createdAt that is not tombstoned (spec §4.3). Inserting an entry
// whose createdAt equals an existing entry is a no-op (idempotent).
func (r *RHT) Set(key string, elem Element, updatedAt timestamp.TimeTicket) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, n := range r.nodes[key] {
		if n.elem.CreatedAt().Equal(elem.CreatedAt()) {
			return
		}
	}
	r.nodes[key] = append(r.nodes[key], &rhtNode{key: key, elem: elem, updatedAt: updatedAt})
}

// Get returns the live element stored under key with the largest createdAt,
// or nil if key has no live entry.
func (r *RHT) Get(key string) Element {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *rhtNode
	for _, n := range r.nodes[key] {
		if n.isRemoved() {
			continue
		}
		if best == nil || n.elem.CreatedAt().After(best.elem.CreatedAt()) {
			best = n
		}
	}
	if best == nil {
		return nil
	}
	return best.elem
}

// Has reports whether key currently resolves to a live entry.
func (r *RHT) Has(key string) bool { return r.Get(key) != nil }

// Remove tombstones the entry whose element's createdAt matches, at
// executedAt. Returns the removed element, or nil if no matching live entry
// was found.
func (r *RHT) Remove(createdAt, executedAt timestamp.TimeTicket) Element {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, entries := range r.nodes {
		for _, n := range entries {
			if !n.elem.CreatedAt().Equal(createdAt) {
				continue
			}
			if n.elem.Remove(executedAt) {
				n.removedAt = executedAt
				return n.elem
			}
			return nil
		}
	}
	return nil
}

// RemoveByKey tombstones the live entry under key at executedAt, returning
// the removed element, or nil if key had no live entry.
func (r *RHT) RemoveByKey(key string, executedAt timestamp.TimeTicket) Element {
	r.mu.Lock()
	defer r.mu.Unlock()

	var best *rhtNode
	for _, n := range r.nodes[key] {
		if n.isRemoved() {
			continue
		}
		if best == nil || n.elem.CreatedAt().After(best.elem.CreatedAt()) {
			best = n
		}
	}
	if best == nil {
		return nil
	}
	if !best.elem.Remove(executedAt) {
		return nil
	}
	best.removedAt = executedAt
	return best.elem
}

// Elements returns every live (key, element) pair in deterministic key
// order, for ToJSON/iteration (spec §4.3: "arbitrary but deterministic
// order").
func (r *RHT) Elements() []struct {
	Key  string
	Elem Element
} {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.nodes))
	for k := range r.nodes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]struct {
		Key  string
		Elem Element
	}, 0, len(keys))
	for _, k := range keys {
		var best *rhtNode
		for _, n := range r.nodes[k] {
			if n.isRemoved() {
				continue
			}
			if best == nil || n.elem.CreatedAt().After(best.elem.CreatedAt()) {
				best = n
			}
		}
		if best != nil {
			out = append(out, struct {
				Key  string
				Elem Element
			}{Key: k, Elem: best.elem})
		}
	}
	return out
}

// AllNodes returns every node, live and tombstoned, for GC and DeepCopy.
func (r *RHT) AllNodes() []*rhtNode {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*rhtNode
	for _, entries := range r.nodes {
		out = append(out, entries...)
	}
	return out
}

// DeepCopy returns an independent RHT with every element cloned.
func (r *RHT) DeepCopy() *RHT {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clone := NewRHT()
	for key, entries := range r.nodes {
		cloned := make([]*rhtNode, len(entries))
		for i, n := range entries {
			cloned[i] = &rhtNode{key: n.key, elem: n.elem.DeepCopy(), updatedAt: n.updatedAt, removedAt: n.removedAt}
		}
		clone.nodes[key] = cloned
	}
	return clone
}

// Purge removes every tombstoned entry whose element's createdAt equals
// elem.CreatedAt() from the node list entirely, used when GC decides a
// tombstone's effect is collectible.
func (r *RHT) Purge(elem Element) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, list := range r.nodes {
		filtered := list[:0]
		for _, n := range list {
			if n.isRemoved() && n.elem.CreatedAt().Equal(elem.CreatedAt()) {
				continue
			}
			filtered = append(filtered, n)
		}
		r.nodes[key] = filtered
	}
}
