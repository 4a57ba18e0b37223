// Package crdt implements the replicated data structures that make up a
// document's value tree: primitives, counters, the RHT-backed object, the
// RGA-backed array, the split-rope text types, the structured tree, and the
// Root registry that ties them together.
package crdt

import (
	"github.com/S-Corkum/crdt-engine/pkg/timestamp"
)

// Element is the shared capability set every CRDT value in the tree
// implements: identity via createdAt, an optional move marker, an optional
// tombstone marker, and the conversions the Document/Root layer needs to
// treat all variants uniformly (design notes: "tagged variant with a shared
// behavioral capability set").
type Element interface {
	// CreatedAt returns the element's identity ticket.
	CreatedAt() timestamp.TimeTicket

	// MovedAt returns the ticket of the element's most recent successful
	// move, or the zero TimeTicket if it has never moved.
	MovedAt() timestamp.TimeTicket

	// SetMovedAt accepts t as the new movedAt only if t is strictly after
	// the current movedAt (or none is set yet); returns whether it applied.
	SetMovedAt(t timestamp.TimeTicket) bool

	// RemovedAt returns the element's tombstone ticket, or the zero
	// TimeTicket if it is live.
	RemovedAt() timestamp.TimeTicket

	// IsRemoved reports whether the element currently carries a tombstone.
	IsRemoved() bool

	// Remove tombstones the element at t, accepting only if t is at or
	// after createdAt and strictly after any existing removedAt. Returns
	// whether it applied.
	Remove(t timestamp.TimeTicket) bool

	// DeepCopy returns an independent copy of the element, used when a
	// ChangeContext clones the Root.
	DeepCopy() Element

	// ToJSON renders the element's value as a plain Go value suitable for
	// JSON marshaling (objects as map[string]any, arrays as []any, and so
	// on) with tombstoned children skipped.
	ToJSON() any

	// DataSize reports the element's contribution to document size as
	// (live, gc) byte pairs, used by Root.docSize (spec §3.3).
	DataSize() DataSize
}

// DataSize is a (data, meta) byte-count pair split into the live and
// garbage-collectible portions of an element's contribution to document
// size, mirroring the Root's docSize bookkeeping (spec §3.3).
type DataSize struct {
	Live GroupSize
	GC   GroupSize
}

// GroupSize is the (data, meta) byte-count pair for one size group.
type GroupSize struct {
	Data int
	Meta int
}

// Add returns the element-wise sum of two DataSize values.
func (d DataSize) Add(other DataSize) DataSize {
	return DataSize{
		Live: GroupSize{Data: d.Live.Data + other.Live.Data, Meta: d.Live.Meta + other.Live.Meta},
		GC:   GroupSize{Data: d.GC.Data + other.GC.Data, Meta: d.GC.Meta + other.GC.Meta},
	}
}

// baseElement implements the shared Element bookkeeping (createdAt/movedAt/
// removedAt invariants) so every concrete variant embeds it instead of
// re-deriving the move/remove acceptance rules (spec §3.2).
type baseElement struct {
	createdAt timestamp.TimeTicket
	movedAt   timestamp.TimeTicket
	removedAt timestamp.TimeTicket
}

func newBaseElement(createdAt timestamp.TimeTicket) baseElement {
	return baseElement{createdAt: createdAt}
}

func (b *baseElement) CreatedAt() timestamp.TimeTicket { return b.createdAt }

func (b *baseElement) MovedAt() timestamp.TimeTicket { return b.movedAt }

func (b *baseElement) SetMovedAt(t timestamp.TimeTicket) bool {
	if b.movedAt != (timestamp.TimeTicket{}) && !t.After(b.movedAt) {
		return false
	}
	b.movedAt = t
	return true
}

func (b *baseElement) RemovedAt() timestamp.TimeTicket { return b.removedAt }

func (b *baseElement) IsRemoved() bool { return b.removedAt != (timestamp.TimeTicket{}) }

func (b *baseElement) Remove(t timestamp.TimeTicket) bool {
	if t.Compare(b.createdAt) < 0 {
		return false
	}
	if b.IsRemoved() && !t.After(b.removedAt) {
		return false
	}
	b.removedAt = t
	return true
}

func (b baseElement) clone() baseElement {
	return baseElement{createdAt: b.createdAt, movedAt: b.movedAt, removedAt: b.removedAt}
}
