package crdt

import "github.com/S-Corkum/crdt-engine/pkg/timestamp"

// Array is the RGATreeList-backed ordered list CRDT (spec §3.2).
type Array struct {
	baseElement
	list *RGATreeList
}

// NewArray creates an empty Array.
func NewArray(createdAt timestamp.TimeTicket) *Array {
	return &Array{baseElement: newBaseElement(createdAt), list: NewRGATreeList()}
}

// List exposes the underlying RGATreeList for Add/Move/Remove operations.
func (a *Array) List() *RGATreeList { return a.list }

// Len returns the live element count.
func (a *Array) Len() int { return a.list.Len() }

// Get returns the live element at index idx.
func (a *Array) Get(idx int) (Element, error) { return a.list.Get(idx) }

func (a *Array) DeepCopy() Element {
	return &Array{baseElement: a.baseElement.clone(), list: a.list.DeepCopy()}
}

func (a *Array) ToJSON() any {
	out := make([]any, 0, a.list.Len())
	for _, e := range a.list.Elements() {
		out = append(out, e.ToJSON())
	}
	return out
}

func (a *Array) DataSize() DataSize {
	var total DataSize
	for _, e := range a.list.AllNodes() {
		total = total.Add(e.DataSize())
	}
	size := GroupSize{Meta: metaSize}
	if a.IsRemoved() {
		return total.Add(DataSize{GC: size})
	}
	return total.Add(DataSize{Live: size})
}
