package crdt

import (
	crdterrors "github.com/S-Corkum/crdt-engine/pkg/errors"
	"github.com/S-Corkum/crdt-engine/pkg/timestamp"
)

// Object is the RHT-backed member map CRDT (spec §3.2).
type Object struct {
	baseElement
	rht *RHT
}

// NewObject creates an empty Object.
func NewObject(createdAt timestamp.TimeTicket) *Object {
	return &Object{baseElement: newBaseElement(createdAt), rht: NewRHT()}
}

// RHT exposes the underlying keyed map for Set/Remove operations.
func (o *Object) RHT() *RHT { return o.rht }

// Get returns the live element stored under key, or nil.
func (o *Object) Get(key string) Element { return o.rht.Get(key) }

// Set executes the Set operation: RHT.set(key, value) (spec §4.7).
func (o *Object) Set(key string, value Element, executedAt timestamp.TimeTicket) {
	o.rht.Set(key, value, executedAt)
}

// Remove tombstones the member whose createdAt matches, returning a
// Reference error if no such member is registered under this object.
func (o *Object) Remove(createdAt, executedAt timestamp.TimeTicket) (Element, error) {
	elem := o.rht.Remove(createdAt, executedAt)
	if elem == nil {
		return nil, crdterrors.New(crdterrors.KindReference, "Object.Remove", "target createdAt not found")
	}
	return elem, nil
}

func (o *Object) DeepCopy() Element {
	return &Object{baseElement: o.baseElement.clone(), rht: o.rht.DeepCopy()}
}

func (o *Object) ToJSON() any {
	out := make(map[string]any)
	for _, kv := range o.rht.Elements() {
		out[kv.Key] = kv.Elem.ToJSON()
	}
	return out
}

func (o *Object) DataSize() DataSize {
	var total DataSize
	for _, n := range o.rht.AllNodes() {
		total = total.Add(n.elem.DataSize())
	}
	size := GroupSize{Meta: metaSize}
	if o.IsRemoved() {
		return total.Add(DataSize{GC: size})
	}
	return total.Add(DataSize{Live: size})
}
