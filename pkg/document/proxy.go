// Proxies are thin, ChangeContext-bound views over live CRDT state: every
// mutating call both applies to the context's cloned root immediately (so
// a subsequent read within the same update sees its own write) and records
// an Operation the Document replays against the canonical root once the
// update closure returns (spec §4.9, §9 design notes: "Proxies over live
// state").
package document

import (
	"github.com/S-Corkum/crdt-engine/pkg/change"
	"github.com/S-Corkum/crdt-engine/pkg/crdt"
	crdterrors "github.com/S-Corkum/crdt-engine/pkg/errors"
	"github.com/S-Corkum/crdt-engine/pkg/presence"
	"github.com/S-Corkum/crdt-engine/pkg/timestamp"
)

// PresenceProxy is the host-facing view of the current update's pending
// presence mutation (spec §4.8's PresenceChange, issued through the
// updater closure's second argument).
type PresenceProxy struct {
	ctx   *change.Context
	actor timestamp.ActorID
}

func newPresenceProxy(ctx *change.Context, actor timestamp.ActorID) *PresenceProxy {
	return &PresenceProxy{ctx: ctx, actor: actor}
}

// Put replaces this actor's presence wholesale.
func (p *PresenceProxy) Put(data presence.Presence) {
	p.ctx.SetPresenceChange(change.PresenceChange{Type: change.PresenceChangePut, Presence: data})
}

// Clear removes this actor's presence entirely.
func (p *PresenceProxy) Clear() {
	p.ctx.SetPresenceChange(change.PresenceChange{Type: change.PresenceChangeClear})
}

// Actor returns the actor this update is recorded under.
func (p *PresenceProxy) Actor() timestamp.ActorID { return p.actor }

// ObjectProxy is the host-facing view of a CRDT Object.
type ObjectProxy struct {
	ctx *change.Context
	obj *crdt.Object
}

func newObjectProxy(ctx *change.Context, obj *crdt.Object) *ObjectProxy {
	return &ObjectProxy{ctx: ctx, obj: obj}
}

// SetValue sets key to a plain primitive value (nil, bool, int32, int64,
// float64, string, []byte, or time.Time).
func (p *ObjectProxy) SetValue(key string, value any) error {
	ticket := p.ctx.IssueTimeTicket()
	prim, err := crdt.NewPrimitive(value, ticket)
	if err != nil {
		return err
	}
	p.obj.Set(key, prim, ticket)
	p.ctx.Root().RegisterElement(prim)
	p.ctx.Push(&change.Set{Parent: p.obj.CreatedAt(), Executed: ticket, Key: key, Value: prim})
	return nil
}

// SetNewObject sets key to a fresh empty Object and returns a proxy over it.
func (p *ObjectProxy) SetNewObject(key string) *ObjectProxy {
	ticket := p.ctx.IssueTimeTicket()
	child := crdt.NewObject(ticket)
	p.obj.Set(key, child, ticket)
	p.ctx.Root().RegisterElement(child)
	p.ctx.Push(&change.Set{Parent: p.obj.CreatedAt(), Executed: ticket, Key: key, Value: child})
	return newObjectProxy(p.ctx, child)
}

// SetNewArray sets key to a fresh empty Array and returns a proxy over it.
func (p *ObjectProxy) SetNewArray(key string) *ArrayProxy {
	ticket := p.ctx.IssueTimeTicket()
	child := crdt.NewArray(ticket)
	p.obj.Set(key, child, ticket)
	p.ctx.Root().RegisterElement(child)
	p.ctx.Push(&change.Set{Parent: p.obj.CreatedAt(), Executed: ticket, Key: key, Value: child})
	return newArrayProxy(p.ctx, child)
}

// SetNewText sets key to a fresh empty Text (plain or rich) and returns a
// proxy over it.
func (p *ObjectProxy) SetNewText(key string, rich bool) *TextProxy {
	ticket := p.ctx.IssueTimeTicket()
	var child *crdt.Text
	if rich {
		child = crdt.NewRichText(ticket)
	} else {
		child = crdt.NewText(ticket)
	}
	p.obj.Set(key, child, ticket)
	p.ctx.Root().RegisterElement(child)
	p.ctx.Push(&change.Set{Parent: p.obj.CreatedAt(), Executed: ticket, Key: key, Value: child})
	return newTextProxy(p.ctx, child)
}

// SetNewCounter sets key to a fresh Counter seeded with v (int32, int64, or
// float64) and returns a proxy over it.
func (p *ObjectProxy) SetNewCounter(key string, v any) (*CounterProxy, error) {
	ticket := p.ctx.IssueTimeTicket()
	child, err := crdt.NewCounter(v, ticket)
	if err != nil {
		return nil, err
	}
	p.obj.Set(key, child, ticket)
	p.ctx.Root().RegisterElement(child)
	p.ctx.Push(&change.Set{Parent: p.obj.CreatedAt(), Executed: ticket, Key: key, Value: child})
	return newCounterProxy(p.ctx, child), nil
}

// SetNewTree sets key to a fresh empty Tree and returns a proxy over it.
func (p *ObjectProxy) SetNewTree(key string) *TreeProxy {
	ticket := p.ctx.IssueTimeTicket()
	child := crdt.NewTree(ticket)
	p.obj.Set(key, child, ticket)
	p.ctx.Root().RegisterElement(child)
	p.ctx.Push(&change.Set{Parent: p.obj.CreatedAt(), Executed: ticket, Key: key, Value: child})
	return newTreeProxy(p.ctx, child)
}

// Delete removes key, tombstoning its current value and registering it for
// GC. It is a no-op if key is absent or already tombstoned.
func (p *ObjectProxy) Delete(key string) error {
	target := p.obj.Get(key)
	if target == nil {
		return crdterrors.New(crdterrors.KindReference, "ObjectProxy.Delete", "key not found: "+key)
	}
	ticket := p.ctx.IssueTimeTicket()
	removed, err := p.obj.Remove(target.CreatedAt(), ticket)
	if err != nil {
		return err
	}
	p.ctx.Root().RegisterRemovedElement(removed)
	p.ctx.Push(&change.Remove{Parent: p.obj.CreatedAt(), Executed: ticket, CreatedAt: target.CreatedAt()})
	return nil
}

// Get returns key's current value rendered as a plain Go value.
func (p *ObjectProxy) Get(key string) any {
	if v := p.obj.Get(key); v != nil {
		return v.ToJSON()
	}
	return nil
}

// lookup fetches key's current element, rejecting a missing key so the
// typed accessors below (Object/Array/Text/Counter/Tree) fail the same way
// Delete does rather than panicking on a nil container.
func (p *ObjectProxy) lookup(key string) (crdt.Element, error) {
	elem := p.obj.Get(key)
	if elem == nil {
		return nil, crdterrors.New(crdterrors.KindReference, "ObjectProxy", "key not found: "+key)
	}
	return elem, nil
}

// Object returns a proxy over the existing Object at key, for a host that
// wants to keep editing a container it created in an earlier Update call.
func (p *ObjectProxy) Object(key string) (*ObjectProxy, error) {
	elem, err := p.lookup(key)
	if err != nil {
		return nil, err
	}
	obj, ok := elem.(*crdt.Object)
	if !ok {
		return nil, crdterrors.New(crdterrors.KindUnsupported, "ObjectProxy.Object", "value at "+key+" is not an Object")
	}
	return newObjectProxy(p.ctx, obj), nil
}

// Array returns a proxy over the existing Array at key.
func (p *ObjectProxy) Array(key string) (*ArrayProxy, error) {
	elem, err := p.lookup(key)
	if err != nil {
		return nil, err
	}
	arr, ok := elem.(*crdt.Array)
	if !ok {
		return nil, crdterrors.New(crdterrors.KindUnsupported, "ObjectProxy.Array", "value at "+key+" is not an Array")
	}
	return newArrayProxy(p.ctx, arr), nil
}

// Text returns a proxy over the existing Text at key.
func (p *ObjectProxy) Text(key string) (*TextProxy, error) {
	elem, err := p.lookup(key)
	if err != nil {
		return nil, err
	}
	text, ok := elem.(*crdt.Text)
	if !ok {
		return nil, crdterrors.New(crdterrors.KindUnsupported, "ObjectProxy.Text", "value at "+key+" is not a Text")
	}
	return newTextProxy(p.ctx, text), nil
}

// Counter returns a proxy over the existing Counter at key.
func (p *ObjectProxy) Counter(key string) (*CounterProxy, error) {
	elem, err := p.lookup(key)
	if err != nil {
		return nil, err
	}
	counter, ok := elem.(*crdt.Counter)
	if !ok {
		return nil, crdterrors.New(crdterrors.KindUnsupported, "ObjectProxy.Counter", "value at "+key+" is not a Counter")
	}
	return newCounterProxy(p.ctx, counter), nil
}

// Tree returns a proxy over the existing Tree at key.
func (p *ObjectProxy) Tree(key string) (*TreeProxy, error) {
	elem, err := p.lookup(key)
	if err != nil {
		return nil, err
	}
	tree, ok := elem.(*crdt.Tree)
	if !ok {
		return nil, crdterrors.New(crdterrors.KindUnsupported, "ObjectProxy.Tree", "value at "+key+" is not a Tree")
	}
	return newTreeProxy(p.ctx, tree), nil
}

// ArrayProxy is the host-facing view of a CRDT Array.
type ArrayProxy struct {
	ctx *change.Context
	arr *crdt.Array
}

func newArrayProxy(ctx *change.Context, arr *crdt.Array) *ArrayProxy {
	return &ArrayProxy{ctx: ctx, arr: arr}
}

// Len returns the live element count.
func (p *ArrayProxy) Len() int { return p.arr.Len() }

// AppendValue appends a plain primitive value to the end of the array.
func (p *ArrayProxy) AppendValue(value any) error {
	ticket := p.ctx.IssueTimeTicket()
	prim, err := crdt.NewPrimitive(value, ticket)
	if err != nil {
		return err
	}
	prev := p.arr.List().LastCreatedAt()
	if err := p.arr.List().InsertAfter(prev, prim); err != nil {
		return err
	}
	p.ctx.Root().RegisterElement(prim)
	p.ctx.Push(&change.Add{Parent: p.arr.CreatedAt(), Executed: ticket, PrevCreatedAt: prev, Value: prim})
	return nil
}

// AppendNewObject appends a fresh empty Object and returns a proxy over it.
func (p *ArrayProxy) AppendNewObject() (*ObjectProxy, error) {
	ticket := p.ctx.IssueTimeTicket()
	child := crdt.NewObject(ticket)
	prev := p.arr.List().LastCreatedAt()
	if err := p.arr.List().InsertAfter(prev, child); err != nil {
		return nil, err
	}
	p.ctx.Root().RegisterElement(child)
	p.ctx.Push(&change.Add{Parent: p.arr.CreatedAt(), Executed: ticket, PrevCreatedAt: prev, Value: child})
	return newObjectProxy(p.ctx, child), nil
}

// AppendNewArray appends a fresh empty Array and returns a proxy over it.
func (p *ArrayProxy) AppendNewArray() (*ArrayProxy, error) {
	ticket := p.ctx.IssueTimeTicket()
	child := crdt.NewArray(ticket)
	prev := p.arr.List().LastCreatedAt()
	if err := p.arr.List().InsertAfter(prev, child); err != nil {
		return nil, err
	}
	p.ctx.Root().RegisterElement(child)
	p.ctx.Push(&change.Add{Parent: p.arr.CreatedAt(), Executed: ticket, PrevCreatedAt: prev, Value: child})
	return newArrayProxy(p.ctx, child), nil
}

// MoveAfter moves the element identified by createdAt to the position
// immediately after afterCreatedAt.
func (p *ArrayProxy) MoveAfter(createdAt, afterCreatedAt timestamp.TimeTicket) error {
	ticket := p.ctx.IssueTimeTicket()
	if _, err := p.arr.List().Move(createdAt, afterCreatedAt, ticket); err != nil {
		return err
	}
	p.ctx.Push(&change.Move{Parent: p.arr.CreatedAt(), Executed: ticket, PrevCreatedAt: afterCreatedAt, CreatedAt: createdAt})
	return nil
}

// Delete removes the live element at idx.
func (p *ArrayProxy) Delete(idx int) error {
	elem, err := p.arr.Get(idx)
	if err != nil {
		return err
	}
	ticket := p.ctx.IssueTimeTicket()
	removed, err := p.arr.List().Remove(elem.CreatedAt(), ticket)
	if err != nil {
		return err
	}
	p.ctx.Root().RegisterRemovedElement(removed)
	p.ctx.Push(&change.Remove{Parent: p.arr.CreatedAt(), Executed: ticket, CreatedAt: elem.CreatedAt()})
	return nil
}

// Get returns the live value at idx rendered as a plain Go value.
func (p *ArrayProxy) Get(idx int) (any, error) {
	elem, err := p.arr.Get(idx)
	if err != nil {
		return nil, err
	}
	return elem.ToJSON(), nil
}

// Object returns a proxy over the existing Object at idx.
func (p *ArrayProxy) Object(idx int) (*ObjectProxy, error) {
	elem, err := p.arr.Get(idx)
	if err != nil {
		return nil, err
	}
	obj, ok := elem.(*crdt.Object)
	if !ok {
		return nil, crdterrors.New(crdterrors.KindUnsupported, "ArrayProxy.Object", "value at index is not an Object")
	}
	return newObjectProxy(p.ctx, obj), nil
}

// Array returns a proxy over the existing Array at idx.
func (p *ArrayProxy) Array(idx int) (*ArrayProxy, error) {
	elem, err := p.arr.Get(idx)
	if err != nil {
		return nil, err
	}
	arr, ok := elem.(*crdt.Array)
	if !ok {
		return nil, crdterrors.New(crdterrors.KindUnsupported, "ArrayProxy.Array", "value at index is not an Array")
	}
	return newArrayProxy(p.ctx, arr), nil
}

// TextProxy is the host-facing view of a CRDT Text/RichText element.
type TextProxy struct {
	ctx  *change.Context
	text *crdt.Text
}

func newTextProxy(ctx *change.Context, text *crdt.Text) *TextProxy {
	return &TextProxy{ctx: ctx, text: text}
}

// Edit replaces the rune range [from, to) with content.
func (p *TextProxy) Edit(from, to int, content string) error {
	fromPos, err := p.text.Rope().FindPos(from)
	if err != nil {
		return err
	}
	toPos, err := p.text.Rope().FindPos(to)
	if err != nil {
		return err
	}
	maxCreatedAt := p.text.Rope().NodeMaxCreatedAtByActor()
	ticket := p.ctx.IssueTimeTicket()
	updated, err := p.text.Rope().Edit(fromPos, toPos, content, maxCreatedAt, ticket)
	if err != nil {
		return err
	}
	p.ctx.Push(&change.Edit{
		Parent: p.text.CreatedAt(), Executed: ticket,
		From: fromPos, To: toPos, Content: content, MaxCreatedAtMapByActor: updated,
	})
	return nil
}

// Style applies attrs to the rune range [from, to).
func (p *TextProxy) Style(from, to int, attrs map[string]string) error {
	fromPos, err := p.text.Rope().FindPos(from)
	if err != nil {
		return err
	}
	toPos, err := p.text.Rope().FindPos(to)
	if err != nil {
		return err
	}
	ticket := p.ctx.IssueTimeTicket()
	if err := p.text.Rope().Style(fromPos, toPos, attrs, ticket); err != nil {
		return err
	}
	p.ctx.Push(&change.Style{Parent: p.text.CreatedAt(), Executed: ticket, From: fromPos, To: toPos, Attrs: attrs})
	return nil
}

// String returns the text's current plain-text content.
func (p *TextProxy) String() string { return p.text.Rope().String() }

// CounterProxy is the host-facing view of a CRDT Counter.
type CounterProxy struct {
	ctx     *change.Context
	counter *crdt.Counter
}

func newCounterProxy(ctx *change.Context, counter *crdt.Counter) *CounterProxy {
	return &CounterProxy{ctx: ctx, counter: counter}
}

// Increase applies delta (int32, int64, or float64) to the counter.
func (p *CounterProxy) Increase(delta any) error {
	ticket := p.ctx.IssueTimeTicket()
	prim, err := crdt.NewPrimitive(delta, ticket)
	if err != nil {
		return err
	}
	if !prim.IsNumeric() {
		return crdterrors.New(crdterrors.KindUnsupported, "CounterProxy.Increase", "delta must be numeric")
	}
	if err := p.counter.Increase(prim); err != nil {
		return err
	}
	p.ctx.Push(&change.Increase{Parent: p.counter.CreatedAt(), Executed: ticket, Value: prim})
	return nil
}

// Value returns the counter's current numeric value.
func (p *CounterProxy) Value() any { return p.counter.Value() }

// TreeProxy is the host-facing view of a CRDT Tree. Unlike the other
// proxies it exposes the edit algebra directly in terms of TreePos rather
// than a convenience index API: the splay-indexed path↔index↔pos
// conversions described in spec §4.6 are a transport/UI concern that sits
// above this replica engine, not inside it.
type TreeProxy struct {
	ctx  *change.Context
	tree *crdt.Tree
}

func newTreeProxy(ctx *change.Context, tree *crdt.Tree) *TreeProxy {
	return &TreeProxy{ctx: ctx, tree: tree}
}

// Edit removes the nodes in [from, to) and inserts contents in the gap,
// splitting splitLevel ancestors above the insertion point so contents land
// as siblings at the requested depth.
func (p *TreeProxy) Edit(from, to crdt.TreePos, contents []*crdt.TreeNode, splitLevel int) error {
	ticket := p.ctx.IssueTimeTicket()
	maxByActor := make(map[timestamp.ActorID]timestamp.TimeTicket)
	for _, n := range p.tree.AllNodes() {
		actor := n.CreatedAt().ActorID()
		if n.CreatedAt().After(maxByActor[actor]) {
			maxByActor[actor] = n.CreatedAt()
		}
	}
	var splitTickets []timestamp.TimeTicket
	if splitLevel > 0 {
		splitTickets = make([]timestamp.TimeTicket, splitLevel)
		for i := range splitTickets {
			splitTickets[i] = p.ctx.IssueTimeTicket()
		}
	}
	updated, err := p.tree.Edit(from, to, contents, splitLevel, splitTickets, maxByActor, ticket)
	if err != nil {
		return err
	}
	p.ctx.Push(&change.TreeEdit{
		Parent: p.tree.CreatedAt(), Executed: ticket,
		From: from, To: to, Contents: contents, SplitLevel: splitLevel,
		SplitTickets: splitTickets, MaxCreatedAtMapByActor: updated,
	})
	return nil
}

// Style applies attrs to every internal node whose opening tag lies in
// [from, to).
func (p *TreeProxy) Style(from, to crdt.TreePos, attrs map[string]string) error {
	ticket := p.ctx.IssueTimeTicket()
	if err := p.tree.Style(from, to, attrs, ticket); err != nil {
		return err
	}
	p.ctx.Push(&change.TreeStyle{Parent: p.tree.CreatedAt(), Executed: ticket, From: from, To: to, Attrs: attrs})
	return nil
}
