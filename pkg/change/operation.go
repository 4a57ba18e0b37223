// Package change implements the edit algebra (spec §4.7), the per-update
// recording context (spec §4.8), and the client↔server synchronization
// envelope (spec §4.8, §6.1) that ties the CRDT data model in pkg/crdt to
// the Document state machine.
package change

import (
	"github.com/S-Corkum/crdt-engine/pkg/crdt"
	crdterrors "github.com/S-Corkum/crdt-engine/pkg/errors"
	"github.com/S-Corkum/crdt-engine/pkg/timestamp"
)

// Operation is one edit in the algebra of spec §4.7: it targets a container
// by parentCreatedAt, carries its own executedAt ticket, and is idempotent
// under replay of an identical executedAt.
type Operation interface {
	// ParentCreatedAt returns the createdAt of the operation's target
	// container.
	ParentCreatedAt() timestamp.TimeTicket

	// ExecutedAt returns the operation's own TimeTicket.
	ExecutedAt() timestamp.TimeTicket

	// Execute applies the operation against root, registering any new
	// elements and GC pairs with root itself, and returns nil or a
	// classified error (Reference/Unsupported/Unimplemented).
	Execute(root *crdt.Root) error

	// Type names the operation for event payloads (OperationInfo.Type).
	Type() string
}

// Set executes RHT.set(key, value) against the Object targeted by
// ParentCreatedAt (spec §4.7).
type Set struct {
	Parent    timestamp.TimeTicket
	Executed  timestamp.TimeTicket
	Key       string
	Value     crdt.Element
}

func (o *Set) ParentCreatedAt() timestamp.TimeTicket { return o.Parent }
func (o *Set) ExecutedAt() timestamp.TimeTicket      { return o.Executed }
func (o *Set) Type() string                          { return "set" }

func (o *Set) Execute(root *crdt.Root) error {
	target := root.FindByCreatedAt(o.Parent)
	obj, ok := target.(*crdt.Object)
	if !ok {
		if target == nil {
			return crdterrors.New(crdterrors.KindReference, "Set", "parent not found")
		}
		return crdterrors.New(crdterrors.KindUnsupported, "Set", "parent is not an Object")
	}
	obj.Set(o.Key, o.Value, o.Executed)
	root.RegisterElement(o.Value)
	return nil
}

// Add executes RGATreeList.insertAfter(prev, value) against the Array
// targeted by ParentCreatedAt (spec §4.7).
type Add struct {
	Parent         timestamp.TimeTicket
	Executed       timestamp.TimeTicket
	PrevCreatedAt  timestamp.TimeTicket
	Value          crdt.Element
}

func (o *Add) ParentCreatedAt() timestamp.TimeTicket { return o.Parent }
func (o *Add) ExecutedAt() timestamp.TimeTicket      { return o.Executed }
func (o *Add) Type() string                          { return "add" }

func (o *Add) Execute(root *crdt.Root) error {
	target := root.FindByCreatedAt(o.Parent)
	arr, ok := target.(*crdt.Array)
	if !ok {
		if target == nil {
			return crdterrors.New(crdterrors.KindReference, "Add", "parent not found")
		}
		return crdterrors.New(crdterrors.KindUnsupported, "Add", "parent is not an Array")
	}
	if err := arr.List().InsertAfter(o.PrevCreatedAt, o.Value); err != nil {
		return err
	}
	root.RegisterElement(o.Value)
	for _, n := range arr.List().RawNodes() {
		root.RegisterGCPair(crdt.GCPair{Parent: arr, Child: n})
	}
	return nil
}

// Move executes RGATreeList.move(target, after) against the Array targeted
// by ParentCreatedAt (spec §4.7).
type Move struct {
	Parent        timestamp.TimeTicket
	Executed      timestamp.TimeTicket
	PrevCreatedAt timestamp.TimeTicket
	CreatedAt     timestamp.TimeTicket
}

func (o *Move) ParentCreatedAt() timestamp.TimeTicket { return o.Parent }
func (o *Move) ExecutedAt() timestamp.TimeTicket      { return o.Executed }
func (o *Move) Type() string                          { return "move" }

func (o *Move) Execute(root *crdt.Root) error {
	target := root.FindByCreatedAt(o.Parent)
	arr, ok := target.(*crdt.Array)
	if !ok {
		if target == nil {
			return crdterrors.New(crdterrors.KindReference, "Move", "parent not found")
		}
		return crdterrors.New(crdterrors.KindUnsupported, "Move", "parent is not an Array")
	}
	_, err := arr.List().Move(o.CreatedAt, o.PrevCreatedAt, o.Executed)
	return err
}

// Remove tombstones a child of the Array or Object targeted by
// ParentCreatedAt and registers it with the Root for GC (spec §4.7).
type Remove struct {
	Parent    timestamp.TimeTicket
	Executed  timestamp.TimeTicket
	CreatedAt timestamp.TimeTicket
}

func (o *Remove) ParentCreatedAt() timestamp.TimeTicket { return o.Parent }
func (o *Remove) ExecutedAt() timestamp.TimeTicket      { return o.Executed }
func (o *Remove) Type() string                          { return "remove" }

func (o *Remove) Execute(root *crdt.Root) error {
	target := root.FindByCreatedAt(o.Parent)
	var removed crdt.Element
	var err error
	switch v := target.(type) {
	case *crdt.Array:
		removed, err = v.List().Remove(o.CreatedAt, o.Executed)
	case *crdt.Object:
		removed, err = v.Remove(o.CreatedAt, o.Executed)
	default:
		if target == nil {
			return crdterrors.New(crdterrors.KindReference, "Remove", "parent not found")
		}
		return crdterrors.New(crdterrors.KindUnsupported, "Remove", "parent does not support Remove")
	}
	if err != nil {
		return err
	}
	if removed != nil {
		root.RegisterRemovedElement(removed)
	}
	return nil
}

// Increase applies Counter.increase(v), restricted to numeric operands
// (spec §4.7).
type Increase struct {
	Parent   timestamp.TimeTicket
	Executed timestamp.TimeTicket
	Value    *crdt.Primitive
}

func (o *Increase) ParentCreatedAt() timestamp.TimeTicket { return o.Parent }
func (o *Increase) ExecutedAt() timestamp.TimeTicket      { return o.Executed }
func (o *Increase) Type() string                          { return "increase" }

func (o *Increase) Execute(root *crdt.Root) error {
	target := root.FindByCreatedAt(o.Parent)
	counter, ok := target.(*crdt.Counter)
	if !ok {
		if target == nil {
			return crdterrors.New(crdterrors.KindReference, "Increase", "parent not found")
		}
		return crdterrors.New(crdterrors.KindUnsupported, "Increase", "parent is not a Counter")
	}
	return counter.Increase(o.Value)
}

// Edit applies a rope edit against the Text targeted by ParentCreatedAt
// (spec §4.7).
type Edit struct {
	Parent                 timestamp.TimeTicket
	Executed               timestamp.TimeTicket
	From, To               crdt.RGANodePos
	Content                string
	MaxCreatedAtMapByActor map[timestamp.ActorID]timestamp.TimeTicket
}

func (o *Edit) ParentCreatedAt() timestamp.TimeTicket { return o.Parent }
func (o *Edit) ExecutedAt() timestamp.TimeTicket      { return o.Executed }
func (o *Edit) Type() string                          { return "edit" }

func (o *Edit) Execute(root *crdt.Root) error {
	target := root.FindByCreatedAt(o.Parent)
	text, ok := target.(*crdt.Text)
	if !ok {
		if target == nil {
			return crdterrors.New(crdterrors.KindReference, "Edit", "parent not found")
		}
		return crdterrors.New(crdterrors.KindUnsupported, "Edit", "parent is not Text")
	}
	_, err := text.Rope().Edit(o.From, o.To, o.Content, o.MaxCreatedAtMapByActor, o.Executed)
	if err != nil {
		return err
	}
	for _, n := range text.Rope().Nodes() {
		root.RegisterGCPair(crdt.GCPair{Parent: text, Child: n})
	}
	return nil
}

// Style applies a rope attribute update against the Text targeted by
// ParentCreatedAt (spec §4.7).
type Style struct {
	Parent    timestamp.TimeTicket
	Executed  timestamp.TimeTicket
	From, To  crdt.RGANodePos
	Attrs     map[string]string
}

func (o *Style) ParentCreatedAt() timestamp.TimeTicket { return o.Parent }
func (o *Style) ExecutedAt() timestamp.TimeTicket      { return o.Executed }
func (o *Style) Type() string                          { return "style" }

func (o *Style) Execute(root *crdt.Root) error {
	target := root.FindByCreatedAt(o.Parent)
	text, ok := target.(*crdt.Text)
	if !ok {
		if target == nil {
			return crdterrors.New(crdterrors.KindReference, "Style", "parent not found")
		}
		return crdterrors.New(crdterrors.KindUnsupported, "Style", "parent is not Text")
	}
	return text.Rope().Style(o.From, o.To, o.Attrs, o.Executed)
}

// TreeEdit applies a tree edit against the Tree targeted by
// ParentCreatedAt (spec §4.7).
type TreeEdit struct {
	Parent                 timestamp.TimeTicket
	Executed               timestamp.TimeTicket
	From, To               crdt.TreePos
	Contents               []*crdt.TreeNode
	SplitLevel             int
	SplitTickets           []timestamp.TimeTicket
	MaxCreatedAtMapByActor map[timestamp.ActorID]timestamp.TimeTicket
}

func (o *TreeEdit) ParentCreatedAt() timestamp.TimeTicket { return o.Parent }
func (o *TreeEdit) ExecutedAt() timestamp.TimeTicket      { return o.Executed }
func (o *TreeEdit) Type() string                          { return "tree-edit" }

func (o *TreeEdit) Execute(root *crdt.Root) error {
	target := root.FindByCreatedAt(o.Parent)
	tree, ok := target.(*crdt.Tree)
	if !ok {
		if target == nil {
			return crdterrors.New(crdterrors.KindReference, "TreeEdit", "parent not found")
		}
		return crdterrors.New(crdterrors.KindUnsupported, "TreeEdit", "parent is not a Tree")
	}
	if _, err := tree.Edit(o.From, o.To, o.Contents, o.SplitLevel, o.SplitTickets, o.MaxCreatedAtMapByActor, o.Executed); err != nil {
		return err
	}
	treeRoot := tree.Root()
	for _, n := range tree.AllNodes() {
		if n == treeRoot {
			continue
		}
		root.RegisterGCPair(crdt.GCPair{Parent: tree, Child: n})
	}
	return nil
}

// TreeStyle applies a tree attribute update against the Tree targeted by
// ParentCreatedAt (spec §4.7).
type TreeStyle struct {
	Parent   timestamp.TimeTicket
	Executed timestamp.TimeTicket
	From, To crdt.TreePos
	Attrs    map[string]string
}

func (o *TreeStyle) ParentCreatedAt() timestamp.TimeTicket { return o.Parent }
func (o *TreeStyle) ExecutedAt() timestamp.TimeTicket      { return o.Executed }
func (o *TreeStyle) Type() string                          { return "tree-style" }

func (o *TreeStyle) Execute(root *crdt.Root) error {
	target := root.FindByCreatedAt(o.Parent)
	tree, ok := target.(*crdt.Tree)
	if !ok {
		if target == nil {
			return crdterrors.New(crdterrors.KindReference, "TreeStyle", "parent not found")
		}
		return crdterrors.New(crdterrors.KindUnsupported, "TreeStyle", "parent is not a Tree")
	}
	return tree.Style(o.From, o.To, o.Attrs, o.Executed)
}
