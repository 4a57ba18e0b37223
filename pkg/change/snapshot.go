package change

import (
	"encoding/json"

	"github.com/S-Corkum/crdt-engine/pkg/crdt"
	crdterrors "github.com/S-Corkum/crdt-engine/pkg/errors"
	"github.com/S-Corkum/crdt-engine/pkg/timestamp"
)

// snapshotTicket is the JSON-friendly projection of a TimeTicket.
type snapshotTicket struct {
	Lamport   int64  `json:"lamport"`
	Delimiter uint32 `json:"delimiter"`
	Actor     string `json:"actor"`
}

func toSnapshotTicket(t timestamp.TimeTicket) snapshotTicket {
	return snapshotTicket{Lamport: t.Lamport(), Delimiter: t.Delimiter(), Actor: string(t.ActorID())}
}

func (s snapshotTicket) toTicket() timestamp.TimeTicket {
	return timestamp.NewTimeTicket(s.Lamport, s.Delimiter, timestamp.ActorID(s.Actor))
}

// snapshotNode is the recursive JSON projection of one crdt.Element. It
// captures enough to reconstruct a live replica's value tree: this is a
// "fast-forward" snapshot of current state, not a tombstone-complete
// re-encoding of every CRDT's internal history (that remains the
// responsibility of the incremental change log while peers are still
// converging on older tombstones — see DESIGN.md).
type snapshotNode struct {
	Kind      string           `json:"kind"`
	CreatedAt snapshotTicket   `json:"createdAt"`
	RemovedAt *snapshotTicket  `json:"removedAt,omitempty"`
	Members   []snapshotMember `json:"members,omitempty"`
	Elements  []snapshotNode   `json:"elements,omitempty"`
	ValueType int              `json:"valueType,omitempty"`
	Value     []byte           `json:"value,omitempty"`
	Text      string           `json:"text,omitempty"`
}

type snapshotMember struct {
	Key  string       `json:"key"`
	Node snapshotNode `json:"node"`
}

// SnapshotDocument is the top-level JSON payload carried in a Pack's
// Snapshot field (spec §4.8's "optional snapshot bytes").
type SnapshotDocument struct {
	Root          snapshotNode                          `json:"root"`
	Presences     map[string]map[string]string           `json:"presences"`
	Lamport       int64                                  `json:"lamport"`
	VersionVector map[string]int64                       `json:"versionVector"`
}

// EncodeSnapshot serializes root and the current presence map into the
// wire-carried snapshot payload.
func EncodeSnapshot(root *crdt.Root, presences map[timestamp.ActorID]map[string]string, lamport int64, vv timestamp.VersionVector) ([]byte, error) {
	doc := SnapshotDocument{
		Root:          encodeElement(root.Object()),
		Presences:     make(map[string]map[string]string, len(presences)),
		Lamport:       lamport,
		VersionVector: make(map[string]int64, len(vv)),
	}
	for actor, p := range presences {
		doc.Presences[string(actor)] = p
	}
	for actor, l := range vv {
		doc.VersionVector[string(actor)] = l
	}
	return json.Marshal(doc)
}

func encodeElement(elem crdt.Element) snapshotNode {
	node := snapshotNode{CreatedAt: toSnapshotTicket(elem.CreatedAt())}
	if elem.IsRemoved() {
		r := toSnapshotTicket(elem.RemovedAt())
		node.RemovedAt = &r
	}

	switch v := elem.(type) {
	case *crdt.Object:
		node.Kind = "object"
		for _, kv := range v.RHT().Elements() {
			node.Members = append(node.Members, snapshotMember{Key: kv.Key, Node: encodeElement(kv.Elem)})
		}
	case *crdt.Array:
		node.Kind = "array"
		for _, e := range v.List().Elements() {
			node.Elements = append(node.Elements, encodeElement(e))
		}
	case *crdt.Primitive:
		node.Kind = "primitive"
		node.ValueType = int(v.ValueType())
		node.Value = v.Encode()
	case *crdt.Counter:
		node.Kind = "counter"
		node.ValueType = int(v.ValueType())
		if p, err := crdt.NewPrimitive(v.Value(), v.CreatedAt()); err == nil {
			node.Value = p.Encode()
		}
	case *crdt.Text:
		if v.IsRich() {
			node.Kind = "richtext"
		} else {
			node.Kind = "text"
		}
		node.Text = v.Rope().String()
	case *crdt.Tree:
		node.Kind = "tree"
		node.Text = renderTreeText(v)
	}
	return node
}

// renderTreeText flattens a Tree's leaves for the snapshot's bootstrap
// projection; structural fidelity (node types, nesting) is reconstructed
// from the operation log, not the snapshot, in this engine.
func renderTreeText(t *crdt.Tree) string {
	var out string
	for _, n := range t.AllNodes() {
		if n.IsText() && !n.IsRemoved() {
			out += n.ToJSON().(string)
		}
	}
	return out
}

// DecodeSnapshot reconstructs a Root, presence map, lamport, and version
// vector from a snapshot payload produced by EncodeSnapshot. An unknown
// node kind is Unimplemented, per spec §4.2's decode-failure policy applied
// to the whole snapshot envelope.
func DecodeSnapshot(data []byte) (*crdt.Root, map[timestamp.ActorID]map[string]string, int64, timestamp.VersionVector, error) {
	var doc SnapshotDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, 0, nil, crdterrors.New(crdterrors.KindUnexpected, "DecodeSnapshot", "malformed snapshot JSON: "+err.Error())
	}

	rootElem, err := decodeElement(doc.Root)
	if err != nil {
		return nil, nil, 0, nil, err
	}
	obj, ok := rootElem.(*crdt.Object)
	if !ok {
		return nil, nil, 0, nil, crdterrors.New(crdterrors.KindUnexpected, "DecodeSnapshot", "snapshot root is not an object")
	}

	presences := make(map[timestamp.ActorID]map[string]string, len(doc.Presences))
	for actor, p := range doc.Presences {
		presences[timestamp.ActorID(actor)] = p
	}
	vv := timestamp.NewVersionVector()
	for actor, l := range doc.VersionVector {
		vv.Set(timestamp.ActorID(actor), l)
	}

	return crdt.NewRoot(obj), presences, doc.Lamport, vv, nil
}

func decodeElement(node snapshotNode) (crdt.Element, error) {
	createdAt := node.CreatedAt.toTicket()

	switch node.Kind {
	case "object":
		obj := crdt.NewObject(createdAt)
		for _, m := range node.Members {
			child, err := decodeElement(m.Node)
			if err != nil {
				return nil, err
			}
			obj.Set(m.Key, child, child.CreatedAt())
		}
		applyRemoved(obj, node.RemovedAt)
		return obj, nil
	case "array":
		arr := crdt.NewArray(createdAt)
		prev := timestamp.TimeTicket{}
		for _, e := range node.Elements {
			child, err := decodeElement(e)
			if err != nil {
				return nil, err
			}
			if err := arr.List().InsertAfter(prev, child); err != nil {
				return nil, err
			}
			prev = child.CreatedAt()
		}
		applyRemoved(arr, node.RemovedAt)
		return arr, nil
	case "primitive":
		p, err := crdt.DecodePrimitive(crdt.ValueType(node.ValueType), node.Value, createdAt)
		if err != nil {
			return nil, err
		}
		applyRemoved(p, node.RemovedAt)
		return p, nil
	case "counter":
		p, err := crdt.DecodePrimitive(crdt.ValueType(node.ValueType), node.Value, createdAt)
		if err != nil {
			return nil, err
		}
		c, err := crdt.NewCounter(p.Value(), createdAt)
		if err != nil {
			return nil, err
		}
		applyRemoved(c, node.RemovedAt)
		return c, nil
	case "text":
		text := crdt.NewText(createdAt)
		seedText(text, node.Text, createdAt)
		applyRemoved(text, node.RemovedAt)
		return text, nil
	case "richtext":
		text := crdt.NewRichText(createdAt)
		seedText(text, node.Text, createdAt)
		applyRemoved(text, node.RemovedAt)
		return text, nil
	case "tree":
		tree := crdt.NewTree(createdAt)
		if node.Text != "" {
			leaf := crdt.NewTreeTextNode(node.Text, createdAt)
			pos := crdt.TreePos{ParentID: crdt.TreeNodeID{CreatedAt: tree.Root().CreatedAt()}}
			_, _ = tree.Edit(pos, pos, []*crdt.TreeNode{leaf}, 0, nil, nil, createdAt)
		}
		applyRemoved(tree, node.RemovedAt)
		return tree, nil
	default:
		return nil, crdterrors.New(crdterrors.KindUnimplemented, "DecodeSnapshot", "unknown snapshot node kind: "+node.Kind)
	}
}

func seedText(t *crdt.Text, value string, createdAt timestamp.TimeTicket) {
	if value == "" {
		return
	}
	pos, _ := t.Rope().FindPos(0)
	_, _ = t.Rope().Edit(pos, pos, value, nil, createdAt)
}

func applyRemoved(elem crdt.Element, removedAt *snapshotTicket) {
	if removedAt == nil {
		return
	}
	elem.Remove(removedAt.toTicket())
}
