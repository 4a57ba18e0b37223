package crdt

import "github.com/S-Corkum/crdt-engine/pkg/timestamp"

// Text is the RGATreeSplit-backed plain/rich text CRDT (spec §3.2). Style
// attributes on nodes are always present via the rope's per-node RHT, so
// Text and RichText share one implementation distinguished only by label.
type Text struct {
	baseElement
	rope *RGATreeSplit
	rich bool
}

// NewText creates an empty plain-text element.
func NewText(createdAt timestamp.TimeTicket) *Text {
	return &Text{baseElement: newBaseElement(createdAt), rope: NewRGATreeSplit()}
}

// NewRichText creates an empty rich-text element.
func NewRichText(createdAt timestamp.TimeTicket) *Text {
	return &Text{baseElement: newBaseElement(createdAt), rope: NewRGATreeSplit(), rich: true}
}

// IsRich reports whether this element carries style attributes.
func (t *Text) IsRich() bool { return t.rich }

// Rope exposes the underlying split rope for Edit/Style operations.
func (t *Text) Rope() *RGATreeSplit { return t.rope }

// purgeRopeNode removes a GC'd split node from the rope, called by Root's
// GC pair sweep.
func (t *Text) purgeRopeNode(n *rgaSplitNode) { t.rope.Purge(n) }

func (t *Text) DeepCopy() Element {
	return &Text{baseElement: t.baseElement.clone(), rope: t.rope.DeepCopy(), rich: t.rich}
}

func (t *Text) ToJSON() any { return t.rope.String() }

func (t *Text) DataSize() DataSize {
	data := len(t.rope.String())
	size := DataSize{Live: GroupSize{Data: data, Meta: metaSize}}
	if t.IsRemoved() {
		size.GC, size.Live = size.Live, GroupSize{}
	}
	return size
}
