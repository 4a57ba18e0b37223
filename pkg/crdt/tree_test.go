package crdt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/S-Corkum/crdt-engine/pkg/timestamp"
)

// TestTreeEditInsertsChildrenInOrder covers the common case behind
// TreeProxy edits: inserting element nodes as children of the root and
// reading them back via ToJSON in insertion order (spec §4.6).
func TestTreeEditInsertsChildrenInOrder(t *testing.T) {
	rootAt := timestamp.NewTimeTicket(1, 0, "actorA")
	tree := NewTree(rootAt)
	root := tree.Root()

	p1At := timestamp.NewTimeTicket(2, 0, "actorA")
	p1 := NewTreeElementNode("paragraph", p1At)
	_, err := tree.Edit(
		TreePos{ParentID: root.id},
		TreePos{ParentID: root.id},
		[]*TreeNode{p1},
		0, nil, nil,
		p1At,
	)
	require.NoError(t, err)

	p2At := timestamp.NewTimeTicket(3, 0, "actorA")
	p2 := NewTreeElementNode("paragraph", p2At)
	_, err = tree.Edit(
		TreePos{ParentID: root.id, LeftSiblingID: p1.id},
		TreePos{ParentID: root.id, LeftSiblingID: p1.id},
		[]*TreeNode{p2},
		0, nil, nil,
		p2At,
	)
	require.NoError(t, err)

	json := tree.ToJSON().(map[string]any)
	kids := json["children"].([]any)
	require.Len(t, kids, 2)
	assert.Equal(t, "paragraph", kids[0].(map[string]any)["type"])
	assert.Equal(t, "paragraph", kids[1].(map[string]any)["type"])
}

// TestTreeEditRemovesRangeAsTombstone covers the removal side of Edit:
// nodes fully inside [from,to) are tombstoned, not physically unlinked,
// so they vanish from ToJSON but remain in AllNodes until GC (spec §4.6,
// §3.2 "ownership does not transfer").
func TestTreeEditRemovesRangeAsTombstone(t *testing.T) {
	rootAt := timestamp.NewTimeTicket(1, 0, "actorA")
	tree := NewTree(rootAt)
	root := tree.Root()

	p1At := timestamp.NewTimeTicket(2, 0, "actorA")
	p1 := NewTreeElementNode("paragraph", p1At)
	_, err := tree.Edit(
		TreePos{ParentID: root.id}, TreePos{ParentID: root.id},
		[]*TreeNode{p1}, 0, nil, nil, p1At,
	)
	require.NoError(t, err)

	p2At := timestamp.NewTimeTicket(3, 0, "actorA")
	p2 := NewTreeElementNode("paragraph", p2At)
	_, err = tree.Edit(
		TreePos{ParentID: root.id, LeftSiblingID: p1.id},
		TreePos{ParentID: root.id, LeftSiblingID: p1.id},
		[]*TreeNode{p2}, 0, nil, nil, p2At,
	)
	require.NoError(t, err)

	removeAt := timestamp.NewTimeTicket(4, 0, "actorA")
	_, err = tree.Edit(
		TreePos{ParentID: root.id},
		TreePos{ParentID: root.id, LeftSiblingID: p1.id},
		nil, 0, nil, nil, removeAt,
	)
	require.NoError(t, err)

	json := tree.ToJSON().(map[string]any)
	kids := json["children"].([]any)
	require.Len(t, kids, 1, "only the surviving paragraph should show up in the live projection")

	all := tree.AllNodes()
	var foundTombstoned bool
	for _, n := range all {
		if n.id == p1.id {
			foundTombstoned = true
			assert.True(t, n.IsRemoved())
		}
	}
	assert.True(t, foundTombstoned, "removed node must stay reachable until GC")
}

// TestTreeEditIsIdempotentUnderReplay covers spec §4.7/§8 property 3:
// replaying the exact same Edit (same contents, same executedAt) must not
// insert the contents a second time, mirroring RGATreeList's Add dedupe.
func TestTreeEditIsIdempotentUnderReplay(t *testing.T) {
	rootAt := timestamp.NewTimeTicket(1, 0, "actorA")
	tree := NewTree(rootAt)
	root := tree.Root()

	p1At := timestamp.NewTimeTicket(2, 0, "actorA")
	p1 := NewTreeElementNode("paragraph", p1At)
	pos := TreePos{ParentID: root.id}
	_, err := tree.Edit(pos, pos, []*TreeNode{p1}, 0, nil, nil, p1At)
	require.NoError(t, err)

	_, err = tree.Edit(pos, pos, []*TreeNode{p1}, 0, nil, nil, p1At)
	require.NoError(t, err)

	json := tree.ToJSON().(map[string]any)
	kids := json["children"].([]any)
	require.Len(t, kids, 1, "replaying the same Edit must not duplicate its content")
}

// TestTreeStyleAppliesAttrsInRange covers Style's attribute update over
// the nodes whose opening tag lies in [from,to) (spec §4.6).
func TestTreeStyleAppliesAttrsInRange(t *testing.T) {
	rootAt := timestamp.NewTimeTicket(1, 0, "actorA")
	tree := NewTree(rootAt)
	root := tree.Root()

	p1At := timestamp.NewTimeTicket(2, 0, "actorA")
	p1 := NewTreeElementNode("paragraph", p1At)
	_, err := tree.Edit(
		TreePos{ParentID: root.id}, TreePos{ParentID: root.id},
		[]*TreeNode{p1}, 0, nil, nil, p1At,
	)
	require.NoError(t, err)

	styleAt := timestamp.NewTimeTicket(3, 0, "actorA")
	err = tree.Style(
		TreePos{ParentID: root.id},
		TreePos{ParentID: root.id, LeftSiblingID: p1.id},
		map[string]string{"bold": "true"},
		styleAt,
	)
	require.NoError(t, err)

	require.NotNil(t, p1.attrs)
	val := p1.attrs.Get("bold")
	require.NotNil(t, val)
	prim, ok := val.(*Primitive)
	require.True(t, ok)
	assert.Equal(t, "true", prim.Value())
}

// TestTreeEditUnknownParentIsReferenceError covers spec §4.7's error mode:
// targeting a createdAt not present in the tree's node index returns
// Reference, not a panic or silent no-op.
func TestTreeEditUnknownParentIsReferenceError(t *testing.T) {
	tree := NewTree(timestamp.NewTimeTicket(1, 0, "actorA"))
	bogus := TreeNodeID{CreatedAt: timestamp.NewTimeTicket(99, 0, "actorZ")}

	_, err := tree.Edit(TreePos{ParentID: bogus}, TreePos{ParentID: bogus}, nil, 0, nil, nil, timestamp.NewTimeTicket(2, 0, "actorA"))
	require.Error(t, err)
}

// TestTreeEditTextLeafInteriorBehavesAsRopeEdit covers spec §4.6's boundary
// rule: when from and to both resolve inside the same text leaf, Edit
// splices characters into that leaf's own rope instead of touching the
// surrounding tree structure.
func TestTreeEditTextLeafInteriorBehavesAsRopeEdit(t *testing.T) {
	rootAt := timestamp.NewTimeTicket(1, 0, "actorA")
	tree := NewTree(rootAt)
	root := tree.Root()

	leafAt := timestamp.NewTimeTicket(2, 0, "actorA")
	leaf := NewTreeTextNode("hello", leafAt)
	pos := TreePos{ParentID: root.id}
	_, err := tree.Edit(pos, pos, []*TreeNode{leaf}, 0, nil, nil, leafAt)
	require.NoError(t, err)

	insertAt := timestamp.NewTimeTicket(3, 0, "actorA")
	insertLeaf := TreePos{ParentID: leaf.id, TextOffset: 5}
	_, err = tree.Edit(insertLeaf, insertLeaf, []*TreeNode{NewTreeTextNode(" world", insertAt)}, 0, nil, nil, insertAt)
	require.NoError(t, err)

	assert.Equal(t, "hello world", leaf.ToJSON())

	json := tree.ToJSON().(map[string]any)
	kids := json["children"].([]any)
	require.Len(t, kids, 1, "a text-interior edit must not add a sibling node")

	removeAt := timestamp.NewTimeTicket(4, 0, "actorA")
	removeRange := TreePos{ParentID: leaf.id, TextOffset: 0}
	removeTo := TreePos{ParentID: leaf.id, TextOffset: 5}
	_, err = tree.Edit(removeRange, removeTo, nil, 0, nil, nil, removeAt)
	require.NoError(t, err)
	assert.Equal(t, " world", leaf.ToJSON())
}

// TestTreeEditSplitsAncestorForSplitLevel covers spec §4.6's "splits
// boundary nodes up to splitLevel ancestors": inserting a new listItem in
// the middle of an existing one's two text children, with splitLevel 1,
// must split item1 in two (the tail child moving to a fresh right sibling)
// and land the new listItem between them as list's direct child, not
// nested inside either half.
func TestTreeEditSplitsAncestorForSplitLevel(t *testing.T) {
	rootAt := timestamp.NewTimeTicket(1, 0, "actorA")
	tree := NewTree(rootAt)
	root := tree.Root()

	listAt := timestamp.NewTimeTicket(2, 0, "actorA")
	list := NewTreeElementNode("list", listAt)
	rootPos := TreePos{ParentID: root.id}
	_, err := tree.Edit(rootPos, rootPos, []*TreeNode{list}, 0, nil, nil, listAt)
	require.NoError(t, err)

	item1At := timestamp.NewTimeTicket(3, 0, "actorA")
	item1 := NewTreeElementNode("listItem", item1At)
	listPos := TreePos{ParentID: list.id}
	_, err = tree.Edit(listPos, listPos, []*TreeNode{item1}, 0, nil, nil, item1At)
	require.NoError(t, err)

	text1At := timestamp.NewTimeTicket(4, 0, "actorA")
	text1 := NewTreeTextNode("first", text1At)
	item1Pos := TreePos{ParentID: item1.id}
	_, err = tree.Edit(item1Pos, item1Pos, []*TreeNode{text1}, 0, nil, nil, text1At)
	require.NoError(t, err)

	text2At := timestamp.NewTimeTicket(4, 1, "actorA")
	text2 := NewTreeTextNode("third", text2At)
	_, err = tree.Edit(
		TreePos{ParentID: item1.id, LeftSiblingID: text1.id},
		TreePos{ParentID: item1.id, LeftSiblingID: text1.id},
		[]*TreeNode{text2}, 0, nil, nil, text2At,
	)
	require.NoError(t, err)

	splitAt := timestamp.NewTimeTicket(5, 0, "actorA")
	splitTickets := []timestamp.TimeTicket{timestamp.NewTimeTicket(5, 1, "actorA")}
	newItemAt := timestamp.NewTimeTicket(5, 2, "actorA")
	newItem := NewTreeElementNode("listItem", newItemAt)

	splitPos := TreePos{ParentID: item1.id, LeftSiblingID: text1.id}
	_, err = tree.Edit(splitPos, splitPos, []*TreeNode{newItem}, 1, splitTickets, nil, splitAt)
	require.NoError(t, err)

	listKids := list.ToJSON().(map[string]any)["children"].([]any)
	require.Len(t, listKids, 3, "splitLevel 1 must split item1 and land the new listItem as list's direct child")
	for _, k := range listKids {
		assert.Equal(t, "listItem", k.(map[string]any)["type"])
	}

	item1Kids := item1.ToJSON().(map[string]any)["children"].([]any)
	require.Len(t, item1Kids, 1, "item1 must keep only the content before the split point")
	assert.Equal(t, "first", item1Kids[0])

	rightNode := list.children.AllNodes()[2].(*TreeNode)
	rightKids := rightNode.ToJSON().(map[string]any)["children"].([]any)
	require.Len(t, rightKids, 1, "the content after the split point must move to the new right sibling")
	assert.Equal(t, "third", rightKids[0])
}

// TestTreeEditSplitIsIdempotentUnderReplay covers spec §4.7/§8 property 3
// for the ancestor-splitting path: replaying the same splitLevel edit
// (same contents, splitTickets, executedAt) must not insert the new
// listItem a second time. The split point is after item1's only child, so
// nothing lies past it and no split-off node is created.
func TestTreeEditSplitIsIdempotentUnderReplay(t *testing.T) {
	rootAt := timestamp.NewTimeTicket(1, 0, "actorA")
	tree := NewTree(rootAt)
	root := tree.Root()

	listAt := timestamp.NewTimeTicket(2, 0, "actorA")
	list := NewTreeElementNode("list", listAt)
	rootPos := TreePos{ParentID: root.id}
	_, err := tree.Edit(rootPos, rootPos, []*TreeNode{list}, 0, nil, nil, listAt)
	require.NoError(t, err)

	item1At := timestamp.NewTimeTicket(3, 0, "actorA")
	item1 := NewTreeElementNode("listItem", item1At)
	listPos := TreePos{ParentID: list.id}
	_, err = tree.Edit(listPos, listPos, []*TreeNode{item1}, 0, nil, nil, item1At)
	require.NoError(t, err)

	text1At := timestamp.NewTimeTicket(4, 0, "actorA")
	text1 := NewTreeTextNode("first", text1At)
	item1Pos := TreePos{ParentID: item1.id}
	_, err = tree.Edit(item1Pos, item1Pos, []*TreeNode{text1}, 0, nil, nil, text1At)
	require.NoError(t, err)

	splitAt := timestamp.NewTimeTicket(5, 0, "actorA")
	splitTickets := []timestamp.TimeTicket{timestamp.NewTimeTicket(5, 1, "actorA")}
	newItemAt := timestamp.NewTimeTicket(5, 2, "actorA")
	newItem := NewTreeElementNode("listItem", newItemAt)

	splitPos := TreePos{ParentID: item1.id, LeftSiblingID: text1.id}
	_, err = tree.Edit(splitPos, splitPos, []*TreeNode{newItem}, 1, splitTickets, nil, splitAt)
	require.NoError(t, err)

	_, err = tree.Edit(splitPos, splitPos, []*TreeNode{newItem}, 1, splitTickets, nil, splitAt)
	require.NoError(t, err)

	listKids := list.ToJSON().(map[string]any)["children"].([]any)
	require.Len(t, listKids, 2, "replaying the split edit must not duplicate the inserted listItem")
}

// TestTreeTextLeafDeepCopyIsIndependent covers identity/content
// preservation across DeepCopy for the text-leaf variant, mirroring the
// convergence guarantee a Document clone relies on (spec §5: "clone is a
// full deep copy").
func TestTreeTextLeafDeepCopyIsIndependent(t *testing.T) {
	leafAt := timestamp.NewTimeTicket(1, 0, "actorA")
	leaf := NewTreeTextNode("hello", leafAt)

	clone := leaf.DeepCopy().(*TreeNode)
	assert.Equal(t, "hello", clone.ToJSON())

	editAt := timestamp.NewTimeTicket(2, 0, "actorA")
	pos, err := leaf.text.FindPos(5)
	require.NoError(t, err)
	_, err = leaf.text.Edit(pos, pos, " world", nil, editAt)
	require.NoError(t, err)

	assert.Equal(t, "hello world", leaf.ToJSON())
	assert.Equal(t, "hello", clone.ToJSON(), "mutating the original must not affect the clone")
}
