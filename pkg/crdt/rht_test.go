package crdt

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/S-Corkum/crdt-engine/pkg/timestamp"
)

// TestRHTResolvesLargestCreatedAt covers spec §4.3: concurrent Set calls on
// the same key both remain as entries, and Get resolves to the one with the
// largest createdAt.
func TestRHTResolvesLargestCreatedAt(t *testing.T) {
	rht := NewRHT()
	older := prim(t, "first", timestamp.NewTimeTicket(1, 0, "actorA"))
	newer := prim(t, "second", timestamp.NewTimeTicket(2, 0, "actorB"))

	rht.Set("k", older, older.CreatedAt())
	rht.Set("k", newer, newer.CreatedAt())

	assert.Equal(t, newer, rht.Get("k"))
	assert.True(t, rht.Has("k"))
}

// TestRHTSetIsIdempotentOnEqualCreatedAt covers spec §8 property 3 applied
// to Object/RHT: re-delivering a Set with a createdAt already present must
// not add a duplicate entry.
func TestRHTSetIsIdempotentOnEqualCreatedAt(t *testing.T) {
	rht := NewRHT()
	at := timestamp.NewTimeTicket(1, 0, "actorA")
	p := prim(t, "value", at)

	rht.Set("k", p, at)
	rht.Set("k", p, at)

	entries := 0
	for _, n := range rht.AllNodes() {
		if n.key == "k" {
			entries++
		}
	}
	assert.Equal(t, 1, entries, "re-setting the same createdAt must not duplicate the entry")
}

// TestRHTRemoveTombstonesAndFallsBackToOlderEntry covers the case where a
// key has two concurrent entries and the newer one is removed: the older,
// still-live entry must resurface as the live value.
func TestRHTRemoveTombstonesAndFallsBackToOlderEntry(t *testing.T) {
	rht := NewRHT()
	older := prim(t, "first", timestamp.NewTimeTicket(1, 0, "actorA"))
	newer := prim(t, "second", timestamp.NewTimeTicket(2, 0, "actorB"))
	rht.Set("k", older, older.CreatedAt())
	rht.Set("k", newer, newer.CreatedAt())

	removed := rht.Remove(newer.CreatedAt(), timestamp.NewTimeTicket(3, 0, "actorB"))
	assert.Equal(t, newer, removed)
	assert.Equal(t, older, rht.Get("k"), "removing the newer concurrent entry must expose the older live one")
}

// TestRHTRemoveByKeyTargetsTheLiveEntry covers the common Object.Delete path,
// which removes by key rather than by a specific createdAt.
func TestRHTRemoveByKeyTargetsTheLiveEntry(t *testing.T) {
	rht := NewRHT()
	p := prim(t, "value", timestamp.NewTimeTicket(1, 0, "actorA"))
	rht.Set("k", p, p.CreatedAt())

	removed := rht.RemoveByKey("k", timestamp.NewTimeTicket(2, 0, "actorA"))
	assert.Equal(t, p, removed)
	assert.False(t, rht.Has("k"))
	assert.Nil(t, rht.RemoveByKey("missing", timestamp.NewTimeTicket(3, 0, "actorA")))
}

// TestRHTElementsOrderedByKey covers spec §4.3's "arbitrary but
// deterministic order" requirement for iteration.
func TestRHTElementsOrderedByKey(t *testing.T) {
	rht := NewRHT()
	rht.Set("b", prim(t, int64(2), timestamp.NewTimeTicket(1, 0, "actorA")), timestamp.NewTimeTicket(1, 0, "actorA"))
	rht.Set("a", prim(t, int64(1), timestamp.NewTimeTicket(2, 0, "actorA")), timestamp.NewTimeTicket(2, 0, "actorA"))

	elems := rht.Elements()
	require := assert.New(t)
	require.Len(elems, 2)
	require.Equal("a", elems[0].Key)
	require.Equal("b", elems[1].Key)
}

// TestRHTPurgeDropsOnlyMatchingTombstone covers the GC path: Purge removes
// the tombstoned node for a specific element without disturbing other
// entries under the same or different keys.
func TestRHTPurgeDropsOnlyMatchingTombstone(t *testing.T) {
	rht := NewRHT()
	target := prim(t, "gone", timestamp.NewTimeTicket(1, 0, "actorA"))
	survivor := prim(t, "stays", timestamp.NewTimeTicket(2, 0, "actorB"))
	rht.Set("k", target, target.CreatedAt())
	rht.Set("k", survivor, survivor.CreatedAt())

	rht.Remove(target.CreatedAt(), timestamp.NewTimeTicket(3, 0, "actorA"))
	rht.Purge(target)

	assert.Len(t, rht.AllNodes(), 1)
	assert.Equal(t, survivor, rht.Get("k"))
}

// TestRHTDeepCopyIsIndependent covers the DeepCopy contract the Document
// clone-and-replay update cycle relies on (spec §5 Update).
func TestRHTDeepCopyIsIndependent(t *testing.T) {
	rht := NewRHT()
	p := prim(t, "value", timestamp.NewTimeTicket(1, 0, "actorA"))
	rht.Set("k", p, p.CreatedAt())

	clone := rht.DeepCopy()
	clone.RemoveByKey("k", timestamp.NewTimeTicket(2, 0, "actorA"))

	assert.True(t, rht.Has("k"), "mutating the clone must not affect the original")
	assert.False(t, clone.Has("k"))
}
