package crdt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/S-Corkum/crdt-engine/pkg/timestamp"
)

func prim(t *testing.T, v any, ticket timestamp.TimeTicket) *Primitive {
	t.Helper()
	p, err := NewPrimitive(v, ticket)
	require.NoError(t, err)
	return p
}

// TestRGADeterministicConcurrentInsert covers spec §8 property 5: two
// concurrent Add operations sharing the same prevCreatedAt order their
// results by descending createdAt, regardless of application order.
func TestRGADeterministicConcurrentInsert(t *testing.T) {
	headAt := timestamp.NewTimeTicket(1, 0, "actorA")
	earlier := timestamp.NewTimeTicket(2, 0, "actorA") // lower lamport, applied second below
	later := timestamp.NewTimeTicket(3, 0, "actorB")   // higher lamport

	build := func(insertOrder []timestamp.TimeTicket) []string {
		list := NewRGATreeList()
		head := prim(t, "head", headAt)
		list.Insert(head)
		for _, ticket := range insertOrder {
			val := "x"
			if ticket.Equal(earlier) {
				val = "earlier"
			} else if ticket.Equal(later) {
				val = "later"
			}
			p := prim(t, val, ticket)
			require.NoError(t, list.InsertAfter(headAt, p))
		}
		var out []string
		for _, e := range list.Elements() {
			out = append(out, e.ToJSON().(string))
		}
		return out
	}

	orderAB := build([]timestamp.TimeTicket{earlier, later})
	orderBA := build([]timestamp.TimeTicket{later, earlier})

	assert.Equal(t, orderAB, orderBA, "insertion order must not affect the converged order")
	assert.Equal(t, []string{"head", "later", "earlier"}, orderAB, "higher lamport wins the position immediately after the shared predecessor")
}

// TestRGAMoveIdempotence covers spec §8 property 7: a move with
// executedAt <= the target's current movedAt is a no-op.
func TestRGAMoveIdempotence(t *testing.T) {
	list := NewRGATreeList()
	a := prim(t, "a", timestamp.NewTimeTicket(1, 0, "actorA"))
	b := prim(t, "b", timestamp.NewTimeTicket(2, 0, "actorA"))
	list.Insert(a)
	list.Insert(b)

	moveAt := timestamp.NewTimeTicket(5, 0, "actorA")
	applied, err := list.Move(b.CreatedAt(), timestamp.TimeTicket{}, moveAt)
	require.NoError(t, err)
	assert.True(t, applied)

	staleAt := timestamp.NewTimeTicket(4, 0, "actorA") // strictly before moveAt
	applied, err = list.Move(b.CreatedAt(), a.CreatedAt(), staleAt)
	require.NoError(t, err)
	assert.False(t, applied, "a move at or before the current movedAt must be rejected")

	var order []string
	for _, e := range list.Elements() {
		order = append(order, e.ToJSON().(string))
	}
	assert.Equal(t, []string{"b", "a"}, order, "the stale move must not have relinked the list")
}

// TestRGASelfMoveNoop covers spec §4.4: moving a node after itself is a
// documented no-op.
func TestRGASelfMoveNoop(t *testing.T) {
	list := NewRGATreeList()
	a := prim(t, "a", timestamp.NewTimeTicket(1, 0, "actorA"))
	list.Insert(a)

	applied, err := list.Move(a.CreatedAt(), a.CreatedAt(), timestamp.NewTimeTicket(2, 0, "actorA"))
	require.NoError(t, err)
	assert.False(t, applied)
}

// TestRGARemoveTombstonesWithoutUnlinking covers spec §8 property 4: a
// removed node stays reachable (for identity resolution) until GC purges
// it, even though it no longer counts toward the live length.
func TestRGARemoveTombstonesWithoutUnlinking(t *testing.T) {
	list := NewRGATreeList()
	a := prim(t, "a", timestamp.NewTimeTicket(1, 0, "actorA"))
	b := prim(t, "b", timestamp.NewTimeTicket(2, 0, "actorA"))
	list.Insert(a)
	list.Insert(b)

	_, err := list.Remove(a.CreatedAt(), timestamp.NewTimeTicket(3, 0, "actorA"))
	require.NoError(t, err)

	assert.Equal(t, 1, list.Len(), "tombstoned node no longer counts toward live length")
	assert.Len(t, list.AllNodes(), 2, "tombstoned node remains linked until GC")

	list.Purge(a.CreatedAt())
	assert.Len(t, list.AllNodes(), 1, "Purge fully unlinks the tombstone")
}
