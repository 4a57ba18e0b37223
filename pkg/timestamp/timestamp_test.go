package timestamp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTimeTicket(t *testing.T) {
	t.Run("orders by lamport first", func(t *testing.T) {
		a := NewTimeTicket(1, 5, "actorA")
		b := NewTimeTicket(2, 0, "actorA")
		assert.True(t, b.After(a))
	})

	t.Run("ties break on actor then delimiter", func(t *testing.T) {
		a := NewTimeTicket(1, 1, "actorA")
		b := NewTimeTicket(1, 0, "actorB")
		assert.True(t, b.After(a), "actorB > actorA lexicographically")

		c := NewTimeTicket(1, 0, "actorA")
		d := NewTimeTicket(1, 1, "actorA")
		assert.True(t, d.After(c))
	})

	t.Run("sentinels bound every real ticket", func(t *testing.T) {
		real := NewTimeTicket(100, 3, "actorA")
		assert.True(t, real.After(InitialTimeTicket))
		assert.True(t, MaxTimeTicket.After(real))
	})

	t.Run("equality is tuple equality", func(t *testing.T) {
		a := NewTimeTicket(1, 2, "actorA")
		b := NewTimeTicket(1, 2, "actorA")
		assert.True(t, a.Equal(b))
	})
}

func TestVersionVector(t *testing.T) {
	t.Run("merge takes pointwise max", func(t *testing.T) {
		vv1 := NewVersionVector()
		vv1.Set("a1", 5)
		vv1.Set("a2", 2)

		vv2 := NewVersionVector()
		vv2.Set("a1", 3)
		vv2.Set("a2", 7)
		vv2.Set("a3", 1)

		vv1.Merge(vv2)
		assert.Equal(t, int64(5), vv1.Get("a1"))
		assert.Equal(t, int64(7), vv1.Get("a2"))
		assert.Equal(t, int64(1), vv1.Get("a3"))
	})

	t.Run("AfterOrEqual detects causal coverage", func(t *testing.T) {
		vv := NewVersionVector()
		vv.Set("a1", 10)

		assert.True(t, vv.AfterOrEqual(NewTimeTicket(10, 0, "a1")))
		assert.True(t, vv.AfterOrEqual(NewTimeTicket(5, 0, "a1")))
		assert.False(t, vv.AfterOrEqual(NewTimeTicket(11, 0, "a1")))
		assert.False(t, vv.AfterOrEqual(NewTimeTicket(0, 0, "unknown-actor")))
	})

	t.Run("DeepCopy is independent", func(t *testing.T) {
		vv := NewVersionVector()
		vv.Set("a1", 1)
		clone := vv.DeepCopy()
		clone.Set("a1", 99)
		assert.Equal(t, int64(1), vv.Get("a1"))
	})
}

func TestChangeIDMonotoneClocks(t *testing.T) {
	t.Run("Next with clocks strictly increases lamport", func(t *testing.T) {
		id := NewChangeID("actorA")
		next := id.Next(true)
		assert.Greater(t, next.Lamport(), id.Lamport())
		assert.Equal(t, id.ClientSeq()+1, next.ClientSeq())
		assert.Equal(t, next.Lamport(), next.VersionVector().Get("actorA"))
	})

	t.Run("Next without clocks bumps client-seq only", func(t *testing.T) {
		id := NewChangeID("actorA")
		next := id.Next(false)
		assert.Equal(t, id.Lamport(), next.Lamport())
		assert.Equal(t, id.ClientSeq()+1, next.ClientSeq())
		assert.False(t, next.HasClocks())
	})

	t.Run("SyncClocks advances past a concurrent peer", func(t *testing.T) {
		a := NewChangeID("actorA").Next(true) // lamport=1
		b := NewChangeID("actorB").Next(true).Next(true).Next(true) // lamport=3

		synced := a.SyncClocks(b)
		assert.Greater(t, synced.Lamport(), a.Lamport())
		assert.Greater(t, synced.Lamport(), b.Lamport())
		assert.GreaterOrEqual(t, synced.VersionVector().Get("actorB"), b.Lamport())
		assert.Equal(t, synced.Lamport(), synced.VersionVector().Get("actorA"))
	})

	t.Run("SyncClocks with a presence-only change is a no-op", func(t *testing.T) {
		a := NewChangeID("actorA").Next(true)
		presenceOnly := NewChangeID("actorB").Next(false)

		synced := a.SyncClocks(presenceOnly)
		assert.Equal(t, a, synced)
	})
}

func TestCheckpointMonotonicity(t *testing.T) {
	cp := InitialCheckpoint
	advanced := cp.Forward(Checkpoint{ServerSeq: 5, ClientSeq: 2})
	assert.Equal(t, int64(5), advanced.ServerSeq)
	assert.Equal(t, uint32(2), advanced.ClientSeq)

	stale := advanced.Forward(Checkpoint{ServerSeq: 1, ClientSeq: 0})
	assert.True(t, stale.Equal(advanced), "forward never moves backward")
}
