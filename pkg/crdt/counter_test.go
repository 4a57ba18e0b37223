package crdt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/S-Corkum/crdt-engine/pkg/timestamp"
)

// TestCounterIncreaseAccumulates covers the ordinary case: successive
// Increase calls sum onto the counter's value.
func TestCounterIncreaseAccumulates(t *testing.T) {
	c, err := NewCounter(int64(0), timestamp.NewTimeTicket(1, 0, "actorA"))
	require.NoError(t, err)

	d1, err := NewPrimitive(int64(3), timestamp.NewTimeTicket(2, 0, "actorA"))
	require.NoError(t, err)
	require.NoError(t, c.Increase(d1))

	d2, err := NewPrimitive(int64(-5), timestamp.NewTimeTicket(3, 0, "actorB"))
	require.NoError(t, err)
	require.NoError(t, c.Increase(d2))

	assert.Equal(t, int64(-2), c.Value())
}

// TestCounterIncreaseIsIdempotentUnderReplay covers spec §8 property 3:
// replaying an Increase whose delta createdAt was already applied must not
// apply the delta twice, mirroring RHT.Set's createdAt-keyed dedupe.
func TestCounterIncreaseIsIdempotentUnderReplay(t *testing.T) {
	c, err := NewCounter(int64(0), timestamp.NewTimeTicket(1, 0, "actorA"))
	require.NoError(t, err)

	delta, err := NewPrimitive(int64(3), timestamp.NewTimeTicket(2, 0, "actorA"))
	require.NoError(t, err)

	require.NoError(t, c.Increase(delta))
	require.NoError(t, c.Increase(delta))

	assert.Equal(t, int64(3), c.Value(), "redelivering the same Increase must not double-apply the delta")
}

// TestCounterDeepCopyIsIndependent covers DeepCopy's independence contract:
// mutating the clone's applied-ticket set must not affect the original, and
// vice versa.
func TestCounterDeepCopyIsIndependent(t *testing.T) {
	c, err := NewCounter(int64(0), timestamp.NewTimeTicket(1, 0, "actorA"))
	require.NoError(t, err)

	delta, err := NewPrimitive(int64(1), timestamp.NewTimeTicket(2, 0, "actorA"))
	require.NoError(t, err)
	require.NoError(t, c.Increase(delta))

	clone := c.DeepCopy().(*Counter)

	other, err := NewPrimitive(int64(10), timestamp.NewTimeTicket(3, 0, "actorA"))
	require.NoError(t, err)
	require.NoError(t, clone.Increase(other))

	assert.Equal(t, int64(1), c.Value(), "original counter must be unaffected by mutations on the clone")
	assert.Equal(t, int64(11), clone.Value())

	// Replaying the clone-only delta against the original must still apply,
	// proving the applied-ticket sets are independent, not aliased.
	require.NoError(t, c.Increase(other))
	assert.Equal(t, int64(11), c.Value())
}
