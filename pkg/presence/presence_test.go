package presence

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/S-Corkum/crdt-engine/pkg/timestamp"
)

func TestMapPresence(t *testing.T) {
	t.Run("put then get roundtrips", func(t *testing.T) {
		m := NewMap()
		m.Put("a1", Presence{"cursor": "3"}, 1)

		p, ok := m.Get("a1")
		assert.True(t, ok)
		assert.Equal(t, "3", p["cursor"])
	})

	t.Run("stale lamport does not clobber a newer put", func(t *testing.T) {
		m := NewMap()
		m.Put("a1", Presence{"cursor": "5"}, 10)
		m.Put("a1", Presence{"cursor": "1"}, 3)

		p, ok := m.Get("a1")
		assert.True(t, ok)
		assert.Equal(t, "5", p["cursor"], "lamport 3 must not overwrite lamport 10")
	})

	t.Run("equal lamport still accepts the new value", func(t *testing.T) {
		m := NewMap()
		m.Put("a1", Presence{"cursor": "5"}, 10)
		m.Put("a1", Presence{"cursor": "6"}, 10)

		p, _ := m.Get("a1")
		assert.Equal(t, "6", p["cursor"])
	})

	t.Run("clear removes presence and online membership", func(t *testing.T) {
		m := NewMap()
		m.Put("a1", Presence{"cursor": "3"}, 1)
		m.SetOnline("a1")
		m.Clear("a1")

		assert.False(t, m.Has("a1"))
		assert.False(t, m.IsOnline("a1"))
	})

	t.Run("Get returned presence is independent of internal state", func(t *testing.T) {
		m := NewMap()
		m.Put("a1", Presence{"cursor": "3"}, 1)

		p, _ := m.Get("a1")
		p["cursor"] = "mutated"

		p2, _ := m.Get("a1")
		assert.Equal(t, "3", p2["cursor"])
	})
}

func TestMapOnlineMembership(t *testing.T) {
	t.Run("All returns only online actors with presence", func(t *testing.T) {
		m := NewMap()
		m.Put("a1", Presence{"name": "alice"}, 1)
		m.Put("a2", Presence{"name": "bob"}, 1)
		m.SetOnline("a1")

		all := m.All()
		assert.Len(t, all, 1)
		assert.Contains(t, all, timestamp.ActorID("a1"))
	})

	t.Run("AllIncludingOffline returns every recorded actor", func(t *testing.T) {
		m := NewMap()
		m.Put("a1", Presence{"name": "alice"}, 1)
		m.Put("a2", Presence{"name": "bob"}, 1)

		all := m.AllIncludingOffline()
		assert.Len(t, all, 2)
	})

	t.Run("two independent watch observations both keep the actor online", func(t *testing.T) {
		m := NewMap()
		m.SetOnline("a1")
		m.SetOnline("a1")
		assert.True(t, m.IsOnline("a1"))

		m.SetOffline("a1")
		assert.False(t, m.IsOnline("a1"), "SetOffline clears every observed tag at once")
	})

	t.Run("DeepCopy is independent of the source map", func(t *testing.T) {
		m := NewMap()
		m.Put("a1", Presence{"cursor": "3"}, 1)
		m.SetOnline("a1")

		clone := m.DeepCopy()
		clone.Put("a1", Presence{"cursor": "99"}, 2)
		clone.SetOffline("a1")

		p, _ := m.Get("a1")
		assert.Equal(t, "3", p["cursor"])
		assert.True(t, m.IsOnline("a1"))
	})
}

func TestMapLoadFromSnapshot(t *testing.T) {
	t.Run("replaces presence wholesale without touching online membership", func(t *testing.T) {
		m := NewMap()
		m.SetOnline("a1")
		m.LoadFromSnapshot(map[timestamp.ActorID]map[string]string{
			"a1": {"cursor": "7"},
		})

		p, ok := m.Get("a1")
		assert.True(t, ok)
		assert.Equal(t, "7", p["cursor"])
		assert.True(t, m.IsOnline("a1"))
	})

	t.Run("a subsequent Put at any positive lamport supersedes the snapshot value", func(t *testing.T) {
		m := NewMap()
		m.LoadFromSnapshot(map[timestamp.ActorID]map[string]string{
			"a1": {"cursor": "7"},
		})
		m.Put("a1", Presence{"cursor": "8"}, 1)

		p, _ := m.Get("a1")
		assert.Equal(t, "8", p["cursor"])
	})
}
