package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/S-Corkum/crdt-engine/pkg/change"
	"github.com/S-Corkum/crdt-engine/pkg/config"
	"github.com/S-Corkum/crdt-engine/pkg/crdt"
	"github.com/S-Corkum/crdt-engine/pkg/timestamp"
)

func newTestDoc(t *testing.T, key string, actor timestamp.ActorID) *Document {
	t.Helper()
	d := New(key, config.DefaultConfig(), nil)
	d.Attach(actor)
	return d
}

// srcSnapshotBytes encodes d's current canonical state the same way
// CreateChangePack does once the snapshot threshold is crossed, without
// needing to pad a test with hundreds of throwaway changes.
func srcSnapshotBytes(t *testing.T, d *Document) ([]byte, error) {
	t.Helper()
	presences := make(map[timestamp.ActorID]map[string]string)
	for actor, p := range d.presences.AllIncludingOffline() {
		presences[actor] = p
	}
	return change.EncodeSnapshot(d.root, presences, d.changeID.Lamport(), d.changeID.VersionVector())
}

// snapshotPack wraps raw snapshot bytes into the minimal Pack shape
// ApplyChangePack needs to take the snapshot branch.
type snapshotPack struct {
	data []byte
}

func (s snapshotPack) toPack(key string) change.Pack {
	return change.Pack{DocumentKey: key, Snapshot: s.data}
}

// lastExecutedTicket returns the executedAt of the last operation in d's
// most recent local change, used to build a minSyncedTicket that exactly
// covers it.
func lastExecutedTicket(t *testing.T, d *Document) timestamp.TimeTicket {
	t.Helper()
	require.NotEmpty(t, d.localChanges)
	last := d.localChanges[len(d.localChanges)-1]
	require.NotEmpty(t, last.Operations)
	return last.Operations[len(last.Operations)-1].ExecutedAt()
}

func TestDocumentUpdate(t *testing.T) {
	t.Run("happy path applies against canonical root and fires local-change", func(t *testing.T) {
		d := newTestDoc(t, "doc1", "actorA")

		var fired []Event
		d.Subscribe("$", func(e Event) { fired = append(fired, e) })

		err := d.Update(func(root *ObjectProxy, p *PresenceProxy) error {
			return root.SetValue("title", "hello")
		}, "set title")
		require.NoError(t, err)

		assert.Equal(t, "hello", d.GetRoot().Get("title"))
		require.Len(t, fired, 1)
		assert.Equal(t, EventLocalChange, fired[0].Type)
	})

	t.Run("rejects updates once the document is removed", func(t *testing.T) {
		d := newTestDoc(t, "doc1", "actorA")
		pack := d.CreateChangePack(true)
		require.NoError(t, d.ApplyChangePack(pack))

		err := d.Update(func(root *ObjectProxy, p *PresenceProxy) error {
			return root.SetValue("title", "hello")
		}, "set title")
		require.Error(t, err)
	})

	t.Run("updater error discards the working clone without changing state", func(t *testing.T) {
		d := newTestDoc(t, "doc1", "actorA")
		before := d.GetRoot().ToJSON()

		err := d.Update(func(root *ObjectProxy, p *PresenceProxy) error {
			_ = root.SetValue("title", "hello")
			return assert.AnError
		}, "doomed update")
		require.Error(t, err)

		assert.Equal(t, before, d.GetRoot().ToJSON())
		assert.Empty(t, d.CreateChangePack(false).Changes)
	})

	t.Run("appending twice preserves insertion order", func(t *testing.T) {
		d := newTestDoc(t, "doc1", "actorA")

		err := d.Update(func(root *ObjectProxy, p *PresenceProxy) error {
			arr := root.SetNewArray("items")
			if err := arr.AppendValue("first"); err != nil {
				return err
			}
			return arr.AppendValue("second")
		}, "append twice")
		require.NoError(t, err)

		items := d.GetRoot().Get("items").([]any)
		require.Len(t, items, 2)
		assert.Equal(t, "first", items[0])
		assert.Equal(t, "second", items[1])
	})

	t.Run("presence put fires presence-changed", func(t *testing.T) {
		d := newTestDoc(t, "doc1", "actorA")

		var fired []Event
		d.Subscribe("$", func(e Event) {
			if e.Type == EventPresenceChanged {
				fired = append(fired, e)
			}
		})

		err := d.Update(func(root *ObjectProxy, p *PresenceProxy) error {
			p.Put(map[string]string{"cursor": "3"})
			return nil
		}, "presence")
		require.NoError(t, err)

		require.Len(t, fired, 1)
		assert.Equal(t, "3", fired[0].Presence["cursor"])

		p, ok := d.GetPresence("actorA")
		require.True(t, ok)
		assert.Equal(t, "3", p["cursor"])
	})
}

func TestDocumentApplyChangePack(t *testing.T) {
	t.Run("remote changes converge and do not double-apply a non-idempotent Increase", func(t *testing.T) {
		peer := newTestDoc(t, "doc1", "actorB")
		require.NoError(t, peer.Update(func(root *ObjectProxy, p *PresenceProxy) error {
			_, err := root.SetNewCounter("count", int64(0))
			return err
		}, "create counter"))
		require.NoError(t, peer.Update(func(root *ObjectProxy, p *PresenceProxy) error {
			counter, err := root.Counter("count")
			if err != nil {
				return err
			}
			return counter.Increase(int64(5))
		}, "increase counter"))

		pack := peer.CreateChangePack(false)
		require.Len(t, pack.Changes, 2)

		local := newTestDoc(t, "doc1", "actorA")
		require.NoError(t, local.ApplyChangePack(pack))

		assert.Equal(t, int64(5), local.GetRoot().Get("count"))
	})

	t.Run("checkpoint advances and acknowledged local changes are trimmed", func(t *testing.T) {
		d := newTestDoc(t, "doc1", "actorA")
		require.NoError(t, d.Update(func(root *ObjectProxy, p *PresenceProxy) error {
			return root.SetValue("a", int64(1))
		}, "a"))

		pack := d.CreateChangePack(false)
		assert.Len(t, pack.Changes, 1)

		ackPack := pack
		ackPack.Changes = nil
		require.NoError(t, d.ApplyChangePack(ackPack))

		assert.Equal(t, pack.Checkpoint, d.Checkpoint())
		assert.Empty(t, d.CreateChangePack(false).Changes)
	})

	t.Run("snapshot pack replaces root and presence wholesale", func(t *testing.T) {
		src := newTestDoc(t, "doc1", "actorA")
		require.NoError(t, src.Update(func(root *ObjectProxy, p *PresenceProxy) error {
			return root.SetValue("title", "snapshot me")
		}, "seed"))

		snapshot, err := srcSnapshotBytes(t, src)
		require.NoError(t, err)

		dst := newTestDoc(t, "doc1", "actorB")
		pack := snapshotPack{snapshot}.toPack("doc1")
		require.NoError(t, dst.ApplyChangePack(&pack))

		assert.Equal(t, "snapshot me", dst.GetRoot().Get("title"))
	})
}

func TestDocumentGarbageCollect(t *testing.T) {
	t.Run("minSyncedTicket purges covered tombstones", func(t *testing.T) {
		d := newTestDoc(t, "doc1", "actorA")
		require.NoError(t, d.Update(func(root *ObjectProxy, p *PresenceProxy) error {
			return root.SetValue("a", int64(1))
		}, "set a"))
		require.NoError(t, d.Update(func(root *ObjectProxy, p *PresenceProxy) error {
			return root.Delete("a")
		}, "delete a"))

		removedAt := lastExecutedTicket(t, d)
		purged := d.GarbageCollect(removedAt)
		assert.Equal(t, 1, purged)
	})

	t.Run("VersionVector form purges whatever every actor has observed", func(t *testing.T) {
		d := newTestDoc(t, "doc1", "actorA")
		require.NoError(t, d.Update(func(root *ObjectProxy, p *PresenceProxy) error {
			return root.SetValue("a", int64(1))
		}, "set a"))
		require.NoError(t, d.Update(func(root *ObjectProxy, p *PresenceProxy) error {
			return root.Delete("a")
		}, "delete a"))

		removedAt := lastExecutedTicket(t, d)
		vv := timestamp.NewVersionVector()
		vv.Set(removedAt.ActorID(), removedAt.Lamport())
		purged := d.GarbageCollectByVersionVector(vv)
		assert.Equal(t, 1, purged)
	})

	t.Run("a fully-replaced text edit's tombstoned rope node is actually purged", func(t *testing.T) {
		// Regression test for the gcPairs registry (spec §3.3, §9): a split
		// node tombstoned by a later Edit must disappear from Rope().Nodes()
		// once GarbageCollect covers it, not just sit marked removed forever.
		d := newTestDoc(t, "doc1", "actorA")
		require.NoError(t, d.Update(func(root *ObjectProxy, p *PresenceProxy) error {
			text := root.SetNewText("t", false)
			return text.Edit(0, 0, "hello")
		}, "seed text"))
		helloNodeCreatedAt := lastExecutedTicket(t, d)

		require.NoError(t, d.Update(func(root *ObjectProxy, p *PresenceProxy) error {
			text, err := root.Text("t")
			if err != nil {
				return err
			}
			return text.Edit(0, 5, "bye")
		}, "replace text"))
		removedAt := lastExecutedTicket(t, d)

		purged := d.GarbageCollect(removedAt)
		assert.Greater(t, purged, 0, "the tombstoned \"hello\" node must be counted as purged")

		text, ok := d.root.Object().Get("t").(*crdt.Text)
		require.True(t, ok)
		assert.Equal(t, "bye", text.Rope().String())
		for _, n := range text.Rope().Nodes() {
			assert.False(t, n.CreatedAt().Equal(helloNodeCreatedAt), "the purged node must no longer appear in the rope")
		}
	})
}

func TestDocumentSubscribePathScoping(t *testing.T) {
	t.Run("a subscriber on a parent path sees a child path's events", func(t *testing.T) {
		d := newTestDoc(t, "doc1", "actorA")

		var rootFired, scopedFired int
		d.Subscribe("$", func(e Event) { rootFired++ })
		d.Subscribe("$.items", func(e Event) { scopedFired++ })

		require.NoError(t, d.Update(func(root *ObjectProxy, p *PresenceProxy) error {
			arr := root.SetNewArray("items")
			return arr.AppendValue("x")
		}, "append"))

		assert.Greater(t, rootFired, 0)
	})

	t.Run("unsubscribe stops further delivery", func(t *testing.T) {
		d := newTestDoc(t, "doc1", "actorA")

		count := 0
		handle := d.Subscribe("$", func(e Event) { count++ })
		d.Unsubscribe("$", handle)

		require.NoError(t, d.Update(func(root *ObjectProxy, p *PresenceProxy) error {
			return root.SetValue("a", int64(1))
		}, "a"))

		assert.Equal(t, 0, count)
	})
}

func TestDocumentWatchEvents(t *testing.T) {
	t.Run("watched then unwatched toggles online membership", func(t *testing.T) {
		d := newTestDoc(t, "doc1", "actorA")

		d.HandleWatchEvent(WatchDocumentWatched, "actorB")
		assert.True(t, d.presences.IsOnline("actorB"))
		assert.False(t, d.HasPresence("actorB"), "HasPresence tracks explicit Put, not watch membership")

		d.HandleWatchEvent(WatchDocumentUnwatched, "actorB")
		assert.False(t, d.presences.IsOnline("actorB"))
		_, online := d.GetPresences()["actorB"]
		assert.False(t, online)
	})
}
