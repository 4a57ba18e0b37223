// Package document implements the CRDT replica's state machine (spec
// §3.4, §4.9): local updates through proxies, remote change-pack apply,
// event subscriptions, tombstone garbage collection, and presence.
package document

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/S-Corkum/crdt-engine/pkg/change"
	"github.com/S-Corkum/crdt-engine/pkg/config"
	"github.com/S-Corkum/crdt-engine/pkg/crdt"
	crdterrors "github.com/S-Corkum/crdt-engine/pkg/errors"
	"github.com/S-Corkum/crdt-engine/pkg/observability"
	"github.com/S-Corkum/crdt-engine/pkg/presence"
	"github.com/S-Corkum/crdt-engine/pkg/timestamp"
)

// snapshotCacheSize bounds how many recently encoded snapshots a Document
// keeps around, so a breaker-triggered resend of the same pending changes
// doesn't re-walk and re-marshal the whole value tree.
const snapshotCacheSize = 8

// Document is a single-threaded cooperative actor over one replica's CRDT
// state (spec §5): every exported method assumes the caller serializes its
// own concurrent access (the mutex here guards against accidental misuse,
// not against a deliberately concurrent design).
type Document struct {
	mu sync.Mutex

	key    string
	status Status

	root  *crdt.Root
	clone *crdt.Root // lazily (re)built snapshot read by GetRoot between updates

	changeID     timestamp.ChangeID
	checkpoint   timestamp.Checkpoint
	localChanges []*change.Change

	presences *presence.Map
	subs      *pathTrie

	logger observability.Logger
	cfg    *config.EngineConfig

	snapshotCache *lru.Cache[int64, []byte] // keyed by changeID.Lamport()
}

// New creates a Detached document identified by key, seeded with an empty
// root Object. actor is the InitialActorID until Attach assigns a real one.
func New(key string, cfg *config.EngineConfig, logger observability.Logger) *Document {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	root := crdt.NewRoot(crdt.NewObject(timestamp.InitialTimeTicket))
	snapshotCache, _ := lru.New[int64, []byte](snapshotCacheSize)
	return &Document{
		key:           key,
		status:        StatusDetached,
		root:          root,
		clone:         root.DeepCopy(),
		changeID:      timestamp.NewChangeID(timestamp.InitialActorID),
		checkpoint:    timestamp.InitialCheckpoint,
		presences:     presence.NewMap(),
		subs:          newPathTrie(),
		logger:        logger.WithPrefix("document").With(map[string]any{"documentKey": key}),
		cfg:           cfg,
		snapshotCache: snapshotCache,
	}
}

// Key returns the document's key.
func (d *Document) Key() string { return d.key }

// Status returns the document's current lifecycle state (spec §3.4).
func (d *Document) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

// Checkpoint returns the document's current (server_seq, client_seq)
// cursor.
func (d *Document) Checkpoint() timestamp.Checkpoint {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.checkpoint
}

// Attach binds actor to the document, transitioning Detached to Attached.
func (d *Document) Attach(actor timestamp.ActorID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.changeID = d.changeID.SetActorID(actor)
	if d.status == StatusDetached {
		d.status = StatusAttached
	}
}

// RootView is a read-only snapshot over the document's cloned root, used
// outside an Update call where mutation must not be possible (spec §4.9:
// "getRoot() returns a read-only proxy over the clone").
type RootView struct{ obj *crdt.Object }

// Get returns key's current value from the top-level object.
func (v *RootView) Get(key string) any {
	if e := v.obj.Get(key); e != nil {
		return e.ToJSON()
	}
	return nil
}

// ToJSON renders the entire document value tree as a plain Go value.
func (v *RootView) ToJSON() any { return v.obj.ToJSON() }

// GetRoot returns a read-only view over the document's last-synchronized
// clone.
func (d *Document) GetRoot() *RootView {
	d.mu.Lock()
	defer d.mu.Unlock()
	return &RootView{obj: d.clone.Object()}
}

// Updater is the closure a host passes to Update: it mutates root and
// presence via their proxies; operations the proxies issue are recorded
// and, on successful return, replayed against the canonical state.
type Updater func(root *ObjectProxy, p *PresenceProxy) error

// Update runs updater against a fresh clone of the canonical root. If
// updater returns an error, the clone is discarded and the error is
// surfaced; nothing about the document changes (spec §5: "Cancellation").
// Otherwise the recorded operations are replayed against the canonical
// root, the change is appended to the local log, the ChangeID advances,
// and local-change/presence-changed events fire synchronously before
// Update returns (spec §4.9, §6.3).
func (d *Document) Update(updater Updater, message string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.status == StatusRemoved {
		return crdterrors.New(crdterrors.KindDocumentRemoved, "Document.Update", "document has been removed")
	}

	working := d.root.DeepCopy()
	ctx := change.NewContext(working, d.changeID, message)
	objProxy := newObjectProxy(ctx, working.Object())
	presenceProxy := newPresenceProxy(ctx, d.changeID.ActorID())

	if err := updater(objProxy, presenceProxy); err != nil {
		return err
	}

	if !ctx.HasChange() {
		return nil
	}

	chg := ctx.ToChange()
	infos, err := chg.Execute(d.root)
	if err != nil {
		d.logger.Error("local update failed to apply against canonical root", map[string]any{"error": err.Error()})
		return err
	}

	d.changeID = chg.ID
	d.localChanges = append(d.localChanges, chg)
	d.clone = working

	if mutation := chg.PresenceMutation(chg.ID.ActorID()); mutation != nil {
		d.applyPresenceMutation(mutation, chg.ID.Lamport())
		d.subs.Dispatch("$", Event{Type: EventPresenceChanged, Actor: mutation.Actor, Presence: presence.Presence(mutation.Data)})
	}

	d.dispatchChangeEvents(EventLocalChange, chg, infos)
	return nil
}

// ApplyChangePack executes a server-delivered pack against the document,
// per spec §4.9. A snapshot pack replaces root and presence state wholesale
// and invalidates the clone; otherwise every change is executed in order
// against the canonical root (the clone is re-derived from it once after
// the whole pack), with clocks advancing and
// remote-change/presence events firing synchronously with each apply (spec
// §5: "Emissions of remote-change events occur synchronously within
// applyChangePack"). A per-operation Reference error is logged and
// skipped without halting the pack (spec §7); clocks still advance with the
// change's own ID to preserve causal progress.
func (d *Document) ApplyChangePack(pack *change.Pack) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if pack.HasSnapshot() {
		root, presences, lamport, vv, err := change.DecodeSnapshot(pack.Snapshot)
		if err != nil {
			return err
		}
		d.root = root
		d.clone = root.DeepCopy()
		d.changeID = d.changeID.SetClocks(lamport, vv)
		d.presences.LoadFromSnapshot(presences)
		d.subs.Dispatch("$", Event{Type: EventSnapshot})
	} else {
		for _, chg := range pack.Changes {
			if err := chg.ValidateForRemote(); err != nil {
				d.logger.Error("rejecting change with no actor", map[string]any{"error": err.Error()})
				continue
			}

			infos, err := chg.Execute(d.root)
			if err != nil {
				d.logger.Warn("remote operation failed, skipping", map[string]any{
					"actor": string(chg.ID.ActorID()),
					"error": err.Error(),
				})
			}
			// Clocks advance with the change's own ID regardless of a
			// per-operation failure, preserving causal progress (spec §7).
			d.changeID = d.changeID.SyncClocks(chg.ID)

			if mutation := chg.PresenceMutation(chg.ID.ActorID()); mutation != nil {
				d.applyPresenceMutation(mutation, chg.ID.Lamport())
				d.subs.Dispatch("$", Event{Type: EventPresenceChanged, Actor: mutation.Actor, Presence: presence.Presence(mutation.Data)})
			}

			if err == nil {
				d.dispatchChangeEvents(EventRemoteChange, chg, infos)
			}
		}
		// The clone mirrors canonical state for GetRoot's read-only view;
		// re-derive it once after the whole pack applies rather than
		// replaying every change a second time against a second root,
		// which would double-execute non-idempotent operations (Increase)
		// against elements two Execute calls would otherwise alias by
		// pointer.
		d.clone = d.root.DeepCopy()
	}

	d.trimLocalChanges(pack.Checkpoint.ClientSeq)
	d.checkpoint = d.checkpoint.Forward(pack.Checkpoint)

	if pack.MinSyncedTicket != nil {
		d.collectGarbage(func(t timestamp.TimeTicket) bool { return !t.After(*pack.MinSyncedTicket) })
	} else if pack.VersionVector != nil {
		d.collectGarbage(pack.VersionVector.AfterOrEqual)
	}

	if pack.IsRemoved {
		d.status = StatusRemoved
		d.subs.Dispatch("$", Event{Type: EventStatusChanged, Status: StatusRemoved})
	}

	return nil
}

func (d *Document) applyPresenceMutation(mutation *change.PresenceUpdate, lamport int64) {
	switch mutation.Type {
	case change.PresenceChangePut:
		d.presences.Put(mutation.Actor, presence.Presence(mutation.Data), lamport)
	case change.PresenceChangeClear:
		d.presences.Clear(mutation.Actor)
	}
}

func (d *Document) dispatchChangeEvents(eventType EventType, chg *change.Change, infos []change.OperationInfo) {
	for _, info := range infos {
		d.subs.Dispatch(info.Path, Event{
			Type: eventType,
			Path: info.Path,
			Change: &change.ChangeInfo{
				Message:    chg.Message,
				Operations: []change.OperationInfo{info},
				ActorID:    chg.ID.ActorID(),
			},
			Actor: chg.ID.ActorID(),
		})
	}
}

// trimLocalChanges drops every pending local change the server has already
// acknowledged (client_seq <= the pack's checkpoint).
func (d *Document) trimLocalChanges(ackedClientSeq uint32) {
	kept := d.localChanges[:0]
	for _, c := range d.localChanges {
		if c.ID.ClientSeq() > ackedClientSeq {
			kept = append(kept, c)
		}
	}
	d.localChanges = kept
}

// CreateChangePack produces a pack carrying every pending local change and
// the checkpoint advanced by their count (spec §4.9). forceRemoved marks
// the pack as a tombstone request (used when a host initiates a local
// delete) even if the document's own status hasn't transitioned yet.
func (d *Document) CreateChangePack(forceRemoved bool) *change.Pack {
	d.mu.Lock()
	defer d.mu.Unlock()

	pending := make([]*change.Change, len(d.localChanges))
	copy(pending, d.localChanges)

	pack := &change.Pack{
		DocumentKey: d.key,
		Checkpoint:  d.checkpoint.NextClientSeq(uint32(len(pending))),
		IsRemoved:   forceRemoved || d.status == StatusRemoved,
		Changes:     pending,
	}

	if len(pending) >= d.cfg.SnapshotThreshold {
		lamport := d.changeID.Lamport()
		if snapshot, ok := d.snapshotCache.Get(lamport); ok {
			pack.Snapshot = snapshot
		} else {
			presences := make(map[timestamp.ActorID]map[string]string)
			for actor, p := range d.presences.AllIncludingOffline() {
				presences[actor] = p
			}
			if snapshot, err := change.EncodeSnapshot(d.root, presences, lamport, d.changeID.VersionVector()); err == nil {
				d.snapshotCache.Add(lamport, snapshot)
				pack.Snapshot = snapshot
			} else {
				d.logger.Warn("snapshot encode failed, falling back to changes-only pack", map[string]any{"error": err.Error()})
			}
		}
	}

	return pack
}

// GarbageCollect purges every tombstoned element causally covered by
// minSyncedTicket from both the canonical root and the clone, returning the
// number purged from the canonical root (spec §4.9's legacy form).
func (d *Document) GarbageCollect(minSyncedTicket timestamp.TimeTicket) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.collectGarbage(func(t timestamp.TimeTicket) bool { return !t.After(minSyncedTicket) })
}

// GarbageCollectByVersionVector purges every tombstoned element whose
// removal ticket vv covers (vv's entry for the removing actor is at least
// the ticket's Lamport), the preferred form over a single minSyncedTicket
// (spec §4.9, §9 design notes).
func (d *Document) GarbageCollectByVersionVector(vv timestamp.VersionVector) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.collectGarbage(vv.AfterOrEqual)
}

func (d *Document) collectGarbage(isCovered func(timestamp.TimeTicket) bool) int {
	purged := d.root.GarbageCollect(isCovered)
	if d.clone != nil {
		d.clone.GarbageCollect(isCovered)
	}
	return purged
}

// Subscribe registers callback for events at path (a dotted key path rooted
// at "$"; empty means "$"). It returns a handle for Unsubscribe.
func (d *Document) Subscribe(path string, callback Callback) uint64 {
	return d.subs.Subscribe(path, callback)
}

// Unsubscribe removes the subscription identified by handle at path.
func (d *Document) Unsubscribe(path string, handle uint64) {
	d.subs.Unsubscribe(path, handle)
}

// GetPresence returns actor's current presence, if any.
func (d *Document) GetPresence(actor timestamp.ActorID) (presence.Presence, bool) {
	return d.presences.Get(actor)
}

// GetPresences returns the presence of every currently online actor.
func (d *Document) GetPresences() map[timestamp.ActorID]presence.Presence {
	return d.presences.All()
}

// HasPresence reports whether actor currently has a presence entry.
func (d *Document) HasPresence(actor timestamp.ActorID) bool {
	return d.presences.Has(actor)
}

// WatchEventType names the transport-delivered watch stream event kinds
// this Document maps to onlineClients membership (spec §6.2).
type WatchEventType string

const (
	WatchDocumentChanged   WatchEventType = "DOCUMENT_CHANGED"
	WatchDocumentWatched   WatchEventType = "DOCUMENT_WATCHED"
	WatchDocumentUnwatched WatchEventType = "DOCUMENT_UNWATCHED"
	WatchDocumentBroadcast WatchEventType = "DOCUMENT_BROADCAST"
)

// HandleWatchEvent folds a transport-delivered watch stream event into
// onlineClients membership and fires the corresponding host event (spec
// §6.2, §6.3). DOCUMENT_CHANGED carries no membership change of its own;
// it is the transport's cue to pull the next change pack, which remains the
// transport's responsibility.
func (d *Document) HandleWatchEvent(eventType WatchEventType, publisher timestamp.ActorID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch eventType {
	case WatchDocumentWatched:
		d.presences.SetOnline(publisher)
		d.subs.Dispatch("$", Event{Type: EventWatched, Actor: publisher})
	case WatchDocumentUnwatched:
		d.presences.SetOffline(publisher)
		d.subs.Dispatch("$", Event{Type: EventUnwatched, Actor: publisher})
	case WatchDocumentBroadcast, WatchDocumentChanged:
		// No membership change; the transport is responsible for pulling
		// the next change pack on DOCUMENT_CHANGED.
	}
}
