// Package presence tracks per-actor ephemeral state (cursors, selections,
// names) alongside a Document's CRDT changes. Presence data never
// participates in the CRDT merge — it is last-writer-wins per actor and
// does not produce tombstones (spec §3.1 glossary, §4.9).
package presence

import (
	"sync"

	"github.com/S-Corkum/crdt-engine/pkg/timestamp"
)

// Presence is the keyed string map one actor publishes about itself
// (cursor position, selection range, display name, and so on).
type Presence map[string]string

// Clone returns an independent copy of p.
func (p Presence) Clone() Presence {
	clone := make(Presence, len(p))
	for k, v := range p {
		clone[k] = v
	}
	return clone
}

// Map is the Document-scoped registry of every actor's presence, plus the
// set of actors currently online (membership driven by the watch stream,
// spec §4.9, §6.2).
type Map struct {
	mu      sync.RWMutex
	byActor map[timestamp.ActorID]lwwEntry
	online  *onlineSet
}

// NewMap creates an empty presence registry.
func NewMap() *Map {
	return &Map{
		byActor: make(map[timestamp.ActorID]lwwEntry),
		online:  newOnlineSet(),
	}
}

// Put replaces actor's presence wholesale (spec §4.8's PresenceChange Put),
// guarded by lamport so a delayed or reordered delivery of an older change
// can't overwrite a newer presence value.
func (m *Map) Put(actor timestamp.ActorID, data Presence, lamport int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byActor[actor] = m.byActor[actor].set(data, lamport)
}

// Clear removes actor's presence entirely (spec §4.8's PresenceChange
// Clear), used when a client detaches.
func (m *Map) Clear(actor timestamp.ActorID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byActor, actor)
	m.online.remove(actor)
}

// Get returns actor's presence and whether it is currently set.
func (m *Map) Get(actor timestamp.ActorID) (Presence, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.byActor[actor]
	if !ok {
		return nil, false
	}
	return e.data.Clone(), true
}

// Has reports whether actor currently has a presence entry.
func (m *Map) Has(actor timestamp.ActorID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byActor[actor]
	return ok
}

// All returns the presence of every online actor (spec §4.9:
// "getPresences() (online only)").
func (m *Map) All() map[timestamp.ActorID]Presence {
	m.mu.RLock()
	defer m.mu.RUnlock()

	online := m.online.elements()
	out := make(map[timestamp.ActorID]Presence, len(online))
	for _, actor := range online {
		if e, ok := m.byActor[actor]; ok {
			out[actor] = e.data.Clone()
		}
	}
	return out
}

// AllIncludingOffline returns the presence of every actor the Map has ever
// recorded, regardless of online status — used by the snapshot encoder,
// which needs a durable record rather than a live-membership view.
func (m *Map) AllIncludingOffline() map[timestamp.ActorID]Presence {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[timestamp.ActorID]Presence, len(m.byActor))
	for actor, e := range m.byActor {
		out[actor] = e.data.Clone()
	}
	return out
}

// SetOnline marks actor online, mutated by the watch stream on a
// DOCUMENT_WATCHED event (spec §6.2). Safe to call more than once for the
// same actor (e.g. two transport connections watching concurrently): each
// call adds its own OR-Set tag. SetOffline removes every tag of the actor,
// so one SetOffline marks it offline however many SetOnline calls preceded.
func (m *Map) SetOnline(actor timestamp.ActorID) {
	m.online.add(actor)
}

// SetOffline marks actor offline, mutated on a DOCUMENT_UNWATCHED event.
func (m *Map) SetOffline(actor timestamp.ActorID) {
	m.online.remove(actor)
}

// IsOnline reports whether actor is currently a member of onlineClients.
func (m *Map) IsOnline(actor timestamp.ActorID) bool {
	return m.online.contains(actor)
}

// DeepCopy returns an independent Map with the same presence and online
// membership, used when a ChangeContext clones document state.
func (m *Map) DeepCopy() *Map {
	m.mu.RLock()
	defer m.mu.RUnlock()

	clone := NewMap()
	for actor, e := range m.byActor {
		clone.byActor[actor] = lwwEntry{data: e.data.Clone(), lamport: e.lamport}
	}
	clone.online = m.online.clone()
	return clone
}

// LoadFromSnapshot replaces the map's presence wholesale from a decoded
// snapshot payload (online membership is left untouched — it is owned by
// the live watch stream, not the document's persisted state). Entries start
// at lamport 0, the lowest priority, so the very next Put for an actor
// (carrying that actor's own advancing lamport) always supersedes it.
func (m *Map) LoadFromSnapshot(byActor map[timestamp.ActorID]map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.byActor = make(map[timestamp.ActorID]lwwEntry, len(byActor))
	for actor, data := range byActor {
		m.byActor[actor] = lwwEntry{data: Presence(data).Clone()}
	}
}
