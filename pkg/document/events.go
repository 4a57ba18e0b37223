package document

import (
	"github.com/S-Corkum/crdt-engine/pkg/change"
	"github.com/S-Corkum/crdt-engine/pkg/presence"
	"github.com/S-Corkum/crdt-engine/pkg/timestamp"
)

// EventType names the host-facing subscription channels (spec §6.3).
type EventType string

const (
	EventSnapshot         EventType = "snapshot"
	EventLocalChange      EventType = "local-change"
	EventRemoteChange     EventType = "remote-change"
	EventInitialized      EventType = "initialized"
	EventWatched          EventType = "watched"
	EventUnwatched        EventType = "unwatched"
	EventPresenceChanged  EventType = "presence-changed"
	EventConnectionChange EventType = "connection-changed"
	EventStatusChanged    EventType = "status-changed"
)

// Event is the payload delivered to a subscriber. Only the fields relevant
// to Type are populated; the rest are zero.
type Event struct {
	Type    EventType
	Path    string
	Change  *change.ChangeInfo
	Actor   timestamp.ActorID
	Presence presence.Presence
	Status  Status
}

// Callback is a subscriber's handler. It must not block or re-enter the
// Document (spec §5: the actor is single-threaded and cooperative).
type Callback func(Event)

// subscription pairs a callback with the path it was registered under.
type subscription struct {
	id       uint64
	path     string
	callback Callback
}
