package change

import "github.com/S-Corkum/crdt-engine/pkg/timestamp"

// Pack is the sole wire shape exchanged between client and server to
// synchronize a document (spec §4.8, §6.1).
type Pack struct {
	DocumentKey   string
	Checkpoint    timestamp.Checkpoint
	IsRemoved     bool
	Changes       []*Change
	Snapshot      []byte // optional; presence supersedes Changes
	VersionVector timestamp.VersionVector
	MinSyncedTicket *timestamp.TimeTicket
}

// HasSnapshot reports whether the pack carries a full-state snapshot
// instead of an incremental change list.
func (p *Pack) HasSnapshot() bool { return len(p.Snapshot) > 0 }
