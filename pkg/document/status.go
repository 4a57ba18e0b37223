package document

// Status is the Document's connection lifecycle state (spec §3.4).
type Status int

const (
	// StatusDetached: no server actor assigned yet; local-only editing.
	StatusDetached Status = iota
	// StatusAttached: an actor is bound; the document may send and receive
	// change packs.
	StatusAttached
	// StatusRemoved: the server has deleted the document; no further edits
	// are accepted.
	StatusRemoved
)

// String renders the status name used in log fields and status-changed
// event payloads.
func (s Status) String() string {
	switch s {
	case StatusDetached:
		return "detached"
	case StatusAttached:
		return "attached"
	case StatusRemoved:
		return "removed"
	default:
		return "unknown"
	}
}
