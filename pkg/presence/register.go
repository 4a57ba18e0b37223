package presence

// lwwEntry is a Last-Write-Wins register holding one actor's Presence,
// ordered by the lamport timestamp of the change that produced it rather
// than wall-clock time: presence updates arrive out of causal order over
// the watch stream (it is an explicit side channel, spec §4.9), so a Put
// carrying a lower lamport than the entry's current one is a stale replay
// and is dropped rather than clobbering a newer value.
type lwwEntry struct {
	data    Presence
	lamport int64
}

// set applies data at lamport if lamport is at least as new as the current
// entry, returning the resulting entry. A zero-value lwwEntry (no prior
// write observed) always accepts.
func (e lwwEntry) set(data Presence, lamport int64) lwwEntry {
	if lamport < e.lamport {
		return e
	}
	return lwwEntry{data: data.Clone(), lamport: lamport}
}
