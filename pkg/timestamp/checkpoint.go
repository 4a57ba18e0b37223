package timestamp

// Checkpoint is a (server_seq, client_seq) cursor into the mutual operation
// log between a client replica and the server (spec §3.1, §4.8). It only
// ever moves forward.
type Checkpoint struct {
	ServerSeq int64
	ClientSeq uint32
}

// InitialCheckpoint is the zero checkpoint a Detached document starts with.
var InitialCheckpoint = Checkpoint{ServerSeq: 0, ClientSeq: 0}

// Forward returns the component-wise maximum of cp and other, so a stale or
// reordered pack can never move the checkpoint backward.
func (cp Checkpoint) Forward(other Checkpoint) Checkpoint {
	next := cp
	if other.ServerSeq > next.ServerSeq {
		next.ServerSeq = other.ServerSeq
	}
	if other.ClientSeq > next.ClientSeq {
		next.ClientSeq = other.ClientSeq
	}
	return next
}

// NextClientSeq returns cp advanced by n pending local changes.
func (cp Checkpoint) NextClientSeq(n uint32) Checkpoint {
	cp.ClientSeq += n
	return cp
}

// Equal reports whether cp and other carry the same cursor.
func (cp Checkpoint) Equal(other Checkpoint) bool {
	return cp.ServerSeq == other.ServerSeq && cp.ClientSeq == other.ClientSeq
}
