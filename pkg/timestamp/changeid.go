package timestamp

// ChangeID identifies one Change: (client-seq, lamport, actor,
// version-vector, optional server-seq). It is created at a document's
// initial state and advanced by Next (spec §3.1, §4.1).
type ChangeID struct {
	clientSeq     uint32
	lamport       int64
	actor         ActorID
	versionVector VersionVector
	serverSeq     *int64
	// hasClocks distinguishes a normal change (operations present, lamport
	// bumped) from a presence-only change (client-seq bumps, lamport does
	// not) — spec §4.1, §4.8, design notes.
	hasClocks bool
}

// NewChangeID creates the initial ChangeID for a freshly attached actor.
func NewChangeID(actor ActorID) ChangeID {
	return ChangeID{
		clientSeq:     0,
		lamport:       0,
		actor:         actor,
		versionVector: NewVersionVector(),
		hasClocks:     true,
	}
}

// ClientSeq returns the client-assigned sequence number.
func (id ChangeID) ClientSeq() uint32 { return id.clientSeq }

// Lamport returns the Lamport timestamp of the change.
func (id ChangeID) Lamport() int64 { return id.lamport }

// ActorID returns the actor that produced the change.
func (id ChangeID) ActorID() ActorID { return id.actor }

// VersionVector returns the version vector carried by the change.
func (id ChangeID) VersionVector() VersionVector { return id.versionVector }

// ServerSeq returns the server-assigned sequence number, if any.
func (id ChangeID) ServerSeq() *int64 { return id.serverSeq }

// SetServerSeq returns a copy of id with the server sequence attached, done
// once the server has accepted and ordered the change.
func (id ChangeID) SetServerSeq(seq int64) ChangeID {
	id.serverSeq = &seq
	return id
}

// SetActorID returns a copy of id with its actor replaced; used when
// resolving a wire ChangeID whose actor slot was left implicit ("me").
func (id ChangeID) SetActorID(actor ActorID) ChangeID {
	id.actor = actor
	return id
}

// NewTimeTicket mints a TimeTicket that shares this change's Lamport
// timestamp and actor, distinguished by delimiter. Used by ChangeContext,
// which hands out a fresh delimiter per operation within one change so
// every op in the change carries the same Lamport but a different ticket.
func (id ChangeID) NewTimeTicket(delimiter uint32) TimeTicket {
	return NewTimeTicket(id.lamport, delimiter, id.actor)
}

// Next advances id for the next local change. withClocks selects between
// the two advancement forms in spec §4.1: a normal change bumps client-seq
// and lamport and records vector[actor] = lamport; a presence-only change
// bumps only client-seq.
func (id ChangeID) Next(withClocks bool) ChangeID {
	next := ChangeID{
		clientSeq:     id.clientSeq + 1,
		lamport:       id.lamport,
		actor:         id.actor,
		versionVector: id.versionVector.DeepCopy(),
		hasClocks:     withClocks,
	}
	if withClocks {
		next.lamport = id.lamport + 1
		next.versionVector.Set(id.actor, next.lamport)
	}
	return next
}

// SyncClocks merges a remote ChangeID's clocks into id, per spec §4.1:
//  1. If other carries no clocks (a presence-only change), id is unchanged.
//  2. newLamport = max(id.lamport, other.lamport) + 1.
//  3. merged = pointwise max of id.versionVector and other.versionVector,
//     then merged[id.actor] = newLamport.
func (id ChangeID) SyncClocks(other ChangeID) ChangeID {
	if !other.hasClocks {
		return id
	}

	newLamport := id.lamport
	if other.lamport > newLamport {
		newLamport = other.lamport
	}
	newLamport++

	merged := id.versionVector.DeepCopy()
	merged.Merge(other.versionVector)
	merged.Set(id.actor, newLamport)

	return ChangeID{
		clientSeq:     id.clientSeq,
		lamport:       newLamport,
		actor:         id.actor,
		versionVector: merged,
		serverSeq:     id.serverSeq,
		hasClocks:     true,
	}
}

// SetClocks applies a snapshot's lamport and version vector to id, per spec
// §4.1: the vector is cleared of the initial-actor entry, merged as max with
// id's own vector, then merged[id.actor] is set to otherLamport+1 (or
// id.lamport+1 if that is larger).
func (id ChangeID) SetClocks(otherLamport int64, vector VersionVector) ChangeID {
	cleaned := vector.DeepCopy()
	cleaned.Unset(InitialActorID)

	merged := id.versionVector.DeepCopy()
	merged.Merge(cleaned)

	lamport := otherLamport + 1
	if id.lamport+1 > lamport {
		lamport = id.lamport + 1
	}
	merged.Set(id.actor, lamport)

	return ChangeID{
		clientSeq:     id.clientSeq,
		lamport:       lamport,
		actor:         id.actor,
		versionVector: merged,
		serverSeq:     id.serverSeq,
		hasClocks:     true,
	}
}

// HasClocks reports whether id carries operation clocks (false only for a
// presence-only change).
func (id ChangeID) HasClocks() bool { return id.hasClocks }
