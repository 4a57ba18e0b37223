package timestamp

import (
	"math"
	"strconv"
)

// TimeTicket is the logical identity of every CRDT node and operation:
// (lamport, delimiter, actor). It forms a total order usable as a map key
// (spec §4.1).
//
// Ordering: lamport ascending, then actor lexicographic, then delimiter
// ascending.
type TimeTicket struct {
	lamport   int64
	delimiter uint32
	actor     ActorID
}

// InitialTimeTicket is the all-zero sentinel.
var InitialTimeTicket = TimeTicket{lamport: 0, delimiter: 0, actor: InitialActorID}

// MaxTimeTicket is the all-maxima sentinel, greater than any real ticket.
var MaxTimeTicket = TimeTicket{lamport: math.MaxInt64, delimiter: math.MaxUint32, actor: MaxActorID}

// NewTimeTicket constructs a ticket from its three components.
func NewTimeTicket(lamport int64, delimiter uint32, actor ActorID) TimeTicket {
	return TimeTicket{lamport: lamport, delimiter: delimiter, actor: actor}
}

// Lamport returns the ticket's Lamport component.
func (t TimeTicket) Lamport() int64 { return t.lamport }

// Delimiter returns the ticket's delimiter component.
func (t TimeTicket) Delimiter() uint32 { return t.delimiter }

// ActorID returns the ticket's actor component.
func (t TimeTicket) ActorID() ActorID { return t.actor }

// SetActorID returns a copy of the ticket with its actor replaced; used when
// a ticket is read off the wire with an unresolved actor slot (e.g. "me").
func (t TimeTicket) SetActorID(actor ActorID) TimeTicket {
	t.actor = actor
	return t
}

// Compare returns -1, 0, or 1 as t is less than, equal to, or greater than
// other, using the ordering in spec §3.1.
func (t TimeTicket) Compare(other TimeTicket) int {
	if t.lamport != other.lamport {
		if t.lamport < other.lamport {
			return -1
		}
		return 1
	}
	if c := t.actor.Compare(other.actor); c != 0 {
		return c
	}
	if t.delimiter != other.delimiter {
		if t.delimiter < other.delimiter {
			return -1
		}
		return 1
	}
	return 0
}

// After reports whether t is strictly greater than other.
func (t TimeTicket) After(other TimeTicket) bool { return t.Compare(other) > 0 }

// Equal reports tuple equality.
func (t TimeTicket) Equal(other TimeTicket) bool { return t.Compare(other) == 0 }

// String renders the ticket as "lamport:delimiter:actor", used in logs and
// as a stable map key when a struct key isn't convenient (wire encoding,
// debug output).
func (t TimeTicket) String() string {
	return strconv.FormatInt(t.lamport, 10) + ":" + strconv.FormatUint(uint64(t.delimiter), 10) + ":" + string(t.actor)
}
