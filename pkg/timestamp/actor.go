// Package timestamp implements the logical identity primitives the engine
// orders every CRDT operation by: ActorID, TimeTicket, ChangeID, and
// VersionVector. It has no dependency on the CRDT element types themselves,
// so pkg/crdt and pkg/change can both import it without a cycle.
package timestamp

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

// ActorID is an opaque, stable identifier assigned by the server when a
// client activates, carried everywhere as a lowercase hex string (spec
// §3.1: "hex-encoded 12+ byte blob").
type ActorID string

// InitialActorID is the sentinel actor for unattached documents (spec §3.1).
const InitialActorID ActorID = "000000000000000000000000"

// MaxActorID is the sentinel actor used by the MaxTimeTicket.
const MaxActorID ActorID = "ffffffffffffffffffffffff"

// DefaultActorIDByteLength is the byte length used when minting a new actor
// locally, before the server assigns one.
const DefaultActorIDByteLength = 12

// NewActorID mints a new random ActorID of the given byte length. A length
// of 0 uses DefaultActorIDByteLength.
func NewActorID(byteLength int) (ActorID, error) {
	if byteLength <= 0 {
		byteLength = DefaultActorIDByteLength
	}
	buf := make([]byte, byteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate actor id: %w", err)
	}
	return ActorID(hex.EncodeToString(buf)), nil
}

// Compare orders two ActorIDs lexicographically, used as the tiebreak layer
// in TimeTicket ordering.
func (a ActorID) Compare(other ActorID) int {
	return strings.Compare(string(a), string(other))
}

// String implements fmt.Stringer.
func (a ActorID) String() string { return string(a) }
