package change

import (
	"github.com/S-Corkum/crdt-engine/pkg/crdt"
	"github.com/S-Corkum/crdt-engine/pkg/timestamp"
)

// PresenceChangeType distinguishes a presence Put from a Clear.
type PresenceChangeType int

const (
	PresenceChangeNone PresenceChangeType = iota
	PresenceChangePut
	PresenceChangeClear
)

// PresenceChange is the pending presence mutation recorded by a
// ChangeContext, applied to the actor's presence map when the Change is
// executed (spec §4.8).
type PresenceChange struct {
	Type    PresenceChangeType
	Presence map[string]string
}

// Context is created per local update. It owns a deep clone of the Root and
// mints TimeTickets via an in-context delimiter counter, so every operation
// recorded within one update shares the same Lamport timestamp but gets a
// distinct delimiter (spec §4.8).
type Context struct {
	root           *crdt.Root
	prevID         timestamp.ChangeID
	tentativeID    timestamp.ChangeID // prevID.Next(true); used to mint tickets, finalized only if operations exist
	delimiter      uint32
	operations     []Operation
	message        string
	presenceChange *PresenceChange
}

// NewContext creates a Context over root's clone, seeded with the
// not-yet-advanced ChangeID id.
func NewContext(root *crdt.Root, id timestamp.ChangeID, message string) *Context {
	return &Context{root: root, prevID: id, tentativeID: id.Next(true), message: message}
}

// Root returns the cloned root the updater closure mutates.
func (c *Context) Root() *crdt.Root { return c.root }

// IssueTimeTicket mints a fresh TimeTicket sharing this update's tentative
// Lamport timestamp, distinguished by an incrementing delimiter. The ticket
// is only meaningful if the update ends up recording at least one
// operation; a presence-only update discards the tentative lamport bump at
// ToChange time.
func (c *Context) IssueTimeTicket() timestamp.TimeTicket {
	t := c.tentativeID.NewTimeTicket(c.delimiter)
	c.delimiter++
	return t
}

// Push records op as part of this update.
func (c *Context) Push(op Operation) {
	c.operations = append(c.operations, op)
}

// SetPresenceChange records a pending presence mutation, overriding any
// previously recorded one within this update.
func (c *Context) SetPresenceChange(pc PresenceChange) {
	c.presenceChange = &pc
}

// HasOperations reports whether any operation was recorded, the signal
// Document.update uses to decide whether a Change should be appended at all
// (spec §4.9: "On non-empty ChangeContext...").
func (c *Context) HasOperations() bool { return len(c.operations) > 0 }

// HasChange reports whether this update produced anything worth recording
// at all: operations, or a presence change.
func (c *Context) HasChange() bool {
	return c.HasOperations() || c.presenceChange != nil
}

// ToChange finalizes the recorded operations and presence change into an
// immutable Change, advancing the ChangeID with clocks if any operation was
// recorded, or without clocks for a presence-only update (spec §4.1, §4.8,
// §9 design notes).
func (c *Context) ToChange() *Change {
	id := c.tentativeID
	if !c.HasOperations() {
		id = c.prevID.Next(false)
	}
	return &Change{
		ID:             id,
		Operations:     c.operations,
		PresenceChange: c.presenceChange,
		Message:        c.message,
	}
}
