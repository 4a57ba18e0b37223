package change

import (
	"strconv"

	"github.com/S-Corkum/crdt-engine/pkg/crdt"
	crdterrors "github.com/S-Corkum/crdt-engine/pkg/errors"
	"github.com/S-Corkum/crdt-engine/pkg/timestamp"
)

// Change is one atomic unit of replication: a ChangeID, the operations it
// carries, and an optional presence mutation and human-readable message
// (spec §4.8).
type Change struct {
	ID             timestamp.ChangeID
	Operations     []Operation
	PresenceChange *PresenceChange
	Message        string
}

// OperationInfo is the host-facing projection of one executed operation,
// carried in ChangeInfo for local-change/remote-change events (spec §6.3).
type OperationInfo struct {
	Path string
	Type string
}

// ChangeInfo is the event payload fired alongside local-change and
// remote-change subscriptions (spec §6.3).
type ChangeInfo struct {
	Message    string
	Operations []OperationInfo
	ActorID    timestamp.ActorID
}

// PresenceUpdate describes how Execute should fold PresenceChange into a
// host-owned presence map keyed by actor; the change package has no
// presence storage of its own (pkg/presence owns it), so Execute reports
// the intended mutation back to the caller instead of applying it directly.
type PresenceUpdate struct {
	Actor timestamp.ActorID
	Type  PresenceChangeType
	Data  map[string]string
}

// Execute runs every operation in the change against root in order,
// stopping at the first failing operation. Reference errors on individual
// operations are returned to
// the caller (whose handling differs between a local update, where they
// must surface, and a remote apply, where they are logged and skipped —
// spec §7 propagation policy) rather than being swallowed here.
func (c *Change) Execute(root *crdt.Root) ([]OperationInfo, error) {
	infos := make([]OperationInfo, 0, len(c.Operations))
	for _, op := range c.Operations {
		if err := op.Execute(root); err != nil {
			return infos, err
		}
		infos = append(infos, OperationInfo{Path: pathOf(root, op.ParentCreatedAt()), Type: op.Type()})
	}
	return infos, nil
}

// pathOf resolves a createdAt to a dotted key path rooted at "$" by walking
// the value tree from the top-level Object (spec §6.3, §4.9 subscribe). An
// element no longer reachable (already purged, or the root itself) resolves
// to "$" so a stale path never crashes event dispatch.
func pathOf(root *crdt.Root, createdAt timestamp.TimeTicket) string {
	obj := root.Object()
	if obj.CreatedAt().Equal(createdAt) {
		return "$"
	}
	if p, ok := findPath(obj, createdAt, "$"); ok {
		return p
	}
	return "$"
}

func findPath(elem crdt.Element, target timestamp.TimeTicket, prefix string) (string, bool) {
	switch v := elem.(type) {
	case *crdt.Object:
		for _, kv := range v.RHT().Elements() {
			childPath := prefix + "." + kv.Key
			if kv.Elem.CreatedAt().Equal(target) {
				return childPath, true
			}
			if p, ok := findPath(kv.Elem, target, childPath); ok {
				return p, true
			}
		}
	case *crdt.Array:
		for i, e := range v.List().Elements() {
			childPath := prefix + "." + strconv.Itoa(i)
			if e.CreatedAt().Equal(target) {
				return childPath, true
			}
			if p, ok := findPath(e, target, childPath); ok {
				return p, true
			}
		}
	}
	return "", false
}

// PresenceMutation derives the presence mutation this change implies, if
// any, for the given actor.
func (c *Change) PresenceMutation(actor timestamp.ActorID) *PresenceUpdate {
	if c.PresenceChange == nil {
		return nil
	}
	return &PresenceUpdate{Actor: actor, Type: c.PresenceChange.Type, Data: c.PresenceChange.Presence}
}

// ValidateForRemote rejects a change whose ID carries no actor, guarding
// the Unexpected invariant violation called out in spec §7.
func (c *Change) ValidateForRemote() error {
	if c.ID.ActorID() == "" {
		return crdterrors.New(crdterrors.KindUnexpected, "Change.Execute", "change carries no actor")
	}
	return nil
}
