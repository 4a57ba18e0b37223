package document

import (
	"github.com/S-Corkum/crdt-engine/pkg/config"
	"github.com/S-Corkum/crdt-engine/pkg/timestamp"
)

// ActorIDSource supplies a replica's ActorID at attach time. The canonical
// flow assigns it from the server on activation (spec §3.1); that
// assignment protocol is a transport concern out of scope here, so this
// engine depends on a pluggable source instead of hard-coding it.
type ActorIDSource interface {
	NewActorID() (timestamp.ActorID, error)
}

// RandomActorIDSource mints a locally random ActorID, the stand-in a host
// uses before a real server-assigned ID is available (spec §3.1: "hex-
// encoded 12+ byte blob").
type RandomActorIDSource struct {
	ByteLength int
}

// NewRandomActorIDSource creates a source using cfg's configured byte
// length, falling back to timestamp.DefaultActorIDByteLength if unset.
func NewRandomActorIDSource(cfg *config.EngineConfig) *RandomActorIDSource {
	length := timestamp.DefaultActorIDByteLength
	if cfg != nil && cfg.ActorIDByteLength > 0 {
		length = cfg.ActorIDByteLength
	}
	return &RandomActorIDSource{ByteLength: length}
}

// NewActorID mints a fresh random ActorID.
func (s *RandomActorIDSource) NewActorID() (timestamp.ActorID, error) {
	return timestamp.NewActorID(s.ByteLength)
}
