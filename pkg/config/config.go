// Package config loads the CRDT document engine's tunables: the byte length
// of a locally minted actor ID, when to prefer a snapshot over a changes
// replay, a presence TTL, a GC batch size and a log level. The engine reads
// the first two; the presence TTL, GC batch size and log level are loaded
// and defaulted but no engine code reads them.
package config

import "time"

// EngineConfig holds the engine's runtime tunables.
type EngineConfig struct {
	// Environment is "development", "staging", or "production"; it only
	// affects defaults (e.g. log level), never document semantics.
	Environment string `mapstructure:"environment"`

	// LogLevel names a minimum observability.LogLevel. No engine code reads
	// it.
	LogLevel string `mapstructure:"log_level"`

	// SnapshotThreshold is the pending-change-count watermark at which
	// createChangePack ships a full snapshot instead of a changes replay,
	// bounding pack size for long-lived documents.
	SnapshotThreshold int `mapstructure:"snapshot_threshold"`

	// PresenceTTL is a presence-entry lifetime. No engine code reads it;
	// presence entries do not expire.
	PresenceTTL time.Duration `mapstructure:"presence_ttl"`

	// GCBatchSize is a per-pass gcPairs scan bound. No engine code reads
	// it; each garbageCollect pass scans every registered gcPair.
	GCBatchSize int `mapstructure:"gc_batch_size"`

	// ActorIDByteLength is the byte length used when minting a local actor
	// ID before the server has assigned one (spec §3.1: "12+ byte blob").
	ActorIDByteLength int `mapstructure:"actor_id_byte_length"`
}

// DefaultConfig returns the engine defaults used when no config file or
// environment override is present.
func DefaultConfig() *EngineConfig {
	return &EngineConfig{
		Environment:       "development",
		LogLevel:          "INFO",
		SnapshotThreshold: 500,
		PresenceTTL:       30 * time.Second,
		GCBatchSize:       1000,
		ActorIDByteLength: 12,
	}
}
