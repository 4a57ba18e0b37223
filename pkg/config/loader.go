package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Loader loads EngineConfig from a YAML file, an environment-specific
// override, and environment variables, in that order, mirroring the
// teacher's config-loading idiom (base file, then environment overlay, then
// env vars with "." replaced by "_").
type Loader struct {
	configPath string
	viper      *viper.Viper
}

// NewLoader creates a configuration loader rooted at configPath (a
// directory containing config.base.yaml and optional
// config.<environment>.yaml overlays).
func NewLoader(configPath string) *Loader {
	v := viper.New()
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvPrefix("CRDT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return &Loader{configPath: configPath, viper: v}
}

// Load reads config.base.yaml, overlays config.<environment>.yaml if
// present, applies environment variables, and unmarshals into an
// EngineConfig seeded with DefaultConfig.
func (l *Loader) Load(environment string) (*EngineConfig, error) {
	if environment == "" {
		environment = os.Getenv("CRDT_ENVIRONMENT")
	}
	if environment == "" {
		environment = "development"
	}

	cfg := DefaultConfig()
	cfg.Environment = environment
	l.applyDefaults(cfg)

	base := l.configPath + "/config.base.yaml"
	if _, err := os.Stat(base); err == nil {
		l.viper.SetConfigFile(base)
		if err := l.viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read base config: %w", err)
		}
	}

	overlay := fmt.Sprintf("%s/config.%s.yaml", l.configPath, environment)
	if _, err := os.Stat(overlay); err == nil {
		l.viper.SetConfigFile(overlay)
		if err := l.viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("merge %s overlay: %w", environment, err)
		}
	}

	if err := l.viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal engine config: %w", err)
	}
	return cfg, nil
}

func (l *Loader) applyDefaults(cfg *EngineConfig) {
	l.viper.SetDefault("log_level", cfg.LogLevel)
	l.viper.SetDefault("snapshot_threshold", cfg.SnapshotThreshold)
	l.viper.SetDefault("presence_ttl", cfg.PresenceTTL)
	l.viper.SetDefault("gc_batch_size", cfg.GCBatchSize)
	l.viper.SetDefault("actor_id_byte_length", cfg.ActorIDByteLength)
}
