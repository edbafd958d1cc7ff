package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/neargravity/gravity/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the GRAVITY_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (GRAVITY_API_LISTEN, GRAVITY_EMBEDDING_MODEL, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: GRAVITY_API_LISTEN, GRAVITY_LEDGER_BROKERS, etc.
	v.SetEnvPrefix("GRAVITY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// API
	v.SetDefault("api.listen", d.API.Listen)

	// Embedding
	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.target", d.Embedding.Target)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.dimensions", d.Embedding.Dimensions)

	// Generation
	v.SetDefault("generation.provider", d.Generation.Provider)
	v.SetDefault("generation.target", d.Generation.Target)
	v.SetDefault("generation.model", d.Generation.Model)
	v.SetDefault("generation.api_key", d.Generation.APIKey)
	v.SetDefault("generation.temperature", d.Generation.Temperature)
	v.SetDefault("generation.max_tokens", d.Generation.MaxTokens)

	// Vector store
	v.SetDefault("vector.persist_path", d.Vector.PersistPath)
	v.SetDefault("vector.index", d.Vector.Index)
	v.SetDefault("vector.qdrant_host", d.Vector.QdrantHost)
	v.SetDefault("vector.qdrant_port", d.Vector.QdrantPort)
	v.SetDefault("vector.collection", d.Vector.Collection)

	// Ledger
	v.SetDefault("ledger.provider", d.Ledger.Provider)
	v.SetDefault("ledger.brokers", d.Ledger.Brokers)
	v.SetDefault("ledger.topic", d.Ledger.Topic)

	// Cache
	v.SetDefault("cache.ttl_seconds", d.Cache.TTLSeconds)
	v.SetDefault("cache.max_entries", d.Cache.MaxEntries)

	// Agent
	v.SetDefault("agent.pool_size", d.Agent.PoolSize)
	v.SetDefault("agent.monitor_interval_seconds", d.Agent.MonitorIntervalSeconds)

	// Pipeline
	v.SetDefault("pipeline.retrieval_threshold", d.Pipeline.RetrievalThreshold)
}

// FromViper materializes a Config from the viper precedence chain.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Version: v.GetInt("version"),
		API: APIConfig{
			Listen: v.GetString("api.listen"),
		},
		Embedding: EmbeddingConfig{
			Provider:   v.GetString("embedding.provider"),
			Target:     v.GetString("embedding.target"),
			Model:      v.GetString("embedding.model"),
			Dimensions: v.GetUint("embedding.dimensions"),
		},
		Generation: GenerationConfig{
			Provider:    v.GetString("generation.provider"),
			Target:      v.GetString("generation.target"),
			Model:       v.GetString("generation.model"),
			APIKey:      v.GetString("generation.api_key"),
			Temperature: v.GetFloat64("generation.temperature"),
			MaxTokens:   v.GetInt("generation.max_tokens"),
		},
		Vector: VectorConfig{
			PersistPath: v.GetString("vector.persist_path"),
			Index:       v.GetString("vector.index"),
			QdrantHost:  v.GetString("vector.qdrant_host"),
			QdrantPort:  v.GetUint("vector.qdrant_port"),
			Collection:  v.GetString("vector.collection"),
		},
		Ledger: LedgerConfig{
			Provider: v.GetString("ledger.provider"),
			Brokers:  v.GetStringSlice("ledger.brokers"),
			Topic:    v.GetString("ledger.topic"),
		},
		Cache: CacheConfig{
			TTLSeconds: v.GetUint("cache.ttl_seconds"),
			MaxEntries: v.GetUint("cache.max_entries"),
		},
		Agent: AgentConfig{
			PoolSize:               v.GetUint("agent.pool_size"),
			MonitorIntervalSeconds: v.GetUint("agent.monitor_interval_seconds"),
		},
		Pipeline: PipelineConfig{
			RetrievalThreshold: v.GetFloat64("pipeline.retrieval_threshold"),
		},
	}
}
