package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Config represents the persistent gravity configuration stored as
// config.toml in the .gravity/ directory. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version    int              `toml:"version"`
	API        APIConfig        `toml:"api"`
	Embedding  EmbeddingConfig  `toml:"embedding"`
	Generation GenerationConfig `toml:"generation"`
	Vector     VectorConfig     `toml:"vector"`
	Ledger     LedgerConfig     `toml:"ledger"`
	Cache      CacheConfig      `toml:"cache"`
	Agent      AgentConfig      `toml:"agent"`
	Pipeline   PipelineConfig   `toml:"pipeline"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
}

// GenerationConfig holds generation provider settings.
type GenerationConfig struct {
	Provider    string  `toml:"provider,omitempty"`
	Target      string  `toml:"target,omitempty"`
	Model       string  `toml:"model,omitempty"`
	APIKey      string  `toml:"api_key,omitempty"`
	Temperature float64 `toml:"temperature,omitempty"`
	MaxTokens   int     `toml:"max_tokens,omitempty"`
}

// VectorConfig holds vector store settings. An empty Index means the linear
// in-memory scan; "qdrant" enables the approximate index.
type VectorConfig struct {
	PersistPath string `toml:"persist_path,omitempty"`
	Index       string `toml:"index,omitempty"`
	QdrantHost  string `toml:"qdrant_host,omitempty"`
	QdrantPort  uint   `toml:"qdrant_port,omitempty"`
	Collection  string `toml:"collection,omitempty"`
}

// LedgerConfig holds audit ledger settings. Provider "nop" disables the
// ledger entirely.
type LedgerConfig struct {
	Provider string   `toml:"provider,omitempty"`
	Brokers  []string `toml:"brokers,omitempty"`
	Topic    string   `toml:"topic,omitempty"`
}

// CacheConfig holds embedding cache settings.
type CacheConfig struct {
	TTLSeconds uint `toml:"ttl_seconds,omitempty"`
	MaxEntries uint `toml:"max_entries,omitempty"`
}

// AgentConfig holds worker pool and monitor settings.
type AgentConfig struct {
	PoolSize               uint `toml:"pool_size,omitempty"`
	MonitorIntervalSeconds uint `toml:"monitor_interval_seconds,omitempty"`
}

// PipelineConfig holds retrieval settings.
type PipelineConfig struct {
	RetrievalThreshold float64 `toml:"retrieval_threshold,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"embedding.provider": {
		get: func(c *Config) string { return c.Embedding.Provider },
		set: func(c *Config, v string) error { c.Embedding.Provider = v; return nil },
	},
	"embedding.target": {
		get: func(c *Config) string { return c.Embedding.Target },
		set: func(c *Config, v string) error { c.Embedding.Target = v; return nil },
	},
	"embedding.model": {
		get: func(c *Config) string { return c.Embedding.Model },
		set: func(c *Config, v string) error { c.Embedding.Model = v; return nil },
	},
	"embedding.dimensions": {
		get: func(c *Config) string {
			if c.Embedding.Dimensions == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Embedding.Dimensions), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for embedding.dimensions: %w", err)
			}
			c.Embedding.Dimensions = uint(n)
			return nil
		},
	},
	"generation.provider": {
		get: func(c *Config) string { return c.Generation.Provider },
		set: func(c *Config, v string) error { c.Generation.Provider = v; return nil },
	},
	"generation.target": {
		get: func(c *Config) string { return c.Generation.Target },
		set: func(c *Config, v string) error { c.Generation.Target = v; return nil },
	},
	"generation.model": {
		get: func(c *Config) string { return c.Generation.Model },
		set: func(c *Config, v string) error { c.Generation.Model = v; return nil },
	},
	"generation.api_key": {
		get: func(c *Config) string { return c.Generation.APIKey },
		set: func(c *Config, v string) error { c.Generation.APIKey = v; return nil },
	},
	"generation.temperature": {
		get: func(c *Config) string {
			return strconv.FormatFloat(c.Generation.Temperature, 'f', -1, 64)
		},
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for generation.temperature: %w", err)
			}
			c.Generation.Temperature = f
			return nil
		},
	},
	"generation.max_tokens": {
		get: func(c *Config) string { return strconv.Itoa(c.Generation.MaxTokens) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for generation.max_tokens: %w", err)
			}
			c.Generation.MaxTokens = n
			return nil
		},
	},
	"vector.persist_path": {
		get: func(c *Config) string { return c.Vector.PersistPath },
		set: func(c *Config, v string) error { c.Vector.PersistPath = v; return nil },
	},
	"vector.index": {
		get: func(c *Config) string { return c.Vector.Index },
		set: func(c *Config, v string) error { c.Vector.Index = v; return nil },
	},
	"vector.qdrant_host": {
		get: func(c *Config) string { return c.Vector.QdrantHost },
		set: func(c *Config, v string) error { c.Vector.QdrantHost = v; return nil },
	},
	"vector.qdrant_port": {
		get: func(c *Config) string {
			if c.Vector.QdrantPort == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Vector.QdrantPort), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for vector.qdrant_port: %w", err)
			}
			c.Vector.QdrantPort = uint(n)
			return nil
		},
	},
	"vector.collection": {
		get: func(c *Config) string { return c.Vector.Collection },
		set: func(c *Config, v string) error { c.Vector.Collection = v; return nil },
	},
	"ledger.provider": {
		get: func(c *Config) string { return c.Ledger.Provider },
		set: func(c *Config, v string) error { c.Ledger.Provider = v; return nil },
	},
	"ledger.brokers": {
		get: func(c *Config) string { return strings.Join(c.Ledger.Brokers, ",") },
		set: func(c *Config, v string) error {
			c.Ledger.Brokers = nil
			for _, b := range strings.Split(v, ",") {
				if b = strings.TrimSpace(b); b != "" {
					c.Ledger.Brokers = append(c.Ledger.Brokers, b)
				}
			}
			return nil
		},
	},
	"ledger.topic": {
		get: func(c *Config) string { return c.Ledger.Topic },
		set: func(c *Config, v string) error { c.Ledger.Topic = v; return nil },
	},
	"cache.ttl_seconds": {
		get: func(c *Config) string { return strconv.FormatUint(uint64(c.Cache.TTLSeconds), 10) },
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for cache.ttl_seconds: %w", err)
			}
			c.Cache.TTLSeconds = uint(n)
			return nil
		},
	},
	"cache.max_entries": {
		get: func(c *Config) string { return strconv.FormatUint(uint64(c.Cache.MaxEntries), 10) },
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for cache.max_entries: %w", err)
			}
			c.Cache.MaxEntries = uint(n)
			return nil
		},
	},
	"agent.pool_size": {
		get: func(c *Config) string { return strconv.FormatUint(uint64(c.Agent.PoolSize), 10) },
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for agent.pool_size: %w", err)
			}
			c.Agent.PoolSize = uint(n)
			return nil
		},
	},
	"agent.monitor_interval_seconds": {
		get: func(c *Config) string {
			return strconv.FormatUint(uint64(c.Agent.MonitorIntervalSeconds), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for agent.monitor_interval_seconds: %w", err)
			}
			c.Agent.MonitorIntervalSeconds = uint(n)
			return nil
		},
	},
	"pipeline.retrieval_threshold": {
		get: func(c *Config) string {
			return strconv.FormatFloat(c.Pipeline.RetrievalThreshold, 'f', -1, 64)
		},
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for pipeline.retrieval_threshold: %w", err)
			}
			c.Pipeline.RetrievalThreshold = f
			return nil
		},
	},
}
