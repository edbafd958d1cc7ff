package config

const (
	defaultAPIListen = ":8080"

	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingTarget     = "http://localhost:11434"
	defaultEmbeddingModel      = "nomic-embed-text"
	defaultEmbeddingDimensions = 768

	defaultGenerationProvider = "openai"
	defaultGenerationTarget   = "https://api.openai.com/v1"
	defaultGenerationModel    = "gpt-4o-mini"
	defaultTemperature        = 0.7

	defaultQdrantHost = "localhost"
	defaultQdrantPort = 6334
	defaultCollection = "gravity"

	defaultLedgerProvider = "nop"
	defaultLedgerTopic    = "gravity.audit"

	defaultCacheTTLSeconds = 3600
	defaultCacheMaxEntries = 1000

	defaultPoolSize        = 5
	defaultMonitorInterval = 30

	defaultRetrievalThreshold = 0.6
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultEmbeddingTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
		Generation: GenerationConfig{
			Provider:    defaultGenerationProvider,
			Target:      defaultGenerationTarget,
			Model:       defaultGenerationModel,
			Temperature: defaultTemperature,
		},
		Vector: VectorConfig{
			QdrantHost: defaultQdrantHost,
			QdrantPort: defaultQdrantPort,
			Collection: defaultCollection,
		},
		Ledger: LedgerConfig{
			Provider: defaultLedgerProvider,
			Topic:    defaultLedgerTopic,
		},
		Cache: CacheConfig{
			TTLSeconds: defaultCacheTTLSeconds,
			MaxEntries: defaultCacheMaxEntries,
		},
		Agent: AgentConfig{
			PoolSize:               defaultPoolSize,
			MonitorIntervalSeconds: defaultMonitorInterval,
		},
		Pipeline: PipelineConfig{
			RetrievalThreshold: defaultRetrievalThreshold,
		},
	}
}
