// Package servecmder provides the serve command that wires and runs the
// gravity services.
package servecmder

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/neargravity/gravity/api"
	"github.com/neargravity/gravity/pkg/agent"
	"github.com/neargravity/gravity/pkg/config"
	"github.com/neargravity/gravity/pkg/dotdir"
	"github.com/neargravity/gravity/pkg/embeddings/cache"
	embeddingutils "github.com/neargravity/gravity/pkg/embeddings/utils"
	"github.com/neargravity/gravity/pkg/ledger"
	kafkaledger "github.com/neargravity/gravity/pkg/ledger/kafka"
	"github.com/neargravity/gravity/pkg/ledger/nop"
	llmutils "github.com/neargravity/gravity/pkg/llm/utils"
	"github.com/neargravity/gravity/pkg/logger"
	"github.com/neargravity/gravity/pkg/rag"
	"github.com/neargravity/gravity/pkg/vector"
	"github.com/neargravity/gravity/pkg/vector/qdrant"
)

type ServeCommander struct {
	listen         string
	embeddingProv  string
	embeddingTgt   string
	embeddingModel string
	embeddingDims  uint
	generationProv string
	generationTgt  string
	model          string
	persistPath    string
	vectorIndex    string
	ledgerProvider string
	poolSize       uint
	debug          bool

	v      *viper.Viper
	logger *zap.Logger
}

const serveLongDesc string = `Run the gravity services.

Starts the pipeline agent pool, the health monitor, and the HTTP API server.
Configuration comes from flags, GRAVITY_* environment variables, and the
config.toml in the .gravity/ directory, in that order of precedence.`

const serveShortDesc string = "Run the gravity API server and pipeline agents"

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}
	fs := config.DefaultFlagSet()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}

			config.BindRegisteredFlags(v, cmd, fs, []string{
				config.FlagAPIListen,
				config.FlagEmbeddingProv,
				config.FlagEmbeddingTgt,
				config.FlagEmbeddingModel,
				config.FlagEmbeddingDims,
				config.FlagGenerationProv,
				config.FlagGenerationTgt,
				config.FlagGenerationModel,
				config.FlagVectorPersist,
				config.FlagVectorIndex,
				config.FlagLedgerProvider,
				config.FlagPoolSize,
			})

			cmder.v = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			configDir, _ := cmd.Flags().GetString("config-dir")
			return cmder.run(configDir)
		},
	}

	config.AddStringFlag(cmd, fs, config.FlagAPIListen, &cmder.listen)
	config.AddStringFlag(cmd, fs, config.FlagEmbeddingProv, &cmder.embeddingProv)
	config.AddStringFlag(cmd, fs, config.FlagEmbeddingTgt, &cmder.embeddingTgt)
	config.AddStringFlag(cmd, fs, config.FlagEmbeddingModel, &cmder.embeddingModel)
	config.AddUintFlag(cmd, fs, config.FlagEmbeddingDims, &cmder.embeddingDims)
	config.AddStringFlag(cmd, fs, config.FlagGenerationProv, &cmder.generationProv)
	config.AddStringFlag(cmd, fs, config.FlagGenerationTgt, &cmder.generationTgt)
	config.AddStringFlag(cmd, fs, config.FlagGenerationModel, &cmder.model)
	config.AddStringFlag(cmd, fs, config.FlagVectorPersist, &cmder.persistPath)
	config.AddStringFlag(cmd, fs, config.FlagVectorIndex, &cmder.vectorIndex)
	config.AddStringFlag(cmd, fs, config.FlagLedgerProvider, &cmder.ledgerProvider)
	config.AddUintFlag(cmd, fs, config.FlagPoolSize, &cmder.poolSize)

	return cmd
}

func (c *ServeCommander) run(configDir string) error {
	c.logger = logger.NewLogger(c.debug)
	defer c.logger.Sync()

	cfg := config.FromViper(c.v)

	embedder, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: cfg.Embedding.Provider,
		TargetURL:    cfg.Embedding.Target,
		Model:        cfg.Embedding.Model,
	})
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}
	defer embedder.Close()

	generator, err := llmutils.NewGenerator(&llmutils.NewGeneratorOpts{
		ProviderType: cfg.Generation.Provider,
		TargetURL:    cfg.Generation.Target,
		APIKey:       cfg.Generation.APIKey,
	})
	if err != nil {
		return fmt.Errorf("creating generator: %w", err)
	}
	defer generator.Close()

	store, err := c.createStore(cfg, configDir)
	if err != nil {
		return err
	}
	defer store.Close()

	audit, err := c.createLedger(cfg)
	if err != nil {
		return err
	}
	defer audit.Close()

	pipeline := rag.NewEnhanced(
		agent.Config{
			Name:        "pipeline",
			Model:       cfg.Generation.Model,
			Temperature: cfg.Generation.Temperature,
			MaxTokens:   cfg.Generation.MaxTokens,
			PoolSize:    int(cfg.Agent.PoolSize),
		},
		rag.Config{
			Model:              cfg.Generation.Model,
			Temperature:        cfg.Generation.Temperature,
			MaxTokens:          cfg.Generation.MaxTokens,
			RetrievalThreshold: cfg.Pipeline.RetrievalThreshold,
		},
		cache.Config{
			TTL:        time.Duration(cfg.Cache.TTLSeconds) * time.Second,
			MaxEntries: int(cfg.Cache.MaxEntries),
		},
		embedder, generator, store, audit, c.logger,
	)

	manager := agent.NewManager(c.logger)
	manager.Register(pipeline)
	defer manager.ShutdownAll()

	monitor := agent.NewMonitor(manager,
		time.Duration(cfg.Agent.MonitorIntervalSeconds)*time.Second, c.logger)
	defer monitor.Shutdown()

	server := api.NewServer(api.Config{ListenAddr: cfg.API.Listen}, manager, pipeline, store, c.logger)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		return server.Shutdown()
	}
}

func (c *ServeCommander) createStore(cfg *config.Config, configDir string) (*vector.Store, error) {
	persistPath := cfg.Vector.PersistPath
	if persistPath == "" {
		var err error
		persistPath, err = dotdir.NewManager().SnapshotsDir(configDir)
		if err != nil {
			return nil, fmt.Errorf("resolving snapshot directory: %w", err)
		}
	}

	var index vector.Index
	if cfg.Vector.Index == "qdrant" {
		var err error
		index, err = qdrant.NewIndex(qdrant.Config{
			Host:       cfg.Vector.QdrantHost,
			Port:       int(cfg.Vector.QdrantPort),
			Collection: cfg.Vector.Collection,
			Dimensions: uint64(cfg.Embedding.Dimensions),
		}, c.logger)
		if err != nil {
			return nil, fmt.Errorf("connecting to qdrant: %w", err)
		}
		c.logger.Info("using qdrant approximate index",
			zap.String("host", cfg.Vector.QdrantHost),
			zap.Uint("port", cfg.Vector.QdrantPort),
		)
	}

	store, err := vector.NewStore(vector.StoreConfig{
		PersistPath: persistPath,
		Index:       index,
	}, c.logger)
	if err != nil {
		return nil, fmt.Errorf("creating vector store: %w", err)
	}

	return store, nil
}

func (c *ServeCommander) createLedger(cfg *config.Config) (ledger.Ledger, error) {
	if cfg.Ledger.Provider != "kafka" {
		c.logger.Info("audit ledger disabled")
		return nop.NewLedger(), nil
	}

	l, err := kafkaledger.NewLedger(kafkaledger.Config{
		Brokers: cfg.Ledger.Brokers,
		Topic:   cfg.Ledger.Topic,
	}, c.logger)
	if err != nil {
		return nil, fmt.Errorf("creating kafka ledger: %w", err)
	}

	c.logger.Info("using kafka audit ledger",
		zap.Strings("brokers", cfg.Ledger.Brokers),
		zap.String("topic", cfg.Ledger.Topic),
	)
	return l, nil
}
