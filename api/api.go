package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/neargravity/gravity/pkg/agent"
	"github.com/neargravity/gravity/pkg/rag"
	"github.com/neargravity/gravity/pkg/vector"
)

const defaultResultTimeout = 30 * time.Second

// Server is the HTTP front end over the agent manager and the pipeline.
type Server struct {
	config   Config
	manager  *agent.Manager
	pipeline *rag.Enhanced
	store    *vector.Store
	logger   *zap.Logger
	app      *fiber.App
}

// NewServer creates a new API server. The manager, pipeline agent, and store
// are injected so they can be shared with other components.
func NewServer(config Config, manager *agent.Manager, pipeline *rag.Enhanced, store *vector.Store, logger *zap.Logger) *Server {
	if config.ResultTimeout <= 0 {
		config.ResultTimeout = defaultResultTimeout
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:   config,
		manager:  manager,
		pipeline: pipeline,
		store:    store,
		logger:   logger,
		app:      app,
	}

	app.Get("/ping", s.handlePing)
	app.Post("/generate", s.handleGenerate)
	app.Post("/injections", s.handleAddInjection)
	app.Get("/injections", s.handleListInjections)
	app.Get("/metrics", s.handleMetrics)

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		zap.String("listen", s.config.ListenAddr),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}
