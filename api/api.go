package api

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/prefopt/maskrank/pkg/loop"
	"github.com/prefopt/maskrank/pkg/session"
)

// Server exposes one active learning loop per process over HTTP. The loop
// contract is single-caller and synchronous, so handlers are not expected
// to run concurrently against the same session; the server exists to put
// the loop behind a network boundary, not to multiplex users.
type Server struct {
	config  Config
	store   session.Store
	logger  *zap.Logger
	app     *fiber.App
	loopCfg loop.Config

	// loop is nil until a session is created or resumed.
	loop *loop.Loop
}

// NewServer creates a new API server. The session store is injected to
// allow sharing with CLI commands operating on the same directory.
func NewServer(config Config, loopCfg loop.Config, store session.Store, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:  config,
		store:   store,
		logger:  logger,
		app:     app,
		loopCfg: loopCfg,
	}

	app.Get("/ping", s.handlePing)
	app.Post("/sessions", s.handleCreateSession)
	app.Get("/sessions", s.handleListSessions)
	app.Get("/sessions/:id", s.handleSessionInfo)
	app.Delete("/sessions/:id", s.handleDeleteSession)
	app.Get("/batch", s.handleGetBatch)
	app.Post("/preferences", s.handleAddPreferences)
	app.Get("/ranking", s.handleGetRanking)
	app.Get("/progress", s.handleGetProgress)

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
