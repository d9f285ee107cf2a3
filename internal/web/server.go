// Package web serves the browser UI and the HTTP API of the service.
package web

import (
	"context"
	"errors"
	"fmt"

	"github.com/book-expert/logger"
	"github.com/gofiber/fiber/v2"

	"github.com/book-expert/sentence-clips-service/internal/config"
	"github.com/book-expert/sentence-clips-service/internal/pipeline"
	"github.com/book-expert/sentence-clips-service/internal/tts/edge"
)

const bytesPerMB = 1024 * 1024

// ErrUnsupportedUpload indicates an uploaded file that is not plain text.
var ErrUnsupportedUpload = errors.New("only .txt uploads are supported")

// VoiceLister resolves the provider's available voices.
type VoiceLister interface {
	List(ctx context.Context) ([]edge.Voice, error)
}

// Server binds the pipeline and the voice catalog to HTTP routes.
type Server struct {
	app    *fiber.App
	runner *pipeline.Runner
	voices VoiceLister
	cfg    *config.Config
	log    *logger.Logger
}

// New creates the server and registers all routes.
func New(
	cfg *config.Config,
	runner *pipeline.Runner,
	voices VoiceLister,
	log *logger.Logger,
) *Server {
	app := fiber.New(fiber.Config{
		AppName:   "sentence-clips-service",
		BodyLimit: cfg.Server.BodyLimitMB * bytesPerMB,
	})

	server := &Server{
		app:    app,
		runner: runner,
		voices: voices,
		cfg:    cfg,
		log:    log,
	}
	server.registerRoutes()

	return server
}

func (s *Server) registerRoutes() {
	s.app.Get("/", s.handleIndex)
	s.app.Post("/preview", s.handlePreview)
	s.app.Post("/generate", s.handleGenerate)
	s.app.Get("/runs/:id/archive", s.handleArchive)
	s.app.Get("/voices", s.handleVoices)

	// Healthcheck endpoint
	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
}

// Listen serves until the listener fails or Shutdown is called.
func (s *Server) Listen() error {
	address := s.cfg.Server.Address()
	s.log.Info("Server listening on http://%s", address)

	err := s.app.Listen(address)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown() error {
	err := s.app.Shutdown()
	if err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}

	return nil
}

// App exposes the underlying fiber application for in-process testing.
func (s *Server) App() *fiber.App {
	return s.app
}
