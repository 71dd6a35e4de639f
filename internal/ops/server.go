// Package ops serves the operational HTTP surface: health probes,
// Prometheus metrics, and journey inspection/control endpoints.
package ops

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/expedition-ai/expedition/internal/health"
	"github.com/expedition-ai/expedition/internal/journey"
	"github.com/expedition-ai/expedition/internal/metrics"
)

// Controller is the engine surface the ops API drives.
type Controller interface {
	Pause(journeyID string) error
	Resume(journeyID string) error
	Stop(journeyID string) error
	Journey(journeyID string) (*journey.Journey, error)
}

// Server is the ops HTTP server.
type Server struct {
	app    *fiber.App
	addr   string
	logger zerolog.Logger
}

// New builds the ops server. m may be nil to skip the metrics endpoint.
func New(addr string, controller Controller, checker *health.Checker, m *metrics.Metrics, logger zerolog.Logger) *Server {
	s := &Server{
		addr:   addr,
		logger: logger.With().Str("component", "ops").Logger(),
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Get("/readyz", func(c *fiber.Ctx) error {
		results := checker.RunAll(c.Context())
		for _, status := range results {
			if status == health.StatusDown {
				return c.Status(fiber.StatusServiceUnavailable).
					JSON(fiber.Map{"status": "not_ready", "checks": results})
			}
		}
		return c.JSON(fiber.Map{"status": "ready", "checks": results})
	})

	if m != nil {
		metricsHandler := fasthttpadaptor.NewFastHTTPHandler(m.Handler())
		app.Get("/metrics", func(c *fiber.Ctx) error {
			metricsHandler(c.Context())
			return nil
		})
	}

	app.Get("/journeys/:id", s.getJourney(controller))
	app.Post("/journeys/:id/pause", s.control(controller.Pause, "pause"))
	app.Post("/journeys/:id/resume", s.control(controller.Resume, "resume"))
	app.Post("/journeys/:id/stop", s.control(controller.Stop, "stop"))

	s.app = app
	return s
}

func (s *Server) getJourney(controller Controller) fiber.Handler {
	return func(c *fiber.Ctx) error {
		j, err := controller.Journey(c.Params("id"))
		if err != nil {
			return errorResponse(c, fiber.StatusInternalServerError, err)
		}
		if j == nil {
			return c.Status(fiber.StatusNotFound).
				JSON(fiber.Map{"error": "journey not found"})
		}
		return c.JSON(j)
	}
}

func (s *Server) control(fn func(string) error, action string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if err := fn(id); err != nil {
			s.logger.Warn().Err(err).Str("journey_id", id).Str("action", action).Msg("control request rejected")
			return errorResponse(c, fiber.StatusConflict, err)
		}
		return c.JSON(fiber.Map{"journey_id": id, "action": action})
	}
}

func errorResponse(c *fiber.Ctx, status int, err error) error {
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

// Start listens on the configured address. Blocks until Shutdown.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.addr).Msg("ops server starting")
	return s.app.Listen(s.addr)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// Test routes a request through the app without a listener.
func (s *Server) Test(req *http.Request) (*http.Response, error) {
	return s.app.Test(req)
}
