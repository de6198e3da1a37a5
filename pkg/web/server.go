// Package web exposes the liveness and readiness endpoints of the service.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/moogar0880/problems"
)

// Probe reports the health of one dependency.
type Probe func(ctx context.Context) error

type Server struct {
	logger *slog.Logger
	probes map[string]Probe
	names  []string
	app    *fiber.App
}

func NewServer(logger *slog.Logger, probes map[string]Probe) *Server {
	names := make([]string, 0, len(probes))
	for name := range probes {
		names = append(names, name)
	}

	sort.Strings(names)

	s := &Server{
		logger: logger.With("module", "web"),
		probes: probes,
		names:  names,
	}
	s.app = s.newApp()

	return s
}

func (s *Server) newApp() *fiber.App {
	app := fiber.New()

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker(healthcheck.Config{
		Probe: func(c fiber.Ctx) bool {
			return len(s.check(c.Context())) == 0
		},
	}))

	app.Get("/health", s.health)

	return app
}

func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Start(port int) error {
	return s.app.Listen(":"+strconv.Itoa(port), fiber.ListenConfig{DisableStartupMessage: true})
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// check runs every probe and returns the failures by probe name.
func (s *Server) check(ctx context.Context) map[string]error {
	failures := map[string]error{}

	for _, name := range s.names {
		err := s.probes[name](ctx)
		if err != nil {
			failures[name] = err
		}
	}

	return failures
}

func (s *Server) health(c fiber.Ctx) error {
	failures := s.check(c.Context())

	checkers := fiber.Map{}
	details := make([]string, 0, len(failures))

	for _, name := range s.names {
		err, failed := failures[name]
		if !failed {
			checkers[name] = "ok"

			continue
		}

		checkers[name] = err.Error()
		details = append(details, name+": "+err.Error())
	}

	if len(failures) > 0 {
		s.logger.WarnContext(c.Context(), "Health check failed", "failures", strings.Join(details, "; "))

		problem := problems.NewStatusProblem(http.StatusServiceUnavailable).
			WithInstance(c.Path()).
			WithType("unhealthy").
			WithDetail(strings.Join(details, "; "))

		return c.Status(fiber.StatusServiceUnavailable).JSON(problem)
	}

	return c.JSON(fiber.Map{
		"status":    "healthy",
		"checkers":  checkers,
		"timestamp": time.Now().UTC(),
	})
}
