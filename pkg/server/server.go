package server

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/oarkflow/log"

	"github.com/careflow/ingest/pkg/ingest"
)

// StatusServer exposes a read-only observability surface for the ingestion
// service: liveness and the controller's counters. Ingestion never depends on
// it; it can be disabled entirely by leaving the address empty.
type StatusServer struct {
	app        *fiber.App
	controller *ingest.Controller
}

func New(controller *ingest.Controller) *StatusServer {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(logger.New())
	s := &StatusServer{app: app, controller: controller}

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", func(c *fiber.Ctx) error {
		return c.JSON(s.controller.Snapshot())
	})
	return s
}

// Listen serves until the context is cancelled.
func (s *StatusServer) Listen(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.app.Listen(addr)
	}()
	select {
	case <-ctx.Done():
		if err := s.app.Shutdown(); err != nil {
			log.DefaultLogger.Error().Err(err).Msg("status server shutdown failed")
		}
		<-errCh
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}
