package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/guiartbp/Hackathon-QITech-sub002/internal/metrics"
)

// RegisterMetricsRoute exposes the Prometheus registry.
func RegisterMetricsRoute(app *fiber.App, rec *metrics.Recorder) {
	app.Get("/metrics", adaptor.HTTPHandler(rec.Handler()))
}
