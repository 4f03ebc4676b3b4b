package middleware

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/guiartbp/Hackathon-QITech-sub002/internal/apperr"
	"github.com/guiartbp/Hackathon-QITech-sub002/internal/metrics"
)

// HTTPMetrics observes request latency labelled by route pattern, so ids in
// paths do not explode the series count.
func HTTPMetrics(rec *metrics.Recorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := responseStatus(c, err)
		route := c.Path()
		if r := c.Route(); r != nil && r.Path != "" {
			route = r.Path
		}
		rec.ObserveHTTP(c.Method(), route, strconv.Itoa(status), time.Since(start))
		return err
	}
}

// responseStatus is the status the error handler will send for err. It runs
// before the handler does, so the response code is only trusted without an
// error.
func responseStatus(c *fiber.Ctx, err error) int {
	if err == nil {
		return c.Response().StatusCode()
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	status, _ := apperr.Status(err)
	return status
}
