// Package middleware contains HTTP middlewares for delivery.
package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"go.uber.org/zap"
)

// RequestLogger logs HTTP requests with method, path, status and duration.
// Server errors are logged at warn level.
func RequestLogger(log *zap.SugaredLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		dur := time.Since(start)
		reqID, _ := c.Locals("requestid").(string)
		if reqID == "" {
			reqID = utils.CopyString(c.Get(fiber.HeaderXRequestID))
		}
		status := c.Response().StatusCode()
		logf := log.Infow
		if status >= fiber.StatusInternalServerError {
			logf = log.Warnw
		}
		// Fields outlive the request, whose buffers fasthttp reuses.
		logf("http",
			"method", utils.CopyString(c.Method()),
			"path", utils.CopyString(c.OriginalURL()),
			"status", status,
			"duration_ms", float64(dur.Microseconds())/1000.0,
			"request_id", reqID,
		)
		return err
	}
}
