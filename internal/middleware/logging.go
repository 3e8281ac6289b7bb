package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"logistics-backend/internal/logger"
)

// RequestLogger writes one structured line per request once it completes.
func RequestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := StatusOf(c, err)
		duration := time.Since(start)

		evt := logger.Info(c.UserContext())
		switch {
		case status >= 500:
			evt = logger.Error(c.UserContext())
		case status >= 400:
			evt = logger.Warn(c.UserContext())
		}
		if err != nil && status >= 500 {
			evt = evt.Err(err)
		}

		evt.Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("duration", duration).
			Str("request_id", c.GetRespHeader(fiber.HeaderXRequestID)).
			Str("ip", c.IP()).
			Msg("request completed")
		return err
	}
}
