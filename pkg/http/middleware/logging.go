package middleware

import (
	"time"

	"FxPulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// RequestLogging logs every request at debug and 5xx responses at error.
func RequestLogging(l *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req, res := c.Request(), c.Response()
			fields := []logger.Field{
				logger.String("method", req.Method),
				logger.String("route", routeLabel(c)),
				logger.Int("status", res.Status),
				logger.Duration("duration_ms", time.Since(start)),
				logger.String("remote", c.RealIP()),
			}
			if res.Status >= 500 {
				l.Error("http request failed", fields...)
			} else {
				l.Debug("http request", fields...)
			}
			return nil
		}
	}
}
