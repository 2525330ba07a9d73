package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/labstack/echo/v4"
)

type CORSConfig struct {
	AllowOrigins []string
	AllowMethods []string
	AllowHeaders []string
}

// CORS answers preflight requests and tags responses for allowed origins.
func CORS(cfg CORSConfig) echo.MiddlewareFunc {
	methods := strings.Join(cfg.AllowMethods, ", ")
	headers := strings.Join(cfg.AllowHeaders, ", ")
	wildcard := slices.Contains(cfg.AllowOrigins, "*")

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			origin := c.Request().Header.Get(echo.HeaderOrigin)
			if !wildcard && !slices.Contains(cfg.AllowOrigins, origin) {
				return next(c)
			}

			h := c.Response().Header()
			switch {
			case origin != "":
				h.Set(echo.HeaderAccessControlAllowOrigin, origin)
			case wildcard:
				h.Set(echo.HeaderAccessControlAllowOrigin, "*")
			}
			if methods != "" {
				h.Set(echo.HeaderAccessControlAllowMethods, methods)
			}
			if headers != "" {
				h.Set(echo.HeaderAccessControlAllowHeaders, headers)
			}

			if c.Request().Method == http.MethodOptions {
				return c.NoContent(http.StatusNoContent)
			}
			return next(c)
		}
	}
}
