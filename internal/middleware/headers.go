package middleware

import (
	"github.com/labstack/echo/v4"

	"edge-forwarder/internal/model"
)

// hopByHopHeaders are headers that should not be forwarded by proxies.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"TE",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// ResponseHeaders returns an Echo middleware that stamps every response with
// the JSON content type, disables caching and adds security headers. It also
// strips hop-by-hop headers from the inbound request.
//
// Headers are set before the handler runs so that they are present on every
// path, including responses written by the error handler.
func ResponseHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			for _, h := range hopByHopHeaders {
				c.Request().Header.Del(h)
			}

			h := c.Response().Header()
			h.Set(echo.HeaderContentType, model.ContentTypeJSON)
			h.Set(echo.HeaderCacheControl, "no-store")
			h.Set(echo.HeaderXContentTypeOptions, "nosniff")
			h.Set(echo.HeaderXFrameOptions, "DENY")

			return next(c)
		}
	}
}

// CORS returns an Echo middleware that echoes the request Origin back as
// Access-Control-Allow-Origin, with Vary: Origin. Requests without an Origin
// get neither header. Any origin is accepted.
func CORS() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if origin := c.Request().Header.Get(echo.HeaderOrigin); origin != "" {
				h := c.Response().Header()
				h.Set(echo.HeaderAccessControlAllowOrigin, origin)
				h.Add(echo.HeaderVary, echo.HeaderOrigin)
			}
			return next(c)
		}
	}
}
