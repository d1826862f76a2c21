package middleware

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"gearshop/pkg/metrics"
)

// RequestLogger returns middleware that attaches a request-scoped zerolog
// logger to the request context, logs the outcome and counts requests.
func RequestLogger(reg *metrics.Registry) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			rid := req.Header.Get(echo.HeaderXRequestID)
			if rid == "" {
				rid = uuid.NewString()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, rid)

			lctx := log.With().
				Str("request_id", rid).
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Str("remote_ip", c.RealIP())
			if sid := req.Header.Get("X-Session-ID"); sid != "" {
				lctx = lctx.Str("session_id", sid)
			}
			logger := lctx.Logger()
			c.SetRequest(req.WithContext(logger.WithContext(req.Context())))

			err := next(c)
			if err != nil {
				// let echo write the response so the status below is final
				c.Error(err)
			}

			status := c.Response().Status
			route := c.Path()
			if route == "" {
				route = req.URL.Path
			}
			labels := metrics.Labels{
				"method": req.Method,
				"route":  route,
				"status": statusClass(status),
			}
			reg.Inc(c.Request().Context(), metrics.HTTPRequests, labels, 1)

			if status >= 500 || err != nil {
				logger.Error().
					Err(err).
					Int("status", status).
					Dur("duration", time.Since(start)).
					Msg("http request failed")
				reg.Inc(c.Request().Context(), metrics.HTTPRequestErrors, labels, 1)
			} else {
				logger.Info().
					Int("status", status).
					Dur("duration", time.Since(start)).
					Msg("http request served")
			}
			return nil
		}
	}
}

func statusClass(code int) string {
	switch {
	case code >= 100 && code < 600:
		return string(rune('0'+code/100)) + "xx"
	default:
		return "0"
	}
}
