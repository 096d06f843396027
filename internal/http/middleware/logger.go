package middleware

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Logger is a middleware that logs each HTTP request as one JSON line.
// Required fields:
// - request_id (taken from context locals set by RequestID middleware)
// - method
// - path
// - status
// - latency (in milliseconds, as float)
//
// It also installs a request-scoped child logger (carrying trace_id when a span
// is active) on the user context so handlers can retrieve it with zerolog.Ctx.
func Logger(log zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		rid, _ := c.Locals(RequestIDLocalKey).(string)

		lc := log.With().Str("request_id", rid)
		if sc := trace.SpanContextFromContext(c.UserContext()); sc.HasTraceID() {
			lc = lc.Str("trace_id", sc.TraceID().String())
		}
		reqLog := lc.Logger()
		c.SetUserContext(reqLog.WithContext(c.UserContext()))

		// Process request
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		var ev *zerolog.Event
		switch {
		case status >= fiber.StatusInternalServerError:
			ev = log.Error()
		case status >= fiber.StatusBadRequest:
			ev = log.Warn()
		default:
			ev = log.Info()
		}

		// Use only the path segment (no query string)
		ev.Str("request_id", rid).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Float64("latency", float64(time.Since(start).Microseconds())/1000).
			Msg("http_request")

		return err
	}
}
