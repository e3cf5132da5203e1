package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bolthost/runtime/internal/logger"
)

// StructuredLogger logs one zerolog event per request: method, path,
// status, duration, client IP, request id, and actor id when present.
func StructuredLogger() gin.HandlerFunc {
	log := logger.Component("http")

	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()

		evt := log.Info()
		switch {
		case status >= 500:
			evt = log.Error()
		case status >= 400:
			evt = log.Warn()
		}

		evt = evt.
			Str("request_id", GetRequestID(c)).
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP())

		if actorID, ok := c.Get("actorID"); ok {
			evt = evt.Interface("actor_id", actorID)
		}
		if len(c.Errors) > 0 {
			evt = evt.Str("errors", c.Errors.String())
		}
		evt.Msg("request handled")
	}
}
