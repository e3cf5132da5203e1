package httpapi

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/bolthost/runtime/internal/logger"
)

var httpLog = logger.Component("httpapi")

// requestLogger returns the package logger with the request id attached,
// when one is present on the gin context.
func requestLogger(c *gin.Context) *zerolog.Logger {
	l := httpLog.With().Str("request_id", requestIDFrom(c)).Logger()
	return &l
}
