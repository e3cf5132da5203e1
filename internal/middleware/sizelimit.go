package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	// MaxRequestBodySize bounds a generic JSON request body.
	MaxRequestBodySize int64 = 1 * 1024 * 1024

	// MaxFileWriteBodySize bounds a file.write request, whose body carries
	// file content instead of a small control payload.
	MaxFileWriteBodySize int64 = 10 * 1024 * 1024
)

// RequestSizeLimiter limits the size of incoming HTTP requests
// to prevent DoS attacks via oversized payloads
func RequestSizeLimiter(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Skip for GET, HEAD, OPTIONS requests (no body)
		if c.Request.Method == "GET" || c.Request.Method == "HEAD" || c.Request.Method == "OPTIONS" {
			c.Next()
			return
		}

		// Get Content-Length header
		contentLength := c.Request.ContentLength

		// Check if Content-Length exceeds limit
		if contentLength > maxSize {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"error":      "Request entity too large",
				"message":    "Request body exceeds maximum allowed size",
				"max_size_mb": float64(maxSize) / (1024 * 1024),
			})
			return
		}

		// Wrap the request body with a LimitReader
		// This prevents reading more than maxSize bytes even if Content-Length is lying
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)

		c.Next()
	}
}

// DefaultSizeLimiter bounds ordinary control-plane request bodies.
func DefaultSizeLimiter() gin.HandlerFunc {
	return RequestSizeLimiter(MaxRequestBodySize)
}

// FileWriteSizeLimiter bounds the file.write endpoint's larger body.
func FileWriteSizeLimiter() gin.HandlerFunc {
	return RequestSizeLimiter(MaxFileWriteBodySize)
}
