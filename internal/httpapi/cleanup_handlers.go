package httpapi

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	"github.com/bolthost/runtime/internal/runtimeerr"
)

// cleanupSecretHeader carries the operator-only shared secret required to
// invoke the cleanup endpoint when one is configured (spec §6).
const cleanupSecretHeader = "x-runtime-cleanup-secret"

// handleCleanup implements POST /api/runtime/cleanup. When actorId is
// given, only that actor's composes are swept; otherwise every actor found
// across all projects is swept.
func (s *Server) handleCleanup(c *gin.Context) {
	if s.cfg.CleanupSecret != "" {
		provided := c.GetHeader(cleanupSecretHeader)
		if subtle.ConstantTimeCompare([]byte(provided), []byte(s.cfg.CleanupSecret)) != 1 {
			writeError(c, runtimeerr.Unauthorized("invalid or missing cleanup secret"))
			return
		}
	}

	var req cleanupRequest
	_ = c.ShouldBindJSON(&req)

	requestID := requestIDFrom(c)

	if req.ActorID != "" {
		if err := s.cleanup.Run(c.Request.Context(), req.ActorID, requestID); err != nil {
			writeError(c, err)
			return
		}
		writeOK(c, gin.H{"ok": true, "actorCount": 1})
		return
	}

	count, err := s.cleanup.RunAll(c.Request.Context(), requestID)
	if err != nil {
		writeError(c, err)
		return
	}
	writeOK(c, gin.H{"ok": true, "actorCount": count})
}
