package httpapi

import (
	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"

	"github.com/bolthost/runtime/internal/runtimeerr"
	"github.com/bolthost/runtime/internal/validator"
)

// reasonSanitizer strips HTML/control characters from the free-text
// redeploy reason before it is ever logged or stored.
var reasonSanitizer = bluemonday.StrictPolicy()

// handleRedeploy implements POST /api/runtime/deploy/redeploy.
func (s *Server) handleRedeploy(c *gin.Context) {
	var req redeployRequest
	_ = c.ShouldBindJSON(&req)
	if fieldErrs := validator.ValidateRequest(req); fieldErrs != nil {
		writeValidationError(c, fieldErrs)
		return
	}

	token := extractToken(c.GetHeader("Authorization"), "", c.Query("runtimeToken"))
	if token == "" {
		writeError(c, runtimeerr.MissingToken())
		return
	}

	reason := reasonSanitizer.Sanitize(req.Reason)
	log := requestLogger(c)
	if reason != "" {
		log.Info().Str("reason", reason).Msg("redeploy requested")
	}

	if err := s.orch.Redeploy(c.Request.Context(), token, requestIDFrom(c)); err != nil {
		writeError(c, err)
		return
	}

	writeOK(c, gin.H{"queued": true})
}
