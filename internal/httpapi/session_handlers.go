package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bolthost/runtime/internal/runtimeerr"
	"github.com/bolthost/runtime/internal/validator"
)

// handleSessionPost implements POST /api/runtime/session. A query string
// intent=delete routes to teardown instead of create: the browser's
// beforeunload handler tears a session down via sendBeacon (§4.13), which
// can only issue POST requests, so there is no way for it to send a real
// DELETE.
func (s *Server) handleSessionPost(c *gin.Context) {
	if c.Query("intent") == "delete" {
		s.deleteSession(c)
		return
	}

	var req sessionCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, runtimeerr.BadRequest("invalid request body").WithDetails(err.Error()))
		return
	}
	if fieldErrs := validator.ValidateRequest(req); fieldErrs != nil {
		writeValidationError(c, fieldErrs)
		return
	}

	actorID, _ := c.Cookie(actorCookieName)
	if actorID == "" {
		actorID = newActorID()
	}

	result, err := s.orch.Create(c.Request.Context(), actorID, req.ChatID, req.TemplateID, requestIDFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}

	setActorCookie(c, actorID)
	writeOK(c, gin.H{
		"runtimeToken":     result.Token,
		"session":          result.Session,
		"deploymentStatus": result.DeploymentStatus,
	})
}

// handleSessionGet implements GET /api/runtime/session.
func (s *Server) handleSessionGet(c *gin.Context) {
	token := extractToken(c.GetHeader("Authorization"), "", c.Query("runtimeToken"))
	if token == "" {
		writeError(c, runtimeerr.MissingToken())
		return
	}

	result, err := s.orch.Get(c.Request.Context(), token, requestIDFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}

	writeOK(c, gin.H{
		"sessionStatus":    result.Session.Status,
		"previewUrl":       result.Session.PreviewURL,
		"deploymentStatus": result.DeploymentStatus,
		"session":          result.Session,
	})
}

// handleSessionDelete implements DELETE /api/runtime/session.
func (s *Server) handleSessionDelete(c *gin.Context) {
	s.deleteSession(c)
}

func (s *Server) deleteSession(c *gin.Context) {
	var body struct {
		RuntimeToken string `json:"runtimeToken"`
	}
	_ = c.ShouldBindJSON(&body)

	token := extractToken(c.GetHeader("Authorization"), body.RuntimeToken, c.Query("runtimeToken"))
	if token == "" {
		writeError(c, runtimeerr.MissingToken())
		return
	}

	if err := s.orch.Delete(c.Request.Context(), token, requestIDFrom(c)); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// handleHeartbeat implements POST /api/runtime/session/heartbeat.
func (s *Server) handleHeartbeat(c *gin.Context) {
	var body struct {
		RuntimeToken string `json:"runtimeToken"`
	}
	_ = c.ShouldBindJSON(&body)

	token := extractToken(c.GetHeader("Authorization"), body.RuntimeToken, c.Query("runtimeToken"))
	if token == "" {
		writeError(c, runtimeerr.MissingToken())
		return
	}

	result, err := s.orch.Heartbeat(c.Request.Context(), token, requestIDFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}

	payload := gin.H{
		"status":    result.Status,
		"expiresAt": result.ExpiresAt,
	}
	if result.Token != "" {
		payload["runtimeToken"] = result.Token
	}
	writeOK(c, payload)
}
