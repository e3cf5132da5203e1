// Package httpapi is the thin, stateless HTTP adaptor described in spec
// §4.8: it validates requests, extracts the runtime token, and delegates
// to the session orchestrator or platform client, translating results and
// errors to the wire envelopes fixed by spec §6/§7. It holds no state of
// its own beyond what gin's per-request context carries.
package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bolthost/runtime/internal/config"
	"github.com/bolthost/runtime/internal/middleware"
	"github.com/bolthost/runtime/internal/platform"
	"github.com/bolthost/runtime/internal/runtimeerr"
	"github.com/bolthost/runtime/internal/tokencodec"
)

// actorCookieName is the opaque per-browser actor identity cookie (spec §6).
const actorCookieName = "bolt_actor_id"

// actorCookieMaxAge is one year, in seconds.
const actorCookieMaxAge = 365 * 24 * 60 * 60

// OrchestratorAPI is the subset of *orchestrator.Orchestrator the HTTP
// surface depends on.
type OrchestratorAPI interface {
	Create(ctx context.Context, actorID, chatID, templateID, requestID string) (*CreateResult, error)
	Get(ctx context.Context, token, requestID string) (*GetResult, error)
	Heartbeat(ctx context.Context, token, requestID string) (*HeartbeatResult, error)
	Delete(ctx context.Context, token, requestID string) error
	WithClaims(token string) (*tokencodec.Claims, error)
	Redeploy(ctx context.Context, token, requestID string) error
}

// FilesAPI is the subset of the platform client the files endpoints use.
type FilesAPI interface {
	FileList(ctx context.Context, in platform.FileListInput, requestID string) ([]platform.FileEntry, error)
	FileRead(ctx context.Context, in platform.FileReadInput, requestID string) (*platform.FileContent, error)
	FileWrite(ctx context.Context, in platform.FileWriteInput, requestID string) error
	FileMkdir(ctx context.Context, in platform.FileMkdirInput, requestID string) error
	FileDelete(ctx context.Context, in platform.FileDeleteInput, requestID string) error
	FileSearch(ctx context.Context, in platform.FileSearchInput, requestID string) ([]platform.FileEntry, error)
}

// CleanupAPI is the subset of IdleSweeper the cleanup endpoint drives.
type CleanupAPI interface {
	Run(ctx context.Context, actorID, requestID string) error
	RunAll(ctx context.Context, requestID string) (int, error)
}

// Server wires the runtime HTTP surface's handlers to its dependencies.
// It carries no mutable state of its own.
type Server struct {
	cfg     *config.Config
	orch    OrchestratorAPI
	files   FilesAPI
	cleanup CleanupAPI
}

// NewServer builds a Server over the given dependencies.
func NewServer(cfg *config.Config, orch OrchestratorAPI, files FilesAPI, cleanup CleanupAPI) *Server {
	return &Server{cfg: cfg, orch: orch, files: files, cleanup: cleanup}
}

// NewRouter builds the gin.Engine for the runtime HTTP surface: the full
// middleware chain, health checks, and every endpoint in spec §6.
func (s *Server) NewRouter(rateLimiter *middleware.RateLimiter) *gin.Engine {
	r := gin.New()

	r.Use(middleware.RequestID())
	r.Use(middleware.StructuredLogger())
	r.Use(gin.Recovery())
	r.Use(middleware.Timeout(middleware.DefaultTimeoutConfig()))
	r.Use(middleware.SecurityHeaders())
	if rateLimiter != nil {
		r.Use(rateLimiter.Middleware())
	}

	r.GET("/healthz", s.handleHealthz)
	r.GET("/readyz", s.handleReadyz)

	api := r.Group("/api/runtime")
	api.Use(s.requireDokploy)
	{
		api.POST("/session", middleware.DefaultSizeLimiter(), s.handleSessionPost)
		api.GET("/session", s.handleSessionGet)
		api.DELETE("/session", middleware.DefaultSizeLimiter(), s.handleSessionDelete)
		api.POST("/session/heartbeat", middleware.DefaultSizeLimiter(), s.handleHeartbeat)

		api.GET("/files/list", s.handleFilesList)
		api.GET("/files/read", s.handleFilesRead)
		api.PUT("/files/write", middleware.FileWriteSizeLimiter(), s.handleFilesWrite)
		api.POST("/files/write", middleware.FileWriteSizeLimiter(), s.handleFilesWrite)
		api.POST("/files/mkdir", middleware.DefaultSizeLimiter(), s.handleFilesMkdir)
		api.DELETE("/files/delete", middleware.DefaultSizeLimiter(), s.handleFilesDelete)
		api.GET("/files/search", s.handleFilesSearch)

		api.POST("/deploy/redeploy", middleware.DefaultSizeLimiter(), s.handleRedeploy)
		api.POST("/cleanup", middleware.DefaultSizeLimiter(), s.handleCleanup)
	}

	return r
}

// requireDokploy rejects every /api/runtime/* request with 400 BAD_REQUEST
// when the configured provider isn't the in-scope remote mode, per §4.8.
func (s *Server) requireDokploy(c *gin.Context) {
	if s.cfg.Provider != config.ProviderDokploy {
		writeError(c, runtimeerr.BadRequest("runtime provider not configured for remote sessions"))
		return
	}
	c.Next()
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleReadyz(c *gin.Context) {
	if s.cfg.Provider == config.ProviderDokploy && s.cfg.DokployBaseURL == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// setActorCookie stamps the long-lived actor identity cookie per spec §6.
func setActorCookie(c *gin.Context, actorID string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(actorCookieName, actorID, actorCookieMaxAge, "/", "", false, true)
}

func requestIDFrom(c *gin.Context) string {
	return middleware.GetRequestID(c)
}
