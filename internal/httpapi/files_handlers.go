package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/bolthost/runtime/internal/pathmap"
	"github.com/bolthost/runtime/internal/platform"
	"github.com/bolthost/runtime/internal/runtimeerr"
	"github.com/bolthost/runtime/internal/validator"
)

// fileMaxQueryPathBytes bounds the `path` query parameter, per §4.8's "≤ 4
// KiB paths" constraint on endpoints that take path as a query string
// rather than a validated JSON body.
const fileMaxQueryPathBytes = 4096

// fileMaxSearchQueryBytes bounds the `query` parameter on files/search.
const fileMaxSearchQueryBytes = 512

// resolveComposeID extracts the runtime token from the request and
// verifies it, returning the composeId every file operation is scoped to.
func (s *Server) resolveComposeID(c *gin.Context, bodyToken string) (string, string, bool) {
	token := extractToken(c.GetHeader("Authorization"), bodyToken, c.Query("runtimeToken"))
	if token == "" {
		writeError(c, runtimeerr.MissingToken())
		return "", "", false
	}
	claims, err := s.orch.WithClaims(token)
	if err != nil {
		writeError(c, err)
		return "", "", false
	}
	return claims.ComposeID, token, true
}

func (s *Server) handleFilesList(c *gin.Context) {
	composeID, _, ok := s.resolveComposeID(c, "")
	if !ok {
		return
	}

	virtualPath := c.Query("path")
	if len(virtualPath) > fileMaxQueryPathBytes {
		writeError(c, runtimeerr.BadRequest("path exceeds maximum length"))
		return
	}
	platformPath, err := pathmap.ToPlatformPath(virtualPath)
	if err != nil {
		writeError(c, err)
		return
	}

	entries, err := s.files.FileList(c.Request.Context(), platform.FileListInput{ComposeID: composeID, Path: platformPath}, requestIDFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}

	writeOK(c, gin.H{"entries": withVirtualPaths(entries)})
}

func (s *Server) handleFilesRead(c *gin.Context) {
	composeID, _, ok := s.resolveComposeID(c, "")
	if !ok {
		return
	}

	virtualPath := c.Query("path")
	if virtualPath == "" {
		writeError(c, runtimeerr.BadRequest("path is required"))
		return
	}
	if len(virtualPath) > fileMaxQueryPathBytes {
		writeError(c, runtimeerr.BadRequest("path exceeds maximum length"))
		return
	}
	platformPath, err := pathmap.ToPlatformPath(virtualPath)
	if err != nil {
		writeError(c, err)
		return
	}

	content, err := s.files.FileRead(c.Request.Context(), platform.FileReadInput{ComposeID: composeID, Path: platformPath}, requestIDFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}

	vp, err := pathmap.ToVirtualPath(content.PlatformPath)
	if err != nil {
		writeError(c, err)
		return
	}

	writeOK(c, gin.H{"file": gin.H{
		"name":         content.Name,
		"path":         content.PlatformPath,
		"type":         content.Type,
		"size":         content.Size,
		"modifiedAt":   content.ModifiedAt,
		"content":      content.Content,
		"encoding":     content.Encoding,
		"isBinary":     content.IsBinary,
		"virtualPath":  vp,
	}})
}

func (s *Server) handleFilesWrite(c *gin.Context) {
	var req fileWriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, runtimeerr.BadRequest("invalid request body").WithDetails(err.Error()))
		return
	}
	if fieldErrs := validator.ValidateRequest(req); fieldErrs != nil {
		writeValidationError(c, fieldErrs)
		return
	}

	composeID, token, ok := s.resolveComposeID(c, req.RuntimeToken)
	if !ok {
		return
	}

	platformPath, err := pathmap.ToPlatformPath(req.Path)
	if err != nil {
		writeError(c, err)
		return
	}

	err = s.files.FileWrite(c.Request.Context(), platform.FileWriteInput{
		ComposeID: composeID,
		Path:      platformPath,
		Content:   req.Content,
		Encoding:  req.Encoding,
		Overwrite: true,
	}, requestIDFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}

	if pathmap.IsRedeployTriggerPath(req.Path) {
		if err := s.orch.Redeploy(c.Request.Context(), token, requestIDFrom(c)); err != nil {
			writeError(c, err)
			return
		}
	}

	writeOK(c, gin.H{"ok": true})
}

func (s *Server) handleFilesMkdir(c *gin.Context) {
	var req fileMkdirRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, runtimeerr.BadRequest("invalid request body").WithDetails(err.Error()))
		return
	}
	if fieldErrs := validator.ValidateRequest(req); fieldErrs != nil {
		writeValidationError(c, fieldErrs)
		return
	}

	composeID, _, ok := s.resolveComposeID(c, "")
	if !ok {
		return
	}

	platformPath, err := pathmap.ToPlatformPath(req.Path)
	if err != nil {
		writeError(c, err)
		return
	}

	if err := s.files.FileMkdir(c.Request.Context(), platform.FileMkdirInput{ComposeID: composeID, Path: platformPath}, requestIDFrom(c)); err != nil {
		writeError(c, err)
		return
	}

	writeOK(c, gin.H{"ok": true})
}

func (s *Server) handleFilesDelete(c *gin.Context) {
	var req fileDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, runtimeerr.BadRequest("invalid request body").WithDetails(err.Error()))
		return
	}
	if fieldErrs := validator.ValidateRequest(req); fieldErrs != nil {
		writeValidationError(c, fieldErrs)
		return
	}

	composeID, _, ok := s.resolveComposeID(c, "")
	if !ok {
		return
	}

	platformPath, err := pathmap.ToPlatformPath(req.Path)
	if err != nil {
		writeError(c, err)
		return
	}

	err = s.files.FileDelete(c.Request.Context(), platform.FileDeleteInput{
		ComposeID: composeID,
		Path:      platformPath,
		Recursive: req.Recursive,
	}, requestIDFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}

	writeOK(c, gin.H{"ok": true})
}

func (s *Server) handleFilesSearch(c *gin.Context) {
	composeID, _, ok := s.resolveComposeID(c, "")
	if !ok {
		return
	}

	query := c.Query("query")
	if query == "" {
		writeError(c, runtimeerr.BadRequest("query is required"))
		return
	}
	if len(query) > fileMaxSearchQueryBytes {
		writeError(c, runtimeerr.BadRequest("query exceeds maximum length"))
		return
	}

	virtualPath := c.Query("path")
	if len(virtualPath) > fileMaxQueryPathBytes {
		writeError(c, runtimeerr.BadRequest("path exceeds maximum length"))
		return
	}
	var platformPath string
	if virtualPath != "" {
		var err error
		platformPath, err = pathmap.ToPlatformPath(virtualPath)
		if err != nil {
			writeError(c, err)
			return
		}
	}

	entries, err := s.files.FileSearch(c.Request.Context(), platform.FileSearchInput{
		ComposeID: composeID,
		Query:     query,
		Path:      platformPath,
	}, requestIDFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}

	writeOK(c, gin.H{"entries": withVirtualPaths(entries)})
}

// withVirtualPaths projects each entry's platform path to its virtual
// counterpart for the browser, alongside the original fields.
func withVirtualPaths(entries []platform.FileEntry) []gin.H {
	out := make([]gin.H, 0, len(entries))
	for _, e := range entries {
		vp, err := pathmap.ToVirtualPath(e.PlatformPath)
		if err != nil {
			continue
		}
		out = append(out, gin.H{
			"name":        e.Name,
			"path":        e.PlatformPath,
			"type":        e.Type,
			"size":        e.Size,
			"modifiedAt":  e.ModifiedAt,
			"virtualPath": vp,
		})
	}
	return out
}
