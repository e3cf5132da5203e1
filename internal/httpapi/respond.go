package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bolthost/runtime/internal/runtimeerr"
)

// writeError maps any error to the wire envelope and status code fixed by
// runtimeerr, per spec §7. Non-RuntimeError causes are wrapped as internal
// errors so a handler never needs its own fallback branch.
func writeError(c *gin.Context, err error) {
	re := runtimeerr.As(err)
	c.AbortWithStatusJSON(re.StatusCode, re.ToResponse())
}

// writeValidationError responds 400 with per-field messages folded into
// Details, the shape spec §7 calls "schema-flattening on validation errors".
func writeValidationError(c *gin.Context, fieldErrs map[string]string) {
	details := ""
	for field, msg := range fieldErrs {
		if details != "" {
			details += "; "
		}
		details += field + ": " + msg
	}
	writeError(c, runtimeerr.BadRequest("invalid request").WithDetails(details))
}

func writeOK(c *gin.Context, payload gin.H) {
	c.JSON(http.StatusOK, payload)
}
