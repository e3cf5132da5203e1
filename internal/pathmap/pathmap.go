// Package pathmap implements the virtual/platform path translation and
// traversal guard described in spec §4.1. It is the single boundary every
// platform file-manager call passes through.
package pathmap

import (
	"strings"

	"github.com/bolthost/runtime/internal/runtimeerr"
)

// Root is the fixed virtual workdir every runtime session's UI sees.
const Root = "/home/project"

var redeployTriggers = map[string]bool{
	"package.json":       true,
	"package-lock.json":  true,
	"pnpm-lock.yaml":     true,
	"yarn.lock":          true,
	"bun.lockb":          true,
	"docker-compose.yml": true,
}

var errInvalidPath = runtimeerr.BadRequest("Invalid runtime path")

// ToPlatformPath normalizes a virtual (UI-facing) path into the relative,
// slash-separated path the platform's file manager expects. Backslashes
// are normalized to forward slashes before any other processing.
func ToPlatformPath(virtualPath string) (string, error) {
	normalized := strings.ReplaceAll(virtualPath, "\\", "/")

	var rel string
	switch {
	case normalized == Root || normalized == Root+"/":
		rel = ""
	case strings.HasPrefix(normalized, Root+"/"):
		rel = strings.TrimPrefix(normalized, Root+"/")
	default:
		rel = strings.TrimLeft(normalized, "/")
	}

	if rel == "" {
		return "", nil
	}

	for _, segment := range strings.Split(rel, "/") {
		if segment == ".." {
			return "", errInvalidPath
		}
	}

	return rel, nil
}

// ToVirtualPath is the inverse of ToPlatformPath: given a platform-relative
// path, it returns the virtual path rooted at Root.
func ToVirtualPath(platformPath string) (string, error) {
	normalized := strings.ReplaceAll(platformPath, "\\", "/")
	trimmed := strings.TrimLeft(normalized, "/")

	if trimmed == "" {
		return Root, nil
	}

	for _, segment := range strings.Split(trimmed, "/") {
		if segment == ".." {
			return "", errInvalidPath
		}
	}

	return Root + "/" + trimmed, nil
}

// IsRedeployTriggerPath reports whether writing to virtualPath should
// trigger a compose redeploy: true iff the platform path, lowercased,
// equals one of a fixed set of dependency-manifest filenames at the
// project root. Subpaths (e.g. src/package.json) never trigger.
func IsRedeployTriggerPath(virtualPath string) bool {
	platformPath, err := ToPlatformPath(virtualPath)
	if err != nil {
		return false
	}
	return redeployTriggers[strings.ToLower(platformPath)]
}
