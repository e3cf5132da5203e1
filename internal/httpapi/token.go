package httpapi

import "strings"

// extractToken resolves the runtime token from the precedence order fixed
// by spec §4.8: Authorization bearer header, then body runtimeToken, then
// query runtimeToken. bodyToken is empty when the endpoint has no body or
// the body didn't carry one.
func extractToken(authHeader, bodyToken, queryToken string) string {
	if bearer, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
		bearer = strings.TrimSpace(bearer)
		if bearer != "" {
			return bearer
		}
	}
	if bodyToken != "" {
		return bodyToken
	}
	return queryToken
}
