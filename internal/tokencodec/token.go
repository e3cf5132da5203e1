// Package tokencodec signs and verifies the opaque runtime session tokens
// handed to the browser editor (spec §4.3). Tokens are HMAC-SHA256 JWTs
// carrying a fixed claim shape; the server never persists them — deletion
// of the underlying compose is the only revocation mechanism.
package tokencodec

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bolthost/runtime/internal/runtimeerr"
)

// SchemaVersion is the only claim schema version this codec accepts.
const SchemaVersion = 1

// Claims is the fixed claim shape bound into every session token.
type Claims struct {
	Version       int    `json:"v"`
	ActorID       string `json:"actorId"`
	ChatID        string `json:"chatId"`
	ProjectID     string `json:"projectId"`
	EnvironmentID string `json:"environmentId"`
	ComposeID     string `json:"composeId"`
	Domain        string `json:"domain"`
	jwt.RegisteredClaims
}

// Sign produces a signed, opaque token string binding claims for ttl
// seconds from now. iat/exp are always stamped fresh; any iat/exp already
// present on claims is overwritten.
func Sign(claims Claims, secret string, ttlSec int64) (string, error) {
	now := time.Now()
	claims.Version = SchemaVersion
	claims.RegisteredClaims = jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(ttlSec) * time.Second)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", runtimeerr.Wrap(runtimeerr.CodeInternal, "failed to sign runtime token", err)
	}
	return signed, nil
}

// Verify parses and validates a token string against secret, returning the
// bound claims. It rejects a bad signature, the "none" algorithm, an
// unsupported schema version, or an expired token.
func Verify(tokenString, secret string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, runtimeerr.Unauthorized("runtime token expired")
		}
		return nil, runtimeerr.MissingToken().WithDetails(err.Error())
	}
	if !token.Valid {
		return nil, runtimeerr.MissingToken()
	}
	if claims.Version != SchemaVersion {
		return nil, runtimeerr.MissingToken().WithDetails("unsupported token schema version")
	}
	return claims, nil
}
