package httpapi

import "github.com/google/uuid"

// newActorID mints a fresh opaque actor identity for a browser with no
// existing bolt_actor_id cookie.
func newActorID() string {
	return "actor_" + uuid.New().String()
}
