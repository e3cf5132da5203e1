// Package metadatacodec encodes and decodes SessionMetadata, the small JSON
// envelope the orchestrator stashes in a compose's description field so the
// compose is self-describing (spec §3, §4.4).
package metadatacodec

import "encoding/json"

// Sentinel prefixes every description the orchestrator writes. A compose
// without this prefix is not owned by the system.
const Sentinel = "BOLT_RUNTIME:"

// SchemaVersion is the only metadata schema version this codec accepts.
const SchemaVersion = 1

// Cohort is the rollout cohort a session was created against.
type Cohort string

const (
	CohortStable Cohort = "stable"
	CohortCanary Cohort = "canary"
)

// Metadata is the session metadata serialized into a compose description.
type Metadata struct {
	Version      int    `json:"schemaVersion"`
	ActorID      string `json:"actorId"`
	ChatID       string `json:"chatId"`
	CreatedAt    int64  `json:"createdAt"`
	LastSeenAt   int64  `json:"lastSeenAt"`
	IdleTTLSec   int64  `json:"idleTtlSec"`
	RolloutCohort Cohort `json:"rolloutCohort,omitempty"`
}

// Format serializes metadata into the sentinel-prefixed description string.
func Format(m Metadata) (string, error) {
	m.Version = SchemaVersion
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return Sentinel + string(b), nil
}

// Parse decodes a compose description into Metadata. It returns nil (no
// error) when the description is missing the sentinel, isn't valid JSON,
// has a schema version other than 1, or is missing actorId/chatId — all of
// which mean "this compose isn't ours," not a hard failure.
func Parse(description string) *Metadata {
	if len(description) < len(Sentinel) || description[:len(Sentinel)] != Sentinel {
		return nil
	}
	payload := description[len(Sentinel):]

	var m Metadata
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		return nil
	}
	if m.Version != SchemaVersion {
		return nil
	}
	if m.ActorID == "" || m.ChatID == "" {
		return nil
	}
	return &m
}

// Matches reports whether parsed metadata belongs to the given actor/chat.
func (m *Metadata) Matches(actorID, chatID string) bool {
	return m != nil && m.ActorID == actorID && m.ChatID == chatID
}

// ExpiresAt returns the unix-seconds timestamp at which this metadata's
// session is considered idle-expired.
func (m *Metadata) ExpiresAt() int64 {
	return m.LastSeenAt + m.IdleTTLSec
}
