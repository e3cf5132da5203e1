package metadatacodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatParseRoundTrip(t *testing.T) {
	m := Metadata{
		ActorID:       "actor-1",
		ChatID:        "chat-1",
		CreatedAt:     1000,
		LastSeenAt:    1000,
		IdleTTLSec:    900,
		RolloutCohort: CohortStable,
	}
	desc, err := Format(m)
	require.NoError(t, err)
	assert.Contains(t, desc, Sentinel)

	parsed := Parse(desc)
	require.NotNil(t, parsed)
	assert.Equal(t, m.ActorID, parsed.ActorID)
	assert.Equal(t, m.ChatID, parsed.ChatID)
	assert.Equal(t, SchemaVersion, parsed.Version)
	assert.True(t, parsed.Matches("actor-1", "chat-1"))
	assert.False(t, parsed.Matches("actor-2", "chat-1"))
}

func TestParseMissingSentinel(t *testing.T) {
	assert.Nil(t, Parse(`{"actorId":"a","chatId":"c"}`))
}

func TestParseInvalidJSON(t *testing.T) {
	assert.Nil(t, Parse(Sentinel+"not-json"))
}

func TestParseWrongVersion(t *testing.T) {
	assert.Nil(t, Parse(Sentinel+`{"schemaVersion":2,"actorId":"a","chatId":"c"}`))
}

func TestParseMissingActorOrChat(t *testing.T) {
	assert.Nil(t, Parse(Sentinel+`{"schemaVersion":1,"actorId":"","chatId":"c"}`))
	assert.Nil(t, Parse(Sentinel+`{"schemaVersion":1,"actorId":"a","chatId":""}`))
}

func TestExpiresAt(t *testing.T) {
	m := Metadata{LastSeenAt: 1000, IdleTTLSec: 60}
	assert.Equal(t, int64(1060), m.ExpiresAt())
}
