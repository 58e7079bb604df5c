package factory

import (
	"testing"

	"github.com/gofrs/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber/live-preview/src/lpd/entity"
)

func TestUUID(t *testing.T) {
	a, b := UUID(), UUID()
	assert.NotEqual(t, a, b)
	assert.Equal(t, uuid.V4, a.Version())
}

func TestClientID(t *testing.T) {
	id := ClientID()
	_, err := uuid.FromString(id)
	assert.NoError(t, err)
}

func TestMessageID(t *testing.T) {
	a := MessageID()
	b := MessageID()
	assert.NotEqual(t, a, b)

	parsed, err := ulid.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, a, parsed.String())
}

func TestEnvelope(t *testing.T) {
	env := Envelope("a", "hi")
	assert.Equal(t, entity.EnvelopeToHost, env.Type)
	assert.Equal(t, "a", env.ClientID)
	assert.Equal(t, "a", env.Origin)
	assert.NotEmpty(t, env.MessageID)
}

func TestRange(t *testing.T) {
	for i := 0; i < 50; i++ {
		r := Range()
		assert.True(t, r.Start.Line < r.End.Line || (r.Start.Line == r.End.Line && r.Start.Character <= r.End.Character))
	}
}
