// Package factory builds identifiers and sample values.
package factory

import (
	"math/rand"

	"github.com/gofrs/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/uber/live-preview/src/lpd/entity"
	"go.lsp.dev/protocol"
)

// UUID is a user-defined factory for a random uuid.UUID.
func UUID() uuid.UUID {
	return uuid.Must(uuid.NewV4())
}

// ClientID returns a fresh peer or host identity.
func ClientID() string {
	return UUID().String()
}

// MessageID returns a time-ordered unique id for an envelope.
func MessageID() string {
	return ulid.Make().String()
}

// Envelope returns a peer message envelope from clientID with a fresh message id.
func Envelope(clientID, message string) entity.Envelope {
	return entity.Envelope{
		Type:      entity.EnvelopeToHost,
		ClientID:  clientID,
		Message:   message,
		MessageID: MessageID(),
		Origin:    clientID,
	}
}

// Range returns a random protocol.Range.
func Range() protocol.Range {
	start := protocol.Position{Line: uint32(rand.Intn(100)), Character: uint32(rand.Intn(100))}
	end := protocol.Position{Line: start.Line + uint32(rand.Intn(100)), Character: uint32(rand.Intn(100))}

	if start.Line == end.Line && start.Character > end.Character {
		end.Character = start.Character + uint32(rand.Intn(100))
	}

	return protocol.Range{
		Start: start,
		End:   end,
	}
}
