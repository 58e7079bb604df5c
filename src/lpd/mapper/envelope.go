package mapper

import (
	"github.com/uber/live-preview/src/lpd/entity"
	"github.com/uber/live-preview/src/lpd/internal/errors"
	"github.com/uber/live-preview/src/lpd/model"
	"github.com/vmihailenco/msgpack/v5"
)

// EnvelopeToModel converts an envelope to its relay wire model.
func EnvelopeToModel(e entity.Envelope) model.Envelope {
	return model.Envelope{
		Type:      string(e.Type),
		ClientID:  e.ClientID,
		ClientIDs: e.ClientIDs,
		URL:       e.URL,
		Message:   e.Message,
		MessageID: e.MessageID,
		Origin:    e.Origin,
	}
}

// ModelToEnvelope converts a relay wire model to an envelope, rejecting unknown types and
// peer envelopes that do not name their client.
func ModelToEnvelope(m model.Envelope) (entity.Envelope, error) {
	e := entity.Envelope{
		Type:      entity.EnvelopeType(m.Type),
		ClientID:  m.ClientID,
		ClientIDs: m.ClientIDs,
		URL:       m.URL,
		Message:   m.Message,
		MessageID: m.MessageID,
		Origin:    m.Origin,
	}
	if !e.Type.Valid() {
		return entity.Envelope{}, &errors.MalformedEnvelopeError{Reason: "unknown type " + m.Type}
	}
	if e.Type.FromPeer() && e.ClientID == "" {
		return entity.Envelope{}, &errors.MalformedEnvelopeError{Reason: "missing client id on " + m.Type}
	}
	return e, nil
}

// EncodeEnvelope serializes an envelope for a binary relay frame.
func EncodeEnvelope(e entity.Envelope) ([]byte, error) {
	return msgpack.Marshal(EnvelopeToModel(e))
}

// DecodeEnvelope parses a binary relay frame.
func DecodeEnvelope(data []byte) (entity.Envelope, error) {
	var m model.Envelope
	if err := msgpack.Unmarshal(data, &m); err != nil {
		return entity.Envelope{}, &errors.MalformedEnvelopeError{Reason: "undecodable frame", Err: err}
	}
	return ModelToEnvelope(m)
}
