package entity

// EnvelopeType discriminates the messages exchanged over the shared channel.
type EnvelopeType string

const (
	// EnvelopeConnect announces a new peer to the host.
	EnvelopeConnect EnvelopeType = "CONNECT"
	// EnvelopeClose announces that a peer went away.
	EnvelopeClose EnvelopeType = "CLOSE"
	// EnvelopeToHost carries a peer message addressed to the host.
	EnvelopeToHost EnvelopeType = "TO_HOST"
	// EnvelopeToPeer carries a host message addressed to peers listed in ClientIDs, or every peer when empty.
	EnvelopeToPeer EnvelopeType = "TO_PEER"
	// EnvelopeShutdown tells every peer that the host is going away.
	EnvelopeShutdown EnvelopeType = "SHUTDOWN"
)

// Valid reports whether t is one of the known envelope types.
func (t EnvelopeType) Valid() bool {
	switch t {
	case EnvelopeConnect, EnvelopeClose, EnvelopeToHost, EnvelopeToPeer, EnvelopeShutdown:
		return true
	}
	return false
}

// FromPeer reports whether envelopes of this type are produced by peers.
func (t EnvelopeType) FromPeer() bool {
	return t == EnvelopeConnect || t == EnvelopeClose || t == EnvelopeToHost
}

// Envelope is the unit broadcast on the shared channel. Addressing is carried in the
// envelope itself because the channel has none: every subscriber sees every envelope.
type Envelope struct {
	Type      EnvelopeType `json:"type" zap:"type"`
	ClientID  string       `json:"clientID,omitempty" zap:"clientID"`
	ClientIDs []string     `json:"clientIDs,omitempty" zap:"clientIDs"`
	URL       string       `json:"url,omitempty" zap:"url"`
	Message   string       `json:"message,omitempty" zap:"-"`
	MessageID string       `json:"messageID,omitempty" zap:"messageID"`
	// Origin identifies the sender so that it can recognise its own envelopes when they loop back.
	Origin string `json:"origin,omitempty" zap:"origin"`
}

// Addressed reports whether the envelope targets clientID. An empty recipient list is a broadcast.
func (e Envelope) Addressed(clientID string) bool {
	if len(e.ClientIDs) == 0 {
		return true
	}
	for _, id := range e.ClientIDs {
		if id == clientID {
			return true
		}
	}
	return false
}

// Size is the payload size used for transport metrics.
func (e Envelope) Size() int {
	return len(e.Message)
}
