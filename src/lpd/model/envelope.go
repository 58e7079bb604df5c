package model

// Envelope is the relay wire form of an entity.Envelope, encoded with msgpack in binary websocket frames.
type Envelope struct {
	Type      string   `msgpack:"t"`
	ClientID  string   `msgpack:"c,omitempty"`
	ClientIDs []string `msgpack:"cs,omitempty"`
	URL       string   `msgpack:"u,omitempty"`
	Message   string   `msgpack:"m,omitempty"`
	MessageID string   `msgpack:"id,omitempty"`
	Origin    string   `msgpack:"o,omitempty"`
}
