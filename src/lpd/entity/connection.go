package entity

import "time"

// ClientConnection is the host's record of a connected preview peer.
type ClientConnection struct {
	ClientID    string    `json:"clientID" zap:"clientID"`
	URL         string    `json:"url" zap:"url"`
	ConnectedAt time.Time `json:"connectedAt" zap:"connectedAt"`
}
