// Package model contains the repository and wire layer representations of live preview data.
package model

import "time"

// Connection is the repository layer model for a connected preview peer.
type Connection struct {
	ClientID    string
	URL         string
	ConnectedAt time.Time
}
