package errors

import (
	"fmt"

	"go.lsp.dev/uri"
)

// ClientNotFoundError indicates that no connection is recorded for a peer.
type ClientNotFoundError struct {
	ClientID string
}

// Error is an implementation of the error interface.
func (n *ClientNotFoundError) Error() string {
	return fmt.Sprintf("client %q not found", n.ClientID)
}

// NotFoundClientID returns the client id and true if ClientNotFoundError is part of the error chain.
func NotFoundClientID(e error) (_ string, ok bool) {
	var nf *ClientNotFoundError
	if !As(e, &nf) {
		return "", false
	}
	return nf.ClientID, true
}

// DocumentNotFoundError indicates that a document is not open.
type DocumentNotFoundError struct {
	URI uri.URI
}

// Error is an implementation of the error interface.
func (n *DocumentNotFoundError) Error() string {
	return fmt.Sprintf("document %q not found", n.URI)
}
