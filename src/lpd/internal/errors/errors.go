package errors

import (
	stderr "errors"
	iofs "io/fs"
)

// New returns an error that formats as the given text.
// Each call to New returns a distinct error value even if the text is identical.
func New(msg string) error {
	return stderr.New(msg)
}

// Is and As re-export the standard helpers so callers need a single errors import.
var (
	Is = stderr.Is
	As = stderr.As
)

var (
	// ErrChannelClosed reports a send on a duplex channel that has already been closed.
	ErrChannelClosed = New("channel closed")
	// ErrNoLiveDocument reports that no document is currently shown in the preview.
	ErrNoLiveDocument = New("no live document")
)

// IsNotFound reports whether the error means the requested item does not exist.
// Only this classification drives a 404; every other failure is an internal error.
func IsNotFound(e error) bool {
	if e == nil {
		return false
	}
	if stderr.Is(e, iofs.ErrNotExist) {
		return true
	}
	var cnf *ClientNotFoundError
	var dnf *DocumentNotFoundError
	return stderr.As(e, &cnf) || stderr.As(e, &dnf)
}
