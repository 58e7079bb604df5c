package errors

import "fmt"

// MalformedEnvelopeError indicates that a frame received from the shared channel could not be understood.
type MalformedEnvelopeError struct {
	Reason string
	Err    error
}

// Error is an implementation of the error interface.
func (e *MalformedEnvelopeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed envelope: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed envelope: %s", e.Reason)
}

// Unwrap returns the decode error, if any.
func (e *MalformedEnvelopeError) Unwrap() error {
	return e.Err
}

// IsBadEnvelope reports whether the error came from an undecodable or incomplete envelope.
func IsBadEnvelope(e error) bool {
	var me *MalformedEnvelopeError
	return As(e, &me)
}
