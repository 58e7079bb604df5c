package errors

import "fmt"

// ContentBoundaryError indicates that an element's text has no usable open-tag end or close-tag start,
// so its inner content cannot be located.
type ContentBoundaryError struct {
	TagID string
	Open  int
	Close int
}

// Error is an implementation of the error interface.
func (e *ContentBoundaryError) Error() string {
	return fmt.Sprintf("cannot locate content of tag %q: open tag end at %d, close tag start at %d", e.TagID, e.Open, e.Close)
}

// IsContentBoundary reports whether the error is a ContentBoundaryError.
func IsContentBoundary(e error) bool {
	var cb *ContentBoundaryError
	return As(e, &cb)
}
