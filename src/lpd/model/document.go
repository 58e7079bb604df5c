package model

import (
	"github.com/uber/live-preview/src/lpd/internal/textbuffer"
	"go.lsp.dev/uri"
)

// Document is the repository layer model for a document opened from the project store.
type Document struct {
	URI  uri.URI
	Path string
	// Buffer holds the live text and the tag marks of its elements.
	Buffer *textbuffer.Buffer
	// SavedVersion is the buffer version last written to, or read from, the project store.
	SavedVersion int
}

// Dirty reports whether the buffer holds changes that were not saved.
func (d *Document) Dirty() bool {
	return d.Buffer.Version() != d.SavedVersion
}
