package liveedit

import (
	"strings"

	lpdprotocol "github.com/uber/live-preview/src/lpd/internal/protocol"
	"go.lsp.dev/protocol"
)

// advance returns the position reached after text, starting at pos.
func advance(pos protocol.Position, text string) protocol.Position {
	i := strings.LastIndexByte(text, '\n')
	if i < 0 {
		return protocol.Position{Line: pos.Line, Character: pos.Character + utf16Len(text)}
	}
	return protocol.Position{
		Line:      pos.Line + uint32(strings.Count(text, "\n")),
		Character: utf16Len(text[i+1:]),
	}
}

func utf16Len(s string) uint32 {
	return uint32(lpdprotocol.UTF16Len([]byte(s)))
}

func before(a, b protocol.Position) bool {
	return a.Line < b.Line || (a.Line == b.Line && a.Character < b.Character)
}

// contains reports whether inner lies within outer, boundaries included.
func contains(outer, inner protocol.Range) bool {
	return !before(inner.Start, outer.Start) && !before(outer.End, inner.End)
}
