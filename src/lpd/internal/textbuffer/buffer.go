// Package textbuffer holds document text together with the source ranges of instrumented elements,
// keeping those ranges attached to the right text as the document is edited.
package textbuffer

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/uber/live-preview/src/lpd/entity"
	protocolmapper "github.com/uber/live-preview/src/lpd/internal/protocol"
	"go.lsp.dev/protocol"
)

const _maxHistory = 100

// Mark is the byte span [Start, End) an element occupies.
type Mark struct {
	TagID string
	Start int
	End   int
}

type span struct {
	start, end int
}

type revision struct {
	text  string
	marks map[string]span
}

// Buffer is a mutable text document with tracked element marks and undo history.
// It is safe for concurrent use.
type Buffer struct {
	mu      sync.Mutex
	text    string
	mapper  *protocolmapper.TextOffsetMapper
	marks   map[string]span
	undo    []revision
	redo    []revision
	version int
	// batching is non-zero while a Batch is running; its edits share one undo entry.
	batching int
}

// New creates a buffer. Marks outside the text are ignored.
func New(text string, marks []Mark) *Buffer {
	b := &Buffer{marks: make(map[string]span, len(marks))}
	b.setText(text)
	for _, m := range marks {
		if m.Start >= 0 && m.Start < m.End && m.End <= len(text) {
			b.marks[m.TagID] = span{m.Start, m.End}
		}
	}
	return b
}

// Text returns the current content.
func (b *Buffer) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text
}

// Version increases with every change to the content.
func (b *Buffer) Version() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.version
}

// Marks returns the live marks ordered by start offset.
func (b *Buffer) Marks() []Mark {
	_, marks := b.Snapshot()
	return marks
}

// Snapshot returns the content together with the marks that apply to it.
func (b *Buffer) Snapshot() (string, []Mark) {
	b.mu.Lock()
	defer b.mu.Unlock()

	marks := make([]Mark, 0, len(b.marks))
	for id, s := range b.marks {
		marks = append(marks, Mark{TagID: id, Start: s.start, End: s.end})
	}
	sort.Slice(marks, func(i, j int) bool {
		if marks[i].Start != marks[j].Start {
			return marks[i].Start < marks[j].Start
		}
		return marks[i].End > marks[j].End
	})
	return b.text, marks
}

// GetRange returns the text between two positions.
func (b *Buffer) GetRange(from, to protocol.Position) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	start, end, err := b.mapper.RangeOffsets(protocol.Range{Start: from, End: to})
	if err != nil {
		return "", err
	}
	return b.text[start:end], nil
}

// ReplaceRange replaces the text between two positions. Marks after the edit shift with it,
// marks containing it stretch, and marks whose whole span is replaced are dropped.
func (b *Buffer) ReplaceRange(text string, from, to protocol.Position) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	start, end, err := b.mapper.RangeOffsets(protocol.Range{Start: from, End: to})
	if err != nil {
		return fmt.Errorf("replacing range: %w", err)
	}

	if b.batching == 0 {
		b.pushUndo()
	}
	b.redo = nil
	b.setText(b.text[:start] + text + b.text[end:])
	for id, s := range b.marks {
		if shifted, ok := shiftSpan(s, start, end, len(text)); ok {
			b.marks[id] = shifted
		} else {
			delete(b.marks, id)
		}
	}
	return nil
}

// Batch runs fn and records every change it makes as a single undo step.
func (b *Buffer) Batch(fn func() error) error {
	b.mu.Lock()
	outer := b.batching == 0
	before := b.version
	if outer {
		b.pushUndo()
	}
	b.batching++
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.batching--
	if outer && b.version == before {
		b.undo = b.undo[:len(b.undo)-1]
	}
	return err
}

// AddMark starts tracking a new element. It reports false when the id is taken or the span is invalid.
func (b *Buffer) AddMark(m Mark) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.marks[m.TagID]; ok || m.TagID == "" {
		return false
	}
	if m.Start < 0 || m.Start >= m.End || m.End > len(b.text) {
		return false
	}
	b.marks[m.TagID] = span{m.Start, m.End}
	return true
}

// LineText returns a 0-based line without its terminator.
func (b *Buffer) LineText(line uint32) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mapper.LineText(int(line))
}

// TagRange resolves a tag id to its current range.
func (b *Buffer) TagRange(tagID string) (entity.TagRange, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.marks[tagID]
	if !ok {
		return entity.TagRange{}, false
	}
	r, err := b.mapper.OffsetsRange(s.start, s.end)
	if err != nil {
		return entity.TagRange{}, false
	}
	return entity.TagRange{TagID: tagID, Range: r}, true
}

// Undo reverts the last change. It reports false when there is nothing to undo.
func (b *Buffer) Undo() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.undo) == 0 {
		return false
	}
	prev := b.undo[len(b.undo)-1]
	b.undo = b.undo[:len(b.undo)-1]
	b.redo = append(b.redo, b.current())
	b.restore(prev)
	return true
}

// Redo re-applies the last undone change. It reports false when there is nothing to redo.
func (b *Buffer) Redo() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.redo) == 0 {
		return false
	}
	next := b.redo[len(b.redo)-1]
	b.redo = b.redo[:len(b.redo)-1]
	b.pushUndo()
	b.restore(next)
	return true
}

// SetText replaces the whole content, e.g. after the file changed on disk. Marks are carried over
// to the new text through a diff; marks whose first or last character was removed are dropped.
// History is cleared.
func (b *Buffer) SetText(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if text == b.text {
		return
	}

	diffs := diffmatchpatch.New().DiffMain(b.text, text, false)
	for id, s := range b.marks {
		start, startDeleted := mapOffset(diffs, s.start)
		last, lastDeleted := mapOffset(diffs, s.end-1)
		if startDeleted || lastDeleted || last < start {
			delete(b.marks, id)
			continue
		}
		b.marks[id] = span{start, last + 1}
	}

	b.undo, b.redo = nil, nil
	b.setText(text)
}

func (b *Buffer) setText(text string) {
	b.text = text
	b.mapper = protocolmapper.NewTextOffsetMapper([]byte(text))
	b.version++
}

func (b *Buffer) current() revision {
	marks := make(map[string]span, len(b.marks))
	for id, s := range b.marks {
		marks[id] = s
	}
	return revision{text: b.text, marks: marks}
}

func (b *Buffer) restore(s revision) {
	b.setText(s.text)
	b.marks = s.marks
}

func (b *Buffer) pushUndo() {
	b.undo = append(b.undo, b.current())
	if len(b.undo) > _maxHistory {
		b.undo = b.undo[1:]
	}
}

// shiftSpan adjusts s for the replacement of [start, end) by n bytes.
func shiftSpan(s span, start, end, n int) (span, bool) {
	delta := n - (end - start)
	switch {
	case end <= s.start:
		s.start += delta
		s.end += delta
	case start >= s.end:
	case start <= s.start && end >= s.end:
		return s, false
	case s.start <= start && end <= s.end:
		s.end += delta
	case start < s.start:
		s.start = start + n
		s.end += delta
	default:
		s.end = start
	}
	return s, s.start < s.end
}

// mapOffset returns where loc lands in the target text of diffs, and whether it fell inside deleted text.
// It follows diffmatchpatch.DiffXIndex.
func mapOffset(diffs []diffmatchpatch.Diff, loc int) (int, bool) {
	src, dst := 0, 0
	lastSrc, lastDst := 0, 0
	var overshot diffmatchpatch.Diff
	for _, d := range diffs {
		if d.Type != diffmatchpatch.DiffInsert {
			src += len(d.Text)
		}
		if d.Type != diffmatchpatch.DiffDelete {
			dst += len(d.Text)
		}
		if src > loc {
			overshot = d
			break
		}
		lastSrc, lastDst = src, dst
	}
	if overshot.Type == diffmatchpatch.DiffDelete {
		return lastDst, true
	}
	return lastDst + (loc - lastSrc), false
}
