package entity

import "go.lsp.dev/protocol"

// EditKind is the operation requested by a preview peer.
type EditKind string

const (
	// EditDelete removes the element.
	EditDelete EditKind = "DELETE"
	// EditDuplicate inserts a copy of the element after it.
	EditDuplicate EditKind = "DUPLICATE"
	// EditReplaceText replaces the element's inner content.
	EditReplaceText EditKind = "REPLACE_TEXT"
	// EditMove moves the element next to or into another element.
	EditMove EditKind = "MOVE"
	// EditUndo reverts the last document change.
	EditUndo EditKind = "UNDO"
	// EditRedo re-applies the last reverted change.
	EditRedo EditKind = "REDO"
)

// EditIntent is a structural edit requested from the preview, keyed by tag id.
type EditIntent struct {
	Kind  EditKind `json:"kind" zap:"kind"`
	TagID string   `json:"tagId" zap:"tagId"`

	// NewContent is the replacement inner content for EditReplaceText.
	NewContent string `json:"newContent,omitempty" zap:"-"`

	// TargetTagID, InsertAfter and InsertInside describe where EditMove puts the element.
	TargetTagID  string `json:"targetTagId,omitempty" zap:"targetTagId"`
	InsertAfter  bool   `json:"insertAfter,omitempty" zap:"insertAfter"`
	InsertInside bool   `json:"insertInside,omitempty" zap:"insertInside"`
}

// TagRange is the half-open source range an element occupies in its document.
type TagRange struct {
	TagID string
	Range protocol.Range
}
