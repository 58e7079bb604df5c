package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// TagID is an element id as sent by the preview. Browsers send it either as a number or as a string.
type TagID string

// UnmarshalJSON implements json.Unmarshaler.
func (t *TagID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = TagID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("tag id must be a string or a number: %w", err)
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return fmt.Errorf("tag id must be a string or a number: %w", err)
	}
	*t = TagID(n.String())
	return nil
}

// LiveMessage is a message sent by a preview peer to the host.
type LiveMessage struct {
	Method string `json:"method,omitempty"`

	LivePreviewEditEnabled bool   `json:"livePreviewEditEnabled,omitempty"`
	TagID                  TagID  `json:"tagId,omitempty"`
	Delete                 bool   `json:"delete,omitempty"`
	Duplicate              bool   `json:"duplicate,omitempty"`
	LivePreviewTextEdit    bool   `json:"livePreviewTextEdit,omitempty"`
	NewContent             string `json:"newContent,omitempty"`

	Move         bool  `json:"move,omitempty"`
	SourceID     TagID `json:"sourceId,omitempty"`
	TargetID     TagID `json:"targetId,omitempty"`
	InsertAfter  bool  `json:"insertAfter,omitempty"`
	InsertInside bool  `json:"insertInside,omitempty"`

	UndoLivePreviewOperation bool `json:"undoLivePreviewOperation,omitempty"`
	RedoLivePreviewOperation bool `json:"redoLivePreviewOperation,omitempty"`
}

// ReloadParams are the parameters of a Page.reload request.
type ReloadParams struct {
	IgnoreCache bool `json:"ignoreCache"`
}

// HostRequest is a message sent by the host to preview peers.
type HostRequest struct {
	Method string `json:"method"`
	ID     int64  `json:"id,omitempty"`
	Params any    `json:"params,omitempty"`
	FnName string `json:"fnName,omitempty"`
}
