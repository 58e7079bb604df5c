package mapper

import (
	"encoding/json"
	"fmt"

	"github.com/uber/live-preview/src/lpd/entity"
	"github.com/uber/live-preview/src/lpd/model"
)

const (
	// MethodReady tells a peer that the host has registered it.
	MethodReady = "LiveComm.ready"
	// MethodReload asks a peer to reload its page.
	MethodReload = "Page.reload"
	// MethodExecFn asks a peer to run a named function.
	MethodExecFn = "LiveComm.execFn"
)

// DecodeLiveMessage parses a peer message. Only JSON objects are accepted.
func DecodeLiveMessage(message string) (*model.LiveMessage, error) {
	var m model.LiveMessage
	if err := json.Unmarshal([]byte(message), &m); err != nil {
		return nil, fmt.Errorf("decoding live message: %w", err)
	}
	return &m, nil
}

// LiveMessageToEditIntent extracts the edit requested by a peer message. It returns false for
// messages that are not edits.
func LiveMessageToEditIntent(m *model.LiveMessage) (entity.EditIntent, bool) {
	switch {
	case m.Move && m.SourceID != "" && m.TargetID != "":
		return entity.EditIntent{
			Kind:         entity.EditMove,
			TagID:        string(m.SourceID),
			TargetTagID:  string(m.TargetID),
			InsertAfter:  m.InsertAfter,
			InsertInside: m.InsertInside,
		}, true
	case m.UndoLivePreviewOperation:
		return entity.EditIntent{Kind: entity.EditUndo}, true
	case m.RedoLivePreviewOperation:
		return entity.EditIntent{Kind: entity.EditRedo}, true
	case m.TagID == "":
		return entity.EditIntent{}, false
	case m.Delete:
		return entity.EditIntent{Kind: entity.EditDelete, TagID: string(m.TagID)}, true
	case m.Duplicate:
		return entity.EditIntent{Kind: entity.EditDuplicate, TagID: string(m.TagID)}, true
	case m.LivePreviewTextEdit:
		return entity.EditIntent{Kind: entity.EditReplaceText, TagID: string(m.TagID), NewContent: m.NewContent}, true
	}
	return entity.EditIntent{}, false
}

// ReadyMessage is sent to a peer once the host has recorded its connection.
func ReadyMessage() string {
	b, _ := json.Marshal(model.HostRequest{Method: MethodReady})
	return string(b)
}

// ReloadMessage asks a peer to reload, bypassing its cache.
func ReloadMessage(id int64) string {
	b, _ := json.Marshal(model.HostRequest{
		Method: MethodReload,
		ID:     id,
		Params: model.ReloadParams{IgnoreCache: true},
	})
	return string(b)
}

// ExecFnMessage asks a peer to run the named function with the given arguments.
func ExecFnMessage(id int64, name string, args any) (string, error) {
	b, err := json.Marshal(model.HostRequest{
		Method: MethodExecFn,
		ID:     id,
		FnName: name,
		Params: args,
	})
	if err != nil {
		return "", fmt.Errorf("encoding arguments of %s: %w", name, err)
	}
	return string(b), nil
}
