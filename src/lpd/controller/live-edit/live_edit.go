// Package liveedit applies structural edits made in the preview to the live document source.
package liveedit

import (
	"context"
	"fmt"
	"strings"

	"github.com/uber-go/tally"
	"github.com/uber/live-preview/src/lpd/entity"
	"github.com/uber/live-preview/src/lpd/internal/errors"
	"github.com/uber/live-preview/src/lpd/repository/document"
	"go.lsp.dev/protocol"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	_nameKey   = "live-edit"
	_configKey = "liveEdit"

	_defaultIndentUnit = "    "
)

// Document is the editable source of the live document.
type Document interface {
	GetRange(from, to protocol.Position) (string, error)
	ReplaceRange(text string, from, to protocol.Position) error
	LineText(line uint32) (string, bool)
	TagRange(tagID string) (entity.TagRange, bool)
}

// History is implemented by documents that support undo and redo.
type History interface {
	Undo() bool
	Redo() bool
}

// Batcher is implemented by documents that can group several edits into one undo step.
type Batcher interface {
	Batch(fn func() error) error
}

// LiveDocumentProvider returns the document currently shown in the preview.
type LiveDocumentProvider interface {
	CurrentLiveDocument(ctx context.Context) (Document, bool)
}

// Controller applies edit intents to the live document.
type Controller interface {
	// Apply performs the edit. Stale targets are ignored and reported as success.
	Apply(ctx context.Context, intent entity.EditIntent) error
}

// Config is the liveEdit block of the config files.
type Config struct {
	IndentUnit string `yaml:"indentUnit"`
	AutoSave   bool   `yaml:"autoSave"`
}

// Params are inbound parameters to initialize a new live edit bridge.
type Params struct {
	fx.In

	Config    config.Provider
	Logger    *zap.SugaredLogger
	Stats     tally.Scope
	Documents document.Repository
}

type controller struct {
	cfg       Config
	logger    *zap.SugaredLogger
	stats     tally.Scope
	documents LiveDocumentProvider
}

// New creates a live edit bridge over the document repository.
func New(p Params) (Controller, error) {
	cfg := Config{IndentUnit: _defaultIndentUnit}
	if err := p.Config.Get(_configKey).Populate(&cfg); err != nil {
		return nil, fmt.Errorf("getting config field %q: %w", _configKey, err)
	}
	if strings.TrimSpace(cfg.IndentUnit) != "" {
		return nil, fmt.Errorf("%s.indentUnit must be whitespace, got %q", _configKey, cfg.IndentUnit)
	}

	return newController(cfg, p.Logger, p.Stats, repositoryProvider{p.Documents}), nil
}

func newController(cfg Config, logger *zap.SugaredLogger, stats tally.Scope, documents LiveDocumentProvider) *controller {
	return &controller{
		cfg:       cfg,
		logger:    logger.With("plugin", _nameKey),
		stats:     stats.SubScope("live_edit"),
		documents: documents,
	}
}

type repositoryProvider struct {
	repo document.Repository
}

func (p repositoryProvider) CurrentLiveDocument(ctx context.Context) (Document, bool) {
	buf, ok := p.repo.CurrentLiveDocument(ctx)
	if !ok {
		return nil, false
	}
	return buf, true
}

func (c *controller) Apply(ctx context.Context, intent entity.EditIntent) error {
	doc, ok := c.documents.CurrentLiveDocument(ctx)
	if !ok {
		c.logger.Debugw("no live document, ignoring edit", zap.String("kind", string(intent.Kind)))
		return nil
	}

	var err error
	switch intent.Kind {
	case entity.EditDelete:
		err = batch(doc, func() error { return c.delete(doc, intent.TagID) })
	case entity.EditDuplicate:
		err = batch(doc, func() error { return c.duplicate(doc, intent.TagID) })
	case entity.EditReplaceText:
		err = c.replaceText(doc, intent.TagID, intent.NewContent)
	case entity.EditMove:
		err = batch(doc, func() error { return c.move(doc, intent) })
	case entity.EditUndo, entity.EditRedo:
		c.undoRedo(doc, intent.Kind)
	default:
		return fmt.Errorf("unknown edit kind %q", intent.Kind)
	}

	c.stats.Tagged(map[string]string{"kind": string(intent.Kind)}).Counter("edits").Inc(1)
	if err != nil {
		c.logger.Warnw("edit failed", zap.String("kind", string(intent.Kind)), zap.String("tagId", intent.TagID), zap.Error(err))
	}
	return err
}

func batch(doc Document, fn func() error) error {
	if b, ok := doc.(Batcher); ok {
		return b.Batch(fn)
	}
	return fn()
}

// resolve finds the range of a tag, logging when the tag no longer exists.
func (c *controller) resolve(doc Document, tagID string) (protocol.Range, bool) {
	if tagID == "" {
		return protocol.Range{}, false
	}
	r, ok := doc.TagRange(tagID)
	if !ok {
		c.stats.Counter("stale_targets").Inc(1)
		c.logger.Debugw("tag not found, ignoring edit", zap.String("tagId", tagID))
		return protocol.Range{}, false
	}
	return r.Range, true
}

func (c *controller) delete(doc Document, tagID string) error {
	r, ok := c.resolve(doc, tagID)
	if !ok {
		return nil
	}
	if err := doc.ReplaceRange("", r.Start, r.End); err != nil {
		return err
	}
	return removeBlankLine(doc, r.Start)
}

// removeBlankLine joins the line at pos with the previous one when the line is left blank.
func removeBlankLine(doc Document, pos protocol.Position) error {
	if pos.Line == 0 {
		return nil
	}
	line, ok := doc.LineText(pos.Line)
	if !ok || strings.TrimSpace(line) != "" {
		return nil
	}
	prev, _ := doc.LineText(pos.Line - 1)
	return doc.ReplaceRange("", protocol.Position{Line: pos.Line - 1, Character: utf16Len(prev)}, pos)
}

func (c *controller) duplicate(doc Document, tagID string) error {
	r, ok := c.resolve(doc, tagID)
	if !ok {
		return nil
	}
	text, err := doc.GetRange(r.Start, r.End)
	if err != nil {
		return err
	}
	indent, err := doc.GetRange(protocol.Position{Line: r.Start.Line}, r.Start)
	if err != nil {
		return err
	}

	if strings.TrimSpace(indent) != "" {
		return doc.ReplaceRange(text, r.Start, r.Start)
	}
	if err := doc.ReplaceRange("\n", r.End, r.End); err != nil {
		return err
	}
	next := protocol.Position{Line: r.End.Line + 1}
	return doc.ReplaceRange(indent+text, next, next)
}

func (c *controller) replaceText(doc Document, tagID, newContent string) error {
	r, ok := c.resolve(doc, tagID)
	if !ok {
		return nil
	}
	text, err := doc.GetRange(r.Start, r.End)
	if err != nil {
		return err
	}

	openEnd, closeStart, err := contentBoundaries(tagID, text)
	if err != nil {
		return err
	}
	from := advance(r.Start, text[:openEnd+1])
	to := advance(r.Start, text[:closeStart])
	return doc.ReplaceRange(newContent, from, to)
}

// contentBoundaries locates the inner content of an element: after the first '>' and before the last '<'.
// Whitespace around the content is part of it, so a replacement drops it.
func contentBoundaries(tagID, text string) (openEnd int, closeStart int, err error) {
	openEnd = strings.IndexByte(text, '>')
	closeStart = strings.LastIndexByte(text, '<')
	if openEnd < 0 || closeStart < 0 || openEnd >= closeStart {
		return 0, 0, &errors.ContentBoundaryError{TagID: tagID, Open: openEnd, Close: closeStart}
	}
	return openEnd, closeStart, nil
}

func (c *controller) undoRedo(doc Document, kind entity.EditKind) {
	h, ok := doc.(History)
	if !ok {
		c.logger.Debugw("document has no history", zap.String("kind", string(kind)))
		return
	}
	var done bool
	if kind == entity.EditUndo {
		done = h.Undo()
	} else {
		done = h.Redo()
	}
	if !done {
		c.logger.Debugw("nothing to "+strings.ToLower(string(kind)))
	}
}
