package liveedit

import (
	"strings"

	"github.com/uber/live-preview/src/lpd/entity"
	"go.lsp.dev/protocol"
	"go.uber.org/zap"
)

// move relocates the source element before, after or inside the target element.
// When the source comes first it is inserted at the target and then removed; otherwise it is removed first,
// so the range that is resolved second is never invalidated by the first edit.
func (c *controller) move(doc Document, intent entity.EditIntent) error {
	src, ok := c.resolve(doc, intent.TagID)
	if !ok {
		return nil
	}
	dst, ok := c.resolve(doc, intent.TargetTagID)
	if !ok {
		return nil
	}
	if contains(src, dst) {
		c.logger.Debugw("move target lies inside the source, ignoring",
			zap.String("tagId", intent.TagID), zap.String("targetTagId", intent.TargetTagID))
		return nil
	}

	text, err := doc.GetRange(src.Start, src.End)
	if err != nil {
		return err
	}

	if before(src.Start, dst.Start) {
		if err := c.insertAt(doc, dst, intent, text); err != nil {
			return err
		}
		moved, ok := c.resolve(doc, intent.TagID)
		if !ok {
			return nil
		}
		return c.removeMoved(doc, moved)
	}

	if err := c.removeMoved(doc, src); err != nil {
		return err
	}
	dst, ok = c.resolve(doc, intent.TargetTagID)
	if !ok {
		return nil
	}
	return c.insertAt(doc, dst, intent, text)
}

func (c *controller) insertAt(doc Document, dst protocol.Range, intent entity.EditIntent, text string) error {
	indent, err := targetIndent(doc, dst.Start)
	if err != nil {
		return err
	}

	switch {
	case intent.InsertInside:
		target, err := doc.GetRange(dst.Start, dst.End)
		if err != nil {
			return err
		}
		openEnd := strings.IndexByte(target, '>')
		if openEnd < 0 {
			return nil
		}
		return insertAfter(doc, advance(dst.Start, target[:openEnd+1]), indent+c.cfg.IndentUnit, text)
	case intent.InsertAfter:
		return insertAfter(doc, dst.End, indent, text)
	default:
		return insertBefore(doc, dst.Start, indent, text)
	}
}

// targetIndent is the whitespace before the target on its line, or as many spaces as precede the text
// when the target does not start its line.
func targetIndent(doc Document, pos protocol.Position) (string, error) {
	prefix, err := doc.GetRange(protocol.Position{Line: pos.Line}, pos)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(prefix) == "" {
		return prefix, nil
	}
	n := len(prefix) - len(strings.TrimLeft(prefix, " \t\r\n\f\v"))
	return strings.Repeat(" ", n), nil
}

func insertAfter(doc Document, pos protocol.Position, indent, text string) error {
	return doc.ReplaceRange("\n"+indent+text, pos, pos)
}

func insertBefore(doc Document, pos protocol.Position, indent, text string) error {
	lineStart := protocol.Position{Line: pos.Line}
	line, _ := doc.LineText(pos.Line)
	if line != "" && strings.TrimSpace(line) == "" {
		return doc.ReplaceRange(indent+text, lineStart, protocol.Position{Line: pos.Line, Character: utf16Len(line)})
	}
	return doc.ReplaceRange(indent+text+"\n", lineStart, lineStart)
}

// removeMoved deletes the moved element and the blank lines it leaves behind.
func (c *controller) removeMoved(doc Document, r protocol.Range) error {
	if err := doc.ReplaceRange("", r.Start, r.End); err != nil {
		return err
	}

	line := r.Start.Line
	if text, ok := doc.LineText(line); ok && text != "" && strings.TrimSpace(text) == "" {
		if err := doc.ReplaceRange("", protocol.Position{Line: line}, protocol.Position{Line: line + 1}); err != nil {
			return err
		}
	}
	if line > 0 {
		if text, ok := doc.LineText(line - 1); ok && text != "" && strings.TrimSpace(text) == "" {
			return doc.ReplaceRange("", protocol.Position{Line: line - 1}, protocol.Position{Line: line})
		}
	}
	return nil
}
