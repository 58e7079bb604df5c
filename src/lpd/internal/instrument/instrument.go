// Package instrument assigns tag ids to the elements of an HTML document and locates their source ranges.
package instrument

import (
	"sort"
	"strconv"
	"strings"

	"github.com/uber/live-preview/src/lpd/internal/textbuffer"
	"golang.org/x/net/html"
)

// Attribute is the attribute carrying the tag id in served documents.
const Attribute = "data-lp-id"

var _voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true, "hr": true, "img": true,
	"input": true, "link": true, "meta": true, "source": true, "track": true, "wbr": true,
}

type openElement struct {
	id    string
	name  string
	start int
}

// Tags returns one mark per element, numbered from "1" in document order. An element spans from the
// start of its open tag to the end of its close tag. Elements left open end where their parent closes.
func Tags(text string) []textbuffer.Mark {
	z := html.NewTokenizer(strings.NewReader(text))
	var (
		marks  []textbuffer.Mark
		stack  []openElement
		offset int
		next   int
	)
	newID := func() string {
		next++
		return strconv.Itoa(next)
	}
	closeAt := func(i, end int) {
		for j := len(stack) - 1; j >= i; j-- {
			marks = append(marks, textbuffer.Mark{TagID: stack[j].id, Start: stack[j].start, End: end})
		}
		stack = stack[:i]
	}

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		start := offset
		offset += len(z.Raw())
		name, _ := z.TagName()

		switch tt {
		case html.StartTagToken:
			if _voidElements[string(name)] {
				marks = append(marks, textbuffer.Mark{TagID: newID(), Start: start, End: offset})
				continue
			}
			stack = append(stack, openElement{id: newID(), name: string(name), start: start})
		case html.SelfClosingTagToken:
			marks = append(marks, textbuffer.Mark{TagID: newID(), Start: start, End: offset})
		case html.EndTagToken:
			for i := len(stack) - 1; i >= 0; i-- {
				if stack[i].name == string(name) {
					closeAt(i+1, start)
					closeAt(i, offset)
					break
				}
			}
		}
	}
	closeAt(0, offset)

	sort.Slice(marks, func(i, j int) bool {
		return marks[i].Start < marks[j].Start
	})
	return marks
}

// Annotate writes each mark's tag id into its open tag as the Attribute attribute.
func Annotate(text string, marks []textbuffer.Mark) string {
	type insertion struct {
		at   int
		attr string
	}
	insertions := make([]insertion, 0, len(marks))
	for _, m := range marks {
		at, ok := tagNameEnd(text, m.Start)
		if !ok {
			continue
		}
		insertions = append(insertions, insertion{at: at, attr: " " + Attribute + `="` + m.TagID + `"`})
	}
	sort.Slice(insertions, func(i, j int) bool {
		return insertions[i].at < insertions[j].at
	})

	var sb strings.Builder
	sb.Grow(len(text) + len(insertions)*16)
	last := 0
	for _, ins := range insertions {
		sb.WriteString(text[last:ins.at])
		sb.WriteString(ins.attr)
		last = ins.at
	}
	sb.WriteString(text[last:])
	return sb.String()
}

// tagNameEnd returns the offset just past the tag name of the open tag at start.
func tagNameEnd(text string, start int) (int, bool) {
	if start < 0 || start >= len(text) || text[start] != '<' {
		return 0, false
	}
	i := start + 1
	for i < len(text) && !strings.ContainsRune(" \t\r\n\f/>", rune(text[i])) {
		i++
	}
	if i == start+1 || i == len(text) {
		return 0, false
	}
	return i, true
}
