package jsast

import (
	"errors"
	"fmt"
	"slices"
	"unicode/utf16"
	"unicode/utf8"

	sitter "github.com/alexaandru/go-tree-sitter-bare"
)

// Sentinel errors for document edits.
var (
	ErrOverlappingEdit = errors.New("jsast: edit partially overlaps an existing edit")
	ErrEditOutOfRange  = errors.New("jsast: edit range out of bounds")
)

// edit replaces source[start:end] with text on print.
type edit struct {
	text  string
	start int
	end   int
}

// Document is a parsed file plus the pending edits against its source.
// Edits are kept sorted and non-overlapping. An edit that covers earlier
// edits subsumes them: callers build the covering text with Render, which
// already includes the inner edits.
type Document struct {
	tree     *sitter.Tree
	Filename string
	Language string
	source   []byte
	edits    []edit
	root     sitter.Node
}

func newDocument(filename, language string, source []byte, tree *sitter.Tree, root sitter.Node) *Document {
	return &Document{
		Filename: filename,
		Language: language,
		source:   source,
		tree:     tree,
		root:     root,
	}
}

// Close releases the underlying syntax tree.
func (doc *Document) Close() {
	if doc.tree != nil {
		doc.tree.Close()
		doc.tree = nil
	}
}

// Root returns the program node.
func (doc *Document) Root() sitter.Node {
	return doc.root
}

// Source returns the original, unedited source.
func (doc *Document) Source() []byte {
	return doc.source
}

// Text returns the original source text of n.
func (doc *Document) Text(n sitter.Node) string {
	start, end := Span(n)
	if start < 0 || end > len(doc.source) || start > end {
		return ""
	}

	return string(doc.source[start:end])
}

// Render returns the text of n with every edit inside its span applied.
func (doc *Document) Render(n sitter.Node) string {
	start, end := Span(n)

	return doc.RenderRange(start, end)
}

// RenderRange returns source[start:end] with every edit fully inside the
// range applied. Edits crossing the range boundary are ignored.
func (doc *Document) RenderRange(start, end int) string {
	if start < 0 || end > len(doc.source) || start > end {
		return ""
	}

	out := make([]byte, 0, end-start)
	cursor := start

	for _, ed := range doc.edits {
		if ed.start < start || ed.end > end {
			continue
		}

		out = append(out, doc.source[cursor:ed.start]...)
		out = append(out, ed.text...)
		cursor = ed.end
	}

	out = append(out, doc.source[cursor:end]...)

	return string(out)
}

// Replace schedules the replacement of n's span with text.
func (doc *Document) Replace(n sitter.Node, text string) error {
	start, end := Span(n)

	return doc.ReplaceRange(start, end, text)
}

// ReplaceRange schedules the replacement of source[start:end] with text.
func (doc *Document) ReplaceRange(start, end int, text string) error {
	if start < 0 || end > len(doc.source) || start > end {
		return fmt.Errorf("%w: [%d,%d) of %d", ErrEditOutOfRange, start, end, len(doc.source))
	}

	kept := doc.edits[:0:0]

	for _, ed := range doc.edits {
		switch {
		case ed.end <= start || ed.start >= end:
			kept = append(kept, ed)
		case ed.start >= start && ed.end <= end:
			// Subsumed by the new edit.
		default:
			return fmt.Errorf("%w: [%d,%d) vs [%d,%d)", ErrOverlappingEdit, start, end, ed.start, ed.end)
		}
	}

	kept = append(kept, edit{start: start, end: end, text: text})
	slices.SortFunc(kept, func(a, b edit) int { return a.start - b.start })
	doc.edits = kept

	return nil
}

// Prune removes n entirely. When n is alone on its line the whole line,
// including its newline, is removed.
func (doc *Document) Prune(n sitter.Node) error {
	start, end := Span(n)
	start, end = doc.lineSpan(start, end)

	return doc.ReplaceRange(start, end, "")
}

// Edited reports whether any edit is pending.
func (doc *Document) Edited() bool {
	return len(doc.edits) > 0
}

// Covered reports whether source[start:end] lies inside a pending edit.
func (doc *Document) Covered(start, end int) bool {
	for _, ed := range doc.edits {
		if ed.start <= start && end <= ed.end {
			return true
		}
	}

	return false
}

// Bytes returns the source with all pending edits applied.
func (doc *Document) Bytes() []byte {
	if len(doc.edits) == 0 {
		return slices.Clone(doc.source)
	}

	return []byte(doc.RenderRange(0, len(doc.source)))
}

// Indentation returns the leading whitespace of the line containing offset.
func (doc *Document) Indentation(offset int) string {
	lineStart := offset
	for lineStart > 0 && doc.source[lineStart-1] != '\n' {
		lineStart--
	}

	lineEnd := lineStart
	for lineEnd < len(doc.source) && (doc.source[lineEnd] == ' ' || doc.source[lineEnd] == '\t') {
		lineEnd++
	}

	return string(doc.source[lineStart:lineEnd])
}

// Position converts a byte offset into a zero-based line and a zero-based
// column counted in UTF-16 code units, as LSP clients expect.
func (doc *Document) Position(offset int) (line, column int) {
	return Position(doc.source, offset)
}

// Position converts a byte offset in source into a zero-based line and
// UTF-16 column.
func Position(source []byte, offset int) (line, column int) {
	if offset > len(source) {
		offset = len(source)
	}

	lineStart := 0

	for idx := range offset {
		if source[idx] == '\n' {
			line++
			lineStart = idx + 1
		}
	}

	for rest := source[lineStart:offset]; len(rest) > 0; {
		r, size := utf8.DecodeRune(rest)
		column += utf16.RuneLen(r)
		rest = rest[size:]
	}

	return line, column
}

// lineSpan widens [start,end) to cover the whole line when nothing but
// blanks share it with the span.
func (doc *Document) lineSpan(start, end int) (newStart, newEnd int) {
	src := doc.source

	lineStart := start
	for lineStart > 0 && isBlank(src[lineStart-1]) {
		lineStart--
	}

	lineEnd := end
	for lineEnd < len(src) && isBlank(src[lineEnd]) {
		lineEnd++
	}

	aloneAtStart := lineStart == 0 || src[lineStart-1] == '\n'

	if lineEnd < len(src) && src[lineEnd] == '\r' {
		lineEnd++
	}

	switch {
	case aloneAtStart && lineEnd < len(src) && src[lineEnd] == '\n':
		return lineStart, lineEnd + 1
	case aloneAtStart && lineEnd == len(src):
		return lineStart, lineEnd
	default:
		return start, end
	}
}

func isBlank(b byte) bool {
	return b == ' ' || b == '\t'
}
