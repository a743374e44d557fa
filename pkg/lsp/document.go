package lsp

import (
	"strings"
	"sync"
	"unicode/utf16"
	"unicode/utf8"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/Sumatoshi-tech/jestify/pkg/jsast"
	"github.com/Sumatoshi-tech/jestify/pkg/safeconv"
)

// Document is an open editor buffer.
type Document struct {
	Text    string
	Version protocol.Integer
}

// DocumentStore is a thread-safe store for open documents keyed by URI.
type DocumentStore struct {
	documents map[string]Document
	mu        sync.RWMutex
}

// NewDocumentStore creates an empty DocumentStore.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents: make(map[string]Document),
	}
}

// Set stores the document for uri.
func (ds *DocumentStore) Set(uri string, doc Document) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	ds.documents[uri] = doc
}

// Get retrieves the document for uri.
func (ds *DocumentStore) Get(uri string) (Document, bool) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	doc, ok := ds.documents[uri]

	return doc, ok
}

// Delete removes the document for uri.
func (ds *DocumentStore) Delete(uri string) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	delete(ds.documents, uri)
}

// Len returns the number of open documents.
func (ds *DocumentStore) Len() int {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	return len(ds.documents)
}

// positionAt converts a byte offset into an LSP position.
func positionAt(src []byte, offset int) protocol.Position {
	line, col := jsast.Position(src, offset)

	return protocol.Position{Line: safeconv.Uint32(line), Character: safeconv.Uint32(col)}
}

// rangeOf converts the byte span [start,end) into an LSP range.
func rangeOf(src []byte, start, end int) protocol.Range {
	return protocol.Range{Start: positionAt(src, start), End: positionAt(src, end)}
}

// offsetAt converts an LSP position into a byte offset, clamping to the
// end of the line or text.
func offsetAt(text string, pos protocol.Position) int {
	offset := 0

	for line := protocol.UInteger(0); line < pos.Line; line++ {
		idx := strings.IndexByte(text[offset:], '\n')
		if idx < 0 {
			return len(text)
		}

		offset += idx + 1
	}

	units := protocol.UInteger(0)

	for offset < len(text) && units < pos.Character {
		r, size := utf8.DecodeRuneInString(text[offset:])
		if r == '\n' {
			break
		}

		units += protocol.UInteger(utf16.RuneLen(r))
		offset += size
	}

	return offset
}

// applyChange applies one incremental edit.
func applyChange(text string, rng protocol.Range, newText string) string {
	start := offsetAt(text, rng.Start)

	end := offsetAt(text, rng.End)
	if end < start {
		end = start
	}

	return text[:start] + newText + text[end:]
}
