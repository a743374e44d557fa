package jsast

import (
	"errors"
	"fmt"
	"sync"

	sitter "github.com/alexaandru/go-tree-sitter-bare"
)

// Sentinel errors for queries.
var (
	errNilLanguage = errors.New("jsast: tree-sitter language is nil")
	errNullNode    = errors.New("jsast: query target node is null")
)

// Capture is one named capture of a query match.
type Capture struct {
	Name  string
	Text  string
	Start int
	End   int
}

// Matcher compiles tree-sitter queries for one grammar and caches them.
type Matcher struct {
	cache  map[string]*sitter.Query
	lang   *sitter.Language
	mu     sync.RWMutex
	hits   int64
	misses int64
}

// NewMatcher creates a Matcher for the named grammar.
func NewMatcher(language string) (*Matcher, error) {
	lang := GetLanguage(language)
	if lang == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, language)
	}

	return &Matcher{
		cache: make(map[string]*sitter.Query),
		lang:  lang,
	}, nil
}

// Compile compiles pattern, reusing an earlier compilation.
func (m *Matcher) Compile(pattern string) (*sitter.Query, error) {
	m.mu.RLock()

	if cached, ok := m.cache[pattern]; ok {
		m.mu.RUnlock()
		m.mu.Lock()
		m.hits++
		m.mu.Unlock()

		return cached, nil
	}

	m.mu.RUnlock()

	if m.lang == nil {
		return nil, errNilLanguage
	}

	compiled, err := sitter.NewQuery(m.lang, []byte(pattern))
	if err != nil {
		return nil, fmt.Errorf("tree-sitter query compilation failed: %w", err)
	}

	m.mu.Lock()
	m.cache[pattern] = compiled
	m.misses++
	m.mu.Unlock()

	return compiled, nil
}

// CacheStats returns the number of cache hits and misses.
func (m *Matcher) CacheStats() (hits, misses int64) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.hits, m.misses
}

// Captures runs pattern against node and returns every capture of every
// match, in match order.
func (m *Matcher) Captures(pattern string, node sitter.Node, source []byte) ([]Capture, error) {
	if node.IsNull() {
		return nil, errNullNode
	}

	query, err := m.Compile(pattern)
	if err != nil {
		return nil, err
	}

	cursor := sitter.NewQueryCursor()
	matches := cursor.Matches(query, node, source)

	var captures []Capture

	for match := matches.Next(); match != nil; match = matches.Next() {
		for _, cap := range match.Captures {
			if cap.Node.IsNull() {
				continue
			}

			captures = append(captures, Capture{
				Name:  query.CaptureNameForID(cap.Index),
				Text:  cap.Node.Content(source),
				Start: int(cap.Node.StartByte()),
				End:   int(cap.Node.EndByte()),
			})
		}
	}

	return captures, nil
}

// Query patterns shared by the rewriter.
const (
	// PropertyQuery captures every member-access property name.
	PropertyQuery = `(member_expression property: (property_identifier) @prop)`
	// IdentifierQuery captures every identifier reference.
	IdentifierQuery = `(identifier) @id`
	// CalleeQuery captures the identifier callee of every call.
	CalleeQuery = `(call_expression function: (identifier) @callee)`
)

// Occurrences returns the spans of captures whose text equals text.
func (m *Matcher) Occurrences(pattern string, node sitter.Node, source []byte, text string) ([]Capture, error) {
	captures, err := m.Captures(pattern, node, source)
	if err != nil {
		return nil, err
	}

	var found []Capture

	for _, c := range captures {
		if c.Text == text {
			found = append(found, c)
		}
	}

	return found, nil
}
