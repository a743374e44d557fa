// Package jsast is the parse/print boundary of the migrator. It parses
// JavaScript and TypeScript sources with tree-sitter and exposes them as a
// Document: a read-only concrete syntax tree plus a set of byte-range edits
// that are applied on print, so untouched source formatting survives.
package jsast

import (
	"context"
	"errors"
	"fmt"
	"sync"

	sitter "github.com/alexaandru/go-tree-sitter-bare"
)

// Sentinel errors for parser operations.
var (
	ErrUnsupportedFile = errors.New("unsupported file type")
	ErrNoRootNode      = errors.New("jsast: no root node")
	errPoolType        = errors.New("jsast: pool returned unexpected type")
)

// Parser parses JavaScript-family sources. It is safe for concurrent use;
// tree-sitter parsers are pooled per grammar.
type Parser struct {
	pools sync.Map // grammar name -> *sync.Pool
}

// NewParser creates a Parser.
func NewParser() *Parser {
	return &Parser{}
}

// IsSupported reports whether filename has a JavaScript-family extension.
func (parser *Parser) IsSupported(filename string) bool {
	return LanguageForFile(filename) != ""
}

// Parse parses content using the grammar selected by filename's extension.
// The returned Document must be closed by the caller.
func (parser *Parser) Parse(ctx context.Context, filename string, content []byte) (*Document, error) {
	language := LanguageForFile(filename)
	if language == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, filename)
	}

	return parser.ParseLanguage(ctx, language, filename, content)
}

// ParseLanguage parses content with the named grammar.
func (parser *Parser) ParseLanguage(ctx context.Context, language, filename string, content []byte) (*Document, error) {
	pool, err := parser.pool(language)
	if err != nil {
		return nil, err
	}

	tsParser, ok := pool.Get().(*sitter.Parser)
	if !ok {
		return nil, errPoolType
	}

	defer pool.Put(tsParser)

	tree, err := tsParser.ParseString(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("jsast: failed to parse %s: %w", filename, err)
	}

	root := tree.RootNode()
	if root.IsNull() {
		tree.Close()

		return nil, ErrNoRootNode
	}

	return newDocument(filename, language, content, tree, root), nil
}

func (parser *Parser) pool(language string) (*sync.Pool, error) {
	if cached, ok := parser.pools.Load(language); ok {
		pool, castOK := cached.(*sync.Pool)
		if castOK {
			return pool, nil
		}
	}

	lang := GetLanguage(language)
	if lang == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, language)
	}

	pool := &sync.Pool{
		New: func() any {
			tsParser := sitter.NewParser()
			tsParser.SetLanguage(lang)

			return tsParser
		},
	}

	actual, _ := parser.pools.LoadOrStore(language, pool)

	stored, ok := actual.(*sync.Pool)
	if !ok {
		return nil, errPoolType
	}

	return stored, nil
}
