package jsast

import (
	"path/filepath"
	"strings"
	"sync"
	"unsafe"

	sitter "github.com/alexaandru/go-tree-sitter-bare"

	"github.com/alexaandru/go-sitter-forest/javascript"
	"github.com/alexaandru/go-sitter-forest/tsx"
	"github.com/alexaandru/go-sitter-forest/typescript"
)

// Grammar names understood by the parser.
const (
	LangJavaScript = "javascript"
	LangTypeScript = "typescript"
	LangTSX        = "tsx"
)

// languageFuncs maps grammar names to their tree-sitter GetLanguage functions.
var languageFuncs = map[string]func() unsafe.Pointer{
	LangJavaScript: javascript.GetLanguage,
	LangTypeScript: typescript.GetLanguage,
	LangTSX:        tsx.GetLanguage,
}

// extensionLanguages maps lowercase file extensions to grammar names.
var extensionLanguages = map[string]string{
	".js":  LangJavaScript,
	".jsx": LangJavaScript,
	".mjs": LangJavaScript,
	".cjs": LangJavaScript,
	".ts":  LangTypeScript,
	".mts": LangTypeScript,
	".cts": LangTypeScript,
	".tsx": LangTSX,
}

var languageCache sync.Map

// GetLanguage returns the tree-sitter Language for the given name, or nil if not supported.
func GetLanguage(name string) *sitter.Language {
	if cached, ok := languageCache.Load(name); ok {
		lang, castOK := cached.(*sitter.Language)
		if castOK {
			return lang
		}
	}

	fn, ok := languageFuncs[name]
	if !ok {
		return nil
	}

	lang := sitter.NewLanguage(fn())
	languageCache.Store(name, lang)

	return lang
}

// LanguageForFile returns the grammar name for filename, or "" when the
// extension is not a JavaScript-family source.
func LanguageForFile(filename string) string {
	return extensionLanguages[strings.ToLower(filepath.Ext(filename))]
}

// Extensions returns every supported file extension.
func Extensions() []string {
	exts := make([]string, 0, len(extensionLanguages))
	for ext := range extensionLanguages {
		exts = append(exts, ext)
	}

	return exts
}
