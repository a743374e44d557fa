package chain

import (
	"maps"
	"slices"
	"strings"
	"unicode"
)

// Significant modifier names after canonicalisation.
const (
	ModNot     = "not"
	ModDeep    = "deep"
	ModOwn     = "own"
	ModNested  = "nested"
	ModOrdered = "ordered"
	ModAny     = "any"
	ModAll     = "all"
	ModInclude = "include"
	ModLength  = "length"
)

// languageChains carry no meaning and are dropped by the walker.
var languageChains = map[string]bool{
	"to": true, "be": true, "been": true, "is": true, "that": true,
	"which": true, "and": true, "has": true, "have": true, "with": true,
	"at": true, "of": true, "same": true, "but": true, "does": true,
	"still": true, "also": true,
	// a and an chain like connectors unless called.
	"a": true, "an": true,
}

// modifiers maps uncalled property names to their canonical modifier.
var modifiers = map[string]string{
	"not":      ModNot,
	"deep":     ModDeep,
	"own":      ModOwn,
	"nested":   ModNested,
	"ordered":  ModOrdered,
	"any":      ModAny,
	"all":      ModAll,
	"include":  ModInclude,
	"includes": ModInclude,
	"contain":  ModInclude,
	"contains": ModInclude,
	"length":   ModLength,
	"lengthOf": ModLength,
}

// propertyVerbs assert by mere access.
var propertyVerbs = map[string]bool{
	"ok": true, "true": true, "false": true, "null": true, "undefined": true,
	"NaN": true, "exist": true, "defined": true, "empty": true,
	"extensible": true, "frozen": true, "sealed": true, "finite": true,
	"arguments": true, "Arguments": true,
}

// stickyModifiers survive into trailing chains.
var stickyModifiers = map[string]bool{
	ModNot:  true,
	ModDeep: true,
}

// IsLanguageChain reports whether name is a meaningless connector.
func IsLanguageChain(name string) bool {
	return languageChains[name]
}

// IsPropertyVerb reports whether name asserts without being called.
func IsPropertyVerb(name string) bool {
	return propertyVerbs[name]
}

// Modifier returns the canonical modifier for an uncalled property name.
func Modifier(name string) (string, bool) {
	m, ok := modifiers[name]

	return m, ok
}

// Vocabulary returns every uncalled property name the walker accepts,
// sorted.
func Vocabulary() []string {
	names := slices.Collect(maps.Keys(languageChains))
	names = slices.AppendSeq(names, maps.Keys(modifiers))
	names = slices.AppendSeq(names, maps.Keys(propertyVerbs))
	slices.Sort(names)

	return names
}

// isTargetMatcher reports whether name belongs to an already migrated
// expect(...).matcher(...) call.
func isTargetMatcher(name string) bool {
	if name == "resolves" || name == "rejects" {
		return true
	}

	rest, ok := strings.CutPrefix(name, "to")
	if !ok || rest == "" {
		return false
	}

	return unicode.IsUpper(rune(rest[0]))
}
