// Package dialect describes the source assertion dialects the migrator
// understands and the output convention chosen for each.
package dialect

import (
	"errors"
	"fmt"
	"slices"
)

// Names of the supported source dialects.
const (
	Expect = "expect"
	Should = "should"
)

// Container matcher namespaces of the target dialect.
const (
	NamespaceJasmine = "jasmine"
	NamespaceExpect  = "expect"
)

// DefaultLibrary is the assertion library both dialects come from.
const DefaultLibrary = "chai"

// Sentinel errors for dialect resolution.
var (
	ErrUnknownDialect   = errors.New("unknown dialect")
	ErrUnknownNamespace = errors.New("unknown container namespace")
)

// Dialect is one source assertion syntax and how it is migrated.
type Dialect struct {
	// Name is Expect or Should.
	Name string
	// Library is the module specifier imports are matched against.
	Library string
	// Namespace prefixes container matchers such as arrayContaining.
	Namespace string
	// RequireBinding skips files with no explicit import of Library.
	RequireBinding bool
}

// New returns the default Dialect for name.
func New(name string) (Dialect, error) {
	switch name {
	case Expect:
		return Dialect{Name: Expect, Library: DefaultLibrary, Namespace: NamespaceJasmine}, nil
	case Should:
		return Dialect{Name: Should, Library: DefaultLibrary, Namespace: NamespaceExpect}, nil
	default:
		return Dialect{}, fmt.Errorf("%w: %q", ErrUnknownDialect, name)
	}
}

// MustNew is New for names known at compile time.
func MustNew(name string) Dialect {
	d, err := New(name)
	if err != nil {
		panic(err)
	}

	return d
}

// Names returns every supported dialect name in processing order.
func Names() []string {
	return []string{Expect, Should}
}

// Validate checks that the dialect is fully specified.
func (d Dialect) Validate() error {
	if !slices.Contains(Names(), d.Name) {
		return fmt.Errorf("%w: %q", ErrUnknownDialect, d.Name)
	}

	if d.Namespace != NamespaceJasmine && d.Namespace != NamespaceExpect {
		return fmt.Errorf("%w: %q", ErrUnknownNamespace, d.Namespace)
	}

	if d.Library == "" {
		return fmt.Errorf("dialect %s: empty library", d.Name)
	}

	return nil
}

// WithNamespace returns a copy of d emitting container matchers under ns.
func (d Dialect) WithNamespace(ns string) Dialect {
	d.Namespace = ns

	return d
}

// Resolve builds dialects for names, applying overrides keyed by name.
func Resolve(names []string, overrides map[string]Dialect) ([]Dialect, error) {
	resolved := make([]Dialect, 0, len(names))

	for _, name := range names {
		d, err := New(name)
		if err != nil {
			return nil, err
		}

		if o, ok := overrides[name]; ok {
			if o.Library != "" {
				d.Library = o.Library
			}

			if o.Namespace != "" {
				d.Namespace = o.Namespace
			}

			d.RequireBinding = o.RequireBinding
		}

		if err := d.Validate(); err != nil {
			return nil, err
		}

		resolved = append(resolved, d)
	}

	return resolved, nil
}
