package domain

import (
	"fmt"
	"sort"

	zerr "github.com/architect-io/zenboard/pkg/errors"
)

// PinDef is one (signal_name, [pad_ids...]) entry of an explicit symbol
// definition.
type PinDef struct {
	SignalName string
	PadIDs     []string
}

// SymbolLibraryResolver resolves a library-reference Symbol's required pin
// set given its library path and symbol name. Parsing the upstream KiCad
// symbol-library s-expression format is out of scope (spec.md §1/§6: "The
// S-expression symbol-library parser is specified only by its contract") —
// this is the seam that parser plugs into, so a Symbol built with
// NewSymbolFromLibrary sources its required pads from an actual
// collaborator rather than silently defaulting to none.
type SymbolLibraryResolver interface {
	ResolvePins(libraryPath, libraryName string) ([]PinDef, error)
}

// Symbol describes a component's pin topology: either an explicit
// definition or a reference to a library file plus an optional symbol name.
type Symbol struct {
	Name string // optional display name

	// Explicit definition form.
	Definition []PinDef

	// Library-reference form.
	LibraryPath string
	LibraryName string // optional; required when the library has >1 symbol
	Resolver    SymbolLibraryResolver
}

// NewSymbolFromDefinition validates and builds a Symbol from an explicit
// pin definition, enforcing the invariant that pad ids are unique across
// the whole definition and every pad list is non-empty.
func NewSymbolFromDefinition(name string, defs []PinDef) (*Symbol, error) {
	seen := make(map[string]string, len(defs)) // pad id -> signal that claimed it
	for _, d := range defs {
		if len(d.PadIDs) == 0 {
			return nil, zerr.New(zerr.ErrCodeDuplicatePad,
				fmt.Sprintf("symbol definition: signal %q has no pads", d.SignalName))
		}
		for _, pad := range d.PadIDs {
			if owner, dup := seen[pad]; dup {
				return nil, zerr.New(zerr.ErrCodeDuplicatePad,
					fmt.Sprintf("symbol definition: pad %q used by both %q and %q", pad, owner, d.SignalName))
			}
			seen[pad] = d.SignalName
		}
	}
	return &Symbol{Name: name, Definition: append([]PinDef(nil), defs...)}, nil
}

// NewSymbolFromLibrary builds a library-reference Symbol. resolver may be
// nil, but then ResolvedDefinition (and anything built on it, including
// Component.ValidatePins) fails loudly instead of resolving to zero pads.
func NewSymbolFromLibrary(path, name string, resolver SymbolLibraryResolver) *Symbol {
	return &Symbol{LibraryPath: path, LibraryName: name, Resolver: resolver}
}

// IsLibraryReference reports whether this symbol is the library-reference
// form (as opposed to an explicit Definition).
func (s *Symbol) IsLibraryReference() bool {
	return s.LibraryPath != ""
}

// ResolvedDefinition returns this symbol's pin definitions, resolving them
// through Resolver for the library-reference form. Each call to a library
// symbol re-resolves rather than caching, since the resolver (a live
// library lookup) owns any caching it wants to do.
func (s *Symbol) ResolvedDefinition() ([]PinDef, error) {
	if !s.IsLibraryReference() {
		return s.Definition, nil
	}
	if s.Resolver == nil {
		return nil, fmt.Errorf("symbol: library reference %q (symbol %q) has no pad resolver configured", s.LibraryPath, s.LibraryName)
	}
	defs, err := s.Resolver.ResolvePins(s.LibraryPath, s.LibraryName)
	if err != nil {
		return nil, fmt.Errorf("symbol: resolving library reference %q (symbol %q): %w", s.LibraryPath, s.LibraryName, err)
	}
	return defs, nil
}

// RequiredPads returns the set of pad ids this symbol's definition requires
// a Component's pins map to cover, and the signal name each pad belongs to.
func (s *Symbol) RequiredPads() (map[string]string, error) {
	defs, err := s.ResolvedDefinition()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string)
	for _, d := range defs {
		for _, pad := range d.PadIDs {
			out[pad] = d.SignalName
		}
	}
	return out, nil
}

// SignalNames returns the declared signal names in definition order.
func (s *Symbol) SignalNames() ([]string, error) {
	defs, err := s.ResolvedDefinition()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.SignalName
	}
	return names, nil
}

// SortedSignalNames is a convenience for deterministic diagnostic output.
func (s *Symbol) SortedSignalNames() ([]string, error) {
	names, err := s.SignalNames()
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}
