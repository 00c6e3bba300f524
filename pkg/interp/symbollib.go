package interp

import (
	"fmt"

	"github.com/architect-io/zenboard/pkg/domain"
)

// hostSymbolResolver implements domain.SymbolLibraryResolver against the
// host's mediated file provider. Reading the library file itself goes
// through the same fetch/cache path every other .zen-adjacent file does
// (spec.md §4.A) — only the s-expression symbol-library parsing that would
// turn its bytes into pin definitions is out of scope (spec.md §1/§6, "The
// S-expression symbol-library parser is specified only by its contract").
// That parser is the collaborator this type stands in for: it surfaces a
// clear, specific error instead of a library Symbol silently resolving to
// zero required pads.
type hostSymbolResolver struct{ host *Host }

func (r *hostSymbolResolver) ResolvePins(libraryPath, libraryName string) ([]domain.PinDef, error) {
	if !r.host.Provider.Exists(libraryPath) {
		return nil, fmt.Errorf("symbol library %q not found", libraryPath)
	}
	if _, err := r.host.Provider.Read(r.host.Ctx, libraryPath); err != nil {
		return nil, fmt.Errorf("reading symbol library %q: %w", libraryPath, err)
	}
	return nil, fmt.Errorf("parsing the KiCad symbol-library format for %q (symbol %q) is not implemented by this core — §6 specifies the parser's contract only, as an external collaborator", libraryPath, libraryName)
}
