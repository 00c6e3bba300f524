package interp

import "github.com/architect-io/zenboard/pkg/domain"

// frame is one entry of the elaboration scope stack (spec.md §4.E.1): the
// module instance currently being evaluated. Entering a Module(...) call
// pushes a frame; returning pops it and attaches the finished instance to
// its parent.
type frame struct {
	module *domain.Module
	parent *frame
}

func newFrame(m *domain.Module, parent *frame) *frame {
	return &frame{module: m, parent: parent}
}

// netNamer returns the name an allocated Net should carry. Net-name
// deduplication across multiple instantiations of the same module (spec.md
// §4.E.6) happens at flatten time, keyed by identity; this just records the
// user-supplied hint.
func (f *frame) netNamer() func(field string) string {
	return func(field string) string { return field }
}
