// Package diag implements the elaboration core's diagnostics pipeline:
// severities, nested causes, and the ordered passes (promote/filter/
// aggregate/sort) that turn a raw diagnostic collection into what a caller
// (build, test, or an editor's LSP client) actually renders.
package diag

import (
	"fmt"
	"sort"
)

// Severity mirrors the evaluator's own severity levels so that a diagnostic
// produced deep inside the interpreter host carries the same vocabulary all
// the way out to rendering.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
	SeverityAdvice
	SeverityDisabled
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityAdvice:
		return "advice"
	case SeverityDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// sortOrder returns the pass-4 (Sort) ranking: Warning < Error < Advice < Disabled.
func (s Severity) sortOrder() int {
	switch s {
	case SeverityWarning:
		return 0
	case SeverityError:
		return 1
	case SeverityAdvice:
		return 2
	case SeverityDisabled:
		return 3
	default:
		return 4
	}
}

// Span is a resolved source location, attached to a diagnostic's primary
// complaint (e.g. the load() call site, or a pcb.toml alias value).
type Span struct {
	Path      string
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}

func (s *Span) String() string {
	if s == nil {
		return ""
	}
	return fmt.Sprintf("%s:%d:%d", s.Path, s.StartLine, s.StartCol)
}

// Diagnostic is a single nested diagnostic node: (severity, body, path,
// span?, source_error?, child?). Children form a linked list representing
// nested causes (e.g. "while loading X" wrapping the callee's own failure).
type Diagnostic struct {
	Severity    Severity
	Body        string
	Path        string
	Span        *Span
	SourceError error
	Child       *Diagnostic
}

// New creates a root diagnostic.
func New(body string, severity Severity, path string) *Diagnostic {
	return &Diagnostic{Severity: severity, Body: body, Path: path}
}

// WithSpan attaches a resolved span and returns the receiver for chaining.
func (d *Diagnostic) WithSpan(span *Span) *Diagnostic {
	d.Span = span
	return d
}

// WithSourceError attaches the originating structured error.
func (d *Diagnostic) WithSourceError(err error) *Diagnostic {
	d.SourceError = err
	return d
}

// WithChild nests a cause diagnostic under this one.
func (d *Diagnostic) WithChild(child *Diagnostic) *Diagnostic {
	d.Child = child
	return d
}

// Wrap produces a new diagnostic whose child is d, with body "while loading
// X" (or any caller-supplied wrapper body) and the call site's own path/span
// — the propagation policy from spec.md §7: every load/module-call site
// wraps the callee's diagnostics as a child, preserving the innermost span.
func (d *Diagnostic) Wrap(body, path string, span *Span) *Diagnostic {
	return New(body, d.Severity, path).WithSpan(span).WithChild(d)
}

// Innermost walks the child chain and returns the deepest diagnostic — the
// one tooling should point a cursor at.
func (d *Diagnostic) Innermost() *Diagnostic {
	cur := d
	for cur.Child != nil {
		cur = cur.Child
	}
	return cur
}

// Clone performs a shallow copy. AggregatePass uses it so attaching a
// SuppressedDiagnostics bundle leaves the original diagnostic untouched;
// PromoteDeniedPass changes Severity in place without cloning.
func (d *Diagnostic) Clone() *Diagnostic {
	cp := *d
	return &cp
}

// SuppressedDiagnostics is the source_error payload the Aggregate pass
// attaches to a representative warning, bundling the peers it absorbed.
type SuppressedDiagnostics struct {
	Suppressed []*Diagnostic
}

func (s *SuppressedDiagnostics) Error() string {
	return fmt.Sprintf("%d suppressed diagnostic(s)", len(s.Suppressed))
}

// Diagnostics is a mutable collection of diagnostics, threaded through an
// ordered sequence of passes.
type Diagnostics struct {
	Items []*Diagnostic
}

// NewDiagnostics wraps a slice (possibly nil) as a Diagnostics collection.
func NewDiagnostics(items ...*Diagnostic) *Diagnostics {
	return &Diagnostics{Items: items}
}

// Add appends a diagnostic to the collection.
func (d *Diagnostics) Add(diag *Diagnostic) {
	d.Items = append(d.Items, diag)
}

// HasErrors reports whether any diagnostic (at top level) is an Error.
func (d *Diagnostics) HasErrors() bool {
	for _, item := range d.Items {
		if item.Severity == SeverityError {
			return true
		}
	}
	return false
}

// SortBySeverityStable sorts a copy of diagnostics by the fixed severity
// ranking, stable so diagnostics within a severity keep encounter order.
func SortBySeverityStable(items []*Diagnostic) []*Diagnostic {
	out := append([]*Diagnostic(nil), items...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Severity.sortOrder() < out[j].Severity.sortOrder()
	})
	return out
}
