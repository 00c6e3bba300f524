package diag

import "strings"

// Pass is one stage of the diagnostics pipeline. Passes compose; the order
// they run in is fixed per caller (Build/Test/LSP each pick their own
// sequence — see Pipeline below).
type Pass interface {
	Apply(d *Diagnostics)
}

// PromoteDeniedPass promotes every Warning (recursively, including
// children) to Error when the caller's deny list contains "warnings".
type PromoteDeniedPass struct {
	DenyWarnings bool
}

// NewPromoteDeniedPass builds the pass from a raw `deny` list (e.g. from a
// --deny warnings CLI flag or a pcb.toml [lint] table).
func NewPromoteDeniedPass(deny []string) *PromoteDeniedPass {
	p := &PromoteDeniedPass{}
	for _, d := range deny {
		if d == "warnings" {
			p.DenyWarnings = true
		}
	}
	return p
}

func (p *PromoteDeniedPass) Apply(d *Diagnostics) {
	if !p.DenyWarnings {
		return
	}
	for _, item := range d.Items {
		promoteToError(item)
	}
}

func promoteToError(d *Diagnostic) {
	if d.Severity == SeverityWarning {
		d.Severity = SeverityError
	}
	if d.Child != nil {
		promoteToError(d.Child)
	}
}

// FilterHiddenPass drops diagnostics whose body contains a "<hidden>" marker.
type FilterHiddenPass struct{}

func (FilterHiddenPass) Apply(d *Diagnostics) {
	kept := d.Items[:0]
	for _, item := range d.Items {
		if !strings.Contains(item.Body, "<hidden>") {
			kept = append(kept, item)
		}
	}
	d.Items = kept
}

// UnstableRefError identifies a diagnostic's source error as naming an
// unstable remote reference, so LspFilterPass can recognize it without a
// direct dependency on the loadspec package (avoiding an import cycle).
type UnstableRefError interface {
	error
	IsUnstableRef() bool
}

// LspFilterPass drops unstable-reference warnings whose innermost path is
// outside the workspace root or inside vendor/, since an editor showing a
// vendored third-party file's warning is just noise.
type LspFilterPass struct {
	WorkspaceRoot string
}

func (p LspFilterPass) Apply(d *Diagnostics) {
	vendorPrefix := joinPath(p.WorkspaceRoot, "vendor")
	kept := d.Items[:0]
	for _, item := range d.Items {
		innermost := item.Innermost()
		if _, ok := innermost.SourceError.(UnstableRefError); ok {
			if !strings.HasPrefix(innermost.Path, p.WorkspaceRoot) || strings.HasPrefix(innermost.Path, vendorPrefix) {
				continue
			}
		}
		kept = append(kept, item)
	}
	d.Items = kept
}

func joinPath(root, sub string) string {
	if root == "" {
		return sub
	}
	if strings.HasSuffix(root, "/") {
		return root + sub
	}
	return root + "/" + sub
}

// AggregatePass coalesces Warnings sharing (innermost.body, innermost.path,
// innermost.span) into a single representative whose source_error carries a
// SuppressedDiagnostics bundle listing the peers.
type AggregatePass struct{}

func (AggregatePass) Apply(d *Diagnostics) {
	result := make([]*Diagnostic, 0, len(d.Items))

	type key struct {
		body, path string
		span       Span
	}
	keyOf := func(diag *Diagnostic) key {
		inner := diag.Innermost()
		var sp Span
		if inner.Span != nil {
			sp = *inner.Span
		}
		return key{inner.Body, inner.Path, sp}
	}
	index := make(map[key]int)

	for _, diagnostic := range d.Items {
		if diagnostic.Severity != SeverityWarning {
			result = append(result, diagnostic)
			continue
		}
		k := keyOf(diagnostic)
		if idx, ok := index[k]; ok {
			existing := result[idx]
			bundle, _ := existing.SourceError.(*SuppressedDiagnostics)
			if bundle == nil {
				bundle = &SuppressedDiagnostics{}
			} else {
				bundle = &SuppressedDiagnostics{Suppressed: append([]*Diagnostic(nil), bundle.Suppressed...)}
			}
			bundle.Suppressed = append(bundle.Suppressed, diagnostic)
			clone := existing.Clone()
			clone.SourceError = bundle
			result[idx] = clone
			continue
		}
		index[k] = len(result)
		result = append(result, diagnostic)
	}

	d.Items = result
}

// SortPass stable-sorts diagnostics by severity: Warning < Error < Advice < Disabled.
type SortPass struct{}

func (SortPass) Apply(d *Diagnostics) {
	d.Items = SortBySeverityStable(d.Items)
}

// Pipeline runs an ordered, fixed sequence of passes. Construct one per
// caller via BuildPipeline/TestPipeline/LSPPipeline.
type Pipeline struct {
	passes []Pass
}

func NewPipeline(passes ...Pass) *Pipeline {
	return &Pipeline{passes: passes}
}

func (p *Pipeline) Run(d *Diagnostics) {
	for _, pass := range p.passes {
		pass.Apply(d)
	}
}

// BuildPipeline is the sequence used by `build`/`bom`/`info`-style callers:
// promote denied severities, drop hidden diagnostics, aggregate repeated
// warnings, then sort for display.
func BuildPipeline(deny []string) *Pipeline {
	return NewPipeline(NewPromoteDeniedPass(deny), FilterHiddenPass{}, AggregatePass{}, SortPass{})
}

// TestPipeline is identical to BuildPipeline — test runs want the same
// promotion/aggregation semantics as a build.
func TestPipeline(deny []string) *Pipeline {
	return BuildPipeline(deny)
}

// LSPPipeline additionally drops out-of-workspace/vendor unstable-ref
// warnings before aggregating, since an editor only cares about the
// workspace it has open.
func LSPPipeline(deny []string, workspaceRoot string) *Pipeline {
	return NewPipeline(
		NewPromoteDeniedPass(deny),
		FilterHiddenPass{},
		LspFilterPass{WorkspaceRoot: workspaceRoot},
		AggregatePass{},
		SortPass{},
	)
}
