package diag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromoteDeniedPassPromotesWarnings(t *testing.T) {
	d := NewDiagnostics(New("unstable ref", SeverityWarning, "main.zen"))
	NewPromoteDeniedPass([]string{"warnings"}).Apply(d)
	assert.Equal(t, SeverityError, d.Items[0].Severity, "expected promotion to Error after denying warnings")
}

func TestPromoteDeniedPassPromotesNestedChild(t *testing.T) {
	child := New("inner", SeverityWarning, "sub.zen")
	root := New("while loading sub.zen", SeverityWarning, "main.zen").WithChild(child)
	d := NewDiagnostics(root)
	NewPromoteDeniedPass([]string{"warnings"}).Apply(d)
	assert.Equal(t, SeverityError, d.Items[0].Child.Severity, "expected the nested child to be promoted too")
}

func TestPromoteDeniedPassNoopWithoutDeny(t *testing.T) {
	d := NewDiagnostics(New("unstable ref", SeverityWarning, "main.zen"))
	NewPromoteDeniedPass(nil).Apply(d)
	assert.Equal(t, SeverityWarning, d.Items[0].Severity, "expected severity unchanged when warnings aren't denied")
}

func TestFilterHiddenPassDropsMarkedDiagnostics(t *testing.T) {
	d := NewDiagnostics(
		New("visible", SeverityWarning, "main.zen"),
		New("<hidden>internal detail", SeverityWarning, "main.zen"),
	)
	FilterHiddenPass{}.Apply(d)
	require.Len(t, d.Items, 1)
	assert.Equal(t, "visible", d.Items[0].Body)
}

type fakeUnstableRefErr struct{ msg string }

func (e *fakeUnstableRefErr) Error() string      { return e.msg }
func (e *fakeUnstableRefErr) IsUnstableRef() bool { return true }

func TestLspFilterPassDropsOutOfWorkspace(t *testing.T) {
	inside := New("unstable ref", SeverityWarning, "/ws/main.zen").WithSourceError(&fakeUnstableRefErr{"x"})
	outside := New("unstable ref", SeverityWarning, "/other/main.zen").WithSourceError(&fakeUnstableRefErr{"y"})
	vendored := New("unstable ref", SeverityWarning, "/ws/vendor/dep.zen").WithSourceError(&fakeUnstableRefErr{"z"})
	d := NewDiagnostics(inside, outside, vendored)

	LspFilterPass{WorkspaceRoot: "/ws"}.Apply(d)

	require.Len(t, d.Items, 1)
	assert.Same(t, inside, d.Items[0], "expected only the in-workspace, non-vendored diagnostic kept")
}

func TestLspFilterPassKeepsNonUnstableRefDiagnostics(t *testing.T) {
	d := NewDiagnostics(New("missing pins", SeverityWarning, "/other/main.zen"))
	LspFilterPass{WorkspaceRoot: "/ws"}.Apply(d)
	assert.Len(t, d.Items, 1, "a non-unstable-ref diagnostic should never be dropped by LspFilterPass")
}

func TestAggregatePassCoalescesRepeatedWarnings(t *testing.T) {
	a := New("same body", SeverityWarning, "main.zen")
	b := New("same body", SeverityWarning, "main.zen")
	c := New("different body", SeverityWarning, "main.zen")
	d := NewDiagnostics(a, b, c)

	AggregatePass{}.Apply(d)

	require.Len(t, d.Items, 2, "expected one aggregated pair + one distinct item")
	bundle, ok := d.Items[0].SourceError.(*SuppressedDiagnostics)
	require.True(t, ok, "expected the representative diagnostic to carry a SuppressedDiagnostics bundle")
	assert.Len(t, bundle.Suppressed, 1)
}

func TestAggregatePassLeavesErrorsAlone(t *testing.T) {
	a := New("same body", SeverityError, "main.zen")
	b := New("same body", SeverityError, "main.zen")
	d := NewDiagnostics(a, b)
	AggregatePass{}.Apply(d)
	assert.Len(t, d.Items, 2, "AggregatePass must only coalesce Warnings, never Errors")
}

func TestSortPassOrdersBySeverity(t *testing.T) {
	d := NewDiagnostics(
		New("advice", SeverityAdvice, "x"),
		New("error", SeverityError, "x"),
		New("warning", SeverityWarning, "x"),
	)
	SortPass{}.Apply(d)
	got := []Severity{d.Items[0].Severity, d.Items[1].Severity, d.Items[2].Severity}
	assert.Equal(t, []Severity{SeverityWarning, SeverityError, SeverityAdvice}, got)
}

func TestBuildPipelineRunsInOrder(t *testing.T) {
	// Promotion runs before aggregation, so two duplicate warnings promoted
	// to Error are no longer eligible for aggregation (which only coalesces
	// Warning-severity diagnostics) — both survive distinctly.
	d := NewDiagnostics(
		New("dup", SeverityWarning, "main.zen"),
		New("dup", SeverityWarning, "main.zen"),
	)
	BuildPipeline([]string{"warnings"}).Run(d)
	require.Len(t, d.Items, 2, "expected both promoted before aggregation runs")
	for _, item := range d.Items {
		assert.Equal(t, SeverityError, item.Severity, "expected both denied warnings promoted to Error")
	}
}

func TestBuildPipelineAggregatesWhenNotPromoted(t *testing.T) {
	d := NewDiagnostics(
		New("dup", SeverityWarning, "main.zen"),
		New("dup", SeverityWarning, "main.zen"),
	)
	BuildPipeline(nil).Run(d)
	assert.Len(t, d.Items, 1, "expected aggregation of undenied duplicate warnings")
}
