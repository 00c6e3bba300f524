package interp

import (
	"fmt"

	"github.com/architect-io/zenboard/pkg/diag"
	"github.com/architect-io/zenboard/pkg/domain"
	"go.starlark.net/starlark"
)

// checkResult is one check() call recorded against a TestBench run.
type checkResult struct {
	Message string
	Passed  bool
}

// benchResult accumulates the check() calls made during one TestBench
// function's execution. Outside any TestBench, check() keeps its normal
// abort-the-module behavior (spec.md §7); inside one, failures are recorded
// here instead (SPEC_FULL.md §9 Open Question resolution).
type benchResult struct {
	Name   string
	Checks []checkResult
}

func (r *benchResult) failed() []checkResult {
	var out []checkResult
	for _, c := range r.Checks {
		if !c.Passed {
			out = append(out, c)
		}
	}
	return out
}

// testBenchValue is the value TestBench(...) returns: a read-only summary
// of the bench run, exposed to the evaluator as `.name`, `.passed`, `.failed`.
type testBenchValue struct{ r *benchResult }

func (v *testBenchValue) String() string {
	return fmt.Sprintf("TestBench(%q, %d/%d passed)", v.r.Name, len(v.r.Checks)-len(v.r.failed()), len(v.r.Checks))
}
func (v *testBenchValue) Type() string          { return "TestBench" }
func (v *testBenchValue) Freeze()               {}
func (v *testBenchValue) Truth() starlark.Bool  { return starlark.Bool(len(v.r.failed()) == 0) }
func (v *testBenchValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: TestBench") }

func (v *testBenchValue) Attr(name string) (starlark.Value, error) {
	switch name {
	case "name":
		return starlark.String(v.r.Name), nil
	case "passed":
		return starlark.MakeInt(len(v.r.Checks) - len(v.r.failed())), nil
	case "failed":
		return starlark.MakeInt(len(v.r.failed())), nil
	case "total":
		return starlark.MakeInt(len(v.r.Checks)), nil
	default:
		return nil, nil
	}
}
func (v *testBenchValue) AttrNames() []string { return []string{"name", "passed", "failed", "total"} }

var _ starlark.HasAttrs = (*testBenchValue)(nil)

// builtinTestBench implements `TestBench(name, fn)`: fn is called with no
// arguments; every check() it makes is recorded rather than aborting, and a
// summary diagnostic is emitted at Advice severity if any check failed.
func (h *Host) builtinTestBench(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		name string
		fn   starlark.Value
	)
	if err := starlark.UnpackArgs("TestBench", args, kwargs, "name", &name, "fn", &fn); err != nil {
		return nil, err
	}
	callable, ok := fn.(starlark.Callable)
	if !ok {
		return nil, fmt.Errorf("TestBench: fn must be callable")
	}

	result := &benchResult{Name: name}
	h.benchStack = append(h.benchStack, result)
	_, err := starlark.Call(thread, callable, nil, nil)
	h.benchStack = h.benchStack[:len(h.benchStack)-1]
	if err != nil {
		return nil, fmt.Errorf("TestBench %q: %w", name, err)
	}

	if failed := result.failed(); len(failed) > 0 {
		body := fmt.Sprintf("test bench %q: %d of %d checks failed", name, len(failed), len(result.Checks))
		h.Diags.Add(diag.New(body, diag.SeverityAdvice, currentFile(thread)))
	}

	return &testBenchValue{r: result}, nil
}

// builtinEquals implements the `equals(a, b)` matcher helper: structural
// equivalence for the domain value kinds that can appear inside a check() —
// nets compare by identity, interfaces by nominal type plus recursive field
// equality, scalars by Go equality.
func (h *Host) builtinEquals(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var a, c starlark.Value
	if err := starlark.UnpackArgs("equals", args, kwargs, "a", &a, "b", &c); err != nil {
		return nil, err
	}
	av, err := toGoValue(a)
	if err != nil {
		return nil, err
	}
	cv, err := toGoValue(c)
	if err != nil {
		return nil, err
	}
	return starlark.Bool(valuesEqual(av, cv)), nil
}

// builtinConnected implements the `connected(a, b)` matcher helper: true iff
// both arguments are Nets sharing an identity — electrical connectivity, as
// distinct from equals()'s broader structural comparison.
func (h *Host) builtinConnected(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var a, c starlark.Value
	if err := starlark.UnpackArgs("connected", args, kwargs, "a", &a, "b", &c); err != nil {
		return nil, err
	}
	na, aok := a.(*netValue)
	nc, cok := c.(*netValue)
	if !aok || !cok {
		return starlark.False, nil
	}
	return starlark.Bool(na.net.Equal(nc.net)), nil
}

func valuesEqual(a, b interface{}) bool {
	switch av := a.(type) {
	case *domain.Net:
		bv, ok := b.(*domain.Net)
		return ok && av.Equal(bv)
	case *domain.InterfaceValue:
		bv, ok := b.(*domain.InterfaceValue)
		if !ok || !av.SameType(bv) {
			return false
		}
		if len(av.Values) != len(bv.Values) {
			return false
		}
		for k, v := range av.Values {
			other, ok := bv.Values[k]
			if !ok || !valuesEqual(v, other) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}
