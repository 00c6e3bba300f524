package interp

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	zerr "github.com/architect-io/zenboard/pkg/errors"
	"github.com/architect-io/zenboard/pkg/loadspec"
	"github.com/architect-io/zenboard/pkg/schematic"
	"github.com/architect-io/zenboard/pkg/zfile"
)

func newWorkspace(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "pcb.toml"), []byte("[workspace]\nname = \"test\"\n"), 0644); err != nil {
		t.Fatalf("write pcb.toml: %v", err)
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func newHost(t *testing.T, dir string) *Host {
	t.Helper()
	provider := zfile.NewOfflineProvider()
	resolver := loadspec.NewResolver(provider)
	if err := resolver.SetWorkspaceRoot(dir); err != nil {
		t.Fatalf("SetWorkspaceRoot: %v", err)
	}
	return NewHost(context.Background(), provider, resolver)
}

func TestEvalRootMissingPins(t *testing.T) {
	dir := newWorkspace(t, map[string]string{
		"main.zen": `
sym = Symbol(definition={"VCC": ["1"], "GND": ["2"], "OUT": ["3"]})
n1 = Net("n1")
Component(name="U1", footprint="SOT23", symbol=sym, pins={"VCC": n1})
`,
	})
	h := newHost(t, dir)
	_, err := h.EvalRoot(filepath.Join(dir, "main.zen"))
	if err == nil {
		t.Fatal("expected a missing-pins error")
	}
	if !strings.Contains(err.Error(), "missing pins") {
		t.Errorf("error = %v, want it to mention missing pins", err)
	}
	if !strings.Contains(err.Error(), "GND") || !strings.Contains(err.Error(), "OUT") {
		t.Errorf("error = %v, want it to list GND and OUT", err)
	}
}

func TestEvalRootUnknownPin(t *testing.T) {
	dir := newWorkspace(t, map[string]string{
		"main.zen": `
sym = Symbol(definition={"VCC": ["1"], "GND": ["2"]})
n1 = Net("n1")
n2 = Net("n2")
Component(name="U1", symbol=sym, pins={"VCC": n1, "GND": n2, "INVALID": n1})
`,
	})
	h := newHost(t, dir)
	_, err := h.EvalRoot(filepath.Join(dir, "main.zen"))
	if err == nil {
		t.Fatal("expected an unknown-pin error")
	}
	if !strings.Contains(err.Error(), "unknown pin") || !strings.Contains(err.Error(), "INVALID") {
		t.Errorf("error = %v, want it to name INVALID", err)
	}
}

func TestEvalRootInterfaceIntoNetPin(t *testing.T) {
	dir := newWorkspace(t, map[string]string{
		"main.zen": `
Power = interface(VCC=Net, GND=Net)
p = Power()
sym = Symbol(definition={"P": ["1"]})
Component(name="U1", symbol=sym, pins={"P": p})
`,
	})
	h := newHost(t, dir)
	_, err := h.EvalRoot(filepath.Join(dir, "main.zen"))
	if err == nil {
		t.Fatal("expected a pin-kind-mismatch error")
	}
	if !strings.Contains(err.Error(), "expects Net") || !strings.Contains(err.Error(), "Interface") {
		t.Errorf("error = %v, want the Net-vs-Interface mismatch message", err)
	}
}

func TestEvalRootCyclicLoad(t *testing.T) {
	dir := newWorkspace(t, map[string]string{
		"a.zen": `load("./b.zen", "b_marker")`,
		"b.zen": `load("./a.zen", "a_marker")`,
	})
	h := newHost(t, dir)
	_, err := h.EvalRoot(filepath.Join(dir, "a.zen"))
	if err == nil {
		t.Fatal("expected a cycle diagnostic")
	}
	if !strings.Contains(err.Error(), "cycle detected") {
		t.Errorf("error = %v, want it to report a cycle", err)
	}
	for _, want := range []string{"a.zen", "b.zen"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error = %v, want the chain to name %s", err, want)
		}
	}

	// The cycle must be caught at the root, not one level deeper: the
	// chain is exactly [a, b, a] (the root visited once, then the cycle
	// closing back on it), never a rotated [b, a, b] that would mean a's
	// top-level body got silently re-executed before the cycle was found.
	var ze *zerr.Error
	if !errors.As(err, &ze) {
		t.Fatalf("err = %#v (%T), want a *zerr.Error in its chain", err, err)
	}
	chain, _ := ze.Details["chain"].([]string)
	if len(chain) != 3 {
		t.Fatalf("chain = %v, want exactly 3 entries", chain)
	}
	if !strings.HasSuffix(chain[0], "a.zen") {
		t.Errorf("chain[0] = %q, want the chain to start at the root (a.zen)", chain[0])
	}
	if chain[0] != chain[2] {
		t.Errorf("chain = %v, want the last entry to close the cycle back on the first", chain)
	}
	if len(h.loadChain) != 0 {
		t.Errorf("h.loadChain leaked entries after the cycle error: %v", h.loadChain)
	}
	if len(h.visiting) != 0 {
		t.Errorf("h.visiting leaked entries after the cycle error: %v", h.visiting)
	}
}

func TestLoadModuleByNameDirectory(t *testing.T) {
	dir := newWorkspace(t, map[string]string{
		"bar.zen": `
in_net = io("IN", Net)
sym = Symbol(definition={"A": ["1"]})
Component(name="U1", symbol=sym, pins={"A": in_net})
`,
		"main.zen": `
load(".", Foo = "bar")
n1 = Net("n1")
Foo(name="inst", IN=n1)
`,
	})
	h := newHost(t, dir)
	root, err := h.EvalRoot(filepath.Join(dir, "main.zen"))
	if err != nil {
		t.Fatalf("EvalRoot: %v", err)
	}
	if len(root.Children) != 1 {
		t.Fatalf("len(root.Children) = %d, want 1", len(root.Children))
	}
}

func TestLoadModuleByNameDirectoryUnknownStem(t *testing.T) {
	dir := newWorkspace(t, map[string]string{
		"main.zen": `load(".", Foo = "missing")`,
	})
	h := newHost(t, dir)
	_, err := h.EvalRoot(filepath.Join(dir, "main.zen"))
	if err == nil {
		t.Fatal("expected an error naming an unresolved stem")
	}
}

func TestModuleInstantiationIndependentNets(t *testing.T) {
	dir := newWorkspace(t, map[string]string{
		"sub.zen": `
in_net = io("IN", Net)
n = Net("INTERNAL")
sym = Symbol(definition={"A": ["1"], "B": ["2"]})
Component(name="U1", symbol=sym, pins={"A": in_net, "B": n})
`,
		"main.zen": `
M = Module("./sub.zen")
n1 = Net("n1")
n2 = Net("n2")
n3 = Net("n3")
M(name="a", IN=n1)
M(name="b", IN=n2)
M(name="c", IN=n3)
`,
	})
	h := newHost(t, dir)
	root, err := h.EvalRoot(filepath.Join(dir, "main.zen"))
	if err != nil {
		t.Fatalf("EvalRoot: %v", err)
	}
	if len(root.Children) != 3 {
		t.Fatalf("len(root.Children) = %d, want 3", len(root.Children))
	}

	sch, err := schematic.Flatten(root)
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	names := make(map[string]bool)
	for _, n := range sch.Nets {
		names[n.Name] = true
	}
	if !names["INTERNAL"] || !names["INTERNAL_2"] || !names["INTERNAL_3"] {
		t.Errorf("net names = %v, want disambiguated INTERNAL/INTERNAL_2/INTERNAL_3", names)
	}
}

func TestModuleInstantiationMissingIO(t *testing.T) {
	dir := newWorkspace(t, map[string]string{
		"sub.zen": `io("IN", Net)`,
		"main.zen": `
M = Module("./sub.zen")
M(name="a")
`,
	})
	h := newHost(t, dir)
	_, err := h.EvalRoot(filepath.Join(dir, "main.zen"))
	if err == nil {
		t.Fatal("expected a missing-IO error")
	}
	if !strings.Contains(err.Error(), "missing required io/config") {
		t.Errorf("error = %v, want missing-IO message", err)
	}
}

func TestModuleInstantiationUnusedInput(t *testing.T) {
	dir := newWorkspace(t, map[string]string{
		"sub.zen": `io("IN", Net)`,
		"main.zen": `
M = Module("./sub.zen")
n1 = Net("n1")
n2 = Net("n2")
M(name="a", IN=n1, EXTRA=n2)
`,
	})
	h := newHost(t, dir)
	_, err := h.EvalRoot(filepath.Join(dir, "main.zen"))
	if err == nil {
		t.Fatal("expected an unused-input error")
	}
	if !strings.Contains(err.Error(), "unused inputs") || !strings.Contains(err.Error(), "EXTRA") {
		t.Errorf("error = %v, want unused-input message naming EXTRA", err)
	}
}

func TestCheckAndTestBench(t *testing.T) {
	dir := newWorkspace(t, map[string]string{
		"main.zen": `
n1 = Net("n1")
n2 = Net("n2")

def run():
    check(equals(n1, n1), "n1 equals itself")
    check(connected(n1, n1), "n1 connected to itself")
    check(equals(n1, n2), "n1 should not equal n2")

bench = TestBench("sanity", run)
check(bench.failed == 1, "expected exactly one failing check")
`,
	})
	h := newHost(t, dir)
	_, err := h.EvalRoot(filepath.Join(dir, "main.zen"))
	if err != nil {
		t.Fatalf("EvalRoot: %v", err)
	}
}

func TestSerializeDeserializeScalar(t *testing.T) {
	dir := newWorkspace(t, map[string]string{
		"main.zen": `
s = serialize("hello")
v = deserialize(Str, s)
check(v == "hello", "round trip should preserve the string")
`,
	})
	h := newHost(t, dir)
	_, err := h.EvalRoot(filepath.Join(dir, "main.zen"))
	if err != nil {
		t.Fatalf("EvalRoot: %v", err)
	}
}

func TestSerializeDeserializeNet(t *testing.T) {
	dir := newWorkspace(t, map[string]string{
		"main.zen": `
n = Net("n1")
s = serialize(n)
back = deserialize(Net_, s)
check(equals(back, n), "deserialized net should be identity-equal to the original")
`,
	})
	h := newHost(t, dir)
	_, err := h.EvalRoot(filepath.Join(dir, "main.zen"))
	if err != nil {
		t.Fatalf("EvalRoot: %v", err)
	}
}
