package interp

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/architect-io/zenboard/pkg/diag"
	"github.com/architect-io/zenboard/pkg/domain"
	zerr "github.com/architect-io/zenboard/pkg/errors"
	"github.com/architect-io/zenboard/pkg/loadspec"
	"github.com/architect-io/zenboard/pkg/zfile"
	"go.starlark.net/starlark"
)

// moduleFileExts are the recognized source-file extensions spec.md §6
// treats as equivalent inputs to the interpreter, used by the
// module-by-name directory lookup (spec.md §4.B) to match a stem against
// sibling files.
var moduleFileExts = []string{".zen", ".star"}

const currentFileLocal = "zenboard_current_file"

// Host is the evaluator context spec.md §9's "Global state" design note
// requires: an explicit argument carrying the file provider, load
// resolver, workspace root, current frame, and diagnostics sink, rather
// than ambient process-wide state.
type Host struct {
	Ctx      context.Context
	Provider zfile.Provider
	Resolver *loadspec.Resolver
	Diags    *diag.Diagnostics

	moduleCache map[string]starlark.StringDict // canonical path -> evaluated globals
	visiting    map[string]bool                // canonical paths currently being loaded, for cycle detection
	loadChain   []string                       // ordered chain, for the cycle diagnostic

	top *frame // current innermost frame; nil before the root module starts

	anonCounter int

	// netRegistry lets deserialize(NetType, json) recover a *domain.Net by
	// the identity serialize(v) embedded, since a Net's JSON form can't carry
	// live pointer identity across the round trip (spec.md §8 property #4).
	netRegistry map[int64]*domain.Net

	// benchStack is the stack of in-progress TestBench results. A non-empty
	// stack changes check()'s behavior (spec.md §9 Open Question: a failing
	// check() inside a TestBench records a per-check result on the topmost
	// bench rather than aborting the enclosing module).
	benchStack []*benchResult
}

// nextAnonID hands out a deterministic per-Host counter, used to name
// interface() call sites that don't give themselves an explicit name.
// Single-threaded per spec.md §5, so a plain increment is sufficient.
func (h *Host) nextAnonID() int {
	h.anonCounter++
	return h.anonCounter
}

// NewHost builds a fresh evaluator context. One Host corresponds to one
// elaboration run (spec.md §5: the module cache is per-elaboration).
func NewHost(ctx context.Context, provider zfile.Provider, resolver *loadspec.Resolver) *Host {
	return &Host{
		Ctx:         ctx,
		Provider:    provider,
		Resolver:    resolver,
		Diags:       diag.NewDiagnostics(),
		moduleCache: make(map[string]starlark.StringDict),
		visiting:    make(map[string]bool),
		netRegistry: make(map[int64]*domain.Net),
	}
}

// registerNet records a net in the host-wide registry so a later
// deserialize(Net, ...) call can recover it by identity.
func (h *Host) registerNet(n *domain.Net) {
	if n != nil {
		h.netRegistry[n.ID] = n
	}
}

// registerValueNets walks a value that may contain nets (a bare *domain.Net
// or a possibly-nested *domain.InterfaceValue) and registers every one it
// finds, both in the host-wide identity registry (registerNet) and, when a
// module frame is active, on that module (domain.Module.AddNet) so the
// schematic flattener's net-name dedup (pkg/schematic) sees nets allocated
// implicitly by instantiating an interface, not just bare Net(...) calls.
func (h *Host) registerValueNets(v interface{}) {
	m := h.currentFrameModule()
	h.registerValueNetsIn(v, m)
}

func (h *Host) registerValueNetsIn(v interface{}, m *domain.Module) {
	switch val := v.(type) {
	case *domain.Net:
		h.registerNet(val)
		if m != nil {
			m.AddNet(val)
		}
	case *domain.InterfaceValue:
		for _, fv := range val.Values {
			h.registerValueNetsIn(fv, m)
		}
	}
}

func (h *Host) currentFrame() *frame { return h.top }

func (h *Host) pushFrame(m *domain.Module) {
	h.top = newFrame(m, h.top)
}

func (h *Host) popFrame() *domain.Module {
	m := h.top.module
	h.top = h.top.parent
	return m
}

// newThread builds a starlark.Thread wired to this Host's Load callback,
// used both for the root evaluation and for every Module() factory call.
func (h *Host) newThread(name string) *starlark.Thread {
	return &starlark.Thread{
		Name: name,
		Load: h.load,
	}
}

// EvalRoot evaluates the file at path as the top-level module, with no
// supplied IO/config (the CLI entry point never has a caller to supply
// them), and returns its completed domain.Module instance.
//
// The root's own canonical path is seeded into h.visiting/h.loadChain/
// h.moduleCache exactly as load() seeds every file it loads, so a cycle
// that loops back through the root (spec.md §8 #5's a→b→a, a being root)
// is caught at the root instead of one level deeper, and the root's body
// is never executed twice.
func (h *Host) EvalRoot(path string) (*domain.Module, error) {
	canonical, err := h.Provider.Canonicalize(path)
	if err != nil {
		return nil, fmt.Errorf("interp: canonicalizing root %s: %w", path, err)
	}

	if h.visiting[canonical] {
		chain := append(append([]string(nil), h.loadChain...), canonical)
		return nil, zerr.Cycle(chain)
	}
	h.visiting[canonical] = true
	h.loadChain = append(h.loadChain, canonical)
	defer func() {
		delete(h.visiting, canonical)
		h.loadChain = h.loadChain[:len(h.loadChain)-1]
	}()

	thread := h.newThread("root")
	thread.SetLocal(currentFileLocal, path)

	root := domain.NewModule(path, "root", nil)
	h.pushFrame(root)
	defer h.popFrame()

	src, err := h.Provider.Read(h.Ctx, path)
	if err != nil {
		return nil, fmt.Errorf("interp: failed to read %s: %w", path, err)
	}

	globals, err := starlark.ExecFile(thread, path, src, h.predeclared())
	if err != nil {
		return nil, err
	}
	if err := root.Seal(); err != nil {
		return nil, err
	}
	h.moduleCache[canonical] = globals
	return root, nil
}

// load implements starlark.Thread.Load: resolving module (a load spec
// string) against the file that issued the load statement, memoizing per
// canonical path, and detecting cycles by chain of canonical paths
// currently being evaluated (spec.md §4.C "Memoization"). "Canonical path"
// here is spec.md §4.A's `canonicalize(path) → abs_path` (Provider.
// Canonicalize applied to the resolved file), not the load-spec text
// Resolver.Resolve also tracks for the vendor/release collaborators — two
// different specs that resolve to the same file must memoize and
// cycle-detect as the same entry, which a raw spec string can't guarantee.
func (h *Host) load(thread *starlark.Thread, module string) (starlark.StringDict, error) {
	currentFile, _ := thread.Local(currentFileLocal).(string)

	// The bare "." spec is the module-by-name directory signal (spec.md
	// §4.B): `load(".", Foo = "bar")` binds Foo to whichever sibling file
	// has stem "bar", rather than naming one file to read directly.
	if module == "." {
		return h.loadModuleByNameDir(currentFile)
	}

	resolved, d, err := h.Resolver.Resolve(h.Ctx, module, currentFile, false)
	if err != nil {
		return nil, err
	}
	if d != nil {
		h.Diags.Add(d)
	}

	canonical, err := h.Provider.Canonicalize(resolved.AbsPath)
	if err != nil {
		return nil, fmt.Errorf("interp: canonicalizing %s: %w", resolved.AbsPath, err)
	}

	if globals, ok := h.moduleCache[canonical]; ok {
		return globals, nil
	}
	if h.visiting[canonical] {
		chain := append(append([]string(nil), h.loadChain...), canonical)
		return nil, zerr.Cycle(chain)
	}

	h.visiting[canonical] = true
	h.loadChain = append(h.loadChain, canonical)
	defer func() {
		delete(h.visiting, canonical)
		h.loadChain = h.loadChain[:len(h.loadChain)-1]
	}()

	src, err := h.Provider.Read(h.Ctx, resolved.AbsPath)
	if err != nil {
		return nil, fmt.Errorf("interp: failed to read %s: %w", resolved.AbsPath, err)
	}

	sub := h.newThread(resolved.AbsPath)
	sub.SetLocal(currentFileLocal, resolved.AbsPath)

	globals, err := starlark.ExecFile(sub, resolved.AbsPath, src, h.predeclared())
	if err != nil {
		return nil, fmt.Errorf("while loading %s: %w", module, err)
	}

	h.moduleCache[canonical] = globals
	return globals, nil
}

// loadModuleByNameDir implements the module-by-name directory resolution
// spec.md §4.B describes for a bare "." load spec: list the directory the
// current file lives in and bind every recognized source file's stem to a
// callable Module factory for it, recursively exposing the whole file as a
// single symbol (spec.md §4.C "Module(spec)"). A kwarg naming a stem that
// isn't present fails the load statement with starlark's "name not found in
// module" error, the same way an ordinary load() miss would.
//
// Unlike load()'s Path/remote branches, this never touches moduleCache —
// the factories it returns are lazy (a Module() call only reads and
// evaluates the file when invoked), so there's no eager work worth memoizing
// and no risk of the directory listing going stale within one resolution.
func (h *Host) loadModuleByNameDir(currentFile string) (starlark.StringDict, error) {
	dir := filepath.Dir(currentFile)
	entries, err := h.Provider.ListDir(dir)
	if err != nil {
		return nil, fmt.Errorf("interp: listing %s for module-by-name load(\".\"): %w", dir, err)
	}

	out := make(starlark.StringDict, len(entries))
	for _, e := range entries {
		if e.IsDir {
			continue
		}
		ext := filepath.Ext(e.Name)
		recognized := false
		for _, want := range moduleFileExts {
			if ext == want {
				recognized = true
				break
			}
		}
		if !recognized {
			continue
		}
		stem := strings.TrimSuffix(e.Name, ext)
		path := filepath.Join(dir, e.Name)
		out[stem] = &moduleFactoryValue{host: h, path: path, spec: e.Name}
	}
	return out, nil
}
