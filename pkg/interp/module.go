package interp

import (
	"fmt"

	"github.com/architect-io/zenboard/pkg/domain"
	"go.starlark.net/starlark"
)

// moduleFactoryValue wraps a resolved source file as a callable module
// type (spec.md §4.C "Module(spec)"). Calling it is the per-call module
// instantiation spec.md §4.E.1/§4.C describe: each call evaluates the file's
// body fresh, in a new child frame, with its own independent nets.
type moduleFactoryValue struct {
	host *Host
	path string // resolved absolute path to the module's source file
	spec string // original load spec string, for error messages
}

func (v *moduleFactoryValue) String() string        { return fmt.Sprintf("Module(%q)", v.spec) }
func (v *moduleFactoryValue) Type() string           { return "ModuleFactory" }
func (v *moduleFactoryValue) Freeze()                {}
func (v *moduleFactoryValue) Truth() starlark.Bool   { return starlark.True }
func (v *moduleFactoryValue) Hash() (uint32, error)  { return 0, fmt.Errorf("unhashable type: ModuleFactory") }
func (v *moduleFactoryValue) Name() string           { return v.path }

var _ starlark.Callable = (*moduleFactoryValue)(nil)

// CallInternal implements per-call instantiation: `M(name=..., **io_and_config)`
// pushes a fresh scope-stack frame (spec.md §4.E.1), evaluates the module's
// source against it, pops the frame, and attaches the sealed child instance
// to the calling parent's child list.
func (v *moduleFactoryValue) CallInternal(thread *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(args) > 0 {
		return nil, fmt.Errorf("module %s: takes only keyword arguments", v.spec)
	}

	var name string
	supplied := make(map[string]interface{}, len(kwargs))
	for _, kw := range kwargs {
		key, _ := starlark.AsString(kw[0])
		if key == "name" {
			s, ok := starlark.AsString(kw[1])
			if !ok {
				return nil, fmt.Errorf("module %s: name must be a string", v.spec)
			}
			name = s
			continue
		}
		goVal, err := toGoValue(kw[1])
		if err != nil {
			return nil, fmt.Errorf("module %s: argument %q: %w", v.spec, key, err)
		}
		supplied[key] = goVal
	}
	if name == "" {
		return nil, fmt.Errorf("module %s: name= is required", v.spec)
	}

	parent := v.host.currentFrameModule()
	if parent == nil {
		return nil, fmt.Errorf("module %s: instantiation must occur inside a module body", v.spec)
	}

	src, err := v.host.Provider.Read(v.host.Ctx, v.path)
	if err != nil {
		return nil, fmt.Errorf("interp: failed to read %s: %w", v.path, err)
	}

	child := domain.NewModule(v.path, name, supplied)
	v.host.pushFrame(child)

	sub := v.host.newThread(v.path)
	sub.SetLocal(currentFileLocal, v.path)

	_, execErr := starlark.ExecFile(sub, v.path, src, v.host.predeclared())
	v.host.popFrame()
	if execErr != nil {
		return nil, fmt.Errorf("while instantiating %s(name=%q): %w", v.spec, name, execErr)
	}
	if err := child.Seal(); err != nil {
		return nil, fmt.Errorf("while instantiating %s(name=%q): %w", v.spec, name, err)
	}

	parent.AddChild(name, child)
	return &moduleInstanceValue{m: child}, nil
}

// moduleInstanceValue wraps a sealed child *domain.Module, exposing its
// bound IO/config values as attributes so a caller can wire a submodule's
// re-exported IO further up the tree (e.g. `u1 = M(name="u1", ...); use(u1.OUT)`).
type moduleInstanceValue struct{ m *domain.Module }

func (v *moduleInstanceValue) String() string { return fmt.Sprintf("Module(%q)", v.m.LocalName) }
func (v *moduleInstanceValue) Type() string    { return "ModuleInstance" }
func (v *moduleInstanceValue) Freeze()         {}
func (v *moduleInstanceValue) Truth() starlark.Bool { return starlark.True }
func (v *moduleInstanceValue) Hash() (uint32, error) {
	return 0, fmt.Errorf("unhashable type: ModuleInstance")
}

func (v *moduleInstanceValue) Attr(name string) (starlark.Value, error) {
	if val, ok := v.m.IO[name]; ok {
		return toStarlarkValue(val)
	}
	if val, ok := v.m.Config[name]; ok {
		return toStarlarkValue(val)
	}
	return nil, nil
}

func (v *moduleInstanceValue) AttrNames() []string {
	names := make([]string, 0, len(v.m.IO)+len(v.m.Config))
	for k := range v.m.IO {
		names = append(names, k)
	}
	for k := range v.m.Config {
		names = append(names, k)
	}
	return names
}

var _ starlark.HasAttrs = (*moduleInstanceValue)(nil)

// builtinModule implements `Module(spec)` and the `load_module` alias:
// resolve spec to an absolute path (triggering fetch/unstable-ref
// diagnostics exactly as `load` does) and hand back a callable factory — the
// file itself is not read or evaluated until the factory is called.
func (h *Host) builtinModule(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var spec string
	if err := starlark.UnpackArgs("Module", args, kwargs, "spec", &spec); err != nil {
		return nil, err
	}
	resolved, d, err := h.Resolver.Resolve(h.Ctx, spec, currentFile(thread), false)
	if err != nil {
		return nil, err
	}
	if d != nil {
		h.Diags.Add(d)
	}
	return &moduleFactoryValue{host: h, path: resolved.AbsPath, spec: spec}, nil
}
