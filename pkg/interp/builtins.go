package interp

import (
	"fmt"

	"github.com/architect-io/zenboard/pkg/domain"
	zerr "github.com/architect-io/zenboard/pkg/errors"
	"go.starlark.net/starlark"
)

func currentFile(thread *starlark.Thread) string {
	s, _ := thread.Local(currentFileLocal).(string)
	return s
}

// predeclared builds the global namespace every module body (root or
// loaded/instantiated) evaluates against: the builtins listed in spec.md
// §4.C plus the scalar type markers used by io()/config()/field().
func (h *Host) predeclared() starlark.StringDict {
	return starlark.StringDict{
		"load_module": starlark.NewBuiltin("load_module", h.builtinModule),
		"Module":      starlark.NewBuiltin("Module", h.builtinModule),
		"io":          starlark.NewBuiltin("io", h.builtinIO),
		"config":      starlark.NewBuiltin("config", h.builtinConfig),
		"interface":   starlark.NewBuiltin("interface", h.builtinInterface),
		"field":       starlark.NewBuiltin("field", h.builtinField),
		"enum":        starlark.NewBuiltin("enum", h.builtinEnum),
		"Component":   starlark.NewBuiltin("Component", h.builtinComponent),
		"Symbol":      starlark.NewBuiltin("Symbol", h.builtinSymbol),
		"SpiceModel":  starlark.NewBuiltin("SpiceModel", h.builtinSpiceModel),
		"File":        starlark.NewBuiltin("File", h.builtinFile),
		"Path":        starlark.NewBuiltin("Path", h.builtinPath),
		"add_property": starlark.NewBuiltin("add_property", h.builtinAddProperty),
		"check":        starlark.NewBuiltin("check", h.builtinCheck),
		"error":        starlark.NewBuiltin("error", h.builtinError),
		"serialize":    starlark.NewBuiltin("serialize", h.builtinSerialize),
		"deserialize":  starlark.NewBuiltin("deserialize", h.builtinDeserialize),
		"TestBench":    starlark.NewBuiltin("TestBench", h.builtinTestBench),
		"equals":       starlark.NewBuiltin("equals", h.builtinEquals),
		"connected":    starlark.NewBuiltin("connected", h.builtinConnected),

		"Int":   scalarTypeValue{kind: domain.ScalarInt},
		"Float": scalarTypeValue{kind: domain.ScalarFloat},
		"Bool":  scalarTypeValue{kind: domain.ScalarBool},
		"Str":   scalarTypeValue{kind: domain.ScalarStr},
		// Net is a single global doing double duty: bare, it's the type
		// marker io()/config()/field() accept; called, it constructs an
		// instance. Net_ is an alias for code that needs the type marker
		// in a position (e.g. deserialize's type argument) where the bare
		// name would read ambiguously.
		"Net":  netTypeValue{host: h},
		"Net_": netTypeValue{host: h},
	}
}

// builtinNet implements `Net(name?, **props)`.
func (h *Host) builtinNet(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(args) > 1 {
		return nil, fmt.Errorf("Net: expected at most one positional argument (name)")
	}
	name := ""
	if len(args) == 1 {
		s, ok := starlark.AsString(args[0])
		if !ok {
			return nil, fmt.Errorf("Net: name must be a string")
		}
		name = s
	}
	props := map[string]interface{}{}
	for _, kw := range kwargs {
		key, _ := starlark.AsString(kw[0])
		if key == "name" {
			s, ok := starlark.AsString(kw[1])
			if !ok {
				return nil, fmt.Errorf("Net: name must be a string")
			}
			name = s
			continue
		}
		v, err := toGoValue(kw[1])
		if err != nil {
			return nil, fmt.Errorf("Net: property %q: %w", key, err)
		}
		props[key] = v
	}
	n := domain.NewNet(name, props)
	h.registerNet(n)
	if m := h.currentFrameModule(); m != nil {
		m.AddNet(n)
	}
	return &netValue{net: n}, nil
}

// typeToFieldSpec converts a type argument (as given to io/config/field) into
// the (isNet, interface, scalar) triple a domain.Placeholder/FieldSpec needs.
func typeToFieldSpec(name string, typ starlark.Value) (isNet bool, iface *domain.InterfaceFactory, scalar *domain.ScalarSpec, err error) {
	switch t := typ.(type) {
	case netTypeValue:
		return true, nil, nil, nil
	case *interfaceFactoryValue:
		return false, t.factory, nil, nil
	case scalarTypeValue:
		return false, nil, &domain.ScalarSpec{Kind: t.kind, Variants: t.variants}, nil
	case *fieldSpecValue:
		return false, nil, t.scalar, nil
	default:
		return false, nil, nil, fmt.Errorf("%s: unsupported type argument %s", name, typ.Type())
	}
}

func (h *Host) builtinIO(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	return h.bindPlaceholder("io", thread, args, kwargs, h.currentFrameModule().BindIO)
}

func (h *Host) builtinConfig(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	return h.bindPlaceholder("config", thread, args, kwargs, h.currentFrameModule().BindConfig)
}

func (h *Host) currentFrameModule() *domain.Module {
	if h.top == nil {
		return nil
	}
	return h.top.module
}

func (h *Host) bindPlaceholder(name string, thread *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple, bind func(domain.Placeholder) (interface{}, error)) (starlark.Value, error) {
	var (
		fieldName string
		typ       starlark.Value
		optional  bool
		def       starlark.Value = starlark.None
	)
	if err := starlark.UnpackArgs(name, args, kwargs, "name", &fieldName, "type", &typ, "optional?", &optional, "default?", &def); err != nil {
		return nil, err
	}

	isNet, iface, scalar, err := typeToFieldSpec(name, typ)
	if err != nil {
		return nil, err
	}

	p := domain.Placeholder{Name: fieldName, IsNet: isNet, Interface: iface, Scalar: scalar, Optional: optional}
	if def != starlark.None {
		goDef, err := toGoValue(def)
		if err != nil {
			return nil, err
		}
		p.Default = goDef
		p.HasDefault = true
	}

	m := h.currentFrameModule()
	if m == nil {
		return nil, fmt.Errorf("%s: called outside a module body", name)
	}
	val, err := bind(p)
	if err != nil {
		return nil, err
	}
	return toStarlarkValue(val)
}

func (h *Host) builtinInterface(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(args) > 0 {
		return nil, fmt.Errorf("interface: takes only keyword field specifications")
	}
	fields := make([]domain.FieldSpec, 0, len(kwargs))
	for _, kw := range kwargs {
		fieldName, _ := starlark.AsString(kw[0])
		isNet, iface, scalar, err := typeToFieldSpec("interface", kw[1])
		if err != nil {
			return nil, fmt.Errorf("interface: field %q: %w", fieldName, err)
		}
		fields = append(fields, domain.FieldSpec{Name: fieldName, IsNet: isNet, Interface: iface, Scalar: scalar})
	}
	key := domain.TypeKey{OriginFile: currentFile(thread), Name: fmt.Sprintf("interface#%d", h.nextAnonID())}
	factory := domain.NewInterfaceFactory(key, fields)
	return &interfaceFactoryValue{factory: factory, host: h}, nil
}

func (h *Host) builtinField(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var typ starlark.Value
	var def starlark.Value = starlark.None
	if err := starlark.UnpackArgs("field", args, kwargs, "scalar_type", &typ, "default?", &def); err != nil {
		return nil, err
	}
	st, ok := typ.(scalarTypeValue)
	if !ok {
		return nil, fmt.Errorf("field: scalar_type must be one of Int, Float, Bool, Str, or enum(...)")
	}
	spec := &domain.ScalarSpec{Kind: st.kind, Variants: st.variants}
	if def != starlark.None {
		goDef, err := toGoValue(def)
		if err != nil {
			return nil, err
		}
		spec.Default = goDef
		spec.HasDefault = true
	}
	return &fieldSpecValue{scalar: spec}, nil
}

func (h *Host) builtinEnum(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(kwargs) > 0 {
		return nil, fmt.Errorf("enum: takes only positional variant names")
	}
	variants := make([]string, len(args))
	for i, a := range args {
		s, ok := starlark.AsString(a)
		if !ok {
			return nil, fmt.Errorf("enum: variant %d is not a string", i)
		}
		variants[i] = s
	}
	return scalarTypeValue{kind: domain.ScalarEnum, variants: variants}, nil
}

func (h *Host) builtinComponent(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		name       string
		footprint  string
		symbol     starlark.Value = starlark.None
		pinDefs    starlark.Value = starlark.None
		pins       starlark.Value = starlark.None
		properties starlark.Value = starlark.None
		typ        string
		prefix     string
		spiceModel starlark.Value = starlark.None
	)
	err := starlark.UnpackArgs("Component", args, kwargs,
		"name", &name,
		"footprint?", &footprint,
		"symbol?", &symbol,
		"pin_defs?", &pinDefs,
		"pins?", &pins,
		"properties?", &properties,
		"type?", &typ,
		"prefix?", &prefix,
		"spice_model?", &spiceModel,
	)
	if err != nil {
		return nil, err
	}

	c := &domain.Component{Name: name, Footprint: footprint, Type: typ, Prefix: prefix}

	if symbol != starlark.None {
		sv, ok := symbol.(*symbolValue)
		if !ok {
			return nil, fmt.Errorf("Component: symbol must be a Symbol")
		}
		c.Symbol = sv.s
	}
	if pinDefs != starlark.None {
		dict, ok := pinDefs.(*starlark.Dict)
		if !ok {
			return nil, fmt.Errorf("Component: pin_defs must be a dict")
		}
		c.PinDefs = map[string][]string{}
		for _, item := range dict.Items() {
			signal, _ := starlark.AsString(item[0])
			pads, err := toGoStringList(item[1])
			if err != nil {
				return nil, fmt.Errorf("Component: pin_defs[%q]: %w", signal, err)
			}
			c.PinDefs[signal] = pads
		}
	}
	if properties != starlark.None {
		goVal, err := toGoValue(properties)
		if err != nil {
			return nil, fmt.Errorf("Component: properties: %w", err)
		}
		props, ok := goVal.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("Component: properties must be a dict")
		}
		c.Properties = props
	}
	if spiceModel != starlark.None {
		sm, ok := spiceModel.(*spiceModelValue)
		if !ok {
			return nil, fmt.Errorf("Component: spice_model must be a SpiceModel")
		}
		c.SpiceModel = sm.m
	}
	if pins != starlark.None {
		dict, ok := pins.(*starlark.Dict)
		if !ok {
			return nil, fmt.Errorf("Component: pins must be a dict")
		}
		for _, item := range dict.Items() {
			signal, _ := starlark.AsString(item[0])
			if err := c.AssignPin(signal, mustUnwrap(item[1])); err != nil {
				return nil, fmt.Errorf("Component %q: pin %q: %w", name, signal, err)
			}
		}
	}

	if err := c.ValidatePins(); err != nil {
		return nil, err
	}

	m := h.currentFrameModule()
	if m == nil {
		return nil, fmt.Errorf("Component: called outside a module body")
	}
	m.AddChild(name, c)

	return &componentValue{c: c}, nil
}

// mustUnwrap extracts the domain value behind a netValue/interfaceValueWrapper
// for AssignPin, which itself reports a typed error for anything else.
func mustUnwrap(v starlark.Value) interface{} {
	switch val := v.(type) {
	case *netValue:
		return val.net
	case *interfaceValueWrapper:
		return val.iv
	default:
		return v
	}
}

func (h *Host) builtinSymbol(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		name       string
		definition starlark.Value = starlark.None
		library    starlark.Value = starlark.None
	)
	if err := starlark.UnpackArgs("Symbol", args, kwargs, "name?", &name, "definition?", &definition, "library?", &library); err != nil {
		return nil, err
	}

	switch {
	case definition != starlark.None:
		dict, ok := definition.(*starlark.Dict)
		if !ok {
			return nil, fmt.Errorf("Symbol: definition must be a dict of signal_name -> [pad_ids]")
		}
		var defs []domain.PinDef
		for _, item := range dict.Items() {
			signal, _ := starlark.AsString(item[0])
			pads, err := toGoStringList(item[1])
			if err != nil {
				return nil, fmt.Errorf("Symbol: definition[%q]: %w", signal, err)
			}
			defs = append(defs, domain.PinDef{SignalName: signal, PadIDs: pads})
		}
		s, err := domain.NewSymbolFromDefinition(name, defs)
		if err != nil {
			return nil, err
		}
		return &symbolValue{s: s}, nil

	case library != starlark.None:
		pv, ok := library.(*pathValue)
		if !ok {
			return nil, fmt.Errorf("Symbol: library must be a Path/File")
		}
		return &symbolValue{s: domain.NewSymbolFromLibrary(pv.path, name, &hostSymbolResolver{host: h})}, nil

	default:
		return nil, fmt.Errorf("Symbol: one of definition= or library= is required")
	}
}

func (h *Host) builtinSpiceModel(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		lib, name, argsStr string
		netsVal            starlark.Value = starlark.None
	)
	if err := starlark.UnpackArgs("SpiceModel", args, kwargs, "lib", &lib, "name", &name, "nets?", &netsVal, "args?", &argsStr); err != nil {
		return nil, err
	}
	var nets []*domain.Net
	if netsVal != starlark.None {
		goVal, err := toGoValue(netsVal)
		if err != nil {
			return nil, fmt.Errorf("SpiceModel: nets: %w", err)
		}
		list, ok := goVal.([]interface{})
		if !ok {
			return nil, fmt.Errorf("SpiceModel: nets must be a list of Net")
		}
		for _, item := range list {
			n, ok := item.(*domain.Net)
			if !ok {
				return nil, fmt.Errorf("SpiceModel: nets must contain only Net values")
			}
			nets = append(nets, n)
		}
	}
	return &spiceModelValue{m: &domain.SpiceModel{Lib: lib, Name: name, Nets: nets, Args: argsStr}}, nil
}

func (h *Host) resolvePathArg(thread *starlark.Thread, raw string, allowNotExist bool) (*pathValue, error) {
	resolved, _, err := h.Resolver.Resolve(h.Ctx, raw, currentFile(thread), allowNotExist)
	if err != nil {
		return nil, err
	}
	return &pathValue{path: resolved.AbsPath, allowNotExist: allowNotExist}, nil
}

func (h *Host) builtinFile(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var path string
	if err := starlark.UnpackArgs("File", args, kwargs, "path", &path); err != nil {
		return nil, err
	}
	return h.resolvePathArg(thread, path, false)
}

func (h *Host) builtinPath(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		path          string
		allowNotExist bool
	)
	if err := starlark.UnpackArgs("Path", args, kwargs, "path", &path, "allow_not_exist?", &allowNotExist); err != nil {
		return nil, err
	}
	return h.resolvePathArg(thread, path, allowNotExist)
}

func (h *Host) builtinAddProperty(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		key   string
		value starlark.Value
	)
	if err := starlark.UnpackArgs("add_property", args, kwargs, "key", &key, "value", &value); err != nil {
		return nil, err
	}
	goVal, err := toGoValue(value)
	if err != nil {
		return nil, fmt.Errorf("add_property: %w", err)
	}
	m := h.currentFrameModule()
	if m == nil {
		return nil, fmt.Errorf("add_property: called outside a module body")
	}
	m.AddProperty(key, goVal)
	return starlark.None, nil
}

func (h *Host) builtinCheck(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		cond starlark.Value
		msg  string
	)
	if err := starlark.UnpackArgs("check", args, kwargs, "cond", &cond, "msg", &msg); err != nil {
		return nil, err
	}
	passed := bool(cond.Truth())
	if len(h.benchStack) > 0 {
		top := h.benchStack[len(h.benchStack)-1]
		top.Checks = append(top.Checks, checkResult{Message: msg, Passed: passed})
		return starlark.None, nil
	}
	if !passed {
		return nil, zerr.New(zerr.ErrCodeCheckFailed, msg)
	}
	return starlark.None, nil
}

func (h *Host) builtinError(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var msg string
	if err := starlark.UnpackArgs("error", args, kwargs, "msg", &msg); err != nil {
		return nil, err
	}
	return nil, zerr.New(zerr.ErrCodeUserError, msg)
}
