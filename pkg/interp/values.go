// Package interp embeds go.starlark.net as the deterministic Python-subset
// evaluator spec.md §4.C describes, wiring its builtins into the domain
// value model (pkg/domain) and driving the tree-walk elaboration that
// produces a root Module instance.
package interp

import (
	"fmt"

	"github.com/architect-io/zenboard/pkg/domain"
	"go.starlark.net/starlark"
)

// netValue wraps *domain.Net as a starlark.Value so it can flow through the
// evaluator (stored in locals, passed as kwargs, returned from a module).
type netValue struct{ net *domain.Net }

func (v *netValue) String() string        { return fmt.Sprintf("Net(%q)", v.net.Name) }
func (v *netValue) Type() string          { return "Net" }
func (v *netValue) Freeze()               {}
func (v *netValue) Truth() starlark.Bool  { return starlark.True }
func (v *netValue) Hash() (uint32, error) { return uint32(v.net.ID), nil }

// netTypeValue is the sentinel representing "the Net type itself": the
// value `Net` refers to both when used bare as an io()/config()/field()
// type argument and when called to construct an instance, so it carries a
// host reference and is itself Callable — `Net("vcc")` and `io("x", Net)`
// read the same global.
type netTypeValue struct{ host *Host }

func (v netTypeValue) String() string        { return "Net" }
func (v netTypeValue) Type() string          { return "NetType" }
func (v netTypeValue) Freeze()               {}
func (v netTypeValue) Truth() starlark.Bool  { return starlark.True }
func (v netTypeValue) Hash() (uint32, error) { return 0, nil }
func (v netTypeValue) Name() string          { return "Net" }

var _ starlark.Callable = netTypeValue{}

func (v netTypeValue) CallInternal(thread *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	return v.host.builtinNet(thread, nil, args, kwargs)
}

// interfaceFactoryValue wraps *domain.InterfaceFactory. It is Callable:
// calling it instantiates a fresh InterfaceValue.
type interfaceFactoryValue struct {
	factory *domain.InterfaceFactory
	host    *Host
}

func (v *interfaceFactoryValue) String() string { return fmt.Sprintf("<interface %s>", v.factory.Key.Name) }
func (v *interfaceFactoryValue) Type() string    { return "InterfaceFactory" }
func (v *interfaceFactoryValue) Freeze()         {}
func (v *interfaceFactoryValue) Truth() starlark.Bool { return starlark.True }
func (v *interfaceFactoryValue) Hash() (uint32, error) {
	return 0, fmt.Errorf("unhashable type: InterfaceFactory")
}
func (v *interfaceFactoryValue) Name() string { return v.factory.Key.Name }

func (v *interfaceFactoryValue) CallInternal(thread *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(args) > 0 {
		return nil, fmt.Errorf("interface %s: takes no positional arguments", v.factory.Key.Name)
	}
	overrides := map[string]interface{}{}
	for _, kw := range kwargs {
		name := string(kw[0].(starlark.String))
		goVal, err := toGoValue(kw[1])
		if err != nil {
			return nil, fmt.Errorf("interface %s.%s: %w", v.factory.Key.Name, name, err)
		}
		overrides[name] = goVal
	}
	frame := v.host.currentFrame()
	iv, err := domain.Instantiate(v.factory, overrides, frame.netNamer())
	if err != nil {
		return nil, err
	}
	v.host.registerValueNets(iv)
	return &interfaceValueWrapper{iv: iv}, nil
}

var _ starlark.Callable = (*interfaceFactoryValue)(nil)

// interfaceValueWrapper wraps *domain.InterfaceValue, exposing its fields
// as starlark attributes (iface.NET, iface.power.gnd, …).
type interfaceValueWrapper struct{ iv *domain.InterfaceValue }

func (v *interfaceValueWrapper) String() string { return fmt.Sprintf("<interface value %s>", v.iv.Factory.Key.Name) }
func (v *interfaceValueWrapper) Type() string    { return "Interface" }
func (v *interfaceValueWrapper) Freeze()         {}
func (v *interfaceValueWrapper) Truth() starlark.Bool { return starlark.True }
func (v *interfaceValueWrapper) Hash() (uint32, error) {
	return 0, fmt.Errorf("unhashable type: Interface")
}

func (v *interfaceValueWrapper) Attr(name string) (starlark.Value, error) {
	val, ok := v.iv.Values[name]
	if !ok {
		return nil, nil // no such attribute; starlark reports AttributeError itself
	}
	return toStarlarkValue(val)
}

func (v *interfaceValueWrapper) AttrNames() []string {
	names := make([]string, 0, len(v.iv.Values))
	for _, f := range v.iv.Factory.Fields {
		names = append(names, f.Name)
	}
	return names
}

var _ starlark.HasAttrs = (*interfaceValueWrapper)(nil)

// componentValue wraps *domain.Component.
type componentValue struct{ c *domain.Component }

func (v *componentValue) String() string        { return fmt.Sprintf("Component(%q)", v.c.Name) }
func (v *componentValue) Type() string          { return "Component" }
func (v *componentValue) Freeze()               {}
func (v *componentValue) Truth() starlark.Bool  { return starlark.True }
func (v *componentValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: Component") }

// symbolValue wraps *domain.Symbol.
type symbolValue struct{ s *domain.Symbol }

func (v *symbolValue) String() string        { return fmt.Sprintf("Symbol(%q)", v.s.Name) }
func (v *symbolValue) Type() string          { return "Symbol" }
func (v *symbolValue) Freeze()               {}
func (v *symbolValue) Truth() starlark.Bool  { return starlark.True }
func (v *symbolValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: Symbol") }

// spiceModelValue wraps *domain.SpiceModel.
type spiceModelValue struct{ m *domain.SpiceModel }

func (v *spiceModelValue) String() string        { return fmt.Sprintf("SpiceModel(%s.%s)", v.m.Lib, v.m.Name) }
func (v *spiceModelValue) Type() string          { return "SpiceModel" }
func (v *spiceModelValue) Freeze()               {}
func (v *spiceModelValue) Truth() starlark.Bool  { return starlark.True }
func (v *spiceModelValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: SpiceModel") }

// scalarTypeValue is the sentinel produced by the bare scalar type
// builtins (Int, Float, Bool, Str) and by enum(...), used as the `type`
// argument to io()/config() or the `scalar_type` argument to field().
type scalarTypeValue struct {
	kind     domain.ScalarKind
	variants []string
}

func (v scalarTypeValue) String() string { return v.kind.String() }
func (v scalarTypeValue) Type() string   { return "ScalarType" }
func (v scalarTypeValue) Freeze()        {}
func (v scalarTypeValue) Truth() starlark.Bool { return starlark.True }
func (v scalarTypeValue) Hash() (uint32, error) {
	return 0, fmt.Errorf("unhashable type: ScalarType")
}

// fieldSpecValue wraps a *domain.ScalarSpec produced by field(scalar_type,
// default), used as an interface(...) field value.
type fieldSpecValue struct{ scalar *domain.ScalarSpec }

func (v *fieldSpecValue) String() string        { return fmt.Sprintf("field(%s)", v.scalar.Kind) }
func (v *fieldSpecValue) Type() string          { return "FieldSpec" }
func (v *fieldSpecValue) Freeze()               {}
func (v *fieldSpecValue) Truth() starlark.Bool  { return starlark.True }
func (v *fieldSpecValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: FieldSpec") }

// pathValue wraps a resolved filesystem path produced by File()/Path().
type pathValue struct {
	path          string
	allowNotExist bool
}

func (v *pathValue) String() string        { return v.path }
func (v *pathValue) Type() string          { return "Path" }
func (v *pathValue) Freeze()               {}
func (v *pathValue) Truth() starlark.Bool  { return starlark.Bool(v.path != "") }
func (v *pathValue) Hash() (uint32, error) { return starlark.String(v.path).Hash() }

// toGoValue unwraps a starlark.Value produced by our own builtins (or a
// primitive) into the Go representation the domain package expects:
// *domain.Net, *domain.InterfaceValue, bool, int64, float64, string.
func toGoValue(v starlark.Value) (interface{}, error) {
	switch val := v.(type) {
	case *netValue:
		return val.net, nil
	case *interfaceValueWrapper:
		return val.iv, nil
	case netTypeValue:
		return domain.NetTypeMarker{}, nil
	case starlark.Bool:
		return bool(val), nil
	case starlark.Int:
		i, ok := val.Int64()
		if !ok {
			return nil, fmt.Errorf("integer literal out of range: %s", val.String())
		}
		return i, nil
	case starlark.Float:
		return float64(val), nil
	case starlark.String:
		return string(val), nil
	case starlark.NoneType:
		return nil, nil
	case *pathValue:
		return val.path, nil
	case *starlark.Dict:
		out := make(map[string]interface{}, val.Len())
		for _, item := range val.Items() {
			key, ok := starlark.AsString(item[0])
			if !ok {
				return nil, fmt.Errorf("dict keys must be strings")
			}
			v, err := toGoValue(item[1])
			if err != nil {
				return nil, err
			}
			out[key] = v
		}
		return out, nil
	case *starlark.List:
		out := make([]interface{}, val.Len())
		for i := 0; i < val.Len(); i++ {
			v, err := toGoValue(val.Index(i))
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case starlark.Tuple:
		out := make([]interface{}, len(val))
		for i, item := range val {
			v, err := toGoValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value of type %s", v.Type())
	}
}

// toGoStringList converts a starlark.List/Tuple of strings into []string,
// for the pad-id lists in Component's pin_defs and Symbol's definitions.
func toGoStringList(v starlark.Value) ([]string, error) {
	var items []starlark.Value
	switch val := v.(type) {
	case *starlark.List:
		for i := 0; i < val.Len(); i++ {
			items = append(items, val.Index(i))
		}
	case starlark.Tuple:
		items = append(items, val...)
	default:
		return nil, fmt.Errorf("expected a list of strings, got %s", v.Type())
	}
	out := make([]string, len(items))
	for i, item := range items {
		s, ok := starlark.AsString(item)
		if !ok {
			return nil, fmt.Errorf("expected a string, got %s", item.Type())
		}
		out[i] = s
	}
	return out, nil
}

// toStarlarkValue wraps a Go value produced by the domain package back into
// a starlark.Value for evaluator visibility.
func toStarlarkValue(v interface{}) (starlark.Value, error) {
	switch val := v.(type) {
	case *domain.Net:
		return &netValue{net: val}, nil
	case *domain.InterfaceValue:
		return &interfaceValueWrapper{iv: val}, nil
	case domain.NetTypeMarker:
		return netTypeValue{}, nil
	case bool:
		return starlark.Bool(val), nil
	case int64:
		return starlark.MakeInt64(val), nil
	case float64:
		return starlark.Float(val), nil
	case string:
		return starlark.String(val), nil
	case nil:
		return starlark.None, nil
	default:
		return nil, fmt.Errorf("cannot represent %T as a starlark value", v)
	}
}
