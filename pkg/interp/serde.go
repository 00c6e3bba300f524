package interp

import (
	"encoding/json"
	"fmt"

	"github.com/architect-io/zenboard/pkg/domain"
	"go.starlark.net/starlark"
)

// serialize(v)/deserialize(type, json) (spec.md §4.C) round-trip a value
// through JSON. Plain scalars pass through as ordinary JSON values; Nets and
// nominal InterfaceValues need a tagged envelope since neither has a native
// JSON shape — a Net's identity in particular can't be reconstructed from
// JSON alone, so deserialize recovers it from the host's net registry
// (spec.md §8 testable property #4 scopes the round-trip guarantee to values
// created within the same elaboration run).
const (
	kindNet       = "net"
	kindInterface = "interface"
)

func encodeForJSON(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case bool, string:
		return val, nil
	case int64:
		return val, nil
	case float64:
		return val, nil
	case *domain.Net:
		return map[string]interface{}{"__kind": kindNet, "id": val.ID, "name": val.Name}, nil
	case *domain.InterfaceValue:
		fields := make(map[string]interface{}, len(val.Values))
		for name, fv := range val.Values {
			enc, err := encodeForJSON(fv)
			if err != nil {
				return nil, err
			}
			fields[name] = enc
		}
		return map[string]interface{}{
			"__kind": kindInterface,
			"type":   val.Factory.Key.OriginFile + "#" + val.Factory.Key.Name,
			"fields": fields,
		}, nil
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			enc, err := encodeForJSON(item)
			if err != nil {
				return nil, err
			}
			out[k] = enc
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			enc, err := encodeForJSON(item)
			if err != nil {
				return nil, err
			}
			out[i] = enc
		}
		return out, nil
	default:
		return nil, fmt.Errorf("serialize: cannot encode value of type %T", v)
	}
}

// builtinSerialize implements `serialize(v)`.
func (h *Host) builtinSerialize(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var v starlark.Value
	if err := starlark.UnpackArgs("serialize", args, kwargs, "v", &v); err != nil {
		return nil, err
	}
	goVal, err := toGoValue(v)
	if err != nil {
		return nil, fmt.Errorf("serialize: %w", err)
	}
	enc, err := encodeForJSON(goVal)
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(enc)
	if err != nil {
		return nil, fmt.Errorf("serialize: %w", err)
	}
	return starlark.String(out), nil
}

// builtinDeserialize implements `deserialize(type, json)`: type is any of
// the values accepted as an io()/config() type argument (Net, an
// InterfaceFactory, or a scalar type marker / enum(...)).
func (h *Host) builtinDeserialize(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		typ     starlark.Value
		jsonStr string
	)
	if err := starlark.UnpackArgs("deserialize", args, kwargs, "type", &typ, "json", &jsonStr); err != nil {
		return nil, err
	}
	isNet, iface, scalar, err := typeToFieldSpec("deserialize", typ)
	if err != nil {
		return nil, err
	}

	var raw interface{}
	if err := json.Unmarshal([]byte(jsonStr), &raw); err != nil {
		return nil, fmt.Errorf("deserialize: %w", err)
	}

	spec := domain.FieldSpec{Name: "value", IsNet: isNet, Interface: iface, Scalar: scalar}
	goVal, err := h.decodeValue(spec, raw)
	if err != nil {
		return nil, err
	}
	return toStarlarkValue(goVal)
}

func (h *Host) decodeValue(spec domain.FieldSpec, raw interface{}) (interface{}, error) {
	switch {
	case spec.IsNet:
		obj, ok := raw.(map[string]interface{})
		if !ok || obj["__kind"] != kindNet {
			return nil, fmt.Errorf("deserialize: expected a serialized Net")
		}
		idFloat, ok := obj["id"].(float64)
		if !ok {
			return nil, fmt.Errorf("deserialize: net envelope missing id")
		}
		n, ok := h.netRegistry[int64(idFloat)]
		if !ok {
			return nil, fmt.Errorf("deserialize: no net with id %d in this elaboration run", int64(idFloat))
		}
		return n, nil

	case spec.Interface != nil:
		obj, ok := raw.(map[string]interface{})
		if !ok || obj["__kind"] != kindInterface {
			return nil, fmt.Errorf("deserialize: expected a serialized interface")
		}
		fieldsRaw, _ := obj["fields"].(map[string]interface{})
		values := make(map[string]interface{}, len(spec.Interface.Fields))
		for _, fs := range spec.Interface.Fields {
			fv, ok := fieldsRaw[fs.Name]
			if !ok {
				return nil, fmt.Errorf("deserialize: interface %s missing field %q", spec.Interface.Key.Name, fs.Name)
			}
			decoded, err := h.decodeValue(fs, fv)
			if err != nil {
				return nil, err
			}
			values[fs.Name] = decoded
		}
		h.registerValueNets(&domain.InterfaceValue{Factory: spec.Interface, Values: values})
		return &domain.InterfaceValue{Factory: spec.Interface, Values: values}, nil

	case spec.Scalar != nil:
		return decodeScalar(spec.Scalar, raw)

	default:
		return nil, fmt.Errorf("deserialize: no type information to decode against")
	}
}

func decodeScalar(spec *domain.ScalarSpec, raw interface{}) (interface{}, error) {
	switch spec.Kind {
	case domain.ScalarBool:
		b, ok := raw.(bool)
		if !ok {
			return nil, fmt.Errorf("deserialize: expected bool")
		}
		return b, nil
	case domain.ScalarInt:
		f, ok := raw.(float64)
		if !ok {
			return nil, fmt.Errorf("deserialize: expected int")
		}
		return int64(f), nil
	case domain.ScalarFloat:
		f, ok := raw.(float64)
		if !ok {
			return nil, fmt.Errorf("deserialize: expected float")
		}
		return f, nil
	case domain.ScalarStr, domain.ScalarEnum:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("deserialize: expected string")
		}
		return s, nil
	default:
		return nil, fmt.Errorf("deserialize: unsupported scalar kind")
	}
}
