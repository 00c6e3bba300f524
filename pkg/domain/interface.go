package domain

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
)

// ScalarKind enumerates the primitive types a config()/io() scalar field or
// interface field may declare.
type ScalarKind int

const (
	ScalarBool ScalarKind = iota
	ScalarInt
	ScalarFloat
	ScalarStr
	ScalarEnum
)

func (k ScalarKind) String() string {
	switch k {
	case ScalarBool:
		return "bool"
	case ScalarInt:
		return "int"
	case ScalarFloat:
		return "float"
	case ScalarStr:
		return "str"
	case ScalarEnum:
		return "enum"
	default:
		return "unknown"
	}
}

// CtyType reports the go-cty type backing this scalar kind, used to
// normalize config()/io() scalar values through the same typed-value
// representation the teacher's datacenter schema evaluator uses for its
// expression results (an enum is a constrained cty.String — its variant
// list is enforced separately, not encoded in the cty.Type itself).
func (k ScalarKind) CtyType() cty.Type {
	switch k {
	case ScalarBool:
		return cty.Bool
	case ScalarInt, ScalarFloat:
		return cty.Number
	default:
		return cty.String
	}
}

// ScalarSpec describes a typed scalar field: field(scalar_type, default) or
// an io()/config() declaration with a primitive (non-Net, non-Interface) type.
type ScalarSpec struct {
	Kind     ScalarKind
	Variants []string // populated only when Kind == ScalarEnum
	Default  interface{}
	HasDefault bool
}

// TypeKey is an InterfaceFactory's nominal identity: (origin_file,
// factory_name). Two interface values are promotion-compatible iff they
// share a TypeKey — structural shape is irrelevant to the compatibility
// rule, only the nominal key is.
type TypeKey struct {
	OriginFile string
	Name       string
}

// FieldSpec is one (name, spec) entry in an InterfaceFactory: the spec is
// either the Net type itself, a nested InterfaceFactory, or a scalar field.
type FieldSpec struct {
	Name string

	// Exactly one of the following is non-nil/non-zero.
	IsNet     bool
	Interface *InterfaceFactory
	Scalar    *ScalarSpec
}

// InterfaceFactory binds a type name to an ordered list of fields. Calling
// it (via the interpreter host's `interface(...)` builtin's resulting
// value) produces an InterfaceValue.
type InterfaceFactory struct {
	Key    TypeKey
	Fields []FieldSpec
}

// NewInterfaceFactory builds a factory from an ordered field list.
func NewInterfaceFactory(key TypeKey, fields []FieldSpec) *InterfaceFactory {
	return &InterfaceFactory{Key: key, Fields: fields}
}

// Field looks up a declared field by name, preserving declaration order for
// callers that need it (Instantiate iterates Fields directly).
func (f *InterfaceFactory) Field(name string) (FieldSpec, bool) {
	for _, fs := range f.Fields {
		if fs.Name == name {
			return fs, true
		}
	}
	return FieldSpec{}, false
}

// InterfaceValue is an immutable record produced by instantiating a factory.
// Each field value is either *Net, *InterfaceValue, or a scalar
// (bool/int64/float64/string).
type InterfaceValue struct {
	Factory *InterfaceFactory
	Values  map[string]interface{}
}

// Instantiate builds an InterfaceValue for factory f, allocating a fresh Net
// for every Net-kind field that isn't explicitly supplied in overrides, and
// recursively instantiating nested interface fields. overrides lets a caller
// (the Net()/interface() builtin machinery) pre-bind specific field values;
// it may be nil.
func Instantiate(f *InterfaceFactory, overrides map[string]interface{}, netName func(field string) string) (*InterfaceValue, error) {
	values := make(map[string]interface{}, len(f.Fields))
	for _, field := range f.Fields {
		if v, ok := overrides[field.Name]; ok {
			values[field.Name] = v
			continue
		}
		switch {
		case field.IsNet:
			values[field.Name] = NewNet(netName(field.Name), nil)
		case field.Interface != nil:
			nested, err := Instantiate(field.Interface, nil, func(sub string) string {
				return netName(field.Name + "." + sub)
			})
			if err != nil {
				return nil, err
			}
			values[field.Name] = nested
		case field.Scalar != nil:
			if field.Scalar.HasDefault {
				values[field.Name] = field.Scalar.Default
			} else {
				return nil, fmt.Errorf("interface %s.%s: scalar field %q has no default and no value supplied",
					f.Key.OriginFile, f.Key.Name, field.Name)
			}
		default:
			return nil, fmt.Errorf("interface %s.%s: field %q has no spec", f.Key.OriginFile, f.Key.Name, field.Name)
		}
	}
	return &InterfaceValue{Factory: f, Values: values}, nil
}

// SameType reports whether two interface values share a nominal type key —
// the sole promotion-compatibility test (structural shape is irrelevant).
func (v *InterfaceValue) SameType(other *InterfaceValue) bool {
	if v == nil || other == nil {
		return v == other
	}
	return v.Factory.Key == other.Factory.Key
}

// Field resolves a (possibly dotted) field path, e.g. "power.gnd", walking
// through nested InterfaceValues.
func (v *InterfaceValue) Field(path string) (interface{}, bool) {
	cur := interface{}(v)
	for _, part := range splitDotted(path) {
		iv, ok := cur.(*InterfaceValue)
		if !ok {
			return nil, false
		}
		val, ok := iv.Values[part]
		if !ok {
			return nil, false
		}
		cur = val
	}
	return cur, true
}

func splitDotted(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}
