package domain

import (
	"fmt"
	"math"

	zerr "github.com/architect-io/zenboard/pkg/errors"
	"github.com/zclconf/go-cty/cty/gocty"
)

// FieldKind categorizes a runtime value the way spec.md §4.D requires:
// Net, NetType (the type marker itself), InterfaceFactory, or InterfaceValue.
type FieldKind int

const (
	FieldKindNet FieldKind = iota
	FieldKindNetType
	FieldKindInterfaceFactory
	FieldKindInterfaceValue
	FieldKindScalar
	FieldKindUnknown
)

// NetTypeMarker is the sentinel value representing "the Net type itself" —
// what io("x", Net) passes as its type argument, as opposed to an actual
// *Net instance.
type NetTypeMarker struct{}

// Categorize inspects a runtime value and reports its FieldKind.
func Categorize(v interface{}) FieldKind {
	switch v.(type) {
	case *Net:
		return FieldKindNet
	case NetTypeMarker:
		return FieldKindNetType
	case *InterfaceFactory:
		return FieldKindInterfaceFactory
	case *InterfaceValue:
		return FieldKindInterfaceValue
	case bool, int64, float64, string:
		return FieldKindScalar
	default:
		return FieldKindUnknown
	}
}

// CheckFieldCompatibility validates that a provided value satisfies a field
// specification, per the compatibility rule in spec.md §4.D:
//
//	(NetType|Net, Net) matches
//	(InterfaceFactory|InterfaceValue, InterfaceValue of same nominal key) matches
//	scalar fields compare by primitive type
//
// spec.Name is used only to build a descriptive error.
func CheckFieldCompatibility(spec FieldSpec, provided interface{}) (interface{}, error) {
	switch {
	case spec.IsNet:
		net, ok := provided.(*Net)
		if !ok {
			return nil, zerr.New(zerr.ErrCodeFieldMismatch,
				fmt.Sprintf("field %q expects Net, got %s", spec.Name, describeKind(provided)))
		}
		return net, nil

	case spec.Interface != nil:
		iv, ok := provided.(*InterfaceValue)
		if !ok {
			return nil, zerr.New(zerr.ErrCodeFieldMismatch,
				fmt.Sprintf("field %q expects interface %s, got %s", spec.Name, spec.Interface.Key.Name, describeKind(provided)))
		}
		if iv.Factory.Key != spec.Interface.Key {
			return nil, zerr.New(zerr.ErrCodeFieldMismatch,
				fmt.Sprintf("field %q expects interface %s, got interface %s", spec.Name, spec.Interface.Key.Name, iv.Factory.Key.Name))
		}
		return iv, nil

	case spec.Scalar != nil:
		return checkScalar(spec, provided)

	default:
		return nil, zerr.New(zerr.ErrCodeFieldMismatch, fmt.Sprintf("field %q has no spec", spec.Name))
	}
}

func checkScalar(spec FieldSpec, provided interface{}) (interface{}, error) {
	switch spec.Scalar.Kind {
	case ScalarBool:
		if b, ok := provided.(bool); ok {
			return normalizeScalar(spec, b)
		}
	case ScalarInt:
		if i, ok := provided.(int64); ok {
			return normalizeScalar(spec, i)
		}
	case ScalarFloat:
		switch n := provided.(type) {
		case float64:
			return normalizeScalar(spec, n)
		case int64:
			return normalizeScalar(spec, float64(n))
		}
	case ScalarStr:
		if s, ok := provided.(string); ok {
			return normalizeScalar(spec, s)
		}
	case ScalarEnum:
		s, ok := provided.(string)
		if !ok {
			break
		}
		for _, variant := range spec.Scalar.Variants {
			if variant == s {
				return normalizeScalar(spec, s)
			}
		}
		return nil, zerr.New(zerr.ErrCodeFieldMismatch,
			fmt.Sprintf("field %q: %q is not one of %v", spec.Name, s, spec.Scalar.Variants))
	}
	return nil, zerr.New(zerr.ErrCodeFieldMismatch,
		fmt.Sprintf("field %q expects %s, got %s", spec.Name, spec.Scalar.Kind, describeKind(provided)))
}

// normalizeScalar round-trips a value that has already passed its native Go
// type check through go-cty, the same typed-value layer the teacher's
// datacenter schema evaluator (pkg/schema/datacenter/v1) uses to carry
// expression results; it rejects a value go's type switch let through but
// that is invalid for the declared kind (NaN/Inf for a number field is
// rejected before the cty conversion), and returns the original Go value on
// success.
func normalizeScalar(spec FieldSpec, v interface{}) (interface{}, error) {
	if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
		return nil, zerr.New(zerr.ErrCodeFieldMismatch,
			fmt.Sprintf("field %q: %v is not a finite number", spec.Name, f))
	}
	if _, err := gocty.ToCtyValue(v, spec.Scalar.Kind.CtyType()); err != nil {
		return nil, zerr.New(zerr.ErrCodeFieldMismatch,
			fmt.Sprintf("field %q: %v", spec.Name, err))
	}
	return v, nil
}

func describeKind(v interface{}) string {
	switch Categorize(v) {
	case FieldKindNet:
		return "Net"
	case FieldKindNetType:
		return "NetType"
	case FieldKindInterfaceFactory:
		return "InterfaceFactory"
	case FieldKindInterfaceValue:
		return "InterfaceValue"
	case FieldKindScalar:
		return fmt.Sprintf("%T", v)
	default:
		return "<unknown>"
	}
}
