package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckFieldCompatibilityNet(t *testing.T) {
	spec := FieldSpec{Name: "vcc", IsNet: true}
	n := NewNet("n1", nil)
	v, err := CheckFieldCompatibility(spec, n)
	require.NoError(t, err)
	assert.Same(t, n, v.(*Net))

	_, err = CheckFieldCompatibility(spec, "not a net")
	assert.Error(t, err, "expected an error binding a string where Net is required")
}

func TestCheckFieldCompatibilityInterfaceNominal(t *testing.T) {
	powerA := NewInterfaceFactory(TypeKey{OriginFile: "a.zen", Name: "Power"}, []FieldSpec{{Name: "VCC", IsNet: true}})
	powerB := NewInterfaceFactory(TypeKey{OriginFile: "b.zen", Name: "Power"}, []FieldSpec{{Name: "VCC", IsNet: true}})

	spec := FieldSpec{Name: "p", Interface: powerA}
	ivA, err := Instantiate(powerA, nil, func(string) string { return "" })
	require.NoError(t, err)
	_, err = CheckFieldCompatibility(spec, ivA)
	assert.NoError(t, err, "expected a Power value to satisfy a Power field")

	ivB, err := Instantiate(powerB, nil, func(string) string { return "" })
	require.NoError(t, err)
	_, err = CheckFieldCompatibility(spec, ivB)
	assert.Error(t, err, "expected structurally-identical-but-differently-keyed interfaces to be incompatible")
}

func TestCheckFieldCompatibilityScalarEnum(t *testing.T) {
	spec := FieldSpec{Name: "mode", Scalar: &ScalarSpec{Kind: ScalarEnum, Variants: []string{"a", "b"}}}
	_, err := CheckFieldCompatibility(spec, "a")
	assert.NoError(t, err, "expected %q to be an accepted variant", "a")
	_, err = CheckFieldCompatibility(spec, "c")
	assert.Error(t, err, "expected an error for a variant outside the declared set")
}

func TestCheckFieldCompatibilityScalarIntAcceptsOnlyInt(t *testing.T) {
	spec := FieldSpec{Name: "count", Scalar: &ScalarSpec{Kind: ScalarInt}}
	_, err := CheckFieldCompatibility(spec, int64(3))
	assert.NoError(t, err, "expected int64 to satisfy an int field")
	_, err = CheckFieldCompatibility(spec, 3.5)
	assert.Error(t, err, "expected a float to be rejected for an int-only field")
}
