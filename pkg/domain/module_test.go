package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModuleBindIORequiredMissing(t *testing.T) {
	m := NewModule("sub.zen", "a", map[string]interface{}{})
	_, err := m.BindIO(Placeholder{Name: "IN", IsNet: true})
	assert.Error(t, err, "expected a missing-IO error when a required io() has no supplied value")
}

func TestModuleBindIODefault(t *testing.T) {
	m := NewModule("sub.zen", "a", map[string]interface{}{})
	v, err := m.BindIO(Placeholder{Name: "WIDTH", Scalar: &ScalarSpec{Kind: ScalarInt}, HasDefault: true, Default: int64(8)})
	require.NoError(t, err)
	assert.Equal(t, int64(8), v.(int64))
}

func TestModuleBindIOSupplied(t *testing.T) {
	n := NewNet("n1", nil)
	m := NewModule("sub.zen", "a", map[string]interface{}{"IN": n})
	v, err := m.BindIO(Placeholder{Name: "IN", IsNet: true})
	require.NoError(t, err)
	assert.Same(t, n, v.(*Net))
}

func TestModuleSealUnusedInput(t *testing.T) {
	m := NewModule("sub.zen", "a", map[string]interface{}{"IN": NewNet("n1", nil), "EXTRA": NewNet("n2", nil)})
	_, err := m.BindIO(Placeholder{Name: "IN", IsNet: true})
	require.NoError(t, err)
	assert.Error(t, m.Seal(), "expected Seal to report EXTRA as an unused input")
}

func TestModuleSealIdempotent(t *testing.T) {
	m := NewModule("sub.zen", "a", nil)
	assert.NoError(t, m.Seal())
	assert.NoError(t, m.Seal(), "second Seal call should be a no-op")
}

func TestModuleAddChildJoinsPath(t *testing.T) {
	root := NewModule("main.zen", "", nil)
	child := NewModule("sub.zen", "a", nil)
	root.AddChild("a", child)
	assert.Equal(t, "a", child.Path)

	grandchild := NewModule("leaf.zen", "b", nil)
	child.AddChild("b", grandchild)
	assert.Equal(t, "a.b", grandchild.Path)
}

func TestModuleAllNetsCollectsDescendants(t *testing.T) {
	root := NewModule("main.zen", "", nil)
	n1 := NewNet("n1", nil)
	root.AddNet(n1)

	child := NewModule("sub.zen", "a", nil)
	n2 := NewNet("n2", nil)
	child.AddNet(n2)
	root.AddChild("a", child)

	comp := &Component{Name: "U1", Pins: map[string]*Net{"VCC": NewNet("n3", nil)}}
	root.AddChild("u1", comp)

	assert.Len(t, root.AllNets(), 3)
}
