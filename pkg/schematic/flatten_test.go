package schematic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/architect-io/zenboard/pkg/domain"
)

func twoPadSymbol(t *testing.T) *domain.Symbol {
	t.Helper()
	sym, err := domain.NewSymbolFromDefinition("2pad", []domain.PinDef{
		{SignalName: "A", PadIDs: []string{"1"}},
		{SignalName: "B", PadIDs: []string{"2"}},
	})
	require.NoError(t, err)
	return sym
}

func TestAssignRefdesContiguousPerPrefix(t *testing.T) {
	root := domain.NewModule("main.zen", "", nil)
	sym := twoPadSymbol(t)
	n := domain.NewNet("n1", nil)

	names := []string{"c_res", "a_res", "b_cap"}
	types := []string{"resistor", "resistor", "capacitor"}
	for i, name := range names {
		c := &domain.Component{
			Name:   name,
			Type:   types[i],
			Symbol: sym,
			Pins:   map[string]*domain.Net{"A": n, "B": n},
		}
		root.AddChild(name, c)
	}

	sch, err := Flatten(root)
	require.NoError(t, err)

	want := map[string]string{"a_res": "R1", "b_cap": "C1", "c_res": "R2"}
	for path, refdes := range want {
		inst, ok := sch.Instances[path]
		require.True(t, ok, "missing instance at path %q", path)
		assert.Equal(t, refdes, inst.Refdes)
	}
}

func TestAssignRefdesExplicitPrefixWins(t *testing.T) {
	root := domain.NewModule("main.zen", "", nil)
	sym := twoPadSymbol(t)
	n := domain.NewNet("n1", nil)
	c := &domain.Component{Name: "weird", Type: "resistor", Prefix: "ZZ", Symbol: sym, Pins: map[string]*domain.Net{"A": n, "B": n}}
	root.AddChild("weird", c)

	sch, err := Flatten(root)
	require.NoError(t, err)
	assert.Equal(t, "ZZ1", sch.Instances["weird"].Refdes, "explicit prefix ZZ should win over the resistor->R table")
}

func TestAssignRefdesUnknownTypeFallsBackToGenericU(t *testing.T) {
	root := domain.NewModule("main.zen", "", nil)
	sym := twoPadSymbol(t)
	n := domain.NewNet("n1", nil)
	c := &domain.Component{Name: "mystery", Type: "unobtanium", Symbol: sym, Pins: map[string]*domain.Net{"A": n, "B": n}}
	root.AddChild("mystery", c)

	sch, err := Flatten(root)
	require.NoError(t, err)
	assert.Equal(t, "U1", sch.Instances["mystery"].Refdes, "expected generic U1 fallback")
}

func TestDedupNetNamesAcrossSiblingInstances(t *testing.T) {
	root := domain.NewModule("main.zen", "", nil)
	sym := twoPadSymbol(t)

	for _, label := range []string{"x", "y", "z"} {
		child := domain.NewModule("sub.zen", label, nil)
		internal := domain.NewNet("INTERNAL", nil)
		child.AddNet(internal)
		c := &domain.Component{Name: "U1", Symbol: sym, Pins: map[string]*domain.Net{"A": internal, "B": internal}}
		child.AddChild("u1", c)
		root.AddChild(label, child)
	}

	sch, err := Flatten(root)
	require.NoError(t, err)

	got := make(map[string]bool)
	for _, n := range sch.Nets {
		got[n.Name] = true
	}
	for _, want := range []string{"INTERNAL", "INTERNAL_2", "INTERNAL_3"} {
		assert.True(t, got[want], "net names = %v, want to include %q", got, want)
	}
}

func TestFlattenOmitsUnconnectedNets(t *testing.T) {
	root := domain.NewModule("main.zen", "", nil)
	root.AddNet(domain.NewNet("orphan", nil))

	sym := twoPadSymbol(t)
	connected := domain.NewNet("joined", nil)
	c := &domain.Component{Name: "U1", Symbol: sym, Pins: map[string]*domain.Net{"A": connected, "B": connected}}
	root.AddChild("u1", c)

	sch, err := Flatten(root)
	require.NoError(t, err)
	require.Len(t, sch.Nets, 1)
	assert.Equal(t, "joined", sch.Nets[0].Name)
}

func TestFlattenNetPortsNameBothPads(t *testing.T) {
	root := domain.NewModule("main.zen", "", nil)
	sym := twoPadSymbol(t)
	n := domain.NewNet("n1", nil)
	c := &domain.Component{Name: "U1", Symbol: sym, Pins: map[string]*domain.Net{"A": n, "B": n}}
	root.AddChild("u1", c)

	sch, err := Flatten(root)
	require.NoError(t, err)
	require.Len(t, sch.Nets, 1)
	assert.Len(t, sch.Nets[0].Ports, 2, "both pads of the same component should appear")
}
