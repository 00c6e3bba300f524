package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sot23() *Symbol {
	sym, err := NewSymbolFromDefinition("SOT23", []PinDef{
		{SignalName: "VCC", PadIDs: []string{"1"}},
		{SignalName: "GND", PadIDs: []string{"2"}},
		{SignalName: "OUT", PadIDs: []string{"3"}},
	})
	if err != nil {
		panic(err)
	}
	return sym
}

func TestValidatePinsMissing(t *testing.T) {
	c := &Component{Name: "U1", Symbol: sot23(), Pins: map[string]*Net{"VCC": NewNet("n1", nil)}}
	assert.Error(t, c.ValidatePins(), "expected a missing-pins error")
}

func TestValidatePinsUnknown(t *testing.T) {
	c := &Component{
		Name:   "U1",
		Symbol: sot23(),
		Pins: map[string]*Net{
			"VCC":     NewNet("n1", nil),
			"GND":     NewNet("n2", nil),
			"OUT":     NewNet("n3", nil),
			"INVALID": NewNet("n4", nil),
		},
	}
	assert.Error(t, c.ValidatePins(), "expected an unknown-pin error")
}

func TestValidatePinsComplete(t *testing.T) {
	c := &Component{
		Name:   "U1",
		Symbol: sot23(),
		Pins: map[string]*Net{
			"VCC": NewNet("n1", nil),
			"GND": NewNet("n2", nil),
			"OUT": NewNet("n3", nil),
		},
	}
	assert.NoError(t, c.ValidatePins())
}

func TestPadNetsExpandsSignalToEveryPad(t *testing.T) {
	sym, err := NewSymbolFromDefinition("dual-pad", []PinDef{
		{SignalName: "GND", PadIDs: []string{"2", "4"}},
	})
	require.NoError(t, err)
	gnd := NewNet("GND", nil)
	c := &Component{Name: "U1", Symbol: sym, Pins: map[string]*Net{"GND": gnd}}
	pads, err := c.PadNets()
	require.NoError(t, err)
	assert.Same(t, gnd, pads["2"], "pad 2 should bind to GND")
	assert.Same(t, gnd, pads["4"], "pad 4 should bind to GND")
}

type stubLibraryResolver struct {
	defs []PinDef
	err  error
}

func (r *stubLibraryResolver) ResolvePins(libraryPath, libraryName string) ([]PinDef, error) {
	return r.defs, r.err
}

func TestValidatePinsLibraryReferenceResolvesRequiredPads(t *testing.T) {
	sym := NewSymbolFromLibrary("parts.kicad_sym", "SOT23", &stubLibraryResolver{defs: []PinDef{
		{SignalName: "VCC", PadIDs: []string{"1"}},
		{SignalName: "GND", PadIDs: []string{"2"}},
	}})
	c := &Component{Name: "U1", Symbol: sym, Pins: map[string]*Net{
		"VCC": NewNet("n1", nil),
		"GND": NewNet("n2", nil),
	}}
	assert.NoError(t, c.ValidatePins(), "a resolved library symbol should validate like an explicit definition")

	missing := &Component{Name: "U2", Symbol: sym, Pins: map[string]*Net{"VCC": NewNet("n3", nil)}}
	assert.Error(t, missing.ValidatePins(), "expected GND to be reported missing, not vacuously satisfied")
}

func TestValidatePinsLibraryReferenceWithoutResolverErrors(t *testing.T) {
	sym := NewSymbolFromLibrary("parts.kicad_sym", "SOT23", nil)
	c := &Component{Name: "U1", Symbol: sym, Pins: map[string]*Net{"VCC": NewNet("n1", nil)}}
	assert.Error(t, c.ValidatePins(), "an unresolved library symbol must fail loudly, never pass vacuously")
}

func TestAssignPinRejectsInterface(t *testing.T) {
	c := &Component{Name: "U1"}
	factory := NewInterfaceFactory(TypeKey{OriginFile: "f.zen", Name: "Power"}, []FieldSpec{
		{Name: "VCC", IsNet: true},
	})
	iv, err := Instantiate(factory, nil, func(string) string { return "" })
	require.NoError(t, err)
	assert.Error(t, c.AssignPin("VCC", iv), "expected an error binding an InterfaceValue directly to a pin")
}

func TestAssignPinAcceptsNet(t *testing.T) {
	c := &Component{Name: "U1"}
	n := NewNet("n1", nil)
	require.NoError(t, c.AssignPin("VCC", n))
	assert.Same(t, n, c.Pins["VCC"], "AssignPin did not bind the supplied net")
}
