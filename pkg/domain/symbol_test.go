package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSymbolFromDefinitionRejectsDuplicatePad(t *testing.T) {
	_, err := NewSymbolFromDefinition("bad", []PinDef{
		{SignalName: "VCC", PadIDs: []string{"1"}},
		{SignalName: "GND", PadIDs: []string{"1"}},
	})
	assert.Error(t, err, "expected an error when two signals claim the same pad")
}

func TestNewSymbolFromDefinitionRejectsEmptyPadList(t *testing.T) {
	_, err := NewSymbolFromDefinition("bad", []PinDef{
		{SignalName: "NC", PadIDs: nil},
	})
	assert.Error(t, err, "expected an error for a signal with no pads")
}

func TestRequiredPadsMapsPadToSignal(t *testing.T) {
	sym, err := NewSymbolFromDefinition("dual", []PinDef{
		{SignalName: "GND", PadIDs: []string{"2", "4"}},
	})
	require.NoError(t, err)
	pads, err := sym.RequiredPads()
	require.NoError(t, err)
	assert.Equal(t, "GND", pads["2"])
	assert.Equal(t, "GND", pads["4"])
}

func TestSortedSignalNames(t *testing.T) {
	sym, err := NewSymbolFromDefinition("s", []PinDef{
		{SignalName: "OUT", PadIDs: []string{"3"}},
		{SignalName: "GND", PadIDs: []string{"2"}},
		{SignalName: "VCC", PadIDs: []string{"1"}},
	})
	require.NoError(t, err)
	names, err := sym.SortedSignalNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"GND", "OUT", "VCC"}, names)
}

func TestRequiredPadsLibraryReferenceUsesResolver(t *testing.T) {
	sym := NewSymbolFromLibrary("parts.kicad_sym", "SOT23", &stubLibraryResolver{defs: []PinDef{
		{SignalName: "GND", PadIDs: []string{"2"}},
	}})
	pads, err := sym.RequiredPads()
	require.NoError(t, err)
	assert.Equal(t, "GND", pads["2"])
}

func TestRequiredPadsLibraryReferenceWithoutResolverErrors(t *testing.T) {
	sym := NewSymbolFromLibrary("parts.kicad_sym", "SOT23", nil)
	_, err := sym.RequiredPads()
	assert.Error(t, err, "a library symbol with no configured resolver must error, not silently report no pads")
}
