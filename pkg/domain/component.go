package domain

import (
	"sort"

	zerr "github.com/architect-io/zenboard/pkg/errors"
)

// SpiceModel is the collaborator-shaped descriptor consumed verbatim by the
// external SPICE netlist writer (spec.md §4.H): a library + model name, the
// ordered net list the model binds to, and a raw args string.
type SpiceModel struct {
	Lib   string
	Name  string
	Nets  []*Net
	Args  string
}

// Component is a leaf instance: a symbol/footprint bound to nets through
// its signal pins.
type Component struct {
	Name       string
	Footprint  string
	Symbol     *Symbol           // nil if PinDefs is set instead
	PinDefs    map[string][]string // signal name -> pad ids, used when Symbol is nil
	Pins       map[string]*Net   // signal name -> bound net, as supplied by the caller
	Properties map[string]interface{}
	SpiceModel *SpiceModel

	// Type/prefix inputs, preserved verbatim (Open Question resolution:
	// both are kept; explicit Prefix wins over Type-derived, which falls
	// back to a generic default; no prefix is derived from the symbol).
	Type   string
	Prefix string

	// Post-elaboration fields.
	Refdes string
	Path   string
}

// requiredSignals returns the full set of signal names this component's
// symbol (or inline pin_defs) declares, each mapped to its pad id list. For
// a library-reference Symbol this resolves through Symbol.ResolvedDefinition
// (domain.SymbolLibraryResolver) rather than reading Symbol.Definition
// directly, which is always empty for that form.
func (c *Component) requiredSignals() (map[string][]string, error) {
	if c.Symbol != nil {
		defs, err := c.Symbol.ResolvedDefinition()
		if err != nil {
			return nil, err
		}
		out := make(map[string][]string, len(defs))
		for _, d := range defs {
			out[d.SignalName] = d.PadIDs
		}
		return out, nil
	}
	return c.PinDefs, nil
}

// ValidatePins enforces spec.md §4.D: every required signal must be
// covered by c.Pins, and c.Pins must name no signal the symbol/pin_defs
// doesn't declare. Returns a *zerr.Error naming every offending pin when
// validation fails — never just the first.
func (c *Component) ValidatePins() error {
	required, err := c.requiredSignals()
	if err != nil {
		return err
	}

	var missing []string
	for signal := range required {
		if _, ok := c.Pins[signal]; !ok {
			missing = append(missing, signal)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return zerr.MissingPins(c.Name, missing)
	}

	var unknown []string
	for signal := range c.Pins {
		if _, ok := required[signal]; !ok {
			unknown = append(unknown, signal)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return zerr.UnknownPin(c.Name, unknown)
	}
	return nil
}

// PadNets expands the signal-keyed Pins map into a pad-keyed map, repeating
// a signal's net across every pad id in its pad list. This is what
// flattening (spec.md §4.G) actually emits as a Component's pin->net
// mapping, satisfying testable property #3 (pins.keys() == required pad set).
func (c *Component) PadNets() (map[string]*Net, error) {
	required, err := c.requiredSignals()
	if err != nil {
		return nil, err
	}
	out := make(map[string]*Net)
	for signal, pads := range required {
		net := c.Pins[signal]
		for _, pad := range pads {
			out[pad] = net
		}
	}
	return out, nil
}

// AssignPin binds a Net value to a signal-named pin, rejecting anything
// that isn't a *Net (an InterfaceValue must be dereferenced by the caller
// first — a component pin never accepts an interface directly).
func (c *Component) AssignPin(signal string, value interface{}) error {
	net, ok := value.(*Net)
	if !ok {
		if _, isIface := value.(*InterfaceValue); isIface {
			return zerr.New(zerr.ErrCodePinKindMismatch, "Component pin expects Net, got Interface")
		}
		return zerr.New(zerr.ErrCodePinKindMismatch, "Component pin expects Net")
	}
	if c.Pins == nil {
		c.Pins = make(map[string]*Net)
	}
	c.Pins[signal] = net
	return nil
}
