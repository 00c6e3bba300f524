// Package schematic folds a completed elaboration instance tree into the
// flattened output spec.md §4.G describes: a path-keyed instance map plus a
// net list grouped by net identity, with reference designators assigned and
// net names disambiguated.
package schematic

import "gopkg.in/yaml.v3"

// InstanceKind distinguishes a Module node from a Component leaf in the
// flattened instance map.
type InstanceKind int

const (
	KindModule InstanceKind = iota
	KindComponent
)

func (k InstanceKind) String() string {
	if k == KindComponent {
		return "Component"
	}
	return "Module"
}

// SpiceModelAttrs is the exact attribute set spec.md §6 says the SPICE
// netlist writer consumes: the model's library reference, its name, the
// ordered net identities it binds to (by their final display name), and the
// raw args string.
type SpiceModelAttrs struct {
	ModelDef  string
	ModelName string
	ModelNets []string
	ModelArgs string
}

// Instance is one node of the flattened instance tree, keyed by its
// hierarchical path. Component-only fields are zero-valued on Module nodes
// and vice versa.
type Instance struct {
	Path string
	Kind InstanceKind

	// Component fields.
	Refdes     string
	Footprint  string
	Pins       map[string]int64 // pad id -> net identity
	SpiceModel *SpiceModelAttrs

	// Shared fields.
	Properties map[string]interface{}
}

// PortPath is (component_path, pin_id): the address of a pin on a flattened
// component, per spec.md §4.D.
type PortPath struct {
	ComponentPath string
	PinID         string
}

// NetEntry is one net's entry in the flattened net list: its identity, the
// disambiguated display name, and every port connected to it.
type NetEntry struct {
	ID    int64
	Name  string
	Ports []PortPath
}

// Schematic is the fully elaborated, flattened output: every instance in
// the tree plus the derived net list. Only nets connected to at least one
// component pin appear in Nets (testable property #6).
type Schematic struct {
	Instances map[string]*Instance
	Nets      []*NetEntry
}

// PropertiesYAML renders an instance's property bag as YAML: the
// intermediate form the external BOM/JSON formatter collaborator (spec.md
// §6) consumes before re-encoding to its own output representation.
func (i *Instance) PropertiesYAML() (string, error) {
	out, err := yaml.Marshal(i.Properties)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
