package schematic

import (
	"fmt"
	"sort"

	"github.com/architect-io/zenboard/pkg/domain"
)

// Flatten folds a sealed root Module instance into a Schematic (spec.md
// §4.G). It must only be called once the root module has returned — the
// tree is immutable from this point on.
func Flatten(root *domain.Module) (*Schematic, error) {
	assignRefdes(root)
	names := dedupNetNames(root)
	// A named net reachable only through a component pin, never recorded on
	// a module's own Nets, keeps its own name.
	for _, n := range root.AllNets() {
		if n == nil || n.Name == "" {
			continue
		}
		if _, ok := names[n.ID]; !ok {
			names[n.ID] = n.Name
		}
	}

	s := &Schematic{Instances: make(map[string]*Instance)}
	if err := walkInstances(root, s, names); err != nil {
		return nil, err
	}
	s.Nets = buildNetList(s, names)
	return s, nil
}

// defaultPrefix maps a Component's declared type= string to the
// conventional reference-designator letter(s), per spec.md §4.E.4.
func defaultPrefix(componentType string) string {
	switch componentType {
	case "resistor":
		return "R"
	case "capacitor":
		return "C"
	case "inductor":
		return "L"
	case "diode", "led":
		return "D"
	case "transistor", "mosfet", "fet":
		return "Q"
	case "ic", "chip", "mcu", "regulator", "opamp":
		return "U"
	case "connector", "header":
		return "J"
	case "switch", "button":
		return "SW"
	case "crystal", "oscillator":
		return "Y"
	case "fuse":
		return "F"
	case "relay":
		return "K"
	case "test_point":
		return "TP"
	default:
		return ""
	}
}

// prefixFor resolves the refdes prefix resolution order SPEC_FULL.md §9
// fixes for the type=/symbol-derived Open Question: explicit prefix= wins,
// then a type=-derived table lookup, then a generic fallback.
func prefixFor(c *domain.Component) string {
	if c.Prefix != "" {
		return c.Prefix
	}
	if p := defaultPrefix(c.Type); p != "" {
		return p
	}
	return "U"
}

func localName(inst domain.Instance) string {
	switch v := inst.(type) {
	case *domain.Component:
		return v.Name
	case *domain.Module:
		return v.LocalName
	default:
		return ""
	}
}

// assignRefdes walks the instance tree in deterministic pre-order —
// hierarchical path order, with a stable sort by local name breaking ties
// within a single parent's children — assigning `prefix + next_index` to
// every component (spec.md §4.E.4). Within a prefix, refdes numbers form a
// contiguous range starting at 1 (testable property #5).
func assignRefdes(root *domain.Module) {
	counters := make(map[string]int)
	var walk func(m *domain.Module)
	walk = func(m *domain.Module) {
		children := append([]domain.Instance(nil), m.Children...)
		sort.SliceStable(children, func(i, j int) bool {
			return localName(children[i]) < localName(children[j])
		})
		for _, child := range children {
			switch c := child.(type) {
			case *domain.Component:
				prefix := prefixFor(c)
				counters[prefix]++
				c.Refdes = fmt.Sprintf("%s%d", prefix, counters[prefix])
			case *domain.Module:
				walk(c)
			}
		}
	}
	walk(root)
}

// dedupNetNames implements the net-name dedup rule SPEC_FULL.md §9 fixes for
// spec.md's Open Question: within the group of sibling module instances that
// share both a parent and a source file, the Nth instance's same-named local
// net gets `_N` appended (first occurrence keeps the bare name). The group
// key is (parent path, source file, net name); recursion order is pre-order,
// so index assignment is deterministic across runs (testable property #2).
func dedupNetNames(root *domain.Module) map[int64]string {
	names := make(map[int64]string)
	counters := make(map[string]int)

	var walk func(m *domain.Module, parentPath string)
	walk = func(m *domain.Module, parentPath string) {
		for _, n := range m.Nets {
			if n.Name == "" {
				continue
			}
			key := parentPath + "\x00" + m.SourceFile + "\x00" + n.Name
			counters[key]++
			idx := counters[key]
			if idx == 1 {
				names[n.ID] = n.Name
			} else {
				names[n.ID] = fmt.Sprintf("%s_%d", n.Name, idx)
			}
		}
		for _, child := range m.Children {
			if cm, ok := child.(*domain.Module); ok {
				walk(cm, m.Path)
			}
		}
	}
	walk(root, "")
	return names
}

// displayName returns a net's disambiguated name, falling back to a
// KiCad-style anonymous net label for nets the author never named.
func displayName(n *domain.Net, names map[int64]string) string {
	if name, ok := names[n.ID]; ok {
		return name
	}
	if n.Name != "" {
		return n.Name
	}
	return fmt.Sprintf("N$%d", n.ID)
}

func walkInstances(m *domain.Module, s *Schematic, names map[int64]string) error {
	s.Instances[m.Path] = &Instance{
		Path:       m.Path,
		Kind:       KindModule,
		Properties: m.Properties,
	}
	for _, child := range m.Children {
		switch c := child.(type) {
		case *domain.Module:
			if err := walkInstances(c, s, names); err != nil {
				return err
			}
		case *domain.Component:
			inst, err := componentInstance(c, names)
			if err != nil {
				return err
			}
			s.Instances[c.Path] = inst
		}
	}
	return nil
}

func componentInstance(c *domain.Component, names map[int64]string) (*Instance, error) {
	padNets, err := c.PadNets()
	if err != nil {
		return nil, err
	}
	pins := make(map[string]int64, len(padNets))
	for pad, net := range padNets {
		if net != nil {
			pins[pad] = net.ID
		}
	}

	inst := &Instance{
		Path:       c.Path,
		Kind:       KindComponent,
		Refdes:     c.Refdes,
		Footprint:  c.Footprint,
		Pins:       pins,
		Properties: c.Properties,
	}
	if c.SpiceModel != nil {
		nets := make([]string, len(c.SpiceModel.Nets))
		for i, n := range c.SpiceModel.Nets {
			nets[i] = displayName(n, names)
		}
		inst.SpiceModel = &SpiceModelAttrs{
			ModelDef:  c.SpiceModel.Lib,
			ModelName: c.SpiceModel.Name,
			ModelNets: nets,
			ModelArgs: c.SpiceModel.Args,
		}
	}
	return inst, nil
}

// buildNetList collects, for every net reachable from a component pin, the
// ordered set of ports connected to it (spec.md §4.G "Net merging"). Nets
// never connected to a pin are omitted (testable property #6 only requires
// connected nets to appear, with exactly those ports). The result is ordered
// by net identity, which is itself a total order (testable property #1).
func buildNetList(s *Schematic, names map[int64]string) []*NetEntry {
	byID := make(map[int64]*NetEntry)
	// Stable instance iteration: sort paths first so port append order (and
	// therefore the final Ports slice) is deterministic across runs.
	paths := make([]string, 0, len(s.Instances))
	for path := range s.Instances {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		inst := s.Instances[path]
		if inst.Kind != KindComponent {
			continue
		}
		pads := make([]string, 0, len(inst.Pins))
		for pad := range inst.Pins {
			pads = append(pads, pad)
		}
		sort.Strings(pads)
		for _, pad := range pads {
			netID := inst.Pins[pad]
			entry, ok := byID[netID]
			if !ok {
				name := names[netID]
				if name == "" {
					name = fmt.Sprintf("N$%d", netID)
				}
				entry = &NetEntry{ID: netID, Name: name}
				byID[netID] = entry
			}
			entry.Ports = append(entry.Ports, PortPath{ComponentPath: inst.Path, PinID: pad})
		}
	}
	out := make([]*NetEntry, 0, len(byID))
	for _, entry := range byID {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
