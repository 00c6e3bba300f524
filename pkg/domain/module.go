package domain

import (
	"fmt"
	"sort"
	"strings"

	zerr "github.com/architect-io/zenboard/pkg/errors"
)

// Instance is the common shape of a Module's children in the instance tree:
// either another Module or a leaf Component. Both satisfy it via the
// InstancePath accessor.
type Instance interface {
	InstancePath() string
}

func (m *Module) InstancePath() string    { return m.Path }
func (c *Component) InstancePath() string { return c.Path }

// Placeholder is one io()/config() declaration recorded as a Module body
// executes. Kind mirrors FieldSpec: exactly one of IsNet/Interface/Scalar is
// set.
type Placeholder struct {
	Name      string
	IsNet     bool
	Interface *InterfaceFactory
	Scalar    *ScalarSpec
	Optional  bool
	Default   interface{}
	HasDefault bool
}

// Module is a single module instance in the elaboration tree: a source file
// evaluated once per instantiation, with its own bound IO/config values,
// locally-created nets, child instances, and properties.
type Module struct {
	SourceFile string
	LocalName  string

	// Declared placeholders, recorded in declaration order as the body calls
	// io()/config(). Populated during evaluation, read back by Seal.
	IOPlaceholders     []Placeholder
	ConfigPlaceholders []Placeholder

	// Bound values, keyed by placeholder name.
	IO     map[string]interface{}
	Config map[string]interface{}

	// consumed tracks which of the caller's supplied kwargs an io()/config()
	// call has actually claimed, so Seal can report the rest as unused.
	consumed map[string]bool
	supplied map[string]interface{}

	Children   []Instance
	Nets       []*Net
	Properties map[string]interface{}

	Path   string
	sealed bool
}

// NewModule begins a module instantiation. supplied holds every keyword
// argument the caller passed at the call site (IO and config kwargs mixed,
// the way a Starlark call passes them); io()/config() calls made by the
// evaluating body consume entries from it via Bind.
func NewModule(sourceFile, localName string, supplied map[string]interface{}) *Module {
	return &Module{
		SourceFile: sourceFile,
		LocalName:  localName,
		IO:         make(map[string]interface{}),
		Config:     make(map[string]interface{}),
		consumed:   make(map[string]bool),
		supplied:   supplied,
		Properties: make(map[string]interface{}),
	}
}

// BindIO resolves one io() declaration against the caller-supplied kwargs,
// recording the placeholder and returning the bound value (interpreter
// builtins hand this value back to the Starlark body as io()'s return).
func (m *Module) BindIO(p Placeholder) (interface{}, error) {
	m.IOPlaceholders = append(m.IOPlaceholders, p)
	return m.bind(p, m.IO)
}

// BindConfig resolves one config() declaration the same way BindIO does.
func (m *Module) BindConfig(p Placeholder) (interface{}, error) {
	m.ConfigPlaceholders = append(m.ConfigPlaceholders, p)
	return m.bind(p, m.Config)
}

func (m *Module) bind(p Placeholder, into map[string]interface{}) (interface{}, error) {
	if raw, ok := m.supplied[p.Name]; ok {
		spec := placeholderFieldSpec(p)
		val, err := CheckFieldCompatibility(spec, raw)
		if err != nil {
			return nil, err
		}
		m.consumed[p.Name] = true
		into[p.Name] = val
		return val, nil
	}
	if p.HasDefault {
		into[p.Name] = p.Default
		return p.Default, nil
	}
	if p.Optional {
		into[p.Name] = nil
		return nil, nil
	}
	return nil, zerr.MissingIO(m.LocalName, []string{p.Name})
}

func placeholderFieldSpec(p Placeholder) FieldSpec {
	return FieldSpec{Name: p.Name, IsNet: p.IsNet, Interface: p.Interface, Scalar: p.Scalar}
}

// AddChild appends an instantiated child (Module or Component) to this
// module's instance tree, under the given relative path segment.
func (m *Module) AddChild(segment string, child Instance) {
	switch c := child.(type) {
	case *Module:
		c.rebase(joinPath(m.Path, segment))
	case *Component:
		c.Path = joinPath(m.Path, segment)
	}
	m.Children = append(m.Children, child)
}

// rebase moves m to path and rewrites the paths of the descendants already
// attached under m's previous path, so a subtree built before being attached
// still ends up with full hierarchical paths.
func (m *Module) rebase(path string) {
	old := m.Path
	m.Path = path
	for _, child := range m.Children {
		seg := strings.TrimPrefix(strings.TrimPrefix(child.InstancePath(), old), ".")
		switch c := child.(type) {
		case *Module:
			c.rebase(joinPath(path, seg))
		case *Component:
			c.Path = joinPath(path, seg)
		}
	}
}

// AddNet records a net created inside this module's frame via Net(...).
func (m *Module) AddNet(n *Net) {
	m.Nets = append(m.Nets, n)
}

// AddProperty implements add_property(key, value), overwriting any existing
// value for the same key.
func (m *Module) AddProperty(key string, value interface{}) {
	if m.Properties == nil {
		m.Properties = make(map[string]interface{})
	}
	m.Properties[key] = value
}

// Seal finalizes the module instance: every supplied kwarg must have been
// consumed by some io()/config() call, or it's reported as an unused input
// (spec.md §4.D). Once sealed, a Module's IO/Config/Children are read-only
// from the elaboration engine's point of view.
func (m *Module) Seal() error {
	if m.sealed {
		return nil
	}
	var extra []string
	for name := range m.supplied {
		if !m.consumed[name] {
			extra = append(extra, name)
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		return zerr.UnusedInput(m.LocalName, extra)
	}
	m.sealed = true
	return nil
}

// AllNets returns every net reachable from this module's own frame and its
// descendant modules/components, for schematic flattening and for the
// merge-on-connect step in elaboration. Order is deterministic pre-order.
func (m *Module) AllNets() []*Net {
	var out []*Net
	out = append(out, m.Nets...)
	for _, child := range m.Children {
		switch c := child.(type) {
		case *Module:
			out = append(out, c.AllNets()...)
		case *Component:
			for _, n := range c.Pins {
				out = append(out, n)
			}
		}
	}
	return out
}

func joinPath(parent, segment string) string {
	if parent == "" {
		return segment
	}
	return fmt.Sprintf("%s.%s", parent, segment)
}
