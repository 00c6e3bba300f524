// Package domain implements the elaboration core's value model: nets,
// interfaces, symbols, components, and module instances, plus the type
// checker that validates field and pin compatibility between them.
package domain

import "sync/atomic"

// Lifecycle tags why a net exists at a given point in the instance tree.
type Lifecycle int

const (
	// LifecycleLocal is a net created with Net(...) inside the current frame.
	LifecycleLocal Lifecycle = iota
	// LifecycleIOPromoted is a net that crossed a module boundary as an IO argument.
	LifecycleIOPromoted
	// LifecycleExternal is a net bound from outside the elaboration run (reserved
	// for host-provided top-level nets; unused by ordinary module evaluation).
	LifecycleExternal
)

var netIDCounter int64

// nextNetID hands out process-unique integer identities. Net identity is a
// total order: two nets compare equal only if their identities match, never
// by name.
func nextNetID() int64 {
	return atomic.AddInt64(&netIDCounter, 1)
}

// Net is an equipotential connection point. Its identity is the ID field;
// Name is a hint for rendering, never part of equality.
type Net struct {
	ID         int64
	Name       string
	Properties map[string]interface{}
	Lifecycle  Lifecycle
}

// NewNet allocates a fresh net with process-unique identity.
func NewNet(name string, props map[string]interface{}) *Net {
	if props == nil {
		props = map[string]interface{}{}
	}
	return &Net{ID: nextNetID(), Name: name, Properties: props, Lifecycle: LifecycleLocal}
}

// Equal compares nets by identity only, per spec invariant #1 in spec.md §8:
// reflexive, symmetric, transitive because int64 equality already is.
func (n *Net) Equal(other *Net) bool {
	if n == nil || other == nil {
		return n == other
	}
	return n.ID == other.ID
}

// Less gives nets a total order over their identity, for deterministic
// iteration (e.g. sorting a net list for schematic output).
func (n *Net) Less(other *Net) bool {
	return n.ID < other.ID
}

// ResetNetIDCounter is exposed for tests that need reproducible IDs across
// runs; production elaboration never calls it (identities are only unique
// within a single process run, per spec.md §3).
func ResetNetIDCounter() {
	atomic.StoreInt64(&netIDCounter, 0)
}
