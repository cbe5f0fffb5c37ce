// Package state implements the State Machine (C5): derives the ordered
// list of active states from Applicability and the Cart, and computes
// the next active state after a successful turn outcome (spec §4.5).
package state

import "github.com/weldcfg/configurator/internal/core"

// Options configures the machine's constant knobs. Zero value is usable;
// Validate reports misconfiguration.
type Options struct {
	// MinimumRealComponents is the finalization threshold (spec §9 Open
	// Question 1), injected rather than hardcoded.
	MinimumRealComponents int
}

// DefaultOptions returns the spec's documented default (PowerSource only).
func DefaultOptions() Options {
	return Options{MinimumRealComponents: 1}
}

func (o Options) withDefaults() Options {
	if o.MinimumRealComponents <= 0 {
		o.MinimumRealComponents = 1
	}
	return o
}

// Machine implements core.StateMachine. It is stateless and safe for
// concurrent use across sessions; all inputs come from the SessionState
// handed to each call.
type Machine struct {
	opts Options
}

// NewMachine builds a Machine with the given options.
func NewMachine(opts Options) *Machine {
	return &Machine{opts: opts.withDefaults()}
}

// ActiveStates implements core.StateMachine. Before a PowerSource is
// Selected and Applicability loaded, only S1 is active — the session has
// not yet learned which later states apply.
func (m *Machine) ActiveStates(s core.SessionState) []core.State {
	if !s.ApplicabilityLoaded {
		return []core.State{core.S1PowerSource}
	}
	return s.Applicability.ActiveStates()
}

// NextState implements core.StateMachine's next-state rule (spec §4.5):
// advance from "from" to the next entry in the active-states list. If
// "from" is the last active state (S7, or the last pre-S7 state when
// ActiveStates is still just [S1]), NextState returns "from" unchanged —
// callers (the Orchestrator) decide what that means for the turn.
func (m *Machine) NextState(s core.SessionState, from core.State) core.State {
	active := m.ActiveStates(s)
	for i, st := range active {
		if st == from && i+1 < len(active) {
			return active[i+1]
		}
	}
	return from
}

// IsActive reports whether st is in the session's current active-states
// list (invariant 1, spec §8).
func (m *Machine) IsActive(s core.SessionState, st core.State) bool {
	for _, a := range m.ActiveStates(s) {
		if a == st {
			return true
		}
	}
	return false
}

// ThresholdMet reports whether the cart's real-component count satisfies
// the configured finalization threshold (spec §4.5, §8 invariant 12).
func (m *Machine) ThresholdMet(cart core.Cart) bool {
	return cart.RealComponentCount() >= m.opts.MinimumRealComponents
}

// Threshold returns the configured minimum real-component count.
func (m *Machine) Threshold() int {
	return m.opts.MinimumRealComponents
}

var _ core.StateMachine = (*Machine)(nil)
