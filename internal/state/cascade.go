package state

import "github.com/weldcfg/configurator/internal/core"

// Cascade implements the downstream-clear cascade (spec §4.5/§9):
// whenever a Selected entry at state S_i is replaced or changed, every
// Cart entry for S_j (j>i) is reset to unset, the corresponding Master
// ParameterBags are zeroed, and the current state moves to the next
// active state after S_i. Applicability is reloaded by the caller when
// the replaced kind was PowerSource — Cascade only clears downstream
// state, it does not know about the Applicability Table.
//
// Enumerate active states in order; for every active state strictly
// after the modified one, reset the Cart entry and zero the bag. No
// event propagation: the Orchestrator calls this synchronously within
// the same turn (spec §9).
func (m *Machine) Cascade(s *core.SessionState, from core.State) {
	active := m.ActiveStates(*s)
	idx := -1
	for i, st := range active {
		if st == from {
			idx = i
			break
		}
	}
	if idx == -1 {
		return
	}

	for _, st := range active[idx+1:] {
		if st.IsTerminal() {
			continue
		}
		kind := st.Kind()
		if kind == core.KindAccessory {
			s.Cart.Accessories = nil
		} else {
			s.Cart.Set(kind, core.CartEntry{Status: core.StatusUnset})
		}
		s.Master.Zero(kind)
	}

	if idx+1 < len(active) {
		s.CurrentState = active[idx+1]
	}
}
