package core

// Applicability is the mapping from component kind to Y/N for a single
// power source, loaded by the Applicability Table (C1) at S1 commit time
// (spec §3/§4.1). Only Feeder, Cooler, Interconnector, Torch, and
// Accessory are meaningful keys; PowerSource itself is never looked up.
type Applicability struct {
	Applicable map[ComponentKind]bool
}

// DefaultApplicability returns all-Y, used when the power source
// identifier is unknown to the Applicability Table.
func DefaultApplicability() Applicability {
	a := Applicability{Applicable: make(map[ComponentKind]bool, 5)}
	for _, k := range []ComponentKind{KindFeeder, KindCooler, KindInterconnector, KindTorch, KindAccessory} {
		a.Applicable[k] = true
	}
	return a
}

// IsApplicable reports whether kind k is Y for this power source. Unknown
// kinds (including PowerSource itself) default to Y.
func (a Applicability) IsApplicable(k ComponentKind) bool {
	if v, ok := a.Applicable[k]; ok {
		return v
	}
	return true
}

// ActiveStates derives the ordered list of states the session will visit,
// per spec §4.5: [S1] + [S_k for k in (Feeder,Cooler,Interconnector,Torch,
// Accessories) if Applicability[k]==Y] + [S7].
func (a Applicability) ActiveStates() []State {
	states := []State{S1PowerSource}
	order := []struct {
		kind  ComponentKind
		state State
	}{
		{KindFeeder, S2Feeder},
		{KindCooler, S3Cooler},
		{KindInterconnector, S4Interconnector},
		{KindTorch, S5Torch},
		{KindAccessory, S6Accessories},
	}
	for _, o := range order {
		if a.IsApplicable(o.kind) {
			states = append(states, o.state)
		}
	}
	states = append(states, S7Finalize)
	return states
}
