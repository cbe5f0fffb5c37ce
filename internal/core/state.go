package core

// State is one of the seven sequential states S1..S7 (spec §4.5). S1 is
// always the entry state; S7 is terminal.
type State string

const (
	S1PowerSource    State = "S1_POWER_SOURCE"
	S2Feeder         State = "S2_FEEDER"
	S3Cooler         State = "S3_COOLER"
	S4Interconnector State = "S4_INTERCONNECTOR"
	S5Torch          State = "S5_TORCH"
	S6Accessories    State = "S6_ACCESSORIES"
	S7Finalize       State = "S7_FINALIZE"
)

// stateKind maps each state to the component kind it gathers, used by
// callers that need to go from "current state" to "what are we asking for".
var stateKind = map[State]ComponentKind{
	S1PowerSource:    KindPowerSource,
	S2Feeder:         KindFeeder,
	S3Cooler:         KindCooler,
	S4Interconnector: KindInterconnector,
	S5Torch:          KindTorch,
	S6Accessories:    KindAccessory,
}

// Kind returns the component kind state s gathers. S7 has no kind (empty).
func (s State) Kind() ComponentKind {
	return stateKind[s]
}

// IsTerminal reports whether s is S7, the only state from which the
// session can reach Completed.
func (s State) IsTerminal() bool {
	return s == S7Finalize
}
