package compatibility

import (
	"testing"

	"github.com/weldcfg/configurator/internal/core"
)

func cartWith(selected ...core.ComponentKind) core.Cart {
	c := core.NewCart()
	for _, k := range selected {
		c.Set(k, core.CartEntry{Status: core.StatusSelected, Product: &core.Product{GIN: string(k) + "-gin"}})
	}
	return c
}

func TestEngine_PowerSource_HasNoAnchors(t *testing.T) {
	e := NewEngine()
	p := e.BuildPredicate(core.KindPowerSource, core.NewCart()).(Predicate)

	if len(p.AnchorKinds) != 0 {
		t.Errorf("PowerSource should have no anchors, got %v", p.AnchorKinds)
	}
}

func TestEngine_Feeder_AnchorsOnPowerSource(t *testing.T) {
	e := NewEngine()
	cart := cartWith(core.KindPowerSource)

	p := e.BuildPredicate(core.KindFeeder, cart).(Predicate)

	if len(p.AnchorKinds) != 1 || p.AnchorKinds[0] != core.KindPowerSource {
		t.Errorf("Feeder anchors = %v, want [PowerSource]", p.AnchorKinds)
	}
}

func TestEngine_Torch_PrefersFeederOverPowerSource(t *testing.T) {
	e := NewEngine()
	cart := cartWith(core.KindPowerSource, core.KindFeeder, core.KindCooler)

	p := e.BuildPredicate(core.KindTorch, cart).(Predicate)

	if len(p.AnchorKinds) != 2 || p.AnchorKinds[0] != core.KindFeeder || p.AnchorKinds[1] != core.KindCooler {
		t.Errorf("Torch anchors = %v, want [Feeder Cooler]", p.AnchorKinds)
	}
}

func TestEngine_Torch_FallsBackToPowerSourceWithoutFeeder(t *testing.T) {
	e := NewEngine()
	cart := cartWith(core.KindPowerSource)

	p := e.BuildPredicate(core.KindTorch, cart).(Predicate)

	if len(p.AnchorKinds) != 1 || p.AnchorKinds[0] != core.KindPowerSource {
		t.Errorf("Torch anchors = %v, want [PowerSource]", p.AnchorKinds)
	}
}

func TestEngine_SkippedEntryIsNotAnAnchor(t *testing.T) {
	e := NewEngine()
	cart := core.NewCart()
	cart.Set(core.KindPowerSource, core.CartEntry{Status: core.StatusSelected, Product: &core.Product{GIN: "ps-1"}})
	cart.Set(core.KindFeeder, core.CartEntry{Status: core.StatusSkipped})

	p := e.BuildPredicate(core.KindCooler, cart).(Predicate)

	for _, k := range p.AnchorKinds {
		if k == core.KindFeeder {
			t.Error("Skipped Feeder must not become an anchor")
		}
	}
}

func TestEngine_AccessoryConnectivity_AnchorsOnPowerSourceAndFeeder(t *testing.T) {
	e := NewEngine()
	cart := cartWith(core.KindPowerSource, core.KindFeeder)

	p := e.BuildPredicateForAccessory(core.AccessoryConnectivity, cart).(Predicate)

	if len(p.AnchorKinds) != 2 {
		t.Errorf("ConnectivityAccessory anchors = %v, want 2 entries", p.AnchorKinds)
	}
}
