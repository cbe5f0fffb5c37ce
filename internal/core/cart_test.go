package core

import "testing"

func TestCart_RealComponentCount_CountsAccessoriesIndividually(t *testing.T) {
	c := NewCart()
	c.Set(KindPowerSource, CartEntry{Status: StatusSelected, Product: &Product{GIN: "ps-1"}})
	c.Set(KindFeeder, CartEntry{Status: StatusSkipped})
	c.AddAccessory(CartEntry{Status: StatusSelected, Product: &Product{GIN: "acc-1"}})
	c.AddAccessory(CartEntry{Status: StatusSelected, Product: &Product{GIN: "acc-2"}})

	if got := c.RealComponentCount(); got != 3 {
		t.Errorf("RealComponentCount() = %d, want 3", got)
	}
}

func TestCart_Anchor_OnlySelectedContributes(t *testing.T) {
	c := NewCart()
	c.Set(KindFeeder, CartEntry{Status: StatusSkipped})
	c.Set(KindCooler, CartEntry{Status: StatusSelected, Product: &Product{GIN: "cooler-1"}})

	if _, ok := c.Anchor(KindFeeder); ok {
		t.Error("Skipped entry must not be an anchor")
	}
	if p, ok := c.Anchor(KindCooler); !ok || p.GIN != "cooler-1" {
		t.Error("Selected entry must be the anchor")
	}
}

func TestApplicability_ActiveStates_DefaultAllY(t *testing.T) {
	a := DefaultApplicability()
	states := a.ActiveStates()

	want := []State{S1PowerSource, S2Feeder, S3Cooler, S4Interconnector, S5Torch, S6Accessories, S7Finalize}
	if len(states) != len(want) {
		t.Fatalf("ActiveStates() = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("ActiveStates()[%d] = %s, want %s", i, states[i], want[i])
		}
	}
}

func TestApplicability_ActiveStates_SkipsNKinds(t *testing.T) {
	a := Applicability{Applicable: map[ComponentKind]bool{
		KindFeeder:         false,
		KindCooler:         false,
		KindInterconnector: false,
		KindTorch:          true,
		KindAccessory:      true,
	}}
	states := a.ActiveStates()
	want := []State{S1PowerSource, S5Torch, S6Accessories, S7Finalize}

	if len(states) != len(want) {
		t.Fatalf("ActiveStates() = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("ActiveStates()[%d] = %s, want %s", i, states[i], want[i])
		}
	}
}
