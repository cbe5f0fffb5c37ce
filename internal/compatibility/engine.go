// Package compatibility implements the Compatibility Engine (C4): builds
// per-state compatibility predicates naming which earlier cart selections
// a candidate product must be jointly compatible with (spec §4.4).
package compatibility

import "github.com/weldcfg/configurator/internal/core"

// Predicate is the concrete CompatibilityPredicate implementation. It
// carries the anchor products a candidate must satisfy
// COMPATIBLE_WITH(candidate, anchor) for, plus the candidate kind for
// logging. Repository implementations translate it into a graph query;
// the core never inspects its fields directly.
type Predicate struct {
	CandidateKind core.ComponentKind
	AnchorKinds   []core.ComponentKind
	AnchorGINs    []string
}

// Anchors implements core.CompatibilityPredicate.
func (p Predicate) Anchors() []core.ComponentKind {
	return p.AnchorKinds
}

// Engine implements core.CompatibilityEngine using the anchor table from
// spec §4.4. It is stateless: every call derives the predicate fresh from
// the cart handed to it, since "re-validation is not retroactive: C4 is
// invoked on every new search."
type Engine struct{}

// NewEngine returns a ready-to-use, stateless compatibility engine.
func NewEngine() *Engine {
	return &Engine{}
}

// BuildPredicate implements core.CompatibilityEngine. kind is the kind
// being searched for. It passes no accessory subkind, so for
// KindAccessory the predicate carries no anchors; the subkind-specific
// anchor rows are reached through BuildPredicateForAccessory.
func (e *Engine) BuildPredicate(kind core.ComponentKind, cart core.Cart) core.CompatibilityPredicate {
	return e.buildFor(kind, "", cart)
}

// BuildPredicateForAccessory is the Accessory-specific entry point: the
// anchor set depends on the accessory's subkind (spec §4.4 table).
func (e *Engine) BuildPredicateForAccessory(subkind core.AccessorySubkind, cart core.Cart) core.CompatibilityPredicate {
	return e.buildFor(core.KindAccessory, subkind, cart)
}

func (e *Engine) buildFor(kind core.ComponentKind, subkind core.AccessorySubkind, cart core.Cart) Predicate {
	var anchorKinds []core.ComponentKind

	switch kind {
	case core.KindPowerSource:
		// no anchors

	case core.KindFeeder:
		anchorKinds = []core.ComponentKind{core.KindPowerSource}

	case core.KindCooler:
		anchorKinds = withIfSelected(cart, []core.ComponentKind{core.KindPowerSource}, core.KindFeeder)

	case core.KindInterconnector:
		anchorKinds = withIfSelected(cart, []core.ComponentKind{core.KindPowerSource}, core.KindFeeder, core.KindCooler)

	case core.KindTorch:
		// Feeder if Selected, else PowerSource; and Cooler if Selected.
		if _, ok := cart.Anchor(core.KindFeeder); ok {
			anchorKinds = []core.ComponentKind{core.KindFeeder}
		} else {
			anchorKinds = []core.ComponentKind{core.KindPowerSource}
		}
		if _, ok := cart.Anchor(core.KindCooler); ok {
			anchorKinds = append(anchorKinds, core.KindCooler)
		}

	case core.KindAccessory:
		anchorKinds = accessoryAnchorKinds(subkind, cart)
	}

	return resolveAnchors(kind, anchorKinds, cart)
}

// withIfSelected returns base plus each of optional that currently has a
// Selected cart entry, preserving the order given.
func withIfSelected(cart core.Cart, base []core.ComponentKind, optional ...core.ComponentKind) []core.ComponentKind {
	out := append([]core.ComponentKind{}, base...)
	for _, k := range optional {
		if _, ok := cart.Anchor(k); ok {
			out = append(out, k)
		}
	}
	return out
}

func accessoryAnchorKinds(subkind core.AccessorySubkind, cart core.Cart) []core.ComponentKind {
	switch subkind {
	case core.AccessoryPowerSource:
		return []core.ComponentKind{core.KindPowerSource}
	case core.AccessoryFeeder:
		return []core.ComponentKind{core.KindFeeder}
	case core.AccessoryConnectivity, core.AccessoryRemote:
		return withIfSelected(cart, []core.ComponentKind{core.KindPowerSource}, core.KindFeeder)
	default:
		return nil
	}
}

// resolveAnchors drops any anchor kind whose cart entry isn't actually
// Selected (a defensive no-op given the callers above already check, kept
// for kinds reached through withIfSelected's base list) and collects GINs.
func resolveAnchors(kind core.ComponentKind, anchorKinds []core.ComponentKind, cart core.Cart) Predicate {
	var kinds []core.ComponentKind
	var gins []string
	for _, k := range anchorKinds {
		if p, ok := cart.Anchor(k); ok {
			kinds = append(kinds, k)
			gins = append(gins, p.GIN)
		}
	}
	return Predicate{CandidateKind: kind, AnchorKinds: kinds, AnchorGINs: gins}
}

var _ core.CompatibilityEngine = (*Engine)(nil)
