package core

// CartStatus is the closed set of CartEntry variants (spec §3).
type CartStatus string

const (
	// StatusUnset means the kind has not yet been decided for this session.
	StatusUnset CartStatus = "Unset"
	// StatusSelected is locked: it is not replaced except by an explicit
	// user replacement command.
	StatusSelected CartStatus = "Selected"
	StatusSkipped  CartStatus = "Skipped"
	// StatusNotApplicable is set atomically by the Orchestrator for any
	// kind the Applicability Table marks N for the chosen power source.
	StatusNotApplicable CartStatus = "NotApplicable"
)

// CartEntry is one of {Selected{product}, Skipped, NotApplicable, Unset}
// (spec §3). Only Selected carries a Product.
type CartEntry struct {
	Status  CartStatus
	Product *Product
}

// IsReal reports whether the entry counts toward the real-component
// count used by the finalization threshold (spec §4.5).
func (e CartEntry) IsReal() bool {
	return e.Status == StatusSelected
}

// Cart is the mapping from component kind to CartEntry for single-valued
// kinds, plus an ordered sequence of entries for Accessory (spec §3).
type Cart struct {
	Entries     map[ComponentKind]CartEntry
	Accessories []CartEntry
}

// NewCart returns a Cart with every single-valued kind unset and an empty
// accessory sequence.
func NewCart() Cart {
	entries := make(map[ComponentKind]CartEntry, len(AllComponentKinds))
	for _, k := range AllComponentKinds {
		if k.IsMultiValued() {
			continue
		}
		entries[k] = CartEntry{Status: StatusUnset}
	}
	return Cart{Entries: entries}
}

// Get returns the entry for a single-valued kind.
func (c Cart) Get(k ComponentKind) CartEntry {
	if e, ok := c.Entries[k]; ok {
		return e
	}
	return CartEntry{Status: StatusUnset}
}

// Set stores the entry for a single-valued kind. Callers must not call
// this for PowerSource with StatusSkipped — see invariant 1 (spec §3);
// that check belongs to the Orchestrator/State Machine, not the data type.
func (c *Cart) Set(k ComponentKind, e CartEntry) {
	if c.Entries == nil {
		c.Entries = make(map[ComponentKind]CartEntry)
	}
	c.Entries[k] = e
}

// AddAccessory appends an accessory entry, preserving arrival order.
func (c *Cart) AddAccessory(e CartEntry) {
	c.Accessories = append(c.Accessories, e)
}

// RealComponentCount counts Selected entries across single-valued kinds
// and accessories individually (spec §3, §4.5).
func (c Cart) RealComponentCount() int {
	n := 0
	for _, e := range c.Entries {
		if e.IsReal() {
			n++
		}
	}
	for _, e := range c.Accessories {
		if e.IsReal() {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the cart.
func (c Cart) Clone() Cart {
	entries := make(map[ComponentKind]CartEntry, len(c.Entries))
	for k, e := range c.Entries {
		cp := e
		entries[k] = cp
	}
	accessories := make([]CartEntry, len(c.Accessories))
	copy(accessories, c.Accessories)
	return Cart{Entries: entries, Accessories: accessories}
}

// Anchor returns the Selected product for kind k if there is one, for use
// as a Compatibility Engine anchor (spec §4.4). Skipped and NotApplicable
// entries never contribute a constraint.
func (c Cart) Anchor(k ComponentKind) (Product, bool) {
	e := c.Get(k)
	if e.Status == StatusSelected && e.Product != nil {
		return *e.Product, true
	}
	return Product{}, false
}
