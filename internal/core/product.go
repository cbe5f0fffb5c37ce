package core

// Product is an immutable catalogue entity (spec §3). Compatibility
// between two products is an undirected, reflexive-absent relation
// (COMPATIBLE_WITH) owned entirely by the Product Repository port; the
// core never materializes the graph, only a product's own attribute bag.
type Product struct {
	// GIN is the opaque catalogue identifier.
	GIN         string
	Name        string
	Description string
	Kind        ComponentKind
	// AccessorySubkind is set only when Kind == KindAccessory.
	AccessorySubkind AccessorySubkind
	// Attributes holds typed catalogue attributes such as process,
	// current, voltage, phase, cooling_type, wire_size, cable_length.
	Attributes map[string]string
	Available  bool
}

// Attribute returns the named attribute value and whether it was present.
func (p Product) Attribute(name string) (string, bool) {
	v, ok := p.Attributes[name]
	return v, ok
}

// SearchResult is a scored candidate returned by the Product Repository
// (spec §4.3). Fallback is true when the result came from
// find_all_compatible after an attribute-filtered search returned empty.
type SearchResult struct {
	Products []Product
	Fallback bool
}
