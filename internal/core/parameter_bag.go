package core

// ParameterBag is the normalized, per-component-kind representation of
// what the user asked for (spec §3). Field writes overwrite the previous
// value; a field is never auto-deleted except by the downstream-clear
// cascade (§4.5).
type ParameterBag struct {
	// Attributes maps attribute-name (fixed vocabulary per kind, see
	// AttributeVocabulary) to its canonical-form value.
	Attributes map[string]string

	// DirectProductMention is the raw free-text token naming a specific
	// product, if the turn contained one. It survives attribute writes;
	// only a later product lookup may enrich (not replace) the bag.
	DirectProductMention string
}

// NewParameterBag returns an empty, ready-to-use bag.
func NewParameterBag() ParameterBag {
	return ParameterBag{Attributes: make(map[string]string)}
}

// IsEmpty reports whether the bag carries no attributes and no mention.
func (b ParameterBag) IsEmpty() bool {
	return len(b.Attributes) == 0 && b.DirectProductMention == ""
}

// Clone returns a deep copy, safe to mutate independently of b.
func (b ParameterBag) Clone() ParameterBag {
	attrs := make(map[string]string, len(b.Attributes))
	for k, v := range b.Attributes {
		attrs[k] = v
	}
	return ParameterBag{Attributes: attrs, DirectProductMention: b.DirectProductMention}
}

// MergeFrom applies delta onto b using last-write-wins, field by field
// (spec §4.2/§9 "latest value wins" merge — a shallow semigroup (a,b)->b,
// never a deep structural merge). A non-empty DirectProductMention in
// delta overwrites b's, but existing attribute fields are preserved.
func (b *ParameterBag) MergeFrom(delta ParameterBag) {
	if b.Attributes == nil {
		b.Attributes = make(map[string]string)
	}
	for k, v := range delta.Attributes {
		b.Attributes[k] = v
	}
	if delta.DirectProductMention != "" {
		b.DirectProductMention = delta.DirectProductMention
	}
}

// EnrichFrom copies attributes from a looked-up product into b without
// touching fields already present (spec §9 Open Question 3, enrich
// policy): a direct product mention enriches rather than replaces.
func (b *ParameterBag) EnrichFrom(p Product) {
	if b.Attributes == nil {
		b.Attributes = make(map[string]string)
	}
	for _, name := range AttributeVocabulary(p.Kind) {
		if _, already := b.Attributes[name]; already {
			continue
		}
		if v, ok := p.Attribute(name); ok {
			b.Attributes[name] = v
		}
	}
}

// ReplaceFrom copies attributes from a looked-up product into b,
// overwriting any value already present (spec §9 Open Question 3, replace
// policy): a direct product mention discards the bag's prior attributes
// for every field the product itself supplies.
func (b *ParameterBag) ReplaceFrom(p Product) {
	if b.Attributes == nil {
		b.Attributes = make(map[string]string)
	}
	for _, name := range AttributeVocabulary(p.Kind) {
		if v, ok := p.Attribute(name); ok {
			b.Attributes[name] = v
		}
	}
}

// Zero clears the bag in place, used by the downstream-clear cascade.
func (b *ParameterBag) Zero() {
	b.Attributes = make(map[string]string)
	b.DirectProductMention = ""
}

// MasterRecord is the total mapping from component kind to ParameterBag
// (spec §3). The mapping is total: NewMasterRecord pre-populates an empty
// bag for every kind so lookups never need a presence check.
type MasterRecord struct {
	Bags map[ComponentKind]ParameterBag
}

// NewMasterRecord returns a MasterRecord with an empty bag per kind.
func NewMasterRecord() MasterRecord {
	bags := make(map[ComponentKind]ParameterBag, len(AllComponentKinds))
	for _, k := range AllComponentKinds {
		bags[k] = NewParameterBag()
	}
	return MasterRecord{Bags: bags}
}

// Get returns the bag for kind k, or an empty bag if absent.
func (m MasterRecord) Get(k ComponentKind) ParameterBag {
	if b, ok := m.Bags[k]; ok {
		return b
	}
	return NewParameterBag()
}

// Apply merges delta into kind k's bag (last-write-wins per field).
func (m *MasterRecord) Apply(k ComponentKind, delta ParameterBag) {
	b := m.Get(k)
	b.MergeFrom(delta)
	m.Bags[k] = b
}

// Zero clears kind k's bag, used by the downstream-clear cascade.
func (m *MasterRecord) Zero(k ComponentKind) {
	b := NewParameterBag()
	m.Bags[k] = b
}

// Clone returns a deep copy of the record.
func (m MasterRecord) Clone() MasterRecord {
	bags := make(map[ComponentKind]ParameterBag, len(m.Bags))
	for k, b := range m.Bags {
		bags[k] = b.Clone()
	}
	return MasterRecord{Bags: bags}
}
