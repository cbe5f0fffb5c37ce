package core

import "regexp"

// Canonical-form patterns per attribute name (spec §4.2). Values that
// don't match are a normalization violation, which the extractor maps to
// ExtractionError.
var canonicalPatterns = map[string]*regexp.Regexp{
	"current":      regexp.MustCompile(`^[0-9]+ A$`),
	"voltage":      regexp.MustCompile(`^[0-9]+V$`),
	"phase":        regexp.MustCompile(`^(single-phase|3-phase)$`),
	"process":      regexp.MustCompile(`^[A-Za-z][A-Za-z /-]* \([A-Z]+\)$`),
	"cooling_type": regexp.MustCompile(`^(water|air|none)$`),
	"wire_size":    regexp.MustCompile(`^0\.[0-9]{3} inch$`),
	"cable_length": regexp.MustCompile(`^[0-9]+ ft$`),
	"portability":  regexp.MustCompile(`^(portable|stationary)$`),
	"material":     regexp.MustCompile(`^[a-z]+$`),
}

// IsCanonical reports whether value is in canonical form for attribute
// name, per the table in spec §4.2. Unknown attribute names are rejected.
func IsCanonical(name, value string) bool {
	pattern, ok := canonicalPatterns[name]
	if !ok {
		return false
	}
	return pattern.MatchString(value)
}

// ValidateBag checks every attribute in bag against its kind's vocabulary
// and canonical form, returning the name of the first violation found, or
// "" if the bag is entirely valid.
func ValidateBag(kind ComponentKind, bag ParameterBag) string {
	for name, value := range bag.Attributes {
		if !IsKnownAttribute(kind, name) {
			return name
		}
		if !IsCanonical(name, value) {
			return name
		}
	}
	return ""
}
