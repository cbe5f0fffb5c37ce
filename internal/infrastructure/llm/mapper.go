package llm

import (
	"fmt"

	"github.com/weldcfg/configurator/internal/core"
)

// wireRequest is the JSON payload sent to the LLM proxy: system prompt
// (stable bytes), user prompt (templated with the Master snapshot,
// current message, and recent log), temperature forced to 0 (spec §6).
type wireRequest struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	System      string  `json:"system"`
	User        string  `json:"user"`
}

// wireResponse is the strict JSON contract's wire shape (spec §4.2).
type wireResponse struct {
	Updates               map[string]map[string]string `json:"updates"`
	NeedsClarification    bool                          `json:"needs_clarification"`
	ClarificationQuestion string                        `json:"clarification_question"`
	DirectProductMentions map[string]string             `json:"direct_product_mentions"`
	Confidence            map[string]float64            `json:"confidence"`
	Reasoning             string                        `json:"reasoning,omitempty"`
}

// toExtractionResult validates and converts the wire response into the
// strict core.ExtractionResult, rejecting any field that violates the
// normalization contract (spec §4.2, §8 invariant 9).
func (w wireResponse) toExtractionResult() (core.ExtractionResult, error) {
	if w.NeedsClarification && w.ClarificationQuestion == "" {
		return core.ExtractionResult{}, fmt.Errorf("needs_clarification is true but clarification_question is empty")
	}

	updates := make(map[core.ComponentKind]core.ParameterBag, len(w.Updates))
	for kindStr, attrs := range w.Updates {
		kind := core.ComponentKind(kindStr)
		if !kind.IsValid() {
			return core.ExtractionResult{}, fmt.Errorf("unknown component kind %q in updates", kindStr)
		}
		bag := core.NewParameterBag()
		for name, value := range attrs {
			if !core.IsKnownAttribute(kind, name) {
				return core.ExtractionResult{}, fmt.Errorf("attribute %q is not valid for kind %s", name, kind)
			}
			if !core.IsCanonical(name, value) {
				return core.ExtractionResult{}, fmt.Errorf("attribute %s=%q is not in canonical form", name, value)
			}
			bag.Attributes[name] = value
		}
		updates[kind] = bag
	}

	mentions := make(map[core.ComponentKind]string, len(w.DirectProductMentions))
	for kindStr, name := range w.DirectProductMentions {
		kind := core.ComponentKind(kindStr)
		if !kind.IsValid() {
			return core.ExtractionResult{}, fmt.Errorf("unknown component kind %q in direct_product_mentions", kindStr)
		}
		mentions[kind] = name
	}

	confidence := make(map[core.ComponentKind]float64, len(w.Confidence))
	for kindStr, c := range w.Confidence {
		kind := core.ComponentKind(kindStr)
		if !kind.IsValid() {
			return core.ExtractionResult{}, fmt.Errorf("unknown component kind %q in confidence", kindStr)
		}
		if c < 0 || c > 1 {
			return core.ExtractionResult{}, fmt.Errorf("confidence for %s out of [0,1]: %v", kind, c)
		}
		confidence[kind] = c
	}

	return core.ExtractionResult{
		Updates:               updates,
		NeedsClarification:    w.NeedsClarification,
		ClarificationQuestion: w.ClarificationQuestion,
		DirectProductMentions: mentions,
		Confidence:            confidence,
		Reasoning:             w.Reasoning,
	}, nil
}
