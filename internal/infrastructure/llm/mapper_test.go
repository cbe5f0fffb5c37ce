package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weldcfg/configurator/internal/core"
)

func TestWireResponse_ToExtractionResult_ValidUpdate(t *testing.T) {
	w := wireResponse{
		Updates: map[string]map[string]string{
			"PowerSource": {"process": "MIG (GMAW)", "current": "200 A"},
		},
		Confidence: map[string]float64{"PowerSource": 0.9},
		Reasoning:  "clear mention of process and current",
	}

	result, err := w.toExtractionResult()

	require.NoError(t, err)
	bag, ok := result.Updates[core.KindPowerSource]
	require.True(t, ok)
	assert.Equal(t, "MIG (GMAW)", bag.Attributes["process"])
	assert.Equal(t, "200 A", bag.Attributes["current"])
	assert.Equal(t, 0.9, result.Confidence[core.KindPowerSource])
}

func TestWireResponse_ToExtractionResult_NeedsClarificationRequiresQuestion(t *testing.T) {
	w := wireResponse{NeedsClarification: true}

	_, err := w.toExtractionResult()

	assert.Error(t, err)
}

func TestWireResponse_ToExtractionResult_NeedsClarificationWithQuestion(t *testing.T) {
	w := wireResponse{
		NeedsClarification:    true,
		ClarificationQuestion: "what amperage do you need?",
	}

	result, err := w.toExtractionResult()

	require.NoError(t, err)
	assert.True(t, result.NeedsClarification)
	assert.Equal(t, "what amperage do you need?", result.ClarificationQuestion)
}

func TestWireResponse_ToExtractionResult_RejectsUnknownKind(t *testing.T) {
	w := wireResponse{
		Updates: map[string]map[string]string{
			"Spaceship": {"process": "MIG (GMAW)"},
		},
	}

	_, err := w.toExtractionResult()

	assert.Error(t, err)
}

func TestWireResponse_ToExtractionResult_RejectsUnknownAttribute(t *testing.T) {
	w := wireResponse{
		Updates: map[string]map[string]string{
			"PowerSource": {"engine_size": "big"},
		},
	}

	_, err := w.toExtractionResult()

	assert.Error(t, err)
}

func TestWireResponse_ToExtractionResult_RejectsNonCanonicalValue(t *testing.T) {
	w := wireResponse{
		Updates: map[string]map[string]string{
			"PowerSource": {"current": "two hundred amps"},
		},
	}

	_, err := w.toExtractionResult()

	assert.Error(t, err)
}

func TestWireResponse_ToExtractionResult_RejectsConfidenceOutOfRange(t *testing.T) {
	w := wireResponse{
		Confidence: map[string]float64{"PowerSource": 1.5},
	}

	_, err := w.toExtractionResult()

	assert.Error(t, err)
}

func TestWireResponse_ToExtractionResult_DirectProductMentions(t *testing.T) {
	w := wireResponse{
		DirectProductMentions: map[string]string{"Torch": "Tweco Spraymaster"},
	}

	result, err := w.toExtractionResult()

	require.NoError(t, err)
	assert.Equal(t, "Tweco Spraymaster", result.DirectProductMentions[core.KindTorch])
}

func TestWireResponse_ToExtractionResult_RejectsUnknownKindInMentions(t *testing.T) {
	w := wireResponse{
		DirectProductMentions: map[string]string{"Spaceship": "Falcon 9"},
	}

	_, err := w.toExtractionResult()

	assert.Error(t, err)
}
