package orchestrator

import "strings"

// intent is the Orchestrator's pre-C2 classification (spec §4.8 step 2).
// Anything that doesn't match an explicit keyword falls through to "data"
// and is resolved by C2 on the extraction call.
type intent string

const (
	intentSkip     intent = "skip"
	intentFinalize intent = "done/finalize"
	intentConfirm  intent = "confirm"
	intentReset    intent = "reset"
	intentData     intent = "data"
)

var skipWords = []string{"skip", "no thanks", "not needed", "pass"}
var finalizeWords = []string{"done", "finalize", "finish", "that's everything", "that's all"}
var confirmWords = []string{"yes", "ok", "okay", "sure", "looks good", "confirm", "correct", "yep", "yeah"}
var resetWords = []string{"reset", "start over", "start again"}

// classifyIntent recognizes the unambiguous explicit keywords spec §4.8
// step 2 calls out before invoking C2. Matching is whole-message,
// case-insensitive, trimmed of surrounding punctuation/whitespace —
// anything more elaborate ("skip the cooler but keep going") is left for
// C2 to parse as data.
func classifyIntent(message string) intent {
	normalized := strings.ToLower(strings.TrimSpace(message))
	normalized = strings.Trim(normalized, ".!? ")

	switch {
	case matchesAny(normalized, resetWords):
		return intentReset
	case matchesAny(normalized, skipWords):
		return intentSkip
	case matchesAny(normalized, finalizeWords):
		return intentFinalize
	case matchesAny(normalized, confirmWords):
		return intentConfirm
	default:
		return intentData
	}
}

func matchesAny(s string, words []string) bool {
	for _, w := range words {
		if s == w {
			return true
		}
	}
	return false
}
