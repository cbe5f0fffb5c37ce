package core

import "errors"

// Error taxonomy (spec §7). The Orchestrator catches every categorized
// error from its ports and renders it as a user-visible prompt; no
// internal trace ever reaches the caller. Errors that don't match this
// taxonomy are reported to the caller as IntegrityViolation.
var (
	// ErrExtraction means the LLM call failed or its output was invalid
	// or violated the normalization contract. Recovery: ExtractionFallback
	// prompt, session state unchanged.
	ErrExtraction = errors.New("core: parameter extraction failed")

	// ErrRepository means the product graph was unavailable or a query
	// failed. Recovery: "momentarily unavailable" prompt, state unchanged.
	ErrRepository = errors.New("core: repository query failed")

	// ErrCacheExpired means the session was not found in the hot cache
	// (miss or TTL expiry). Treated as a fresh session.
	ErrCacheExpired = errors.New("core: session expired")

	// ErrSkipNotAllowed is the mandatory-S1 rule violation: a skip intent
	// was received while at PowerSource. Returned as a normal prompt,
	// never as an HTTP error.
	ErrSkipNotAllowed = errors.New("core: power source selection cannot be skipped")

	// ErrThresholdNotMet means finalization was attempted before the
	// real-component count reached the configured minimum.
	ErrThresholdNotMet = errors.New("core: minimum component threshold not met")

	// ErrIntegrityViolation marks a detected invariant breach during a
	// mutation (e.g. an attempt to mark PowerSource Skipped). Fatal for
	// the turn: nothing is persisted, a telemetry event is emitted.
	ErrIntegrityViolation = errors.New("core: session invariant violated")

	// ErrDeadlineExceeded is raised when a turn's context deadline (or a
	// sub-deadline on the LLM or graph call) expires. The Orchestrator
	// maps it to the nearest underlying error category.
	ErrDeadlineExceeded = errors.New("core: turn deadline exceeded")
)

// ExtractionError wraps ErrExtraction with the underlying cause, e.g. an
// LLM transport failure or a JSON-contract violation.
type ExtractionError struct {
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return "core: extraction failed: " + e.Reason + ": " + e.Err.Error()
	}
	return "core: extraction failed: " + e.Reason
}

func (e *ExtractionError) Unwrap() error { return ErrExtraction }

// RepositoryError wraps ErrRepository with the failing operation name.
type RepositoryError struct {
	Operation string
	Err       error
}

func (e *RepositoryError) Error() string {
	if e.Err != nil {
		return "core: repository " + e.Operation + " failed: " + e.Err.Error()
	}
	return "core: repository " + e.Operation + " failed"
}

func (e *RepositoryError) Unwrap() error { return ErrRepository }

// IntegrityViolation wraps ErrIntegrityViolation with the invariant name
// that was breached, for telemetry and logs only — never surfaced to users.
type IntegrityViolation struct {
	Invariant string
	Detail    string
}

func (e *IntegrityViolation) Error() string {
	return "core: integrity violation (" + e.Invariant + "): " + e.Detail
}

func (e *IntegrityViolation) Unwrap() error { return ErrIntegrityViolation }
