package core

import "context"

// ExtractionRequest is the Parameter Extractor's input contract (spec §4.2).
type ExtractionRequest struct {
	UserMessage     string
	CurrentState    State
	MasterSnapshot  MasterRecord
	RecentLog       []LogEntry
}

// ExtractionResult is the Parameter Extractor's strict output contract
// (spec §4.2). Updates carries only non-empty deltas per component kind;
// kinds the turn does not mention are absent from the map.
type ExtractionResult struct {
	Updates                map[ComponentKind]ParameterBag
	NeedsClarification      bool
	ClarificationQuestion   string
	DirectProductMentions   map[ComponentKind]string
	Confidence              map[ComponentKind]float64
	Reasoning               string
}

// Extractor is the Parameter Extractor port (C2): a stateless call to an
// LLM bound by the strict JSON contract above. Implementations must be
// safe to invoke concurrently for distinct sessions; the Orchestrator is
// responsible for never invoking it twice in parallel for the same
// session (spec §4.2 "Concurrency").
type Extractor interface {
	Extract(ctx context.Context, req ExtractionRequest) (ExtractionResult, error)
}

// CompatibilityPredicate is the opaque value produced by the
// Compatibility Engine (C4) and consumed by the Product Repository (C3)
// (spec §4.3/§4.4). Implementations decide its concrete shape; core only
// ever passes it through.
type CompatibilityPredicate interface {
	// Anchors returns the component kinds this predicate constrains
	// against, for logging/telemetry only.
	Anchors() []ComponentKind
}

// Repository is the Product Repository port (C3): wraps graph queries.
// All three operations return candidates capped at 5, sorted by
// repository-internal score (spec §4.3).
type Repository interface {
	LookupByName(ctx context.Context, kind ComponentKind, rawName string) ([]Product, error)
	Search(ctx context.Context, kind ComponentKind, bag ParameterBag, predicate CompatibilityPredicate) (SearchResult, error)
	FindAllCompatible(ctx context.Context, kind ComponentKind, predicate CompatibilityPredicate) (SearchResult, error)
}

// CompatibilityEngine is the C4 port: builds a CompatibilityPredicate for
// a candidate kind against the current cart's anchors (spec §4.4).
type CompatibilityEngine interface {
	BuildPredicate(kind ComponentKind, cart Cart) CompatibilityPredicate
}

// ApplicabilityTable is the C1 port: a static, process-cached mapping
// from power source identifier to Applicability (spec §4.1).
type ApplicabilityTable interface {
	Lookup(powerSourceGIN string) Applicability
}

// StateMachine is the C5 port: derives active states and the next-state
// rule (spec §4.5).
type StateMachine interface {
	ActiveStates(s SessionState) []State
	NextState(s SessionState, from State) State
}

// SessionStore is the C6 port: hot cache with TTL plus terminal archive
// (spec §4.6).
type SessionStore interface {
	Create(ctx context.Context, s SessionState) error
	Get(ctx context.Context, id string) (SessionState, error)
	Put(ctx context.Context, s SessionState) error
	Archive(ctx context.Context, s SessionState) error
	Reset(ctx context.Context, id string) error
}

// Composer is the C7 port: renders the closed set of user-facing intents
// (spec §4.7). No business logic lives behind this port; it is pure
// rendering plus localization.
type Composer interface {
	PromptFor(kind ComponentKind, lang string) string
	PresentOptions(kind ComponentKind, products []Product, fallback bool, lang string) string
	Confirm(kind ComponentKind, product Product, lang string) string
	RejectSkipOfPowerSource(lang string) string
	NotApplicableNotice(kinds []ComponentKind, lang string) string
	FinalizationSummary(cart Cart, lang string) FinalizationView
	ThresholdNotMet(currentCount, required int, lang string) string
	ExtractionFallback(lang string) string
}

// FinalizationView is the structured object the Composer emits on
// finalization, containing only identifier, name, description per entry
// (spec §4.7).
type FinalizationView struct {
	Entries []FinalizationEntry
	Text    string
}

// FinalizationEntry is one line of a FinalizationView.
type FinalizationEntry struct {
	GIN         string
	Name        string
	Description string
	Kind        ComponentKind
}

// Telemetry is the C-external telemetry port (spec §6): emit has no
// semantic effect on the core.
type Telemetry interface {
	Emit(ctx context.Context, spanName string, attrs map[string]string)
}
