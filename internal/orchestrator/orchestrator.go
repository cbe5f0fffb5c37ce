// Package orchestrator implements the Orchestrator (C8): the sole
// mutator of SessionState, wiring the Applicability Table, Parameter
// Extractor, Product Repository, Compatibility Engine, State Machine,
// Session Store, and Message Composer into the per-turn algorithm of
// spec §4.8.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/weldcfg/configurator/internal/core"
	"github.com/weldcfg/configurator/internal/infrastructure/lock"
	"github.com/weldcfg/configurator/internal/realtime"
	"github.com/weldcfg/configurator/pkg/metrics"
)

// TurnRequest is one inbound message for a session (spec §6).
type TurnRequest struct {
	SessionID   string
	Message     string
	LanguageTag string
}

// TurnResponse is what the Orchestrator hands back to the transport
// layer after a turn completes.
type TurnResponse struct {
	SessionID   string
	Reply       string
	State       core.State
	Completed   bool
	Finalization *core.FinalizationView
}

// Options configures the Orchestrator's deadlines and rate limiting
// (spec §5).
type Options struct {
	TurnDeadline  time.Duration
	LLMDeadline   time.Duration
	GraphDeadline time.Duration
	// RateLimitPerSessionPerMinute bounds how many turns a single
	// session may submit per minute; 0 disables the limiter.
	RateLimitPerSessionPerMinute int
	// MinimumRealComponents is the finalization threshold (spec §9 Open
	// Question 1), mirrored from state.Options since the core.StateMachine
	// port itself doesn't expose it.
	MinimumRealComponents int
	// AutoCommitConfidence mirrors Config.Extractor.AutoCommitConfidence
	// (spec §9 Open Question 2): at or above this confidence, a single
	// unambiguous repository result commits without an extra confirmation
	// turn.
	AutoCommitConfidence float64
	// ClarifyBelowConfidence mirrors Config.Extractor.ClarifyBelowConfidence
	// (spec §9 Open Question 2): below this confidence for a mentioned
	// component kind, the orchestrator asks a clarification question
	// instead of searching the repository.
	ClarifyBelowConfidence float64
	// DirectMentionEnriches mirrors Config.Extractor.DirectMentionEnriches
	// (spec §9 Open Question 3).
	DirectMentionEnriches bool
}

func (o Options) withDefaults() Options {
	if o.TurnDeadline <= 0 {
		o.TurnDeadline = 30 * time.Second
	}
	if o.LLMDeadline <= 0 {
		o.LLMDeadline = 10 * time.Second
	}
	if o.GraphDeadline <= 0 {
		o.GraphDeadline = 3 * time.Second
	}
	if o.MinimumRealComponents <= 0 {
		o.MinimumRealComponents = 1
	}
	if o.AutoCommitConfidence <= 0 {
		o.AutoCommitConfidence = 0.85
	}
	if o.ClarifyBelowConfidence <= 0 {
		o.ClarifyBelowConfidence = 0.4
	}
	return o
}

// Orchestrator implements the C8 turn handler.
type Orchestrator struct {
	extractor    core.Extractor
	repository   core.Repository
	compat       core.CompatibilityEngine
	applicability core.ApplicabilityTable
	machine      core.StateMachine
	store        core.SessionStore
	composer     core.Composer
	telemetry    core.Telemetry
	locks        *lock.LockManager
	publisher    *realtime.EventPublisher
	metrics      *metrics.BusinessMetrics
	technical    *metrics.TechnicalMetrics
	logger       *slog.Logger
	opts         Options

	limiters   map[string]*rate.Limiter
	limitersMu sync.Mutex
}

// Deps bundles the Orchestrator's port dependencies for New.
type Deps struct {
	Extractor     core.Extractor
	Repository    core.Repository
	Compatibility core.CompatibilityEngine
	Applicability core.ApplicabilityTable
	Machine       core.StateMachine
	Store         core.SessionStore
	Composer      core.Composer
	Telemetry     core.Telemetry
	Locks         *lock.LockManager
	// Publisher broadcasts turn/session lifecycle events to the ops feed
	// (internal/realtime). Nil disables broadcasting entirely.
	Publisher *realtime.EventPublisher
	// Metrics records business-level Prometheus metrics (pkg/metrics).
	// Nil disables instrumentation entirely.
	Metrics *metrics.BusinessMetrics
	// Technical records rate-limit/lock-contention Prometheus metrics
	// (pkg/metrics). Nil disables instrumentation entirely.
	Technical *metrics.TechnicalMetrics
	Logger    *slog.Logger
}

// New builds an Orchestrator from its port dependencies.
func New(deps Deps, opts Options) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		extractor:     deps.Extractor,
		repository:    deps.Repository,
		compat:        deps.Compatibility,
		applicability: deps.Applicability,
		machine:       deps.Machine,
		store:         deps.Store,
		composer:      deps.Composer,
		telemetry:     deps.Telemetry,
		locks:         deps.Locks,
		publisher:     deps.Publisher,
		metrics:       deps.Metrics,
		technical:     deps.Technical,
		logger:        logger,
		opts:          opts.withDefaults(),
		limiters:      make(map[string]*rate.Limiter),
	}
}

// publishTurn is a best-effort ops-feed broadcast: a failure to publish
// never affects the turn's outcome, it's only logged.
func (o *Orchestrator) publishTurn(eventType, sessionID string, state core.State, durationMs int64) {
	if o.publisher == nil {
		return
	}
	if err := o.publisher.PublishTurnEvent(eventType, sessionID, state, durationMs); err != nil {
		o.logger.Warn("failed to publish turn event", "event_type", eventType, "session_id", sessionID, "error", err)
	}
}

// publishSession is a best-effort ops-feed broadcast for session
// lifecycle transitions (created, reset, finalized).
func (o *Orchestrator) publishSession(eventType, sessionID, languageTag string) {
	if o.publisher == nil {
		return
	}
	if err := o.publisher.PublishSessionEvent(eventType, sessionID, languageTag); err != nil {
		o.logger.Warn("failed to publish session event", "event_type", eventType, "session_id", sessionID, "error", err)
	}
}

// recordTurn records a completed or failed turn's state/intent counter and
// duration histogram. Nil-safe: a nil metrics field (instrumentation
// disabled) makes this a no-op.
func (o *Orchestrator) recordTurn(state core.State, in intent, seconds float64) {
	if o.metrics == nil {
		return
	}
	o.metrics.TurnsTotal.WithLabelValues(string(state), string(in)).Inc()
	o.metrics.TurnDurationSeconds.WithLabelValues(string(state)).Observe(seconds)
}

// recordTransition records a state machine transition. Nil-safe.
func (o *Orchestrator) recordTransition(from, to core.State) {
	if o.metrics == nil || from == to {
		return
	}
	o.metrics.StateTransitionsTotal.WithLabelValues(string(from), string(to)).Inc()
}

// HandleTurn implements the 13-step algorithm of spec §4.8. Exactly one
// of (success, error) happens: either the full turn commits to the
// Session Store, or nothing about the session changes (spec §5 "either
// the full turn commits or nothing changes").
func (o *Orchestrator) HandleTurn(ctx context.Context, req TurnRequest) (TurnResponse, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, o.opts.TurnDeadline)
	defer cancel()

	o.publishTurn(realtime.EventTypeTurnStarted, req.SessionID, "", 0)

	if err := o.checkRateLimit(req.SessionID); err != nil {
		if o.technical != nil {
			o.technical.RateLimitRejectionsTotal.Inc()
		}
		return TurnResponse{}, err
	}

	if o.locks != nil {
		lockKey := "turn:" + req.SessionID
		if o.technical != nil {
			if _, held := o.locks.GetLock(lockKey); held {
				o.technical.LockContentionTotal.Inc()
			}
		}
		if _, err := o.locks.AcquireLock(ctx, lockKey); err != nil {
			return TurnResponse{}, fmt.Errorf("orchestrator: acquire session lock: %w", err)
		}
		defer func() {
			if err := o.locks.ReleaseLock(context.Background(), lockKey); err != nil {
				o.logger.Warn("failed to release turn lock", "session_id", req.SessionID, "error", err)
			}
		}()
	}

	// Step 1: load session (create on miss).
	session, err := o.store.Get(ctx, req.SessionID)
	isNewSession := false
	if err != nil {
		if !errors.Is(err, core.ErrCacheExpired) {
			return TurnResponse{}, fmt.Errorf("orchestrator: load session: %w", err)
		}
		session = core.NewSessionState(req.SessionID, req.LanguageTag, time.Now())
		isNewSession = true
	}
	if req.LanguageTag != "" {
		session.LanguageTag = req.LanguageTag
	}

	// Step 2/4: reset is handled before anything else touches the
	// session — it discards the hot-cache entry and starts fresh rather
	// than flowing through the mutation pipeline below.
	if classifyIntent(req.Message) == intentReset {
		if err := o.store.Reset(ctx, req.SessionID); err != nil {
			return TurnResponse{}, fmt.Errorf("orchestrator: reset session: %w", err)
		}
		fresh := core.NewSessionState(req.SessionID, session.LanguageTag, time.Now())
		fresh.AppendLog(core.RoleUser, req.Message)
		greeting := o.composer.PromptFor(core.KindPowerSource, fresh.LanguageTag)
		fresh.AppendLog(core.RoleAssistant, greeting)
		if err := o.store.Create(ctx, fresh); err != nil {
			return TurnResponse{}, fmt.Errorf("orchestrator: create session after reset: %w", err)
		}
		o.publishSession(realtime.EventTypeSessionReset, fresh.SessionID, fresh.LanguageTag)
		o.publishTurn(realtime.EventTypeTurnCompleted, fresh.SessionID, fresh.CurrentState, time.Since(start).Milliseconds())
		return TurnResponse{
			SessionID: fresh.SessionID,
			Reply:     greeting,
			State:     fresh.CurrentState,
		}, nil
	}

	if isNewSession {
		o.publishSession(realtime.EventTypeSessionCreated, req.SessionID, session.LanguageTag)
	}

	in := classifyIntent(req.Message)
	beforeState := session.CurrentState

	turn := session.Clone()
	resp, err := o.runTurn(ctx, &turn, req.Message)
	if err != nil {
		if o.telemetry != nil {
			o.telemetry.Emit(ctx, "turn.error", map[string]string{
				"session_id": req.SessionID,
				"error":      err.Error(),
			})
		}
		o.publishTurn(realtime.EventTypeTurnFailed, req.SessionID, session.CurrentState, time.Since(start).Milliseconds())
		o.recordTurn(session.CurrentState, in, time.Since(start).Seconds())
		return TurnResponse{}, err
	}

	turn.AppendLog(core.RoleUser, req.Message)
	turn.AppendLog(core.RoleAssistant, resp.Reply)
	o.recordTransition(beforeState, turn.CurrentState)

	if turn.Phase == core.PhaseCompleted {
		if archErr := o.store.Archive(ctx, turn); archErr != nil {
			// Archive is best-effort (spec §4.6): log, don't fail the turn.
			o.logger.Error("failed to archive finalized session", "session_id", turn.SessionID, "error", archErr)
		}
		o.publishSession(realtime.EventTypeSessionFinalized, turn.SessionID, turn.LanguageTag)
		if o.metrics != nil {
			o.metrics.SessionsFinalizedTotal.Inc()
		}
	} else if err := o.store.Put(ctx, turn); err != nil {
		return TurnResponse{}, fmt.Errorf("orchestrator: persist session: %w", err)
	}

	resp.SessionID = turn.SessionID
	resp.State = turn.CurrentState
	resp.Completed = turn.Phase == core.PhaseCompleted
	o.publishTurn(realtime.EventTypeTurnCompleted, turn.SessionID, turn.CurrentState, time.Since(start).Milliseconds())
	o.recordTurn(turn.CurrentState, in, time.Since(start).Seconds())
	return resp, nil
}

func (o *Orchestrator) checkRateLimit(sessionID string) error {
	if o.opts.RateLimitPerSessionPerMinute <= 0 {
		return nil
	}
	limiter := o.limiterFor(sessionID)
	if !limiter.Allow() {
		return fmt.Errorf("orchestrator: rate limit exceeded for session %s", sessionID)
	}
	return nil
}

func (o *Orchestrator) limiterFor(sessionID string) *rate.Limiter {
	o.limitersMu.Lock()
	defer o.limitersMu.Unlock()
	if l, ok := o.limiters[sessionID]; ok {
		return l
	}
	perSecond := rate.Limit(float64(o.opts.RateLimitPerSessionPerMinute) / 60.0)
	l := rate.NewLimiter(perSecond, o.opts.RateLimitPerSessionPerMinute)
	o.limiters[sessionID] = l
	return l
}
