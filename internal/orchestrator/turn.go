package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/weldcfg/configurator/internal/core"
)

// kindToState maps a component kind back to the state that gathers it,
// the inverse of core.State.Kind(). Used to anchor the downstream-clear
// cascade on the state of the kind being replaced, not the session's
// current state (spec §4.5).
var kindToState = map[core.ComponentKind]core.State{
	core.KindPowerSource:    core.S1PowerSource,
	core.KindFeeder:         core.S2Feeder,
	core.KindCooler:         core.S3Cooler,
	core.KindInterconnector: core.S4Interconnector,
	core.KindTorch:          core.S5Torch,
	core.KindAccessory:      core.S6Accessories,
}

// applicabilityGatedKinds is the closed list of kinds the Applicability Table can mark N
// for (PowerSource itself is never looked up, spec §4.1).
var applicabilityGatedKinds = []core.ComponentKind{
	core.KindFeeder, core.KindCooler, core.KindInterconnector, core.KindTorch, core.KindAccessory,
}

// cascader is the optional capability a core.StateMachine implementation
// may offer beyond the port's minimal contract. state.Machine implements
// it; the Orchestrator degrades gracefully (no downstream clear) if a
// different StateMachine doesn't.
type cascader interface {
	Cascade(s *core.SessionState, from core.State)
}

// runTurn implements spec §4.8 steps 2-3 and 5-12 for everything other
// than an explicit reset, which HandleTurn short-circuits before this is
// reached.
func (o *Orchestrator) runTurn(ctx context.Context, s *core.SessionState, message string) (TurnResponse, error) {
	lang := s.LanguageTag

	switch classifyIntent(message) {
	case intentSkip:
		return o.handleSkip(s, lang), nil
	case intentFinalize:
		return o.handleFinalizeSignal(s, lang), nil
	case intentConfirm:
		if resp, handled, err := o.tryCommitFromPresented(s, lang); handled {
			return resp, err
		}
	}

	return o.handleData(ctx, s, message, lang)
}

// handleSkip implements step 3 (mandatory-S1 rejection) and the general
// skip-at-other-states behavior: mark the current kind Skipped and
// advance. S6 is the exception (spec §4.5 "S6 is exited only on an
// explicit done/finalize signal"): a skip there is a no-op reprompt,
// since individual accessories are never tracked as Skipped and leaving
// S6 is handleFinalizeSignal's job.
func (o *Orchestrator) handleSkip(s *core.SessionState, lang string) TurnResponse {
	if s.CurrentState == core.S1PowerSource {
		return TurnResponse{Reply: o.composer.RejectSkipOfPowerSource(lang)}
	}
	if s.CurrentState == core.S6Accessories {
		return TurnResponse{Reply: o.promptForState(*s, lang)}
	}

	kind := s.CurrentState.Kind()
	if kind != "" {
		s.Cart.Set(kind, core.CartEntry{Status: core.StatusSkipped})
	}
	s.CurrentState = o.machine.NextState(*s, s.CurrentState)
	return TurnResponse{Reply: o.promptForState(*s, lang)}
}

// handleFinalizeSignal implements the "done/finalize" exit from S6
// (spec §4.5 "S6 is exited only on an explicit done/finalize signal").
// At any other state it's a no-op reprompt: there's nothing to finalize
// yet.
func (o *Orchestrator) handleFinalizeSignal(s *core.SessionState, lang string) TurnResponse {
	if s.CurrentState == core.S6Accessories {
		s.CurrentState = o.machine.NextState(*s, s.CurrentState)
	}
	return TurnResponse{Reply: o.promptForState(*s, lang)}
}

// tryCommitFromPresented implements step 9's affirmative shortcut and
// step 12's finalization confirm. handled is false when "confirm" arrived
// with no pending context to act on, in which case the caller falls
// through to the ordinary extraction path (spec §4.8 step 2: "primarily
// the job of C2").
func (o *Orchestrator) tryCommitFromPresented(s *core.SessionState, lang string) (resp TurnResponse, handled bool, err error) {
	if s.CurrentState.IsTerminal() {
		if s.Cart.RealComponentCount() < o.opts.MinimumRealComponents {
			return TurnResponse{Reply: o.composer.ThresholdNotMet(s.Cart.RealComponentCount(), o.opts.MinimumRealComponents, lang)}, true, nil
		}
		view := o.composer.FinalizationSummary(s.Cart, lang)
		s.Phase = core.PhaseCompleted
		return TurnResponse{Reply: view.Text, Finalization: &view}, true, nil
	}

	if len(s.LastPresentedOptions) != 1 {
		return TurnResponse{}, false, nil
	}

	product := s.LastPresentedOptions[0]
	kind := s.LastPresentedKind
	s.LastPresentedOptions = nil

	reply, commitErr := o.commitSelection(s, kind, product, lang)
	if commitErr != nil {
		return TurnResponse{}, true, commitErr
	}
	return TurnResponse{Reply: reply}, true, nil
}

// commitSelection implements step 9's lock-in plus steps 10 (S1 commit ->
// Applicability load + NotApplicable marking) and 11 (downstream-clear
// cascade on replace).
func (o *Orchestrator) commitSelection(s *core.SessionState, kind core.ComponentKind, product core.Product, lang string) (string, error) {
	var wasSelectedBefore bool
	if kind == core.KindAccessory {
		s.Cart.AddAccessory(core.CartEntry{Status: core.StatusSelected, Product: &product})
	} else {
		wasSelectedBefore = s.Cart.Get(kind).Status == core.StatusSelected
		s.Cart.Set(kind, core.CartEntry{Status: core.StatusSelected, Product: &product})
	}

	var naKinds []core.ComponentKind
	if kind == core.KindPowerSource {
		app := o.applicability.Lookup(product.GIN)
		s.Applicability = app
		s.ApplicabilityLoaded = true
		for _, k := range applicabilityGatedKinds {
			if app.IsApplicable(k) || k == core.KindAccessory {
				continue
			}
			s.Cart.Set(k, core.CartEntry{Status: core.StatusNotApplicable})
			naKinds = append(naKinds, k)
		}
	}

	switch {
	case wasSelectedBefore:
		if c, ok := o.machine.(cascader); ok {
			c.Cascade(s, kindToState[kind])
		} else {
			s.CurrentState = o.machine.NextState(*s, kindToState[kind])
		}
	case kind != core.KindAccessory:
		s.CurrentState = o.machine.NextState(*s, s.CurrentState)
	}

	reply := o.composer.Confirm(kind, product, lang)
	if len(naKinds) > 0 {
		reply += "\n" + o.composer.NotApplicableNotice(naKinds, lang)
	}
	reply += "\n" + o.promptForState(*s, lang)
	return reply, nil
}

// handleData implements steps 5-8: extraction, merge, direct-mention
// lookup, and parameter search with the find_all_compatible fallback.
func (o *Orchestrator) handleData(ctx context.Context, s *core.SessionState, message string, lang string) (TurnResponse, error) {
	llmCtx, cancel := context.WithTimeout(ctx, o.opts.LLMDeadline)
	defer cancel()

	result, err := o.extractor.Extract(llmCtx, core.ExtractionRequest{
		UserMessage:    message,
		CurrentState:   s.CurrentState,
		MasterSnapshot: s.Master,
		RecentLog:      s.RecentLog(10),
	})
	if err != nil {
		if o.technical != nil && errors.Is(err, context.DeadlineExceeded) {
			o.technical.TurnDeadlineExceededTotal.WithLabelValues("extraction").Inc()
		}
		// Step 5 recovery: no mutation, generic restate prompt.
		return TurnResponse{Reply: o.composer.ExtractionFallback(lang)}, nil
	}
	if result.NeedsClarification {
		return TurnResponse{Reply: result.ClarificationQuestion}, nil
	}

	// Step 6: apply updates to Master, last-write-wins per field.
	for kind, bag := range result.Updates {
		s.Master.Apply(kind, bag)
	}

	kind := s.CurrentState.Kind()
	if kind == "" {
		return TurnResponse{Reply: o.promptForState(*s, lang)}, nil
	}
	bag := s.Master.Get(kind)

	// Step 7: direct product mention takes priority over a filtered search.
	// An absent Confidence entry means the extractor didn't score this
	// kind at all; treat that as full confidence rather than forcing a
	// clarification turn or withholding auto-commit.
	confidence, hasConfidence := result.Confidence[kind]
	if mention, ok := result.DirectProductMentions[kind]; ok && mention != "" {
		if hasConfidence && confidence < o.opts.ClarifyBelowConfidence {
			return TurnResponse{Reply: o.promptForState(*s, lang)}, nil
		}

		products, err := o.lookupByName(ctx, kind, mention)
		if err != nil {
			if o.technical != nil && errors.Is(err, context.DeadlineExceeded) {
				o.technical.TurnDeadlineExceededTotal.WithLabelValues("search").Inc()
			}
			return TurnResponse{Reply: repositoryUnavailablePrompt}, nil
		}
		if len(products) == 1 {
			if o.opts.DirectMentionEnriches {
				bag.EnrichFrom(products[0])
			} else {
				bag.ReplaceFrom(products[0])
			}
			s.Master.Bags[kind] = bag
			if hasConfidence && confidence < o.opts.AutoCommitConfidence {
				s.LastPresentedOptions = products
				s.LastPresentedKind = kind
				return TurnResponse{Reply: o.composer.PresentOptions(kind, products, false, lang)}, nil
			}
			reply, commitErr := o.commitSelection(s, kind, products[0], lang)
			if commitErr != nil {
				return TurnResponse{}, commitErr
			}
			return TurnResponse{Reply: reply}, nil
		}
		s.LastPresentedOptions = products
		s.LastPresentedKind = kind
		return TurnResponse{Reply: o.composer.PresentOptions(kind, products, false, lang)}, nil
	}

	// Step 8: eligible for search only with at least one attribute or (by
	// the branch above) a direct mention.
	if bag.IsEmpty() {
		return TurnResponse{Reply: o.promptForState(*s, lang)}, nil
	}

	predicate := o.compat.BuildPredicate(kind, s.Cart)
	result2, err := o.search(ctx, kind, bag, predicate)
	if err != nil {
		if o.technical != nil && errors.Is(err, context.DeadlineExceeded) {
			o.technical.TurnDeadlineExceededTotal.WithLabelValues("search").Inc()
		}
		return TurnResponse{Reply: repositoryUnavailablePrompt}, nil
	}

	s.LastPresentedOptions = result2.Products
	s.LastPresentedKind = kind
	if len(result2.Products) == 1 && hasConfidence && confidence >= o.opts.AutoCommitConfidence {
		reply, commitErr := o.commitSelection(s, kind, result2.Products[0], lang)
		if commitErr != nil {
			return TurnResponse{}, commitErr
		}
		return TurnResponse{Reply: reply}, nil
	}
	return TurnResponse{Reply: o.composer.PresentOptions(kind, result2.Products, result2.Fallback, lang)}, nil
}

const repositoryUnavailablePrompt = "Sorry, our catalogue is momentarily unavailable — please try again shortly."

func (o *Orchestrator) lookupByName(ctx context.Context, kind core.ComponentKind, rawName string) ([]core.Product, error) {
	graphCtx, cancel := context.WithTimeout(ctx, o.opts.GraphDeadline)
	defer cancel()
	products, err := o.repository.LookupByName(graphCtx, kind, rawName)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: lookup by name: %w", err)
	}
	return products, nil
}

func (o *Orchestrator) search(ctx context.Context, kind core.ComponentKind, bag core.ParameterBag, predicate core.CompatibilityPredicate) (core.SearchResult, error) {
	graphCtx, cancel := context.WithTimeout(ctx, o.opts.GraphDeadline)
	defer cancel()
	result, err := o.repository.Search(graphCtx, kind, bag, predicate)
	if err != nil {
		return core.SearchResult{}, fmt.Errorf("orchestrator: search: %w", err)
	}
	return result, nil
}

// promptForState renders what to ask next for s.CurrentState. S7 has no
// component kind of its own, so it renders either the threshold prompt
// (not enough real components yet) or a short, unlocalized nudge to
// confirm — the Composer's eight intents (spec §4.7) don't define a
// "ready to finalize" message, and adding a ninth would widen the closed
// set the spec fixes, so this one line is composed directly rather than
// routed through C7.
func (o *Orchestrator) promptForState(s core.SessionState, lang string) string {
	if s.CurrentState.IsTerminal() {
		if s.Cart.RealComponentCount() < o.opts.MinimumRealComponents {
			return o.composer.ThresholdNotMet(s.Cart.RealComponentCount(), o.opts.MinimumRealComponents, lang)
		}
		return "Ready to finalize whenever you say \"confirm\"."
	}
	return o.composer.PromptFor(s.CurrentState.Kind(), lang)
}
