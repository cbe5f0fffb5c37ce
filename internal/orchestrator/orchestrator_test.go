package orchestrator_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weldcfg/configurator/internal/composer"
	"github.com/weldcfg/configurator/internal/core"
	"github.com/weldcfg/configurator/internal/orchestrator"
	"github.com/weldcfg/configurator/internal/state"
)

// fakeExtractor lets each test script its own Parameter Extractor replies.
type fakeExtractor struct {
	results []core.ExtractionResult
	errs    []error
	calls   int
}

func (f *fakeExtractor) Extract(ctx context.Context, req core.ExtractionRequest) (core.ExtractionResult, error) {
	i := f.calls
	f.calls++
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if err != nil {
		return core.ExtractionResult{}, err
	}
	if i < len(f.results) {
		return f.results[i], nil
	}
	return core.ExtractionResult{}, nil
}

type fakeRepository struct {
	lookupResult []core.Product
	lookupErr    error
	searchResult core.SearchResult
	searchErr    error
}

func (f *fakeRepository) LookupByName(ctx context.Context, kind core.ComponentKind, rawName string) ([]core.Product, error) {
	return f.lookupResult, f.lookupErr
}

func (f *fakeRepository) Search(ctx context.Context, kind core.ComponentKind, bag core.ParameterBag, predicate core.CompatibilityPredicate) (core.SearchResult, error) {
	return f.searchResult, f.searchErr
}

func (f *fakeRepository) FindAllCompatible(ctx context.Context, kind core.ComponentKind, predicate core.CompatibilityPredicate) (core.SearchResult, error) {
	return f.searchResult, f.searchErr
}

type fakePredicate struct{}

func (fakePredicate) Anchors() []core.ComponentKind { return nil }

type fakeCompat struct{}

func (fakeCompat) BuildPredicate(kind core.ComponentKind, cart core.Cart) core.CompatibilityPredicate {
	return fakePredicate{}
}

type fakeApplicability struct {
	table map[string]core.Applicability
}

func (f *fakeApplicability) Lookup(gin string) core.Applicability {
	if a, ok := f.table[gin]; ok {
		return a
	}
	return core.DefaultApplicability()
}

// memStore is an in-memory core.SessionStore, good enough to exercise
// HandleTurn's load/persist/archive/reset steps without a real backend.
type memStore struct {
	mu       sync.Mutex
	sessions map[string]core.SessionState
	archived map[string]core.SessionState
}

func newMemStore() *memStore {
	return &memStore{
		sessions: make(map[string]core.SessionState),
		archived: make(map[string]core.SessionState),
	}
}

func (m *memStore) Create(ctx context.Context, s core.SessionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.SessionID] = s
	return nil
}

func (m *memStore) Get(ctx context.Context, id string) (core.SessionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return core.SessionState{}, core.ErrCacheExpired
	}
	return s, nil
}

func (m *memStore) Put(ctx context.Context, s core.SessionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.SessionID] = s
	return nil
}

func (m *memStore) Archive(ctx context.Context, s core.SessionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.archived[s.SessionID] = s
	delete(m.sessions, s.SessionID)
	return nil
}

func (m *memStore) Reset(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func newTestOrchestrator(t *testing.T, extractor core.Extractor, repo core.Repository, apps *fakeApplicability) (*orchestrator.Orchestrator, *memStore) {
	t.Helper()
	c, err := composer.New("", "en", nil)
	require.NoError(t, err)
	store := newMemStore()
	o := orchestrator.New(orchestrator.Deps{
		Extractor:     extractor,
		Repository:    repo,
		Compatibility: fakeCompat{},
		Applicability: apps,
		Machine:       state.NewMachine(state.Options{MinimumRealComponents: 1}),
		Store:         store,
		Composer:      c,
	}, orchestrator.Options{MinimumRealComponents: 1})
	return o, store
}

func TestOrchestrator_NewSession_PromptsForPowerSource(t *testing.T) {
	apps := &fakeApplicability{}
	extractor := &fakeExtractor{}
	o, _ := newTestOrchestrator(t, extractor, &fakeRepository{}, apps)

	resp, err := o.HandleTurn(context.Background(), orchestrator.TurnRequest{
		SessionID: "sess-1",
		Message:   "I need a power source",
	})

	require.NoError(t, err)
	assert.Equal(t, core.S1PowerSource, resp.State)
	assert.False(t, resp.Completed)
}

func TestOrchestrator_DirectMention_SingleMatch_CommitsSelection(t *testing.T) {
	apps := &fakeApplicability{table: map[string]core.Applicability{
		"ps-1": core.DefaultApplicability(),
	}}
	extractor := &fakeExtractor{results: []core.ExtractionResult{
		{DirectProductMentions: map[core.ComponentKind]string{core.KindPowerSource: "TIG 250"}},
	}}
	repo := &fakeRepository{lookupResult: []core.Product{{GIN: "ps-1", Name: "TIG 250", Kind: core.KindPowerSource}}}
	o, store := newTestOrchestrator(t, extractor, repo, apps)

	resp, err := o.HandleTurn(context.Background(), orchestrator.TurnRequest{
		SessionID: "sess-2",
		Message:   "I want the TIG 250",
	})

	require.NoError(t, err)
	assert.Contains(t, resp.Reply, "TIG 250")
	assert.Equal(t, core.S2Feeder, resp.State)

	saved, ok := store.sessions["sess-2"]
	require.True(t, ok)
	entry := saved.Cart.Get(core.KindPowerSource)
	assert.Equal(t, core.StatusSelected, entry.Status)
	require.NotNil(t, entry.Product)
	assert.Equal(t, "ps-1", entry.Product.GIN)
	assert.True(t, saved.ApplicabilityLoaded)
}

func TestOrchestrator_DirectMention_MultipleMatches_PresentsOptions(t *testing.T) {
	apps := &fakeApplicability{}
	extractor := &fakeExtractor{results: []core.ExtractionResult{
		{DirectProductMentions: map[core.ComponentKind]string{core.KindPowerSource: "TIG"}},
	}}
	repo := &fakeRepository{lookupResult: []core.Product{
		{GIN: "ps-1", Name: "TIG 250"},
		{GIN: "ps-2", Name: "TIG 400"},
	}}
	o, store := newTestOrchestrator(t, extractor, repo, apps)

	resp, err := o.HandleTurn(context.Background(), orchestrator.TurnRequest{
		SessionID: "sess-3",
		Message:   "Do you have a TIG machine?",
	})

	require.NoError(t, err)
	assert.Contains(t, resp.Reply, "TIG 250")
	assert.Contains(t, resp.Reply, "TIG 400")

	saved := store.sessions["sess-3"]
	assert.Len(t, saved.LastPresentedOptions, 2)
	assert.Equal(t, core.S1PowerSource, saved.CurrentState)
}

func TestOrchestrator_Confirm_CommitsLastPresentedSingleOption(t *testing.T) {
	apps := &fakeApplicability{}
	extractor := &fakeExtractor{}
	o, store := newTestOrchestrator(t, extractor, &fakeRepository{}, apps)

	seeded := core.NewSessionState("sess-4", "en", time.Now())
	seeded.LastPresentedOptions = []core.Product{{GIN: "ps-1", Name: "TIG 250", Kind: core.KindPowerSource}}
	seeded.LastPresentedKind = core.KindPowerSource
	require.NoError(t, store.Create(context.Background(), seeded))

	resp, err := o.HandleTurn(context.Background(), orchestrator.TurnRequest{
		SessionID: "sess-4",
		Message:   "yes",
	})

	require.NoError(t, err)
	assert.Contains(t, resp.Reply, "TIG 250")
	assert.Equal(t, core.S2Feeder, resp.State)
}

func TestOrchestrator_SkipAtPowerSource_Rejected(t *testing.T) {
	apps := &fakeApplicability{}
	o, _ := newTestOrchestrator(t, &fakeExtractor{}, &fakeRepository{}, apps)

	resp, err := o.HandleTurn(context.Background(), orchestrator.TurnRequest{
		SessionID: "sess-5",
		Message:   "skip",
	})

	require.NoError(t, err)
	assert.Equal(t, core.S1PowerSource, resp.State)
	assert.NotContains(t, resp.Reply, "TIG")
}

func TestOrchestrator_SkipAtFeeder_AdvancesAndMarksSkipped(t *testing.T) {
	apps := &fakeApplicability{}
	o, store := newTestOrchestrator(t, &fakeExtractor{}, &fakeRepository{}, apps)

	seeded := core.NewSessionState("sess-6", "en", time.Now())
	seeded.CurrentState = core.S2Feeder
	seeded.ApplicabilityLoaded = true
	seeded.Applicability = core.DefaultApplicability()
	seeded.Cart.Set(core.KindPowerSource, core.CartEntry{
		Status:  core.StatusSelected,
		Product: &core.Product{GIN: "ps-1"},
	})
	require.NoError(t, store.Create(context.Background(), seeded))

	resp, err := o.HandleTurn(context.Background(), orchestrator.TurnRequest{
		SessionID: "sess-6",
		Message:   "skip",
	})

	require.NoError(t, err)
	assert.Equal(t, core.S3Cooler, resp.State)
	saved := store.sessions["sess-6"]
	assert.Equal(t, core.StatusSkipped, saved.Cart.Get(core.KindFeeder).Status)
}

func TestOrchestrator_Reset_StartsFreshSession(t *testing.T) {
	apps := &fakeApplicability{}
	o, store := newTestOrchestrator(t, &fakeExtractor{}, &fakeRepository{}, apps)

	seeded := core.NewSessionState("sess-7", "en", time.Now())
	seeded.CurrentState = core.S4Interconnector
	require.NoError(t, store.Create(context.Background(), seeded))

	resp, err := o.HandleTurn(context.Background(), orchestrator.TurnRequest{
		SessionID: "sess-7",
		Message:   "start over",
	})

	require.NoError(t, err)
	assert.Equal(t, core.S1PowerSource, resp.State)
	saved := store.sessions["sess-7"]
	assert.Equal(t, core.S1PowerSource, saved.CurrentState)
}

func TestOrchestrator_Finalize_BelowThreshold_ReportsThresholdNotMet(t *testing.T) {
	apps := &fakeApplicability{}
	o, store := newTestOrchestrator(t, &fakeExtractor{}, &fakeRepository{}, apps)

	seeded := core.NewSessionState("sess-8", "en", time.Now())
	seeded.CurrentState = core.S7Finalize
	seeded.ApplicabilityLoaded = true
	seeded.Applicability = core.DefaultApplicability()
	require.NoError(t, store.Create(context.Background(), seeded))

	resp, err := o.HandleTurn(context.Background(), orchestrator.TurnRequest{
		SessionID: "sess-8",
		Message:   "confirm",
	})

	require.NoError(t, err)
	assert.False(t, resp.Completed)
	assert.Contains(t, resp.Reply, "0")
}

func TestOrchestrator_Finalize_ThresholdMet_ArchivesAndCompletes(t *testing.T) {
	apps := &fakeApplicability{}
	o, store := newTestOrchestrator(t, &fakeExtractor{}, &fakeRepository{}, apps)

	seeded := core.NewSessionState("sess-9", "en", time.Now())
	seeded.CurrentState = core.S7Finalize
	seeded.ApplicabilityLoaded = true
	seeded.Applicability = core.DefaultApplicability()
	seeded.Cart.Set(core.KindPowerSource, core.CartEntry{
		Status:  core.StatusSelected,
		Product: &core.Product{GIN: "ps-1", Name: "TIG 250"},
	})
	require.NoError(t, store.Create(context.Background(), seeded))

	resp, err := o.HandleTurn(context.Background(), orchestrator.TurnRequest{
		SessionID: "sess-9",
		Message:   "confirm",
	})

	require.NoError(t, err)
	assert.True(t, resp.Completed)
	require.NotNil(t, resp.Finalization)
	assert.Len(t, resp.Finalization.Entries, 1)

	_, stillHot := store.sessions["sess-9"]
	assert.False(t, stillHot)
	_, archived := store.archived["sess-9"]
	assert.True(t, archived)
}

func TestOrchestrator_ExtractionFailure_LeavesSessionUnchanged(t *testing.T) {
	apps := &fakeApplicability{}
	extractor := &fakeExtractor{errs: []error{core.ErrExtraction}}
	o, store := newTestOrchestrator(t, extractor, &fakeRepository{}, apps)

	seeded := core.NewSessionState("sess-10", "en", time.Now())
	require.NoError(t, store.Create(context.Background(), seeded))

	resp, err := o.HandleTurn(context.Background(), orchestrator.TurnRequest{
		SessionID: "sess-10",
		Message:   "something odd",
	})

	require.NoError(t, err)
	assert.Equal(t, core.S1PowerSource, resp.State)
	saved := store.sessions["sess-10"]
	assert.Equal(t, core.StatusUnset, saved.Cart.Get(core.KindPowerSource).Status)
}

func TestOrchestrator_RateLimit_BlocksExcessTurns(t *testing.T) {
	apps := &fakeApplicability{}
	c, err := composer.New("", "en", nil)
	require.NoError(t, err)
	store := newMemStore()
	o := orchestrator.New(orchestrator.Deps{
		Extractor:     &fakeExtractor{},
		Repository:    &fakeRepository{},
		Compatibility: fakeCompat{},
		Applicability: apps,
		Machine:       state.NewMachine(state.Options{MinimumRealComponents: 1}),
		Store:         store,
		Composer:      c,
	}, orchestrator.Options{MinimumRealComponents: 1, RateLimitPerSessionPerMinute: 1})

	ctx := context.Background()
	_, err = o.HandleTurn(ctx, orchestrator.TurnRequest{SessionID: "sess-11", Message: "hello"})
	require.NoError(t, err)

	_, err = o.HandleTurn(ctx, orchestrator.TurnRequest{SessionID: "sess-11", Message: "hello again"})
	assert.Error(t, err)
}
