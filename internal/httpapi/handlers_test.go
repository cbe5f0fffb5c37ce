package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/weldcfg/configurator/internal/composer"
	"github.com/weldcfg/configurator/internal/core"
	"github.com/weldcfg/configurator/internal/orchestrator"
	"github.com/weldcfg/configurator/internal/state"
)

type stubExtractor struct {
	result core.ExtractionResult
	err    error
}

func (s *stubExtractor) Extract(ctx context.Context, req core.ExtractionRequest) (core.ExtractionResult, error) {
	return s.result, s.err
}

type stubRepository struct{}

func (stubRepository) LookupByName(ctx context.Context, kind core.ComponentKind, rawName string) ([]core.Product, error) {
	return nil, nil
}

func (stubRepository) Search(ctx context.Context, kind core.ComponentKind, bag core.ParameterBag, predicate core.CompatibilityPredicate) (core.SearchResult, error) {
	return core.SearchResult{}, nil
}

func (stubRepository) FindAllCompatible(ctx context.Context, kind core.ComponentKind, predicate core.CompatibilityPredicate) (core.SearchResult, error) {
	return core.SearchResult{}, nil
}

type stubPredicate struct{}

func (stubPredicate) Anchors() []core.ComponentKind { return nil }

type stubCompat struct{}

func (stubCompat) BuildPredicate(kind core.ComponentKind, cart core.Cart) core.CompatibilityPredicate {
	return stubPredicate{}
}

type stubApplicability struct{}

func (stubApplicability) Lookup(gin string) core.Applicability { return core.DefaultApplicability() }

type memStore struct {
	mu       sync.Mutex
	sessions map[string]core.SessionState
}

func newMemStore() *memStore {
	return &memStore{sessions: make(map[string]core.SessionState)}
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
	delete(m.sessions, s.SessionID)
	return nil
}

func (m *memStore) Reset(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func newTestHandlers(t *testing.T, extractor core.Extractor) *Handlers {
	t.Helper()
	c, err := composer.New("", "en", nil)
	if err != nil {
		t.Fatalf("build composer: %v", err)
	}
	o := orchestrator.New(orchestrator.Deps{
		Extractor:     extractor,
		Repository:    stubRepository{},
		Compatibility: stubCompat{},
		Applicability: stubApplicability{},
		Machine:       state.NewMachine(state.Options{MinimumRealComponents: 1}),
		Store:         newMemStore(),
		Composer:      c,
	}, orchestrator.Options{MinimumRealComponents: 1})
	return NewHandlers(o, nil, "test")
}

func postJSON(t *testing.T, h http.HandlerFunc, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		t.Fatalf("encode request body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/configurator/message", &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHandleMessage_NewSession_PromptsForPowerSource(t *testing.T) {
	h := newTestHandlers(t, &stubExtractor{})

	rr := postJSON(t, h.HandleMessage, messageRequest{SessionID: "sess-1", Message: "hi there"})

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp messageResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Reply == "" {
		t.Error("expected a non-empty reply")
	}
	if resp.SessionID != "sess-1" {
		t.Errorf("expected session_id to round-trip, got %q", resp.SessionID)
	}
}

func TestHandleMessage_MissingFields_RejectedWithValidationError(t *testing.T) {
	h := newTestHandlers(t, &stubExtractor{})

	rr := postJSON(t, h.HandleMessage, messageRequest{SessionID: "", Message: ""})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing required fields, got %d", rr.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if resp.Error.Code != ErrCodeValidation {
		t.Errorf("expected validation error code, got %q", resp.Error.Code)
	}
}

func TestHandleMessage_MalformedBody_RejectedBeforeOrchestrator(t *testing.T) {
	h := newTestHandlers(t, &stubExtractor{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/configurator/message", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.HandleMessage(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed JSON, got %d", rr.Code)
	}
}

func TestHandleHealth_ReportsOK(t *testing.T) {
	h := newTestHandlers(t, &stubExtractor{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	h.HandleHealth(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body health
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode health response: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("expected status ok, got %q", body.Status)
	}
}
