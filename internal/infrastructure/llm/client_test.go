package llm

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weldcfg/configurator/internal/core"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestClient_Extract(t *testing.T) {
	tests := []struct {
		name           string
		serverResponse wireResponse
		serverStatus   int
		wantErr        bool
	}{
		{
			name: "successful extraction",
			serverResponse: wireResponse{
				Updates: map[string]map[string]string{
					"PowerSource": {"process": "MIG (GMAW)", "current": "200 A"},
				},
				Confidence: map[string]float64{"PowerSource": 0.9},
				Reasoning:  "user named MIG process and current",
			},
			serverStatus: http.StatusOK,
			wantErr:      false,
		},
		{
			name: "needs clarification",
			serverResponse: wireResponse{
				NeedsClarification:    true,
				ClarificationQuestion: "what amperage do you need?",
			},
			serverStatus: http.StatusOK,
			wantErr:      false,
		},
		{
			name:         "server error",
			serverStatus: http.StatusInternalServerError,
			wantErr:      true,
		},
		{
			name: "invalid component kind in response",
			serverResponse: wireResponse{
				Updates: map[string]map[string]string{
					"Spaceship": {"process": "MIG (GMAW)"},
				},
			},
			serverStatus: http.StatusOK,
			wantErr:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/v1/extract" {
					w.WriteHeader(tt.serverStatus)
					if tt.serverStatus == http.StatusOK {
						json.NewEncoder(w).Encode(tt.serverResponse)
					}
				}
			}))
			defer server.Close()

			config := DefaultConfig()
			config.BaseURL = server.URL
			config.MaxRetries = 0

			client := NewClient(config, testLogger(), nil)

			req := core.ExtractionRequest{
				UserMessage:    "I need a MIG welder at 200 amps",
				CurrentState:   core.S1PowerSource,
				MasterSnapshot: core.NewMasterRecord(),
			}

			result, err := client.Extract(context.Background(), req)

			if tt.wantErr {
				assert.Error(t, err)
				var extractionErr *core.ExtractionError
				assert.ErrorAs(t, err, &extractionErr)
			} else {
				require.NoError(t, err)
				if tt.serverResponse.NeedsClarification {
					assert.True(t, result.NeedsClarification)
					assert.Equal(t, tt.serverResponse.ClarificationQuestion, result.ClarificationQuestion)
				} else {
					bag, ok := result.Updates[core.KindPowerSource]
					require.True(t, ok)
					assert.Equal(t, "MIG (GMAW)", bag.Attributes["process"])
				}
			}
		})
	}
}

func TestClient_Health(t *testing.T) {
	tests := []struct {
		name         string
		serverStatus int
		wantErr      bool
	}{
		{name: "healthy", serverStatus: http.StatusOK, wantErr: false},
		{name: "unhealthy", serverStatus: http.StatusServiceUnavailable, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/health" {
					w.WriteHeader(tt.serverStatus)
				}
			}))
			defer server.Close()

			config := DefaultConfig()
			config.BaseURL = server.URL

			client := NewClient(config, testLogger(), nil)
			err := client.Health(context.Background())

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestClient_RetriesTransientFailures(t *testing.T) {
	attempts := 0
	maxAttempts := 3

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/extract" {
			attempts++
			if attempts < maxAttempts {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(wireResponse{
				Updates: map[string]map[string]string{
					"Feeder": {"process": "MIG (GMAW)"},
				},
			})
		}
	}))
	defer server.Close()

	config := DefaultConfig()
	config.BaseURL = server.URL
	config.MaxRetries = 3
	config.RetryDelay = 5 * time.Millisecond
	config.RetryBackoff = 1.5

	client := NewClient(config, testLogger(), nil)

	req := core.ExtractionRequest{
		UserMessage:    "my wire feeder should do MIG too",
		CurrentState:   core.S2Feeder,
		MasterSnapshot: core.NewMasterRecord(),
	}

	result, err := client.Extract(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, maxAttempts, attempts)
	assert.Contains(t, result.Updates, core.KindFeeder)
}

func TestClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/extract" {
			time.Sleep(500 * time.Millisecond)
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer server.Close()

	config := DefaultConfig()
	config.BaseURL = server.URL
	config.MaxRetries = 0
	config.Timeout = 5 * time.Second

	client := NewClient(config, testLogger(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	req := core.ExtractionRequest{
		UserMessage:    "slow request",
		CurrentState:   core.S1PowerSource,
		MasterSnapshot: core.NewMasterRecord(),
	}

	_, err := client.Extract(ctx, req)

	assert.Error(t, err)
	var extractionErr *core.ExtractionError
	assert.ErrorAs(t, err, &extractionErr)
}
