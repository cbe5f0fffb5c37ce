// Package httpapi is the HTTP transport (spec §6): a thin translation
// layer between wire JSON and the Orchestrator's TurnRequest/TurnResponse,
// grounded on the teacher's internal/api/handlers/classification package.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/weldcfg/configurator/internal/httpapi/middleware"
	"github.com/weldcfg/configurator/internal/orchestrator"
)

// Handlers bundles the Orchestrator into HTTP handler functions.
type Handlers struct {
	orchestrator *orchestrator.Orchestrator
	logger       *slog.Logger
	version      string
}

// NewHandlers builds the transport's request handlers.
func NewHandlers(o *orchestrator.Orchestrator, logger *slog.Logger, version string) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{orchestrator: o, logger: logger, version: version}
}

// messageRequest is the wire shape of POST /api/v1/configurator/message.
type messageRequest struct {
	SessionID   string `json:"session_id" validate:"required,max=128"`
	Message     string `json:"message" validate:"required,max=4000"`
	LanguageTag string `json:"language_tag" validate:"omitempty,bcp47_language_tag"`
}

// messageResponse is the wire shape of a successful turn.
type messageResponse struct {
	SessionID    string                `json:"session_id"`
	Reply        string                `json:"reply"`
	State        string                `json:"state"`
	Completed    bool                  `json:"completed"`
	Finalization *finalizationResponse `json:"finalization,omitempty"`
}

type finalizationResponse struct {
	Text    string                  `json:"text"`
	Entries []finalizationEntryView `json:"entries"`
}

type finalizationEntryView struct {
	GIN         string `json:"gin"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Kind        string `json:"kind"`
}

// HandleMessage implements POST /configurator/message: decode, delegate
// to the Orchestrator, encode. It never forwards the Orchestrator's raw
// error text to the client — internal failure detail belongs in the logs,
// not the wire envelope.
func (h *Handlers) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		WriteError(w, r, ErrCodeValidation, "malformed request body")
		return
	}
	if err := middleware.ValidateStruct(req); err != nil {
		WriteError(w, r, ErrCodeValidation, err.Error())
		return
	}

	resp, err := h.orchestrator.HandleTurn(r.Context(), orchestrator.TurnRequest{
		SessionID:   req.SessionID,
		Message:     req.Message,
		LanguageTag: req.LanguageTag,
	})
	if err != nil {
		h.logger.Error("turn handling failed", "session_id", req.SessionID, "error", err)
		if isRateLimitErr(err) {
			WriteError(w, r, ErrCodeRateLimited, "too many messages for this session, slow down")
			return
		}
		WriteError(w, r, ErrCodeUpstream, "could not process your message right now")
		return
	}

	out := messageResponse{
		SessionID: resp.SessionID,
		Reply:     resp.Reply,
		State:     string(resp.State),
		Completed: resp.Completed,
	}
	if resp.Finalization != nil {
		fv := &finalizationResponse{Text: resp.Finalization.Text}
		for _, e := range resp.Finalization.Entries {
			fv.Entries = append(fv.Entries, finalizationEntryView{
				GIN:         e.GIN,
				Name:        e.Name,
				Description: e.Description,
				Kind:        string(e.Kind),
			})
		}
		out.Finalization = fv
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(out)
}

// isRateLimitErr is a narrow substring check: the Orchestrator reports
// rate limiting via a plain wrapped error rather than a typed one (see
// orchestrator.checkRateLimit), so detection matches the text it formats.
func isRateLimitErr(err error) bool {
	return strings.Contains(err.Error(), "rate limit exceeded")
}

// health is the wire shape of GET /health, matching the teacher's
// cmd/server/handlers.HealthHandler payload.
type health struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

// HandleHealth reports liveness.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health{
		Status:  "ok",
		Service: "configurator",
		Version: h.version,
	})
}

// HandleOpenAPISpec serves the OpenAPI document backing the Swagger UI
// mounted at /docs, describing the one message endpoint plus /health.
func (h *Handlers) HandleOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(openAPISpec(h.version)))
}

func openAPISpec(version string) string {
	return `{
  "openapi": "3.0.3",
  "info": {
    "title": "Configurator API",
    "version": "` + version + `"
  },
  "paths": {
    "/health": {
      "get": {
        "summary": "Liveness check",
        "responses": {
          "200": {
            "description": "Service is up",
            "content": {
              "application/json": {
                "schema": {
                  "type": "object",
                  "properties": {
                    "status": {"type": "string"},
                    "service": {"type": "string"},
                    "version": {"type": "string"}
                  }
                }
              }
            }
          }
        }
      }
    },
    "/api/v1/configurator/message": {
      "post": {
        "summary": "Advance a configurator session by one conversational turn",
        "requestBody": {
          "required": true,
          "content": {
            "application/json": {
              "schema": {
                "type": "object",
                "required": ["session_id", "message"],
                "properties": {
                  "session_id": {"type": "string", "maxLength": 128},
                  "message": {"type": "string", "maxLength": 4000},
                  "language_tag": {"type": "string"}
                }
              }
            }
          }
        },
        "responses": {
          "200": {
            "description": "The assistant's reply for this turn",
            "content": {
              "application/json": {
                "schema": {
                  "type": "object",
                  "properties": {
                    "session_id": {"type": "string"},
                    "reply": {"type": "string"},
                    "state": {"type": "string"},
                    "completed": {"type": "boolean"},
                    "finalization": {"type": "object", "nullable": true}
                  }
                }
              }
            }
          },
          "400": {"description": "Validation error"},
          "429": {"description": "Rate limited"},
          "503": {"description": "Upstream (LLM or graph) unavailable"}
        }
      }
    }
  }
}`
}
