package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/weldcfg/configurator/internal/httpapi/middleware"
	"github.com/weldcfg/configurator/internal/orchestrator"
	"github.com/weldcfg/configurator/internal/realtime"
	"github.com/weldcfg/configurator/pkg/metrics"
)

// RouterConfig configures the router's middleware stack.
type RouterConfig struct {
	CORS                   middleware.CORSConfig
	RequestsPerMinutePerIP int
	RateLimitBurst         int
	// HandlerTimeout bounds every request's handler execution; see
	// middleware.Timeout.
	HandlerTimeout time.Duration
}

// DefaultRouterConfig mirrors the teacher's permissive development
// defaults.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		CORS:                   middleware.DefaultCORSConfig(),
		RequestsPerMinutePerIP: 120,
		RateLimitBurst:         20,
		HandlerTimeout:         35 * time.Second,
	}
}

// NewRouter builds the configurator's HTTP surface: a health check and
// the single conversational turn endpoint, versioned under /api/v1 the
// way the teacher versions its classification API. opsBus is optional —
// nil skips mounting the ops-feed websocket endpoint entirely.
func NewRouter(cfg RouterConfig, o *orchestrator.Orchestrator, opsBus realtime.EventBus, logger *slog.Logger, version string) *mux.Router {
	if logger == nil {
		logger = slog.Default()
	}
	h := NewHandlers(o, logger, version)
	limiter := middleware.NewIPRateLimiter(cfg.RequestsPerMinutePerIP, cfg.RateLimitBurst)

	router := mux.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.Recovery(logger),
		middleware.Logging(logger),
		middleware.CORS(cfg.CORS),
		middleware.ValidateRequestShape,
		limiter.RateLimit,
		middleware.Timeout(cfg.HandlerTimeout, logger),
	)

	router.HandleFunc("/health", h.HandleHealth).Methods(http.MethodGet)

	if metricsHandler, err := metrics.NewMetricsEndpointHandler(metrics.DefaultEndpointConfig(), metrics.DefaultRegistry()); err != nil {
		logger.Error("failed to build metrics endpoint, /metrics will not be served", "error", err)
	} else {
		router.Handle("/metrics", metricsHandler).Methods(http.MethodGet)
	}

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/configurator/message", h.HandleMessage).Methods(http.MethodPost, http.MethodOptions)

	if opsBus != nil {
		ws := realtime.NewHandler(opsBus, logger)
		router.HandleFunc("/ws/ops", ws.ServeWS).Methods(http.MethodGet)
	}

	setupDocumentationRoutes(router, h)

	return router
}

// setupDocumentationRoutes mounts the Swagger UI and its backing OpenAPI
// document, covering the one message endpoint plus /health.
func setupDocumentationRoutes(router *mux.Router, h *Handlers) {
	router.PathPrefix("/docs").Handler(httpSwagger.WrapHandler)
	router.HandleFunc("/openapi.json", h.HandleOpenAPISpec).Methods(http.MethodGet)
}
