// Package middleware provides the HTTP transport's cross-cutting
// concerns: request ID propagation, structured request logging, CORS,
// and per-client rate limiting, applied the way the teacher's
// internal/api/middleware package layers them over a gorilla/mux router.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

var structValidator = validator.New()

// ValidateStruct runs go-playground/validator's struct-tag validation,
// the same entry point the teacher's handlers call into from
// ValidationMiddleware.
func ValidateStruct(s interface{}) error {
	return structValidator.Struct(s)
}

type contextKey string

const (
	// RequestIDContextKey is the context key holding the current request's ID.
	RequestIDContextKey contextKey = "request_id"
	// RequestIDHeader is the header request IDs travel in, in and out.
	RequestIDHeader = "X-Request-ID"
)

// RequestID generates or forwards an X-Request-ID, storing it on the
// request context and echoing it on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), RequestIDContextKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID extracts the request ID stashed by RequestID, or "" if absent.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDContextKey).(string); ok {
		return id
	}
	return ""
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Logging logs one structured line per request: method, path, status,
// duration, and the request ID RequestID attached.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			logger.Info("http request",
				"request_id", GetRequestID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", rw.statusCode,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

// CORSConfig configures the CORS middleware.
type CORSConfig struct {
	AllowedOrigins []string
}

// DefaultCORSConfig allows every origin, matching an API meant to be
// called from a chat widget embedded on arbitrary storefronts.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{AllowedOrigins: []string{"*"}}
}

// CORS applies the configured Access-Control-Allow-* headers and answers
// preflight OPTIONS requests directly.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && isOriginAllowed(origin, cfg.AllowedOrigins) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
			} else if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			}
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+RequestIDHeader)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isOriginAllowed(origin string, allowed []string) bool {
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
		if strings.HasPrefix(a, "*.") && strings.HasSuffix(origin, a[1:]) {
			return true
		}
	}
	return false
}

// IPRateLimiter is a coarse, per-client-IP request limiter guarding the
// transport layer. It sits in front of the Orchestrator's own
// per-session limiter (spec §5): this one protects against a single
// client hammering many distinct session IDs, which the per-session
// limiter alone cannot catch.
type IPRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

// NewIPRateLimiter builds a limiter allowing requestsPerMinute requests
// per client IP, with the given burst capacity.
func NewIPRateLimiter(requestsPerMinute, burst int) *IPRateLimiter {
	return &IPRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(float64(requestsPerMinute) / 60.0),
		burst:    burst,
	}
}

func (l *IPRateLimiter) limiterFor(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok := l.limiters[ip]; ok {
		return lim
	}
	lim := rate.NewLimiter(l.rate, l.burst)
	l.limiters[ip] = lim
	return lim
}

// RateLimit rejects a request with 429 once the caller's IP has
// exhausted its bucket.
func (l *IPRateLimiter) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !l.limiterFor(ip).Allow() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":{"code":"RATE_LIMIT_EXCEEDED","message":"too many requests"}}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// maxRequestBodyBytes bounds a single request body, matching the
// teacher's ValidationMiddleware limit.
const maxRequestBodyBytes = 1 << 20

// ValidateRequestShape rejects non-JSON or oversized bodies before a
// handler ever decodes them, leaving per-field struct validation to
// ValidateStruct inside the handler itself.
func ValidateRequestShape(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnsupportedMediaType)
			w.Write([]byte(`{"error":{"code":"VALIDATION_ERROR","message":"Content-Type must be application/json"}}`))
			return
		}
		if r.ContentLength > maxRequestBodyBytes {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			w.Write([]byte(`{"error":{"code":"VALIDATION_ERROR","message":"request body too large"}}`))
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
		next.ServeHTTP(w, r)
	})
}

// Recovery recovers from a panic inside the handler chain, logs it with a
// stack trace, and answers with the same structured error envelope
// WriteError produces rather than letting net/http's default recovery
// close the connection bare.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered",
						"request_id", GetRequestID(r.Context()),
						"error", rec,
						"stack", string(debug.Stack()),
						"method", r.Method,
						"path", r.URL.Path,
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					w.Write([]byte(`{"error":{"code":"INTERNAL_ERROR","message":"an internal error occurred","request_id":"` + GetRequestID(r.Context()) + `"}}`))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// timeoutResponseWriter tracks whether a handler ever wrote a header, so
// Timeout knows whether it's still safe to write the 504 itself.
type timeoutResponseWriter struct {
	http.ResponseWriter
	wroteHeader bool
	mu          sync.Mutex
}

func (w *timeoutResponseWriter) WriteHeader(code int) {
	w.mu.Lock()
	w.wroteHeader = true
	w.mu.Unlock()
	w.ResponseWriter.WriteHeader(code)
}

func (w *timeoutResponseWriter) Write(b []byte) (int, error) {
	w.mu.Lock()
	w.wroteHeader = true
	w.mu.Unlock()
	return w.ResponseWriter.Write(b)
}

// Timeout bounds a request to the given deadline, answering 504 if the
// handler hasn't written a response by the time it expires. This guards
// the turn endpoint against a stalled LLM or graph database call beyond
// what the Orchestrator's own TurnDeadline enforces (spec §5), since that
// deadline only bounds the Orchestrator's own ctx, not a handler that
// never reaches it.
func Timeout(timeout time.Duration, logger *slog.Logger) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			rw := &timeoutResponseWriter{ResponseWriter: w}
			done := make(chan struct{})
			go func() {
				next.ServeHTTP(rw, r.WithContext(ctx))
				close(done)
			}()

			select {
			case <-done:
				return
			case <-ctx.Done():
				rw.mu.Lock()
				wrote := rw.wroteHeader
				rw.mu.Unlock()
				if wrote {
					return
				}
				logger.Warn("request timeout exceeded",
					"request_id", GetRequestID(r.Context()),
					"timeout", timeout,
					"method", r.Method,
					"path", r.URL.Path,
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusGatewayTimeout)
				w.Write([]byte(`{"error":{"code":"UPSTREAM_UNAVAILABLE","message":"request timed out","request_id":"` + GetRequestID(r.Context()) + `"}}`))
			}
		})
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return real
	}
	return r.RemoteAddr
}
