// Package api exposes the HTTP interface for the post monitor service.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/postwatch-io/postwatch/internal/auth"
	"github.com/postwatch-io/postwatch/internal/metrics"
	"github.com/postwatch-io/postwatch/internal/monitor"
)

// WebhookVerifier probes a webhook endpoint for reachability.
type WebhookVerifier interface {
	Verify(ctx context.Context, url string) bool
}

// Server wires HTTP handlers to the stores, auth manager, and collaborators.
type Server struct {
	router   chi.Router
	users    monitor.UserStore
	posts    monitor.PostStore
	auth     *auth.Manager
	checker  monitor.StatusChecker
	verifier WebhookVerifier
	idGen    monitor.IDGenerator
	clock    monitor.Clock
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	users monitor.UserStore,
	posts monitor.PostStore,
	authMgr *auth.Manager,
	checker monitor.StatusChecker,
	verifier WebhookVerifier,
	idGen monitor.IDGenerator,
	clock monitor.Clock,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	s := &Server{
		users:    users,
		posts:    posts,
		auth:     authMgr,
		checker:  checker,
		verifier: verifier,
		idGen:    idGen,
		clock:    clock,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(60 * time.Second))
	r.Use(metrics.Middleware)

	r.Get("/health", s.health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Post("/register", s.register)
	r.Post("/login", s.login)
	r.Post("/refresh_token", s.refreshToken)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Post("/posts", s.addPost)
		r.Get("/posts", s.listPosts)
		r.Delete("/posts/*", s.deletePost)
		r.Post("/config/webhook", s.setWebhook)
		r.Get("/config/webhook", s.getWebhook)
		r.Post("/config/webhook/verify", s.verifyWebhook)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

type requestIDKey struct{}
type userKey struct{}

// requireAuth verifies the bearer token and stores the resolved user on the
// request context. Every failure mode yields the same 401 body.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		user, err := s.auth.VerifyAccessToken(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		ctx := context.WithValue(r.Context(), userKey{}, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// currentUser returns the authenticated user placed by requireAuth.
func currentUser(r *http.Request) monitor.User {
	user, _ := r.Context().Value(userKey{}).(monitor.User)
	return user
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// timeoutMiddleware bounds handler execution. http.TimeoutHandler writes its
// message as sniffed plain text, so the body is pre-marshaled JSON and the
// Content-Type is forced on the 503 to keep the uniform error shape.
func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	body, _ := json.Marshal(map[string]string{"error": "request timed out"})
	return func(next http.Handler) http.Handler {
		handler := http.TimeoutHandler(next, d, string(body))
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handler.ServeHTTP(&timeoutResponseWriter{ResponseWriter: w}, r)
		})
	}
}

type timeoutResponseWriter struct {
	http.ResponseWriter
}

func (w *timeoutResponseWriter) WriteHeader(code int) {
	if code == http.StatusServiceUnavailable && w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.ResponseWriter.WriteHeader(code)
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
