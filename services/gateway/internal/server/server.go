package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/olash/SignalReach-sub000/internal/ratelimit"
	"github.com/olash/SignalReach-sub000/internal/usertoken"
	"github.com/olash/SignalReach-sub000/internal/util"
	"github.com/olash/SignalReach-sub000/pkg/domain"
	"github.com/olash/SignalReach-sub000/services/gateway/internal/app"
)

// AuthProvider proxies session operations to the hosted auth service.
type AuthProvider interface {
	Login(ctx context.Context, email, password string) (domain.Session, error)
	Refresh(ctx context.Context, refreshToken string) (domain.Session, error)
	Logout(ctx context.Context, accessToken string) error
}

// Config wires required dependencies for the HTTP server.
type Config struct {
	App                       *app.App
	Auth                      AuthProvider
	TokenVerifier             *usertoken.Verifier
	Redis                     redis.UniversalClient
	CronSecret                string
	AllowedOrigins            []string
	TrustedProxies            *util.TrustedProxies
	Metrics                   http.Handler
	LoginRateLimitPerMinute   int
	RefreshRateLimitPerMinute int
	DraftRateLimitPerMinute   int
}

// Server exposes HTTP endpoints for the backend.
type Server struct {
	app            *app.App
	auth           AuthProvider
	tokenVerifier  *usertoken.Verifier
	cronSecret     string
	allowedOrigins []string
	trusted        *util.TrustedProxies
	metrics        http.Handler
	mux            *http.ServeMux
	loginLimiter   *ratelimit.FixedWindowLimiter
	refreshLimiter *ratelimit.FixedWindowLimiter
	draftLimiter   *ratelimit.FixedWindowLimiter
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("app required")
	}
	if cfg.TokenVerifier == nil {
		return nil, errors.New("token verifier required")
	}
	rateWindow := time.Minute
	newLimiter := func(name string, limit, def int) (*ratelimit.FixedWindowLimiter, error) {
		if limit <= 0 {
			limit = def
		}
		limiter, err := ratelimit.NewFixedWindowLimiter(cfg.Redis, "signalreach:gateway:ratelimit:"+name, limit, rateWindow)
		if err != nil {
			return nil, fmt.Errorf("init %s limiter: %w", name, err)
		}
		return limiter, nil
	}
	loginLimiter, err := newLimiter("login", cfg.LoginRateLimitPerMinute, 10)
	if err != nil {
		return nil, err
	}
	refreshLimiter, err := newLimiter("refresh", cfg.RefreshRateLimitPerMinute, 20)
	if err != nil {
		return nil, err
	}
	draftLimiter, err := newLimiter("draft", cfg.DraftRateLimitPerMinute, 30)
	if err != nil {
		return nil, err
	}
	s := &Server{
		app:            cfg.App,
		auth:           cfg.Auth,
		tokenVerifier:  cfg.TokenVerifier,
		cronSecret:     cfg.CronSecret,
		allowedOrigins: cfg.AllowedOrigins,
		trusted:        cfg.TrustedProxies,
		metrics:        cfg.Metrics,
		mux:            http.NewServeMux(),
		loginLimiter:   loginLimiter,
		refreshLimiter: refreshLimiter,
		draftLimiter:   draftLimiter,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("gateway",
		util.WithSecurityHeaders(s.trusted, util.WithCORS(s.allowedOrigins, s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	if s.metrics != nil {
		s.mux.Handle("/metrics", s.metrics)
	}

	// auth
	s.mux.HandleFunc("/api/auth/login", s.handleLogin)
	s.mux.HandleFunc("/api/auth/refresh", s.handleRefresh)
	s.mux.HandleFunc("/api/auth/logout", s.handleLogout)
	s.mux.Handle("/api/users/me", s.authenticated(s.handleMe))

	// workspaces & signals
	s.mux.Handle("/api/workspaces", s.authenticated(s.handleWorkspaces))
	s.mux.Handle("/api/workspaces/active", s.authenticated(s.handleActiveWorkspace))
	s.mux.Handle("/api/workspaces/", s.authenticated(s.handleWorkspaceByID))
	s.mux.Handle("/api/signals/", s.authenticated(s.handleSignalByID))
	s.mux.Handle("/api/generate-draft", s.authenticated(s.handleGenerateDraft))

	// scheduler
	s.mux.HandleFunc("/api/cron/scrape", s.handleCronScrape)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type authHandler func(http.ResponseWriter, *http.Request, domain.Identity)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.authorize(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		ctx := util.ContextWithLogger(r.Context(), util.LoggerFromContext(r.Context()).With("user_id", user.ID))
		next(w, r.WithContext(ctx), user)
	})
}

func (s *Server) authorize(r *http.Request) (domain.Identity, bool) {
	token, ok := bearerToken(r)
	if !ok {
		s.audit(r, "gateway.token.verify", "fail", "reason", "missing_token")
		return domain.Identity{}, false
	}
	user, err := s.tokenVerifier.Verify(token)
	if err != nil {
		s.audit(r, "gateway.token.verify", "fail", "reason", "invalid_signature_or_claims")
		return domain.Identity{}, false
	}
	return user, true
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, user domain.Identity) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v)
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", util.ClientIP(r, s.trusted),
	}
	logAttrs = append(logAttrs, attrs...)
	logger := util.LoggerFromContext(r.Context())
	if outcome == "success" {
		logger.Info("security_event", logAttrs...)
		return
	}
	logger.Warn("security_event", logAttrs...)
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, key, msg string) bool {
	decision := limiter.Allow(r.Context(), key)
	if decision.Allowed {
		return true
	}
	retry := int(decision.RetryAfter.Round(time.Second) / time.Second)
	if retry < 1 {
		retry = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retry))
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}

func (s *Server) ipKey(r *http.Request) string {
	return r.URL.Path + "|" + util.ClientIP(r, s.trusted)
}
