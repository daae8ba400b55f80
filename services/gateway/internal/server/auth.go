package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/olash/SignalReach-sub000/services/gateway/internal/authclient"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.loginLimiter, s.ipKey(r), "too many login attempts") {
		s.audit(r, "gateway.login", "rate_limited")
		return
	}
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.audit(r, "gateway.login", "fail", "reason", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}
	session, err := s.auth.Login(r.Context(), email, req.Password)
	if err != nil {
		s.audit(r, "gateway.login", "fail", "reason", err.Error())
		writeAuthError(w, err)
		return
	}
	s.audit(r, "gateway.login", "success", "user_id", session.User.ID)
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.refreshLimiter, s.ipKey(r), "too many refresh attempts") {
		s.audit(r, "gateway.refresh", "rate_limited")
		return
	}
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		s.audit(r, "gateway.refresh", "fail", "reason", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		s.audit(r, "gateway.refresh", "fail", "reason", "missing_refresh_token")
		writeError(w, http.StatusBadRequest, "refreshToken is required")
		return
	}
	session, err := s.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		s.audit(r, "gateway.refresh", "fail", "reason", err.Error())
		writeAuthError(w, err)
		return
	}
	s.audit(r, "gateway.refresh", "success", "user_id", session.User.ID)
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.refreshLimiter, s.ipKey(r), "too many logout attempts") {
		s.audit(r, "gateway.logout", "rate_limited")
		return
	}
	var discard map[string]any
	if err := decodeJSON(r, &discard); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	token, ok := bearerToken(r)
	if !ok {
		s.audit(r, "gateway.logout", "fail", "reason", "missing_token")
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := s.auth.Logout(r.Context(), token); err != nil {
		s.audit(r, "gateway.logout", "fail", "reason", err.Error())
		writeAuthError(w, err)
		return
	}
	s.audit(r, "gateway.logout", "success")
	w.WriteHeader(http.StatusNoContent)
}

func writeAuthError(w http.ResponseWriter, err error) {
	var apiErr *authclient.APIError
	if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
		writeError(w, apiErr.Status, apiErr.Message)
		return
	}
	writeError(w, http.StatusBadGateway, "auth service unavailable")
}
