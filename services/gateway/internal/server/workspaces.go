package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/olash/SignalReach-sub000/pkg/domain"
	"github.com/olash/SignalReach-sub000/services/gateway/internal/app"
)

type createWorkspaceRequest struct {
	Name      string `json:"name"`
	Keywords  string `json:"keywords"`
	Frequency string `json:"frequency"`
}

type updateWorkspaceRequest struct {
	Name      *string `json:"name"`
	Keywords  *string `json:"keywords"`
	Frequency *string `json:"frequency"`
}

type setActiveRequest struct {
	WorkspaceID string `json:"workspaceId"`
}

// /api/workspaces
func (s *Server) handleWorkspaces(w http.ResponseWriter, r *http.Request, user domain.Identity) {
	switch r.Method {
	case http.MethodGet:
		items, err := s.app.ListWorkspaces(r.Context(), user)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": items,
			"count": len(items),
		})
	case http.MethodPost:
		var req createWorkspaceRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		ws, err := s.app.CreateWorkspace(r.Context(), user, app.WorkspaceInput(req))
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, ws)
	default:
		methodNotAllowed(w)
	}
}

// /api/workspaces/active
func (s *Server) handleActiveWorkspace(w http.ResponseWriter, r *http.Request, user domain.Identity) {
	switch r.Method {
	case http.MethodGet:
		res := s.app.ResolveWorkspace(r.Context(), user, r.URL.Query().Get("preferred"))
		status := http.StatusOK
		if res.State == app.ResolutionError {
			status = http.StatusBadGateway
		}
		writeJSON(w, status, res)
	case http.MethodPut:
		var req setActiveRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		ws, err := s.app.SetActiveWorkspace(r.Context(), user, req.WorkspaceID)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, ws)
	default:
		methodNotAllowed(w)
	}
}

// /api/workspaces/{id} or /api/workspaces/{id}/signals
func (s *Server) handleWorkspaceByID(w http.ResponseWriter, r *http.Request, user domain.Identity) {
	path := strings.TrimPrefix(r.URL.Path, "/api/workspaces/")
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	if id == "" {
		http.NotFound(w, r)
		return
	}
	if len(parts) == 2 {
		if parts[1] != "signals" {
			http.NotFound(w, r)
			return
		}
		s.handleListSignals(w, r, user, id)
		return
	}
	if r.Method != http.MethodPatch {
		methodNotAllowed(w)
		return
	}
	var req updateWorkspaceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	ws, err := s.app.UpdateWorkspace(r.Context(), user, id, app.WorkspacePatch(req))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

func (s *Server) handleListSignals(w http.ResponseWriter, r *http.Request, user domain.Identity, workspaceID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	q := r.URL.Query()
	limit := 0
	if v := strings.TrimSpace(q.Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	items, err := s.app.ListSignals(r.Context(), user, workspaceID, app.SignalQuery{
		Status: q.Get("status"),
		Search: q.Get("q"),
		Limit:  limit,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"count": len(items),
	})
}
