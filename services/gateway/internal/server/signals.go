package server

import (
	"net/http"
	"strings"

	"github.com/olash/SignalReach-sub000/pkg/domain"
	"github.com/olash/SignalReach-sub000/pkg/pipeline"
	"github.com/olash/SignalReach-sub000/services/gateway/internal/app"
)

type updateSignalRequest struct {
	Status string `json:"status"`
}

type actionRequest struct {
	Action       string `json:"action"`
	Tone         string `json:"tone"`
	Instructions string `json:"instructions"`
	Draft        string `json:"draft"`
}

type actionResponse struct {
	Signal           *domain.Signal    `json:"signal,omitempty"`
	Draft            string            `json:"draft,omitempty"`
	Drafts           []string          `json:"drafts,omitempty"`
	Effects          []pipeline.Effect `json:"effects"`
	OpenURL          string            `json:"openUrl,omitempty"`
	Deleted          bool              `json:"deleted"`
	CharCount        int               `json:"charCount"`
	CharLimit        int               `json:"charLimit,omitempty"`
	OverLimit        bool              `json:"overLimit"`
	AvailableActions []pipeline.Action `json:"availableActions"`
}

// /api/signals/{id} or /api/signals/{id}/actions
func (s *Server) handleSignalByID(w http.ResponseWriter, r *http.Request, user domain.Identity) {
	path := strings.TrimPrefix(r.URL.Path, "/api/signals/")
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	if id == "" {
		http.NotFound(w, r)
		return
	}
	if len(parts) == 2 {
		if parts[1] != "actions" {
			http.NotFound(w, r)
			return
		}
		s.handleSignalAction(w, r, user, id)
		return
	}
	switch r.Method {
	case http.MethodGet:
		sig, err := s.app.GetSignal(r.Context(), user, id)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, sig)
	case http.MethodPatch:
		var req updateSignalRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if strings.TrimSpace(req.Status) == "" {
			writeError(w, http.StatusBadRequest, "status is required")
			return
		}
		sig, err := s.app.UpdateSignalStatus(r.Context(), user, id, req.Status)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, sig)
	case http.MethodDelete:
		if err := s.app.DeleteSignal(r.Context(), user, id); err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleSignalAction(w http.ResponseWriter, r *http.Request, user domain.Identity, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req actionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Action) == "" {
		writeError(w, http.StatusBadRequest, "action is required")
		return
	}
	out, err := s.app.ApplySignalAction(r.Context(), user, id, app.ActionInput(req))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newActionResponse(out))
}

func newActionResponse(out pipeline.Outcome) actionResponse {
	resp := actionResponse{
		Draft:            out.Draft,
		Drafts:           out.Drafts,
		Effects:          out.Effects,
		Deleted:          out.Deleted,
		CharCount:        out.CharCount,
		OverLimit:        out.OverLimit,
		AvailableActions: []pipeline.Action{},
	}
	if out.Deleted {
		return resp
	}
	sig := out.Signal
	resp.Signal = &sig
	if sig.Platform.IsShortForm() {
		resp.CharLimit = domain.ShortFormCharLimit
	}
	for _, e := range out.Effects {
		if e == pipeline.EffectOpenURL {
			resp.OpenURL = sig.URL
		}
	}
	if actions := pipeline.AvailableActions(sig.Status); actions != nil {
		resp.AvailableActions = actions
	}
	return resp
}
