package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/olash/SignalReach-sub000/pkg/domain"
	"github.com/olash/SignalReach-sub000/pkg/draft"
)

// /api/generate-draft
func (s *Server) handleGenerateDraft(w http.ResponseWriter, r *http.Request, user domain.Identity) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.draftLimiter, "draft|"+user.ID, "too many draft requests") {
		s.audit(r, "gateway.draft", "rate_limited", "user_id", user.ID)
		return
	}
	var body map[string]any
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req, msg := parseDraftRequest(body)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	text, err := s.app.GenerateDraft(r.Context(), req)
	if err != nil {
		if errors.Is(err, draft.ErrEmptyPostContext) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, draft.ErrUnavailable.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"draft": text})
}

// parseDraftRequest requires postContext, platform and tone as strings.
// It returns a validation message when the body is unusable.
func parseDraftRequest(body map[string]any) (draft.Request, string) {
	fields := map[string]string{}
	for _, key := range []string{"postContext", "platform", "tone"} {
		v, ok := body[key]
		if !ok || v == nil {
			return draft.Request{}, key + " is required"
		}
		s, ok := v.(string)
		if !ok {
			return draft.Request{}, key + " must be a string"
		}
		fields[key] = s
	}
	if strings.TrimSpace(fields["postContext"]) == "" {
		return draft.Request{}, draft.ErrEmptyPostContext.Error()
	}
	req := draft.Request{
		PostContext: fields["postContext"],
		Platform:    fields["platform"],
		Tone:        fields["tone"],
	}
	if v, ok := body["instructions"]; ok && v != nil {
		s, ok := v.(string)
		if !ok {
			return draft.Request{}, "instructions must be a string"
		}
		req.Instructions = s
	}
	return req, ""
}
