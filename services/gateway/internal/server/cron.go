package server

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/olash/SignalReach-sub000/services/gateway/internal/app"
)

// /api/cron/scrape
func (s *Server) handleCronScrape(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	token, ok := bearerToken(r)
	if !ok || s.cronSecret == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.cronSecret)) != 1 {
		s.audit(r, "gateway.cron.scrape", "fail", "reason", "invalid_cron_secret")
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	s.audit(r, "gateway.cron.scrape", "success")
	res, err := s.app.RunScheduledScrape(r.Context())
	if err != nil {
		if errors.Is(err, app.ErrScrapeDisabled) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeAppError(w, r, err)
		return
	}
	if res.Eligible == 0 {
		writeJSON(w, http.StatusOK, map[string]int{
			"inserted":           0,
			"workspaces_scraped": 0,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":                 true,
		"inserted":           res.Inserted,
		"workspaces_scraped": res.WorkspacesScraped,
	})
}
