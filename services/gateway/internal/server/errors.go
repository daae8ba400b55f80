package server

import (
	"errors"
	"net/http"

	"github.com/olash/SignalReach-sub000/internal/util"
	"github.com/olash/SignalReach-sub000/pkg/draft"
	"github.com/olash/SignalReach-sub000/pkg/pipeline"
	"github.com/olash/SignalReach-sub000/services/gateway/internal/app"
)

func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, app.ErrInvalidInput), errors.Is(err, draft.ErrEmptyPostContext), errors.Is(err, pipeline.ErrNoDraft):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, app.ErrWorkspaceNotFound), errors.Is(err, app.ErrSignalNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrSignalNotClosed), errors.Is(err, pipeline.ErrInvalidTransition), errors.Is(err, pipeline.ErrPanelBusy):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, pipeline.ErrOverCharacterLimit):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, pipeline.ErrDraftUnavailable), errors.Is(err, draft.ErrUnavailable):
		writeError(w, http.StatusInternalServerError, draft.ErrUnavailable.Error())
	default:
		util.LoggerFromContext(r.Context()).Error("request failed", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
