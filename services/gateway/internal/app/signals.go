package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/olash/SignalReach-sub000/internal/util"
	"github.com/olash/SignalReach-sub000/pkg/domain"
	"github.com/olash/SignalReach-sub000/pkg/draft"
	"github.com/olash/SignalReach-sub000/pkg/pipeline"
	"github.com/olash/SignalReach-sub000/pkg/store"
)

type SignalQuery struct {
	Status string
	Search string
	Limit  int
}

// ListSignals returns a workspace's signals, newest first.
func (a *App) ListSignals(ctx context.Context, user domain.Identity, workspaceID string, q SignalQuery) ([]domain.Signal, error) {
	ws, err := a.ownedWorkspace(user, workspaceID)
	if err != nil {
		return nil, err
	}
	filter := domain.SignalFilter{Search: strings.TrimSpace(q.Search), Limit: q.Limit}
	if s := strings.TrimSpace(q.Status); s != "" {
		status, err := domain.ParseSignalStatus(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		filter.Status = status
	}
	items, err := a.store.ListSignals(ws.ID, filter)
	if err != nil {
		return nil, fmt.Errorf("list signals: %w", err)
	}
	return items, nil
}

// GetSignal loads a signal the user owns through its workspace.
func (a *App) GetSignal(ctx context.Context, user domain.Identity, signalID string) (domain.Signal, error) {
	sig, ok, err := a.store.GetSignal(strings.TrimSpace(signalID))
	if err != nil {
		return domain.Signal{}, fmt.Errorf("get signal: %w", err)
	}
	if !ok {
		return domain.Signal{}, ErrSignalNotFound
	}
	if _, err := a.ownedWorkspace(user, sig.WorkspaceID); err != nil {
		if errors.Is(err, ErrWorkspaceNotFound) {
			return domain.Signal{}, ErrSignalNotFound
		}
		return domain.Signal{}, err
	}
	return sig, nil
}

// UpdateSignalStatus writes a status directly. Legacy labels are normalized.
func (a *App) UpdateSignalStatus(ctx context.Context, user domain.Identity, signalID, rawStatus string) (domain.Signal, error) {
	sig, err := a.GetSignal(ctx, user, signalID)
	if err != nil {
		return domain.Signal{}, err
	}
	status, err := domain.ParseSignalStatus(rawStatus)
	if err != nil {
		return domain.Signal{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := a.store.UpdateSignal(sig.ID, domain.SignalUpdate{Status: &status}); err != nil {
		return domain.Signal{}, signalWriteErr(err)
	}
	sig.Status = status
	sig.UpdatedAt = a.now()
	return sig, nil
}

// DeleteSignal removes a closed signal.
func (a *App) DeleteSignal(ctx context.Context, user domain.Identity, signalID string) error {
	sig, err := a.GetSignal(ctx, user, signalID)
	if err != nil {
		return err
	}
	if !sig.Status.IsTerminal() {
		return ErrSignalNotClosed
	}
	if err := a.store.DeleteSignal(sig.ID); err != nil {
		return signalWriteErr(err)
	}
	util.LoggerFromContext(ctx).Info("signal deleted", "signal_id", sig.ID, "workspace_id", sig.WorkspaceID)
	return nil
}

type ActionInput struct {
	Action       string
	Tone         string
	Instructions string
	// Draft is the client's current (possibly edited) draft text.
	Draft string
}

// ApplySignalAction runs one lifecycle action for a stored signal.
func (a *App) ApplySignalAction(ctx context.Context, user domain.Identity, signalID string, in ActionInput) (pipeline.Outcome, error) {
	action, err := pipeline.ParseAction(in.Action)
	if err != nil {
		return pipeline.Outcome{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	sig, err := a.GetSignal(ctx, user, signalID)
	if err != nil {
		return pipeline.Outcome{}, err
	}
	logger := util.LoggerFromContext(ctx)
	opts := []pipeline.PanelOption{
		pipeline.WithMetrics(a.metrics),
		pipeline.WithOnChange(func(s domain.Signal, deleted bool) {
			logger.Info("signal changed", "signal_id", s.ID, "status", s.Status, "deleted", deleted)
		}),
	}
	// the draft is counted and saved exactly as the operator copied it
	if strings.TrimSpace(in.Draft) != "" {
		opts = append(opts, pipeline.WithDrafts(in.Draft))
	}
	var drafter pipeline.Drafter = unavailableDrafter{}
	if a.drafter != nil {
		drafter = a.drafter
	}
	panel := pipeline.NewPanel(sig, drafter, a.store, opts...)
	defer panel.Close()
	panel.SetDraftOptions(in.Tone, in.Instructions)

	out, err := panel.Do(ctx, action)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return pipeline.Outcome{}, ErrSignalNotFound
		}
		return pipeline.Outcome{}, err
	}
	return out, nil
}

// GenerateDraft is the stateless draft proxy.
func (a *App) GenerateDraft(ctx context.Context, req draft.Request) (string, error) {
	if a.drafter == nil {
		return "", draft.ErrUnavailable
	}
	return a.drafter.Generate(ctx, req)
}

type unavailableDrafter struct{}

func (unavailableDrafter) Generate(context.Context, draft.Request) (string, error) {
	return "", draft.ErrUnavailable
}

func signalWriteErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrSignalNotFound
	}
	return fmt.Errorf("write signal: %w", err)
}
