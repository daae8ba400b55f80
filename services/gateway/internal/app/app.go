package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/olash/SignalReach-sub000/internal/metrics"
	"github.com/olash/SignalReach-sub000/internal/util"
	"github.com/olash/SignalReach-sub000/pkg/domain"
	"github.com/olash/SignalReach-sub000/pkg/pipeline"
	"github.com/olash/SignalReach-sub000/pkg/queue"
	"github.com/olash/SignalReach-sub000/pkg/scrape"
	"github.com/olash/SignalReach-sub000/pkg/store"
)

// ScrapeRunner runs scrape units.
type ScrapeRunner interface {
	Run(ctx context.Context) (scrape.Result, error)
	RunWorkspace(ctx context.Context, workspaceID string) (int, error)
}

// JobQueue carries single-workspace scrape jobs.
type JobQueue interface {
	Enqueue(ctx context.Context, workspaceID string) (queue.JobStatus, error)
	Start(ctx context.Context, concurrency int, handler queue.Handler)
}

// Config holds the injected dependencies of the core application.
type Config struct {
	Store       store.Store
	Preferences store.PreferenceStore
	Drafter     pipeline.Drafter
	Scraper     ScrapeRunner
	Queue       JobQueue
	Metrics     *metrics.Metrics
	// ScrapeTimeout bounds a cron-triggered run; zero means 10 minutes.
	ScrapeTimeout time.Duration
}

// App is the core application service wiring together storage and domain logic.
type App struct {
	store         store.Store
	prefs         store.PreferenceStore
	drafter       pipeline.Drafter
	scraper       ScrapeRunner
	queue         JobQueue
	metrics       *metrics.Metrics
	scrapeTimeout time.Duration
	now           func() time.Time
}

func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, errors.New("store required")
	}
	if cfg.ScrapeTimeout <= 0 {
		cfg.ScrapeTimeout = 10 * time.Minute
	}
	return &App{
		store:         cfg.Store,
		prefs:         cfg.Preferences,
		drafter:       cfg.Drafter,
		scraper:       cfg.Scraper,
		queue:         cfg.Queue,
		metrics:       cfg.Metrics,
		scrapeTimeout: cfg.ScrapeTimeout,
		now:           func() time.Time { return time.Now().UTC() },
	}, nil
}

type ResolutionState string

const (
	ResolutionReady           ResolutionState = "ready"
	ResolutionNeedsOnboarding ResolutionState = "needs_onboarding"
	ResolutionError           ResolutionState = "error"
)

// Resolution is the outcome of picking the active workspace for a user.
type Resolution struct {
	State      ResolutionState    `json:"state"`
	Workspace  *domain.Workspace  `json:"workspace,omitempty"`
	Workspaces []domain.Workspace `json:"workspaces"`
	Detail     string             `json:"error,omitempty"`
	Err        error              `json:"-"`
}

// ListWorkspaces returns the user's workspaces in creation order.
func (a *App) ListWorkspaces(ctx context.Context, user domain.Identity) ([]domain.Workspace, error) {
	items, err := a.store.ListWorkspacesByOwner(user.ID)
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	return items, nil
}

// ResolveWorkspace picks the active workspace: preferred if owned, else the
// remembered one, else the oldest.
func (a *App) ResolveWorkspace(ctx context.Context, user domain.Identity, preferred string) Resolution {
	items, err := a.ListWorkspaces(ctx, user)
	if err != nil {
		util.LoggerFromContext(ctx).Error("resolve workspace failed", "user_id", user.ID, "err", err)
		return Resolution{State: ResolutionError, Workspaces: []domain.Workspace{}, Detail: "failed to load workspaces", Err: err}
	}
	if len(items) == 0 {
		return Resolution{State: ResolutionNeedsOnboarding, Workspaces: items}
	}
	want := strings.TrimSpace(preferred)
	if want == "" && a.prefs != nil {
		id, ok, err := a.prefs.ActiveWorkspace(ctx, user.ID)
		if err != nil {
			util.LoggerFromContext(ctx).Warn("read active workspace failed", "user_id", user.ID, "err", err)
		} else if ok {
			want = id
		}
	}
	active := items[0]
	for _, ws := range items {
		if ws.ID == want {
			active = ws
			break
		}
	}
	return Resolution{State: ResolutionReady, Workspace: &active, Workspaces: items}
}

// SetActiveWorkspace remembers workspaceID as the user's active workspace.
func (a *App) SetActiveWorkspace(ctx context.Context, user domain.Identity, workspaceID string) (domain.Workspace, error) {
	ws, err := a.ownedWorkspace(user, workspaceID)
	if err != nil {
		return domain.Workspace{}, err
	}
	if a.prefs != nil {
		if err := a.prefs.SetActiveWorkspace(ctx, user.ID, ws.ID); err != nil {
			return domain.Workspace{}, fmt.Errorf("persist active workspace: %w", err)
		}
	}
	return ws, nil
}

type WorkspaceInput struct {
	Name      string
	Keywords  string
	Frequency string
}

// CreateWorkspace persists a new workspace, makes it active and queues its
// first scrape. Queue failures are logged only.
func (a *App) CreateWorkspace(ctx context.Context, user domain.Identity, in WorkspaceInput) (domain.Workspace, error) {
	logger := util.LoggerFromContext(ctx)
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Workspace{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	keywords, err := parseKeywords(in.Keywords)
	if err != nil {
		return domain.Workspace{}, err
	}
	freq, err := domain.ParseScrapeFrequency(in.Frequency)
	if err != nil {
		return domain.Workspace{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	now := a.now()
	ws := domain.Workspace{
		ID:        uuid.NewString(),
		OwnerID:   user.ID,
		Name:      name,
		Keywords:  keywords,
		Frequency: freq,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.store.CreateWorkspace(ws); err != nil {
		return domain.Workspace{}, fmt.Errorf("save workspace: %w", err)
	}
	if a.prefs != nil {
		if err := a.prefs.SetActiveWorkspace(ctx, user.ID, ws.ID); err != nil {
			logger.Warn("persist active workspace failed", "workspace_id", ws.ID, "err", err)
		}
	}
	a.dispatchScrape(ctx, ws)
	return ws, nil
}

func (a *App) dispatchScrape(ctx context.Context, ws domain.Workspace) {
	logger := util.LoggerFromContext(ctx).With("workspace_id", ws.ID)
	if ws.KeywordString() == "" {
		return
	}
	if a.queue == nil {
		logger.Warn("scrape dispatch skipped", "reason", "queue not configured")
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	job, err := a.queue.Enqueue(ctx, ws.ID)
	if err != nil {
		logger.Error("scrape dispatch failed", "err", err)
		return
	}
	logger.Info("scrape dispatched", "job_id", job.ID)
}

type WorkspacePatch struct {
	Name      *string
	Keywords  *string
	Frequency *string
}

func (a *App) UpdateWorkspace(ctx context.Context, user domain.Identity, workspaceID string, patch WorkspacePatch) (domain.Workspace, error) {
	ws, err := a.ownedWorkspace(user, workspaceID)
	if err != nil {
		return domain.Workspace{}, err
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return domain.Workspace{}, fmt.Errorf("%w: name must not be empty", ErrInvalidInput)
		}
		ws.Name = name
	}
	if patch.Keywords != nil {
		if ws.Keywords, err = parseKeywords(*patch.Keywords); err != nil {
			return domain.Workspace{}, err
		}
	}
	if patch.Frequency != nil {
		freq, err := domain.ParseScrapeFrequency(*patch.Frequency)
		if err != nil {
			return domain.Workspace{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		ws.Frequency = freq
	}
	if err := a.store.UpdateWorkspace(ws); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Workspace{}, ErrWorkspaceNotFound
		}
		return domain.Workspace{}, fmt.Errorf("update workspace: %w", err)
	}
	ws.UpdatedAt = a.now()
	return ws, nil
}

func (a *App) ownedWorkspace(user domain.Identity, workspaceID string) (domain.Workspace, error) {
	workspaceID = strings.TrimSpace(workspaceID)
	if workspaceID == "" {
		return domain.Workspace{}, fmt.Errorf("%w: workspaceId is required", ErrInvalidInput)
	}
	ws, ok, err := a.store.GetWorkspace(workspaceID)
	if err != nil {
		return domain.Workspace{}, fmt.Errorf("get workspace: %w", err)
	}
	if !ok {
		return domain.Workspace{}, ErrWorkspaceNotFound
	}
	if ws.OwnerID != user.ID {
		return domain.Workspace{}, ErrForbidden
	}
	return ws, nil
}

// parseKeywords normalizes the comma-delimited list; an empty list clears it.
func parseKeywords(raw string) (*string, error) {
	list, err := domain.ParseKeywords(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if len(list) == 0 {
		return nil, nil
	}
	joined := domain.JoinKeywords(list)
	return &joined, nil
}
