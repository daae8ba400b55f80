package app

import (
	"context"
	"fmt"

	"github.com/olash/SignalReach-sub000/internal/util"
	"github.com/olash/SignalReach-sub000/pkg/queue"
	"github.com/olash/SignalReach-sub000/pkg/scrape"
)

// RunScheduledScrape runs every keyword workspace. The run is detached from
// the caller's cancellation and bounded by the scrape timeout instead.
func (a *App) RunScheduledScrape(ctx context.Context) (scrape.Result, error) {
	if a.scraper == nil {
		return scrape.Result{}, ErrScrapeDisabled
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.scrapeTimeout)
	defer cancel()
	return a.scraper.Run(ctx)
}

// ScrapeWorkspace runs a single workspace unit immediately.
func (a *App) ScrapeWorkspace(ctx context.Context, workspaceID string) (int, error) {
	if a.scraper == nil {
		return 0, ErrScrapeDisabled
	}
	return a.scraper.RunWorkspace(ctx, workspaceID)
}

// DispatchScrape queues a single-workspace job and returns its id.
func (a *App) DispatchScrape(ctx context.Context, workspaceID string) (queue.JobStatus, error) {
	if a.queue == nil {
		return queue.JobStatus{}, ErrScrapeDisabled
	}
	ws, ok, err := a.store.GetWorkspace(workspaceID)
	if err != nil {
		return queue.JobStatus{}, fmt.Errorf("get workspace: %w", err)
	}
	if !ok {
		return queue.JobStatus{}, ErrWorkspaceNotFound
	}
	return a.queue.Enqueue(ctx, ws.ID)
}

// StartWorkers consumes queued scrape jobs until ctx is done.
func (a *App) StartWorkers(ctx context.Context, concurrency int) {
	if a.queue == nil || a.scraper == nil {
		return
	}
	a.queue.Start(ctx, concurrency, a.handleScrapeJob)
}

func (a *App) handleScrapeJob(ctx context.Context, job queue.JobStatus) error {
	logger := util.LoggerFromContext(ctx).With("job_id", job.ID, "workspace_id", job.WorkspaceID)
	n, err := a.scraper.RunWorkspace(ctx, job.WorkspaceID)
	if err != nil {
		logger.Error("scrape job failed", "err", err)
		return err
	}
	logger.Info("scrape job done", "inserted", n)
	return nil
}
