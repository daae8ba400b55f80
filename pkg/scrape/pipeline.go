// Package scrape turns keyword workspaces into stored signals.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/olash/SignalReach-sub000/internal/metrics"
	"github.com/olash/SignalReach-sub000/internal/util"
	"github.com/olash/SignalReach-sub000/pkg/domain"
)

var ErrWorkspaceNotFound = errors.New("workspace not found")

// Store is the persistence the pipeline needs.
type Store interface {
	ListKeywordWorkspaces() ([]domain.Workspace, error)
	GetWorkspace(id string) (domain.Workspace, bool, error)
	InsertSignals(signals []domain.Signal) (int, error)
	MarkWorkspaceScraped(id string, at time.Time) error
}

type Config struct {
	Platform domain.Platform
	// Concurrency bounds parallel workspace units; zero means unbounded.
	Concurrency int
	// AllowDuplicates skips dedup keys so reruns insert the same posts again.
	AllowDuplicates bool
	// RespectFrequency skips workspaces whose frequency interval has not
	// elapsed since their last scrape.
	RespectFrequency bool
}

// Result summarizes one trigger.
type Result struct {
	Eligible          int `json:"-"`
	Inserted          int `json:"inserted"`
	WorkspacesScraped int `json:"workspaces_scraped"`
}

type Pipeline struct {
	store    Store
	scraper  Scraper
	archiver Archiver
	metrics  *metrics.Metrics
	cfg      Config
	now      func() time.Time
}

type Option func(*Pipeline)

func WithArchiver(a Archiver) Option {
	return func(p *Pipeline) { p.archiver = a }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

func New(store Store, scraper Scraper, cfg Config, opts ...Option) *Pipeline {
	if cfg.Platform == "" {
		cfg.Platform = domain.PlatformReddit
	}
	p := &Pipeline{store: store, scraper: scraper, cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run scrapes every workspace with keywords concurrently. A failing
// workspace is logged and leaves the others untouched; only listing the
// workspaces can fail the whole run.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	logger := util.LoggerFromContext(ctx)
	start := time.Now()
	workspaces, err := p.store.ListKeywordWorkspaces()
	if err != nil {
		return Result{}, fmt.Errorf("list keyword workspaces: %w", err)
	}
	res := Result{Eligible: len(workspaces)}
	if len(workspaces) == 0 {
		logger.Info("scrape run skipped", "reason", "no workspaces with keywords")
		return res, nil
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	if p.cfg.Concurrency > 0 {
		g.SetLimit(p.cfg.Concurrency)
	}
	for _, ws := range workspaces {
		g.Go(func() error {
			n, scraped := p.runIsolated(ctx, ws)
			mu.Lock()
			res.Inserted += n
			if scraped {
				res.WorkspacesScraped++
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	p.metrics.ObserveScrapeRun(time.Since(start))
	logger.Info("scrape run complete",
		"eligible", res.Eligible,
		"inserted", res.Inserted,
		"workspaces_scraped", res.WorkspacesScraped,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// RunWorkspace scrapes a single workspace immediately, ignoring its frequency.
func (p *Pipeline) RunWorkspace(ctx context.Context, workspaceID string) (int, error) {
	ws, ok, err := p.store.GetWorkspace(workspaceID)
	if err != nil {
		return 0, fmt.Errorf("load workspace: %w", err)
	}
	if !ok {
		return 0, ErrWorkspaceNotFound
	}
	n, err := p.runUnit(ctx, ws, false)
	if err != nil {
		p.metrics.IncScrapeWorkspace(metrics.ScrapeFailed)
	}
	return n, err
}

// runIsolated is one unit of a Run. It reports inserted rows and whether the
// unit inserted anything; errors and panics stay inside the unit.
func (p *Pipeline) runIsolated(ctx context.Context, ws domain.Workspace) (n int, scraped bool) {
	logger := util.LoggerFromContext(ctx).With("workspace_id", ws.ID)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("scrape unit panicked", "panic", r)
			p.metrics.IncScrapeWorkspace(metrics.ScrapeFailed)
			n, scraped = 0, false
		}
	}()
	n, err := p.runUnit(ctx, ws, p.cfg.RespectFrequency)
	if err != nil {
		logger.Error("scrape unit failed", "err", err)
		p.metrics.IncScrapeWorkspace(metrics.ScrapeFailed)
		return 0, false
	}
	return n, n > 0
}

func (p *Pipeline) runUnit(ctx context.Context, ws domain.Workspace, checkDue bool) (int, error) {
	logger := util.LoggerFromContext(ctx).With("workspace_id", ws.ID)
	keywords := ws.KeywordString()
	if keywords == "" {
		p.metrics.IncScrapeWorkspace(metrics.ScrapeSkipped)
		return 0, nil
	}
	now := p.now()
	if checkDue && !ws.ScrapeDue(now) {
		logger.Debug("scrape not due", "frequency", ws.Frequency)
		p.metrics.IncScrapeWorkspace(metrics.ScrapeSkipped)
		return 0, nil
	}

	batch, err := p.scraper.Scrape(ctx, keywords)
	if err != nil {
		return 0, err
	}
	if p.archiver != nil && len(batch.Items) > 0 {
		if err := p.archiver.Archive(ctx, ws.ID, batch); err != nil {
			logger.Warn("archive scrape output failed", "run_id", batch.RunID, "err", err)
		}
	}

	signals := MapItems(ws.ID, p.cfg.Platform, batch.Items, !p.cfg.AllowDuplicates)
	inserted := 0
	if len(signals) > 0 {
		if inserted, err = p.store.InsertSignals(signals); err != nil {
			return 0, fmt.Errorf("insert signals: %w", err)
		}
	}
	if err := p.store.MarkWorkspaceScraped(ws.ID, now); err != nil {
		logger.Warn("mark workspace scraped failed", "err", err)
	}

	if inserted == 0 {
		p.metrics.IncScrapeWorkspace(metrics.ScrapeEmpty)
	} else {
		p.metrics.IncScrapeWorkspace(metrics.ScrapeInserted)
		p.metrics.AddInserted(inserted)
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "workspace scraped",
		slog.String("run_id", batch.RunID),
		slog.Int("items", len(batch.Items)),
		slog.Int("mapped", len(signals)),
		slog.Int("inserted", inserted),
	)
	return inserted, nil
}
