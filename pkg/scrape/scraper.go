package scrape

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/olash/SignalReach-sub000/pkg/apify"
	"github.com/olash/SignalReach-sub000/pkg/storage"
)

// Batch is the raw output of one scraping job.
type Batch struct {
	RunID string
	Items []apify.Item
}

// Scraper runs one scraping job for a keyword string.
type Scraper interface {
	Scrape(ctx context.Context, keywords string) (Batch, error)
}

// ActorRunner is the part of the Apify client used by ActorScraper.
type ActorRunner interface {
	StartRun(ctx context.Context, actorID string, input any) (apify.Run, error)
	WaitForRun(ctx context.Context, runID string, timeout time.Duration) (apify.Run, error)
	ListItems(ctx context.Context, datasetID string, limit int) ([]apify.Item, error)
}

const (
	DefaultActorID     = "trudax~reddit-scraper-lite"
	DefaultMaxItems    = 50
	DefaultWaitTimeout = 5 * time.Minute
)

// ActorScraper runs an Apify actor and reads its default dataset.
type ActorScraper struct {
	runner      ActorRunner
	actorID     string
	maxItems    int
	waitTimeout time.Duration
}

func NewActorScraper(runner ActorRunner, actorID string, maxItems int, waitTimeout time.Duration) *ActorScraper {
	if strings.TrimSpace(actorID) == "" {
		actorID = DefaultActorID
	}
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	if waitTimeout <= 0 {
		waitTimeout = DefaultWaitTimeout
	}
	return &ActorScraper{runner: runner, actorID: actorID, maxItems: maxItems, waitTimeout: waitTimeout}
}

func (s *ActorScraper) Scrape(ctx context.Context, keywords string) (Batch, error) {
	input := map[string]any{
		"searches":     []string{keywords},
		"maxItems":     s.maxItems,
		"sort":         "new",
		"skipComments": true,
		"proxy":        map[string]any{"useApifyProxy": true},
	}
	run, err := s.runner.StartRun(ctx, s.actorID, input)
	if err != nil {
		return Batch{}, fmt.Errorf("start actor: %w", err)
	}
	runID := run.ID
	if !run.Terminal() {
		if run, err = s.runner.WaitForRun(ctx, runID, s.waitTimeout); err != nil {
			return Batch{RunID: runID}, fmt.Errorf("wait for run %s: %w", runID, err)
		}
	}
	if run.Status != apify.RunSucceeded {
		return Batch{RunID: run.ID}, fmt.Errorf("actor run %s finished with status %s", run.ID, run.Status)
	}
	if run.DefaultDatasetID == "" {
		return Batch{RunID: run.ID}, errors.New("actor run has no dataset")
	}
	items, err := s.runner.ListItems(ctx, run.DefaultDatasetID, s.maxItems)
	if err != nil {
		return Batch{RunID: run.ID}, fmt.Errorf("list dataset items: %w", err)
	}
	return Batch{RunID: run.ID, Items: items}, nil
}

// Archiver keeps a copy of raw scraper output.
type Archiver interface {
	Archive(ctx context.Context, workspaceID string, batch Batch) error
}

// ObjectArchive writes each batch as JSON to
// <prefix>/<workspaceID>/<UTC timestamp>-<runID>.json.
type ObjectArchive struct {
	store  storage.ObjectStore
	prefix string
	now    func() time.Time
}

func NewObjectArchive(store storage.ObjectStore, prefix string) *ObjectArchive {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		prefix = "scrapes"
	}
	return &ObjectArchive{store: store, prefix: prefix, now: time.Now}
}

func (a *ObjectArchive) key(workspaceID, runID string) string {
	name := a.now().UTC().Format("20060102T150405Z")
	if runID != "" {
		name += "-" + runID
	}
	return path.Join(a.prefix, workspaceID, name+".json")
}

func (a *ObjectArchive) Archive(ctx context.Context, workspaceID string, batch Batch) error {
	return storage.PutJSON(ctx, a.store, a.key(workspaceID, batch.RunID), batch.Items)
}
