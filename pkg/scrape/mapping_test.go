package scrape

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/olash/SignalReach-sub000/pkg/apify"
	"github.com/olash/SignalReach-sub000/pkg/domain"
)

func TestMapItems(t *testing.T) {
	items := []apify.Item{
		{"title": "Need a CRM", "body": "<p>Any <b>tips</b>?</p><p>Thanks &amp; cheers</p>", "username": "alice", "url": "https://r/1", "communityName": "r/smallbusiness", "upVotes": float64(12)},
		{"title": "   ", "body": ""},
		{"text": "body only", "author": "bob", "link": "https://r/2"},
		{"title": "no author"},
		{"title": "Need a CRM", "body": "<p>Any <b>tips</b>?</p><p>Thanks &amp; cheers</p>", "username": "ALICE", "url": "https://r/1"},
	}
	got := MapItems("ws-1", domain.PlatformReddit, items, true)
	if len(got) != 3 {
		t.Fatalf("expected 3 signals, got %d: %+v", len(got), got)
	}
	first := got[0]
	if first.Content != "Need a CRM\n\nAny tips?\n\nThanks & cheers" {
		t.Fatalf("unexpected content: %q", first.Content)
	}
	if first.Author != "alice" || first.URL != "https://r/1" || first.Status != domain.StatusNew {
		t.Fatalf("unexpected signal: %+v", first)
	}
	if first.Metadata["community"] != "r/smallbusiness" || first.Metadata["upVotes"] != "12" {
		t.Fatalf("unexpected metadata: %v", first.Metadata)
	}
	if first.DedupKey == "" {
		t.Fatalf("expected dedup key")
	}
	if got[1].Content != "body only" || got[1].Author != "bob" || got[1].URL != "https://r/2" {
		t.Fatalf("unexpected fallback mapping: %+v", got[1])
	}
	if got[2].Author != domain.UnknownAuthor {
		t.Fatalf("expected unknown author, got %q", got[2].Author)
	}
}

func TestMapItemsWithoutDedupKeepsRepeats(t *testing.T) {
	items := []apify.Item{{"title": "same"}, {"title": "same"}}
	got := MapItems("ws-1", domain.PlatformReddit, items, false)
	if len(got) != 2 || got[0].DedupKey != "" {
		t.Fatalf("unexpected mapping: %+v", got)
	}
}

func TestMapItemsTruncatesContent(t *testing.T) {
	long := strings.Repeat("é", domain.MaxSignalContentRunes+50)
	got := MapItems("ws-1", domain.PlatformReddit, []apify.Item{{"body": long}}, true)
	if n := len([]rune(got[0].Content)); n != domain.MaxSignalContentRunes {
		t.Fatalf("expected %d runes, got %d", domain.MaxSignalContentRunes, n)
	}
}

func TestHTMLToText(t *testing.T) {
	cases := map[string]string{
		"plain   text\n\n\n\nnext":                     "plain text\n\nnext",
		"<div>a<br>b</div><script>x()</script>":         "a\nb",
		"&lt;tag&gt; and <a href=\"#\">link</a>":        "<tag> and link",
		"<ul><li>one</li><li>two</li></ul>":             "one\n\ntwo",
	}
	for in, want := range cases {
		if got := htmlToText(in); got != want {
			t.Fatalf("htmlToText(%q) = %q, want %q", in, got, want)
		}
	}
}

type fakeRunner struct {
	started   apify.Run
	waited    apify.Run
	waitErr   error
	items     []apify.Item
	input     any
	waitCalls int
	limit     int
}

func (f *fakeRunner) StartRun(_ context.Context, _ string, input any) (apify.Run, error) {
	f.input = input
	return f.started, nil
}

func (f *fakeRunner) WaitForRun(context.Context, string, time.Duration) (apify.Run, error) {
	f.waitCalls++
	return f.waited, f.waitErr
}

func (f *fakeRunner) ListItems(_ context.Context, _ string, limit int) ([]apify.Item, error) {
	f.limit = limit
	return f.items, nil
}

func TestActorScraperWaitsAndReadsDataset(t *testing.T) {
	runner := &fakeRunner{
		started: apify.Run{ID: "r1", Status: apify.RunRunning},
		waited:  apify.Run{ID: "r1", Status: apify.RunSucceeded, DefaultDatasetID: "d1"},
		items:   []apify.Item{{"title": "x"}},
	}
	batch, err := NewActorScraper(runner, "", 0, 0).Scrape(context.Background(), "crm, leads")
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	if batch.RunID != "r1" || len(batch.Items) != 1 || runner.waitCalls != 1 || runner.limit != DefaultMaxItems {
		t.Fatalf("unexpected batch=%+v waits=%d limit=%d", batch, runner.waitCalls, runner.limit)
	}
	input := runner.input.(map[string]any)
	if s := input["searches"].([]string); len(s) != 1 || s[0] != "crm, leads" {
		t.Fatalf("unexpected searches: %v", input["searches"])
	}
}

func TestActorScraperFailedRun(t *testing.T) {
	runner := &fakeRunner{started: apify.Run{ID: "r1", Status: apify.RunFailed}}
	if _, err := NewActorScraper(runner, "", 10, time.Second).Scrape(context.Background(), "k"); err == nil {
		t.Fatalf("expected error for failed run")
	}
	if runner.waitCalls != 0 {
		t.Fatalf("terminal runs should not be polled")
	}

	runner = &fakeRunner{
		started: apify.Run{ID: "r2", Status: apify.RunReady},
		waitErr: apify.ErrRunNotFinished,
	}
	_, err := NewActorScraper(runner, "", 10, time.Second).Scrape(context.Background(), "k")
	if !errors.Is(err, apify.ErrRunNotFinished) {
		t.Fatalf("expected ErrRunNotFinished, got %v", err)
	}
}

type memObjects struct {
	keys []string
	body []string
}

func (m *memObjects) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, _ := io.ReadAll(r)
	m.keys = append(m.keys, key)
	m.body = append(m.body, string(data))
	return nil
}

func TestObjectArchiveKey(t *testing.T) {
	objects := &memObjects{}
	arch := NewObjectArchive(objects, "")
	arch.now = func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC) }
	if err := arch.Archive(context.Background(), "ws-1", Batch{RunID: "r9", Items: []apify.Item{{"title": "x"}}}); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if len(objects.keys) != 1 || objects.keys[0] != "scrapes/ws-1/20260304T050607Z-r9.json" {
		t.Fatalf("unexpected keys: %v", objects.keys)
	}
	if !strings.Contains(objects.body[0], `"title":"x"`) {
		t.Fatalf("unexpected body: %s", objects.body[0])
	}
}
