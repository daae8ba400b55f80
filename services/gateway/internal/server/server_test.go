package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"

	"github.com/olash/SignalReach-sub000/internal/usertoken"
	"github.com/olash/SignalReach-sub000/pkg/domain"
	"github.com/olash/SignalReach-sub000/pkg/draft"
	"github.com/olash/SignalReach-sub000/pkg/scrape"
	"github.com/olash/SignalReach-sub000/pkg/store"
	"github.com/olash/SignalReach-sub000/services/gateway/internal/app"
	"github.com/olash/SignalReach-sub000/services/gateway/internal/authclient"
)

const (
	testJWTSecret  = "super-secret-jwt-token-with-at-least-32-characters"
	testCronSecret = "cron-secret"
)

type stubDrafter struct {
	mu    sync.Mutex
	calls int
	text  string
	err   error
}

func (d *stubDrafter) Generate(_ context.Context, req draft.Request) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if strings.TrimSpace(req.PostContext) == "" {
		return "", draft.ErrEmptyPostContext
	}
	return d.text, d.err
}

func (d *stubDrafter) fail(err error) {
	d.mu.Lock()
	d.err = err
	d.mu.Unlock()
}

func (d *stubDrafter) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

type stubScraper struct {
	results map[string][]map[string]any
	errs    map[string]error
}

func (s *stubScraper) Scrape(_ context.Context, keywords string) (scrape.Batch, error) {
	if err := s.errs[keywords]; err != nil {
		return scrape.Batch{}, err
	}
	batch := scrape.Batch{RunID: "run-" + keywords}
	for _, it := range s.results[keywords] {
		batch.Items = append(batch.Items, it)
	}
	return batch, nil
}

type fakeAuth struct {
	session domain.Session
	err     error
}

func (f *fakeAuth) Login(context.Context, string, string) (domain.Session, error) {
	return f.session, f.err
}

func (f *fakeAuth) Refresh(context.Context, string) (domain.Session, error) {
	return f.session, f.err
}

func (f *fakeAuth) Logout(context.Context, string) error { return f.err }

type harness struct {
	srv     *httptest.Server
	mem     *store.MemoryStore
	drafter *stubDrafter
	scraper *stubScraper
}

type harnessOptions struct {
	auth       AuthProvider
	loginLimit int
	draftLimit int
}

func newHarness(t *testing.T, opts harnessOptions) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	mem := store.NewMemoryStore()
	drafter := &stubDrafter{text: "Have you looked at a lighter CRM?"}
	scraper := &stubScraper{results: map[string][]map[string]any{}, errs: map[string]error{}}
	pipeline := scrape.New(mem, scraper, scrape.Config{})
	core, err := app.New(app.Config{
		Store:       mem,
		Preferences: store.NewRedisPreferenceStore(client, ""),
		Drafter:     drafter,
		Scraper:     pipeline,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	verifier, err := usertoken.NewVerifier(usertoken.Config{Secret: testJWTSecret})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	if opts.auth == nil {
		opts.auth = &fakeAuth{}
	}
	gw, err := New(Config{
		App:                     core,
		Auth:                    opts.auth,
		TokenVerifier:           verifier,
		Redis:                   client,
		CronSecret:              testCronSecret,
		AllowedOrigins:          []string{"https://app.signalreach.io"},
		LoginRateLimitPerMinute: opts.loginLimit,
		DraftRateLimitPerMinute: opts.draftLimit,
	})
	if err != nil {
		t.Fatalf("new gateway server: %v", err)
	}
	srv := httptest.NewServer(gw.Router())
	t.Cleanup(srv.Close)
	return &harness{srv: srv, mem: mem, drafter: drafter, scraper: scraper}
}

func mustSignUserToken(t *testing.T, subject string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":   subject,
		"aud":   "authenticated",
		"exp":   time.Now().Add(time.Hour).Unix(),
		"email": subject + "@example.com",
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func (h *harness) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, _ := json.Marshal(b)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, h.srv.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestHealthAndAuthRequired(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	if status, body := h.do(t, http.MethodGet, "/healthz", "", nil); status != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("healthz: %d %v", status, body)
	}
	if status, _ := h.do(t, http.MethodGet, "/api/workspaces", "", nil); status != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", status)
	}
	if status, _ := h.do(t, http.MethodGet, "/api/workspaces", "not-a-jwt", nil); status != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", status)
	}
	status, body := h.do(t, http.MethodGet, "/api/users/me", mustSignUserToken(t, "alice"), nil)
	if status != http.StatusOK || body["id"] != "alice" || body["email"] != "alice@example.com" {
		t.Fatalf("me: %d %v", status, body)
	}
}

func TestCORSRejectsUnknownOrigin(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	for origin, want := range map[string]int{
		"https://evil.example.com":   http.StatusForbidden,
		"https://app.signalreach.io": http.StatusOK,
		"http://localhost:5173":      http.StatusOK,
	} {
		req, _ := http.NewRequest(http.MethodGet, h.srv.URL+"/healthz", nil)
		req.Header.Set("Origin", origin)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != want {
			t.Fatalf("origin %s: got %d, want %d", origin, resp.StatusCode, want)
		}
	}
}

func TestWorkspaceOnboardingFlow(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	token := mustSignUserToken(t, "alice")

	status, body := h.do(t, http.MethodGet, "/api/workspaces/active", token, nil)
	if status != http.StatusOK || body["state"] != "needs_onboarding" {
		t.Fatalf("expected needs_onboarding, got %d %v", status, body)
	}
	status, body = h.do(t, http.MethodPost, "/api/workspaces", token, map[string]string{"name": "Acme", "keywords": "crm, leads", "frequency": "daily"})
	if status != http.StatusCreated {
		t.Fatalf("create: %d %v", status, body)
	}
	wsID := body["id"].(string)

	status, body = h.do(t, http.MethodGet, "/api/workspaces/active", token, nil)
	ws, _ := body["workspace"].(map[string]any)
	if status != http.StatusOK || body["state"] != "ready" || ws["id"] != wsID {
		t.Fatalf("expected ready with %s, got %d %v", wsID, status, body)
	}

	other := mustSignUserToken(t, "bob")
	if status, _ := h.do(t, http.MethodPut, "/api/workspaces/active", other, map[string]string{"workspaceId": wsID}); status != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign workspace, got %d", status)
	}
	if status, _ := h.do(t, http.MethodPatch, "/api/workspaces/"+wsID, token, map[string]string{"frequency": "monthly"}); status != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad frequency, got %d", status)
	}
	status, body = h.do(t, http.MethodPatch, "/api/workspaces/"+wsID, token, map[string]string{"name": "Acme Inc"})
	if status != http.StatusOK || body["name"] != "Acme Inc" {
		t.Fatalf("patch: %d %v", status, body)
	}
}

func TestGenerateDraftValidation(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	token := mustSignUserToken(t, "alice")
	cases := []struct {
		name string
		body any
	}{
		{"missing platform", map[string]any{"postContext": "hi", "tone": "casual"}},
		{"non-string tone", map[string]any{"postContext": "hi", "platform": "reddit", "tone": 3}},
		{"blank post", map[string]any{"postContext": "   ", "platform": "reddit", "tone": "casual"}},
		{"bad json", "{"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := h.do(t, http.MethodPost, "/api/generate-draft", token, tc.body)
			if status != http.StatusBadRequest || body["error"] == nil {
				t.Fatalf("expected 400 with error, got %d %v", status, body)
			}
		})
	}
	if calls := h.drafter.callCount(); calls != 0 {
		t.Fatalf("model must not be called for invalid input, calls=%d", calls)
	}

	status, body := h.do(t, http.MethodPost, "/api/generate-draft", token, map[string]any{"postContext": "Need a CRM", "platform": "twitter", "tone": "witty"})
	if status != http.StatusOK || body["draft"] != h.drafter.text {
		t.Fatalf("draft: %d %v", status, body)
	}

	h.drafter.fail(errors.New("quota"))
	status, body = h.do(t, http.MethodPost, "/api/generate-draft", token, map[string]any{"postContext": "Need a CRM", "platform": "reddit", "tone": "helpful"})
	if status != http.StatusInternalServerError || strings.Contains(body["error"].(string), "quota") {
		t.Fatalf("expected opaque 500, got %d %v", status, body)
	}
}

func TestGenerateDraftRateLimit(t *testing.T) {
	h := newHarness(t, harnessOptions{draftLimit: 1})
	token := mustSignUserToken(t, "alice")
	payload := map[string]any{"postContext": "Need a CRM", "platform": "reddit", "tone": "helpful"}
	if status, _ := h.do(t, http.MethodPost, "/api/generate-draft", token, payload); status != http.StatusOK {
		t.Fatalf("first draft expected 200, got %d", status)
	}
	req, _ := http.NewRequest(http.MethodPost, h.srv.URL+"/api/generate-draft", strings.NewReader(`{"postContext":"x","platform":"reddit","tone":"helpful"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("second draft: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests || resp.Header.Get("Retry-After") == "" {
		t.Fatalf("expected 429 with Retry-After, got %d", resp.StatusCode)
	}
}

func TestLoginRateLimit(t *testing.T) {
	authSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/token" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "t",
			"refresh_token": "r",
			"expires_in":    3600,
			"user":          map[string]any{"id": "u-1", "email": "u@example.com"},
		})
	}))
	defer authSrv.Close()
	h := newHarness(t, harnessOptions{auth: authclient.NewClient(authSrv.URL, "anon"), loginLimit: 1})

	body := map[string]string{"email": "u@example.com", "password": "pass"}
	status, resp := h.do(t, http.MethodPost, "/api/auth/login", "", body)
	if status != http.StatusOK || resp["accessToken"] != "t" {
		t.Fatalf("first login expected 200, got %d %v", status, resp)
	}
	if status, _ := h.do(t, http.MethodPost, "/api/auth/login", "", body); status != http.StatusTooManyRequests {
		t.Fatalf("second login expected 429, got %d", status)
	}
}

func TestLoginPassesThroughAuthError(t *testing.T) {
	h := newHarness(t, harnessOptions{auth: &fakeAuth{err: &authclient.APIError{Status: http.StatusBadRequest, Message: "Invalid login credentials"}}})
	status, body := h.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "a@example.com", "password": "x"})
	if status != http.StatusBadRequest || body["error"] != "Invalid login credentials" {
		t.Fatalf("unexpected: %d %v", status, body)
	}
	h = newHarness(t, harnessOptions{auth: &fakeAuth{err: errors.New("dial tcp: refused")}})
	if status, _ := h.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "a@example.com", "password": "x"}); status != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", status)
	}
}

func TestCronScrape(t *testing.T) {
	h := newHarness(t, harnessOptions{})

	if status, _ := h.do(t, http.MethodPost, "/api/cron/scrape", "", nil); status != http.StatusUnauthorized {
		t.Fatalf("expected 401 without secret, got %d", status)
	}
	if status, _ := h.do(t, http.MethodPost, "/api/cron/scrape", "wrong", nil); status != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong secret, got %d", status)
	}

	status, body := h.do(t, http.MethodPost, "/api/cron/scrape", testCronSecret, nil)
	if status != http.StatusOK || body["inserted"] != float64(0) || body["workspaces_scraped"] != float64(0) {
		t.Fatalf("no-op run: %d %v", status, body)
	}
	if _, ok := body["ok"]; ok {
		t.Fatalf("no-op run must not carry ok: %v", body)
	}

	kwA, kwB := "alpha", "beta"
	_ = h.mem.CreateWorkspace(domain.Workspace{ID: "ws-a", OwnerID: "alice", Name: "A", Keywords: &kwA, Frequency: domain.FrequencyDaily})
	_ = h.mem.CreateWorkspace(domain.Workspace{ID: "ws-b", OwnerID: "alice", Name: "B", Keywords: &kwB, Frequency: domain.FrequencyDaily})
	h.scraper.errs["alpha"] = errors.New("actor exploded: secret detail")
	h.scraper.results["beta"] = []map[string]any{
		{"title": "one", "username": "u1", "url": "https://r/1"},
		{"title": "two", "username": "u2", "url": "https://r/2"},
		{"title": "three", "username": "u3", "url": "https://r/3"},
	}

	status, body = h.do(t, http.MethodPost, "/api/cron/scrape", testCronSecret, nil)
	if status != http.StatusOK || body["ok"] != true || body["inserted"] != float64(3) || body["workspaces_scraped"] != float64(1) {
		t.Fatalf("run: %d %v", status, body)
	}
	raw, _ := json.Marshal(body)
	if strings.Contains(string(raw), "secret detail") {
		t.Fatalf("unit error leaked into response: %s", raw)
	}
}

func TestSignalLifecycleOverHTTP(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	token := mustSignUserToken(t, "alice")
	_ = h.mem.CreateWorkspace(domain.Workspace{ID: "ws-1", OwnerID: "alice", Name: "A", Frequency: domain.FrequencyDaily})
	_, _ = h.mem.InsertSignals([]domain.Signal{
		{ID: "sig-1", WorkspaceID: "ws-1", Platform: domain.PlatformTwitter, Author: "a", Content: "Need a CRM", URL: "https://x/1", Status: domain.StatusNew},
	})

	status, body := h.do(t, http.MethodGet, "/api/workspaces/ws-1/signals?status=new&q=crm", token, nil)
	if status != http.StatusOK || body["count"] != float64(1) {
		t.Fatalf("list: %d %v", status, body)
	}
	if status, _ := h.do(t, http.MethodGet, "/api/workspaces/ws-1/signals?status=bogus", token, nil); status != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad status, got %d", status)
	}

	status, body = h.do(t, http.MethodPost, "/api/signals/sig-1/actions", token, map[string]string{"action": "generate_draft"})
	if status != http.StatusOK || body["draft"] != h.drafter.text || body["charLimit"] != float64(280) {
		t.Fatalf("generate_draft: %d %v", status, body)
	}

	long := strings.Repeat("a", 281)
	status, _ = h.do(t, http.MethodPost, "/api/signals/sig-1/actions", token, map[string]string{"action": "copy_and_engage", "draft": long})
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for over-limit draft, got %d", status)
	}

	status, body = h.do(t, http.MethodPost, "/api/signals/sig-1/actions", token, map[string]string{"action": "copy_and_engage", "draft": "short reply"})
	if status != http.StatusOK || body["openUrl"] != "https://x/1" {
		t.Fatalf("copy_and_engage: %d %v", status, body)
	}

	if status, _ := h.do(t, http.MethodDelete, "/api/signals/sig-1", token, nil); status != http.StatusConflict {
		t.Fatalf("expected 409 deleting engaged signal, got %d", status)
	}
	if status, _ := h.do(t, http.MethodPost, "/api/signals/sig-1/actions", token, map[string]string{"action": "discard"}); status != http.StatusConflict {
		t.Fatalf("expected 409 for invalid transition, got %d", status)
	}
	status, body = h.do(t, http.MethodPost, "/api/signals/sig-1/actions", token, map[string]string{"action": "mark_won"})
	if status != http.StatusOK {
		t.Fatalf("mark_won: %d %v", status, body)
	}
	status, body = h.do(t, http.MethodPost, "/api/signals/sig-1/actions", token, map[string]string{"action": "restore"})
	sig, _ := body["signal"].(map[string]any)
	if status != http.StatusOK || sig["status"] != "engaged" {
		t.Fatalf("restore: %d %v", status, body)
	}

	status, body = h.do(t, http.MethodPatch, "/api/signals/sig-1", token, map[string]string{"status": "dismissed"})
	if status != http.StatusOK || body["status"] != "discarded" {
		t.Fatalf("patch: %d %v", status, body)
	}
	status, body = h.do(t, http.MethodDelete, "/api/signals/sig-1", token, nil)
	if status != http.StatusOK || body["status"] != "deleted" {
		t.Fatalf("delete: %d %v", status, body)
	}
	if status, _ := h.do(t, http.MethodGet, "/api/signals/sig-1", token, nil); status != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", status)
	}
}

func TestSignalsOfOtherUserAreForbidden(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	_ = h.mem.CreateWorkspace(domain.Workspace{ID: "ws-1", OwnerID: "alice", Name: "A", Frequency: domain.FrequencyDaily})
	_, _ = h.mem.InsertSignals([]domain.Signal{{ID: "sig-1", WorkspaceID: "ws-1", Platform: domain.PlatformReddit, Author: "a", Content: "c"}})
	bob := mustSignUserToken(t, "bob")
	if status, _ := h.do(t, http.MethodGet, "/api/signals/sig-1", bob, nil); status != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", status)
	}
	if status, _ := h.do(t, http.MethodGet, "/api/workspaces/ws-1/signals", bob, nil); status != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", status)
	}
}
