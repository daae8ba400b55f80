// Package apify is a minimal client for the Apify actor platform: start an
// actor run, wait for it to finish and read the run's dataset.
package apify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.apify.com"
	// maxWaitSeconds is the server-side cap on waitForFinish.
	maxWaitSeconds = 60
)

const (
	RunReady     = "READY"
	RunRunning   = "RUNNING"
	RunSucceeded = "SUCCEEDED"
	RunFailed    = "FAILED"
	RunTimedOut  = "TIMED-OUT"
	RunAborted   = "ABORTED"
)

var ErrRunNotFinished = errors.New("actor run did not finish in time")

// APIError is a non-2xx answer from the Apify API.
type APIError struct {
	Status  int
	Type    string
	Message string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("apify api error (%d %s): %s", e.Status, e.Type, e.Message)
	}
	return fmt.Sprintf("apify api error (%d): %s", e.Status, e.Message)
}

// Run is the subset of actor run fields used here.
type Run struct {
	ID               string    `json:"id"`
	ActID            string    `json:"actId"`
	Status           string    `json:"status"`
	StatusMessage    string    `json:"statusMessage"`
	DefaultDatasetID string    `json:"defaultDatasetId"`
	StartedAt        time.Time `json:"startedAt"`
}

// Terminal reports whether the run reached a final state.
func (r Run) Terminal() bool {
	switch r.Status {
	case RunSucceeded, RunFailed, RunTimedOut, RunAborted:
		return true
	}
	return false
}

// Item is one raw dataset record. Its shape depends on the actor.
type Item map[string]any

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u = strings.TrimRight(strings.TrimSpace(u), "/"); u != "" {
			c.baseURL = u
		}
	}
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

func NewClient(token string, opts ...Option) (*Client, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("apify token required")
	}
	c := &Client{
		baseURL: defaultBaseURL,
		token:   token,
		// long enough for a full waitForFinish window
		httpClient: &http.Client{Timeout: (maxWaitSeconds + 15) * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// StartRun starts actorID with input as its JSON input. Actor ids of the
// form "user/name" are accepted and rewritten to the API's "user~name".
func (c *Client) StartRun(ctx context.Context, actorID string, input any) (Run, error) {
	actorID = strings.ReplaceAll(strings.TrimSpace(actorID), "/", "~")
	if actorID == "" {
		return Run{}, errors.New("actor id required")
	}
	var run Run
	err := c.do(ctx, http.MethodPost, "/v2/acts/"+url.PathEscape(actorID)+"/runs", nil, input, &dataEnvelope{Data: &run})
	return run, err
}

// GetRun fetches a run, letting the server hold the request up to wait
// (capped at 60s) for the run to finish.
func (c *Client) GetRun(ctx context.Context, runID string, wait time.Duration) (Run, error) {
	q := url.Values{}
	if secs := int(wait / time.Second); secs > 0 {
		if secs > maxWaitSeconds {
			secs = maxWaitSeconds
		}
		q.Set("waitForFinish", strconv.Itoa(secs))
	}
	var run Run
	err := c.do(ctx, http.MethodGet, "/v2/actor-runs/"+url.PathEscape(runID), q, nil, &dataEnvelope{Data: &run})
	return run, err
}

// WaitForRun polls until the run is terminal or timeout elapses. On timeout
// it returns the last observed run with ErrRunNotFinished.
func (c *Client) WaitForRun(ctx context.Context, runID string, timeout time.Duration) (Run, error) {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining < time.Second {
			run, err := c.GetRun(ctx, runID, 0)
			if err != nil {
				return Run{}, err
			}
			if run.Terminal() {
				return run, nil
			}
			return run, ErrRunNotFinished
		}
		run, err := c.GetRun(ctx, runID, remaining)
		if err != nil {
			return Run{}, err
		}
		if run.Terminal() {
			return run, nil
		}
		if err := ctx.Err(); err != nil {
			return run, err
		}
	}
}

// ListItems returns up to limit cleaned items of datasetID (all when limit <= 0).
func (c *Client) ListItems(ctx context.Context, datasetID string, limit int) ([]Item, error) {
	q := url.Values{}
	q.Set("clean", "true")
	q.Set("format", "json")
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var items []Item
	err := c.do(ctx, http.MethodGet, "/v2/datasets/"+url.PathEscape(datasetID)+"/items", q, nil, &items)
	return items, err
}

type dataEnvelope struct {
	Data any `json:"data"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("apify request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp struct {
			Error struct {
				Type    string `json:"type"`
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&errResp)
		msg := errResp.Error.Message
		if msg == "" {
			msg = resp.Status
		}
		return &APIError{Status: resp.StatusCode, Type: errResp.Error.Type, Message: msg}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("apify decode: %w", err)
	}
	return nil
}
