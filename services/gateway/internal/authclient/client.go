package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/olash/SignalReach-sub000/pkg/domain"
)

// Client proxies sign-in, refresh and sign-out to a GoTrue-compatible
// hosted auth provider.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// APIError represents an auth provider error response.
type APIError struct {
	Status  int
	Message string
	Code    string
}

func (e *APIError) Error() string {
	return e.Message
}

// NewClient constructs an auth provider client. apiKey is the project's
// public (anon) key sent as the apikey header.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// Login exchanges email and password for a session.
func (c *Client) Login(ctx context.Context, email, password string) (domain.Session, error) {
	payload := map[string]string{"email": email, "password": password}
	var resp tokenResponse
	q := url.Values{"grant_type": {"password"}}
	if err := c.doJSON(ctx, http.MethodPost, "/auth/v1/token", q, "", payload, &resp); err != nil {
		return domain.Session{}, err
	}
	return resp.session(), nil
}

// Refresh rotates a refresh token into a new session.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (domain.Session, error) {
	payload := map[string]string{"refresh_token": refreshToken}
	var resp tokenResponse
	q := url.Values{"grant_type": {"refresh_token"}}
	if err := c.doJSON(ctx, http.MethodPost, "/auth/v1/token", q, "", payload, &resp); err != nil {
		return domain.Session{}, err
	}
	return resp.session(), nil
}

// Logout revokes the session behind accessToken.
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	return c.doJSON(ctx, http.MethodPost, "/auth/v1/logout", nil, accessToken, nil, nil)
}

// User fetches the identity for accessToken from the provider.
func (c *Client) User(ctx context.Context, accessToken string) (domain.Identity, error) {
	var u providerUser
	if err := c.doJSON(ctx, http.MethodGet, "/auth/v1/user", nil, accessToken, nil, &u); err != nil {
		return domain.Identity{}, err
	}
	return u.identity(), nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, token string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
			Msg              string `json:"msg"`
			Message          string `json:"message"`
			Code             any    `json:"error_code"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		msg := firstNonEmpty(errResp.ErrorDescription, errResp.Msg, errResp.Message, errResp.Error, resp.Status)
		code, _ := errResp.Code.(string)
		return &APIError{Status: resp.StatusCode, Message: msg, Code: strings.TrimSpace(code)}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int64        `json:"expires_in"`
	ExpiresAt    int64        `json:"expires_at"`
	User         providerUser `json:"user"`
}

func (r tokenResponse) session() domain.Session {
	s := domain.Session{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		User:         r.User.identity(),
	}
	switch {
	case r.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(r.ExpiresAt, 0).UTC()
	case r.ExpiresIn > 0:
		s.ExpiresAt = time.Now().Add(time.Duration(r.ExpiresIn) * time.Second).UTC()
	}
	return s
}

type providerUser struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

func (u providerUser) identity() domain.Identity {
	meta := func(keys ...string) string {
		for _, k := range keys {
			if s, ok := u.UserMetadata[k].(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
		return ""
	}
	return domain.Identity{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: meta("full_name", "name"),
		AvatarURL:   meta("avatar_url", "picture"),
	}
}
