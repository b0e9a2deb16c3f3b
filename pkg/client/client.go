// Package client is a small Go client for the inventory API. It persists
// session tokens through a TokenStore, transparently retries a request
// exactly once after refreshing an expired access token, and keeps a local
// cache of the caller's workspace list.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Error codes returned by the API that the client reacts to.
const (
	codeAccessTokenExpired  = "ACCESS_TOKEN_EXPIRED"
	codeRefreshTokenExpired = "REFRESH_TOKEN_EXPIRED"
	codeTokenSuperseded     = "TOKEN_SUPERSEDED"
)

const workspaceHeader = "X-Workspace-ID"

var (
	// ErrNotLoggedIn means no credentials are stored.
	ErrNotLoggedIn = errors.New("client: not logged in")
	// ErrSessionExpired means the refresh token is no longer usable and the
	// user must log in again. Stored credentials have been cleared.
	ErrSessionExpired = errors.New("client: session expired, log in again")
)

// APIError is a non-2xx response decoded from the server's error envelope.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
}

// User mirrors the server's user representation.
type User struct {
	ID          uint64 `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
}

// Workspace mirrors the server's workspace-with-role representation.
type Workspace struct {
	ID       uint64 `json:"id"`
	Name     string `json:"name"`
	Plan     string `json:"plan"`
	Archived bool   `json:"archived"`
	Role     string `json:"role"`
}

type tokenPair struct {
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

type session struct {
	User   User      `json:"user"`
	Tokens tokenPair `json:"tokens"`
}

// Client talks to one inventory API server on behalf of one user.
type Client struct {
	baseURL string
	httpc   *http.Client
	store   TokenStore

	mu          sync.Mutex
	workspaceID uint64      // explicit workspace override, 0 = server default
	wsList      []Workspace // cached workspace list
	wsListOK    bool
	activeID    uint64 // last workspace selected through this client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) { c.httpc = httpc }
}

// New creates a client against baseURL, persisting tokens in store.
func New(baseURL string, store TokenStore, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: 30 * time.Second},
		store:   store,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register creates an account and stores the issued tokens.
func (c *Client) Register(ctx context.Context, username, displayName, email, password string) (*User, error) {
	return c.openSession(ctx, "/api/auth/register", map[string]string{
		"username":     username,
		"display_name": displayName,
		"email":        email,
		"password":     password,
	})
}

// Login authenticates and stores the issued tokens. Any refresh token a
// previous login stored elsewhere stops working server-side.
func (c *Client) Login(ctx context.Context, username, password string) (*User, error) {
	return c.openSession(ctx, "/api/auth/login", map[string]string{
		"username": username,
		"password": password,
	})
}

func (c *Client) openSession(ctx context.Context, path string, body any) (*User, error) {
	var sess session
	if err := c.bare(ctx, http.MethodPost, path, body, &sess); err != nil {
		return nil, err
	}
	if err := c.store.Save(&Credentials{
		AccessToken:      sess.Tokens.AccessToken,
		AccessExpiresAt:  sess.Tokens.AccessExpiresAt,
		RefreshToken:     sess.Tokens.RefreshToken,
		RefreshExpiresAt: sess.Tokens.RefreshExpiresAt,
	}); err != nil {
		return nil, fmt.Errorf("client: saving credentials: %w", err)
	}
	c.mu.Lock()
	c.wsListOK = false
	c.activeID = 0
	c.mu.Unlock()
	return &sess.User, nil
}

// Logout invalidates the session server-side and clears stored tokens.
// Clearing happens even when the server call fails.
func (c *Client) Logout(ctx context.Context) error {
	reqErr := c.Do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
	if err := c.store.Clear(); err != nil {
		return err
	}
	c.mu.Lock()
	c.wsListOK = false
	c.activeID = 0
	c.mu.Unlock()
	if reqErr != nil && !errors.Is(reqErr, ErrNotLoggedIn) {
		return reqErr
	}
	return nil
}

// Me returns the authenticated user.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var user User
	if err := c.Do(ctx, http.MethodGet, "/api/auth/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UseWorkspace pins subsequent requests to a workspace via header instead
// of the server-side active workspace.
func (c *Client) UseWorkspace(id uint64) {
	c.mu.Lock()
	c.workspaceID = id
	c.mu.Unlock()
}

// Workspaces returns the caller's workspaces. The list is cached in the
// client after the first call; pass force to bypass both the client cache
// and the server cache, e.g. right after accepting an invite.
func (c *Client) Workspaces(ctx context.Context, force bool) ([]Workspace, error) {
	c.mu.Lock()
	if c.wsListOK && !force {
		cached := make([]Workspace, len(c.wsList))
		copy(cached, c.wsList)
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	path := "/api/workspaces"
	if force {
		path += "?force=true"
	}
	var resp struct {
		Workspaces []Workspace `json:"workspaces"`
	}
	if err := c.Do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.wsList = resp.Workspaces
	c.wsListOK = true
	c.mu.Unlock()
	return resp.Workspaces, nil
}

// SetActiveWorkspace persists the active workspace server-side. Selecting
// the workspace that is already active through this client is a no-op, so
// UI reselections do not trigger refetch cascades.
func (c *Client) SetActiveWorkspace(ctx context.Context, id uint64) error {
	c.mu.Lock()
	if c.activeID == id {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	err := c.Do(ctx, http.MethodPut, "/api/workspaces/active", map[string]uint64{"workspace_id": id}, nil)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.activeID = id
	c.mu.Unlock()
	return nil
}

// ActiveWorkspace returns the active workspace, letting the server restore
// a usable one when the stored selection went stale.
func (c *Client) ActiveWorkspace(ctx context.Context) (*Workspace, error) {
	var ws Workspace
	if err := c.Do(ctx, http.MethodGet, "/api/workspaces/active", nil, &ws); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.activeID = ws.ID
	c.mu.Unlock()
	return &ws, nil
}

// Do sends an authenticated request. When the server answers 401 with
// ACCESS_TOKEN_EXPIRED the client refreshes and retries exactly once; any
// further 401 propagates. A dead refresh token clears stored credentials
// and returns ErrSessionExpired.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	creds, err := c.store.Load()
	if err != nil {
		return fmt.Errorf("client: loading credentials: %w", err)
	}
	if creds == nil || creds.AccessToken == "" {
		return ErrNotLoggedIn
	}

	err = c.send(ctx, method, path, body, out, creds.AccessToken)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != codeAccessTokenExpired {
		return err
	}

	creds, err = c.refresh(ctx, creds)
	if err != nil {
		return err
	}
	return c.send(ctx, method, path, body, out, creds.AccessToken)
}

// refresh exchanges the stored refresh token for a new access token.
func (c *Client) refresh(ctx context.Context, creds *Credentials) (*Credentials, error) {
	if creds.RefreshToken == "" {
		return nil, ErrNotLoggedIn
	}

	var pair tokenPair
	err := c.bare(ctx, http.MethodPost, "/api/auth/refresh", map[string]string{
		"refresh_token": creds.RefreshToken,
	}, &pair)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			switch apiErr.Code {
			case codeRefreshTokenExpired, codeTokenSuperseded:
				_ = c.store.Clear()
				return nil, ErrSessionExpired
			}
		}
		return nil, err
	}

	creds.AccessToken = pair.AccessToken
	creds.AccessExpiresAt = pair.AccessExpiresAt
	if err := c.store.Save(creds); err != nil {
		return nil, fmt.Errorf("client: saving credentials: %w", err)
	}
	return creds, nil
}

// send performs one HTTP round trip with the given access token.
func (c *Client) send(ctx context.Context, method, path string, body, out any, accessToken string) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	c.mu.Lock()
	if c.workspaceID != 0 {
		req.Header.Set(workspaceHeader, strconv.FormatUint(c.workspaceID, 10))
	}
	c.mu.Unlock()

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		if decodeErr := json.NewDecoder(resp.Body).Decode(apiErr); decodeErr != nil {
			apiErr.Code = "UNKNOWN"
			apiErr.Message = resp.Status
		}
		return apiErr
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// bare performs an unauthenticated round trip.
func (c *Client) bare(ctx context.Context, method, path string, body, out any) error {
	return c.send(ctx, method, path, body, out, "")
}
