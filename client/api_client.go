package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-folio-auth/token"
)

// Default paths of the auth API, relative to the base URL.
const (
	DefaultLoginPath    = "/api/auth/login"
	DefaultRegisterPath = "/api/auth/register"
	DefaultMePath       = "/api/auth/me"
)

// LoginResponse is the body returned by the login and register endpoints.
// Failed responses carry Code and, for validation failures, Fields.
type LoginResponse struct {
	Success       bool           `json:"success"`
	Message       string         `json:"message"`
	Token         string         `json:"token,omitempty"`
	UserID        string         `json:"userId,omitempty"`
	UserName      string         `json:"userName,omitempty"`
	Email         string         `json:"email,omitempty"`
	Role          string         `json:"role,omitempty"`
	Roles         []string       `json:"roles,omitempty"`
	SubjectRoleID string         `json:"subjectRoleId,omitempty"`
	ExpiresAt     time.Time      `json:"expiresAt,omitzero"`
	Code          string         `json:"code,omitempty"`
	Fields        map[string]any `json:"fields,omitempty"`
}

// RegisterRequest is the registration payload.
type RegisterRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// MeResponse is the verified identity returned by the me endpoint.
type MeResponse struct {
	Success   bool      `json:"success"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Email     string    `json:"email,omitempty"`
	Role      string    `json:"role,omitempty"`
	Roles     []string  `json:"roles"`
	TokenID   string    `json:"tokenId,omitempty"`
	IssuedAt  time.Time `json:"issuedAt,omitzero"`
	ExpiresAt time.Time `json:"expiresAt,omitzero"`
}

type errorBody struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Code    string         `json:"code,omitempty"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// APIClient talks to the auth server. It carries the bearer token set by
// AuthState and attaches it to protected calls.
type APIClient struct {
	baseURL      string
	httpClient   *http.Client
	loginPath    string
	registerPath string
	mePath       string

	mu     sync.RWMutex
	bearer string
}

type APIOption func(*APIClient)

func WithHTTPClient(c *http.Client) APIOption {
	return func(a *APIClient) {
		if c != nil {
			a.httpClient = c
		}
	}
}

// WithPaths overrides the endpoint paths. Empty values keep the default.
func WithPaths(login, register, me string) APIOption {
	return func(a *APIClient) {
		if login != "" {
			a.loginPath = login
		}
		if register != "" {
			a.registerPath = register
		}
		if me != "" {
			a.mePath = me
		}
	}
}

func NewAPIClient(baseURL string, opts ...APIOption) *APIClient {
	a := &APIClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		loginPath:    DefaultLoginPath,
		registerPath: DefaultRegisterPath,
		mePath:       DefaultMePath,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetAuthorization implements AuthorizationSetter.
func (a *APIClient) SetAuthorization(raw string) {
	a.mu.Lock()
	a.bearer = raw
	a.mu.Unlock()
}

// Authorization returns the bearer token currently attached to requests.
func (a *APIClient) Authorization() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.bearer
}

func (a *APIClient) Login(ctx context.Context, username, password string) (LoginResponse, error) {
	var res LoginResponse
	err := a.do(ctx, http.MethodPost, a.loginPath, map[string]string{
		"username": username,
		"password": password,
	}, &res)
	return res, err
}

func (a *APIClient) Register(ctx context.Context, req RegisterRequest) (LoginResponse, error) {
	var res LoginResponse
	err := a.do(ctx, http.MethodPost, a.registerPath, req, &res)
	return res, err
}

// Me returns the identity the server verifies for the current bearer token.
func (a *APIClient) Me(ctx context.Context) (MeResponse, error) {
	var res MeResponse
	err := a.do(ctx, http.MethodGet, a.mePath, nil, &res)
	return res, err
}

func (a *APIClient) do(ctx context.Context, method, path string, payload, out any) error {
	url := a.baseURL + path

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return networkError(url, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer := a.Authorization(); bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return networkError(url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return networkError(url, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return responseError(url, resp.StatusCode, data)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return networkError(url, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func networkError(url string, err error) error {
	return token.WithCause(token.ErrNetworkFailure, err, map[string]any{
		"url": url,
	})
}

// responseError rebuilds the typed error of a failed response from its code.
func responseError(url string, status int, data []byte) error {
	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil {
		return networkError(url, fmt.Errorf("unexpected status %d", status))
	}

	meta := map[string]any{"url": url, "status": status}
	if len(body.Fields) > 0 {
		meta["fields"] = body.Fields
	}

	base, ok := token.FromKind(token.Kind(body.Code))
	if !ok {
		message := body.Message
		if message == "" {
			message = http.StatusText(status)
		}
		base = goerrors.New(message, goerrors.CategoryOperation).
			WithTextCode(body.Code).
			WithCode(status)
	} else if body.Message != "" {
		base = token.WithMessage(base, body.Message)
	}

	return token.WithCause(base, nil, meta)
}
