// Package client is a typed Go client for the SafawiNet admin API.
//
//	c := client.New("https://admin.example.com", client.WithTimeout(10*time.Second))
//	if _, err := c.Auth.Login(ctx, client.LoginRequest{Email: e, Password: p}); err != nil { ... }
//	users, err := c.Users.List(ctx, client.ListUsersOptions{Search: "amina"})
//
// Requests are never retried; failures are returned as *APIError when the
// server answered, or as the transport error otherwise.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultTimeout = 30 * time.Second

// Client talks to one SafawiNet API server
type Client struct {
	httpClient *resty.Client

	mu    sync.RWMutex
	token string

	Auth          *AuthService
	Users         *UsersService
	RoleTemplates *RoleTemplatesService
	AuditLogs     *AuditLogsService
}

// Option configures a Client
type Option func(*Client)

// WithToken sets the bearer token sent with every request
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.SetTimeout(d) }
}

// New creates a client for baseURL, e.g. "https://admin.example.com"
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		httpClient: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(defaultTimeout).
			SetHeader("Accept", "application/json"),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.Auth = &AuthService{client: c}
	c.Users = &UsersService{client: c}
	c.RoleTemplates = &RoleTemplatesService{client: c}
	c.AuditLogs = &AuditLogsService{client: c}
	return c
}

// SetToken replaces the bearer token. Login and ChangePassword call it for you.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Token returns the current bearer token
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// APIError is a non-2xx answer from the server
type APIError struct {
	StatusCode int          `json:"-"`
	Message    string       `json:"message"`
	Code       string       `json:"code,omitempty"` // permission rule that rejected the change
	Fields     []FieldError `json:"errors,omitempty"`
}

// FieldError names an invalid request field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("safawinet: %d %s (%s)", e.StatusCode, e.Message, e.Code)
	}
	return fmt.Sprintf("safawinet: %d %s", e.StatusCode, e.Message)
}

func (c *Client) request(ctx context.Context) *resty.Request {
	req := c.httpClient.R().SetContext(ctx)
	if tok := c.Token(); tok != "" {
		req.SetAuthToken(tok)
	}
	return req
}

// do sends a JSON request and decodes a 2xx body into result when non-nil
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, result interface{}) error {
	req := c.request(ctx)
	if query != nil {
		req.SetQueryParamsFromValues(query)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		return parseAPIError(resp)
	}
	if result == nil || len(resp.Body()) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), result); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

// download fetches an export and keeps the server-chosen filename
func (c *Client) download(ctx context.Context, path string, query url.Values) (*File, error) {
	resp, err := c.request(ctx).SetQueryParamsFromValues(query).Get(path)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	if resp.IsError() {
		return nil, parseAPIError(resp)
	}

	f := &File{ContentType: resp.Header().Get("Content-Type"), Data: resp.Body()}
	if _, params, err := mime.ParseMediaType(resp.Header().Get("Content-Disposition")); err == nil {
		f.Filename = params["filename"]
	}
	return f, nil
}

func parseAPIError(resp *resty.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode()}
	if err := json.Unmarshal(resp.Body(), apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode())
	}
	return apiErr
}

func pageValues(q url.Values, page, limit int64) {
	if page > 0 {
		q.Set("page", fmt.Sprint(page))
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
}

func setBool(q url.Values, key string, v *bool) {
	if v != nil {
		q.Set(key, fmt.Sprint(*v))
	}
}

func setString(q url.Values, key, v string) {
	if v != "" {
		q.Set(key, v)
	}
}
