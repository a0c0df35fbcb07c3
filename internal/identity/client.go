// Copyright (c) 2025 Tether
// Licensed under the MIT License. See LICENSE file in the project root for details.

package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"tether/cli/internal/principal"
)

// ResponseFormat pins the Appwrite response model version.
const ResponseFormat = "1.5.0"

// ErrUnauthorized is returned when Appwrite rejects the credentials of a call
// that requires them (login, logout). CurrentUser maps 401 to anonymous instead.
var ErrUnauthorized = errors.New("unauthorized")

// Options configures a Client.
type Options struct {
	Endpoint  string
	Project   string
	Timeout   time.Duration
	UserAgent string
	Secret    SecretFunc
}

// Client implements API over the Appwrite REST endpoints.
type Client struct {
	project string
	http    *resty.Client
	secret  SecretFunc
}

// apiError is the Appwrite error envelope.
type apiError struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
	Type    string `json:"type"`
}

// New creates a Client. Timeout zero disables the HTTP timeout.
func New(opts Options) *Client {
	rc := resty.New().
		SetBaseURL(strings.TrimRight(opts.Endpoint, "/")).
		SetTimeout(opts.Timeout).
		SetHeader("X-Appwrite-Project", opts.Project).
		SetHeader("X-Appwrite-Response-Format", ResponseFormat).
		SetHeader("Accept", "application/json")
	if opts.UserAgent != "" {
		rc.SetHeader("User-Agent", opts.UserAgent)
	}

	secret := opts.Secret
	if secret == nil {
		secret = func(context.Context) (string, error) { return "", nil }
	}
	return &Client{project: opts.Project, http: rc, secret: secret}
}

// request prepares an authenticated request when a session secret is stored.
func (c *Client) request(ctx context.Context) (*resty.Request, error) {
	req := c.http.R().SetContext(ctx)
	s, err := c.secret(ctx)
	if err != nil {
		return nil, fmt.Errorf("load session secret: %w", err)
	}
	if s != "" {
		req.SetHeader("X-Appwrite-Session", s)
	}
	return req, nil
}

// CurrentUser calls GET /account. 401 means no session and yields (nil, nil).
func (c *Client) CurrentUser(ctx context.Context) (principal.User, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := req.Get("/account")
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}

	switch {
	case resp.StatusCode() == http.StatusUnauthorized:
		return nil, nil
	case !resp.IsSuccess():
		return nil, statusError("get account", resp)
	}

	u, err := principal.Decode(string(resp.Body()))
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return u, nil
}

// CreateEmailSession calls POST /account/sessions/email. The session secret is
// read from the response body, or from the session cookie when the server
// does not echo it.
func (c *Client) CreateEmailSession(ctx context.Context, email, password string) (Session, error) {
	var s Session
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"email": email, "password": password}).
		Post("/account/sessions/email")
	if err != nil {
		return s, fmt.Errorf("create session: %w", err)
	}
	if resp.StatusCode() == http.StatusUnauthorized {
		return s, fmt.Errorf("create session: %w: %s", ErrUnauthorized, errorMessage(resp))
	}
	if !resp.IsSuccess() {
		return s, statusError("create session", resp)
	}

	if err := json.Unmarshal(resp.Body(), &s); err != nil {
		return s, fmt.Errorf("create session: decode: %w", err)
	}
	if s.Secret == "" {
		s.Secret = c.sessionCookie(resp)
	}
	if s.Secret == "" {
		return s, errors.New("create session: server returned no session secret")
	}
	return s, nil
}

func (c *Client) sessionCookie(resp *resty.Response) string {
	name := "a_session_" + strings.ToLower(c.project)
	for _, ck := range resp.Cookies() {
		n := strings.ToLower(ck.Name)
		if (n == name || n == name+"_legacy") && ck.Value != "" {
			return ck.Value
		}
	}
	return ""
}

// DeleteSession calls DELETE /account/sessions/current.
func (c *Client) DeleteSession(ctx context.Context) error {
	req, err := c.request(ctx)
	if err != nil {
		return err
	}
	resp, err := req.Delete("/account/sessions/current")
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if resp.StatusCode() == http.StatusUnauthorized {
		return fmt.Errorf("delete session: %w", ErrUnauthorized)
	}
	if !resp.IsSuccess() {
		return statusError("delete session", resp)
	}
	return nil
}

// GetVersion calls GET /health/version. No authentication required.
func (c *Client) GetVersion(ctx context.Context) (string, error) {
	resp, err := c.http.R().SetContext(ctx).Get("/health/version")
	if err != nil {
		return "", fmt.Errorf("get version: %w", err)
	}
	if !resp.IsSuccess() {
		return "unknown", nil
	}
	var out struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", fmt.Errorf("get version: %w", err)
	}
	if out.Version == "" {
		return "unknown", nil
	}
	return out.Version, nil
}

// StatusError is an unexpected HTTP status returned by Appwrite.
type StatusError struct {
	Op      string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Code, e.Message)
}

// StatusCode returns the HTTP status of the failed call.
func (e *StatusError) StatusCode() int { return e.Code }

func statusError(op string, resp *resty.Response) error {
	return &StatusError{Op: op, Code: resp.StatusCode(), Message: errorMessage(resp)}
}

func errorMessage(resp *resty.Response) string {
	var e apiError
	if err := json.Unmarshal(resp.Body(), &e); err == nil && e.Message != "" {
		if e.Type != "" {
			return e.Message + " (" + e.Type + ")"
		}
		return e.Message
	}
	msg := strings.TrimSpace(string(resp.Body()))
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	return msg
}
