package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/restosession/internal/client/models"
	"github.com/dmitrijs2005/restosession/internal/common"
	"github.com/go-playground/validator/v10"
)

const (
	pathLogin    = "/api/auth/login"
	pathRegister = "/api/auth/register"
	pathMe       = "/api/auth/me"
	pathRefresh  = "/api/auth/refresh"
	pathLogout   = "/api/auth/logout"
	pathLog      = "/api/auth/_log"

	maxBodySize = 1 << 20
)

// HTTPClient talks to the auth backend over HTTP. The cookie jar is shared
// with the cookie storage tier so stored cookies accompany every request.
type HTTPClient struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
	validate  *validator.Validate
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient returns a client for the backend at baseURL. jar may be nil.
func NewHTTPClient(baseURL string, jar http.CookieJar, userAgent string) (*HTTPClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}
	return &HTTPClient{
		baseURL:   u,
		http:      &http.Client{Jar: jar},
		userAgent: userAgent,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}, nil
}

// BaseURL returns the parsed backend base URL.
func (c *HTTPClient) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

func (c *HTTPClient) endpoint(path string) string {
	return c.baseURL.JoinPath(path).String()
}

func (c *HTTPClient) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", path, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	return req, nil
}

func (c *HTTPClient) newJSONRequest(ctx context.Context, path string, payload any) (*http.Request, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: encode request: %w", path, err)
	}
	return c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(b), "application/json")
}

func setBearer(req *http.Request, token string) {
	req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+token)
}

// do sends req and returns the status and body. Non-2xx statuses are
// returned as *APIError with Kind from kindOf.
func (c *HTTPClient) do(req *http.Request, kindOf func(int) error) (int, []byte, error) {
	path := req.URL.Path
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, transportError(path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return resp.StatusCode, nil, transportError(path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, body, &APIError{
			Kind:     kindOf(resp.StatusCode),
			Endpoint: path,
			Status:   resp.StatusCode,
			Message:  detailMessage(body),
		}
	}
	return resp.StatusCode, body, nil
}

func decodeTokens(path string, status int, body []byte, requireAccess bool) (models.Tokens, error) {
	var t models.Tokens
	if len(bytes.TrimSpace(body)) == 0 {
		if requireAccess {
			return models.Tokens{}, malformed(path, status, errors.New("empty body"))
		}
		return t, nil
	}
	if err := json.Unmarshal(body, &t); err != nil {
		return models.Tokens{}, malformed(path, status, err)
	}
	if requireAccess && t.AccessToken == "" {
		return models.Tokens{}, malformed(path, status, errors.New("missing access_token"))
	}
	return t, nil
}

// Login posts form-encoded credentials.
func (c *HTTPClient) Login(ctx context.Context, username, password string) (models.Tokens, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	req, err := c.newRequest(ctx, http.MethodPost, pathLogin, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	if err != nil {
		return models.Tokens{}, err
	}
	status, body, err := c.do(req, loginStatusKind)
	if err != nil {
		return models.Tokens{}, err
	}
	return decodeTokens(pathLogin, status, body, true)
}

// Register creates an account. The returned Tokens are empty when the
// server does not log the new user in.
func (c *HTTPClient) Register(ctx context.Context, r RegisterRequest) (models.Tokens, error) {
	req, err := c.newJSONRequest(ctx, pathRegister, r)
	if err != nil {
		return models.Tokens{}, err
	}
	status, body, err := c.do(req, registerStatusKind)
	if err != nil {
		return models.Tokens{}, err
	}
	return decodeTokens(pathRegister, status, body, false)
}

// Me fetches and validates the profile of the token's owner. A 401 is
// reported as common.ErrTokenExpired.
func (c *HTTPClient) Me(ctx context.Context, accessToken string) (*models.Profile, error) {
	req, err := c.newRequest(ctx, http.MethodGet, pathMe, nil, "")
	if err != nil {
		return nil, err
	}
	setBearer(req, accessToken)

	status, body, err := c.do(req, func(s int) error { return statusKind(s, common.ErrTokenExpired) })
	if err != nil {
		return nil, err
	}

	var p models.Profile
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, malformed(pathMe, status, err)
	}
	if err := c.validate.Struct(&p); err != nil {
		return nil, malformed(pathMe, status, err)
	}
	return &p, nil
}

// Refresh exchanges a refresh token for a new pair. Any non-2xx status is
// reported as common.ErrRefreshFailed.
func (c *HTTPClient) Refresh(ctx context.Context, refreshToken string) (models.Tokens, error) {
	req, err := c.newJSONRequest(ctx, pathRefresh, map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return models.Tokens{}, err
	}
	status, body, err := c.do(req, func(int) error { return common.ErrRefreshFailed })
	if err != nil {
		return models.Tokens{}, err
	}
	return decodeTokens(pathRefresh, status, body, true)
}

func (c *HTTPClient) Logout(ctx context.Context, accessToken string) error {
	req, err := c.newRequest(ctx, http.MethodPost, pathLogout, nil, "")
	if err != nil {
		return err
	}
	setBearer(req, accessToken)
	_, _, err = c.do(req, func(s int) error { return statusKind(s, common.ErrTokenExpired) })
	return err
}

func (c *HTTPClient) SendLog(ctx context.Context, entry LogEntry) error {
	req, err := c.newJSONRequest(ctx, pathLog, entry)
	if err != nil {
		return err
	}
	_, _, err = c.do(req, func(s int) error { return statusKind(s, common.ErrServerUnavailable) })
	return err
}

// Ping checks reachability of the backend. Any HTTP response counts.
func (c *HTTPClient) Ping(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodHead, "/", nil, "")
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return transportError("/", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}
