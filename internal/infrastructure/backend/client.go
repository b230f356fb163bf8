// Package backend is the HTTP client of the quoting backend REST API. It
// adds authentication headers, unwraps the response envelope and maps
// failures to typed errors.
package backend

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"github.com/valyala/fasthttp"
	"golang.org/x/sync/singleflight"

	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/observability/logging"
)

const (
	defaultTimeout     = 15 * time.Second
	refreshPath        = "/auth/refresh"
	refreshLeadTime    = 30 * time.Second
	maxErrorBodyLogged = 300
)

// Config configures a Client.
type Config struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	UserAgent string
}

// Client talks to the quoting backend.
type Client struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	http    *fasthttp.Client
	logger  *logging.ChanneledLogger
	refresh singleflight.Group
	now     func() time.Time
}

// envelope is the {success,data,message} wrapper of backend responses.
type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

// NewClient creates a backend client.
func NewClient(cfg Config, logger *logging.ChanneledLogger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "pji-portal"
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		timeout: cfg.Timeout,
		http: &fasthttp.Client{
			Name:                cfg.UserAgent,
			ReadTimeout:         cfg.Timeout,
			WriteTimeout:        cfg.Timeout,
			MaxIdleConnDuration: time.Minute,
		},
		logger: logger,
		now:    time.Now,
	}
}

// Get issues a GET and decodes the unwrapped data into out.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, fasthttp.MethodGet, path, query, nil, out)
}

// Post issues a POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, fasthttp.MethodPost, path, nil, body, out)
}

// Put issues a PUT with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, fasthttp.MethodPut, path, nil, body, out)
}

// Patch issues a PATCH with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, fasthttp.MethodPatch, path, nil, body, out)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.Do(ctx, fasthttp.MethodDelete, path, nil, nil, out)
}

// Do performs one request. A 401 triggers a single token refresh and
// retry when the context carries credentials with a refresh token; if the
// refresh fails the credentials are cleared and the original error is
// returned.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	op := method + " " + path

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return &Error{Kind: KindDomain, Op: op, Message: "failed to encode request", Err: err}
		}
	}

	creds := CredentialsFrom(ctx)
	if creds != nil && creds.ExpiresWithin(c.now(), refreshLeadTime) {
		if rerr := c.refreshTokens(ctx, creds); rerr != nil {
			c.logger.Backend().Debug("Proactive token refresh failed", "error", rerr.Error())
		}
	}

	data, err := c.roundTrip(ctx, method, path, query, payload, creds)
	if err != nil && isUnauthorized(err) && creds != nil && path != refreshPath {
		if _, refreshToken := creds.Tokens(); refreshToken != "" {
			if rerr := c.refreshTokens(ctx, creds); rerr != nil {
				c.logger.Backend().Warn("Token refresh failed, clearing credentials", "op", op, "error", rerr.Error())
				creds.Clear()
				return err
			}
			data, err = c.roundTrip(ctx, method, path, query, payload, creds)
		}
	}
	if err != nil {
		return err
	}

	if out == nil || len(data) == 0 || string(data) == "null" {
		return nil
	}
	if uerr := json.Unmarshal(data, out); uerr != nil {
		return &Error{Kind: KindDomain, Op: op, Message: "failed to decode response", Err: uerr}
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, payload []byte, creds *Credentials) (json.RawMessage, error) {
	op := method + " " + path
	if err := ctx.Err(); err != nil {
		return nil, &Error{Kind: KindTransport, Op: op, Err: err}
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	uri := c.baseURL + path
	if len(query) > 0 {
		uri += "?" + query.Encode()
	}
	req.SetRequestURI(uri)
	req.Header.SetMethod(method)
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	if access, _ := creds.Tokens(); access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}
	if payload != nil {
		req.Header.SetContentType("application/json")
		req.SetBodyRaw(payload)
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	start := time.Now()
	err := c.http.DoDeadline(req, resp, deadline)
	duration := time.Since(start)
	if err != nil {
		c.logger.Backend().Error("Backend request failed", "op", op, "error", err.Error(), "duration", duration)
		return nil, &Error{Kind: KindTransport, Op: op, Err: err}
	}

	status := resp.StatusCode()
	body := append([]byte(nil), resp.Body()...)
	c.logger.Backend().Debug("Backend request completed", "op", op, "status", status, "duration", duration)

	env, wrapped := decodeEnvelope(body)
	message := env.Message
	if message == "" {
		message = env.Error
	}

	if status < 200 || status >= 300 {
		if !wrapped && message == "" {
			message = truncate(string(body), maxErrorBodyLogged)
		}
		kind := classify(status, message)
		c.logger.Backend().Warn("Backend request rejected", "op", op, "status", status, "kind", kind.String(), "message", message)
		return nil, &Error{Kind: kind, Status: status, Message: message, Op: op}
	}

	if !wrapped {
		return body, nil
	}
	if env.Success != nil && !*env.Success {
		kind := classify(status, message)
		if kind == KindServer {
			kind = KindDomain
		}
		return nil, &Error{Kind: kind, Status: status, Message: message, Op: op}
	}
	return env.Data, nil
}

// refreshTokens exchanges the refresh token for a new pair. Concurrent
// refreshes of the same token share one request.
func (c *Client) refreshTokens(ctx context.Context, creds *Credentials) error {
	_, refreshToken := creds.Tokens()
	if refreshToken == "" {
		return fmt.Errorf("no refresh token")
	}

	v, err, _ := c.refresh.Do(refreshToken, func() (any, error) {
		var pair TokenPair
		payload, _ := json.Marshal(map[string]string{"refreshToken": refreshToken})
		data, err := c.roundTrip(ctx, fasthttp.MethodPost, refreshPath, nil, payload, nil)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &pair); err != nil {
			return nil, fmt.Errorf("failed to decode refreshed tokens: %w", err)
		}
		if pair.AccessToken == "" {
			return nil, fmt.Errorf("refresh returned no access token")
		}
		return pair, nil
	})
	if err != nil {
		return err
	}
	pair := v.(TokenPair)
	creds.Set(pair.AccessToken, pair.RefreshToken)
	c.logger.Backend().Info("Backend tokens refreshed")
	return nil
}

// TokenPair is a bearer token pair as issued by the backend.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// decodeEnvelope reports whether body is a {success,data,message} object.
func decodeEnvelope(body []byte) (envelope, bool) {
	var env envelope
	trimmed := strings.TrimSpace(string(body))
	if !strings.HasPrefix(trimmed, "{") {
		return env, false
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(body, &keys); err != nil {
		return env, false
	}
	_, hasSuccess := keys["success"]
	_, hasData := keys["data"]
	if !hasSuccess && !hasData {
		var msg struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		_ = json.Unmarshal(body, &msg)
		env.Message, env.Error = msg.Message, msg.Error
		return env, false
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return env, false
	}
	return env, true
}

func isUnauthorized(err error) bool {
	be, ok := err.(*Error)
	return ok && be.Kind == KindUnauthorized
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
