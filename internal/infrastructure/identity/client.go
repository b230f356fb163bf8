// Package identity wraps the third-party identity verification service
// used by the validation step.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/valyala/fasthttp"

	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/observability/logging"
)

var (
	ErrNotConfigured = errors.New("identity verification is not configured")
	ErrRequest       = errors.New("identity verification request failed")
)

// Verification is a started verification.
type Verification struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	URL    string `json:"url,omitempty"`
}

// StartRequest identifies the person to verify.
type StartRequest struct {
	Reference string `json:"reference"`
	Name      string `json:"name"`
	Email     string `json:"email"`
}

// Client talks to the identity verification service with a public key.
type Client struct {
	baseURL   string
	publicKey string
	timeout   time.Duration
	http      *fasthttp.Client
	logger    *logging.ChanneledLogger
}

// NewClient creates an identity client. An empty public key yields a
// client whose calls fail with ErrNotConfigured.
func NewClient(baseURL, publicKey string, timeout time.Duration, logger *logging.ChanneledLogger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		publicKey: publicKey,
		timeout:   timeout,
		http:      &fasthttp.Client{Name: "pji-portal", ReadTimeout: timeout, WriteTimeout: timeout},
		logger:    logger,
	}
}

// Configured reports whether a public key is set.
func (c *Client) Configured() bool { return c.publicKey != "" }

// StartVerification opens a verification for a person.
func (c *Client) StartVerification(ctx context.Context, req StartRequest) (*Verification, error) {
	var v Verification
	if err := c.post(ctx, "/verifications", req, &v); err != nil {
		return nil, err
	}
	if v.URL == "" && v.ID != "" {
		v.URL = c.VerificationURL(v.ID)
	}
	return &v, nil
}

// SendVerificationEmail emails the verification link to the person.
func (c *Client) SendVerificationEmail(ctx context.Context, id, email string) error {
	return c.post(ctx, "/verifications/"+url.PathEscape(id)+"/email", map[string]string{"email": email}, nil)
}

// VerificationURL is the page the person opens to verify.
func (c *Client) VerificationURL(id string) string {
	return fmt.Sprintf("%s/verify/%s?key=%s", c.baseURL, url.PathEscape(id), url.QueryEscape(c.publicKey))
}

// ImageCaptureURL is the page that captures ID photos from a phone.
func (c *Client) ImageCaptureURL(id string) string {
	return fmt.Sprintf("%s/capture/%s?key=%s", c.baseURL, url.PathEscape(id), url.QueryEscape(c.publicKey))
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode identity request: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + path)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("X-Public-Key", c.publicKey)
	req.SetBodyRaw(payload)

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	start := time.Now()
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		c.logger.Identity().Error("Identity request failed", "path", path, "error", err.Error())
		return fmt.Errorf("%w: %v", ErrRequest, err)
	}
	status := resp.StatusCode()
	c.logger.Identity().Debug("Identity request completed", "path", path, "status", status, "duration", time.Since(start))
	if status < 200 || status >= 300 {
		return fmt.Errorf("%w: status %d", ErrRequest, status)
	}
	if out == nil || len(resp.Body()) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("failed to decode identity response: %w", err)
	}
	return nil
}
