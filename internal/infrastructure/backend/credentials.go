package backend

import (
	"context"
	"sync"
	"time"

	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/security"
)

// Credentials are the bearer tokens of one wizard session. A refresh
// updates them in place so the caller can persist the new pair.
type Credentials struct {
	mu           sync.Mutex
	accessToken  string
	refreshToken string
	changed      bool
}

// NewCredentials wraps a token pair.
func NewCredentials(accessToken, refreshToken string) *Credentials {
	return &Credentials{accessToken: accessToken, refreshToken: refreshToken}
}

// Tokens returns the current pair.
func (c *Credentials) Tokens() (access, refresh string) {
	if c == nil {
		return "", ""
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken, c.refreshToken
}

// Set replaces the pair. An empty refresh token keeps the previous one.
func (c *Credentials) Set(access, refresh string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = access
	if refresh != "" {
		c.refreshToken = refresh
	}
	c.changed = true
}

// Clear drops both tokens.
func (c *Credentials) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken, c.refreshToken = "", ""
	c.changed = true
}

// Changed reports whether the pair was refreshed or cleared.
func (c *Credentials) Changed() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.changed
}

// ExpiresWithin reports whether the access token expires before now+d.
// Tokens without a readable exp claim are treated as valid.
func (c *Credentials) ExpiresWithin(now time.Time, d time.Duration) bool {
	access, _ := c.Tokens()
	if access == "" {
		return false
	}
	exp, ok := security.TokenExpiry(access)
	if !ok {
		return false
	}
	return exp.Before(now.Add(d))
}

type credentialsKey struct{}

// WithCredentials attaches session credentials to ctx.
func WithCredentials(ctx context.Context, c *Credentials) context.Context {
	return context.WithValue(ctx, credentialsKey{}, c)
}

// CredentialsFrom returns the credentials attached to ctx, if any.
func CredentialsFrom(ctx context.Context) *Credentials {
	c, _ := ctx.Value(credentialsKey{}).(*Credentials)
	return c
}
