package backend

import (
	"context"
	"net/url"

	"github.com/benjarmc/portal-pji-project-sub000/internal/domain/wizard"
)

// SessionRecord is the backend's copy of a wizard session. Token fields
// are present when the backend issues or renews credentials.
type SessionRecord struct {
	wizard.State
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// ToState returns the wizard state carried by the record, with tokens.
func (r *SessionRecord) ToState() *wizard.State {
	s := r.State.Clone()
	if r.AccessToken != "" || r.RefreshToken != "" {
		s.Tokens = &wizard.Tokens{AccessToken: r.AccessToken, RefreshToken: r.RefreshToken}
	}
	if s.CompletedSteps == nil {
		s.CompletedSteps = []wizard.Step{}
	}
	return s
}

// CreateSessionRequest opens a backend session for a local state.
type CreateSessionRequest struct {
	SessionID      string          `json:"sessionId"`
	CurrentStep    wizard.Step     `json:"currentStep"`
	CompletedSteps []wizard.Step   `json:"completedSteps"`
	StepData       wizard.StepData `json:"stepData"`
	Status         wizard.Status   `json:"status"`
	IPAddress      string          `json:"ipAddress,omitempty"`
	UserAgent      string          `json:"userAgent,omitempty"`
}

// StepUpdate is the body of the per-step PATCH.
type StepUpdate struct {
	SessionID      string          `json:"sessionId"`
	CurrentStep    wizard.Step     `json:"currentStep"`
	CompletedSteps []wizard.Step   `json:"completedSteps"`
	StepData       wizard.StepData `json:"stepData"`
	Status         wizard.Status   `json:"status,omitempty"`
	QuotationID    string          `json:"quotationId,omitempty"`
	PolicyID       string          `json:"policyId,omitempty"`
	UserID         string          `json:"userId,omitempty"`
}

// StepUpdateFrom builds the PATCH body from a local state.
func StepUpdateFrom(s *wizard.State) StepUpdate {
	completed := s.CompletedSteps
	if completed == nil {
		completed = []wizard.Step{}
	}
	return StepUpdate{
		SessionID:      s.SessionID,
		CurrentStep:    s.CurrentStep,
		CompletedSteps: completed,
		StepData:       s.StepData,
		Status:         s.Status,
		QuotationID:    s.QuotationID,
		PolicyID:       s.PolicyID,
		UserID:         s.UserID,
	}
}

// CreateSession opens a new backend session.
func (c *Client) CreateSession(ctx context.Context, req CreateSessionRequest) (*wizard.State, error) {
	if req.CompletedSteps == nil {
		req.CompletedSteps = []wizard.Step{}
	}
	var rec SessionRecord
	if err := c.Post(ctx, "/wizard-session", req, &rec); err != nil {
		return nil, err
	}
	return rec.ToState(), nil
}

// GetSession loads a session by its server id.
func (c *Client) GetSession(ctx context.Context, id string) (*wizard.State, error) {
	var rec SessionRecord
	if err := c.Get(ctx, "/wizard-session/"+url.PathEscape(id), nil, &rec); err != nil {
		return nil, err
	}
	return rec.ToState(), nil
}

// GetSessionBySessionID loads a session by its client session id.
func (c *Client) GetSessionBySessionID(ctx context.Context, sessionID string) (*wizard.State, error) {
	var rec SessionRecord
	if err := c.Get(ctx, "/wizard-session/by-session/"+url.PathEscape(sessionID), nil, &rec); err != nil {
		return nil, err
	}
	return rec.ToState(), nil
}

// GetActiveSessionByIP finds the active session of a client address. A
// missing session is reported as ErrNotFound.
func (c *Client) GetActiveSessionByIP(ctx context.Context, ip string) (*wizard.State, error) {
	var rec SessionRecord
	if err := c.Get(ctx, "/wizard-session/active", url.Values{"ip": {ip}}, &rec); err != nil {
		return nil, err
	}
	if rec.SessionID == "" && rec.ID == "" {
		return nil, &Error{Kind: KindNotFound, Status: 404, Op: "GET /wizard-session/active", Message: "no active session for this IP"}
	}
	return rec.ToState(), nil
}

// UpdateStep is the per-step PATCH targeted by the debounced sync.
func (c *Client) UpdateStep(ctx context.Context, id string, update StepUpdate) (*wizard.State, error) {
	var rec SessionRecord
	if err := c.Patch(ctx, "/wizard-session/"+url.PathEscape(id)+"/step", update, &rec); err != nil {
		return nil, err
	}
	return rec.ToState(), nil
}

// AbandonSession marks a backend session ABANDONED.
func (c *Client) AbandonSession(ctx context.Context, id string) error {
	body := map[string]wizard.Status{"status": wizard.StatusAbandoned}
	return c.Patch(ctx, "/wizard-session/"+url.PathEscape(id), body, nil)
}

// DeleteSession removes a backend session.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	return c.Delete(ctx, "/wizard-session/"+url.PathEscape(id), nil)
}
