package wizard

import (
	"slices"
	"time"
)

// Status is the lifecycle status of a wizard session.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
	StatusAbandoned Status = "ABANDONED"
	StatusExpired   Status = "EXPIRED"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusCompleted, StatusAbandoned, StatusExpired:
		return true
	}
	return false
}

// Tokens are backend credentials handed out in session responses. They
// never leave the server.
type Tokens struct {
	AccessToken  string    `json:"accessToken,omitempty" cbor:"accessToken,omitempty"`
	RefreshToken string    `json:"refreshToken,omitempty" cbor:"refreshToken,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt,omitempty" cbor:"expiresAt,omitempty"`
}

// Empty reports whether no token is held.
func (t *Tokens) Empty() bool {
	return t == nil || (t.AccessToken == "" && t.RefreshToken == "")
}

// State is the mutable snapshot of one wizard session.
type State struct {
	SessionID      string     `json:"sessionId" cbor:"sessionId"`
	ID             string     `json:"id,omitempty" cbor:"id,omitempty"`
	CurrentStep    Step       `json:"currentStep" cbor:"currentStep"`
	CompletedSteps []Step     `json:"completedSteps" cbor:"completedSteps"`
	Status         Status     `json:"status" cbor:"status"`
	StepData       StepData   `json:"stepData" cbor:"stepData"`
	Timestamp      int64      `json:"timestamp" cbor:"timestamp"`
	LastActivity   int64      `json:"lastActivity" cbor:"lastActivity"`
	ExpiresAt      *time.Time `json:"expiresAt,omitempty" cbor:"expiresAt,omitempty"`
	QuotationID    string     `json:"quotationId,omitempty" cbor:"quotationId,omitempty"`
	PolicyID       string     `json:"policyId,omitempty" cbor:"policyId,omitempty"`
	UserID         string     `json:"userId,omitempty" cbor:"userId,omitempty"`
	Tokens         *Tokens    `json:"-" cbor:"tokens,omitempty"`
}

// NewState returns the default state of a fresh session.
func NewState(sessionID string, now time.Time) *State {
	ms := now.UnixMilli()
	return &State{
		SessionID:      sessionID,
		CurrentStep:    StepWelcome,
		CompletedSteps: []Step{},
		Status:         StatusActive,
		Timestamp:      ms,
		LastActivity:   ms,
	}
}

// Expired reports whether the state has been idle for longer than timeout.
func (s *State) Expired(now time.Time, timeout time.Duration) bool {
	if s.ExpiresAt != nil && !now.Before(*s.ExpiresAt) {
		return true
	}
	return now.UnixMilli()-s.LastActivity > timeout.Milliseconds()
}

// Touch refreshes LastActivity.
func (s *State) Touch(now time.Time) {
	s.LastActivity = now.UnixMilli()
}

// IsCompleted reports whether step is in CompletedSteps.
func (s *State) IsCompleted(step Step) bool {
	return slices.Contains(s.CompletedSteps, step)
}

// CompleteSteps adds steps to CompletedSteps. Steps are never removed.
func (s *State) CompleteSteps(steps ...Step) {
	for _, step := range steps {
		if step.Valid() && !s.IsCompleted(step) {
			s.CompletedSteps = append(s.CompletedSteps, step)
		}
	}
	slices.Sort(s.CompletedSteps)
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	c := *s
	c.CompletedSteps = append([]Step{}, s.CompletedSteps...)
	c.StepData = s.StepData.Clone()
	if s.ExpiresAt != nil {
		t := *s.ExpiresAt
		c.ExpiresAt = &t
	}
	if s.Tokens != nil {
		t := *s.Tokens
		c.Tokens = &t
	}
	return &c
}

// SelectedPlan is the plan chosen in the welcome step.
func (s *State) SelectedPlan() *PlanSelection {
	return s.StepData.Welcome
}

// Contact is the user contact data of the main-data step.
func (s *State) Contact() *MainData {
	return s.StepData.MainData
}

// QuotationNumber is the human facing quotation number, if any.
func (s *State) QuotationNumber() string {
	if md := s.StepData.MainData; md != nil {
		return md.QuotationNumber
	}
	return ""
}

// PaymentResult is the outcome of the payment step.
func (s *State) PaymentResult() *PaymentData {
	return s.StepData.Payment
}

// PolicyNumber is taken from the finish record, falling back to payment.
func (s *State) PolicyNumber() string {
	if f := s.StepData.Finish; f != nil && f.PolicyNumber != "" {
		return f.PolicyNumber
	}
	if p := s.StepData.Payment; p != nil {
		return p.PolicyNumber
	}
	return ""
}
