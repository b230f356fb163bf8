package wizard

import "time"

// Patch is a partial update of a State. Nil fields are left untouched.
type Patch struct {
	ID             *string
	CurrentStep    *Step
	Status         *Status
	CompletedSteps []Step
	StepData       StepData
	QuotationID    *string
	PolicyID       *string
	UserID         *string
	Tokens         *Tokens
}

// Ptr returns a pointer to v, for building patches.
func Ptr[T any](v T) *T { return &v }

// Apply merges p into s and stamps Timestamp and LastActivity.
func (s *State) Apply(p Patch, now time.Time) {
	if p.ID != nil {
		s.ID = *p.ID
	}
	if p.CurrentStep != nil && p.CurrentStep.Valid() {
		s.CurrentStep = *p.CurrentStep
	}
	if p.Status != nil && p.Status.Valid() {
		s.Status = *p.Status
	}
	s.CompleteSteps(p.CompletedSteps...)
	s.StepData.Merge(p.StepData)
	if p.QuotationID != nil {
		s.QuotationID = *p.QuotationID
	}
	if p.PolicyID != nil {
		s.PolicyID = *p.PolicyID
	}
	if p.UserID != nil {
		s.UserID = *p.UserID
	}
	if p.Tokens != nil && !p.Tokens.Empty() {
		t := *p.Tokens
		s.Tokens = &t
	}

	ms := now.UnixMilli()
	s.Timestamp = ms
	s.LastActivity = ms
}

// AdoptServer overwrites s with the authoritative copy returned by the
// backend. The local session id, completed steps and tokens survive when
// the server omits them; completed steps stay monotonic.
func (s *State) AdoptServer(server *State) {
	completed := append([]Step{}, s.CompletedSteps...)
	tokens := s.Tokens
	sessionID := s.SessionID
	lastActivity := s.LastActivity

	*s = *server.Clone()

	if s.SessionID == "" {
		s.SessionID = sessionID
	}
	s.CompleteSteps(completed...)
	if s.Tokens.Empty() {
		s.Tokens = tokens
	}
	if s.LastActivity < lastActivity {
		s.LastActivity = lastActivity
	}
	if !s.Status.Valid() {
		s.Status = StatusActive
	}
}
