package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/benjarmc/portal-pji-project-sub000/internal/domain/events"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/email"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/observability/logging"
)

// ResumeLinkService emails a link that reopens the wizard at the current
// step on another device.
type ResumeLinkService struct {
	state   *WizardStateService
	mailer  email.Service
	baseURL string
	logger  *logging.ChanneledLogger
}

// NewResumeLinkService creates the service. mailer may be nil when email
// delivery is not configured.
func NewResumeLinkService(state *WizardStateService, mailer email.Service, baseURL string, logger *logging.ChanneledLogger) *ResumeLinkService {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &ResumeLinkService{state: state, mailer: mailer, baseURL: strings.TrimRight(baseURL, "/"), logger: logger}
}

// ResumeURL is the wizard URL that recovers sessionID.
func (s *ResumeLinkService) ResumeURL(sessionID string) string {
	return s.baseURL + "/wizard?session=" + url.QueryEscape(sessionID)
}

// Send emails the resume link of the session to the address captured in
// the main-data step, or to to when given.
func (s *ResumeLinkService) Send(ctx context.Context, key, to string) (string, error) {
	if s.mailer == nil {
		return "", ErrNotConfigured
	}
	state := s.state.GetState(ctx, key)
	contact := state.Contact()
	if to == "" && contact != nil {
		to = contact.Email
	}
	if strings.TrimSpace(to) == "" {
		return "", &InputError{Step: state.CurrentStep, Fields: map[string]string{"email": "required"}}
	}

	msg := email.ResumeLinkEmail{
		To:        to,
		ResumeURL: s.ResumeURL(state.SessionID),
		StepTitle: state.CurrentStep.Title(),
		ExpiresIn: humanDuration(s.state.Timeout()),
	}
	if contact != nil {
		msg.Name = contact.Name
	}
	if plan := state.SelectedPlan(); plan != nil {
		msg.PlanName = plan.PlanName
	}

	id, err := s.mailer.SendResumeLink(ctx, msg)
	if err != nil {
		return "", fmt.Errorf("failed to send resume link: %w", err)
	}
	s.state.publish(ctx, key, state, events.KindResumeLinkEmailed, map[string]any{"messageId": id})
	return id, nil
}

func humanDuration(d time.Duration) string {
	hours := int(d.Round(time.Hour) / time.Hour)
	switch {
	case hours >= 48 && hours%24 == 0:
		return fmt.Sprintf("%d días", hours/24)
	case hours > 1:
		return fmt.Sprintf("%d horas", hours)
	default:
		return fmt.Sprintf("%d minutos", int(d/time.Minute))
	}
}
