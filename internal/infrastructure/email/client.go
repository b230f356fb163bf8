// Package email provides the email client for sending transactional emails.
package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/resendlabs/resend-go"

	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/email/templates"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/observability/logging"
)

var ErrNotConfigured = errors.New("email delivery is not configured")

// ResumeLinkEmail is a "continue your quotation later" message.
type ResumeLinkEmail struct {
	To        string
	Name      string
	ResumeURL string
	StepTitle string
	PlanName  string
	ExpiresIn string
}

// Service sends the portal's emails, allowing for mock implementations in tests.
type Service interface {
	SendResumeLink(ctx context.Context, msg ResumeLinkEmail) (string, error)
}

// ResendClient is the Resend implementation of Service.
type ResendClient struct {
	client    *resend.Client
	fromEmail string
	fromName  string
	baseURL   string
	logger    *logging.ChanneledLogger
}

// NewService returns a Resend client, or ErrNotConfigured without an API key.
func NewService(apiKey, fromEmail, fromName, baseURL string, logger *logging.ChanneledLogger) (Service, error) {
	if apiKey == "" {
		return nil, ErrNotConfigured
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &ResendClient{
		client:    resend.NewClient(apiKey),
		fromEmail: fromEmail,
		fromName:  fromName,
		baseURL:   baseURL,
		logger:    logger,
	}, nil
}

// SendResumeLink renders and sends the resume-link email and returns the
// provider's message id.
func (c *ResendClient) SendResumeLink(ctx context.Context, msg ResumeLinkEmail) (string, error) {
	html, err := RenderResumeLink(msg, c.baseURL)
	if err != nil {
		return "", err
	}
	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", c.fromName, c.fromEmail),
		To:      []string{msg.To},
		Subject: "Continúa tu cotización",
		Html:    html,
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}
	sent, err := c.client.Emails.Send(params)
	if err != nil {
		c.logger.Email().Error("Resend delivery failed", "error", err.Error())
		return "", fmt.Errorf("failed to send resume link via Resend: %w", err)
	}
	c.logger.Email().Info("Resume link sent", "messageId", sent.Id)
	return sent.Id, nil
}

// RenderResumeLink builds the full HTML of a resume-link email.
func RenderResumeLink(msg ResumeLinkEmail, brandURL string) (string, error) {
	content, err := templates.ResumeLinkContent(templates.ResumeLinkProps{
		Name:      msg.Name,
		ResumeURL: msg.ResumeURL,
		StepTitle: msg.StepTitle,
		PlanName:  msg.PlanName,
		ExpiresIn: msg.ExpiresIn,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render resume link: %w", err)
	}
	html, err := templates.Layout(templates.LayoutProps{
		Preheader: "Tu cotización te espera",
		Content:   content,
		BrandURL:  brandURL,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render email layout: %w", err)
	}
	return html, nil
}
