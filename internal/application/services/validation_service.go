package services

import (
	"context"
	"fmt"

	"github.com/benjarmc/portal-pji-project-sub000/internal/domain/quoting"
	"github.com/benjarmc/portal-pji-project-sub000/internal/domain/wizard"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/identity"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/observability/logging"
)

// ValidationAPI is the part of the backend client the validation service uses.
type ValidationAPI interface {
	StartValidation(ctx context.Context, req quoting.StartValidationRequest) (*quoting.Validation, error)
	ValidationStatus(ctx context.Context, id string) (*quoting.Validation, error)
	ResendValidation(ctx context.Context, id string) error
}

// IdentityVerifier is the identity SDK.
type IdentityVerifier interface {
	Configured() bool
	StartVerification(ctx context.Context, req identity.StartRequest) (*identity.Verification, error)
	SendVerificationEmail(ctx context.Context, id, email string) error
	VerificationURL(id string) string
	ImageCaptureURL(id string) string
}

// ValidationService runs the identity validation step.
type ValidationService struct {
	api      ValidationAPI
	identity IdentityVerifier
	logger   *logging.ChanneledLogger
}

// NewValidationService creates the validation service. verifier may be nil.
func NewValidationService(api ValidationAPI, verifier IdentityVerifier, logger *logging.ChanneledLogger) *ValidationService {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &ValidationService{api: api, identity: verifier, logger: logger}
}

func (s *ValidationService) identityReady() bool {
	return s.identity != nil && s.identity.Configured()
}

// Start opens a validation on the backend. When the backend does not hand
// out a verification link and the identity SDK is configured, the link is
// created there.
func (s *ValidationService) Start(ctx context.Context, req quoting.StartValidationRequest) (*wizard.ValidationData, error) {
	if req.SessionID == "" || req.Email == "" {
		return nil, fmt.Errorf("%w: sessionId and email are required", ErrInvalidInput)
	}
	v, err := s.api.StartValidation(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to start validation: %w", err)
	}

	data := &wizard.ValidationData{
		ValidationID:    v.ID,
		Status:          v.Status,
		VerificationURL: v.VerificationURL,
		Verified:        v.Verified,
	}
	if s.identityReady() {
		if data.VerificationURL == "" {
			ver, err := s.identity.StartVerification(ctx, identity.StartRequest{Reference: v.ID, Name: req.Name, Email: req.Email})
			if err != nil {
				s.logger.Identity().Warn("Identity verification could not be started", "validationId", v.ID, "error", err.Error())
			} else {
				data.VerificationURL = ver.URL
			}
		}
		data.CaptureURL = s.identity.ImageCaptureURL(v.ID)
	}
	return data, nil
}

// Status polls a validation.
func (s *ValidationService) Status(ctx context.Context, id string) (*wizard.ValidationData, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: validation id cannot be empty", ErrInvalidInput)
	}
	v, err := s.api.ValidationStatus(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get validation %s: %w", id, err)
	}
	return &wizard.ValidationData{
		ValidationID:    v.ID,
		Status:          v.Status,
		VerificationURL: v.VerificationURL,
		Verified:        v.Verified,
	}, nil
}

// Resend sends the validation link again.
func (s *ValidationService) Resend(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: validation id cannot be empty", ErrInvalidInput)
	}
	if err := s.api.ResendValidation(ctx, id); err != nil {
		return fmt.Errorf("failed to resend validation %s: %w", id, err)
	}
	return nil
}

// SendVerificationEmail emails the identity SDK link directly.
func (s *ValidationService) SendVerificationEmail(ctx context.Context, id, email string) error {
	if !s.identityReady() {
		return ErrNotConfigured
	}
	return s.identity.SendVerificationEmail(ctx, id, email)
}

// VerificationURL is the identity SDK page for a validation.
func (s *ValidationService) VerificationURL(id string) (string, error) {
	if !s.identityReady() {
		return "", ErrNotConfigured
	}
	return s.identity.VerificationURL(id), nil
}

// ImageCaptureURL is the identity SDK photo-capture page for a validation.
func (s *ValidationService) ImageCaptureURL(id string) (string, error) {
	if !s.identityReady() {
		return "", ErrNotConfigured
	}
	return s.identity.ImageCaptureURL(id), nil
}
