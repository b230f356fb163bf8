package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/benjarmc/portal-pji-project-sub000/internal/domain/quoting"
	"github.com/benjarmc/portal-pji-project-sub000/internal/domain/wizard"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/backend"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/observability/logging"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/observability/performance"
)

// QuotationAPI is the part of the backend client the quotation service uses.
type QuotationAPI interface {
	CreateQuotation(ctx context.Context, req quoting.CreateQuotationRequest) (*quoting.Quotation, error)
	GetQuotation(ctx context.Context, id string) (*quoting.Quotation, error)
	UpdateQuotation(ctx context.Context, id string, req quoting.UpdateQuotationRequest) (*quoting.Quotation, error)
	SendQuotationEmail(ctx context.Context, id, email string) error
}

// QuotationService creates, reads and emails quotations.
type QuotationService struct {
	api         QuotationAPI
	users       *UserService
	payments    *PaymentService
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// NewQuotationService creates the quotation service.
func NewQuotationService(api QuotationAPI, users *UserService, payments *PaymentService, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *QuotationService {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if perfTracker == nil {
		perfTracker = performance.NewTracker(nil)
	}
	return &QuotationService{api: api, users: users, payments: payments, logger: logger, perfTracker: perfTracker}
}

// CreateQuotation creates a quotation for a plan and a monthly rent.
func (s *QuotationService) CreateQuotation(ctx context.Context, req quoting.CreateQuotationRequest) (*quoting.Quotation, error) {
	if req.PlanID == "" {
		return nil, fmt.Errorf("%w: planId is required", ErrInvalidInput)
	}
	if req.MonthlyRent <= 0 {
		return nil, fmt.Errorf("%w: monthlyRent must be positive", ErrInvalidInput)
	}
	q, err := s.api.CreateQuotation(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create quotation: %w", err)
	}
	return q, nil
}

// GetQuotation returns one quotation.
func (s *QuotationService) GetQuotation(ctx context.Context, id string) (*quoting.Quotation, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: quotation id cannot be empty", ErrInvalidInput)
	}
	q, err := s.api.GetQuotation(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get quotation %s: %w", id, err)
	}
	return q, nil
}

// UpdateQuotation changes the plan, rent or status of a quotation.
func (s *QuotationService) UpdateQuotation(ctx context.Context, id string, req quoting.UpdateQuotationRequest) (*quoting.Quotation, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: quotation id cannot be empty", ErrInvalidInput)
	}
	q, err := s.api.UpdateQuotation(ctx, id, req)
	if err != nil {
		return nil, fmt.Errorf("failed to update quotation %s: %w", id, err)
	}
	return q, nil
}

// SendByEmail asks the backend to email the quotation.
func (s *QuotationService) SendByEmail(ctx context.Context, id, email string) error {
	if id == "" || strings.TrimSpace(email) == "" {
		return fmt.Errorf("%w: quotation id and email are required", ErrInvalidInput)
	}
	if err := s.api.SendQuotationEmail(ctx, id, email); err != nil {
		return fmt.Errorf("failed to email quotation %s: %w", id, err)
	}
	s.logger.Email().Info("Quotation emailed", "quotationId", id)
	return nil
}

// QuoteMainData completes the main-data step: the user is found or
// created by email and a quotation is opened for the selected plan. The
// returned record carries the user and quotation ids.
func (s *QuotationService) QuoteMainData(ctx context.Context, state *wizard.State, md wizard.MainData) (*wizard.MainData, *quoting.Quotation, error) {
	marker := s.perfTracker.StartOperation("quote_main_data", logging.MaskID(state.SessionID))
	defer marker.Complete()

	plan := state.SelectedPlan()
	if plan == nil || plan.PlanID == "" {
		err := fmt.Errorf("%w: %s", wizard.ErrMissingStepData, wizard.StepWelcome)
		marker.SetError(err)
		return nil, nil, err
	}

	user, err := s.users.Ensure(ctx, quoting.CreateUserRequest{
		Name:     md.Name,
		Email:    md.Email,
		Phone:    md.Phone,
		UserType: md.UserType,
	})
	if err != nil {
		marker.SetError(err)
		return nil, nil, err
	}

	q, err := s.CreateQuotation(ctx, quoting.CreateQuotationRequest{
		UserID:      user.ID,
		PlanID:      plan.PlanID,
		MonthlyRent: plan.MonthlyRent,
		PostalCode:  md.PostalCode,
		SessionID:   state.SessionID,
		UserType:    md.UserType,
	})
	if err != nil {
		marker.SetError(err)
		return nil, nil, err
	}

	out := md
	out.UserID = user.ID
	out.QuotationID = q.ID
	out.QuotationNumber = q.QuotationNumber
	marker.SetSuccess(true)
	return &out, q, nil
}

// Summary is what the finish step shows.
type Summary struct {
	Quotation *quoting.Quotation `json:"quotation,omitempty"`
	User      *quoting.User      `json:"user,omitempty"`
	Payment   *quoting.Payment   `json:"payment,omitempty"`
}

// Summary loads the quotation, user and payment of a session in parallel.
// Missing pieces are left nil.
func (s *QuotationService) Summary(ctx context.Context, state *wizard.State) (*Summary, error) {
	var out Summary
	g, gctx := errgroup.WithContext(ctx)

	if state.QuotationID != "" {
		g.Go(func() error {
			q, err := s.api.GetQuotation(gctx, state.QuotationID)
			if err != nil && !errors.Is(err, backend.ErrNotFound) {
				return fmt.Errorf("failed to load quotation: %w", err)
			}
			out.Quotation = q
			return nil
		})
	}
	if state.UserID != "" && s.users != nil {
		g.Go(func() error {
			u, err := s.users.GetUser(gctx, state.UserID)
			if err != nil && !errors.Is(err, backend.ErrNotFound) {
				return err
			}
			out.User = u
			return nil
		})
	}
	if pay := state.PaymentResult(); pay != nil && pay.PaymentID != "" && s.payments != nil {
		g.Go(func() error {
			p, err := s.payments.GetPayment(gctx, pay.PaymentID)
			if err != nil && !errors.Is(err, backend.ErrNotFound) {
				return err
			}
			out.Payment = p
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &out, nil
}
