package services

import (
	"context"
	"fmt"

	"github.com/benjarmc/portal-pji-project-sub000/internal/domain/quoting"
	"github.com/benjarmc/portal-pji-project-sub000/internal/domain/wizard"
)

// PaymentAPI is the part of the backend client the payment service uses.
type PaymentAPI interface {
	CreatePayment(ctx context.Context, req quoting.CreatePaymentRequest) (*quoting.Payment, error)
	GetPayment(ctx context.Context, id string) (*quoting.Payment, error)
	ResendPaymentEmail(ctx context.Context, id string) error
}

// PaymentService charges quotations.
type PaymentService struct {
	api PaymentAPI
}

// NewPaymentService creates the payment service.
func NewPaymentService(api PaymentAPI) *PaymentService {
	return &PaymentService{api: api}
}

// CreatePayment starts a charge for a quotation.
func (s *PaymentService) CreatePayment(ctx context.Context, req quoting.CreatePaymentRequest) (*quoting.Payment, error) {
	if req.QuotationID == "" {
		return nil, fmt.Errorf("%w: quotationId is required", ErrInvalidInput)
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	if req.Method == "" {
		req.Method = "card"
	}
	p, err := s.api.CreatePayment(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}
	return p, nil
}

func (s *PaymentService) GetPayment(ctx context.Context, id string) (*quoting.Payment, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: payment id cannot be empty", ErrInvalidInput)
	}
	p, err := s.api.GetPayment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment %s: %w", id, err)
	}
	return p, nil
}

// ResendEmail asks the backend to resend the payment receipt.
func (s *PaymentService) ResendEmail(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: payment id cannot be empty", ErrInvalidInput)
	}
	if err := s.api.ResendPaymentEmail(ctx, id); err != nil {
		return fmt.Errorf("failed to resend payment email %s: %w", id, err)
	}
	return nil
}

// PaymentData converts a backend payment into the payment step record.
func PaymentData(p *quoting.Payment) wizard.PaymentData {
	return wizard.PaymentData{
		PaymentID:    p.ID,
		Status:       p.Status,
		Method:       p.Method,
		Reference:    p.Reference,
		Amount:       p.Amount,
		PolicyID:     p.PolicyID,
		PolicyNumber: p.PolicyNumber,
		PaidAt:       p.PaidAt,
	}
}
