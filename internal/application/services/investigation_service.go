package services

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/benjarmc/portal-pji-project-sub000/internal/domain/quoting"
	"github.com/benjarmc/portal-pji-project-sub000/internal/domain/wizard"
)

// InvestigationAPI is the part of the backend client the credit-bureau
// service uses.
type InvestigationAPI interface {
	CreateInvestigation(ctx context.Context, req quoting.InvestigationRequest) (*quoting.Investigation, error)
	GetInvestigation(ctx context.Context, id string) (*quoting.Investigation, error)
	UpdateInvestigation(ctx context.Context, id string, req quoting.InvestigationRequest) (*quoting.Investigation, error)
	DeleteInvestigation(ctx context.Context, id string) error
	ListInvestigations(ctx context.Context, quotationID string) ([]quoting.Investigation, error)
}

// InvestigationService runs credit-bureau checks on the lease parties.
type InvestigationService struct {
	api InvestigationAPI
}

// NewInvestigationService creates the investigation service.
func NewInvestigationService(api InvestigationAPI) *InvestigationService {
	return &InvestigationService{api: api}
}

func (s *InvestigationService) CreateInvestigation(ctx context.Context, req quoting.InvestigationRequest) (*quoting.Investigation, error) {
	if req.QuotationID == "" || req.PartyType == "" {
		return nil, fmt.Errorf("%w: quotationId and partyType are required", ErrInvalidInput)
	}
	inv, err := s.api.CreateInvestigation(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create investigation: %w", err)
	}
	return inv, nil
}

func (s *InvestigationService) GetInvestigation(ctx context.Context, id string) (*quoting.Investigation, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: investigation id cannot be empty", ErrInvalidInput)
	}
	inv, err := s.api.GetInvestigation(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get investigation %s: %w", id, err)
	}
	return inv, nil
}

func (s *InvestigationService) UpdateInvestigation(ctx context.Context, id string, req quoting.InvestigationRequest) (*quoting.Investigation, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: investigation id cannot be empty", ErrInvalidInput)
	}
	inv, err := s.api.UpdateInvestigation(ctx, id, req)
	if err != nil {
		return nil, fmt.Errorf("failed to update investigation %s: %w", id, err)
	}
	return inv, nil
}

func (s *InvestigationService) DeleteInvestigation(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: investigation id cannot be empty", ErrInvalidInput)
	}
	if err := s.api.DeleteInvestigation(ctx, id); err != nil {
		return fmt.Errorf("failed to delete investigation %s: %w", id, err)
	}
	return nil
}

// ListByQuotation returns the investigations of a quotation.
func (s *InvestigationService) ListByQuotation(ctx context.Context, quotationID string) ([]quoting.Investigation, error) {
	if quotationID == "" {
		return nil, fmt.Errorf("%w: quotation id cannot be empty", ErrInvalidInput)
	}
	list, err := s.api.ListInvestigations(ctx, quotationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list investigations: %w", err)
	}
	return list, nil
}

// InvestigateParties opens one investigation per captured party, in
// parallel, and returns them keyed by party type.
func (s *InvestigationService) InvestigateParties(ctx context.Context, quotationID string, entry *wizard.DataEntryData) (map[string]*quoting.Investigation, error) {
	if entry == nil {
		return nil, fmt.Errorf("%w: %s", wizard.ErrMissingStepData, wizard.StepDataEntry)
	}
	parties := map[string]*wizard.PartyData{
		"tenant":    entry.Tenant,
		"owner":     entry.Owner,
		"guarantor": entry.Guarantor,
	}

	results := make(map[string]*quoting.Investigation, len(parties))
	found := make([]*quoting.Investigation, 0, len(parties))
	kinds := make([]string, 0, len(parties))
	for kind, p := range parties {
		if p != nil {
			kinds = append(kinds, kind)
			found = append(found, nil)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range kinds {
		i, kind := i, kind
		p := parties[kind]
		g.Go(func() error {
			inv, err := s.CreateInvestigation(gctx, quoting.InvestigationRequest{
				QuotationID: quotationID,
				PartyType:   kind,
				FirstName:   p.FirstName,
				LastName:    p.LastName,
				TaxID:       p.TaxID,
				Email:       p.Email,
			})
			if err != nil {
				return fmt.Errorf("%s: %w", kind, err)
			}
			found[i] = inv
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for i, kind := range kinds {
		results[kind] = found[i]
	}
	return results, nil
}
