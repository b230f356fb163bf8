package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"sync"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/sync/singleflight"

	"github.com/benjarmc/portal-pji-project-sub000/internal/domain/quoting"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/observability/logging"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/observability/performance"
)

// PlanAPI is the part of the backend client the plan service uses.
type PlanAPI interface {
	ListPlans(ctx context.Context) ([]quoting.Plan, error)
	GetPlan(ctx context.Context, id string) (*quoting.Plan, error)
}

// PlanView is a plan ready for rendering.
type PlanView struct {
	quoting.Plan
	DescriptionHTML template.HTML `json:"descriptionHtml,omitempty"`
}

// PlanService lists the sellable plans and estimates their price.
type PlanService struct {
	api         PlanAPI
	prices      *quoting.PriceTable
	markdown    goldmark.Markdown
	ttl         time.Duration
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker

	group    singleflight.Group
	mu       sync.RWMutex
	cached   []PlanView
	cachedAt time.Time
	now      func() time.Time
}

// NewPlanService creates the plan service. Plan lists are kept for ttl.
func NewPlanService(api PlanAPI, prices *quoting.PriceTable, ttl time.Duration, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *PlanService {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if perfTracker == nil {
		perfTracker = performance.NewTracker(nil)
	}
	return &PlanService{
		api:         api,
		prices:      prices,
		markdown:    goldmark.New(goldmark.WithExtensions(extension.Linkify, extension.Strikethrough)),
		ttl:         ttl,
		logger:      logger,
		perfTracker: perfTracker,
		now:         time.Now,
	}
}

// ListPlans returns the active plans with rendered descriptions.
// Concurrent callers share one backend request.
func (s *PlanService) ListPlans(ctx context.Context) ([]PlanView, error) {
	if cached, ok := s.fromCache(); ok {
		return cached, nil
	}

	v, err, _ := s.group.Do("plans", func() (any, error) {
		marker := s.perfTracker.StartOperation("list_plans", "backend")
		defer marker.Complete()

		plans, err := s.api.ListPlans(ctx)
		if err != nil {
			marker.SetError(err)
			return nil, fmt.Errorf("failed to list plans: %w", err)
		}
		views := make([]PlanView, 0, len(plans))
		for _, p := range plans {
			if !p.IsActive {
				continue
			}
			views = append(views, s.render(p))
		}
		s.mu.Lock()
		s.cached, s.cachedAt = views, s.now()
		s.mu.Unlock()
		marker.SetSuccess(true)
		return views, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]PlanView(nil), v.([]PlanView)...), nil
}

func (s *PlanService) fromCache() ([]PlanView, bool) {
	if s.ttl <= 0 {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cached == nil || s.now().Sub(s.cachedAt) > s.ttl {
		return nil, false
	}
	return append([]PlanView(nil), s.cached...), true
}

// GetPlan returns one plan.
func (s *PlanService) GetPlan(ctx context.Context, id string) (*quoting.Plan, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: plan id cannot be empty", ErrInvalidInput)
	}
	plan, err := s.api.GetPlan(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get plan %s: %w", id, err)
	}
	return plan, nil
}

// GetPlanView returns one plan with its rendered description.
func (s *PlanService) GetPlanView(ctx context.Context, id string) (*PlanView, error) {
	plan, err := s.GetPlan(ctx, id)
	if err != nil {
		return nil, err
	}
	view := s.render(*plan)
	return &view, nil
}

// Estimate prices a tier for a monthly rent from the local price table.
func (s *PlanService) Estimate(tier string, monthlyRent float64) (quoting.Estimate, error) {
	return s.prices.Estimate(tier, monthlyRent)
}

// Tiers lists the tiers of the price table.
func (s *PlanService) Tiers() []string {
	return s.prices.TierNames()
}

func (s *PlanService) render(p quoting.Plan) PlanView {
	view := PlanView{Plan: p}
	if p.Description == "" {
		return view
	}
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(p.Description), &buf); err != nil {
		s.logger.Backend().Warn("Plan description is not valid markdown", "planId", p.ID, "error", err.Error())
		view.DescriptionHTML = template.HTML(template.HTMLEscapeString(p.Description))
		return view
	}
	// goldmark drops raw HTML unless WithUnsafe is set.
	view.DescriptionHTML = template.HTML(buf.String())
	return view
}
