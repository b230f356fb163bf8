package services

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/benjarmc/portal-pji-project-sub000/internal/domain/events"
	"github.com/benjarmc/portal-pji-project-sub000/internal/domain/quoting"
	"github.com/benjarmc/portal-pji-project-sub000/internal/domain/wizard"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/backend"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/observability/logging"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/observability/performance"
)

// PlanCatalog resolves the plan named by a landing-page link.
type PlanCatalog interface {
	GetPlan(ctx context.Context, id string) (*quoting.Plan, error)
}

// FlowConfig configures the flow controller.
type FlowConfig struct {
	// AwaitSync makes step transitions wait for the backend flush.
	AwaitSync bool
	// SyncWait bounds that wait.
	SyncWait time.Duration
}

// LoadRequest carries the query parameters of a wizard page load.
type LoadRequest struct {
	SessionParam string
	StepParam    string
	PlanParam    string
	ClientIP     string
}

// StepView describes one entry of the step indicator.
type StepView struct {
	Step      wizard.Step `json:"step"`
	Component string      `json:"component"`
	Title     string      `json:"title"`
	Completed bool        `json:"completed"`
	Current   bool        `json:"current"`
	Reachable bool        `json:"reachable"`
}

// FlowView is what the wizard page renders.
type FlowView struct {
	State     *wizard.State  `json:"state"`
	Step      wizard.Step    `json:"currentStep"`
	Component string         `json:"component"`
	Title     string         `json:"title"`
	CanGoBack bool           `json:"canGoBack"`
	Steps     []StepView     `json:"steps"`
	Source    RecoverySource `json:"source,omitempty"`
	SyncError string         `json:"syncError,omitempty"`
}

// WizardFlowService drives the wizard from one step to the next on top of
// the state service.
type WizardFlowService struct {
	state       *WizardStateService
	plans       PlanCatalog
	cfg         FlowConfig
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// NewWizardFlowService creates the flow controller. plans may be nil.
func NewWizardFlowService(state *WizardStateService, plans PlanCatalog, cfg FlowConfig, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *WizardFlowService {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if perfTracker == nil {
		perfTracker = performance.NewTracker(nil)
	}
	if cfg.SyncWait <= 0 {
		cfg.SyncWait = 12 * time.Second
	}
	return &WizardFlowService{state: state, plans: plans, cfg: cfg, logger: logger, perfTracker: perfTracker}
}

// Load resolves the session of a page load, applies a plan preselected by
// the landing page and honours a requested step when it may be visited.
func (s *WizardFlowService) Load(ctx context.Context, key string, req LoadRequest) (*FlowView, error) {
	marker := s.perfTracker.StartOperation("wizard_load", logging.MaskID(key))
	defer marker.Complete()

	state, source, err := s.state.Recover(ctx, key, req.SessionParam, req.ClientIP)
	if err != nil {
		marker.SetError(err)
		return nil, err
	}

	if req.PlanParam != "" && state.CurrentStep == wizard.StepWelcome {
		if sel := s.planSelection(ctx, req.PlanParam); sel != nil {
			current := state.SelectedPlan()
			if current == nil || current.PlanID != sel.PlanID {
				state = s.state.SaveState(ctx, key, wizard.Patch{StepData: wizard.StepData{Welcome: sel}})
			}
		}
	}

	if req.StepParam != "" {
		n, convErr := strconv.Atoi(req.StepParam)
		step, stepErr := wizard.ParseStep(n)
		switch {
		case convErr != nil || stepErr != nil:
			s.logger.WithSession(logging.ChannelWizard, key).Debug("Ignoring invalid step parameter", "step", req.StepParam)
		case step == state.CurrentStep:
		case s.checkVisit(state, step) == nil:
			state = s.state.SaveState(ctx, key, wizard.Patch{CurrentStep: wizard.Ptr(step)})
		default:
			s.logger.WithSession(logging.ChannelWizard, key).Debug("Requested step not reachable", "step", int(step), "current", int(state.CurrentStep))
		}
	}

	marker.SetSuccess(true)
	view := s.view(state)
	view.Source = source
	return view, nil
}

// View renders the current state without changing it.
func (s *WizardFlowService) View(ctx context.Context, key string) *FlowView {
	return s.view(s.state.GetState(ctx, key))
}

// Next validates the input of the current step, records it, marks the
// step completed and moves forward.
func (s *WizardFlowService) Next(ctx context.Context, key string, input wizard.StepData) (*FlowView, error) {
	marker := s.perfTracker.StartOperation("wizard_next", logging.MaskID(key))
	defer marker.Complete()

	state := s.state.GetState(ctx, key)
	current := state.CurrentStep
	next, err := state.NextStep()
	if err != nil {
		marker.SetError(err)
		return nil, err
	}
	if err := ValidateStepInput(current, input); err != nil {
		marker.SetError(err)
		return nil, err
	}

	record := input.Only(current)
	patch := wizard.Patch{
		CurrentStep:    wizard.Ptr(next),
		CompletedSteps: []wizard.Step{current},
		StepData:       record,
	}
	applyDerivedIDs(&patch, record)
	if next == wizard.StepFinish {
		now := s.state.clock.Now().UTC()
		patch.CompletedSteps = append(patch.CompletedSteps, wizard.StepFinish)
		patch.Status = wizard.Ptr(wizard.StatusCompleted)
		if state.StepData.Finish == nil {
			patch.StepData.Finish = &wizard.FinishData{CompletedAt: &now, PolicyNumber: state.PolicyNumber()}
		}
	}

	view := s.commit(ctx, key, patch)
	s.state.publish(ctx, key, view.State, events.KindStepCompleted, map[string]any{
		"completedStep": int(current),
		"component":     current.Component(),
	})
	marker.SetSuccess(true)
	return view, nil
}

// SaveDraft records partial input of the current step without validating
// or advancing. Repeated drafts coalesce into one backend flush.
func (s *WizardFlowService) SaveDraft(ctx context.Context, key string, input wizard.StepData) *FlowView {
	state := s.state.SaveState(ctx, key, wizard.Patch{StepData: input.Only(s.state.GetState(ctx, key).CurrentStep)})
	s.state.ScheduleSync(key, state)
	return s.view(state)
}

// Prev moves back one step when going back is allowed.
func (s *WizardFlowService) Prev(ctx context.Context, key string) (*FlowView, error) {
	state := s.state.GetState(ctx, key)
	prev, err := state.PrevStep()
	if err != nil {
		return nil, err
	}
	return s.commit(ctx, key, wizard.Patch{CurrentStep: wizard.Ptr(prev)}), nil
}

// SetCurrentStep jumps to a completed step or to the first uncompleted one.
func (s *WizardFlowService) SetCurrentStep(ctx context.Context, key string, step wizard.Step) (*FlowView, error) {
	state := s.state.GetState(ctx, key)
	if err := s.checkVisit(state, step); err != nil {
		return nil, err
	}
	if step == state.CurrentStep {
		return s.view(state), nil
	}
	return s.commit(ctx, key, wizard.Patch{CurrentStep: wizard.Ptr(step)}), nil
}

func (s *WizardFlowService) checkVisit(state *wizard.State, step wizard.Step) error {
	if !step.Valid() {
		return wizard.ErrStepOutOfRange
	}
	if !state.CanVisit(step) {
		return wizard.ErrStepNotReached
	}
	if step < state.CurrentStep && !state.CanGoBack() {
		return wizard.ErrBackNotAllowed
	}
	return nil
}

// OnPaymentCompleted records a successful payment and moves to the
// identity validation step. The wizard cannot go back afterwards.
func (s *WizardFlowService) OnPaymentCompleted(ctx context.Context, key string, payment wizard.PaymentData) (*FlowView, error) {
	if !payment.Succeeded() {
		return nil, &InputError{Step: wizard.StepPayment, Fields: map[string]string{"status": "payment not completed"}}
	}
	patch := wizard.Patch{
		CurrentStep:    wizard.Ptr(wizard.StepValidation),
		CompletedSteps: []wizard.Step{wizard.StepWelcome, wizard.StepMainData, wizard.StepPayment},
		StepData:       wizard.StepData{Payment: &payment},
	}
	if payment.PolicyID != "" {
		patch.PolicyID = wizard.Ptr(payment.PolicyID)
	}
	view := s.commit(ctx, key, patch)
	s.state.publish(ctx, key, view.State, events.KindPaymentCompleted, map[string]any{
		"paymentId": payment.PaymentID,
		"amount":    payment.Amount,
	})
	return view, nil
}

// OnQuotationEmailed records that the quotation was sent to the customer
// and closes the flow on the finish step.
func (s *WizardFlowService) OnQuotationEmailed(ctx context.Context, key, quotationID string) (*FlowView, error) {
	if quotationID == "" {
		return nil, &InputError{Step: wizard.StepMainData, Fields: map[string]string{"quotationId": "required"}}
	}
	state := s.state.GetState(ctx, key)
	md := wizard.MainData{}
	if state.StepData.MainData != nil {
		md = *state.StepData.MainData
	}
	md.QuotationID = quotationID
	md.QuotationEmailed = true

	view := s.commit(ctx, key, wizard.Patch{
		CurrentStep:    wizard.Ptr(wizard.StepFinish),
		CompletedSteps: []wizard.Step{wizard.StepWelcome, wizard.StepMainData},
		StepData:       wizard.StepData{MainData: &md},
		QuotationID:    wizard.Ptr(quotationID),
	})
	s.state.publish(ctx, key, view.State, events.KindQuotationEmailed, map[string]any{"quotationId": quotationID})
	return view, nil
}

// Restart abandons the current session and starts over on a new one.
func (s *WizardFlowService) Restart(ctx context.Context, key string) *FlowView {
	if err := s.state.Clear(ctx, key, ClearAbandon); err != nil {
		s.logger.LogError(logging.ChannelWizard, "restart_abandon", err, map[string]any{"storageKey": logging.MaskID(key)})
	}
	state := s.state.GetState(ctx, key)
	s.state.ScheduleSync(key, state)
	s.state.publish(ctx, key, state, events.KindWizardRestarted, nil)
	return s.view(state)
}

// commit saves locally and schedules the backend flush. When AwaitSync
// is set the confirmed state is returned; a failed flush leaves the local
// state in place and is reported on the view.
func (s *WizardFlowService) commit(ctx context.Context, key string, patch wizard.Patch) *FlowView {
	state := s.state.SaveState(ctx, key, patch)
	pending := s.state.ScheduleSync(key, state)
	if !s.cfg.AwaitSync {
		return s.view(state)
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.cfg.SyncWait)
	defer cancel()
	synced, err := pending.Wait(waitCtx)
	if err != nil {
		log := s.logger.WithSession(logging.ChannelWizard, key)
		if backend.IsRateLimited(err) || errors.Is(err, context.DeadlineExceeded) {
			log.Debug("Step saved locally, backend sync deferred", "error", err.Error())
		} else {
			log.Warn("Step saved locally, backend sync failed", "error", err.Error())
		}
		view := s.view(state)
		view.SyncError = err.Error()
		return view
	}
	if synced.SessionID != state.SessionID {
		return s.view(state)
	}
	return s.view(synced)
}

func (s *WizardFlowService) view(state *wizard.State) *FlowView {
	steps := make([]StepView, 0, wizard.StepCount)
	for _, step := range wizard.Steps() {
		steps = append(steps, StepView{
			Step:      step,
			Component: step.Component(),
			Title:     step.Title(),
			Completed: state.IsCompleted(step),
			Current:   step == state.CurrentStep,
			Reachable: s.checkVisit(state, step) == nil,
		})
	}
	return &FlowView{
		State:     state,
		Step:      state.CurrentStep,
		Component: state.CurrentStep.Component(),
		Title:     state.CurrentStep.Title(),
		CanGoBack: state.CanGoBack(),
		Steps:     steps,
	}
}

func (s *WizardFlowService) planSelection(ctx context.Context, planID string) *wizard.PlanSelection {
	sel := &wizard.PlanSelection{PlanID: planID}
	if s.plans == nil {
		return sel
	}
	plan, err := s.plans.GetPlan(ctx, planID)
	if err != nil {
		s.logger.Wizard().Warn("Preselected plan lookup failed", "planId", planID, "error", err.Error())
		return nil
	}
	sel.PlanName = plan.Name
	sel.Tier = plan.Tier
	sel.Price = plan.Price
	sel.Currency = plan.Currency
	return sel
}

// applyDerivedIDs lifts the ids a step record carries onto the session.
func applyDerivedIDs(p *wizard.Patch, record wizard.StepData) {
	if md := record.MainData; md != nil {
		if md.QuotationID != "" {
			p.QuotationID = wizard.Ptr(md.QuotationID)
		}
		if md.UserID != "" {
			p.UserID = wizard.Ptr(md.UserID)
		}
	}
	if pay := record.Payment; pay != nil && pay.PolicyID != "" {
		p.PolicyID = wizard.Ptr(pay.PolicyID)
	}
}
