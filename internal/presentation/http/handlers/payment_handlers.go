package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/benjarmc/portal-pji-project-sub000/internal/application/services"
	"github.com/benjarmc/portal-pji-project-sub000/internal/domain/quoting"
	"github.com/benjarmc/portal-pji-project-sub000/internal/domain/wizard"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/observability/logging"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/observability/performance"
	"github.com/benjarmc/portal-pji-project-sub000/internal/presentation/http/middleware"
)

// PaymentHandlers runs the payment step.
type PaymentHandlers struct {
	payments    *services.PaymentService
	state       *services.WizardStateService
	flow        *services.WizardFlowService
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// NewPaymentHandlers creates payment handlers
func NewPaymentHandlers(payments *services.PaymentService, state *services.WizardStateService, flow *services.WizardFlowService, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *PaymentHandlers {
	return &PaymentHandlers{payments: payments, state: state, flow: flow, logger: logger, perfTracker: perfTracker}
}

type createPaymentRequest struct {
	Method string  `json:"method"`
	Token  string  `json:"token"`
	Amount float64 `json:"amount"`
}

// CreatePayment handles POST /api/v1/payments. The quotation, amount and
// receipt email come from the wizard session unless the body sets them.
func (h *PaymentHandlers) CreatePayment(c *gin.Context) {
	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	key := middleware.StorageKey(c)
	ctx, persist := h.state.SessionContext(c.Request.Context(), key)
	defer persist()

	state := h.state.GetState(ctx, key)
	marker := h.perfTracker.StartOperation("create_payment", logging.MaskID(state.SessionID))
	defer marker.Complete()

	pr := quoting.CreatePaymentRequest{
		QuotationID: state.QuotationID,
		Amount:      req.Amount,
		Method:      req.Method,
		Token:       req.Token,
		SessionID:   state.SessionID,
	}
	if pr.Amount <= 0 {
		if plan := state.SelectedPlan(); plan != nil {
			pr.Amount = plan.Price
		}
	}
	if contact := state.Contact(); contact != nil {
		pr.Email = contact.Email
		if pr.QuotationID == "" {
			pr.QuotationID = contact.QuotationID
		}
	}

	p, err := h.payments.CreatePayment(ctx, pr)
	if err != nil {
		marker.SetError(err)
		respondError(c, err)
		return
	}
	marker.SetSuccess(true)
	h.respondPayment(c, key, p, http.StatusCreated)
}

// GetPayment handles GET /api/v1/payments/:id
func (h *PaymentHandlers) GetPayment(c *gin.Context) {
	ctx, persist := h.state.SessionContext(c.Request.Context(), middleware.StorageKey(c))
	defer persist()

	p, err := h.payments.GetPayment(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// ConfirmPayment handles POST /api/v1/payments/:id/confirm, called when the
// checkout returns. A settled payment advances the wizard.
func (h *PaymentHandlers) ConfirmPayment(c *gin.Context) {
	key := middleware.StorageKey(c)
	ctx, persist := h.state.SessionContext(c.Request.Context(), key)
	defer persist()

	p, err := h.payments.GetPayment(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	h.respondPayment(c, key, p, http.StatusOK)
}

func (h *PaymentHandlers) respondPayment(c *gin.Context, key string, p *quoting.Payment, status int) {
	data := services.PaymentData(p)
	if !data.Succeeded() {
		h.state.SaveState(c.Request.Context(), key, wizard.Patch{StepData: wizard.StepData{Payment: &data}})
		c.JSON(status, gin.H{"payment": p, "completed": false})
		return
	}
	view, err := h.flow.OnPaymentCompleted(c.Request.Context(), key, data)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(status, gin.H{"payment": p, "completed": true, "wizard": view})
}

// ResendPaymentEmail handles POST /api/v1/payments/:id/resend-email
func (h *PaymentHandlers) ResendPaymentEmail(c *gin.Context) {
	ctx, persist := h.state.SessionContext(c.Request.Context(), middleware.StorageKey(c))
	defer persist()

	if err := h.payments.ResendEmail(ctx, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"sent": true})
}
