package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/benjarmc/portal-pji-project-sub000/internal/application/services"
	"github.com/benjarmc/portal-pji-project-sub000/internal/domain/quoting"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/observability/logging"
	"github.com/benjarmc/portal-pji-project-sub000/internal/presentation/http/middleware"
)

// PlanHandlers serves the plan catalog.
type PlanHandlers struct {
	plans  *services.PlanService
	logger *logging.ChanneledLogger
}

// NewPlanHandlers creates plan handlers
func NewPlanHandlers(plans *services.PlanService, logger *logging.ChanneledLogger) *PlanHandlers {
	return &PlanHandlers{plans: plans, logger: logger}
}

// ListPlans handles GET /api/v1/plans
func (h *PlanHandlers) ListPlans(c *gin.Context) {
	plans, err := h.plans.ListPlans(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"plans": plans, "count": len(plans)})
}

// GetPlan handles GET /api/v1/plans/:id
func (h *PlanHandlers) GetPlan(c *gin.Context) {
	plan, err := h.plans.GetPlanView(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

// Estimate handles GET /api/v1/plans/estimate?tier=&rent=
func (h *PlanHandlers) Estimate(c *gin.Context) {
	rent, err := strconv.ParseFloat(c.Query("rent"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "rent must be a number"})
		return
	}
	est, err := h.plans.Estimate(c.Query("tier"), rent)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "tiers": h.plans.Tiers()})
		return
	}
	c.JSON(http.StatusOK, est)
}

// QuotationHandlers exposes quotations and users. Backend calls carry the
// tokens of the caller's wizard session.
type QuotationHandlers struct {
	quotations *services.QuotationService
	users      *services.UserService
	state      *services.WizardStateService
	flow       *services.WizardFlowService
	logger     *logging.ChanneledLogger
}

// NewQuotationHandlers creates quotation handlers
func NewQuotationHandlers(quotations *services.QuotationService, users *services.UserService, state *services.WizardStateService, flow *services.WizardFlowService, logger *logging.ChanneledLogger) *QuotationHandlers {
	return &QuotationHandlers{quotations: quotations, users: users, state: state, flow: flow, logger: logger}
}

// CreateQuotation handles POST /api/v1/quotations
func (h *QuotationHandlers) CreateQuotation(c *gin.Context) {
	var req quoting.CreateQuotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	ctx, persist := h.state.SessionContext(c.Request.Context(), middleware.StorageKey(c))
	defer persist()

	q, err := h.quotations.CreateQuotation(ctx, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, q)
}

// GetQuotation handles GET /api/v1/quotations/:id
func (h *QuotationHandlers) GetQuotation(c *gin.Context) {
	ctx, persist := h.state.SessionContext(c.Request.Context(), middleware.StorageKey(c))
	defer persist()

	q, err := h.quotations.GetQuotation(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

// UpdateQuotation handles PUT /api/v1/quotations/:id
func (h *QuotationHandlers) UpdateQuotation(c *gin.Context) {
	var req quoting.UpdateQuotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	ctx, persist := h.state.SessionContext(c.Request.Context(), middleware.StorageKey(c))
	defer persist()

	q, err := h.quotations.UpdateQuotation(ctx, c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

// SendQuotationEmail handles POST /api/v1/quotations/:id/email. The email
// defaults to the contact of the wizard session, and the main-data step
// remembers that the quotation went out.
func (h *QuotationHandlers) SendQuotationEmail(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"omitempty,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	key := middleware.StorageKey(c)
	ctx, persist := h.state.SessionContext(c.Request.Context(), key)
	defer persist()

	to := req.Email
	if to == "" {
		if contact := h.state.GetState(ctx, key).Contact(); contact != nil {
			to = contact.Email
		}
	}
	id := c.Param("id")
	if err := h.quotations.SendByEmail(ctx, id, to); err != nil {
		respondError(c, err)
		return
	}

	view, err := h.flow.OnQuotationEmailed(ctx, key, id)
	if err != nil {
		h.logger.Wizard().Warn("Quotation emailed but wizard state not updated", "quotationId", id, "error", err.Error())
		c.JSON(http.StatusOK, gin.H{"sent": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sent": true, "wizard": view})
}

// CreateUser handles POST /api/v1/users
func (h *QuotationHandlers) CreateUser(c *gin.Context) {
	var req quoting.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	ctx, persist := h.state.SessionContext(c.Request.Context(), middleware.StorageKey(c))
	defer persist()

	u, err := h.users.CreateUser(ctx, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

// GetUser handles GET /api/v1/users/:id
func (h *QuotationHandlers) GetUser(c *gin.Context) {
	ctx, persist := h.state.SessionContext(c.Request.Context(), middleware.StorageKey(c))
	defer persist()

	u, err := h.users.GetUser(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// UpdateUser handles PUT /api/v1/users/:id
func (h *QuotationHandlers) UpdateUser(c *gin.Context) {
	var req quoting.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	ctx, persist := h.state.SessionContext(c.Request.Context(), middleware.StorageKey(c))
	defer persist()

	u, err := h.users.UpdateUser(ctx, c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}
