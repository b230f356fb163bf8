package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/benjarmc/portal-pji-project-sub000/internal/application/services"
	"github.com/benjarmc/portal-pji-project-sub000/internal/domain/wizard"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/backend"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/observability/logging"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/observability/performance"
	"github.com/benjarmc/portal-pji-project-sub000/internal/presentation/http/middleware"
)

const syncRequestTimeout = 15 * time.Second

// WizardHandlers contains the wizard session endpoints.
type WizardHandlers struct {
	flow        *services.WizardFlowService
	state       *services.WizardStateService
	quotations  *services.QuotationService
	resumeLinks *services.ResumeLinkService
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// NewWizardHandlers creates wizard handlers with injected dependencies
func NewWizardHandlers(flow *services.WizardFlowService, state *services.WizardStateService, quotations *services.QuotationService, resumeLinks *services.ResumeLinkService, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *WizardHandlers {
	return &WizardHandlers{
		flow:        flow,
		state:       state,
		quotations:  quotations,
		resumeLinks: resumeLinks,
		logger:      logger,
		perfTracker: perfTracker,
	}
}

type stepInputRequest struct {
	StepData wizard.StepData `json:"stepData"`
}

// Load handles GET /api/v1/wizard/load - recovers the session of a page load
func (h *WizardHandlers) Load(c *gin.Context) {
	view, err := h.flow.Load(c.Request.Context(), middleware.StorageKey(c), services.LoadRequest{
		SessionParam: c.Query("session"),
		StepParam:    c.Query("step"),
		PlanParam:    c.Query("plan"),
		ClientIP:     c.ClientIP(),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// GetState handles GET /api/v1/wizard
func (h *WizardHandlers) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, h.flow.View(c.Request.Context(), middleware.StorageKey(c)))
}

// SaveDraft handles PATCH /api/v1/wizard - autosaves the current step
func (h *WizardHandlers) SaveDraft(c *gin.Context) {
	var req stepInputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.flow.SaveDraft(c.Request.Context(), middleware.StorageKey(c), req.StepData))
}

// Next handles POST /api/v1/wizard/next
func (h *WizardHandlers) Next(c *gin.Context) {
	key := middleware.StorageKey(c)
	marker := h.perfTracker.StartOperation("wizard_next_request", logging.MaskID(key))
	defer marker.Complete()

	var req stepInputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	ctx := c.Request.Context()
	current := h.state.GetState(ctx, key)
	if current.CurrentStep == wizard.StepMainData && req.StepData.MainData != nil {
		if err := services.ValidateStepInput(wizard.StepMainData, req.StepData); err != nil {
			marker.SetError(err)
			respondError(c, err)
			return
		}
		if req.StepData.MainData.QuotationID == "" {
			bctx, persist := h.state.SessionContext(ctx, key)
			md, _, err := h.quotations.QuoteMainData(bctx, current, *req.StepData.MainData)
			persist()
			if err != nil {
				marker.SetError(err)
				respondError(c, err)
				return
			}
			req.StepData.MainData = md
		}
	}

	view, err := h.flow.Next(ctx, key, req.StepData)
	if err != nil {
		marker.SetError(err)
		respondError(c, err)
		return
	}
	marker.SetSuccess(true)
	c.JSON(http.StatusOK, view)
}

// Prev handles POST /api/v1/wizard/prev
func (h *WizardHandlers) Prev(c *gin.Context) {
	view, err := h.flow.Prev(c.Request.Context(), middleware.StorageKey(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// GoTo handles PUT /api/v1/wizard/step/:step
func (h *WizardHandlers) GoTo(c *gin.Context) {
	n, err := strconv.Atoi(c.Param("step"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "step must be a number"})
		return
	}
	view, err := h.flow.SetCurrentStep(c.Request.Context(), middleware.StorageKey(c), wizard.Step(n))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Sync handles POST /api/v1/wizard/sync - flushes now and waits for the
// backend. A rate-limited flush is reported as deferred.
func (h *WizardHandlers) Sync(c *gin.Context) {
	key := middleware.StorageKey(c)
	ctx, cancel := context.WithTimeout(c.Request.Context(), syncRequestTimeout)
	defer cancel()

	synced, err := h.state.SyncWithBackend(ctx, key, h.state.GetState(ctx, key))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"state": synced, "synced": true})
	case backend.IsRateLimited(err), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusAccepted, gin.H{"state": h.state.GetState(c.Request.Context(), key), "synced": false, "deferred": true})
	default:
		respondError(c, err)
	}
}

// Ping handles POST /api/v1/wizard/activity - keeps the session alive
func (h *WizardHandlers) Ping(c *gin.Context) {
	if _, ok := h.state.Touch(c.Request.Context(), middleware.StorageKey(c)); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active wizard session"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Restart handles POST /api/v1/wizard/restart
func (h *WizardHandlers) Restart(c *gin.Context) {
	c.JSON(http.StatusOK, h.flow.Restart(c.Request.Context(), middleware.StorageKey(c)))
}

// Clear handles DELETE /api/v1/wizard?mode=abandon|delete|local
func (h *WizardHandlers) Clear(c *gin.Context) {
	mode := services.ClearAbandon
	switch c.DefaultQuery("mode", "abandon") {
	case "abandon":
	case "delete":
		mode = services.ClearDelete
	case "local":
		mode = services.ClearLocalOnly
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be abandon, delete or local"})
		return
	}
	if err := h.state.Clear(c.Request.Context(), middleware.StorageKey(c), mode); err != nil {
		h.logger.Wizard().Warn("Backend session could not be released", "error", err.Error())
		c.JSON(http.StatusAccepted, gin.H{"cleared": true, "backendError": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}

// SendResumeLink handles POST /api/v1/wizard/resume-link
func (h *WizardHandlers) SendResumeLink(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"omitempty,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	id, err := h.resumeLinks.Send(c.Request.Context(), middleware.StorageKey(c), req.Email)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"messageId": id})
}

// Summary handles GET /api/v1/wizard/summary
func (h *WizardHandlers) Summary(c *gin.Context) {
	key := middleware.StorageKey(c)
	ctx, persist := h.state.SessionContext(c.Request.Context(), key)
	defer persist()

	summary, err := h.quotations.Summary(ctx, h.state.GetState(ctx, key))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
