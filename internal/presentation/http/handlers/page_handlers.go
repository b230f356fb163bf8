package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/benjarmc/portal-pji-project-sub000/internal/application/services"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/observability/logging"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/observability/performance"
	"github.com/benjarmc/portal-pji-project-sub000/internal/presentation/http/middleware"
	"github.com/benjarmc/portal-pji-project-sub000/internal/presentation/templates"
)

// PageHandlers renders the landing and wizard pages.
type PageHandlers struct {
	flow        *services.WizardFlowService
	plans       *services.PlanService
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// NewPageHandlers creates page handlers
func NewPageHandlers(flow *services.WizardFlowService, plans *services.PlanService, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *PageHandlers {
	return &PageHandlers{flow: flow, plans: plans, logger: logger, perfTracker: perfTracker}
}

// Landing handles GET /
func (h *PageHandlers) Landing(c *gin.Context) {
	page := templates.LandingPage{Title: "Inicio"}
	plans, err := h.plans.ListPlans(c.Request.Context())
	if err != nil {
		h.logger.HTTP().Warn("Plans unavailable for landing page", "error", err.Error())
		page.Error = "No pudimos cargar los planes. Intenta de nuevo en unos minutos."
	}
	page.Plans = plans
	h.render(c, http.StatusOK, "landing", page)
}

// Wizard handles GET /wizard?session=&step=&plan= - recovers the visitor's
// session and renders the current step.
func (h *PageHandlers) Wizard(c *gin.Context) {
	key := middleware.StorageKey(c)
	marker := h.perfTracker.StartOperation("wizard_page", logging.MaskID(key))
	defer marker.Complete()

	view, err := h.flow.Load(c.Request.Context(), key, services.LoadRequest{
		SessionParam: c.Query("session"),
		StepParam:    c.Query("step"),
		PlanParam:    c.Query("plan"),
		ClientIP:     c.ClientIP(),
	})
	if err != nil {
		marker.SetError(err)
		h.render(c, statusFor(err), "error", templates.ErrorPage{
			Title: "No pudimos abrir tu cotización",
			Error: "Intenta de nuevo en unos minutos.",
		})
		return
	}
	page, err := templates.NewWizardPage(view)
	if err != nil {
		marker.SetError(err)
		respondError(c, err)
		return
	}
	marker.SetSuccess(true)
	c.Header("Cache-Control", "no-store")
	h.render(c, http.StatusOK, "wizard", page)
}

func (h *PageHandlers) render(c *gin.Context, status int, name string, data any) {
	c.Status(status)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := templates.Render(c.Writer, name, data); err != nil {
		h.logger.HTTP().Error("Page render failed", "page", name, "error", err.Error())
		c.AbortWithStatus(http.StatusInternalServerError)
	}
}

// HealthHandlers reports liveness.
type HealthHandlers struct {
	state   *services.WizardStateService
	perf    *performance.Tracker
	started time.Time
}

// NewHealthHandlers creates health handlers
func NewHealthHandlers(state *services.WizardStateService, perf *performance.Tracker) *HealthHandlers {
	return &HealthHandlers{state: state, perf: perf, started: time.Now()}
}

// Health handles GET /healthz
func (h *HealthHandlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"uptime":       time.Since(h.started).Round(time.Second).String(),
		"stateTimeout": h.state.Timeout().String(),
	})
}

// Stats handles GET /healthz/perf - per-operation timings.
func (h *HealthHandlers) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"operations": h.perf.Stats(), "uptime": h.perf.Uptime().String()})
}
