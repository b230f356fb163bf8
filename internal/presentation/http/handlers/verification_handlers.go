package handlers

import (
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/benjarmc/portal-pji-project-sub000/internal/application/services"
	"github.com/benjarmc/portal-pji-project-sub000/internal/domain/quoting"
	"github.com/benjarmc/portal-pji-project-sub000/internal/domain/wizard"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/observability/logging"
	"github.com/benjarmc/portal-pji-project-sub000/internal/presentation/http/middleware"
)

// VerificationHandlers covers identity validation, credit-bureau
// investigations and document photos.
type VerificationHandlers struct {
	validations    *services.ValidationService
	investigations *services.InvestigationService
	documents      *services.DocumentService
	state          *services.WizardStateService
	logger         *logging.ChanneledLogger
}

// NewVerificationHandlers creates verification handlers
func NewVerificationHandlers(validations *services.ValidationService, investigations *services.InvestigationService, documents *services.DocumentService, state *services.WizardStateService, logger *logging.ChanneledLogger) *VerificationHandlers {
	return &VerificationHandlers{
		validations:    validations,
		investigations: investigations,
		documents:      documents,
		state:          state,
		logger:         logger,
	}
}

// StartValidation handles POST /api/v1/validations. The subject defaults to
// the wizard contact; the result is recorded on the validation step.
func (h *VerificationHandlers) StartValidation(c *gin.Context) {
	var req struct {
		Name  string `json:"name"`
		Email string `json:"email" binding:"omitempty,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	key := middleware.StorageKey(c)
	ctx, persist := h.state.SessionContext(c.Request.Context(), key)
	defer persist()

	state := h.state.GetState(ctx, key)
	sr := quoting.StartValidationRequest{
		SessionID:   state.SessionID,
		QuotationID: state.QuotationID,
		Name:        req.Name,
		Email:       req.Email,
	}
	if contact := state.Contact(); contact != nil {
		if sr.Name == "" {
			sr.Name = contact.Name
		}
		if sr.Email == "" {
			sr.Email = contact.Email
		}
	}

	data, err := h.validations.Start(ctx, sr)
	if err != nil {
		respondError(c, err)
		return
	}
	saved := h.state.SaveState(ctx, key, wizard.Patch{StepData: wizard.StepData{Validation: data}})
	c.JSON(http.StatusCreated, gin.H{"validation": data, "state": saved})
}

// ValidationStatus handles GET /api/v1/validations/:id. The status of the
// session's own validation is written back to the step.
func (h *VerificationHandlers) ValidationStatus(c *gin.Context) {
	key := middleware.StorageKey(c)
	ctx, persist := h.state.SessionContext(c.Request.Context(), key)
	defer persist()

	data, err := h.validations.Status(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if current := h.state.GetState(ctx, key).StepData.Validation; current != nil && current.ValidationID == data.ValidationID {
		merged := *current
		merged.Status = data.Status
		merged.Verified = data.Verified
		if data.VerificationURL != "" {
			merged.VerificationURL = data.VerificationURL
		}
		h.state.SaveState(ctx, key, wizard.Patch{StepData: wizard.StepData{Validation: &merged}})
	}
	c.JSON(http.StatusOK, data)
}

// ResendValidation handles POST /api/v1/validations/:id/resend
func (h *VerificationHandlers) ResendValidation(c *gin.Context) {
	ctx, persist := h.state.SessionContext(c.Request.Context(), middleware.StorageKey(c))
	defer persist()

	if err := h.validations.Resend(ctx, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"sent": true})
}

// SendVerificationEmail handles POST /api/v1/validations/:id/verification-email
func (h *VerificationHandlers) SendVerificationEmail(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if err := h.validations.SendVerificationEmail(c.Request.Context(), c.Param("id"), req.Email); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"sent": true})
}

// VerificationLinks handles GET /api/v1/validations/:id/links
func (h *VerificationHandlers) VerificationLinks(c *gin.Context) {
	id := c.Param("id")
	verify, err := h.validations.VerificationURL(id)
	if err != nil {
		respondError(c, err)
		return
	}
	capture, err := h.validations.ImageCaptureURL(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"verificationUrl": verify, "captureUrl": capture})
}

// InvestigateParties handles POST /api/v1/wizard/investigations - opens a
// credit check for every party captured on the data-entry step.
func (h *VerificationHandlers) InvestigateParties(c *gin.Context) {
	key := middleware.StorageKey(c)
	ctx, persist := h.state.SessionContext(c.Request.Context(), key)
	defer persist()

	state := h.state.GetState(ctx, key)
	found, err := h.investigations.InvestigateParties(ctx, state.QuotationID, state.StepData.DataEntry)
	if err != nil {
		respondError(c, err)
		return
	}
	if tenant, ok := found["tenant"]; ok && tenant != nil {
		entry := *state.StepData.DataEntry
		entry.InvestigationID = tenant.ID
		h.state.SaveState(ctx, key, wizard.Patch{StepData: wizard.StepData{DataEntry: &entry}})
	}
	c.JSON(http.StatusCreated, gin.H{"investigations": found})
}

// CreateInvestigation handles POST /api/v1/investigations
func (h *VerificationHandlers) CreateInvestigation(c *gin.Context) {
	var req quoting.InvestigationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	ctx, persist := h.state.SessionContext(c.Request.Context(), middleware.StorageKey(c))
	defer persist()

	inv, err := h.investigations.CreateInvestigation(ctx, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, inv)
}

// GetInvestigation handles GET /api/v1/investigations/:id
func (h *VerificationHandlers) GetInvestigation(c *gin.Context) {
	ctx, persist := h.state.SessionContext(c.Request.Context(), middleware.StorageKey(c))
	defer persist()

	inv, err := h.investigations.GetInvestigation(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

// UpdateInvestigation handles PUT /api/v1/investigations/:id
func (h *VerificationHandlers) UpdateInvestigation(c *gin.Context) {
	var req quoting.InvestigationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	ctx, persist := h.state.SessionContext(c.Request.Context(), middleware.StorageKey(c))
	defer persist()

	inv, err := h.investigations.UpdateInvestigation(ctx, c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

// DeleteInvestigation handles DELETE /api/v1/investigations/:id
func (h *VerificationHandlers) DeleteInvestigation(c *gin.Context) {
	ctx, persist := h.state.SessionContext(c.Request.Context(), middleware.StorageKey(c))
	defer persist()

	if err := h.investigations.DeleteInvestigation(ctx, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListInvestigations handles GET /api/v1/quotations/:id/investigations
func (h *VerificationHandlers) ListInvestigations(c *gin.Context) {
	ctx, persist := h.state.SessionContext(c.Request.Context(), middleware.StorageKey(c))
	defer persist()

	list, err := h.investigations.ListByQuotation(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"investigations": list, "count": len(list)})
}

// UploadDocument handles POST /api/v1/wizard/documents
func (h *VerificationHandlers) UploadDocument(c *gin.Context) {
	var req services.DocumentUpload
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	ref, state, err := h.documents.Upload(c.Request.Context(), middleware.StorageKey(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"document": ref, "state": state})
}

// GetDocument handles GET /api/v1/wizard/documents/:id. Only documents of
// the caller's own session resolve.
func (h *VerificationHandlers) GetDocument(c *gin.Context) {
	path, err := h.documents.Path(c.Request.Context(), middleware.StorageKey(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Cache-Control", "private, max-age=300")
	c.Header("Content-Disposition", "inline; filename="+filepath.Base(path))
	c.File(path)
}
