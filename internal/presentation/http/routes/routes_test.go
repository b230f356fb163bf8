package routes

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/benjarmc/portal-pji-project-sub000/internal/application/container"
	"github.com/benjarmc/portal-pji-project-sub000/internal/application/services"
	"github.com/benjarmc/portal-pji-project-sub000/internal/domain/quoting"
	"github.com/benjarmc/portal-pji-project-sub000/internal/domain/wizard"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/backend"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/clock"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/messaging"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/observability/logging"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/observability/performance"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/persistence/state"
	"github.com/benjarmc/portal-pji-project-sub000/internal/presentation/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeBackend answers the quoting backend endpoints the portal calls.
type fakeBackend struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeBackend) called(call string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == call {
			return true
		}
	}
	return false
}

func reply(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	b, _ := json.Marshal(map[string]any{"success": status < 400, "data": data, "message": http.StatusText(status)})
	_, _ = w.Write(b)
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.calls = append(f.calls, r.Method+" "+r.URL.Path)
	f.mu.Unlock()

	path := r.URL.Path
	switch {
	case r.Method == http.MethodPost && path == "/wizard-session":
		var req backend.CreateSessionRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		reply(w, 201, backend.SessionRecord{
			State: wizard.State{
				ID:             "srv-1",
				SessionID:      req.SessionID,
				CurrentStep:    req.CurrentStep,
				CompletedSteps: req.CompletedSteps,
				StepData:       req.StepData,
				Status:         wizard.StatusActive,
			},
			AccessToken:  "access",
			RefreshToken: "refresh",
		})
	case r.Method == http.MethodPatch && strings.HasPrefix(path, "/wizard-session/") && strings.HasSuffix(path, "/step"):
		var u backend.StepUpdate
		_ = json.NewDecoder(r.Body).Decode(&u)
		reply(w, 200, backend.SessionRecord{State: wizard.State{
			ID:             strings.TrimSuffix(strings.TrimPrefix(path, "/wizard-session/"), "/step"),
			SessionID:      u.SessionID,
			CurrentStep:    u.CurrentStep,
			CompletedSteps: u.CompletedSteps,
			StepData:       u.StepData,
			Status:         u.Status,
		}})
	case r.Method == http.MethodGet && strings.HasPrefix(path, "/wizard-session/"):
		reply(w, 404, nil)
	case r.Method == http.MethodGet && path == "/plans":
		reply(w, 200, []quoting.Plan{{ID: "p-basic", Name: "Esencial", Tier: "esencial", Price: 3500, Currency: "MXN", IsActive: true, Description: "Cobertura **básica**"}})
	case r.Method == http.MethodGet && path == "/plans/p-basic":
		reply(w, 200, quoting.Plan{ID: "p-basic", Name: "Esencial", Tier: "esencial", Price: 3500, Currency: "MXN", IsActive: true})
	case r.Method == http.MethodGet && path == "/users":
		reply(w, 200, []quoting.User{})
	case r.Method == http.MethodPost && path == "/users":
		reply(w, 201, quoting.User{ID: "u1", Name: "Ana", Email: "ana@example.com"})
	case r.Method == http.MethodPost && path == "/quotations":
		var req quoting.CreateQuotationRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		reply(w, 201, quoting.Quotation{ID: "q1", QuotationNumber: "COT-0001", PlanID: req.PlanID, MonthlyRent: req.MonthlyRent, Total: 3500})
	case r.Method == http.MethodPost && path == "/quotations/q1/send-email":
		reply(w, 200, nil)
	case r.Method == http.MethodPost && path == "/payments":
		var req quoting.CreatePaymentRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		reply(w, 201, quoting.Payment{ID: "pay1", QuotationID: req.QuotationID, Amount: req.Amount, Method: req.Method, Status: "completed", PolicyNumber: "POL-1"})
	default:
		reply(w, 404, nil)
	}
}

type testEnv struct {
	router  *gin.Engine
	backend *fakeBackend
	cookie  *http.Cookie
}

// newTestEnv uses a fake clock, which keeps debounced flushes from firing.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithClock(t, clock.NewFake(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)), services.SyncPolicy{})
}

func newTestEnvWithClock(t *testing.T, clk clock.Clock, policy services.SyncPolicy) *testEnv {
	t.Helper()
	fb := &fakeBackend{}
	srv := httptest.NewServer(fb)
	t.Cleanup(srv.Close)

	logger := logging.NewNopLogger()
	perf := performance.NewTracker(nil)
	client := backend.NewClient(backend.Config{BaseURL: srv.URL, Timeout: 2 * time.Second}, logger)

	codec, err := state.NewCodec("")
	require.NoError(t, err)
	bus := messaging.NewEventBus(logger)
	t.Cleanup(func() { _ = bus.Close() })

	stateSvc := services.NewWizardStateService(state.NewMemoryRepository(codec), client, bus, clk,
		services.WizardStateConfig{Timeout: 24 * time.Hour, Policy: policy}, logger, perf)

	prices, err := quoting.DefaultPriceTable()
	require.NoError(t, err)
	plans := services.NewPlanService(client, prices, time.Minute, logger, perf)
	users := services.NewUserService(client)
	payments := services.NewPaymentService(client)

	c := &container.Container{
		WizardStateService:   stateSvc,
		WizardFlowService:    services.NewWizardFlowService(stateSvc, plans, services.FlowConfig{}, logger, perf),
		PlanService:          plans,
		QuotationService:     services.NewQuotationService(client, users, payments, logger, perf),
		UserService:          users,
		PaymentService:       payments,
		InvestigationService: services.NewInvestigationService(client),
		ValidationService:    services.NewValidationService(client, nil, logger),
		ResumeLinkService:    services.NewResumeLinkService(stateSvc, nil, "https://portal.example", logger),
		Logger:               logger,
		PerfTracker:          perf,
		EventBus:             bus,
		Backend:              client,
	}
	c.DocumentService = services.NewDocumentService(stateSvc, nil, logger, perf)

	router := SetupRoutes(c, Options{
		Session: middleware.SessionConfig{CookieName: "pji_session", Secret: "test-secret", TTL: time.Hour},
	})
	return &testEnv{router: router, backend: fb}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "203.0.113.7:4321"
	if e.cookie != nil {
		req.AddCookie(e.cookie)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	for _, c := range w.Result().Cookies() {
		if c.Name == "pji_session" {
			e.cookie = c
		}
	}
	return w
}

type flowResponse struct {
	State       *wizard.State `json:"state"`
	CurrentStep int           `json:"currentStep"`
	Component   string        `json:"component"`
	CanGoBack   bool          `json:"canGoBack"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func welcomeInput() map[string]any {
	return map[string]any{"stepData": map[string]any{
		"0": map[string]any{"planId": "p-basic", "planName": "Esencial", "monthlyRent": 12000, "price": 4900},
	}}
}

func mainDataInput() map[string]any {
	return map[string]any{"stepData": map[string]any{
		"1": map[string]any{"name": "Ana López", "email": "ana@example.com", "phone": "55 1234 5678", "postalCode": "03100"},
	}}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestWizardPageIssuesCookieAndPreselectsPlan(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/wizard?plan=p-basic", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "Elige tu plan")
	require.Contains(t, w.Body.String(), `id="wizard-state"`)
	require.NotNil(t, env.cookie)
	require.True(t, env.cookie.HttpOnly)

	w = env.do(t, http.MethodGet, "/api/v1/wizard", nil)
	require.Equal(t, http.StatusOK, w.Code)
	view := decode[flowResponse](t, w)
	require.Equal(t, "welcome", view.Component)
	require.NotNil(t, view.State.StepData.Welcome)
	require.Equal(t, "Esencial", view.State.StepData.Welcome.PlanName)
	require.NotEmpty(t, view.State.SessionID)
}

func TestNextThroughMainDataCreatesQuotation(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/api/v1/wizard/load", nil)

	w := env.do(t, http.MethodPost, "/api/v1/wizard/next", welcomeInput())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, int(wizard.StepMainData), decode[flowResponse](t, w).CurrentStep)

	w = env.do(t, http.MethodPost, "/api/v1/wizard/next", mainDataInput())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	view := decode[flowResponse](t, w)
	require.Equal(t, int(wizard.StepPayment), view.CurrentStep)
	require.Equal(t, "q1", view.State.QuotationID)
	require.Equal(t, "COT-0001", view.State.StepData.MainData.QuotationNumber)
	require.Equal(t, "u1", view.State.UserID)

	require.True(t, env.backend.called("POST /users"))
	require.True(t, env.backend.called("POST /quotations"))
}

func TestNextRejectsInvalidMainData(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/v1/wizard/next", welcomeInput())

	w := env.do(t, http.MethodPost, "/api/v1/wizard/next", map[string]any{"stepData": map[string]any{
		"1": map[string]any{"name": "A", "email": "not-an-email", "phone": "12"},
	}})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := decode[map[string]any](t, w)
	fields := body["fields"].(map[string]any)
	require.Contains(t, fields, "email")
	require.Contains(t, fields, "phone")
	require.False(t, env.backend.called("POST /quotations"))
}

func TestStepNavigationErrors(t *testing.T) {
	env := newTestEnv(t)

	require.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPut, "/api/v1/wizard/step/abc", nil).Code)
	require.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPut, "/api/v1/wizard/step/9", nil).Code)
	require.Equal(t, http.StatusConflict, env.do(t, http.MethodPut, "/api/v1/wizard/step/3", nil).Code)

	env.do(t, http.MethodPost, "/api/v1/wizard/next", welcomeInput())
	w := env.do(t, http.MethodPost, "/api/v1/wizard/prev", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, int(wizard.StepWelcome), decode[flowResponse](t, w).CurrentStep)
}

func TestDraftDoesNotAdvance(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPatch, "/api/v1/wizard", welcomeInput())
	require.Equal(t, http.StatusOK, w.Code)
	view := decode[flowResponse](t, w)
	require.Equal(t, int(wizard.StepWelcome), view.CurrentStep)
	require.Equal(t, "p-basic", view.State.StepData.Welcome.PlanID)
}

func TestSyncPushesToBackend(t *testing.T) {
	env := newTestEnvWithClock(t, clock.Real(), services.SyncPolicy{Debounce: 10 * time.Millisecond})
	env.do(t, http.MethodPost, "/api/v1/wizard/next", welcomeInput())

	w := env.do(t, http.MethodPost, "/api/v1/wizard/sync", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Contains(t, w.Body.String(), `"synced":true`)
	require.True(t, env.backend.called("POST /wizard-session"))

	w = env.do(t, http.MethodGet, "/api/v1/wizard", nil)
	require.Equal(t, "srv-1", decode[flowResponse](t, w).State.ID)
}

func TestPaymentAdvancesToValidation(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/v1/wizard/next", welcomeInput())
	env.do(t, http.MethodPost, "/api/v1/wizard/next", mainDataInput())

	w := env.do(t, http.MethodPost, "/api/v1/payments", map[string]any{"token": "tok_visa"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var body struct {
		Completed bool            `json:"completed"`
		Payment   quoting.Payment `json:"payment"`
		Wizard    flowResponse    `json:"wizard"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.True(t, body.Completed)
	require.Equal(t, "q1", body.Payment.QuotationID)
	require.Equal(t, 4900.0, body.Payment.Amount)
	require.Equal(t, int(wizard.StepValidation), body.Wizard.CurrentStep)
	require.False(t, body.Wizard.CanGoBack)
}

func TestQuotationEmailFinishesFlow(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/v1/wizard/next", welcomeInput())
	env.do(t, http.MethodPost, "/api/v1/wizard/next", mainDataInput())

	w := env.do(t, http.MethodPost, "/api/v1/quotations/q1/email", map[string]any{})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.True(t, env.backend.called("POST /quotations/q1/send-email"))

	w = env.do(t, http.MethodGet, "/api/v1/wizard", nil)
	view := decode[flowResponse](t, w)
	require.Equal(t, int(wizard.StepFinish), view.CurrentStep)
	require.True(t, view.State.StepData.MainData.QuotationEmailed)
}

func TestPlansAndEstimate(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/plans", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		Plans []services.PlanView `json:"plans"`
	}](t, w)
	require.Len(t, list.Plans, 1)
	require.Contains(t, string(list.Plans[0].DescriptionHTML), "<strong>básica</strong>")

	w = env.do(t, http.MethodGet, "/api/v1/plans/estimate?tier=premium&rent=15000", nil)
	require.Equal(t, http.StatusOK, w.Code)
	est := decode[quoting.Estimate](t, w)
	require.Equal(t, 6500.0, est.Price)
	require.Equal(t, "MXN", est.Currency)

	require.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/v1/plans/estimate?tier=premium&rent=x", nil).Code)
	require.Equal(t, http.StatusUnprocessableEntity, env.do(t, http.MethodGet, "/api/v1/plans/estimate?tier=oro&rent=1000", nil).Code)
}

func TestClearModes(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/v1/wizard/next", welcomeInput())

	require.Equal(t, http.StatusBadRequest, env.do(t, http.MethodDelete, "/api/v1/wizard?mode=bogus", nil).Code)

	w := env.do(t, http.MethodDelete, "/api/v1/wizard?mode=local", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/wizard", nil)
	require.Equal(t, int(wizard.StepWelcome), decode[flowResponse](t, w).CurrentStep)
}

func TestUnconfiguredIntegrations(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/wizard/resume-link", map[string]any{"email": "ana@example.com"})
	require.Equal(t, http.StatusNotImplemented, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/validations/v1/links", nil)
	require.Equal(t, http.StatusNotImplemented, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/wizard/documents/missing", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestActivityRequiresSession(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/api/v1/wizard/activity", nil).Code)

	env.do(t, http.MethodGet, "/api/v1/wizard", nil)
	require.Equal(t, http.StatusNoContent, env.do(t, http.MethodPost, "/api/v1/wizard/activity", nil).Code)
}
