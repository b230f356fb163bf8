package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/benjarmc/portal-pji-project-sub000/internal/domain/events"
	"github.com/benjarmc/portal-pji-project-sub000/internal/domain/quoting"
	"github.com/benjarmc/portal-pji-project-sub000/internal/domain/wizard"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/backend"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/email"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/identity"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/media"
)

func backendServer(t *testing.T, handler http.HandlerFunc) *backend.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return backend.NewClient(backend.Config{BaseURL: srv.URL, APIKey: "k", Timeout: 2 * time.Second}, nil)
}

func reply(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	b, _ := json.Marshal(map[string]any{"success": status < 400, "data": data, "message": http.StatusText(status)})
	_, _ = w.Write(b)
}

func TestQuoteMainDataCreatesUserAndQuotation(t *testing.T) {
	var mu sync.Mutex
	var calls []string
	client := backendServer(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls = append(calls, r.Method+" "+r.URL.Path)
		mu.Unlock()
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/users":
			require.Equal(t, "ana@example.com", r.URL.Query().Get("email"))
			reply(w, 200, []any{})
		case r.Method == http.MethodPost && r.URL.Path == "/users":
			var req quoting.CreateUserRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Equal(t, "ana@example.com", req.Email)
			reply(w, 201, quoting.User{ID: "u1", Name: req.Name, Email: req.Email})
		case r.Method == http.MethodPost && r.URL.Path == "/quotations":
			var req quoting.CreateQuotationRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Equal(t, "u1", req.UserID)
			require.Equal(t, "p-premium", req.PlanID)
			require.Equal(t, 15000.0, req.MonthlyRent)
			reply(w, 201, quoting.Quotation{ID: "q1", QuotationNumber: "COT-0001", PlanID: req.PlanID})
		default:
			reply(w, 404, nil)
		}
	})

	users := NewUserService(client)
	svc := NewQuotationService(client, users, NewPaymentService(client), nil, nil)

	state := wizard.NewState("wiz_1", epoch)
	state.StepData.Welcome = &wizard.PlanSelection{PlanID: "p-premium", PlanName: "Premium", MonthlyRent: 15000}

	md, q, err := svc.QuoteMainData(context.Background(), state, wizard.MainData{
		Name: "Ana", Email: " Ana@Example.com ", Phone: "5512345678", PostalCode: "03100", UserType: "owner",
	})
	require.NoError(t, err)
	require.Equal(t, "q1", q.ID)
	require.Equal(t, "u1", md.UserID)
	require.Equal(t, "q1", md.QuotationID)
	require.Equal(t, "COT-0001", md.QuotationNumber)
	require.Equal(t, []string{"GET /users", "POST /users", "POST /quotations"}, calls)
}

func TestQuoteMainDataNeedsPlan(t *testing.T) {
	svc := NewQuotationService(nil, NewUserService(nil), nil, nil, nil)
	_, _, err := svc.QuoteMainData(context.Background(), wizard.NewState("wiz_1", epoch), wizard.MainData{})
	require.ErrorIs(t, err, wizard.ErrMissingStepData)
}

func TestEnsureReusesExistingUser(t *testing.T) {
	client := backendServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		reply(w, 200, []quoting.User{{ID: "u9", Email: "b@example.com"}})
	})
	u, err := NewUserService(client).Ensure(context.Background(), quoting.CreateUserRequest{Name: "B", Email: "b@example.com"})
	require.NoError(t, err)
	require.Equal(t, "u9", u.ID)
}

func TestSummaryLoadsInParallelAndToleratesMissing(t *testing.T) {
	client := backendServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/quotations/q1":
			reply(w, 200, quoting.Quotation{ID: "q1", QuotationNumber: "COT-1"})
		case "/payments/pay1":
			reply(w, 200, quoting.Payment{ID: "pay1", Status: "paid", PolicyNumber: "POL-7"})
		default:
			reply(w, 404, nil)
		}
	})
	svc := NewQuotationService(client, NewUserService(client), NewPaymentService(client), nil, nil)

	state := wizard.NewState("wiz_1", epoch)
	state.QuotationID = "q1"
	state.UserID = "gone"
	state.StepData.Payment = &wizard.PaymentData{PaymentID: "pay1", Status: "paid"}

	sum, err := svc.Summary(context.Background(), state)
	require.NoError(t, err)
	require.Equal(t, "COT-1", sum.Quotation.QuotationNumber)
	require.Nil(t, sum.User)
	require.Equal(t, "POL-7", sum.Payment.PolicyNumber)
	require.Equal(t, "POL-7", PaymentData(sum.Payment).PolicyNumber)
}

func TestInvestigatePartiesOpensOnePerParty(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]string{}
	client := backendServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req quoting.InvestigationRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		mu.Lock()
		seen[req.PartyType] = req.FirstName
		mu.Unlock()
		reply(w, 201, quoting.Investigation{ID: "inv-" + req.PartyType, QuotationID: req.QuotationID, PartyType: req.PartyType, Status: "pending"})
	})
	svc := NewInvestigationService(client)

	got, err := svc.InvestigateParties(context.Background(), "q1", &wizard.DataEntryData{
		Tenant: &wizard.PartyData{FirstName: "Luis", LastName: "P"},
		Owner:  &wizard.PartyData{FirstName: "Marta", LastName: "R"},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "inv-tenant", got["tenant"].ID)
	require.Equal(t, "inv-owner", got["owner"].ID)
	require.Equal(t, map[string]string{"tenant": "Luis", "owner": "Marta"}, seen)

	_, err = svc.InvestigateParties(context.Background(), "q1", nil)
	require.ErrorIs(t, err, wizard.ErrMissingStepData)
}

type fakeVerifier struct {
	started []identity.StartRequest
}

func (f *fakeVerifier) Configured() bool { return true }
func (f *fakeVerifier) StartVerification(_ context.Context, req identity.StartRequest) (*identity.Verification, error) {
	f.started = append(f.started, req)
	return &identity.Verification{ID: "ver-1", Status: "pending", URL: "https://id.example/v/ver-1"}, nil
}
func (f *fakeVerifier) SendVerificationEmail(context.Context, string, string) error { return nil }
func (f *fakeVerifier) VerificationURL(id string) string                          { return "https://id.example/v/" + id }
func (f *fakeVerifier) ImageCaptureURL(id string) string                          { return "https://id.example/capture/" + id }

func TestValidationStartFallsBackToIdentitySDK(t *testing.T) {
	client := backendServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/validation/start", r.URL.Path)
		reply(w, 200, quoting.Validation{ID: "val-1", Status: "pending"})
	})
	verifier := &fakeVerifier{}
	svc := NewValidationService(client, verifier, nil)

	data, err := svc.Start(context.Background(), quoting.StartValidationRequest{SessionID: "wiz_1", Name: "Ana", Email: "ana@example.com"})
	require.NoError(t, err)
	require.Equal(t, "val-1", data.ValidationID)
	require.Equal(t, "https://id.example/v/ver-1", data.VerificationURL)
	require.Equal(t, "https://id.example/capture/val-1", data.CaptureURL)
	require.Len(t, verifier.started, 1)
	require.Equal(t, "val-1", verifier.started[0].Reference)
}

func TestValidationWithoutIdentitySDK(t *testing.T) {
	svc := NewValidationService(nil, nil, nil)
	_, err := svc.VerificationURL("val-1")
	require.ErrorIs(t, err, ErrNotConfigured)
	require.ErrorIs(t, svc.SendVerificationEmail(context.Background(), "val-1", "a@b.c"), ErrNotConfigured)
}

func TestPaymentValidation(t *testing.T) {
	svc := NewPaymentService(nil)
	_, err := svc.CreatePayment(context.Background(), quoting.CreatePaymentRequest{QuotationID: "q1"})
	require.ErrorIs(t, err, ErrInvalidInput)
	require.ErrorIs(t, svc.ResendEmail(context.Background(), ""), ErrInvalidInput)
}

type fakeMailer struct {
	sent []email.ResumeLinkEmail
}

func (f *fakeMailer) SendResumeLink(_ context.Context, msg email.ResumeLinkEmail) (string, error) {
	f.sent = append(f.sent, msg)
	return "msg-1", nil
}

func TestResumeLinkSentToContactEmail(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := h.svc.Subscribe(ctx, "k1")
	require.NoError(t, err)

	h.svc.SaveState(ctx, "k1", wizard.Patch{
		CurrentStep: wizard.Ptr(wizard.StepPayment),
		StepData: wizard.StepData{
			Welcome:  &wizard.PlanSelection{PlanID: "p1", PlanName: "Premium"},
			MainData: &wizard.MainData{Name: "Ana", Email: "ana@example.com"},
		},
	})

	mailer := &fakeMailer{}
	svc := NewResumeLinkService(h.svc, mailer, "https://portal.example/", nil)
	id, err := svc.Send(ctx, "k1", "")
	require.NoError(t, err)
	require.Equal(t, "msg-1", id)
	require.Len(t, mailer.sent, 1)

	msg := mailer.sent[0]
	require.Equal(t, "ana@example.com", msg.To)
	require.Equal(t, "Premium", msg.PlanName)
	require.Equal(t, wizard.StepPayment.Title(), msg.StepTitle)
	require.Equal(t, "24 horas", msg.ExpiresIn)
	require.True(t, strings.HasPrefix(msg.ResumeURL, "https://portal.example/wizard?session=wiz_"))

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.Kind == events.KindResumeLinkEmailed {
				require.Equal(t, "msg-1", ev.Data["messageId"])
				return
			}
		case <-deadline:
			t.Fatal("resume link event not published")
		}
	}
}

func TestResumeLinkWithoutMailer(t *testing.T) {
	h := newHarness(t)
	_, err := NewResumeLinkService(h.svc, nil, "", nil).Send(context.Background(), "k1", "a@b.c")
	require.ErrorIs(t, err, ErrNotConfigured)
}

func pngDataURL(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestDocumentUploadReplacesSameKind(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	dir := t.TempDir()
	svc := NewDocumentService(h.svc, media.NewImageProcessor(media.ProcessorConfig{BasePath: dir, MaxWidth: 100}), nil, nil)

	h.svc.SaveState(ctx, "k1", wizard.Patch{StepData: wizard.StepData{DataEntry: &wizard.DataEntryData{
		Tenant: &wizard.PartyData{FirstName: "Luis", LastName: "P"},
	}}})

	first, _, err := svc.Upload(ctx, "k1", DocumentUpload{Party: "tenant", Kind: "ine-front", DataURL: pngDataURL(t, 300, 150)})
	require.NoError(t, err)
	require.Equal(t, 100, first.Width)
	require.Equal(t, 50, first.Height)

	second, state, err := svc.Upload(ctx, "k1", DocumentUpload{Party: "tenant", Kind: "ine-front", DataURL: pngDataURL(t, 40, 40)})
	require.NoError(t, err)

	tenant := state.StepData.DataEntry.Tenant
	require.Equal(t, "Luis", tenant.FirstName)
	require.Len(t, tenant.Documents, 1)
	require.Equal(t, second.ID, tenant.Documents[0].ID)

	path, err := svc.Path(ctx, "k1", second.ID)
	require.NoError(t, err)
	_, err = os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, ".webp", filepath.Ext(path))

	_, err = svc.Path(ctx, "k1", first.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDocumentUploadRejectsBadInput(t *testing.T) {
	h := newHarness(t)
	svc := NewDocumentService(h.svc, media.NewImageProcessor(media.ProcessorConfig{BasePath: t.TempDir()}), nil, nil)

	_, _, err := svc.Upload(context.Background(), "k1", DocumentUpload{Party: "landlord", Kind: "ine", DataURL: "x"})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, _, err = svc.Upload(context.Background(), "k1", DocumentUpload{Party: "tenant", Kind: "../etc", DataURL: "x"})
	require.ErrorIs(t, err, ErrInvalidInput)
}
