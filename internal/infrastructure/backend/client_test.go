package backend

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/benjarmc/portal-pji-project-sub000/internal/domain/quoting"
	"github.com/benjarmc/portal-pji-project-sub000/internal/domain/wizard"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL + "/api/v1", APIKey: "key-1", Timeout: 2 * time.Second}, nil)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	b, _ := json.Marshal(v)
	_, _ = w.Write(b)
}

func TestEnvelopeUnwrappedAndHeadersSent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/plans", r.URL.Path)
		require.Equal(t, "key-1", r.Header.Get("X-API-Key"))
		require.Equal(t, "Bearer a1", r.Header.Get("Authorization"))
		writeJSON(w, 200, map[string]any{
			"success": true,
			"data":    []map[string]any{{"id": "p1", "name": "Esencial", "price": 3500}},
		})
	})

	ctx := WithCredentials(context.Background(), NewCredentials("a1", "r1"))
	plans, err := client.ListPlans(ctx)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	require.Equal(t, "p1", plans[0].ID)
	require.NotNil(t, plans[0].Features)
}

func TestBareBodyAccepted(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Empty(t, r.Header.Get("Authorization"))
		writeJSON(w, 200, map[string]any{"id": "q1", "quotationNumber": "COT-1", "planId": "p1"})
	})

	q, err := client.GetQuotation(context.Background(), "q1")
	require.NoError(t, err)
	require.Equal(t, "COT-1", q.QuotationNumber)
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		status  int
		body    any
		target  error
		message string
	}{
		{429, map[string]any{"message": "slow down"}, ErrRateLimited, "slow down"},
		{400, map[string]any{"success": false, "message": "Too Many Requests"}, ErrRateLimited, "Too Many Requests"},
		{404, map[string]any{"message": "No active session for this IP"}, ErrNotFound, "No active session for this IP"},
		{422, map[string]any{"success": false, "message": "email invalid"}, ErrDomain, "email invalid"},
		{503, map[string]any{"error": "down"}, ErrServer, "down"},
	}
	for _, tc := range cases {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, tc.status, tc.body)
		})
		_, err := client.GetPlan(context.Background(), "p1")
		require.ErrorIs(t, err, tc.target, "status %d", tc.status)

		var be *Error
		require.ErrorAs(t, err, &be)
		require.Equal(t, tc.status, be.Status)
		require.Equal(t, tc.message, be.Message)
	}
}

func TestSuccessFalseIsDomainError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]any{"success": false, "message": "plan inactive"})
	})
	_, err := client.GetPlan(context.Background(), "p1")
	require.ErrorIs(t, err, ErrDomain)
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	client := NewClient(Config{BaseURL: srv.URL, Timeout: 500 * time.Millisecond}, nil)

	_, err := client.GetPlan(context.Background(), "p1")
	require.ErrorIs(t, err, ErrTransport)
}

func TestUnauthorizedRefreshesAndRetries(t *testing.T) {
	var calls, refreshes atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/auth/refresh" {
			refreshes.Add(1)
			body, _ := io.ReadAll(r.Body)
			var req map[string]string
			require.NoError(t, json.Unmarshal(body, &req))
			require.Equal(t, "r1", req["refreshToken"])
			writeJSON(w, 200, map[string]any{"success": true, "data": map[string]string{"accessToken": "a2", "refreshToken": "r2"}})
			return
		}
		calls.Add(1)
		if r.Header.Get("Authorization") != "Bearer a2" {
			writeJSON(w, 401, map[string]any{"message": "expired"})
			return
		}
		writeJSON(w, 200, map[string]any{"success": true, "data": map[string]any{"id": "u1", "name": "Ana"}})
	})

	creds := NewCredentials("a1", "r1")
	u, err := client.GetUser(WithCredentials(context.Background(), creds), "u1")
	require.NoError(t, err)
	require.Equal(t, "Ana", u.Name)
	require.Equal(t, int32(2), calls.Load())
	require.Equal(t, int32(1), refreshes.Load())

	access, refresh := creds.Tokens()
	require.Equal(t, "a2", access)
	require.Equal(t, "r2", refresh)
	require.True(t, creds.Changed())
}

func TestUnauthorizedRefreshFailureClearsTokens(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/auth/refresh" {
			writeJSON(w, 401, map[string]any{"message": "refresh expired"})
			return
		}
		writeJSON(w, 401, map[string]any{"message": "expired"})
	})

	creds := NewCredentials("a1", "r1")
	_, err := client.GetUser(WithCredentials(context.Background(), creds), "u1")
	require.ErrorIs(t, err, ErrUnauthorized)

	var be *Error
	require.ErrorAs(t, err, &be)
	require.Equal(t, "expired", be.Message)

	access, refresh := creds.Tokens()
	require.Empty(t, access)
	require.Empty(t, refresh)
}

func TestWizardSessionEndpoints(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/wizard-session":
			body, _ := io.ReadAll(r.Body)
			var req CreateSessionRequest
			require.NoError(t, json.Unmarshal(body, &req))
			require.Equal(t, "wiz_1", req.SessionID)
			require.NotNil(t, req.CompletedSteps)
			writeJSON(w, 201, map[string]any{"success": true, "data": map[string]any{
				"id": "srv-1", "sessionId": "wiz_1", "currentStep": 0, "status": "ACTIVE",
				"accessToken": "a1", "refreshToken": "r1",
			}})
		case r.Method == http.MethodPatch && r.URL.Path == "/api/v1/wizard-session/srv-1/step":
			body, _ := io.ReadAll(r.Body)
			var upd StepUpdate
			require.NoError(t, json.Unmarshal(body, &upd))
			require.Equal(t, wizard.StepMainData, upd.CurrentStep)
			writeJSON(w, 200, map[string]any{"success": true, "data": map[string]any{
				"id": "srv-1", "sessionId": "wiz_1", "currentStep": 1, "completedSteps": []int{0}, "status": "ACTIVE",
				"stepData": map[string]any{"0": map[string]any{"planId": "p1", "planName": "Esencial"}},
			}})
		case r.URL.Path == "/api/v1/wizard-session/active":
			require.Equal(t, "10.0.0.1", r.URL.Query().Get("ip"))
			writeJSON(w, 404, map[string]any{"success": false, "message": "No active session for this IP"})
		default:
			t.Fatalf("unexpected %s %s", r.Method, r.URL.Path)
		}
	})
	ctx := context.Background()

	created, err := client.CreateSession(ctx, CreateSessionRequest{SessionID: "wiz_1", Status: wizard.StatusActive})
	require.NoError(t, err)
	require.Equal(t, "srv-1", created.ID)
	require.Equal(t, "a1", created.Tokens.AccessToken)

	local := wizard.NewState("wiz_1", time.Now())
	local.CurrentStep = wizard.StepMainData
	updated, err := client.UpdateStep(ctx, "srv-1", StepUpdateFrom(local))
	require.NoError(t, err)
	require.Equal(t, []wizard.Step{wizard.StepWelcome}, updated.CompletedSteps)
	require.Equal(t, "p1", updated.SelectedPlan().PlanID)

	_, err = client.GetActiveSessionByIP(ctx, "10.0.0.1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFindUserByEmailEmpty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "ana@example.com", r.URL.Query().Get("email"))
		writeJSON(w, 200, map[string]any{"success": true, "data": []quoting.User{}})
	})
	_, err := client.FindUserByEmail(context.Background(), "ana@example.com")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	require.Equal(t, "corto", truncate("corto", 10))
	require.Equal(t, "Validaci...", truncate("Validación fallida", 9))
	require.Equal(t, "Validaci...", truncate("Validación fallida", 8))
	require.Equal(t, "Validació...", truncate("Validación fallida", 10))
}
