package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/benjarmc/portal-pji-project-sub000/internal/application/services"
	"github.com/benjarmc/portal-pji-project-sub000/internal/domain/wizard"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/backend"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/media"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{&services.InputError{Step: wizard.StepMainData, Fields: map[string]string{"email": "email"}}, http.StatusUnprocessableEntity},
		{fmt.Errorf("wrap: %w", wizard.ErrMissingStepData), http.StatusUnprocessableEntity},
		{media.ErrImageTooLarge, http.StatusRequestEntityTooLarge},
		{wizard.ErrStepOutOfRange, http.StatusBadRequest},
		{wizard.ErrStepNotReached, http.StatusConflict},
		{wizard.ErrBackNotAllowed, http.StatusConflict},
		{services.ErrNotFound, http.StatusNotFound},
		{services.ErrNotConfigured, http.StatusNotImplemented},
		{&backend.Error{Kind: backend.KindNotFound, Status: 404}, http.StatusNotFound},
		{&backend.Error{Kind: backend.KindRateLimited, Status: 429}, http.StatusTooManyRequests},
		{&backend.Error{Kind: backend.KindDomain, Status: 409}, http.StatusConflict},
		{&backend.Error{Kind: backend.KindDomain, Status: 200}, http.StatusUnprocessableEntity},
		{&backend.Error{Kind: backend.KindTransport}, http.StatusServiceUnavailable},
		{&backend.Error{Kind: backend.KindServer, Status: 500}, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, statusFor(tc.err), tc.err.Error())
	}
}

func TestRespondErrorIncludesFields(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	respondError(c, &services.InputError{Step: wizard.StepMainData, Fields: map[string]string{"phone": "min"}})

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.Contains(t, w.Body.String(), `"step":1`)
	require.Contains(t, w.Body.String(), `"phone":"min"`)
}
