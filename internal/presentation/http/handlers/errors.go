// Package handlers provides HTTP request handlers for the presentation layer.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/benjarmc/portal-pji-project-sub000/internal/application/services"
	"github.com/benjarmc/portal-pji-project-sub000/internal/domain/wizard"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/backend"
	"github.com/benjarmc/portal-pji-project-sub000/internal/infrastructure/media"
)

// statusFor maps service and backend errors to an HTTP status.
func statusFor(err error) int {
	var be *backend.Error
	switch {
	case errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, wizard.ErrMissingStepData),
		errors.Is(err, media.ErrUnsupportedImage),
		errors.Is(err, media.ErrEmptyImage):
		return http.StatusUnprocessableEntity
	case errors.Is(err, media.ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, wizard.ErrStepOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, wizard.ErrStepNotReached),
		errors.Is(err, wizard.ErrBackNotAllowed),
		errors.Is(err, wizard.ErrAlreadyFinished):
		return http.StatusConflict
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrNotConfigured):
		return http.StatusNotImplemented
	case errors.As(err, &be):
		switch be.Kind {
		case backend.KindNotFound:
			return http.StatusNotFound
		case backend.KindRateLimited:
			return http.StatusTooManyRequests
		case backend.KindUnauthorized:
			return http.StatusUnauthorized
		case backend.KindDomain:
			if be.Status >= 400 && be.Status < 500 {
				return be.Status
			}
			return http.StatusUnprocessableEntity
		case backend.KindTransport:
			return http.StatusServiceUnavailable
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// respondError writes {"error": ...}, adding the failing fields of an
// input error.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	body := gin.H{"error": err.Error()}
	var inputErr *services.InputError
	if errors.As(err, &inputErr) {
		body["step"] = int(inputErr.Step)
		body["fields"] = inputErr.Fields
	}
	c.JSON(status, body)
}

// bindError reports a malformed request body.
func bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
}
