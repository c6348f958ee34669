package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/irfndi/market-gateway/internal/middleware"
	"github.com/irfndi/market-gateway/internal/models"
	"github.com/irfndi/market-gateway/internal/services"
	"github.com/irfndi/market-gateway/internal/utils"
	"github.com/irfndi/market-gateway/pkg/providers"
	"github.com/sirupsen/logrus"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string           `json:"error"`
	Kind  models.ErrorKind `json:"kind,omitempty"`
	Field string           `json:"field,omitempty"`
}

// StatusFor maps an error to the HTTP status it is answered with
func StatusFor(err error) int {
	var verr *utils.ValidationError
	var serr *providers.StatusError
	var uerr *services.UpstreamError

	switch {
	case errors.As(err, &verr), errors.Is(err, models.ErrInvalidConfig):
		return http.StatusBadRequest
	case errors.Is(err, providers.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, services.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, providers.ErrNoData):
		return http.StatusNotFound
	case errors.As(err, &serr) && serr.StatusCode == http.StatusNotFound:
		return http.StatusNotFound
	case errors.As(err, &uerr):
		return http.StatusBadGateway
	case models.KindOf(err) != "":
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the error body and logs server-side failures
func respondError(c *gin.Context, logger logrus.FieldLogger, err error) {
	status := StatusFor(err)
	body := ErrorResponse{Error: err.Error(), Kind: models.KindOf(err)}

	var verr *utils.ValidationError
	if errors.As(err, &verr) {
		body.Field = verr.Field
	}
	if status >= http.StatusInternalServerError {
		middleware.RecordError(c, err, http.StatusText(status))
		logger.WithError(err).WithFields(logrus.Fields{
			"path":       c.Request.URL.Path,
			"status":     status,
			"request_id": middleware.GetRequestID(c),
		}).Error("Request failed")
		if status == http.StatusInternalServerError {
			body.Error = "internal server error"
		}
	}
	_ = c.Error(err)
	c.JSON(status, body)
}
