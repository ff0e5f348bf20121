package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"user-registry/internal/domain"
)

// ErrorBody is the stable error object returned to clients.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorResponse wraps ErrorBody.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// translate maps an error kind to its status and body. Unknown errors are
// reported as internal without leaking their text.
func translate(err error) (int, ErrorBody) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity, ErrorBody{Code: "validation_failed", Message: "request validation failed", Details: verr.Fields}
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, ErrorBody{Code: "not_found", Message: "user not found"}
	case errors.Is(err, domain.ErrDuplicate):
		return http.StatusConflict, ErrorBody{Code: "duplicate", Message: "username or email already exists"}
	case errors.Is(err, domain.ErrNoUpdateFields):
		return http.StatusBadRequest, ErrorBody{Code: "no_update_fields", Message: "no fields to update"}
	case errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, ErrorBody{Code: "store_unavailable", Message: "store unavailable"}
	default:
		return http.StatusInternalServerError, ErrorBody{Code: "internal_error", Message: "internal server error"}
	}
}

func (h *Handler) writeError(c *gin.Context, err error) {
	status, body := translate(err)

	entry := h.logger.WithFields(logrus.Fields{
		"request_id": requestIDFromContext(c),
		"status":     status,
		"code":       body.Code,
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
	}).WithError(err)
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Debug("request rejected")
	}

	c.AbortWithStatusJSON(status, ErrorResponse{Error: body})
}

func (h *Handler) handlePanic(c *gin.Context, rec any) {
	h.logger.WithFields(logrus.Fields{
		"request_id": requestIDFromContext(c),
		"panic":      rec,
	}).Error("panic while serving request")
	c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
		Error: ErrorBody{Code: "internal_error", Message: "internal server error"},
	})
}

// bindError turns a JSON decoding failure into a ValidationError.
func bindError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return domain.NewValidationError(typeErr.Field, "must be a "+typeErr.Type.String())
	}
	if errors.Is(err, io.EOF) {
		return domain.NewValidationError("body", "request body is required")
	}
	return domain.NewValidationError("body", "malformed JSON body")
}
