package api

import (
	"errors"
	"net/http"

	"quarry/internal/domain"
)

// httpStatusFromError maps domain errors to HTTP status codes.
func httpStatusFromError(err error) int {
	var notFound *domain.NotFoundError
	var accessDenied *domain.AccessDeniedError
	var validation *domain.ValidationError
	var unsupported *domain.UnsupportedError
	var conflict *domain.ConflictError

	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &accessDenied):
		return http.StatusForbidden
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &unsupported):
		return http.StatusBadRequest
	case errors.As(err, &conflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders the error envelope with the given status.
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, Error{Code: status, Message: message})
}

// writeServiceError maps a service error onto the envelope. Internal errors
// are logged and masked; domain errors pass their message to the caller.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := httpStatusFromError(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
		message = "internal server error"
	}
	h.writeError(w, status, message)
}
