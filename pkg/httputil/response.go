// Package httputil provides the JSON response envelope shared by every
// endpoint of the checkout service, handlers and middleware alike.
package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/utafrali/checkout-service/pkg/errors"
	"github.com/utafrali/checkout-service/pkg/logger"
	"github.com/utafrali/checkout-service/pkg/validator"
)

// Response is the envelope every endpoint writes: either a data payload or
// an error, never both.
type Response struct {
	Data  any            `json:"data,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse carries a stable machine code alongside the human message.
// Clients branch on Code (OUT_OF_STOCK, PAYMENT_FAILED, GONE) rather than
// parsing Message.
type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// WriteJSON writes v inside the caller's envelope with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

// sentinelResponses maps bare sentinel errors to their response code and
// status. AppErrors carry their own code and never reach this table.
var sentinelResponses = map[error]struct {
	code   string
	status int
}{
	apperrors.ErrNotFound:      {"NOT_FOUND", http.StatusNotFound},
	apperrors.ErrAlreadyExists: {"ALREADY_EXISTS", http.StatusConflict},
	apperrors.ErrInvalidInput:  {"INVALID_INPUT", http.StatusBadRequest},
}

// WriteError translates err into the error envelope. AppErrors keep their
// code, message and status; known sentinels map through sentinelResponses;
// anything else becomes a logged 500 with the message redacted. The
// request-scoped logger from context (set by RequestLogger) is preferred
// over the fallback so internal errors land with correlation and owner
// fields attached.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	l := logger.FromContext(r.Context())
	if l == slog.Default() {
		l = fallback
	}
	requestID := logger.CorrelationIDFromContext(r.Context())

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		WriteJSON(w, appErr.Status, Response{
			Error: &ErrorResponse{Code: appErr.Code, Message: appErr.Message, RequestID: requestID},
		})
		return
	}

	for sentinel, resp := range sentinelResponses {
		if errors.Is(err, sentinel) {
			message := sentinel.Error()
			if resp.code == "INVALID_INPUT" {
				message = err.Error()
			}
			WriteJSON(w, resp.status, Response{
				Error: &ErrorResponse{Code: resp.code, Message: message, RequestID: requestID},
			})
			return
		}
	}

	l.ErrorContext(r.Context(), "internal error",
		slog.String("error", err.Error()),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)
	WriteJSON(w, http.StatusInternalServerError, Response{
		Error: &ErrorResponse{Code: "INTERNAL_ERROR", Message: "an internal error occurred", RequestID: requestID},
	})
}

// WriteValidationError writes a 400 with field-level detail when err is a
// validator.ValidationError, or a plain INVALID_INPUT otherwise.
func WriteValidationError(w http.ResponseWriter, err error) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		WriteJSON(w, http.StatusBadRequest, Response{
			Error: &ErrorResponse{
				Code:    "VALIDATION_ERROR",
				Message: "request validation failed",
				Fields:  valErr.Fields(),
			},
		})
		return
	}

	WriteJSON(w, http.StatusBadRequest, Response{
		Error: &ErrorResponse{Code: "INVALID_INPUT", Message: err.Error()},
	})
}
