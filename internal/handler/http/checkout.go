package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/checkout-service/internal/domain"
	"github.com/utafrali/checkout-service/internal/service"
	apperrors "github.com/utafrali/checkout-service/pkg/errors"
	"github.com/utafrali/checkout-service/pkg/httputil"
	"github.com/utafrali/checkout-service/pkg/validator"
)

// SessionHandler handles HTTP requests for checkout session endpoints.
type SessionHandler struct {
	service *service.CheckoutService
	logger  *slog.Logger
}

// NewSessionHandler creates a new checkout session HTTP handler.
func NewSessionHandler(svc *service.CheckoutService, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// CreateSessionRequest is the JSON request body for creating a checkout
// session. Exactly one of the cart references must be set.
type CreateSessionRequest struct {
	CartID       string `json:"cart_id" validate:"omitempty,uuid"`
	DeviceCartID string `json:"device_cart_id" validate:"omitempty,uuid"`
}

// SetAddressRequest is the JSON request body for setting the shipping address.
type SetAddressRequest struct {
	FullName    string `json:"full_name" validate:"required"`
	AddressLine string `json:"address_line" validate:"required"`
	City        string `json:"city" validate:"required"`
	State       string `json:"state"`
	PostalCode  string `json:"postal_code" validate:"required"`
	Country     string `json:"country" validate:"required,len=2"`
	Phone       string `json:"phone"`
}

// SelectShippingRequest is the JSON request body for selecting a shipping method.
type SelectShippingRequest struct {
	Method string `json:"method" validate:"required"`
}

// SelectPaymentRequest is the JSON request body for selecting a payment method.
type SelectPaymentRequest struct {
	PaymentMethodID string `json:"payment_method_id" validate:"required"`
}

// PreviewRequest is the JSON request body for previewing pricing.
type PreviewRequest struct {
	DiscountCode string `json:"discount_code"`
}

// --- Handlers ---

// CreateSession handles POST /api/v1/sessions
// @Summary Create a checkout session
// @Description Freezes the referenced cart into a new checkout session. Requires X-User-ID or X-Device-ID header.
// @Tags sessions
// @Accept json
// @Produce json
// @Param X-User-ID header string false "Authenticated user UUID"
// @Param X-Device-ID header string false "Guest device UUID"
// @Param request body CreateSessionRequest true "Cart reference"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/v1/sessions [post]
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if !h.decode(w, r, &req) {
		return
	}

	session, err := h.service.CreateSession(r.Context(), ownerFromRequest(r), &service.CreateSessionInput{
		CartID:       req.CartID,
		DeviceCartID: req.DeviceCartID,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: session})
}

// GetSession handles GET /api/v1/sessions/{id}
// @Summary Get a checkout session
// @Description Returns a checkout session by ID. Only the session owner may access it. A session past its deadline is returned with status expired.
// @Tags sessions
// @Produce json
// @Param id path string true "Session UUID"
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/sessions/{id} [get]
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.GetSession(r.Context(), ownerFromRequest(r), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: session})
}

// SetAddress handles PUT /api/v1/sessions/{id}/address
// @Summary Set the shipping address
// @Description Validates and stores the shipping address, clearing any quote computed for a previous destination.
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session UUID"
// @Param request body SetAddressRequest true "Shipping address"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Failure 410 {object} map[string]interface{}
// @Router /api/v1/sessions/{id}/address [put]
func (h *SessionHandler) SetAddress(w http.ResponseWriter, r *http.Request) {
	var req SetAddressRequest
	if !h.decode(w, r, &req) {
		return
	}

	addr := &domain.Address{
		FullName:    req.FullName,
		AddressLine: req.AddressLine,
		City:        req.City,
		State:       req.State,
		PostalCode:  req.PostalCode,
		Country:     req.Country,
		Phone:       req.Phone,
	}

	session, err := h.service.SetAddress(r.Context(), ownerFromRequest(r), chi.URLParam(r, "id"), addr)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: session})
}

// SelectShipping handles PUT /api/v1/sessions/{id}/shipping
// @Summary Select a shipping method
// @Description Computes the delivery zone, rate, and estimated date for the chosen method and stores the quote.
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session UUID"
// @Param request body SelectShippingRequest true "Shipping method"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/v1/sessions/{id}/shipping [put]
func (h *SessionHandler) SelectShipping(w http.ResponseWriter, r *http.Request) {
	var req SelectShippingRequest
	if !h.decode(w, r, &req) {
		return
	}

	session, err := h.service.SelectShipping(r.Context(), ownerFromRequest(r), chi.URLParam(r, "id"), req.Method)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: session})
}

// SelectPayment handles PUT /api/v1/sessions/{id}/payment
// @Summary Select a payment method
// @Description Stores the chosen payment method after confirming it belongs to the session owner.
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session UUID"
// @Param request body SelectPaymentRequest true "Payment method"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/v1/sessions/{id}/payment [put]
func (h *SessionHandler) SelectPayment(w http.ResponseWriter, r *http.Request) {
	var req SelectPaymentRequest
	if !h.decode(w, r, &req) {
		return
	}

	session, err := h.service.SelectPayment(r.Context(), ownerFromRequest(r), chi.URLParam(r, "id"), req.PaymentMethodID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: session})
}

// Preview handles POST /api/v1/sessions/{id}/preview
// @Summary Preview pricing
// @Description Recomputes the full pricing breakdown server-side. An invalid discount code zeroes the discount and sets a warning instead of failing.
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session UUID"
// @Param request body PreviewRequest false "Optional discount code"
// @Success 200 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/v1/sessions/{id}/preview [post]
func (h *SessionHandler) Preview(w http.ResponseWriter, r *http.Request) {
	// ContentLength is -1 for chunked bodies, so only a definite 0 means
	// no body was sent.
	var req PreviewRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}

	session, err := h.service.Preview(r.Context(), ownerFromRequest(r), chi.URLParam(r, "id"), req.DiscountCode)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: session})
}

// Complete handles POST /api/v1/sessions/{id}/complete
// @Summary Complete the checkout
// @Description Runs the completion sequence: reserve inventory, authorize payment, create the order. Retrying after success returns the same order id without repeating any side effect.
// @Tags sessions
// @Produce json
// @Param id path string true "Session UUID"
// @Success 200 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Failure 410 {object} map[string]interface{}
// @Failure 422 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/v1/sessions/{id}/complete [post]
func (h *SessionHandler) Complete(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.Complete(r.Context(), ownerFromRequest(r), chi.URLParam(r, "id"))
	if err != nil {
		// A failed completion still reports the session's final state so
		// the client can see the status and any reconciliation flag.
		if session != nil {
			h.writeFailure(w, r, session, err)
			return
		}
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: session})
}

// Cancel handles POST /api/v1/sessions/{id}/cancel
// @Summary Cancel the checkout
// @Description Cancels a non-terminal session, releasing any holds left behind by an interrupted completion.
// @Tags sessions
// @Produce json
// @Param id path string true "Session UUID"
// @Success 200 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/v1/sessions/{id}/cancel [post]
func (h *SessionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.Cancel(r.Context(), ownerFromRequest(r), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: session})
}

// --- helpers ---

// decode reads and validates a JSON request body, writing the error response
// itself when the body is malformed or invalid.
func (h *SessionHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return false
	}

	if err := validator.Validate(v); err != nil {
		httputil.WriteValidationError(w, err)
		return false
	}
	return true
}

// writeFailure writes an error response that carries the session alongside
// the error, for completion failures where the session reached a terminal
// state the client needs to see.
func (h *SessionHandler) writeFailure(w http.ResponseWriter, r *http.Request, session *domain.CheckoutSession, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		httputil.WriteJSON(w, appErr.Status, httputil.Response{
			Data:  session,
			Error: &httputil.ErrorResponse{Code: appErr.Code, Message: appErr.Message},
		})
		return
	}

	status := apperrors.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "completion failed",
			slog.String("session_id", session.ID),
			slog.String("error", err.Error()),
		)
	}
	httputil.WriteJSON(w, status, httputil.Response{
		Data:  session,
		Error: &httputil.ErrorResponse{Code: "CHECKOUT_FAILED", Message: err.Error()},
	})
}
