package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/utafrali/checkout-service/pkg/errors"
)

// maxErrorBody caps how much of a downstream error body is read. Inventory,
// payment and order services return small JSON envelopes; anything larger is
// a proxy page and gets truncated.
const maxErrorBody = 1 << 20

// downstreamError is the error envelope the peer services write, matching
// httputil.ErrorResponse on their side.
type downstreamError struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// statusConstructors maps downstream status codes to the AppError constructor
// that keeps the same semantics on this side. Codes absent here fall through
// to a passthrough AppError or a plain wrapped error for 5xx.
var statusConstructors = map[int]func(string) *apperrors.AppError{
	http.StatusBadRequest:          apperrors.InvalidInput,
	http.StatusUnauthorized:        apperrors.Unauthorized,
	http.StatusForbidden:           apperrors.Forbidden,
	http.StatusConflict:            apperrors.Conflict,
	http.StatusGone:                apperrors.Gone,
	http.StatusUnprocessableEntity: apperrors.PaymentFailed,
}

// ParseResponseError turns a non-2xx response from a downstream service into
// an error the saga can act on. Structured envelopes keep their code and
// message; a payment decline stays a 422 and an out-of-stock conflict stays a
// 409 all the way up to the checkout client. Unstructured bodies become a
// plain error carrying the status and raw body.
//
// The response body is fully consumed and closed.
func ParseResponseError(resp *http.Response, serviceName string) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", serviceName, resp.StatusCode, err)
	}

	var downstream downstreamError
	if json.Unmarshal(body, &downstream) != nil || downstream.Error == nil {
		return fmt.Errorf("%s returned status %d: %s", serviceName, resp.StatusCode, string(body))
	}

	code, message := downstream.Error.Code, downstream.Error.Message
	qualified := fmt.Sprintf("%s: %s", serviceName, message)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return apperrors.NotFound(serviceName, message)
	case resp.StatusCode == http.StatusServiceUnavailable:
		return &apperrors.AppError{
			Code:    code,
			Message: qualified,
			Status:  http.StatusServiceUnavailable,
			Err:     apperrors.ErrServiceUnavail,
		}
	case statusConstructors[resp.StatusCode] != nil:
		return statusConstructors[resp.StatusCode](qualified)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%s server error (%d/%s): %s", serviceName, resp.StatusCode, code, message)
	default:
		return &apperrors.AppError{
			Code:    code,
			Message: qualified,
			Status:  resp.StatusCode,
		}
	}
}
