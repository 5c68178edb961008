package sessionadmin

import (
	"errors"
	"net/http"

	"github.com/wallpaperhub/sessions/core/session"
)

// HTTPError is the JSON error body returned by every admin endpoint.
type HTTPError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e HTTPError) Error() string { return e.Message }

// WithMessage returns a copy of the error with a custom message.
func (e HTTPError) WithMessage(message string) HTTPError {
	e.Message = message
	return e
}

var (
	ErrBadRequest = HTTPError{
		Status:  http.StatusBadRequest,
		Code:    "bad_request",
		Message: http.StatusText(http.StatusBadRequest),
	}
	ErrInvalidUserID = HTTPError{
		Status:  http.StatusBadRequest,
		Code:    "invalid_user_id",
		Message: "user_id must be a positive integer",
	}
	ErrInvalidAction = HTTPError{
		Status:  http.StatusBadRequest,
		Code:    "invalid_action",
		Message: `action must be "cleanup" or "clear_all"`,
	}
	ErrServiceUnavailable = HTTPError{
		Status:  http.StatusServiceUnavailable,
		Code:    "service_unavailable",
		Message: "session store unavailable",
	}
	ErrInternalServerError = HTTPError{
		Status:  http.StatusInternalServerError,
		Code:    "internal_server_error",
		Message: http.StatusText(http.StatusInternalServerError),
	}
)

func toHTTPError(err error) HTTPError {
	var he HTTPError
	switch {
	case errors.As(err, &he):
		return he
	case errors.Is(err, session.ErrStoreUnavailable):
		return ErrServiceUnavailable
	default:
		return ErrInternalServerError
	}
}
