package errors

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	KindValidation          = "validation_error"
	KindNotFound            = "not_found"
	KindSlotConflict        = "slot_conflict"
	KindPaymentNotSucceeded = "payment_not_succeeded"
	KindInvalidSignature    = "invalid_signature"
	KindPaidButUnbooked     = "paid_but_unbooked"
	KindTooLateToCancel     = "too_late_to_cancel"
	KindForbidden           = "forbidden"
	KindUnauthorized        = "unauthorized"
	KindProvider            = "provider_error"
	KindInternal            = "internal_error"
)

// HTTPError is an error with a stable machine-readable kind and the HTTP
// status it is reported with.
type HTTPError struct {
	Code    int
	Kind    string
	Message string
	// IncidentID is set on paid_but_unbooked errors.
	IncidentID string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// Is matches on Kind so wrapped errors compare equal to the sentinels below.
func (e *HTTPError) Is(target error) bool {
	t, ok := target.(*HTTPError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewHTTPError creates a new HTTPError with the given code, kind and message.
func NewHTTPError(code int, kind, message string) *HTTPError {
	return &HTTPError{
		Code:    code,
		Kind:    kind,
		Message: message,
	}
}

var (
	ErrValidation          = NewHTTPError(http.StatusBadRequest, KindValidation, "invalid request")
	ErrNotFound            = NewHTTPError(http.StatusNotFound, KindNotFound, "not found")
	ErrSlotConflict        = NewHTTPError(http.StatusConflict, KindSlotConflict, "time slot already booked")
	ErrPaymentNotSucceeded = NewHTTPError(http.StatusBadRequest, KindPaymentNotSucceeded, "payment has not succeeded")
	ErrInvalidSignature    = NewHTTPError(http.StatusBadRequest, KindInvalidSignature, "invalid payment signature")
	ErrPaidButUnbooked     = NewHTTPError(http.StatusConflict, KindPaidButUnbooked, "payment captured but the slot is no longer available; support has been notified")
	ErrTooLateToCancel     = NewHTTPError(http.StatusBadRequest, KindTooLateToCancel, "cannot cancel a reservation that has already started")
	ErrForbidden           = NewHTTPError(http.StatusForbidden, KindForbidden, "permission denied")
	ErrUnauthorized        = NewHTTPError(http.StatusUnauthorized, KindUnauthorized, "unauthorized")
	ErrProvider            = NewHTTPError(http.StatusBadGateway, KindProvider, "payment provider unavailable")
)

func Validation(format string, args ...any) *HTTPError {
	return NewHTTPError(http.StatusBadRequest, KindValidation, fmt.Sprintf(format, args...))
}

func NotFound(format string, args ...any) *HTTPError {
	return NewHTTPError(http.StatusNotFound, KindNotFound, fmt.Sprintf(format, args...))
}

func Conflict(format string, args ...any) *HTTPError {
	return NewHTTPError(http.StatusConflict, KindSlotConflict, fmt.Sprintf(format, args...))
}

// PaidButUnbooked carries the incident id so the client can quote it to support.
func PaidButUnbooked(incidentID string) *HTTPError {
	e := *ErrPaidButUnbooked
	e.IncidentID = incidentID
	return &e
}

// Provider wraps a payment provider failure. The underlying error is logged,
// not exposed.
func Provider(err error) error {
	return fmt.Errorf("%w: %v", ErrProvider, err)
}

// As unwraps err into an HTTPError. Anything unknown becomes a 500.
func As(err error) *HTTPError {
	var he *HTTPError
	if errors.As(err, &he) {
		return he
	}
	return NewHTTPError(http.StatusInternalServerError, KindInternal, "internal server error")
}
