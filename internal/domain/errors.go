package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the subscription lifecycle. Compare with errors.Is.
var (
	ErrPackageNotFound      = errors.New("package not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrUnknownStatus        = errors.New("unknown payment status")
	ErrOrderCodeConflict    = errors.New("order code already in use")
)

// AppError is a structured application error with HTTP status code.
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Common error constructors.

func ErrNotFound(msg string, err error) *AppError {
	return &AppError{Code: http.StatusNotFound, Message: msg, Err: err}
}

func ErrUnauthorized(msg string) *AppError {
	return &AppError{Code: http.StatusUnauthorized, Message: msg}
}

func ErrBadRequest(msg string) *AppError {
	return &AppError{Code: http.StatusBadRequest, Message: msg}
}

func ErrValidation(msg string, err error) *AppError {
	return &AppError{Code: http.StatusUnprocessableEntity, Message: msg, Err: err}
}

func ErrConflict(msg string, err error) *AppError {
	return &AppError{Code: http.StatusConflict, Message: msg, Err: err}
}

// ErrBadGateway reports a failure of the external payment gateway.
func ErrBadGateway(msg string, err error) *AppError {
	return &AppError{Code: http.StatusBadGateway, Message: msg, Err: err}
}

// StatusClientClosedRequest reports a request abandoned by the client.
const StatusClientClosedRequest = 499

// ErrCanceled reports work stopped because the caller went away.
func ErrCanceled(msg string, err error) *AppError {
	return &AppError{Code: StatusClientClosedRequest, Message: msg, Err: err}
}

func ErrInternal(msg string, err error) *AppError {
	return &AppError{Code: http.StatusInternalServerError, Message: msg, Err: err}
}

// AsAppError attempts to extract an AppError from an error chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
