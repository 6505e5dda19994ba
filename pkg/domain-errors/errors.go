// Package domainerrors defines coded errors shared by services and transports.
//
// Services return these codes so the HTTP layer can translate them into a
// machine-readable envelope without inspecting error strings. Stores never
// return coded errors; they return sentinel facts (see pkg/platform/sentinel)
// that services translate.
package domainerrors

import (
	"errors"
	"net/http"
)

// Code is a stable, machine-readable error kind.
type Code string

const (
	CodeBadRequest           Code = "bad_request"
	CodeValidation           Code = "validation_error"
	CodeInvalidInput         Code = "invalid_input"
	CodeInvalidAmount        Code = "invalid_amount"
	CodeInvalidStatus        Code = "invalid_status"
	CodeDuplicateKey         Code = "duplicate_key"
	CodeDuplicateTransaction Code = "duplicate_transaction"
	CodeReferenceNotFound    Code = "reference_not_found"
	CodeCharityNotFound      Code = "charity_not_found"
	CodeAlreadyFinalized     Code = "already_finalized"
	CodeNotFound             Code = "not_found"
	CodeUnauthorized         Code = "unauthorized"
	CodeForbidden            Code = "forbidden"
	CodeUploadFailed         Code = "upload_failed"
	CodeTimeout              Code = "timeout"
	CodeInternal             Code = "internal_error"
)

// Error is a coded domain error. Message is safe to return to clients; the
// wrapped cause is only for logs.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error without a cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and client-safe message to an underlying error.
func Wrap(err error, code Code, message string) error {
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether the outermost coded error in err's chain has code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is shorthand for HasCode.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the code of the outermost coded error, or CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the client-safe message for err. Uncoded errors never
// leak their text.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal server error"
}

var httpStatus = map[Code]int{
	CodeBadRequest:           http.StatusBadRequest,
	CodeValidation:           http.StatusBadRequest,
	CodeInvalidInput:         http.StatusBadRequest,
	CodeInvalidAmount:        http.StatusBadRequest,
	CodeInvalidStatus:        http.StatusBadRequest,
	CodeDuplicateKey:         http.StatusBadRequest,
	CodeDuplicateTransaction: http.StatusBadRequest,
	CodeReferenceNotFound:    http.StatusBadRequest,
	CodeCharityNotFound:      http.StatusBadRequest,
	CodeAlreadyFinalized:     http.StatusBadRequest,
	CodeNotFound:             http.StatusNotFound,
	CodeUnauthorized:         http.StatusUnauthorized,
	CodeForbidden:            http.StatusForbidden,
	CodeUploadFailed:         http.StatusBadGateway,
	CodeTimeout:              http.StatusServiceUnavailable,
	CodeInternal:             http.StatusInternalServerError,
}

// ToHTTPStatus maps a code to its HTTP status. Unknown codes are 500.
func ToHTTPStatus(code Code) int {
	if status, ok := httpStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
