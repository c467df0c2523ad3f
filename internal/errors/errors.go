// Package errors defines the typed application errors used across the chat
// service, their classification and their HTTP mapping.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a machine-readable error code returned to API clients.
type Code string

const (
	CodeInvalidInput     Code = "INVALID_INPUT"
	CodeValidation       Code = "VALIDATION_FAILED"
	CodeSessionNotFound  Code = "SESSION_NOT_FOUND"
	CodeBusinessNotFound Code = "BUSINESS_NOT_FOUND"
	CodeBusinessSold     Code = "BUSINESS_NOT_AVAILABLE"
	CodeNotFound         Code = "NOT_FOUND"
	CodeRateLimited      Code = "RATE_LIMITED"

	CodeLLMUnavailable Code = "LLM_UNAVAILABLE"
	CodeLLMBadResponse Code = "LLM_BAD_RESPONSE"
	CodeCircuitOpen    Code = "CIRCUIT_OPEN"
	CodeTimeout        Code = "TIMEOUT"
	CodeShuttingDown   Code = "SHUTTING_DOWN"

	CodeDatabase Code = "DATABASE_ERROR"
	CodeStore    Code = "SESSION_STORE_ERROR"
	CodeInternal Code = "INTERNAL_ERROR"
)

// Kind classifies an error for handling decisions.
type Kind int

const (
	KindUnknown Kind = iota
	// KindUser is caused by the caller (bad input, unknown session).
	KindUser
	// KindSystem is a failure on our side.
	KindSystem
	// KindTransient may succeed on retry.
	KindTransient
)

// Error is the application error type.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Kind    Kind   `json:"-"`
	// Op names the failing operation, e.g. "chat.SendMessage".
	Op  string `json:"-"`
	Err error  `json:"-"`
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Code so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// HTTPStatus returns the HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeInvalidInput, CodeValidation:
		return http.StatusBadRequest
	case CodeSessionNotFound, CodeBusinessNotFound, CodeNotFound:
		return http.StatusNotFound
	case CodeBusinessSold:
		return http.StatusConflict
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeShuttingDown:
		return http.StatusServiceUnavailable
	case CodeLLMUnavailable, CodeLLMBadResponse, CodeCircuitOpen:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// IsRetriable returns true if the error may succeed on retry.
func (e *Error) IsRetriable() bool {
	return e.Kind == KindTransient
}

// ErrorResponse is the JSON body for API errors.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the code and message of an API error.
type ErrorDetail struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

// ToResponse converts an Error to an API response.
func (e *Error) ToResponse() ErrorResponse {
	return ErrorResponse{Error: ErrorDetail{Code: e.Code, Message: e.Message}}
}

// New creates a new Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message, Kind: kindForCode(code)}
}

// Wrap wraps err with an operation, code and message.
func Wrap(err error, op string, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Kind: kindForCode(code), Op: op, Err: err}
}

// WrapWithOp keeps the code of an application error and records op.
// Foreign errors become internal errors.
func WrapWithOp(err error, op string) *Error {
	var e *Error
	if errors.As(err, &e) {
		return &Error{Code: e.Code, Message: e.Message, Kind: e.Kind, Op: op, Err: e.Err}
	}
	return &Error{Code: CodeInternal, Message: err.Error(), Kind: KindSystem, Op: op, Err: err}
}

func kindForCode(code Code) Kind {
	switch code {
	case CodeInvalidInput, CodeValidation, CodeSessionNotFound, CodeBusinessNotFound,
		CodeBusinessSold, CodeNotFound, CodeRateLimited:
		return KindUser
	case CodeLLMUnavailable, CodeCircuitOpen, CodeTimeout, CodeShuttingDown:
		return KindTransient
	default:
		return KindSystem
	}
}

var (
	ErrSessionNotFound  = New(CodeSessionNotFound, "chat session not found")
	ErrBusinessNotFound = New(CodeBusinessNotFound, "business not found")
	ErrBusinessSold     = New(CodeBusinessSold, "business is no longer available")
	ErrCircuitOpen      = New(CodeCircuitOpen, "service temporarily unavailable")
	ErrTimeout          = New(CodeTimeout, "operation timed out")
	ErrLLMUnavailable   = New(CodeLLMUnavailable, "no completion provider available")
	ErrRateLimited      = New(CodeRateLimited, "too many messages, please slow down")
	ErrShuttingDown     = New(CodeShuttingDown, "server is shutting down")
)

// ValidationFailed creates a validation error.
func ValidationFailed(message string) *Error {
	return &Error{Code: CodeValidation, Message: message, Kind: KindUser}
}

// InvalidInput creates an invalid input error, e.g. for malformed JSON bodies.
func InvalidInput(message string) *Error {
	return &Error{Code: CodeInvalidInput, Message: message, Kind: KindUser}
}

// DatabaseError creates a database error with the underlying cause.
func DatabaseError(op string, err error) *Error {
	return &Error{Code: CodeDatabase, Message: "database operation failed", Kind: KindSystem, Op: op, Err: err}
}

// StoreError creates a session store error.
func StoreError(op string, err error) *Error {
	return &Error{Code: CodeStore, Message: "session store operation failed", Kind: KindSystem, Op: op, Err: err}
}

// ProviderError reports a failed call to a completion provider.
func ProviderError(provider string, err error) *Error {
	return &Error{
		Code:    CodeLLMUnavailable,
		Message: fmt.Sprintf("completion provider %s failed", provider),
		Kind:    KindTransient,
		Err:     err,
	}
}

// BadResponse reports a provider reply that could not be decoded.
func BadResponse(provider string, err error) *Error {
	return &Error{
		Code:    CodeLLMBadResponse,
		Message: fmt.Sprintf("completion provider %s returned a malformed response", provider),
		Kind:    KindSystem,
		Err:     err,
	}
}

// InternalError creates a generic internal error.
func InternalError(message string, err error) *Error {
	return &Error{Code: CodeInternal, Message: message, Kind: KindSystem, Err: err}
}

// GetCode extracts the code from err, CodeInternal for foreign errors.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// GetHTTPStatus extracts the HTTP status from err, 500 for foreign errors.
func GetHTTPStatus(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// IsRetriable checks if an error is retriable.
func IsRetriable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.IsRetriable()
	}
	return false
}

// IsUserError checks if an error was caused by the caller.
func IsUserError(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindUser
	}
	return false
}
