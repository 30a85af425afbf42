package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError provides a structured error that can be rendered to API consumers.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}

	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}

	return e.Message
}

// Unwrap exposes the internal error for errors.Is / errors.As compatibility.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Internal
}

// Is matches AppErrors by code so that parameterised instances (for example
// an ACCOUNT_NOT_FOUND carrying a concrete id in its message) compare equal
// to their sentinel.
func (e *AppError) Is(target error) bool {
	if e == nil {
		return false
	}

	var other *AppError
	if !errors.As(target, &other) || other == nil {
		return false
	}
	return e.Code == other.Code
}

// WithInternal returns a copy of the AppError with an attached internal error.
func (e *AppError) WithInternal(err error) *AppError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Internal = err
	return &cpy
}

// WithMessage returns a copy of the AppError with a more specific message.
// The code and status are retained so Is-based matching keeps working.
func (e *AppError) WithMessage(message string) *AppError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Message = message
	return &cpy
}

// Sentinel errors for the account change lifecycle. Handlers translate these
// to HTTP status codes; the services raise them with detail attached via
// WithMessage / WithInternal.
var (
	ErrAccountNotFound = &AppError{
		Code:       "ACCOUNT_NOT_FOUND",
		Message:    "Account not found",
		StatusCode: http.StatusNotFound,
	}

	ErrCredentialNotFound = &AppError{
		Code:       "CREDENTIAL_NOT_FOUND",
		Message:    "Credential not found",
		StatusCode: http.StatusNotFound,
	}

	ErrChangeInProgress = &AppError{
		Code:       "CHANGE_IN_PROGRESS",
		Message:    "Another change is already in progress for this account",
		StatusCode: http.StatusConflict,
	}

	ErrInvalidNickname = &AppError{
		Code:       "INVALID_NICKNAME",
		Message:    "Nickname is malformed",
		StatusCode: http.StatusBadRequest,
	}

	ErrInvalidEmail = &AppError{
		Code:       "INVALID_EMAIL",
		Message:    "Email address is malformed",
		StatusCode: http.StatusBadRequest,
	}

	ErrDuplicateEmail = &AppError{
		Code:       "DUPLICATE_EMAIL",
		Message:    "Email address is already registered",
		StatusCode: http.StatusBadRequest,
	}

	ErrInvalidChangeToken = &AppError{
		Code:       "INVALID_CHANGE_TOKEN",
		Message:    "Change token is unknown or already redeemed",
		StatusCode: http.StatusNotFound,
	}

	// ErrInvalidCredentials is deliberately uninformative: login failures
	// must not reveal which part of the attempt was wrong.
	ErrInvalidCredentials = &AppError{
		Code:       "INVALID_CREDENTIALS",
		Message:    "Invalid email or password",
		StatusCode: http.StatusUnauthorized,
	}

	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "Invalid request",
		StatusCode: http.StatusBadRequest,
	}

	ErrUnauthorized = &AppError{
		Code:       "UNAUTHORIZED",
		Message:    "Authentication required",
		StatusCode: http.StatusUnauthorized,
	}

	// ErrStorage wraps any storage failure not claimed by a declared
	// matcher. The raw driver error rides along in Internal for logging
	// only; it is never rendered to callers.
	ErrStorage = &AppError{
		Code:       "STORAGE_ERROR",
		Message:    "Unexpected storage error",
		StatusCode: http.StatusInternalServerError,
	}

	ErrInternalServer = &AppError{
		Code:       "INTERNAL_SERVER_ERROR",
		Message:    "Internal server error",
		StatusCode: http.StatusInternalServerError,
	}
)

// New builds a new application error with the provided metadata.
func New(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// NewBadRequest wraps validation errors with a helpful message.
func NewBadRequest(message string) *AppError {
	return &AppError{
		Code:       ErrBadRequest.Code,
		Message:    message,
		StatusCode: ErrBadRequest.StatusCode,
	}
}

// NewAccountNotFound reports a missing account row by id.
func NewAccountNotFound(id int64) *AppError {
	return ErrAccountNotFound.WithMessage(fmt.Sprintf("Account %d not found", id))
}

// NewCredentialNotFound reports a missing credential row by id.
func NewCredentialNotFound(id int64) *AppError {
	return ErrCredentialNotFound.WithMessage(fmt.Sprintf("Credential %d not found", id))
}

// NewChangeInProgress reports that the account already has a pending change.
func NewChangeInProgress(id int64) *AppError {
	return ErrChangeInProgress.WithMessage(fmt.Sprintf("Account %d already has a change in progress", id))
}

// NewInvalidNickname reports a nickname rejected by the storage constraint.
func NewInvalidNickname(value string) *AppError {
	return ErrInvalidNickname.WithMessage(fmt.Sprintf("Nickname %q is malformed", value))
}

// NewInvalidEmail reports an email rejected by the storage constraint.
func NewInvalidEmail(value string) *AppError {
	return ErrInvalidEmail.WithMessage(fmt.Sprintf("Email %q is malformed", value))
}

// NewDuplicateEmail reports a unique-constraint collision on the email column.
func NewDuplicateEmail(value string) *AppError {
	return ErrDuplicateEmail.WithMessage(fmt.Sprintf("Email %q is already registered", value))
}

// NewInvalidChangeToken reports redemption of an unknown or consumed token.
func NewInvalidChangeToken() *AppError {
	return ErrInvalidChangeToken.WithMessage("Change token is unknown or already redeemed")
}

// Wrap turns any error into an AppError while keeping the original error for logging.
func Wrap(err error, message string) *AppError {
	return &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Internal:   err,
	}
}

// FromError converts a generic error into an AppError, defaulting to ErrInternalServer.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	return ErrInternalServer.WithInternal(err)
}
