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

// WithInternal returns a copy of the AppError with an attached internal error.
func (e *AppError) WithInternal(err error) *AppError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Internal = err
	return &cpy
}

// Common errors exposed to the rest of the application.
var (
	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "Resource not found",
		StatusCode: http.StatusNotFound,
	}

	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "Invalid request",
		StatusCode: http.StatusBadRequest,
	}

	ErrInternalServer = &AppError{
		Code:       "INTERNAL_SERVER_ERROR",
		Message:    "Internal server error",
		StatusCode: http.StatusInternalServerError,
	}

	// ErrNoWallet mirrors the marketplace "no_wallet" rejection of an order
	// assignment. The accept flow creates a wallet and retries exactly once.
	ErrNoWallet = &AppError{
		Code:       "no_wallet",
		Message:    "Shopper wallet is missing",
		StatusCode: http.StatusConflict,
	}

	// ErrWalletRetryExhausted is the one terminal, user-visible failure of the
	// accept flow: wallet creation succeeded but the retried assignment still
	// failed, or wallet creation itself failed.
	ErrWalletRetryExhausted = &AppError{
		Code:       "WALLET_RETRY_EXHAUSTED",
		Message:    "Could not assign order after wallet creation, please retry manually",
		StatusCode: http.StatusConflict,
	}

	// ErrOrderTaken reports that the authoritative server-side assignment went
	// to another shopper before this one accepted.
	ErrOrderTaken = &AppError{
		Code:       "ORDER_TAKEN",
		Message:    "Order was already assigned to another shopper",
		StatusCode: http.StatusConflict,
	}

	// ErrEngineNotRunning reports a lifecycle call against a stopped engine.
	ErrEngineNotRunning = &AppError{
		Code:       "ENGINE_NOT_RUNNING",
		Message:    "Notification engine is not running",
		StatusCode: http.StatusConflict,
	}

	// ErrBridgeInactive reports that the push bridge degraded to inactive;
	// polling remains the delivery path.
	ErrBridgeInactive = &AppError{
		Code:       "PUSH_BRIDGE_INACTIVE",
		Message:    "Push bridge is not active",
		StatusCode: http.StatusServiceUnavailable,
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

// NewBadRequest wraps validation errors with a helpful message.
func NewBadRequest(message string) *AppError {
	return &AppError{
		Code:       ErrBadRequest.Code,
		Message:    message,
		StatusCode: ErrBadRequest.StatusCode,
	}
}
