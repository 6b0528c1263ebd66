// Package errors provides structured error handling for walletd.
// It defines sentinel errors, exit codes, and helpers for adding
// context and details to errors.
//
//nolint:revive // Package name intentionally shadows stdlib for domain-specific error handling
package errors

import (
	"errors"
	"fmt"
	"sort"
)

// Exit codes.
const (
	ExitSuccess      = 0 // Successful execution
	ExitGeneral      = 1 // General/unknown error
	ExitInput        = 2 // Invalid input
	ExitConnectivity = 3 // Host or authority unreachable
	ExitNotFound     = 4 // Resource not found
)

// WalletError is the structured error type for walletd.
type WalletError struct {
	Code       string            // Machine-readable error code
	Message    string            // Human-readable message, never contains key material
	Details    map[string]string // Additional context
	Suggestion string            // Actionable suggestion for the operator
	Cause      error             // Underlying error
	ExitCode   int               // Exit code for CLI
}

func (e *WalletError) Error() string {
	msg := e.Message

	// Include details in error message (sorted for deterministic output)
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			msg = fmt.Sprintf("%s (%s: %s)", msg, k, e.Details[k])
		}
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *WalletError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for WalletError.
func (e *WalletError) Is(target error) bool {
	var t *WalletError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Sentinel errors.
var (
	ErrGeneral = &WalletError{
		Code:     "GENERAL_ERROR",
		Message:  "an error occurred",
		ExitCode: ExitGeneral,
	}

	// ErrConnectivity covers unreachable hosts and timed-out RPC calls.
	// Retryable with bounded backoff.
	ErrConnectivity = &WalletError{
		Code:     "CONNECTIVITY",
		Message:  "host unreachable or request timed out",
		ExitCode: ExitConnectivity,
	}

	// ErrNotProvisioned means the seed authority holds no material for the
	// requested wallet identity. Retrying cannot help without operator action.
	ErrNotProvisioned = &WalletError{
		Code:     "NOT_PROVISIONED",
		Message:  "seed authority has no material for this wallet",
		ExitCode: ExitNotFound,
	}

	// ErrMalformedResponse means a collaborator answered with a payload we
	// could not parse. The payload itself is never included in the message.
	ErrMalformedResponse = &WalletError{
		Code:     "MALFORMED_RESPONSE",
		Message:  "unparseable response from remote service",
		ExitCode: ExitGeneral,
	}

	ErrInvalidDescriptor = &WalletError{
		Code:     "INVALID_DESCRIPTOR",
		Message:  "invalid output descriptor",
		ExitCode: ExitInput,
	}

	ErrInvalidSeed = &WalletError{
		Code:     "INVALID_SEED",
		Message:  "invalid seed material",
		ExitCode: ExitInput,
	}

	// ErrWalletNotFound means the wallet host knows no wallet by the
	// configured name. Distinct from connectivity failure.
	ErrWalletNotFound = &WalletError{
		Code:     "WALLET_NOT_FOUND",
		Message:  "wallet not found on host",
		ExitCode: ExitNotFound,
	}

	// ErrHostRejected is any wallet host RPC error that is neither benign
	// nor a not-found. Fatal for the current reconciliation attempt.
	ErrHostRejected = &WalletError{
		Code:     "HOST_REJECTED",
		Message:  "wallet host rejected the operation",
		ExitCode: ExitGeneral,
	}

	ErrConfigNotFound = &WalletError{
		Code:     "CONFIG_NOT_FOUND",
		Message:  "configuration file not found",
		ExitCode: ExitNotFound,
	}

	ErrConfigInvalid = &WalletError{
		Code:     "CONFIG_INVALID",
		Message:  "configuration file is invalid",
		ExitCode: ExitInput,
	}

	ErrHandleUnavailable = &WalletError{
		Code:     "HANDLE_UNAVAILABLE",
		Message:  "no wallet handle for this currency",
		ExitCode: ExitNotFound,
	}
)

// New creates a new WalletError with the given code and message.
func New(code, message string) *WalletError {
	return &WalletError{
		Code:     code,
		Message:  message,
		ExitCode: ExitGeneral,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}

	msg := fmt.Sprintf(format, args...)

	var we *WalletError
	if errors.As(err, &we) {
		return &WalletError{
			Code:       we.Code,
			Message:    msg,
			Suggestion: we.Suggestion,
			Cause:      err,
			ExitCode:   we.ExitCode,
		}
	}

	return &WalletError{
		Code:     "GENERAL_ERROR",
		Message:  msg,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// WithDetails adds details to an error.
func WithDetails(err error, details map[string]string) error {
	if err == nil {
		return nil
	}

	var we *WalletError
	if errors.As(err, &we) {
		return &WalletError{
			Code:       we.Code,
			Message:    we.Message,
			Details:    details,
			Suggestion: we.Suggestion,
			Cause:      we.Cause,
			ExitCode:   we.ExitCode,
		}
	}

	return &WalletError{
		Code:     "GENERAL_ERROR",
		Message:  err.Error(),
		Details:  details,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// WithSuggestion adds a suggestion to an error.
func WithSuggestion(err error, suggestion string) error {
	if err == nil {
		return nil
	}

	var we *WalletError
	if errors.As(err, &we) {
		return &WalletError{
			Code:       we.Code,
			Message:    we.Message,
			Details:    we.Details,
			Suggestion: suggestion,
			Cause:      we.Cause,
			ExitCode:   we.ExitCode,
		}
	}

	return &WalletError{
		Code:       "GENERAL_ERROR",
		Message:    err.Error(),
		Suggestion: suggestion,
		Cause:      err,
		ExitCode:   ExitGeneral,
	}
}

// ExitCode returns the appropriate exit code for an error.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var we *WalletError
	if errors.As(err, &we) {
		return we.ExitCode
	}

	return ExitGeneral
}

// Suggestion returns the remediation hint attached to an error, if any.
func Suggestion(err error) string {
	var we *WalletError
	if errors.As(err, &we) {
		return we.Suggestion
	}
	return ""
}

// Code returns the error code for an error.
func Code(err error) string {
	var we *WalletError
	if errors.As(err, &we) {
		return we.Code
	}
	return "GENERAL_ERROR"
}

// Is wraps errors.Is for convenience.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience.
func As(err error, target any) bool {
	return errors.As(err, target)
}
