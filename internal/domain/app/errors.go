package app

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorCode identifies the well-known failure categories of the installer core.
type ErrorCode string

const (
	ErrCodeValidation        ErrorCode = "VALIDATION_ERROR"
	ErrCodeNotFound          ErrorCode = "NOT_FOUND"
	ErrCodeDependency        ErrorCode = "DEPENDENCY_ERROR"
	ErrCodeCycle             ErrorCode = "CIRCULAR_DEPENDENCY"
	ErrCodeDownload          ErrorCode = "DOWNLOAD_ERROR"
	ErrCodeHostNotVetted     ErrorCode = "HOST_NOT_VETTED"
	ErrCodeUnsupportedScheme ErrorCode = "UNSUPPORTED_SCHEME"
	ErrCodeHashMismatch      ErrorCode = "HASH_MISMATCH"
	ErrCodeSignature         ErrorCode = "SIGNATURE_ERROR"
	ErrCodeInstaller         ErrorCode = "INSTALLER_ERROR"
	ErrCodeConfiguration     ErrorCode = "CONFIGURATION_ERROR"
	ErrCodeState             ErrorCode = "INVALID_STATE"
	ErrCodeCancelled         ErrorCode = "CANCELLED"
	ErrCodeInternal          ErrorCode = "INTERNAL_ERROR"
)

// Sentinels for errors.Is checks. A sentinel matches any DomainError with the
// same code.
var (
	ErrValidation        = &DomainError{Code: ErrCodeValidation}
	ErrNotFound          = &DomainError{Code: ErrCodeNotFound}
	ErrDependency        = &DomainError{Code: ErrCodeDependency}
	ErrCycle             = &DomainError{Code: ErrCodeCycle}
	ErrDownload          = &DomainError{Code: ErrCodeDownload}
	ErrHostNotVetted     = &DomainError{Code: ErrCodeHostNotVetted}
	ErrUnsupportedScheme = &DomainError{Code: ErrCodeUnsupportedScheme}
	ErrHashMismatch      = &DomainError{Code: ErrCodeHashMismatch}
	ErrSignature         = &DomainError{Code: ErrCodeSignature}
	ErrInstaller         = &DomainError{Code: ErrCodeInstaller}
	ErrConfiguration     = &DomainError{Code: ErrCodeConfiguration}
	ErrState             = &DomainError{Code: ErrCodeState}
	ErrCancelled         = &DomainError{Code: ErrCodeCancelled}
)

// DomainError represents a typed error enriched with contextual data such as
// the application id, file path, or expected and actual values.
type DomainError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Message
	if msg == "" {
		msg = strings.ToLower(strings.ReplaceAll(string(e.Code), "_", " "))
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As usage.
func (e *DomainError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is matches another DomainError with the same code. A target without a
// message behaves as a sentinel for its code.
func (e *DomainError) Is(target error) bool {
	var domainErr *DomainError
	if e == nil || !errors.As(target, &domainErr) || domainErr == nil {
		return false
	}
	if e.Code != domainErr.Code {
		return false
	}
	return domainErr.Message == "" || e.Message == domainErr.Message
}

// WithContext clones the error with additional contextual metadata.
func (e *DomainError) WithContext(ctx map[string]interface{}) *DomainError {
	if e == nil {
		return nil
	}
	merged := make(map[string]interface{}, len(e.Context)+len(ctx))
	for k, v := range e.Context {
		merged[k] = v
	}
	for k, v := range ctx {
		merged[k] = v
	}
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Cause:   e.Cause,
		Context: merged,
	}
}

// Fields flattens the context into sorted key/value pairs for structured logs.
func (e *DomainError) Fields() []interface{} {
	if e == nil || len(e.Context) == 0 {
		return nil
	}
	keys := make([]string, 0, len(e.Context))
	for k := range e.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]interface{}, 0, len(keys)*2)
	for _, k := range keys {
		out = append(out, k, e.Context[k])
	}
	return out
}

// NewError constructs a DomainError with the supplied code and message.
func NewError(code ErrorCode, message string, cause error, context map[string]interface{}) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Cause:   cause,
		Context: context,
	}
}

// CodeOf returns the code of the first DomainError in err's chain, or an empty
// code when there is none.
func CodeOf(err error) ErrorCode {
	var domainErr *DomainError
	if errors.As(err, &domainErr) && domainErr != nil {
		return domainErr.Code
	}
	return ""
}

// Helper constructors used throughout the installer packages.

func NewValidationError(message string, context map[string]interface{}) *DomainError {
	return NewError(ErrCodeValidation, message, nil, context)
}

func NewNotFoundError(appID string) *DomainError {
	return NewError(ErrCodeNotFound, fmt.Sprintf("application %q not found in catalog", appID), nil, map[string]interface{}{
		"app_id": appID,
	})
}

func NewCycleError(appID string, path []string) *DomainError {
	return NewError(ErrCodeCycle, fmt.Sprintf("circular dependency detected at %q", appID), nil, map[string]interface{}{
		"app_id": appID,
		"path":   append([]string(nil), path...),
	})
}

func NewDependencyConflictError(appID string, dependents []string) *DomainError {
	sorted := append([]string(nil), dependents...)
	sort.Strings(sorted)
	return NewError(ErrCodeDependency,
		fmt.Sprintf("cannot uninstall %q: required by installed applications: %s", appID, strings.Join(sorted, ", ")),
		nil,
		map[string]interface{}{"app_id": appID, "dependents": sorted},
	)
}

func NewHashMismatchError(path, expected, actual string) *DomainError {
	return NewError(ErrCodeHashMismatch,
		fmt.Sprintf("hash mismatch for %s: expected %s, got %s", path, expected, actual),
		nil,
		map[string]interface{}{"path": path, "expected": expected, "actual": actual},
	)
}

func NewInstallerError(appID string, message string, cause error) *DomainError {
	return NewError(ErrCodeInstaller, message, cause, map[string]interface{}{"app_id": appID})
}
