/*
 * Copyright 2025 The Promptwire Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package errors

import (
	"errors"
	"fmt"
	"time"

	"github.com/promptwire/promptd/internal/types"
)

// ErrorCode represents standardized error codes
type ErrorCode string

const (
	// Request validation errors
	ErrInvalidRequestFormat ErrorCode = "INVALID_REQUEST_FORMAT"
	ErrValidationFailed     ErrorCode = "VALIDATION_FAILED"
	ErrInvalidPromptID      ErrorCode = "INVALID_PROMPT_ID"

	// Resolution errors
	//
	// PROMPT_NOT_FOUND means the identifier did not resolve to any
	// cached record. STORE_INCONSISTENCY means the cache resolved the
	// identifier but the persistent store has no matching natural-key
	// record; the two are surfaced alike to clients but logged at
	// different severity, since an inconsistency indicates cache/store
	// drift that must be reconciled out of band.
	ErrPromptNotFound    ErrorCode = "PROMPT_NOT_FOUND"
	ErrStoreInconsistent ErrorCode = "STORE_INCONSISTENCY"

	// Store errors
	ErrStoreIO ErrorCode = "STORE_IO_ERROR"

	// Authentication and authorization errors
	ErrUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrForbidden    ErrorCode = "FORBIDDEN"

	// System errors
	ErrInternalError      ErrorCode = "INTERNAL_ERROR"
	ErrServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
)

// PromptError represents a structured promptd error
type PromptError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	RequestID string                 `json:"request_id,omitempty"`
	Cause     error                  `json:"-"` // Internal cause, not exposed in JSON
}

// Error implements the error interface
func (e *PromptError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error
func (e *PromptError) Unwrap() error {
	return e.Cause
}

// ToErrorResponse converts PromptError to types.ErrorResponse
func (e *PromptError) ToErrorResponse() types.ErrorResponse {
	return types.ErrorResponse{
		Error: types.ErrorDetail{
			Code:      string(e.Code),
			Message:   e.Message,
			Details:   e.Details,
			Timestamp: e.Timestamp,
			RequestID: e.RequestID,
		},
	}
}

// New creates a new PromptError
func New(code ErrorCode, message string) *PromptError {
	return &PromptError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

// Newf creates a new PromptError with formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *PromptError {
	return &PromptError{
		Code:      code,
		Message:   fmt.Sprintf(format, args...),
		Timestamp: time.Now().UTC(),
	}
}

// Wrap creates a new PromptError wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *PromptError {
	return &PromptError{
		Code:      code,
		Message:   message,
		Cause:     cause,
		Timestamp: time.Now().UTC(),
	}
}

// Wrapf creates a new PromptError wrapping an existing error with formatted message
func Wrapf(code ErrorCode, cause error, format string, args ...interface{}) *PromptError {
	return &PromptError{
		Code:      code,
		Message:   fmt.Sprintf(format, args...),
		Cause:     cause,
		Timestamp: time.Now().UTC(),
	}
}

// WithDetails adds details to a PromptError
func (e *PromptError) WithDetails(details map[string]interface{}) *PromptError {
	e.Details = details
	return e
}

// WithRequestID adds a request ID to a PromptError
func (e *PromptError) WithRequestID(requestID string) *PromptError {
	e.RequestID = requestID
	return e
}

// GetHTTPStatus returns the appropriate HTTP status code for the error.
// A store inconsistency is deliberately surfaced as 404: from the
// client's perspective the resource is absent, even though the cache
// briefly disagreed.
func (e *PromptError) GetHTTPStatus() int {
	switch e.Code {
	case ErrInvalidRequestFormat, ErrValidationFailed, ErrInvalidPromptID:
		return 400 // Bad Request

	case ErrUnauthorized:
		return 401 // Unauthorized

	case ErrForbidden:
		return 403 // Forbidden

	case ErrPromptNotFound, ErrStoreInconsistent:
		return 404 // Not Found

	case ErrInternalError, ErrStoreIO:
		return 500 // Internal Server Error

	case ErrServiceUnavailable:
		return 503 // Service Unavailable

	default:
		return 500 // Default to Internal Server Error
	}
}

// Common error constructors for convenience

// NewNotFound creates a not-found error carrying the identifier exactly
// as the caller requested it, before any latest-version resolution.
func NewNotFound(promptID string) *PromptError {
	return Newf(ErrPromptNotFound, "prompt not found: %s", promptID).WithDetails(map[string]interface{}{
		"prompt_id": promptID,
	})
}

// NewNoVersions creates a not-found error for a base identifier with no
// registered versions.
func NewNoVersions(promptID string) *PromptError {
	return Newf(ErrPromptNotFound, "no versions found for prompt: %s", promptID).WithDetails(map[string]interface{}{
		"prompt_id": promptID,
	})
}

// NewStoreInconsistency creates an error for a record that resolved in
// the cache but is missing from the persistent store.
func NewStoreInconsistency(promptID string, baseID string, version int) *PromptError {
	return Newf(ErrStoreInconsistent, "prompt %s not found in database", promptID).WithDetails(map[string]interface{}{
		"prompt_id": promptID,
		"base_id":   baseID,
		"version":   version,
	})
}

// NewStoreIO creates an error for a failed store query or mutation
func NewStoreIO(operation string, cause error) *PromptError {
	return Wrapf(ErrStoreIO, cause, "store %s failed", operation)
}

// NewInternalError creates an internal error
func NewInternalError(message string, cause error) *PromptError {
	return Wrap(ErrInternalError, message, cause)
}

// IsPromptError checks if an error is a PromptError
func IsPromptError(err error) bool {
	var pe *PromptError
	return errors.As(err, &pe)
}

// AsPromptError converts an error to PromptError if possible
func AsPromptError(err error) (*PromptError, bool) {
	var pe *PromptError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// IsNotFound reports whether err is a PromptError with code PROMPT_NOT_FOUND.
func IsNotFound(err error) bool {
	pe, ok := AsPromptError(err)
	return ok && pe.Code == ErrPromptNotFound
}

// IsStoreInconsistency reports whether err is a PromptError with code STORE_INCONSISTENCY.
func IsStoreInconsistency(err error) bool {
	pe, ok := AsPromptError(err)
	return ok && pe.Code == ErrStoreInconsistent
}
