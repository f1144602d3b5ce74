// Package apperr defines the error taxonomy of the registration wizard.
// Every failure a step can produce is one of four kinds, each carrying a
// user-facing message. Backend-supplied message text is preferred verbatim;
// otherwise a fixed localized fallback per kind is used.
package apperr

import (
	"errors"
	"fmt"
)

// Localized fallback messages, used when the backend supplies none.
const (
	FallbackVerification = "인증 요청에 실패했습니다. 다시 시도해주세요."
	FallbackAggregation  = "건강정보를 불러올 수 없습니다."
	FallbackFinalization = "회원가입 처리 중 오류가 발생했습니다. 다시 시도해주세요."
	FallbackGeneric      = "오류가 발생했습니다. 다시 시도해주세요."
)

// ValidationError reports locally-rejected input. It is raised before any
// network call, blocks submission, and is always user-correctable.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidation creates a ValidationError for the given field.
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// VerificationRequestError reports a network or backend failure while
// initiating identity verification. Retryable.
type VerificationRequestError struct {
	Message string
	Err     error
}

func (e *VerificationRequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("verification request: %s: %v", e.Message, e.Err)
	}
	return "verification request: " + e.Message
}

func (e *VerificationRequestError) Unwrap() error { return e.Err }

// NewVerificationRequest wraps err with the given user-facing message,
// falling back to the localized default when message is empty.
func NewVerificationRequest(message string, err error) *VerificationRequestError {
	if message == "" {
		message = FallbackVerification
	}
	return &VerificationRequestError{Message: message, Err: err}
}

// AggregationError reports a failure while fetching the aggregated health
// bundle, including a non-success status discriminator. Retryable.
type AggregationError struct {
	Message string
	Err     error
}

func (e *AggregationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("health data aggregation: %s: %v", e.Message, e.Err)
	}
	return "health data aggregation: " + e.Message
}

func (e *AggregationError) Unwrap() error { return e.Err }

// NewAggregation wraps err with the given user-facing message, falling back
// to the localized default when message is empty.
func NewAggregation(message string, err error) *AggregationError {
	if message == "" {
		message = FallbackAggregation
	}
	return &AggregationError{Message: message, Err: err}
}

// FinalizationError reports a failure during final account submission.
// Recovery is policy-dependent: the strict policy leaves staged state intact
// for retry.
type FinalizationError struct {
	Message string
	Err     error
}

func (e *FinalizationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("registration finalize: %s: %v", e.Message, e.Err)
	}
	return "registration finalize: " + e.Message
}

func (e *FinalizationError) Unwrap() error { return e.Err }

// NewFinalization wraps err with the given user-facing message, falling back
// to the localized default when message is empty.
func NewFinalization(message string, err error) *FinalizationError {
	if message == "" {
		message = FallbackFinalization
	}
	return &FinalizationError{Message: message, Err: err}
}

// UserMessage extracts the user-facing message from any wizard error. Errors
// outside the taxonomy get the generic fallback so nothing internal leaks to
// the user.
func UserMessage(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	var vre *VerificationRequestError
	if errors.As(err, &vre) {
		return vre.Message
	}
	var ae *AggregationError
	if errors.As(err, &ae) {
		return ae.Message
	}
	var fe *FinalizationError
	if errors.As(err, &fe) {
		return fe.Message
	}
	return FallbackGeneric
}
