// Package services provides external service integrations and technical concerns like delivery backends and sessions
package services

import (
	"errors"
	"fmt"
)

// DeliveryErrorCode classifies a failed backend send for the retry policy.
type DeliveryErrorCode string

const (
	// DeliveryErrNotConnected means no authenticated backend session exists
	// for the sending account. Failover-eligible; not retryable until the
	// session is re-established.
	DeliveryErrNotConnected DeliveryErrorCode = "NOT_CONNECTED"

	// DeliveryErrInvalidRecipient means the phone failed format validation.
	// Non-retryable: the job fails immediately regardless of budget.
	DeliveryErrInvalidRecipient DeliveryErrorCode = "INVALID_RECIPIENT"

	// DeliveryErrTimeout means the backend did not acknowledge within the
	// bounded wait. Retryable.
	DeliveryErrTimeout DeliveryErrorCode = "TIMEOUT"

	// DeliveryErrTransient covers any other backend error. Retryable.
	DeliveryErrTransient DeliveryErrorCode = "TRANSIENT"
)

// DeliveryError wraps a backend send failure with its taxonomy code and the
// method that produced it.
type DeliveryError struct {
	Code   DeliveryErrorCode
	Method string
	Err    error
}

func (e *DeliveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s via %s: %v", e.Code, e.Method, e.Err)
	}
	return fmt.Sprintf("%s via %s", e.Code, e.Method)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// NewDeliveryError creates a classified delivery error
func NewDeliveryError(code DeliveryErrorCode, method string, err error) *DeliveryError {
	return &DeliveryError{Code: code, Method: method, Err: err}
}

// CodeOf extracts the taxonomy code from an error chain; unclassified errors
// count as transient.
func CodeOf(err error) DeliveryErrorCode {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.Code
	}
	return DeliveryErrTransient
}

// IsInvalidRecipient reports whether the failure is a malformed phone number
func IsInvalidRecipient(err error) bool {
	return CodeOf(err) == DeliveryErrInvalidRecipient
}

// FailoverEligible reports whether the fallback backend should be attempted
// within the same dispatch attempt.
func FailoverEligible(err error) bool {
	switch CodeOf(err) {
	case DeliveryErrNotConnected, DeliveryErrTimeout, DeliveryErrTransient:
		return true
	default:
		return false
	}
}
