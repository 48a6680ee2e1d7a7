// Package dto defines the request and response types of the HTTP API.
package dto

// APIResponse is the envelope every endpoint returns. Exactly one of Data and
// Error is populated, matching the Success flag.
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty" validate:"omitempty"`
	Error   any    `json:"error,omitempty" validate:"omitempty"`
}

// ErrorDetail carries the machine-readable error code alongside optional
// per-field details.
type ErrorDetail struct {
	Code    string `json:"code"`
	Details any    `json:"details,omitempty" validate:"omitempty"`
}
