// Package businessflow contains the core business logic and use cases for campaign and contact workflows
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Campaign-related errors
	ErrCampaignNotFound        = errors.New("campaign not found")
	ErrCampaignAccessDenied    = errors.New("campaign access denied")
	ErrCampaignNameRequired    = errors.New("campaign name is required")
	ErrCampaignMessageRequired = errors.New("campaign message is required")
	ErrCampaignNotModifiable   = errors.New("campaign cannot be modified in its current status")
	ErrInvalidPacingPolicy     = errors.New("invalid pacing policy")
	ErrScheduleTimeNotPresent  = errors.New("schedule time is not present")
	ErrScheduleTimeInPast      = errors.New("schedule time must be in the future")

	// Contact import errors
	ErrNoContactsProvided  = errors.New("no contacts provided")
	ErrImportFileUnreadble = errors.New("import file could not be parsed")
	ErrImportSheetEmpty    = errors.New("import sheet contains no rows")

	// Filter errors
	ErrInvalidPage     = errors.New("page must be at least 1")
	ErrInvalidPageSize = errors.New("page size must be between 1 and 100")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func IsCampaignNotFound(err error) bool {
	return errors.Is(err, ErrCampaignNotFound)
}

func IsCampaignAccessDenied(err error) bool {
	return errors.Is(err, ErrCampaignAccessDenied)
}
