package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Filter errors
	ErrInvalidPage           = errors.New("page must be at least 1")
	ErrInvalidPageSize       = errors.New("page size must be between 1 and 500")
	ErrInvalidTimeFilter     = errors.New("time filters must be RFC3339")
	ErrStartDateAfterEndDate = errors.New("start date cannot be after end date")

	// Reporting errors
	ErrAuditLogDisabled    = errors.New("sync audit log is disabled")
	ErrExportTooLarge      = errors.New("export exceeds the maximum number of rows")
	ErrReviewQueueDisabled = errors.New("review queue is disabled")
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

func IsInvalidPage(err error) bool {
	return errors.Is(err, ErrInvalidPage)
}

func IsInvalidPageSize(err error) bool {
	return errors.Is(err, ErrInvalidPageSize)
}

func IsInvalidTimeFilter(err error) bool {
	return errors.Is(err, ErrInvalidTimeFilter)
}

func IsStartDateAfterEndDate(err error) bool {
	return errors.Is(err, ErrStartDateAfterEndDate)
}

func IsAuditLogDisabled(err error) bool {
	return errors.Is(err, ErrAuditLogDisabled)
}

func IsExportTooLarge(err error) bool {
	return errors.Is(err, ErrExportTooLarge)
}

func IsReviewQueueDisabled(err error) bool {
	return errors.Is(err, ErrReviewQueueDisabled)
}
