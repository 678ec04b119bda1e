package transition

import (
	"errors"
	"fmt"
	"strings"
)

const (
	CodeTargetRequired        = "TARGET_REQUIRED"
	CodeTargetUnchanged       = "TARGET_UNCHANGED"
	CodeTargetUnknown         = "TARGET_UNKNOWN"
	CodeTargetInactive        = "TARGET_INACTIVE"
	CodeEffectiveDateRequired = "EFFECTIVE_DATE_REQUIRED"
	CodeEffectiveAtInvalid    = "EFFECTIVE_AT_INVALID"
	CodeReasonRequired        = "REASON_REQUIRED"
)

type ValidationError struct {
	Code    string
	Message string
}

func (e ValidationError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ValidationErrors is every rule a request currently fails, in rule order.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}

func (v ValidationErrors) Has(code string) bool {
	for _, e := range v {
		if e.Code == code {
			return true
		}
	}
	return false
}

// SubmissionError is a failed call to the transition endpoint. It is never retried here;
// resubmitting validates again and builds a new payload.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string {
	return "stage change submission failed: " + e.Err.Error()
}

func (e *SubmissionError) Unwrap() error { return e.Err }

var (
	ErrSubmitInFlight = errors.New("stage change submission in flight")
	ErrDialogClosed   = errors.New("stage change dialog closed")
)
